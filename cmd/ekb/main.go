// Command ekb builds and serves the eDnevnik academic-records knowledge base.
// It extracts every tenant's records, embeds them into a vector corpus and
// answers similarity searches restricted to what the caller may see.
package main

import (
	"fmt"
	"os"

	"github.com/54b3r/ednevnik-kb/cmd/ekb/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
