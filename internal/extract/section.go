package extract

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/54b3r/ednevnik-kb/internal/catalog"
	"github.com/54b3r/ednevnik-kb/internal/corpus"
)

type sectionListRow struct {
	sectionRow
	Year sql.NullString `db:"year"`
}

// Sections extracts one record per section in every partition, archived ones
// included. Sections whose curriculum or owning tenant is unknown to the
// workspace are skipped.
func Sections() Extractor {
	return Stage[struct{}, []corpus.Record]{
		Kind: corpus.SourceSection,
		Scan: scanSections,
		Emit: concat[struct{}],
	}
}

func scanSections(ctx context.Context, env *Env, _ struct{}, p *catalog.Partition) ([]corpus.Record, error) {
	var rows []sectionListRow
	if err := query(ctx, p.DB, &rows, `SELECT `+sectionColumns+`, s.year FROM sections s ORDER BY s.id`); err != nil {
		return nil, fmt.Errorf("sections: %w", err)
	}
	tallies, err := tallyBy(ctx, p.DB, "section_id")
	if err != nil {
		return nil, err
	}

	var out []corpus.Record
	for _, s := range rows {
		curriculum, ok := env.Refs.Curriculum(s.CurriculumCode)
		if !ok {
			continue
		}
		tenantName, ok := env.Refs.TenantName(s.TenantID)
		if !ok {
			continue
		}
		success := Success(tallies[s.SectionID].mean())
		name := s.Code()
		year := str(s.Year)

		md := corpus.Metadata{
			corpus.KeyKind:     "Opšte informacije o odjeljenju",
			"ime":              name,
			"institucija":      tenantName,
			"godina":           year,
			"naziv_kurikuluma": curriculum,
			"uspjeh":           success,
			"arhivirano":       yesNo(s.Archived),
			corpus.KeySource:   string(corpus.SourceSection),
			corpus.KeyTenantID: int64(p.ID),
		}
		desc := fmt.Sprintf("Odjeljenje: %s - %s u školskoj godini %s, koristi kurikulum: %s. Uspjeh odjeljenja %s je %s%s. Tip entiteta: odjeljenje.",
			name, tenantName, year, curriculum, name, success, archiveNote(s.Archived))
		out = append(out, corpus.Record{Metadata: md, Description: desc})
	}
	return out, nil
}
