package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// storePinger is the subset of rag.Store used for readiness probes.
type storePinger interface {
	Ping(ctx context.Context) error
}

// StorePinger probes the corpus store. For Qdrant this is the native
// HealthCheck RPC; for SQL stores it is a database ping.
type StorePinger struct {
	// store is the corpus store to probe.
	store storePinger
	// name identifies the backend in readiness responses (e.g. "qdrant").
	name string
}

// NewStorePinger constructs a StorePinger for the given store and backend name.
func NewStorePinger(store storePinger, name string) *StorePinger {
	return &StorePinger{store: store, name: name}
}

// Name returns the backend label used in readiness responses.
func (p *StorePinger) Name() string { return p.name }

// Ping checks that the store is reachable.
func (p *StorePinger) Ping(ctx context.Context) error {
	if err := p.store.Ping(ctx); err != nil {
		return fmt.Errorf("%s ping failed: %w", p.name, err)
	}
	return nil
}

// HTTPPinger probes an encoder endpoint with a GET request. Any response
// below 500 counts as reachable, so no tokens are spent on readiness.
type HTTPPinger struct {
	// url is the endpoint to probe.
	url string
	// name identifies the backend in readiness responses (e.g. "ollama").
	name string
	// client performs the probe.
	client *http.Client
}

// NewHTTPPinger constructs an HTTPPinger for url.
func NewHTTPPinger(url, name string) *HTTPPinger {
	return &HTTPPinger{
		url:    strings.TrimRight(url, "/"),
		name:   name,
		client: &http.Client{Timeout: probeTimeout + time.Second},
	}
}

// Name returns the backend label used in readiness responses.
func (p *HTTPPinger) Name() string { return p.name }

// Ping issues the GET and checks the status class.
func (p *HTTPPinger) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", p.name, err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s unreachable: %w", p.name, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("%s returned %d", p.name, resp.StatusCode)
	}
	return nil
}
