package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/ednevnik-kb/internal/access"
	"github.com/54b3r/ednevnik-kb/internal/corpus"
	"github.com/54b3r/ednevnik-kb/internal/filter"
	"github.com/54b3r/ednevnik-kb/internal/rag"
)

// fakeSearcher implements the searcher interface for tests. It records the
// predicate it was given and answers with hits or err.
type fakeSearcher struct {
	// hits is returned on success.
	hits []rag.Hit
	// err is returned when non-nil.
	err error
	// calls counts Retrieve invocations.
	calls int
	// expr is the last predicate received.
	expr filter.Expr
	// k is the last k received.
	k int
}

func (f *fakeSearcher) Retrieve(_ context.Context, _ string, expr filter.Expr, k int) ([]rag.Hit, error) {
	f.calls++
	f.expr, f.k = expr, k
	if f.err != nil {
		return nil, f.err
	}
	return f.hits, nil
}

// newTestServer builds a *Server with defaults and an isolated registry.
func newTestServer() *Server {
	return newSearchTestServer(&fakeSearcher{})
}

func newSearchTestServer(s searcher) *Server {
	return &Server{
		searcher: s,
		cfg:      &Config{SearchTimeout: time.Second, MaxK: defaultMaxK},
		log:      slog.Default(),
		metrics:  newServerMetrics(prometheus.NewRegistry()),
	}
}

func postJSON(t *testing.T, h http.HandlerFunc, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h(w, req)
	return w
}

func TestHandleSearch_OK(t *testing.T) {
	t.Parallel()

	fs := &fakeSearcher{hits: []rag.Hit{{
		Record: corpus.Record{
			Metadata:    corpus.Metadata{corpus.KeySource: "section", corpus.KeyTenantID: int64(7)},
			Description: "Odjeljenje I-a",
		},
		Score: 0.9,
	}}}
	s := newSearchTestServer(fs)

	w := postJSON(t, s.handleSearch, "/api/search",
		`{"query":"koji su razredi","k":5,"scope":{"account_type":"teacher","account_id":3,"tenant_ids":["7"]}}`)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d, body: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Hits []struct {
			Metadata    map[string]any `json:"metadata"`
			Description string         `json:"description"`
			Score       float32        `json:"score"`
		} `json:"hits"`
		Count int `json:"count"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Count != 1 || resp.Hits[0].Description != "Odjeljenje I-a" || resp.Hits[0].Score != 0.9 {
		t.Errorf("unexpected response: %+v", resp)
	}
	if fs.k != 5 {
		t.Errorf("want k=5 passed through, got %d", fs.k)
	}

	want, _ := access.Compile(access.Teacher{TenantIDs: []int64{7}})
	gotJSON, _ := filter.MarshalJSON(fs.expr)
	wantJSON, _ := filter.MarshalJSON(want)
	if string(gotJSON) != string(wantJSON) {
		t.Errorf("predicate mismatch:\n got %s\nwant %s", gotJSON, wantJSON)
	}
}

func TestHandleSearch_ScopeRejected(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"unknown role":           `{"query":"q","scope":{"account_type":"parent","account_id":1}}`,
		"missing role":           `{"query":"q","scope":{"account_id":1}}`,
		"tenant admin no tenant": `{"query":"q","scope":{"account_type":"tenant_admin","account_id":1}}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			fs := &fakeSearcher{}
			s := newSearchTestServer(fs)

			w := postJSON(t, s.handleSearch, "/api/search", body)

			if w.Code != http.StatusForbidden {
				t.Errorf("expected 403, got %d", w.Code)
			}
			if fs.calls != 0 {
				t.Errorf("searcher must not be called for a rejected scope")
			}
		})
	}
}

func TestHandleSearch_BadRequests(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"invalid json":  `not-json`,
		"empty query":   `{"query":"   ","scope":{"account_type":"root"}}`,
		"negative k":    `{"query":"q","k":-1,"scope":{"account_type":"root"}}`,
		"k over max":    `{"query":"q","k":100000,"scope":{"account_type":"root"}}`,
		"unknown field": `{"query":"q","scope":{"account_type":"root"},"filter":{}}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			s := newTestServer()
			w := postJSON(t, s.handleSearch, "/api/search", body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", w.Code)
			}
		})
	}
}

func TestHandleSearch_SearcherErrors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  error
		want int
	}{
		{"failure", errors.New("qdrant unavailable"), http.StatusInternalServerError},
		{"timeout", context.DeadlineExceeded, http.StatusGatewayTimeout},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			s := newSearchTestServer(&fakeSearcher{err: tc.err})
			w := postJSON(t, s.handleSearch, "/api/search", `{"query":"q","scope":{"account_type":"root"}}`)
			if w.Code != tc.want {
				t.Errorf("expected %d, got %d", tc.want, w.Code)
			}
		})
	}
}

func TestHandleFilter_PupilDocument(t *testing.T) {
	t.Parallel()
	s := newTestServer()

	w := postJSON(t, s.handleFilter, "/api/filter",
		`{"scope":{"account_type":"pupil","account_id":100,"tenant_ids":[7]}}`)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d, body: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Filter json.RawMessage `json:"filter"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	expr, _ := access.Compile(access.Pupil{TenantIDs: []int64{7}, AccountID: 100})
	want, _ := filter.MarshalJSON(expr)
	if string(resp.Filter) != string(want) {
		t.Errorf("filter mismatch:\n got %s\nwant %s", resp.Filter, want)
	}
}

func TestHandleFilter_RootIsEmptyDocument(t *testing.T) {
	t.Parallel()
	s := newTestServer()

	w := postJSON(t, s.handleFilter, "/api/filter", `{"scope":{"account_type":"root"}}`)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if got := strings.TrimSpace(w.Body.String()); got != `{"filter":{}}` {
		t.Errorf("want empty filter document, got %s", got)
	}
}

func TestHandleFilter_UnknownRoleForbidden(t *testing.T) {
	t.Parallel()
	s := newTestServer()

	w := postJSON(t, s.handleFilter, "/api/filter", `{"scope":{"account_type":"superuser"}}`)

	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", w.Code)
	}
}

func TestNew_NilSearcher(t *testing.T) {
	t.Parallel()
	if _, err := New(nil, nil); err == nil {
		t.Error("expected error for nil searcher")
	}
}

// TestNew_Routing exercises the fully wrapped handler: auth on the retrieval
// routes, open health and metrics routes, and the request id header.
func TestNew_Routing(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	srv, err := New(&fakeSearcher{}, &Config{
		APIKey:          "secret",
		Logger:          slog.Default(),
		MetricsRegistry: reg,
		MetricsGatherer: reg,
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	t.Cleanup(srv.stopRL)
	h := srv.Handler()

	cases := []struct {
		name   string
		method string
		path   string
		auth   string
		body   string
		want   int
	}{
		{"health open", http.MethodGet, "/api/health", "", "", http.StatusOK},
		{"ready open", http.MethodGet, "/api/ready", "", "", http.StatusOK},
		{"metrics open", http.MethodGet, "/metrics", "", "", http.StatusOK},
		{"search needs auth", http.MethodPost, "/api/search", "", `{"query":"q","scope":{"account_type":"root"}}`, http.StatusUnauthorized},
		{"search with auth", http.MethodPost, "/api/search", "Bearer secret", `{"query":"q","scope":{"account_type":"root"}}`, http.StatusOK},
		{"filter with auth", http.MethodPost, "/api/filter", "Bearer secret", `{"scope":{"account_type":"root"}}`, http.StatusOK},
		{"search wrong method", http.MethodGet, "/api/search", "Bearer secret", "", http.StatusMethodNotAllowed},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(tc.method, tc.path, strings.NewReader(tc.body))
		if tc.auth != "" {
			req.Header.Set("Authorization", tc.auth)
		}
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		if w.Code != tc.want {
			t.Errorf("%s: expected %d, got %d", tc.name, tc.want, w.Code)
		}
		if w.Header().Get(requestIDHeader) == "" {
			t.Errorf("%s: expected %s header", tc.name, requestIDHeader)
		}
	}
}

func TestRequestLogger_KeepsCallerRequestID(t *testing.T) {
	t.Parallel()

	h := requestLogger(slog.Default(), okHandler)
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	w := httptest.NewRecorder()

	h.ServeHTTP(w, req)

	if got := w.Header().Get(requestIDHeader); got != "abc-123" {
		t.Errorf("want caller request id echoed, got %q", got)
	}
}
