package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/54b3r/ednevnik-kb/internal/access"
	"github.com/54b3r/ednevnik-kb/internal/filter"
	"github.com/54b3r/ednevnik-kb/internal/logging"
)

// maxBodyBytes bounds request bodies on the JSON endpoints.
const maxBodyBytes = 64 << 10

// Search outcome label values.
const (
	outcomeOK        = "ok"
	outcomeForbidden = "forbidden"
	outcomeTimeout   = "timeout"
	outcomeError     = "error"
)

// handleSearch handles POST /api/search. The scope in the body is compiled
// into an access predicate before anything is embedded, so a malformed scope
// is rejected without touching the encoder or the store.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())
	start := time.Now()

	var req searchRequest
	if err := decodeBody(w, r, &req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		http.Error(w, "query is required", http.StatusBadRequest)
		return
	}
	if req.K < 0 || req.K > s.cfg.MaxK {
		http.Error(w, "k out of range", http.StatusBadRequest)
		return
	}

	expr, ok := s.compileScope(w, r, req.Scope)
	if !ok {
		s.metrics.observeSearch(outcomeForbidden, start, 0)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.SearchTimeout)
	defer cancel()

	hits, err := s.searcher.Retrieve(ctx, req.Query, expr, req.K)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			s.metrics.observeSearch(outcomeTimeout, start, 0)
			log.Warn("search: timed out", slog.Duration("timeout", s.cfg.SearchTimeout))
			http.Error(w, "search timed out", http.StatusGatewayTimeout)
			return
		}
		s.metrics.observeSearch(outcomeError, start, 0)
		log.Error("search: retrieval failed", slog.Any("error", err))
		http.Error(w, "search failed", http.StatusInternalServerError)
		return
	}

	s.metrics.observeSearch(outcomeOK, start, len(hits))
	log.Info("search: ok",
		slog.String("role", string(req.Scope.Role)),
		slog.Int("k", req.K),
		slog.Int("hits", len(hits)),
	)
	writeJSON(w, log, http.StatusOK, searchResponse{Hits: hits, Count: len(hits)})
}

// handleFilter handles POST /api/filter. It returns the compiled predicate
// in document operator form for callers that query a store directly.
func (s *Server) handleFilter(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	var req filterRequest
	if err := decodeBody(w, r, &req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	expr, ok := s.compileScope(w, r, req.Scope)
	if !ok {
		return
	}
	doc, err := filter.Document(expr)
	if err != nil {
		log.Error("filter: render failed", slog.Any("error", err))
		http.Error(w, "filter render failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, log, http.StatusOK, filterResponse{Filter: doc})
}

// compileScope compiles scope or writes a 403. Role and scope errors never
// degrade into a broader predicate.
func (s *Server) compileScope(w http.ResponseWriter, r *http.Request, scope access.Scope) (filter.Expr, bool) {
	expr, err := access.CompileScope(scope)
	if err == nil {
		return expr, true
	}
	log := logging.FromContext(r.Context())
	if errors.Is(err, access.ErrUnknownRole) || errors.Is(err, access.ErrMissingScope) {
		log.Warn("access: scope rejected",
			slog.String("role", string(scope.Role)),
			slog.Any("error", err),
		)
		http.Error(w, err.Error(), http.StatusForbidden)
		return nil, false
	}
	log.Error("access: compile failed", slog.Any("error", err))
	http.Error(w, "access compile failed", http.StatusInternalServerError)
	return nil, false
}

// decodeBody decodes a bounded JSON body into v, rejecting unknown fields.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, log *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("response encode error", slog.Any("error", err))
	}
}
