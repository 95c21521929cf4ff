package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/ednevnik-kb/internal/access"
	"github.com/54b3r/ednevnik-kb/internal/filter"
	"github.com/54b3r/ednevnik-kb/internal/rag"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// SearchTimeout bounds one retrieval, query embedding included.
	// Defaults to 30s if zero.
	SearchTimeout time.Duration
	// MaxK caps the number of hits a client may request. Defaults to 200.
	MaxK int
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on all protected /api/* routes.
	// If empty, authentication is disabled (development mode).
	APIKey string
	// MetricsRegistry receives the server metrics. Defaults to
	// prometheus.DefaultRegisterer.
	MetricsRegistry prometheus.Registerer
	// MetricsGatherer is served on GET /metrics. Defaults to
	// prometheus.DefaultGatherer.
	MetricsGatherer prometheus.Gatherer
}

// searcher is the interface handleSearch calls to run a scoped retrieval.
// *rag.Retriever satisfies it; tests inject a fake.
type searcher interface {
	// Retrieve embeds query and returns the top-k entries satisfying expr.
	Retrieve(ctx context.Context, query string, expr filter.Expr, topK int) ([]rag.Hit, error)
}

// Server is the HTTP server that exposes scoped retrieval over the corpus.
type Server struct {
	// searcher runs the similarity search behind POST /api/search.
	searcher searcher
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// metrics holds the Prometheus metrics owned by this server.
	metrics *serverMetrics
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// searchRequest is the JSON body for POST /api/search.
type searchRequest struct {
	// Query is the natural language question to embed.
	Query string `json:"query"`
	// Scope carries the requester claims the results are restricted to.
	Scope access.Scope `json:"scope"`
	// K is the number of hits to return. Zero uses the retriever default.
	K int `json:"k,omitempty"`
}

// searchResponse is the JSON response for POST /api/search.
type searchResponse struct {
	// Hits are the matching entries, most similar first.
	Hits []rag.Hit `json:"hits"`
	// Count is len(Hits).
	Count int `json:"count"`
}

// filterRequest is the JSON body for POST /api/filter.
type filterRequest struct {
	// Scope carries the requester claims to compile.
	Scope access.Scope `json:"scope"`
}

// filterResponse is the JSON response for POST /api/filter.
type filterResponse struct {
	// Filter is the compiled predicate in document operator form.
	Filter map[string]any `json:"filter"`
}
