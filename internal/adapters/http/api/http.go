// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/okian/feedrank/internal/domain/model"
	"github.com/okian/feedrank/internal/domain/types"
	"github.com/okian/feedrank/pkg/logger"
)

// Defaults for the HTTP surface.
const (
	DefaultVersion      = "1.0"
	DefaultMaxPosts     = 500
	DefaultMaxBodyBytes = 4 << 20
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to the service implementation.
type Dependencies interface {
	// RankFeed ranks posts for a user. Errors are mapped to status codes by
	// their kind.
	RankFeed(ctx context.Context, userID string, posts []model.Post, profile model.UserProfile) (model.RankResult, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	rootHandler   *RootHandler
	healthHandler *HealthHandler
	statsHandler  *StatsHandler
	rankHandler   *RankHandler
}

type serverOptions struct {
	version      string
	maxPosts     int
	maxBodyBytes int64
	logger       logger.Logger
}

// Option configures a Server.
type Option func(*serverOptions)

// WithVersion sets the version reported by GET /version.
func WithVersion(v string) Option {
	return func(o *serverOptions) {
		if v != "" {
			o.version = v
		}
	}
}

// WithMaxPosts caps the number of posts accepted per request. Zero disables
// the cap.
func WithMaxPosts(n int) Option {
	return func(o *serverOptions) {
		if n >= 0 {
			o.maxPosts = n
		}
	}
}

// WithMaxBodyBytes caps the request body size of POST /rank-feed.
func WithMaxBodyBytes(n int64) Option {
	return func(o *serverOptions) {
		if n > 0 {
			o.maxBodyBytes = n
		}
	}
}

// WithLogger sets the logger used for server-side failures.
func WithLogger(l logger.Logger) Option {
	return func(o *serverOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	o := serverOptions{
		version:      DefaultVersion,
		maxPosts:     DefaultMaxPosts,
		maxBodyBytes: DefaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logger.Get().Named("api")
	}

	return &Server{
		rootHandler:   NewRootHandler(o.version),
		healthHandler: NewHealthHandler(),
		statsHandler:  NewStatsHandler(statsProvider),
		rankHandler:   NewRankHandler(deps, o.maxPosts, o.maxBodyBytes, o.logger),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}
	mux.HandleFunc("/rank-feed", MetricsMiddleware(s.rankHandler.HandleRankFeed, "rank_feed"))
	mux.HandleFunc("/health", MetricsMiddleware(s.healthHandler.HandleHealth, "health"))
	mux.HandleFunc("/metrics", MetricsMiddleware(s.healthHandler.HandleMetrics, "metrics"))
	mux.HandleFunc("/version", MetricsMiddleware(s.rootHandler.HandleVersion, "version"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/", MetricsMiddleware(s.rootHandler.HandleRoot, "root"))
}

type errorResponse struct {
	Code    string             `json:"code"`
	Message string             `json:"message"`
	Details []types.FieldError `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
