package adminserver

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterConfig holds configuration for the admin router.
type RouterConfig struct {
	// Node is the controller handling address operations.
	Node NodeController

	// Logger for request logging.
	Logger *slog.Logger

	// Gatherer backs the /metrics endpoint. Nil uses the default
	// registry.
	Gatherer prometheus.Gatherer

	// RateLimit is the per-client-IP request rate (requests/second).
	// Zero disables limiting.
	RateLimit float64
}

// NewRouter builds the admin http.Handler with all routes and
// middleware.
func NewRouter(cfg *RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	h := NewHandler(cfg.Node, logger)

	// Order: Recover -> RequestID -> RateLimit -> Audit -> handler.
	middlewares := []Middleware{
		Recover(logger),
		RequestID(),
	}
	if cfg.RateLimit > 0 {
		middlewares = append(middlewares, RateLimit(cfg.RateLimit))
	}
	middlewares = append(middlewares, Audit(logger))

	mux := http.NewServeMux()

	controlHandler := Chain(h, middlewares...)
	mux.Handle("GET /node/controller/address", controlHandler)
	mux.Handle("POST /node/controller/change-address", controlHandler)
	mux.Handle("POST /node/controller/reset-address", controlHandler)

	// Health and metrics skip rate limiting so probes and scrapers
	// never get throttled out.
	mux.Handle("GET /healthz", Chain(h, Recover(logger), RequestID()))

	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	metricsHandler := promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
	mux.Handle("GET /metrics", Chain(metricsHandler, Recover(logger), RequestID()))

	return mux
}
