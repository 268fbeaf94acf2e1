// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package proxy

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/go-core-stack/transit-proxy/pkg/bustracker"
	"github.com/go-core-stack/transit-proxy/pkg/config"
	"github.com/go-core-stack/transit-proxy/pkg/metra"
	"github.com/go-core-stack/transit-proxy/pkg/metrics"
	"github.com/go-core-stack/transit-proxy/pkg/upstream"
)

// Proxy routes local transit endpoints to their upstream operations.
type Proxy struct {
	// cfg keeps runtime knobs such as upstream bases and the allowed origin.
	cfg config.Config
	// client performs every outbound request.
	client *http.Client
	// bus translates /cta/bus/* endpoints into Bus Tracker calls.
	bus *bustracker.Client
	// metra passes Metra GTFS feeds through.
	metra *metra.Client
	// metrics records inbound and outbound traffic.
	metrics *metrics.Recorder
	// validate checks bound query parameters.
	validate *validator.Validate
	// logger emits structured logs for observability.
	logger zerolog.Logger
	// router dispatches to the endpoint adapters.
	router *mux.Router
}

// Option customises a Proxy at construction.
type Option func(*Proxy)

// WithHTTPClient replaces the outbound client.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Proxy) {
		p.client = c
	}
}

// WithMetrics replaces the metrics recorder. A nil recorder disables metrics
// and the /metrics route.
func WithMetrics(rec *metrics.Recorder) Option {
	return func(p *Proxy) {
		p.metrics = rec
	}
}

// New constructs a Proxy from the runtime configuration. Handlers share only
// the read-only configuration and concurrency-safe clients.
func New(cfg config.Config, opts ...Option) (http.Handler, error) {
	p := &Proxy{
		cfg:      cfg,
		client:   upstream.NewHTTPClient(cfg.RequestTimeout),
		metrics:  metrics.NewRecorder(),
		validate: newValidator(),
		logger:   log.With().Str("component", "proxy").Logger(),
	}
	for _, opt := range opts {
		opt(p)
	}

	fetcher := upstream.NewFetcher(p.client, p.metrics)
	p.bus = bustracker.New(cfg.BusBaseURL, cfg.BusAPIKey, fetcher)
	p.metra = metra.New(cfg.MetraBaseURL, cfg.MetraAPIKey, cfg.MetraAPISecret, fetcher)
	p.router = p.routes()

	return p, nil
}

// ServeHTTP dispatches to the matching endpoint adapter.
func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.router.ServeHTTP(w, r)
}

func (p *Proxy) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(p.requestLogger, p.cors)

	// OPTIONS is listed on every route so preflight requests reach the CORS
	// middleware instead of failing method matching.
	bus := r.PathPrefix("/cta/bus").Subrouter()
	bus.HandleFunc("/routes", p.handleRoutes).Methods(http.MethodGet, http.MethodOptions)
	bus.HandleFunc("/directions", p.handleDirections).Methods(http.MethodGet, http.MethodOptions)
	bus.HandleFunc("/stops", p.handleStops).Methods(http.MethodGet, http.MethodOptions)
	bus.HandleFunc("/predictions", p.handlePredictions).Methods(http.MethodGet, http.MethodOptions)
	bus.HandleFunc("/vehicles", p.handleVehicles).Methods(http.MethodGet, http.MethodOptions)

	r.HandleFunc("/metra/{feed}", p.handleMetraFeed).Methods(http.MethodGet, http.MethodOptions)

	r.HandleFunc("/healthz", p.handleHealth).Methods(http.MethodGet, http.MethodOptions)
	if p.metrics != nil {
		r.Handle("/metrics", p.metrics.Handler()).Methods(http.MethodGet, http.MethodOptions)
	}

	return r
}
