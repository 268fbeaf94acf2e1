// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

// Package metrics holds the Prometheus collectors exported by the proxy.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "transit_proxy"

// Outcome labels for upstream calls.
const (
	OutcomeOK        = "ok"
	OutcomeStatus    = "upstream_status"
	OutcomeNotJSON   = "not_json"
	OutcomeTimeout   = "timeout"
	OutcomeTransport = "transport"
)

// Recorder owns a private registry so several proxies (tests included) can
// live in one process without colliding on the default registerer.
type Recorder struct {
	registry *prometheus.Registry

	upstreamRequests *prometheus.CounterVec
	upstreamDuration *prometheus.HistogramVec
	httpRequests     *prometheus.CounterVec
}

// NewRecorder builds a Recorder with Go runtime and process collectors.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		upstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "Outbound requests to transit APIs by upstream, operation and outcome.",
		}, []string{"upstream", "operation", "outcome"}),
		upstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_request_duration_seconds",
			Help:      "Latency of outbound requests to transit APIs.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"upstream", "operation"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Inbound requests by route and status code.",
		}, []string{"route", "code"}),
	}

	registerSafely(r.registry, collectors.NewGoCollector())
	registerSafely(r.registry, collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	registerSafely(r.registry, r.upstreamRequests)
	registerSafely(r.registry, r.upstreamDuration)
	registerSafely(r.registry, r.httpRequests)

	return r
}

// ObserveUpstream records one outbound call.
func (r *Recorder) ObserveUpstream(upstream, operation, outcome string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.upstreamRequests.WithLabelValues(upstream, operation, outcome).Inc()
	r.upstreamDuration.WithLabelValues(upstream, operation).Observe(elapsed.Seconds())
}

// ObserveRequest records one inbound request.
func (r *Recorder) ObserveRequest(route string, code int) {
	if r == nil {
		return
	}
	r.httpRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}

// Handler serves the registry in the Prometheus exposition format. A nil
// Recorder answers 404.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

func registerSafely(reg prometheus.Registerer, c prometheus.Collector) {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			panic(err)
		}
	}
}
