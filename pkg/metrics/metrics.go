// Package metrics defines the Prometheus metric collectors used by the
// service and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the service.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	SubmissionsTotal     *prometheus.CounterVec
	PublishesTotal       *prometheus.CounterVec
	RateLimitDenials     prometheus.Counter
	CaptchaVerifications *prometheus.CounterVec
	CaptchaLatency       prometheus.Histogram
	PostsListedTotal     *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		SubmissionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "contact_submissions_total",
				Help: "Contact submissions by outcome (accepted, rate_limited, validation_failed, challenge_failed, error).",
			},
			[]string{"outcome"},
		),
		PublishesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "post_publishes_total",
				Help: "Post publish attempts by outcome (created, unauthorized, validation_failed, conflict, error).",
			},
			[]string{"outcome"},
		),
		RateLimitDenials: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "rate_limit_denials_total",
				Help: "Requests denied by the rate limiter.",
			},
		),
		CaptchaVerifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "captcha_verifications_total",
				Help: "Captcha verification outcomes (verified, rejected).",
			},
			[]string{"result"},
		),
		CaptchaLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "captcha_verification_duration_seconds",
				Help:    "Latency of calls to the challenge authority.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
		),
		PostsListedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "posts_listed_total",
				Help: "Post listing requests by cache status (hit, miss, bypass).",
			},
			[]string{"cache_status"},
		),
	}

	prometheus.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.SubmissionsTotal,
		m.PublishesTotal,
		m.RateLimitDenials,
		m.CaptchaVerifications,
		m.CaptchaLatency,
		m.PostsListedTotal,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
