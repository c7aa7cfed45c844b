// Package telemetry holds the service's prometheus collectors.
package telemetry

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	JobPolls         = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "job_polls_total", Help: "Provider job polls by job kind and terminal outcome"}, []string{"kind", "outcome"})
	CreditFallbacks  = prometheus.NewCounter(prometheus.CounterOpts{Name: "proposal_credit_fallbacks_total", Help: "Proposal generations retried on the free model after credit exhaustion"})
	DegradedSteps    = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "degraded_steps_total", Help: "Optional pipeline steps that failed and were skipped"}, []string{"step"})
	ProviderErrors   = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "provider_errors_total", Help: "Failed calls to third-party providers by error code"}, []string{"service", "code"})
	RateLimitRejects = prometheus.NewCounter(prometheus.CounterOpts{Name: "rate_limit_rejects_total", Help: "Requests rejected by rate limiter"})
	LeadsStored      = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "leads_stored_total", Help: "Lead store attempts by result"}, []string{"result"})
)

// Handler exposes /metrics HTTP handler with a singleton registry.
func Handler() http.Handler {
	once.Do(func() {
		prometheus.MustRegister(
			JobPolls,
			CreditFallbacks,
			DegradedSteps,
			ProviderErrors,
			RateLimitRejects,
			LeadsStored,
		)
	})
	return promhttp.Handler()
}
