// Package metrics collects and exposes Prometheus metrics for the auth
// core.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is the metrics surface consumed by the service and middleware
// layers.
type Recorder interface {
	RecordLoginSuccess()
	RecordLoginFailure(reason string)
	RecordLockout()
	RecordRegistration()
	RecordTokenRejected(reason string)
	RecordPermissionDenied(permission string)
}

// Collector implements Recorder on Prometheus counters.
type Collector struct {
	loginSuccess     prometheus.Counter
	loginFailure     *prometheus.CounterVec
	lockouts         prometheus.Counter
	registrations    prometheus.Counter
	tokenRejected    *prometheus.CounterVec
	permissionDenied *prometheus.CounterVec
}

// NewCollector creates a Collector and registers its metrics on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		loginSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "finbooks_auth_login_success_total",
			Help: "Successful logins.",
		}),
		loginFailure: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "finbooks_auth_login_failure_total",
			Help: "Failed logins by reason.",
		}, []string{"reason"}),
		lockouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "finbooks_auth_lockouts_total",
			Help: "Accounts locked after repeated failures.",
		}),
		registrations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "finbooks_auth_registrations_total",
			Help: "New account registrations.",
		}),
		tokenRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "finbooks_auth_token_rejected_total",
			Help: "Rejected bearer tokens by reason.",
		}, []string{"reason"}),
		permissionDenied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "finbooks_auth_permission_denied_total",
			Help: "Permission gate denials by permission.",
		}, []string{"permission"}),
	}

	reg.MustRegister(
		c.loginSuccess,
		c.loginFailure,
		c.lockouts,
		c.registrations,
		c.tokenRejected,
		c.permissionDenied,
	)

	return c
}

func (c *Collector) RecordLoginSuccess() { c.loginSuccess.Inc() }

func (c *Collector) RecordLoginFailure(reason string) {
	c.loginFailure.WithLabelValues(reason).Inc()
}
func (c *Collector) RecordLockout() { c.lockouts.Inc() }

func (c *Collector) RecordRegistration() { c.registrations.Inc() }

func (c *Collector) RecordTokenRejected(reason string) {
	c.tokenRejected.WithLabelValues(reason).Inc()
}

func (c *Collector) RecordPermissionDenied(permission string) {
	c.permissionDenied.WithLabelValues(permission).Inc()
}

// Handler returns the Prometheus scrape handler.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
