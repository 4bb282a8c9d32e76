package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Auth counts authentication outcomes. A nil *Auth is valid and records
// nothing.
type Auth struct {
	logins      *prometheus.CounterVec
	refreshes   *prometheus.CounterVec
	rateLimited *prometheus.CounterVec
	registered  prometheus.Counter
}

func NewAuth(reg prometheus.Registerer) *Auth {
	f := promauto.With(reg)
	return &Auth{
		logins: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "galenos",
			Subsystem: "auth",
			Name:      "logins_total",
			Help:      "Login attempts by result.",
		}, []string{"result"}),
		refreshes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "galenos",
			Subsystem: "auth",
			Name:      "refreshes_total",
			Help:      "Refresh token exchanges by result.",
		}, []string{"result"}),
		rateLimited: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "galenos",
			Subsystem: "auth",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter, by scope.",
		}, []string{"scope"}),
		registered: f.NewCounter(prometheus.CounterOpts{
			Namespace: "galenos",
			Subsystem: "auth",
			Name:      "users_registered_total",
			Help:      "Users created through registration.",
		}),
	}
}

func (m *Auth) Login(result string) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(result).Inc()
}

func (m *Auth) Refresh(result string) {
	if m == nil {
		return
	}
	m.refreshes.WithLabelValues(result).Inc()
}

func (m *Auth) RateLimited(scope string) {
	if m == nil {
		return
	}
	m.rateLimited.WithLabelValues(scope).Inc()
}

func (m *Auth) Registered() {
	if m == nil {
		return
	}
	m.registered.Inc()
}

func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
