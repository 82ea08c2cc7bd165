package session

import (
	"github.com/desertthunder/hego/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts login attempts and session transitions. A nil *Metrics records nothing.
type Metrics struct {
	loginAttempts *prometheus.CounterVec
	transitions   *prometheus.CounterVec
	authenticated prometheus.Gauge
}

// NewMetrics registers the session collectors with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		loginAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hego",
			Subsystem: "session",
			Name:      "login_attempts_total",
			Help:      "Login attempts by method and result.",
		}, []string{"method", "result"}),
		transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hego",
			Subsystem: "session",
			Name:      "transitions_total",
			Help:      "Session state transitions by resulting state and reason.",
		}, []string{"state", "reason"}),
		authenticated: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "hego",
			Subsystem: "session",
			Name:      "authenticated",
			Help:      "1 while a user is signed in.",
		}),
	}
}

func (m *Metrics) loginAttempt(method string, ok bool) {
	if m == nil {
		return
	}
	result := "failure"
	if ok {
		result = "success"
	}
	m.loginAttempts.WithLabelValues(method, result).Inc()
}

func (m *Metrics) transition(s models.Session) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(string(s.State()), string(s.Reason)).Inc()
	if s.IsLoggedIn() {
		m.authenticated.Set(1)
	} else {
		m.authenticated.Set(0)
	}
}
