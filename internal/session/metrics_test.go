package session

import (
	"context"
	"testing"

	"github.com/desertthunder/hego/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	t.Run("Nil Is Safe", func(t *testing.T) {
		var m *Metrics
		m.loginAttempt("password", true)
		m.transition(models.Session{})
	})

	t.Run("Counts Manager Activity", func(t *testing.T) {
		ctx := context.Background()
		reg := prometheus.NewRegistry()
		metrics := NewMetrics(reg)
		f := newFixture(t, Config{}, WithMetrics(metrics))

		_, err := f.manager.Login(ctx, adaEmail, "wrong")
		require.Error(t, err)
		_, err = f.manager.Login(ctx, adaEmail, adaPassword)
		require.NoError(t, err)

		assert.Equal(t, 1.0, testutil.ToFloat64(metrics.loginAttempts.WithLabelValues("password", "failure")))
		assert.Equal(t, 1.0, testutil.ToFloat64(metrics.loginAttempts.WithLabelValues("password", "success")))
		assert.Equal(t, 1.0, testutil.ToFloat64(metrics.authenticated))

		require.NoError(t, f.manager.Logout(ctx))
		assert.Equal(t, 0.0, testutil.ToFloat64(metrics.authenticated))
		assert.Equal(t, 1.0, testutil.ToFloat64(metrics.transitions.WithLabelValues("ANONYMOUS", "logout")))
	})
}
