package session

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/desertthunder/hego/internal/models"
	"github.com/desertthunder/hego/internal/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdleTimer(t *testing.T) {
	t.Run("Fires After Timeout", func(t *testing.T) {
		var fired atomic.Int32
		timer := NewIdleTimer(20*time.Millisecond, shared.Interactive, func() { fired.Add(1) })
		timer.Start()
		assert.True(t, timer.Armed())

		require.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, 5*time.Millisecond)
		assert.False(t, timer.Armed())
	})

	t.Run("Touch Postpones Expiry", func(t *testing.T) {
		var fired atomic.Int32
		timer := NewIdleTimer(60*time.Millisecond, shared.Interactive, func() { fired.Add(1) })
		timer.Start()

		for range 4 {
			time.Sleep(25 * time.Millisecond)
			timer.Touch()
		}
		assert.Zero(t, fired.Load(), "activity should keep the session alive")

		require.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, 5*time.Millisecond)
	})

	t.Run("Touch While Disarmed Does Nothing", func(t *testing.T) {
		timer := NewIdleTimer(10*time.Millisecond, shared.Interactive, func() { t.Error("should not fire") })
		timer.Touch()
		assert.False(t, timer.Armed())
		time.Sleep(30 * time.Millisecond)
	})

	t.Run("Stop Cancels", func(t *testing.T) {
		var fired atomic.Int32
		timer := NewIdleTimer(20*time.Millisecond, shared.Interactive, func() { fired.Add(1) })
		timer.Start()
		timer.Stop()

		time.Sleep(50 * time.Millisecond)
		assert.Zero(t, fired.Load())
		assert.False(t, timer.Armed())
	})

	t.Run("Headless Never Arms", func(t *testing.T) {
		timer := NewIdleTimer(time.Millisecond, shared.Headless, func() { t.Error("should not fire") })
		timer.Start()
		assert.False(t, timer.Armed())
		time.Sleep(10 * time.Millisecond)
	})

	t.Run("Zero Timeout Never Arms", func(t *testing.T) {
		timer := NewIdleTimer(0, shared.Interactive, nil)
		timer.Start()
		assert.False(t, timer.Armed())
	})

	t.Run("Watch Follows Session", func(t *testing.T) {
		timer := NewIdleTimer(time.Hour, shared.Interactive, nil)
		sessions := make(chan models.Session)
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			timer.Watch(ctx, sessions)
			close(done)
		}()

		sessions <- models.Session{User: &models.UserProfile{Email: adaEmail}}
		require.Eventually(t, timer.Armed, time.Second, 5*time.Millisecond)

		sessions <- models.Session{}
		require.Eventually(t, func() bool { return !timer.Armed() }, time.Second, 5*time.Millisecond)

		sessions <- models.Session{User: &models.UserProfile{Email: adaEmail}}
		require.Eventually(t, timer.Armed, time.Second, 5*time.Millisecond)

		cancel()
		<-done
		assert.False(t, timer.Armed(), "watch leaves the timer stopped")
	})
}

func TestInactivityLogout(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Config{})
	_, err := f.manager.Login(ctx, adaEmail, adaPassword)
	require.NoError(t, err)

	timer := NewInactivityTimer(f.manager, 20*time.Millisecond)
	timer.Start()

	require.Eventually(t, func() bool { return !f.manager.IsLoggedIn() }, time.Second, 5*time.Millisecond)
	assert.Equal(t, models.ReasonInactivity, f.manager.Snapshot().Reason)
	assert.Equal(t, MsgInactivity, DescribeReason(f.manager.Snapshot().Reason))

	_, ok := f.creds.AuthToken(ctx)
	assert.False(t, ok)
}
