package session

import (
	"context"
	"sync"
	"time"

	"github.com/desertthunder/hego/internal/models"
	"github.com/desertthunder/hego/internal/shared"
)

// DefaultInactivityTimeout signs a user out after fifteen idle minutes
const DefaultInactivityTimeout = 15 * time.Minute

// IdleTimer fires onExpire after a period without [IdleTimer.Touch].
//
// It never arms on a headless platform or with a non-positive timeout.
type IdleTimer struct {
	timeout  time.Duration
	platform shared.Platform
	onExpire func()

	mu    sync.Mutex
	timer *time.Timer
	seq   uint64
}

// NewIdleTimer creates a disarmed timer
func NewIdleTimer(timeout time.Duration, platform shared.Platform, onExpire func()) *IdleTimer {
	return &IdleTimer{timeout: timeout, platform: platform, onExpire: onExpire}
}

// NewInactivityTimer returns a timer that invalidates m with [models.ReasonInactivity]
func NewInactivityTimer(m *Manager, timeout time.Duration) *IdleTimer {
	return NewIdleTimer(timeout, m.platform, func() { m.Invalidate(models.ReasonInactivity) })
}

// Start arms the timer, restarting the countdown if it was already armed
func (t *IdleTimer) Start() {
	if !t.platform.IsInteractive() || t.timeout <= 0 {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.arm()
}

// Touch restarts the countdown. It does nothing while disarmed.
func (t *IdleTimer) Touch() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer == nil {
		return
	}
	t.arm()
}

// Stop disarms the timer. A pending expiry will not fire.
func (t *IdleTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seq++
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

// Armed reports whether a countdown is running
func (t *IdleTimer) Armed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.timer != nil
}

// Watch arms the timer while sessions reports AUTHENTICATED and disarms it otherwise.
// It returns when ctx is done or sessions is closed, leaving the timer stopped.
func (t *IdleTimer) Watch(ctx context.Context, sessions <-chan models.Session) {
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case s, ok := <-sessions:
			if !ok {
				return
			}
			switch {
			case s.IsLoggedIn() && !t.Armed():
				t.Start()
			case !s.IsLoggedIn():
				t.Stop()
			}
		}
	}
}

// arm must be called with t.mu held
func (t *IdleTimer) arm() {
	if t.timer != nil {
		t.timer.Stop()
	}
	t.seq++
	seq := t.seq
	t.timer = time.AfterFunc(t.timeout, func() { t.fire(seq) })
}

func (t *IdleTimer) fire(seq uint64) {
	t.mu.Lock()
	if seq != t.seq {
		t.mu.Unlock()
		return
	}
	t.timer = nil
	t.mu.Unlock()

	if t.onExpire != nil {
		t.onExpire()
	}
}
