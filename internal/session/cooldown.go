package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/hego/internal/shared"
	"golang.org/x/time/rate"
)

// DefaultLoginCooldown is the wait imposed after a failed login
const DefaultLoginCooldown = 2 * time.Second

// Cooldown delays the next login attempt after a failure. It is a client-side nicety; the
// backend remains responsible for real brute-force protection.
type Cooldown struct {
	limiter *rate.Limiter
	now     func() time.Time
}

// NewCooldown creates a cooldown of period. A non-positive period never cools down.
func NewCooldown(period time.Duration) *Cooldown {
	c := &Cooldown{now: time.Now}
	if period > 0 {
		c.limiter = rate.NewLimiter(rate.Every(period), 1)
	}
	return c
}

// Allow returns [shared.ErrCoolingDown] while a failure is still cooling down
func (c *Cooldown) Allow() error {
	if remaining := c.Remaining(); remaining > 0 {
		return fmt.Errorf("%w (%s)", shared.ErrCoolingDown, remaining.Round(100*time.Millisecond))
	}
	return nil
}

// Fail starts the cooldown
func (c *Cooldown) Fail() {
	if c.limiter == nil {
		return
	}
	c.limiter.AllowN(c.now(), 1)
}

// Record starts the cooldown when err is a failed attempt the backend or network saw.
// Local rejections (missing fields, a login superseded by logout, cancellation) are ignored.
func (c *Cooldown) Record(err error) {
	switch {
	case err == nil,
		errors.Is(err, shared.ErrInvalidInput),
		errors.Is(err, shared.ErrSuperseded),
		errors.Is(err, shared.ErrCoolingDown),
		errors.Is(err, context.Canceled):
		return
	}
	c.Fail()
}

// Remaining returns how long until the next attempt is allowed
func (c *Cooldown) Remaining() time.Duration {
	if c.limiter == nil {
		return 0
	}

	tokens := c.limiter.TokensAt(c.now())
	if tokens >= 1 {
		return 0
	}
	perSecond := float64(c.limiter.Limit())
	return time.Duration((1 - tokens) / perSecond * float64(time.Second))
}
