// Package bootstrap obtains the CSRF token before any other backend call is allowed through
package bootstrap

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/hego/internal/shared"
)

// Status is the outcome of a bootstrap run
type Status int

const (
	// Success means a token was fetched and stored
	Success Status = iota
	// Degraded means the fetch failed; state-changing calls may be rejected by the backend
	Degraded
	// Skipped means the platform is headless and no request was made
	Skipped
)

func (s Status) String() string {
	switch s {
	case Success:
		return "success"
	case Degraded:
		return "degraded"
	case Skipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Result reports how the bootstrap finished. Err is set only for [Degraded].
type Result struct {
	Status Status
	Err    error
}

// Fetcher retrieves a CSRF token from the backend
type Fetcher interface {
	CSRF(ctx context.Context) (string, error)
}

// TokenSink stores the fetched token
type TokenSink interface {
	SetCSRFToken(ctx context.Context, token string) error
}

// Bootstrapper performs the single CSRF fetch at startup and opens the [Gate] when it settles.
type Bootstrapper struct {
	fetcher  Fetcher
	sink     TokenSink
	gate     *Gate
	platform shared.Platform
	logger   *log.Logger

	once   sync.Once
	result Result
}

// New creates a [Bootstrapper] that opens gate when done
func New(fetcher Fetcher, sink TokenSink, gate *Gate, platform shared.Platform, logger *log.Logger) *Bootstrapper {
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	return &Bootstrapper{
		fetcher:  fetcher,
		sink:     sink,
		gate:     gate,
		platform: platform,
		logger:   logger,
	}
}

// Gate returns the gate this bootstrapper opens
func (b *Bootstrapper) Gate() *Gate { return b.gate }

// Run fetches the token once. Later and concurrent calls block until the first finishes and
// return its result without another request. The gate is opened whatever the outcome.
func (b *Bootstrapper) Run(ctx context.Context) Result {
	b.once.Do(func() {
		defer b.gate.Open()
		b.result = b.run(ctx)
	})
	return b.result
}

func (b *Bootstrapper) run(ctx context.Context) Result {
	if !b.platform.IsInteractive() {
		b.logger.Debug("csrf bootstrap skipped", "platform", b.platform)
		return Result{Status: Skipped}
	}

	if err := b.sink.SetCSRFToken(ctx, ""); err != nil {
		b.logger.Warn("stale csrf token could not be cleared", "error", err)
	}

	token, err := b.fetcher.CSRF(ctx)
	if err != nil {
		b.logger.Warn("csrf bootstrap failed, continuing without token", "error", err)
		return Result{Status: Degraded, Err: err}
	}

	if err := b.sink.SetCSRFToken(ctx, token); err != nil {
		b.logger.Warn("csrf token could not be stored", "error", err)
		return Result{Status: Degraded, Err: err}
	}

	b.logger.Debug("csrf bootstrap complete")
	return Result{Status: Success}
}
