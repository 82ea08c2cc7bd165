package tasks

import (
	"context"

	"github.com/desertthunder/hego/internal/bootstrap"
	"github.com/desertthunder/hego/internal/models"
)

// Restorer rebuilds the session from stored credentials
type Restorer interface {
	RestoreSession(ctx context.Context) error
	Snapshot() models.Session
}

// Bootstrapper fetches the CSRF token once
type Bootstrapper interface {
	Run(ctx context.Context) bootstrap.Result
}

// StartupResult records how startup went
type StartupResult struct {
	CSRF       bootstrap.Result
	Session    models.Session
	RestoreErr error
}

// Startup runs the CSRF bootstrap and session restore that every entry point performs first.
type Startup struct {
	bootstrap Bootstrapper
	restorer  Restorer
}

// NewStartup creates a startup sequence
func NewStartup(b Bootstrapper, r Restorer) *Startup {
	return &Startup{bootstrap: b, restorer: r}
}

// Run starts the bootstrap and the restore together and waits for both.
//
// The restore only blocks on the bootstrap when it has to call the backend, so a cached session is
// available as soon as it is read.
func (s *Startup) Run(ctx context.Context, progress chan<- ProgressUpdate) StartupResult {
	csrfDone := make(chan bootstrap.Result, 1)

	sendProgress(progress, csrfStartUpdate())
	go func() {
		csrfDone <- s.bootstrap.Run(ctx)
	}()

	sendProgress(progress, restoreStartUpdate())
	restoreErr := s.restorer.RestoreSession(ctx)
	sendProgress(progress, restoreDoneUpdate(restoreErr))

	csrf := <-csrfDone
	sendProgress(progress, csrfDoneUpdate(csrf))

	current := s.restorer.Snapshot()
	sendProgress(progress, readyUpdate(current))

	return StartupResult{CSRF: csrf, Session: current, RestoreErr: restoreErr}
}
