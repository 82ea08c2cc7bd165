package tasks

import (
	"fmt"

	"github.com/desertthunder/hego/internal/bootstrap"
	"github.com/desertthunder/hego/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Startup phase enumeration
type Phase int

const (
	PhaseCSRF Phase = iota
	PhaseRestore
	PhaseReady
)

func (p Phase) String() string {
	switch p {
	case PhaseCSRF:
		return "csrf"
	case PhaseRestore:
		return "restore"
	case PhaseReady:
		return "ready"
	default:
		return ""
	}
}

// sendProgress sends a progress update through the channel without blocking.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

func csrfStartUpdate() ProgressUpdate {
	return ProgressUpdate{Phase: PhaseCSRF, Step: 0, Total: 1, Message: "Fetching CSRF token..."}
}

func csrfDoneUpdate(result bootstrap.Result) ProgressUpdate {
	msg := "CSRF token ready"
	switch result.Status {
	case bootstrap.Degraded:
		msg = fmt.Sprintf("CSRF token unavailable: %v", result.Err)
	case bootstrap.Skipped:
		msg = "CSRF bootstrap skipped (headless)"
	}
	return ProgressUpdate{Phase: PhaseCSRF, Step: 1, Total: 1, Message: msg, Data: result}
}

func restoreStartUpdate() ProgressUpdate {
	return ProgressUpdate{Phase: PhaseRestore, Step: 0, Total: 1, Message: "Restoring session..."}
}

func restoreDoneUpdate(err error) ProgressUpdate {
	msg := "Session restored"
	if err != nil {
		msg = fmt.Sprintf("Stored session discarded: %v", err)
	}
	return ProgressUpdate{Phase: PhaseRestore, Step: 1, Total: 1, Message: msg, Data: err}
}

func readyUpdate(s models.Session) ProgressUpdate {
	msg := "Not signed in"
	if s.IsLoggedIn() {
		msg = fmt.Sprintf("Signed in as %s", s.User.Email)
	}
	return ProgressUpdate{Phase: PhaseReady, Step: 1, Total: 1, Message: msg, Data: s}
}
