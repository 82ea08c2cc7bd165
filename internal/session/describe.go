package session

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/desertthunder/hego/internal/models"
	"github.com/desertthunder/hego/internal/services"
	"github.com/desertthunder/hego/internal/shared"
)

// User-facing messages
const (
	MsgNetwork            = "Network error. Check your connection and try again."
	MsgInvalidCredentials = "Incorrect email or password. Try again."
	MsgUnexpected         = "An unexpected error occurred. Try again."
	MsgCoolingDown        = "Too many attempts. Wait a moment and try again."
	MsgNotAuthenticated   = "You need to sign in first."
	MsgLoggedOutLocally   = "Logged out locally after API error."
	MsgSessionExpired     = "Your session has expired. Please sign in again."
	MsgInactivity         = "You were signed out after a period of inactivity."
)

// Describe turns an error from a session operation into a message for the user.
func Describe(err error) string {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, shared.ErrCoolingDown):
		return MsgCoolingDown
	case errors.Is(err, shared.ErrLoggedOutLocally):
		return MsgLoggedOutLocally
	case errors.Is(err, shared.ErrNotAuthenticated), errors.Is(err, shared.ErrSuperseded):
		return MsgNotAuthenticated
	case errors.Is(err, shared.ErrNetwork):
		return MsgNetwork
	}

	apiErr, ok := services.AsAPIError(err)
	if !ok {
		if errors.Is(err, shared.ErrInvalidInput) {
			return err.Error()
		}
		return MsgUnexpected
	}

	switch apiErr.StatusCode {
	case http.StatusBadRequest, http.StatusUnauthorized:
		if msg, ok := apiErr.FirstNonFieldError(); ok {
			return msg
		}
		if _, msg, ok := apiErr.FirstFieldError(); ok {
			return msg
		}
		return MsgInvalidCredentials
	default:
		return fmt.Sprintf("Something went wrong (%d). Try again later.", apiErr.StatusCode)
	}
}

// DescribeReason returns the notice shown when the session ends involuntarily, or "" for
// transitions the user asked for.
func DescribeReason(reason models.Reason) string {
	switch reason {
	case models.ReasonInactivity:
		return MsgInactivity
	case models.ReasonUnauthorized:
		return MsgSessionExpired
	}
	return ""
}
