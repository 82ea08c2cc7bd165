package shared

import "fmt"

var (
	// Configuration errors
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")
	ErrUnauthorized       = fmt.Errorf("session no longer valid")
	ErrNotAuthenticated   = fmt.Errorf("not authenticated")
	ErrLoggedOutLocally   = fmt.Errorf("logged out locally after API error")
	ErrCoolingDown        = fmt.Errorf("too many attempts, wait before retrying")
	ErrProviderFailed     = fmt.Errorf("identity provider login failed")
	ErrGateLocked         = fmt.Errorf("access gate password incorrect")
	ErrSuperseded         = fmt.Errorf("login superseded by logout")

	// API and service errors
	ErrNetwork            = fmt.Errorf("network error")
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrValidation         = fmt.Errorf("validation failed")
	ErrCSRFUnavailable    = fmt.Errorf("csrf token unavailable")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrTimeout            = fmt.Errorf("operation timed out")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
