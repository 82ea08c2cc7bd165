package server

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/desertthunder/hego/internal/models"
	"github.com/desertthunder/hego/internal/services"
	"github.com/desertthunder/hego/internal/shared"
)

// OAuthResult contains the result of an identity provider sign-in.
type OAuthResult struct {
	Assertion models.ProviderAssertion
	err       error
}

func (o *OAuthResult) Error() error {
	return o.err
}

// OAuthHandler handles a single identity provider callback for the CLI sign-in flow.
// Implements the Handler interface for registration with a Router.
type OAuthHandler struct {
	provider    services.Provider
	state       string
	resultChan  chan OAuthResult
	once        sync.Once
	callbackHit bool
	mu          sync.Mutex
}

// NewOAuthHandler creates a new OAuth handler for provider and the expected state token.
func NewOAuthHandler(provider services.Provider, state string) *OAuthHandler {
	return &OAuthHandler{
		provider:   provider,
		state:      state,
		resultChan: make(chan OAuthResult, 1),
	}
}

// Routes returns the HTTP routes this handler serves.
func (h *OAuthHandler) Routes() []string {
	return []string{"/callback"}
}

// ServeHTTP handles the provider callback.
//
// Parameters are read from the query string or, for Apple's form_post mode, the request body.
// The state is checked once; any later callback is rejected.
func (h *OAuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	if h.callbackHit {
		h.mu.Unlock()
		http.Error(w, "Callback already processed", http.StatusBadRequest)
		return
	}
	h.callbackHit = true
	h.mu.Unlock()

	params, err := ReadCallback(r)
	if err != nil {
		h.Send(OAuthResult{err: err})
		http.Error(w, "Authorization failed", http.StatusBadRequest)
		return
	}

	if params.State != h.state {
		h.Send(OAuthResult{err: fmt.Errorf("%w: invalid state parameter", shared.ErrProviderFailed)})
		http.Error(w, "Invalid state parameter", http.StatusBadRequest)
		return
	}

	assertion, err := h.provider.Assertion(r.Context(), params)
	if err != nil {
		h.Send(OAuthResult{err: err})
		http.Error(w, "Authorization failed", http.StatusBadGateway)
		return
	}

	h.Send(OAuthResult{Assertion: assertion})
	writeCallbackPage(w)
}

// Send sends the OAuth result through the channel (only once).
func (h *OAuthHandler) Send(result OAuthResult) {
	h.once.Do(func() {
		h.resultChan <- result
		close(h.resultChan)
	})
}

// Result returns the result channel for receiving sign-in completion.
//
// Channel will receive exactly one result and then be closed.
func (h *OAuthHandler) Result() <-chan OAuthResult {
	return h.resultChan
}

// ReadCallback extracts callback parameters from the query or a posted form.
//
// A provider-reported error (error=access_denied and the like) is returned as [shared.ErrProviderFailed].
func ReadCallback(r *http.Request) (models.CallbackParams, error) {
	if err := r.ParseForm(); err != nil {
		return models.CallbackParams{}, fmt.Errorf("%w: malformed callback: %w", shared.ErrProviderFailed, err)
	}

	if e := r.FormValue("error"); e != "" {
		return models.CallbackParams{}, fmt.Errorf("%w: %s %s", shared.ErrProviderFailed, e, r.FormValue("error_description"))
	}

	return models.CallbackParams{
		State:   r.FormValue("state"),
		Code:    r.FormValue("code"),
		IDToken: r.FormValue("id_token"),
		User:    r.FormValue("user"),
	}, nil
}

func writeCallbackPage(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, `
<!DOCTYPE html>
<html>
<head>
    <title>Signed in</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh;
               margin: 0; background: #f5f5f5; }
        .container { text-align: center; background: white; padding: 2rem;
                     border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        h1 { color: #e4572e; margin: 0 0 1rem 0; }
        p { color: #666; margin: 0; }
    </style>
</head>
<body>
    <div class="container">
        <h1>✓ Signed in</h1>
        <p>You can close this window and return to the terminal.</p>
    </div>
</body>
</html>
`)
}
