package services

import (
	"context"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/hego/internal/shared"
	"golang.org/x/net/publicsuffix"
)

const (
	HeaderAuthorization = "Authorization"
	HeaderCSRF          = "X-CSRFToken"
)

// Stage decorates a transport. Stages run in the order given to [Chain].
type Stage func(next http.RoundTripper) http.RoundTripper

// RoundTripperFunc adapts a function to [http.RoundTripper]
type RoundTripperFunc func(*http.Request) (*http.Response, error)

func (f RoundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

// TokenSource supplies the current session token
type TokenSource interface {
	Token(ctx context.Context) (string, bool)
}

// CSRFSource supplies the anti-forgery token captured at bootstrap
type CSRFSource interface {
	CSRFToken(ctx context.Context) (string, bool)
}

// Chain wraps base with stages so that stages[0] sees each request first.
//
// A nil base uses [http.DefaultTransport].
func Chain(base http.RoundTripper, stages ...Stage) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}

	rt := base
	for i := len(stages) - 1; i >= 0; i-- {
		rt = stages[i](rt)
	}
	return rt
}

// AuthStage attaches "Authorization: Token <value>" to requests aimed inside baseURL.
//
// Requests to any other host, scheme or path prefix are forwarded unchanged, as are all requests
// while no token is present.
func AuthStage(tokens TokenSource, baseURL string) Stage {
	base := parseBase(baseURL)
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			if !withinBase(req.URL, base) {
				return next.RoundTrip(req)
			}

			token, ok := tokens.Token(req.Context())
			if !ok {
				return next.RoundTrip(req)
			}

			r := req.Clone(req.Context())
			r.Header.Set(HeaderAuthorization, "Token "+token)
			return next.RoundTrip(r)
		})
	}
}

// CSRFStage attaches the X-CSRFToken header to state-changing requests aimed at the backend origin.
//
// Safe methods are never decorated. On a headless platform the stage forwards every request
// without consulting tokens.
func CSRFStage(tokens CSRFSource, baseURL string, platform shared.Platform) Stage {
	base := parseBase(baseURL)
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			if !platform.IsInteractive() || isSafeMethod(req.Method) || !sameOrigin(req.URL, base) {
				return next.RoundTrip(req)
			}

			token, ok := tokens.CSRFToken(req.Context())
			if !ok {
				return next.RoundTrip(req)
			}

			r := req.Clone(req.Context())
			r.Header.Set(HeaderCSRF, token)
			return next.RoundTrip(r)
		})
	}
}

// UnauthorizedStage calls onUnauthorized when a request that carried credentials is answered with
// 401 or 403. The response is returned unchanged and the request is never retried.
//
// Answers from the credential exchange endpoints are ignored: a rejected password says nothing
// about the token already held.
func UnauthorizedStage(onUnauthorized func(req *http.Request, status int)) Stage {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			resp, err := next.RoundTrip(req)
			if err != nil || resp == nil {
				return resp, err
			}

			switch resp.StatusCode {
			case http.StatusUnauthorized, http.StatusForbidden:
				if req.Header.Get(HeaderAuthorization) != "" && !IsCredentialExchange(req.URL.Path) && onUnauthorized != nil {
					onUnauthorized(req, resp.StatusCode)
				}
			}
			return resp, nil
		})
	}
}

// IsCredentialExchange reports whether path ends in an endpoint that trades credentials for a token
func IsCredentialExchange(path string) bool {
	for _, p := range []string{PathLogin, PathGoogle, PathApple, PathRegister} {
		if strings.HasSuffix(path, p) {
			return true
		}
	}
	return false
}

// LoggingStage logs method, path, status and duration at debug level. Headers are never logged.
func LoggingStage(logger *log.Logger) Stage {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			start := time.Now()
			resp, err := next.RoundTrip(req)

			fields := []any{
				"method", req.Method,
				"path", req.URL.Path,
				"duration", time.Since(start).Round(time.Millisecond),
				"has_token", req.Header.Get(HeaderAuthorization) != "",
			}
			if err != nil {
				logger.Debug("request failed", append(fields, "error", err)...)
				return resp, err
			}
			logger.Debug("request", append(fields, "status", resp.StatusCode)...)
			return resp, nil
		})
	}
}

// NewHTTPClient builds a client whose transport is rt and whose cookie jar echoes backend cookies
// (including csrftoken) on later requests.
func NewHTTPClient(timeout time.Duration, rt http.RoundTripper) (*http.Client, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, err
	}
	return &http.Client{Transport: rt, Jar: jar, Timeout: timeout}, nil
}

func isSafeMethod(method string) bool {
	switch strings.ToUpper(method) {
	case "", http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	}
	return false
}

func parseBase(raw string) *url.URL {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil
	}
	u.Path = strings.TrimRight(u.Path, "/")
	return u
}

func sameOrigin(u, base *url.URL) bool {
	if u == nil || base == nil {
		return false
	}
	return strings.EqualFold(u.Scheme, base.Scheme) && strings.EqualFold(u.Host, base.Host)
}

func withinBase(u, base *url.URL) bool {
	if !sameOrigin(u, base) {
		return false
	}
	if base.Path == "" {
		return true
	}
	return u.Path == base.Path || strings.HasPrefix(u.Path, base.Path+"/")
}
