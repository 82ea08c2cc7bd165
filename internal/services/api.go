// API service for making raw HTTP requests to the Hego backend
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/desertthunder/hego/internal/shared"
)

// APIService performs HTTP requests against the backend base URL.
//
// Requests go through the given client, so the interceptor chain installed on its transport
// decorates every call made here.
type APIService struct {
	baseURL    string
	httpClient *http.Client
}

// NewAPIService creates a new API service instance for the backend.
func NewAPIService(baseURL string, client *http.Client) *APIService {
	if baseURL == "" {
		baseURL = "http://localhost:8000"
	}
	if client == nil {
		client = http.DefaultClient
	}

	return &APIService{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: client,
	}
}

// APIResponse represents a raw API response with status and body.
type APIResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	IsJSON     bool
	JSONData   any
}

// OK reports a 2xx status
func (r *APIResponse) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Cookies parses the Set-Cookie headers of the response
func (r *APIResponse) Cookies() []*http.Cookie {
	return (&http.Response{Header: r.Headers}).Cookies()
}

// Err converts a non-2xx response into an [*APIError]
func (r *APIResponse) Err() error {
	if r.OK() {
		return nil
	}
	return NewAPIError(r.StatusCode, r.Body)
}

// BaseURL returns the backend base URL without a trailing slash
func (a *APIService) BaseURL() string {
	return a.baseURL
}

// URL resolves path against the base URL
func (a *APIService) URL(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return a.baseURL + path
}

// Do performs a request and returns the raw response. Transport failures wrap [shared.ErrNetwork].
func (a *APIService) Do(ctx context.Context, method, path, contentType string, body io.Reader) (*APIResponse, error) {
	req, err := http.NewRequestWithContext(ctx, method, a.URL(path), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: request failed: %w", shared.ErrNetwork, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %w", shared.ErrNetwork, err)
	}

	apiResp := &APIResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       data,
	}

	var jsonData any
	if err := json.Unmarshal(data, &jsonData); err == nil {
		apiResp.IsJSON = true
		apiResp.JSONData = jsonData
	}

	return apiResp, nil
}

// Get performs a GET request to the specified path and returns the raw response.
func (a *APIService) Get(ctx context.Context, path string) (*APIResponse, error) {
	return a.Do(ctx, http.MethodGet, path, "", nil)
}

// Post performs a POST request with the given JSON data and returns the raw response.
func (a *APIService) Post(ctx context.Context, path string, data []byte) (*APIResponse, error) {
	return a.Do(ctx, http.MethodPost, path, "application/json", bytes.NewReader(data))
}

// Send marshals in as JSON, performs the request and decodes a 2xx body into out.
//
// A nil in sends an empty JSON object. A nil out discards the body. Non-2xx responses return an [*APIError].
func (a *APIService) Send(ctx context.Context, method, path string, in, out any) error {
	payload := []byte("{}")
	if in != nil {
		var err error
		if payload, err = json.Marshal(in); err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
	}

	var body io.Reader
	contentType := ""
	if method != http.MethodGet && method != http.MethodHead {
		body = bytes.NewReader(payload)
		contentType = "application/json"
	}

	resp, err := a.Do(ctx, method, path, contentType, body)
	if err != nil {
		return err
	}
	return decodeResponse(resp, out)
}

func decodeResponse(resp *APIResponse, out any) error {
	if err := resp.Err(); err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(resp.Body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return fmt.Errorf("%w: failed to decode response: %w", shared.ErrAPIRequest, err)
	}
	return nil
}
