package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/desertthunder/hego/internal/shared"
	tu "github.com/desertthunder/hego/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIService(t *testing.T) {
	t.Run("New", func(t *testing.T) {
		t.Run("With Custom BaseURL and Client", func(t *testing.T) {
			customClient := &http.Client{}
			srv := NewAPIService("http://example.com/", customClient)

			assert.Equal(t, "http://example.com", srv.BaseURL(), "trailing slash should be trimmed")
			assert.Same(t, customClient, srv.httpClient)
		})

		t.Run("With Empty BaseURL", func(t *testing.T) {
			srv := NewAPIService("", nil)
			assert.Equal(t, "http://localhost:8000", srv.BaseURL())
		})

		t.Run("With Nil Client", func(t *testing.T) {
			srv := NewAPIService("http://example.com", nil)
			assert.Same(t, http.DefaultClient, srv.httpClient)
		})
	})

	t.Run("URL", func(t *testing.T) {
		srv := NewAPIService("https://api.example.com/v1", nil)
		assert.Equal(t, "https://api.example.com/v1/auth/login/", srv.URL("/auth/login/"))
		assert.Equal(t, "https://api.example.com/v1/auth/login/", srv.URL("auth/login/"))
	})

	t.Run("Get", func(t *testing.T) {
		t.Run("Successful Request With JSON Response", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodGet, r.Method)
				assert.Equal(t, "/test", r.URL.Path)
				assert.Equal(t, "application/json", r.Header.Get("Accept"))

				w.Header().Set("Content-Type", "application/json")
				json.NewEncoder(w).Encode(map[string]string{"status": "success"})
			}))
			defer server.Close()

			resp, err := NewAPIService(server.URL, nil).Get(context.Background(), "/test")
			require.NoError(t, err)
			assert.Equal(t, http.StatusOK, resp.StatusCode)
			assert.True(t, resp.IsJSON)
			assert.True(t, resp.OK())
			assert.NoError(t, resp.Err())
		})

		t.Run("Successful Request With Non-JSON Response", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "text/plain")
				w.Write([]byte("plain text response"))
			}))
			defer server.Close()

			resp, err := NewAPIService(server.URL, nil).Get(context.Background(), "/test")
			require.NoError(t, err)
			assert.False(t, resp.IsJSON)
			assert.Nil(t, resp.JSONData)
			assert.Equal(t, "plain text response", string(resp.Body))
		})

		t.Run("Failed Request Creation", func(t *testing.T) {
			_, err := NewAPIService("http://example.com", nil).Get(context.Background(), "/test\x00invalid")
			require.Error(t, err)
			assert.Contains(t, err.Error(), "failed to create request")
		})

		t.Run("Failed HTTP Request Wraps Network Error", func(t *testing.T) {
			client := &http.Client{Transport: tu.NewMockRoundTripper(nil, errors.New("connection failed"))}
			_, err := NewAPIService("http://example.com", client).Get(context.Background(), "/test")

			require.Error(t, err)
			assert.ErrorIs(t, err, shared.ErrNetwork)
			assert.Contains(t, err.Error(), "connection failed")
		})

		t.Run("Failed Body Read", func(t *testing.T) {
			client := &http.Client{Transport: tu.NewMockRoundTripper(&http.Response{
				StatusCode: http.StatusOK,
				Header:     http.Header{},
				Body:       &tu.FCloser{},
			}, nil)}

			_, err := NewAPIService("http://example.com", client).Get(context.Background(), "/test")
			require.Error(t, err)
			assert.ErrorIs(t, err, shared.ErrNetwork)
			assert.Contains(t, err.Error(), "failed to read response")
		})
	})

	t.Run("Post", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			body, _ := io.ReadAll(r.Body)
			assert.JSONEq(t, `{"name":"test"}`, string(body))
			w.WriteHeader(http.StatusCreated)
		}))
		defer server.Close()

		resp, err := NewAPIService(server.URL, nil).Post(context.Background(), "/create", []byte(`{"name":"test"}`))
		require.NoError(t, err)
		assert.Equal(t, http.StatusCreated, resp.StatusCode)
	})

	t.Run("Send", func(t *testing.T) {
		t.Run("Nil Payload Sends Empty Object", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				body, _ := io.ReadAll(r.Body)
				assert.Equal(t, "{}", string(body))
				w.Write([]byte(`{"ok":true}`))
			}))
			defer server.Close()

			var out struct{ OK bool }
			err := NewAPIService(server.URL, nil).Send(context.Background(), http.MethodPost, "/x", nil, &out)
			require.NoError(t, err)
			assert.True(t, out.OK)
		})

		t.Run("Error Status Returns APIError", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"detail":"Invalid token."}`))
			}))
			defer server.Close()

			err := NewAPIService(server.URL, nil).Send(context.Background(), http.MethodPost, "/x", nil, nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, shared.ErrUnauthorized)

			apiErr, ok := AsAPIError(err)
			require.True(t, ok)
			assert.Equal(t, "Invalid token.", apiErr.Detail)
		})

		t.Run("Malformed Success Body", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"ok":`))
			}))
			defer server.Close()

			var out map[string]any
			err := NewAPIService(server.URL, nil).Send(context.Background(), http.MethodPost, "/x", nil, &out)
			require.Error(t, err)
			assert.ErrorIs(t, err, shared.ErrAPIRequest)
			assert.True(t, strings.Contains(err.Error(), "failed to decode response"))
		})
	})
}
