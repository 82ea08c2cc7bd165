// Package services talks to the Hego backend and to third-party identity providers.
//
// # Backend Client
//
// [APIService] performs raw requests against the configured base URL and returns an [APIResponse].
// [AuthAPI] layers the auth REST contract on top of it: CSRF bootstrap, password and provider
// login, registration, logout, who-am-i and profile update.
//
// Non-2xx responses become [*APIError], which matches the shared sentinels through [errors.Is]:
//   - [shared.ErrInvalidCredentials] : 400 carrying non_field_errors
//   - [shared.ErrValidation] : other 400 responses
//   - [shared.ErrUnauthorized] : 401 and 403
//   - [shared.ErrServiceUnavailable] : 5xx
//
// Transport failures wrap [shared.ErrNetwork].
//
// # Interceptor Chain
//
// Requests are decorated by [http.RoundTripper] stages composed with [Chain]:
//
//	AuthStage -> CSRFStage -> UnauthorizedStage -> base transport
//
// Each stage clones the request before adding headers. [AuthStage] only decorates requests inside
// the backend base URL, so the session token never leaks to third parties. [CSRFStage] decorates
// state-changing methods aimed at the backend origin. [UnauthorizedStage] reports 401/403 answers
// to credentialed requests so the session can be invalidated, except answers from the login,
// provider and register endpoints. Nothing in the chain retries.
//
// # Identity Providers
//
// [GoogleProvider] and [AppleProvider] implement [Provider] with [oauth2]. Both produce a
// [models.ProviderAssertion] that [AuthAPI.LoginWithAssertion] exchanges for a session token.
package services
