// Package server provides HTTP routing, middleware, the identity provider callback and the companion
// web app.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
// Middleware wraps only the routes registered after it is added, which lets the companion app keep the
// access gate page outside the gate.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally and dispatches several methods on one path.
//
// # OAuth Callback Handler
//
// [OAuthHandler] serves the redirect URI for the CLI sign-in flow. It reads parameters from the query
// or, for Sign in with Apple, from a form post; checks the state; asks the provider for an assertion;
// and sends the result through a channel. It only processes one callback.
//
// # Companion App
//
// [App] is a browser front end for a session manager:
//
//	GET  /                 → who is signed in
//	GET  /login            → sign-in form
//	POST /login            → password sign-in (cooldown after a failure)
//	POST /logout           → sign out
//	GET  /profile          → current profile as JSON (signed-in only)
//	GET  /session          → session snapshot as JSON
//	GET  /auth/{provider}  → redirect to google or apple
//	GET|POST /callback     → provider callback
//	GET|POST /lavori-in-corso → access gate
//	GET  /metrics          → prometheus metrics
//
// When the access gate is enabled every route except the gate page and /metrics redirects locked visitors.
// Visitors are told apart by a cookie; the gate flag is kept per visitor in memory.
//
// Navigation guards are applied with [Guarded], which turns a redirect decision into 303 See Other.
package server
