// Package tasks wires the session stack together and runs the startup sequence.
//
// # Wiring
//
// [NewStack] builds one HTTP client whose transport is the interceptor chain
// (auth, then CSRF, then the 401/403 handler), the backend client on top of it, the
// [session.Manager] and the CSRF [bootstrap.Bootstrapper]. The auth stage reads the token from the
// manager and the unauthorized stage calls back into it, so the two are created together.
//
// # Startup
//
// [Startup.Run] performs the CSRF bootstrap and then restores the persisted session:
//
//  1. [PhaseCSRF]: fetch the CSRF token and open the gate
//  2. [PhaseRestore]: rebuild the session from the stored token and profile
//  3. [PhaseReady]: the session state is settled
//
// Neither step failing is fatal; the result records what happened.
//
// # Progress Reporting
//
// Progress updates are sent without blocking. A full or unread channel drops updates rather than
// stalling startup.
package tasks
