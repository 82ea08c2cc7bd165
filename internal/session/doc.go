// Package session owns the answer to "who is signed in".
//
// [Manager] holds the session state (ANONYMOUS or AUTHENTICATED with a profile) and is its only
// writer. Readers use [Manager.IsLoggedIn], [Manager.CurrentUser] or [Manager.Subscribe]; the
// last delivers the current value first and then every transition, dropping stale values for
// slow readers.
//
// Operations that reach the backend wait for the CSRF bootstrap gate first. Logins and restores
// racing each other resolve last-writer-wins. Logout and [Manager.Invalidate] bump a generation
// counter, so results of operations started before them are discarded.
//
// Supporting pieces:
//   - [IdleTimer] : signs the user out after a period without activity
//   - [Cooldown] : delays the next login attempt after a failure
//   - [Metrics] : prometheus counters for attempts and transitions
//   - [Describe] : maps operation errors to user-facing messages
package session
