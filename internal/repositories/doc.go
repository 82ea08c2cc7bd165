// Package repositories implements storage for credential material and the session audit trail.
//
// Two storage scopes back the same [Store] port:
//   - [MemoryStore] : session scope, values live as long as the process
//   - [SQLiteStore] : local scope, values persist in the credentials table across restarts
//
// Callers never touch a [Store] directly for credentials. [CredentialStore] wraps one with typed
// accessors, maps the sentinel strings "undefined" and "null" to absence, and becomes a no-op on a
// headless platform.
//
// [SessionEventRepository] records session transitions (state, reason, email) without credential material.
package repositories
