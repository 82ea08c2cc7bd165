// Package models defines the domain values shared by the hego session client.
//
// The package contains two categories of types:
//
// 1. Session values: the in-memory answer to "is a user signed in, and as whom"
//   - [Session] : current user (nil when anonymous) plus the reason of the last transition
//   - [UserProfile] : identity snapshot returned by the backend
//   - [SessionEvent] : persisted audit record of a transition
//
// 2. Request payloads: values sent to the backend auth endpoints
//   - [ProviderAssertion] : Google/Apple identity proof exchanged for a local session
//   - [RegisterRequest] / [RegisterResponse] : account creation
//   - [ProfilePatch] : profile update fields
//
// Credential material (auth token, CSRF token) never appears in these types; it lives behind
// repositories.CredentialStore.
package models
