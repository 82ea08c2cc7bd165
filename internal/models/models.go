package models

import (
	"fmt"
	"strings"
	"time"
)

// UserProfile is a snapshot of the authenticated user's identity as returned by the backend.
//
// Profiles are replaced wholesale, never patched in place.
type UserProfile struct {
	ID                int    `json:"id"`
	Email             string `json:"email"`
	FirstName         string `json:"first_name"`
	LastName          string `json:"last_name"`
	ProfilePictureURL string `json:"profile_picture_url"`
	Username          string `json:"username,omitempty"`
}

// Validate reports whether the profile is well-formed enough to restore a session from.
func (p *UserProfile) Validate() error {
	if p == nil {
		return fmt.Errorf("profile is nil")
	}
	if strings.TrimSpace(p.Email) == "" {
		return fmt.Errorf("profile email is required")
	}
	return nil
}

// Clone returns a copy that callers may keep without aliasing session state.
func (p *UserProfile) Clone() *UserProfile {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}

// DisplayName returns "First Last", falling back to the username or email.
func (p *UserProfile) DisplayName() string {
	if name := strings.TrimSpace(p.FirstName + " " + p.LastName); name != "" {
		return name
	}
	if p.Username != "" {
		return p.Username
	}
	return p.Email
}

// State names the two session states.
type State string

const (
	Anonymous     State = "ANONYMOUS"
	Authenticated State = "AUTHENTICATED"
)

// Reason explains why the session last changed.
type Reason string

const (
	ReasonNone         Reason = ""
	ReasonLogin        Reason = "login"
	ReasonRestore      Reason = "restore"
	ReasonLogout       Reason = "logout"
	ReasonProfile      Reason = "profile"
	ReasonUnauthorized Reason = "unauthorized"
	ReasonInactivity   Reason = "inactivity"
)

// Session is the authoritative "who is signed in" value.
//
// IsLoggedIn is derived from User, so the two can never disagree.
type Session struct {
	User      *UserProfile
	Reason    Reason
	ChangedAt time.Time
}

// IsLoggedIn reports whether a user is authenticated.
func (s Session) IsLoggedIn() bool {
	return s.User != nil
}

// State returns [Authenticated] or [Anonymous].
func (s Session) State() State {
	if s.IsLoggedIn() {
		return Authenticated
	}
	return Anonymous
}

// Provider identifies a third-party identity provider.
type Provider string

const (
	ProviderGoogle Provider = "google"
	ProviderApple  Provider = "apple"
)

// ProviderAssertion is a third-party identity proof exchanged with the backend for a local session.
type ProviderAssertion struct {
	Provider Provider
	IDToken  string
	Code     string
}

// Validate checks that the assertion carries what its provider's exchange endpoint needs.
func (a ProviderAssertion) Validate() error {
	switch a.Provider {
	case ProviderGoogle:
		if a.IDToken == "" {
			return fmt.Errorf("google assertion requires an id token")
		}
	case ProviderApple:
		if a.IDToken == "" && a.Code == "" {
			return fmt.Errorf("apple assertion requires an id token or authorization code")
		}
	default:
		return fmt.Errorf("unknown provider %q", a.Provider)
	}
	return nil
}

// CallbackParams are the values an identity provider hands back to the redirect URI.
type CallbackParams struct {
	State   string
	Code    string
	IDToken string
	User    string // Apple posts the user's name as JSON on first sign-in
}

// RegisterRequest is the payload for creating an account.
type RegisterRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// Validate checks required registration fields.
func (r RegisterRequest) Validate() error {
	if strings.TrimSpace(r.Email) == "" {
		return fmt.Errorf("email is required")
	}
	if strings.TrimSpace(r.Username) == "" {
		return fmt.Errorf("username is required")
	}
	if r.Password == "" {
		return fmt.Errorf("password is required")
	}
	return nil
}

// RegisterResponse is the backend answer to a registration.
type RegisterResponse struct {
	Key    string `json:"key"`
	Detail string `json:"detail,omitempty"`
}

// ProfilePatch carries the fields of a profile update. Nil fields are not sent.
type ProfilePatch struct {
	FirstName *string
	LastName  *string
	Username  *string
	Email     *string

	Picture     []byte
	PictureName string
}

// Empty reports whether the patch would send nothing.
func (p ProfilePatch) Empty() bool {
	return p.FirstName == nil && p.LastName == nil && p.Username == nil && p.Email == nil && len(p.Picture) == 0
}

// SessionEvent is an audit record of a session transition. It never contains credential material.
type SessionEvent struct {
	ID        string
	State     State
	Reason    Reason
	UserEmail string
	CreatedAt time.Time
}
