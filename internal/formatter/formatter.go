// Package formatter renders profiles and sessions for the terminal (plain text, Markdown, JSON)
package formatter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/desertthunder/hego/internal/models"
)

// SessionView is the JSON shape of a [models.Session]
type SessionView struct {
	State     models.State        `json:"state"`
	LoggedIn  bool                `json:"logged_in"`
	Reason    models.Reason       `json:"reason,omitempty"`
	ChangedAt *time.Time          `json:"changed_at,omitempty"`
	User      *models.UserProfile `json:"user"`
}

// NewSessionView converts s for serialisation
func NewSessionView(s models.Session) SessionView {
	v := SessionView{
		State:    s.State(),
		LoggedIn: s.IsLoggedIn(),
		Reason:   s.Reason,
		User:     s.User.Clone(),
	}
	if !s.ChangedAt.IsZero() {
		at := s.ChangedAt.UTC()
		v.ChangedAt = &at
	}
	return v
}

// SessionToJSON converts a session to indented JSON
func SessionToJSON(s models.Session) ([]byte, error) {
	data, err := json.MarshalIndent(NewSessionView(s), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode session: %w", err)
	}
	return append(data, '\n'), nil
}

// ProfileToText converts a profile to aligned plain text
func ProfileToText(p *models.UserProfile) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("no profile to format")
	}

	var buf bytes.Buffer
	buf.WriteString(fmt.Sprintf("Name:     %s\n", p.DisplayName()))
	buf.WriteString(fmt.Sprintf("Email:    %s\n", p.Email))
	if p.Username != "" {
		buf.WriteString(fmt.Sprintf("Username: %s\n", p.Username))
	}
	if p.ID != 0 {
		buf.WriteString(fmt.Sprintf("ID:       %d\n", p.ID))
	}
	if p.ProfilePictureURL != "" {
		buf.WriteString(fmt.Sprintf("Picture:  %s\n", p.ProfilePictureURL))
	}

	return buf.Bytes(), nil
}

// ProfileToMarkdown converts a profile to Markdown, embedding the picture when there is one
func ProfileToMarkdown(p *models.UserProfile) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("no profile to format")
	}

	var buf bytes.Buffer
	buf.WriteString(fmt.Sprintf("# %s\n\n", p.DisplayName()))

	if p.ProfilePictureURL != "" {
		buf.WriteString(fmt.Sprintf("![Profile picture](%s)\n\n", p.ProfilePictureURL))
	}

	buf.WriteString(fmt.Sprintf("- **Email**: %s\n", p.Email))
	if p.Username != "" {
		buf.WriteString(fmt.Sprintf("- **Username**: %s\n", p.Username))
	}
	if p.FirstName != "" || p.LastName != "" {
		buf.WriteString(fmt.Sprintf("- **Name**: %s %s\n", p.FirstName, p.LastName))
	}

	return buf.Bytes(), nil
}

// SessionToText summarises a session in one or two lines
func SessionToText(s models.Session) []byte {
	var buf bytes.Buffer
	if s.IsLoggedIn() {
		buf.WriteString(fmt.Sprintf("Signed in as %s <%s>\n", s.User.DisplayName(), s.User.Email))
	} else {
		buf.WriteString("Not signed in\n")
	}
	if s.Reason != models.ReasonNone {
		buf.WriteString(fmt.Sprintf("Last change: %s", s.Reason))
		if !s.ChangedAt.IsZero() {
			buf.WriteString(fmt.Sprintf(" at %s", s.ChangedAt.Format(time.RFC3339)))
		}
		buf.WriteString("\n")
	}
	return buf.Bytes()
}
