package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/hego/internal/models"
	"github.com/desertthunder/hego/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgStartupProgress MsgKind = iota
	MsgStartupDone
	MsgLoginDone
	MsgLogoutDone
	MsgSessionChanged
)

// Kind reports which message this is
func (m Msg) Kind() MsgKind { return m.kind }

// startupProgressMsg is the constructor for [MsgStartupProgress]
func startupProgressMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgStartupProgress, data: update}
}

// startupDoneMsg is the constructor for [MsgStartupDone]
func startupDoneMsg(result tasks.StartupResult) Msg {
	return Msg{kind: MsgStartupDone, data: result}
}

type loginResult struct {
	user *models.UserProfile
	err  error
}

// loginDoneMsg is the constructor for [MsgLoginDone]
func loginDoneMsg(user *models.UserProfile, err error) Msg {
	return Msg{kind: MsgLoginDone, data: loginResult{user, err}}
}

// logoutDoneMsg is the constructor for [MsgLogoutDone]
func logoutDoneMsg(err error) Msg {
	return Msg{kind: MsgLogoutDone, data: err}
}

// sessionChangedMsg is the constructor for [MsgSessionChanged]. A closed subscription sends ok=false.
func sessionChangedMsg(s models.Session, ok bool) Msg {
	return Msg{
		kind: MsgSessionChanged,
		data: struct {
			session models.Session
			ok      bool
		}{s, ok},
	}
}
