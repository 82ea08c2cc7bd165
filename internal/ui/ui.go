package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/hego/internal/formatter"
	"github.com/desertthunder/hego/internal/models"
	"github.com/desertthunder/hego/internal/session"
	"github.com/desertthunder/hego/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	StartupView ViewState = iota
	LoginView
	ProfileView
)

// Sessions is the part of [session.Manager] the TUI drives.
type Sessions interface {
	Snapshot() models.Session
	Subscribe() (<-chan models.Session, func())
	Login(ctx context.Context, email, password string) (*models.UserProfile, error)
	Logout(ctx context.Context) error
}

// Startup runs before the first view is shown
type Startup interface {
	Run(ctx context.Context, progress chan<- tasks.ProgressUpdate) tasks.StartupResult
}

// Toucher records user activity
type Toucher interface {
	Touch()
}

// Options configures [NewModel]. Startup and Activity may be nil.
type Options struct {
	Sessions Sessions
	Startup  Startup
	Cooldown *session.Cooldown
	Activity Toucher
}

// Model represents the TUI application state.
type Model struct {
	ctx      context.Context
	view     ViewState
	sessions Sessions
	startup  Startup
	cooldown *session.Cooldown
	activity Toucher

	updates     <-chan models.Session
	unsubscribe func()

	progressChan chan tasks.ProgressUpdate
	result       tasks.StartupResult
	progress     tasks.ProgressUpdate

	inputs  []textinput.Model
	focus   int
	busy    bool
	spinner spinner.Model

	current models.Session
	notice  string
	err     string

	help help.Model
	keys keyMap
}

const (
	emailInput = iota
	passwordInput
)

// NewModel creates a new TUI model and subscribes to session changes.
func NewModel(ctx context.Context, opts Options) *Model {
	if opts.Cooldown == nil {
		opts.Cooldown = session.NewCooldown(session.DefaultLoginCooldown)
	}

	email := textinput.New()
	email.Placeholder = "you@example.com"
	email.Prompt = ""
	email.CharLimit = 254

	password := textinput.New()
	password.Placeholder = "password"
	password.Prompt = ""
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '•'

	updates, unsubscribe := opts.Sessions.Subscribe()

	m := &Model{
		ctx:         ctx,
		view:        StartupView,
		sessions:    opts.Sessions,
		startup:     opts.Startup,
		cooldown:    opts.Cooldown,
		activity:    opts.Activity,
		updates:     updates,
		unsubscribe: unsubscribe,
		inputs:      []textinput.Model{email, password},
		spinner:     spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(styles.busy)),
		current:     opts.Sessions.Snapshot(),
		help:        help.New(),
		keys:        newKeyMap(),
	}
	m.inputs[emailInput].Focus()
	return m
}

// Close releases the session subscription
func (m *Model) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
	}
}

// CurrentView reports which view is showing
func (m *Model) CurrentView() ViewState { return m.view }

// Init runs the startup sequence and starts listening for session changes.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.runStartup(), m.waitForSession(), m.spinner.Tick, textinput.Blink)
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.activity != nil {
			m.activity.Touch()
		}
		return m.handleKeys(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case Msg:
		return m.handleMsg(msg)
	}

	return m.updateInputs(msg)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgStartupProgress:
		m.progress = msg.data.(tasks.ProgressUpdate)
		return m, m.waitForProgress()

	case MsgStartupDone:
		m.result = msg.data.(tasks.StartupResult)
		m.progressChan = nil
		m.showSession(m.sessions.Snapshot())
		return m, nil

	case MsgLoginDone:
		res := msg.data.(loginResult)
		m.busy = false
		if res.err != nil {
			m.cooldown.Record(res.err)
			m.err = session.Describe(res.err)
			m.inputs[passwordInput].Reset()
			return m, nil
		}
		m.err = ""
		m.showSession(m.sessions.Snapshot())
		return m, nil

	case MsgLogoutDone:
		m.busy = false
		if err, _ := msg.data.(error); err != nil {
			m.notice = session.Describe(err)
		}
		m.showSession(m.sessions.Snapshot())
		return m, nil

	case MsgSessionChanged:
		data := msg.data.(struct {
			session models.Session
			ok      bool
		})
		if !data.ok {
			return m, nil
		}
		if m.view != StartupView && !m.busy {
			m.showSession(data.session)
		}
		return m, m.waitForSession()
	}
	return m, nil
}

// showSession switches to the view matching s. An involuntary sign-out leaves a notice.
func (m *Model) showSession(s models.Session) {
	m.current = s
	if s.IsLoggedIn() {
		m.view = ProfileView
		m.notice = ""
		return
	}

	if m.view == ProfileView || m.view == StartupView {
		m.inputs[passwordInput].Reset()
		m.setFocus(emailInput)
	}
	m.view = LoginView
	if reason := session.DescribeReason(s.Reason); reason != "" {
		m.notice = reason
	}
}

func (m *Model) handleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.view {
	case StartupView:
		if key.Matches(msg, m.keys.quit) {
			return m, tea.Quit
		}
		return m, nil

	case ProfileView:
		switch {
		case key.Matches(msg, m.keys.quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.logout) && !m.busy:
			m.busy = true
			return m, m.logout()
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.exit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.next):
		m.setFocus((m.focus + 1) % len(m.inputs))
		return m, nil
	case key.Matches(msg, m.keys.prev):
		m.setFocus((m.focus + len(m.inputs) - 1) % len(m.inputs))
		return m, nil
	case key.Matches(msg, m.keys.submit):
		if m.focus == emailInput {
			m.setFocus(passwordInput)
			return m, nil
		}
		return m, m.submit()
	}

	return m.updateInputs(msg)
}

func (m *Model) submit() tea.Cmd {
	if m.busy {
		return nil
	}
	if err := m.cooldown.Allow(); err != nil {
		m.err = session.Describe(err)
		return nil
	}

	email := strings.TrimSpace(m.inputs[emailInput].Value())
	password := m.inputs[passwordInput].Value()
	if email == "" || password == "" {
		m.err = "Enter your email and password."
		return nil
	}

	m.busy = true
	m.err = ""
	return func() tea.Msg {
		user, err := m.sessions.Login(m.ctx, email, password)
		return loginDoneMsg(user, err)
	}
}

func (m *Model) logout() tea.Cmd {
	return func() tea.Msg {
		return logoutDoneMsg(m.sessions.Logout(m.ctx))
	}
}

func (m *Model) setFocus(i int) {
	m.focus = i
	for j := range m.inputs {
		if j == i {
			m.inputs[j].Focus()
		} else {
			m.inputs[j].Blur()
		}
	}
}

func (m *Model) updateInputs(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.view != LoginView {
		return m, nil
	}
	cmds := make([]tea.Cmd, len(m.inputs))
	for i := range m.inputs {
		m.inputs[i], cmds[i] = m.inputs[i].Update(msg)
	}
	return m, tea.Batch(cmds...)
}

func (m *Model) runStartup() tea.Cmd {
	if m.startup == nil {
		return func() tea.Msg { return startupDoneMsg(tasks.StartupResult{Session: m.sessions.Snapshot()}) }
	}

	m.progressChan = make(chan tasks.ProgressUpdate, 10)
	progress := m.progressChan
	go func() {
		m.result = m.startup.Run(m.ctx, progress)
		close(progress)
	}()
	return m.waitForProgress()
}

func (m *Model) waitForProgress() tea.Cmd {
	progress := m.progressChan
	return func() tea.Msg {
		if progress == nil {
			return startupDoneMsg(m.result)
		}
		update, ok := <-progress
		if !ok {
			return startupDoneMsg(m.result)
		}
		return startupProgressMsg(update)
	}
}

func (m *Model) waitForSession() tea.Cmd {
	updates := m.updates
	return func() tea.Msg {
		s, ok := <-updates
		return sessionChangedMsg(s, ok)
	}
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case StartupView:
		return m.renderStartup()
	case LoginView:
		return m.renderLogin()
	case ProfileView:
		return m.renderProfile()
	default:
		return ""
	}
}

func (m *Model) renderStartup() string {
	msg := m.progress.Message
	if msg == "" {
		msg = "Starting..."
	}
	return fmt.Sprintf("%s\n\n%s %s\n", styles.title("hego", ""), m.spinner.View(), msg)
}

func (m *Model) renderLogin() string {
	var b strings.Builder
	b.WriteString(styles.title("Sign in", string(m.current.State())))
	b.WriteString("\n")

	if m.notice != "" {
		b.WriteString(styles.notice.Render(m.notice) + "\n\n")
	}

	b.WriteString(styles.label("Email", m.focus == emailInput) + m.inputs[emailInput].View() + "\n")
	b.WriteString(styles.label("Password", m.focus == passwordInput) + m.inputs[passwordInput].View() + "\n\n")

	switch {
	case m.busy:
		b.WriteString(m.spinner.View() + " Signing in...\n")
	case m.err != "":
		b.WriteString(styles.failure.Render(m.err) + "\n")
	}

	helpKeys := []key.Binding{m.keys.next, m.keys.submit, m.keys.exit}
	b.WriteString("\n" + m.help.ShortHelpView(helpKeys))
	return b.String()
}

func (m *Model) renderProfile() string {
	var b strings.Builder
	b.WriteString(styles.title(styles.signedIn.Render("✓ Signed in"), string(m.current.State())))
	b.WriteString("\n\n")

	if text, err := formatter.ProfileToText(m.current.User); err == nil {
		b.Write(text)
	}
	if m.notice != "" {
		b.WriteString("\n" + styles.notice.Render(m.notice) + "\n")
	}
	if m.busy {
		b.WriteString("\n" + m.spinner.View() + " Signing out...\n")
	}

	helpKeys := []key.Binding{m.keys.logout, m.keys.quit}
	b.WriteString("\n" + m.help.ShortHelpView(helpKeys))
	return b.String()
}
