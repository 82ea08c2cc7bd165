package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the TUI.
//
// The login form takes free text, so only non-printing keys are bound there.
type keyMap struct {
	next   key.Binding
	prev   key.Binding
	submit key.Binding
	logout key.Binding
	quit   key.Binding
	exit   key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		next:   key.NewBinding(key.WithKeys("tab", "down"), key.WithHelp("tab", "next field")),
		prev:   key.NewBinding(key.WithKeys("shift+tab", "up"), key.WithHelp("shift+tab", "previous field")),
		submit: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "sign in")),
		logout: key.NewBinding(key.WithKeys("l"), key.WithHelp("l", "sign out")),
		quit:   key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		exit:   key.NewBinding(key.WithKeys("esc", "ctrl+c"), key.WithHelp("esc", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.next, k.prev, k.submit},
		{k.logout, k.quit, k.exit},
	}
}
