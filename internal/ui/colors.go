package ui

import (
	"github.com/charmbracelet/lipgloss"
)

const (
	brand  = "#7D56F4"
	green  = "#04B575"
	red    = "#E5484D"
	amber  = "#FFA500"
	muted  = "#626262"
	bright = "#FAFAFA"
)

var styles = newTheme()

// theme holds the login form's styles, keyed by what they render
type theme struct {
	header     lipgloss.Style
	badge      lipgloss.Style
	signedIn   lipgloss.Style
	failure    lipgloss.Style
	notice     lipgloss.Style
	busy       lipgloss.Style
	fieldLabel lipgloss.Style
	fieldFocus lipgloss.Style
}

func newTheme() *theme {
	return &theme{
		header:     bold(brand).MarginBottom(1),
		badge:      lipgloss.NewStyle().Foreground(lipgloss.Color(bright)).Background(lipgloss.Color(brand)).Padding(0, 1),
		signedIn:   bold(green),
		failure:    bold(red),
		notice:     fg(amber).BorderStyle(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color(amber)).Padding(0, 1),
		busy:       fg(amber),
		fieldLabel: fg(muted).Width(10),
		fieldFocus: bold(brand).Width(10),
	}
}

// label renders a form field label, highlighted when the field has focus
func (t *theme) label(text string, focused bool) string {
	if focused {
		return t.fieldFocus.Render(text)
	}
	return t.fieldLabel.Render(text)
}

// title renders a view heading with an optional state badge beside it
func (t *theme) title(text, state string) string {
	if state == "" {
		return t.header.Render(text)
	}
	return t.header.Render(lipgloss.JoinHorizontal(lipgloss.Top, text, " ", t.badge.Render(state)))
}

func fg(color string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(color))
}

func bold(color string) lipgloss.Style {
	return fg(color).Bold(true)
}
