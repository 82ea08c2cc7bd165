// Package ui implements an interactive terminal sign-in using bubbletea's Elm architecture.
//
// The TUI has three views:
//  1. [StartupView] : CSRF bootstrap and session restore, with a spinner and progress messages
//  2. [LoginView] : email and password form; a failed attempt starts the login cooldown
//  3. [ProfileView] : the signed-in profile, with sign out
//
// The [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Startup progress flows through a channel from [tasks.Startup]; session changes arrive through a
// subscription to the session manager, so a sign-out forced by inactivity or an expired token moves
// the TUI back to the login form with a notice.
//
// Every key press counts as activity for the inactivity timer.
package ui
