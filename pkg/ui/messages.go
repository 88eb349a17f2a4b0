// Package ui provides the Bubble Tea operator status TUI.
package ui

import "time"

// Message types for TUI updates.

// ConnectionStatusMsg is sent when a venue stream's connection state changes.
type ConnectionStatusMsg struct {
	Name           string
	Connected      bool
	Latency        time.Duration
	ReconnectCount int
}

// ThroughputMsg is sent periodically with the latest ingest/broadcast counters.
type ThroughputMsg struct {
	MessagesReceived int64
	EventsPerSec     float64
	BroadcastClients int
	WhaleAlerts      int64
	Errors           int64
}

// ErrorMsg is sent when an error occurs.
type ErrorMsg struct {
	Error error
}

// TickMsg is sent periodically for UI updates.
type TickMsg struct{}

// WelcomeCompleteMsg is not handled by Model.Update; the TUI has no welcome
// screen phase.
type WelcomeCompleteMsg struct{}

// StartModulesMsg signals that modules should start loading.
type StartModulesMsg struct{}

// LogMsg is sent to display a log message in the UI.
type LogMsg struct {
	Level   string // "info", "warn", "error"
	Message string
}

// StartupMsg is sent during application startup to show progress.
type StartupMsg struct {
	Step    string // current step name
	Status  string // "connecting", "connected", "failed"
	Message string // optional message
}
