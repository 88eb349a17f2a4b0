// Package components provides reusable TUI components.
package components

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// Stats holds the throughput counters the operator dashboard displays.
type Stats struct {
	MessagesReceived int64
	EventsPerSec     float64
	BroadcastClients int
	WhaleAlerts      int64
	Errors           int64
}

// StatsComponent renders Stats as a status block.
type StatsComponent struct {
	stats Stats
}

// NewStatsComponent creates a new stats component.
func NewStatsComponent() *StatsComponent {
	return &StatsComponent{}
}

// Update replaces the displayed stats.
func (s *StatsComponent) Update(stats Stats) {
	s.stats = stats
}

// View renders the stats component.
func (s *StatsComponent) View() string {
	style := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	valueStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF")).Bold(true)
	errorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")).Bold(true)

	errorsDisplay := valueStyle.Render(fmt.Sprintf("%d", s.stats.Errors))
	if s.stats.Errors > 0 {
		errorsDisplay = errorStyle.Render(fmt.Sprintf("%d", s.stats.Errors))
	}

	return style.Render("STATS") + "\n" +
		fmt.Sprintf("Messages: %s  │  Events/sec: %s  │  Clients: %s\n",
			valueStyle.Render(fmt.Sprintf("%d", s.stats.MessagesReceived)),
			valueStyle.Render(fmt.Sprintf("%.1f", s.stats.EventsPerSec)),
			valueStyle.Render(fmt.Sprintf("%d", s.stats.BroadcastClients)),
		) +
		fmt.Sprintf("Whale alerts: %s  │  Errors: %s",
			valueStyle.Render(fmt.Sprintf("%d", s.stats.WhaleAlerts)),
			errorsDisplay,
		)
}
