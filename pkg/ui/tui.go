// Package ui provides the Bubble Tea operator status TUI. It is a thin
// status view over the running service — venue connection health and
// throughput counters — not a rendering engine for derived market signals.
package ui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/fd1az/cryptofeed/pkg/ui/components"
)

// Phase represents the current UI phase.
type Phase string

const (
	PhaseStartup   Phase = "startup"   // connecting to venues
	PhaseDashboard Phase = "dashboard" // steady-state status view
)

// StartupStep represents a step in the startup process.
type StartupStep struct {
	Name   string
	Status string // "pending", "connecting", "connected", "failed"
}

// ErrorEntry represents an error with timestamp.
type ErrorEntry struct {
	Message   string
	Timestamp time.Time
}

// Model is the main Bubble Tea model for the TUI.
type Model struct {
	status *components.StatusComponent
	stats  *components.StatsComponent

	phase Phase

	quitting bool
	width    int
	height   int

	lastUpdate time.Time
	errors     []ErrorEntry // persistent error panel (last 3)
	logs       []string     // recent log messages

	startupSteps map[string]*StartupStep
	startupTime  time.Time
}

// New creates a new TUI model. venueNames seeds the startup checklist with
// every venue stream the service will dial; the connection panel starts
// empty and fills from ConnectionStatusMsg.
func New(venueNames ...string) Model {
	now := time.Now()
	steps := make(map[string]*StartupStep, len(venueNames))
	for _, name := range venueNames {
		steps[name] = &StartupStep{Name: name, Status: "pending"}
	}
	return Model{
		status:       components.NewStatusComponent(),
		stats:        components.NewStatsComponent(),
		phase:        PhaseStartup,
		logs:         make([]string, 0, 5),
		errors:       make([]ErrorEntry, 0, 3),
		startupSteps: steps,
		startupTime:  now,
	}
}

// Init initializes the TUI model and calls OnStartModules, if set.
func (m Model) Init() tea.Cmd {
	if OnStartModules != nil {
		OnStartModules()
	}
	return tickCmd()
}

func tickCmd() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg{}
	})
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "e":
			m.errors = m.errors[:0]
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case TickMsg:
		if m.phase == PhaseStartup && m.allVenuesConnected() {
			m.phase = PhaseDashboard
		}
		return m, tickCmd()

	case ConnectionStatusMsg:
		m.status.Update(components.ConnectionStatus{
			Name:           msg.Name,
			Connected:      msg.Connected,
			Latency:        msg.Latency,
			ReconnectCount: msg.ReconnectCount,
			LastUpdate:     time.Now(),
		})
		if step, ok := m.startupSteps[msg.Name]; ok {
			if msg.Connected {
				step.Status = "connected"
			} else {
				step.Status = "connecting"
			}
		}
		m.lastUpdate = time.Now()

	case ThroughputMsg:
		m.stats.Update(components.Stats{
			MessagesReceived: msg.MessagesReceived,
			EventsPerSec:     msg.EventsPerSec,
			BroadcastClients: msg.BroadcastClients,
			WhaleAlerts:      msg.WhaleAlerts,
			Errors:           msg.Errors,
		})
		m.lastUpdate = time.Now()

	case ErrorMsg:
		m.logs = addLog(m.logs, "error", msg.Error.Error())
		m.errors = append(m.errors, ErrorEntry{Message: msg.Error.Error(), Timestamp: time.Now()})
		if len(m.errors) > 3 {
			m.errors = m.errors[len(m.errors)-3:]
		}

	case LogMsg:
		m.logs = addLog(m.logs, msg.Level, msg.Message)

	case StartupMsg:
		if step, ok := m.startupSteps[msg.Step]; ok {
			step.Status = msg.Status
		}
		if m.allVenuesConnected() {
			m.phase = PhaseDashboard
		}
	}

	return m, nil
}

func (m Model) allVenuesConnected() bool {
	if len(m.startupSteps) == 0 {
		return true
	}
	for _, step := range m.startupSteps {
		if step.Status != "connected" {
			return false
		}
	}
	return true
}

func addLog(logs []string, level, message string) []string {
	timestamp := time.Now().Format("15:04:05")
	logs = append(logs, fmt.Sprintf("[%s] %s: %s", timestamp, level, message))
	if len(logs) > 5 {
		logs = logs[len(logs)-5:]
	}
	return logs
}

// View renders the TUI.
func (m Model) View() string {
	if m.quitting {
		return "\n  Goodbye!\n\n"
	}

	if m.phase == PhaseStartup {
		return m.renderStartupScreen()
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render(" cryptofeed "))
	b.WriteString("\n\n")

	b.WriteString(HeaderStyle.Render("VENUE STATUS"))
	b.WriteString("\n")
	b.WriteString(m.status.View())
	b.WriteString("\n")

	b.WriteString(m.stats.View())
	b.WriteString("\n\n")

	if len(m.errors) > 0 {
		errorHeader := lipgloss.NewStyle().Bold(true).Foreground(ColorDanger)
		errorStyle := lipgloss.NewStyle().Foreground(ColorDanger)
		mutedError := MutedValue

		b.WriteString(errorHeader.Render("ERRORS"))
		b.WriteString(mutedError.Render(" (e: clear)"))
		b.WriteString("\n")
		for _, err := range m.errors {
			ago := time.Since(err.Timestamp).Round(time.Second)
			b.WriteString(errorStyle.Render(fmt.Sprintf("  • %s ", err.Message)))
			b.WriteString(mutedError.Render(fmt.Sprintf("(%s ago)", ago)))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if !m.lastUpdate.IsZero() {
		ago := time.Since(m.lastUpdate).Round(time.Second)
		b.WriteString(MutedValue.Render(fmt.Sprintf("Updated: %s ago", ago)))
		b.WriteString("\n")
	}

	b.WriteString(HelpStyle.Render("q: quit  •  e: clear errors"))
	return b.String()
}

func (m Model) renderStartupScreen() string {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary).MarginBottom(1)
	successStyle := lipgloss.NewStyle().Foreground(ColorSecondary)
	connectingStyle := lipgloss.NewStyle().Foreground(ColorWarning)
	failedStyle := lipgloss.NewStyle().Foreground(ColorDanger)

	var sb strings.Builder
	sb.WriteString("\n\n")
	sb.WriteString(titleStyle.Render("  cryptofeed — connecting to venues"))
	sb.WriteString("\n\n")

	names := make([]string, 0, len(m.startupSteps))
	for name := range m.startupSteps {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		step := m.startupSteps[name]
		var icon, statusText string
		var style lipgloss.Style
		switch step.Status {
		case "connected":
			icon, statusText, style = "✓", "Ready", successStyle
		case "connecting":
			icon, statusText, style = "◐", "Connecting...", connectingStyle
		case "failed":
			icon, statusText, style = "✗", "Failed", failedStyle
		default:
			icon, statusText, style = "○", "Pending", MutedValue
		}
		sb.WriteString(fmt.Sprintf("  %s %s %s\n", style.Render(icon), MutedValue.Render(step.Name), style.Render(statusText)))
	}

	elapsed := time.Since(m.startupTime).Round(time.Second)
	sb.WriteString("\n")
	sb.WriteString(MutedValue.Render(fmt.Sprintf("  Elapsed: %s", elapsed)))
	sb.WriteString("\n")
	return sb.String()
}

// Program holds the Bubble Tea program instance for external access.
var Program *tea.Program

// OnStartModules, when set, is called once from Init as the program starts.
var OnStartModules func()

// Run starts the Bubble Tea program for the given set of venue names.
func Run(venueNames ...string) error {
	Program = tea.NewProgram(New(venueNames...), tea.WithAltScreen())
	_, err := Program.Run()
	return err
}

// Send sends a message to the running program.
func Send(msg tea.Msg) {
	if Program != nil {
		Program.Send(msg)
	}
}
