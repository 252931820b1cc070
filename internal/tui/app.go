// Package tui is the terminal dashboard: a live view over locally
// recorded events, their priorities, and their sync state.
package tui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/structiq/fieldscan-agent/internal/database"
	"github.com/structiq/fieldscan-agent/models"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#6B7280"))
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#10B981"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	p1Style       = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#EF4444"))
	p2Style       = lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B"))
)

// App is the dashboard entry point.
type App struct {
	db *database.DB
}

// NewApp builds the dashboard over the local store.
func NewApp(db *database.DB) *App {
	return &App{db: db}
}

// Run blocks until the user quits.
func (a *App) Run() error {
	m := model{db: a.db}
	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}

type model struct {
	db     *database.DB
	events []*models.Event
	cursor int
	detail bool
	err    error
	loaded bool
}

type eventsMsg struct {
	events []*models.Event
	err    error
}

func (m model) Init() tea.Cmd {
	return m.refresh()
}

func (m model) refresh() tea.Cmd {
	db := m.db
	return func() tea.Msg {
		events, err := db.ListEvents(context.Background(), "")
		return eventsMsg{events: events, err: err}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case eventsMsg:
		m.loaded = true
		m.err = msg.err
		m.events = msg.events
		if m.cursor >= len(m.events) {
			m.cursor = max(0, len(m.events)-1)
		}
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.events)-1 {
				m.cursor++
			}
		case "enter":
			m.detail = !m.detail
		case "r":
			return m, m.refresh()
		case "esc":
			m.detail = false
		}
	}
	return m, nil
}

func (m model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("fieldscan — local events"))
	b.WriteString("\n\n")

	switch {
	case !m.loaded:
		b.WriteString(dimStyle.Render("loading..."))
	case m.err != nil:
		b.WriteString(fmt.Sprintf("error: %v", m.err))
	case len(m.events) == 0:
		b.WriteString(dimStyle.Render("No events yet. Create one with: fieldscan event new"))
	case m.detail:
		b.WriteString(m.detailView())
	default:
		b.WriteString(m.listView())
	}

	b.WriteString("\n\n")
	b.WriteString(dimStyle.Render("↑/↓ select · enter detail · r refresh · q quit"))
	return b.String()
}

func (m model) listView() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("  %-10s %-4s %-8s %-7s %s",
		"ID", "PRI", "STATUS", "DEFECTS", "TITLE")))
	b.WriteString("\n")

	for i, ev := range m.events {
		pri := string(ev.Priority)
		if pri == "" {
			pri = "-"
		}
		line := fmt.Sprintf("  %-10s %-4s %-8s %-7d %s",
			shortID(ev.ID), pri, ev.Status, ev.DefectCount, ev.Title)
		if i == m.cursor {
			line = selectedStyle.Render("▸" + line[1:])
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

func (m model) detailView() string {
	ev := m.events[m.cursor]
	var b strings.Builder
	fmt.Fprintf(&b, "Event     %s\n", ev.ID)
	fmt.Fprintf(&b, "Title     %s\n", ev.Title)
	fmt.Fprintf(&b, "Project   %s\n", ev.ProjectCode)
	fmt.Fprintf(&b, "Inspector %s\n", ev.Inspector)
	fmt.Fprintf(&b, "Location  %.6f, %.6f  %s\n", ev.Latitude, ev.Longitude, ev.LocationRef)
	fmt.Fprintf(&b, "Priority  %s (score %.2f)\n", styledPriority(ev.Priority), ev.RiskScore)
	fmt.Fprintf(&b, "Defects   %d\n", ev.DefectCount)
	fmt.Fprintf(&b, "Status    %s\n", ev.Status)
	if ev.SyncedAt != nil {
		fmt.Fprintf(&b, "Synced    %s (remote %s)\n", ev.SyncedAt.Format("2006-01-02 15:04"), ev.RemoteID)
	}
	if ev.Description != "" {
		fmt.Fprintf(&b, "\n%s\n", ev.Description)
	}
	return b.String()
}

func styledPriority(p models.PriorityLevel) string {
	switch p {
	case models.PriorityP1:
		return p1Style.Render(string(p))
	case models.PriorityP2:
		return p2Style.Render(string(p))
	case "":
		return "-"
	default:
		return string(p)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
