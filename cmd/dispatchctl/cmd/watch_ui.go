package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#3C3C3C")).
			Padding(0, 1)

	successStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575"))
	abandonedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F87"))
	pendingStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFD700"))
	retryingStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF8C00"))
)

type attemptsMsg []attemptInfo
type pollErrMsg error
type tickMsg time.Time

// WatchModel polls the attempts API and renders the delivery table.
type WatchModel struct {
	client     *apiClient
	envelopeID string
	attempts   []attemptInfo
	spinner    spinner.Model
	loaded     bool
	lastErr    error
	height     int
	quit       bool
}

func NewWatchModel(client *apiClient, envelopeID string) *WatchModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return &WatchModel{
		client:     client,
		envelopeID: envelopeID,
		spinner:    sp,
	}
}

func (m *WatchModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.poll())
}

func (m *WatchModel) poll() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		attempts, err := m.client.listAttempts(ctx)
		if err != nil {
			return pollErrMsg(err)
		}
		if m.envelopeID != "" {
			var filtered []attemptInfo
			for _, a := range attempts {
				if a.EnvelopeID == m.envelopeID {
					filtered = append(filtered, a)
				}
			}
			attempts = filtered
		}
		return attemptsMsg(attempts)
	}
}

func tick() tea.Cmd {
	return tea.Tick(2*time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quit = true
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.height = msg.Height
	case attemptsMsg:
		m.attempts = msg
		m.loaded = true
		m.lastErr = nil
		return m, tick()
	case pollErrMsg:
		m.lastErr = msg
		m.loaded = true
		return m, tick()
	case tickMsg:
		return m, m.poll()
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *WatchModel) View() string {
	if m.quit {
		return ""
	}

	var s strings.Builder

	s.WriteString(titleStyle.Render("dispatchctl watch"))
	if m.envelopeID != "" {
		s.WriteString(fmt.Sprintf(" - Envelope: %s", m.envelopeID))
	}
	s.WriteString("\n\n")

	if !m.loaded {
		s.WriteString(fmt.Sprintf("  %s Loading attempts...\n", m.spinner.View()))
		return s.String()
	}

	if m.lastErr != nil {
		s.WriteString(abandonedStyle.Render(fmt.Sprintf("  error: %v\n", m.lastErr)))
		s.WriteString("\n")
	}

	s.WriteString(headerStyle.Render(fmt.Sprintf("%-30s %-22s %-10s %-8s %-20s", "DESTINATION", "EVENT", "STATUS", "TRIES", "LAST ERROR")))
	s.WriteString("\n")

	rows := m.attempts
	maxRows := m.height - 7
	if maxRows > 0 && len(rows) > maxRows {
		rows = rows[:maxRows]
	}

	for _, a := range rows {
		var statusStyled string
		switch a.Status {
		case "SUCCESS":
			statusStyled = successStyle.Render(a.Status)
		case "ABANDONED":
			statusStyled = abandonedStyle.Render(a.Status)
		case "PENDING":
			statusStyled = pendingStyle.Render(a.Status)
		case "RETRYING":
			statusStyled = retryingStyle.Render(a.Status)
		default:
			statusStyled = a.Status
		}

		s.WriteString(fmt.Sprintf("%-30s %-22s %-10s %-8d %-20s\n",
			truncate(a.DestinationURL, 29),
			truncate(a.EventType, 21),
			statusStyled,
			a.AttemptCount,
			truncate(a.LastError, 40),
		))
	}

	if len(m.attempts) == 0 {
		s.WriteString("\n  No delivery attempts yet...\n")
	}

	s.WriteString("\n  (Press q to quit)")

	return s.String()
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
