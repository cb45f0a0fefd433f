// Package tui provides the interactive session dashboard for nitroctl. It is
// built on the bubbletea/lipgloss stack and shows the model server's session
// info, refreshed every 2 seconds over the regular inference client.
package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sanxfxteam/NitroGen/pkg/client"
)

var (
	// titleStyle renders the application title bar.
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("57")).
			Padding(0, 1)

	// keyStyle is used for the session-info key column.
	keyStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12")).
			PaddingRight(1)

	// valueStyle is used for the session-info value column.
	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	// dimStyle is used for "no data" messages.
	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Italic(true)

	// statusBarStyle renders the bottom status bar.
	statusBarStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			PaddingLeft(1)

	// errorStyle renders error messages.
	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("1")).
			Bold(true).
			PaddingLeft(1)

	// okStyle renders the reset acknowledgment flash.
	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("2")).
		PaddingLeft(1)
)

const refreshInterval = 2 * time.Second

// tickMsg is sent every refreshInterval to trigger a data refresh.
type tickMsg time.Time

// infoMsg carries a freshly fetched session-info mapping.
type infoMsg struct {
	info    map[string]interface{}
	latency time.Duration
}

// resetMsg reports the outcome of a requested session reset.
type resetMsg struct{ err error }

// errMsg carries a fetch error to display in the status bar.
type errMsg error

// Model is the top-level bubbletea model for the session dashboard.
type Model struct {
	client    *client.Client
	info      map[string]interface{}
	latency   time.Duration
	width     int
	height    int
	err       error
	notice    string
	loading   bool
	lastFetch time.Time
}

// New returns a Model polling the given client. The client stays owned by
// the caller, which must close it after the program exits.
func New(c *client.Client) Model {
	return Model{client: c, loading: true}
}

// Init starts the periodic tick and issues the first fetch.
func (m Model) Init() tea.Cmd {
	return tea.Batch(tick(), fetchInfo(m.client))
}

// tick schedules a tickMsg after refreshInterval.
func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update processes messages and returns an updated model plus any commands.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "r":
			// Manual refresh
			m.loading = true
			m.err = nil
			return m, fetchInfo(m.client)
		case "x":
			m.notice = ""
			return m, resetSession(m.client)
		}
		return m, nil

	case tickMsg:
		m.loading = true
		m.err = nil
		return m, tea.Batch(tick(), fetchInfo(m.client))

	case infoMsg:
		m.loading = false
		m.err = nil
		m.info = msg.info
		m.latency = msg.latency
		m.lastFetch = time.Now()
		return m, nil

	case resetMsg:
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.notice = "session reset"
		}
		return m, fetchInfo(m.client)

	case errMsg:
		m.loading = false
		m.err = msg
		return m, nil
	}

	return m, nil
}

// View renders the entire dashboard to a string.
func (m Model) View() string {
	if m.width == 0 {
		return "Loading…"
	}

	var sb strings.Builder

	title := titleStyle.Render("  NitroGen Session Dashboard  ")
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("─", m.width))
	sb.WriteString("\n")

	sb.WriteString(m.renderInfo())
	sb.WriteString("\n")

	sb.WriteString(strings.Repeat("─", m.width))
	sb.WriteString("\n")
	sb.WriteString(m.renderStatus())

	return sb.String()
}

// renderInfo renders the session-info key/value table.
func (m Model) renderInfo() string {
	if len(m.info) == 0 {
		return dimStyle.Render("No session info yet.")
	}

	keys := make([]string, 0, len(m.info))
	maxLen := 0
	for k := range m.info {
		keys = append(keys, k)
		if len(k) > maxLen {
			maxLen = len(k)
		}
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		sb.WriteString(" ")
		sb.WriteString(keyStyle.Render(fmt.Sprintf("%-*s", maxLen, k)))
		sb.WriteString(valueStyle.Render(fmt.Sprintf("%v", m.info[k])))
		sb.WriteString("\n")
	}
	return sb.String()
}

// renderStatus renders the bottom status bar line.
func (m Model) renderStatus() string {
	if m.err != nil {
		return errorStyle.Render(fmt.Sprintf("Error: %v", m.err))
	}

	parts := []string{
		fmt.Sprintf("server: %s", m.client.Addr()),
	}
	if !m.lastFetch.IsZero() {
		parts = append(parts, fmt.Sprintf("last refresh: %s (%s)", m.lastFetch.Format("15:04:05"), m.latency.Round(time.Millisecond)))
	}
	if m.loading {
		parts = append(parts, "refreshing…")
	}
	parts = append(parts, "q: quit  r: refresh  x: reset session")

	line := statusBarStyle.Render(strings.Join(parts, "  |  "))
	if m.notice != "" {
		line += okStyle.Render("  ✓ " + m.notice)
	}
	return line
}

// fetchInfo queries the server's session info over the client. The client
// serializes its own exchanges, so a tick racing a manual refresh queues
// rather than corrupting the channel.
func fetchInfo(c *client.Client) tea.Cmd {
	return func() tea.Msg {
		start := time.Now()
		info, err := c.Info()
		if err != nil {
			return errMsg(err)
		}
		return infoMsg{info: info, latency: time.Since(start)}
	}
}

// resetSession asks the server to clear its session buffers.
func resetSession(c *client.Client) tea.Cmd {
	return func() tea.Msg {
		return resetMsg{err: c.Reset()}
	}
}
