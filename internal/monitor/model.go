package monitor

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/trackd/internal/feed"
	"github.com/muurk/trackd/internal/ui"
)

const (
	maxLogLines  = 200
	refreshEvery = time.Second

	// staleAfter greys out a tracker that has sent nothing for a while
	// but has not been dropped by the server yet.
	staleAfter = 2 * time.Second
)

// Messages
type eventMsg feed.Event
type feedClosedMsg struct{}
type refreshMsg time.Time

var columns = []table.Column{
	{Title: " ", Width: 1},
	{Title: "Name", Width: 18},
	{Title: "Address", Width: 21},
	{Title: "Battery", Width: 12},
	{Title: "RSSI", Width: 6},
	{Title: "Temp", Width: 7},
	{Title: "RTT", Width: 8},
	{Title: "Rotation (w x y z)", Width: 26},
	{Title: "Last", Width: 14},
	{Title: "Packets", Width: 8},
}

// Model is the bubbletea model for the live tracker monitor.
type Model struct {
	URL    string
	events <-chan feed.Event
	now    func() time.Time

	board  *board
	log    []string
	paused bool
	closed bool

	Width  int
	Height int

	table   table.Model
	help    help.Model
	keys    keyMap
	spinner spinner.Model // shown until the first tracker appears
}

// NewModel creates a monitor reading events from the feed at url.
func NewModel(url string, events <-chan feed.Event) Model {
	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(8),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(ui.PrimaryColor).
		BorderBottom(true).
		Foreground(ui.PrimaryColor).
		Bold(true)
	styles.Selected = styles.Selected.
		Foreground(ui.TextColor).
		Background(ui.PrimaryColor).
		Bold(false)
	t.SetStyles(styles)

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(ui.PrimaryColor)

	return Model{
		URL:    url,
		events: events,
		now:    time.Now,
		board:  newBoard(),
		table:  t,
		help:   help.New(),
		keys:   defaultKeyMap(),

		spinner: s,
	}
}

// Init starts listening for feed events
func (m Model) Init() tea.Cmd {
	return tea.Batch(waitForEvent(m.events), refresh(), m.spinner.Tick)
}

func waitForEvent(events <-chan feed.Event) tea.Cmd {
	return func() tea.Msg {
		e, ok := <-events
		if !ok {
			return feedClosedMsg{}
		}
		return eventMsg(e)
	}
}

func refresh() tea.Cmd {
	return tea.Tick(refreshEvery, func(t time.Time) tea.Msg { return refreshMsg(t) })
}

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.help.Width = msg.Width
		m.table.SetHeight(m.tableHeight())
		return m, nil

	case eventMsg:
		line := m.board.apply(feed.Event(msg))
		if !m.paused {
			m.appendLog(line)
		}
		m.syncRows()
		return m, waitForEvent(m.events)

	case feedClosedMsg:
		m.closed = true
		return m, nil

	case refreshMsg:
		m.syncRows()
		return m, refresh()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
			m.table.SetHeight(m.tableHeight())
			return m, nil
		case key.Matches(msg, m.keys.Clear):
			m.board.clearTimedOut()
			m.syncRows()
			return m, nil
		case key.Matches(msg, m.keys.Pause):
			m.paused = !m.paused
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *Model) appendLog(line string) {
	m.log = append(m.log, line)
	if len(m.log) > maxLogLines {
		m.log = m.log[len(m.log)-maxLogLines:]
	}
}

// tableHeight splits the screen between the table and the event log.
func (m Model) tableHeight() int {
	if m.Height == 0 {
		return 8
	}
	h := (m.Height - 8) / 2
	if h < 3 {
		h = 3
	}
	return h
}

func (m *Model) syncRows() {
	now := m.now()
	rows := make([]table.Row, 0, len(m.board.rows))
	for _, r := range m.board.sorted() {
		rows = append(rows, r.tableRow(now))
	}
	m.table.SetRows(rows)
}

func (r *trackerRow) tableRow(now time.Time) table.Row {
	marker := ui.LiveMarker
	switch {
	case r.TimedOut:
		marker = ui.FailureMarker
	case now.Sub(r.LastSeen) > staleAfter:
		marker = ui.StaleMarker
	}

	name := r.Name
	if name == "" {
		name = r.MAC
	}

	battery := "-"
	if r.Voltage > 0 {
		battery = fmt.Sprintf("%.2fV %3.0f%%", r.Voltage, r.Battery*100)
	}
	rtt := "-"
	if r.RTT > 0 {
		rtt = r.RTT.Round(100 * time.Microsecond).String()
	}
	rssi := "-"
	if r.Signal != 0 {
		rssi = fmt.Sprintf("%d", r.Signal)
	}
	temp := "-"
	if r.Temperature != 0 {
		temp = fmt.Sprintf("%.1f°C", r.Temperature)
	}

	return table.Row{
		marker,
		name,
		r.Addr,
		battery,
		rssi,
		temp,
		rtt,
		formatQuat(r.Rotation),
		r.LastKind,
		fmt.Sprintf("%d", r.Packets),
	}
}

// View renders the monitor
func (m Model) View() string {
	var b strings.Builder

	title := ui.HeaderTitleStyle.Render("TRACKD MONITOR")
	status := ui.SuccessTitleStyle.Render(ui.LiveMarker + " live")
	if m.closed {
		status = ui.ErrorTitleStyle.Render(ui.FailureMarker + " feed closed")
	} else if m.paused {
		status = ui.WarningTitleStyle.Render("log paused")
	}
	b.WriteString(title + "  " + ui.MutedStyle.Render(m.URL) + "  " + status)
	b.WriteString("\n\n")

	if len(m.board.rows) == 0 {
		b.WriteString("  " + m.spinner.View() + ui.MutedStyle.Render(" Waiting for trackers..."))
		b.WriteString("\n")
	} else {
		b.WriteString(m.table.View())
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(ui.TableHeaderStyle.Render("  Events"))
	b.WriteString("\n")
	for _, line := range m.visibleLog() {
		b.WriteString("  " + line + "\n")
	}

	b.WriteString(ui.HelpStyle.Render(m.help.View(m.keys)))
	return b.String()
}

func (m Model) visibleLog() []string {
	n := 10
	if m.Height > 0 {
		n = m.Height - m.tableHeight() - 10
	}
	if n < 3 {
		n = 3
	}
	if len(m.log) <= n {
		return m.log
	}
	return m.log[len(m.log)-n:]
}
