// Package board is the operator terminal UI: a rating leaderboard and the
// most recent matches, read from the results store.
package board

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/vovakirdan/paddle-arena/internal/storage"
)

// Board layout constants
const (
	maxRows     = 100 // Max rows to load per tab
	loadTimeout = 5 * time.Second
)

// Source is what the board reads from. *storage.Store satisfies it.
type Source interface {
	TopRatings(ctx context.Context, limit int) ([]storage.RatingEntry, error)
	RecentMatches(ctx context.Context, limit int) ([]storage.MatchEntry, error)
}

// Tab selects which table is shown.
type Tab int

const (
	TabLeaderboard Tab = iota
	TabRecent
)

func (t Tab) String() string {
	if t == TabRecent {
		return "RECENT MATCHES"
	}
	return "LEADERBOARD"
}

// KeyMap defines the key bindings for the board.
type KeyMap struct {
	Up      key.Binding
	Down    key.Binding
	NextTab key.Binding
	Refresh key.Binding
	Quit    key.Binding
}

// ShortHelp returns key bindings for the short help view.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.NextTab, k.Refresh, k.Quit}
}

// FullHelp returns key bindings for the full help view.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.NextTab},
		{k.Refresh, k.Quit},
	}
}

// DefaultKeyMap returns default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("up/k", "scroll up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("down/j", "scroll down"),
		),
		NextTab: key.NewBinding(
			key.WithKeys("tab", "left", "right", "h", "l"),
			key.WithHelp("tab", "switch view"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "esc", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

type loadedMsg struct {
	tab     Tab
	ratings []storage.RatingEntry
	matches []storage.MatchEntry
	err     error
}

// Model is the Bubble Tea model for the board.
type Model struct {
	source   Source
	tab      Tab
	ratings  []storage.RatingEntry
	matches  []storage.MatchEntry
	err      error
	table    table.Model
	help     help.Model
	keys     KeyMap
	width    int
	height   int
	quitting bool
}

// New creates a board model over source.
func New(source Source, width, height int) Model {
	h := help.New()
	h.ShowAll = false
	m := Model{
		source: source,
		keys:   DefaultKeyMap(),
		help:   h,
		width:  width,
		height: height,
	}
	m.table = m.createTable()
	return m
}

// Init loads the first tab.
func (m Model) Init() tea.Cmd {
	return m.load(m.tab)
}

func (m Model) load(tab Tab) tea.Cmd {
	source := m.source
	return func() tea.Msg {
		if source == nil {
			return loadedMsg{tab: tab}
		}
		ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
		defer cancel()
		msg := loadedMsg{tab: tab}
		if tab == TabRecent {
			msg.matches, msg.err = source.RecentMatches(ctx, maxRows)
		} else {
			msg.ratings, msg.err = source.TopRatings(ctx, maxRows)
		}
		return msg
	}
}

func (m *Model) columns() []table.Column {
	if m.tab == TabRecent {
		return []table.Column{
			{Title: "Room", Width: 10},
			{Title: "Winner", Width: 14},
			{Title: "Loser", Width: 14},
			{Title: "Score", Width: 9},
			{Title: "Reason", Width: 11},
			{Title: "Ended", Width: 13},
		}
	}
	cols := []table.Column{
		{Title: "Rank", Width: 6},
		{Title: "Player", Width: 18},
		{Title: "Rating", Width: 8},
		{Title: "W/L", Width: 9},
	}
	if extra := m.width - 4 - 41; extra > 0 {
		cols[1].Width += min(extra, 12)
	}
	return cols
}

// createTable creates a new table with columns for the current tab.
func (m *Model) createTable() table.Model {
	height := m.height - 8 // Leave room for header, help, and margins
	if height < 3 {
		height = 3
	}
	t := table.New(
		table.WithColumns(m.columns()),
		table.WithFocused(true),
		table.WithHeight(height),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)
	return t
}

func (m *Model) updateTableRows() {
	var rows []table.Row
	if m.tab == TabRecent {
		rows = make([]table.Row, len(m.matches))
		for i, e := range m.matches {
			rows[i] = table.Row{
				e.RoomCode,
				e.Winner,
				e.Loser,
				fmt.Sprintf("%d-%d", e.Score[0], e.Score[1]),
				e.Reason,
				e.EndedAt.Local().Format("Jan 02 15:04"),
			}
		}
	} else {
		rows = make([]table.Row, len(m.ratings))
		for i, e := range m.ratings {
			rows[i] = table.Row{
				fmt.Sprintf("#%d", i+1),
				e.Player,
				fmt.Sprintf("%d", e.Rating),
				fmt.Sprintf("%d/%d", e.Wins, e.Losses),
			}
		}
	}
	m.table.SetRows(rows)
	m.table.GotoTop()
}

// Update handles messages for the board.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case loadedMsg:
		if msg.tab != m.tab {
			return m, nil
		}
		m.err = msg.err
		m.ratings = msg.ratings
		m.matches = msg.matches
		m.updateTableRows()
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.quitting = true
			return m, tea.Quit

		case key.Matches(msg, m.keys.NextTab):
			m.tab = (m.tab + 1) % 2
			m.table = m.createTable()
			m.updateTableRows()
			return m, m.load(m.tab)

		case key.Matches(msg, m.keys.Refresh):
			return m, m.load(m.tab)

		case key.Matches(msg, m.keys.Up), key.Matches(msg, m.keys.Down):
			m.table, cmd = m.table.Update(msg)
			return m, cmd
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.table = m.createTable()
		m.updateTableRows()
		m.help.Width = msg.Width
		return m, nil
	}

	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// View renders the board.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("229")).
		MarginBottom(1)
	b.WriteString(titleStyle.Render(centerText("PADDLE ARENA - "+m.tab.String(), m.width)))
	b.WriteString("\n\n")

	tableStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)
	b.WriteString(tableStyle.Render(m.renderTableContent()))

	b.WriteString("\n")
	helpStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))
	b.WriteString(helpStyle.Render(m.help.View(m.keys)))

	return b.String()
}

// renderTableContent renders the table, an error or the empty message.
func (m Model) renderTableContent() string {
	emptyStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241")).
		Italic(true).
		Padding(2, 4)
	if m.err != nil {
		return emptyStyle.Foreground(lipgloss.Color("203")).Render("Could not load: " + m.err.Error())
	}
	if m.tab == TabRecent && len(m.matches) == 0 {
		return emptyStyle.Render("No matches recorded yet.")
	}
	if m.tab == TabLeaderboard && len(m.ratings) == 0 {
		return emptyStyle.Render("No rated players yet.\nFinish a match to get on the board!")
	}
	return m.table.View()
}

// centerText centers text within given width.
func centerText(text string, width int) string {
	if len(text) >= width {
		return text
	}
	padding := (width - len(text)) / 2
	return strings.Repeat(" ", padding) + text
}

// Run runs the board until the user quits.
func Run(source Source, width, height int) error {
	p := tea.NewProgram(
		New(source, width, height),
		tea.WithAltScreen(),
	)
	_, err := p.Run()
	return err
}
