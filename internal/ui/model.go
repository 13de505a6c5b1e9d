package ui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap/zapcore"

	"github.com/rovshanmuradov/raydium-sniper/internal/events"
	"github.com/rovshanmuradov/raydium-sniper/internal/logger"
	"github.com/rovshanmuradov/raydium-sniper/internal/position"
	"github.com/rovshanmuradov/raydium-sniper/internal/ui/style"
)

const (
	maxTrades       = 100
	logLines        = 8
	refreshInterval = time.Second
)

const (
	panePositions = iota
	paneTrades
)

// Source is the live state the dashboard reads on every refresh. Logs may be nil.
type Source struct {
	Wallet string
	Quote  string
	Gate   *position.Gate
	Ledger *position.Ledger
	Logs   *logger.Ring
}

type counters struct {
	detected   int
	bought     int
	buyFailed  int
	sold       int
	sellFailed int
	skipped    int
}

// Model is the bubbletea dashboard model.
type Model struct {
	src    Source
	feed   <-chan tea.Msg
	keys   KeyMap
	styles style.Styles

	spinner   spinner.Model
	positions table.Model
	trades    table.Model
	help      help.Model

	focus    int
	showLogs bool
	gate     position.GateState
	stats    counters
	recent   []*events.TradeEvent
	lastPool string

	width  int
	height int
}

// NewModel creates the dashboard. feed is usually Feed.Messages().
func NewModel(src Source, feed <-chan tea.Msg) *Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(style.Cyan)

	head, selected := style.TableStyles()
	ts := table.DefaultStyles()
	ts.Header = head
	ts.Selected = selected

	positions := table.New(
		table.WithColumns([]table.Column{
			{Title: "Mint", Width: 14},
			{Title: "1st", Width: 5},
			{Title: "2nd", Width: 5},
			{Title: "In flight", Width: 10},
		}),
		table.WithFocused(true),
		table.WithHeight(8),
	)
	positions.SetStyles(ts)

	trades := table.New(
		table.WithColumns([]table.Column{
			{Title: "Time", Width: 8},
			{Title: "Side", Width: 5},
			{Title: "Mint", Width: 14},
			{Title: "Result", Width: 10},
			{Title: "Reason", Width: 18},
			{Title: "Try", Width: 4},
			{Title: "Signature", Width: 14},
		}),
		table.WithHeight(8),
	)
	trades.SetStyles(ts)

	return &Model{
		src:       src,
		feed:      feed,
		keys:      DefaultKeyMap(),
		styles:    style.Default(),
		spinner:   sp,
		positions: positions,
		trades:    trades,
		help:      help.New(),
		showLogs:  true,
	}
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		tick(refreshInterval),
		waitFor(m.feed),
	)
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
		case key.Matches(msg, m.keys.ToggleLogs):
			m.showLogs = !m.showLogs
		case key.Matches(msg, m.keys.Tab):
			m.switchPane()
		default:
			var cmd tea.Cmd
			if m.focus == panePositions {
				m.positions, cmd = m.positions.Update(msg)
			} else {
				m.trades, cmd = m.trades.Update(msg)
			}
			cmds = append(cmds, cmd)
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case tickMsg:
		m.refresh()
		cmds = append(cmds, tick(refreshInterval))

	case PoolMsg:
		m.stats.detected++
		m.lastPool = msg.Event.Mint
		cmds = append(cmds, waitFor(m.feed))

	case TradeMsg:
		m.record(msg.Event)
		cmds = append(cmds, waitFor(m.feed))
	}

	return m, tea.Batch(cmds...)
}

func (m *Model) switchPane() {
	if m.focus == panePositions {
		m.focus = paneTrades
		m.positions.Blur()
		m.trades.Focus()
		return
	}
	m.focus = panePositions
	m.trades.Blur()
	m.positions.Focus()
}

// refresh reloads the gate and ledger panes.
func (m *Model) refresh() {
	if m.src.Gate != nil {
		m.gate = m.src.Gate.State()
	}
	if m.src.Ledger == nil {
		return
	}

	snapshot := m.src.Ledger.Snapshot()
	mints := make([]string, 0, len(snapshot))
	for mint := range snapshot {
		mints = append(mints, mint)
	}
	sort.Strings(mints)

	rows := make([]table.Row, 0, len(mints))
	for _, mint := range mints {
		e := snapshot[mint]
		inFlight := "-"
		if e.InFlight != 0 {
			inFlight = e.InFlight.String()
		}
		rows = append(rows, table.Row{short(mint), mark(e.SoldFirst), mark(e.SoldSecond), inFlight})
	}
	m.positions.SetRows(rows)
}

func (m *Model) record(e *events.TradeEvent) {
	switch e.Type() {
	case events.BuyConfirmed:
		m.stats.bought++
	case events.BuyFailed:
		m.stats.buyFailed++
	case events.SellConfirmed:
		m.stats.sold++
	case events.SellFailed:
		m.stats.sellFailed++
	case events.BuySkipped, events.SellSkipped:
		m.stats.skipped++
		// skips are counted, not listed
		return
	}

	m.recent = append([]*events.TradeEvent{e}, m.recent...)
	if len(m.recent) > maxTrades {
		m.recent = m.recent[:maxTrades]
	}

	rows := make([]table.Row, 0, len(m.recent))
	for _, t := range m.recent {
		reason := t.Reason
		if t.Tranche != "" {
			reason = t.Reason + "/" + t.Tranche
		}
		rows = append(rows, table.Row{
			t.Timestamp().Format("15:04:05"),
			t.Side,
			short(t.Mint),
			result(t.Type()),
			reason,
			fmt.Sprint(t.Attempts),
			short(t.Signature),
		})
	}
	m.trades.SetRows(rows)
}

func (m *Model) View() string {
	var b strings.Builder

	b.WriteString(m.header())
	b.WriteString("\n")

	positions := m.pane("Positions", m.positions.View(), m.focus == panePositions)
	trades := m.pane("Trades", m.trades.View(), m.focus == paneTrades)
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, positions, trades))
	b.WriteString("\n")

	if m.showLogs {
		b.WriteString(m.pane("Logs", m.logs(), false))
		b.WriteString("\n")
	}
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m *Model) header() string {
	s := m.styles
	gate := s.Good.Render("free")
	if m.gate.Held {
		gate = s.Warn.Render("buying")
	}
	mode := "multi"
	if m.gate.SinglePosition {
		mode = "single"
	}

	line1 := fmt.Sprintf("%s %s  wallet %s  quote %s",
		m.spinner.View(), s.Title.Render("Raydium sniper"), short(m.src.Wallet), m.src.Quote)
	line2 := fmt.Sprintf("mode %s  gate %s  active sells %d  detected %d  last pool %s",
		mode, gate, m.gate.ActiveSells, m.stats.detected, short(m.lastPool))
	line3 := fmt.Sprintf("bought %s  sold %s  failed %s  skipped %s",
		s.Good.Render(fmt.Sprint(m.stats.bought)),
		s.Good.Render(fmt.Sprint(m.stats.sold)),
		s.Bad.Render(fmt.Sprint(m.stats.buyFailed+m.stats.sellFailed)),
		s.Muted.Render(fmt.Sprint(m.stats.skipped)))
	return s.Header.Render(line1 + "\n" + line2 + "\n" + line3)
}

func (m *Model) pane(title, body string, focused bool) string {
	st := m.styles.Pane
	if focused {
		st = st.BorderForeground(style.Cyan)
	}
	return st.Render(m.styles.PaneHead.Render(title) + "\n" + body)
}

func (m *Model) logs() string {
	if m.src.Logs == nil {
		return m.styles.Muted.Render("no log buffer")
	}
	entries := m.src.Logs.Entries()
	if len(entries) > logLines {
		entries = entries[len(entries)-logLines:]
	}
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, fmt.Sprintf("%s %s %s",
			m.styles.Muted.Render(e.Time.Format("15:04:05")),
			m.level(e.Level),
			e.Message))
	}
	return strings.Join(lines, "\n")
}

func (m *Model) level(l zapcore.Level) string {
	text := l.CapitalString()
	switch {
	case l >= zapcore.ErrorLevel:
		return m.styles.Bad.Render(text)
	case l == zapcore.WarnLevel:
		return m.styles.Warn.Render(text)
	case l == zapcore.InfoLevel:
		return m.styles.Info.Render(text)
	default:
		return m.styles.Muted.Render(text)
	}
}

func result(t events.EventType) string {
	switch t {
	case events.BuyConfirmed, events.SellConfirmed:
		return "confirmed"
	case events.BuyFailed, events.SellFailed:
		return "failed"
	default:
		return string(t)
	}
}

func mark(ok bool) string {
	if ok {
		return "✓"
	}
	return "-"
}

// short abbreviates a base58 key to its first and last four characters.
func short(s string) string {
	if len(s) <= 12 {
		if s == "" {
			return "-"
		}
		return s
	}
	return s[:4] + "…" + s[len(s)-4:]
}
