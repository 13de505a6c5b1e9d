package style

import "github.com/charmbracelet/lipgloss"

// Color palette
var (
	Cyan    = lipgloss.Color("#00E5FF") // Primary highlight
	Magenta = lipgloss.Color("#FF1B6B") // Accent
	Yellow  = lipgloss.Color("#FFB500") // Warnings
	Green   = lipgloss.Color("#2AFFAA") // Confirmed trades
	Red     = lipgloss.Color("#FF5555") // Failures
	Blue    = lipgloss.Color("#3B82F6") // Info

	Base02 = lipgloss.Color("#262831") // Darker background
	Base01 = lipgloss.Color("#6C7280") // Muted text
	Base2  = lipgloss.Color("#ECEFF4") // Primary text
)

// Styles used by the dashboard.
type Styles struct {
	Title    lipgloss.Style
	Header   lipgloss.Style
	Pane     lipgloss.Style
	PaneHead lipgloss.Style
	Muted    lipgloss.Style
	Good     lipgloss.Style
	Bad      lipgloss.Style
	Warn     lipgloss.Style
	Info     lipgloss.Style
}

// Default returns the dashboard styles.
func Default() Styles {
	return Styles{
		Title: lipgloss.NewStyle().
			Foreground(Cyan).
			Bold(true),
		Header: lipgloss.NewStyle().
			Foreground(Base2).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Cyan).
			Padding(0, 2),
		Pane: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Base01).
			Padding(0, 1),
		PaneHead: lipgloss.NewStyle().
			Foreground(Magenta).
			Bold(true),
		Muted: lipgloss.NewStyle().Foreground(Base01),
		Good:  lipgloss.NewStyle().Foreground(Green),
		Bad:   lipgloss.NewStyle().Foreground(Red),
		Warn:  lipgloss.NewStyle().Foreground(Yellow),
		Info:  lipgloss.NewStyle().Foreground(Blue),
	}
}

// TableStyles colors a bubbles table header and selection. Kept as plain
// styles so the style package does not depend on bubbles.
func TableStyles() (header, selected lipgloss.Style) {
	header = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(Base01).
		BorderBottom(true).
		Foreground(Cyan).
		Bold(true)
	selected = lipgloss.NewStyle().
		Foreground(Base2).
		Background(Base02).
		Bold(false)
	return header, selected
}
