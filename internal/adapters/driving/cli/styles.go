package cli

import "github.com/charmbracelet/lipgloss"

// Output styles. lipgloss drops colour automatically when stdout is not a
// terminal, so piped output stays plain.
var (
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#2563EB"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#16A34A"))
	failureStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#DC2626"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#CA8A04"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	sourceStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#0891B2"))
)
