package output

import "github.com/charmbracelet/lipgloss"

// Styles holds the lipgloss styles used in text mode.
type Styles struct {
	Header  lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Muted   lipgloss.Style
	Bold    lipgloss.Style
	Path    lipgloss.Style
}

// NewStyles creates styles bound to renderer. Without color every style is plain.
func NewStyles(renderer *lipgloss.Renderer, color bool) *Styles {
	if !color {
		plain := renderer.NewStyle()
		return &Styles{
			Header:  plain,
			Success: plain,
			Warning: plain,
			Error:   plain,
			Muted:   plain,
			Bold:    plain,
			Path:    plain,
		}
	}

	return &Styles{
		Header:  renderer.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		Success: renderer.NewStyle().Foreground(lipgloss.Color("10")),
		Warning: renderer.NewStyle().Foreground(lipgloss.Color("11")),
		Error:   renderer.NewStyle().Foreground(lipgloss.Color("9")),
		Muted:   renderer.NewStyle().Foreground(lipgloss.Color("8")),
		Bold:    renderer.NewStyle().Bold(true),
		Path:    renderer.NewStyle().Foreground(lipgloss.Color("14")),
	}
}
