package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/vigilfs/vigil/internal/watch"
)

// Color palette. Lime green is the single primary accent, categories get
// one distinguishing color each.
const (
	ColorLime     = "154" // Primary accent, additions
	ColorLimeDim  = "106" // Dimmed lime for inactive elements
	ColorWhite    = "255" // Headers, important text
	ColorGray     = "245" // Secondary text, labels
	ColorDarkGray = "238" // Box borders, separators
	ColorRed      = "196" // Errors, removals
	ColorYellow   = "220" // Warnings, changes
	ColorBlue     = "81"  // Renames
)

// Styles holds all UI styles for feed rendering.
type Styles struct {
	// Text styles
	Header  lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Dim     lipgloss.Style
	Active  lipgloss.Style
	Time    lipgloss.Style

	// Per-category event styles
	Added   lipgloss.Style
	Read    lipgloss.Style
	Removed lipgloss.Style
	Changed lipgloss.Style
	Renamed lipgloss.Style

	// Panel/layout styles
	Border    lipgloss.Style
	Panel     lipgloss.Style
	Sparkline lipgloss.Style
	Speed     lipgloss.Style
	Label     lipgloss.Style
}

// Category returns the style for an event category.
func (s Styles) Category(cat watch.Category) lipgloss.Style {
	switch cat {
	case watch.CategoryAdded:
		return s.Added
	case watch.CategoryRead:
		return s.Read
	case watch.CategoryRemoved:
		return s.Removed
	case watch.CategoryChanged:
		return s.Changed
	case watch.CategoryRenamed:
		return s.Renamed
	default:
		return s.Dim
	}
}

// DefaultStyles returns styled components for feed mode.
func DefaultStyles() Styles {
	return Styles{
		Header:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorLime)),
		Success: lipgloss.NewStyle().Foreground(lipgloss.Color(ColorLime)),
		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color(ColorYellow)),
		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color(ColorRed)),
		Dim:     lipgloss.NewStyle().Foreground(lipgloss.Color(ColorDarkGray)),
		Active:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorLime)),
		Time:    lipgloss.NewStyle().Foreground(lipgloss.Color(ColorGray)),

		Added:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorLime)),
		Read:    lipgloss.NewStyle().Foreground(lipgloss.Color(ColorGray)),
		Removed: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorRed)),
		Changed: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorYellow)),
		Renamed: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorBlue)),

		Border: lipgloss.NewStyle().Foreground(lipgloss.Color(ColorDarkGray)),
		Panel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(ColorDarkGray)).
			Padding(0, 1),
		Sparkline: lipgloss.NewStyle().Foreground(lipgloss.Color(ColorLime)),
		Speed:     lipgloss.NewStyle().Foreground(lipgloss.Color(ColorGray)),
		Label:     lipgloss.NewStyle().Foreground(lipgloss.Color(ColorGray)),
	}
}

// NoColorStyles returns unstyled components for plain mode.
func NoColorStyles() Styles {
	return Styles{
		Header:    lipgloss.NewStyle(),
		Success:   lipgloss.NewStyle(),
		Warning:   lipgloss.NewStyle(),
		Error:     lipgloss.NewStyle(),
		Dim:       lipgloss.NewStyle(),
		Active:    lipgloss.NewStyle(),
		Time:      lipgloss.NewStyle(),
		Added:     lipgloss.NewStyle(),
		Read:      lipgloss.NewStyle(),
		Removed:   lipgloss.NewStyle(),
		Changed:   lipgloss.NewStyle(),
		Renamed:   lipgloss.NewStyle(),
		Border:    lipgloss.NewStyle(),
		Panel:     lipgloss.NewStyle(),
		Sparkline: lipgloss.NewStyle(),
		Speed:     lipgloss.NewStyle(),
		Label:     lipgloss.NewStyle(),
	}
}

// GetStyles returns the appropriate styles based on color preference.
func GetStyles(noColor bool) Styles {
	if noColor {
		return NoColorStyles()
	}
	return DefaultStyles()
}
