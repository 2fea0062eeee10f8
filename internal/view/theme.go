package view

import "github.com/charmbracelet/lipgloss"

// Theme holds the color scheme for the conversation view.
type Theme struct {
	Title  lipgloss.Color
	Author lipgloss.Color
	Error  lipgloss.Color
	Hint   lipgloss.Color
	Border lipgloss.Color
}

// DefaultTheme provides default colors.
var DefaultTheme = Theme{
	Title:  lipgloss.Color("#5FAFD7"), // light blue
	Author: lipgloss.Color("#00D787"), // green
	Error:  lipgloss.Color("#FF005F"), // red
	Hint:   lipgloss.Color("#6C6C6C"), // dim gray
	Border: lipgloss.Color("#3A3A3A"), // dark gray
}

func (t Theme) titleStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Title).Bold(true)
}

func (t Theme) authorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Author).Bold(true)
}

func (t Theme) errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error).Bold(true)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

func (t Theme) ruleStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Border)
}

func (t Theme) cardStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.Border).
		Padding(0, 1).
		MarginTop(1)
}
