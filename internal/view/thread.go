package view

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/raphaelgruber/convo/internal/chat"
)

// FormatMessage renders a single message as "author: body".
func (t Theme) FormatMessage(msg chat.Message) string {
	name := msg.User.Name
	if name == "" {
		name = "unknown"
	}
	return t.authorStyle().Render(name) + ": " + msg.Body
}

// RenderThread renders messages in order, one per line. With a positive
// width long lines are wrapped; with a positive maxLines only the newest lines
// that fit are kept.
func (t Theme) RenderThread(messages []chat.Message, width, maxLines int) string {
	if len(messages) == 0 {
		return t.hintStyle().Render("No messages yet.")
	}

	wrap := lipgloss.NewStyle()
	if width > 0 {
		wrap = wrap.Width(width)
	}

	var lines []string
	for _, msg := range messages {
		rendered := wrap.Render(t.FormatMessage(msg))
		lines = append(lines, strings.Split(rendered, "\n")...)
	}

	if maxLines > 0 && len(lines) > maxLines {
		lines = lines[len(lines)-maxLines:]
	}
	return strings.Join(lines, "\n")
}

// RenderHeader renders the conversation title followed by a rule.
func (t Theme) RenderHeader(title string, width int) string {
	if width <= 0 {
		width = max(lipgloss.Width(title), 20)
	}
	return t.titleStyle().Render(title) + "\n" + t.ruleStyle().Render(strings.Repeat("─", width))
}
