package tui

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// markdownRenderer wraps glamour with width caching and graceful
// degradation: if the renderer cannot be built, messages render as plain
// text instead of failing.
type markdownRenderer struct {
	renderer *glamour.TermRenderer
	width    int
}

func newMarkdownRenderer(width int) *markdownRenderer {
	m := &markdownRenderer{}
	m.UpdateWidth(width)
	return m
}

// UpdateWidth rebuilds the renderer when the terminal width changes.
func (m *markdownRenderer) UpdateWidth(width int) {
	if m == nil {
		return
	}
	if width <= 0 {
		width = 80
	}
	if width == m.width && m.renderer != nil {
		return
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		// Keep whatever renderer exists; plain text is the final fallback.
		return
	}
	m.renderer = r
	m.width = width
}

// Render converts markdown to styled terminal output. Falls back to the raw
// text on any failure.
func (m *markdownRenderer) Render(text string) string {
	if m == nil || m.renderer == nil {
		return text
	}
	out, err := m.renderer.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimRight(out, "\n")
}
