package tui

import (
	"strings"

	"charm.land/lipgloss/v2"
)

// Styles holds the lipgloss styles for every rendered element.
type Styles struct {
	User      lipgloss.Style
	Assistant lipgloss.Style
	System    lipgloss.Style
	Error     lipgloss.Style
	Search    lipgloss.Style
	Prompt    lipgloss.Style
	Separator lipgloss.Style
	Banner    lipgloss.Style
	Tips      lipgloss.Style
}

// DefaultStyles returns the standard color scheme.
func DefaultStyles() Styles {
	return Styles{
		User:      lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true),
		Assistant: lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true),
		System:    lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Italic(true),
		Error:     lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		Search:    lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		Prompt:    lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true),
		Separator: lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		Banner:    lipgloss.NewStyle().Foreground(lipgloss.Color("212")),
		Tips:      lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
	}
}

var bannerLines = []string{
	`██╗  ██╗ █████╗ ██╗██╗    ██╗ █████╗ `,
	`██║ ██╔╝██╔══██╗██║██║    ██║██╔══██╗`,
	`█████╔╝ ███████║██║██║ █╗ ██║███████║`,
	`██╔═██╗ ██╔══██║██║██║███╗██║██╔══██║`,
	`██║  ██╗██║  ██║██║╚███╔███╔╝██║  ██║`,
	`╚═╝  ╚═╝╚═╝  ╚═╝╚═╝ ╚══╝╚══╝ ╚═╝  ╚═╝`,
}

// RenderBanner returns the styled startup banner.
func (s Styles) RenderBanner() string {
	return s.Banner.Render(strings.Join(bannerLines, "\n"))
}

// RenderWelcomeTips returns the styled first-run hints shown under the banner.
func (s Styles) RenderWelcomeTips() string {
	tips := strings.Join([]string{
		"会話を始めましょう。Enter で送信、Shift+Enter で改行。",
		"検索: <クエリ> で検索を強制、/help でコマンド一覧。",
	}, "\n")
	return s.Tips.Render(tips)
}
