package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"charm.land/bubbles/v2/key"
	tea "charm.land/bubbletea/v2"

	"github.com/kztmrk/kaiwa/internal/agent"
)

// ctrlCWindow is how long a second Ctrl+C counts as a quit confirmation.
const ctrlCWindow = time.Second

// keyMap defines the keyboard shortcuts shown in the help bar.
type keyMap struct {
	Submit     key.Binding
	NewLine    key.Binding
	History    key.Binding
	Cancel     key.Binding
	EscCancel  key.Binding
	Quit       key.Binding
	ScrollUp   key.Binding
	ScrollDown key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		Submit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "送信"),
		),
		NewLine: key.NewBinding(
			key.WithKeys("shift+enter"),
			key.WithHelp("shift+enter", "改行"),
		),
		History: key.NewBinding(
			key.WithKeys("up", "down"),
			key.WithHelp("↑/↓", "履歴"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("ctrl+c", "中断 (2回で終了)"),
		),
		EscCancel: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "キャンセル"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+d"),
			key.WithHelp("ctrl+d", "終了"),
		),
		ScrollUp: key.NewBinding(
			key.WithKeys("pgup"),
			key.WithHelp("pgup", "上へ"),
		),
		ScrollDown: key.NewBinding(
			key.WithKeys("pgdown"),
			key.WithHelp("pgdn", "下へ"),
		),
	}
}

func (t *TUI) handleKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		// First press cancels a running stream; a second press within the
		// window quits.
		now := time.Now()
		if now.Sub(t.lastCtrlC) < ctrlCWindow {
			return t, t.cleanup()
		}
		t.lastCtrlC = now
		if t.state != StateInput {
			t.cancelStream()
			return t, nil
		}
		t.addMessage(Message{Role: roleSystem, Text: "(もう一度 Ctrl+C で終了します)"})
		t.rebuildViewportContent()
		return t, nil

	case "ctrl+d":
		return t, t.cleanup()

	case "esc":
		if t.state != StateInput {
			t.cancelStream()
		}
		return t, nil

	case "enter":
		if t.state != StateInput {
			return t, nil
		}
		return t.handleSubmit()

	case "up":
		// History navigation only from the first line; otherwise the
		// textarea moves its cursor.
		if t.state == StateInput && t.input.Line() == 0 {
			t.navigateHistory(-1)
			return t, nil
		}

	case "down":
		if t.state == StateInput && t.input.Line() == t.input.LineCount()-1 {
			t.navigateHistory(1)
			return t, nil
		}

	case "pgup":
		t.viewport.PageUp()
		return t, nil

	case "pgdown":
		t.viewport.PageDown()
		return t, nil
	}

	var cmd tea.Cmd
	t.input, cmd = t.input.Update(msg)
	return t, cmd
}

func (t *TUI) handleSubmit() (tea.Model, tea.Cmd) {
	input := strings.TrimSpace(t.input.Value())
	if input == "" {
		return t, nil
	}

	t.cmdHistory = append(t.cmdHistory, input)
	if len(t.cmdHistory) > maxHistory {
		t.cmdHistory = t.cmdHistory[len(t.cmdHistory)-maxHistory:]
	}
	t.historyIdx = len(t.cmdHistory)
	t.input.Reset()

	if strings.HasPrefix(input, "/") {
		return t.handleCommand(input)
	}

	t.addMessage(Message{Role: roleUser, Text: input})
	t.state = StateThinking
	t.rebuildViewportContent()
	t.viewport.GotoBottom()
	return t, tea.Batch(t.spinner.Tick, t.startStream(input))
}

// handleCommand dispatches slash commands.
func (t *TUI) handleCommand(input string) (tea.Model, tea.Cmd) {
	cmd := strings.Fields(input)[0]

	switch cmd {
	case "/help":
		t.addMessage(Message{Role: roleSystem, Text: helpText})

	case "/clear":
		t.history.Reset()
		t.messages = nil
		t.addMessage(Message{Role: roleSystem, Text: "会話履歴をクリアしました。"})

	case "/agents":
		t.addMessage(Message{Role: roleSystem, Text: t.agentList()})

	case "/agent":
		t.switchAgent(strings.TrimSpace(strings.TrimPrefix(input, "/agent")))

	case "/exit", "/quit":
		return t, t.cleanup()

	default:
		t.addMessage(Message{Role: roleError, Text: fmt.Sprintf("不明なコマンドです: %s (/help で一覧)", cmd)})
	}

	t.rebuildViewportContent()
	t.viewport.GotoBottom()
	return t, nil
}

const helpText = `利用できるコマンド:
  /help           このヘルプを表示
  /clear          会話履歴をクリア
  /agents         エージェント一覧を表示
  /agent <type>   エージェントを切り替え
  /exit           終了

入力のヒント:
  検索: <クエリ>   そのクエリで必ず検索します
  source: <番号>   直前の検索結果の詳細を表示します`

// agentList renders the available agent types, active one first marked.
func (t *TUI) agentList() string {
	available := agent.Available()
	names := make([]string, 0, len(available))
	for name := range available {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	_, _ = b.WriteString("エージェント一覧:\n")
	for _, name := range names {
		marker := "  "
		if name == t.responder.Name() {
			marker = "* "
		}
		fmt.Fprintf(&b, "%s%-10s %s\n", marker, name, available[name])
	}
	return strings.TrimRight(b.String(), "\n")
}

// switchAgent replaces the active responder with a freshly built one.
func (t *TUI) switchAgent(agentType string) {
	if t.agentFactory == nil {
		t.addMessage(Message{Role: roleError, Text: "このセッションではエージェントを切り替えられません。"})
		return
	}
	if agentType == "" {
		t.addMessage(Message{Role: roleError, Text: "使い方: /agent <type> (/agents で一覧)"})
		return
	}

	responder, err := t.agentFactory(agentType)
	if err != nil {
		t.addMessage(Message{Role: roleError, Text: fmt.Sprintf("切り替えに失敗しました: %v", err)})
		return
	}

	t.responder = responder
	t.addMessage(Message{Role: roleSystem, Text: fmt.Sprintf("エージェントを %s に切り替えました。", responder.Name())})
}

// navigateHistory moves through command history. direction is -1 (older) or
// +1 (newer).
func (t *TUI) navigateHistory(direction int) {
	if len(t.cmdHistory) == 0 {
		return
	}

	idx := t.historyIdx + direction
	switch {
	case idx < 0:
		return
	case idx >= len(t.cmdHistory):
		// Past the newest entry: clear the input.
		t.historyIdx = len(t.cmdHistory)
		t.input.Reset()
		return
	}

	t.historyIdx = idx
	t.input.SetValue(t.cmdHistory[idx])
	t.input.CursorEnd()
}

// cancelStream aborts a running turn. The goroutine delivers the resulting
// context.Canceled through the normal event path.
func (t *TUI) cancelStream() {
	if t.streamCancel != nil {
		t.streamCancel()
	}
}

// cleanup cancels all outstanding work and quits.
func (t *TUI) cleanup() tea.Cmd {
	t.cancelStream()
	t.ctxCancel()
	return tea.Quit
}
