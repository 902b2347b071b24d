// Package tui provides the Bubble Tea terminal interface for the chat
// service.
package tui

import (
	"context"
	"errors"
	"strings"
	"time"

	"charm.land/bubbles/v2/help"
	"charm.land/bubbles/v2/key"
	"charm.land/bubbles/v2/spinner"
	"charm.land/bubbles/v2/textarea"
	"charm.land/bubbles/v2/viewport"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/kztmrk/kaiwa/internal/agent"
	"github.com/kztmrk/kaiwa/internal/chat"
)

// State represents the TUI state machine.
type State int

// TUI state machine states.
const (
	StateInput     State = iota // Awaiting user input
	StateThinking               // Processing request
	StateStreaming              // Streaming response
)

// Memory bounds to prevent unbounded growth.
const (
	maxMessages = 100 // Maximum messages stored
	maxHistory  = 100 // Maximum command history entries
)

// streamTimeout is the maximum time for a single turn.
const streamTimeout = 5 * time.Minute

// Message role constants for display.
const (
	roleUser      = "user"
	roleAssistant = "assistant"
	roleSystem    = "system"
	roleError     = "error"
)

// Layout constants for viewport height calculation.
const (
	separatorLines = 2 // Separator lines above and below input
	helpLines      = 1 // Help bar height
	promptLines    = 1 // Prompt prefix line
	minViewport    = 3 // Minimum viewport height
)

// Message represents a conversation message for display.
type Message struct {
	Role string // "user", "assistant", "system", "error"
	Text string
}

// TUI is the Bubble Tea model for the chat terminal interface.
type TUI struct {
	// Input (textarea for multi-line support, Shift+Enter for newline)
	input      textarea.Model
	cmdHistory []string
	historyIdx int

	// State
	state        State
	lastCtrlC    time.Time
	searchStatus string // shown while the agent searches, empty when idle

	// Output
	spinner  spinner.Model
	output   strings.Builder
	viewBuf  strings.Builder // Reusable buffer for View() to reduce allocations
	messages []Message

	// Scrollable message viewport
	viewport viewport.Model

	// Help bar for keyboard shortcuts
	help help.Model
	keys keyMap

	// Stream management. Bubble Tea's event loop provides synchronization;
	// a single union channel with discriminated events keeps select logic
	// simple.
	streamCancel  context.CancelFunc
	streamEventCh <-chan streamEvent

	// Dependencies
	responder    agent.Responder
	agentFactory func(agentType string) (agent.Responder, error)
	history      *chat.History
	ctx          context.Context
	ctxCancel    context.CancelFunc // For canceling all operations on exit

	// Dimensions
	width  int
	height int

	// Styles
	styles Styles

	// Markdown rendering (nil = graceful degradation to plain text)
	markdown *markdownRenderer
}

// SetAgentFactory enables the /agent command to switch strategies at
// runtime. Without a factory the command reports that switching is
// unavailable.
func (t *TUI) SetAgentFactory(f func(agentType string) (agent.Responder, error)) {
	t.agentFactory = f
}

// addMessage appends a message and enforces the maxMessages bound.
func (t *TUI) addMessage(msg Message) {
	t.messages = append(t.messages, msg)
	if len(t.messages) > maxMessages {
		t.messages = t.messages[len(t.messages)-maxMessages:]
	}
}

// New creates a TUI model for chat interaction.
//
// ctx MUST be the same context passed to tea.WithContext() so cancellation
// behaves consistently.
func New(ctx context.Context, responder agent.Responder, history *chat.History) (*TUI, error) {
	if responder == nil {
		return nil, errors.New("tui.New: responder is required")
	}
	if history == nil {
		return nil, errors.New("tui.New: history is required")
	}
	if ctx == nil {
		return nil, errors.New("tui.New: ctx is required")
	}

	ctx, cancel := context.WithCancel(ctx)

	// Enter submits, Shift+Enter adds newline (default behavior).
	ta := textarea.New()
	ta.Placeholder = "質問をどうぞ... (検索: で検索を強制)"
	ta.SetHeight(1)
	ta.SetWidth(120) // updated on WindowSizeMsg
	ta.MaxWidth = 0
	ta.ShowLineNumbers = false

	// Minimal styling: no backgrounds, just text.
	cleanStyle := textarea.StyleState{
		Base:        lipgloss.NewStyle(),
		Text:        lipgloss.NewStyle(),
		Placeholder: lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		Prompt:      lipgloss.NewStyle(),
	}
	ta.SetStyles(textarea.Styles{
		Focused: cleanStyle,
		Blurred: cleanStyle,
	})
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	// Viewport keys are routed explicitly in handleKey to avoid conflicts
	// with textarea/history navigation.
	vp := viewport.New(viewport.WithWidth(80), viewport.WithHeight(20))
	vp.MouseWheelEnabled = true
	vp.SoftWrap = true
	vp.KeyMap = viewport.KeyMap{}

	h := help.New()

	return &TUI{
		responder:  responder,
		history:    history,
		ctx:        ctx,
		ctxCancel:  cancel,
		input:      ta,
		spinner:    sp,
		viewport:   vp,
		help:       h,
		keys:       newKeyMap(),
		styles:     DefaultStyles(),
		cmdHistory: make([]string, 0, maxHistory),
		markdown:   newMarkdownRenderer(80),
		width:      80, // Default width until WindowSizeMsg arrives
	}, nil
}

// Init implements tea.Model.
func (t *TUI) Init() tea.Cmd {
	return tea.Batch(
		textarea.Blink,
		t.spinner.Tick,
		t.input.Focus(),
	)
}

// Update implements tea.Model.
func (t *TUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		return t.handleKey(msg)

	case tea.WindowSizeMsg:
		t.width = msg.Width
		t.height = msg.Height

		inputHeight := t.input.Height() + promptLines
		fixedHeight := separatorLines + inputHeight + helpLines
		vpHeight := max(msg.Height-fixedHeight, minViewport)

		t.viewport.SetWidth(msg.Width)
		t.viewport.SetHeight(vpHeight)
		t.input.SetWidth(msg.Width - 4) // Room for "> " prompt
		t.help.SetWidth(msg.Width)
		t.markdown.UpdateWidth(msg.Width)

		t.rebuildViewportContent()
		return t, nil

	case tea.MouseWheelMsg:
		var cmd tea.Cmd
		t.viewport, cmd = t.viewport.Update(msg)
		return t, cmd

	case spinner.TickMsg:
		var cmd tea.Cmd
		t.spinner, cmd = t.spinner.Update(msg)
		if t.state == StateThinking {
			t.rebuildViewportContent()
		}
		return t, cmd

	case streamStartedMsg:
		t.streamCancel = msg.cancel
		t.streamEventCh = msg.eventCh
		t.state = StateStreaming
		t.rebuildViewportContent()
		t.viewport.GotoBottom()
		return t, listenForStream(msg.eventCh)

	case streamTextMsg:
		t.output.WriteString(msg.text)
		t.rebuildViewportContent()
		t.viewport.GotoBottom()
		return t, listenForStream(t.streamEventCh)

	case streamSearchMsg:
		t.searchStatus = msg.status
		t.rebuildViewportContent()
		t.viewport.GotoBottom()
		return t, listenForStream(t.streamEventCh)

	case streamDoneMsg:
		t.finishStream()

		// Prefer the reply's final content over accumulated chunks; it
		// covers strategies that emit their output in one piece.
		finalText := msg.reply.Content
		if finalText == "" {
			finalText = t.output.String()
		}

		t.addMessage(Message{Role: roleAssistant, Text: finalText})
		t.output.Reset()
		t.rebuildViewportContent()
		t.viewport.GotoBottom()
		return t, t.input.Focus()

	case streamErrorMsg:
		t.finishStream()

		// Keep partial text visible, clearly flagged.
		if t.output.Len() > 0 {
			t.addMessage(Message{Role: roleAssistant, Text: t.output.String() + "\n\n(未完了の応答)"})
		}

		switch {
		case errors.Is(msg.err, context.Canceled):
			t.addMessage(Message{Role: roleSystem, Text: "(キャンセルしました)"})
		case errors.Is(msg.err, context.DeadlineExceeded):
			t.addMessage(Message{Role: roleError, Text: "応答がタイムアウトしました (5分)。質問を分割してみてください。"})
		default:
			t.addMessage(Message{Role: roleError, Text: msg.err.Error()})
		}
		t.output.Reset()
		t.rebuildViewportContent()
		t.viewport.GotoBottom()
		return t, t.input.Focus()
	}

	var cmd tea.Cmd
	t.input, cmd = t.input.Update(msg)
	return t, cmd
}

// finishStream releases stream resources and returns to the input state.
func (t *TUI) finishStream() {
	t.state = StateInput
	t.searchStatus = ""
	if t.streamCancel != nil {
		t.streamCancel()
		t.streamCancel = nil
	}
	t.streamEventCh = nil
}

// View implements tea.Model.
func (t *TUI) View() tea.View {
	t.viewBuf.Reset()

	_, _ = t.viewBuf.WriteString(t.viewport.View())
	_, _ = t.viewBuf.WriteString("\n")

	_, _ = t.viewBuf.WriteString(t.renderSeparator())
	_, _ = t.viewBuf.WriteString("\n")

	// Input is always visible so users can prepare the next message while
	// a response streams.
	_, _ = t.viewBuf.WriteString(t.styles.Prompt.Render("> "))
	_, _ = t.viewBuf.WriteString(t.input.View())
	_, _ = t.viewBuf.WriteString("\n")

	_, _ = t.viewBuf.WriteString(t.renderSeparator())
	_, _ = t.viewBuf.WriteString("\n")

	_, _ = t.viewBuf.WriteString(t.renderStatusBar())

	v := tea.NewView(t.viewBuf.String())
	v.AltScreen = true
	return v
}

// rebuildViewportContent reconstructs the viewport content from messages and
// state. Called whenever messages, streaming output, or state changes.
func (t *TUI) rebuildViewportContent() {
	var b strings.Builder

	_, _ = b.WriteString(t.styles.RenderBanner())
	_, _ = b.WriteString("\n")
	_, _ = b.WriteString(t.styles.RenderWelcomeTips())
	_, _ = b.WriteString("\n")

	for _, msg := range t.messages {
		switch msg.Role {
		case roleUser:
			_, _ = b.WriteString(t.styles.User.Render("You> "))
			_, _ = b.WriteString(msg.Text)
		case roleAssistant:
			_, _ = b.WriteString(t.styles.Assistant.Render("Kaiwa> "))
			_, _ = b.WriteString(t.markdown.Render(msg.Text))
		case roleSystem:
			_, _ = b.WriteString(t.styles.System.Render(msg.Text))
		case roleError:
			_, _ = b.WriteString(t.styles.Error.Render("Error: " + msg.Text))
		}
		_, _ = b.WriteString("\n\n")
	}

	if t.state == StateStreaming && t.output.Len() > 0 {
		_, _ = b.WriteString(t.styles.Assistant.Render("Kaiwa> "))
		_, _ = b.WriteString(t.output.String())
		_, _ = b.WriteString("\n\n")
	}

	if t.searchStatus != "" {
		_, _ = b.WriteString(t.styles.Search.Render(t.searchStatus))
		_, _ = b.WriteString("\n\n")
	}

	if t.state == StateThinking {
		_, _ = b.WriteString(t.spinner.View())
		_, _ = b.WriteString(" 考え中...\n\n")
	}

	t.viewport.SetContent(b.String())
}

// renderSeparator returns a horizontal line separator.
func (t *TUI) renderSeparator() string {
	width := t.width
	if width <= 0 {
		width = 80
	}
	return t.styles.Separator.Render(strings.Repeat("─", width))
}

// renderStatusBar returns state-appropriate keyboard shortcut help.
func (t *TUI) renderStatusBar() string {
	var bindings []key.Binding
	switch t.state {
	case StateInput:
		bindings = []key.Binding{
			t.keys.Submit, t.keys.NewLine, t.keys.History,
			t.keys.Cancel, t.keys.Quit, t.keys.ScrollUp,
		}
	case StateThinking, StateStreaming:
		bindings = []key.Binding{
			t.keys.EscCancel, t.keys.Cancel,
			t.keys.ScrollUp, t.keys.ScrollDown,
		}
	}
	return t.help.ShortHelpView(bindings)
}
