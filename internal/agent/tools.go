package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/kztmrk/kaiwa/internal/llm"
	"github.com/kztmrk/kaiwa/internal/log"
)

const defaultToolsSystemMessage = "You are a helpful assistant with access to tools."

// toolCallPattern matches TOOL[name](args) invocations in model output.
var toolCallPattern = regexp.MustCompile(`TOOL\[(.*?)\]\((.*?)\)`)

// Tool is a named function the model can invoke through the text protocol.
type Tool struct {
	Name        string
	Description string
	// Schema documents the argument for the prompt. Optional.
	Schema *jsonschema.Schema
	// Run executes the tool with the raw argument text.
	Run func(ctx context.Context, args string) (string, error)
}

// CalculatorInput documents the calculator tool argument.
type CalculatorInput struct {
	Expression string `json:"expression" jsonschema_description:"Arithmetic expression to evaluate, e.g. (2+3)*4"`
}

// ClockInput documents the clock tool argument.
type ClockInput struct {
	Layout string `json:"layout,omitempty" jsonschema_description:"Optional Go time layout; defaults to RFC3339"`
}

// ToolUsing lets the model call registered tools via TOOL[name](args)
// markers, which are replaced by tool output before the response reaches the
// user. The completion is buffered rather than streamed raw so the user never
// sees unexpanded markers.
type ToolUsing struct {
	client llm.Client
	system string
	logger log.Logger
	tools  map[string]Tool
	order  []string
}

// NewToolUsing creates the tool-invocation strategy with the built-in
// calculator and clock tools registered.
func NewToolUsing(cfg Config, deps Deps) *ToolUsing {
	system := cfg.SystemMessage
	if system == "" {
		system = defaultToolsSystemMessage
	}
	t := &ToolUsing{
		client: deps.Client,
		system: system,
		logger: deps.Logger.With("agent", TypeTools),
		tools:  make(map[string]Tool),
	}
	t.Register(calculatorTool())
	t.Register(clockTool())
	return t
}

// Name implements Responder.
func (t *ToolUsing) Name() string { return TypeTools }

// Register adds a tool, replacing any existing tool with the same name.
func (t *ToolUsing) Register(tool Tool) {
	if _, exists := t.tools[tool.Name]; !exists {
		t.order = append(t.order, tool.Name)
	}
	t.tools[tool.Name] = tool
}

// Respond implements Responder.
func (t *ToolUsing) Respond(ctx context.Context, input string, opts Options) (*Reply, error) {
	system := t.system + "\n\n" + t.formatToolsForPrompt()

	resp, err := t.client.StreamCompletion(ctx, llm.Request{
		Messages: buildMessages(system, opts.History, input),
	}, nil)
	if err != nil {
		if resp != nil && resp.Content != "" {
			content := t.processToolCalls(ctx, resp.Content)
			_ = opts.emit(ctx, content)
			return &Reply{Content: content, Incomplete: resp.Incomplete}, err
		}
		return nil, err
	}

	content := t.processToolCalls(ctx, resp.Content)
	if err := opts.emit(ctx, content); err != nil {
		return &Reply{Content: content}, err
	}
	return &Reply{Content: content}, nil
}

// formatToolsForPrompt renders the registry for the system message.
func (t *ToolUsing) formatToolsForPrompt() string {
	var b strings.Builder
	b.WriteString("You have access to the following tools:\n\n")
	for _, name := range t.order {
		tool := t.tools[name]
		fmt.Fprintf(&b, "- %s: %s\n", tool.Name, tool.Description)
		if tool.Schema != nil {
			if data, err := json.Marshal(tool.Schema); err == nil {
				fmt.Fprintf(&b, "  argument schema: %s\n", data)
			}
		}
	}
	b.WriteString("\nTo use a tool, use the following format: TOOL[tool_name](tool_arguments)\n")
	b.WriteString("For example: TOOL[calculator](2+2)\n")
	return b.String()
}

// processToolCalls replaces every TOOL[name](args) marker with the tool's
// result, or an error note when the tool is missing or fails.
func (t *ToolUsing) processToolCalls(ctx context.Context, text string) string {
	return toolCallPattern.ReplaceAllStringFunc(text, func(call string) string {
		match := toolCallPattern.FindStringSubmatch(call)
		name, args := match[1], match[2]

		tool, ok := t.tools[name]
		if !ok {
			return fmt.Sprintf("[Error: Tool '%s' not found]", name)
		}
		result, err := tool.Run(ctx, args)
		if err != nil {
			t.logger.Warn("tool execution failed", "tool", name, "error", err)
			return fmt.Sprintf("[Error executing tool '%s': %v]", name, err)
		}
		return fmt.Sprintf("[%s result: %s]", name, result)
	})
}

func calculatorTool() Tool {
	schema, err := jsonschema.For[CalculatorInput](nil)
	if err != nil {
		schema = nil
	}
	return Tool{
		Name:        "calculator",
		Description: "Evaluates an arithmetic expression with +, -, *, / and parentheses",
		Schema:      schema,
		Run: func(_ context.Context, args string) (string, error) {
			value, err := evalExpression(args)
			if err != nil {
				return "", err
			}
			return formatNumber(value), nil
		},
	}
}

func clockTool() Tool {
	schema, err := jsonschema.For[ClockInput](nil)
	if err != nil {
		schema = nil
	}
	return Tool{
		Name:        "clock",
		Description: "Returns the current date and time",
		Schema:      schema,
		Run: func(_ context.Context, args string) (string, error) {
			layout := strings.TrimSpace(args)
			if layout == "" {
				layout = time.RFC3339
			}
			return time.Now().Format(layout), nil
		},
	}
}
