package agent

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kztmrk/kaiwa/internal/llm"
	"github.com/kztmrk/kaiwa/internal/log"
)

func newToolAgent(client llm.Client) *ToolUsing {
	return NewToolUsing(Config{}, Deps{Client: client, Logger: log.NewNop()})
}

func TestToolUsing_ProcessToolCalls(t *testing.T) {
	t.Parallel()

	agent := newToolAgent(&fakeClient{})
	agent.Register(Tool{
		Name:        "boom",
		Description: "always fails",
		Run: func(context.Context, string) (string, error) {
			return "", errors.New("kaboom")
		},
	})

	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			"calculator substitution",
			"答えは TOOL[calculator](2+3*4) です。",
			"答えは [calculator result: 14] です。",
		},
		{
			"multiple calls",
			"TOOL[calculator](1+1) と TOOL[calculator](10/4)",
			"[calculator result: 2] と [calculator result: 2.5]",
		},
		{
			"unknown tool",
			"TOOL[weather](tokyo)",
			"[Error: Tool 'weather' not found]",
		},
		{
			"failing tool",
			"TOOL[boom](x)",
			"[Error executing tool 'boom': kaboom]",
		},
		{
			"no calls",
			"普通の回答です。",
			"普通の回答です。",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := agent.processToolCalls(context.Background(), tt.in); got != tt.want {
				t.Errorf("processToolCalls() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestToolUsing_RespondEmitsProcessedTextOnce(t *testing.T) {
	t.Parallel()

	client := &fakeClient{fn: func(req llm.Request) (string, error) {
		if !strings.Contains(systemOf(req), "TOOL[tool_name](tool_arguments)") {
			t.Error("system message missing tool invocation format")
		}
		return "計算結果: TOOL[calculator](10/4)", nil
	}}
	agent := newToolAgent(client)

	rec := &chunkRecorder{}
	reply, err := agent.Respond(context.Background(), "10を4で割って", rec.options(nil))
	if err != nil {
		t.Fatalf("Respond() error = %v", err)
	}

	want := "計算結果: [calculator result: 2.5]"
	if reply.Content != want {
		t.Errorf("Content = %q, want %q", reply.Content, want)
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.chunks) != 1 || rec.chunks[0] != want {
		t.Errorf("chunks = %v, want the processed text emitted once", rec.chunks)
	}
}

func TestClockTool(t *testing.T) {
	t.Parallel()

	tool := clockTool()
	out, err := tool.Run(context.Background(), "")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if _, err := time.Parse(time.RFC3339, out); err != nil {
		t.Errorf("Run() = %q, want RFC3339 timestamp: %v", out, err)
	}
}

func TestEvalExpression(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want float64
	}{
		{"2+3*4", 14},
		{"(2+3)*4", 20},
		{"-5+3", -2},
		{"10/4", 2.5},
		{"1.5 * 2", 3},
		{" 7 - 2 - 1 ", 4},
		{"2*(3+(4-1))", 12},
	}
	for _, tt := range tests {
		got, err := evalExpression(tt.in)
		if err != nil {
			t.Errorf("evalExpression(%q) error = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("evalExpression(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestEvalExpression_Invalid(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"", "2+", "1/0", "abc", "(1+2", "1 2", "2**3"} {
		if _, err := evalExpression(in); !errors.Is(err, ErrBadExpression) {
			t.Errorf("evalExpression(%q) = %v, want ErrBadExpression", in, err)
		}
	}
}

func TestFormatNumber(t *testing.T) {
	t.Parallel()

	if got := formatNumber(14); got != "14" {
		t.Errorf("formatNumber(14) = %q", got)
	}
	if got := formatNumber(2.5); got != "2.5" {
		t.Errorf("formatNumber(2.5) = %q", got)
	}
}
