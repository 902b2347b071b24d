// Package agent implements the response strategies that turn user input into
// streamed assistant replies.
//
// Four strategies exist, selected by configuration: direct pass-through,
// context injection, tool invocation, and search augmentation. All of them
// speak through the same Responder interface so the front ends (TUI, HTTP
// API) never know which one is active.
package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/kztmrk/kaiwa/internal/chat"
	"github.com/kztmrk/kaiwa/internal/fetch"
	"github.com/kztmrk/kaiwa/internal/llm"
	"github.com/kztmrk/kaiwa/internal/log"
	"github.com/kztmrk/kaiwa/internal/search"
)

// Agent type identifiers accepted by New.
const (
	TypeDirect    = "direct"
	TypeContext   = "context"
	TypeTools     = "tools"
	TypeWebSearch = "websearch"
)

// ErrUnknownType indicates an unrecognized agent type.
var ErrUnknownType = errors.New("unknown agent type")

// Stage identifies a progress notification during a turn.
type Stage string

const (
	// StageSearching is emitted when a web search starts.
	StageSearching Stage = "searching"
	// StageRefining is emitted when a thin result set triggers a retry with
	// a regenerated query.
	StageRefining Stage = "refining"
	// StageSearchDone is emitted when searching finishes, successfully or not.
	StageSearchDone Stage = "search_done"
)

// Status is a progress notification for front ends. Query is set for the
// searching and refining stages.
type Status struct {
	Stage Stage
	Query string
}

// Options carries per-turn inputs.
type Options struct {
	// History is the prior conversation, oldest first. The agent never
	// mutates it.
	History []chat.Message

	// OnChunk receives response text as it streams. May be nil.
	OnChunk llm.StreamCallback

	// OnStatus receives progress notifications. May be nil.
	OnStatus func(ctx context.Context, status Status)
}

func (o Options) notify(ctx context.Context, status Status) {
	if o.OnStatus != nil {
		o.OnStatus(ctx, status)
	}
}

func (o Options) emit(ctx context.Context, chunk string) error {
	if o.OnChunk == nil {
		return nil
	}
	return o.OnChunk(ctx, chunk)
}

// Reply is the final state of one turn.
type Reply struct {
	// Content is the full assistant response.
	Content string
	// Incomplete marks a response cut short by a stream failure.
	Incomplete bool
	// SearchPerformed reports whether a web search ran this turn.
	SearchPerformed bool
	// SearchQuery is the final query used, when a search ran.
	SearchQuery string
	// Results are the merged search results backing the citations.
	Results []search.Result
}

// Responder handles one user turn.
//
// A mid-stream completion failure returns the partial reply flagged
// incomplete together with an error wrapping llm.ErrStreamFailed. Search
// failures never surface as errors; the strategy degrades to a plain
// completion.
type Responder interface {
	Name() string
	Respond(ctx context.Context, input string, opts Options) (*Reply, error)
}

// Config selects and tunes a strategy.
type Config struct {
	// Type is one of the Type* constants.
	Type string
	// SystemMessage overrides the strategy's default system prompt.
	SystemMessage string
	// Search tunes the websearch strategy; ignored by the others.
	Search SearchSettings
}

// SearchSettings controls the websearch strategy.
type SearchSettings struct {
	// Enabled allows searching without an explicit trigger token.
	Enabled bool
	// MaxResults caps merged results.
	MaxResults int
	// Region is the provider region code.
	Region string
	// NewsEnabled reserves slots for recent results.
	NewsEnabled bool
	// MaxQueryRefinements bounds retries with regenerated queries.
	MaxQueryRefinements int
}

// Deps are the collaborators a strategy may need.
type Deps struct {
	Client  llm.Client
	Search  search.Provider
	Fetcher fetch.Fetcher
	Logger  log.Logger
}

// New builds the Responder for cfg.Type.
func New(cfg Config, deps Deps) (Responder, error) {
	if deps.Client == nil {
		return nil, fmt.Errorf("agent: completion client is required")
	}
	if deps.Logger == nil {
		deps.Logger = log.NewNop()
	}

	switch cfg.Type {
	case TypeDirect, "":
		return NewDirect(cfg, deps), nil
	case TypeContext:
		return NewContextAware(cfg, deps), nil
	case TypeTools:
		return NewToolUsing(cfg, deps), nil
	case TypeWebSearch:
		if deps.Search == nil {
			return nil, fmt.Errorf("agent: search provider is required for the websearch type")
		}
		return NewWebSearch(cfg, deps), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, cfg.Type)
	}
}

// Available lists the agent types with a short description each, for the
// /agents endpoint and the TUI agent switcher.
func Available() map[string]string {
	return map[string]string{
		TypeDirect:    "forwards messages straight to the model",
		TypeContext:   "injects relevant stored documents into the prompt",
		TypeTools:     "lets the model invoke registered tools",
		TypeWebSearch: "augments answers with web search results and citations",
	}
}

// buildMessages assembles the standard prompt: system message, prior
// conversation, then the user turn.
func buildMessages(system string, history []chat.Message, input string) []chat.Message {
	messages := make([]chat.Message, 0, len(history)+2)
	if system != "" {
		messages = append(messages, chat.System(system))
	}
	messages = append(messages, history...)
	messages = append(messages, chat.User(input))
	return messages
}
