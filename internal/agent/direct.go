package agent

import (
	"context"

	"github.com/kztmrk/kaiwa/internal/llm"
	"github.com/kztmrk/kaiwa/internal/log"
)

const defaultDirectSystemMessage = "あなたは親切で優秀なアシスタントです。ユーザーの質問に正確かつ簡潔に答えてください。"

// Direct forwards the conversation straight to the model.
type Direct struct {
	client llm.Client
	system string
	logger log.Logger
}

// NewDirect creates the pass-through strategy.
func NewDirect(cfg Config, deps Deps) *Direct {
	system := cfg.SystemMessage
	if system == "" {
		system = defaultDirectSystemMessage
	}
	return &Direct{
		client: deps.Client,
		system: system,
		logger: deps.Logger.With("agent", TypeDirect),
	}
}

// Name implements Responder.
func (d *Direct) Name() string { return TypeDirect }

// Respond implements Responder.
func (d *Direct) Respond(ctx context.Context, input string, opts Options) (*Reply, error) {
	resp, err := d.client.StreamCompletion(ctx, llm.Request{
		Messages: buildMessages(d.system, opts.History, input),
	}, opts.OnChunk)
	if err != nil {
		if resp != nil {
			return &Reply{Content: resp.Content, Incomplete: resp.Incomplete}, err
		}
		return nil, err
	}
	return &Reply{Content: resp.Content}, nil
}
