package agent

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/kztmrk/kaiwa/internal/llm"
	"github.com/kztmrk/kaiwa/internal/log"
)

const defaultContextSystemMessage = "You are a helpful assistant with access to relevant context."

// maxContextDocs caps how many documents are injected per turn.
const maxContextDocs = 3

// Document is a stored reference text the context strategy can inject.
type Document struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// ContextAware injects stored documents relevant to the user's question
// ahead of the completion.
type ContextAware struct {
	client llm.Client
	system string
	logger log.Logger

	mu   sync.RWMutex
	docs []Document
}

// NewContextAware creates the context-injection strategy.
func NewContextAware(cfg Config, deps Deps) *ContextAware {
	system := cfg.SystemMessage
	if system == "" {
		system = defaultContextSystemMessage
	}
	return &ContextAware{
		client: deps.Client,
		system: system,
		logger: deps.Logger.With("agent", TypeContext),
	}
}

// Name implements Responder.
func (c *ContextAware) Name() string { return TypeContext }

// AddDocument stores a document for later retrieval.
func (c *ContextAware) AddDocument(doc Document) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.docs = append(c.docs, doc)
}

// Respond implements Responder.
func (c *ContextAware) Respond(ctx context.Context, input string, opts Options) (*Reply, error) {
	relevant := c.retrieveRelevant(input)
	system := c.system
	if block := formatContext(relevant); block != "" {
		system += "\n\n" + block
	}

	c.logger.Debug("responding with context", "docs", len(relevant))

	resp, err := c.client.StreamCompletion(ctx, llm.Request{
		Messages: buildMessages(system, opts.History, input),
	}, opts.OnChunk)
	if err != nil {
		if resp != nil {
			return &Reply{Content: resp.Content, Incomplete: resp.Incomplete}, err
		}
		return nil, err
	}
	return &Reply{Content: resp.Content}, nil
}

// retrieveRelevant scores stored documents by keyword overlap with the query
// and returns the best matches, at most maxContextDocs.
func (c *ContextAware) retrieveRelevant(query string) []Document {
	keywords := strings.Fields(strings.ToLower(query))
	if len(keywords) == 0 {
		return nil
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	type scored struct {
		doc   Document
		score int
	}
	var matches []scored
	for _, doc := range c.docs {
		content := strings.ToLower(doc.Content)
		score := 0
		for _, kw := range keywords {
			if strings.Contains(content, kw) {
				score++
			}
		}
		if score > 0 {
			matches = append(matches, scored{doc: doc, score: score})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].score > matches[j].score
	})

	result := make([]Document, 0, maxContextDocs)
	for i, m := range matches {
		if i >= maxContextDocs {
			break
		}
		result = append(result, m.doc)
	}
	return result
}

// formatContext renders retrieved documents as a prompt block.
func formatContext(docs []Document) string {
	if len(docs) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Here is some relevant information that might help you answer:\n\n")
	for i, doc := range docs {
		fmt.Fprintf(&b, "Document %d", i+1)
		if doc.Title != "" {
			fmt.Fprintf(&b, " (%s)", doc.Title)
		}
		fmt.Fprintf(&b, ":\n%s\n\n", doc.Content)
	}
	return strings.TrimSpace(b.String())
}
