package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/kztmrk/kaiwa/internal/chat"
	"github.com/kztmrk/kaiwa/internal/llm"
)

// searchDecision is the model's verdict on whether a message needs a search.
type searchDecision struct {
	ShouldSearch bool   `json:"should_search" jsonschema_description:"Whether a web search would improve the answer"`
	Reason       string `json:"reason" jsonschema_description:"Short justification for the decision"`
}

// searchQuery is a model-generated query for the search provider.
type searchQuery struct {
	Query    string   `json:"query" jsonschema_description:"Search query, concise, under 100 characters"`
	Keywords []string `json:"keywords,omitempty" jsonschema_description:"Key terms extracted from the question"`
}

// queryRefinement is the model's proposal after a thin result set.
type queryRefinement struct {
	ShouldRefine bool   `json:"should_refine" jsonschema_description:"Whether another search with a different query is worthwhile"`
	RefinedQuery string `json:"refined_query" jsonschema_description:"The new query; must differ from the original"`
	Reason       string `json:"reason" jsonschema_description:"Short justification"`
}

// dateExtraction is the model's answer when a result carries no structured
// publication date.
type dateExtraction struct {
	DateFound bool   `json:"date_found" jsonschema_description:"Whether a publication date could be identified"`
	Date      string `json:"date,omitempty" jsonschema_description:"The date in YYYY-MM-DD format"`
}

// sourceClassification is the model's trust classification for a result the
// URL heuristics could not place.
type sourceClassification struct {
	SourceType string  `json:"source_type" jsonschema_description:"一次情報, 二次情報 or 不明"`
	Confidence float64 `json:"confidence,omitempty" jsonschema_description:"Classification confidence between 0 and 1"`
	Reason     string  `json:"reason,omitempty" jsonschema_description:"Short justification"`
}

// keyPoints is the model's summary of a fetched source page.
type keyPoints struct {
	Points []string `json:"points" jsonschema_description:"The main points of the page, each a single sentence"`
}

// askStructured runs an internal completion that must return a JSON object
// matching T. The schema for T is embedded in the prompt and the provider is
// asked for JSON output; the reply is still scanned for the first JSON object
// because not every deployment honors the response format.
func askStructured[T any](ctx context.Context, client llm.Client, system, user string) (*T, error) {
	schema, err := jsonschema.For[T](nil)
	if err != nil {
		return nil, fmt.Errorf("derive schema: %w", err)
	}
	schemaJSON, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}

	system = fmt.Sprintf("%s\n\n必ず次のJSONスキーマに従ったJSONオブジェクトのみを返してください:\n%s", system, schemaJSON)

	content, err := llm.Complete(ctx, client, llm.Request{
		Messages: []chat.Message{chat.System(system), chat.User(user)},
		JSONOnly: true,
	})
	if err != nil {
		return nil, err
	}

	var out T
	if err := json.Unmarshal([]byte(extractJSON(content)), &out); err != nil {
		return nil, fmt.Errorf("parse structured response: %w", err)
	}
	return &out, nil
}

// extractJSON returns the first balanced JSON object embedded in text, or
// "{}" when none is found. Models wrap JSON in prose or code fences often
// enough that plain unmarshal is not reliable.
func extractJSON(text string) string {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "{}"
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return text[start : i+1]
				}
			}
		}
	}
	return "{}"
}
