package agent

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/kztmrk/kaiwa/internal/fetch"
	"github.com/kztmrk/kaiwa/internal/llm"
	"github.com/kztmrk/kaiwa/internal/log"
	"github.com/kztmrk/kaiwa/internal/search"
)

// triggerPrefixes force a search with the remainder as the verbatim query,
// even when searching is disabled in configuration.
var triggerPrefixes = []string{"検索:", "search:"}

// sourcePrefixes followed by a result number expand one result from the last
// search into a detailed view.
var sourcePrefixes = []string{"source:", "ソース:", "出典:", "引用:"}

const (
	// maxQueryRunes caps generated search queries.
	maxQueryRunes = 100
	// usableResultThreshold is the result count below which a refinement
	// pass is attempted.
	usableResultThreshold = 2
	// sourceBodyRunes caps the page body shown in a source expansion.
	sourceBodyRunes = 2000
)

// WebSearch augments completions with web search results and citations.
//
// Search never blocks a reply: provider failures and empty result sets
// degrade to a plain completion. Only a completion stream failure is
// terminal.
type WebSearch struct {
	client   llm.Client
	provider search.Provider
	fetcher  fetch.Fetcher
	logger   log.Logger
	system   string
	settings SearchSettings

	mu          sync.Mutex
	lastResults []search.Result
}

// NewWebSearch creates the search-augmented strategy.
func NewWebSearch(cfg Config, deps Deps) *WebSearch {
	system := cfg.SystemMessage
	if system == "" {
		system = defaultWebSearchSystemMessage
	}
	settings := cfg.Search
	if settings.MaxResults <= 0 {
		settings.MaxResults = 3
	}
	return &WebSearch{
		client:   deps.Client,
		provider: deps.Search,
		fetcher:  deps.Fetcher,
		logger:   deps.Logger.With("agent", TypeWebSearch),
		system:   system,
		settings: settings,
	}
}

// Name implements Responder.
func (w *WebSearch) Name() string { return TypeWebSearch }

// Respond implements Responder.
func (w *WebSearch) Respond(ctx context.Context, input string, opts Options) (*Reply, error) {
	if id, ok := parseSourceCommand(input); ok {
		return w.expandSource(ctx, id, opts)
	}

	query, forced := parseTrigger(input)

	doSearch := forced
	if !forced && w.settings.Enabled {
		doSearch = w.decideSearch(ctx, input)
	}
	if doSearch && !forced {
		query = w.generateQuery(ctx, input)
	}
	if query == "" {
		doSearch = false
	}

	if !doSearch {
		return w.complete(ctx, w.system, input, opts, nil, "")
	}

	results, finalQuery := w.runSearch(ctx, query, input, opts)
	if len(results) == 0 {
		// Degrade to a plain completion; a failed or empty search must not
		// fail the turn.
		reply, err := w.complete(ctx, w.system, input, opts, nil, "")
		if reply != nil {
			reply.SearchPerformed = true
			reply.SearchQuery = finalQuery
		}
		return reply, err
	}

	w.annotateResults(ctx, results)

	w.mu.Lock()
	w.lastResults = results
	w.mu.Unlock()

	system := w.system + "\n\n" + searchResultsPreamble + "\n\n" +
		formatSearchResults(results) + "\n\n" + citationInstruction

	return w.complete(ctx, system, input, opts, results, finalQuery)
}

// complete runs the final streamed completion. results and finalQuery are
// recorded on the reply when a search backed the answer.
func (w *WebSearch) complete(ctx context.Context, system, input string, opts Options, results []search.Result, finalQuery string) (*Reply, error) {
	resp, err := w.client.StreamCompletion(ctx, llm.Request{
		Messages: buildMessages(system, opts.History, input),
	}, opts.OnChunk)

	searched := len(results) > 0
	if err != nil {
		if resp != nil {
			return &Reply{
				Content:         resp.Content,
				Incomplete:      resp.Incomplete,
				SearchPerformed: searched,
				SearchQuery:     finalQuery,
				Results:         results,
			}, err
		}
		return nil, err
	}
	return &Reply{
		Content:         resp.Content,
		SearchPerformed: searched,
		SearchQuery:     finalQuery,
		Results:         results,
	}, nil
}

// decideSearch asks the model whether input warrants a search. Errors count
// as "no": an unreachable model for the decision step should not block the
// real completion either way.
func (w *WebSearch) decideSearch(ctx context.Context, input string) bool {
	decision, err := askStructured[searchDecision](ctx, w.client, searchDecisionSystem, input)
	if err != nil {
		w.logger.Warn("search decision failed, skipping search", "error", err)
		return false
	}
	w.logger.Debug("search decision", "should_search", decision.ShouldSearch, "reason", decision.Reason)
	return decision.ShouldSearch
}

// generateQuery asks the model for a search query, falling back to the raw
// input when generation fails.
func (w *WebSearch) generateQuery(ctx context.Context, input string) string {
	generated, err := askStructured[searchQuery](ctx, w.client, queryGenerationSystem, input)
	if err != nil || strings.TrimSpace(generated.Query) == "" {
		if err != nil {
			w.logger.Warn("query generation failed, using raw message", "error", err)
		}
		return truncateQuery(strings.TrimSpace(input))
	}
	return truncateQuery(strings.TrimSpace(generated.Query))
}

// runSearch executes the search plus at most MaxQueryRefinements refinement
// passes when results are thin. It returns whatever was gathered, possibly
// nothing, and the last query used.
func (w *WebSearch) runSearch(ctx context.Context, query, input string, opts Options) ([]search.Result, string) {
	opts.notify(ctx, Status{Stage: StageSearching, Query: query})
	defer opts.notify(ctx, Status{Stage: StageSearchDone})

	results, err := w.provider.Search(ctx, w.searchQueryFor(query))
	if err != nil {
		w.logger.Warn("search failed, answering without results", "query", query, "error", err)
		return nil, query
	}

	for refinements := 0; len(results) < usableResultThreshold && refinements < w.settings.MaxQueryRefinements; refinements++ {
		refined, ok := w.refineQuery(ctx, input, query, results)
		if !ok {
			break
		}
		opts.notify(ctx, Status{Stage: StageRefining, Query: refined})

		more, err := w.provider.Search(ctx, w.searchQueryFor(refined))
		if err != nil {
			w.logger.Warn("refined search failed", "query", refined, "error", err)
			break
		}
		results = mergeResults(results, more, w.settings.MaxResults)
		query = refined
	}
	return results, query
}

func (w *WebSearch) searchQueryFor(text string) search.Query {
	return search.Query{
		Text:        text,
		Region:      w.settings.Region,
		MaxResults:  w.settings.MaxResults,
		IncludeNews: w.settings.NewsEnabled,
	}
}

// refineQuery proposes a replacement query after a thin result set. The
// proposal must differ from the original to count.
func (w *WebSearch) refineQuery(ctx context.Context, input, query string, results []search.Result) (string, bool) {
	var titles []string
	for _, r := range results {
		titles = append(titles, r.Title)
	}
	user := fmt.Sprintf("元のメッセージ: %s\n使用したクエリ: %s\n得られた結果: %d件 (%s)",
		input, query, len(results), strings.Join(titles, " / "))

	refinement, err := askStructured[queryRefinement](ctx, w.client, queryRefinementSystem, user)
	if err != nil {
		w.logger.Warn("query refinement failed", "error", err)
		return "", false
	}
	refined := truncateQuery(strings.TrimSpace(refinement.RefinedQuery))
	if !refinement.ShouldRefine || refined == "" || strings.EqualFold(refined, query) {
		return "", false
	}
	return refined, true
}

// annotateResults fills in what the provider could not: a publication date
// for results without one, and a model classification for results the URL
// heuristics left unknown. Annotation is best effort; a result that cannot be
// annotated stays as it was.
func (w *WebSearch) annotateResults(ctx context.Context, results []search.Result) {
	for i := range results {
		r := &results[i]
		if r.PublishedAt == nil {
			r.PublishedAt = w.extractPublishedAt(ctx, r.Title, r.Snippet)
		}
		if r.Source == search.SourceUnknown {
			r.Source = w.classifyResult(ctx, r.URL, r.Title, r.Snippet)
		}
	}
}

// extractPublishedAt asks the model for a publication date hidden in the
// result text. Returns nil when none is found.
func (w *WebSearch) extractPublishedAt(ctx context.Context, title, snippet string) *time.Time {
	user := fmt.Sprintf("タイトル: %s\n本文: %s", title, snippet)
	extracted, err := askStructured[dateExtraction](ctx, w.client, dateExtractionSystem, user)
	if err != nil {
		w.logger.Warn("date extraction failed", "error", err)
		return nil
	}
	if !extracted.DateFound {
		return nil
	}
	return parsePublishedDate(extracted.Date)
}

// classifyResult asks the model for a trust classification.
func (w *WebSearch) classifyResult(ctx context.Context, url, title, snippet string) search.SourceKind {
	user := fmt.Sprintf("URL: %s\nタイトル: %s\n内容: %s", url, title, snippet)
	classified, err := askStructured[sourceClassification](ctx, w.client, sourceClassificationSystem, user)
	if err != nil {
		w.logger.Warn("source classification failed", "error", err)
		return search.SourceUnknown
	}
	switch classified.SourceType {
	case "一次情報":
		return search.SourcePrimary
	case "二次情報":
		return search.SourceSecondary
	default:
		return search.SourceUnknown
	}
}

// publishedDateLayouts are the date formats accepted from the extraction
// step. The prompt asks for ISO but models drift.
var publishedDateLayouts = []string{"2006-01-02", "2006/01/02", "2006年1月2日"}

func parsePublishedDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range publishedDateLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return &ts
		}
	}
	return nil
}

// expandSource renders one result from the last search in detail, fetching
// the page and summarizing it when a fetcher is available.
func (w *WebSearch) expandSource(ctx context.Context, id int, opts Options) (*Reply, error) {
	w.mu.Lock()
	results := w.lastResults
	w.mu.Unlock()

	if len(results) == 0 {
		msg := "展開できる検索結果がありません。まず検索を実行してください。"
		_ = opts.emit(ctx, msg)
		return &Reply{Content: msg}, nil
	}
	if id < 1 || id > len(results) {
		msg := fmt.Sprintf("ソース番号 %d は範囲外です。1〜%d を指定してください。", id, len(results))
		_ = opts.emit(ctx, msg)
		return &Reply{Content: msg}, nil
	}

	result := results[id-1]
	body := result.Snippet
	var points []string

	if w.fetcher != nil {
		page, err := w.fetcher.Fetch(ctx, result.URL)
		if err != nil {
			w.logger.Warn("source fetch failed, using snippet", "url", result.URL, "error", err)
		} else {
			body = truncateRunes(page.Text, sourceBodyRunes)
			points = w.summarizeKeyPoints(ctx, page.Title, body)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# ソース %d: %s\n\n", id, result.Title)
	fmt.Fprintf(&b, "**URL**: %s\n", result.URL)
	fmt.Fprintf(&b, "**情報の種類**: %s\n\n", sourceKindLabel(result.Source))
	fmt.Fprintf(&b, "## 内容\n%s\n", body)
	if len(points) > 0 {
		b.WriteString("\n## 主要ポイント\n")
		for _, p := range points {
			fmt.Fprintf(&b, "- %s\n", p)
		}
	}

	content := strings.TrimRight(b.String(), "\n")
	if err := opts.emit(ctx, content); err != nil {
		return &Reply{Content: content}, err
	}
	return &Reply{Content: content}, nil
}

func (w *WebSearch) summarizeKeyPoints(ctx context.Context, title, body string) []string {
	user := fmt.Sprintf("タイトル: %s\n\n%s", title, body)
	summary, err := askStructured[keyPoints](ctx, w.client, keyPointsSystem, user)
	if err != nil {
		w.logger.Warn("key point summary failed", "error", err)
		return nil
	}
	return summary.Points
}

// parseTrigger reports whether input starts with a search trigger and returns
// the remainder as the verbatim query.
func parseTrigger(input string) (query string, forced bool) {
	trimmed := strings.TrimSpace(input)
	for _, prefix := range triggerPrefixes {
		if len(trimmed) >= len(prefix) && strings.EqualFold(trimmed[:len(prefix)], prefix) {
			return strings.TrimSpace(trimmed[len(prefix):]), true
		}
	}
	return "", false
}

// parseSourceCommand reports whether input is a source expansion command and
// returns the requested result number.
func parseSourceCommand(input string) (int, bool) {
	trimmed := strings.TrimSpace(input)
	for _, prefix := range sourcePrefixes {
		if len(trimmed) < len(prefix) || !strings.EqualFold(trimmed[:len(prefix)], prefix) {
			continue
		}
		id, err := strconv.Atoi(strings.TrimSpace(trimmed[len(prefix):]))
		if err != nil {
			return 0, false
		}
		return id, true
	}
	return 0, false
}

// mergeResults appends new results, dropping URL duplicates, up to max.
func mergeResults(existing, more []search.Result, max int) []search.Result {
	seen := make(map[string]struct{}, len(existing))
	for _, r := range existing {
		seen[r.URL] = struct{}{}
	}
	merged := existing
	for _, r := range more {
		if len(merged) >= max {
			break
		}
		if _, dup := seen[r.URL]; dup {
			continue
		}
		seen[r.URL] = struct{}{}
		merged = append(merged, r)
	}
	return merged
}

// formatSearchResults renders the result list for the prompt, annotated with
// publication date, source classification and origin, plus a citation key.
func formatSearchResults(results []search.Result) string {
	var b strings.Builder
	b.WriteString("## 検索結果\n\n")
	for i, r := range results {
		fmt.Fprintf(&b, "%d. **%s**\n", i+1, r.Title)
		if r.Snippet != "" {
			fmt.Fprintf(&b, "   %s\n", r.Snippet)
		}
		if r.PublishedAt != nil {
			fmt.Fprintf(&b, "   📅 公開日: %s\n", r.PublishedAt.Format("2006-01-02"))
		}
		fmt.Fprintf(&b, "   📊 情報の種類: %s\n", sourceKindLabel(r.Source))
		fmt.Fprintf(&b, "   🔗 出典: %s\n\n", r.URL)
	}
	b.WriteString("## 引用形式\n")
	for i, r := range results {
		fmt.Fprintf(&b, "[%d] %s - %s\n", i+1, r.Title, r.URL)
	}
	return strings.TrimRight(b.String(), "\n")
}

// sourceKindLabel maps a classification to its Japanese prompt label.
func sourceKindLabel(kind search.SourceKind) string {
	switch kind {
	case search.SourcePrimary:
		return "一次情報"
	case search.SourceSecondary:
		return "二次情報"
	default:
		return "不明"
	}
}

func truncateQuery(q string) string {
	return truncateRunes(q, maxQueryRunes)
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
