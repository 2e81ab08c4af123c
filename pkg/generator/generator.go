package generator

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/mikeboe/query-orchestrator/pkg/backend"
	"github.com/mikeboe/query-orchestrator/pkg/config"
	"github.com/mikeboe/query-orchestrator/pkg/core"
)

const (
	// promptResultCount caps how many results are embedded in LLM prompts.
	promptResultCount = 5
	// templateResultCount caps how many results the deterministic answer
	// template lists.
	templateResultCount = 3
	// fallbackChunkWords is the word-group size when re-chunking a complete
	// response after a provider streaming failure.
	fallbackChunkWords = 3
	// templateChunkCount is the approximate number of chunks a template
	// response is split into.
	templateChunkCount = 10

	noResultsMessage = "No results were found for your query."
)

// CompletionProvider is the opaque text-completion capability. Absence of a
// provider is a valid, expected state; templates cover for it.
type CompletionProvider interface {
	Complete(ctx context.Context, prompt string) (string, error)
	StreamComplete(ctx context.Context, prompt string, fn func(chunk string) error) error
}

// Generator turns a merged result set into a List, Summarize, or Generate
// mode response, with an incremental streamed variant.
type Generator struct {
	searcher   backend.Searcher
	provider   CompletionProvider
	maxResults int
	chunkDelay time.Duration
	logger     *slog.Logger
}

// Option configures a Generator.
type Option func(*Generator)

// WithLogger sets a custom logger. Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(g *Generator) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithChunkDelay overrides the inter-chunk delay used by template streaming.
func WithChunkDelay(d time.Duration) Option {
	return func(g *Generator) { g.chunkDelay = d }
}

// NewGenerator builds a generator. provider may be nil.
func NewGenerator(cfg *config.Config, searcher backend.Searcher, provider CompletionProvider, opts ...Option) *Generator {
	g := &Generator{
		searcher:   searcher,
		provider:   provider,
		maxResults: cfg.MaxResultsPerQuery,
		chunkDelay: 40 * time.Millisecond,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// HasProvider reports whether a completion provider is configured.
func (g *Generator) HasProvider() bool { return g.provider != nil }

// GenerateList returns the raw ranked results for the query.
func (g *Generator) GenerateList(ctx context.Context, query, scope string, maxResults int) ([]core.Result, error) {
	if maxResults <= 0 || maxResults > g.maxResults {
		maxResults = g.maxResults
	}
	return g.searcher.Search(ctx, query, scope, maxResults)
}

// GenerateSummary produces a short synthesis of the results. Provider
// failures fall back to a deterministic template; this never returns an
// error for provider problems.
func (g *Generator) GenerateSummary(ctx context.Context, query string, results []core.Result) string {
	if len(results) == 0 {
		return noResultsMessage
	}

	if g.provider != nil {
		prompt := buildSummaryPrompt(query, results)
		summary, err := g.provider.Complete(ctx, prompt)
		if err == nil && strings.TrimSpace(summary) != "" {
			return summary
		}
		if err != nil {
			g.logger.Warn("summary generation failed, using template", "error", err)
		}
	}

	return templateSummary(query, results)
}

// GenerateResponse produces a full generated answer grounded in up to five
// results. Provider failures fall back to a deterministic template.
func (g *Generator) GenerateResponse(ctx context.Context, query string, results []core.Result) string {
	if len(results) == 0 {
		return noResultsMessage
	}

	if g.provider != nil {
		prompt := buildAnswerPrompt(query, results)
		answer, err := g.provider.Complete(ctx, prompt)
		if err == nil && strings.TrimSpace(answer) != "" {
			return answer
		}
		if err != nil {
			g.logger.Warn("answer generation failed, using template", "error", err)
		}
	}

	return templateAnswer(query, results)
}

// StreamResponse yields the response text incrementally. For Generate mode
// with a provider the provider's native stream is proxied chunk by chunk;
// otherwise the complete text is computed once and emitted in word-group
// chunks. The sequence is finite, forward-only, and safe to abandon.
func (g *Generator) StreamResponse(ctx context.Context, query string, results []core.Result, mode core.Mode) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if mode == core.ModeGenerate && g.provider != nil && len(results) > 0 {
			g.streamFromProvider(ctx, query, results, yield)
			return
		}

		var text string
		switch mode {
		case core.ModeSummarize:
			text = g.GenerateSummary(ctx, query, results)
		default:
			if len(results) == 0 {
				text = noResultsMessage
			} else {
				text = templateAnswer(query, results)
			}
		}
		g.emitChunks(ctx, chunkIntoParts(text, templateChunkCount), yield)
	}
}

// streamFromProvider proxies the provider's incremental output. If the
// provider fails before producing anything, the complete response is
// computed and re-chunked instead; a failure after partial output ends the
// stream quietly (generation errors never surface).
func (g *Generator) streamFromProvider(ctx context.Context, query string, results []core.Result, yield func(string, error) bool) {
	prompt := buildAnswerPrompt(query, results)

	chunks := make(chan string)
	errCh := make(chan error, 1)
	go func() {
		defer close(chunks)
		errCh <- g.provider.StreamComplete(ctx, prompt, func(chunk string) error {
			select {
			case chunks <- chunk:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}()

	emitted := 0
	for chunk := range chunks {
		if !yield(chunk, nil) {
			// Consumer abandoned the stream; drain so the producer exits.
			go func() {
				for range chunks {
				}
			}()
			return
		}
		emitted++
	}

	if err := <-errCh; err != nil {
		if ctx.Err() != nil {
			yield("", ctx.Err())
			return
		}
		g.logger.Warn("provider streaming failed", "emitted_chunks", emitted, "error", err)
		if emitted == 0 {
			text := templateAnswer(query, results)
			g.emitChunks(ctx, chunkByWords(text, fallbackChunkWords), yield)
		}
	}
}

// emitChunks yields pre-computed chunks with a small delay between them to
// preserve a live feel. Cancellation is propagated as such.
func (g *Generator) emitChunks(ctx context.Context, parts []string, yield func(string, error) bool) {
	for i, part := range parts {
		if i > 0 && g.chunkDelay > 0 {
			if err := sleepCtx(ctx, g.chunkDelay); err != nil {
				yield("", err)
				return
			}
		}
		if err := ctx.Err(); err != nil {
			yield("", err)
			return
		}
		if !yield(part, nil) {
			return
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// --- Prompts and templates ---

func buildSummaryPrompt(query string, results []core.Result) string {
	var sb strings.Builder
	sb.WriteString("Summarize the following search results in a few sentences, focused on the query.\n\n")
	fmt.Fprintf(&sb, "Query: %s\n\nResults:\n", query)
	writePromptResults(&sb, results)
	return sb.String()
}

func buildAnswerPrompt(query string, results []core.Result) string {
	var sb strings.Builder
	sb.WriteString("Answer the query using only the search results below. Cite result names where relevant.\n\n")
	fmt.Fprintf(&sb, "Query: %s\n\nResults:\n", query)
	writePromptResults(&sb, results)
	return sb.String()
}

func writePromptResults(sb *strings.Builder, results []core.Result) {
	count := len(results)
	if count > promptResultCount {
		count = promptResultCount
	}
	for i := 0; i < count; i++ {
		fmt.Fprintf(sb, "%d. %s — %s\n", i+1, results[i].Name, results[i].Description)
	}
}

func templateSummary(query string, results []core.Result) string {
	count := len(results)
	shown := count
	if shown > templateResultCount {
		shown = templateResultCount
	}
	names := make([]string, 0, shown)
	for i := 0; i < shown; i++ {
		names = append(names, results[i].Name)
	}
	return fmt.Sprintf("Found %d results for '%s'. Top results include: %s.", count, query, strings.Join(names, ", "))
}

func templateAnswer(query string, results []core.Result) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Here is what was found for '%s':\n", query)

	shown := len(results)
	if shown > templateResultCount {
		shown = templateResultCount
	}
	for i := 0; i < shown; i++ {
		r := results[i]
		fmt.Fprintf(&sb, "%d. %s: %s (%s)\n", i+1, r.Name, r.Description, r.URL)
	}
	if remaining := len(results) - shown; remaining > 0 {
		fmt.Fprintf(&sb, "...and %d more results.", remaining)
	}
	return strings.TrimSpace(sb.String())
}

// --- Chunking ---

// chunkByWords splits text into fixed-size word groups. Whitespace is
// preserved, so concatenating the chunks reproduces the input exactly.
func chunkByWords(text string, wordsPerChunk int) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if wordsPerChunk < 1 {
		wordsPerChunk = 1
	}

	var parts []string
	var b strings.Builder
	words := 0
	inWord := false
	for _, r := range text {
		if unicode.IsSpace(r) {
			inWord = false
		} else if !inWord {
			inWord = true
			words++
			if words > wordsPerChunk {
				parts = append(parts, b.String())
				b.Reset()
				words = 1
			}
		}
		b.WriteRune(r)
	}
	if b.Len() > 0 {
		parts = append(parts, b.String())
	}
	return parts
}

// chunkIntoParts splits text into roughly chunkCount equal word groups.
func chunkIntoParts(text string, chunkCount int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	wordsPerChunk := (len(words) + chunkCount - 1) / chunkCount
	return chunkByWords(text, wordsPerChunk)
}
