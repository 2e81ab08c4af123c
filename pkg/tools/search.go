package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mikeboe/query-orchestrator/pkg/backend"
	"github.com/mikeboe/query-orchestrator/pkg/core"
)

// Lead-in phrases stripped before searching; longest first so "search for"
// wins over "search".
var searchLeadIns = []string{
	"search for", "search", "look for", "looking for", "find me", "find", "locate", "show me",
}

// SearchHandler is the general-purpose tool and the fallback for queries no
// specialized handler claims. It strips redundant lead-in phrases, runs the
// standard search, and re-ranks by weighted term match.
type SearchHandler struct {
	searcher backend.Searcher
}

func NewSearchHandler(searcher backend.Searcher) *SearchHandler {
	return &SearchHandler{searcher: searcher}
}

func (h *SearchHandler) Type() string { return ToolSearch }

func (h *SearchHandler) Description() string {
	return "General search with lead-in stripping and term-match re-ranking."
}

// CanHandle always accepts: search is the default tool.
func (h *SearchHandler) CanHandle(req *core.Request) bool { return true }

func (h *SearchHandler) Priority(req *core.Request) int {
	if req != nil && containsAny(req.Query, searchKeywords) {
		return 10
	}
	return 1
}

func (h *SearchHandler) Execute(ctx context.Context, req *core.Request) (*core.Response, error) {
	started := time.Now()

	cleaned := stripLeadIns(req.Query)
	results, err := h.searcher.Search(ctx, cleaned, req.Scope, req.MaxResults)
	if err != nil {
		return nil, fmt.Errorf("search tool failed: %w", err)
	}

	rerankByTermMatch(cleaned, results)
	return newToolResponse(req, results, started), nil
}

func stripLeadIns(query string) string {
	lower := strings.ToLower(strings.TrimSpace(query))
	for _, leadIn := range searchLeadIns {
		if strings.HasPrefix(lower, leadIn+" ") {
			return strings.TrimSpace(lower[len(leadIn):])
		}
	}
	return strings.TrimSpace(query)
}

// rerankByTermMatch re-scores results in place by weighted term matching:
// a title hit weighs 3, a description hit weighs 2.
func rerankByTermMatch(query string, results []core.Result) {
	terms := tokenizeQuery(query)
	if len(terms) == 0 {
		return
	}

	for i := range results {
		nameLower := strings.ToLower(results[i].Name)
		descLower := strings.ToLower(results[i].Description)

		var score float64
		for _, term := range terms {
			if strings.Contains(nameLower, term) {
				score += 3
			}
			if strings.Contains(descLower, term) {
				score += 2
			}
		}
		results[i].Score = score
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
}

// tokenizeQuery lowercases, trims punctuation, and drops one-letter tokens.
func tokenizeQuery(query string) []string {
	var terms []string
	for _, word := range strings.Fields(strings.ToLower(query)) {
		cleaned := strings.Trim(word, ".,!?;:'\"-()[]{}")
		if len(cleaned) > 1 {
			terms = append(terms, cleaned)
		}
	}
	return terms
}
