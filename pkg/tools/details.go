package tools

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/mikeboe/query-orchestrator/pkg/backend"
	"github.com/mikeboe/query-orchestrator/pkg/core"
)

const detailsResultCap = 10

var subjectPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)tell me about (.+)`),
	regexp.MustCompile(`(?i)information about (.+)`),
	regexp.MustCompile(`(?i)what (?:is|are) (.+)`),
	regexp.MustCompile(`(?i)explain (.+)`),
	regexp.MustCompile(`(?i)describe (.+)`),
	regexp.MustCompile(`(?i)details (?:about|on|of) (.+)`),
}

// Words that suggest a result is an overview/reference page.
var detailIndicators = []string{"overview", "definition", "introduction", "guide", "explanation", "reference"}

// DetailsHandler answers "tell me about X" style queries: it extracts the
// subject, searches with a focused query, and re-scores toward explanatory
// results.
type DetailsHandler struct {
	searcher backend.Searcher
}

func NewDetailsHandler(searcher backend.Searcher) *DetailsHandler {
	return &DetailsHandler{searcher: searcher}
}

func (h *DetailsHandler) Type() string { return ToolDetails }

func (h *DetailsHandler) Description() string {
	return "Subject lookup for 'tell me about X' / 'what is X' queries."
}

// CanHandle mirrors the router's keyword family; subject extraction can still
// fail inside Execute, which falls back to the standard pipeline.
func (h *DetailsHandler) CanHandle(req *core.Request) bool {
	if req == nil {
		return false
	}
	return containsAny(req.Query, detailsKeywords)
}

func (h *DetailsHandler) Priority(req *core.Request) int { return 10 }

func (h *DetailsHandler) Execute(ctx context.Context, req *core.Request) (*core.Response, error) {
	started := time.Now()

	subject := extractSubject(req.Query)
	if subject == "" {
		return nil, fmt.Errorf("could not extract a subject from query %q", req.Query)
	}

	focused := subject + " overview definition explanation details"
	results, err := h.searcher.Search(ctx, focused, req.Scope, req.MaxResults)
	if err != nil {
		return nil, fmt.Errorf("details tool failed: %w", err)
	}

	scoreDetailsResults(subject, results)
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > detailsResultCap {
		results = results[:detailsResultCap]
	}
	for i := range results {
		results[i].Name = "Details: " + results[i].Name
	}

	return newToolResponse(req, results, started), nil
}

// extractSubject pulls the subject out of a details-style phrasing. Returns
// "" when no pattern matches.
func extractSubject(query string) string {
	for _, pattern := range subjectPatterns {
		if m := pattern.FindStringSubmatch(query); m != nil {
			subject := strings.ToLower(strings.TrimSpace(m[1]))
			return strings.Trim(subject, ".,!?")
		}
	}
	return ""
}

// scoreDetailsResults re-scores by subject-term overlap plus bonuses for
// indicator words and description length.
func scoreDetailsResults(subject string, results []core.Result) {
	terms := tokenizeQuery(subject)

	for i := range results {
		nameLower := strings.ToLower(results[i].Name)
		descLower := strings.ToLower(results[i].Description)

		var score float64
		for _, term := range terms {
			if strings.Contains(nameLower, term) {
				score += 3
			}
			if strings.Contains(descLower, term) {
				score += 1
			}
		}
		for _, indicator := range detailIndicators {
			if strings.Contains(nameLower, indicator) || strings.Contains(descLower, indicator) {
				score += 1
			}
		}
		// Longer descriptions tend to be more explanatory; bonus capped at 1.
		if lengthBonus := float64(len(results[i].Description)) / 500; lengthBonus > 1 {
			score += 1
		} else {
			score += lengthBonus
		}
		results[i].Score = score
	}
}
