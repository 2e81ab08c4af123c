package tools

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/mikeboe/query-orchestrator/pkg/backend"
	"github.com/mikeboe/query-orchestrator/pkg/core"
)

const compareBodyCap = 8

var comparePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:difference|differences) between (.+?) and (.+)`),
	regexp.MustCompile(`(?i)compare (.+?) (?:vs\.?|versus|against|and|with|to) (.+)`),
	regexp.MustCompile(`(?i)(.+?) (?:vs\.?|versus) (.+)`),
	regexp.MustCompile(`(?i)contrast (.+?) (?:and|with) (.+)`),
}

// CompareHandler answers "A vs B" style queries: it extracts both subjects,
// runs a joint search, and returns a synthetic comparison header followed by
// matches that mention either subject.
type CompareHandler struct {
	searcher backend.Searcher
}

func NewCompareHandler(searcher backend.Searcher) *CompareHandler {
	return &CompareHandler{searcher: searcher}
}

func (h *CompareHandler) Type() string { return ToolCompare }

func (h *CompareHandler) Description() string {
	return "Side-by-side comparison for 'A vs B' queries."
}

func (h *CompareHandler) CanHandle(req *core.Request) bool {
	if req == nil {
		return false
	}
	return containsAny(req.Query, compareKeywords)
}

func (h *CompareHandler) Priority(req *core.Request) int { return 10 }

func (h *CompareHandler) Execute(ctx context.Context, req *core.Request) (*core.Response, error) {
	started := time.Now()

	first, second, ok := extractCompareSubjects(req.Query)
	if !ok {
		return nil, fmt.Errorf("%w in query %q", ErrCompareSubjects, req.Query)
	}

	joint := first + " " + second + " comparison differences"
	results, err := h.searcher.Search(ctx, joint, req.Scope, req.MaxResults)
	if err != nil {
		return nil, fmt.Errorf("compare tool failed: %w", err)
	}

	body := filterCompareResults(first, second, results)
	if len(body) > compareBodyCap {
		body = body[:compareBodyCap]
	}

	maxScore := 0.0
	for _, r := range body {
		if r.Score > maxScore {
			maxScore = r.Score
		}
	}
	header := core.Result{
		URL:         fmt.Sprintf("comparison://%s-vs-%s", strings.ReplaceAll(first, " ", "-"), strings.ReplaceAll(second, " ", "-")),
		Name:        fmt.Sprintf("Comparison: %s vs %s", first, second),
		Site:        "comparison",
		Score:       maxScore + 1,
		Description: fmt.Sprintf("Side-by-side comparison of %s and %s.", first, second),
	}

	return newToolResponse(req, append([]core.Result{header}, body...), started), nil
}

// extractCompareSubjects identifies the two comparison subjects. Both are
// lowercased and trimmed.
func extractCompareSubjects(query string) (string, string, bool) {
	for _, pattern := range comparePatterns {
		m := pattern.FindStringSubmatch(query)
		if m == nil {
			continue
		}
		first := cleanSubject(m[1])
		second := cleanSubject(m[2])
		if first != "" && second != "" {
			return first, second, true
		}
	}
	return "", "", false
}

func cleanSubject(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Trim(s, ".,!?")
}

// filterCompareResults keeps results mentioning either subject by name or
// description.
func filterCompareResults(first, second string, results []core.Result) []core.Result {
	var kept []core.Result
	for _, r := range results {
		nameLower := strings.ToLower(r.Name)
		descLower := strings.ToLower(r.Description)
		if strings.Contains(nameLower, first) || strings.Contains(descLower, first) ||
			strings.Contains(nameLower, second) || strings.Contains(descLower, second) {
			kept = append(kept, r)
		}
	}
	return kept
}
