package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mikeboe/query-orchestrator/pkg/backend"
	"github.com/mikeboe/query-orchestrator/pkg/core"
)

// perCategoryCap keeps each ensemble section small.
const perCategoryCap = 3

// Theme dictionaries. Matching is done over tokenized query words.
var (
	cuisineThemes = []string{
		"italian", "french", "mexican", "japanese", "indian", "thai",
		"chinese", "greek", "spanish", "mediterranean", "korean", "vietnamese",
	}
	occasionThemes = []string{
		"dinner", "lunch", "brunch", "breakfast", "party", "birthday",
		"picnic", "holiday", "weekend", "date",
	}
	placeThemes = []string{
		"city", "trip", "visit", "vacation", "museum", "downtown",
	}
)

// Category dictionaries: words the user may name explicitly.
var knownCategories = []string{
	"appetizer", "starter", "main", "dessert", "drink", "side",
	"museum", "restaurant", "entertainment", "attraction", "hotel", "park",
}

// EnsembleHandler builds themed recommendation sets: it parses a theme and
// requested categories from the query, runs one focused sub-search per
// category, and assembles an overview plus per-category sections.
type EnsembleHandler struct {
	searcher backend.Searcher
}

func NewEnsembleHandler(searcher backend.Searcher) *EnsembleHandler {
	return &EnsembleHandler{searcher: searcher}
}

func (h *EnsembleHandler) Type() string { return ToolEnsemble }

func (h *EnsembleHandler) Description() string {
	return "Themed recommendation sets with per-category sub-searches."
}

func (h *EnsembleHandler) CanHandle(req *core.Request) bool {
	if req == nil {
		return false
	}
	return containsAny(req.Query, ensembleKeywords)
}

func (h *EnsembleHandler) Priority(req *core.Request) int { return 10 }

func (h *EnsembleHandler) Execute(ctx context.Context, req *core.Request) (*core.Response, error) {
	started := time.Now()

	theme := extractTheme(req.Query)
	categories := extractCategories(req.Query)

	results := []core.Result{{
		URL:         "ensemble://" + strings.ReplaceAll(theme, " ", "-"),
		Name:        "Ensemble: " + theme,
		Site:        "ensemble",
		Score:       float64(len(categories)*perCategoryCap) + 1,
		Description: fmt.Sprintf("Recommendations for %s, covering %s.", theme, strings.Join(categories, ", ")),
	}}

	for i, category := range categories {
		subQuery := strings.TrimSpace(theme + " " + category)
		matches, err := h.searcher.Search(ctx, subQuery, req.Scope, perCategoryCap)
		if err != nil {
			return nil, fmt.Errorf("ensemble sub-search for %q failed: %w", category, err)
		}
		label := strings.ToUpper(category[:1]) + category[1:]
		for _, m := range matches {
			m.Name = label + ": " + m.Name
			// Keep section order stable regardless of per-backend scores.
			m.Score = float64((len(categories)-i)*perCategoryCap) + m.Score/1000
			results = append(results, m)
		}
	}

	return newToolResponse(req, results, started), nil
}

// extractTheme picks the first theme word found in the query, else the first
// substantive token, else a generic label.
func extractTheme(query string) string {
	words := tokenize(query)
	wordSet := make(map[string]bool, len(words))
	for _, w := range words {
		wordSet[w] = true
	}

	for _, group := range [][]string{cuisineThemes, occasionThemes, placeThemes} {
		for _, theme := range group {
			if wordSet[theme] {
				return theme
			}
		}
	}
	for _, w := range words {
		if !isEnsembleKeyword(w) {
			return w
		}
	}
	return "general"
}

// extractCategories returns the categories named in the query, or a default
// set inferred from context words when none are named.
func extractCategories(query string) []string {
	lower := strings.ToLower(query)

	var found []string
	for _, category := range knownCategories {
		if strings.Contains(lower, category) {
			found = append(found, category)
		}
	}
	if len(found) > 0 {
		return found
	}

	switch {
	case strings.Contains(lower, "dinner") || strings.Contains(lower, "meal") || strings.Contains(lower, "menu"):
		return []string{"starter", "main", "dessert"}
	case strings.Contains(lower, "day") || strings.Contains(lower, "visit") || strings.Contains(lower, "trip"):
		return []string{"attraction", "restaurant", "entertainment"}
	default:
		return []string{"recommendation"}
	}
}

func isEnsembleKeyword(word string) bool {
	for _, kw := range ensembleKeywords {
		if strings.Contains(kw, word) {
			return true
		}
	}
	return false
}

func tokenize(text string) []string {
	var words []string
	for _, word := range strings.Fields(strings.ToLower(text)) {
		cleaned := strings.Trim(word, ".,!?;:'\"-()[]{}")
		if cleaned != "" {
			words = append(words, cleaned)
		}
	}
	return words
}
