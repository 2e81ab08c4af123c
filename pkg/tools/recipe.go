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

// recipeQueryType classifies a cooking-related query.
type recipeQueryType string

const (
	recipeSubstitution  recipeQueryType = "substitution"
	recipeAccompaniment recipeQueryType = "accompaniment"
	recipeSearch        recipeQueryType = "recipe-search"
	recipeTechnique     recipeQueryType = "technique"
	recipeNutrition     recipeQueryType = "nutrition"
)

// recipeClass bundles the keyword family, subject patterns, sub-query shape
// and result label for one query type. Classification checks classes in
// order; the first keyword match wins.
type recipeClass struct {
	queryType recipeQueryType
	keywords  []string
	patterns  []*regexp.Regexp
	subQuery  string
	label     string
}

var recipeClasses = []recipeClass{
	{
		queryType: recipeSubstitution,
		keywords:  []string{"substitute", "substitution", "instead of", "replacement for"},
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)substit\w+ for (.+)`),
			regexp.MustCompile(`(?i)instead of (.+)`),
			regexp.MustCompile(`(?i)replacement for (.+)`),
			regexp.MustCompile(`(?i)substit\w+ (.+)`),
		},
		subQuery: "%s substitute alternative replacement",
		label:    "Substitute",
	},
	{
		queryType: recipeAccompaniment,
		keywords:  []string{"goes with", "go with", "pair with", "pairs with", "serve with", "accompaniment"},
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)(?:goes|go|pairs?|serve) with (.+)`),
			regexp.MustCompile(`(?i)accompaniments? (?:for|to) (.+)`),
		},
		subQuery: "%s pairing side dish accompaniment",
		label:    "Pairing",
	},
	{
		queryType: recipeSearch,
		keywords:  []string{"recipe", "how to make", "how to cook", "how do i make", "how do i cook", "bake"},
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)recipes? (?:for|of|with) (.+)`),
			regexp.MustCompile(`(?i)(?:how to|how do i) (?:make|cook|bake) (.+)`),
			regexp.MustCompile(`(?i)(.+?) recipes?`),
		},
		subQuery: "%s recipe ingredients instructions",
		label:    "Recipe",
	},
	{
		queryType: recipeTechnique,
		keywords:  []string{"technique", "how to", "how do i"},
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)(?:how to|how do i) (.+)`),
			regexp.MustCompile(`(?i)techniques? (?:for|of) (.+)`),
		},
		subQuery: "%s technique method step by step",
		label:    "Technique",
	},
	{
		queryType: recipeNutrition,
		keywords:  []string{"nutrition", "nutritional", "calories", "healthy"},
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)(?:nutrition|nutritional value|calories) (?:of|in|for) (.+)`),
			regexp.MustCompile(`(?i)how healthy is (.+)`),
		},
		subQuery: "%s nutrition facts calories",
		label:    "Nutrition",
	},
}

// RecipeHandler serves cooking queries: it classifies the query into one of
// the recipe query types, extracts the subject, and issues one focused
// sub-query for that class.
type RecipeHandler struct {
	searcher backend.Searcher
}

func NewRecipeHandler(searcher backend.Searcher) *RecipeHandler {
	return &RecipeHandler{searcher: searcher}
}

func (h *RecipeHandler) Type() string { return ToolRecipe }

func (h *RecipeHandler) Description() string {
	return "Cooking queries: substitutions, pairings, recipes, techniques, nutrition."
}

func (h *RecipeHandler) CanHandle(req *core.Request) bool {
	if req == nil {
		return false
	}
	_, ok := classifyRecipeQuery(req.Query)
	return ok
}

func (h *RecipeHandler) Priority(req *core.Request) int { return 10 }

func (h *RecipeHandler) Execute(ctx context.Context, req *core.Request) (*core.Response, error) {
	started := time.Now()

	class, ok := classifyRecipeQuery(req.Query)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRecipeQuery, req.Query)
	}

	subject := extractRecipeSubject(class, req.Query)
	focused := fmt.Sprintf(class.subQuery, subject)

	results, err := h.searcher.Search(ctx, focused, req.Scope, req.MaxResults)
	if err != nil {
		return nil, fmt.Errorf("recipe tool failed: %w", err)
	}

	results = relabelRecipeResults(class, subject, results)
	return newToolResponse(req, results, started), nil
}

// classifyRecipeQuery returns the matching class, checking keyword families
// in declaration order.
func classifyRecipeQuery(query string) (recipeClass, bool) {
	for _, class := range recipeClasses {
		if containsAny(query, class.keywords) {
			return class, true
		}
	}
	return recipeClass{}, false
}

// extractRecipeSubject applies the class's patterns in order; when none
// match, the query minus the class keywords is used.
func extractRecipeSubject(class recipeClass, query string) string {
	for _, pattern := range class.patterns {
		if m := pattern.FindStringSubmatch(query); m != nil {
			return cleanSubject(m[1])
		}
	}

	lower := strings.ToLower(query)
	for _, kw := range class.keywords {
		lower = strings.ReplaceAll(lower, kw, " ")
	}
	return strings.Join(strings.Fields(lower), " ")
}

// relabelRecipeResults prefixes results with the class label and, when any
// result mentions the subject, filters to those that do.
func relabelRecipeResults(class recipeClass, subject string, results []core.Result) []core.Result {
	var mentioning []core.Result
	for _, r := range results {
		if strings.Contains(strings.ToLower(r.Name), subject) ||
			strings.Contains(strings.ToLower(r.Description), subject) {
			mentioning = append(mentioning, r)
		}
	}
	if len(mentioning) > 0 {
		results = mentioning
	}

	for i := range results {
		results[i].Name = class.label + ": " + results[i].Name
	}
	return results
}
