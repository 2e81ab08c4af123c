package tools

import (
	"context"

	"github.com/mikeboe/query-orchestrator/pkg/config"
	"github.com/mikeboe/query-orchestrator/pkg/core"
)

// Keyword families checked in order; the first match decides the tool. The
// checks are plain case-insensitive substring containment, which keeps
// routing deterministic and side-effect-free.
var (
	searchKeywords   = []string{"search", "find", "look for", "locate"}
	compareKeywords  = []string{"compare", "difference", "versus", "vs", "contrast"}
	detailsKeywords  = []string{"details", "information about", "tell me about", "describe"}
	ensembleKeywords = []string{"recommend", "suggest", "what should", "ensemble", "set of"}
	recipeKeywords   = []string{"recipe", "substitute", "substitution", "goes with", "pair with", "nutrition", "calories", "how to cook", "how to make"}
)

// Router decides whether a request should be handled by a specialized tool
// instead of the default pipeline.
type Router struct {
	enabled bool
}

func NewRouter(cfg *config.Config) *Router {
	return &Router{enabled: cfg.ToolRoutingEnabled}
}

// ShouldRoute reports whether tool routing applies to the request at all.
// Generate mode keeps the legacy direct-generation path, and a precomputed
// decontextualized query means the request was already routed upstream.
func (r *Router) ShouldRoute(req *core.Request) bool {
	if !r.enabled {
		return false
	}
	if req.Mode == core.ModeGenerate {
		return false
	}
	if req.DecontextualizedQuery != "" {
		return false
	}
	return true
}

// SelectTool classifies the request's intent. The same query always maps to
// the same tool.
func (r *Router) SelectTool(ctx context.Context, req *core.Request) string {
	query := req.Query

	switch {
	case containsAny(query, searchKeywords):
		return ToolSearch
	case containsAny(query, compareKeywords):
		return ToolCompare
	case containsAny(query, detailsKeywords):
		return ToolDetails
	case containsAny(query, ensembleKeywords):
		return ToolEnsemble
	case containsAny(query, recipeKeywords):
		return ToolRecipe
	default:
		return ToolSearch
	}
}
