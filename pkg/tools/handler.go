package tools

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/mikeboe/query-orchestrator/pkg/core"
)

// Tool identifiers.
const (
	ToolSearch   = "search"
	ToolDetails  = "details"
	ToolCompare  = "compare"
	ToolEnsemble = "ensemble"
	ToolRecipe   = "recipe"
)

var (
	// ErrNoHandler indicates no registered handler matched a selected tool
	// id. It signals a registration defect and is allowed to propagate.
	ErrNoHandler = errors.New("no tool handler available")

	// ErrCompareSubjects is returned when two comparison subjects cannot be
	// identified in the query.
	ErrCompareSubjects = errors.New("could not identify two subjects to compare")

	// ErrUnknownRecipeQuery is returned when a recipe query matches none of
	// the known recipe query classes.
	ErrUnknownRecipeQuery = errors.New("unknown recipe query type")
)

// Handler is a specialized query handler for a specific intent. Handlers are
// registered as a flat list at startup and selected by the dispatcher.
type Handler interface {
	// Type is the tool identifier this handler serves.
	Type() string

	// Description is a short human-readable summary for introspection.
	Description() string

	// CanHandle reports whether this handler applies to the request.
	CanHandle(req *core.Request) bool

	// Priority breaks ties among handlers that can serve the same request;
	// higher wins.
	Priority(req *core.Request) int

	// Execute runs the tool. Failures return an error so the orchestrator
	// can fall back to the standard pipeline.
	Execute(ctx context.Context, req *core.Request) (*core.Response, error)
}

// newToolResponse assembles the common response shape handlers return.
func newToolResponse(req *core.Request, results []core.Result, started time.Time) *core.Response {
	if results == nil {
		results = []core.Result{}
	}
	return &core.Response{
		QueryID:          req.QueryID,
		Query:            req.Query,
		Mode:             req.Mode,
		Results:          results,
		ProcessingTimeMs: time.Since(started).Milliseconds(),
		IsComplete:       true,
	}
}

// containsAny reports whether the lowercased query contains any of the given
// phrases.
func containsAny(query string, phrases []string) bool {
	lower := strings.ToLower(query)
	for _, phrase := range phrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}
