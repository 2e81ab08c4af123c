package query

import (
	"fmt"
	"hash/fnv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mikeboe/query-orchestrator/pkg/config"
	"github.com/mikeboe/query-orchestrator/pkg/core"
)

// referentialWords are pronouns and backward references that signal a
// follow-up query depends on earlier conversation turns.
var referentialWords = map[string]bool{
	"it": true, "this": true, "that": true, "they": true, "them": true,
	"these": true, "those": true,
	"above": true, "earlier": true, "previous": true, "before": true,
}

// Processor validates incoming requests and produces the effective query
// to search with.
type Processor struct {
	maxQueryLength int
}

func NewProcessor(cfg *config.Config) *Processor {
	maxLen := cfg.MaxQueryLength
	if maxLen <= 0 {
		maxLen = core.MaxQueryLength
	}
	return &Processor{maxQueryLength: maxLen}
}

// Validate reports whether the request passes basic structural constraints.
// It is side-effect-free.
func (p *Processor) Validate(req *core.Request) bool {
	if req == nil {
		return false
	}
	trimmed := strings.TrimSpace(req.Query)
	if trimmed == "" {
		return false
	}
	if utf8.RuneCountInString(req.Query) > p.maxQueryLength {
		return false
	}
	if req.MaxResults < 0 || req.TimeoutSeconds < 0 {
		return false
	}
	return true
}

// Process returns the effective query for the request. A precomputed
// decontextualized query wins; otherwise, when prior turns exist and the
// query contains referential language, the most recent prior turn is
// prepended. This is a best-effort heuristic, not semantic coreference
// resolution.
func (p *Processor) Process(req *core.Request) string {
	if req.DecontextualizedQuery != "" {
		return req.DecontextualizedQuery
	}

	turns := req.PriorTurns()
	if len(turns) == 0 {
		return req.Query
	}

	if !containsReferentialLanguage(req.Query) {
		return req.Query
	}

	mostRecent := turns[len(turns)-1]
	return mostRecent + ". " + req.Query
}

// GenerateId returns the request's identifier if present, else derives one
// from the current time and a hash of the query text.
func (p *Processor) GenerateId(req *core.Request) string {
	if req.QueryID != "" {
		return req.QueryID
	}
	h := fnv.New32a()
	h.Write([]byte(req.Query))
	return fmt.Sprintf("%d-%08x", time.Now().UnixNano(), h.Sum32())
}

func containsReferentialLanguage(query string) bool {
	for _, word := range strings.Fields(strings.ToLower(query)) {
		cleaned := strings.Trim(word, ".,!?;:'\"-()[]{}")
		if referentialWords[cleaned] {
			return true
		}
	}
	return false
}
