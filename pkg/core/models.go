package core

import (
	"strings"
	"time"
)

// Mode selects the shape of a response.
type Mode string

const (
	// ModeList returns the raw ranked result list.
	ModeList Mode = "list"
	// ModeSummarize returns the result list plus a short synthesis.
	ModeSummarize Mode = "summarize"
	// ModeGenerate returns the result list plus a full generated answer.
	ModeGenerate Mode = "generate"
)

// ParseMode normalizes a mode string, falling back to the given default
// for empty or unknown values.
func ParseMode(s string, def Mode) Mode {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeList:
		return ModeList
	case ModeSummarize:
		return ModeSummarize
	case ModeGenerate:
		return ModeGenerate
	default:
		return def
	}
}

// MaxQueryLength is the upper bound on query text accepted by validation.
const MaxQueryLength = 1000

// Request is a single orchestration call. Created per call, discarded after.
type Request struct {
	Query                 string   `json:"query"`
	Mode                  Mode     `json:"mode,omitempty"`
	Scope                 string   `json:"scope,omitempty"`
	MaxResults            int      `json:"maxResults,omitempty"`
	Context               []string `json:"context,omitempty"`
	DecontextualizedQuery string   `json:"decontextualizedQuery,omitempty"`
	QueryID               string   `json:"queryId,omitempty"`
	TimeoutSeconds        int      `json:"timeoutSeconds,omitempty"`
}

// PriorTurns returns the prior conversation turns in order. Entries may
// themselves be comma-delimited lists; those are flattened.
func (r *Request) PriorTurns() []string {
	var turns []string
	for _, entry := range r.Context {
		for _, part := range strings.Split(entry, ",") {
			if t := strings.TrimSpace(part); t != "" {
				turns = append(turns, t)
			}
		}
	}
	return turns
}

// Result is a single scored candidate from a backend. URL is the identity
// used for deduplication.
type Result struct {
	URL         string         `json:"url"`
	Name        string         `json:"name"`
	Site        string         `json:"site,omitempty"`
	Score       float64        `json:"score"`
	Description string         `json:"description,omitempty"`
	Payload     map[string]any `json:"payload,omitempty"`
}

// Response is the produced response shape consumed by the transport layer.
type Response struct {
	QueryID           string   `json:"queryId"`
	Query             string   `json:"query"`
	Mode              Mode     `json:"mode"`
	Results           []Result `json:"results"`
	Summary           string   `json:"summary,omitempty"`
	GeneratedResponse string   `json:"generatedResponse,omitempty"`
	Error             string   `json:"error,omitempty"`
	ProcessingTimeMs  int64    `json:"processingTimeMs"`
	IsStreaming       bool     `json:"isStreaming"`
	IsComplete        bool     `json:"isComplete"`
}

// ErrorResponse builds a terminal failure response: populated error string,
// empty result list, no summary or answer.
func ErrorResponse(queryID, query string, mode Mode, started time.Time, msg string) *Response {
	return &Response{
		QueryID:          queryID,
		Query:            query,
		Mode:             mode,
		Results:          []Result{},
		Error:            msg,
		ProcessingTimeMs: time.Since(started).Milliseconds(),
		IsComplete:       true,
	}
}

// BackendCapabilities describes what a backend adapter can do.
type BackendCapabilities struct {
	SupportsScopeFilter bool `json:"supportsScopeFilter"`
	SupportsFullText    bool `json:"supportsFullText"`
	SupportsSemantic    bool `json:"supportsSemantic"`
	MaxResults          int  `json:"maxResults"`
}

// BackendInfo is the startup-time descriptor for a configured backend.
// Descriptors are immutable after construction.
type BackendInfo struct {
	ID           string              `json:"id"`
	Enabled      bool                `json:"enabled"`
	Capabilities BackendCapabilities `json:"capabilities"`
	Priority     int                 `json:"priority"`
	WriteTarget  bool                `json:"writeTarget"`
}

// ToolInfo describes a registered tool handler for introspection.
type ToolInfo struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Priority    int    `json:"priority"`
}
