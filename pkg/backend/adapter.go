package backend

import (
	"context"
	"errors"

	"github.com/mikeboe/query-orchestrator/pkg/core"
)

var (
	// ErrNoAdapters is returned when a coordinator is built without backends.
	ErrNoAdapters = errors.New("at least one backend adapter required")

	// ErrNoWriteBackend is returned when a write is requested but no backend
	// accepts writes.
	ErrNoWriteBackend = errors.New("no write backend configured")
)

// Adapter is a pluggable data source capable of search over its own content.
type Adapter interface {
	// ID is the stable identifier used in configuration and descriptors.
	ID() string

	// Search returns scored candidates for the query. scope may be empty.
	// maxResults caps the returned slice; adapters may return fewer.
	Search(ctx context.Context, query, scope string, maxResults int) ([]core.Result, error)

	// Scopes returns the scope labels this adapter can filter on.
	Scopes(ctx context.Context) ([]string, error)

	// GetByURL returns the result with the given identity, or nil.
	GetByURL(ctx context.Context, url string) (*core.Result, error)

	// Capabilities describes what this adapter supports.
	Capabilities() core.BackendCapabilities
}

// Searcher is the search capability consumed by the orchestration layer.
// Both a single adapter wrapper and the multi-backend coordinator implement
// it, so callers never branch on backend cardinality.
type Searcher interface {
	Search(ctx context.Context, query, scope string, maxResults int) ([]core.Result, error)
	Scopes(ctx context.Context) ([]string, error)
	GetByURL(ctx context.Context, url string) (*core.Result, error)
}

// Document is a unit of content accepted by write-capable backends.
type Document struct {
	URL      string         `json:"url"`
	Title    string         `json:"title"`
	Content  string         `json:"content"`
	Site     string         `json:"site,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Writer is implemented by adapters that accept writes. The coordinator's
// designated write backend must implement it for the indexing path to work.
type Writer interface {
	Index(ctx context.Context, doc Document) error
}
