package backend

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/mikeboe/query-orchestrator/pkg/config"
	"github.com/mikeboe/query-orchestrator/pkg/core"
)

// Coordinator fans a query out to every configured backend adapter, merges
// the collected results, deduplicates them by URL, and returns a
// score-sorted, capped result set.
//
// With a single adapter it delegates directly without spawning workers.
type Coordinator struct {
	adapters []Adapter
	infos    []core.BackendInfo
	writeIdx int

	pool       *ants.Pool
	timeout    time.Duration
	dedup      bool
	maxResults int
	logger     *slog.Logger
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets a custom logger. Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewCoordinator builds a coordinator over the given adapters. Adapter order
// is significant: it decides dedup tie-breaks and GetByURL probe order.
func NewCoordinator(cfg *config.Config, adapters []Adapter, opts ...Option) (*Coordinator, error) {
	if len(adapters) == 0 {
		return nil, ErrNoAdapters
	}

	maxConcurrent := cfg.MaxConcurrentQueries
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	pool, err := ants.NewPool(maxConcurrent)
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}

	timeout := time.Duration(cfg.BackendTimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	c := &Coordinator{
		adapters:   adapters,
		pool:       pool,
		timeout:    timeout,
		dedup:      cfg.DedupEnabled,
		maxResults: cfg.MaxResultsPerQuery,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.writeIdx = 0
	for i, a := range adapters {
		if a.ID() == cfg.WriteBackend {
			c.writeIdx = i
		}
		c.infos = append(c.infos, core.BackendInfo{
			ID:           a.ID(),
			Enabled:      true,
			Capabilities: a.Capabilities(),
			Priority:     len(adapters) - i,
		})
	}
	c.infos[c.writeIdx].WriteTarget = true

	return c, nil
}

// Close releases the fan-out worker pool.
func (c *Coordinator) Close() {
	c.pool.Release()
}

// Search runs the query against all backends and returns the merged,
// deduplicated, score-sorted result set capped at maxResults. A slow or
// failing backend contributes zero results and never fails the call.
func (c *Coordinator) Search(ctx context.Context, query, scope string, maxResults int) ([]core.Result, error) {
	if maxResults <= 0 {
		maxResults = c.maxResults
	}

	if len(c.adapters) == 1 {
		return c.searchOne(ctx, c.adapters[0], query, scope, maxResults)
	}

	// Collect into a fixed slot per adapter so that merge order (and
	// therefore dedup tie-breaks) follows configured adapter order, not
	// completion order.
	collected := make([][]core.Result, len(c.adapters))
	var wg sync.WaitGroup

	for i, adapter := range c.adapters {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		i, adapter := i, adapter
		err := c.pool.Submit(func() {
			defer wg.Done()
			results, err := c.searchOne(ctx, adapter, query, scope, maxResults)
			if err != nil {
				c.logger.Warn("backend search failed", "backend", adapter.ID(), "error", err)
				return
			}
			collected[i] = results
		})
		if err != nil {
			wg.Done()
			c.logger.Warn("failed to schedule backend search", "backend", adapter.ID(), "error", err)
		}
	}
	wg.Wait()

	var merged []core.Result
	for _, results := range collected {
		merged = append(merged, results...)
	}

	if c.dedup {
		merged = dedupByURL(merged)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Score > merged[j].Score
	})

	if len(merged) > maxResults {
		merged = merged[:maxResults]
	}
	return merged, nil
}

func (c *Coordinator) searchOne(ctx context.Context, adapter Adapter, query, scope string, maxResults int) ([]core.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if limit := adapter.Capabilities().MaxResults; limit > 0 && limit < maxResults {
		maxResults = limit
	}
	if scope != "" && !adapter.Capabilities().SupportsScopeFilter {
		scope = ""
	}
	return adapter.Search(ctx, query, scope, maxResults)
}

// dedupByURL keeps one result per URL: the highest score wins, the first
// processed wins ties. Single pass over the input.
func dedupByURL(results []core.Result) []core.Result {
	seen := make(map[string]int, len(results))
	unique := make([]core.Result, 0, len(results))
	for _, r := range results {
		idx, ok := seen[r.URL]
		if !ok {
			seen[r.URL] = len(unique)
			unique = append(unique, r)
			continue
		}
		if r.Score > unique[idx].Score {
			unique[idx] = r
		}
	}
	return unique
}

// Scopes returns the union of scope labels across all backends. Individual
// backend failures are logged and swallowed.
func (c *Coordinator) Scopes(ctx context.Context) ([]string, error) {
	seen := make(map[string]bool)
	var scopes []string
	for _, adapter := range c.adapters {
		labels, err := adapter.Scopes(ctx)
		if err != nil {
			c.logger.Warn("backend scopes unavailable", "backend", adapter.ID(), "error", err)
			continue
		}
		for _, label := range labels {
			if !seen[label] {
				seen[label] = true
				scopes = append(scopes, label)
			}
		}
	}
	sort.Strings(scopes)
	return scopes, nil
}

// GetByURL probes backends in configured order and returns the first hit.
func (c *Coordinator) GetByURL(ctx context.Context, url string) (*core.Result, error) {
	for _, adapter := range c.adapters {
		result, err := adapter.GetByURL(ctx, url)
		if err != nil {
			c.logger.Warn("backend lookup failed", "backend", adapter.ID(), "error", err)
			continue
		}
		if result != nil {
			return result, nil
		}
	}
	return nil, nil
}

// WriteBackend returns the descriptor of the backend designated for writes.
func (c *Coordinator) WriteBackend() *core.BackendInfo {
	info := c.infos[c.writeIdx]
	return &info
}

// Index routes a document to the designated write backend.
func (c *Coordinator) Index(ctx context.Context, doc Document) error {
	writer, ok := c.adapters[c.writeIdx].(Writer)
	if !ok {
		return ErrNoWriteBackend
	}
	return writer.Index(ctx, doc)
}

// Describe returns the startup-time descriptors for all configured backends.
func (c *Coordinator) Describe() []core.BackendInfo {
	infos := make([]core.BackendInfo, len(c.infos))
	copy(infos, c.infos)
	return infos
}
