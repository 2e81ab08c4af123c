package backend

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/mikeboe/query-orchestrator/pkg/core"
)

// Stop words ignored when scoring keyword matches
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "be": true, "is": true, "are": true,
	"was": true, "to": true, "of": true, "and": true, "in": true, "that": true,
	"have": true, "it": true, "for": true, "not": true, "on": true, "with": true,
	"as": true, "you": true, "do": true, "at": true, "this": true, "but": true,
	"by": true, "from": true, "what": true, "about": true,
}

// tokenize splits text into lowercased words, trims punctuation, and drops
// stop words.
func tokenize(text string) []string {
	words := strings.Fields(text)
	filtered := make([]string, 0, len(words))
	for _, word := range words {
		cleaned := strings.ToLower(strings.Trim(word, ".,!?;:'\"-()[]{}"))
		if cleaned != "" && !stopWords[cleaned] {
			filtered = append(filtered, cleaned)
		}
	}
	return filtered
}

// MemoryBackend is an in-process keyword-search adapter. It backs the CLI
// demo and tests, and accepts writes.
type MemoryBackend struct {
	mu      sync.RWMutex
	results []core.Result
}

func NewMemoryBackend(seed []core.Result) *MemoryBackend {
	b := &MemoryBackend{}
	b.results = append(b.results, seed...)
	return b
}

func (b *MemoryBackend) ID() string { return "memory" }

func (b *MemoryBackend) Capabilities() core.BackendCapabilities {
	return core.BackendCapabilities{
		SupportsScopeFilter: true,
		SupportsFullText:    true,
		MaxResults:          100,
	}
}

// Search scores seeded results by query-term overlap: a name hit counts
// triple, a description hit counts once.
func (b *MemoryBackend) Search(ctx context.Context, query, scope string, maxResults int) ([]core.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	terms := tokenize(query)

	b.mu.RLock()
	defer b.mu.RUnlock()

	var matches []core.Result
	for _, r := range b.results {
		if scope != "" && r.Site != scope {
			continue
		}
		score := keywordScore(terms, r.Name, r.Description)
		if score <= 0 {
			continue
		}
		scored := r
		scored.Score = score
		matches = append(matches, scored)
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if maxResults > 0 && len(matches) > maxResults {
		matches = matches[:maxResults]
	}
	return matches, nil
}

func keywordScore(terms []string, name, description string) float64 {
	if len(terms) == 0 {
		return 0
	}
	nameLower := strings.ToLower(name)
	descLower := strings.ToLower(description)

	var score float64
	for _, term := range terms {
		if strings.Contains(nameLower, term) {
			score += 3
		}
		if strings.Contains(descLower, term) {
			score += 1
		}
	}
	return score
}

func (b *MemoryBackend) Scopes(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	seen := make(map[string]bool)
	var scopes []string
	for _, r := range b.results {
		if r.Site != "" && !seen[r.Site] {
			seen[r.Site] = true
			scopes = append(scopes, r.Site)
		}
	}
	sort.Strings(scopes)
	return scopes, nil
}

func (b *MemoryBackend) GetByURL(ctx context.Context, url string) (*core.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, r := range b.results {
		if r.URL == url {
			found := r
			return &found, nil
		}
	}
	return nil, nil
}

// Index stores the document as a single searchable result, replacing any
// earlier entry with the same URL.
func (b *MemoryBackend) Index(ctx context.Context, doc Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	result := core.Result{
		URL:         doc.URL,
		Name:        doc.Title,
		Site:        doc.Site,
		Description: doc.Content,
		Payload:     doc.Metadata,
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for i, r := range b.results {
		if r.URL == doc.URL {
			b.results[i] = result
			return nil
		}
	}
	b.results = append(b.results, result)
	return nil
}
