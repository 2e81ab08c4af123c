package backend

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/mikeboe/query-orchestrator/pkg/core"
)

const arxivAPIBase = "https://export.arxiv.org/api/query?"

// arxivEntry holds one arXiv Atom feed entry
type arxivEntry struct {
	Title   string      `xml:"title"`
	Summary string      `xml:"summary"`
	Link    []arxivLink `xml:"link"`
}

type arxivLink struct {
	Href string `xml:"href,attr"`
	Type string `xml:"type,attr"`
	Rel  string `xml:"rel,attr"`
}

type arxivFeed struct {
	XMLName xml.Name     `xml:"feed"`
	Entry   []arxivEntry `xml:"entry"`
}

// ArxivBackend searches the public arXiv API. Results carry rank-derived
// scores since the feed itself exposes none.
type ArxivBackend struct {
	client *http.Client
}

func NewArxivBackend(client *http.Client) *ArxivBackend {
	if client == nil {
		client = http.DefaultClient
	}
	return &ArxivBackend{client: client}
}

func (b *ArxivBackend) ID() string { return "arxiv" }

func (b *ArxivBackend) Capabilities() core.BackendCapabilities {
	return core.BackendCapabilities{
		SupportsFullText: true,
		MaxResults:       25,
	}
}

func (b *ArxivBackend) Search(ctx context.Context, query, scope string, maxResults int) ([]core.Result, error) {
	if maxResults <= 0 {
		maxResults = 5
	}

	params := url.Values{}
	params.Add("search_query", "all:"+query)
	params.Add("max_results", strconv.Itoa(maxResults))
	params.Add("start", "0")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, arxivAPIBase+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build API request: %w", err)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API returned non-200 status code: %d, body: %s", resp.StatusCode, string(bodyBytes))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var feed arxivFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("failed to unmarshal XML: %w", err)
	}

	results := make([]core.Result, 0, len(feed.Entry))
	for i, entry := range feed.Entry {
		identity := ""
		for _, link := range entry.Link {
			if link.Type == "application/pdf" {
				identity = link.Href
				break
			}
			if link.Rel == "alternate" && identity == "" {
				identity = link.Href
			}
		}
		if identity == "" {
			continue
		}
		results = append(results, core.Result{
			URL:         identity,
			Name:        strings.TrimSpace(entry.Title),
			Site:        "arxiv",
			Score:       float64(len(feed.Entry)-i) / float64(len(feed.Entry)),
			Description: strings.TrimSpace(entry.Summary),
		})
	}

	return results, nil
}

// Scopes is empty: the adapter searches all of arXiv.
func (b *ArxivBackend) Scopes(ctx context.Context) ([]string, error) {
	return nil, nil
}

// GetByURL is not supported by the arXiv API without an id list; other
// backends may still resolve the identity.
func (b *ArxivBackend) GetByURL(ctx context.Context, url string) (*core.Result, error) {
	return nil, nil
}
