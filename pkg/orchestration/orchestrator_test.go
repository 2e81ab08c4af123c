package orchestration

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/mikeboe/query-orchestrator/pkg/backend"
	"github.com/mikeboe/query-orchestrator/pkg/config"
	"github.com/mikeboe/query-orchestrator/pkg/core"
	"github.com/mikeboe/query-orchestrator/pkg/generator"
	"github.com/mikeboe/query-orchestrator/pkg/query"
	"github.com/mikeboe/query-orchestrator/pkg/tools"
)

func testConfig() *config.Config {
	return &config.Config{
		ToolRoutingEnabled: true,
		MaxResultsPerQuery: 20,
		DefaultMode:        "list",
		MaxQueryLength:     1000,
	}
}

func seededBackend() *backend.MemoryBackend {
	return backend.NewMemoryBackend([]core.Result{
		{URL: "u1", Name: "Margherita Pizza", Site: "recipes", Description: "Classic pizza with tomato and mozzarella"},
		{URL: "u2", Name: "Pasta Carbonara", Site: "recipes", Description: "Roman pasta with eggs and guanciale"},
		{URL: "u3", Name: "Louvre Museum", Site: "travel", Description: "Art museum in Paris"},
	})
}

// newTestOrchestrator wires real components over the in-memory backend.
// handlers may be nil to register the standard tool set.
func newTestOrchestrator(cfg *config.Config, searcher backend.Searcher, handlers []tools.Handler) *Orchestrator {
	if handlers == nil {
		handlers = []tools.Handler{
			tools.NewSearchHandler(searcher),
			tools.NewDetailsHandler(searcher),
			tools.NewCompareHandler(searcher),
			tools.NewEnsembleHandler(searcher),
			tools.NewRecipeHandler(searcher),
		}
	}
	gen := generator.NewGenerator(cfg, searcher, nil, generator.WithChunkDelay(0))
	return New(cfg, query.NewProcessor(cfg), tools.NewRouter(cfg), tools.NewDispatcher(handlers, nil), searcher, gen)
}

func TestHandleInvalidRequest(t *testing.T) {
	o := newTestOrchestrator(testConfig(), seededBackend(), nil)
	ctx := context.Background()

	tests := []struct {
		name string
		req  *core.Request
	}{
		{"Nil request", nil},
		{"Empty query", &core.Request{Query: ""}},
		{"Whitespace query", &core.Request{Query: "   "}},
		{"Over length limit", &core.Request{Query: strings.Repeat("x", 1001)}},
		{"Negative max results", &core.Request{Query: "ok", MaxResults: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := o.Handle(ctx, tt.req)
			if err != nil {
				t.Fatalf("Handle() error = %v, want structured error response instead", err)
			}
			if resp.Error == "" {
				t.Error("response Error is empty, want a validation message")
			}
			if len(resp.Results) != 0 {
				t.Errorf("got %d results on invalid request, want 0", len(resp.Results))
			}
			if !resp.IsComplete {
				t.Error("IsComplete = false, want true")
			}
		})
	}
}

func TestHandleListMode(t *testing.T) {
	o := newTestOrchestrator(testConfig(), seededBackend(), nil)

	resp, err := o.Handle(context.Background(), &core.Request{Query: "pasta carbonara"})
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if resp.Error != "" {
		t.Fatalf("response Error = %q", resp.Error)
	}
	if resp.QueryID == "" {
		t.Error("QueryID not assigned")
	}
	if resp.Mode != core.ModeList {
		t.Errorf("Mode = %q, want default list", resp.Mode)
	}
	if len(resp.Results) == 0 {
		t.Fatal("no results for a seeded query")
	}
	if resp.Results[0].URL != "u2" {
		t.Errorf("top result = %s, want the carbonara entry", resp.Results[0].URL)
	}
}

func TestHandleSummarizeMode(t *testing.T) {
	cfg := testConfig()
	cfg.ToolRoutingEnabled = false
	o := newTestOrchestrator(cfg, seededBackend(), nil)

	resp, err := o.Handle(context.Background(), &core.Request{Query: "pasta", Mode: core.ModeSummarize})
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if resp.Summary == "" {
		t.Error("Summary is empty in summarize mode")
	}
	if resp.GeneratedResponse != "" {
		t.Errorf("GeneratedResponse = %q, want empty in summarize mode", resp.GeneratedResponse)
	}
}

func TestHandleGenerateMode(t *testing.T) {
	o := newTestOrchestrator(testConfig(), seededBackend(), nil)

	resp, err := o.Handle(context.Background(), &core.Request{Query: "pasta", Mode: core.ModeGenerate})
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if !strings.HasPrefix(resp.GeneratedResponse, "Here is what was found for") {
		t.Errorf("GeneratedResponse = %q, want the template answer", resp.GeneratedResponse)
	}
}

func TestHandleRoutesToTool(t *testing.T) {
	o := newTestOrchestrator(testConfig(), seededBackend(), nil)

	resp, err := o.Handle(context.Background(), &core.Request{Query: "compare pizza vs pasta"})
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if len(resp.Results) == 0 {
		t.Fatal("no results from compare tool")
	}
	if !strings.HasPrefix(resp.Results[0].Name, "Comparison: ") {
		t.Errorf("top result = %q, want the comparison header", resp.Results[0].Name)
	}
}

// failingHandler always claims the request and always fails.
type failingHandler struct{}

func (failingHandler) Type() string                     { return tools.ToolSearch }
func (failingHandler) Description() string              { return "always fails" }
func (failingHandler) CanHandle(req *core.Request) bool { return true }
func (failingHandler) Priority(req *core.Request) int   { return 100 }
func (failingHandler) Execute(ctx context.Context, req *core.Request) (*core.Response, error) {
	return nil, errors.New("tool exploded")
}

func TestHandleFallsBackOnToolFailure(t *testing.T) {
	o := newTestOrchestrator(testConfig(), seededBackend(), []tools.Handler{failingHandler{}})

	resp, err := o.Handle(context.Background(), &core.Request{Query: "search for pasta"})
	if err != nil {
		t.Fatalf("Handle() error = %v, want fallback to succeed", err)
	}
	if resp.Error != "" {
		t.Fatalf("response Error = %q, want clean fallback", resp.Error)
	}
	if len(resp.Results) == 0 {
		t.Error("fallback pipeline produced no results")
	}
}

func TestHandleDetailsWithoutSubjectFallsBack(t *testing.T) {
	o := newTestOrchestrator(testConfig(), seededBackend(), nil)

	// Routes to the details tool on keyword, but carries no extractable
	// subject, so the tool fails and the standard pipeline takes over.
	resp, err := o.Handle(context.Background(), &core.Request{Query: "more details", Mode: core.ModeList})
	if err != nil {
		t.Fatalf("Handle() error = %v, want fallback response", err)
	}
	if resp.Error != "" {
		t.Fatalf("response Error = %q, want clean fallback", resp.Error)
	}
	if !resp.IsComplete {
		t.Error("IsComplete = false, want true")
	}
}

func TestHandlePropagatesNoHandler(t *testing.T) {
	o := newTestOrchestrator(testConfig(), seededBackend(), []tools.Handler{})

	_, err := o.Handle(context.Background(), &core.Request{Query: "search for pasta"})
	if !errors.Is(err, tools.ErrNoHandler) {
		t.Errorf("Handle() error = %v, want ErrNoHandler to propagate", err)
	}
}

func TestHandleCancellation(t *testing.T) {
	o := newTestOrchestrator(testConfig(), seededBackend(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := o.Handle(ctx, &core.Request{Query: "pasta", Mode: core.ModeGenerate})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Handle() error = %v, want context.Canceled", err)
	}
}

func collectChunks(t *testing.T, o *Orchestrator, req *core.Request) []*core.Response {
	t.Helper()
	var chunks []*core.Response
	for chunk, err := range o.HandleStream(context.Background(), req) {
		if err != nil {
			t.Fatalf("stream error = %v", err)
		}
		chunks = append(chunks, chunk)
	}
	return chunks
}

func TestHandleStreamGenerateMode(t *testing.T) {
	o := newTestOrchestrator(testConfig(), seededBackend(), nil)

	chunks := collectChunks(t, o, &core.Request{Query: "pasta", Mode: core.ModeGenerate})
	if len(chunks) < 3 {
		t.Fatalf("got %d chunks, want initial + content + final", len(chunks))
	}

	initial := chunks[0]
	if !initial.IsStreaming || initial.IsComplete {
		t.Error("initial chunk flags wrong, want streaming and not complete")
	}
	if len(initial.Results) == 0 {
		t.Error("initial chunk carries no results")
	}
	if initial.GeneratedResponse != "" {
		t.Error("initial chunk carries content before generation started")
	}

	// Content chunks are cumulative: each extends the previous.
	var prev string
	for _, c := range chunks[1 : len(chunks)-1] {
		if !strings.HasPrefix(c.GeneratedResponse, prev) {
			t.Fatalf("content chunk %q does not extend %q", c.GeneratedResponse, prev)
		}
		prev = c.GeneratedResponse
	}

	final := chunks[len(chunks)-1]
	if !final.IsComplete {
		t.Error("final chunk not marked complete")
	}
	if len(final.Results) == 0 {
		t.Error("final chunk carries no results")
	}
	if !strings.HasPrefix(final.GeneratedResponse, "Here is what was found for") {
		t.Errorf("final content = %q, want the full template answer", final.GeneratedResponse)
	}
	if final.GeneratedResponse != prev {
		t.Errorf("final content differs from last cumulative chunk")
	}
}

func TestHandleStreamListMode(t *testing.T) {
	cfg := testConfig()
	cfg.ToolRoutingEnabled = false
	o := newTestOrchestrator(cfg, seededBackend(), nil)

	chunks := collectChunks(t, o, &core.Request{Query: "pasta", Mode: core.ModeList})
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want initial + final for list mode", len(chunks))
	}
	if !chunks[0].IsStreaming || chunks[0].IsComplete {
		t.Error("initial chunk flags wrong")
	}
	if !chunks[1].IsComplete {
		t.Error("final chunk not marked complete")
	}
}

func TestHandleStreamInvalidRequest(t *testing.T) {
	o := newTestOrchestrator(testConfig(), seededBackend(), nil)

	chunks := collectChunks(t, o, &core.Request{Query: ""})
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want exactly one error response", len(chunks))
	}
	if chunks[0].Error == "" {
		t.Error("error chunk has no error message")
	}
	if !chunks[0].IsComplete {
		t.Error("error chunk not marked complete")
	}
}

func TestHandleStreamRoutedTool(t *testing.T) {
	o := newTestOrchestrator(testConfig(), seededBackend(), nil)

	chunks := collectChunks(t, o, &core.Request{Query: "compare pizza vs pasta", Mode: core.ModeList})
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want the tool's single response", len(chunks))
	}
	if !strings.HasPrefix(chunks[0].Results[0].Name, "Comparison: ") {
		t.Errorf("routed stream result = %q", chunks[0].Results[0].Name)
	}
}
