package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/mikeboe/query-orchestrator/pkg/backend"
	"github.com/mikeboe/query-orchestrator/pkg/config"
	"github.com/mikeboe/query-orchestrator/pkg/core"
	"github.com/mikeboe/query-orchestrator/pkg/generator"
	"github.com/mikeboe/query-orchestrator/pkg/orchestration"
	"github.com/mikeboe/query-orchestrator/pkg/query"
	"github.com/mikeboe/query-orchestrator/pkg/tools"
)

func testRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		ToolRoutingEnabled:   true,
		MaxResultsPerQuery:   20,
		DefaultMode:          "list",
		MaxQueryLength:       1000,
		BackendTimeoutSecs:   5,
		MaxConcurrentQueries: 2,
		DedupEnabled:         true,
	}

	mem := backend.NewMemoryBackend([]core.Result{
		{URL: "u1", Name: "Pasta Carbonara", Site: "recipes", Description: "Roman pasta with eggs"},
	})
	coord, err := backend.NewCoordinator(cfg, []backend.Adapter{mem})
	if err != nil {
		t.Fatalf("NewCoordinator() error = %v", err)
	}
	t.Cleanup(coord.Close)

	gen := generator.NewGenerator(cfg, coord, nil, generator.WithChunkDelay(0))
	dispatcher := tools.NewDispatcher([]tools.Handler{tools.NewSearchHandler(coord)}, nil)
	orch := orchestration.New(cfg, query.NewProcessor(cfg), tools.NewRouter(cfg), dispatcher, coord, gen)

	r := gin.New()
	NewHandler(orch, coord).RegisterRoutes(r)
	return r
}

func TestHealthEndpoint(t *testing.T) {
	r := testRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d, want 200", w.Code)
	}
}

func TestQueryEndpoint(t *testing.T) {
	r := testRouter(t)

	body, _ := json.Marshal(core.Request{Query: "pasta"})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/query", bytes.NewReader(body)))

	if w.Code != http.StatusOK {
		t.Fatalf("POST /api/query = %d, body %s", w.Code, w.Body.String())
	}

	var resp core.Response
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response JSON: %v", err)
	}
	if resp.Error != "" {
		t.Fatalf("response Error = %q", resp.Error)
	}
	if len(resp.Results) == 0 {
		t.Error("no results for a seeded query")
	}
}

func TestQueryEndpointInvalidBody(t *testing.T) {
	r := testRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/query", strings.NewReader("{not json")))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("POST /api/query with bad JSON = %d, want 400", w.Code)
	}
}

func TestQueryStreamEndpoint(t *testing.T) {
	r := testRouter(t)

	body, _ := json.Marshal(core.Request{Query: "pasta", Mode: core.ModeGenerate})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/query/stream", bytes.NewReader(body)))

	if w.Code != http.StatusOK {
		t.Fatalf("POST /api/query/stream = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Errorf("Content-Type = %q, want text/event-stream", ct)
	}

	// Each SSE event is one well-formed Response JSON.
	events := 0
	for _, line := range strings.Split(w.Body.String(), "\n") {
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		events++
		var resp core.Response
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &resp); err != nil {
			t.Fatalf("malformed event %q: %v", line, err)
		}
	}
	if events < 3 {
		t.Errorf("got %d events, want initial + content + final", events)
	}
}

func TestToolsEndpoint(t *testing.T) {
	r := testRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/tools", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("GET /api/tools = %d", w.Code)
	}
	var infos []core.ToolInfo
	if err := json.Unmarshal(w.Body.Bytes(), &infos); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(infos) != 1 || infos[0].ID != "search" {
		t.Errorf("tools = %v, want the registered search tool", infos)
	}
}

func TestDocumentsEndpoint(t *testing.T) {
	r := testRouter(t)

	doc := backend.Document{URL: "u9", Title: "New Doc", Content: "fresh searchable content"}
	body, _ := json.Marshal(doc)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/documents", bytes.NewReader(body)))

	if w.Code != http.StatusCreated {
		t.Fatalf("POST /api/documents = %d, body %s", w.Code, w.Body.String())
	}

	// The document is now searchable.
	qBody, _ := json.Marshal(core.Request{Query: "fresh searchable"})
	qw := httptest.NewRecorder()
	r.ServeHTTP(qw, httptest.NewRequest(http.MethodPost, "/api/query", bytes.NewReader(qBody)))

	var resp core.Response
	if err := json.Unmarshal(qw.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response JSON: %v", err)
	}
	found := false
	for _, res := range resp.Results {
		if res.URL == "u9" {
			found = true
		}
	}
	if !found {
		t.Error("indexed document not returned by search")
	}
}

func TestDocumentsEndpointRequiresFields(t *testing.T) {
	r := testRouter(t)

	body, _ := json.Marshal(backend.Document{Title: "no url or content"})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/documents", bytes.NewReader(body)))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("POST /api/documents without url = %d, want 400", w.Code)
	}
}

func TestMCPInitializeAndQuery(t *testing.T) {
	r := testRouter(t)

	initBody := `{"jsonrpc":"2.0","id":1,"method":"initialize"}`
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(initBody)))

	if w.Code != http.StatusOK {
		t.Fatalf("initialize = %d", w.Code)
	}
	sessionID := w.Header().Get("Mcp-Session-Id")
	if sessionID == "" {
		t.Fatal("initialize did not assign a session id")
	}

	callBody := `{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"query","arguments":{"query":"pasta"}}}`
	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(callBody))
	req.Header.Set("Mcp-Session-Id", sessionID)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp MCPResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON-RPC response: %v", err)
	}
	if resp.Error != nil {
		t.Fatalf("tools/call error = %+v", resp.Error)
	}
	if resp.Result == nil {
		t.Fatal("tools/call returned no result")
	}
}

func TestMCPRejectsMissingSession(t *testing.T) {
	r := testRouter(t)

	body := `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(body)))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("tools/list without session = %d, want 400", w.Code)
	}
}
