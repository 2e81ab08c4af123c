package tools

import (
	"context"
	"errors"
	"testing"

	"github.com/mikeboe/query-orchestrator/pkg/core"
)

// stubHandler is a scripted handler for dispatcher tests.
type stubHandler struct {
	toolType  string
	canHandle bool
	priority  int
	resp      *core.Response
	err       error
	executed  bool
}

func (s *stubHandler) Type() string                        { return s.toolType }
func (s *stubHandler) Description() string                 { return "stub" }
func (s *stubHandler) CanHandle(req *core.Request) bool    { return s.canHandle }
func (s *stubHandler) Priority(req *core.Request) int      { return s.priority }
func (s *stubHandler) Execute(ctx context.Context, req *core.Request) (*core.Response, error) {
	s.executed = true
	return s.resp, s.err
}

func TestDispatcherPicksHighestPriority(t *testing.T) {
	low := &stubHandler{toolType: ToolSearch, canHandle: true, priority: 1, resp: &core.Response{QueryID: "low"}}
	high := &stubHandler{toolType: ToolSearch, canHandle: true, priority: 10, resp: &core.Response{QueryID: "high"}}

	d := NewDispatcher([]Handler{low, high}, nil)
	resp, err := d.Execute(context.Background(), &core.Request{Query: "q"}, ToolSearch)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if resp.QueryID != "high" {
		t.Errorf("dispatched to %q, want the higher-priority handler", resp.QueryID)
	}
	if low.executed {
		t.Error("lower-priority handler was executed")
	}
}

func TestDispatcherSkipsNonMatching(t *testing.T) {
	wrongType := &stubHandler{toolType: ToolCompare, canHandle: true, priority: 10}
	cannotHandle := &stubHandler{toolType: ToolSearch, canHandle: false, priority: 10}
	match := &stubHandler{toolType: ToolSearch, canHandle: true, priority: 1, resp: &core.Response{QueryID: "match"}}

	d := NewDispatcher([]Handler{wrongType, cannotHandle, match}, nil)
	resp, err := d.Execute(context.Background(), &core.Request{Query: "q"}, ToolSearch)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if resp.QueryID != "match" {
		t.Errorf("dispatched to %q, want the only matching handler", resp.QueryID)
	}
}

func TestDispatcherNoHandler(t *testing.T) {
	d := NewDispatcher([]Handler{
		&stubHandler{toolType: ToolSearch, canHandle: false},
	}, nil)

	_, err := d.Execute(context.Background(), &core.Request{Query: "q"}, ToolSearch)
	if !errors.Is(err, ErrNoHandler) {
		t.Errorf("Execute() error = %v, want ErrNoHandler", err)
	}
}

func TestDispatcherPropagatesHandlerError(t *testing.T) {
	boom := errors.New("backend exploded")
	d := NewDispatcher([]Handler{
		&stubHandler{toolType: ToolSearch, canHandle: true, priority: 5, err: boom},
	}, nil)

	_, err := d.Execute(context.Background(), &core.Request{Query: "q"}, ToolSearch)
	if !errors.Is(err, boom) {
		t.Errorf("Execute() error = %v, want the handler's error", err)
	}
}

func TestListTools(t *testing.T) {
	d := NewDispatcher([]Handler{
		&stubHandler{toolType: ToolSearch, priority: 1},
		&stubHandler{toolType: ToolCompare, priority: 10},
	}, nil)

	infos := d.ListTools()
	if len(infos) != 2 {
		t.Fatalf("ListTools() returned %d entries, want 2", len(infos))
	}
	if infos[0].ID != ToolSearch || infos[1].ID != ToolCompare {
		t.Errorf("ListTools() ids = %s, %s", infos[0].ID, infos[1].ID)
	}
}
