package orchestration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mikeboe/query-orchestrator/pkg/backend"
	"github.com/mikeboe/query-orchestrator/pkg/config"
	"github.com/mikeboe/query-orchestrator/pkg/core"
	"github.com/mikeboe/query-orchestrator/pkg/generator"
	"github.com/mikeboe/query-orchestrator/pkg/query"
	"github.com/mikeboe/query-orchestrator/pkg/tools"
)

// Orchestrator is the top-level composition: it validates, decontextualizes,
// attempts tool routing with fallback, runs the backend search, and invokes
// the result generator, in single-shot and streaming forms.
type Orchestrator struct {
	processor   *query.Processor
	router      *tools.Router
	dispatcher  *tools.Dispatcher
	searcher    backend.Searcher
	generator   *generator.Generator
	defaultMode core.Mode
	logger      *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets a custom logger. Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func New(cfg *config.Config, processor *query.Processor, router *tools.Router, dispatcher *tools.Dispatcher, searcher backend.Searcher, gen *generator.Generator, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		processor:   processor,
		router:      router,
		dispatcher:  dispatcher,
		searcher:    searcher,
		generator:   gen,
		defaultMode: core.ParseMode(cfg.DefaultMode, core.ModeList),
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Scopes lists the scope values known across all backends.
func (o *Orchestrator) Scopes(ctx context.Context) ([]string, error) {
	return o.searcher.Scopes(ctx)
}

// Tools describes the registered tool handlers.
func (o *Orchestrator) Tools() []core.ToolInfo {
	return o.dispatcher.ListTools()
}

// Handle runs one request to completion. The returned error is non-nil only
// for caller cancellation and for missing-handler registration defects;
// every other failure comes back as a Response with a populated error
// string.
func (o *Orchestrator) Handle(ctx context.Context, req *core.Request) (*core.Response, error) {
	started := time.Now()

	if req == nil {
		return core.ErrorResponse("", "", o.defaultMode, started, "invalid request: missing body"), nil
	}
	if req.Mode == "" {
		req.Mode = o.defaultMode
	}
	if !o.processor.Validate(req) {
		return core.ErrorResponse(req.QueryID, req.Query, req.Mode, started, "invalid request: query must be non-empty and within the length limit"), nil
	}
	req.QueryID = o.processor.GenerateId(req)

	if req.TimeoutSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(req.TimeoutSeconds)*time.Second)
		defer cancel()
	}

	if o.router.ShouldRoute(req) {
		toolID := o.router.SelectTool(ctx, req)
		resp, err := o.dispatcher.Execute(ctx, req, toolID)
		switch {
		case err == nil:
			return resp, nil
		case errors.Is(err, tools.ErrNoHandler):
			// Registration defect, not a query problem.
			return nil, err
		case ctx.Err() != nil:
			return nil, ctx.Err()
		default:
			o.logger.Warn("tool execution failed, falling back to standard pipeline", "tool", toolID, "error", err)
		}
	}

	return o.standardPipeline(ctx, req, started)
}

func (o *Orchestrator) standardPipeline(ctx context.Context, req *core.Request, started time.Time) (*core.Response, error) {
	effective := o.processor.Process(req)

	results, err := o.generator.GenerateList(ctx, effective, req.Scope, req.MaxResults)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		o.logger.Error("backend search failed", "query_id", req.QueryID, "error", err)
		return core.ErrorResponse(req.QueryID, req.Query, req.Mode, started, fmt.Sprintf("search failed: %v", err)), nil
	}
	if results == nil {
		results = []core.Result{}
	}

	resp := &core.Response{
		QueryID: req.QueryID,
		Query:   req.Query,
		Mode:    req.Mode,
		Results: results,
	}
	switch req.Mode {
	case core.ModeSummarize:
		resp.Summary = o.generator.GenerateSummary(ctx, effective, results)
	case core.ModeGenerate:
		resp.GeneratedResponse = o.generator.GenerateResponse(ctx, effective, results)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	resp.ProcessingTimeMs = time.Since(started).Milliseconds()
	resp.IsComplete = true
	return resp, nil
}
