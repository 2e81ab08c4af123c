package orchestration

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/mikeboe/query-orchestrator/pkg/core"
	"github.com/mikeboe/query-orchestrator/pkg/tools"
)

// streamItem carries either a response chunk or a terminal error across the
// producer/consumer boundary.
type streamItem struct {
	resp *core.Response
	err  error
}

// HandleStream runs one request as an incremental sequence of Response
// chunks: an initial chunk with the raw results, cumulative content chunks
// for Summarize and Generate modes, and a final chunk marked complete.
//
// Production runs in its own goroutine, isolated from the consumer-facing
// sequence, so any failure mid-production still surfaces as exactly one
// well-formed error Response rather than a broken stream. Only caller
// cancellation is yielded as an error value.
func (o *Orchestrator) HandleStream(ctx context.Context, req *core.Request) iter.Seq2[*core.Response, error] {
	return func(yield func(*core.Response, error) bool) {
		items := make(chan streamItem)
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		go func() {
			defer close(items)
			o.produceStream(ctx, req, items)
		}()

		for item := range items {
			if !yield(item.resp, item.err) {
				cancel()
				for range items {
				}
				return
			}
		}
	}
}

func (o *Orchestrator) produceStream(ctx context.Context, req *core.Request, out chan<- streamItem) {
	started := time.Now()

	send := func(resp *core.Response) bool {
		select {
		case out <- streamItem{resp: resp}:
			return true
		case <-ctx.Done():
			return false
		}
	}
	sendErr := func(err error) {
		select {
		case out <- streamItem{err: err}:
		case <-ctx.Done():
		}
	}

	if req == nil {
		send(core.ErrorResponse("", "", o.defaultMode, started, "invalid request: missing body"))
		return
	}
	if req.Mode == "" {
		req.Mode = o.defaultMode
	}
	if !o.processor.Validate(req) {
		send(core.ErrorResponse(req.QueryID, req.Query, req.Mode, started, "invalid request: query must be non-empty and within the length limit"))
		return
	}
	req.QueryID = o.processor.GenerateId(req)

	if req.TimeoutSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(req.TimeoutSeconds)*time.Second)
		defer cancel()
	}

	// Tool-routed requests resolve in one shot; the stream carries their
	// single response as the final chunk.
	if o.router.ShouldRoute(req) {
		toolID := o.router.SelectTool(ctx, req)
		resp, err := o.dispatcher.Execute(ctx, req, toolID)
		switch {
		case err == nil:
			send(resp)
			return
		case errors.Is(err, tools.ErrNoHandler):
			send(core.ErrorResponse(req.QueryID, req.Query, req.Mode, started, fmt.Sprintf("tool routing failed: %v", err)))
			return
		case ctx.Err() != nil:
			sendErr(ctx.Err())
			return
		default:
			o.logger.Warn("tool execution failed, falling back to standard pipeline", "tool", toolID, "error", err)
		}
	}

	effective := o.processor.Process(req)

	results, err := o.generator.GenerateList(ctx, effective, req.Scope, req.MaxResults)
	if err != nil {
		if ctx.Err() != nil {
			sendErr(ctx.Err())
			return
		}
		o.logger.Error("backend search failed", "query_id", req.QueryID, "error", err)
		send(core.ErrorResponse(req.QueryID, req.Query, req.Mode, started, fmt.Sprintf("search failed: %v", err)))
		return
	}
	if results == nil {
		results = []core.Result{}
	}

	// Initial chunk: the raw results, before any content generation.
	if !send(&core.Response{
		QueryID:     req.QueryID,
		Query:       req.Query,
		Mode:        req.Mode,
		Results:     results,
		IsStreaming: true,
	}) {
		return
	}

	final := &core.Response{
		QueryID:     req.QueryID,
		Query:       req.Query,
		Mode:        req.Mode,
		Results:     results,
		IsStreaming: true,
		IsComplete:  true,
	}

	if req.Mode == core.ModeSummarize || req.Mode == core.ModeGenerate {
		var accumulated string
		for chunk, err := range o.generator.StreamResponse(ctx, effective, results, req.Mode) {
			if err != nil {
				sendErr(err)
				return
			}
			accumulated += chunk
			partial := &core.Response{
				QueryID:     req.QueryID,
				Query:       req.Query,
				Mode:        req.Mode,
				IsStreaming: true,
			}
			setContent(partial, req.Mode, accumulated)
			if !send(partial) {
				return
			}
		}
		setContent(final, req.Mode, accumulated)
	}

	final.ProcessingTimeMs = time.Since(started).Milliseconds()
	send(final)
}

// setContent places text in the mode's content field.
func setContent(resp *core.Response, mode core.Mode, text string) {
	if mode == core.ModeSummarize {
		resp.Summary = text
	} else {
		resp.GeneratedResponse = text
	}
}
