package tools

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mikeboe/query-orchestrator/pkg/core"
)

// Dispatcher selects and executes the best-matching registered handler for a
// tool id. Registration is a flat list resolved at startup.
type Dispatcher struct {
	handlers []Handler
	logger   *slog.Logger
}

func NewDispatcher(handlers []Handler, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{handlers: handlers, logger: logger}
}

// Execute runs the highest-priority handler whose tool type matches toolID
// and whose CanHandle predicate accepts the request. Handler errors propagate
// to the caller, which decides whether to fall back.
func (d *Dispatcher) Execute(ctx context.Context, req *core.Request, toolID string) (*core.Response, error) {
	var best Handler
	bestPriority := 0
	for _, h := range d.handlers {
		if h.Type() != toolID || !h.CanHandle(req) {
			continue
		}
		if p := h.Priority(req); best == nil || p > bestPriority {
			best = h
			bestPriority = p
		}
	}
	if best == nil {
		return nil, fmt.Errorf("%w for tool %q", ErrNoHandler, toolID)
	}

	d.logger.Debug("dispatching to tool handler", "tool", toolID, "priority", bestPriority)
	return best.Execute(ctx, req)
}

// ListTools exposes all registered handlers regardless of applicability.
func (d *Dispatcher) ListTools() []core.ToolInfo {
	infos := make([]core.ToolInfo, 0, len(d.handlers))
	for _, h := range d.handlers {
		infos = append(infos, core.ToolInfo{
			ID:          h.Type(),
			Description: h.Description(),
			Priority:    h.Priority(nil),
		})
	}
	return infos
}
