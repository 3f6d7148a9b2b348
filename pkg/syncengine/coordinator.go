package syncengine

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// syncRunner lets the coordinator drive either a real Engine or a test
// double.
type syncRunner interface {
	Sync(ctx context.Context, req Request) error
}

// Coordinator serializes sync execution: at most one pass runs at a time
// per process. A request arriving mid-flight merges into a single queued
// request that re-runs once the current pass finishes, draining until
// nothing remains queued. It also owns the one debounce timer that
// coalesces bursts of local writes into a single push.
type Coordinator struct {
	engine syncRunner
	quiet  time.Duration
	logger *slog.Logger

	mu       sync.Mutex
	running  bool
	queued   *Request
	debounce *time.Timer
}

// NewCoordinator creates a coordinator over the engine. quiet is the
// debounce window for local-change pushes.
func NewCoordinator(engine syncRunner, quiet time.Duration, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{engine: engine, quiet: quiet, logger: logger}
}

// RequestSync runs a pass now, or merges the request into the pending
// queued one when a pass is already in flight. The caller that started the
// drain receives the first error; merged callers get nil immediately.
func (c *Coordinator) RequestSync(ctx context.Context, req Request) error {
	c.mu.Lock()
	if c.running {
		merged := mergeRequests(c.queued, req)
		c.queued = &merged
		c.mu.Unlock()
		c.logger.Debug("sync in flight, request queued",
			"mode", merged.Mode, "allow_push", merged.AllowPush)
		return nil
	}
	c.running = true
	c.mu.Unlock()

	var firstErr error
	next := &req
	for next != nil {
		if err := c.engine.Sync(ctx, *next); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			c.logger.Error("sync pass failed", "mode", next.Mode, "error", err)
		}
		c.mu.Lock()
		next = c.queued
		c.queued = nil
		if next == nil {
			c.running = false
		}
		c.mu.Unlock()
	}
	return firstErr
}

// NotifyLocalChange schedules a debounced push. Repeated notifications
// within the quiet period collapse into one pass; only one timer is ever
// alive.
func (c *Coordinator) NotifyLocalChange() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.debounce != nil {
		c.debounce.Reset(c.quiet)
		return
	}
	c.debounce = time.AfterFunc(c.quiet, func() {
		c.mu.Lock()
		c.debounce = nil
		c.mu.Unlock()
		if err := c.RequestSync(context.Background(), Request{Mode: ModePush, AllowPush: true}); err != nil {
			c.logger.Error("debounced push failed", "error", err)
		}
	})
}

// mergeRequests folds a new request into the queued one: any full dominates
// push/pull, differing push and pull combine to full, and allowPush=false
// dominates true.
func mergeRequests(queued *Request, incoming Request) Request {
	if queued == nil {
		return incoming
	}
	merged := Request{Mode: queued.Mode, AllowPush: queued.AllowPush && incoming.AllowPush}
	if queued.Mode != incoming.Mode {
		merged.Mode = ModeFull
	}
	return merged
}
