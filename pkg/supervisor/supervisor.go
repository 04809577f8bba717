// Package supervisor hosts the management daemon's event loop: the BeeMsg
// server, the RPC server, the metrics server and collector, the topology
// liveness ticker, the capacity ticker, and the quota cycle ticker all run
// as cooperative tasks under a single Group; the store is opened before
// the Group runs and closed after it returns.
// A Group propagates one shutdown signal (context cancellation, from an OS
// signal or from any task's fatal error) to every task and then awaits an
// orderly drain before returning, mirroring the sequential, nil-guarded
// shutdown cascade the rest of this codebase uses for the store and the two
// servers, generalized into something that can wait on an arbitrary set of
// long-running tasks instead of a fixed list of named steps.
package supervisor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/beegfs/mgmtd/pkg/clock"
	"github.com/beegfs/mgmtd/pkg/log"
	"github.com/beegfs/mgmtd/pkg/mgmterr"
)

// Task is one long-running subsystem. Run must return promptly once ctx is
// canceled; a task that ignores cancellation delays the whole group's drain.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// ServerTask adapts a start-then-background / explicit-stop component (such
// as beemsg.Server or rpc.Server, neither of which takes a context) into a
// Task: start is called once, then the task blocks until ctx is canceled,
// then stop is called.
func ServerTask(name string, start func() error, stop func()) Task {
	return Task{
		Name: name,
		Run: func(ctx context.Context) error {
			if err := start(); err != nil {
				return err
			}
			<-ctx.Done()
			stop()
			return nil
		},
	}
}

// Group is a small errgroup.Group-equivalent: it launches every added task
// in its own goroutine, cancels a shared context the moment any task returns
// a non-nil error (or the caller's context is canceled), and waits for every
// task to return before Run itself returns. Unlike golang.org/x/sync/errgroup
// it also enforces a drain deadline: tasks that do not exit within
// DrainTimeout of cancellation are abandoned rather than waited on forever,
// so a wedged task cannot block process exit indefinitely.
type Group struct {
	clock        clock.Clock
	log          zerolog.Logger
	drainTimeout time.Duration

	mu    sync.Mutex
	tasks []Task
}

// New builds a Group. clk drives the drain deadline and should be
// clock.Real{} in production and a clock.Fake in tests. A zero drainTimeout
// defaults to 30s.
func New(clk clock.Clock, drainTimeout time.Duration) *Group {
	if drainTimeout <= 0 {
		drainTimeout = 30 * time.Second
	}
	return &Group{clock: clk, log: log.WithComponent("supervisor"), drainTimeout: drainTimeout}
}

// Add registers a task to be launched by Run. Add must not be called once
// Run has started.
func (g *Group) Add(t Task) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.tasks = append(g.tasks, t)
}

type taskResult struct {
	name string
	err  error
}

// Run launches every added task and blocks until the whole group has
// finished: either every task returned nil, or the group caught an error (or
// ctx was canceled) and successfully drained every task within the drain
// deadline. It returns the first non-nil, non-context.Canceled task error, or
// a shutdown error if the drain deadline elapsed with tasks still running.
func (g *Group) Run(ctx context.Context) error {
	g.mu.Lock()
	tasks := append([]Task(nil), g.tasks...)
	g.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan taskResult, len(tasks))
	for _, t := range tasks {
		t := t
		go func() {
			err := t.Run(runCtx)
			results <- taskResult{name: t.Name, err: err}
		}()
	}

	done := make(chan struct{})
	var firstErr error
	go func() {
		defer close(done)
		remaining := len(tasks)
		for remaining > 0 {
			r := <-results
			remaining--
			if r.err != nil && r.err != context.Canceled {
				g.log.Error().Err(r.err).Str("task", r.name).Msg("task exited with error")
				if firstErr == nil {
					firstErr = fmt.Errorf("%s: %w", r.name, r.err)
				}
				cancel()
			} else {
				g.log.Info().Str("task", r.name).Msg("task exited")
			}
		}
	}()

	select {
	case <-done:
		return firstErr
	case <-runCtx.Done():
	}

	ticker := g.clock.NewTicker(g.drainTimeout)
	defer ticker.Stop()
	select {
	case <-done:
		return firstErr
	case <-ticker.C():
		g.log.Error().Dur("timeout", g.drainTimeout).Msg("drain deadline exceeded, forcing abort")
		if firstErr != nil {
			return firstErr
		}
		return mgmterr.New(mgmterr.KindShutdown, "drain deadline exceeded before all tasks exited")
	}
}
