package store

import (
	"context"
	"database/sql"

	"github.com/beegfs/mgmtd/pkg/metrics"
	"github.com/beegfs/mgmtd/pkg/mgmterr"
)

// workItem is one unit of work submitted to the writer executor. fn runs
// inside a single transaction that is the work item's commit boundary.
type workItem struct {
	ctx    context.Context
	fn     func(*sql.Tx) (any, error)
	result chan<- itemResult
}

type itemResult struct {
	value any
	err   error
}

// executor owns the single *sql.DB write handle and runs submitted work
// items strictly serially, giving ACID semantics without caller-side
// locking.
type executor struct {
	db    *sql.DB
	queue chan workItem
	done  chan struct{}
}

const defaultQueueDepth = 256

func newExecutor(db *sql.DB) *executor {
	e := &executor{
		db:    db,
		queue: make(chan workItem, defaultQueueDepth),
		done:  make(chan struct{}),
	}
	go e.run()
	return e
}

func (e *executor) run() {
	defer close(e.done)
	for item := range e.queue {
		metrics.StoreQueueDepth.Set(float64(len(e.queue)))
		value, err := e.apply(item)
		select {
		case item.result <- itemResult{value: value, err: err}:
		case <-item.ctx.Done():
		}
	}
}

func (e *executor) apply(item workItem) (any, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.StoreTxDuration)

	tx, err := e.db.BeginTx(item.ctx, nil)
	if err != nil {
		return nil, mgmterr.Wrap(mgmterr.KindIO, "begin transaction", err)
	}

	value, err := item.fn(tx)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, translateSQLError(err)
	}
	return value, nil
}

// submit enqueues fn and blocks until it has run (or ctx is canceled). A
// full queue returns Busy immediately rather than blocking the caller
// indefinitely.
func (e *executor) submit(ctx context.Context, fn func(*sql.Tx) (any, error)) (any, error) {
	result := make(chan itemResult, 1)
	item := workItem{ctx: ctx, fn: fn, result: result}

	select {
	case e.queue <- item:
	default:
		return nil, mgmterr.New(mgmterr.KindBusy, "store work queue is full")
	}

	select {
	case r := <-result:
		return r.value, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// close stops accepting new work and waits for the queue to drain.
func (e *executor) close() {
	close(e.queue)
	<-e.done
}
