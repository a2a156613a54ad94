package streamer

import (
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
)

// Dispatcher runs fetch jobs off the tick goroutine.
type Dispatcher interface {
	Dispatch(job func())
}

// DispatchFunc adapts a plain function to Dispatcher.
type DispatchFunc func(job func())

func (f DispatchFunc) Dispatch(job func()) {
	f(job)
}

// Inline runs every job immediately on the caller's goroutine. Completions still wait for the
// next Tick, so ordering matches the asynchronous dispatchers.
var Inline Dispatcher = DispatchFunc(func(job func()) { job() })

// PoolDispatcher runs jobs on a bounded worker pool.
type PoolDispatcher struct {
	pool   worker.DynamicWorkerPool
	nextID atomic.Int64
}

var _ Dispatcher = &PoolDispatcher{}

// NewPoolDispatcher creates a dispatcher backed by a dynamic worker pool.
// Dispatch blocks once queueSize jobs are waiting.
//
// Parameters:
//   - workers: the maximum number of concurrent fetches
//   - queueSize: the number of jobs that may wait for a worker
//
// Returns:
//   - *PoolDispatcher: the running dispatcher
func NewPoolDispatcher(workers, queueSize int) *PoolDispatcher {
	return &PoolDispatcher{
		pool: worker.NewDynamicWorkerPool(workers, queueSize, time.Second),
	}
}

func (d *PoolDispatcher) Dispatch(job func()) {
	d.pool.SubmitTask(worker.Task{
		ID: int(d.nextID.Add(1)),
		Do: func() (any, error) {
			job()
			return nil, nil
		},
	})
}

// Workers returns the pool's worker limit.
func (d *PoolDispatcher) Workers() int {
	return d.pool.GetMaxWorkers()
}

// Close stops the pool. Queued jobs that have not started are dropped.
func (d *PoolDispatcher) Close() {
	d.pool.ClearTaskQueue()
	d.pool.Stop()
}
