// Package throttle serializes calls to the remote store behind a single-slot
// queue with a minimum delay between calls.
//
// The spreadsheet facade allows roughly one request per second. Every read and
// write goes through one Throttler owned by the process, so the call rate stays
// under that ceiling no matter how many visitors are being served.
package throttle

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cuemby/sheetsite/pkg/log"
	"github.com/cuemby/sheetsite/pkg/metrics"
)

// DefaultDelay is the pause enforced after each operation
const DefaultDelay = time.Second

// ErrStopped is returned for operations enqueued after Stop
var ErrStopped = errors.New("throttle: stopped")

// Operation is one deferred call against the remote store
type Operation func(ctx context.Context) error

type job struct {
	ctx      context.Context
	op       Operation
	enqueued time.Time
	done     chan error
}

// Throttler runs enqueued operations one at a time, in arrival order,
// with a fixed delay after each one
type Throttler struct {
	delay time.Duration

	mu         sync.Mutex
	queue      []*job
	processing bool
	stopped    bool

	wake   chan struct{}
	stopCh chan struct{}
	once   sync.Once
}

// New creates a throttler with the given inter-call delay
func New(delay time.Duration) *Throttler {
	if delay < 0 {
		delay = 0
	}
	return &Throttler{
		delay:  delay,
		wake:   make(chan struct{}, 1),
		stopCh: make(chan struct{}),
	}
}

// Delay returns the configured inter-call delay
func (t *Throttler) Delay() time.Duration {
	return t.delay
}

// Start begins the dispatch loop
func (t *Throttler) Start() {
	go t.run()
}

// Stop stops the dispatch loop. Queued operations fail with ErrStopped.
func (t *Throttler) Stop() {
	t.once.Do(func() {
		t.mu.Lock()
		t.stopped = true
		pending := t.queue
		t.queue = nil
		t.mu.Unlock()

		for _, j := range pending {
			j.done <- ErrStopped
		}
		metrics.ThrottleQueueDepth.Set(0)
		close(t.stopCh)
	})
}

// Pending returns the number of operations waiting to run
func (t *Throttler) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.queue)
}

// Do enqueues op and blocks until it has run, the context is cancelled,
// or the throttler is stopped
func (t *Throttler) Do(ctx context.Context, op Operation) error {
	j := &job{
		ctx:      ctx,
		op:       op,
		enqueued: time.Now(),
		done:     make(chan error, 1),
	}

	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return ErrStopped
	}
	t.queue = append(t.queue, j)
	metrics.ThrottleQueueDepth.Set(float64(len(t.queue)))
	t.mu.Unlock()

	select {
	case t.wake <- struct{}{}:
	default:
	}

	// A cancelled job still occupies its queue slot until the dispatcher
	// reaches it and skips it without consuming a delay window.
	select {
	case err := <-j.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run enqueues a value-returning operation on t
func Run[T any](ctx context.Context, t *Throttler, op func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := t.Do(ctx, func(ctx context.Context) error {
		var err error
		result, err = op(ctx)
		return err
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}

func (t *Throttler) run() {
	logger := log.WithComponent("throttle")

	for {
		j := t.next()
		if j == nil {
			select {
			case <-t.wake:
				continue
			case <-t.stopCh:
				return
			}
		}

		if err := j.ctx.Err(); err != nil {
			t.finish()
			metrics.ThrottleOpsTotal.WithLabelValues("skipped").Inc()
			j.done <- err
			continue
		}

		metrics.ThrottleWaitDuration.Observe(time.Since(j.enqueued).Seconds())
		err := j.op(j.ctx)
		if err != nil {
			metrics.ThrottleOpsTotal.WithLabelValues("error").Inc()
			logger.Debug().Err(err).Msg("throttled operation failed")
		} else {
			metrics.ThrottleOpsTotal.WithLabelValues("ok").Inc()
		}
		j.done <- err

		// The delay runs whether the operation succeeded or not.
		timer := time.NewTimer(t.delay)
		select {
		case <-timer.C:
		case <-t.stopCh:
			timer.Stop()
			t.finish()
			return
		}
		t.finish()
	}
}

// next pops the head of the queue and marks the throttler busy
func (t *Throttler) next() *job {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.processing || len(t.queue) == 0 {
		return nil
	}
	j := t.queue[0]
	t.queue[0] = nil
	t.queue = t.queue[1:]
	t.processing = true
	metrics.ThrottleQueueDepth.Set(float64(len(t.queue)))
	return j
}

func (t *Throttler) finish() {
	t.mu.Lock()
	t.processing = false
	t.mu.Unlock()
}
