package signals

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/sheetsite/pkg/log"
	"github.com/cuemby/sheetsite/pkg/metrics"
	"github.com/cuemby/sheetsite/pkg/types"
)

const (
	// DefaultBatchSize is the queue length that triggers an immediate send
	DefaultBatchSize = 10

	// DefaultFlushInterval bounds how long a partial batch waits
	DefaultFlushInterval = 30 * time.Second

	// DefaultSendTimeout bounds one background batch send
	DefaultSendTimeout = 2 * time.Minute
)

// Sink receives flushed batches
type Sink interface {
	InsertSignals(ctx context.Context, signals []types.Signal) error
}

// Stats is a snapshot of the agent's counters
type Stats struct {
	Views          int64   `json:"views"`
	Conversions    int64   `json:"conversions"`
	ConversionRate float64 `json:"conversionRate"`
	Pending        int     `json:"pending"`
	Flushed        int64   `json:"flushed"`
	Dropped        int64   `json:"dropped"`
}

// Option configures an Agent
type Option func(*Agent)

// WithBatchSize sets the batch size; values below 1 are ignored
func WithBatchSize(n int) Option {
	return func(a *Agent) {
		if n > 0 {
			a.batchSize = n
		}
	}
}

// WithFlushInterval sets the partial-batch timer
func WithFlushInterval(d time.Duration) Option {
	return func(a *Agent) {
		if d > 0 {
			a.flushInterval = d
		}
	}
}

// WithSendTimeout sets the deadline of background sends
func WithSendTimeout(d time.Duration) Option {
	return func(a *Agent) {
		if d > 0 {
			a.sendTimeout = d
		}
	}
}

// Agent buffers client signals and ships them to the sink in batches
type Agent struct {
	sink          Sink
	batchSize     int
	flushInterval time.Duration
	sendTimeout   time.Duration
	logger        zerolog.Logger

	mu          sync.Mutex
	queue       []types.Signal
	timer       *time.Timer
	closed      bool
	views       int64
	conversions int64
	flushed     int64
	dropped     int64

	inflight sync.WaitGroup

	// now is swapped in tests
	now func() time.Time
}

// New creates an agent sending to sink
func New(sink Sink, opts ...Option) *Agent {
	a := &Agent{
		sink:          sink,
		batchSize:     DefaultBatchSize,
		flushInterval: DefaultFlushInterval,
		sendTimeout:   DefaultSendTimeout,
		logger:        log.WithComponent("signals"),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Record queues one signal. A full batch is sent in the background;
// a partial one arms the flush timer. Signals recorded after Close are dropped.
func (a *Agent) Record(s types.Signal) {
	if s.Timestamp.IsZero() {
		s.Timestamp = a.now()
	}

	a.mu.Lock()
	if a.closed {
		a.dropped++
		a.mu.Unlock()
		a.logger.Debug().Str("type", string(s.Type)).Msg("Signal recorded after close, dropping")
		return
	}

	switch s.Type {
	case types.SignalView:
		a.views++
	case types.SignalConversion:
		a.conversions++
	}
	a.queue = append(a.queue, s)
	metrics.SignalsRecordedTotal.WithLabelValues(string(s.Type)).Inc()

	if len(a.queue) >= a.batchSize {
		batch := a.takeLocked()
		a.mu.Unlock()
		a.sendAsync(batch)
		return
	}
	if a.timer == nil {
		a.timer = time.AfterFunc(a.flushInterval, a.onTimer)
	}
	a.mu.Unlock()
}

func (a *Agent) onTimer() {
	a.mu.Lock()
	a.timer = nil
	batch := a.takeLocked()
	a.mu.Unlock()
	a.sendAsync(batch)
}

// takeLocked swaps the queue out and disarms the timer. Callers hold mu.
func (a *Agent) takeLocked() []types.Signal {
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	batch := a.queue
	a.queue = nil
	return batch
}

func (a *Agent) sendAsync(batch []types.Signal) {
	if len(batch) == 0 {
		return
	}
	a.inflight.Add(1)
	go func() {
		defer a.inflight.Done()
		ctx, cancel := context.WithTimeout(context.Background(), a.sendTimeout)
		defer cancel()
		_ = a.send(ctx, batch)
	}()
}

func (a *Agent) send(ctx context.Context, batch []types.Signal) error {
	err := a.sink.InsertSignals(ctx, batch)

	a.mu.Lock()
	if err != nil {
		a.dropped += int64(len(batch))
	} else {
		a.flushed += int64(len(batch))
	}
	a.mu.Unlock()

	if err != nil {
		metrics.SignalBatchesTotal.WithLabelValues("error").Inc()
		a.logger.Error().Err(err).Int("count", len(batch)).Msg("Failed to flush signal batch")
		return err
	}
	metrics.SignalBatchesTotal.WithLabelValues("ok").Inc()
	a.logger.Debug().Int("count", len(batch)).Msg("Flushed signal batch")
	return nil
}

// Flush sends the queued signals and waits for the sink.
// Without force only a full batch is sent.
func (a *Agent) Flush(ctx context.Context, force bool) error {
	a.mu.Lock()
	if len(a.queue) == 0 || (!force && len(a.queue) < a.batchSize) {
		a.mu.Unlock()
		return nil
	}
	batch := a.takeLocked()
	a.mu.Unlock()

	return a.send(ctx, batch)
}

// Close stops accepting signals, flushes what is queued and waits for
// in-flight sends until ctx is done
func (a *Agent) Close(ctx context.Context) error {
	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()

	err := a.Flush(ctx, true)

	done := make(chan struct{})
	go func() {
		a.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		if err == nil {
			err = ctx.Err()
		}
	}
	return err
}

// Pending returns the number of queued signals
func (a *Agent) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.queue)
}

// Stats returns a snapshot of the counters
func (a *Agent) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	s := Stats{
		Views:       a.views,
		Conversions: a.conversions,
		Pending:     len(a.queue),
		Flushed:     a.flushed,
		Dropped:     a.dropped,
	}
	if s.Views > 0 {
		s.ConversionRate = float64(s.Conversions) / float64(s.Views)
	}
	return s
}

// Suggest evaluates the optimization heuristics for page against the
// agent's running counters
func (a *Agent) Suggest(page *types.PageEntity) []types.OptimizationSuggestion {
	return Evaluate(page, a.Stats())
}

// ReportMetrics implements metrics.Reporter
func (a *Agent) ReportMetrics() {
	s := a.Stats()
	metrics.SignalsPending.Set(float64(s.Pending))
	metrics.ConversionRate.Set(s.ConversionRate)
}

// StatsOf computes view and conversion counts from recorded signals
func StatsOf(history []types.Signal) Stats {
	var s Stats
	for _, sig := range history {
		switch sig.Type {
		case types.SignalView:
			s.Views++
		case types.SignalConversion:
			s.Conversions++
		}
	}
	if s.Views > 0 {
		s.ConversionRate = float64(s.Conversions) / float64(s.Views)
	}
	return s
}
