package metricsink

import (
	"context"
	"sync"
	"time"

	queue "gopkg.in/karalabe/cookiejar.v2/collections/queue"

	gometrics "github.com/rcrowley/go-metrics"

	"github.com/kardelitaitu/testnet-spammer/internal/xlog"
)

var logger = xlog.NewModuleLogger(xlog.ModuleMetrics)

var (
	submittedCounter = gometrics.NewRegisteredCounter("metricsink/submitted", nil)
	droppedCounter   = gometrics.NewRegisteredCounter("metricsink/dropped", nil)
	flushFailCounter = gometrics.NewRegisteredCounter("metricsink/flush_failures", nil)
	flushedCounter   = gometrics.NewRegisteredCounter("metricsink/flushed", nil)
	queueDepthGauge  = gometrics.NewRegisteredGauge("metricsink/queue_depth", nil)
)

// FallbackMode mirrors config.FallbackMode without importing the config
// package (avoiding an import cycle); the two are kept in lockstep by
// the caller that wires config into NewSink.
type FallbackMode int

const (
	DropOldest FallbackMode = iota
	DropNewest
	Block
)

// Sink is the bounded, softly-capped queue -> batch writer pipeline from
// spec.md §4.3. The queue is a FIFO deque (karalabe/cookiejar's queue,
// not a bare channel) because DropOldest must be able to evict from the
// front while producers are still pushing to the back.
type Sink struct {
	store RowStore

	batchSize     int
	batchInterval time.Duration
	softCap       int
	fallback      FallbackMode

	dedup *dedupFilter

	mu     sync.Mutex
	cond   *sync.Cond
	q      *queue.Queue
	closed bool

	notifyFull chan struct{}
	closeCh    chan struct{}

	droppedCount atomic64

	wg sync.WaitGroup
}

type atomic64 struct {
	mu sync.Mutex
	v  uint64
}

func (a *atomic64) add(n uint64) {
	a.mu.Lock()
	a.v += n
	a.mu.Unlock()
}

func (a *atomic64) load() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.v
}

// Config bundles Sink's tuning knobs (spec.md §4.3's parameters).
type Config struct {
	BatchSize     int
	BatchInterval time.Duration
	SoftCap       int
	Fallback      FallbackMode
}

// NewSink constructs a Sink and starts its batch-writer goroutine. Call
// Close to flush-and-exit (spec.md §4.5's graceful shutdown step 4).
func NewSink(store RowStore, cfg Config) *Sink {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 200
	}
	if cfg.BatchInterval <= 0 {
		cfg.BatchInterval = 2 * time.Second
	}
	if cfg.SoftCap <= 0 {
		cfg.SoftCap = 10000
	}
	s := &Sink{
		store:         store,
		batchSize:     cfg.BatchSize,
		batchInterval: cfg.BatchInterval,
		softCap:       cfg.SoftCap,
		fallback:      cfg.Fallback,
		dedup:         newDedupFilter(),
		q:             queue.New(),
		notifyFull:    make(chan struct{}, 1),
		closeCh:       make(chan struct{}),
	}
	s.cond = sync.NewCond(&s.mu)
	s.wg.Add(1)
	go s.writeLoop()
	return s
}

// Submit enqueues row. In Block mode this may suspend until space is
// available; in the two drop modes it never suspends (spec.md §5).
func (s *Sink) Submit(row Row) bool {
	s.mu.Lock()
	for s.q.Len() >= s.softCap && !s.closed {
		switch s.fallback {
		case DropOldest:
			s.q.Pop()
			droppedCounter.Inc(1)
			s.droppedCount.add(1)
		case DropNewest:
			s.mu.Unlock()
			droppedCounter.Inc(1)
			s.droppedCount.add(1)
			return false
		case Block:
			s.cond.Wait()
			continue
		}
	}
	if s.closed {
		s.mu.Unlock()
		return false
	}

	if s.dedup.seenRecently(row) {
		// Best-effort hint only; the row is still enqueued below, so it
		// is never silently lost from the accounting the spec requires.
		logger.Debugw("soft duplicate submission detected", "wallet", row.WalletAddress, "task", row.TaskName)
	}

	s.q.Push(row)
	full := s.q.Len() >= s.batchSize
	queueDepthGauge.Update(int64(s.q.Len()))
	submittedCounter.Inc(1)
	s.mu.Unlock()

	if full {
		select {
		case s.notifyFull <- struct{}{}:
		default:
		}
	}
	return true
}

// DroppedCount returns the number of rows dropped due to fallback
// policy, for tests and the status API.
func (s *Sink) DroppedCount() uint64 { return s.droppedCount.load() }

// QueueDepth returns the current queue length, for tests and the status
// API.
func (s *Sink) QueueDepth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q.Len()
}

func (s *Sink) writeLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.batchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
		case <-s.notifyFull:
		case <-s.closeCh:
		}

		for {
			batch := s.drainUpTo(s.batchSize)
			if len(batch) == 0 {
				break
			}
			s.flush(batch)
			if len(batch) < s.batchSize {
				break
			}
		}

		if s.isClosedAndEmpty() {
			return
		}
	}
}

func (s *Sink) drainUpTo(n int) []Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	var batch []Row
	for i := 0; i < n && s.q.Len() > 0; i++ {
		batch = append(batch, s.q.Pop().(Row))
	}
	queueDepthGauge.Update(int64(s.q.Len()))
	if s.fallback == Block {
		s.cond.Broadcast()
	}
	return batch
}

func (s *Sink) isClosedAndEmpty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed && s.q.Len() == 0
}

func (s *Sink) flush(batch []Row) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.store.AppendMetricBatch(ctx, batch); err != nil {
		// A flush failure does not roll rows back into the queue; they
		// are dropped and counted in the failure metric (spec.md §4.3).
		flushFailCounter.Inc(int64(len(batch)))
		s.droppedCount.add(uint64(len(batch)))
		logger.Errorw("flush failed, rows dropped", "count", len(batch), "err", err)
		return
	}
	flushedCounter.Inc(int64(len(batch)))
}

// Close signals the writer to flush-and-exit, then waits for it to
// drain the remaining queue.
func (s *Sink) Close() error {
	s.mu.Lock()
	s.closed = true
	s.cond.Broadcast()
	s.mu.Unlock()
	close(s.closeCh)
	s.wg.Wait()
	return s.store.Close()
}
