// Package scheduler implements C5, the worker scheduler from spec.md
// §4.5: spawns worker coroutines, each of which repeatedly acquires a
// lease, samples a weighted task, executes it under a timeout, records
// the outcome, and honors cooperative cancellation. Grounded on the
// teacher's work/worker.go goroutine-per-worker shape and its
// gopkg.in/fatih/set.v0 bookkeeping idiom, generalized from one mining
// worker to N independent task workers.
package scheduler

import (
	"context"
	"math/rand"
	"os"
	"sync"
	"time"

	"github.com/fatih/color"
	colorable "github.com/mattn/go-colorable"
	gometrics "github.com/rcrowley/go-metrics"

	"github.com/kardelitaitu/testnet-spammer/ids"
	"github.com/kardelitaitu/testnet-spammer/internal/debugutil"
	"github.com/kardelitaitu/testnet-spammer/internal/metricsink"
	"github.com/kardelitaitu/testnet-spammer/internal/nonce"
	"github.com/kardelitaitu/testnet-spammer/internal/task"
	"github.com/kardelitaitu/testnet-spammer/internal/walletpool"
	"github.com/kardelitaitu/testnet-spammer/internal/xlog"
)

var logger = xlog.NewModuleLogger(xlog.ModuleScheduler)

// terminalOut is the color-capable writer the per-task outcome line
// (spec.md §7: "one line per task invocation, color-coded by outcome")
// is rendered to. go-colorable wraps stdout so ANSI codes render
// correctly on Windows consoles too, matching the teacher's own
// colored-logging setup.
var terminalOut = colorable.NewColorable(os.Stdout)

var (
	successColor = color.New(color.FgGreen)
	failureColor = color.New(color.FgRed)
)

var (
	taskDurationTimer = gometrics.NewRegisteredTimer("scheduler/task_duration", nil)
	taskTimeoutCounter = gometrics.NewRegisteredCounter("scheduler/timeouts", nil)
	taskPanicCounter   = gometrics.NewRegisteredCounter("scheduler/panics", nil)
	leaseWaitCounter   = gometrics.NewRegisteredCounter("scheduler/lease_waits", nil)
)

// Config bundles the Scheduler's tuning knobs (spec.md §4.5's inputs).
type Config struct {
	WorkerCount  int
	TaskTimeout  time.Duration
	MinIntervalMS int
	MaxIntervalMS int
	// AcquireBackoff is how long a worker sleeps between try_acquire
	// attempts when no lease is currently available (spec.md §4.4's
	// "caller retries after a short back-off").
	AcquireBackoff time.Duration
}

// Scheduler drives the whole system: spawns N workers and coordinates
// their graceful shutdown against the pool and metrics sink.
type Scheduler struct {
	cfg     Config
	pool    *walletpool.Pool
	nonceCo *nonce.Coordinator
	metrics *metricsink.Sink
	catalog *task.Catalog

	wg sync.WaitGroup
}

// New constructs a Scheduler. Defaults mirror spec.md §4.5/§6: 180s task
// timeout, a short acquire backoff.
func New(cfg Config, pool *walletpool.Pool, nonceCo *nonce.Coordinator, metrics *metricsink.Sink, catalog *task.Catalog) *Scheduler {
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 1
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = 180 * time.Second
	}
	if cfg.AcquireBackoff <= 0 {
		cfg.AcquireBackoff = 200 * time.Millisecond
	}
	if cfg.MaxIntervalMS < cfg.MinIntervalMS {
		cfg.MaxIntervalMS = cfg.MinIntervalMS
	}
	return &Scheduler{cfg: cfg, pool: pool, nonceCo: nonceCo, metrics: metrics, catalog: catalog}
}

// Run spawns worker_count workers and blocks until ctx is cancelled and
// every worker has exited (spec.md §4.5's graceful shutdown sequence,
// steps 1-3; step 4, flushing the metrics sink, is the caller's
// responsibility via Sink.Close after Run returns).
func (s *Scheduler) Run(ctx context.Context) {
	s.wg.Add(s.cfg.WorkerCount)
	for i := 0; i < s.cfg.WorkerCount; i++ {
		go s.workerLoop(ctx, ids.NewWorkerID())
	}
	s.wg.Wait()
}

func (s *Scheduler) workerLoop(ctx context.Context, workerID string) {
	defer s.wg.Done()
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	for {
		if ctx.Err() != nil {
			return
		}

		lease, err := s.pool.TryAcquire()
		if err != nil {
			logger.Warnw("lease acquisition failed", "worker", workerID, "err", err)
			if !s.cancellableSleep(ctx, s.cfg.AcquireBackoff) {
				return
			}
			continue
		}
		if lease == nil {
			leaseWaitCounter.Inc(1)
			if !s.cancellableSleep(ctx, s.cfg.AcquireBackoff) {
				return
			}
			continue
		}

		s.runOneIteration(ctx, workerID, lease, rng)

		if !s.cancellableSleep(ctx, s.interTaskDelay(rng)) {
			return
		}
	}
}

func (s *Scheduler) interTaskDelay(rng *rand.Rand) time.Duration {
	lo, hi := s.cfg.MinIntervalMS, s.cfg.MaxIntervalMS
	if hi <= lo {
		return time.Duration(lo) * time.Millisecond
	}
	return time.Duration(lo+rng.Intn(hi-lo+1)) * time.Millisecond
}

// runOneIteration executes spec.md §4.5's per-worker loop steps 3-7 for
// a single acquired lease, guaranteeing the lease is released on every
// exit path (the "Guaranteed release" contract from spec.md §4.4).
func (s *Scheduler) runOneIteration(ctx context.Context, workerID string, lease *walletpool.Lease, rng *rand.Rand) {
	defer lease.Release()

	t := s.catalog.Sample(rng)
	taskCtx, cancel := context.WithTimeout(ctx, s.cfg.TaskTimeout)
	defer cancel()

	result, duration, timedOut := s.executeWithTimeout(taskCtx, workerID, lease, t)
	s.recordOutcome(workerID, lease.Address, t.Name(), result, duration, timedOut)
}

// executeWithTimeout runs t.Run on its own goroutine so a task that
// ignores the context deadline (spec.md §4.5: "A task body *may* check
// it but is not required to") still lets the worker move on once
// task_timeout elapses; the orphaned goroutine's in-flight nonces are
// resynced later by the next caller that hits "nonce too low" (spec.md
// §4.2/§4.5).
func (s *Scheduler) executeWithTimeout(ctx context.Context, workerID string, lease *walletpool.Lease, t task.Task) (task.Result, time.Duration, bool) {
	resultCh := make(chan task.Result, 1)
	start := time.Now()

	go func() {
		defer func() {
			if info, ok := debugutil.RecoverTaskPanic(); ok {
				taskPanicCounter.Inc(1)
				logger.Errorw("task panicked", "worker", workerID, "task", t.Name(), "panic", info.Value, "stack", info.Stack)
				select {
				case resultCh <- task.Failure(info.String()):
				default:
				}
			}
		}()
		tc := &task.Context{
			Context:       ctx,
			WorkerID:      workerID,
			WalletAddress: lease.Address,
			Client:        lease.Client,
			Nonce:         s.nonceCo,
			Metrics:       s.metrics,
		}
		resultCh <- t.Run(tc)
	}()

	select {
	case r := <-resultCh:
		d := time.Since(start)
		taskDurationTimer.UpdateSince(start)
		return r, d, false
	case <-ctx.Done():
		d := time.Since(start)
		taskTimeoutCounter.Inc(1)
		taskDurationTimer.UpdateSince(start)
		return task.Failure("task timeout"), d, true
	}
}

func (s *Scheduler) recordOutcome(workerID, walletAddress, taskName string, result task.Result, duration time.Duration, timedOut bool) {
	row := metricsink.Row{
		ID:            ids.NewMetricRowID(),
		WorkerID:      workerID,
		WalletAddress: walletAddress,
		TaskName:      taskName,
		Status:        result.Status,
		Message:       result.Message,
		DurationMS:    uint64(duration.Milliseconds()),
		Timestamp:     time.Now(),
	}

	if s.metrics != nil {
		s.metrics.Submit(row)
	}

	if result.Status == metricsink.StatusSuccess {
		logger.Infow("task succeeded", "worker", workerID, "wallet", walletAddress, "task", taskName, "message", result.Message)
		successColor.Fprintf(terminalOut, "[%s] %s %s ok (%dms) %s\n", workerID, walletAddress, taskName, duration.Milliseconds(), result.Message)
	} else {
		logger.Warnw("task failed", "worker", workerID, "wallet", walletAddress, "task", taskName, "message", result.Message, "timed_out", timedOut)
		failureColor.Fprintf(terminalOut, "[%s] %s %s FAIL (%dms) %s\n", workerID, walletAddress, taskName, duration.Milliseconds(), result.Message)
	}
}

// cancellableSleep sleeps for d or until ctx is cancelled, whichever
// comes first. Returns false if ctx was cancelled (callers should exit).
func (s *Scheduler) cancellableSleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
