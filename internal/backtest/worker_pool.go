package backtest

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ducminhle1904/pump-short-bot/internal/executor"
	"github.com/ducminhle1904/pump-short-bot/pkg/types"
)

// Job is one symbol's run in a batch.
type Job struct {
	ID     string
	Config Config
	Bars   []types.OHLCV
}

// JobResult carries a finished job. Results is nil when Err is set.
type JobResult struct {
	ID       string
	Config   Config
	Results  *Results
	Duration time.Duration
	Err      error
}

// ExecutorFactory builds a fresh executor, with its own portfolio, for a job.
type ExecutorFactory func(job Job) (*executor.Executor, error)

// WorkerPool runs independent backtests in parallel.
type WorkerPool struct {
	workerCount int
	build       ExecutorFactory
	log         zerolog.Logger
	jobQueue    chan Job
	resultQueue chan JobResult
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
}

// NewWorkerPool sizes the pool to runtime.NumCPU when workerCount is not positive.
func NewWorkerPool(ctx context.Context, workerCount, bufferSize int, build ExecutorFactory, log zerolog.Logger) *WorkerPool {
	if workerCount <= 0 {
		workerCount = runtime.NumCPU()
	}
	ctx, cancel := context.WithCancel(ctx)

	return &WorkerPool{
		workerCount: workerCount,
		build:       build,
		log:         log,
		jobQueue:    make(chan Job, bufferSize),
		resultQueue: make(chan JobResult, bufferSize),
		ctx:         ctx,
		cancel:      cancel,
	}
}

func (wp *WorkerPool) Start() {
	for i := 0; i < wp.workerCount; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// Stop closes the job queue, waits for in-flight jobs and closes Results.
func (wp *WorkerPool) Stop() {
	close(wp.jobQueue)
	wp.wg.Wait()
	close(wp.resultQueue)
	wp.cancel()
}

func (wp *WorkerPool) Submit(job Job) error {
	select {
	case wp.jobQueue <- job:
		return nil
	case <-wp.ctx.Done():
		return wp.ctx.Err()
	}
}

func (wp *WorkerPool) Results() <-chan JobResult {
	return wp.resultQueue
}

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	for {
		select {
		case job, ok := <-wp.jobQueue:
			if !ok {
				return
			}
			result := wp.process(job)

			select {
			case wp.resultQueue <- result:
			case <-wp.ctx.Done():
				return
			}
		case <-wp.ctx.Done():
			return
		}
	}
}

func (wp *WorkerPool) process(job Job) JobResult {
	started := time.Now()
	result := JobResult{ID: job.ID, Config: job.Config}

	exec, err := wp.build(job)
	if err == nil {
		var engine *Engine
		engine, err = NewEngine(job.Config, exec, wp.log)
		if err == nil {
			result.Results, err = engine.Run(wp.ctx, job.Bars)
		}
	}
	result.Err = err
	result.Duration = time.Since(started)
	return result
}

// RunBatch runs every job on a pool of workers and returns the results in
// submission order.
func RunBatch(ctx context.Context, workers int, jobs []Job, build ExecutorFactory, log zerolog.Logger) []JobResult {
	pool := NewWorkerPool(ctx, workers, len(jobs), build, log)
	tracker := NewProgressTracker(len(jobs))
	pool.Start()

	go func() {
		defer pool.Stop()
		for _, job := range jobs {
			if err := pool.Submit(job); err != nil {
				return
			}
		}
	}()

	index := make(map[string]int, len(jobs))
	for i, job := range jobs {
		index[job.ID] = i
	}
	out := make([]JobResult, len(jobs))
	for i, job := range jobs {
		out[i] = JobResult{ID: job.ID, Config: job.Config, Err: context.Canceled}
	}

	for result := range pool.Results() {
		out[index[result.ID]] = result
		tracker.Increment()
		done, total, pct, elapsed := tracker.Progress()
		log.Info().
			Str("job", result.ID).
			Int("completed", done).
			Int("total", total).
			Float64("progress_pct", pct).
			Dur("elapsed", elapsed).
			Dur("remaining", tracker.EstimateRemaining()).
			Bool("failed", result.Err != nil).
			Msg("batch job finished")
	}
	return out
}

// ProgressTracker counts completed jobs of a batch.
type ProgressTracker struct {
	mu        sync.RWMutex
	total     int
	completed int
	startTime time.Time
}

func NewProgressTracker(total int) *ProgressTracker {
	return &ProgressTracker{total: total, startTime: time.Now()}
}

func (pt *ProgressTracker) Increment() {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	pt.completed++
}

// Progress returns completed, total, percent done and elapsed time.
func (pt *ProgressTracker) Progress() (int, int, float64, time.Duration) {
	pt.mu.RLock()
	defer pt.mu.RUnlock()

	pct := 0.0
	if pt.total > 0 {
		pct = float64(pt.completed) / float64(pt.total) * 100
	}
	return pt.completed, pt.total, pct, time.Since(pt.startTime)
}

// EstimateRemaining extrapolates the average job time over what is left.
func (pt *ProgressTracker) EstimateRemaining() time.Duration {
	pt.mu.RLock()
	defer pt.mu.RUnlock()

	if pt.completed == 0 {
		return 0
	}
	perJob := time.Since(pt.startTime) / time.Duration(pt.completed)
	return perJob * time.Duration(pt.total-pt.completed)
}
