package syncer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"reserveSync/internal/metrics"
	"reserveSync/internal/model"
)

// PairScanner scans a slice of pairs for reserve changes.
type PairScanner interface {
	Scan(ctx context.Context, pairs []model.Pair, baseline uint32) ([]model.ReserveUpdate, ScanStats, error)
}

// Job is one slice of pairs to scan for a cycle.
type Job struct {
	CycleID  string
	Worker   int
	Ledger   uint32
	Baseline uint32
	Pairs    []model.Pair
}

// Result is what a worker reports back for a Job.
type Result struct {
	Job      Job
	Updates  []model.ReserveUpdate
	Stats    ScanStats
	Err      error
	Duration time.Duration
}

// WorkerPool runs a fixed number of scan goroutines fed through a job channel.
type WorkerPool struct {
	size    int
	scanner PairScanner
	jobs    chan Job
	results chan Result
	metrics *metrics.Metrics
	logger  *zap.Logger

	startOnce sync.Once
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func NewWorkerPool(size int, scanner PairScanner, m *metrics.Metrics, logger *zap.Logger) (*WorkerPool, error) {
	if size < 1 {
		return nil, fmt.Errorf("worker pool size must be at least 1, got %d", size)
	}
	if scanner == nil {
		return nil, fmt.Errorf("scanner is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if m == nil {
		m = metrics.New(nil)
	}
	return &WorkerPool{
		size:    size,
		scanner: scanner,
		jobs:    make(chan Job, size*4),
		results: make(chan Result, size*4),
		metrics: m,
		logger:  logger,
	}, nil
}

func (p *WorkerPool) Size() int {
	return p.size
}

// Start launches the workers. They exit once Close is called and queued jobs are done,
// or when ctx is cancelled.
func (p *WorkerPool) Start(ctx context.Context) {
	p.startOnce.Do(func() {
		for i := 0; i < p.size; i++ {
			p.wg.Add(1)
			go p.work(ctx)
		}
		go func() {
			p.wg.Wait()
			close(p.results)
		}()
	})
}

// Submit queues a job. It blocks only while the queue is full.
func (p *WorkerPool) Submit(ctx context.Context, job Job) error {
	select {
	case p.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Results is closed after all workers have exited.
func (p *WorkerPool) Results() <-chan Result {
	return p.results
}

// Close stops accepting jobs. Must not be called concurrently with Submit.
func (p *WorkerPool) Close() {
	p.closeOnce.Do(func() { close(p.jobs) })
}

func (p *WorkerPool) work(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-p.jobs:
			if !ok {
				return
			}
			p.results <- p.run(ctx, job)
		}
	}
}

func (p *WorkerPool) run(ctx context.Context, job Job) (res Result) {
	started := time.Now()
	res.Job = job
	defer func() {
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("worker panic: %v", r)
		}
		res.Duration = time.Since(started)
		p.metrics.ScanDuration.Observe(res.Duration.Seconds())
		if res.Err != nil {
			p.metrics.WorkerErrors.Inc()
		}
	}()

	res.Updates, res.Stats, res.Err = p.scanner.Scan(ctx, job.Pairs, job.Baseline)
	return res
}
