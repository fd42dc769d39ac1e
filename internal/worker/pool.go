package worker

import (
	"context"
	"sync"
)

// Job represents a unit of work to be executed
type Job interface {
	Execute(ctx context.Context) Result
}

// Result represents the result of a job execution
type Result interface {
	GetError() error
}

type indexedJob struct {
	idx int
	job Job
}

type indexedResult struct {
	idx    int
	result Result
}

// Pool runs jobs on a fixed number of workers and returns results
// in submission order.
type Pool struct {
	workers    int
	jobQueue   chan indexedJob
	results    chan indexedResult
	collected  []Result
	submitted  int
	wg         sync.WaitGroup
	done       chan struct{}
	ctx        context.Context
	cancelFunc context.CancelFunc
	closeOnce  sync.Once
}

// NewPool creates a new worker pool with the specified number of workers
func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}

	return &Pool{
		workers:  workers,
		jobQueue: make(chan indexedJob, workers*2),
		results:  make(chan indexedResult, workers*2),
		done:     make(chan struct{}),
	}
}

// Start starts the workers. Jobs observe ctx; cancelling it stops
// workers from picking up further jobs.
func (p *Pool) Start(ctx context.Context) {
	p.ctx, p.cancelFunc = context.WithCancel(ctx)

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}

	go p.collect()
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case ij, ok := <-p.jobQueue:
			if !ok {
				return
			}
			p.results <- indexedResult{idx: ij.idx, result: ij.job.Execute(p.ctx)}
		}
	}
}

// collect drains results concurrently so workers never block on a full
// results channel while Submit is still feeding the queue.
func (p *Pool) collect() {
	defer close(p.done)
	for r := range p.results {
		for len(p.collected) <= r.idx {
			p.collected = append(p.collected, nil)
		}
		p.collected[r.idx] = r.result
	}
}

// Submit queues a job. It returns false if the pool was shut down.
// Submit is called from a single goroutine.
func (p *Pool) Submit(job Job) bool {
	if p.ctx.Err() != nil {
		return false
	}
	select {
	case <-p.ctx.Done():
		return false
	case p.jobQueue <- indexedJob{idx: p.submitted, job: job}:
		p.submitted++
		return true
	}
}

// Wait waits for all submitted jobs and returns their results indexed by
// submission order. Jobs skipped because of cancellation have nil results.
func (p *Pool) Wait() []Result {
	close(p.jobQueue)
	p.wg.Wait()
	p.closeResults()
	<-p.done
	p.cancelFunc()

	results := make([]Result, p.submitted)
	copy(results, p.collected)
	return results
}

// Shutdown stops the pool without waiting for queued jobs
func (p *Pool) Shutdown() {
	p.cancelFunc()
	p.wg.Wait()
	p.closeResults()
	<-p.done
}

func (p *Pool) closeResults() {
	p.closeOnce.Do(func() {
		close(p.results)
	})
}

// Run is a convenience that executes jobs on a fresh pool
func Run(ctx context.Context, workers int, jobs []Job) []Result {
	pool := NewPool(workers)
	pool.Start(ctx)
	for _, job := range jobs {
		if !pool.Submit(job) {
			break
		}
	}
	return pool.Wait()
}
