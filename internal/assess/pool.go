package assess

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/snarg/speakscore/internal/metrics"
)

var (
	// ErrQueueFull is returned by Submit when every queue slot is taken.
	ErrQueueFull = errors.New("evaluation queue full")
	// ErrPoolStopped is returned by Submit after Stop.
	ErrPoolStopped = errors.New("evaluation pool stopped")
)

// Evaluator runs one assessment.
type Evaluator interface {
	Evaluate(ctx context.Context, req Request) (*Assessment, error)
}

// PoolOptions configures the evaluation pool.
type PoolOptions struct {
	Workers   int
	QueueSize int
	Log       zerolog.Logger
}

// PoolStats reports the current state of the evaluation pool.
type PoolStats struct {
	Pending   int   `json:"pending"`
	InFlight  int   `json:"inFlight"`
	Workers   int   `json:"workers"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
}

type job struct {
	ctx   context.Context
	req   Request
	reply chan result
}

type result struct {
	a   *Assessment
	err error
}

// Pool bounds how many evaluations run at once. Callers block in Submit until
// their job finishes, but are turned away immediately when the queue is full.
type Pool struct {
	eval Evaluator
	jobs chan job
	opts PoolOptions
	log  zerolog.Logger
	wg   sync.WaitGroup

	mu      sync.RWMutex
	stopped bool

	inFlight  atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
}

// NewPool creates a pool. Workers below 1 are raised to 1; a negative queue size is treated as 0.
func NewPool(eval Evaluator, opts PoolOptions) *Pool {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.QueueSize < 0 {
		opts.QueueSize = 0
	}
	return &Pool{
		eval: eval,
		jobs: make(chan job, opts.QueueSize),
		opts: opts,
		log:  opts.Log.With().Str("component", "pool").Logger(),
	}
}

// Start launches the worker goroutines.
func (p *Pool) Start() {
	for i := 0; i < p.opts.Workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	p.log.Info().Int("workers", p.opts.Workers).Int("queue_size", p.opts.QueueSize).Msg("evaluation pool started")
}

// Stop rejects new submissions, lets queued jobs drain and waits for the workers.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.jobs)
	p.mu.Unlock()

	p.wg.Wait()
	p.log.Info().
		Int64("completed", p.completed.Load()).
		Int64("failed", p.failed.Load()).
		Msg("evaluation pool stopped")
}

// Submit queues req and waits for its assessment. It returns ErrQueueFull
// without waiting when the queue has no room.
func (p *Pool) Submit(ctx context.Context, req Request) (*Assessment, error) {
	j := job{ctx: ctx, req: req, reply: make(chan result, 1)}

	p.mu.RLock()
	if p.stopped {
		p.mu.RUnlock()
		return nil, ErrPoolStopped
	}
	select {
	case p.jobs <- j:
	default:
		p.mu.RUnlock()
		return nil, ErrQueueFull
	}
	p.mu.RUnlock()

	select {
	case r := <-j.reply:
		return r.a, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Stats returns current pool statistics.
func (p *Pool) Stats() PoolStats {
	return PoolStats{
		Pending:   p.Pending(),
		InFlight:  p.InFlight(),
		Workers:   p.Workers(),
		Completed: p.completed.Load(),
		Failed:    p.failed.Load(),
	}
}

// Pending returns the number of queued jobs.
func (p *Pool) Pending() int { return len(p.jobs) }

// InFlight returns the number of jobs being evaluated.
func (p *Pool) InFlight() int { return int(p.inFlight.Load()) }

// Workers returns the number of worker goroutines.
func (p *Pool) Workers() int { return p.opts.Workers }

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	log := p.log.With().Int("worker", id).Logger()

	for j := range p.jobs {
		if err := j.ctx.Err(); err != nil {
			// Caller gave up while the job was queued.
			p.failed.Add(1)
			j.reply <- result{err: err}
			continue
		}
		p.inFlight.Add(1)
		a, err := p.run(log, j)
		p.inFlight.Add(-1)
		if err != nil {
			p.failed.Add(1)
			log.Debug().Err(err).Str("user_id", j.req.UserID).Msg("evaluation job failed")
		} else {
			p.completed.Add(1)
		}
		j.reply <- result{a: a, err: err}
	}
}

// run evaluates one job. A panic fails only that job.
func (p *Pool) run(log zerolog.Logger, j job) (a *Assessment, err error) {
	defer func() {
		if rv := recover(); rv != nil {
			log.Error().
				Interface("panic", rv).
				Str("user_id", j.req.UserID).
				Bytes("stack", debug.Stack()).
				Msg("evaluation panicked")
			metrics.AssessmentsTotal.WithLabelValues(string(KindEvaluationFailed)).Inc()
			a, err = nil, evaluationFailed(StageEvaluate, fmt.Errorf("panic: %v", rv))
		}
	}()
	return p.eval.Evaluate(j.ctx, j.req)
}
