package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Pool submission errors.
var (
	ErrQueueFull  = errors.New("relay: queue is full")
	ErrBusy       = errors.New("relay: a run is already active for this user")
	ErrPoolClosed = errors.New("relay: pool is closed")
)

// Task is one unit of work. Key identifies the owner; at most one task per
// key is queued or running at a time.
type Task struct {
	Key string
	Run func(ctx context.Context) error
}

type job struct {
	id     string
	task   Task
	ctx    context.Context
	cancel context.CancelFunc
	// started is set under Pool.mu once a worker picks the job up.
	started bool
}

// Pool runs tasks on a fixed number of workers fed by a bounded queue.
// Submit never blocks: a full queue is rejected.
type Pool struct {
	workers int
	queue   chan *job
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	active map[string]*job
	closed bool
}

// NewPool creates a pool. Call Run to start its workers.
func NewPool(workers, queueSize int, logger *slog.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}

	if queueSize < 1 {
		queueSize = 1
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Pool{
		workers: workers,
		queue:   make(chan *job, queueSize),
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		active:  make(map[string]*job),
	}
}

// Run starts the workers and blocks until ctx is canceled or Stop is
// called. Running tasks are canceled and awaited before Run returns.
func (p *Pool) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, p.Stop)
	defer stop()

	g, gctx := errgroup.WithContext(p.ctx)

	for i := range p.workers {
		g.Go(func() error {
			p.worker(gctx, i)
			return nil
		})
	}

	p.logger.Info("worker pool started", slog.Int("workers", p.workers), slog.Int("queue", cap(p.queue)))

	err := g.Wait()

	p.logger.Info("worker pool stopped")

	return err
}

// Submit enqueues t and returns its id.
func (p *Pool) Submit(t Task) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return "", ErrPoolClosed
	}

	if _, busy := p.active[t.Key]; busy {
		return "", ErrBusy
	}

	ctx, cancel := context.WithCancel(p.ctx)
	j := &job{id: uuid.NewString(), task: t, ctx: ctx, cancel: cancel}

	select {
	case p.queue <- j:
	default:
		cancel()
		return "", ErrQueueFull
	}

	p.active[t.Key] = j

	p.logger.Debug("task queued", slog.String("task_id", j.id), slog.String("key", t.Key))

	return j.id, nil
}

// Cancel cancels the queued or running task for key. Reports whether one
// existed. A queued task releases its key at once, so the owner can submit
// again without waiting for a worker to drain it.
func (p *Pool) Cancel(key string) bool {
	p.mu.Lock()
	j, ok := p.active[key]
	if ok && !j.started {
		delete(p.active, key)
	}
	p.mu.Unlock()

	if ok {
		j.cancel()
	}

	return ok
}

// Active reports whether key has a queued or running task.
func (p *Pool) Active(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	_, ok := p.active[key]

	return ok
}

// Stop rejects new submissions and cancels every task. Safe to call more
// than once.
func (p *Pool) Stop() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	p.cancel()
}

func (p *Pool) worker(ctx context.Context, n int) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-p.queue:
			p.runJob(j, n)
		}
	}
}

func (p *Pool) runJob(j *job, worker int) {
	logger := p.logger.With(slog.String("task_id", j.id), slog.Int("worker", worker))

	defer func() {
		if r := recover(); r != nil {
			logger.Error("task panicked", slog.String("panic", fmt.Sprint(r)))
		}

		j.cancel()

		p.mu.Lock()
		if p.active[j.task.Key] == j {
			delete(p.active, j.task.Key)
		}
		p.mu.Unlock()
	}()

	p.mu.Lock()
	j.started = true
	p.mu.Unlock()

	if j.ctx.Err() != nil {
		logger.Debug("task canceled before start")
		return
	}

	logger.Debug("task started")

	if err := j.task.Run(j.ctx); err != nil {
		logger.Warn("task failed", slog.String("error", err.Error()))
		return
	}

	logger.Debug("task finished")
}
