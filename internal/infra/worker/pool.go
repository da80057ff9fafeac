// File: internal/infra/worker/pool.go
package worker

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
)

// A small bounded worker pool. Submit blocks when all workers are busy, so
// the pool size is also the hard concurrency ceiling for the submitted work.

type Task func(ctx context.Context) error

type Pool struct {
	wg   sync.WaitGroup
	jobs chan Task
	n    int
	log  *zerolog.Logger

	closeOnce sync.Once
}

func NewPool(workers int, logger *zerolog.Logger) *Pool {
	if workers <= 0 {
		workers = 1
	}
	return &Pool{jobs: make(chan Task), n: workers, log: logger}
}

// Start launches the workers. ctx is passed to every task; the pool itself
// drains until Close so that tasks submitted after cancellation still run
// (they are expected to observe ctx and finish cheaply).
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.n; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			for task := range p.jobs {
				if task == nil {
					continue
				}
				if err := task(ctx); err != nil {
					p.log.Warn().Err(err).Int("worker", id).Msg("task error")
				}
			}
		}(i)
	}
}

// Submit enqueues a task, blocking until a worker picks it up.
func (p *Pool) Submit(task Task) error {
	if task == nil {
		return errors.New("nil task")
	}
	p.jobs <- task
	return nil
}

// Close stops accepting tasks and waits for in-flight ones to finish.
func (p *Pool) Close() {
	p.closeOnce.Do(func() { close(p.jobs) })
	p.wg.Wait()
}

func (p *Pool) Size() int { return p.n }
