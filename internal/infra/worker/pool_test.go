//go:build !integration

package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func testLogger() *zerolog.Logger {
	l := zerolog.New(nil)
	return &l
}

func TestPool_RunsAllTasks(t *testing.T) {
	p := NewPool(4, testLogger())
	p.Start(context.Background())

	var done atomic.Int64
	for i := 0; i < 50; i++ {
		if err := p.Submit(func(ctx context.Context) error {
			done.Add(1)
			return nil
		}); err != nil {
			t.Fatal(err)
		}
	}
	p.Close()

	if done.Load() != 50 {
		t.Errorf("ran %d tasks, want 50", done.Load())
	}
}

func TestPool_BoundsConcurrency(t *testing.T) {
	const size = 3
	p := NewPool(size, testLogger())
	p.Start(context.Background())

	var mu sync.Mutex
	inFlight, peak := 0, 0
	for i := 0; i < 20; i++ {
		if err := p.Submit(func(ctx context.Context) error {
			mu.Lock()
			inFlight++
			if inFlight > peak {
				peak = inFlight
			}
			mu.Unlock()

			time.Sleep(5 * time.Millisecond)

			mu.Lock()
			inFlight--
			mu.Unlock()
			return nil
		}); err != nil {
			t.Fatal(err)
		}
	}
	p.Close()

	if peak > size {
		t.Errorf("peak concurrency %d exceeds pool size %d", peak, size)
	}
}

func TestPool_TasksSeeCancelledContext(t *testing.T) {
	p := NewPool(1, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	p.Start(ctx)
	cancel()

	sawCancel := make(chan bool, 1)
	if err := p.Submit(func(taskCtx context.Context) error {
		sawCancel <- taskCtx.Err() != nil
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	p.Close()

	if !<-sawCancel {
		t.Error("task did not observe the cancelled context")
	}
}

func TestPool_CloseIsIdempotent(t *testing.T) {
	p := NewPool(2, testLogger())
	p.Start(context.Background())
	p.Close()
	p.Close() // must not panic
}
