package runtime

import (
	"context"
	"sync"
	"testing"
	"time"

	"honeypress/internal/jobs/queue"
)

type countingProcessor struct {
	mu      sync.Mutex
	batches []int
	passes  chan struct{}
}

func (p *countingProcessor) Process(_ context.Context, batchSize int) queue.Result {
	p.mu.Lock()
	p.batches = append(p.batches, batchSize)
	p.mu.Unlock()

	select {
	case p.passes <- struct{}{}:
	default:
	}
	return queue.Result{}
}

func waitForPass(t *testing.T, passes <-chan struct{}) {
	t.Helper()

	select {
	case <-passes:
	case <-time.After(2 * time.Second):
		t.Fatal("report pass did not run")
	}
}

func TestRunReportLoopRunsImmediatelyAndOnTicks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := &countingProcessor{passes: make(chan struct{}, 8)}
	done := make(chan struct{})
	go func() {
		runReportLoop(ctx, p, 10*time.Millisecond, nil, func() int { return 7 })
		close(done)
	}()

	waitForPass(t, p.passes)
	waitForPass(t, p.passes)
	cancel()
	<-done

	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.batches) < 2 {
		t.Fatalf("passes = %d, want at least 2", len(p.batches))
	}
	for _, size := range p.batches {
		if size != 7 {
			t.Fatalf("batch size = %d, want 7", size)
		}
	}
}

func TestRunReportLoopPicksUpIntervalChange(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := &countingProcessor{passes: make(chan struct{}, 8)}
	updates := make(chan time.Duration, 1)
	done := make(chan struct{})
	go func() {
		runReportLoop(ctx, p, time.Hour, updates, func() int { return 10 })
		close(done)
	}()

	waitForPass(t, p.passes)
	updates <- 10 * time.Millisecond
	waitForPass(t, p.passes)

	cancel()
	<-done
}
