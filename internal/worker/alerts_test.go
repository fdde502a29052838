package worker

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/schoolgate/backend/pkg/queue"
)

// blockingSource blocks in Dequeue until the context ends, like BLPop does.
type blockingSource struct {
	retried int
}

func (s *blockingSource) Dequeue(ctx context.Context) (*queue.Job, string, error) {
	<-ctx.Done()
	return nil, "", ctx.Err()
}

func (s *blockingSource) Retry(ctx context.Context, job *queue.Job) error {
	s.retried++
	return nil
}

func TestRunStopsPromptlyOnCancel(t *testing.T) {
	src := &blockingSource{}
	d := NewAlertDispatcher(nil, src, "", "", zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel; the backoff sleep ran on a canceled context")
	}
	if src.retried != 0 {
		t.Fatalf("retried = %d, want 0", src.retried)
	}
}
