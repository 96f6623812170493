package snapshot

import (
	"context"
	"errors"
	"time"

	"github.com/hibiken/asynq"

	"github.com/noah-isme/toko-cart/internal/cart"
	"github.com/noah-isme/toko-cart/internal/pricing"
)

// TaskClient is the subset of *asynq.Client used for publishing.
type TaskClient interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Enqueuer publishes archive tasks. It implements cart.Archiver.
type Enqueuer struct {
	Client   TaskClient
	Queue    string
	MaxRetry int
	Now      func() time.Time
}

var _ cart.Archiver = Enqueuer{}

// Enqueue publishes the cart state for sessionID.
func (e Enqueuer) Enqueue(ctx context.Context, sessionID string, snap cart.Snapshot, summary pricing.Summary) error {
	if e.Client == nil {
		return errors.New("snapshot enqueuer not configured")
	}
	now := time.Now
	if e.Now != nil {
		now = e.Now
	}
	queue := e.Queue
	if queue == "" {
		queue = "default"
	}
	retry := e.MaxRetry
	if retry <= 0 {
		retry = 5
	}
	task, err := NewTask(NewRecord(sessionID, snap, summary, now()),
		asynq.Queue(queue),
		asynq.MaxRetry(retry),
		asynq.Timeout(30*time.Second),
	)
	if err != nil {
		return err
	}
	_, err = e.Client.EnqueueContext(ctx, task)
	return err
}
