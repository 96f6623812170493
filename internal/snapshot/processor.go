package snapshot

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/noah-isme/toko-cart/internal/obs"
)

// Processor consumes archive tasks and writes them to the store.
type Processor struct {
	Store  Store
	Logger zerolog.Logger
}

// ProcessTask implements asynq.Handler.
func (p Processor) ProcessTask(ctx context.Context, t *asynq.Task) error {
	if p.Store == nil {
		return errors.New("snapshot processor not configured")
	}
	ctx, span := otel.Tracer("snapshot.Processor").Start(ctx, "SnapshotProcessor.ProcessTask")
	defer span.End()

	rec, err := DecodeTask(t)
	if err != nil {
		p.Logger.Warn().Err(err).Msg("dropping malformed snapshot task")
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	span.SetAttributes(attribute.String("cart.session", rec.SessionID))
	if err := p.Store.Save(ctx, rec); err != nil {
		span.RecordError(err)
		return err
	}
	obs.RecordSnapshotArchived()
	return nil
}

// Register mounts the processor on mux.
func (p Processor) Register(mux *asynq.ServeMux) {
	mux.Handle(TypeArchive, p)
}
