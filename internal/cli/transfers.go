package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/capiweb/capishare/internal/events"
	"github.com/capiweb/capishare/internal/progress"
	"github.com/capiweb/capishare/internal/services"
	"github.com/capiweb/capishare/internal/transfer"
)

// renderGrace is how long the renderer may lag behind a finished batch
// before it is stopped.
const renderGrace = 2 * time.Second

var transferEventTypes = []events.EventType{
	events.EventTransferQueued,
	events.EventTransferStarted,
	events.EventTransferProgress,
	events.EventTransferCompleted,
	events.EventTransferFailed,
	events.EventTransferCancelled,
	events.EventBatchAllCompleted,
	events.EventBatchPartialCompleted,
	transfer.EventTransferState,
}

// subscribeTransfers must be called before the batch is enqueued: queued
// events are published from inside Enqueue.
func subscribeTransfers(app *services.App) <-chan events.Event {
	return app.EventBus().Subscribe(transferEventTypes...)
}

// followBatch renders batch until it finishes and returns its result. The
// coordinator's result is authoritative since the event stream drops
// events when a subscriber falls behind.
func followBatch(ctx context.Context, app *services.App, sub <-chan events.Event, batch services.Batch, overall bool) (transfer.BatchResult, error) {
	followCtx, stop := context.WithCancel(ctx)
	defer stop()

	rendered := make(chan struct{})
	go func() {
		defer close(rendered)
		if overall {
			_, _ = progress.FollowOverall(followCtx, sub, batch.Kind, batch.ID, progress.NewReporter(false))
			return
		}
		ui := progress.NewTransferUI(batch.Len())
		defer ui.Close()
		_, _ = ui.Follow(followCtx, sub, batch.ID)
	}()

	res, err := app.Transfers().For(batch.Kind).Wait(ctx, batch.ID)
	if err != nil {
		stop()
		<-rendered
		return res, err
	}

	select {
	case <-rendered:
	case <-time.After(renderGrace):
		GetLogger().Debug().Str("batch", batch.ID).Msg("Renderer missed the batch notification")
		stop()
		<-rendered
	}
	return res, nil
}

// batchError converts an unsuccessful result into an error.
func batchError(kind transfer.Kind, res transfer.BatchResult) error {
	if res.AllCompleted() {
		return nil
	}
	total := res.Completed + res.Failed + res.Cancelled
	return fmt.Errorf("%d of %d %ss did not complete (%d failed, %d cancelled)",
		res.Failed+res.Cancelled, total, kind, res.Failed, res.Cancelled)
}
