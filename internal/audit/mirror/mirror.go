package mirror

import (
	"context"

	log "github.com/sirupsen/logrus"

	"custodia/internal/audit"
)

// Sink receives copies of recorded audit events. The chained log is the
// compliance record; sinks are downstream feeds and may be lossy.
type Sink interface {
	Publish(ctx context.Context, event audit.Event) error
	Close()
}

// Worker consumes audit events from a channel and forwards them to a sink.
// It keeps background processing testable without wiring broker
// implementations into the recorder.
type Worker struct {
	sink  Sink
	inbox <-chan audit.Event
}

func NewWorker(sink Sink, inbox <-chan audit.Event) *Worker {
	return &Worker{sink: sink, inbox: inbox}
}

// Run forwards events until the context is cancelled. Publish failures are
// logged and skipped; a broken feed must not take the recorder down with it.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-w.inbox:
			if err := w.sink.Publish(ctx, event); err != nil {
				log.WithFields(log.Fields{
					"event_id": event.EventID,
					"error":    err,
				}).Warn("Failed to mirror audit event")
			}
		}
	}
}
