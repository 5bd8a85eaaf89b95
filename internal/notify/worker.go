// Package notify decouples threshold-crossing events from the monetary call
// path. Credits enqueue events without blocking; a single worker goroutine
// feeds them to the referral side, so a slow milestone evaluation never
// lengthens the latency of an unrelated ledger operation.
package notify

import (
	"context"
	"log/slog"
	"sync"

	"github.com/profilehub/mypts/internal/infra/metrics"
)

// Handler consumes threshold-crossing events. Implemented by the referral
// service.
type Handler interface {
	OnThresholdCrossed(ctx context.Context, profileID string) error
}

type Worker struct {
	events  chan string
	handler Handler
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewWorker(handler Handler, bufferSize int) *Worker {
	ctx, cancel := context.WithCancel(context.Background())

	return &Worker{
		events:  make(chan string, bufferSize),
		handler: handler,
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (w *Worker) Start() {
	w.wg.Add(1)

	go func() {
		defer w.wg.Done()

		for {
			select {
			case <-w.ctx.Done():
				slog.Info("draining threshold events before shutdown", "remaining", len(w.events))

				for len(w.events) > 0 {
					w.handle(context.Background(), <-w.events)
				}

				return
			case profileID := <-w.events:
				w.handle(w.ctx, profileID)
			}
		}
	}()
}

// ThresholdCrossed implements the ledger's ThresholdNotifier port. It never
// blocks: when the buffer is full the event is dropped and counted, the
// accepted best-effort tradeoff for this side channel.
func (w *Worker) ThresholdCrossed(profileID string) {
	select {
	case w.events <- profileID:
		metrics.ThresholdEventsTotal.WithLabelValues("enqueued").Inc()
	default:
		slog.Warn("threshold event buffer full, dropping event", "profile_id", profileID)
		metrics.ThresholdEventsTotal.WithLabelValues("dropped").Inc()
	}
}

func (w *Worker) handle(ctx context.Context, profileID string) {
	err := w.handler.OnThresholdCrossed(ctx, profileID)
	if err != nil {
		slog.Error("threshold event handling failed", "profile_id", profileID, "error", err)
		metrics.ThresholdEventsTotal.WithLabelValues("failed").Inc()

		return
	}

	metrics.ThresholdEventsTotal.WithLabelValues("processed").Inc()
}

// Shutdown stops the worker and waits for the drain to finish. Registered on
// the shutdown queue after the HTTP server, so no new events arrive while it
// drains.
func (w *Worker) Shutdown(ctx context.Context) error {
	w.cancel()

	done := make(chan struct{})

	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
