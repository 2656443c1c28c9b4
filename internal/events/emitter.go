package events

import (
	"context"
	"sync"
	"time"

	"github.com/bookstore/services/reviews/internal/rating"
	"go.uber.org/zap"
)

const publishTimeout = 10 * time.Second

// Emitter publishes events in the background. A broker failure is logged
// and never reaches the request that caused the event.
type Emitter struct {
	publisher Publisher
	log       *zap.Logger
	wg        sync.WaitGroup
}

// NewEmitter wraps a publisher for fire-and-forget delivery.
func NewEmitter(publisher Publisher, log *zap.Logger) *Emitter {
	return &Emitter{publisher: publisher, log: log}
}

// Emit builds the event from ctx (for the correlation id) and publishes it
// on its own goroutine with a fresh timeout.
func (e *Emitter) Emit(ctx context.Context, eventType string, payload map[string]interface{}) {
	event := NewEvent(ctx, eventType, payload)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()

		publishCtx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()

		if err := e.publisher.Publish(publishCtx, event); err != nil {
			e.log.Error("Failed to publish event",
				zap.String("event_id", event.EventID),
				zap.String("event_type", eventType),
				zap.Error(err),
			)
		}
	}()
}

// RatingRecomputed implements rating.Notifier.
func (e *Emitter) RatingRecomputed(ctx context.Context, summary rating.Summary) {
	e.Emit(ctx, EventTypeRatingRecomputed, map[string]interface{}{
		"book_id":        summary.BookID,
		"average_rating": summary.AverageRating,
		"review_count":   summary.ReviewCount,
	})
}

// Wait blocks until every in-flight publish has finished.
func (e *Emitter) Wait() {
	e.wg.Wait()
}
