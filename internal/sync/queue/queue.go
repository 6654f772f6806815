// Package queue manages the durable queue of pending remote side-effects.
// Items live in the local store so they survive arbitrary disconnection
// and process restarts; an item leaves the queue only after the remote
// system durably acknowledged its effect.
package queue

import (
	"context"

	"go.uber.org/zap"

	"github.com/jayaraj-kannan/nalam-sub001/internal/db"
	apperrors "github.com/jayaraj-kannan/nalam-sub001/internal/errors"
	"github.com/jayaraj-kannan/nalam-sub001/internal/models"
)

// Queue wraps the store's queue collection with typed enqueue and attempt
// bookkeeping.
type Queue struct {
	store *db.Store
	log   *zap.Logger
}

// New creates a Queue over the local store.
func New(store *db.Store, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{store: store, log: logger}
}

// Put encodes a typed payload and appends it to the queue. The payload's
// kind must be one of the known queue kinds.
func (q *Queue) Put(ctx context.Context, payload models.QueuePayload) (*models.QueueItem, error) {
	kind := payload.Kind()
	if !kind.IsValid() {
		return nil, apperrors.New(apperrors.ErrUnknownQueueKind, string(kind))
	}

	raw, err := models.EncodePayload(payload)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInput, "encode queue payload", err)
	}

	item := &models.QueueItem{Kind: kind, Payload: raw}
	if _, err := q.store.Enqueue(ctx, item); err != nil {
		return nil, err
	}

	q.log.Debug("enqueued",
		zap.Int64("id", item.ID),
		zap.String("kind", string(kind)))
	return item, nil
}

// Items returns the full queue in enqueue order.
func (q *Queue) Items(ctx context.Context) ([]models.QueueItem, error) {
	return q.store.QueueItems(ctx)
}

// Remove deletes an item after its effect was durably acknowledged.
// Removing an absent id is a no-op.
func (q *Queue) Remove(ctx context.Context, id int64) error {
	return q.store.DeleteQueueItem(ctx, id)
}

// Fail records a failed delivery attempt, leaving the item in place for
// the next pass.
func (q *Queue) Fail(ctx context.Context, id int64) error {
	return q.store.IncrementAttempts(ctx, id)
}

// Len returns the number of pending items.
func (q *Queue) Len(ctx context.Context) (int, error) {
	return q.store.QueueLen(ctx)
}
