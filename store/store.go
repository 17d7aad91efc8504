package store

import (
	"context"
	"errors"

	"github.com/zlnvch/cipherchat/models"
)

// CipherchatStore is the durable message log sink plus moderator account
// storage. Message writes arrive through the write-behind batcher, never
// from the broadcast path directly.
type CipherchatStore interface {
	CreateModerator(ctx context.Context, mod models.Moderator) (models.Moderator, error)
	GetModerator(ctx context.Context, provider string, providerId string) (models.Moderator, error)

	WriteMessageBatch(ctx context.Context, records []models.MessageRecord) ([]models.MessageRecord, error)
	GetRoomMessages(ctx context.Context, roomId string, limit int32) ([]models.Message, error)

	// MarkMessageDeleted soft-deletes a stored message. Returns
	// ErrItemNotFound when no record exists; the deleted flag never
	// reverts once set.
	MarkMessageDeleted(ctx context.Context, roomId string, messageId string) error

	// MarkSenderMessagesDeleted soft-deletes every stored message sent by
	// the tripcode, across all rooms. Returns the number of records
	// flagged. Driven by the global-ban purge worker.
	MarkSenderMessagesDeleted(ctx context.Context, tripcode string) (int, error)
}

// Custom error types for clarity
var (
	ErrItemNotFound    = errors.New("item does not exist")
	ErrConditionFailed = errors.New("condition not met")
)
