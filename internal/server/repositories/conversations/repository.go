package conversations

import (
	"context"
	"errors"
	"time"

	"github.com/vkuznetsov-dev/cipherchat/internal/server/models"
)

// ErrDuplicatePair signals that the unordered participant pair already
// owns a conversation; the storage-level unique index is load-bearing
// for racing creates and callers fall back to lookup.
var ErrDuplicatePair = errors.New("conversation pair already exists")

// Repository is conversation-row persistence.
type Repository interface {
	// Create inserts a conversation row. A second insert for the same
	// unordered pair fails with ErrDuplicatePair.
	Create(ctx context.Context, user1ID, user2ID int64, createdAt time.Time) (*models.Conversation, error)

	// FindByPair looks the pair up in either order; common.ErrNotFound
	// when absent.
	FindByPair(ctx context.Context, userA, userB int64) (*models.Conversation, error)

	// FindByID returns the conversation or common.ErrNotFound.
	FindByID(ctx context.Context, id int64) (*models.Conversation, error)

	// Delete removes a conversation row (compensation path).
	Delete(ctx context.Context, id int64) error
}
