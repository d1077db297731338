package files

import (
	"context"

	"github.com/vkuznetsov-dev/cipherchat/internal/server/models"
)

// Repository is file-index persistence. Rows are the source of truth
// for a file's existence; on-disk bytes belong to the blob store.
type Repository interface {
	// Insert stores one descriptor for a message.
	Insert(ctx context.Context, conversationID int64, f *models.FileDescriptor) error

	// ListByMessage returns descriptors ordered by file_id.
	ListByMessage(ctx context.Context, conversationID, messageID int64) ([]*models.FileDescriptor, error)

	// DeleteByMessage removes all descriptors of a message and returns
	// how many rows went away.
	DeleteByMessage(ctx context.Context, conversationID, messageID int64) (int64, error)
}
