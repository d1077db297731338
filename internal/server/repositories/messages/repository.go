package messages

import (
	"context"
	"time"

	"github.com/vkuznetsov-dev/cipherchat/internal/server/models"
)

// ColumnUpdate is the fixed allow-list of message columns an edit may
// touch, already encoded for storage. Nil pointers leave a column as is.
// EditedAt is stamped by the store on every update; callers never supply
// it from transport input.
type ColumnUpdate struct {
	Ciphertext *[]byte
	Nonce      *[]byte
	Envelopes  *[]byte
	Kind       *models.MessageKind
	// Metadata distinguishes "leave" (nil) from "set to NULL"
	// (pointer to nil slice).
	Metadata *[]byte
	IsRead   *bool
	EditedAt time.Time
}

// Empty reports whether no column besides the edit stamp would change.
func (u *ColumnUpdate) Empty() bool {
	return u.Ciphertext == nil && u.Nonce == nil && u.Envelopes == nil &&
		u.Kind == nil && u.Metadata == nil && u.IsRead == nil
}

// Repository is encrypted-message persistence within a conversation.
type Repository interface {
	// Insert stores a message and returns its sequence-assigned id.
	Insert(ctx context.Context, m *models.Message) (int64, error)

	// ListByConversation returns all messages oldest first.
	ListByConversation(ctx context.Context, conversationID int64) ([]*models.Message, error)

	// Latest returns the newest message or common.ErrNotFound.
	Latest(ctx context.Context, conversationID int64) (*models.Message, error)

	// Get returns one message or common.ErrNotFound.
	Get(ctx context.Context, conversationID, messageID int64) (*models.Message, error)

	// GetSender returns the sender of one message, common.ErrNotFound
	// when the row is absent.
	GetSender(ctx context.Context, conversationID, messageID int64) (int64, error)

	// Update applies the allow-listed column set; common.ErrNotFound
	// when the row is absent.
	Update(ctx context.Context, conversationID, messageID int64, u *ColumnUpdate) error

	// Delete removes the message row; common.ErrNotFound when absent.
	Delete(ctx context.Context, conversationID, messageID int64) error
}
