// Package services implements the application logic between the HTTP
// transport and the repositories/stores.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vkuznetsov-dev/cipherchat/internal/common"
	"github.com/vkuznetsov-dev/cipherchat/internal/logging"
	"github.com/vkuznetsov-dev/cipherchat/internal/server/models"
	"github.com/vkuznetsov-dev/cipherchat/internal/server/repositories/conversations"
	"github.com/vkuznetsov-dev/cipherchat/internal/server/repositories/repomanager"
)

// StorageProvisioner prepares per-conversation backing storage when a
// conversation is created.
type StorageProvisioner interface {
	EnsureConversationDir(ctx context.Context, conversationID int64) error
}

// ConversationService manages the conversation lifecycle: idempotent
// pair provisioning and membership checks.
type ConversationService struct {
	db      *sql.DB
	repos   repomanager.RepositoryManager
	storage StorageProvisioner
	logger  logging.Logger

	now func() time.Time
}

func NewConversationService(db *sql.DB, repos repomanager.RepositoryManager, storage StorageProvisioner, logger logging.Logger) *ConversationService {
	return &ConversationService{
		db:      db,
		repos:   repos,
		storage: storage,
		logger:  logger.With("module", "conversation_service"),
		now:     time.Now,
	}
}

// EnsureConversation returns the conversation for the unordered pair,
// creating it on first use. Two racing calls for the same pair resolve
// through the storage-level uniqueness: the loser's insert fails with a
// duplicate and falls back to lookup, so rows are provisioned exactly
// once. If backing storage cannot be prepared after the row was
// committed, the row is compensated away and ErrProvisioningFailed
// surfaces.
func (s *ConversationService) EnsureConversation(ctx context.Context, userA, userB int64) (*models.Conversation, error) {
	if userA <= 0 || userB <= 0 || userA == userB {
		return nil, fmt.Errorf("participants (%d, %d): %w", userA, userB, common.ErrProvisioningFailed)
	}

	repo := s.repos.Conversations(s.db)

	c, err := repo.FindByPair(ctx, userA, userB)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		return nil, err
	}

	c, err = repo.Create(ctx, userA, userB, s.now())
	if err != nil {
		if errors.Is(err, conversations.ErrDuplicatePair) {
			// lost the race, the winner's row is the conversation
			return repo.FindByPair(ctx, userA, userB)
		}
		return nil, fmt.Errorf("%w: %v", common.ErrProvisioningFailed, err)
	}

	if err := s.storage.EnsureConversationDir(ctx, c.ID); err != nil {
		s.logger.Error(ctx, "storage provisioning failed, compensating", "chat_id", c.ID, "error", err.Error())
		if delErr := repo.Delete(ctx, c.ID); delErr != nil {
			s.logger.Error(ctx, "compensation failed", "chat_id", c.ID, "error", delErr.Error())
		}
		return nil, fmt.Errorf("%w: %v", common.ErrProvisioningFailed, err)
	}

	s.logger.Info(ctx, "conversation provisioned", "chat_id", c.ID, "user1_id", c.User1ID, "user2_id", c.User2ID)
	return c, nil
}

// RequireMember loads a conversation and verifies userID participates;
// common.ErrNotFound for a missing conversation, common.ErrForbidden
// for an outsider.
func (s *ConversationService) RequireMember(ctx context.Context, conversationID, userID int64) (*models.Conversation, error) {
	c, err := s.repos.Conversations(s.db).FindByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !c.HasMember(userID) {
		return nil, fmt.Errorf("user %d in conversation %d: %w", userID, conversationID, common.ErrForbidden)
	}
	return c, nil
}
