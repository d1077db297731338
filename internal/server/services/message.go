package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/vkuznetsov-dev/cipherchat/internal/codecx"
	"github.com/vkuznetsov-dev/cipherchat/internal/common"
	"github.com/vkuznetsov-dev/cipherchat/internal/dbx"
	"github.com/vkuznetsov-dev/cipherchat/internal/logging"
	"github.com/vkuznetsov-dev/cipherchat/internal/server/models"
	"github.com/vkuznetsov-dev/cipherchat/internal/server/repositories/messages"
	"github.com/vkuznetsov-dev/cipherchat/internal/server/repositories/repomanager"
	"github.com/vkuznetsov-dev/cipherchat/internal/storage/blob"
	"github.com/vkuznetsov-dev/cipherchat/internal/storage/chunk"
)

const defaultMimetype = "application/octet-stream"

// AppendMessage is a message as it arrives from transport: ciphertext
// and nonce still encoded, files possibly carrying payload bytes.
type AppendMessage struct {
	ConversationID int64
	SenderID       int64
	Ciphertext     string
	Nonce          string
	Envelopes      map[string]any
	Kind           string
	Files          []models.IncomingFile
	CreatedAt      string
	IsRead         bool
}

// MessageService implements the per-conversation message store.
type MessageService struct {
	db     *sql.DB
	repos  repomanager.RepositoryManager
	blobs  blob.Store
	chunks *chunk.Store
	logger logging.Logger

	now func() time.Time
}

func NewMessageService(db *sql.DB, repos repomanager.RepositoryManager, blobs blob.Store, chunks *chunk.Store, logger logging.Logger) *MessageService {
	return &MessageService{
		db:     db,
		repos:  repos,
		blobs:  blobs,
		chunks: chunks,
		logger: logger.With("module", "message_service"),
		now:    time.Now,
	}
}

// Append persists one message plus its file descriptors and returns the
// sequence-assigned message id. Decode and timestamp failures degrade
// to safe defaults with a log line; a failure saving one file's bytes
// skips that file only; a failure at the SQL layer rolls the whole
// operation back.
func (s *MessageService) Append(ctx context.Context, in *AppendMessage) (int64, error) {
	ciphertext, ok := codecx.DecodeBytes(in.Ciphertext)
	if !ok {
		s.logger.Warn(ctx, "undecodable ciphertext, storing empty", "chat_id", in.ConversationID)
	}
	nonce, ok := codecx.DecodeBytes(in.Nonce)
	if !ok {
		s.logger.Warn(ctx, "undecodable nonce, storing empty", "chat_id", in.ConversationID)
	}
	createdAt, ok := codecx.NormalizeTimestamp(in.CreatedAt, s.now())
	if !ok && in.CreatedAt != "" {
		s.logger.Warn(ctx, "unparseable created_at, using server time", "chat_id", in.ConversationID, "value", in.CreatedAt)
	}

	msg := &models.Message{
		ConversationID: in.ConversationID,
		SenderID:       in.SenderID,
		Ciphertext:     ciphertext,
		Nonce:          nonce,
		Envelopes:      codecx.EnvelopesJSON(in.Envelopes),
		Kind:           models.ParseMessageKind(in.Kind),
		Metadata:       stripPayloads(in.Files),
		CreatedAt:      createdAt,
		IsRead:         in.IsRead,
	}

	var messageID int64
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		id, err := s.repos.Messages(tx).Insert(ctx, msg)
		if err != nil {
			return err
		}
		messageID = id

		fileRepo := s.repos.Files(tx)
		for i := range in.Files {
			f := &in.Files[i]
			if f.FileID == 0 {
				continue
			}

			relPath, err := s.saveFilePayload(ctx, in.ConversationID, f)
			if err != nil {
				// isolate-and-continue: one bad file must not fail
				// the message or its siblings
				s.logger.Warn(ctx, "file save failed, skipping descriptor",
					"chat_id", in.ConversationID, "file_id", f.FileID, "error", err.Error())
				continue
			}

			desc := &models.FileDescriptor{
				MessageID: messageID,
				FileID:    f.FileID,
				Path:      relPath,
				Filename:  fallbackFilename(f),
				Mimetype:  fallbackMimetype(f),
				Size:      f.Size,
				Nonce:     f.Nonce,
				CreatedAt: createdAt,
			}
			if err := fileRepo.Insert(ctx, in.ConversationID, desc); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info(ctx, "message saved", "chat_id", in.ConversationID, "message_id", messageID, "files", len(in.Files))
	return messageID, nil
}

// saveFilePayload routes a descriptor's payload to the blob store:
// pre-chunked content goes verbatim inside a chunks envelope, whole
// files as the base64 blob (possibly empty for chunk-protocol uploads
// whose bytes arrive separately).
func (s *MessageService) saveFilePayload(ctx context.Context, conversationID int64, f *models.IncomingFile) (string, error) {
	payload := f.EncFile
	if len(f.Chunks) > 0 {
		env, err := json.Marshal(map[string]json.RawMessage{"chunks": f.Chunks})
		if err != nil {
			return "", fmt.Errorf("encode chunks envelope: %w", err)
		}
		payload = string(env)
	}
	return s.blobs.Put(ctx, conversationID, f.FileID, fallbackFilename(f), payload)
}

// List returns the conversation's messages oldest first.
func (s *MessageService) List(ctx context.Context, conversationID int64) ([]*models.Message, error) {
	return s.repos.Messages(s.db).ListByConversation(ctx, conversationID)
}

// Latest returns the newest message or common.ErrNotFound.
func (s *MessageService) Latest(ctx context.Context, conversationID int64) (*models.Message, error) {
	return s.repos.Messages(s.db).Latest(ctx, conversationID)
}

// Update edits a message. Only the original sender may edit; edited_at
// is stamped server-side as part of the same update. Naming no allowed
// field is a no-op success.
func (s *MessageService) Update(ctx context.Context, conversationID, messageID, editorID int64, u *models.MessageUpdate) error {
	repo := s.repos.Messages(s.db)

	senderID, err := repo.GetSender(ctx, conversationID, messageID)
	if err != nil {
		return err
	}
	if senderID != editorID {
		return fmt.Errorf("message %d belongs to %d: %w", messageID, senderID, common.ErrForbidden)
	}

	if u == nil || u.Empty() {
		return nil
	}

	col := &messages.ColumnUpdate{EditedAt: s.now()}
	if u.Ciphertext != nil {
		b, ok := codecx.DecodeBytes(*u.Ciphertext)
		if !ok {
			s.logger.Warn(ctx, "undecodable ciphertext on edit, storing empty", "message_id", messageID)
		}
		col.Ciphertext = &b
	}
	if u.Nonce != nil {
		b, ok := codecx.DecodeBytes(*u.Nonce)
		if !ok {
			s.logger.Warn(ctx, "undecodable nonce on edit, storing empty", "message_id", messageID)
		}
		col.Nonce = &b
	}
	if u.Envelopes != nil {
		env := codecx.EnvelopesJSON(u.Envelopes)
		col.Envelopes = &env
	}
	if u.Kind != nil {
		kind := models.ParseMessageKind(*u.Kind)
		col.Kind = &kind
	}
	if u.Metadata != nil {
		var meta []byte
		if *u.Metadata != nil {
			meta, _ = json.Marshal(*u.Metadata)
		}
		col.Metadata = &meta
	}
	col.IsRead = u.IsRead

	return repo.Update(ctx, conversationID, messageID, col)
}

// Delete removes a message with its file-index rows and best-effort its
// on-disk bytes. Any conversation member may delete; deleting a missing
// message is common.ErrNotFound.
func (s *MessageService) Delete(ctx context.Context, conversationID, messageID int64) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		fileRepo := s.repos.Files(tx)

		descriptors, err := fileRepo.ListByMessage(ctx, conversationID, messageID)
		if err != nil {
			return err
		}
		for _, d := range descriptors {
			if d.Path != "" {
				if _, err := s.blobs.Delete(ctx, d.Path); err != nil {
					s.logger.Warn(ctx, "blob cleanup failed", "path", d.Path, "error", err.Error())
				}
			}
			s.chunks.RemoveDirBestEffort(ctx, conversationID, d.FileID)
		}

		if _, err := fileRepo.DeleteByMessage(ctx, conversationID, messageID); err != nil {
			return err
		}
		return s.repos.Messages(tx).Delete(ctx, conversationID, messageID)
	})
}

// MessageFiles joins a message's file descriptors with the message-level
// attachment metadata.
type MessageFiles struct {
	Files    []*models.FileDescriptor
	Metadata []models.FileMeta
}

// ListFiles returns descriptors plus the owning message's metadata.
func (s *MessageService) ListFiles(ctx context.Context, conversationID, messageID int64) (*MessageFiles, error) {
	descriptors, err := s.repos.Files(s.db).ListByMessage(ctx, conversationID, messageID)
	if err != nil {
		return nil, err
	}
	msg, err := s.repos.Messages(s.db).Get(ctx, conversationID, messageID)
	if err != nil {
		return nil, err
	}
	return &MessageFiles{Files: descriptors, Metadata: msg.Metadata}, nil
}

// stripPayloads reduces incoming files to their descriptive allow-list;
// payload bytes never reach the metadata column.
func stripPayloads(files []models.IncomingFile) []models.FileMeta {
	if files == nil {
		return nil
	}
	metas := make([]models.FileMeta, 0, len(files))
	for _, f := range files {
		metas = append(metas, f.FileMeta)
	}
	return metas
}

func fallbackFilename(f *models.IncomingFile) string {
	if f.Filename != "" {
		return f.Filename
	}
	return fmt.Sprintf("file_%d", f.FileID)
}

// fallbackMimetype fills a missing mimetype, sniffing the payload when
// there is one. Encrypted content sniffs to the octet-stream default,
// which is exactly the conservative answer we want.
func fallbackMimetype(f *models.IncomingFile) string {
	if f.Mimetype != "" {
		return f.Mimetype
	}
	if raw, ok := codecx.DecodeBytes(f.EncFile); ok && len(raw) > 0 {
		return mimetype.Detect(raw).String()
	}
	return defaultMimetype
}
