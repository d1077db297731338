package services

import (
	"context"

	"github.com/vkuznetsov-dev/cipherchat/internal/logging"
	"github.com/vkuznetsov-dev/cipherchat/internal/storage/blob"
	"github.com/vkuznetsov-dev/cipherchat/internal/storage/chunk"
)

// TransferService fronts the resumable chunk protocol and whole-file
// reads. It carries no database state; the chunk directory layout is
// the transfer state.
type TransferService struct {
	blobs  blob.Store
	chunks *chunk.Store
	logger logging.Logger
}

func NewTransferService(blobs blob.Store, chunks *chunk.Store, logger logging.Logger) *TransferService {
	return &TransferService{
		blobs:  blobs,
		chunks: chunks,
		logger: logger.With("module", "transfer_service"),
	}
}

// UploadChunk stores one chunk; replays report StatusExists and leave
// the first-written bytes untouched. messageID rides along for the log
// trail only, chunk addressing is (conversation, file, index).
func (s *TransferService) UploadChunk(ctx context.Context, conversationID, messageID, fileID int64, index int, payloadB64, nonce string) (chunk.PutChunkStatus, error) {
	status, err := s.chunks.PutChunk(ctx, conversationID, fileID, index, payloadB64, nonce)
	if err != nil {
		return "", err
	}
	s.logger.Debug(ctx, "chunk upload", "chat_id", conversationID, "message_id", messageID,
		"file_id", fileID, "index", index, "status", string(status))
	return status, nil
}

// UploadMetadata finalizes the sidecar from an allow-listed raw body.
func (s *TransferService) UploadMetadata(ctx context.Context, conversationID, messageID, fileID int64, raw []byte) (*chunk.Sidecar, error) {
	return s.chunks.PutMetadata(ctx, conversationID, fileID, raw)
}

// GetMetadata returns the sidecar or common.ErrNotFound.
func (s *TransferService) GetMetadata(ctx context.Context, conversationID, messageID, fileID int64) (*chunk.Sidecar, error) {
	return s.chunks.GetMetadata(ctx, conversationID, fileID)
}

// GetChunk returns one chunk with its recorded nonce.
func (s *TransferService) GetChunk(ctx context.Context, conversationID, messageID, fileID int64, index int) (*chunk.Chunk, error) {
	return s.chunks.GetChunk(ctx, conversationID, fileID, index)
}

// GetFile reads a whole stored blob by its index-recorded relative path.
func (s *TransferService) GetFile(ctx context.Context, relPath string) (string, error) {
	return s.blobs.Get(ctx, relPath)
}

// DeleteFile removes a file's chunk directory (or single stored file).
func (s *TransferService) DeleteFile(ctx context.Context, conversationID, fileID int64) error {
	return s.chunks.DeleteFile(ctx, conversationID, fileID)
}
