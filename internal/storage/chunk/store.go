// Package chunk implements the resumable encrypted-file transfer state:
// a per-(conversation, file) directory of independently addressed chunk
// files plus a metadata.json sidecar tracking per-chunk nonces.
package chunk

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/vkuznetsov-dev/cipherchat/internal/common"
	"github.com/vkuznetsov-dev/cipherchat/internal/filex"
	"github.com/vkuznetsov-dev/cipherchat/internal/logging"
)

// PutChunkStatus is the outcome of a chunk upload.
type PutChunkStatus string

const (
	StatusOK     PutChunkStatus = "ok"
	StatusExists PutChunkStatus = "exists"
)

// Store manages chunk directories under a single storage root. Sidecar
// read-modify-write is serialized per (conversation, file) with a keyed
// mutex; chunk writes themselves rely on the filesystem existence check
// (first writer wins, a concurrent duplicate sees "exists").
type Store struct {
	root   string
	strict bool
	logger logging.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewStore creates a chunk store rooted at root. With strict enabled,
// reads refuse to serve files whose transfer has not reached the
// finalized chunk count.
func NewStore(root string, strict bool, logger logging.Logger) *Store {
	return &Store{
		root:   root,
		strict: strict,
		logger: logger.With("module", "chunk_store"),
		locks:  make(map[string]*sync.Mutex),
	}
}

func (s *Store) lockFor(conversationID, fileID int64) *sync.Mutex {
	key := fmt.Sprintf("%d/%d", conversationID, fileID)
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	return l
}

// fileDir returns the absolute per-file directory, creating it if
// needed. Identifiers are integers, so the path is injection-free by
// construction.
func (s *Store) fileDir(conversationID, fileID int64) (string, error) {
	rel := filepath.Join("chats", fmt.Sprintf("chat_%d", conversationID), fmt.Sprintf("%d", fileID))
	abs, err := filex.ResolveUnderRoot(s.root, rel)
	if err != nil {
		return "", err
	}
	if err := filex.EnsureDir(abs); err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrStorageIO, err)
	}
	return abs, nil
}

func chunkPath(dir string, index int) string {
	return filepath.Join(dir, fmt.Sprintf("%d%s", index, common.ChunkFileSuffix))
}

// PutChunk writes one chunk and records its nonce in the sidecar.
// Replays are idempotent: an existing chunk file is never overwritten
// and the call reports StatusExists. The chunk is written before the
// sidecar, so a crash in between leaves an orphan chunk whose nonce
// slot stays empty; readers treat such a chunk as not yet valid.
func (s *Store) PutChunk(ctx context.Context, conversationID, fileID int64, index int, payloadB64, nonce string) (PutChunkStatus, error) {
	if index < 0 {
		return "", fmt.Errorf("chunk index %d: %w", index, common.ErrInvalidPath)
	}

	dir, err := s.fileDir(conversationID, fileID)
	if err != nil {
		return "", err
	}

	path := chunkPath(dir, index)
	if filex.Exists(path) {
		s.logger.Info(ctx, "chunk replay ignored", "chat_id", conversationID, "file_id", fileID, "index", index)
		return StatusExists, nil
	}

	raw, err := base64.StdEncoding.DecodeString(payloadB64)
	if err != nil {
		return "", fmt.Errorf("decode chunk %d: %w", index, err)
	}
	if err := os.WriteFile(path, raw, 0o660); err != nil {
		return "", fmt.Errorf("%w: write chunk %d: %v", common.ErrStorageIO, index, err)
	}

	lock := s.lockFor(conversationID, fileID)
	lock.Lock()
	defer lock.Unlock()

	side, err := s.readSidecar(dir)
	if err != nil {
		return "", err
	}
	side.SetNonce(index, nonce)
	if err := s.writeSidecar(dir, side); err != nil {
		return "", err
	}

	s.logger.Info(ctx, "chunk written", "chat_id", conversationID, "file_id", fileID, "index", index, "size", len(raw))
	return StatusOK, nil
}

// PutMetadata overwrites the sidecar with the allow-listed field subset
// of raw; unknown fields are dropped, not errored. Nonces already
// recorded by chunk uploads survive a finalize that omits them.
func (s *Store) PutMetadata(ctx context.Context, conversationID, fileID int64, raw []byte) (*Sidecar, error) {
	dir, err := s.fileDir(conversationID, fileID)
	if err != nil {
		return nil, err
	}

	side := ParseSidecar(raw)

	lock := s.lockFor(conversationID, fileID)
	lock.Lock()
	defer lock.Unlock()

	if len(side.Nonces) == 0 {
		prev, err := s.readSidecar(dir)
		if err != nil {
			return nil, err
		}
		side.Nonces = prev.Nonces
	}

	if err := s.writeSidecar(dir, side); err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "sidecar finalized", "chat_id", conversationID, "file_id", fileID, "chunk_count", side.ChunkCount)
	return side, nil
}

// GetMetadata returns the sidecar, or ErrNotFound if none was written.
func (s *Store) GetMetadata(ctx context.Context, conversationID, fileID int64) (*Sidecar, error) {
	dir, err := s.fileDir(conversationID, fileID)
	if err != nil {
		return nil, err
	}
	path := filepath.Join(dir, common.SidecarFileName)
	if !filex.Exists(path) {
		return nil, fmt.Errorf("sidecar for file %d: %w", fileID, common.ErrNotFound)
	}
	return s.readSidecar(dir)
}

// Chunk is one downloaded chunk with its recorded nonce.
type Chunk struct {
	Index   int    `json:"index"`
	Payload string `json:"chunk"`
	Nonce   string `json:"nonce"`
}

// GetChunk reads chunk bytes and the matching sidecar nonce. Missing
// chunk or sidecar is ErrNotFound; a nonce index beyond the recorded
// list degrades to an empty string rather than failing.
func (s *Store) GetChunk(ctx context.Context, conversationID, fileID int64, index int) (*Chunk, error) {
	if index < 0 {
		return nil, fmt.Errorf("chunk index %d: %w", index, common.ErrInvalidPath)
	}

	dir, err := s.fileDir(conversationID, fileID)
	if err != nil {
		return nil, err
	}

	path := chunkPath(dir, index)
	sidePath := filepath.Join(dir, common.SidecarFileName)
	if !filex.Exists(path) || !filex.Exists(sidePath) {
		return nil, fmt.Errorf("chunk %d of file %d: %w", index, fileID, common.ErrNotFound)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read chunk %d: %v", common.ErrStorageIO, index, err)
	}
	side, err := s.readSidecar(dir)
	if err != nil {
		return nil, err
	}
	if s.strict && side.ChunkCount > 0 && side.PopulatedNonces() < side.ChunkCount {
		return nil, fmt.Errorf("file %d transfer incomplete (%d/%d chunks): %w",
			fileID, side.PopulatedNonces(), side.ChunkCount, common.ErrNotFound)
	}

	return &Chunk{
		Index:   index,
		Payload: base64.StdEncoding.EncodeToString(raw),
		Nonce:   side.NonceAt(index),
	}, nil
}

// DeleteFile removes the per-file chunk directory, or the single file
// for non-chunked storage. Nothing at the path is ErrNotFound; a path
// escaping the root is ErrInvalidPath.
func (s *Store) DeleteFile(ctx context.Context, conversationID, fileID int64) error {
	rel := filepath.Join("chats", fmt.Sprintf("chat_%d", conversationID), fmt.Sprintf("%d", fileID))
	abs, err := filex.ResolveUnderRoot(s.root, rel)
	if err != nil {
		return err
	}

	if !filex.Exists(abs) {
		return fmt.Errorf("file %d: %w", fileID, common.ErrNotFound)
	}
	if err := os.RemoveAll(abs); err != nil {
		return fmt.Errorf("%w: remove %s: %v", common.ErrStorageIO, rel, err)
	}
	s.logger.Info(ctx, "chunk dir removed", "chat_id", conversationID, "file_id", fileID)
	return nil
}

// RemoveDirBestEffort drops a chunk directory during message deletion,
// swallowing errors by policy; orphaned directories are left to
// operator cleanup.
func (s *Store) RemoveDirBestEffort(ctx context.Context, conversationID, fileID int64) {
	if err := s.DeleteFile(ctx, conversationID, fileID); err != nil {
		s.logger.Warn(ctx, "chunk dir cleanup failed", "chat_id", conversationID, "file_id", fileID, "error", err.Error())
	}
}
