package blob

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/vkuznetsov-dev/cipherchat/internal/common"
	"github.com/vkuznetsov-dev/cipherchat/internal/filex"
	"github.com/vkuznetsov-dev/cipherchat/internal/logging"
)

// FSStore keeps blobs on the local filesystem under a single storage
// root. Every caller-supplied path is resolved through
// filex.ResolveUnderRoot before it touches the disk.
type FSStore struct {
	root   string
	logger logging.Logger

	// now is a seam for path-generation tests.
	now func() time.Time
}

func NewFSStore(root string, logger logging.Logger) *FSStore {
	return &FSStore{
		root:   root,
		logger: logger.With("module", "blob_fs"),
		now:    time.Now,
	}
}

// EnsureConversationDir provisions the conversation's storage directory
// up front, so a conversation row never exists without its backing
// storage. Later writes would create it too; this surfaces disk
// problems at provisioning time instead.
func (s *FSStore) EnsureConversationDir(ctx context.Context, conversationID int64) error {
	dir := filepath.Join(s.root, "chats", fmt.Sprintf("chat_%d", conversationID))
	if err := filex.EnsureDir(dir); err != nil {
		return fmt.Errorf("%w: %v", common.ErrStorageIO, err)
	}
	return nil
}

// Put writes payload under a freshly generated relative path and
// returns that path for the file index.
func (s *FSStore) Put(ctx context.Context, conversationID, fileID int64, filename, payload string) (string, error) {
	rel := generatePath(conversationID, fileID, filename, s.now())

	abs, err := filex.ResolveUnderRoot(s.root, rel)
	if err != nil {
		return "", err
	}
	if err := filex.EnsureDir(filepath.Dir(abs)); err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrStorageIO, err)
	}

	data := []byte(payload)
	if isChunkEnvelope(data) {
		// pre-chunked envelope, stored verbatim as JSON text
		if err := os.WriteFile(abs, data, 0o660); err != nil {
			return "", fmt.Errorf("%w: write %s: %v", common.ErrStorageIO, rel, err)
		}
		s.logger.Info(ctx, "chunked blob saved", "path", rel)
		return rel, nil
	}

	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", fmt.Errorf("decode payload for file %d: %w", fileID, err)
	}
	if err := os.WriteFile(abs, raw, 0o660); err != nil {
		return "", fmt.Errorf("%w: write %s: %v", common.ErrStorageIO, rel, err)
	}
	s.logger.Info(ctx, "blob saved", "path", rel, "size", len(raw))
	return rel, nil
}

// Get reads the blob at relPath and reverses Put's encoding: chunk
// envelopes come back as JSON text, raw blobs as base64.
func (s *FSStore) Get(ctx context.Context, relPath string) (string, error) {
	abs, err := filex.ResolveUnderRoot(s.root, relPath)
	if err != nil {
		return "", err
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("blob %s: %w", relPath, common.ErrNotFound)
		}
		return "", fmt.Errorf("%w: read %s: %v", common.ErrStorageIO, relPath, err)
	}

	if isChunkEnvelope(data) {
		return string(data), nil
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// Delete removes the blob if present. Absence is reported as false, not
// as an error.
func (s *FSStore) Delete(ctx context.Context, relPath string) (bool, error) {
	abs, err := filex.ResolveUnderRoot(s.root, relPath)
	if err != nil {
		return false, err
	}

	if err := os.Remove(abs); err != nil {
		if os.IsNotExist(err) {
			s.logger.Warn(ctx, "blob already absent", "path", relPath)
			return false, nil
		}
		return false, fmt.Errorf("%w: delete %s: %v", common.ErrStorageIO, relPath, err)
	}
	s.logger.Info(ctx, "blob deleted", "path", relPath)
	return true, nil
}
