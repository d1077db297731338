// Package blob stores whole encrypted files, addressed by storage-root-
// relative paths recorded in the file index. Two payload shapes pass
// through transparently: a JSON envelope with a "chunks" list (written
// verbatim) and a plain base64 blob (decoded to raw bytes first).
package blob

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"path"
	"path/filepath"
	"time"

	"github.com/vkuznetsov-dev/cipherchat/internal/common"
)

// Store is the blob persistence contract shared by the filesystem and
// S3 backends. Put returns the relative path under which the payload
// was stored; Get is its inverse, auto-detecting which shape was
// written. Delete reports false, not an error, for an absent path.
type Store interface {
	Put(ctx context.Context, conversationID, fileID int64, filename, payload string) (string, error)
	Get(ctx context.Context, relPath string) (string, error)
	Delete(ctx context.Context, relPath string) (bool, error)
}

// chunkEnvelope mirrors the pre-chunked payload shape. Only the key is
// inspected; the content stays opaque.
type chunkEnvelope struct {
	Chunks json.RawMessage `json:"chunks"`
}

// isChunkEnvelope reports whether payload is a JSON object carrying a
// chunks list.
func isChunkEnvelope(payload []byte) bool {
	var env chunkEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return false
	}
	return len(env.Chunks) > 0
}

// generatePath derives a collision-resistant relative path for a file:
// a per-conversation, per-time-bucket directory holding
// {fileID}_{hash}{ext}.enc, where hash covers the file identity and the
// current time.
func generatePath(conversationID, fileID int64, filename string, now time.Time) string {
	sum := sha256.Sum256(fmt.Appendf(nil, "%d_%s_%d", fileID, filename, now.UnixNano()))
	hash := hex.EncodeToString(sum[:])[:8]
	ext := filepath.Ext(filename)

	bucket := now.Format("20060102_150405")
	name := fmt.Sprintf("%d_%s%s%s", fileID, hash, ext, common.EncryptedFileSuffix)
	return path.Join("chats", fmt.Sprintf("chat_%d", conversationID), bucket, name)
}
