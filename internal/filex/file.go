// Package filex provides filesystem helpers shared by the blob and chunk
// stores. Every caller-supplied path goes through ResolveUnderRoot before
// any read, write or delete.
package filex

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/vkuznetsov-dev/cipherchat/internal/common"
)

// ResolveUnderRoot resolves a caller-supplied relative path against the
// storage root. Traversal segments ("..", ".") are stripped rather than
// rejected, matching the lenient transport contract; what remains is then
// verified to stay under root. Absolute inputs and paths that resolve
// outside the root fail with common.ErrInvalidPath.
func ResolveUnderRoot(root, rel string) (string, error) {
	if rel == "" {
		return "", common.ErrInvalidPath
	}

	clean := filepath.Clean(filepath.FromSlash(rel))
	if filepath.IsAbs(clean) || (len(clean) > 1 && clean[1] == ':') {
		return "", common.ErrInvalidPath
	}

	parts := strings.Split(clean, string(filepath.Separator))
	kept := parts[:0]
	for _, p := range parts {
		if p == ".." || p == "." || p == "" {
			continue
		}
		kept = append(kept, p)
	}
	if len(kept) == 0 {
		return "", common.ErrInvalidPath
	}

	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve root %s: %w", root, err)
	}

	abs := filepath.Join(rootAbs, filepath.Join(kept...))
	if !strings.HasPrefix(abs, rootAbs+string(filepath.Separator)) {
		return "", common.ErrInvalidPath
	}
	return abs, nil
}

// EnsureDir creates dir (and parents) if missing.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o770); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return nil
}

// EnsureSubDir creates a subdirectory under parent and returns its path.
func EnsureSubDir(parent, name string) (string, error) {
	dir := filepath.Join(parent, name)
	if err := EnsureDir(dir); err != nil {
		return "", err
	}
	return dir, nil
}

// Exists reports whether a file or directory is present at path.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
