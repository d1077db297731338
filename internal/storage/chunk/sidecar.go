package chunk

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vkuznetsov-dev/cipherchat/internal/common"
)

// Sidecar is the per-file metadata document living next to the chunks.
// Nonces is index-aligned with chunk indexes and always long enough to
// cover every chunk ever written, gaps filled with "". It never holds
// chunk payload bytes. Everything but Nonces is advisory and
// rebuildable; the nonces themselves must be preserved exactly.
type Sidecar struct {
	Filename   string   `json:"filename,omitempty"`
	Mimetype   string   `json:"mimetype,omitempty"`
	Size       int64    `json:"size,omitempty"`
	ChunkCount int      `json:"chunk_count,omitempty"`
	ChunkSize  int      `json:"chunk_size,omitempty"`
	Duration   float64  `json:"duration,omitempty"`
	Nonces     []string `json:"nonces"`
}

// ParseSidecar decodes only the allow-listed fields from raw; unknown
// fields are dropped and malformed input yields an empty sidecar.
func ParseSidecar(raw []byte) *Sidecar {
	var side Sidecar
	if err := json.Unmarshal(raw, &side); err != nil {
		return &Sidecar{}
	}
	return &side
}

// SetNonce records the nonce for a chunk index, extending the list with
// empty placeholders as needed.
func (s *Sidecar) SetNonce(index int, nonce string) {
	for len(s.Nonces) <= index {
		s.Nonces = append(s.Nonces, "")
	}
	s.Nonces[index] = nonce
}

// NonceAt returns the nonce recorded for index, or "" when the index is
// beyond the list; a metadata/chunk count mismatch is tolerated rather
// than failed.
func (s *Sidecar) NonceAt(index int) string {
	if index < 0 || index >= len(s.Nonces) {
		return ""
	}
	return s.Nonces[index]
}

// PopulatedNonces counts non-empty nonce entries; completeness of a
// transfer is ChunkCount compared against this.
func (s *Sidecar) PopulatedNonces() int {
	n := 0
	for _, v := range s.Nonces {
		if v != "" {
			n++
		}
	}
	return n
}

// readSidecar loads the sidecar from dir, returning an empty one when
// the file does not exist yet.
func (s *Store) readSidecar(dir string) (*Sidecar, error) {
	path := filepath.Join(dir, common.SidecarFileName)
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Sidecar{}, nil
		}
		return nil, fmt.Errorf("%w: read sidecar: %v", common.ErrStorageIO, err)
	}
	return ParseSidecar(raw), nil
}

// writeSidecar rewrites the sidecar atomically via a temp file rename.
func (s *Store) writeSidecar(dir string, side *Sidecar) error {
	if side.Nonces == nil {
		side.Nonces = []string{}
	}
	raw, err := json.Marshal(side)
	if err != nil {
		return fmt.Errorf("encode sidecar: %w", err)
	}

	path := filepath.Join(dir, common.SidecarFileName)
	tmp, err := os.CreateTemp(dir, common.SidecarFileName+".*")
	if err != nil {
		return fmt.Errorf("%w: temp sidecar: %v", common.ErrStorageIO, err)
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("%w: write sidecar: %v", common.ErrStorageIO, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("%w: close sidecar: %v", common.ErrStorageIO, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("%w: replace sidecar: %v", common.ErrStorageIO, err)
	}
	return nil
}
