package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseMessageKind(t *testing.T) {
	assert.Equal(t, KindText, ParseMessageKind("text"))
	assert.Equal(t, KindFile, ParseMessageKind("file"))
	assert.Equal(t, KindMixed, ParseMessageKind("mixed"))
	assert.Equal(t, KindText, ParseMessageKind(""))
	assert.Equal(t, KindText, ParseMessageKind("hologram"))
}

func TestParseFileMetaList(t *testing.T) {
	t.Run("decodes a descriptor list", func(t *testing.T) {
		raw := []byte(`[{"file_id":7,"filename":"clip.mp4","chunk_count":3,"nonces":["a","b","c"]}]`)
		list := ParseFileMetaList(raw)
		assert.Len(t, list, 1)
		assert.Equal(t, int64(7), list[0].FileID)
		assert.Equal(t, "clip.mp4", list[0].Filename)
		assert.Equal(t, 3, list[0].ChunkCount)
		assert.Equal(t, []string{"a", "b", "c"}, list[0].Nonces)
	})

	t.Run("empty input is nil", func(t *testing.T) {
		assert.Nil(t, ParseFileMetaList(nil))
		assert.Nil(t, ParseFileMetaList([]byte{}))
	})

	t.Run("malformed input is nil, not an error", func(t *testing.T) {
		assert.Nil(t, ParseFileMetaList([]byte(`{"not":"a list"}`)))
		assert.Nil(t, ParseFileMetaList([]byte(`garbage`)))
	})
}

func TestMessageUpdate_Empty(t *testing.T) {
	assert.True(t, (&MessageUpdate{}).Empty())

	read := true
	assert.False(t, (&MessageUpdate{IsRead: &read}).Empty())

	kind := "file"
	assert.False(t, (&MessageUpdate{Kind: &kind}).Empty())

	assert.False(t, (&MessageUpdate{Envelopes: map[string]any{}}).Empty())
}
