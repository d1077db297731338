package models

import (
	"encoding/json"
	"time"
)

// MessageKind tags what a message carries.
type MessageKind string

const (
	KindText  MessageKind = "text"
	KindFile  MessageKind = "file"
	KindMixed MessageKind = "mixed"
)

// ParseMessageKind maps a transport string onto the enum, defaulting to
// text for anything unknown.
func ParseMessageKind(s string) MessageKind {
	switch MessageKind(s) {
	case KindFile:
		return KindFile
	case KindMixed:
		return KindMixed
	default:
		return KindText
	}
}

// Message is one encrypted message row. Ciphertext and Nonce are opaque
// bytes and always present (empty fallback on write); Envelopes is a raw
// JSON object mapping recipient key IDs to wrapped key material.
type Message struct {
	ID             int64
	ConversationID int64
	SenderID       int64
	Ciphertext     []byte
	Nonce          []byte
	Envelopes      []byte
	Kind           MessageKind
	// Metadata is the ordered list of attached-file descriptors, nil
	// for plain text messages.
	Metadata  []FileMeta
	CreatedAt time.Time
	// EditedAt stays nil until the first edit and is set server-side.
	EditedAt *time.Time
	IsRead   bool
}

// FileMeta is the allow-listed descriptive subset of a file descriptor
// that survives into the message row's metadata column. Payload bytes
// never appear here.
type FileMeta struct {
	FileID           int64    `json:"file_id"`
	Filename         string   `json:"filename,omitempty"`
	FileCreationDate string   `json:"file_creation_date,omitempty"`
	Mimetype         string   `json:"mimetype,omitempty"`
	Size             int64    `json:"size,omitempty"`
	Nonce            string   `json:"nonce,omitempty"`
	ChunkCount       int      `json:"chunk_count,omitempty"`
	ChunkSize        int      `json:"chunk_size,omitempty"`
	Nonces           []string `json:"nonces,omitempty"`
}

// IncomingFile is a file descriptor as submitted with a message. Besides
// the descriptive fields it may carry the actual encrypted payload,
// either whole (EncFile, base64) or pre-chunked (Chunks, an opaque JSON
// list written to the blob store verbatim). The payload is stripped
// before the descriptor is persisted.
type IncomingFile struct {
	FileMeta
	EncFile string          `json:"encFile,omitempty"`
	Chunks  json.RawMessage `json:"chunks,omitempty"`
}

// ParseFileMetaList decodes the metadata column leniently: malformed
// JSON yields nil rather than an error.
func ParseFileMetaList(raw []byte) []FileMeta {
	if len(raw) == 0 {
		return nil
	}
	var list []FileMeta
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil
	}
	return list
}

// MessageUpdate names the fields a sender may change on their own
// message. Nil pointers mean "leave as is"; edited_at is never part of
// this set, the store stamps it.
type MessageUpdate struct {
	Ciphertext *string
	Nonce      *string
	Envelopes  map[string]any
	Kind       *string
	Metadata   *[]FileMeta
	IsRead     *bool
}

// Empty reports whether the update names no allowed field.
func (u *MessageUpdate) Empty() bool {
	return u.Ciphertext == nil && u.Nonce == nil && u.Envelopes == nil &&
		u.Kind == nil && u.Metadata == nil && u.IsRead == nil
}
