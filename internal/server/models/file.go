package models

import "time"

// FileDescriptor is a file-index row: the database record of a file's
// storage path and attributes, distinct from its on-disk bytes. The
// blob store owns the bytes; this row is the source of truth for
// existence and authorization.
type FileDescriptor struct {
	ID        int64
	MessageID int64
	// FileID is caller-supplied and wide enough (BIGINT) to avoid
	// collisions with sequence-assigned counters. Unique per message.
	FileID int64
	// Path is relative to the storage root, never absolute.
	Path      string
	Filename  string
	Mimetype  string
	Size      int64
	Nonce     string
	CreatedAt time.Time
}
