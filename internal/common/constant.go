// Package common contains shared constants and sentinel errors used across
// CipherChat components.
package common

// ChunkFileSuffix is the on-disk extension of a single encrypted chunk.
const ChunkFileSuffix = ".chunk"

// SidecarFileName is the per-file metadata document living next to chunks.
const SidecarFileName = "metadata.json"

// EncryptedFileSuffix is the extension of non-chunked encrypted blobs.
const EncryptedFileSuffix = ".enc"
