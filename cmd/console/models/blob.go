package models

import "time"

// Blob represents content-addressed storage for snapshot payloads and
// cached diffs. Maps to: blobs table
type Blob struct {
	// Content hash (sha256:abc123...)
	BlobID string `db:"blob_id" json:"blob_id"`

	// Media type with optional subtype
	MediaType string `db:"media_type" json:"media_type"`

	SizeBytes int64     `db:"size_bytes" json:"size_bytes"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`

	Content []byte `db:"content" json:"content,omitempty"`
}

// Media types for stored payloads
const (
	MediaTypeSnapshot   = "application/json;type=snapshot"
	MediaTypeStagedRows = "application/json;type=staged_rows"
	MediaTypeDiff       = "application/json;type=diff"
)
