package types

import "time"

// Attachment is a file uploaded against a task. Metadata lives in the
// database; the bytes live in object storage under ObjectKey.
type Attachment struct {
	ID          int    `json:"id" db:"id"`
	TaskID      int    `json:"task_id" db:"task_id"`
	FileName    string `json:"file_name" db:"file_name"`
	ContentType string `json:"content_type" db:"content_type"`
	SizeBytes   int64  `json:"size_bytes" db:"size_bytes"`

	// ObjectKey locates the blob in the configured bucket. Not exposed
	// to clients; downloads go through the attachment endpoint.
	ObjectKey string `json:"-" db:"object_key"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
