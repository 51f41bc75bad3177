package domain

import (
	"time"

	"github.com/google/uuid"
)

// BookPhoto is an image attached to a book. Photos survive soft-delete and are
// destroyed together with their book.
type BookPhoto struct {
	ID           int64     `json:"id" db:"id"`
	BookID       uuid.UUID `json:"book_id" db:"book_id"`
	S3Key        string    `json:"-" db:"s3_key"`
	ThumbnailKey *string   `json:"-" db:"thumbnail_key"`
	ContentType  string    `json:"content_type" db:"content_type"`
	SizeBytes    int64     `json:"size_bytes" db:"size_bytes"`
	UploadedAt   time.Time `json:"uploaded_at" db:"uploaded_at"`
	PhotoURL     string    `json:"photo_url" db:"-"`
	ThumbnailURL *string   `json:"thumbnail_url,omitempty" db:"-"`
}

// ObjectKeys returns every blob key owned by the photo.
func (p *BookPhoto) ObjectKeys() []string {
	keys := []string{p.S3Key}
	if p.ThumbnailKey != nil && *p.ThumbnailKey != "" {
		keys = append(keys, *p.ThumbnailKey)
	}
	return keys
}

// PhotoUpload is an uploaded image before it is stored.
type PhotoUpload struct {
	BookID      uuid.UUID
	ContentType string
	Data        []byte
}
