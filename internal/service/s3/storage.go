package s3

import (
	"context"
	"errors"
	"io"
)

// ErrObjectNotFound is returned when a key does not exist in the bucket.
var ErrObjectNotFound = errors.New("object not found")

// Object is a readable blob with its metadata.
type Object interface {
	io.ReadCloser
	ContentLength() int64
	ContentType() string
}

type object struct {
	io.ReadCloser
	contentLength int64
	contentType   string
}

func (o *object) ContentLength() int64 {
	return o.contentLength
}

func (o *object) ContentType() string {
	return o.contentType
}

// NewObject wraps a reader as an Object.
func NewObject(rc io.ReadCloser, contentLength int64, contentType string) Object {
	return &object{ReadCloser: rc, contentLength: contentLength, contentType: contentType}
}

// Storage is the blob store holding book photos.
type Storage interface {
	UploadBytes(ctx context.Context, key string, data []byte, contentType string) error
	GetObject(ctx context.Context, key string) (Object, error)
	DeleteObject(ctx context.Context, key string) error
}
