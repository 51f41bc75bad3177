package service

import (
	"context"
	"errors"
	"io"
	"strconv"
	"strings"
	"testing"

	"github.com/google/uuid"

	"bookwyrm/internal/domain"
)

func TestPhotoService_Upload(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	book := f.addBook(t, "Dune")

	photo := f.addPhoto(t, book.ID)

	if photo.ID == 0 || photo.SizeBytes != int64(len("png-bytes")) {
		t.Errorf("unexpected photo: %+v", photo)
	}
	if !strings.HasPrefix(photo.S3Key, "books/"+book.ID.String()+"/photos/") {
		t.Errorf("S3Key = %q", photo.S3Key)
	}
	if photo.ThumbnailKey == nil || !strings.HasSuffix(*photo.ThumbnailKey, ".jpg") {
		t.Errorf("ThumbnailKey = %v", photo.ThumbnailKey)
	}
	wantURL := "http://test/photos/" + strconv.FormatInt(photo.ID, 10)
	if photo.PhotoURL != wantURL {
		t.Errorf("PhotoURL = %q, want %q", photo.PhotoURL, wantURL)
	}
	if photo.ThumbnailURL == nil || *photo.ThumbnailURL != wantURL+"/thumbnail" {
		t.Errorf("ThumbnailURL = %v", photo.ThumbnailURL)
	}

	listed, err := f.photos.List(ctx, book.ID)
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(listed) != 1 || listed[0].ID != photo.ID || listed[0].PhotoURL != wantURL {
		t.Errorf("List() = %+v", listed)
	}
}

func TestPhotoService_Upload_Rejects(t *testing.T) {
	f := newFixture(t)
	active := f.addBook(t, "Active")
	trashed := f.addTrashed(t, "Trashed", 1)

	tests := []struct {
		name   string
		upload domain.PhotoUpload
		want   error
	}{
		{
			name:   "not an image",
			upload: domain.PhotoUpload{BookID: active.ID, ContentType: "application/pdf", Data: []byte("x")},
			want:   domain.ErrValidation,
		},
		{
			name:   "empty file",
			upload: domain.PhotoUpload{BookID: active.ID, ContentType: "image/png"},
			want:   domain.ErrValidation,
		},
		{
			name:   "too large",
			upload: domain.PhotoUpload{BookID: active.ID, ContentType: "image/png", Data: make([]byte, MaxPhotoSize+1)},
			want:   domain.ErrValidation,
		},
		{
			name:   "trashed book",
			upload: domain.PhotoUpload{BookID: trashed.ID, ContentType: "image/png", Data: []byte("x")},
			want:   domain.ErrNotFound,
		},
		{
			name:   "unknown book",
			upload: domain.PhotoUpload{BookID: uuid.New(), ContentType: "image/png", Data: []byte("x")},
			want:   domain.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.photos.Upload(context.Background(), tt.upload); !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}

	if keys := f.blobs.Keys(); len(keys) != 0 {
		t.Errorf("rejected uploads left objects behind: %v", keys)
	}
}

func TestPhotoService_Upload_WithoutThumbnail(t *testing.T) {
	f := newFixture(t)
	f.photos.thumbnailer = fakeThumbnailer{err: errors.New("unsupported image")}
	book := f.addBook(t, "Dune")

	photo := f.addPhoto(t, book.ID)
	if photo.ThumbnailKey != nil || photo.ThumbnailURL != nil {
		t.Errorf("expected no thumbnail, got %v", photo.ThumbnailKey)
	}
	if keys := f.blobs.Keys(); len(keys) != 1 {
		t.Errorf("objects = %v, want only the photo", keys)
	}
}

func TestPhotoService_Open(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	book := f.addBook(t, "Dune")
	photo := f.addPhoto(t, book.ID)

	read := func(thumbnail bool) string {
		t.Helper()
		obj, err := f.photos.Open(ctx, photo.ID, thumbnail)
		if err != nil {
			t.Fatalf("Open(thumbnail=%v) failed: %v", thumbnail, err)
		}
		defer obj.Close()
		data, err := io.ReadAll(obj)
		if err != nil {
			t.Fatal(err)
		}
		return string(data)
	}

	if got := read(false); got != "png-bytes" {
		t.Errorf("photo = %q", got)
	}
	if got := read(true); got != "thumb:png-bytes" {
		t.Errorf("thumbnail = %q", got)
	}

	if err := f.blobs.DeleteObject(ctx, *photo.ThumbnailKey); err != nil {
		t.Fatal(err)
	}
	if got := read(true); got != "thumb:png-bytes" {
		t.Errorf("regenerated thumbnail = %q", got)
	}

	if _, err := f.photos.Open(ctx, photo.ID+100, false); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("unknown photo: expected ErrNotFound, got %v", err)
	}
}

func TestPhotoService_Delete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	book := f.addBook(t, "Dune")
	other := f.addBook(t, "Emma")
	photo := f.addPhoto(t, book.ID)

	if err := f.photos.Delete(ctx, other.ID, photo.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("delete through another book: expected ErrNotFound, got %v", err)
	}

	if err := f.photos.Delete(ctx, book.ID, photo.ID); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	if keys := f.blobs.Keys(); len(keys) != 0 {
		t.Errorf("objects survived: %v", keys)
	}
	if err := f.photos.Delete(ctx, book.ID, photo.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("second delete: expected ErrNotFound, got %v", err)
	}
}

func TestPhotoService_PhotosSurviveTrash(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	book := f.addBook(t, "Dune")
	f.addPhoto(t, book.ID)

	if err := f.trash.MoveToTrash(ctx, book.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := f.photos.List(ctx, book.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("listing photos of a trashed book: expected ErrNotFound, got %v", err)
	}

	restored, err := f.trash.Restore(ctx, book.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(restored.Photos) != 1 {
		t.Errorf("restored book has %d photos, want 1", len(restored.Photos))
	}
	if keys := f.blobs.Keys(); len(keys) != 2 {
		t.Errorf("objects = %v, want photo and thumbnail", keys)
	}
}
