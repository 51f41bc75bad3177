package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"bookwyrm/internal/domain"
	"bookwyrm/internal/service"
)

type PhotoHandler struct {
	photoService *service.PhotoService
	logger       *slog.Logger
}

func NewPhotoHandler(photoService *service.PhotoService, logger *slog.Logger) *PhotoHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PhotoHandler{photoService: photoService, logger: logger.With("component", "photo_handler")}
}

// UploadPhoto handles POST /books/{id}/photos with the image in the "photo" form field.
func (h *PhotoHandler) UploadPhoto(w http.ResponseWriter, r *http.Request) {
	id, err := bookIDParam(r)
	if err != nil {
		writeDetail(w, http.StatusNotFound, "Not found.")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, service.MaxPhotoSize+1<<20)
	if err := r.ParseMultipartForm(service.MaxPhotoSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeDetail(w, http.StatusBadRequest, "File size must be less than 10MB")
			return
		}
		writeDetail(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}

	file, header, err := r.FormFile("photo")
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "No photo provided")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, service.MaxPhotoSize+1))
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "Failed to read photo")
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}

	photo, err := h.photoService.Upload(r.Context(), domain.PhotoUpload{
		BookID:      id,
		ContentType: contentType,
		Data:        data,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, photo)
}

func (h *PhotoHandler) ListPhotos(w http.ResponseWriter, r *http.Request) {
	id, err := bookIDParam(r)
	if err != nil {
		writeDetail(w, http.StatusNotFound, "Not found.")
		return
	}

	photos, err := h.photoService.List(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, photos)
}

func (h *PhotoHandler) DeletePhoto(w http.ResponseWriter, r *http.Request) {
	id, err := bookIDParam(r)
	if err != nil {
		writeDetail(w, http.StatusNotFound, "Not found.")
		return
	}
	photoID, err := photoIDParam(r)
	if err != nil {
		writeDetail(w, http.StatusNotFound, "Not found.")
		return
	}

	if err := h.photoService.Delete(r.Context(), id, photoID); err != nil {
		writeError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
