package preview

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"bookwyrm/internal/domain"
	"bookwyrm/internal/service"
)

type Handler struct {
	photoService *service.PhotoService
	logger       *slog.Logger
}

func NewHandler(photoService *service.PhotoService, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{photoService: photoService, logger: logger.With("component", "preview")}
}

// GetPhoto streams the original photo.
func (h *Handler) GetPhoto(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, false)
}

// GetThumbnail streams the JPEG thumbnail of a photo.
func (h *Handler) GetThumbnail(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, true)
}

func (h *Handler) serve(w http.ResponseWriter, r *http.Request, thumbnail bool) {
	photoID, err := strconv.ParseInt(chi.URLParam(r, "photoID"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid photo id", http.StatusBadRequest)
		return
	}

	obj, err := h.photoService.Open(r.Context(), photoID, thumbnail)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			http.Error(w, "Photo not found", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to open photo", "photo_id", photoID, "thumbnail", thumbnail, "error", err)
		http.Error(w, "Failed to get photo", http.StatusInternalServerError)
		return
	}
	defer obj.Close()

	contentType := obj.ContentType()
	if thumbnail || contentType == "" {
		contentType = ContentType
	}
	w.Header().Set("Content-Type", contentType)
	if n := obj.ContentLength(); n > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(n, 10))
	}
	w.Header().Set("Cache-Control", "public, max-age=86400")

	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, obj); err != nil {
		h.logger.Warn("failed to stream photo", "photo_id", photoID, "error", err)
	}
}
