package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"bookwyrm/internal/domain"
	"bookwyrm/internal/service"
)

type GenreHandler struct {
	genreService *service.GenreService
	logger       *slog.Logger
}

func NewGenreHandler(genreService *service.GenreService, logger *slog.Logger) *GenreHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &GenreHandler{genreService: genreService, logger: logger.With("component", "genre_handler")}
}

func (h *GenreHandler) ListGenres(w http.ResponseWriter, r *http.Request) {
	genres, err := h.genreService.List(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, genres)
}

// SaveGenre handles POST /genres: 201 when the code is new, 200 when an existing genre was renamed.
func (h *GenreHandler) SaveGenre(w http.ResponseWriter, r *http.Request) {
	var genre domain.Genre
	if err := decodeJSON(r, &genre); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	saved, created, err := h.genreService.Save(r.Context(), genre)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, saved)
}

// SyncGenres handles POST /genres/sync. The body must be a JSON list.
func (h *GenreHandler) SyncGenres(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	var items []domain.GenreSyncItem
	if err := json.Unmarshal(body, &items); err != nil {
		writeDetail(w, http.StatusBadRequest, "Expected a list of genres")
		return
	}

	writeJSON(w, http.StatusOK, h.genreService.Sync(r.Context(), items))
}
