package handler

import (
	"fmt"
	"log/slog"
	"net/http"

	"bookwyrm/internal/domain"
	"bookwyrm/internal/service"
)

type TrashHandler struct {
	trashService *service.TrashService
	logger       *slog.Logger
}

func NewTrashHandler(trashService *service.TrashService, logger *slog.Logger) *TrashHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &TrashHandler{trashService: trashService, logger: logger.With("component", "trash_handler")}
}

// MoveToTrash handles DELETE /books/{id} and its POST aliases.
func (h *TrashHandler) MoveToTrash(w http.ResponseWriter, r *http.Request) {
	id, err := bookIDParam(r)
	if err != nil {
		writeDetail(w, http.StatusNotFound, "Not found.")
		return
	}

	if err := h.trashService.MoveToTrash(r.Context(), id); err != nil {
		writeError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetTrashItems handles GET /books/trash.
func (h *TrashHandler) GetTrashItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.trashService.ListTrash(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, items)
}

// RestoreItem handles POST /books/{id}/restore and answers with the restored book.
func (h *TrashHandler) RestoreItem(w http.ResponseWriter, r *http.Request) {
	id, err := bookIDParam(r)
	if err != nil {
		writeDetail(w, http.StatusNotFound, "Not found.")
		return
	}

	book, err := h.trashService.Restore(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, book)
}

// DeletePermanently handles DELETE /books/{id}/permanent.
func (h *TrashHandler) DeletePermanently(w http.ResponseWriter, r *http.Request) {
	id, err := bookIDParam(r)
	if err != nil {
		writeDetail(w, http.StatusNotFound, "Not found.")
		return
	}

	if err := h.trashService.DeletePermanently(r.Context(), id); err != nil {
		writeError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// EmptyTrash handles POST /books/empty_trash.
func (h *TrashHandler) EmptyTrash(w http.ResponseWriter, r *http.Request) {
	count, err := h.trashService.EmptyTrash(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, domain.EmptyTrashResult{
		DeletedCount: count,
		Detail:       fmt.Sprintf("Permanently deleted %d books.", count),
	})
}
