package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"bookwyrm/internal/service"
)

type ReadingStatsHandler struct {
	readingService *service.ReadingService
	logger         *slog.Logger
}

func NewReadingStatsHandler(readingService *service.ReadingService, logger *slog.Logger) *ReadingStatsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReadingStatsHandler{readingService: readingService, logger: logger.With("component", "reading_handler")}
}

func (h *ReadingStatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.readingService.Stats(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// RecordDay handles POST /reading-stats. An empty body records today.
func (h *ReadingStatsHandler) RecordDay(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ReadDate string `json:"read_date"`
	}
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeDetail(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	recorded, err := h.readingService.Record(r.Context(), req.ReadDate)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, recorded)
}
