package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"bookwyrm/internal/domain"
)

type errorResponse struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Default().Warn("failed to encode response", "error", err)
	}
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Detail: detail})
}

// writeError maps a service error to its HTTP status. Client errors carry
// their message; server faults are logged and answered with a generic detail.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeDetail(w, http.StatusNotFound, "Not found.")
	case errors.Is(err, domain.ErrInvalidState), errors.Is(err, domain.ErrValidation):
		writeDetail(w, http.StatusBadRequest, clientMessage(err))
	case errors.Is(err, domain.ErrConflict):
		writeDetail(w, http.StatusConflict, clientMessage(err))
	case errors.Is(err, domain.ErrSweepInProgress):
		writeDetail(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrRestoreFailed):
		logger.Error("restore verification failed", "error", err)
		writeDetail(w, http.StatusInternalServerError, "Failed to restore the book. It's still marked as deleted.")
	default:
		var storeErr *domain.StoreError
		if errors.As(err, &storeErr) {
			logger.Error("store failure", "operation", storeErr.Operation, "error", err)
		} else {
			logger.Error("request failed", "error", err)
		}
		writeDetail(w, http.StatusInternalServerError, "Internal server error.")
	}
}

// clientMessage strips the wrapping context and the sentinel prefix from an
// error built as fmt.Errorf("%w: message", sentinel).
func clientMessage(err error) string {
	msg := err.Error()
	for _, sentinel := range []error{domain.ErrInvalidState, domain.ErrValidation, domain.ErrConflict} {
		prefix := sentinel.Error() + ": "
		if i := strings.Index(msg, prefix); i >= 0 {
			return msg[i+len(prefix):]
		}
	}
	return msg
}

func bookIDParam(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, "id"))
}

func photoIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "photoID"), 10, 64)
}

func decodeJSON(r *http.Request, v interface{}) error {
	return json.NewDecoder(r.Body).Decode(v)
}
