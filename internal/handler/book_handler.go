package handler

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"

	"bookwyrm/internal/domain"
	"bookwyrm/internal/service"
)

type BookHandler struct {
	bookService *service.BookService
	logger      *slog.Logger
}

func NewBookHandler(bookService *service.BookService, logger *slog.Logger) *BookHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &BookHandler{bookService: bookService, logger: logger.With("component", "book_handler")}
}

// ListBooks handles GET /books. Supported query parameters: genre, is_read,
// to_be_read, shelved, favorite and search.
func (h *BookHandler) ListBooks(w http.ResponseWriter, r *http.Request) {
	filter, err := parseBookFilter(r)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	books, err := h.bookService.List(r.Context(), filter)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, books)
}

// CreateBook handles POST /books with a JSON, multipart or urlencoded body.
func (h *BookHandler) CreateBook(w http.ResponseWriter, r *http.Request) {
	patch, err := decodeBookBody(w, r)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	book, err := h.bookService.Create(r.Context(), patch.Input())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, book)
}

func (h *BookHandler) GetBook(w http.ResponseWriter, r *http.Request) {
	id, err := bookIDParam(r)
	if err != nil {
		writeDetail(w, http.StatusNotFound, "Not found.")
		return
	}

	book, err := h.bookService.Get(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, book)
}

func (h *BookHandler) UpdateBook(w http.ResponseWriter, r *http.Request) {
	id, err := bookIDParam(r)
	if err != nil {
		writeDetail(w, http.StatusNotFound, "Not found.")
		return
	}

	patch, err := decodeBookBody(w, r)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	book, err := h.bookService.Update(r.Context(), id, patch.Input())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, book)
}

// PatchBook handles PATCH /books/{id}: only the fields sent are changed.
func (h *BookHandler) PatchBook(w http.ResponseWriter, r *http.Request) {
	id, err := bookIDParam(r)
	if err != nil {
		writeDetail(w, http.StatusNotFound, "Not found.")
		return
	}

	patch, err := decodeBookBody(w, r)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	book, err := h.bookService.Patch(r.Context(), id, patch)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, book)
}

// decodeBookBody reads a book write from JSON or from form fields. Form values
// are strings and are converted to the field types; empty form values count
// as absent. The reading-list flag is accepted as toBeRead or to_be_read.
func decodeBookBody(w http.ResponseWriter, r *http.Request) (domain.BookPatch, error) {
	var patch domain.BookPatch
	fields := map[string]interface{}{}

	r.Body = http.MaxBytesReader(w, r.Body, service.MaxPhotoSize+1<<20)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "multipart/form-data":
		if err := r.ParseMultipartForm(service.MaxPhotoSize); err != nil {
			return patch, err
		}
		addFormFields(fields, r.PostForm)
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return patch, err
		}
		addFormFields(fields, r.PostForm)
	default:
		if err := decodeJSON(r, &fields); err != nil && !errors.Is(err, io.EOF) {
			return patch, err
		}
	}

	if v, ok := fields["to_be_read"]; ok {
		if _, set := fields["toBeRead"]; !set {
			fields["toBeRead"] = v
		}
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           &patch,
	})
	if err != nil {
		return patch, fmt.Errorf("failed to build book decoder: %w", err)
	}
	if err := decoder.Decode(fields); err != nil {
		return patch, err
	}
	return patch, nil
}

func addFormFields(fields map[string]interface{}, form url.Values) {
	for name, values := range form {
		if len(values) == 0 || values[0] == "" {
			continue
		}
		fields[name] = values[0]
	}
}

type filterError string

func (e filterError) Error() string { return string(e) }

func parseBookFilter(r *http.Request) (domain.BookFilter, error) {
	q := r.URL.Query()
	filter := domain.BookFilter{
		Genre:  strings.TrimSpace(q.Get("genre")),
		Search: strings.TrimSpace(q.Get("search")),
	}

	flags := []struct {
		name string
		dst  **bool
	}{
		{"is_read", &filter.IsRead},
		{"to_be_read", &filter.ToBeRead},
		{"toBeRead", &filter.ToBeRead},
		{"shelved", &filter.Shelved},
		{"favorite", &filter.Favorite},
	}
	for _, f := range flags {
		raw := q.Get(f.name)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return domain.BookFilter{}, filterError(f.name + " must be true or false")
		}
		*f.dst = &v
	}

	return filter, nil
}
