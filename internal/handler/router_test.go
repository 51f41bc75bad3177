package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"bookwyrm/internal/domain"
	"bookwyrm/internal/metrics"
	"bookwyrm/internal/repository"
	"bookwyrm/internal/repository/sqlitetest"
	"bookwyrm/internal/service"
	"bookwyrm/internal/service/s3"
)

type testServer struct {
	t      *testing.T
	books  *repository.BookRepository
	router http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	db := sqlitetest.Open(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	books := repository.NewBookRepository(db)
	blobs := s3.NewMemoryStorage()
	m := metrics.NewTrash(nil)

	photoService := service.NewPhotoService(books, repository.NewPhotoRepository(db), blobs, nil, "", logger)
	trashService := service.NewTrashService(books, photoService, blobs, domain.DefaultRetentionDays, m, logger)

	router := NewRouter(Routes{
		Books:   NewBookHandler(service.NewBookService(books, photoService, nil, logger), logger),
		Trash:   NewTrashHandler(trashService, logger),
		Photos:  NewPhotoHandler(photoService, logger),
		Genres:  NewGenreHandler(service.NewGenreService(repository.NewGenreRepository(db), nil, logger), logger),
		Reading: NewReadingStatsHandler(service.NewReadingService(repository.NewReadingDayRepository(db), logger), logger),
		Health:  NewHealthHandler(db),
	})

	return &testServer{t: t, books: books, router: router}
}

func (s *testServer) do(method, path, body string) *httptest.ResponseRecorder {
	s.t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) addBook(title string, trashedDaysAgo int) *domain.Book {
	s.t.Helper()
	b := &domain.Book{Title: title, Author: "Author"}
	if err := s.books.Create(context.Background(), b); err != nil {
		s.t.Fatal(err)
	}
	if trashedDaysAgo >= 0 {
		at := time.Now().UTC().AddDate(0, 0, -trashedDaysAgo)
		if err := s.books.SetDeletion(context.Background(), b.ID, &at); err != nil {
			s.t.Fatal(err)
		}
	}
	return b
}

func (s *testServer) isTrashed(id uuid.UUID) bool {
	s.t.Helper()
	b, err := s.books.FindByID(context.Background(), id)
	if err != nil {
		s.t.Fatalf("FindByID() failed: %v", err)
	}
	return b.IsDeleted
}

func detail(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not a detail object: %q", rec.Body.String())
	}
	return body.Detail
}

func TestTrashRoutes_MoveToTrash(t *testing.T) {
	for _, route := range []struct{ method, suffix string }{
		{http.MethodDelete, ""},
		{http.MethodPost, ""},
		{http.MethodPost, "/delete"},
	} {
		t.Run(route.method+route.suffix, func(t *testing.T) {
			s := newTestServer(t)
			book := s.addBook("Dune", -1)

			rec := s.do(route.method, "/books/"+book.ID.String()+route.suffix, "")
			if rec.Code != http.StatusNoContent {
				t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
			}
			if !s.isTrashed(book.ID) {
				t.Error("book not trashed")
			}
		})
	}
}

func TestTrashRoutes_NotFound(t *testing.T) {
	s := newTestServer(t)
	missing := uuid.New().String()

	tests := []struct {
		method, path string
	}{
		{http.MethodDelete, "/books/" + missing},
		{http.MethodPost, "/books/" + missing + "/restore"},
		{http.MethodDelete, "/books/" + missing + "/permanent"},
		{http.MethodDelete, "/books/" + missing + "/permanent_delete"},
		{http.MethodPatch, "/books/" + missing},
		{http.MethodPatch, "/books/not-a-uuid"},
		{http.MethodDelete, "/books/not-a-uuid"},
		{http.MethodGet, "/books/not-a-uuid"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := s.do(tt.method, tt.path, "")
			if rec.Code != http.StatusNotFound {
				t.Fatalf("status = %d, want 404", rec.Code)
			}
			if got := detail(t, rec); got != "Not found." {
				t.Errorf("detail = %q", got)
			}
		})
	}
}

func TestTrashRoutes_ListAndRestore(t *testing.T) {
	s := newTestServer(t)
	s.addBook("Active", -1)
	trashed := s.addBook("Trashed", 10)

	rec := s.do(http.MethodGet, "/books/trash", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var items []map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &items); err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0]["title"] != "Trashed" {
		t.Fatalf("trash = %v", items)
	}
	if items[0]["days_in_trash"] != float64(10) || items[0]["days_until_permanent_deletion"] != float64(20) {
		t.Errorf("countdown = %v / %v", items[0]["days_in_trash"], items[0]["days_until_permanent_deletion"])
	}

	rec = s.do(http.MethodPost, "/books/"+trashed.ID.String()+"/restore", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("restore status = %d, body %s", rec.Code, rec.Body)
	}
	var restored domain.Book
	if err := json.Unmarshal(rec.Body.Bytes(), &restored); err != nil {
		t.Fatal(err)
	}
	if restored.ID != trashed.ID || restored.IsDeleted || restored.DeletedAt != nil {
		t.Errorf("restored = %+v", restored)
	}

	rec = s.do(http.MethodPost, "/books/"+trashed.ID.String()+"/restore", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("second restore status = %d", rec.Code)
	}
	if got := detail(t, rec); got != "This book is not in trash." {
		t.Errorf("detail = %q", got)
	}
}

func TestTrashRoutes_DeletePermanentlyAliases(t *testing.T) {
	for _, suffix := range []string{"/permanent", "/permanent_delete"} {
		t.Run(suffix, func(t *testing.T) {
			s := newTestServer(t)
			book := s.addBook("Dune", 3)

			rec := s.do(http.MethodDelete, "/books/"+book.ID.String()+suffix, "")
			if rec.Code != http.StatusNoContent {
				t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
			}
			if _, err := s.books.FindByID(context.Background(), book.ID); !errors.Is(err, domain.ErrNotFound) {
				t.Errorf("book survived: %v", err)
			}
		})
	}
}

func TestTrashRoutes_DeletePermanentlyAndEmpty(t *testing.T) {
	s := newTestServer(t)
	active := s.addBook("Active", -1)
	one := s.addBook("One", 1)
	s.addBook("Two", 2)
	s.addBook("Three", 50)

	rec := s.do(http.MethodDelete, "/books/"+one.ID.String()+"/permanent", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("permanent delete status = %d", rec.Code)
	}

	rec = s.do(http.MethodPost, "/books/empty_trash", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("empty_trash status = %d", rec.Code)
	}
	var result domain.EmptyTrashResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatal(err)
	}
	if result.DeletedCount != 2 || result.Detail != "Permanently deleted 2 books." {
		t.Errorf("empty_trash = %+v", result)
	}

	if s.isTrashed(active.ID) {
		t.Error("active book touched")
	}
	rec = s.do(http.MethodGet, "/books/trash", "")
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("trash not empty: %s", rec.Body)
	}
}

func TestBookRoutes(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/books", `{"title":"Dune","author":"Frank Herbert","genre":"sci-fi","is_read":true,"unknown":1}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body)
	}
	var created domain.Book
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}

	rec = s.do(http.MethodPost, "/books", `{"title":"","author":"X"}`)
	if rec.Code != http.StatusBadRequest || !strings.Contains(detail(t, rec), "Title") {
		t.Errorf("invalid create = %d %s", rec.Code, rec.Body)
	}

	rec = s.do(http.MethodPut, "/books/"+created.ID.String(), `{"title":"Dune","author":"Frank Herbert","is_read":true,"favorite":true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d, body %s", rec.Code, rec.Body)
	}

	s.addBook("Trashed", 1)

	tests := []struct {
		query string
		code  int
		count int
	}{
		{query: "", code: http.StatusOK, count: 1},
		{query: "?is_read=true", code: http.StatusOK, count: 1},
		{query: "?is_read=false", code: http.StatusOK, count: 0},
		{query: "?favorite=1", code: http.StatusOK, count: 1},
		{query: "?search=herb", code: http.StatusOK, count: 1},
		{query: "?genre=fantasy", code: http.StatusOK, count: 0},
		{query: "?shelved=maybe", code: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run("list"+tt.query, func(t *testing.T) {
			rec := s.do(http.MethodGet, "/books"+tt.query, "")
			if rec.Code != tt.code {
				t.Fatalf("status = %d, want %d", rec.Code, tt.code)
			}
			if tt.code != http.StatusOK {
				return
			}
			var books []domain.Book
			if err := json.Unmarshal(rec.Body.Bytes(), &books); err != nil {
				t.Fatal(err)
			}
			if len(books) != tt.count {
				t.Errorf("got %d books, want %d", len(books), tt.count)
			}
		})
	}
}

func (s *testServer) send(method, path, contentType string, body io.Reader) *httptest.ResponseRecorder {
	s.t.Helper()
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decodeBook(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var book map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &book); err != nil {
		t.Fatalf("response is not a book: %q", rec.Body.String())
	}
	return book
}

func TestBookRoutes_Patch(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/books", `{"title":"Dune","author":"Frank Herbert","genre":"sci-fi","rating":4.5,"page_count":412}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body)
	}
	id := decodeBook(t, rec)["id"].(string)

	rec = s.do(http.MethodPatch, "/books/"+id, `{"toBeRead":true,"favorite":true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("patch status = %d, body %s", rec.Code, rec.Body)
	}
	got := decodeBook(t, rec)
	if got["toBeRead"] != true || got["favorite"] != true {
		t.Errorf("flags not patched: %v", got)
	}
	if got["title"] != "Dune" || got["genre"] != "sci-fi" || got["rating"] != 4.5 || got["page_count"] != float64(412) {
		t.Errorf("absent fields changed: %v", got)
	}
	if _, ok := got["to_be_read"]; ok {
		t.Error("response uses to_be_read instead of toBeRead")
	}

	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "blank title", body: `{"title":"  "}`, want: "Title"},
		{name: "rating out of range", body: `{"rating":9}`, want: "Rating"},
		{name: "wrong type", body: `{"is_read":"maybe"}`, want: "Invalid request body"},
		{name: "not an object", body: `[1,2]`, want: "Invalid request body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(http.MethodPatch, "/books/"+id, tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			if got := detail(t, rec); !strings.Contains(got, tt.want) {
				t.Errorf("detail = %q, want it to mention %q", got, tt.want)
			}
		})
	}

	rec = s.do(http.MethodGet, "/books/"+id, "")
	if got := decodeBook(t, rec); got["title"] != "Dune" || got["rating"] != 4.5 {
		t.Errorf("rejected patches were written: %v", got)
	}

	trashed := s.addBook("Trashed", 1)
	rec = s.do(http.MethodPatch, "/books/"+trashed.ID.String(), `{"favorite":true}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("patching a trashed book = %d, want 404", rec.Code)
	}
}

func TestBookRoutes_FormBodies(t *testing.T) {
	s := newTestServer(t)

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	for name, value := range map[string]string{"title": "Emma", "author": "Jane Austen", "rating": "3.5", "toBeRead": "true"} {
		if err := form.WriteField(name, value); err != nil {
			t.Fatal(err)
		}
	}
	cover, err := form.CreateFormFile("coverImage", "cover.jpg")
	if err != nil {
		t.Fatal(err)
	}
	cover.Write([]byte("not really a jpeg"))
	form.Close()

	rec := s.send(http.MethodPost, "/books", form.FormDataContentType(), &body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("multipart create status = %d, body %s", rec.Code, rec.Body)
	}
	created := decodeBook(t, rec)
	if created["title"] != "Emma" || created["rating"] != 3.5 || created["toBeRead"] != true {
		t.Errorf("multipart create = %v", created)
	}
	id := created["id"].(string)

	// bulk edit as the mobile list screen sends it
	body.Reset()
	form = multipart.NewWriter(&body)
	for name, value := range map[string]string{"title": "Emma", "author": "Jane Austen", "is_read": "true", "toBeRead": "false", "shelved": "true"} {
		if err := form.WriteField(name, value); err != nil {
			t.Fatal(err)
		}
	}
	form.Close()

	rec = s.send(http.MethodPatch, "/books/"+id, form.FormDataContentType(), &body)
	if rec.Code != http.StatusOK {
		t.Fatalf("multipart patch status = %d, body %s", rec.Code, rec.Body)
	}
	patched := decodeBook(t, rec)
	if patched["is_read"] != true || patched["toBeRead"] != false || patched["shelved"] != true || patched["rating"] != 3.5 {
		t.Errorf("multipart patch = %v", patched)
	}

	values := url.Values{"title": {"Emma"}, "author": {"Jane Austen"}, "to_be_read": {"true"}, "page_count": {"474"}}
	rec = s.send(http.MethodPut, "/books/"+id, "application/x-www-form-urlencoded", strings.NewReader(values.Encode()))
	if rec.Code != http.StatusOK {
		t.Fatalf("urlencoded update status = %d, body %s", rec.Code, rec.Body)
	}
	updated := decodeBook(t, rec)
	if updated["toBeRead"] != true || updated["page_count"] != float64(474) || updated["rating"] != nil || updated["is_read"] != false {
		t.Errorf("urlencoded update = %v", updated)
	}

	values = url.Values{"title": {"Emma"}, "author": {"Jane Austen"}, "page_count": {"many"}}
	rec = s.send(http.MethodPut, "/books/"+id, "application/x-www-form-urlencoded", strings.NewReader(values.Encode()))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad form value = %d, want 400", rec.Code)
	}

	for _, query := range []string{"?toBeRead=true", "?to_be_read=true"} {
		rec = s.do(http.MethodGet, "/books"+query, "")
		var books []domain.Book
		if err := json.Unmarshal(rec.Body.Bytes(), &books); err != nil {
			t.Fatal(err)
		}
		if len(books) != 1 {
			t.Errorf("GET /books%s = %d books, want 1", query, len(books))
		}
	}
}

func TestPhotoRoutes(t *testing.T) {
	s := newTestServer(t)
	book := s.addBook("Dune", -1)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("photo", "cover.png")
	if err != nil {
		t.Fatal(err)
	}
	// PNG signature so content sniffing reports image/png
	part.Write([]byte("\x89PNG\r\n\x1a\n0000"))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/books/"+book.ID.String()+"/photos", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload status = %d, body %s", rec.Code, rec.Body)
	}
	var photo domain.BookPhoto
	if err := json.Unmarshal(rec.Body.Bytes(), &photo); err != nil {
		t.Fatal(err)
	}
	if photo.ContentType != "image/png" {
		t.Errorf("ContentType = %q", photo.ContentType)
	}

	rec = s.do(http.MethodGet, "/books/"+book.ID.String()+"/photos", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"photo_url"`) {
		t.Errorf("list = %d %s", rec.Code, rec.Body)
	}

	rec = s.do(http.MethodPost, "/books/"+book.ID.String()+"/photos", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("upload without form = %d", rec.Code)
	}

	path := "/books/" + book.ID.String() + "/photos/" + strconv.FormatInt(photo.ID, 10)
	if rec = s.do(http.MethodDelete, path, ""); rec.Code != http.StatusNoContent {
		t.Errorf("delete = %d", rec.Code)
	}
	if rec = s.do(http.MethodDelete, path, ""); rec.Code != http.StatusNotFound {
		t.Errorf("second delete = %d", rec.Code)
	}
}

func TestGenreRoutes(t *testing.T) {
	s := newTestServer(t)

	if rec := s.do(http.MethodPost, "/genres", `{"code":"poetry","name":"Poetry"}`); rec.Code != http.StatusCreated {
		t.Errorf("create = %d", rec.Code)
	}
	if rec := s.do(http.MethodPost, "/genres", `{"code":"poetry","name":"Poems"}`); rec.Code != http.StatusOK {
		t.Errorf("rename = %d", rec.Code)
	}
	if rec := s.do(http.MethodPost, "/genres", `{"name":"No code"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("invalid = %d", rec.Code)
	}
	if rec := s.do(http.MethodPost, "/genres/sync", `{"code":"x"}`); rec.Code != http.StatusBadRequest || detail(t, rec) != "Expected a list of genres" {
		t.Errorf("sync with an object = %d %s", rec.Code, rec.Body)
	}

	rec := s.do(http.MethodPost, "/genres/sync", `[{"value":"drama","label":"Drama"}]`)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"status":"created"`) {
		t.Errorf("sync = %d %s", rec.Code, rec.Body)
	}

	rec = s.do(http.MethodGet, "/genres", "")
	var genres []domain.Genre
	if err := json.Unmarshal(rec.Body.Bytes(), &genres); err != nil {
		t.Fatal(err)
	}
	if len(genres) != 8 {
		t.Errorf("got %d genres, want 8", len(genres))
	}
}

func TestReadingRoutes(t *testing.T) {
	s := newTestServer(t)

	if rec := s.do(http.MethodPost, "/reading-stats", ""); rec.Code != http.StatusCreated {
		t.Fatalf("record today = %d %s", rec.Code, rec.Body)
	}
	if rec := s.do(http.MethodPost, "/reading-stats", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("record today twice = %d", rec.Code)
	}
	if rec := s.do(http.MethodPost, "/reading-stats", `{"read_date":"yesterday"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("bad date = %d", rec.Code)
	}

	rec := s.do(http.MethodGet, "/reading-stats", "")
	var stats domain.ReadingStats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatal(err)
	}
	if stats.TotalDaysRead != 1 || stats.CurrentYear != time.Now().Year() {
		t.Errorf("stats = %+v", stats)
	}
}

type fakePinger struct{ err error }

func (p fakePinger) PingContext(context.Context) error { return p.err }

func TestHealth(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		code   int
		status healthpb.HealthCheckResponse_ServingStatus
	}{
		{name: "up", code: http.StatusOK, status: healthpb.HealthCheckResponse_SERVING},
		{name: "down", err: errors.New("connection refused"), code: http.StatusServiceUnavailable, status: healthpb.HealthCheckResponse_NOT_SERVING},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := NewRouter(Routes{Health: NewHealthHandler(fakePinger{tt.err})})
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
			if rec.Code != tt.code {
				t.Errorf("healthz = %d, want %d", rec.Code, tt.code)
			}

			reporter := NewHealthReporter(fakePinger{tt.err}, time.Minute, nil)
			if got := reporter.Check(context.Background()); got != tt.status {
				t.Errorf("Check() = %v, want %v", got, tt.status)
			}
			resp, err := reporter.Server().Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
			if err != nil {
				t.Fatalf("health Check() failed: %v", err)
			}
			if resp.Status != tt.status {
				t.Errorf("served status = %v, want %v", resp.Status, tt.status)
			}
		})
	}
}

func TestClientMessage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{err: errors.New("plain"), want: "plain"},
		{err: fmt.Errorf("restore: %w", fmt.Errorf("%w: This book is not in trash.", domain.ErrInvalidState)), want: "This book is not in trash."},
		{err: fmt.Errorf("%w: Title: required", domain.ErrValidation), want: "Title: required"},
	}
	for _, tt := range tests {
		if got := clientMessage(tt.err); got != tt.want {
			t.Errorf("clientMessage(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
