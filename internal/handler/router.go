package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// PhotoFileServer streams stored photos and their thumbnails.
type PhotoFileServer interface {
	GetPhoto(http.ResponseWriter, *http.Request)
	GetThumbnail(http.ResponseWriter, *http.Request)
}

// Routes collects the handlers mounted by NewRouter. Nil handlers leave
// their routes out, which keeps handler tests small.
type Routes struct {
	Books   *BookHandler
	Trash   *TrashHandler
	Photos  *PhotoHandler
	Genres  *GenreHandler
	Reading *ReadingStatsHandler
	Health  *HealthHandler

	PhotoFiles PhotoFileServer
	Metrics    http.Handler
}

func NewRouter(routes Routes) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	if routes.Health != nil {
		r.Get("/healthz", routes.Health.Healthz)
	}
	if routes.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", routes.Metrics)
	}

	r.Route("/books", func(r chi.Router) {
		if routes.Books != nil {
			r.Get("/", routes.Books.ListBooks)
			r.Post("/", routes.Books.CreateBook)
			r.Get("/{id}", routes.Books.GetBook)
			r.Put("/{id}", routes.Books.UpdateBook)
			r.Patch("/{id}", routes.Books.PatchBook)
		}

		if routes.Trash != nil {
			r.Get("/trash", routes.Trash.GetTrashItems)
			r.Post("/empty_trash", routes.Trash.EmptyTrash)
			r.Delete("/{id}", routes.Trash.MoveToTrash)
			r.Post("/{id}", routes.Trash.MoveToTrash)
			r.Post("/{id}/delete", routes.Trash.MoveToTrash)
			r.Post("/{id}/restore", routes.Trash.RestoreItem)
			r.Delete("/{id}/permanent", routes.Trash.DeletePermanently)
			r.Delete("/{id}/permanent_delete", routes.Trash.DeletePermanently)
		}

		if routes.Photos != nil {
			r.Get("/{id}/photos", routes.Photos.ListPhotos)
			r.Post("/{id}/photos", routes.Photos.UploadPhoto)
			r.Delete("/{id}/photos/{photoID}", routes.Photos.DeletePhoto)
		}
	})

	if routes.PhotoFiles != nil {
		r.Get("/photos/{photoID}", routes.PhotoFiles.GetPhoto)
		r.Get("/photos/{photoID}/thumbnail", routes.PhotoFiles.GetThumbnail)
	}

	if routes.Genres != nil {
		r.Route("/genres", func(r chi.Router) {
			r.Get("/", routes.Genres.ListGenres)
			r.Post("/", routes.Genres.SaveGenre)
			r.Post("/sync", routes.Genres.SyncGenres)
		})
	}

	if routes.Reading != nil {
		r.Get("/reading-stats", routes.Reading.GetStats)
		r.Post("/reading-stats", routes.Reading.RecordDay)
	}

	return r
}
