package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"bookwyrm/internal/domain"
)

// GenreStore persists the genre catalog.
type GenreStore interface {
	List(ctx context.Context) ([]domain.Genre, error)
	Upsert(ctx context.Context, genre domain.Genre) (bool, error)
}

type GenreService struct {
	genres   GenreStore
	validate *validator.Validate
	logger   *slog.Logger
}

func NewGenreService(genres GenreStore, validate *validator.Validate, logger *slog.Logger) *GenreService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GenreService{genres: genres, validate: validate, logger: logger.With("component", "genres")}
}

func (s *GenreService) List(ctx context.Context) ([]domain.Genre, error) {
	genres, err := s.genres.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list genres: %w", err)
	}
	return genres, nil
}

// Save creates the genre or renames an existing one with the same code.
func (s *GenreService) Save(ctx context.Context, genre domain.Genre) (*domain.Genre, bool, error) {
	genre.Code = strings.TrimSpace(genre.Code)
	genre.Name = strings.TrimSpace(genre.Name)

	if err := s.validate.Struct(genre); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return nil, false, fmt.Errorf("%w: %s", domain.ErrValidation, describeValidation(verrs))
		}
		return nil, false, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	created, err := s.genres.Upsert(ctx, genre)
	if err != nil {
		return nil, false, fmt.Errorf("failed to save genre %s: %w", genre.Code, err)
	}
	return &genre, created, nil
}

// Sync saves each item independently and reports a result per item, so one
// bad entry does not stop the rest.
func (s *GenreService) Sync(ctx context.Context, items []domain.GenreSyncItem) []domain.GenreSyncResult {
	results := make([]domain.GenreSyncResult, 0, len(items))

	for i := range items {
		item := items[i]
		genre, created, err := s.Save(ctx, item.Normalize())
		if err != nil {
			s.logger.Warn("failed to sync genre", "item", item, "error", err)
			results = append(results, domain.GenreSyncResult{
				Status:  domain.GenreSyncError,
				Message: err.Error(),
				Data:    &item,
			})
			continue
		}

		status := domain.GenreSyncUpdated
		if created {
			status = domain.GenreSyncCreated
		}
		results = append(results, domain.GenreSyncResult{
			Status: status,
			Code:   genre.Code,
			Name:   genre.Name,
		})
	}

	s.logger.Info("genres synced", "count", len(items))
	return results
}
