package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"bookwyrm/internal/domain"
)

// BookService serves the active side of the catalog. Trashed books are
// invisible here and are reached through TrashService.
type BookService struct {
	books    BookWriter
	photos   *PhotoService
	validate *validator.Validate
	logger   *slog.Logger
}

func NewBookService(books BookWriter, photos *PhotoService, validate *validator.Validate, logger *slog.Logger) *BookService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BookService{
		books:    books,
		photos:   photos,
		validate: validate,
		logger:   logger.With("component", "books"),
	}
}

// List returns the active books matching filter. The Deleted field of the filter is ignored.
func (s *BookService) List(ctx context.Context, filter domain.BookFilter) ([]domain.Book, error) {
	filter.Deleted = domain.ActiveBooks().Deleted
	filter.DeletedBefore = nil

	books, err := s.books.FindWhere(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list books: %w", err)
	}

	if err := s.attachPhotos(ctx, books); err != nil {
		return nil, err
	}
	return books, nil
}

// Get returns an active book. A trashed book reads as not found.
func (s *BookService) Get(ctx context.Context, id uuid.UUID) (*domain.Book, error) {
	book, err := s.books.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get book %s: %w", id, err)
	}
	if book.IsDeleted {
		return nil, fmt.Errorf("book %s: %w", id, domain.ErrNotFound)
	}

	if s.photos != nil {
		if err := s.photos.AttachTo(ctx, []*domain.Book{book}); err != nil {
			return nil, err
		}
	}
	return book, nil
}

func (s *BookService) Create(ctx context.Context, input domain.BookInput) (*domain.Book, error) {
	if err := s.check(&input); err != nil {
		return nil, err
	}

	book := &domain.Book{}
	input.Apply(book)
	if err := s.books.Create(ctx, book); err != nil {
		return nil, fmt.Errorf("failed to create book: %w", err)
	}

	s.logger.Info("book created", "book_id", book.ID, "title", book.Title)
	return s.Get(ctx, book.ID)
}

// Update replaces the writable fields of an active book.
func (s *BookService) Update(ctx context.Context, id uuid.UUID, input domain.BookInput) (*domain.Book, error) {
	if err := s.check(&input); err != nil {
		return nil, err
	}

	book, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	input.Apply(book)
	if err := s.books.Update(ctx, book); err != nil {
		return nil, fmt.Errorf("failed to update book %s: %w", id, err)
	}

	s.logger.Info("book updated", "book_id", id)
	return s.Get(ctx, id)
}

// Patch changes only the fields present in patch. The merged book is validated
// as a whole, so a present field is held to the same rules as in Update.
func (s *BookService) Patch(ctx context.Context, id uuid.UUID, patch domain.BookPatch) (*domain.Book, error) {
	book, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	input := domain.InputOf(book)
	patch.ApplyTo(&input)
	if err := s.check(&input); err != nil {
		return nil, err
	}

	input.Apply(book)
	if err := s.books.Update(ctx, book); err != nil {
		return nil, fmt.Errorf("failed to patch book %s: %w", id, err)
	}

	s.logger.Info("book patched", "book_id", id)
	return s.Get(ctx, id)
}

func (s *BookService) check(input *domain.BookInput) error {
	normalizeInput(input)
	if err := s.validate.Struct(input); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return fmt.Errorf("%w: %s", domain.ErrValidation, describeValidation(verrs))
		}
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	return nil
}

func (s *BookService) attachPhotos(ctx context.Context, books []domain.Book) error {
	if s.photos == nil {
		return nil
	}
	ptrs := make([]*domain.Book, len(books))
	for i := range books {
		ptrs[i] = &books[i]
	}
	return s.photos.AttachTo(ctx, ptrs)
}

// normalizeInput trims strings and turns blank optional fields into nil.
func normalizeInput(in *domain.BookInput) {
	in.Title = strings.TrimSpace(in.Title)
	in.Author = strings.TrimSpace(in.Author)
	for _, p := range []**string{
		&in.Genre, &in.Notes, &in.PublicationDate, &in.ISBN, &in.Language,
		&in.Publisher, &in.Vibes, &in.Tags, &in.Emoji,
	} {
		if *p == nil {
			continue
		}
		v := strings.TrimSpace(**p)
		if v == "" {
			*p = nil
		} else {
			*p = &v
		}
	}
}

// describeValidation renders validator errors as "field: rule" pairs.
func describeValidation(errs validator.ValidationErrors) string {
	parts := make([]string, 0, len(errs))
	for _, fe := range errs {
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		parts = append(parts, fmt.Sprintf("%s: %s", fe.Field(), rule))
	}
	return strings.Join(parts, ", ")
}
