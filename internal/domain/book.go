package domain

import (
	"time"

	"github.com/google/uuid"
)

// Book is a single tracked book. IsDeleted and DeletedAt move together:
// DeletedAt is set exactly when the book sits in the trash.
type Book struct {
	ID              uuid.UUID   `json:"id" db:"id"`
	Title           string      `json:"title" db:"title"`
	Author          string      `json:"author" db:"author"`
	Genre           *string     `json:"genre" db:"genre"`
	GenreName       *string     `json:"genre_name" db:"genre_name"`
	Rating          *float64    `json:"rating" db:"rating"`
	Notes           *string     `json:"book_notes" db:"book_notes"`
	ToBeRead        bool        `json:"toBeRead" db:"to_be_read"`
	IsRead          bool        `json:"is_read" db:"is_read"`
	Shelved         bool        `json:"shelved" db:"shelved"`
	Favorite        bool        `json:"favorite" db:"favorite"`
	PublicationDate *string     `json:"publication_date" db:"publication_date"`
	ISBN            *string     `json:"isbn" db:"isbn"`
	Language        *string     `json:"language" db:"language"`
	Publisher       *string     `json:"publisher" db:"publisher"`
	PageCount       *int        `json:"page_count" db:"page_count"`
	Vibes           *string     `json:"vibes" db:"vibes"`
	Tags            *string     `json:"tags" db:"tags"`
	Emoji           *string     `json:"emoji" db:"emoji"`
	IsDeleted       bool        `json:"is_deleted" db:"is_deleted"`
	DeletedAt       *time.Time  `json:"deleted_at" db:"deleted_at"`
	CreatedAt       time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at" db:"updated_at"`
	Photos          []BookPhoto `json:"photos" db:"-"`
}

// State reports the lifecycle state the stored flags describe.
func (b *Book) State() LifecycleState {
	if b.IsDeleted {
		return StateTrashed
	}
	return StateActive
}

// DaysInTrash returns the whole days elapsed since the book was trashed,
// or 0 for an active book.
func (b *Book) DaysInTrash(now time.Time) int {
	if !b.IsDeleted || b.DeletedAt == nil {
		return 0
	}
	elapsed := now.Sub(*b.DeletedAt)
	if elapsed < 0 {
		return 0
	}
	return int(elapsed / (24 * time.Hour))
}

// DaysUntilPermanentDeletion is nil for an active book; otherwise the number of
// days left in the retention window, never below zero.
func (b *Book) DaysUntilPermanentDeletion(retentionDays int, now time.Time) *int {
	if !b.IsDeleted {
		return nil
	}
	left := retentionDays - b.DaysInTrash(now)
	if left < 0 {
		left = 0
	}
	return &left
}

// BookInput carries the client-writable fields of a book.
type BookInput struct {
	Title           string   `json:"title" validate:"required,max=255"`
	Author          string   `json:"author" validate:"required,max=255"`
	Genre           *string  `json:"genre" validate:"omitempty,max=100"`
	Rating          *float64 `json:"rating" validate:"omitempty,gte=0,lte=5"`
	Notes           *string  `json:"book_notes"`
	ToBeRead        bool     `json:"toBeRead"`
	IsRead          bool     `json:"is_read"`
	Shelved         bool     `json:"shelved"`
	Favorite        bool     `json:"favorite"`
	PublicationDate *string  `json:"publication_date" validate:"omitempty,datetime=2006-01-02"`
	ISBN            *string  `json:"isbn" validate:"omitempty,max=13"`
	Language        *string  `json:"language" validate:"omitempty,max=50"`
	Publisher       *string  `json:"publisher" validate:"omitempty,max=255"`
	PageCount       *int     `json:"page_count" validate:"omitempty,gte=0"`
	Vibes           *string  `json:"vibes" validate:"omitempty,max=255"`
	Tags            *string  `json:"tags" validate:"omitempty,max=255"`
	Emoji           *string  `json:"emoji" validate:"omitempty,max=16"`
}

// Apply copies the writable fields onto b. Identity, lifecycle and timestamps are left alone.
func (in *BookInput) Apply(b *Book) {
	b.Title = in.Title
	b.Author = in.Author
	b.Genre = in.Genre
	b.Rating = in.Rating
	b.Notes = in.Notes
	b.ToBeRead = in.ToBeRead
	b.IsRead = in.IsRead
	b.Shelved = in.Shelved
	b.Favorite = in.Favorite
	b.PublicationDate = in.PublicationDate
	b.ISBN = in.ISBN
	b.Language = in.Language
	b.Publisher = in.Publisher
	b.PageCount = in.PageCount
	b.Vibes = in.Vibes
	b.Tags = in.Tags
	b.Emoji = in.Emoji
}

// InputOf returns the writable fields of b.
func InputOf(b *Book) BookInput {
	return BookInput{
		Title:           b.Title,
		Author:          b.Author,
		Genre:           b.Genre,
		Rating:          b.Rating,
		Notes:           b.Notes,
		ToBeRead:        b.ToBeRead,
		IsRead:          b.IsRead,
		Shelved:         b.Shelved,
		Favorite:        b.Favorite,
		PublicationDate: b.PublicationDate,
		ISBN:            b.ISBN,
		Language:        b.Language,
		Publisher:       b.Publisher,
		PageCount:       b.PageCount,
		Vibes:           b.Vibes,
		Tags:            b.Tags,
		Emoji:           b.Emoji,
	}
}

// BookPatch is a partial book write. Nil fields are absent and keep their value.
type BookPatch struct {
	Title           *string  `json:"title"`
	Author          *string  `json:"author"`
	Genre           *string  `json:"genre"`
	Rating          *float64 `json:"rating"`
	Notes           *string  `json:"book_notes"`
	ToBeRead        *bool    `json:"toBeRead"`
	IsRead          *bool    `json:"is_read"`
	Shelved         *bool    `json:"shelved"`
	Favorite        *bool    `json:"favorite"`
	PublicationDate *string  `json:"publication_date"`
	ISBN            *string  `json:"isbn"`
	Language        *string  `json:"language"`
	Publisher       *string  `json:"publisher"`
	PageCount       *int     `json:"page_count"`
	Vibes           *string  `json:"vibes"`
	Tags            *string  `json:"tags"`
	Emoji           *string  `json:"emoji"`
}

// ApplyTo overwrites the fields of in that are present in p.
func (p *BookPatch) ApplyTo(in *BookInput) {
	setString := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	setOptional := func(dst **string, v *string) {
		if v != nil {
			*dst = v
		}
	}
	setBool := func(dst *bool, v *bool) {
		if v != nil {
			*dst = *v
		}
	}

	setString(&in.Title, p.Title)
	setString(&in.Author, p.Author)
	setOptional(&in.Genre, p.Genre)
	if p.Rating != nil {
		in.Rating = p.Rating
	}
	setOptional(&in.Notes, p.Notes)
	setBool(&in.ToBeRead, p.ToBeRead)
	setBool(&in.IsRead, p.IsRead)
	setBool(&in.Shelved, p.Shelved)
	setBool(&in.Favorite, p.Favorite)
	setOptional(&in.PublicationDate, p.PublicationDate)
	setOptional(&in.ISBN, p.ISBN)
	setOptional(&in.Language, p.Language)
	setOptional(&in.Publisher, p.Publisher)
	if p.PageCount != nil {
		in.PageCount = p.PageCount
	}
	setOptional(&in.Vibes, p.Vibes)
	setOptional(&in.Tags, p.Tags)
	setOptional(&in.Emoji, p.Emoji)
}

// Input turns p into a full write: absent fields take their zero value.
func (p *BookPatch) Input() BookInput {
	var in BookInput
	p.ApplyTo(&in)
	return in
}

// BookFilter selects books. Nil fields do not constrain the result.
type BookFilter struct {
	Deleted       *bool
	DeletedBefore *time.Time
	Genre         string
	IsRead        *bool
	ToBeRead      *bool
	Shelved       *bool
	Favorite      *bool
	Search        string
}

// ActiveBooks matches every book that is not in the trash.
func ActiveBooks() BookFilter {
	deleted := false
	return BookFilter{Deleted: &deleted}
}

// TrashedBooks matches every book in the trash.
func TrashedBooks() BookFilter {
	deleted := true
	return BookFilter{Deleted: &deleted}
}

// TrashedBefore matches trashed books whose deleted_at is strictly before cutoff.
func TrashedBefore(cutoff time.Time) BookFilter {
	f := TrashedBooks()
	f.DeletedBefore = &cutoff
	return f
}
