package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"bookwyrm/internal/domain"
)

type GenreRepository struct {
	db *sqlx.DB
}

func NewGenreRepository(db *sqlx.DB) *GenreRepository {
	return &GenreRepository{db: db}
}

func (r *GenreRepository) List(ctx context.Context) ([]domain.Genre, error) {
	genres := []domain.Genre{}
	if err := r.db.SelectContext(ctx, &genres, `SELECT code, name FROM genres ORDER BY name, code`); err != nil {
		return nil, domain.NewStoreError("list genres", err)
	}
	return genres, nil
}

func (r *GenreRepository) Get(ctx context.Context, code string) (*domain.Genre, error) {
	var genre domain.Genre
	err := r.db.GetContext(ctx, &genre, r.db.Rebind(`SELECT code, name FROM genres WHERE code = ?`), code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.NewStoreError("get genre", err)
	}
	return &genre, nil
}

// Upsert creates the genre or renames the existing one. It reports whether a row was created.
func (r *GenreRepository) Upsert(ctx context.Context, genre domain.Genre) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, domain.NewStoreError("begin transaction", err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.GetContext(ctx, &exists, tx.Rebind(`SELECT COUNT(*) FROM genres WHERE code = ?`), genre.Code); err != nil {
		return false, domain.NewStoreError("upsert genre", err)
	}

	if exists > 0 {
		_, err = tx.ExecContext(ctx, tx.Rebind(`UPDATE genres SET name = ? WHERE code = ?`), genre.Name, genre.Code)
	} else {
		_, err = tx.ExecContext(ctx, tx.Rebind(`INSERT INTO genres (code, name) VALUES (?, ?)`), genre.Code, genre.Name)
	}
	if err != nil {
		return false, domain.NewStoreError("upsert genre", err)
	}

	if err := tx.Commit(); err != nil {
		return false, domain.NewStoreError("commit transaction", err)
	}
	return exists == 0, nil
}
