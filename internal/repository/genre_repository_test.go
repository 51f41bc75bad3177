package repository

import (
	"context"
	"errors"
	"testing"

	"bookwyrm/internal/domain"
	"bookwyrm/internal/repository/sqlitetest"
)

func TestGenreRepository_Upsert(t *testing.T) {
	repo := NewGenreRepository(sqlitetest.Open(t))
	ctx := context.Background()

	created, err := repo.Upsert(ctx, domain.Genre{Code: "poetry", Name: "Poetry"})
	if err != nil || !created {
		t.Fatalf("Upsert(new) = %v, %v; want created", created, err)
	}

	created, err = repo.Upsert(ctx, domain.Genre{Code: "poetry", Name: "Poems"})
	if err != nil || created {
		t.Fatalf("Upsert(existing) = %v, %v; want updated", created, err)
	}

	g, err := repo.Get(ctx, "poetry")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if g.Name != "Poems" {
		t.Errorf("Name = %q, want Poems", g.Name)
	}

	if _, err := repo.Get(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestGenreRepository_List(t *testing.T) {
	repo := NewGenreRepository(sqlitetest.Open(t))

	genres, err := repo.List(context.Background())
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(genres) != 6 {
		t.Fatalf("expected the 6 seeded genres, got %d", len(genres))
	}
	for i := 1; i < len(genres); i++ {
		if genres[i-1].Name > genres[i].Name {
			t.Errorf("genres not ordered by name: %q before %q", genres[i-1].Name, genres[i].Name)
		}
	}
}
