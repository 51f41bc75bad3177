package service

import (
	"context"
	"errors"
	"testing"

	"bookwyrm/internal/domain"
	"bookwyrm/internal/repository"
	"bookwyrm/internal/repository/sqlitetest"
)

func TestGenreService_Save(t *testing.T) {
	svc := NewGenreService(repository.NewGenreRepository(sqlitetest.Open(t)), nil, nil)
	ctx := context.Background()

	genre, created, err := svc.Save(ctx, domain.Genre{Code: " poetry ", Name: "Poetry"})
	if err != nil || !created {
		t.Fatalf("Save(new) = %v, %v", created, err)
	}
	if genre.Code != "poetry" {
		t.Errorf("Code = %q, want trimmed", genre.Code)
	}

	if _, created, err = svc.Save(ctx, domain.Genre{Code: "poetry", Name: "Poems"}); err != nil || created {
		t.Fatalf("Save(existing) = %v, %v", created, err)
	}

	if _, _, err := svc.Save(ctx, domain.Genre{Code: "", Name: "Nameless"}); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}

func TestGenreService_Sync(t *testing.T) {
	svc := NewGenreService(repository.NewGenreRepository(sqlitetest.Open(t)), nil, nil)

	results := svc.Sync(context.Background(), []domain.GenreSyncItem{
		{Code: "poetry", Name: "Poetry"},
		{Value: "fiction", Label: "Fiction & Stories"},
		{Label: "No code"},
	})

	want := []string{domain.GenreSyncCreated, domain.GenreSyncUpdated, domain.GenreSyncError}
	if len(results) != len(want) {
		t.Fatalf("got %d results, want %d", len(results), len(want))
	}
	for i, status := range want {
		if results[i].Status != status {
			t.Errorf("results[%d].Status = %q, want %q", i, results[i].Status, status)
		}
	}
	if results[1].Name != "Fiction & Stories" {
		t.Errorf("alias not applied: %+v", results[1])
	}
	if results[2].Data == nil || results[2].Message == "" {
		t.Errorf("error result lacks detail: %+v", results[2])
	}

	genres, err := svc.List(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(genres) != 7 {
		t.Errorf("expected 7 genres after sync, got %d", len(genres))
	}
}
