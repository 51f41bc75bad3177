package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/uuid"

	"bookwyrm/internal/domain"
)

func TestPrintReport(t *testing.T) {
	failedID := uuid.MustParse("7f9c24e8-3b12-4fef-91e1-6f2a5c1d9b00")

	tests := []struct {
		name   string
		report domain.SweepReport
		want   []string
	}{
		{
			name:   "nothing to do",
			report: domain.SweepReport{RetentionDays: 30},
			want:   []string{"No books to delete."},
		},
		{
			name: "dry run",
			report: domain.SweepReport{
				RetentionDays: 30,
				DryRun:        true,
				Candidates: []domain.SweepCandidate{
					{Title: "Dune", Author: "Frank Herbert", DaysInTrash: 45},
				},
			},
			want: []string{
				"DRY RUN: Would delete 1 books that were soft-deleted more than 30 days ago",
				`- "Dune" by Frank Herbert (deleted 45 days ago)`,
			},
		},
		{
			name: "partial",
			report: domain.SweepReport{
				RetentionDays: 30,
				Candidates:    []domain.SweepCandidate{{Title: "Dune"}, {Title: "Emma"}},
				Deleted:       1,
				Failures:      []domain.SweepFailure{{ID: failedID, Title: "Emma", Error: "disk I/O error"}},
			},
			want: []string{
				"Deleted 1 of 2 books that were soft-deleted more than 30 days ago (1 failed)",
				`! "Emma" (7f9c24e8-3b12-4fef-91e1-6f2a5c1d9b00): disk I/O error`,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			printReport(&buf, &tt.report)

			got := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
			if len(got) != len(tt.want) {
				t.Fatalf("got %d lines, want %d:\n%s", len(got), len(tt.want), buf.String())
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("line %d = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}
