package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// LifecycleState is the position of a book in the soft-delete lifecycle.
// A destroyed book has no stored state: its row is gone.
type LifecycleState string

const (
	StateActive    LifecycleState = "active"
	StateTrashed   LifecycleState = "trashed"
	StateDestroyed LifecycleState = "destroyed"
)

// DefaultRetentionDays is how long a book stays in the trash before the sweep reclaims it.
const DefaultRetentionDays = 30

// TrashItem is a trashed book with its retention countdown.
type TrashItem struct {
	Book
	DaysInTrash                int  `json:"days_in_trash"`
	DaysUntilPermanentDeletion *int `json:"days_until_permanent_deletion"`
}

// EmptyTrashResult is the response body of an empty-trash request.
type EmptyTrashResult struct {
	DeletedCount int64  `json:"deleted_count"`
	Detail       string `json:"detail"`
}

// SweepCandidate describes a trashed book past the retention cutoff.
type SweepCandidate struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	Author      string    `json:"author"`
	DeletedAt   time.Time `json:"deleted_at"`
	DaysInTrash int       `json:"days_in_trash"`
}

// SweepFailure records a candidate the sweep could not delete.
type SweepFailure struct {
	ID    uuid.UUID `json:"id"`
	Title string    `json:"title"`
	Error string    `json:"error"`
}

// SweepReport is the outcome of one retention sweep.
type SweepReport struct {
	RetentionDays int              `json:"retention_days"`
	Cutoff        time.Time        `json:"cutoff"`
	DryRun        bool             `json:"dry_run"`
	Candidates    []SweepCandidate `json:"candidates"`
	Deleted       int              `json:"deleted"`
	// Skipped counts candidates that were gone or restored before their turn.
	Skipped       int              `json:"skipped,omitempty"`
	Failures      []SweepFailure   `json:"failures,omitempty"`
}

// Summary renders the one-line outcome printed by the cleanup command.
func (r *SweepReport) Summary() string {
	switch {
	case len(r.Candidates) == 0:
		return "No books to delete."
	case r.DryRun:
		return fmt.Sprintf("DRY RUN: Would delete %d books that were soft-deleted more than %d days ago",
			len(r.Candidates), r.RetentionDays)
	case len(r.Failures) > 0:
		return fmt.Sprintf("Deleted %d of %d books that were soft-deleted more than %d days ago (%d failed)",
			r.Deleted, len(r.Candidates), r.RetentionDays, len(r.Failures))
	default:
		return fmt.Sprintf("Successfully deleted %d books that were soft-deleted more than %d days ago",
			r.Deleted, r.RetentionDays)
	}
}
