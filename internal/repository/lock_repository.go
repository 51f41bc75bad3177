package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"bookwyrm/internal/domain"
)

// LockRepository hands out named run-locks stored in the job_locks table, so
// that batch jobs do not overlap across processes.
type LockRepository struct {
	db *sqlx.DB
}

func NewLockRepository(db *sqlx.DB) *LockRepository {
	return &LockRepository{db: db}
}

// TryAcquire takes the lock for owner. A lock older than ttl is considered abandoned and taken over.
func (r *LockRepository) TryAcquire(ctx context.Context, name, owner string, ttl time.Duration) (bool, error) {
	now := time.Now().UTC()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, domain.NewStoreError("begin transaction", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, tx.Rebind(`DELETE FROM job_locks WHERE name = ? AND acquired_at < ?`), name, now.Add(-ttl))
	if err != nil {
		return false, domain.NewStoreError("expire lock", err)
	}

	result, err := tx.ExecContext(ctx, tx.Rebind(`
        INSERT INTO job_locks (name, owner, acquired_at)
        VALUES (?, ?, ?)
        ON CONFLICT (name) DO NOTHING`), name, owner, now)
	if err != nil {
		return false, domain.NewStoreError("acquire lock", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, domain.NewStoreError("acquire lock", err)
	}

	if err := tx.Commit(); err != nil {
		return false, domain.NewStoreError("commit transaction", err)
	}
	return rows == 1, nil
}

func (r *LockRepository) Release(ctx context.Context, name, owner string) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM job_locks WHERE name = ? AND owner = ?`), name, owner)
	if err != nil {
		return domain.NewStoreError("release lock", err)
	}
	return nil
}
