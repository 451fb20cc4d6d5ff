package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// BaseRepository provides common functionality for all repositories
type BaseRepository struct {
	db *sqlx.DB
}

// NewBaseRepository creates a new base repository
func NewBaseRepository(db *sqlx.DB) BaseRepository {
	return BaseRepository{db: db}
}

// WithTx executes a function within a transaction
func (r *BaseRepository) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit()
}

// WithProviderDayLock runs fn inside a transaction holding a transaction-scoped
// advisory lock keyed by (providerID, date). Queue numbering and position
// rewrites for one provider day must all go through here.
func (r *BaseRepository) WithProviderDayLock(ctx context.Context, providerID uuid.UUID, date time.Time, fn func(*sqlx.Tx) error) error {
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		key := fmt.Sprintf("%s:%s", providerID, date.Format("2006-01-02"))
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key); err != nil {
			return fmt.Errorf("failed to acquire provider day lock: %w", err)
		}
		return fn(tx)
	})
}

// dayStart truncates t to midnight in its location.
func dayStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func pqUUIDArray(ids []uuid.UUID) interface{} {
	ss := make([]string, len(ids))
	for i, id := range ids {
		ss[i] = id.String()
	}
	return pq.Array(ss)
}

func pqIntArray(values []int) interface{} {
	vs := make([]int64, len(values))
	for i, v := range values {
		vs[i] = int64(v)
	}
	return pq.Array(vs)
}
