package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/clinic-queue-api/internal/model"
	"github.com/jwalitptl/clinic-queue-api/internal/repository"
)

type scheduleRepository struct {
	BaseRepository
}

func NewScheduleRepository(db *sqlx.DB) repository.ScheduleRepository {
	return &scheduleRepository{BaseRepository: NewBaseRepository(db)}
}

const scheduleColumns = `
	id, provider_id, day_of_week, start_time, end_time,
	break_start_time, break_end_time, slot_duration_minutes, is_active,
	created_at, updated_at`

func (r *scheduleRepository) GetActiveForWeekday(ctx context.Context, providerID uuid.UUID, dayOfWeek int) (*model.ProviderSchedule, error) {
	query := `SELECT ` + scheduleColumns + `
		FROM provider_schedules
		WHERE provider_id = $1 AND day_of_week = $2 AND is_active = true
	`
	var schedule model.ProviderSchedule
	err := r.db.GetContext(ctx, &schedule, query, providerID, dayOfWeek)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get schedule: %w", err)
	}
	return &schedule, nil
}

// Upsert replaces the entry for (provider, weekday). The unique index on
// (provider_id, day_of_week) keeps one entry per weekday.
func (r *scheduleRepository) Upsert(ctx context.Context, schedule *model.ProviderSchedule) error {
	query := `
		INSERT INTO provider_schedules (
			id, provider_id, day_of_week, start_time, end_time,
			break_start_time, break_end_time, slot_duration_minutes, is_active,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (provider_id, day_of_week) DO UPDATE
		SET start_time = EXCLUDED.start_time,
			end_time = EXCLUDED.end_time,
			break_start_time = EXCLUDED.break_start_time,
			break_end_time = EXCLUDED.break_end_time,
			slot_duration_minutes = EXCLUDED.slot_duration_minutes,
			is_active = EXCLUDED.is_active,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at
	`
	if schedule.ID == uuid.Nil {
		schedule.ID = uuid.New()
	}
	schedule.CreatedAt = time.Now()
	schedule.UpdatedAt = time.Now()

	row := r.db.QueryRowContext(ctx, query,
		schedule.ID,
		schedule.ProviderID,
		schedule.DayOfWeek,
		schedule.StartTime,
		schedule.EndTime,
		schedule.BreakStartTime,
		schedule.BreakEndTime,
		schedule.SlotDurationMinutes,
		schedule.IsActive,
		schedule.CreatedAt,
		schedule.UpdatedAt,
	)
	if err := row.Scan(&schedule.ID, &schedule.CreatedAt); err != nil {
		return fmt.Errorf("failed to upsert schedule: %w", err)
	}
	return nil
}

func (r *scheduleRepository) ListForProvider(ctx context.Context, providerID uuid.UUID) ([]*model.ProviderSchedule, error) {
	query := `SELECT ` + scheduleColumns + `
		FROM provider_schedules
		WHERE provider_id = $1
		ORDER BY day_of_week ASC
	`
	var schedules []*model.ProviderSchedule
	err := r.db.SelectContext(ctx, &schedules, query, providerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list schedules: %w", err)
	}
	return schedules, nil
}

func (r *scheduleRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM provider_schedules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete schedule: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("schedule not found")
	}

	return nil
}

func (r *scheduleRepository) IsDateBlocked(ctx context.Context, providerID uuid.UUID, date time.Time) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM blocked_dates
			WHERE provider_id = $1 AND blocked_date = $2
		)
	`
	var blocked bool
	err := r.db.GetContext(ctx, &blocked, query, providerID, date)
	if err != nil {
		return false, fmt.Errorf("failed to check blocked date: %w", err)
	}
	return blocked, nil
}

func (r *scheduleRepository) BlockDate(ctx context.Context, block *model.BlockedDate) error {
	query := `
		INSERT INTO blocked_dates (id, provider_id, blocked_date, reason, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (provider_id, blocked_date) DO UPDATE SET reason = EXCLUDED.reason
	`
	if block.ID == uuid.Nil {
		block.ID = uuid.New()
	}
	block.CreatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query, block.ID, block.ProviderID, block.Date, block.Reason, block.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to block date: %w", err)
	}
	return nil
}

func (r *scheduleRepository) UnblockDate(ctx context.Context, providerID uuid.UUID, date time.Time) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM blocked_dates WHERE provider_id = $1 AND blocked_date = $2`, providerID, date)
	if err != nil {
		return fmt.Errorf("failed to unblock date: %w", err)
	}
	return nil
}

func (r *scheduleRepository) ListBlockedDates(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]*model.BlockedDate, error) {
	query := `
		SELECT id, provider_id, blocked_date, reason, created_at
		FROM blocked_dates
		WHERE provider_id = $1 AND blocked_date >= $2 AND blocked_date <= $3
		ORDER BY blocked_date ASC
	`
	var blocks []*model.BlockedDate
	err := r.db.SelectContext(ctx, &blocks, query, providerID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list blocked dates: %w", err)
	}
	return blocks, nil
}
