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

type queueRepository struct {
	BaseRepository
}

func NewQueueRepository(db *sqlx.DB) repository.QueueRepository {
	return &queueRepository{BaseRepository: NewBaseRepository(db)}
}

const queueColumns = `
	id, appointment_id, patient_id, provider_id, clinic_id, queue_position, status,
	arrival_time, called_at, consultation_start_at, completed_at,
	created_at, updated_at`

// Upsert creates the queue entry at check-in, or reopens it if the
// appointment was checked in before.
func (r *queueRepository) Upsert(ctx context.Context, tx *sqlx.Tx, entry *model.QueueEntry) error {
	query := `
		INSERT INTO queue_entries (
			id, appointment_id, patient_id, provider_id, clinic_id, queue_position, status,
			arrival_time, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (appointment_id) DO UPDATE
		SET status = EXCLUDED.status,
			arrival_time = EXCLUDED.arrival_time,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at
	`
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	entry.CreatedAt = time.Now()
	entry.UpdatedAt = time.Now()

	row := tx.QueryRowContext(ctx, query,
		entry.ID,
		entry.AppointmentID,
		entry.PatientID,
		entry.ProviderID,
		entry.ClinicID,
		entry.QueuePosition,
		entry.Status,
		entry.ArrivalTime,
		entry.CreatedAt,
		entry.UpdatedAt,
	)
	if err := row.Scan(&entry.ID, &entry.CreatedAt); err != nil {
		return fmt.Errorf("failed to upsert queue entry: %w", err)
	}
	return nil
}

func (r *queueRepository) Get(ctx context.Context, id uuid.UUID) (*model.QueueEntry, error) {
	query := `SELECT ` + queueColumns + ` FROM queue_entries WHERE id = $1`

	var entry model.QueueEntry
	err := r.db.GetContext(ctx, &entry, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get queue entry: %w", err)
	}
	return &entry, nil
}

func (r *queueRepository) GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*model.QueueEntry, error) {
	query := `SELECT ` + queueColumns + ` FROM queue_entries WHERE appointment_id = $1`

	var entry model.QueueEntry
	err := r.db.GetContext(ctx, &entry, query, appointmentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get queue entry: %w", err)
	}
	return &entry, nil
}

func (r *queueRepository) Update(ctx context.Context, tx *sqlx.Tx, entry *model.QueueEntry) error {
	query := `
		UPDATE queue_entries
		SET queue_position = $1, status = $2, arrival_time = $3, called_at = $4,
			consultation_start_at = $5, completed_at = $6, updated_at = $7
		WHERE id = $8
	`
	entry.UpdatedAt = time.Now()

	result, err := tx.ExecContext(ctx, query,
		entry.QueuePosition,
		entry.Status,
		entry.ArrivalTime,
		entry.CalledAt,
		entry.ConsultationStartAt,
		entry.CompletedAt,
		entry.UpdatedAt,
		entry.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update queue entry: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("queue entry not found")
	}

	return nil
}

// NextWaiting returns the waiting entry with the lowest position among
// entries created on the given day, or sql.ErrNoRows.
func (r *queueRepository) NextWaiting(ctx context.Context, tx *sqlx.Tx, providerID uuid.UUID, day time.Time) (*model.QueueEntry, error) {
	query := `SELECT ` + queueColumns + `
		FROM queue_entries
		WHERE provider_id = $1
		AND status = 'waiting'
		AND created_at >= $2
		ORDER BY queue_position ASC
		LIMIT 1
		FOR UPDATE
	`
	var entry model.QueueEntry
	err := tx.GetContext(ctx, &entry, query, providerID, dayStart(day))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get next waiting entry: %w", err)
	}
	return &entry, nil
}

func (r *queueRepository) ListWaiting(ctx context.Context, tx *sqlx.Tx, providerID uuid.UUID, day time.Time) ([]*model.QueueEntry, error) {
	query := `SELECT ` + queueColumns + `
		FROM queue_entries
		WHERE provider_id = $1
		AND status = 'waiting'
		AND created_at >= $2
		ORDER BY queue_position ASC
	`
	var entries []*model.QueueEntry
	err := tx.SelectContext(ctx, &entries, query, providerID, dayStart(day))
	if err != nil {
		return nil, fmt.Errorf("failed to list waiting entries: %w", err)
	}
	return entries, nil
}

func (r *queueRepository) ListForDay(ctx context.Context, providerID uuid.UUID, day time.Time) ([]*model.QueueEntry, error) {
	query := `SELECT ` + queueColumns + `
		FROM queue_entries
		WHERE provider_id = $1
		AND created_at >= $2
		AND created_at < $3
		AND status != 'completed'
		ORDER BY queue_position ASC
	`
	start := dayStart(day)
	var entries []*model.QueueEntry
	err := r.db.SelectContext(ctx, &entries, query, providerID, start, start.AddDate(0, 0, 1))
	if err != nil {
		return nil, fmt.Errorf("failed to list queue entries: %w", err)
	}
	return entries, nil
}

// UpdatePositions rewrites queue positions in one statement.
func (r *queueRepository) UpdatePositions(ctx context.Context, tx *sqlx.Tx, positions map[uuid.UUID]int) error {
	if len(positions) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, 0, len(positions))
	values := make([]int, 0, len(positions))
	for id, pos := range positions {
		ids = append(ids, id)
		values = append(values, pos)
	}

	query := `
		UPDATE queue_entries AS q
		SET queue_position = v.pos, updated_at = $3
		FROM (SELECT UNNEST($1::uuid[]) AS id, UNNEST($2::int[]) AS pos) AS v
		WHERE q.id = v.id
	`
	_, err := tx.ExecContext(ctx, query, pqUUIDArray(ids), pqIntArray(values), time.Now())
	if err != nil {
		return fmt.Errorf("failed to update queue positions: %w", err)
	}
	return nil
}

// BulkUpdateWaitTimes rewrites estimated waits on the appointments the
// given queue entries belong to, one statement for the whole batch.
func (r *queueRepository) BulkUpdateWaitTimes(ctx context.Context, tx *sqlx.Tx, waits map[uuid.UUID]int) error {
	if len(waits) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, 0, len(waits))
	values := make([]int, 0, len(waits))
	for id, wait := range waits {
		ids = append(ids, id)
		values = append(values, wait)
	}

	query := `
		UPDATE appointments AS a
		SET estimated_wait_minutes = v.wait, updated_at = $3
		FROM (SELECT UNNEST($1::uuid[]) AS id, UNNEST($2::int[]) AS wait) AS v
		WHERE a.id = v.id
	`
	_, err := tx.ExecContext(ctx, query, pqUUIDArray(ids), pqIntArray(values), time.Now())
	if err != nil {
		return fmt.Errorf("failed to update wait times: %w", err)
	}
	return nil
}

// CloseByAppointment forces the entry to completed as a closed marker when
// the appointment is cancelled or marked no-show.
func (r *queueRepository) CloseByAppointment(ctx context.Context, tx *sqlx.Tx, appointmentID uuid.UUID) error {
	query := `
		UPDATE queue_entries
		SET status = 'completed', completed_at = $1, updated_at = $1
		WHERE appointment_id = $2
		AND status != 'completed'
	`
	_, err := tx.ExecContext(ctx, query, time.Now(), appointmentID)
	if err != nil {
		return fmt.Errorf("failed to close queue entry: %w", err)
	}
	return nil
}

func (r *queueRepository) Stats(ctx context.Context, providerID uuid.UUID, day time.Time) (*model.QueueStats, error) {
	query := `
		SELECT
			COUNT(*) AS total_today,
			COUNT(*) FILTER (WHERE status = 'waiting') AS waiting,
			COUNT(*) FILTER (WHERE status = 'called') AS called,
			COUNT(*) FILTER (WHERE status = 'in_consultation') AS in_consultation,
			COUNT(*) FILTER (WHERE status = 'completed') AS completed
		FROM queue_entries
		WHERE provider_id = $1
		AND created_at >= $2
		AND created_at < $3
	`
	start := dayStart(day)
	var stats model.QueueStats
	err := r.db.GetContext(ctx, &stats, query, providerID, start, start.AddDate(0, 0, 1))
	if err != nil {
		return nil, fmt.Errorf("failed to get queue stats: %w", err)
	}
	return &stats, nil
}
