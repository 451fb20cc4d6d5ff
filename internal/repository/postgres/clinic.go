package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/clinic-queue-api/internal/model"
	"github.com/jwalitptl/clinic-queue-api/internal/repository"
)

type clinicSettingsRepository struct {
	BaseRepository
	defaultWindowHours  int
	defaultGraceMinutes int
}

func NewClinicSettingsRepository(db *sqlx.DB, defaultWindowHours, defaultGraceMinutes int) repository.ClinicSettingsRepository {
	if defaultWindowHours <= 0 {
		defaultWindowHours = model.DefaultCancellationWindowHours
	}
	if defaultGraceMinutes <= 0 {
		defaultGraceMinutes = 30
	}
	return &clinicSettingsRepository{
		BaseRepository:      NewBaseRepository(db),
		defaultWindowHours:  defaultWindowHours,
		defaultGraceMinutes: defaultGraceMinutes,
	}
}

// Get returns the clinic's settings, falling back to defaults when no row
// exists for the clinic.
func (r *clinicSettingsRepository) Get(ctx context.Context, clinicID uuid.UUID) (*model.ClinicSettings, error) {
	query := `
		SELECT clinic_id, cancellation_window_hours, no_show_grace_minutes, updated_at
		FROM clinic_settings
		WHERE clinic_id = $1
	`
	var settings model.ClinicSettings
	err := r.db.GetContext(ctx, &settings, query, clinicID)
	if errors.Is(err, sql.ErrNoRows) {
		return &model.ClinicSettings{
			ClinicID:                clinicID,
			CancellationWindowHours: r.defaultWindowHours,
			NoShowGraceMinutes:      r.defaultGraceMinutes,
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get clinic settings: %w", err)
	}
	return &settings, nil
}
