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

type providerRepository struct {
	BaseRepository
}

func NewProviderRepository(db *sqlx.DB) repository.ProviderRepository {
	return &providerRepository{BaseRepository: NewBaseRepository(db)}
}

func (r *providerRepository) Get(ctx context.Context, id uuid.UUID) (*model.Provider, error) {
	query := `
		SELECT p.id, p.user_id, p.clinic_id, p.specialization,
			   p.slot_duration_minutes, p.is_accepting_appointments,
			   p.video_consultation_enabled, u.is_active AS user_active,
			   p.created_at, p.updated_at
		FROM providers p
		JOIN users u ON u.id = p.user_id
		WHERE p.id = $1
	`
	var provider model.Provider
	err := r.db.GetContext(ctx, &provider, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get provider: %w", err)
	}
	return &provider, nil
}
