package schedule

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/jwalitptl/clinic-queue-api/internal/model"
	"github.com/jwalitptl/clinic-queue-api/internal/repository"
	apperrors "github.com/jwalitptl/clinic-queue-api/pkg/errors"
)

const (
	scheduleCacheTTL     = 5 * time.Minute
	scheduleCacheCleanup = 10 * time.Minute
)

// Service exposes provider availability: the weekly recurring schedule,
// per-date blocks, and the generated slot grid.
type Service struct {
	scheduleRepo    repository.ScheduleRepository
	appointmentRepo repository.AppointmentRepository
	cache           *gocache.Cache
}

func NewService(scheduleRepo repository.ScheduleRepository, appointmentRepo repository.AppointmentRepository) *Service {
	return &Service{
		scheduleRepo:    scheduleRepo,
		appointmentRepo: appointmentRepo,
		cache:           gocache.New(scheduleCacheTTL, scheduleCacheCleanup),
	}
}

// AvailableSlots returns the bookable HH:MM times for a provider on a date.
func (s *Service) AvailableSlots(ctx context.Context, providerID uuid.UUID, date time.Time) ([]string, error) {
	sched, err := s.activeSchedule(ctx, providerID, int(date.Weekday()))
	if err != nil {
		return nil, err
	}
	if sched == nil {
		return []string{}, nil
	}

	blocked, err := s.scheduleRepo.IsDateBlocked(ctx, providerID, date)
	if err != nil {
		return nil, fmt.Errorf("failed to check blocked date: %w", err)
	}
	if blocked {
		return []string{}, nil
	}

	booked, err := s.appointmentRepo.BookedTimes(ctx, providerID, date)
	if err != nil {
		return nil, fmt.Errorf("failed to get booked times: %w", err)
	}

	slots := BuildSlots(sched, booked, false)
	if slots == nil {
		slots = []string{}
	}
	return slots, nil
}

// ScheduleForWeekday returns the provider's active entry for a weekday, or
// nil when none exists. Results are cached; mutations invalidate.
func (s *Service) ScheduleForWeekday(ctx context.Context, providerID uuid.UUID, dayOfWeek int) (*model.ProviderSchedule, error) {
	return s.activeSchedule(ctx, providerID, dayOfWeek)
}

func (s *Service) activeSchedule(ctx context.Context, providerID uuid.UUID, dayOfWeek int) (*model.ProviderSchedule, error) {
	key := scheduleCacheKey(providerID, dayOfWeek)
	if cached, ok := s.cache.Get(key); ok {
		if sched, ok := cached.(*model.ProviderSchedule); ok {
			return sched, nil
		}
	}

	sched, err := s.scheduleRepo.GetActiveForWeekday(ctx, providerID, dayOfWeek)
	if errors.Is(err, sql.ErrNoRows) {
		s.cache.Set(key, (*model.ProviderSchedule)(nil), gocache.DefaultExpiration)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get schedule: %w", err)
	}

	s.cache.Set(key, sched, gocache.DefaultExpiration)
	return sched, nil
}

// UpsertSchedule creates or replaces a provider's entry for one weekday.
func (s *Service) UpsertSchedule(ctx context.Context, providerID uuid.UUID, req *model.UpsertScheduleRequest) (*model.ProviderSchedule, error) {
	if req.StartTime >= req.EndTime {
		return nil, apperrors.PolicyViolation("schedule start time must precede end time")
	}
	if (req.BreakStartTime == nil) != (req.BreakEndTime == nil) {
		return nil, apperrors.PolicyViolation("break start and end must be set together")
	}
	if req.BreakStartTime != nil && *req.BreakStartTime >= *req.BreakEndTime {
		return nil, apperrors.PolicyViolation("break start time must precede break end time")
	}

	sched := &model.ProviderSchedule{
		ProviderID:          providerID,
		DayOfWeek:           req.DayOfWeek,
		StartTime:           req.StartTime,
		EndTime:             req.EndTime,
		BreakStartTime:      req.BreakStartTime,
		BreakEndTime:        req.BreakEndTime,
		SlotDurationMinutes: req.SlotDurationMinutes,
		IsActive:            req.IsActive,
	}
	if err := s.scheduleRepo.Upsert(ctx, sched); err != nil {
		return nil, fmt.Errorf("failed to upsert schedule: %w", err)
	}

	s.cache.Delete(scheduleCacheKey(providerID, req.DayOfWeek))
	return sched, nil
}

func (s *Service) ListSchedules(ctx context.Context, providerID uuid.UUID) ([]*model.ProviderSchedule, error) {
	schedules, err := s.scheduleRepo.ListForProvider(ctx, providerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list schedules: %w", err)
	}
	return schedules, nil
}

func (s *Service) BlockDate(ctx context.Context, providerID uuid.UUID, req *model.BlockDateRequest) (*model.BlockedDate, error) {
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return nil, apperrors.PolicyViolation("invalid date format")
	}

	block := &model.BlockedDate{
		ProviderID: providerID,
		Date:       date,
		Reason:     req.Reason,
	}
	if err := s.scheduleRepo.BlockDate(ctx, block); err != nil {
		return nil, fmt.Errorf("failed to block date: %w", err)
	}
	return block, nil
}

func (s *Service) UnblockDate(ctx context.Context, providerID uuid.UUID, date time.Time) error {
	if err := s.scheduleRepo.UnblockDate(ctx, providerID, date); err != nil {
		return fmt.Errorf("failed to unblock date: %w", err)
	}
	return nil
}

func (s *Service) ListBlockedDates(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]*model.BlockedDate, error) {
	blocks, err := s.scheduleRepo.ListBlockedDates(ctx, providerID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list blocked dates: %w", err)
	}
	return blocks, nil
}

func scheduleCacheKey(providerID uuid.UUID, dayOfWeek int) string {
	return fmt.Sprintf("schedule:%s:%d", providerID, dayOfWeek)
}
