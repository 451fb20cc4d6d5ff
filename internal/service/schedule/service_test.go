package schedule

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/jwalitptl/clinic-queue-api/internal/model"
	apperrors "github.com/jwalitptl/clinic-queue-api/pkg/errors"
)

type mockScheduleRepo struct {
	mock.Mock
}

func (m *mockScheduleRepo) GetActiveForWeekday(ctx context.Context, providerID uuid.UUID, dayOfWeek int) (*model.ProviderSchedule, error) {
	args := m.Called(ctx, providerID, dayOfWeek)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ProviderSchedule), args.Error(1)
}

func (m *mockScheduleRepo) Upsert(ctx context.Context, sched *model.ProviderSchedule) error {
	args := m.Called(ctx, sched)
	return args.Error(0)
}

func (m *mockScheduleRepo) ListForProvider(ctx context.Context, providerID uuid.UUID) ([]*model.ProviderSchedule, error) {
	args := m.Called(ctx, providerID)
	return args.Get(0).([]*model.ProviderSchedule), args.Error(1)
}

func (m *mockScheduleRepo) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockScheduleRepo) IsDateBlocked(ctx context.Context, providerID uuid.UUID, date time.Time) (bool, error) {
	args := m.Called(ctx, providerID, date)
	return args.Bool(0), args.Error(1)
}

func (m *mockScheduleRepo) BlockDate(ctx context.Context, block *model.BlockedDate) error {
	args := m.Called(ctx, block)
	return args.Error(0)
}

func (m *mockScheduleRepo) UnblockDate(ctx context.Context, providerID uuid.UUID, date time.Time) error {
	args := m.Called(ctx, providerID, date)
	return args.Error(0)
}

func (m *mockScheduleRepo) ListBlockedDates(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]*model.BlockedDate, error) {
	args := m.Called(ctx, providerID, from, to)
	return args.Get(0).([]*model.BlockedDate), args.Error(1)
}

type mockAppointmentRepo struct {
	mock.Mock
}

func (m *mockAppointmentRepo) Create(ctx context.Context, tx *sqlx.Tx, apt *model.Appointment) error {
	args := m.Called(ctx, tx, apt)
	return args.Error(0)
}

func (m *mockAppointmentRepo) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(*model.Appointment), args.Error(1)
}

func (m *mockAppointmentRepo) Update(ctx context.Context, tx *sqlx.Tx, apt *model.Appointment) error {
	args := m.Called(ctx, tx, apt)
	return args.Error(0)
}

func (m *mockAppointmentRepo) List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error) {
	args := m.Called(ctx, filters)
	return args.Get(0).([]*model.Appointment), args.Error(1)
}

func (m *mockAppointmentRepo) CountActiveForProviderDate(ctx context.Context, tx *sqlx.Tx, providerID uuid.UUID, date time.Time) (int, error) {
	args := m.Called(ctx, tx, providerID, date)
	return args.Int(0), args.Error(1)
}

func (m *mockAppointmentRepo) HasActiveAtSlot(ctx context.Context, tx *sqlx.Tx, providerID uuid.UUID, date time.Time, slot string) (bool, error) {
	args := m.Called(ctx, tx, providerID, date, slot)
	return args.Bool(0), args.Error(1)
}

func (m *mockAppointmentRepo) HasActiveForPatientOnDate(ctx context.Context, tx *sqlx.Tx, patientID uuid.UUID, date time.Time) (bool, error) {
	args := m.Called(ctx, tx, patientID, date)
	return args.Bool(0), args.Error(1)
}

func (m *mockAppointmentRepo) BookedTimes(ctx context.Context, providerID uuid.UUID, date time.Time) ([]string, error) {
	args := m.Called(ctx, providerID, date)
	return args.Get(0).([]string), args.Error(1)
}

func (m *mockAppointmentRepo) ShiftQueueNumbers(ctx context.Context, tx *sqlx.Tx, providerID uuid.UUID, date time.Time) error {
	args := m.Called(ctx, tx, providerID, date)
	return args.Error(0)
}

func (m *mockAppointmentRepo) UpdateScheduleTx(ctx context.Context, tx *sqlx.Tx, apt *model.Appointment) error {
	args := m.Called(ctx, tx, apt)
	return args.Error(0)
}

func (m *mockAppointmentRepo) ListStaleScheduled(ctx context.Context, cutoff time.Time) ([]*model.Appointment, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).([]*model.Appointment), args.Error(1)
}

func TestAvailableSlots_FiltersBooked(t *testing.T) {
	scheduleRepo := &mockScheduleRepo{}
	aptRepo := &mockAppointmentRepo{}
	svc := NewService(scheduleRepo, aptRepo)

	providerID := uuid.New()
	date := time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC) // a Monday
	ctx := context.Background()

	scheduleRepo.On("GetActiveForWeekday", ctx, providerID, 1).Return(&model.ProviderSchedule{
		ProviderID:          providerID,
		DayOfWeek:           1,
		StartTime:           "09:00",
		EndTime:             "11:00",
		SlotDurationMinutes: 30,
		IsActive:            true,
	}, nil)
	scheduleRepo.On("IsDateBlocked", ctx, providerID, date).Return(false, nil)
	aptRepo.On("BookedTimes", ctx, providerID, date).Return([]string{"09:30"}, nil)

	slots, err := svc.AvailableSlots(ctx, providerID, date)

	assert.NoError(t, err)
	assert.Equal(t, []string{"09:00", "10:00", "10:30"}, slots)
}

func TestAvailableSlots_NoScheduleThatDay(t *testing.T) {
	scheduleRepo := &mockScheduleRepo{}
	aptRepo := &mockAppointmentRepo{}
	svc := NewService(scheduleRepo, aptRepo)

	providerID := uuid.New()
	date := time.Date(2026, 9, 6, 0, 0, 0, 0, time.UTC) // a Sunday
	ctx := context.Background()

	scheduleRepo.On("GetActiveForWeekday", ctx, providerID, 0).Return(nil, sql.ErrNoRows)

	slots, err := svc.AvailableSlots(ctx, providerID, date)

	assert.NoError(t, err)
	assert.Equal(t, []string{}, slots)
	aptRepo.AssertNotCalled(t, "BookedTimes", mock.Anything, mock.Anything, mock.Anything)
}

func TestAvailableSlots_BlockedDate(t *testing.T) {
	scheduleRepo := &mockScheduleRepo{}
	aptRepo := &mockAppointmentRepo{}
	svc := NewService(scheduleRepo, aptRepo)

	providerID := uuid.New()
	date := time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)
	ctx := context.Background()

	scheduleRepo.On("GetActiveForWeekday", ctx, providerID, 1).Return(&model.ProviderSchedule{
		StartTime:           "09:00",
		EndTime:             "17:00",
		SlotDurationMinutes: 15,
		IsActive:            true,
	}, nil)
	scheduleRepo.On("IsDateBlocked", ctx, providerID, date).Return(true, nil)

	slots, err := svc.AvailableSlots(ctx, providerID, date)

	assert.NoError(t, err)
	assert.Empty(t, slots)
}

func TestAvailableSlots_CachesSchedule(t *testing.T) {
	scheduleRepo := &mockScheduleRepo{}
	aptRepo := &mockAppointmentRepo{}
	svc := NewService(scheduleRepo, aptRepo)

	providerID := uuid.New()
	date := time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)
	ctx := context.Background()

	scheduleRepo.On("GetActiveForWeekday", ctx, providerID, 1).Return(&model.ProviderSchedule{
		StartTime:           "09:00",
		EndTime:             "10:00",
		SlotDurationMinutes: 30,
		IsActive:            true,
	}, nil).Once()
	scheduleRepo.On("IsDateBlocked", ctx, providerID, date).Return(false, nil)
	aptRepo.On("BookedTimes", ctx, providerID, date).Return([]string{}, nil)

	_, err := svc.AvailableSlots(ctx, providerID, date)
	assert.NoError(t, err)
	_, err = svc.AvailableSlots(ctx, providerID, date)
	assert.NoError(t, err)

	scheduleRepo.AssertNumberOfCalls(t, "GetActiveForWeekday", 1)
}

func TestUpsertSchedule_RejectsInvertedTimes(t *testing.T) {
	svc := NewService(&mockScheduleRepo{}, &mockAppointmentRepo{})

	_, err := svc.UpsertSchedule(context.Background(), uuid.New(), &model.UpsertScheduleRequest{
		DayOfWeek:           1,
		StartTime:           "17:00",
		EndTime:             "09:00",
		SlotDurationMinutes: 15,
	})

	assert.True(t, apperrors.Is(err, apperrors.ErrPolicyViolation))
}

func TestUpsertSchedule_RejectsHalfBreak(t *testing.T) {
	svc := NewService(&mockScheduleRepo{}, &mockAppointmentRepo{})
	breakStart := "13:00"

	_, err := svc.UpsertSchedule(context.Background(), uuid.New(), &model.UpsertScheduleRequest{
		DayOfWeek:           1,
		StartTime:           "09:00",
		EndTime:             "17:00",
		BreakStartTime:      &breakStart,
		SlotDurationMinutes: 15,
	})

	assert.True(t, apperrors.Is(err, apperrors.ErrPolicyViolation))
}

func TestUpsertSchedule_InvalidatesCache(t *testing.T) {
	scheduleRepo := &mockScheduleRepo{}
	aptRepo := &mockAppointmentRepo{}
	svc := NewService(scheduleRepo, aptRepo)

	providerID := uuid.New()
	ctx := context.Background()

	scheduleRepo.On("GetActiveForWeekday", ctx, providerID, 1).Return(&model.ProviderSchedule{
		StartTime:           "09:00",
		EndTime:             "10:00",
		SlotDurationMinutes: 30,
		IsActive:            true,
	}, nil)
	scheduleRepo.On("Upsert", ctx, mock.Anything).Return(nil)

	_, err := svc.ScheduleForWeekday(ctx, providerID, 1)
	assert.NoError(t, err)

	_, err = svc.UpsertSchedule(ctx, providerID, &model.UpsertScheduleRequest{
		DayOfWeek:           1,
		StartTime:           "08:00",
		EndTime:             "12:00",
		SlotDurationMinutes: 20,
		IsActive:            true,
	})
	assert.NoError(t, err)

	_, err = svc.ScheduleForWeekday(ctx, providerID, 1)
	assert.NoError(t, err)

	scheduleRepo.AssertNumberOfCalls(t, "GetActiveForWeekday", 2)
}
