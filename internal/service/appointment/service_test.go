package appointment

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/jwalitptl/clinic-queue-api/internal/model"
	"github.com/jwalitptl/clinic-queue-api/internal/service/event"
	apperrors "github.com/jwalitptl/clinic-queue-api/pkg/errors"
	"github.com/jwalitptl/clinic-queue-api/pkg/logger"
	"github.com/jwalitptl/clinic-queue-api/pkg/metrics"
)

type mockTxManager struct {
	mock.Mock
	lockTx *sqlx.Tx
}

func (m *mockTxManager) WithProviderDayLock(ctx context.Context, providerID uuid.UUID, date time.Time, fn func(*sqlx.Tx) error) error {
	m.Called(ctx, providerID, date)
	return fn(m.lockTx)
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
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
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

type mockQueueRepo struct {
	mock.Mock
}

func (m *mockQueueRepo) Upsert(ctx context.Context, tx *sqlx.Tx, entry *model.QueueEntry) error {
	args := m.Called(ctx, tx, entry)
	return args.Error(0)
}

func (m *mockQueueRepo) Get(ctx context.Context, id uuid.UUID) (*model.QueueEntry, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(*model.QueueEntry), args.Error(1)
}

func (m *mockQueueRepo) GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*model.QueueEntry, error) {
	args := m.Called(ctx, appointmentID)
	return args.Get(0).(*model.QueueEntry), args.Error(1)
}

func (m *mockQueueRepo) Update(ctx context.Context, tx *sqlx.Tx, entry *model.QueueEntry) error {
	args := m.Called(ctx, tx, entry)
	return args.Error(0)
}

func (m *mockQueueRepo) NextWaiting(ctx context.Context, tx *sqlx.Tx, providerID uuid.UUID, day time.Time) (*model.QueueEntry, error) {
	args := m.Called(ctx, tx, providerID, day)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.QueueEntry), args.Error(1)
}

func (m *mockQueueRepo) ListWaiting(ctx context.Context, tx *sqlx.Tx, providerID uuid.UUID, day time.Time) ([]*model.QueueEntry, error) {
	args := m.Called(ctx, tx, providerID, day)
	return args.Get(0).([]*model.QueueEntry), args.Error(1)
}

func (m *mockQueueRepo) ListForDay(ctx context.Context, providerID uuid.UUID, day time.Time) ([]*model.QueueEntry, error) {
	args := m.Called(ctx, providerID, day)
	return args.Get(0).([]*model.QueueEntry), args.Error(1)
}

func (m *mockQueueRepo) UpdatePositions(ctx context.Context, tx *sqlx.Tx, positions map[uuid.UUID]int) error {
	args := m.Called(ctx, tx, positions)
	return args.Error(0)
}

func (m *mockQueueRepo) BulkUpdateWaitTimes(ctx context.Context, tx *sqlx.Tx, waits map[uuid.UUID]int) error {
	args := m.Called(ctx, tx, waits)
	return args.Error(0)
}

func (m *mockQueueRepo) CloseByAppointment(ctx context.Context, tx *sqlx.Tx, appointmentID uuid.UUID) error {
	args := m.Called(ctx, tx, appointmentID)
	return args.Error(0)
}

func (m *mockQueueRepo) Stats(ctx context.Context, providerID uuid.UUID, day time.Time) (*model.QueueStats, error) {
	args := m.Called(ctx, providerID, day)
	return args.Get(0).(*model.QueueStats), args.Error(1)
}

type mockProviderRepo struct {
	mock.Mock
}

func (m *mockProviderRepo) Get(ctx context.Context, id uuid.UUID) (*model.Provider, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Provider), args.Error(1)
}

type mockPatientRepo struct {
	mock.Mock
}

func (m *mockPatientRepo) Get(ctx context.Context, id uuid.UUID) (*model.Patient, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Patient), args.Error(1)
}

type mockSettingsRepo struct {
	mock.Mock
}

func (m *mockSettingsRepo) Get(ctx context.Context, clinicID uuid.UUID) (*model.ClinicSettings, error) {
	args := m.Called(ctx, clinicID)
	return args.Get(0).(*model.ClinicSettings), args.Error(1)
}

type mockRecalculator struct {
	mock.Mock
}

func (m *mockRecalculator) RecalculateTx(ctx context.Context, tx *sqlx.Tx, providerID uuid.UUID, slotDurationMinutes int, day time.Time) error {
	args := m.Called(ctx, tx, providerID, slotDurationMinutes, day)
	return args.Error(0)
}

// fakeBroker records published messages for assertions.
type fakeBroker struct {
	published []publishedMessage
}

type publishedMessage struct {
	Channel string
	Message interface{}
}

func (b *fakeBroker) Publish(ctx context.Context, channel string, message interface{}) error {
	b.published = append(b.published, publishedMessage{Channel: channel, Message: message})
	return nil
}

func (b *fakeBroker) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	return nil, nil
}

func (b *fakeBroker) Close() error { return nil }

type testFixture struct {
	svc        *Service
	tx         *mockTxManager
	lockTx     *sqlx.Tx
	repo       *mockAppointmentRepo
	queueRepo  *mockQueueRepo
	providers  *mockProviderRepo
	patients   *mockPatientRepo
	settings   *mockSettingsRepo
	recalc     *mockRecalculator
	broker     *fakeBroker
	providerID uuid.UUID
	patientID  uuid.UUID
	clinicID   uuid.UUID
}

func newFixture(t *testing.T) *testFixture {
	t.Helper()

	lockTx := &sqlx.Tx{}
	f := &testFixture{
		tx:         &mockTxManager{lockTx: lockTx},
		lockTx:     lockTx,
		repo:       &mockAppointmentRepo{},
		queueRepo:  &mockQueueRepo{},
		providers:  &mockProviderRepo{},
		patients:   &mockPatientRepo{},
		settings:   &mockSettingsRepo{},
		recalc:     &mockRecalculator{},
		broker:     &fakeBroker{},
		providerID: uuid.New(),
		patientID:  uuid.New(),
		clinicID:   uuid.New(),
	}
	emitter := event.NewEmitter(f.broker, logger.NewLogger(nil), nil)
	f.svc = NewService(f.tx, f.repo, f.queueRepo, f.providers, f.patients, f.settings, f.recalc, emitter, nil)
	return f
}

func (f *testFixture) provider() *model.Provider {
	return &model.Provider{
		ID:                      f.providerID,
		UserID:                  uuid.New(),
		ClinicID:                f.clinicID,
		SlotDurationMinutes:     15,
		IsAcceptingAppointments: true,
		UserActive:              true,
	}
}

func (f *testFixture) patient() *model.Patient {
	return &model.Patient{ID: f.patientID, UserID: uuid.New(), ClinicID: f.clinicID}
}

func (f *testFixture) bookingRequest() *model.CreateAppointmentRequest {
	tomorrow := time.Now().AddDate(0, 0, 1)
	return &model.CreateAppointmentRequest{
		ProviderID: f.providerID.String(),
		PatientID:  f.patientID.String(),
		Date:       tomorrow.Format("2006-01-02"),
		Time:       "10:00",
		Type:       "in_person",
	}
}

func TestBook_AssignsNextQueueNumber(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.providers.On("Get", ctx, f.providerID).Return(f.provider(), nil)
	f.patients.On("Get", ctx, f.patientID).Return(f.patient(), nil)
	f.tx.On("WithProviderDayLock", ctx, f.providerID, mock.Anything).Return(nil)
	f.repo.On("HasActiveForPatientOnDate", ctx, mock.Anything, f.patientID, mock.Anything).Return(false, nil)
	f.repo.On("HasActiveAtSlot", ctx, mock.Anything, f.providerID, mock.Anything, "10:00").Return(false, nil)
	f.repo.On("CountActiveForProviderDate", ctx, mock.Anything, f.providerID, mock.Anything).Return(3, nil)
	f.repo.On("Create", ctx, mock.Anything, mock.Anything).Return(nil)

	apt, err := f.svc.Book(ctx, f.bookingRequest())

	assert.NoError(t, err)
	assert.Equal(t, 4, apt.QueueNumber)
	assert.Equal(t, 45, apt.EstimatedWaitMinutes)
	assert.Equal(t, model.AppointmentStatusScheduled, apt.Status)
	assert.Equal(t, f.clinicID, apt.ClinicID)
	f.repo.AssertNotCalled(t, "ShiftQueueNumbers", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	assert.Len(t, f.broker.published, 1)
	assert.Equal(t, event.ClinicChannel(f.clinicID), f.broker.published[0].Channel)
}

func TestBook_RecordsBookingLatency(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	m := metrics.NewMetrics("clinic_queue_test", "api")
	emitter := event.NewEmitter(f.broker, logger.NewLogger(nil), nil)
	svc := NewService(f.tx, f.repo, f.queueRepo, f.providers, f.patients, f.settings, f.recalc, emitter, m)

	f.providers.On("Get", ctx, f.providerID).Return(f.provider(), nil)
	f.patients.On("Get", ctx, f.patientID).Return(f.patient(), nil)
	f.tx.On("WithProviderDayLock", ctx, f.providerID, mock.Anything).Return(nil)
	f.repo.On("HasActiveForPatientOnDate", ctx, mock.Anything, f.patientID, mock.Anything).Return(false, nil)
	f.repo.On("HasActiveAtSlot", ctx, mock.Anything, f.providerID, mock.Anything, "10:00").Return(false, nil)
	f.repo.On("CountActiveForProviderDate", ctx, mock.Anything, f.providerID, mock.Anything).Return(0, nil)
	f.repo.On("Create", ctx, mock.Anything, mock.Anything).Return(nil)

	_, err := svc.Book(ctx, f.bookingRequest())

	assert.NoError(t, err)
	var sample dto.Metric
	assert.NoError(t, m.BookingLatency.Write(&sample))
	assert.Equal(t, uint64(1), sample.GetHistogram().GetSampleCount())
}

func TestBook_EmergencyTakesFrontOfQueue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.providers.On("Get", ctx, f.providerID).Return(f.provider(), nil)
	f.patients.On("Get", ctx, f.patientID).Return(f.patient(), nil)
	f.tx.On("WithProviderDayLock", ctx, f.providerID, mock.Anything).Return(nil)
	f.repo.On("HasActiveForPatientOnDate", ctx, mock.Anything, f.patientID, mock.Anything).Return(false, nil)
	f.repo.On("HasActiveAtSlot", ctx, mock.Anything, f.providerID, mock.Anything, "10:00").Return(false, nil)
	f.repo.On("ShiftQueueNumbers", ctx, mock.Anything, f.providerID, mock.Anything).Return(nil)
	f.repo.On("Create", ctx, mock.Anything, mock.Anything).Return(nil)

	req := f.bookingRequest()
	req.IsEmergency = true
	apt, err := f.svc.Book(ctx, req)

	assert.NoError(t, err)
	assert.Equal(t, 1, apt.QueueNumber)
	assert.Equal(t, 0, apt.EstimatedWaitMinutes)
	f.repo.AssertCalled(t, "ShiftQueueNumbers", ctx, mock.Anything, f.providerID, mock.Anything)
	f.repo.AssertNotCalled(t, "CountActiveForProviderDate", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestBook_SlotAlreadyTaken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.providers.On("Get", ctx, f.providerID).Return(f.provider(), nil)
	f.patients.On("Get", ctx, f.patientID).Return(f.patient(), nil)
	f.tx.On("WithProviderDayLock", ctx, f.providerID, mock.Anything).Return(nil)
	f.repo.On("HasActiveForPatientOnDate", ctx, mock.Anything, f.patientID, mock.Anything).Return(false, nil)
	f.repo.On("HasActiveAtSlot", ctx, mock.Anything, f.providerID, mock.Anything, "10:00").Return(true, nil)

	_, err := f.svc.Book(ctx, f.bookingRequest())

	assert.True(t, apperrors.Is(err, apperrors.ErrConflict))
	f.repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestBook_PatientAlreadyBookedSameDay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.providers.On("Get", ctx, f.providerID).Return(f.provider(), nil)
	f.patients.On("Get", ctx, f.patientID).Return(f.patient(), nil)
	f.tx.On("WithProviderDayLock", ctx, f.providerID, mock.Anything).Return(nil)
	f.repo.On("HasActiveForPatientOnDate", ctx, mock.Anything, f.patientID, mock.Anything).Return(true, nil)

	_, err := f.svc.Book(ctx, f.bookingRequest())

	assert.True(t, apperrors.Is(err, apperrors.ErrConflict))
	// the same-day check runs before slot availability
	f.repo.AssertNotCalled(t, "HasActiveAtSlot", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestBook_PastSlotRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.providers.On("Get", ctx, f.providerID).Return(f.provider(), nil)
	f.patients.On("Get", ctx, f.patientID).Return(f.patient(), nil)
	f.tx.On("WithProviderDayLock", ctx, f.providerID, mock.Anything).Return(nil)
	f.repo.On("HasActiveForPatientOnDate", ctx, mock.Anything, f.patientID, mock.Anything).Return(false, nil)
	f.repo.On("HasActiveAtSlot", ctx, mock.Anything, f.providerID, mock.Anything, "10:00").Return(false, nil)

	req := f.bookingRequest()
	req.Date = time.Now().AddDate(0, 0, -1).Format("2006-01-02")
	_, err := f.svc.Book(ctx, req)

	assert.True(t, apperrors.Is(err, apperrors.ErrPolicyViolation))
}

func TestBook_ProviderNotAccepting(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	provider := f.provider()
	provider.IsAcceptingAppointments = false
	f.providers.On("Get", ctx, f.providerID).Return(provider, nil)

	_, err := f.svc.Book(ctx, f.bookingRequest())

	assert.True(t, apperrors.Is(err, apperrors.ErrPolicyViolation))
}

func TestBook_ProviderNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.providers.On("Get", ctx, f.providerID).Return(nil, sql.ErrNoRows)

	_, err := f.svc.Book(ctx, f.bookingRequest())

	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}

func TestBook_VideoNotOffered(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.providers.On("Get", ctx, f.providerID).Return(f.provider(), nil)
	f.patients.On("Get", ctx, f.patientID).Return(f.patient(), nil)

	req := f.bookingRequest()
	req.Type = "video"
	_, err := f.svc.Book(ctx, req)

	assert.True(t, apperrors.Is(err, apperrors.ErrPolicyViolation))
}

func TestBook_ClinicMismatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	patient := f.patient()
	patient.ClinicID = uuid.New()
	f.providers.On("Get", ctx, f.providerID).Return(f.provider(), nil)
	f.patients.On("Get", ctx, f.patientID).Return(patient, nil)

	_, err := f.svc.Book(ctx, f.bookingRequest())

	assert.True(t, apperrors.Is(err, apperrors.ErrPolicyViolation))
}

func cancellableAppointment(f *testFixture) *model.Appointment {
	future := time.Now().AddDate(0, 0, 3)
	return &model.Appointment{
		ID:         uuid.New(),
		PatientID:  f.patientID,
		ProviderID: f.providerID,
		ClinicID:   f.clinicID,
		Date:       time.Date(future.Year(), future.Month(), future.Day(), 0, 0, 0, 0, time.UTC),
		Time:       "10:00",
		Status:     model.AppointmentStatusScheduled,
	}
}

func TestCanCancel_TerminalStatus(t *testing.T) {
	f := newFixture(t)
	apt := cancellableAppointment(f)
	apt.Status = model.AppointmentStatusCompleted

	err := f.svc.CanCancel(context.Background(), apt, model.Actor{UserID: uuid.New(), Role: model.RolePatient})

	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidState))
}

func TestCanCancel_InsideWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	apt := cancellableAppointment(f)
	today := time.Now()
	apt.Date = time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.Local).AddDate(0, 0, 1)

	patient := f.patient()
	f.patients.On("Get", ctx, f.patientID).Return(patient, nil)
	f.settings.On("Get", ctx, f.clinicID).Return(&model.ClinicSettings{
		ClinicID:                f.clinicID,
		CancellationWindowHours: 48,
	}, nil)

	err := f.svc.CanCancel(ctx, apt, model.Actor{UserID: patient.UserID, Role: model.RolePatient})

	assert.True(t, apperrors.Is(err, apperrors.ErrPolicyViolation))
}

func TestCanCancel_StrangerRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	apt := cancellableAppointment(f)

	f.patients.On("Get", ctx, f.patientID).Return(f.patient(), nil)

	err := f.svc.CanCancel(ctx, apt, model.Actor{UserID: uuid.New(), Role: model.RolePatient})

	assert.True(t, apperrors.Is(err, apperrors.ErrUnauthorized))
}

func TestCanCancel_StaffOfClinicAllowed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	apt := cancellableAppointment(f)

	f.patients.On("Get", ctx, f.patientID).Return(f.patient(), nil)
	f.settings.On("Get", ctx, f.clinicID).Return(&model.ClinicSettings{
		ClinicID:                f.clinicID,
		CancellationWindowHours: 24,
	}, nil)

	err := f.svc.CanCancel(ctx, apt, model.Actor{
		UserID:   uuid.New(),
		Role:     model.RoleReceptionist,
		ClinicID: f.clinicID,
	})

	assert.NoError(t, err)
}

func TestCancel_ClosesQueueEntryAndRecalculates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	apt := cancellableAppointment(f)
	patient := f.patient()
	actor := model.Actor{UserID: patient.UserID, Role: model.RolePatient}

	f.repo.On("Get", ctx, apt.ID).Return(apt, nil)
	f.patients.On("Get", ctx, f.patientID).Return(patient, nil)
	f.settings.On("Get", ctx, f.clinicID).Return(&model.ClinicSettings{
		ClinicID:                f.clinicID,
		CancellationWindowHours: 24,
	}, nil)
	f.providers.On("Get", ctx, f.providerID).Return(f.provider(), nil)
	f.tx.On("WithProviderDayLock", ctx, f.providerID, apt.Date).Return(nil)
	f.repo.On("Update", ctx, f.lockTx, apt).Return(nil)
	f.queueRepo.On("CloseByAppointment", ctx, f.lockTx, apt.ID).Return(nil)
	f.recalc.On("RecalculateTx", ctx, f.lockTx, f.providerID, 15, apt.Date).Return(nil)

	cancelled, err := f.svc.Cancel(ctx, apt.ID, actor, "feeling better")

	assert.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusCancelled, cancelled.Status)
	assert.Equal(t, "feeling better", *cancelled.CancellationReason)
	assert.Equal(t, actor.UserID, *cancelled.CancelledBy)
	f.queueRepo.AssertExpectations(t)
	f.recalc.AssertExpectations(t)
	assert.Len(t, f.broker.published, 2)
}

func TestCancel_StatusWriteFailureAborts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	apt := cancellableAppointment(f)
	patient := f.patient()
	actor := model.Actor{UserID: patient.UserID, Role: model.RolePatient}

	f.repo.On("Get", ctx, apt.ID).Return(apt, nil)
	f.patients.On("Get", ctx, f.patientID).Return(patient, nil)
	f.settings.On("Get", ctx, f.clinicID).Return(&model.ClinicSettings{
		ClinicID:                f.clinicID,
		CancellationWindowHours: 24,
	}, nil)
	f.providers.On("Get", ctx, f.providerID).Return(f.provider(), nil)
	f.tx.On("WithProviderDayLock", ctx, f.providerID, apt.Date).Return(nil)
	f.repo.On("Update", ctx, f.lockTx, apt).Return(errors.New("write conflict"))

	_, err := f.svc.Cancel(ctx, apt.ID, actor, "feeling better")

	assert.Error(t, err)
	f.queueRepo.AssertNotCalled(t, "CloseByAppointment", mock.Anything, mock.Anything, mock.Anything)
	assert.Empty(t, f.broker.published)
}

func TestReschedule_AssignsFreshNumberAndResetsStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	apt := cancellableAppointment(f)
	apt.QueueNumber = 5
	patient := f.patient()
	actor := model.Actor{UserID: patient.UserID, Role: model.RolePatient}

	newDate := time.Now().AddDate(0, 0, 7)

	f.repo.On("Get", ctx, apt.ID).Return(apt, nil)
	f.patients.On("Get", ctx, f.patientID).Return(patient, nil)
	f.settings.On("Get", ctx, f.clinicID).Return(&model.ClinicSettings{
		ClinicID:                f.clinicID,
		CancellationWindowHours: 24,
	}, nil)
	f.providers.On("Get", ctx, f.providerID).Return(f.provider(), nil)
	f.tx.On("WithProviderDayLock", ctx, f.providerID, mock.Anything).Return(nil)
	f.repo.On("HasActiveForPatientOnDate", ctx, mock.Anything, f.patientID, mock.Anything).Return(false, nil)
	f.repo.On("HasActiveAtSlot", ctx, mock.Anything, f.providerID, mock.Anything, "11:00").Return(false, nil)
	f.repo.On("CountActiveForProviderDate", ctx, mock.Anything, f.providerID, mock.Anything).Return(1, nil)
	f.repo.On("UpdateScheduleTx", ctx, mock.Anything, apt).Return(nil)

	updated, err := f.svc.Reschedule(ctx, apt.ID, actor, &model.RescheduleAppointmentRequest{
		NewDate: newDate.Format("2006-01-02"),
		NewTime: "11:00",
	})

	assert.NoError(t, err)
	assert.Equal(t, 2, updated.QueueNumber)
	assert.Equal(t, 15, updated.EstimatedWaitMinutes)
	assert.Equal(t, "11:00", updated.Time)
	assert.Equal(t, model.AppointmentStatusScheduled, updated.Status)
}

func TestEstimateWait(t *testing.T) {
	assert.Equal(t, 0, EstimateWait(1, 15))
	assert.Equal(t, 15, EstimateWait(2, 15))
	assert.Equal(t, 120, EstimateWait(5, 30))
	assert.Equal(t, 0, EstimateWait(0, 15))
}
