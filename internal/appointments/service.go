package appointments

import (
	"context"
	"fmt"
	"time"

	"github.com/edgareichner01-sys/bot-rdv/pkg/logging"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

type repository interface {
	Get(ctx context.Context, tenantID, date, tm string) (*Appointment, error)
	Insert(ctx context.Context, a Appointment) (bool, error)
	ListUpcoming(ctx context.Context, tenantID, fromDate string, limit int) ([]Appointment, error)
	Delete(ctx context.Context, tenantID, userID, date, tm string) (bool, error)
}

// BookRequest describes the slot a user confirmed.
type BookRequest struct {
	TenantID string
	UserID   string
	Name     string
	Date     string
	Time     string
}

// Service is the appointment store used by the conversation engine.
type Service struct {
	repo   repository
	logger *logging.Logger
	tracer trace.Tracer
	now    func() time.Time
}

// NewService wires the repository with logging and tracing.
func NewService(repo repository, logger *logging.Logger) *Service {
	if repo == nil {
		panic("appointments: repository required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		repo:   repo,
		logger: logger,
		tracer: otel.Tracer("botrdv.internal.appointments"),
		now:    time.Now,
	}
}

// Holder returns the appointment occupying the slot, or nil when it is free.
func (s *Service) Holder(ctx context.Context, tenantID, date, tm string) (*Appointment, error) {
	ctx, span := s.tracer.Start(ctx, "appointments.holder")
	defer span.End()

	a, err := s.repo.Get(ctx, tenantID, date, tm)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return a, nil
}

// Book inserts the appointment idempotently. When the slot is already taken it
// returns the existing row with created=false; callers compare its UserID to
// tell a retried commit from a genuine conflict.
func (s *Service) Book(ctx context.Context, req BookRequest) (*Appointment, bool, error) {
	ctx, span := s.tracer.Start(ctx, "appointments.book")
	defer span.End()

	a := Appointment{
		ID:        uuid.New(),
		TenantID:  req.TenantID,
		UserID:    req.UserID,
		Name:      req.Name,
		Date:      req.Date,
		Time:      req.Time,
		CreatedAt: s.now().UTC(),
	}
	created, err := s.repo.Insert(ctx, a)
	if err != nil {
		span.RecordError(err)
		return nil, false, err
	}
	if created {
		s.logger.Info("appointment booked",
			"tenant_id", req.TenantID,
			"user_id", req.UserID,
			"date", req.Date,
			"time", req.Time,
		)
		return &a, true, nil
	}

	existing, err := s.repo.Get(ctx, req.TenantID, req.Date, req.Time)
	if err != nil {
		span.RecordError(err)
		return nil, false, err
	}
	if existing == nil {
		// The conflicting row vanished between insert and read: its owner
		// released a half-finished booking, or it was cleaned up by hand.
		return nil, false, fmt.Errorf("appointments: slot %s %s conflicted but no row found", req.Date, req.Time)
	}
	s.logger.Info("appointment slot already taken",
		"tenant_id", req.TenantID,
		"user_id", req.UserID,
		"holder_user_id", existing.UserID,
		"date", req.Date,
		"time", req.Time,
	)
	return existing, false, nil
}

// Release deletes the user's own row for a slot whose booking was never
// finished. Rows held by other users are left alone.
func (s *Service) Release(ctx context.Context, tenantID, userID, date, tm string) error {
	ctx, span := s.tracer.Start(ctx, "appointments.release")
	defer span.End()

	released, err := s.repo.Delete(ctx, tenantID, userID, date, tm)
	if err != nil {
		span.RecordError(err)
		return err
	}
	s.logger.Info("appointment slot released",
		"tenant_id", tenantID,
		"user_id", userID,
		"date", date,
		"time", tm,
		"released", released,
	)
	return nil
}

// ListUpcoming returns upcoming appointments for the admin API.
func (s *Service) ListUpcoming(ctx context.Context, tenantID, fromDate string, limit int) ([]Appointment, error) {
	ctx, span := s.tracer.Start(ctx, "appointments.list")
	defer span.End()

	if limit <= 0 || limit > 500 {
		limit = 100
	}
	out, err := s.repo.ListUpcoming(ctx, tenantID, fromDate, limit)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return out, nil
}
