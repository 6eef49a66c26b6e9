// Package availability answers whether a slot can still be booked, combining
// the local appointment table with the tenant's external calendar.
package availability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/edgareichner01-sys/bot-rdv/internal/appointments"
	"github.com/edgareichner01-sys/bot-rdv/internal/calendar"
	"github.com/edgareichner01-sys/bot-rdv/pkg/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const defaultTimeout = 5 * time.Second

type holderLookup interface {
	Holder(ctx context.Context, tenantID, date, tm string) (*appointments.Appointment, error)
}

type calendarChecker interface {
	IsSlotAvailable(ctx context.Context, q calendar.SlotQuery) (bool, error)
}

// Query is one candidate slot. Date is YYYY-MM-DD and Time is HH:MM in Location.
// OwnUserID, when set, names a user resuming a partially committed booking:
// a local row held by that user does not block.
type Query struct {
	TenantID   string
	OwnUserID  string
	Date       string
	Time       string
	Location   *time.Location
	Duration   time.Duration
	CalendarID string
}

// Oracle checks both data sources concurrently and fails closed.
type Oracle struct {
	local    holderLookup
	calendar calendarChecker
	timeout  time.Duration
	logger   *logging.Logger
	tracer   trace.Tracer
}

// NewOracle creates an oracle. cal may be nil when no calendar integration is configured.
func NewOracle(local holderLookup, cal calendarChecker, timeout time.Duration, logger *logging.Logger) *Oracle {
	if local == nil {
		panic("availability: local appointment store required")
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Oracle{
		local:    local,
		calendar: cal,
		timeout:  timeout,
		logger:   logger,
		tracer:   otel.Tracer("botrdv.internal.availability"),
	}
}

// Check reports whether the slot is free. Any error or timeout yields false
// together with the error.
func (o *Oracle) Check(ctx context.Context, q Query) (bool, error) {
	ctx, span := o.tracer.Start(ctx, "availability.check", trace.WithAttributes(
		attribute.String("tenant_id", q.TenantID),
		attribute.String("date", q.Date),
		attribute.String("time", q.Time),
	))
	defer span.End()

	loc := q.Location
	if loc == nil {
		loc = time.UTC
	}
	start, err := time.ParseInLocation("2006-01-02 15:04", q.Date+" "+q.Time, loc)
	if err != nil {
		return false, fmt.Errorf("availability: parse slot: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	var localFree, calendarFree bool
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		holder, err := o.local.Holder(gctx, q.TenantID, q.Date, q.Time)
		if err != nil {
			return fmt.Errorf("availability: local lookup: %w", err)
		}
		localFree = holder == nil || (q.OwnUserID != "" && holder.UserID == q.OwnUserID)
		return nil
	})

	g.Go(func() error {
		if o.calendar == nil {
			calendarFree = true
			return nil
		}
		free, err := o.calendar.IsSlotAvailable(gctx, calendar.SlotQuery{
			TenantID:   q.TenantID,
			CalendarID: q.CalendarID,
			Start:      start,
			Duration:   q.Duration,
		})
		if errors.Is(err, calendar.ErrNotConnected) {
			calendarFree = true
			return nil
		}
		if err != nil {
			return fmt.Errorf("availability: calendar lookup: %w", err)
		}
		calendarFree = free
		return nil
	})

	if err := g.Wait(); err != nil {
		span.RecordError(err)
		o.logger.Warn("availability check failed, treating slot as taken",
			"tenant_id", q.TenantID,
			"date", q.Date,
			"time", q.Time,
			"error", err,
		)
		return false, err
	}
	// A source may have answered after the deadline fired but before Wait observed it.
	if err := ctx.Err(); err != nil {
		return false, fmt.Errorf("availability: %w", err)
	}

	free := localFree && calendarFree
	span.SetAttributes(attribute.Bool("available", free))
	return free, nil
}
