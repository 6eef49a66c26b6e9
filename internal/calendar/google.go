// Package calendar checks and writes bookings to a tenant's Google Calendar.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/edgareichner01-sys/bot-rdv/pkg/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// ErrNotConnected means the tenant never linked a Google account.
var ErrNotConnected = errors.New("calendar: tenant has no linked calendar")

// eventsAPI is the slice of the Calendar API the service needs.
type eventsAPI interface {
	List(ctx context.Context, calendarID string, timeMin, timeMax time.Time) ([]*gcal.Event, error)
	Insert(ctx context.Context, calendarID string, event *gcal.Event) (*gcal.Event, error)
}

// clientFactory builds an authorized API client for one tenant.
type clientFactory func(ctx context.Context, tenantID string) (eventsAPI, error)

// SlotQuery identifies the interval to check. Start carries the tenant's location.
type SlotQuery struct {
	TenantID   string
	CalendarID string
	Start      time.Time
	Duration   time.Duration
}

// EventRequest describes the event written when a booking is committed.
type EventRequest struct {
	TenantID    string
	CalendarID  string
	Summary     string
	Description string
	Start       time.Time
	Duration    time.Duration
}

// Service talks to Google Calendar on behalf of tenants.
type Service struct {
	clients clientFactory
	logger  *logging.Logger
	tracer  trace.Tracer
}

// NewService creates a calendar service that authorizes each tenant with its
// stored OAuth token. Refreshed tokens are written back to tokens.
func NewService(oauthCfg *oauth2.Config, tokens TokenStore, logger *logging.Logger) *Service {
	if oauthCfg == nil || tokens == nil {
		panic("calendar: oauth config and token store required")
	}
	factory := func(ctx context.Context, tenantID string) (eventsAPI, error) {
		tok, err := tokens.Load(ctx, tenantID)
		if err != nil {
			return nil, err
		}
		// The token source outlives the request, so it must not inherit its deadline.
		ts := newPersistingTokenSource(oauthCfg.TokenSource(context.Background(), tok), tokens, tenantID, tok, logger)
		svc, err := gcal.NewService(ctx, option.WithTokenSource(ts))
		if err != nil {
			return nil, fmt.Errorf("calendar: build client: %w", err)
		}
		return &googleEvents{svc: svc}, nil
	}
	return newServiceWithFactory(factory, logger)
}

func newServiceWithFactory(factory clientFactory, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		clients: factory,
		logger:  logger,
		tracer:  otel.Tracer("botrdv.internal.calendar"),
	}
}

// IsSlotAvailable reports whether [Start, Start+Duration) is free. All-day events
// block the whole date; timed events block on any overlap.
func (s *Service) IsSlotAvailable(ctx context.Context, q SlotQuery) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "calendar.is_slot_available")
	defer span.End()

	api, err := s.clients(ctx, q.TenantID)
	if err != nil {
		if !errors.Is(err, ErrNotConnected) {
			span.RecordError(err)
		}
		return false, err
	}

	loc := q.Start.Location()
	y, m, d := q.Start.Date()
	dayStart := time.Date(y, m, d, 0, 0, 0, 0, loc)
	dayEnd := dayStart.AddDate(0, 0, 1)
	reqEnd := q.Start.Add(q.Duration)
	date := q.Start.Format("2006-01-02")

	events, err := api.List(ctx, calendarIDOrPrimary(q.CalendarID), dayStart, dayEnd)
	if err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("calendar: list events: %w", err)
	}

	for _, ev := range events {
		if ev == nil || ev.Start == nil || ev.Status == "cancelled" || ev.Transparency == "transparent" {
			continue
		}
		if ev.Start.Date != "" {
			if allDayCovers(ev, date) {
				return false, nil
			}
			continue
		}
		if ev.End == nil {
			continue
		}
		evStart, err := time.Parse(time.RFC3339, ev.Start.DateTime)
		if err != nil {
			continue
		}
		evEnd, err := time.Parse(time.RFC3339, ev.End.DateTime)
		if err != nil {
			continue
		}
		if q.Start.Before(evEnd) && reqEnd.After(evStart) {
			return false, nil
		}
	}
	return true, nil
}

// allDayCovers reports whether an all-day event spans date. End dates are exclusive.
func allDayCovers(ev *gcal.Event, date string) bool {
	if ev.End == nil || ev.End.Date == "" {
		return ev.Start.Date == date
	}
	return ev.Start.Date <= date && date < ev.End.Date
}

// CreateEvent writes the booking and returns the event's web link.
func (s *Service) CreateEvent(ctx context.Context, req EventRequest) (string, error) {
	ctx, span := s.tracer.Start(ctx, "calendar.create_event")
	defer span.End()

	api, err := s.clients(ctx, req.TenantID)
	if err != nil {
		if !errors.Is(err, ErrNotConnected) {
			span.RecordError(err)
		}
		return "", err
	}

	tz := req.Start.Location().String()
	end := req.Start.Add(req.Duration)
	event := &gcal.Event{
		Summary:     req.Summary,
		Description: req.Description,
		Start:       &gcal.EventDateTime{DateTime: req.Start.Format(time.RFC3339), TimeZone: tz},
		End:         &gcal.EventDateTime{DateTime: end.Format(time.RFC3339), TimeZone: tz},
	}

	created, err := api.Insert(ctx, calendarIDOrPrimary(req.CalendarID), event)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("calendar: insert event: %w", err)
	}
	s.logger.Info("calendar event created", "tenant_id", req.TenantID, "event_id", created.Id)
	return created.HtmlLink, nil
}

func calendarIDOrPrimary(id string) string {
	if id == "" {
		return "primary"
	}
	return id
}

// googleEvents adapts the generated Calendar client to eventsAPI.
type googleEvents struct {
	svc *gcal.Service
}

func (g *googleEvents) List(ctx context.Context, calendarID string, timeMin, timeMax time.Time) ([]*gcal.Event, error) {
	resp, err := g.svc.Events.List(calendarID).
		TimeMin(timeMin.Format(time.RFC3339)).
		TimeMax(timeMax.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		Context(ctx).
		Do()
	if err != nil {
		return nil, err
	}
	return resp.Items, nil
}

func (g *googleEvents) Insert(ctx context.Context, calendarID string, event *gcal.Event) (*gcal.Event, error) {
	return g.svc.Events.Insert(calendarID, event).Context(ctx).Do()
}
