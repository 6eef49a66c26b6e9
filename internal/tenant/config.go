// Package tenant holds per-business configuration: opening hours, FAQ and calendar settings.
package tenant

import (
	"fmt"
	"strings"
	"time"
)

// DayHours represents the opening hours for a single day.
// Nil means the business is closed that day.
type DayHours struct {
	Open  string `json:"open"`  // "08:00" in 24-hour format
	Close string `json:"close"` // "18:00" in 24-hour format
}

// BusinessHours maps day names to their hours.
type BusinessHours struct {
	Monday    *DayHours `json:"monday,omitempty"`
	Tuesday   *DayHours `json:"tuesday,omitempty"`
	Wednesday *DayHours `json:"wednesday,omitempty"`
	Thursday  *DayHours `json:"thursday,omitempty"`
	Friday    *DayHours `json:"friday,omitempty"`
	Saturday  *DayHours `json:"saturday,omitempty"`
	Sunday    *DayHours `json:"sunday,omitempty"`
}

// Config holds tenant-specific configuration.
type Config struct {
	TenantID           string            `json:"tenant_id"`
	Name               string            `json:"name"`
	Timezone           string            `json:"timezone"` // e.g., "Europe/Paris"
	AppointmentMinutes int               `json:"appointment_minutes"`
	BusinessHours      BusinessHours     `json:"business_hours"`
	FAQ                map[string]string `json:"faq,omitempty"`
	// NotifyEmail receives a message for every committed booking. Empty disables it.
	NotifyEmail string `json:"notify_email,omitempty"`
	// CalendarID is the Google calendar bookings are written to once the tenant linked an account.
	CalendarID string `json:"calendar_id,omitempty"`
}

const (
	DefaultTimezone           = "Europe/Paris"
	DefaultAppointmentMinutes = 60
	DefaultCalendarID         = "primary"
)

// DefaultConfig returns the configuration seeded for a tenant seen for the first time.
func DefaultConfig(tenantID string) *Config {
	weekday := func() *DayHours { return &DayHours{Open: "08:00", Close: "18:00"} }
	return &Config{
		TenantID:           tenantID,
		Name:               "Garage " + tenantID,
		Timezone:           DefaultTimezone,
		AppointmentMinutes: DefaultAppointmentMinutes,
		BusinessHours: BusinessHours{
			Monday:    weekday(),
			Tuesday:   weekday(),
			Wednesday: weekday(),
			Thursday:  weekday(),
			Friday:    weekday(),
			Saturday:  &DayHours{Open: "09:00", Close: "13:00"},
			Sunday:    nil, // Closed
		},
		FAQ: map[string]string{
			"horaires": "Mon-Fri 08:00-18:00, Sat 09:00-13:00.",
			"adresse":  "Paris",
		},
		CalendarID: DefaultCalendarID,
	}
}

// Location resolves the tenant timezone, falling back to UTC when it is unknown.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// AppointmentDuration returns the length of one booking.
func (c *Config) AppointmentDuration() time.Duration {
	if c.AppointmentMinutes <= 0 {
		return DefaultAppointmentMinutes * time.Minute
	}
	return time.Duration(c.AppointmentMinutes) * time.Minute
}

// Validate checks the fields an admin may edit.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.TenantID) == "" {
		return fmt.Errorf("tenant: tenant_id required")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("tenant: invalid timezone %q", c.Timezone)
	}
	if c.AppointmentMinutes < 0 {
		return fmt.Errorf("tenant: appointment_minutes must be positive")
	}
	return c.BusinessHours.Validate()
}

// GetHoursForDay returns the hours for a given weekday (0=Sunday, 6=Saturday).
func (b *BusinessHours) GetHoursForDay(weekday time.Weekday) *DayHours {
	switch weekday {
	case time.Sunday:
		return b.Sunday
	case time.Monday:
		return b.Monday
	case time.Tuesday:
		return b.Tuesday
	case time.Wednesday:
		return b.Wednesday
	case time.Thursday:
		return b.Thursday
	case time.Friday:
		return b.Friday
	case time.Saturday:
		return b.Saturday
	default:
		return nil
	}
}

// Validate ensures every configured day has well-formed, ordered bounds.
func (b *BusinessHours) Validate() error {
	for _, wd := range weekOrder {
		h := b.GetHoursForDay(wd)
		if h == nil {
			continue
		}
		open, err := time.Parse("15:04", h.Open)
		if err != nil {
			return fmt.Errorf("tenant: %s open %q: expected HH:MM", wd, h.Open)
		}
		closeAt, err := time.Parse("15:04", h.Close)
		if err != nil {
			return fmt.Errorf("tenant: %s close %q: expected HH:MM", wd, h.Close)
		}
		if closeAt.Before(open) {
			return fmt.Errorf("tenant: %s closes before it opens", wd)
		}
	}
	return nil
}

var weekOrder = []time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday, time.Sunday,
}

// Summary renders the week compactly, merging consecutive days with the same hours,
// e.g. "Mon-Fri 08:00-18:00, Sat 09:00-13:00".
func (b *BusinessHours) Summary() string {
	var parts []string
	for i := 0; i < len(weekOrder); {
		h := b.GetHoursForDay(weekOrder[i])
		if h == nil {
			i++
			continue
		}
		j := i
		for j+1 < len(weekOrder) {
			next := b.GetHoursForDay(weekOrder[j+1])
			if next == nil || *next != *h {
				break
			}
			j++
		}
		days := shortDay(weekOrder[i])
		if j > i {
			days += "-" + shortDay(weekOrder[j])
		}
		parts = append(parts, fmt.Sprintf("%s %s-%s", days, h.Open, h.Close))
		i = j + 1
	}
	if len(parts) == 0 {
		return "by appointment only"
	}
	return strings.Join(parts, ", ")
}

func shortDay(wd time.Weekday) string {
	return wd.String()[:3]
}
