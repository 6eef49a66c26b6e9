// Package session keeps the per-(tenant, user) booking state between chat turns.
package session

import (
	"context"
	"errors"
	"time"
)

// Stage is the session's position in the booking flow.
type Stage string

const (
	StageIdle       Stage = "idle"
	StageCollecting Stage = "collecting"
	StageConfirming Stage = "confirming"
)

// Field names as they are reported to users and logs.
const (
	FieldName = "name"
	FieldDate = "date"
	FieldTime = "time"
)

// Draft is the partially filled appointment request. An empty string means the
// field is absent. Date is YYYY-MM-DD and Time is HH:MM once validated.
type Draft struct {
	Name string `json:"name,omitempty"`
	Date string `json:"date,omitempty"`
	Time string `json:"time,omitempty"`
}

// Complete reports whether all three fields are present.
func (d Draft) Complete() bool {
	return d.Name != "" && d.Date != "" && d.Time != ""
}

// IsEmpty reports whether no field is present.
func (d Draft) IsEmpty() bool {
	return d.Name == "" && d.Date == "" && d.Time == ""
}

// Missing lists absent fields in the order they are asked for.
func (d Draft) Missing() []string {
	var missing []string
	if d.Name == "" {
		missing = append(missing, FieldName)
	}
	if d.Date == "" {
		missing = append(missing, FieldDate)
	}
	if d.Time == "" {
		missing = append(missing, FieldTime)
	}
	return missing
}

// Apply overwrites fields with the non-empty values of p and reports whether
// any stored value actually changed.
func (d *Draft) Apply(p Draft) bool {
	changed := false
	set := func(dst *string, v string) {
		if v != "" && v != *dst {
			*dst = v
			changed = true
		}
	}
	set(&d.Name, p.Name)
	set(&d.Date, p.Date)
	set(&d.Time, p.Time)
	return changed
}

// Session is the state stored for one (tenant, user) pair.
type Session struct {
	TenantID string `json:"tenant_id"`
	UserID   string `json:"user_id"`
	Stage    Stage  `json:"stage"`
	Draft    Draft  `json:"draft"`
	// SuggestedTime is the alternative slot offered after a conflict. A plain
	// "yes" while collecting accepts it.
	SuggestedTime string `json:"suggested_time,omitempty"`
	// PendingCommit is set once the appointment row is written but the
	// calendar event is not. The next confirmation resumes from there.
	PendingCommit bool `json:"pending_commit,omitempty"`
	// Held is the slot of the row written for a pending commit. It is
	// released when the user cancels or changes the draft.
	Held      *Draft    `json:"held,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New returns an idle session with an empty draft.
func New(tenantID, userID string) *Session {
	return &Session{TenantID: tenantID, UserID: userID, Stage: StageIdle}
}

// Reset returns the session to idle and drops the draft.
func (s *Session) Reset() {
	s.Stage = StageIdle
	s.Draft = Draft{}
	s.SuggestedTime = ""
	s.PendingCommit = false
	s.Held = nil
}

// ErrLockTimeout is returned when another turn for the same user holds the lock too long.
var ErrLockTimeout = errors.New("session: lock wait exceeded")

// Store persists sessions. Get never returns a nil session for a missing key;
// it returns a fresh idle one instead.
type Store interface {
	Get(ctx context.Context, tenantID, userID string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Clear(ctx context.Context, tenantID, userID string) error
	// Lock serializes turns for one user. The returned func releases the lock.
	Lock(ctx context.Context, tenantID, userID string) (func(), error)
}
