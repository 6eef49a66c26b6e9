package appointments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Appointment is a booking row. Rows are never updated by the bot; a row is
// only deleted when its owner abandons a booking whose calendar event failed.
type Appointment struct {
	ID        uuid.UUID `json:"id"`
	TenantID  string    `json:"tenant_id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Date      string    `json:"date"` // YYYY-MM-DD
	Time      string    `json:"time"` // HH:MM
	CreatedAt time.Time `json:"created_at"`
}

type rowQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Repository persists appointments in Postgres.
type Repository struct {
	pool rowQuerier
}

// NewRepository creates a repository backed by pgx pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	if pool == nil {
		panic("appointments: pgx pool required")
	}
	return &Repository{pool: pool}
}

func newRepositoryWithExec(exec rowQuerier) *Repository {
	if exec == nil {
		panic("appointments: exec required")
	}
	return &Repository{pool: exec}
}

// Exists reports whether the slot is already booked for the tenant.
func (r *Repository) Exists(ctx context.Context, tenantID, date, tm string) (bool, error) {
	query := `SELECT 1 FROM appointments WHERE tenant_id = $1 AND appt_date = $2 AND appt_time = $3`
	var exists int
	if err := r.pool.QueryRow(ctx, query, tenantID, date, tm).Scan(&exists); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("appointments: check slot: %w", err)
	}
	return true, nil
}

// Get returns the appointment holding the slot, or nil when the slot is free.
func (r *Repository) Get(ctx context.Context, tenantID, date, tm string) (*Appointment, error) {
	query := `
		SELECT id, tenant_id, user_id, name, appt_date, appt_time, created_at
		FROM appointments
		WHERE tenant_id = $1 AND appt_date = $2 AND appt_time = $3
	`
	var a Appointment
	err := r.pool.QueryRow(ctx, query, tenantID, date, tm).Scan(
		&a.ID, &a.TenantID, &a.UserID, &a.Name, &a.Date, &a.Time, &a.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("appointments: load slot: %w", err)
	}
	return &a, nil
}

// Insert writes the appointment, returning false if the slot is already taken.
func (r *Repository) Insert(ctx context.Context, a Appointment) (bool, error) {
	query := `
		INSERT INTO appointments (id, tenant_id, user_id, name, appt_date, appt_time, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (tenant_id, appt_date, appt_time) DO NOTHING
	`
	ct, err := r.pool.Exec(ctx, query, a.ID, a.TenantID, a.UserID, a.Name, a.Date, a.Time, a.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("appointments: insert: %w", err)
	}
	return ct.RowsAffected() > 0, nil
}

// Delete removes the slot's row when it belongs to userID and reports whether
// a row was removed.
func (r *Repository) Delete(ctx context.Context, tenantID, userID, date, tm string) (bool, error) {
	query := `
		DELETE FROM appointments
		WHERE tenant_id = $1 AND appt_date = $2 AND appt_time = $3 AND user_id = $4
	`
	ct, err := r.pool.Exec(ctx, query, tenantID, date, tm, userID)
	if err != nil {
		return false, fmt.Errorf("appointments: delete: %w", err)
	}
	return ct.RowsAffected() > 0, nil
}

// ListUpcoming returns the tenant's appointments on or after fromDate, soonest first.
func (r *Repository) ListUpcoming(ctx context.Context, tenantID, fromDate string, limit int) ([]Appointment, error) {
	query := `
		SELECT id, tenant_id, user_id, name, appt_date, appt_time, created_at
		FROM appointments
		WHERE tenant_id = $1 AND appt_date >= $2
		ORDER BY appt_date, appt_time
		LIMIT $3
	`
	rows, err := r.pool.Query(ctx, query, tenantID, fromDate, limit)
	if err != nil {
		return nil, fmt.Errorf("appointments: list: %w", err)
	}
	defer rows.Close()

	var out []Appointment
	for rows.Next() {
		var a Appointment
		if err := rows.Scan(&a.ID, &a.TenantID, &a.UserID, &a.Name, &a.Date, &a.Time, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("appointments: scan: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("appointments: list rows: %w", err)
	}
	return out, nil
}
