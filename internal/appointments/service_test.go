package appointments

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/edgareichner01-sys/bot-rdv/pkg/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memRepo enforces the (tenant, date, time) unique constraint in memory.
type memRepo struct {
	mu        sync.Mutex
	rows      map[string]Appointment
	insertErr error
}

func newMemRepo() *memRepo { return &memRepo{rows: map[string]Appointment{}} }

func slotKey(tenantID, date, tm string) string { return tenantID + "|" + date + "|" + tm }

func (m *memRepo) Get(_ context.Context, tenantID, date, tm string) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.rows[slotKey(tenantID, date, tm)]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (m *memRepo) Insert(_ context.Context, a Appointment) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return false, m.insertErr
	}
	k := slotKey(a.TenantID, a.Date, a.Time)
	if _, ok := m.rows[k]; ok {
		return false, nil
	}
	m.rows[k] = a
	return true, nil
}

func (m *memRepo) ListUpcoming(_ context.Context, tenantID, fromDate string, limit int) ([]Appointment, error) {
	var out []Appointment
	for _, a := range m.rows {
		if a.TenantID == tenantID && a.Date >= fromDate {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memRepo) Delete(_ context.Context, tenantID, userID, date, tm string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := slotKey(tenantID, date, tm)
	if a, ok := m.rows[k]; !ok || a.UserID != userID {
		return false, nil
	}
	delete(m.rows, k)
	return true, nil
}

func TestServiceBookIsIdempotent(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, logging.New("error"))
	ctx := context.Background()
	req := BookRequest{TenantID: "garage", UserID: "user-1", Name: "Paul", Date: "2025-06-10", Time: "14:00"}

	first, created, err := svc.Book(ctx, req)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "Paul", first.Name)

	again, created, err := svc.Book(ctx, req)
	require.NoError(t, err)
	assert.False(t, created, "second submission must not create a second row")
	assert.Equal(t, first.ID, again.ID)
	assert.Len(t, repo.rows, 1)
}

func TestServiceBookReportsOtherHolder(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, logging.New("error"))
	ctx := context.Background()

	_, _, err := svc.Book(ctx, BookRequest{TenantID: "garage", UserID: "user-d", Name: "Dana", Date: "2025-06-10", Time: "14:00"})
	require.NoError(t, err)

	holder, created, err := svc.Book(ctx, BookRequest{TenantID: "garage", UserID: "user-c", Name: "Carl", Date: "2025-06-10", Time: "14:00"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "user-d", holder.UserID)
}

func TestServiceBookSameSlotOtherTenant(t *testing.T) {
	svc := NewService(newMemRepo(), logging.New("error"))
	ctx := context.Background()

	_, created, err := svc.Book(ctx, BookRequest{TenantID: "a", UserID: "u", Name: "Paul", Date: "2025-06-10", Time: "14:00"})
	require.NoError(t, err)
	assert.True(t, created)

	_, created, err = svc.Book(ctx, BookRequest{TenantID: "b", UserID: "u", Name: "Paul", Date: "2025-06-10", Time: "14:00"})
	require.NoError(t, err)
	assert.True(t, created)
}

func TestServiceBookPropagatesErrors(t *testing.T) {
	repo := newMemRepo()
	repo.insertErr = errors.New("db down")
	svc := NewService(repo, logging.New("error"))

	_, _, err := svc.Book(context.Background(), BookRequest{TenantID: "garage", UserID: "u", Name: "Paul", Date: "2025-06-10", Time: "14:00"})
	assert.Error(t, err)
}

func TestServiceHolder(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, logging.New("error"))
	ctx := context.Background()

	a, err := svc.Holder(ctx, "garage", "2025-06-10", "14:00")
	require.NoError(t, err)
	assert.Nil(t, a)

	_, _, err = svc.Book(ctx, BookRequest{TenantID: "garage", UserID: "u", Name: "Paul", Date: "2025-06-10", Time: "14:00"})
	require.NoError(t, err)
	a, err = svc.Holder(ctx, "garage", "2025-06-10", "14:00")
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Equal(t, "u", a.UserID)
}

func TestServiceReleaseOnlyFreesOwnRow(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, logging.New("error"))
	ctx := context.Background()

	_, _, err := svc.Book(ctx, BookRequest{TenantID: "garage", UserID: "u1", Name: "Paul", Date: "2025-06-10", Time: "14:00"})
	require.NoError(t, err)

	require.NoError(t, svc.Release(ctx, "garage", "u2", "2025-06-10", "14:00"))
	assert.Len(t, repo.rows, 1, "another user's release must not free the slot")

	require.NoError(t, svc.Release(ctx, "garage", "u1", "2025-06-10", "14:00"))
	holder, err := svc.Holder(ctx, "garage", "2025-06-10", "14:00")
	require.NoError(t, err)
	assert.Nil(t, holder)

	_, created, err := svc.Book(ctx, BookRequest{TenantID: "garage", UserID: "u2", Name: "Marie", Date: "2025-06-10", Time: "14:00"})
	require.NoError(t, err)
	assert.True(t, created)
}
