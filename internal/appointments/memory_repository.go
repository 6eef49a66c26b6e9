package appointments

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepository keeps appointments in process and enforces the same
// (tenant, date, time) uniqueness as the SQL table. Used by the local chat
// CLI and tests.
type MemoryRepository struct {
	mu   sync.Mutex
	rows map[string]Appointment
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{rows: map[string]Appointment{}}
}

func memoryKey(tenantID, date, tm string) string {
	return tenantID + "|" + date + "|" + tm
}

func (m *MemoryRepository) Get(_ context.Context, tenantID, date, tm string) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.rows[memoryKey(tenantID, date, tm)]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (m *MemoryRepository) Insert(_ context.Context, a Appointment) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := memoryKey(a.TenantID, a.Date, a.Time)
	if _, taken := m.rows[key]; taken {
		return false, nil
	}
	m.rows[key] = a
	return true, nil
}

func (m *MemoryRepository) Delete(_ context.Context, tenantID, userID, date, tm string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := memoryKey(tenantID, date, tm)
	a, ok := m.rows[key]
	if !ok || a.UserID != userID {
		return false, nil
	}
	delete(m.rows, key)
	return true, nil
}

func (m *MemoryRepository) ListUpcoming(_ context.Context, tenantID, fromDate string, limit int) ([]Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Appointment
	for _, a := range m.rows {
		if a.TenantID == tenantID && a.Date >= fromDate {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].Time < out[j].Time
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Count returns the number of stored appointments for a tenant.
func (m *MemoryRepository) Count(tenantID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, a := range m.rows {
		if a.TenantID == tenantID {
			n++
		}
	}
	return n
}
