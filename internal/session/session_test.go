package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDraftMissing(t *testing.T) {
	assert.Equal(t, []string{"name", "date", "time"}, Draft{}.Missing())
	assert.Equal(t, []string{"time"}, Draft{Name: "Paul", Date: "2025-06-10"}.Missing())
	assert.Empty(t, Draft{Name: "Paul", Date: "2025-06-10", Time: "14:00"}.Missing())
	assert.True(t, Draft{Name: "Paul", Date: "2025-06-10", Time: "14:00"}.Complete())
	assert.True(t, Draft{}.IsEmpty())
}

func TestDraftApplyOnlyOverwritesWithValues(t *testing.T) {
	d := Draft{Name: "Paul", Date: "2025-06-10"}

	changed := d.Apply(Draft{Time: "14:00"})
	assert.True(t, changed)
	assert.Equal(t, Draft{Name: "Paul", Date: "2025-06-10", Time: "14:00"}, d)

	changed = d.Apply(Draft{Name: "Paul"})
	assert.False(t, changed, "same value is not a change")

	changed = d.Apply(Draft{})
	assert.False(t, changed)
	assert.Equal(t, "Paul", d.Name, "absent values never clear a field")

	changed = d.Apply(Draft{Time: "15:00"})
	assert.True(t, changed)
	assert.Equal(t, "15:00", d.Time)
}

func TestDraftIncrementalEqualsSingleShot(t *testing.T) {
	var stepwise Draft
	stepwise.Apply(Draft{Name: "Paul"})
	stepwise.Apply(Draft{Date: "2025-06-10"})
	stepwise.Apply(Draft{Time: "14:00"})

	var single Draft
	single.Apply(Draft{Name: "Paul", Date: "2025-06-10", Time: "14:00"})

	assert.Equal(t, single, stepwise)
}

func TestSessionReset(t *testing.T) {
	s := New("t", "u")
	s.Stage = StageConfirming
	s.Draft = Draft{Name: "Paul"}
	s.SuggestedTime = "15:00"

	s.Reset()
	assert.Equal(t, StageIdle, s.Stage)
	assert.True(t, s.Draft.IsEmpty())
	assert.Empty(t, s.SuggestedTime)
	assert.Equal(t, "t", s.TenantID)
}
