package conversation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExtractFields(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, mustLoad("Europe/Paris"))

	tests := []struct {
		name    string
		message string
		want    Fields
	}{
		{
			name:    "comma separated details",
			message: "Paul, 2025-06-10, 14:00",
			want:    Fields{Name: "Paul", Date: "2025-06-10", Time: "14:00", nameGuessed: true},
		},
		{
			name:    "self introduction",
			message: "Hi, my name is jean-pierre martin and I want tomorrow at 3pm",
			want:    Fields{Name: "Jean-Pierre Martin", Date: "2025-06-02", Time: "15:00"},
		},
		{
			name:    "french introduction",
			message: "Bonjour, je m'appelle Marie, demain 14h30",
			want:    Fields{Name: "Marie", Date: "2025-06-02", Time: "14:30"},
		},
		{
			name:    "day month with rollover",
			message: "le 15/03 à 9h",
			want:    Fields{Date: "2026-03-15", Time: "09:00"},
		},
		{
			name:    "day month year",
			message: "10/06/2025 à 10 heures",
			want:    Fields{Date: "2025-06-10", Time: "10:00"},
		},
		{
			name:    "after tomorrow wins over tomorrow",
			message: "après-demain 11:15",
			want:    Fields{Date: "2025-06-03", Time: "11:15"},
		},
		{
			name:    "impossible date ignored",
			message: "31/02 at 10:00",
			want:    Fields{Time: "10:00"},
		},
		{
			name:    "noon in am pm",
			message: "tomorrow 12pm",
			want:    Fields{Date: "2025-06-02", Time: "12:00"},
		},
		{
			name:    "midnight in am pm",
			message: "12:30 am",
			want:    Fields{Time: "00:30"},
		},
		{
			name:    "booking sentence has no name",
			message: "I want an appointment",
			want:    Fields{},
		},
		{
			name:    "confirmation word is not a name",
			message: "yes",
			want:    Fields{},
		},
		{
			name:    "weekday is not a name",
			message: "Monday",
			want:    Fields{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractFields(tt.message, now))
		})
	}
}

func TestTitleCase(t *testing.T) {
	assert.Equal(t, "Jean-Pierre", titleCase("JEAN-PIERRE"))
	assert.Equal(t, "Anne Marie", titleCase("anne marie"))
}
