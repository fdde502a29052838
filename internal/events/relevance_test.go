package events

import (
	"testing"

	"github.com/schoolgate/backend/internal/models"
)

func TestRelevantTo(t *testing.T) {
	linked := []models.Student{
		{ID: 1, Name: "Ana", ClassName: "3A"},
		{ID: 2, Name: "Bruno", ClassName: "5B"},
	}

	tests := []struct {
		name   string
		event  models.SchoolEvent
		linked []models.Student
		want   bool
	}{
		{
			name:   "school-wide event with linked students",
			event:  models.SchoolEvent{Title: "Open Day"},
			linked: linked,
			want:   true,
		},
		{
			name:   "school-wide event with no linked students",
			event:  models.SchoolEvent{Title: "Open Day"},
			linked: nil,
			want:   false,
		},
		{
			name:   "cohort match",
			event:  models.SchoolEvent{Title: "Trip", ClassName: "5B"},
			linked: linked,
			want:   true,
		},
		{
			name:   "cohort mismatch",
			event:  models.SchoolEvent{Title: "Trip", ClassName: "6C"},
			linked: linked,
			want:   false,
		},
		{
			name:   "cohort comparison is case sensitive",
			event:  models.SchoolEvent{Title: "Trip", ClassName: "3a"},
			linked: linked,
			want:   false,
		},
		{
			name:   "cohort event with no linked students",
			event:  models.SchoolEvent{Title: "Trip", ClassName: "3A"},
			linked: []models.Student{},
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RelevantTo(tt.event, tt.linked); got != tt.want {
				t.Fatalf("RelevantTo() = %v, want %v", got, tt.want)
			}
		})
	}
}
