// Package events manages school announcements and the guardian-side view
// derived from them. Relevance of an event to a guardian is computed on
// read, never stored.
package events

import "github.com/schoolgate/backend/internal/models"

// RelevantTo reports whether an event concerns a guardian, given the
// students of that school linked to the guardian. An event with no cohort
// concerns every guardian with at least one linked student there; a
// cohort-scoped event requires an exact, case-sensitive cohort match. With
// no linked students nothing is relevant.
func RelevantTo(event models.SchoolEvent, linked []models.Student) bool {
	if len(linked) == 0 {
		return false
	}
	if event.ClassName == "" {
		return true
	}
	for _, s := range linked {
		if s.ClassName == event.ClassName {
			return true
		}
	}
	return false
}
