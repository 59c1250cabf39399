package ingest

import (
	"strings"

	"github.com/david/grant-advisor/internal/models"
)

type StatusDecision struct {
	Status models.Status
	Reason string
}

// resultsKeywords mark notices that publish selection results rather than an
// open call. They are matched against title and source status, never the URL.
var resultsKeywords = []string{
	"선정결과",
	"선정 결과",
	"최종 선정",
	"결과 발표",
	"결과발표",
	"합격자",
}

// ComputeStatus derives the application window state from the announcement's
// dates and the status text the source published. today is explicit so the
// decision is reproducible.
func ComputeStatus(ann models.Announcement, sourceStatus string, today models.Date) StatusDecision {
	if isResultsNotice(ann.Title, sourceStatus) {
		return StatusDecision{Status: models.StatusClosed, Reason: "results_notice"}
	}

	mapped := mapSourceStatus(sourceStatus)

	if mapped == models.StatusClosed {
		if ann.DueDate != nil && !ann.DueDate.Before(today) {
			return StatusDecision{Status: models.StatusUnknown, Reason: "inconsistent_dates"}
		}
		return StatusDecision{Status: models.StatusClosed, Reason: "source_closed"}
	}

	if ann.OpenDate != nil && ann.OpenDate.After(today) {
		return StatusDecision{Status: models.StatusUpcoming, Reason: "open_date_in_future"}
	}

	if ann.DueDate != nil {
		if ann.DueDate.Before(today) {
			return StatusDecision{Status: models.StatusClosed, Reason: "due_date_passed"}
		}
		return StatusDecision{Status: models.StatusOpen, Reason: "future_due_date"}
	}

	switch mapped {
	case models.StatusUpcoming:
		return StatusDecision{Status: models.StatusUpcoming, Reason: "source_upcoming"}
	case models.StatusOpen:
		return StatusDecision{Status: models.StatusOpen, Reason: "source_open"}
	}
	return StatusDecision{Status: models.StatusUnknown, Reason: "missing_due_date"}
}

func isResultsNotice(title, sourceStatus string) bool {
	text := title + " " + sourceStatus
	for _, kw := range resultsKeywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

func mapSourceStatus(raw string) models.Status {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return ""
	}

	// "접수마감" must win over the generic "접수" open hint.
	for _, hint := range []string{"마감", "종료", "closed", "expired"} {
		if strings.Contains(raw, hint) {
			return models.StatusClosed
		}
	}
	for _, hint := range []string{"예정", "upcoming", "forthcoming"} {
		if strings.Contains(raw, hint) {
			return models.StatusUpcoming
		}
	}
	for _, hint := range []string{"접수중", "모집중", "진행", "지원 가능", "open", "active", "y"} {
		if raw == hint || (len(hint) > 1 && strings.Contains(raw, hint)) {
			return models.StatusOpen
		}
	}
	return ""
}
