package ingest

import (
	"testing"
	"time"

	"github.com/david/grant-advisor/internal/models"
)

func datePtr(y int, m time.Month, d int) *models.Date {
	v := models.NewDate(y, m, d)
	return &v
}

func TestComputeStatus(t *testing.T) {
	today := models.NewDate(2025, time.September, 10)

	tests := []struct {
		name         string
		ann          models.Announcement
		sourceStatus string
		wantStatus   models.Status
		wantReason   string
	}{
		{
			name:       "results notice is closed",
			ann:        models.Announcement{Title: "2025 예비창업패키지 최종 선정 결과 발표", DueDate: datePtr(2025, time.December, 1)},
			wantStatus: models.StatusClosed,
			wantReason: "results_notice",
		},
		{
			name:         "source closed with past due date",
			ann:          models.Announcement{DueDate: datePtr(2025, time.September, 1)},
			sourceStatus: "접수마감",
			wantStatus:   models.StatusClosed,
			wantReason:   "source_closed",
		},
		{
			name:         "source closed contradicts future due date",
			ann:          models.Announcement{DueDate: datePtr(2025, time.September, 30)},
			sourceStatus: "마감",
			wantStatus:   models.StatusUnknown,
			wantReason:   "inconsistent_dates",
		},
		{
			name:       "open date in the future",
			ann:        models.Announcement{OpenDate: datePtr(2025, time.October, 1), DueDate: datePtr(2025, time.October, 20)},
			wantStatus: models.StatusUpcoming,
			wantReason: "open_date_in_future",
		},
		{
			name:       "past due date",
			ann:        models.Announcement{DueDate: datePtr(2025, time.September, 9)},
			wantStatus: models.StatusClosed,
			wantReason: "due_date_passed",
		},
		{
			name:       "due today is still open",
			ann:        models.Announcement{DueDate: datePtr(2025, time.September, 10)},
			wantStatus: models.StatusOpen,
			wantReason: "future_due_date",
		},
		{
			name:         "source upcoming without dates",
			sourceStatus: "접수예정",
			wantStatus:   models.StatusUpcoming,
			wantReason:   "source_upcoming",
		},
		{
			name:         "k-startup recruiting flag",
			sourceStatus: "Y",
			wantStatus:   models.StatusOpen,
			wantReason:   "source_open",
		},
		{
			name:       "nothing known",
			wantStatus: models.StatusUnknown,
			wantReason: "missing_due_date",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeStatus(tt.ann, tt.sourceStatus, today)
			if got.Status != tt.wantStatus {
				t.Fatalf("status = %s, want %s", got.Status, tt.wantStatus)
			}
			if got.Reason != tt.wantReason {
				t.Fatalf("reason = %s, want %s", got.Reason, tt.wantReason)
			}
		})
	}
}

func TestMapSourceStatus(t *testing.T) {
	tests := map[string]models.Status{
		"":        "",
		"접수중":     models.StatusOpen,
		"모집중":     models.StatusOpen,
		"접수마감":    models.StatusClosed,
		"Closed":  models.StatusClosed,
		"공고예정":    models.StatusUpcoming,
		"y":       models.StatusOpen,
		"N":       "",
		"unknown": "",
	}
	for in, want := range tests {
		if got := mapSourceStatus(in); got != want {
			t.Errorf("mapSourceStatus(%q) = %q, want %q", in, got, want)
		}
	}
}
