package roadmap

import (
	"fmt"

	"github.com/david/grant-advisor/internal/models"
)

// DaysRemaining counts days from today until date, clamped at zero so a past
// or same-day event reads D-0.
func DaysRemaining(date, today models.Date) int {
	return max(0, date.DaysSince(today))
}

// DDay formats a countdown as "D-n".
func DDay(days int) string {
	return fmt.Sprintf("D-%d", max(0, days))
}

// Countdown pairs an event with its countdown relative to a given day.
type Countdown struct {
	models.RoadmapEvent
	DaysRemaining int    `json:"days_remaining"`
	DDay          string `json:"d_day"`
}

// Countdowns computes fresh countdowns for every event, in roadmap order.
// today is explicit so the projector itself never reads the clock.
func Countdowns(r Roadmap, today models.Date) []Countdown {
	events := r.Events()
	out := make([]Countdown, 0, len(events))
	for _, ev := range events {
		days := DaysRemaining(ev.Date, today)
		out = append(out, Countdown{RoadmapEvent: ev, DaysRemaining: days, DDay: DDay(days)})
	}
	return out
}
