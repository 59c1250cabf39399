package roadmap

import (
	"sort"
	"strconv"
	"strings"

	"github.com/david/grant-advisor/internal/models"
)

// Roadmap buckets events by month and groups months by quarter.
// Slices inside both maps are already ordered.
type Roadmap struct {
	Months   map[string][]models.RoadmapEvent `json:"months"`
	Quarters map[string][]string              `json:"quarters"`
}

// Project turns approved announcements into a calendar. An announcement emits
// an infoSession event and a dueDate event when the respective date is set.
// The result depends only on the input, so repeated calls are identical.
func Project(approved []models.Announcement) Roadmap {
	months := make(map[string][]models.RoadmapEvent)
	for _, ann := range approved {
		if ann.InfoSessionDate != nil {
			ev := newEvent(models.EventInfoSession, ann, *ann.InfoSessionDate)
			months[ev.MonthKey] = append(months[ev.MonthKey], ev)
		}
		if ann.DueDate != nil {
			ev := newEvent(models.EventDueDate, ann, *ann.DueDate)
			months[ev.MonthKey] = append(months[ev.MonthKey], ev)
		}
	}
	return build(months)
}

func newEvent(kind models.EventKind, ann models.Announcement, d models.Date) models.RoadmapEvent {
	return models.RoadmapEvent{
		Kind:           kind,
		AnnouncementID: ann.ID,
		Title:          ann.Title,
		Date:           d,
		MonthKey:       d.MonthKey(),
		QuarterKey:     d.QuarterKey(),
	}
}

// build sorts every month bucket and derives the quarter index.
func build(months map[string][]models.RoadmapEvent) Roadmap {
	r := Roadmap{
		Months:   make(map[string][]models.RoadmapEvent, len(months)),
		Quarters: make(map[string][]string),
	}
	for key, events := range months {
		sorted := append([]models.RoadmapEvent(nil), events...)
		sortEvents(sorted)
		r.Months[key] = sorted
	}
	for _, key := range r.MonthKeys() {
		q := r.Months[key][0].QuarterKey
		r.Quarters[q] = append(r.Quarters[q], key)
	}
	return r
}

func sortEvents(events []models.RoadmapEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		a, b := events[i], events[j]
		if c := a.Date.Compare(b.Date); c != 0 {
			return c < 0
		}
		if a.Kind != b.Kind {
			return a.Kind == models.EventInfoSession
		}
		if a.AnnouncementID != b.AnnouncementID {
			return a.AnnouncementID < b.AnnouncementID
		}
		return a.Title < b.Title
	})
}

// MonthKeys returns the month buckets in chronological order.
// "YYYY-MM" keys sort lexically in date order.
func (r Roadmap) MonthKeys() []string {
	keys := make([]string, 0, len(r.Months))
	for k := range r.Months {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// QuarterKeys returns quarters ordered by (year, quarter).
func (r Roadmap) QuarterKeys() []string {
	keys := make([]string, 0, len(r.Quarters))
	for k := range r.Quarters {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return quarterOrdinal(keys[i]) < quarterOrdinal(keys[j])
	})
	return keys
}

// quarterOrdinal maps "Qn YYYY" to year*4+n for ordering.
func quarterOrdinal(key string) int {
	q, year, ok := strings.Cut(key, " ")
	if !ok {
		return 0
	}
	n, _ := strconv.Atoi(strings.TrimPrefix(q, "Q"))
	y, _ := strconv.Atoi(year)
	return y*4 + n
}

// Events flattens the roadmap in chronological order.
func (r Roadmap) Events() []models.RoadmapEvent {
	var out []models.RoadmapEvent
	for _, key := range r.MonthKeys() {
		out = append(out, r.Months[key]...)
	}
	return out
}

func (r Roadmap) Len() int {
	n := 0
	for _, events := range r.Months {
		n += len(events)
	}
	return n
}

// FromEvents rebuilds a roadmap from stored events.
func FromEvents(events []models.RoadmapEvent) Roadmap {
	months := make(map[string][]models.RoadmapEvent)
	for _, ev := range events {
		ev.MonthKey = ev.Date.MonthKey()
		ev.QuarterKey = ev.Date.QuarterKey()
		months[ev.MonthKey] = append(months[ev.MonthKey], ev)
	}
	return build(months)
}

// Window keeps the months that fall within n months starting at from's month.
func Window(r Roadmap, from models.Date, n int) Roadmap {
	start := from.FirstOfMonth()
	end := start.Time().AddDate(0, n, 0)
	months := make(map[string][]models.RoadmapEvent)
	for key, events := range r.Months {
		if len(events) == 0 {
			continue
		}
		first := events[0].Date.FirstOfMonth().Time()
		if first.Before(start.Time()) || !first.Before(end) {
			continue
		}
		months[key] = events
	}
	return build(months)
}
