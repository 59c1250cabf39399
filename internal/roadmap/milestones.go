package roadmap

import (
	"sort"

	"github.com/david/grant-advisor/internal/models"
)

// Milestone is a preparation checkpoint derived from a due date. Milestones
// are a planning aid kept apart from the roadmap buckets.
type Milestone struct {
	Step           string      `json:"step"`
	AnnouncementID string      `json:"announcement_id"`
	Title          string      `json:"title"`
	Date           models.Date `json:"date"`
}

// milestoneOffsets are days relative to the due date.
var milestoneOffsets = []struct {
	step   string
	offset int
}{
	{"draft", -14},
	{"internal review", -7},
	{"submission", 0},
	{"result announcement", 21},
	{"settlement", 45},
}

// Milestones lays out preparation checkpoints for every dated approved
// announcement, ordered by date then announcement ID.
func Milestones(approved []models.Announcement) []Milestone {
	var out []Milestone
	for _, ann := range approved {
		if ann.DueDate == nil {
			continue
		}
		for _, m := range milestoneOffsets {
			out = append(out, Milestone{
				Step:           m.step,
				AnnouncementID: ann.ID,
				Title:          ann.Title,
				Date:           ann.DueDate.AddDays(m.offset),
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if c := out[i].Date.Compare(out[j].Date); c != 0 {
			return c < 0
		}
		return out[i].AnnouncementID < out[j].AnnouncementID
	})
	return out
}
