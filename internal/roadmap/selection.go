package roadmap

import "github.com/david/grant-advisor/internal/models"

// ApprovedAnnouncements returns the results whose review status is approved,
// preserving the order of results. Pairs without a review are pending.
func ApprovedAnnouncements(results []models.MatchResult, reviews []models.Review) []models.Announcement {
	catalog := make([]models.Announcement, 0, len(results))
	for _, r := range results {
		catalog = append(catalog, r.Announcement)
	}
	return SelectApproved(catalog, reviews)
}

// SelectApproved filters a catalog down to the approved announcements.
func SelectApproved(catalog []models.Announcement, reviews []models.Review) []models.Announcement {
	approved := make(map[string]struct{}, len(reviews))
	for _, rv := range reviews {
		if rv.Status == models.ReviewApproved {
			approved[rv.AnnouncementID] = struct{}{}
		}
	}
	out := make([]models.Announcement, 0, len(approved))
	seen := make(map[string]struct{}, len(approved))
	for _, ann := range catalog {
		if _, ok := approved[ann.ID]; !ok {
			continue
		}
		if _, dup := seen[ann.ID]; dup {
			continue
		}
		seen[ann.ID] = struct{}{}
		out = append(out, ann)
	}
	return out
}
