package matching

import (
	"sort"

	"github.com/david/grant-advisor/internal/models"
)

// Score evaluates every announcement in catalog order. It reads only its
// arguments and returns a freshly allocated slice, so concurrent calls for
// different clients need no coordination.
func Score(profile models.ClientProfile, catalog []models.Announcement, cfg Config) []models.MatchResult {
	results := make([]models.MatchResult, 0, len(catalog))
	for _, ann := range catalog {
		results = append(results, scoreOne(profile, ann, cfg))
	}
	return results
}

func scoreOne(profile models.ClientProfile, ann models.Announcement, cfg Config) models.MatchResult {
	elig := Evaluate(profile, ann)
	score := Preference(profile, elig, cfg.Weights)
	hardFail := elig.HardFail()
	return models.MatchResult{
		Announcement: ann,
		Score:        score,
		Label:        Label(score, hardFail, cfg.Thresholds),
		Rationale:    elig.Rationale,
		HardFail:     hardFail,
	}
}

// Label applies the thresholds. A hard fail is always infeasible.
func Label(score int, hardFail bool, t Thresholds) models.Label {
	switch {
	case hardFail:
		return models.LabelInfeasible
	case score >= t.Feasible:
		return models.LabelFeasible
	case score >= t.Caution:
		return models.LabelCaution
	default:
		return models.LabelInfeasible
	}
}

// SortByScore orders results by score descending, then by the earliest due
// date (undated last), then by announcement ID, so equal scores rank stably.
func SortByScore(results []models.MatchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.HardFail != b.HardFail {
			return !a.HardFail
		}
		if c := compareDue(a.Announcement.DueDate, b.Announcement.DueDate); c != 0 {
			return c < 0
		}
		return a.Announcement.ID < b.Announcement.ID
	})
}

func compareDue(a, b *models.Date) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	default:
		return a.Compare(*b)
	}
}

// Top returns at most n results. n <= 0 means all.
func Top(results []models.MatchResult, n int) []models.MatchResult {
	if n <= 0 || n >= len(results) {
		return results
	}
	return results[:n]
}

// Eligible drops infeasible results, for views that hide blocked matches.
func Eligible(results []models.MatchResult) []models.MatchResult {
	out := make([]models.MatchResult, 0, len(results))
	for _, r := range results {
		if r.Label != models.LabelInfeasible {
			out = append(out, r)
		}
	}
	return out
}

// Engine bundles a configuration with the score, sort and truncate steps.
type Engine struct {
	cfg Config
}

func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

func (e *Engine) Config() Config {
	return e.cfg
}

// Rank scores the catalog, sorts the results and keeps the top n.
func (e *Engine) Rank(profile models.ClientProfile, catalog []models.Announcement, n int, includeInfeasible bool) []models.MatchResult {
	results := Score(profile, catalog, e.cfg)
	if !includeInfeasible {
		results = Eligible(results)
	}
	SortByScore(results)
	return Top(results, n)
}
