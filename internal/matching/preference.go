package matching

import (
	"math"

	"github.com/david/grant-advisor/internal/models"
)

// minCeiling keeps short keyword or use lists from earning full marks on a single hit.
const minCeiling = 3

// Preference aggregates the weighted score. The experience ceiling feeds only
// the hard-fail rule and contributes no points.
func Preference(p models.ClientProfile, e Eligibility, w Weights) int {
	kwCeil := float64(max(minCeiling, len(toSet(p.IndustryKeywords))))
	useCeil := float64(max(minCeiling, len(toSet(p.PreferredUses))))

	score := normalize(float64(e.KeywordOverlap), 0, kwCeil) * w.Keyword
	if e.StageOK {
		score += w.Stage
	}
	if e.RegionOK {
		score += w.Region
	}
	if e.BudgetOK {
		score += w.Budget
	}
	score += normalize(float64(e.UseOverlap), 0, useCeil) * w.Use

	return int(math.Round(score))
}

// normalize clamps v into [lo, hi] and maps it onto [0, 1].
func normalize(v, lo, hi float64) float64 {
	span := hi - lo
	if span <= 0 {
		span = 1
	}
	v = math.Max(lo, math.Min(v, hi))
	return (v - lo) / span
}
