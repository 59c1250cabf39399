package matching

import (
	"fmt"
	"strings"

	"github.com/david/grant-advisor/internal/models"
)

// Eligibility holds the six per-criterion outcomes for one announcement.
type Eligibility struct {
	ExperienceOK   bool
	StageOK        bool
	RegionOK       bool
	Nationwide     bool
	KeywordOverlap int
	BudgetOK       bool
	UseOverlap     int

	// Rationale has exactly one entry per criterion, in evaluation order.
	Rationale []string
}

// HardFail reports whether an eligibility cliff applies: over the experience
// ceiling, outside a non-nationwide region, or no topical or use fit at all.
func (e Eligibility) HardFail() bool {
	if !e.ExperienceOK {
		return true
	}
	if !e.RegionOK && !e.Nationwide {
		return true
	}
	return e.KeywordOverlap == 0 && e.UseOverlap == 0
}

// Evaluate computes every criterion independently. It never fails; absent
// optional fields count as "no constraint".
func Evaluate(p models.ClientProfile, a models.Announcement) Eligibility {
	e := Eligibility{Rationale: make([]string, 0, 6)}

	e.ExperienceOK = experienceOK(p, a)
	switch {
	case a.MaxYearsOperating == nil:
		e.Rationale = append(e.Rationale, "experience compatible (no limit)")
	case e.ExperienceOK:
		e.Rationale = append(e.Rationale, fmt.Sprintf("experience compatible (%d <= %d years)", p.YearsOperating, *a.MaxYearsOperating))
	default:
		e.Rationale = append(e.Rationale, fmt.Sprintf("experience exceeds limit (%d > %d years)", p.YearsOperating, *a.MaxYearsOperating))
	}

	e.StageOK = stageOK(p.Stage, a.Stage)
	if e.StageOK {
		e.Rationale = append(e.Rationale, fmt.Sprintf("stage compatible (%s -> %s)", p.Stage, a.Stage))
	} else {
		e.Rationale = append(e.Rationale, fmt.Sprintf("stage mismatch (%s vs %s)", p.Stage, a.Stage))
	}

	e.Nationwide = a.IsNationwide()
	e.RegionOK = regionOK(p.Region, a.Region)
	switch {
	case e.Nationwide:
		e.Rationale = append(e.Rationale, "region compatible (nationwide)")
	case e.RegionOK:
		e.Rationale = append(e.Rationale, fmt.Sprintf("region compatible (%s in %s)", strings.TrimSpace(p.Region), a.Region))
	default:
		e.Rationale = append(e.Rationale, fmt.Sprintf("region restricted (%s not in %s)", strings.TrimSpace(p.Region), a.Region))
	}

	e.KeywordOverlap = overlap(p.IndustryKeywords, a.Keywords)
	if e.KeywordOverlap > 0 {
		e.Rationale = append(e.Rationale, fmt.Sprintf("keyword overlap %d", e.KeywordOverlap))
	} else {
		e.Rationale = append(e.Rationale, "no shared keywords")
	}

	e.BudgetOK = a.BudgetBand == nil || *a.BudgetBand == p.PreferredBudgetBand
	switch {
	case a.BudgetBand == nil:
		e.Rationale = append(e.Rationale, "budget preferred (no band)")
	case e.BudgetOK:
		e.Rationale = append(e.Rationale, fmt.Sprintf("budget preferred (%s)", p.PreferredBudgetBand))
	default:
		e.Rationale = append(e.Rationale, fmt.Sprintf("budget mismatch (%s vs %s)", *a.BudgetBand, p.PreferredBudgetBand))
	}

	e.UseOverlap = overlap(p.PreferredUses, a.AllowedUses)
	if e.UseOverlap > 0 {
		e.Rationale = append(e.Rationale, fmt.Sprintf("use overlap %d", e.UseOverlap))
	} else {
		e.Rationale = append(e.Rationale, "no shared uses")
	}

	return e
}

func experienceOK(p models.ClientProfile, a models.Announcement) bool {
	if a.MaxYearsOperating == nil {
		return true
	}
	return p.YearsOperating <= *a.MaxYearsOperating
}

// stageOK: pre-launch clients may apply to early-stage calls, never the reverse.
func stageOK(client, ann models.Stage) bool {
	if client == ann {
		return true
	}
	return ann == models.StageEarly && client == models.StagePreLaunch
}

// regionOK uses substring containment because announcement regions may list
// several areas in one string. A blank client region only matches nationwide.
func regionOK(client, ann string) bool {
	if ann == models.Nationwide {
		return true
	}
	client = strings.TrimSpace(client)
	if client == "" {
		return false
	}
	return strings.Contains(ann, client)
}

// overlap counts distinct trimmed values present in both lists.
func overlap(a, b []string) int {
	set := toSet(a)
	if len(set) == 0 {
		return 0
	}
	n := 0
	for v := range toSet(b) {
		if _, ok := set[v]; ok {
			n++
		}
	}
	return n
}

func toSet(list []string) map[string]struct{} {
	set := make(map[string]struct{}, len(list))
	for _, v := range list {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		set[v] = struct{}{}
	}
	return set
}
