package matching

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/david/grant-advisor/internal/models"
)

func intPtr(v int) *int { return &v }

func bandPtr(b models.BudgetBand) *models.BudgetBand { return &b }

func datePtr(y, m, d int) *models.Date {
	dt := models.NewDate(y, time.Month(m), d)
	return &dt
}

func seoulProfile() models.ClientProfile {
	return models.ClientProfile{
		Name:                "Alpha Labs",
		Region:              "Seoul",
		BusinessType:        models.BusinessCorporation,
		YearsOperating:      1,
		Stage:               models.StageEarly,
		IndustryKeywords:    []string{"AI", "data"},
		PreferredUses:       []string{"marketing"},
		PreferredBudgetBand: models.BudgetMedium,
	}
}

func nationwideAnnouncement() models.Announcement {
	return models.Announcement{
		ID:                "ANN-1",
		Title:             "Data voucher",
		Region:            models.Nationwide,
		Stage:             models.StageEarly,
		MaxYearsOperating: intPtr(3),
		Keywords:          []string{"AI", "data", "SaaS"},
		AllowedUses:       []string{"R&D", "marketing"},
		BudgetBand:        bandPtr(models.BudgetMedium),
	}
}

func TestScoreReferenceScenarios(t *testing.T) {
	cfg := DefaultConfig()

	t.Run("nationwide early-stage fit", func(t *testing.T) {
		results := Score(seoulProfile(), []models.Announcement{nationwideAnnouncement()}, cfg)
		if len(results) != 1 {
			t.Fatalf("expected 1 result, got %d", len(results))
		}
		r := results[0]
		if r.HardFail {
			t.Fatalf("expected no hard fail, rationale %v", r.Rationale)
		}
		if r.Score < 50 {
			t.Fatalf("expected score >= 50, got %d", r.Score)
		}
		// 2/3*40 + 15 + 10 + 15 + 1/3*20 = 73.33
		if r.Score != 73 {
			t.Errorf("expected score 73, got %d", r.Score)
		}
		if r.Label != models.LabelFeasible {
			t.Errorf("expected feasible, got %s", r.Label)
		}
	})

	t.Run("experience ceiling exceeded", func(t *testing.T) {
		ann := nationwideAnnouncement()
		ann.MaxYearsOperating = intPtr(0)
		r := Score(seoulProfile(), []models.Announcement{ann}, cfg)[0]
		if !r.HardFail {
			t.Fatalf("expected hard fail")
		}
		if r.Label != models.LabelInfeasible {
			t.Fatalf("expected infeasible, got %s", r.Label)
		}
	})
}

func TestHardFailForcesInfeasible(t *testing.T) {
	cfg := Config{
		Weights:    Weights{Keyword: 100, Stage: 100, Region: 100, Budget: 100, Use: 100},
		Thresholds: DefaultThresholds(),
	}

	tests := []struct {
		name   string
		mutate func(*models.Announcement)
	}{
		{
			name:   "over experience ceiling",
			mutate: func(a *models.Announcement) { a.MaxYearsOperating = intPtr(0) },
		},
		{
			name:   "outside restricted region",
			mutate: func(a *models.Announcement) { a.Region = "Busan" },
		},
		{
			name: "no keyword and no use overlap",
			mutate: func(a *models.Announcement) {
				a.Keywords = []string{"biotech"}
				a.AllowedUses = []string{"equipment"}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ann := nationwideAnnouncement()
			tt.mutate(&ann)
			r := Score(seoulProfile(), []models.Announcement{ann}, cfg)[0]
			if !r.HardFail {
				t.Fatalf("expected hard fail, rationale %v", r.Rationale)
			}
			if r.Label != models.LabelInfeasible {
				t.Fatalf("expected infeasible regardless of score %d, got %s", r.Score, r.Label)
			}
		})
	}
}

func TestKeywordOverlapIsMonotonic(t *testing.T) {
	profile := seoulProfile()
	profile.IndustryKeywords = []string{"a", "b", "c", "d", "e"}

	prev := -1
	for n := 0; n <= len(profile.IndustryKeywords); n++ {
		ann := nationwideAnnouncement()
		ann.Keywords = append([]string{}, profile.IndustryKeywords[:n]...)
		r := Score(profile, []models.Announcement{ann}, DefaultConfig())[0]
		if r.Score < prev {
			t.Fatalf("score decreased from %d to %d at overlap %d", prev, r.Score, n)
		}
		prev = r.Score
	}
}

func TestNationwideSatisfiesEveryRegion(t *testing.T) {
	for _, region := range []string{"Seoul", "Busan", "", "Jeju special province"} {
		profile := seoulProfile()
		profile.Region = region
		e := Evaluate(profile, nationwideAnnouncement())
		if !e.RegionOK {
			t.Errorf("region %q: expected nationwide to be compatible", region)
		}
	}
}

func TestRegionContainment(t *testing.T) {
	tests := []struct {
		client, ann string
		want        bool
	}{
		{"Seoul", "Seoul", true},
		{"Seoul", "Seoul, Gyeonggi, Incheon", true},
		{" Seoul ", "Seoul/Gyeonggi", true},
		{"Busan", "Seoul, Gyeonggi", false},
		{"", "Seoul", false},
	}
	for _, tt := range tests {
		if got := regionOK(tt.client, tt.ann); got != tt.want {
			t.Errorf("regionOK(%q, %q) = %v, want %v", tt.client, tt.ann, got, tt.want)
		}
	}
}

func TestStageCompatibility(t *testing.T) {
	tests := []struct {
		client, ann models.Stage
		want        bool
	}{
		{models.StageEarly, models.StageEarly, true},
		{models.StageGrowth, models.StageGrowth, true},
		{models.StagePreLaunch, models.StageEarly, true},
		{models.StagePreLaunch, models.StageGrowth, false},
		{models.StageEarly, models.StageGrowth, false},
		{models.StageGrowth, models.StageEarly, false},
	}
	for _, tt := range tests {
		if got := stageOK(tt.client, tt.ann); got != tt.want {
			t.Errorf("stageOK(%s, %s) = %v, want %v", tt.client, tt.ann, got, tt.want)
		}
	}
}

func TestScoreWithAllOptionalFieldsAbsent(t *testing.T) {
	ann := models.Announcement{ID: "bare"}
	results := Score(models.ClientProfile{}, []models.Announcement{ann}, DefaultConfig())
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	r := results[0]
	if len(r.Rationale) != 6 {
		t.Fatalf("expected 6 rationale lines, got %d: %v", len(r.Rationale), r.Rationale)
	}
	if !r.HardFail || r.Label != models.LabelInfeasible {
		t.Fatalf("expected hard fail on empty overlap, got %+v", r)
	}
}

func TestZeroWeightsScoreZero(t *testing.T) {
	r := Score(seoulProfile(), []models.Announcement{nationwideAnnouncement()}, Config{Thresholds: DefaultThresholds()})[0]
	if r.HardFail {
		t.Fatalf("unexpected hard fail")
	}
	if r.Score != 0 || r.Label != models.LabelInfeasible {
		t.Fatalf("expected score 0 infeasible, got %d %s", r.Score, r.Label)
	}
}

func TestEmptyCatalog(t *testing.T) {
	results := Score(seoulProfile(), nil, DefaultConfig())
	if results == nil || len(results) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", results)
	}
}

func TestOverlapTrimsAndDeduplicates(t *testing.T) {
	got := overlap([]string{" AI", "AI", "data", ""}, []string{"AI ", "data", "data", ""})
	if got != 2 {
		t.Fatalf("expected overlap 2, got %d", got)
	}
	if overlap([]string{"ai"}, []string{"AI"}) != 0 {
		t.Fatalf("expected exact, case-sensitive comparison")
	}
}

func TestLabelThresholds(t *testing.T) {
	th := DefaultThresholds()
	tests := []struct {
		score    int
		hardFail bool
		want     models.Label
	}{
		{100, false, models.LabelFeasible},
		{70, false, models.LabelFeasible},
		{69, false, models.LabelCaution},
		{50, false, models.LabelCaution},
		{49, false, models.LabelInfeasible},
		{100, true, models.LabelInfeasible},
	}
	for _, tt := range tests {
		if got := Label(tt.score, tt.hardFail, th); got != tt.want {
			t.Errorf("Label(%d, %v) = %s, want %s", tt.score, tt.hardFail, got, tt.want)
		}
	}
}

func TestSortByScoreTieBreak(t *testing.T) {
	results := []models.MatchResult{
		{Announcement: models.Announcement{ID: "c"}, Score: 60},
		{Announcement: models.Announcement{ID: "b", DueDate: datePtr(2025, 10, 1)}, Score: 60},
		{Announcement: models.Announcement{ID: "a", DueDate: datePtr(2025, 10, 1)}, Score: 60},
		{Announcement: models.Announcement{ID: "d", DueDate: datePtr(2025, 9, 1)}, Score: 60},
		{Announcement: models.Announcement{ID: "e"}, Score: 90},
		{Announcement: models.Announcement{ID: "0-blocked", DueDate: datePtr(2025, 8, 1)}, Score: 60, HardFail: true, Label: models.LabelInfeasible},
	}
	SortByScore(results)

	var ids []string
	for _, r := range results {
		ids = append(ids, r.Announcement.ID)
	}
	want := []string{"e", "d", "a", "b", "c", "0-blocked"}
	if !reflect.DeepEqual(ids, want) {
		t.Fatalf("expected order %v, got %v", want, ids)
	}
}

func TestEngineRankHidesInfeasible(t *testing.T) {
	blocked := nationwideAnnouncement()
	blocked.ID = "blocked"
	blocked.MaxYearsOperating = intPtr(0)

	engine := NewEngine(DefaultConfig())
	catalog := []models.Announcement{blocked, nationwideAnnouncement()}

	got := engine.Rank(seoulProfile(), catalog, 10, false)
	if len(got) != 1 || got[0].Announcement.ID != "ANN-1" {
		t.Fatalf("expected only ANN-1, got %+v", got)
	}
	if all := engine.Rank(seoulProfile(), catalog, 10, true); len(all) != 2 {
		t.Fatalf("expected 2 results with infeasible included, got %d", len(all))
	}
	if top := engine.Rank(seoulProfile(), catalog, 1, true); len(top) != 1 {
		t.Fatalf("expected top 1, got %d", len(top))
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "weights.yaml")
	content := "weights:\n  keyword: 50\nthresholds:\n  feasible: 80\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := LoadConfigFromFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Weights.Keyword != 50 || cfg.Weights.Use != 20 {
		t.Errorf("expected keyword override and use default, got %+v", cfg.Weights)
	}
	if cfg.Thresholds.Feasible != 80 || cfg.Thresholds.Caution != 50 {
		t.Errorf("unexpected thresholds %+v", cfg.Thresholds)
	}

	if _, err := LoadConfigFromFile(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Errorf("expected error for missing file")
	}

	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("weights:\n  stage: -1\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err = LoadConfigFromFile(bad)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if cfg != DefaultConfig() {
		t.Errorf("expected defaults on invalid config, got %+v", cfg)
	}
}
