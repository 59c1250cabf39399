package ai

import (
	"context"
	_ "embed"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/david/grant-advisor/internal/ingest"
	"github.com/david/grant-advisor/internal/logger"
	"github.com/david/grant-advisor/internal/models"
	"github.com/david/grant-advisor/internal/roadmap"
	"go.uber.org/zap"
)

//go:embed prompt.md
var promptTemplate string

// MaxPromptAnnouncements caps how many catalog entries go into one prompt.
const MaxPromptAnnouncements = 50

const (
	statusActive = "현재 지원 가능"
	statusClosed = "마감"
)

// Recommender asks a language model for a ranked shortlist. Its scores are
// kept as returned and never mixed with the rule engine's.
type Recommender struct {
	gen   Generator
	log   *zap.Logger
	Clock func() time.Time
}

func NewRecommender(gen Generator, log *zap.Logger) *Recommender {
	if log == nil {
		log = zap.NewNop()
	}
	return &Recommender{gen: gen, log: log, Clock: time.Now}
}

func (r *Recommender) today() models.Date {
	if r.Clock == nil {
		return models.DateOf(time.Now())
	}
	return models.DateOf(r.Clock())
}

// Recommend returns the model's picks for profile, best first.
func (r *Recommender) Recommend(ctx context.Context, profile models.ClientProfile, catalog []models.Announcement) ([]models.Recommendation, error) {
	if r == nil || r.gen == nil {
		return nil, ErrNoProvider
	}
	today := r.today()
	candidates := shortlist(catalog, MaxPromptAnnouncements)
	if len(candidates) == 0 {
		return []models.Recommendation{}, nil
	}

	prompt := BuildPrompt(profile, candidates)
	r.log.Debug("recommendation request",
		zap.String("client", profile.ID.String()),
		zap.Int("announcements", len(candidates)),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
	)
	raw, err := r.gen.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("generate recommendations: %w", err)
	}
	r.log.Debug("recommendation response", zap.String("response_preview", logger.TruncateForLog(raw, 200)))

	items, err := parseObjects(raw)
	if err != nil {
		return nil, fmt.Errorf("parse recommendations: %w", err)
	}

	byTitle := make(map[string]models.Announcement, len(candidates))
	for _, ann := range candidates {
		byTitle[titleKey(ann.Title)] = ann
	}

	generatedAt := time.Now().UTC()
	recs := make([]models.Recommendation, 0, len(items))
	for _, item := range items {
		rec, ok := toRecommendation(item, byTitle, today)
		if !ok {
			continue
		}
		rec.ClientID = profile.ID
		rec.GeneratedAt = generatedAt
		recs = append(recs, rec)
	}
	sort.SliceStable(recs, func(i, j int) bool { return recs[i].Score > recs[j].Score })
	for i := range recs {
		recs[i].Rank = i + 1
	}
	if len(recs) < len(items) {
		r.log.Info("dropped untitled recommendations", zap.Int("kept", len(recs)), zap.Int("returned", len(items)))
	}
	return recs, nil
}

// shortlist keeps catalog order and skips closed announcements.
func shortlist(catalog []models.Announcement, n int) []models.Announcement {
	out := make([]models.Announcement, 0, min(len(catalog), n))
	for _, ann := range catalog {
		if ann.Status == models.StatusClosed {
			continue
		}
		out = append(out, ann)
		if len(out) == n {
			break
		}
	}
	return out
}

func titleKey(title string) string {
	return strings.ToLower(strings.Join(strings.Fields(title), " "))
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}

func dateOrNA(d *models.Date) string {
	if d == nil {
		return "N/A"
	}
	return d.String()
}

// BuildPrompt renders the recommendation prompt for one client.
func BuildPrompt(profile models.ClientProfile, catalog []models.Announcement) string {
	var anns strings.Builder
	for i, ann := range catalog {
		amount := "N/A"
		if ann.Amount != nil {
			amount = ingest.FormatShortKRW(*ann.Amount)
		}
		fmt.Fprintf(&anns, "%d. %s\n", i+1, ann.Title)
		fmt.Fprintf(&anns, "   - 기관: %s\n", orNA(ann.Agency))
		fmt.Fprintf(&anns, "   - 지원금액: %s\n", amount)
		fmt.Fprintf(&anns, "   - 모집일: %s\n", dateOrNA(ann.OpenDate))
		fmt.Fprintf(&anns, "   - 마감일: %s\n", dateOrNA(ann.DueDate))
		fmt.Fprintf(&anns, "   - 지역: %s\n", orNA(ann.Region))
		fmt.Fprintf(&anns, "   - 지원용도: %s\n\n", orNA(strings.Join(ann.AllowedUses, ", ")))
	}

	var client strings.Builder
	fmt.Fprintf(&client, "- 기업명: %s\n", orNA(profile.Name))
	fmt.Fprintf(&client, "- 사업자 유형: %s\n", orNA(string(profile.BusinessType)))
	fmt.Fprintf(&client, "- 지역: %s\n", orNA(profile.Region))
	fmt.Fprintf(&client, "- 업력: %d년\n", profile.YearsOperating)
	fmt.Fprintf(&client, "- 성장단계: %s\n", orNA(string(profile.Stage)))
	fmt.Fprintf(&client, "- 업종: %s\n", orNA(profile.Industry))
	fmt.Fprintf(&client, "- 키워드: %s\n", orNA(strings.Join(profile.IndustryKeywords, ", ")))
	fmt.Fprintf(&client, "- 선호 지원용도: %s\n", orNA(strings.Join(profile.PreferredUses, ", ")))
	fmt.Fprintf(&client, "- 선호 예산규모: %s\n", orNA(string(profile.PreferredBudgetBand)))

	prompt := strings.ReplaceAll(promptTemplate, "{{ANNOUNCEMENTS}}", strings.TrimRight(anns.String(), "\n"))
	return strings.ReplaceAll(prompt, "{{CLIENT}}", strings.TrimRight(client.String(), "\n"))
}

// toRecommendation maps one model object. Dates, amount and uses the model
// left out are filled from the matching catalog entry; the countdown is
// always recomputed from the due date.
func toRecommendation(item map[string]any, byTitle map[string]models.Announcement, today models.Date) (models.Recommendation, bool) {
	rec := models.Recommendation{
		Title:      coerceString(field(item, "공고이름", "title")),
		Reason:     coerceString(field(item, "추천이유", "reason")),
		OpenDate:   coerceString(field(item, "모집일", "open_date")),
		DueDate:    coerceString(field(item, "마감일", "due_date")),
		Remaining:  coerceString(field(item, "남은기간", "remaining")),
		AmountText: coerceString(field(item, "투자금액", "amount")),
		Uses:       coerceString(field(item, "투자금액사용처", "uses")),
		Status:     coerceString(field(item, "공고상태", "status")),
		Source:     models.SourceLLM,
	}
	if rec.Title == "" {
		return rec, false
	}
	score := coerceFloat(field(item, "추천점수", "score"))
	if math.IsNaN(score) {
		score = 0
	}
	rec.Score = math.Max(0, math.Min(100, score))

	ann, known := byTitle[titleKey(rec.Title)]
	if known {
		if rec.OpenDate == "" && ann.OpenDate != nil {
			rec.OpenDate = ann.OpenDate.String()
		}
		if rec.DueDate == "" && ann.DueDate != nil {
			rec.DueDate = ann.DueDate.String()
		}
		if rec.AmountText == "" && ann.Amount != nil {
			rec.AmountText = ingest.FormatShortKRW(*ann.Amount)
		}
		if rec.Uses == "" {
			rec.Uses = strings.Join(ann.AllowedUses, ", ")
		}
	}

	rec.Active = strings.Contains(rec.Status, statusActive)
	if due, err := ingest.ParseDate(rec.DueDate); err == nil {
		days := due.DaysSince(today)
		rec.Active = days >= 0 && !(known && ann.Status == models.StatusClosed)
		if rec.Active {
			rec.Remaining = roadmap.DDay(days)
		} else {
			rec.Remaining = statusClosed
		}
	}
	if rec.Status == "" {
		rec.Status = statusClosed
		if rec.Active {
			rec.Status = statusActive
		}
	}
	return rec, true
}
