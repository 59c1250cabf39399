package ingest

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/david/grant-advisor/internal/models"
	"github.com/microcosm-cc/bluemonday"
)

// TruncateText cuts a string to max runes, appending ellipsis if truncated.
func TruncateText(text string, maxLen int) string {
	if utf8.RuneCountInString(text) <= maxLen {
		return text
	}
	runes := []rune(text)
	if maxLen > 3 {
		return string(runes[:maxLen-3]) + "..."
	}
	return string(runes[:maxLen])
}

// HTMLToText converts HTML to plain text, collapsing whitespace.
func HTMLToText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return normalizeSpace(html)
	}
	return normalizeSpace(doc.Text())
}

var strictPolicy = bluemonday.StrictPolicy()

// sanitizeDescription strips markup from scraped descriptions before they are
// stored or sent to a language model.
func sanitizeDescription(s string) string {
	if !strings.ContainsAny(s, "<>") {
		return normalizeSpace(s)
	}
	return HTMLToText(strictPolicy.Sanitize(s))
}

// CanonicalizeURL lowercases the host and drops fragments and tracking
// parameters so the same page found twice yields the same key.
func CanonicalizeURL(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return strings.TrimSpace(rawURL)
	}
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	q := u.Query()
	for k := range q {
		if strings.HasPrefix(k, "utm_") {
			q.Del(k)
		}
	}
	for _, p := range []string{"fbclid", "gclid", "ref", "session"} {
		q.Del(p)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

var nationwideAliases = map[string]bool{
	"":           true,
	"전국":         true,
	"전지역":        true,
	"nationwide": true,
	"national":   true,
	"all":        true,
}

// NormalizeRegion maps the nationwide spellings to models.Nationwide and
// otherwise returns the trimmed region text.
func NormalizeRegion(s string) string {
	r := normalizeSpace(s)
	if nationwideAliases[strings.ToLower(r)] {
		return models.Nationwide
	}
	return r
}

// NormalizeStage maps Korean and English stage names. ok is false for text
// that names no known stage.
func NormalizeStage(s string) (models.Stage, bool) {
	v := strings.ToLower(normalizeSpace(s))
	switch {
	case v == "":
		return "", false
	case strings.Contains(v, "예비") || strings.Contains(v, "pre"):
		return models.StagePreLaunch, true
	case strings.Contains(v, "초기") || strings.Contains(v, "early"):
		return models.StageEarly, true
	case strings.Contains(v, "성장") || strings.Contains(v, "도약") || strings.Contains(v, "growth"):
		return models.StageGrowth, true
	}
	return "", false
}

// NormalizeBudgetBand maps band names; ok is false for unknown text.
func NormalizeBudgetBand(s string) (models.BudgetBand, bool) {
	switch strings.ToLower(normalizeSpace(s)) {
	case "소액", "small":
		return models.BudgetSmall, true
	case "중간", "중액", "medium":
		return models.BudgetMedium, true
	case "대형", "고액", "large":
		return models.BudgetLarge, true
	}
	return "", false
}

var yearsLimitRe = regexp.MustCompile(`(\d+)\s*년\s*(이상)?`)

// parseMaxYears reads an operating-years ceiling such as "7", "7년",
// "업력 7년 이내" or a bracket list like "1년미만,3년미만,7년미만", where the
// largest bound wins. "n년 이상" is a floor, not a ceiling, and is ignored.
// Nil means the announcement sets no ceiling.
func parseMaxYears(values ...string) *int {
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return &n
		}
		best := -1
		for _, m := range yearsLimitRe.FindAllStringSubmatch(v, -1) {
			if m[2] != "" {
				continue
			}
			if n, err := strconv.Atoi(m[1]); err == nil && n > best {
				best = n
			}
		}
		if best >= 0 {
			return &best
		}
	}
	return nil
}

// FromRaw converts a RawAnnouncement into a canonical Announcement. Malformed
// dates and amounts become absent fields; nothing here fails.
func FromRaw(raw RawAnnouncement) models.Announcement {
	ann := models.Announcement{
		ID:            strings.TrimSpace(raw.ID),
		Title:         normalizeSpace(raw.Title),
		Agency:        normalizeSpace(raw.Agency),
		SourceChannel: normalizeSpace(raw.Source),
		Region:        NormalizeRegion(raw.Region),
		Stage:         models.StageEarly,
		URL:           CanonicalizeURL(raw.URL),
		Summary:       TruncateText(sanitizeDescription(raw.Description), 2000),
		AllowedUses:   splitList(raw.AllowedUses),
		Keywords:      splitList(raw.Keywords),
	}
	if ann.ID == "" {
		ann.ID = stableID(ann.SourceChannel, ann.Title, ann.Agency)
	}

	// Announcements only distinguish early from growth; pre-launch
	// applicants are admitted through early programs.
	if st, ok := NormalizeStage(raw.Stage); ok && st == models.StageGrowth {
		ann.Stage = models.StageGrowth
	}

	ann.MaxYearsOperating = parseMaxYears(raw.MaxYearsOperating, raw.Eligibility)
	ann.OpenDate = ParseOptionalDate(raw.OpenDate)
	if strings.Contains(raw.DueDate, "~") {
		start, end := ParseDateRange(raw.DueDate)
		ann.DueDate = end
		if ann.OpenDate == nil {
			ann.OpenDate = start
		}
	} else {
		ann.DueDate = ParseOptionalDate(raw.DueDate)
	}
	ann.InfoSessionDate = ParseOptionalDate(raw.InfoSessionDate)
	ann.Amount = ParseOptionalAmount(raw.Amount)

	if band, ok := NormalizeBudgetBand(raw.BudgetBand); ok {
		ann.BudgetBand = &band
	} else if ann.Amount != nil {
		band := BudgetBandFor(*ann.Amount)
		ann.BudgetBand = &band
	}
	return ann
}
