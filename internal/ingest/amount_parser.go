package ingest

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/david/grant-advisor/internal/models"
)

// ErrMalformedAmount is returned for any input outside the amount grammar.
var ErrMalformedAmount = errors.New("malformed amount")

// magnitudes maps Korean unit suffixes to their multiplier in won.
var magnitudes = map[string]float64{
	"조":  1e12,
	"억":  1e8,
	"천만": 1e7,
	"백만": 1e6,
	"만":  1e4,
	"천":  1e3,
}

// amountTermRe matches one "<number>[unit]" term. Longer units come first so
// "천만" is not read as "천" followed by garbage.
var amountTermRe = regexp.MustCompile(`^((?:\d{1,3}(?:,\d{3})+|\d+)(?:\.\d+)?)\s*(천만|백만|조|억|만|천)?`)

var (
	amountPrefixes = []string{"최대", "up to"}
	amountSuffixes = []string{"원", "krw", "won"}
)

// ParseAmount parses a whole-won amount.
//
//	[최대|up to] term {term} [원|KRW|won]
//	term = number [조|억|천만|백만|만|천]
//
// Terms are summed and must appear in strictly decreasing magnitude, so
// "1억 5천만원" is 150,000,000 while "5천만 1억" is rejected. Decimals are
// allowed ("1.5억") and thousands separators must be well formed. The result
// is rounded half away from zero to whole won.
func ParseAmount(s string) (int64, error) {
	text := strings.TrimSpace(s)
	lower := strings.ToLower(text)
	for _, p := range amountPrefixes {
		if strings.HasPrefix(lower, p) {
			text = strings.TrimSpace(text[len(p):])
			lower = strings.ToLower(text)
			break
		}
	}
	for _, suf := range amountSuffixes {
		if strings.HasSuffix(lower, suf) {
			text = strings.TrimSpace(text[:len(text)-len(suf)])
			break
		}
	}
	if text == "" {
		return 0, fmt.Errorf("%w: %q", ErrMalformedAmount, s)
	}

	var total float64
	lastMag := math.Inf(1)
	for text != "" {
		m := amountTermRe.FindStringSubmatch(text)
		if m == nil {
			return 0, fmt.Errorf("%w: unexpected %q in %q", ErrMalformedAmount, text, s)
		}
		v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q: %v", ErrMalformedAmount, s, err)
		}
		mag := 1.0
		if m[2] != "" {
			mag = magnitudes[m[2]]
		}
		if mag >= lastMag {
			return 0, fmt.Errorf("%w: units out of order in %q", ErrMalformedAmount, s)
		}
		lastMag = mag
		total += v * mag
		text = strings.TrimSpace(text[len(m[0]):])
	}
	if total >= math.MaxInt64 {
		return 0, fmt.Errorf("%w: overflow %q", ErrMalformedAmount, s)
	}
	return int64(math.Round(total)), nil
}

// ParseOptionalAmount maps malformed or empty input to nil.
func ParseOptionalAmount(s string) *int64 {
	n, err := ParseAmount(s)
	if err != nil {
		return nil
	}
	return &n
}

// FormatShortKRW renders amounts the way operators quote them: "3억원",
// "1.2억원", "8천만원". Below ten million it falls back to 만원 and then 원.
func FormatShortKRW(n int64) string {
	switch {
	case n >= 100_000_000:
		return oneDecimal(float64(n)/1e8) + "억원"
	case n >= 10_000_000:
		return oneDecimal(float64(n)/1e7) + "천만원"
	case n >= 10_000:
		return oneDecimal(float64(n)/1e4) + "만원"
	default:
		return strconv.FormatInt(n, 10) + "원"
	}
}

func oneDecimal(v float64) string {
	r := math.Round(v*10) / 10
	if r == math.Trunc(r) {
		return strconv.FormatFloat(r, 'f', 0, 64)
	}
	return strconv.FormatFloat(r, 'f', 1, 64)
}

// Budget band thresholds in won.
const (
	MediumBandFrom int64 = 40_000_000
	LargeBandFrom  int64 = 100_000_000
)

// BudgetBandFor classifies an amount: below 40M small, below 100M medium,
// otherwise large.
func BudgetBandFor(amount int64) models.BudgetBand {
	switch {
	case amount >= LargeBandFrom:
		return models.BudgetLarge
	case amount >= MediumBandFrom:
		return models.BudgetMedium
	default:
		return models.BudgetSmall
	}
}
