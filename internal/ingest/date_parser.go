package ingest

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/david/grant-advisor/internal/models"
)

// ErrMalformedDate is returned for any input outside the accepted date grammar.
var ErrMalformedDate = errors.New("malformed date")

// Accepted forms:
//
//	2025-09-20, 2025.09.20, 2025/09/20   (one separator used consistently)
//	20250920                             (data.go.kr form)
//
// optionally followed by a time of day after a space or "T", which is ignored.
var (
	separatedDateRe = regexp.MustCompile(`^(\d{4})([-./])(\d{1,2})([-./])(\d{1,2})\.?(?:[ T](\d{1,2}:\d{2}(?::\d{2})?(?:\.\d+)?(?:Z|[+-]\d{2}:?\d{2})?))?$`)
	compactDateRe   = regexp.MustCompile(`^(\d{4})(\d{2})(\d{2})(?:[ T](\d{2}:?\d{2}(?::?\d{2})?))?$`)
)

// ParseDate parses a calendar date with the strict grammar above.
// Impossible dates such as 2025-02-30 are rejected rather than normalized.
func ParseDate(s string) (models.Date, error) {
	text := strings.TrimSpace(s)
	if text == "" {
		return models.Date{}, fmt.Errorf("%w: empty", ErrMalformedDate)
	}

	var ys, ms, ds string
	if m := separatedDateRe.FindStringSubmatch(text); m != nil {
		if m[2] != m[4] {
			return models.Date{}, fmt.Errorf("%w: mixed separators in %q", ErrMalformedDate, s)
		}
		ys, ms, ds = m[1], m[3], m[5]
	} else if m := compactDateRe.FindStringSubmatch(text); m != nil {
		ys, ms, ds = m[1], m[2], m[3]
	} else {
		return models.Date{}, fmt.Errorf("%w: %q", ErrMalformedDate, s)
	}

	y, _ := strconv.Atoi(ys)
	mo, _ := strconv.Atoi(ms)
	d, _ := strconv.Atoi(ds)
	if mo < 1 || mo > 12 || d < 1 || d > 31 {
		return models.Date{}, fmt.Errorf("%w: out of range %q", ErrMalformedDate, s)
	}
	date := models.NewDate(y, time.Month(mo), d)
	if date.Year != y || int(date.Month) != mo || date.Day != d {
		return models.Date{}, fmt.Errorf("%w: no such day %q", ErrMalformedDate, s)
	}
	return date, nil
}

// ParseOptionalDate maps malformed or empty input to nil. Collectors use it
// so one bad cell only drops that one field.
func ParseOptionalDate(s string) *models.Date {
	d, err := ParseDate(s)
	if err != nil {
		return nil
	}
	return &d
}

// ParseDateRange splits "start ~ end" periods as published by Bizinfo and
// K-Startup. Either side may be missing or malformed and is then nil.
func ParseDateRange(s string) (start, end *models.Date) {
	left, right, found := strings.Cut(s, "~")
	if !found {
		return nil, ParseOptionalDate(s)
	}
	return ParseOptionalDate(left), ParseOptionalDate(right)
}
