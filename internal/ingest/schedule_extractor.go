package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"

	"github.com/david/grant-advisor/internal/models"
	rpdf "rsc.io/pdf"
)

// Schedule holds the dates found in free text such as a detail page or an
// attached notice PDF.
type Schedule struct {
	InfoSession *models.Date
	Due         *models.Date
}

var (
	infoSessionHints = []string{"사업설명회", "사전설명회", "설명회", "오리엔테이션", "info session"}
	dueHints         = []string{"접수마감", "신청마감", "마감일", "접수기간", "신청기간", "마감", "deadline"}
)

var (
	numericDateRe = regexp.MustCompile(`20\d{2}\s*[.\-/]\s*\d{1,2}\s*[.\-/]\s*\d{1,2}`)
	koreanDateRe  = regexp.MustCompile(`(20\d{2})\s*년\s*(\d{1,2})\s*월\s*(\d{1,2})\s*일`)
)

// hintWindow is how far after a hint a date may appear, in bytes.
const hintWindow = 120

// ScanSchedule looks for the first date following an info-session hint and
// a deadline hint. For periods like "2025.9.1 ~ 2025.9.20" the closing date
// is taken as the deadline.
func ScanSchedule(text string) Schedule {
	return Schedule{
		InfoSession: dateAfterHints(text, infoSessionHints, false),
		Due:         dateAfterHints(text, dueHints, true),
	}
}

func dateAfterHints(text string, hints []string, periodEnd bool) *models.Date {
	for _, hint := range hints {
		from := 0
		for {
			idx := strings.Index(text[from:], hint)
			if idx < 0 {
				break
			}
			start := from + idx + len(hint)
			end := min(len(text), start+hintWindow)
			hits := datesIn(text[start:end])
			if len(hits) > 0 {
				d := hits[0].date
				if periodEnd && len(hits) > 1 {
					between := text[start+hits[0].end : start+hits[1].pos]
					if strings.Contains(between, "~") {
						d = hits[1].date
					}
				}
				return &d
			}
			from = start
		}
	}
	return nil
}

type dateHit struct {
	pos, end int
	date     models.Date
}

// datesIn returns every parseable date in order of appearance. A window may
// cut a multi-byte rune at its end; the patterns only match ASCII digits and
// whole Hangul unit words, so a cut rune simply fails to match.
func datesIn(chunk string) []dateHit {
	var hits []dateHit
	for _, loc := range numericDateRe.FindAllStringIndex(chunk, -1) {
		token := strings.Join(strings.Fields(chunk[loc[0]:loc[1]]), "")
		if d, err := ParseDate(token); err == nil {
			hits = append(hits, dateHit{loc[0], loc[1], d})
		}
	}
	for _, m := range koreanDateRe.FindAllStringSubmatchIndex(chunk, -1) {
		token := fmt.Sprintf("%s-%s-%s", chunk[m[2]:m[3]], chunk[m[4]:m[5]], chunk[m[6]:m[7]])
		if d, err := ParseDate(token); err == nil {
			hits = append(hits, dateHit{m[0], m[1], d})
		}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].pos < hits[j].pos })
	return hits
}

func extractPDFText(content []byte) (text string, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("pdf parser panic: %v", recovered)
			text = ""
		}
	}()

	reader, err := rpdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", err
	}

	var builder strings.Builder
	for pageIndex := 1; pageIndex <= reader.NumPage(); pageIndex++ {
		page := reader.Page(pageIndex)
		if page.V.IsNull() {
			continue
		}
		for _, fragment := range page.Content().Text {
			builder.WriteString(fragment.S)
		}
		builder.WriteString("\n")
	}
	return builder.String(), nil
}

// scheduleFromPDF downloads an attached notice and scans its text.
func scheduleFromPDF(ctx context.Context, fetcher Fetcher, pdfURL string) (Schedule, error) {
	doc, err := fetcher.Fetch(ctx, pdfURL)
	if err != nil {
		return Schedule{}, err
	}
	defer doc.Body.Close()

	content, err := io.ReadAll(io.LimitReader(doc.Body, 20<<20))
	if err != nil {
		return Schedule{}, fmt.Errorf("pdf read failed: %w", err)
	}
	text, err := extractPDFText(content)
	if err != nil {
		return Schedule{}, fmt.Errorf("pdf text extraction failed: %w", err)
	}
	return ScanSchedule(text), nil
}

func isPDFLink(link string) bool {
	l := strings.ToLower(link)
	if i := strings.IndexAny(l, "?#"); i >= 0 {
		l = l[:i]
	}
	return strings.HasSuffix(l, ".pdf")
}
