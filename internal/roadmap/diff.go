package roadmap

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Render writes the roadmap as plain text, one line per event under quarter
// and month headings. Equal roadmaps render to identical text.
func Render(r Roadmap) string {
	var b strings.Builder
	for _, q := range r.QuarterKeys() {
		fmt.Fprintf(&b, "%s\n", q)
		for _, month := range r.Quarters[q] {
			fmt.Fprintf(&b, "  %s\n", month)
			for _, ev := range r.Months[month] {
				fmt.Fprintf(&b, "    %s %-11s %s %s\n", ev.Date, ev.Kind, ev.AnnouncementID, ev.Title)
			}
		}
	}
	return b.String()
}

// Diff compares two rendered roadmaps line by line. Unchanged lines are
// prefixed with two spaces, removed with "- " and added with "+ ".
// It returns an empty string when the renderings are equal.
func Diff(prev, next string) string {
	if prev == next {
		return ""
	}
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(prev, next)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var out strings.Builder
	for _, d := range diffs {
		prefix := "  "
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			prefix = "- "
		case diffmatchpatch.DiffInsert:
			prefix = "+ "
		}
		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}
			out.WriteString(prefix)
			out.WriteString(line)
			if !strings.HasSuffix(line, "\n") {
				out.WriteString("\n")
			}
		}
	}
	return out.String()
}
