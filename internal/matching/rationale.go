package matching

import (
	"sort"
	"strings"
)

var positiveSignals = []string{"matched", "compatible", "overlap", "preferred"}

// IsPositive reports whether a rationale line describes a satisfied criterion.
func IsPositive(line string) bool {
	lower := strings.ToLower(line)
	for _, s := range positiveSignals {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

// SummarizeRationale moves positive lines ahead of negative ones, keeping the
// relative order inside each group, and keeps at most n lines. The input is
// not modified.
func SummarizeRationale(rationale []string, n int) []string {
	out := make([]string, len(rationale))
	copy(out, rationale)
	sort.SliceStable(out, func(i, j int) bool {
		return IsPositive(out[i]) && !IsPositive(out[j])
	})
	if n > 0 && n < len(out) {
		out = out[:n]
	}
	return out
}
