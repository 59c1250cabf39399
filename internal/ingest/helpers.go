package ingest

import (
	"crypto/sha1"
	"encoding/hex"
	"regexp"
	"strings"
)

// normalizeSpace collapses multiple spaces into one and trims the string.
func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// listDelimiters separates items inside a single list cell.
var listDelimiters = regexp.MustCompile(`[,\t/;|·\n]`)

// splitList breaks a list cell into trimmed, case-insensitively unique items.
func splitList(cell string) []string {
	if strings.TrimSpace(cell) == "" {
		return nil
	}
	return mergeUniqueFold(nil, listDelimiters.Split(cell, -1))
}

func mergeUniqueFold(dst []string, items []string) []string {
	seen := make(map[string]struct{}, len(dst))
	for _, v := range dst {
		k := strings.ToLower(strings.TrimSpace(v))
		if k != "" {
			seen[k] = struct{}{}
		}
	}

	for _, v := range items {
		v = normalizeSpace(v)
		if v == "" {
			continue
		}
		k := strings.ToLower(v)
		if _, ok := seen[k]; ok {
			continue
		}
		dst = append(dst, v)
		seen[k] = struct{}{}
	}

	return dst
}

// stableID derives a deterministic identifier for records whose source
// publishes none.
func stableID(source string, parts ...string) string {
	h := sha1.New()
	for _, p := range parts {
		h.Write([]byte(normalizeSpace(p)))
		h.Write([]byte{0})
	}
	prefix := source
	if prefix == "" {
		prefix = "src"
	}
	return prefix + "-" + hex.EncodeToString(h.Sum(nil))[:12]
}

// firstNonEmpty returns the first value that is not blank after trimming.
func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
