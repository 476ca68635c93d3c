package ddxparse

import (
	"strings"
	"unicode"
)

// isListDelimiter matches the separators seen in free-text diagnosis lists,
// including their full-width forms.
func isListDelimiter(r rune) bool {
	switch r {
	case ',', ';', '\n', '\r', '，', '；':
		return true
	}
	return false
}

// isWrapper matches characters stripped from both ends of a split piece.
func isWrapper(r rune) bool {
	switch r {
	case '[', ']', '\'', '"', '`', '“', '”', '‘', '’':
		return true
	}
	return unicode.IsSpace(r)
}

// SplitDelimited splits free text on commas, semicolons and newlines and
// trims each piece of surrounding brackets, quotes and whitespace. Empty
// pieces are discarded; order and duplicates are preserved.
func SplitDelimited(raw string) []string {
	pieces := strings.FieldsFunc(raw, isListDelimiter)
	out := make([]string, 0, len(pieces))
	for _, p := range pieces {
		if p = strings.TrimFunc(p, isWrapper); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// SplitPhysicianList parses a physician-authored DDX text box: one diagnosis
// per line or separated by commas/semicolons, trimmed and de-duplicated
// keeping the first occurrence.
func SplitPhysicianList(text string) []string {
	pieces := strings.FieldsFunc(text, isListDelimiter)
	for i, p := range pieces {
		pieces[i] = strings.TrimSpace(p)
	}
	return Dedupe(pieces)
}

// Dedupe drops empty entries and removes duplicates by exact string equality
// while keeping first-seen order. Entries are not trimmed.
func Dedupe(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item == "" {
			continue
		}
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}
