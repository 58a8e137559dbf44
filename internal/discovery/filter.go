package discovery

import (
	"path/filepath"
	"strings"
)

// Filter filters test identifiers by name patterns
type Filter struct{}

// NewFilter creates a new Filter
func NewFilter() *Filter {
	return &Filter{}
}

// FilterByPatterns keeps the ids matching at least one pattern.
// No patterns keeps everything.
func (f *Filter) FilterByPatterns(ids []string, patterns []string) []string {
	if len(patterns) == 0 {
		return ids
	}

	var filtered []string
	for _, id := range ids {
		for _, pattern := range patterns {
			if f.Match(id, pattern) {
				filtered = append(filtered, id)
				break
			}
		}
	}
	return filtered
}

// Match reports whether a test id matches a wildcard pattern.
// Supports patterns like "LoginTests/*" or "*Payment*"; a pattern without
// wildcards matches as a substring.
func (f *Filter) Match(id, pattern string) bool {
	if pattern == "" {
		return false
	}

	if matched, err := filepath.Match(pattern, id); err == nil && matched {
		return true
	}

	if !strings.ContainsAny(pattern, "*?") {
		return strings.Contains(id, pattern)
	}
	if strings.Contains(pattern, "?") {
		return false
	}

	// `*` in filepath.Match does not cross "/", fall back to ordered parts
	parts := strings.Split(pattern, "*")
	rest := id
	nonEmpty := 0
	for i, part := range parts {
		if part == "" {
			continue
		}
		nonEmpty++
		idx := strings.Index(rest, part)
		if idx < 0 || (i == 0 && idx != 0) {
			return false
		}
		rest = rest[idx+len(part):]
	}
	if last := parts[len(parts)-1]; last != "" && !strings.HasSuffix(id, last) {
		return false
	}
	return nonEmpty > 0
}
