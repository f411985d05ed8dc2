// Package filter selects files by glob patterns and search terms. The CLI
// uses it for listings, thumbnail fetches and recursive uploads.
package filter

import (
	"path/filepath"
	"strings"

	"github.com/capiweb/capishare/internal/models"
)

// Config holds filter configuration.
type Config struct {
	// Include patterns (glob-style). Empty means include all.
	// Example: []string{"*.dat", "*.txt"}
	Include []string

	// Exclude patterns (glob-style). Takes precedence over Include.
	Exclude []string

	// Search terms, matched case-insensitively as substrings. A name must
	// contain every term.
	Search []string
}

// IsEmpty reports whether cfg lets everything through.
func (c Config) IsEmpty() bool {
	return len(c.Include) == 0 && len(c.Exclude) == 0 && len(c.Search) == 0
}

// Matches reports whether a file name passes the filter. Patterns are
// matched against the base name.
func (c Config) Matches(name string) bool {
	base := filepath.Base(name)

	for _, pattern := range c.Exclude {
		if matched, _ := filepath.Match(pattern, base); matched {
			return false
		}
	}

	if len(c.Include) > 0 {
		included := false
		for _, pattern := range c.Include {
			if matched, _ := filepath.Match(pattern, base); matched {
				included = true
				break
			}
		}
		if !included {
			return false
		}
	}

	lower := strings.ToLower(base)
	for _, term := range c.Search {
		if !strings.Contains(lower, strings.ToLower(term)) {
			return false
		}
	}
	return true
}

// Nodes keeps the files that match and every folder.
func Nodes(nodes []models.Node, c Config) []models.Node {
	if c.IsEmpty() {
		return nodes
	}
	out := make([]models.Node, 0, len(nodes))
	for _, n := range nodes {
		if n.Kind() == models.KindFolder || c.Matches(n.NodeName()) {
			out = append(out, n)
		}
	}
	return out
}

// Files keeps the files that match.
func Files(files []*models.File, c Config) []*models.File {
	if c.IsEmpty() {
		return files
	}
	out := make([]*models.File, 0, len(files))
	for _, f := range files {
		if c.Matches(f.Filename) {
			out = append(out, f)
		}
	}
	return out
}

// Paths keeps the local paths whose base name matches.
func Paths(paths []string, c Config) []string {
	if c.IsEmpty() {
		return paths
	}
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if c.Matches(p) {
			out = append(out, p)
		}
	}
	return out
}

// ParsePatternList parses a comma-separated list of patterns into a slice.
// Example: "*.dat,*.txt" -> []string{"*.dat", "*.txt"}
func ParsePatternList(patternStr string) []string {
	if patternStr == "" {
		return nil
	}
	parts := strings.Split(patternStr, ",")
	patterns := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			patterns = append(patterns, trimmed)
		}
	}
	return patterns
}
