package tree

import (
	"fmt"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Matcher decides whether a relative path is excluded from mirroring.
// Patterns support:
//   - Simple glob patterns matched against the base name: *.tmp, *.log
//   - Directory patterns matched at any depth: .git/, node_modules/
//   - Path patterns matched against the whole relative path: build/*, **/test/*
type Matcher struct {
	patterns []pattern
}

type pattern struct {
	glob     string
	dirOnly  bool
	baseName bool
}

// NewMatcher compiles exclusion patterns. Empty patterns are ignored.
func NewMatcher(patterns []string) (*Matcher, error) {
	m := &Matcher{}

	for _, raw := range patterns {
		p := strings.TrimSpace(strings.ReplaceAll(raw, "\\", "/"))
		if p == "" {
			continue
		}

		var compiled pattern
		if strings.HasSuffix(p, "/") {
			compiled.dirOnly = true
			p = strings.TrimSuffix(p, "/")
		}
		p = strings.TrimPrefix(p, "/")
		compiled.baseName = !strings.Contains(p, "/")
		compiled.glob = p

		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid exclude pattern %q", raw)
		}

		m.patterns = append(m.patterns, compiled)
	}

	return m, nil
}

// Empty reports whether the matcher has no patterns
func (m *Matcher) Empty() bool {
	return m == nil || len(m.patterns) == 0
}

// Match reports whether relativePath (slash separated) is excluded. Entries
// below an excluded directory are excluded too since the scanner never
// descends into it.
func (m *Matcher) Match(relativePath string, isDir bool) bool {
	if m.Empty() {
		return false
	}

	base := path.Base(relativePath)
	for _, p := range m.patterns {
		if p.dirOnly && !isDir {
			continue
		}

		target := relativePath
		if p.baseName {
			target = base
		}

		if ok, _ := doublestar.Match(p.glob, target); ok {
			return true
		}
	}

	return false
}
