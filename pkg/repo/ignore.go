package repo

import (
	"bufio"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// IgnoreChecker determines whether a path should be skipped by status and
// add. It always ignores .grit/ and .git/; extra patterns come from a
// .gritignore file at the repository root.
type IgnoreChecker struct {
	patterns []ignorePattern
}

type ignorePattern struct {
	pattern  string
	negated  bool
	dirOnly  bool
	hasSlash bool // pattern contains a slash, so match against full path
}

// NewIgnoreChecker creates an IgnoreChecker for the given repository root.
func NewIgnoreChecker(repoRoot string) *IgnoreChecker {
	ic := &IgnoreChecker{
		patterns: []ignorePattern{
			{pattern: ".grit"},
			{pattern: ".git"},
		},
	}

	f, err := os.Open(filepath.Join(repoRoot, ".gritignore"))
	if err != nil {
		return ic
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if p := parseIgnoreLine(scanner.Text()); p != nil {
			ic.patterns = append(ic.patterns, *p)
		}
	}
	return ic
}

// parseIgnoreLine parses a single .gritignore line. Returns nil for blank
// lines and comments.
func parseIgnoreLine(line string) *ignorePattern {
	line = strings.TrimRight(line, " \t")
	if line == "" || strings.HasPrefix(line, "#") {
		return nil
	}

	p := &ignorePattern{}
	if strings.HasPrefix(line, "!") {
		p.negated = true
		line = line[1:]
	}
	if strings.HasSuffix(line, "/") {
		p.dirOnly = true
		line = strings.TrimRight(line, "/")
	}
	p.hasSlash = strings.Contains(line, "/")
	p.pattern = line
	return p
}

// IsIgnored checks whether a repo-relative forward-slash path should be
// ignored. Last matching pattern wins, so negations can re-include paths.
func (ic *IgnoreChecker) IsIgnored(relPath string) bool {
	relPath = filepath.ToSlash(relPath)
	base := path.Base(relPath)

	ignored := false
	for _, p := range ic.patterns {
		if p.matches(relPath, base) {
			ignored = !p.negated
		}
	}
	return ignored
}

func (p *ignorePattern) matches(relPath, base string) bool {
	if p.hasSlash {
		if ok, _ := path.Match(p.pattern, relPath); ok {
			return true
		}
		// A directory pattern also covers everything under it.
		return strings.HasPrefix(relPath, p.pattern+"/")
	}

	// Basename patterns match the path's own name or any ancestor directory.
	if ok, _ := path.Match(p.pattern, base); ok {
		return true
	}
	for _, seg := range strings.Split(path.Dir(relPath), "/") {
		if ok, _ := path.Match(p.pattern, seg); ok {
			return true
		}
	}
	return false
}
