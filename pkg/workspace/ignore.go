// Package workspace provides gitignore-compatible file matching used to
// keep scans out of vendor trees, build artifacts, and other noise
// before a document ever reaches the analysis engine.
//
// It loads patterns from a project's .sentryignore file (if present),
// merges them with built-in defaults, and exposes ShouldIgnore (with
// the ShouldIgnoreDir/ShouldIgnoreFile shorthands used by the scan
// command's file walk and the file watcher).
//
// Pattern syntax mirrors .gitignore:
//
//	# comment
//	*.pb.go          — match files by extension
//	vendor/          — match directories by name (trailing slash)
//	**/test/         — match at any depth
//	!important.go    — negate a previous pattern
//	/rootonly        — anchored to project root (leading slash)
package workspace

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Matcher tests whether a path should be ignored.
type Matcher struct {
	rules []rule
}

type rule struct {
	pattern  string
	negation bool
	dirOnly  bool
	anchored bool
}

// BuiltinDefaults are patterns applied even when no .sentryignore file
// exists.
var BuiltinDefaults = []string{
	".git/",
	".svn/",
	".hg/",
	".sentry/",

	"node_modules/",
	"dist/",
	".next/",
	".cache/",

	"__pycache__/",
	".venv/",
	"venv/",
	".mypy_cache/",
	"*.egg-info/",

	"vendor/",
	"target/",
	"build/",
	".gradle/",
	"out/",
	"bin/",
	"obj/",

	".idea/",
	".vscode/",
	".DS_Store",

	"*.pb.go",
	"*_generated.go",
	"*.gen.go",

	"**/testdata/",
	"**/fixtures/",

	"*.lock",
}

// New creates a Matcher from built-in defaults plus an optional
// .sentryignore file located at <projectRoot>/.sentryignore.
func New(projectRoot string) (*Matcher, error) {
	m := NewFromDefaults()
	ignoreFile := filepath.Join(projectRoot, ".sentryignore")
	if err := m.loadFile(ignoreFile); err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	return m, nil
}

// NewFromDefaults creates a Matcher using only built-in defaults.
func NewFromDefaults() *Matcher {
	m := &Matcher{}
	for _, p := range BuiltinDefaults {
		m.rules = append(m.rules, parsePattern(p))
	}
	return m
}

// NewEmpty creates a Matcher with no rules at all.
func NewEmpty() *Matcher {
	return &Matcher{}
}

// ShouldIgnore reports whether path (relative to the project root,
// forward-slash separated) should be ignored. isDir must be true when
// path refers to a directory. Rules are evaluated in order — the last
// matching rule wins, mirroring git's own precedence so a later
// .sentryignore entry can negate a built-in default.
func (m *Matcher) ShouldIgnore(path string, isDir bool) bool {
	path = filepath.ToSlash(path)
	path = strings.TrimSuffix(path, "/")
	if path == "" || path == "." {
		return false
	}

	ignored := false
	matched := false
	for _, r := range m.rules {
		if r.dirOnly && !isDir {
			continue
		}
		if r.match(path) {
			ignored = !r.negation
			matched = true
		}
	}

	if ignored {
		return true
	}
	if matched {
		return false
	}

	if !isDir {
		parts := strings.Split(path, "/")
		for i := 1; i <= len(parts)-1; i++ {
			if m.ShouldIgnore(strings.Join(parts[:i], "/"), true) {
				return true
			}
		}
	}
	return false
}

// ShouldIgnoreDir is a convenience for ShouldIgnore(path, true).
func (m *Matcher) ShouldIgnoreDir(path string) bool { return m.ShouldIgnore(path, true) }

// ShouldIgnoreFile is a convenience for ShouldIgnore(path, false).
func (m *Matcher) ShouldIgnoreFile(path string) bool { return m.ShouldIgnore(path, false) }

// WalkFunc returns a skip-check for use inside filepath.WalkDir
// callbacks, converting absolute paths to project-relative ones first.
func (m *Matcher) WalkFunc(projectRoot string) func(path string, isDir bool) (skip, skipDir bool) {
	return func(path string, isDir bool) (bool, bool) {
		rel, err := filepath.Rel(projectRoot, path)
		if err != nil {
			rel = path
		}
		if m.ShouldIgnore(rel, isDir) {
			if isDir {
				return true, true
			}
			return true, false
		}
		return false, false
	}
}

func (m *Matcher) loadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		m.rules = append(m.rules, parsePattern(line))
	}
	return scanner.Err()
}

func parsePattern(pattern string) rule {
	r := rule{}
	if strings.HasPrefix(pattern, "!") {
		r.negation = true
		pattern = pattern[1:]
	}
	if strings.HasSuffix(pattern, "/") {
		r.dirOnly = true
		pattern = strings.TrimSuffix(pattern, "/")
	}
	if strings.HasPrefix(pattern, "/") {
		r.anchored = true
		pattern = strings.TrimPrefix(pattern, "/")
	}
	if !r.anchored && strings.Contains(pattern, "/") {
		r.anchored = true
	}
	r.pattern = pattern
	return r
}

// match tests whether a rule matches path, a root-relative,
// forward-slash path with no trailing slash. Matching is delegated to
// doublestar, which natively understands "**" at any position, so this
// no longer needs the teacher's hand-rolled double-star walkers.
func (r *rule) match(path string) bool {
	if r.anchored {
		ok, _ := doublestar.Match(r.pattern, path)
		return ok
	}

	if ok, _ := doublestar.Match(r.pattern, basename(path)); ok {
		return true
	}
	ok, _ := doublestar.Match("**/"+r.pattern, path)
	return ok
}

func basename(path string) string {
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[i+1:]
	}
	return path
}
