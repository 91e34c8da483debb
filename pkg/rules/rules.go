// Package rules loads security rule packs from disk — YAML rule files
// that describe engine.Rule values — and keeps local rule-pack
// checkouts in sync with a remote git repository.
package rules

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/codesentry/codesentry/pkg/engine"
)

// fileRule is the on-disk YAML shape of a rule. It exists separately
// from engine.Rule so the engine package stays free of serialization
// tags.
type fileRule struct {
	ID             string          `yaml:"id"`
	Name           string          `yaml:"name"`
	Description    string          `yaml:"description"`
	Recommendation string          `yaml:"recommendation"`
	RuleInfo       string          `yaml:"rule_info"`
	Severity       string          `yaml:"severity"`
	AppliesTo      []string        `yaml:"applies_to"`
	Overrides      []string        `yaml:"overrides"`
	Patterns       []filePattern   `yaml:"patterns"`
	Conditions     []fileCondition `yaml:"conditions"`
	FixIts         []fileFixIt     `yaml:"fix_its"`
}

type filePattern struct {
	Kind      string   `yaml:"kind"`
	Pattern   string   `yaml:"pattern"`
	Modifiers string   `yaml:"modifiers"`
	Scopes    []string `yaml:"scopes"`
}

type fileCondition struct {
	Pattern       filePattern `yaml:"pattern"`
	SearchIn      string      `yaml:"search_in"`
	NegateFinding bool        `yaml:"negate_finding"`
}

type fileFixIt struct {
	Name        string      `yaml:"name"`
	Pattern     filePattern `yaml:"pattern"`
	Replacement string      `yaml:"replacement"`
}

// LoadError attributes a load failure to the file it came from so a
// single malformed rule file never prevents the rest of a pack from
// loading.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("rules: %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// LoadDir walks dir for *.yaml/*.yml rule files and returns every rule
// that parsed successfully, plus one LoadError per file that didn't.
// Rules are returned sorted by ID so callers get deterministic output
// across runs regardless of directory iteration order. When validate is
// true, each rule's shape is checked (non-empty id, at least one
// pattern, compilable regex) and a rule that fails is reported as a
// LoadError instead of loaded; when false, parsing is still required
// but shape/compile checks are skipped, matching
// Settings.ValidateRulesFiles's role as an opt-out for rule packs the
// caller already trusts.
func LoadDir(dir string, validate bool) ([]engine.Rule, []error) {
	var out []engine.Rule
	var errs []error

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, []error{&LoadError{Path: dir, Err: err}}
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}
		path := filepath.Join(dir, name)
		fileRules, err := loadFile(path, validate)
		if err != nil {
			errs = append(errs, &LoadError{Path: path, Err: err})
			continue
		}
		out = append(out, fileRules...)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, errs
}

func loadFile(path string, validate bool) ([]engine.Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rule file: %w", err)
	}

	var doc struct {
		Rules []fileRule `yaml:"rules"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing yaml: %w", err)
	}

	out := make([]engine.Rule, 0, len(doc.Rules))
	for _, fr := range doc.Rules {
		rule, err := convertRule(fr, validate)
		if err != nil {
			return nil, err
		}
		out = append(out, rule)
	}
	return out, nil
}

func convertRule(fr fileRule, validate bool) (engine.Rule, error) {
	if validate && fr.ID == "" {
		return engine.Rule{}, fmt.Errorf("rule missing id")
	}
	if validate && len(fr.Patterns) == 0 {
		return engine.Rule{}, fmt.Errorf("rule %s: has no patterns", fr.ID)
	}

	patterns := make([]engine.Pattern, 0, len(fr.Patterns))
	for _, fp := range fr.Patterns {
		p, err := convertPattern(fp, validate)
		if err != nil {
			return engine.Rule{}, fmt.Errorf("rule %s: %w", fr.ID, err)
		}
		patterns = append(patterns, p)
	}

	conditions := make([]engine.Condition, 0, len(fr.Conditions))
	for _, fc := range fr.Conditions {
		p, err := convertPattern(fc.Pattern, validate)
		if err != nil {
			return engine.Rule{}, fmt.Errorf("rule %s: condition: %w", fr.ID, err)
		}
		conditions = append(conditions, engine.Condition{
			Pattern:       p,
			SearchIn:      engine.ParseSearchIn(fc.SearchIn),
			NegateFinding: fc.NegateFinding,
		})
	}

	fixIts := make([]engine.FixTemplate, 0, len(fr.FixIts))
	for _, ff := range fr.FixIts {
		p, err := convertPattern(ff.Pattern, validate)
		if err != nil {
			return engine.Rule{}, fmt.Errorf("rule %s: fix_it %s: %w", fr.ID, ff.Name, err)
		}
		fixIts = append(fixIts, engine.FixTemplate{
			Name:        ff.Name,
			Pattern:     p,
			Replacement: ff.Replacement,
		})
	}

	return engine.Rule{
		ID:             fr.ID,
		Name:           fr.Name,
		Description:    fr.Description,
		Recommendation: fr.Recommendation,
		RuleInfo:       fr.RuleInfo,
		Severity:       fr.Severity,
		AppliesTo:      fr.AppliesTo,
		Overrides:      fr.Overrides,
		Patterns:       patterns,
		Conditions:     conditions,
		FixIts:         fixIts,
	}, nil
}

func convertPattern(fp filePattern, validate bool) (engine.Pattern, error) {
	kind := engine.PatternKind(fp.Kind)
	switch kind {
	case engine.PatternRegex, engine.PatternRegexWord, engine.PatternString, engine.PatternSubstring:
	case "":
		kind = engine.PatternRegex
	default:
		if validate {
			return engine.Pattern{}, fmt.Errorf("unknown pattern kind %q", fp.Kind)
		}
	}
	if validate && fp.Pattern == "" {
		return engine.Pattern{}, fmt.Errorf("pattern has empty body")
	}

	scopes := make([]engine.Scope, 0, len(fp.Scopes))
	for _, s := range fp.Scopes {
		scopes = append(scopes, engine.Scope(s))
	}

	if validate && (kind == engine.PatternRegex || kind == engine.PatternRegexWord) {
		if _, err := engine.Build(engine.Pattern{Kind: kind, Pattern: fp.Pattern, Modifiers: fp.Modifiers}, engine.DialectAnalysis); err != nil {
			return engine.Pattern{}, fmt.Errorf("compiling pattern %q: %w", fp.Pattern, err)
		}
	}

	return engine.Pattern{
		Kind:      kind,
		Pattern:   fp.Pattern,
		Modifiers: fp.Modifiers,
		Scopes:    scopes,
	}, nil
}
