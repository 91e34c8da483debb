package engine

import "testing"

// =============================================================================
// Analyze end-to-end scenarios
// =============================================================================

func basicRule(id string) Rule {
	return Rule{
		ID:       id,
		Name:     "Use of strcpy",
		Severity: "critical",
		Patterns: []Pattern{
			{Kind: PatternRegexWord, Pattern: `strcpy`},
		},
	}
}

func TestAnalyze_LiveFinding(t *testing.T) {
	doc := "void f() {\n  strcpy(dst, src);\n}\n"
	problems := Analyze(doc, "c", "f.c", []Rule{basicRule("DS100")}, Settings{})

	if len(problems) != 1 {
		t.Fatalf("expected 1 problem, got %d", len(problems))
	}
	p := problems[0]
	if p.Severity != SeverityCritical {
		t.Errorf("severity = %v, want Critical", p.Severity)
	}
	if p.Range.Start.Line != 1 {
		t.Errorf("start line = %d, want 1", p.Range.Start.Line)
	}
}

func TestAnalyze_NoRulesReturnsNil(t *testing.T) {
	if got := Analyze("strcpy(a,b)", "c", "f.c", nil, Settings{}); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
}

func TestAnalyze_IgnoredFileReturnsNil(t *testing.T) {
	settings := Settings{IgnoreFilesList: []string{"**/vendor/**"}}
	doc := "strcpy(a,b)"
	got := Analyze(doc, "c", "vendor/thirdparty/f.c", []Rule{basicRule("DS100")}, settings)
	if got != nil {
		t.Fatalf("expected nil for ignored file, got %v", got)
	}
}

func TestAnalyze_SuppressedByIgnoreDirective(t *testing.T) {
	doc := "strcpy(dst, src); // DevSkim: ignore DS100\n"
	problems := Analyze(doc, "c", "f.c", []Rule{basicRule("DS100")}, Settings{})

	if len(problems) != 1 {
		t.Fatalf("expected 1 problem, got %d", len(problems))
	}
	if problems[0].Severity != SeverityWarningInfo {
		t.Errorf("severity = %v, want WarningInfo", problems[0].Severity)
	}
	if problems[0].SuppressedFindingRange == nil {
		t.Error("expected SuppressedFindingRange to be set")
	}
}

func TestAnalyze_ExpiredUntilDirectiveStillFlags(t *testing.T) {
	doc := "strcpy(dst, src); // DevSkim: ignore DS100 until 2000-01-01\n"
	problems := Analyze(doc, "c", "f.c", []Rule{basicRule("DS100")}, Settings{})

	if len(problems) != 1 {
		t.Fatalf("expected 1 problem, got %d", len(problems))
	}
	if problems[0].Severity != SeverityCritical {
		t.Errorf("severity = %v, want Critical (expired suppression should flag live)", problems[0].Severity)
	}
}

func TestAnalyze_FutureUntilDirectiveSuppresses(t *testing.T) {
	doc := "strcpy(dst, src); // DevSkim: ignore DS100 until 2999-01-01\n"
	problems := Analyze(doc, "c", "f.c", []Rule{basicRule("DS100")}, Settings{})

	if len(problems) != 1 {
		t.Fatalf("expected 1 problem, got %d", len(problems))
	}
	if problems[0].Severity != SeverityWarningInfo {
		t.Errorf("severity = %v, want WarningInfo", problems[0].Severity)
	}
}

func TestAnalyze_BestPracticeGatedByDefault(t *testing.T) {
	rule := basicRule("DS200")
	rule.Severity = "bestpractice"
	doc := "strcpy(a,b)"

	problems := Analyze(doc, "c", "f.c", []Rule{rule}, Settings{})
	if len(problems) != 0 {
		t.Fatalf("expected best-practice rule disabled by default, got %d problems", len(problems))
	}

	problems = Analyze(doc, "c", "f.c", []Rule{rule}, Settings{EnableBestPracticeRules: true})
	if len(problems) != 1 {
		t.Fatalf("expected 1 problem once enabled, got %d", len(problems))
	}
}

func TestAnalyze_IgnoredRuleListSuppressesEntirely(t *testing.T) {
	doc := "strcpy(a,b)"
	settings := Settings{IgnoreRulesList: []string{"ds100"}}
	problems := Analyze(doc, "c", "f.c", []Rule{basicRule("DS100")}, settings)
	if len(problems) != 0 {
		t.Fatalf("expected 0 problems, got %d", len(problems))
	}
}

func TestAnalyze_CommentScopeExcludesMatch(t *testing.T) {
	rule := basicRule("DS100")
	rule.Patterns[0].Scopes = []Scope{ScopeCode}
	doc := "// strcpy(a,b) mentioned only in a comment\n"

	problems := Analyze(doc, "c", "f.c", []Rule{rule}, Settings{})
	if len(problems) != 0 {
		t.Fatalf("expected 0 problems for comment-only match, got %d", len(problems))
	}
}

func TestAnalyze_ConditionGatesMatch(t *testing.T) {
	rule := basicRule("DS100")
	rule.Conditions = []Condition{
		{
			Pattern:       Pattern{Kind: PatternRegexWord, Pattern: `safe_mode`},
			SearchIn:      ParseSearchIn(""),
			NegateFinding: true,
		},
	}

	withoutSafe := Analyze("strcpy(a,b)", "c", "f.c", []Rule{rule}, Settings{})
	if len(withoutSafe) != 1 {
		t.Fatalf("expected 1 problem without safe_mode nearby, got %d", len(withoutSafe))
	}

	withSafe := Analyze("safe_mode strcpy(a,b)", "c", "f.c", []Rule{rule}, Settings{})
	if len(withSafe) != 0 {
		t.Fatalf("expected 0 problems, condition should fail the rule")
	}
}

func TestAnalyze_FindingRegionShiftsByLines(t *testing.T) {
	rule := Rule{
		ID:       "DS300",
		Name:     "open without matching close nearby",
		Severity: "critical",
		Patterns: []Pattern{
			{Kind: PatternRegexWord, Pattern: `open\(`},
		},
		Conditions: []Condition{
			{
				Pattern:       Pattern{Kind: PatternRegexWord, Pattern: `close\(`},
				SearchIn:      ParseSearchIn("finding-region(0,3)"),
				NegateFinding: true,
			},
		},
	}

	doc := "open(f)\nread(f)\nclose(f)\nuse(f)\n"
	problems := Analyze(doc, "c", "f.c", []Rule{rule}, Settings{})
	if len(problems) != 0 {
		t.Fatalf("expected finding-region(0,3) to reach close( on line 2 and negate the rule, got %d problems", len(problems))
	}
}

func TestAnalyze_OverrideRemovesLowerPriorityFinding(t *testing.T) {
	broad := basicRule("DS100-generic")
	specific := basicRule("DS100-specific")
	specific.Overrides = []string{"DS100-generic"}

	doc := "strcpy(a,b)"
	problems := Analyze(doc, "c", "f.c", []Rule{broad, specific}, Settings{})

	if len(problems) != 1 {
		t.Fatalf("expected override to collapse to 1 problem, got %d", len(problems))
	}
	if problems[0].RuleID != "DS100-specific" {
		t.Errorf("surviving rule = %s, want DS100-specific", problems[0].RuleID)
	}
}

// TestResolveOverrides_AnchorsOnOverridingProblemOnly exercises spec's
// literal anchor comparison: the overriding problem's anchor is its
// SuppressedFindingRange.Start when it was itself suppressed, but the
// candidate-to-remove is matched by its own plain Range.Start, not by
// applying the same suppressed-range substitution to the candidate.
func TestResolveOverrides_AnchorsOnOverridingProblemOnly(t *testing.T) {
	anchor := Position{Line: 0, Character: 0}
	directiveRange := Range{Start: Position{Line: 0, Character: 20}, End: Position{Line: 0, Character: 26}}

	overriding := Problem{
		RuleID:                 "DS100-specific",
		Range:                  directiveRange,
		SuppressedFindingRange: &Range{Start: anchor, End: Position{Line: 0, Character: 6}},
		Overrides:              []string{"DS100-generic"},
	}
	candidate := Problem{
		RuleID: "DS100-generic",
		Range:  Range{Start: anchor, End: Position{Line: 0, Character: 6}},
	}

	out := resolveOverrides([]Problem{overriding, candidate})
	if len(out) != 1 {
		t.Fatalf("expected the candidate anchored at the same point to be removed, got %d problems", len(out))
	}
	if out[0].RuleID != "DS100-specific" {
		t.Errorf("surviving rule = %s, want DS100-specific", out[0].RuleID)
	}
}

// TestResolveOverrides_CandidateMatchedByOwnRangeNotItsSuppressedAnchor
// covers the narrower edge case the anchor-on-both-sides bug produced:
// a candidate whose *own* SuppressedFindingRange happens to coincide
// with the overriding problem's anchor, but whose literal Range does
// not, must survive — only a literal Range.Start match removes it.
func TestResolveOverrides_CandidateMatchedByOwnRangeNotItsSuppressedAnchor(t *testing.T) {
	anchor := Position{Line: 0, Character: 0}

	overriding := Problem{
		RuleID:     "DS100-specific",
		Range:      Range{Start: anchor, End: Position{Line: 0, Character: 6}},
		Overrides:  []string{"DS100-generic"},
	}
	candidate := Problem{
		RuleID:                 "DS100-generic",
		Range:                  Range{Start: Position{Line: 0, Character: 20}, End: Position{Line: 0, Character: 26}},
		SuppressedFindingRange: &Range{Start: anchor, End: Position{Line: 0, Character: 6}},
	}

	out := resolveOverrides([]Problem{overriding, candidate})
	if len(out) != 2 {
		t.Fatalf("expected the candidate to survive since its literal Range doesn't match the anchor, got %d problems", len(out))
	}
}

func TestAnalyze_FixEditsAttached(t *testing.T) {
	rule := basicRule("DS100")
	rule.FixIts = []FixTemplate{
		{
			Name:        "Use strcpy_s",
			Pattern:     Pattern{Kind: PatternRegex, Pattern: `strcpy`},
			Replacement: "strcpy_s",
		},
	}

	problems := Analyze("strcpy(a,b)", "c", "f.c", []Rule{rule}, Settings{})
	if len(problems) != 1 {
		t.Fatalf("expected 1 problem, got %d", len(problems))
	}
	if len(problems[0].Fixes) != 1 {
		t.Fatalf("expected 1 fix edit, got %d", len(problems[0].Fixes))
	}
	if problems[0].Fixes[0].NewText != "strcpy_s" {
		t.Errorf("fix text = %q, want strcpy_s", problems[0].Fixes[0].NewText)
	}
}

func TestAnalyze_AppliesToFiltersLanguage(t *testing.T) {
	rule := basicRule("DS100")
	rule.AppliesTo = []string{"python"}

	problems := Analyze("strcpy(a,b)", "c", "f.c", []Rule{rule}, Settings{})
	if len(problems) != 0 {
		t.Fatalf("expected 0 problems for non-matching language, got %d", len(problems))
	}
}

// =============================================================================
// ActionCache
// =============================================================================

func TestActionCache_RecordAndFetch(t *testing.T) {
	cache := NewActionCache()
	problem := Problem{RuleID: "DS100"}
	fix := FixEdit{NewText: "strcpy_s"}

	key := cache.Record("f.c", problem, fix)
	if key == "" {
		t.Fatal("expected non-empty key")
	}

	recs := cache.Fixes("f.c")
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recs))
	}
	if recs[0].Fix.Label != "Fix this DS100 problem" {
		t.Errorf("label = %q, want default label", recs[0].Fix.Label)
	}
}

func TestActionCache_DistinctKeysForDistinctFixes(t *testing.T) {
	cache := NewActionCache()
	problem := Problem{RuleID: "DS100"}

	k1 := cache.Record("f.c", problem, FixEdit{NewText: "a", Label: "one"})
	k2 := cache.Record("f.c", problem, FixEdit{NewText: "b", Label: "two"})
	if k1 == k2 {
		t.Fatal("expected distinct keys for distinct fixes")
	}
	if len(cache.Fixes("f.c")) != 2 {
		t.Fatalf("expected 2 records, got %d", len(cache.Fixes("f.c")))
	}
}
