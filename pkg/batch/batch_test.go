package batch

import (
	"context"
	"testing"

	"github.com/codesentry/codesentry/pkg/engine"
)

func strcpyRule() engine.Rule {
	return engine.Rule{
		ID:       "DS100",
		Severity: "critical",
		Patterns: []engine.Pattern{{Kind: engine.PatternRegexWord, Pattern: "strcpy"}},
	}
}

func TestRun_AnalyzesEveryDocument(t *testing.T) {
	docs := []Document{
		{URI: "a.c", LangID: "c", Text: "strcpy(a,b);"},
		{URI: "b.c", LangID: "c", Text: "memcpy(a,b,1);"},
	}

	results, err := Run(context.Background(), docs, []engine.Rule{strcpyRule()}, Options{})
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].URI != "a.c" || len(results[0].Problems) != 1 {
		t.Errorf("a.c result = %+v, want 1 problem", results[0])
	}
	if results[1].URI != "b.c" || len(results[1].Problems) != 0 {
		t.Errorf("b.c result = %+v, want 0 problems", results[1])
	}
}

func TestSummarize(t *testing.T) {
	results := []Result{
		{URI: "a.c", Problems: []engine.Problem{{Severity: engine.SeverityCritical}}},
		{URI: "b.c", Problems: []engine.Problem{{Severity: engine.SeverityCritical}, {Severity: engine.SeverityModerate}}},
	}

	s := Summarize(results)
	if s.Documents != 2 || s.Problems != 3 {
		t.Fatalf("summary = %+v", s)
	}
	if s.BySeverity[engine.SeverityCritical] != 2 {
		t.Errorf("critical count = %d, want 2", s.BySeverity[engine.SeverityCritical])
	}
}
