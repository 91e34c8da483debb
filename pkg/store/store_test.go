package store

import (
	"path/filepath"
	"testing"

	"github.com/codesentry/codesentry/pkg/engine"
)

func openTestStore(t *testing.T) *ProblemStore {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "problems.db"), filepath.Join(dir, "search.bleve"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestReplaceForFile_RoundTrip(t *testing.T) {
	s := openTestStore(t)

	problems := []engine.Problem{
		{ID: "p1", RuleID: "DS100", Severity: engine.SeverityCritical, Message: "use of strcpy"},
		{ID: "p2", RuleID: "DS200", Severity: engine.SeverityModerate, Message: "use of gets"},
	}
	if err := s.ReplaceForFile("a.c", problems); err != nil {
		t.Fatalf("ReplaceForFile: %v", err)
	}

	got, err := s.ListForFile("a.c")
	if err != nil {
		t.Fatalf("ListForFile: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 problems, got %d", len(got))
	}
}

func TestReplaceForFile_ClearsStaleEntries(t *testing.T) {
	s := openTestStore(t)

	if err := s.ReplaceForFile("a.c", []engine.Problem{{ID: "p1", RuleID: "DS100"}}); err != nil {
		t.Fatalf("ReplaceForFile: %v", err)
	}
	if err := s.ReplaceForFile("a.c", []engine.Problem{{ID: "p2", RuleID: "DS200"}}); err != nil {
		t.Fatalf("ReplaceForFile: %v", err)
	}

	got, err := s.ListForFile("a.c")
	if err != nil {
		t.Fatalf("ListForFile: %v", err)
	}
	if len(got) != 1 || got[0].ID != "p2" {
		t.Fatalf("expected only p2 to remain, got %+v", got)
	}
}

func TestStats(t *testing.T) {
	s := openTestStore(t)
	problems := []engine.Problem{
		{ID: "p1", Severity: engine.SeverityCritical},
		{ID: "p2", Severity: engine.SeverityCritical},
		{ID: "p3", Severity: engine.SeverityModerate},
	}
	if err := s.ReplaceForFile("a.c", problems); err != nil {
		t.Fatalf("ReplaceForFile: %v", err)
	}

	stats, err := s.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Total != 3 {
		t.Errorf("total = %d, want 3", stats.Total)
	}
	if stats.BySeverity["Critical"] != 2 {
		t.Errorf("critical count = %d, want 2", stats.BySeverity["Critical"])
	}
}

func TestSearch_FindsByMessage(t *testing.T) {
	s := openTestStore(t)
	problems := []engine.Problem{
		{ID: "p1", RuleID: "DS100", Message: "use of strcpy is dangerous"},
		{ID: "p2", RuleID: "DS200", Message: "use of gets is dangerous"},
	}
	if err := s.ReplaceForFile("a.c", problems); err != nil {
		t.Fatalf("ReplaceForFile: %v", err)
	}

	recs, err := s.Search("strcpy", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(recs) != 1 || recs[0].Problem.ID != "p1" {
		t.Fatalf("expected to find p1, got %+v", recs)
	}
}
