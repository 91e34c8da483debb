package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
)

// Analyze runs every rule against doc and returns the resolved set of
// Problems. No package state is read or written. Calling it twice with
// the same arguments yields the same problems in the same order, with
// the same ranges and fixes; only each Problem's ID differs, since every
// call assigns freshly generated ULIDs.
func Analyze(doc, langID, uri string, rules []Rule, settings Settings) []Problem {
	if len(rules) == 0 {
		return nil
	}
	if fileIgnored(uri, settings.IgnoreFilesList) {
		return nil
	}

	li := buildLineIndex(doc)
	problems := runRules(doc, langID, uri, rules, settings, li)
	return resolveOverrides(problems)
}

func fileIgnored(uri string, patterns []string) bool {
	for _, pat := range patterns {
		if ok, err := doublestar.Match(pat, uri); err == nil && ok {
			return true
		}
		if strings.Contains(uri, pat) {
			return true
		}
	}
	return false
}

// FixRecord is a remembered fix action, keyed so a later lookup by uri
// and composite key can hand a client back the exact edits to apply.
type FixRecord struct {
	Problem Problem
	Fix     FixEdit
}

// ActionCache is the engine facade's sole mutable state: a per-document
// map of recorded fix actions, guarded by a mutex so concurrent callers
// can share one cache safely.
type ActionCache struct {
	mu      sync.Mutex
	records map[string]map[string]FixRecord
}

// NewActionCache returns an empty cache ready for use.
func NewActionCache() *ActionCache {
	return &ActionCache{records: make(map[string]map[string]FixRecord)}
}

// Record stores a fix action for later retrieval, defaulting the fix's
// label when the rule's template left it empty, and returns the key it
// was stored under.
func (c *ActionCache) Record(uri string, problem Problem, fix FixEdit) string {
	if fix.Label == "" {
		fix.Label = fmt.Sprintf("Fix this %s problem", problem.RuleID)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	byKey, ok := c.records[uri]
	if !ok {
		byKey = make(map[string]FixRecord)
		c.records[uri] = byKey
	}

	key := compositeKey(problem, fix)
	for i := 0; ; i++ {
		candidate := key
		if i > 0 {
			candidate = fmt.Sprintf("%s-%d", key, i)
		}
		if _, exists := byKey[candidate]; !exists {
			byKey[candidate] = FixRecord{Problem: problem, Fix: fix}
			return candidate
		}
	}
}

// Fixes returns every fix action recorded for uri.
func (c *ActionCache) Fixes(uri string) []FixRecord {
	c.mu.Lock()
	defer c.mu.Unlock()

	byKey := c.records[uri]
	out := make([]FixRecord, 0, len(byKey))
	for _, rec := range byKey {
		out = append(out, rec)
	}
	return out
}

func compositeKey(problem Problem, fix FixEdit) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%d:%d-%d:%d|%s",
		problem.RuleID,
		fix.Range.Start.Line, fix.Range.Start.Character,
		fix.Range.End.Line, fix.Range.End.Character,
		fix.Label,
	)
	return hex.EncodeToString(h.Sum(nil))
}
