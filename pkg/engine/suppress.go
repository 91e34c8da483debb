package engine

import (
	"strings"
	"time"

	"github.com/dlclark/regexp2"
)

// SuppressionResult is the outcome of checking a candidate finding
// against inline suppression directives.
type SuppressionResult struct {
	Suppressed bool
	// DirectiveLine is the zero-based line the directive comment was
	// found on. Only meaningful when Suppressed is true.
	DirectiveLine int
	// RuleColumnInComment is the column within DirectiveLine where the
	// rule id (or, for an all-rules directive, the directive text such
	// as "DevSkim: ignore") starts. -1 when Suppressed is false.
	RuleColumnInComment int
	// RuleIDLength is the length, in characters, of the span
	// RuleColumnInComment anchors — either the matched rule id token or
	// the directive text's length when the directive has no id list.
	RuleIDLength int
}

var (
	directivePattern = regexp2.MustCompile(`(?i)devskim\s*:\s*(ignore|reviewed)\b`, regexp2.None)
	untilPattern      = regexp2.MustCompile(`(?i)until\s+(\d{4}-\d{2}-\d{2})`, regexp2.None)
)

// detectSuppression decides whether the candidate finding at
// findingOffset has been suppressed by a "DevSkim: ignore"/"DevSkim:
// reviewed" directive comment on the finding's line, or the line
// immediately before it (covering the common "annotate the line
// above" style for languages whose comment form reads awkwardly
// trailing code).
func detectSuppression(doc string, li *lineIndex, findingOffset int, ruleID string, severity Severity) SuppressionResult {
	none := SuppressionResult{RuleColumnInComment: -1}

	curLine, _ := li.lineCol(findingOffset)
	curStart := li.lineStart(curLine)
	curEnd := li.lineStart(curLine + 1)
	curEnd = trimTrailingNewline(doc, curStart, curEnd)

	if res, ok := checkLineForSuppression(doc[curStart:curEnd], curLine, ruleID, severity); ok {
		return res
	}

	if curLine > 0 {
		prevLine := curLine - 1
		prevStart := li.lineStart(prevLine)
		prevEnd := trimTrailingNewline(doc, prevStart, li.lineStart(prevLine+1))
		if res, ok := checkLineForSuppression(doc[prevStart:prevEnd], prevLine, ruleID, severity); ok {
			return res
		}
	}

	return none
}

func trimTrailingNewline(doc string, start, end int) int {
	if end > start && end <= len(doc) && doc[end-1] == '\n' {
		end--
	}
	return end
}

func checkLineForSuppression(lineText string, lineNo int, ruleID string, severity Severity) (SuppressionResult, bool) {
	m, err := directivePattern.FindStringMatch(lineText)
	if err != nil || m == nil {
		return SuppressionResult{}, false
	}

	keyword := strings.ToLower(m.GroupByNumber(1).String())
	if keyword == "reviewed" && severity != SeverityManualReview {
		return SuppressionResult{}, false
	}

	rest := lineText[m.Index+m.Length:]
	idsPart := rest

	if um, _ := untilPattern.FindStringMatch(rest); um != nil {
		dateStr := um.GroupByNumber(1).String()
		if isExpired(dateStr) {
			return SuppressionResult{}, false
		}
		idsPart = rest[:um.Index]
	}

	idsPart = strings.Trim(idsPart, " \t[]")
	ids := splitIDList(idsPart)

	if len(ids) == 0 {
		return SuppressionResult{
			Suppressed:           true,
			DirectiveLine:        lineNo,
			RuleColumnInComment:  m.Index,
			RuleIDLength:         m.Length,
		}, true
	}

	for _, id := range ids {
		if strings.EqualFold(id, ruleID) {
			tail := lineText[m.Index+m.Length:]
			col, length := m.Index, m.Length
			if idx := indexFold(tail, id); idx >= 0 {
				col = m.Index + m.Length + idx
				length = len(id)
			}
			return SuppressionResult{
				Suppressed:          true,
				DirectiveLine:       lineNo,
				RuleColumnInComment: col,
				RuleIDLength:        length,
			}, true
		}
	}

	return SuppressionResult{}, false
}

func splitIDList(s string) []string {
	var ids []string
	for _, tok := range strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	}) {
		tok = strings.TrimSpace(tok)
		if tok != "" {
			ids = append(ids, tok)
		}
	}
	return ids
}

func indexFold(s, sub string) int {
	return strings.Index(strings.ToLower(s), strings.ToLower(sub))
}

// isExpired reports whether dateStr (YYYY-MM-DD) names a day strictly
// before today in UTC. An unparsable date is treated as not expired —
// a malformed "until" clause shouldn't silently re-enable a suppressed
// finding.
func isExpired(dateStr string) bool {
	until, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		return false
	}
	now := time.Now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return until.Before(today)
}
