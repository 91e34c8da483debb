package engine

import (
	"strings"

	"github.com/oklog/ulid/v2"
)

// computeRange converts a byte [offset, offset+length) match span into
// a line/character Range, handling matches that straddle multiple
// lines.
func computeRange(li *lineIndex, doc string, offset, length int) Range {
	startLine, startCol := li.lineCol(offset)
	endOffset := offset + length

	if length == 0 {
		return Range{
			Start: Position{Line: startLine, Character: startCol},
			End:   Position{Line: startLine, Character: startCol},
		}
	}

	matched := doc[offset:endOffset]
	lastNL := strings.LastIndexByte(matched, '\n')
	if lastNL < 0 {
		return Range{
			Start: Position{Line: startLine, Character: startCol},
			End:   Position{Line: startLine, Character: startCol + length},
		}
	}

	newlines := strings.Count(matched, "\n")
	endLine := startLine + newlines
	endCol := length - lastNL - 1
	return Range{
		Start: Position{Line: startLine, Character: startCol},
		End:   Position{Line: endLine, Character: endCol},
	}
}

// appliesToMatches reports whether a rule whose AppliesTo list is
// appliesTo should run against a document with the given lowercased
// language id and uri. An entry containing a dot is matched as a
// filename-fragment substring against uri (e.g. ".csproj",
// "web.config"); any other entry is matched as an exact, case-insensitive
// language id.
func appliesToMatches(appliesTo []string, langLower string, uri string) bool {
	if len(appliesTo) == 0 {
		return true
	}
	for _, entry := range appliesTo {
		if strings.Contains(entry, ".") {
			if strings.Contains(uri, entry) {
				return true
			}
			continue
		}
		if strings.EqualFold(entry, langLower) {
			return true
		}
	}
	return false
}

// runRules scans doc against every rule, producing either live
// Problems or WarningInfo suppression-acknowledgement markers — never
// both for the same candidate match.
func runRules(doc, langID, uri string, rules []Rule, settings Settings, li *lineIndex) []Problem {
	langLower := strings.ToLower(langID)
	var problems []Problem

	for _, rule := range rules {
		if containsFold(settings.IgnoreRulesList, rule.ID) {
			continue
		}
		sev := ParseSeverity(rule.Severity)
		if !settings.severityEnabled(sev) {
			continue
		}
		if !appliesToMatches(rule.AppliesTo, langLower, uri) {
			continue
		}

		for _, pattern := range rule.Patterns {
			problems = append(problems, runPattern(doc, langID, li, rule, sev, pattern, settings)...)
		}
	}

	return problems
}

func runPattern(doc, langID string, li *lineIndex, rule Rule, sev Severity, pattern Pattern, settings Settings) []Problem {
	re, err := Build(pattern, DialectAnalysis)
	if err != nil {
		return nil
	}

	var out []Problem
	scopes := pattern.scopesOrDefault()
	cursor := 0

	for cursor <= len(doc) {
		m, err := re.FindStringMatchStartingAt(doc, cursor)
		if err != nil || m == nil {
			break
		}

		next := m.Index + m.Length
		if m.Length == 0 {
			next = m.Index + 1
		}
		if next <= cursor {
			next = cursor + 1
		}

		if !scopeMatches(doc, m.Index, scopes, langID) {
			cursor = next
			continue
		}

		findingRange := computeRange(li, doc, m.Index, m.Length)

		if !evaluateConditions(doc, li, findingRange, rule.Conditions, langID) {
			cursor = next
			continue
		}

		suppression := detectSuppression(doc, li, m.Index, rule.ID, sev)
		if suppression.Suppressed {
			out = append(out, warningInfoProblem(rule, li, suppression, findingRange))
			cursor = next
			continue
		}

		out = append(out, liveProblem(rule, sev, m.String(), findingRange))
		cursor = next
	}

	return out
}

func liveProblem(rule Rule, sev Severity, matched string, findingRange Range) Problem {
	return Problem{
		ID:             ulid.Make().String(),
		RuleID:         rule.ID,
		Severity:       sev,
		Range:          findingRange,
		Name:           rule.Name,
		Message:        rule.Description,
		Recommendation: rule.Recommendation,
		RuleInfo:       rule.RuleInfo,
		Fixes:          BuildFixes(matched, findingRange, rule.FixIts),
		Overrides:      rule.Overrides,
	}
}

func warningInfoProblem(rule Rule, li *lineIndex, suppression SuppressionResult, findingRange Range) Problem {
	directiveRange := Range{
		Start: Position{Line: suppression.DirectiveLine, Character: suppression.RuleColumnInComment},
		End:   Position{Line: suppression.DirectiveLine, Character: suppression.RuleColumnInComment + suppression.RuleIDLength},
	}
	return Problem{
		ID:                     ulid.Make().String(),
		RuleID:                 rule.ID,
		Severity:               SeverityWarningInfo,
		Range:                  directiveRange,
		Name:                   rule.Name,
		Message:                "Suppressed finding: " + rule.Description,
		Recommendation:         rule.Recommendation,
		RuleInfo:               rule.RuleInfo,
		SuppressedFindingRange: &findingRange,
	}
}
