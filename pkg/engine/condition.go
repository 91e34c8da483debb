package engine

import (
	"regexp"
	"strconv"
)

var findingRegionPattern = regexp.MustCompile(`^finding-region\(\s*(-?\d+)\s*,\s*(-?\d+)\s*\)$`)

// ParseSearchIn maps a condition's raw search_in string onto the
// SearchIn tagged union. Explicit tokens take precedence over the
// line-range fallback: "finding-only" and "finding-region(a,b)" are
// recognized exactly; anything else, including an empty string, falls
// through to SearchInLineRange.
func ParseSearchIn(raw string) SearchIn {
	if raw == "finding-only" {
		return SearchIn{Kind: SearchInFindingOnly}
	}
	if m := findingRegionPattern.FindStringSubmatch(raw); m != nil {
		start, _ := strconv.Atoi(m[1])
		end, _ := strconv.Atoi(m[2])
		return SearchIn{Kind: SearchInFindingRegion, DeltaStart: start, DeltaEnd: end}
	}
	return SearchIn{Kind: SearchInLineRange}
}

// evaluateConditions is a short-circuiting AND over every condition
// attached to a rule; a rule with no conditions is unconditionally
// satisfied.
func evaluateConditions(doc string, li *lineIndex, findingRange Range, conditions []Condition, langID string) bool {
	for _, cond := range conditions {
		if !evaluateCondition(doc, li, findingRange, cond, langID) {
			return false
		}
	}
	return true
}

// conditionRegion computes the [start, end) byte offsets the
// condition's pattern is searched within, given the primary finding's
// range.
func conditionRegion(li *lineIndex, doc string, findingRange Range, searchIn SearchIn) (int, int) {
	switch searchIn.Kind {
	case SearchInFindingOnly:
		return li.offset(findingRange.Start), li.offset(findingRange.End)
	case SearchInFindingRegion:
		startLine := findingRange.Start.Line + searchIn.DeltaStart
		endLine := findingRange.End.Line + searchIn.DeltaEnd + 1
		start := li.lineStart(startLine)
		end := li.lineStart(endLine)
		if end < start {
			end = start
		}
		return start, end
	default: // SearchInLineRange
		startLine, _ := li.lineCol(li.offset(findingRange.Start))
		endLine, _ := li.lineCol(li.offset(findingRange.End))
		return li.lineStart(startLine), li.lineStart(endLine + 1)
	}
}

// evaluateCondition scans for cond.Pattern within the region implied by
// cond.SearchIn, honoring the pattern's own scope restriction at each
// candidate match. A NegateFinding condition fails the rule the moment
// an in-scope match is found and passes if the whole region is scanned
// without one; a normal condition does the opposite.
func evaluateCondition(doc string, li *lineIndex, findingRange Range, cond Condition, langID string) bool {
	startOffset, endOffset := conditionRegion(li, doc, findingRange, cond.SearchIn)
	if startOffset > len(doc) || startOffset > endOffset {
		return cond.NegateFinding
	}

	re, err := Build(cond.Pattern, DialectAnalysis)
	if err != nil {
		// A malformed condition pattern can't be evaluated; treat the
		// condition as vacuously satisfied rather than blocking the
		// rule on a rules-authoring mistake.
		return true
	}

	region := doc[:endOffset]
	cursor := startOffset
	scopes := cond.Pattern.scopesOrDefault()

	for cursor <= endOffset {
		m, err := re.FindStringMatchStartingAt(region, cursor)
		if err != nil || m == nil {
			break
		}
		if m.Index > endOffset {
			break
		}

		if scopeMatches(doc, m.Index, scopes, langID) {
			if cond.NegateFinding {
				return false
			}
			return true
		}

		next := m.Index + m.Length
		if m.Length == 0 {
			next++
		}
		if next <= cursor {
			next = cursor + 1
		}
		cursor = next
	}

	return cond.NegateFinding
}
