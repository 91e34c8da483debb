package engine

// BuildFixes computes the automatic-fix edits offered for a matched
// finding. Each fix template is applied independently to the matched
// text; a template that fails to compile or produces no replacement is
// silently skipped rather than failing the whole rule. Edits are
// appended in the rule author's natural template order, which already
// matches the surfaced order callers expect.
func BuildFixes(matched string, matchRange Range, fixIts []FixTemplate) []FixEdit {
	if len(fixIts) == 0 {
		return nil
	}

	var edits []FixEdit
	for _, ft := range fixIts {
		re, err := Build(ft.Pattern, DialectFix)
		if err != nil {
			continue
		}
		replaced, err := re.Replace(matched, ft.Replacement, -1, 1)
		if err != nil {
			continue
		}
		if replaced == matched {
			continue
		}
		edits = append(edits, FixEdit{
			Label:   ft.Name,
			Range:   matchRange,
			NewText: replaced,
		})
	}
	return edits
}
