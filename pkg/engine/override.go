package engine

// resolveOverrides removes problems that a higher-priority problem
// anchored at the same location names in its Overrides list. This
// converges in a bounded number of passes rather than recursing: each
// pass clears the Overrides list of every problem that fired so a
// cycle can't loop forever, and the loop stops as soon as a pass
// removes nothing.
func resolveOverrides(problems []Problem) []Problem {
	working := make([]Problem, len(problems))
	copy(working, problems)
	removed := make([]bool, len(working))

	for {
		progress := false

		for i := range working {
			if removed[i] || len(working[i].Overrides) == 0 {
				continue
			}
			anchor := anchorPosition(working[i])

			for j := range working {
				if i == j || removed[j] {
					continue
				}
				if working[j].Range.Start != anchor {
					continue
				}
				if containsFold(working[i].Overrides, working[j].RuleID) {
					removed[j] = true
					progress = true
				}
			}

			working[i].Overrides = nil
		}

		if !progress {
			break
		}
	}

	out := make([]Problem, 0, len(working))
	for i, p := range working {
		if !removed[i] {
			out = append(out, p)
		}
	}
	return out
}

func anchorPosition(p Problem) Position {
	if p.SuppressedFindingRange != nil {
		return p.SuppressedFindingRange.Start
	}
	return p.Range.Start
}
