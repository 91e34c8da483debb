package engine

import "strings"

// isInComment reports whether the offset just past prefix sits inside a
// comment. prefix is the document truncated to just before that
// offset; newlineIndex is the offset of the last newline in prefix, or
// -1 if prefix has none.
//
// This is a lexical approximation, not a parser: it ignores string
// literals and conditional-compilation blocks, so a line comment
// delimiter embedded in a string literal will be mistaken for a real
// comment. Preview-quality by design.
func isInComment(prefix string, newlineIndex int, onlyBlock bool, langID string) bool {
	d := delimsFor(langID)

	if !onlyBlock && d.Line != "" {
		start := newlineIndex
		if start < 0 {
			start = 0
		}
		if start <= len(prefix) && strings.Contains(prefix[start:], d.Line) {
			return true
		}
	}

	if d.BlockOpen != "" && d.BlockClose != "" {
		return strings.LastIndex(prefix, d.BlockOpen) > strings.LastIndex(prefix, d.BlockClose)
	}

	return false
}

// isWholeLineLineComment reports whether the line ending at prefix (the
// same line/newlineIndex pair isInComment uses) is, once trimmed, a
// line comment from its first character.
func isWholeLineLineComment(prefix string, newlineIndex int, langID string) bool {
	d := delimsFor(langID)
	if d.Line == "" {
		return false
	}
	start := newlineIndex
	if start < 0 {
		start = 0
	}
	if start > len(prefix) {
		return false
	}
	trimmed := strings.TrimSpace(prefix[start:])
	return strings.HasPrefix(trimmed, d.Line)
}

// isWholeLineBlockCommented reports whether prefix, trimmed, is itself
// entirely inside an open-then-closed block comment ending exactly at
// its last character — i.e. the whole line is "/* ... */" with nothing
// trailing the closer.
func isWholeLineBlockCommented(prefix string, langID string) bool {
	d := delimsFor(langID)
	if d.BlockOpen == "" || d.BlockClose == "" {
		return false
	}
	t := strings.TrimSpace(prefix)
	openIdx := strings.LastIndex(t, d.BlockOpen)
	closeIdx := strings.LastIndex(t, d.BlockClose)
	return openIdx < closeIdx && closeIdx == len(t)-len(d.BlockClose)
}

// scopeMatches reports whether the lexical context at offset satisfies
// one of the given scopes. An empty scopes list defaults to {all}.
func scopeMatches(doc string, offset int, scopes []Scope, langID string) bool {
	if len(scopes) == 0 {
		scopes = []Scope{ScopeAll}
	}
	if hasScope(scopes, ScopeAll) {
		return true
	}
	prefix := doc[:offset]
	nl := lastNewlineInPrefix(prefix)
	inComment := isInComment(prefix, nl, false, langID)
	if hasScope(scopes, ScopeCode) && !inComment {
		return true
	}
	if hasScope(scopes, ScopeComment) && inComment {
		return true
	}
	return false
}
