package engine

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/dlclark/regexp2"
)

// Dialect selects which capability surface Build targets. The design
// note in the spec calls for one builder parameterised by target
// dialect rather than two separate engines; both dialects compile
// through regexp2, but DialectFix never gets a dot-matches-newline
// translation because the fix-substitution surface has no equivalent
// for it.
type Dialect int

const (
	// DialectAnalysis is used for rule and condition patterns: richer,
	// translates the 'd' modifier to regexp2's Singleline inline flag.
	DialectAnalysis Dialect = iota
	// DialectFix is used for fix-template patterns: the 'd' modifier is
	// silently dropped.
	DialectFix
)

// buildFlags copies modifier characters verbatim into a regexp2 inline
// flag group, except 'd' which is translated per dialect.
func buildFlags(modifiers string, dialect Dialect) string {
	var sb strings.Builder
	for _, c := range modifiers {
		if c == 'd' {
			if dialect == DialectAnalysis {
				sb.WriteByte('s')
			}
			continue
		}
		sb.WriteRune(c)
	}
	return sb.String()
}

func patternSource(p Pattern) (string, error) {
	switch p.Kind {
	case PatternRegex:
		return p.Pattern, nil
	case PatternRegexWord:
		return `\b` + p.Pattern + `\b`, nil
	case PatternString:
		return `\b` + regexp.QuoteMeta(p.Pattern) + `\b`, nil
	case PatternSubstring:
		return regexp.QuoteMeta(p.Pattern), nil
	default:
		return "", fmt.Errorf("engine: unknown pattern kind %q", p.Kind)
	}
}

// Build compiles a Pattern for the given dialect. The returned regex
// has no implicit scanning mode attached — callers choose whether to
// scan with FindStringMatchStartingAt (the "global" cursor walk used by
// rule and condition matching) or take a single match (fix
// substitution).
func Build(p Pattern, dialect Dialect) (*regexp2.Regexp, error) {
	src, err := patternSource(p)
	if err != nil {
		return nil, err
	}

	flags := buildFlags(p.Modifiers, dialect)
	if flags != "" {
		src = "(?" + flags + ")" + src
	}

	re, err := regexp2.Compile(src, regexp2.None)
	if err != nil {
		return nil, fmt.Errorf("engine: compiling pattern %q: %w", p.Pattern, err)
	}
	return re, nil
}
