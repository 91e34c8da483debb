package engine

import "strings"

// commentDelims holds a language's comment delimiters. An empty string
// means the language has no such comment form.
type commentDelims struct {
	Line       string
	BlockOpen  string
	BlockClose string
}

// commentTable is the fixed language-id -> delimiter mapping. Language
// ids not present here (including unknown languages) yield the zero
// value: no comment support at all, so scope and suppression checks
// simply never find a comment.
var commentTable = buildCommentTable()

func buildCommentTable() map[string]commentDelims {
	t := make(map[string]commentDelims)

	// Line comment only, no block form.
	for _, id := range []string{"lua", "sql", "tsql"} {
		t[id] = commentDelims{Line: "--"}
	}
	t["clojure"] = commentDelims{Line: ";;"}
	for _, id := range []string{
		"yaml", "shellscript", "ruby", "powershell", "coffeescript",
		"python", "r", "perl", "perl6",
	} {
		t[id] = commentDelims{Line: "#"}
	}
	t["jade"] = commentDelims{Line: "//-"}
	t["vb"] = commentDelims{Line: "'"}

	// html/xml: block comment only.
	t["html"] = commentDelims{BlockOpen: "<!--", BlockClose: "-->"}
	t["xml"] = commentDelims{BlockOpen: "<!--", BlockClose: "-->"}

	// fsharp: // line comment, (* *) block comment.
	t["fsharp"] = commentDelims{Line: "//", BlockOpen: "(*", BlockClose: "*)"}

	// C-family: // line comment, /* */ block comment.
	for _, id := range []string{
		"c", "cpp", "csharp", "groovy", "php", "javascript",
		"javascriptreact", "typescript", "typescriptreact", "java",
		"objective-c", "swift", "go", "rust",
	} {
		t[id] = commentDelims{Line: "//", BlockOpen: "/*", BlockClose: "*/"}
	}

	return t
}

func delimsFor(langID string) commentDelims {
	return commentTable[strings.ToLower(langID)]
}
