package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/codesentry/codesentry/pkg/batch"
	"github.com/codesentry/codesentry/pkg/rules"
	"github.com/codesentry/codesentry/pkg/settings"
	"github.com/codesentry/codesentry/pkg/workspace"
)

// cmdScan walks the given paths (or the project root), loads the rule
// pack at <dbDir>/rules, analyzes every non-ignored file concurrently,
// and prints the resulting problems as a table.
func cmdScan(projectRoot, dbDir string, args []string) error {
	paths := args
	if len(paths) == 0 {
		paths = []string{projectRoot}
	}

	cfg, err := settings.Load(filepath.Join(dbDir, "settings.json"))
	if err != nil {
		return fmt.Errorf("loading settings: %w", err)
	}

	loaded, loadErrs := rules.LoadDir(filepath.Join(dbDir, "rules"), cfg.ValidateRulesFiles)
	for _, e := range loadErrs {
		fmt.Fprintf(os.Stderr, "sentry: %v\n", e)
	}
	if len(loaded) == 0 {
		return fmt.Errorf("no rules loaded from %s", filepath.Join(dbDir, "rules"))
	}

	ignore, err := workspace.New(projectRoot)
	if err != nil {
		return fmt.Errorf("loading ignore list: %w", err)
	}

	docs, err := collectDocuments(projectRoot, paths, ignore)
	if err != nil {
		return fmt.Errorf("collecting files: %w", err)
	}

	results, err := batch.Run(context.Background(), docs, loaded, batch.Options{Settings: cfg})
	if err != nil {
		return fmt.Errorf("scanning: %w", err)
	}

	printResults(results)
	summary := batch.Summarize(results)
	fmt.Printf("\n%d documents scanned, %d problems found\n", summary.Documents, summary.Problems)
	return nil
}

func collectDocuments(projectRoot string, paths []string, ignore *workspace.Matcher) ([]batch.Document, error) {
	var docs []batch.Document
	for _, root := range paths {
		err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			rel, relErr := filepath.Rel(projectRoot, path)
			if relErr != nil {
				rel = path
			}
			if d.IsDir() {
				if ignore.ShouldIgnoreDir(rel) {
					return filepath.SkipDir
				}
				return nil
			}
			if ignore.ShouldIgnoreFile(rel) {
				return nil
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return nil
			}
			docs = append(docs, batch.Document{
				URI:    rel,
				LangID: langFromExt(path),
				Text:   string(data),
			})
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return docs, nil
}

var extToLang = map[string]string{
	".go":   "go",
	".c":    "c",
	".h":    "c",
	".cpp":  "cpp",
	".cc":   "cpp",
	".cs":   "csharp",
	".py":   "python",
	".rb":   "ruby",
	".js":   "javascript",
	".ts":   "typescript",
	".java": "java",
	".php":  "php",
	".sh":   "shellscript",
	".yaml": "yaml",
	".yml":  "yaml",
	".sql":  "sql",
}

func langFromExt(path string) string {
	if lang, ok := extToLang[strings.ToLower(filepath.Ext(path))]; ok {
		return lang
	}
	return "plaintext"
}

func printResults(results []batch.Result) {
	table := tablewriter.NewWriter(os.Stdout)
	table.Header([]string{"File", "Line", "Severity", "Rule", "Message"})

	for _, r := range results {
		if r.Err != nil {
			table.Append([]string{r.URI, "-", "ERROR", "-", r.Err.Error()})
			continue
		}
		for _, p := range r.Problems {
			table.Append([]string{
				r.URI,
				strconv.Itoa(p.Range.Start.Line + 1),
				p.Severity.String(),
				p.RuleID,
				p.Message,
			})
		}
	}

	if err := table.Render(); err != nil {
		fmt.Fprintf(os.Stderr, "sentry: rendering table: %v\n", err)
	}
}
