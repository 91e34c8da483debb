// Package batch runs engine.Analyze concurrently across a set of
// documents, bounding fan-out the way the teacher's findings.Runner
// bounds its per-file goroutines — but through golang.org/x/sync's
// errgroup instead of a hand-rolled semaphore channel.
package batch

import (
	"context"
	"fmt"
	"log"
	"os"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/codesentry/codesentry/pkg/engine"
)

var batchLog = log.New(os.Stderr, "[sentry:batch] ", log.Ltime)

// DefaultConcurrency bounds how many documents are analyzed at once
// when a Run call doesn't override it.
const DefaultConcurrency = 8

// Document is one file's contents to analyze.
type Document struct {
	URI    string
	LangID string
	Text   string
}

// Result pairs a Document's URI with the problems found in it, or the
// error that prevented analysis — a document-level failure never
// aborts the rest of the batch, mirroring the teacher's per-file
// isolation in AnalyzeSecrets and friends.
type Result struct {
	URI      string
	Problems []engine.Problem
	Err      error
}

// Options configures a Run call.
type Options struct {
	Concurrency int
	Settings    engine.Settings
}

// Run analyzes every document concurrently, bounded by
// opts.Concurrency (DefaultConcurrency if unset), and returns results
// sorted by URI for deterministic output.
func Run(ctx context.Context, docs []Document, rules []engine.Rule, opts Options) ([]Result, error) {
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	results := make([]Result, len(docs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, doc := range docs {
		i, doc := i, doc
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			results[i] = analyzeOne(doc, rules, opts.Settings)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("batch: %w", err)
	}

	sort.Slice(results, func(i, j int) bool { return results[i].URI < results[j].URI })
	return results, nil
}

func analyzeOne(doc Document, rules []engine.Rule, settings engine.Settings) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			batchLog.Printf("panic analyzing %s: %v", doc.URI, r)
			res = Result{URI: doc.URI, Err: fmt.Errorf("panic analyzing %s: %v", doc.URI, r)}
		}
	}()

	problems := engine.Analyze(doc.Text, doc.LangID, doc.URI, rules, settings)
	return Result{URI: doc.URI, Problems: problems}
}

// Summary aggregates problem counts across a batch run by severity,
// the way a CLI "scan" subcommand reports a one-line total.
type Summary struct {
	Documents int
	Problems  int
	BySeverity map[engine.Severity]int
}

// Summarize computes a Summary over a batch of results.
func Summarize(results []Result) Summary {
	s := Summary{Documents: len(results), BySeverity: make(map[engine.Severity]int)}
	for _, r := range results {
		s.Problems += len(r.Problems)
		for _, p := range r.Problems {
			s.BySeverity[p.Severity]++
		}
	}
	return s
}
