package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/codesentry/codesentry/pkg/engine"
	"github.com/codesentry/codesentry/pkg/rules"
	"github.com/codesentry/codesentry/pkg/settings"
	"github.com/codesentry/codesentry/pkg/store"
	"github.com/codesentry/codesentry/pkg/watch"
	"github.com/codesentry/codesentry/pkg/workspace"
)

// cmdWatch watches the given paths (or the project root) and
// re-analyzes every changed file
// against the loaded rule pack, persisting results to the store as
// they arrive.
func cmdWatch(projectRoot, dbDir string, args []string) error {
	cfg, err := settings.Load(filepath.Join(dbDir, "settings.json"))
	if err != nil {
		return err
	}

	loaded, loadErrs := rules.LoadDir(filepath.Join(dbDir, "rules"), cfg.ValidateRulesFiles)
	for _, e := range loadErrs {
		fmt.Fprintf(os.Stderr, "sentry: %v\n", e)
	}
	if len(loaded) == 0 {
		return fmt.Errorf("no rules loaded from %s", filepath.Join(dbDir, "rules"))
	}

	st, err := store.Open(filepath.Join(dbDir, "problems.db"), filepath.Join(dbDir, "search.bleve"))
	if err != nil {
		return err
	}
	defer st.Close()

	ignore, err := workspace.New(projectRoot)
	if err != nil {
		return err
	}

	paths := args
	if len(paths) == 0 {
		paths = []string{projectRoot}
	}

	w, err := watch.New(watch.Config{Paths: paths, Ignore: ignore})
	if err != nil {
		return err
	}

	w.AddHandler(watch.ChangeHandlerFunc(func(files map[string]fsnotify.Op) {
		for path, op := range files {
			rel, relErr := filepath.Rel(projectRoot, path)
			if relErr != nil {
				rel = path
			}

			if watch.IsRemove(op) {
				if err := st.ReplaceForFile(rel, nil); err != nil {
					fmt.Fprintf(os.Stderr, "sentry: clearing %s: %v\n", rel, err)
				}
				continue
			}

			data, err := os.ReadFile(path)
			if err != nil {
				continue
			}

			problems := engine.Analyze(string(data), langFromExt(path), rel, loaded, cfg)
			if err := st.ReplaceForFile(rel, problems); err != nil {
				fmt.Fprintf(os.Stderr, "sentry: storing %s: %v\n", rel, err)
				continue
			}
			fmt.Printf("%s: %d problems\n", rel, len(problems))
		}
	}))

	if err := w.Start(); err != nil {
		return err
	}
	defer w.Stop()

	fmt.Println("watching for changes, press Ctrl+C to stop")
	select {}
}
