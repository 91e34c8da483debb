package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/codesentry/codesentry/pkg/mcpapi"
	"github.com/codesentry/codesentry/pkg/rules"
	"github.com/codesentry/codesentry/pkg/settings"
	"github.com/codesentry/codesentry/pkg/store"
)

func cmdMCP(dbDir string, args []string) error {
	cfg, err := settings.Load(filepath.Join(dbDir, "settings.json"))
	if err != nil {
		return err
	}

	loaded, loadErrs := rules.LoadDir(filepath.Join(dbDir, "rules"), cfg.ValidateRulesFiles)
	for _, e := range loadErrs {
		fmt.Fprintln(os.Stderr, e)
	}

	st, err := store.Open(filepath.Join(dbDir, "problems.db"), filepath.Join(dbDir, "search.bleve"))
	if err != nil {
		return err
	}
	defer st.Close()

	return mcpapi.NewServer(st, loaded).Run()
}
