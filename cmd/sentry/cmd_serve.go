package main

import (
	"flag"
	"path/filepath"

	"github.com/codesentry/codesentry/pkg/server"
	"github.com/codesentry/codesentry/pkg/store"
)

func cmdServe(dbDir string, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	addr := fs.String("addr", ":8787", "address to listen on")
	if err := fs.Parse(args); err != nil {
		return err
	}

	st, err := store.Open(filepath.Join(dbDir, "problems.db"), filepath.Join(dbDir, "search.bleve"))
	if err != nil {
		return err
	}
	defer st.Close()

	return server.NewServer(st, *addr).Start()
}
