package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/codesentry/codesentry/pkg/rules"
)

func cmdRules(dbDir string, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: sentry rules <sync|list|remove> [arguments]")
	}

	cacheDir := filepath.Join(dbDir, "rules")

	switch args[0] {
	case "sync":
		if len(args) < 3 {
			return fmt.Errorf("usage: sentry rules sync <name> <git-url> [ref]")
		}
		ref := ""
		if len(args) >= 4 {
			ref = args[3]
		}
		dest, err := rules.SyncGit(context.Background(), cacheDir, args[1], args[2], ref)
		if err != nil {
			return err
		}
		fmt.Printf("synced %s -> %s\n", args[1], dest)
		return nil

	case "list":
		names, err := rules.Installed(cacheDir)
		if err != nil {
			return err
		}
		for _, n := range names {
			fmt.Println(n)
		}
		return nil

	case "remove":
		if len(args) < 2 {
			return fmt.Errorf("usage: sentry rules remove <name>")
		}
		return rules.Remove(cacheDir, args[1])

	default:
		return fmt.Errorf("unknown rules subcommand: %s", args[0])
	}
}
