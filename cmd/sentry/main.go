// Package main provides the CLI for sentry.
package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/codesentry/codesentry/internal/version"
)

const defaultDBDir = ".sentry"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	projectRoot := findProjectRoot()
	dbDir := getEnvOrDefault("SENTRY_DATA_DIR", filepath.Join(projectRoot, defaultDBDir))
	if err := os.MkdirAll(dbDir, 0o755); err != nil {
		fatal("failed to create data directory: %v", err)
	}

	if err := runCommand(cmd, projectRoot, dbDir, args); err != nil {
		fatal("%v", err)
	}
}

func runCommand(cmd, projectRoot, dbDir string, args []string) error {
	switch cmd {
	case "scan":
		return cmdScan(projectRoot, dbDir, args)
	case "rules":
		return cmdRules(dbDir, args)
	case "serve":
		return cmdServe(dbDir, args)
	case "mcp":
		return cmdMCP(dbDir, args)
	case "watch":
		return cmdWatch(projectRoot, dbDir, args)
	case "help", "-h", "--help":
		printUsage()
		return nil
	case "version", "-v", "--version":
		return cmdVersion(args)
	default:
		return fmt.Errorf("unknown command: %s", cmd)
	}
}

func cmdVersion(args []string) error {
	for _, arg := range args {
		if arg == "--json" {
			fmt.Println(version.JSON())
			return nil
		}
	}
	fmt.Println(version.String())
	return nil
}

func printUsage() {
	fmt.Printf(`sentry %s - pattern-based source code security scanner

Usage:
  sentry <command> [arguments]

Commands:
  scan      Analyze files against loaded rule packs and print problems
  rules     Manage rule packs (sync, list, remove)
  serve     Run the HTTP JSON API over the problem store
  mcp       Run the MCP tool server over stdio
  watch     Watch a project tree and re-scan changed files
  version   Print version information
  help      Show this message

`, version.Short())
}

func findProjectRoot() string {
	cmd := exec.Command("git", "rev-parse", "--show-toplevel")
	output, err := cmd.Output()
	if err == nil {
		return strings.TrimSpace(string(output))
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "."
	}

	dir := cwd
	for {
		if _, err := os.Stat(filepath.Join(dir, ".sentry")); err == nil {
			return dir
		}
		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return cwd
		}
		dir = parent
	}
}

func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "sentry: "+format+"\n", args...)
	os.Exit(1)
}
