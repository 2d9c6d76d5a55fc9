//go:build mage

// Package main contains Mage build targets for scopus-harvest developer tooling.
package main

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// projectDirs lists the working directories a harvest expects.
var projectDirs = []string{
	"data",
	"data/scopus",
	".secrets",
}

const (
	binDir  = "bin"
	binName = "scopus-harvest"
	cmdPkg  = "./cmd/scopus-harvest"

	sampleRoster = "data/authors.csv"
)

// Init creates the data directories, a sample roster if none exists, and
// the .secrets directory for scopus-api-keys.
func Init() error {
	for _, dir := range projectDirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
		fmt.Println("  ", dir)
	}
	if _, err := os.Stat(sampleRoster); os.IsNotExist(err) {
		if err := os.WriteFile(sampleRoster, []byte("author_id,name\n"), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", sampleRoster, err)
		}
		fmt.Println("  ", sampleRoster, "(empty roster; add author_id,name rows)")
	}
	fmt.Println("Project directories initialized. Put your API keys in .secrets/scopus-api-keys.")
	return nil
}

// Build compiles the CLI binary into bin/.
func Build() error {
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", binDir, err)
	}
	out := filepath.Join(binDir, binName)
	if err := sh.RunV("go", "build", "-o", out, cmdPkg); err != nil {
		return fmt.Errorf("go build: %w", err)
	}
	fmt.Printf("Built %s\n", out)
	return nil
}

// Test runs the unit tests.
func Test() error {
	return sh.RunV("go", "test", "./...")
}

// Harvest builds the CLI and runs a harvest with the default settings.
// Extra flags can be passed in HARVEST_ARGS.
func Harvest() error {
	mg.Deps(Build)
	args := append([]string{"harvest"}, strings.Fields(os.Getenv("HARVEST_ARGS"))...)
	return sh.RunV(filepath.Join(binDir, binName), args...)
}

// Stats prints project metrics: Go production and test line counts.
func Stats() error {
	prodLines, err := countGoLines(".", false)
	if err != nil {
		return err
	}
	testLines, err := countGoLines(".", true)
	if err != nil {
		return err
	}

	fmt.Printf("Lines of code (Go, production): %d\n", prodLines)
	fmt.Printf("Lines of code (Go, tests):      %d\n", testLines)
	return nil
}

// countGoLines walks the tree and counts non-blank lines in Go files,
// skipping dot and underscore directories. If testOnly is true, only
// _test.go files count; otherwise only non-test files do.
func countGoLines(root string, testOnly bool) (int, error) {
	total := 0
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			name := info.Name()
			if path != root && (strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_")) {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != ".go" {
			return nil
		}
		if strings.HasSuffix(path, "_test.go") != testOnly {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		scanner := bufio.NewScanner(bytes.NewReader(data))
		for scanner.Scan() {
			if strings.TrimSpace(scanner.Text()) != "" {
				total++
			}
		}
		return scanner.Err()
	})
	return total, err
}
