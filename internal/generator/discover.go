package generator

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bxb100/backon/pkg/expand"
)

// Discover resolves command line patterns into template files.
//
// A pattern ending in "/..." walks the directory tree, a plain directory is
// scanned without descending, and anything else is taken as a file name.
// Directory scans keep only files constrained by //go:build tag; test files and
// previously generated files are never returned. An empty pattern list means ".".
func Discover(patterns []string, tag, suffix string) ([]string, error) {
	if len(patterns) == 0 {
		patterns = []string{"."}
	}

	seen := make(map[string]bool)
	var files []string
	add := func(path string) {
		path = filepath.Clean(path)
		if !seen[path] {
			seen[path] = true
			files = append(files, path)
		}
	}

	for _, pattern := range patterns {
		if root, ok := strings.CutSuffix(pattern, "..."); ok {
			root = strings.TrimSuffix(root, "/")
			if root == "" {
				root = "."
			}
			if err := walk(root, tag, suffix, add); err != nil {
				return nil, err
			}
			continue
		}

		info, err := os.Stat(pattern)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s: %w", pattern, err)
		}
		if !info.IsDir() {
			add(pattern)
			continue
		}
		if err := scanDir(pattern, tag, suffix, add); err != nil {
			return nil, err
		}
	}

	sort.Strings(files)
	return files, nil
}

func walk(root, tag, suffix string, add func(string)) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("failed to walk %s: %w", path, err)
		}
		if d.IsDir() {
			if path != root && skipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		return consider(path, d.Name(), tag, suffix, add)
	})
}

func scanDir(dir, tag, suffix string, add func(string)) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", dir, err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if err := consider(filepath.Join(dir, e.Name()), e.Name(), tag, suffix, add); err != nil {
			return err
		}
	}
	return nil
}

func consider(path, name, tag, suffix string, add func(string)) error {
	if !isCandidate(name, suffix) {
		return nil
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if expand.IsTemplate(src, tag) {
		add(path)
	}
	return nil
}

func isCandidate(name, suffix string) bool {
	return strings.HasSuffix(name, ".go") &&
		!strings.HasSuffix(name, "_test.go") &&
		!strings.HasSuffix(name, suffix)
}

// skipDir mirrors the go tool: hidden, underscore, testdata and vendor trees are ignored
func skipDir(name string) bool {
	return strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") ||
		name == "testdata" || name == "vendor"
}
