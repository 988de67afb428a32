// Package extract implements lexical extraction of translation keys from a
// source corpus. It scans matched files for calls to a translation function
// with a quoted string-literal first argument, e.g.
//
//	t('common.greeting')
//	t("menu.items.save", { count: n })
//
// This is pattern-based, not a parser for the host language: it handles one
// well-defined call shape. Dynamically constructed keys are an accepted
// blind spot, documented rather than chased with heavier parsing.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// Warning records a file that was skipped during scanning.
type Warning struct {
	Path string
	Err  error
}

func (w Warning) String() string {
	return fmt.Sprintf("skipped %s: %v", w.Path, w.Err)
}

// Result is the outcome of a corpus scan.
type Result struct {
	// Keys is the sorted, deduplicated set of extracted key paths.
	Keys []string
	// Files is the number of files scanned.
	Files int
	// Warnings lists files that could not be read.
	Warnings []Warning
}

// Scanner finds translation keys under a corpus root.
type Scanner struct {
	// Root is the corpus directory.
	Root string
	// Extensions are file extensions to scan, without leading dot.
	Extensions []string
	// Exclude are directory or file base names skipped at any depth.
	Exclude []string
	// Functions are the translation function names to match.
	Functions []string

	patterns []*regexp.Regexp
}

// NewScanner builds a scanner. Function names must be non-empty and are
// matched as whole identifiers.
func NewScanner(root string, extensions, exclude, functions []string) (*Scanner, error) {
	s := &Scanner{
		Root:       root,
		Extensions: extensions,
		Exclude:    exclude,
		Functions:  functions,
	}
	for _, fn := range functions {
		re, err := compileCallPattern(fn)
		if err != nil {
			return nil, err
		}
		s.patterns = append(s.patterns, re)
	}
	if len(s.patterns) == 0 {
		return nil, fmt.Errorf("no translation functions configured")
	}
	return s, nil
}

// compileCallPattern builds the call-shape regexp for one function name:
// the name as a whole identifier, an opening paren, a quoted key path, and
// an optional trailing argument list skipped non-greedily across lines.
func compileCallPattern(fn string) (*regexp.Regexp, error) {
	if fn == "" || strings.ContainsAny(fn, "(). \t") {
		return nil, fmt.Errorf("invalid translation function name %q", fn)
	}
	// (?s) lets the trailing-argument group span multi-line calls.
	expr := `(?s)\b` + regexp.QuoteMeta(fn) +
		`\(\s*(['"` + "`" + `])([A-Za-z0-9._-]+)(['"` + "`" + `])\s*(?:,.*?)?\)`
	return regexp.Compile(expr)
}

// Scan walks the corpus and returns the extracted key set. Unreadable files
// and directories are recorded as warnings and skipped, never fatal.
func (s *Scanner) Scan() (*Result, error) {
	files, warns := s.matchFiles()

	res := &Result{Warnings: warns}
	set := make(map[string]bool)

	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			res.Warnings = append(res.Warnings, Warning{Path: path, Err: err})
			continue
		}
		res.Files++
		for key := range s.extractKeys(string(data)) {
			set[key] = true
		}
	}

	res.Keys = make([]string, 0, len(set))
	for k := range set {
		res.Keys = append(res.Keys, k)
	}
	sort.Strings(res.Keys)
	return res, nil
}

// extractKeys returns the set of keys referenced in one file's content.
func (s *Scanner) extractKeys(content string) map[string]bool {
	keys := make(map[string]bool)
	for _, re := range s.patterns {
		for _, m := range re.FindAllStringSubmatch(content, -1) {
			// Opening and closing quote must agree.
			if m[1] != m[3] {
				continue
			}
			if key := m[2]; wellFormed(key) {
				keys[key] = true
			}
		}
	}
	return keys
}

// wellFormed rejects keys with empty segments ("a..b", ".a", "a.").
func wellFormed(key string) bool {
	if key == "" {
		return false
	}
	for _, seg := range strings.Split(key, ".") {
		if seg == "" {
			return false
		}
	}
	return true
}

// matchFiles collects corpus files by extension, skipping excluded names.
// Output is sorted so extraction never depends on walk order. Entries the
// walk cannot stat or list come back as warnings rather than files.
func (s *Scanner) matchFiles() ([]string, []Warning) {
	wantExt := make(map[string]bool, len(s.Extensions))
	for _, ext := range s.Extensions {
		wantExt["."+strings.TrimPrefix(ext, ".")] = true
	}
	skip := make(map[string]bool, len(s.Exclude))
	for _, name := range s.Exclude {
		skip[name] = true
	}

	var files []string
	var warns []Warning
	filepath.Walk(s.Root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			// Anything under an unlistable entry silently vanishing from
			// the key set would feed the prune step bad data, so record it.
			warns = append(warns, Warning{Path: path, Err: err})
			return nil
		}
		name := info.Name()
		if info.IsDir() {
			if path != s.Root && skip[name] {
				return filepath.SkipDir
			}
			return nil
		}
		if skip[name] {
			return nil
		}
		// Declaration-only files never contain calls worth scanning.
		if strings.HasSuffix(name, ".d.ts") {
			return nil
		}
		if wantExt[filepath.Ext(name)] {
			files = append(files, path)
		}
		return nil
	})
	sort.Strings(files)
	return files, warns
}
