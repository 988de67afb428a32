// Package store loads and persists per-locale translation documents.
//
// Each locale lives in <dir>/<locale>.json as a nested JSON object whose
// leaves are strings. Documents are written with 4-space indentation and
// the in-memory key order, and the store is the only component that writes
// them to durable storage.
package store

import (
	"fmt"
	"os"
	"path/filepath"

	"keysync/pathtree"
)

// ReadError means one locale document is missing or malformed. Callers
// exclude the locale from the current pass and continue; it is fatal only
// when every locale fails.
type ReadError struct {
	Locale string
	Path   string
	Err    error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("locale %s: reading %s: %v", e.Locale, e.Path, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// WriteError means persisting one locale document failed. Already-written
// locales are not rolled back.
type WriteError struct {
	Locale string
	Path   string
	Err    error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("locale %s: writing %s: %v", e.Locale, e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// Store manages the locale documents under one directory.
type Store struct {
	Dir string
}

// New returns a store rooted at dir.
func New(dir string) *Store {
	return &Store{Dir: dir}
}

// Path returns the document path for a locale.
func (s *Store) Path(locale string) string {
	return filepath.Join(s.Dir, locale+".json")
}

// Load reads and parses one locale document.
func (s *Store) Load(locale string) (*pathtree.Tree, error) {
	path := s.Path(locale)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ReadError{Locale: locale, Path: path, Err: err}
	}
	doc, err := pathtree.Parse(data)
	if err != nil {
		return nil, &ReadError{Locale: locale, Path: path, Err: err}
	}
	return doc, nil
}

// Save persists one locale document. The document is serialized in its
// in-memory key order with fixed indentation and written to a temp file in
// the same directory, then renamed into place, so a crash mid-write never
// leaves a half-written document behind the locale's name.
func (s *Store) Save(locale string, doc *pathtree.Tree) error {
	path := s.Path(locale)
	if err := os.MkdirAll(s.Dir, 0755); err != nil {
		return &WriteError{Locale: locale, Path: path, Err: err}
	}

	tmp, err := os.CreateTemp(s.Dir, locale+"-*.json.tmp")
	if err != nil {
		return &WriteError{Locale: locale, Path: path, Err: err}
	}
	tmpPath := tmp.Name()

	_, werr := tmp.Write(doc.Marshal())
	cerr := tmp.Close()
	if werr == nil {
		werr = cerr
	}
	if werr == nil {
		werr = os.Chmod(tmpPath, 0644)
	}
	if werr == nil {
		werr = os.Rename(tmpPath, path)
	}
	if werr != nil {
		os.Remove(tmpPath)
		return &WriteError{Locale: locale, Path: path, Err: werr}
	}
	return nil
}

// Prune removes every leaf path not in valid from a locale document and
// returns the removed-leaf count. The document is persisted only when
// something was actually removed.
func (s *Store) Prune(locale string, valid map[string]bool) (int, error) {
	doc, err := s.Load(locale)
	if err != nil {
		return 0, err
	}
	return s.PruneDoc(locale, doc, valid)
}

// PruneDoc prunes an already loaded document, persisting only when
// something was removed. On a persist failure the returned count still
// reflects the in-memory removals; the on-disk document is untouched.
func (s *Store) PruneDoc(locale string, doc *pathtree.Tree, valid map[string]bool) (int, error) {
	removed := doc.Prune(valid)
	if removed == 0 {
		return 0, nil
	}
	if err := s.Save(locale, doc); err != nil {
		return removed, err
	}
	return removed, nil
}
