// Package editcsv is the editing boundary: it exchanges a reconciliation
// result with an external editor as a CSV table, one row per key path, one
// column per locale plus a leading key column. encoding/csv handles the
// escaping of embedded separators, quotes, and newlines.
package editcsv

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"keysync/reconcile"
)

// KeyColumn is the header name of the key-path column.
const KeyColumn = "key"

// Write emits one row per key in result order. Absent and empty values
// both render as empty cells: either way the cell is there to be filled
// in.
func Write(w io.Writer, res *reconcile.Result) error {
	cw := csv.NewWriter(w)

	header := append([]string{KeyColumn}, res.Locales...)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}

	for _, key := range res.Keys {
		row := make([]string, 0, len(header))
		row = append(row, key)
		for _, locale := range res.Locales {
			row = append(row, res.Entries[key][locale].Text)
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing csv row for %s: %w", key, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// Read parses an edit batch from CSV produced by an external editor.
// Column mapping is header-driven: the key column is required, every other
// known locale column contributes edits, unknown columns are ignored.
// Empty cells are skipped — an empty value never becomes an edit.
func Read(r io.Reader, locales []string) ([]reconcile.Edit, error) {
	known := make(map[string]bool, len(locales))
	for _, loc := range locales {
		known[loc] = true
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1 // ragged rows tolerated; short rows mean empty cells

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading csv header: %w", err)
	}
	if len(header) > 0 {
		header[0] = stripBOM(header[0])
	}

	type column struct {
		idx    int
		locale string
	}
	keyIdx := -1
	var localeCols []column
	for i, h := range header {
		name := strings.TrimSpace(h)
		if strings.EqualFold(name, KeyColumn) {
			keyIdx = i
			continue
		}
		if known[name] {
			localeCols = append(localeCols, column{idx: i, locale: name})
		}
	}
	if keyIdx < 0 {
		return nil, fmt.Errorf("csv missing %q column", KeyColumn)
	}

	var edits []reconcile.Edit
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading csv row: %w", err)
		}
		if keyIdx >= len(rec) {
			continue
		}
		key := strings.TrimSpace(rec[keyIdx])
		if key == "" {
			continue
		}
		for _, col := range localeCols {
			if col.idx >= len(rec) || rec[col.idx] == "" {
				continue
			}
			edits = append(edits, reconcile.Edit{Key: key, Locale: col.locale, Value: rec[col.idx]})
		}
	}
	return edits, nil
}

// stripBOM drops a UTF-8 byte order mark that spreadsheet tools prepend.
func stripBOM(s string) string {
	return string(bytes.TrimPrefix([]byte(s), []byte{0xEF, 0xBB, 0xBF}))
}
