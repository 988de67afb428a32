// Package reconcile orchestrates a reconciliation pass over the corpus and
// the locale store: extract the referenced key set, emit the schema
// artifact, prune orphaned keys from every locale, and diff the key set
// against each locale to surface missing translations. A separate Merge
// entry point applies externally produced edits back into the store.
//
// A pass is single-threaded and terminal: it either completes or fails,
// carries no state across runs, and never mutates durable state outside
// LocaleStore writes.
package reconcile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"keysync/config"
	"keysync/extract"
	"keysync/lockfile"
	"keysync/pathtree"
	"keysync/schema"
	"keysync/store"
)

// Value is a per-locale lookup result. Present distinguishes a key that is
// absent from the document from one present with an empty string; both
// count as missing for reporting purposes.
type Value struct {
	Present bool
	Text    string
}

// Missing reports whether the value needs translating.
func (v Value) Missing() bool {
	return !v.Present || v.Text == ""
}

// Result maps each key path that is not fully translated in every locale
// to its per-locale values. Keys preserves sorted order for deterministic
// output. Results are computed fresh each pass and never persisted.
type Result struct {
	Keys    []string
	Locales []string
	Entries map[string]map[string]Value
}

// Edit is one externally supplied translation: set Key to Value in Locale.
type Edit struct {
	Key    string
	Locale string
	Value  string
}

// Report carries the counts and warnings of a pass. Counts reflect what
// actually happened, never an optimistic estimate.
type Report struct {
	KeysFound int
	Files     int
	Pruned    map[string]int // locale -> removed leaves
	Missing   int
	Applied   int // edits applied by Merge
	Warnings  []string
}

// Reconciler runs passes against one project configuration.
type Reconciler struct {
	cfg     *config.Config
	scanner *extract.Scanner
	store   *store.Store
}

// New builds a reconciler from an explicit configuration.
func New(cfg *config.Config) (*Reconciler, error) {
	scanner, err := extract.NewScanner(cfg.SourcePath(), cfg.Extensions, cfg.Exclude, cfg.Functions)
	if err != nil {
		return nil, err
	}
	return &Reconciler{
		cfg:     cfg,
		scanner: scanner,
		store:   store.New(cfg.LocalesPath()),
	}, nil
}

// Store exposes the underlying locale store (read paths for status display).
func (r *Reconciler) Store() *store.Store {
	return r.store
}

// Run executes one full pass: Extract → Schematize → Prune → Diff. The
// returned Result is nil when there was nothing to reconcile (empty key
// set). Per-file and per-locale failures are reported in the Report and do
// not abort the pass; only an empty corpus or a store with zero loadable
// locales stops it.
func (r *Reconciler) Run() (*Result, *Report, error) {
	rep := &Report{Pruned: make(map[string]int)}

	// Extract.
	scan, err := r.scanner.Scan()
	if err != nil {
		return nil, rep, err
	}
	for _, w := range scan.Warnings {
		rep.Warnings = append(rep.Warnings, w.String())
	}
	rep.KeysFound = len(scan.Keys)
	rep.Files = scan.Files

	if len(scan.Keys) == 0 {
		// Nothing to reconcile; pruning against an empty set would wipe
		// every store, so stop here.
		return nil, rep, nil
	}

	// Schematize.
	if err := r.writeSchema(scan.Keys); err != nil {
		return nil, rep, err
	}

	valid := make(map[string]bool, len(scan.Keys))
	for _, k := range scan.Keys {
		valid[k] = true
	}

	// Prune, then Diff. Each document is loaded once and shared by both
	// steps; locales that fail to load are excluded, and a locale whose
	// pruned document fails to persist stays in the diff with a warning.
	docs := make(map[string]*pathtree.Tree)
	var loaded []string
	for _, locale := range r.cfg.Locales {
		doc, err := r.store.Load(locale)
		if err != nil {
			var re *store.ReadError
			if errors.As(err, &re) {
				err = re.Err
			}
			rep.Warnings = append(rep.Warnings, fmt.Sprintf("locale %s: %v (excluded from this pass)", locale, err))
			continue
		}
		removed, perr := r.store.PruneDoc(locale, doc, valid)
		if perr != nil {
			var we *store.WriteError
			if errors.As(perr, &we) {
				perr = we.Err
			}
			rep.Warnings = append(rep.Warnings, fmt.Sprintf("locale %s: %v (prune not persisted)", locale, perr))
		}
		rep.Pruned[locale] = removed
		docs[locale] = doc
		loaded = append(loaded, locale)
	}
	if len(loaded) == 0 {
		return nil, rep, fmt.Errorf("no loadable locale documents in %s", r.cfg.LocalesPath())
	}

	res := diff(scan.Keys, loaded, docs)
	rep.Missing = len(res.Keys)
	return res, rep, nil
}

// writeSchema derives, round-trip-verifies, and persists the declaration
// artifact. Output is byte-identical across runs for an unchanged key set.
func (r *Reconciler) writeSchema(keys []string) error {
	if err := schema.Verify(keys); err != nil {
		return err
	}
	tree, err := schema.Derive(keys)
	if err != nil {
		return err
	}
	path := r.cfg.SchemaPath()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating schema directory: %w", err)
	}
	if err := os.WriteFile(path, schema.Serialize(tree), 0644); err != nil {
		return fmt.Errorf("writing schema %s: %w", path, err)
	}
	return nil
}

// diff restricts the key set to keys missing (absent or empty) in at least
// one loaded locale, recording the per-locale value map for each.
func diff(keys, locales []string, docs map[string]*pathtree.Tree) *Result {
	res := &Result{
		Locales: append([]string(nil), locales...),
		Entries: make(map[string]map[string]Value),
	}
	for _, key := range keys {
		row := make(map[string]Value, len(locales))
		anyMissing := false
		for _, locale := range locales {
			text, ok := docs[locale].Get(key)
			v := Value{Present: ok, Text: text}
			row[locale] = v
			if v.Missing() {
				anyMissing = true
			}
		}
		if anyMissing {
			res.Keys = append(res.Keys, key)
			res.Entries[key] = row
		}
	}
	return res
}

// Merge applies an edit batch to the locale store and persists every
// configured locale, whether or not it received edits (full rewrite on
// save keeps the policy simple at the cost of rewriting unchanged files).
// Edits with empty values are ignored: empty never overwrites. The store
// is exclusively locked for the duration of load → merge → save.
func (r *Reconciler) Merge(edits []Edit) (*Report, error) {
	rep := &Report{Pruned: make(map[string]int)}

	lock, err := lockfile.Acquire(r.cfg.LocalesPath())
	if err != nil {
		return rep, err
	}
	defer lock.Release()

	inLocales := make(map[string]bool, len(r.cfg.Locales))
	for _, loc := range r.cfg.Locales {
		inLocales[loc] = true
	}

	docs := make(map[string]*pathtree.Tree)
	var loaded []string
	for _, locale := range r.cfg.Locales {
		doc, err := r.store.Load(locale)
		if err != nil {
			var re *store.ReadError
			if errors.As(err, &re) && os.IsNotExist(re.Err) {
				// A locale may legitimately not exist yet; merging edits
				// into it starts from an empty document.
				doc = pathtree.New()
			} else {
				rep.Warnings = append(rep.Warnings, fmt.Sprintf("locale %s: %v (excluded from merge)", locale, err))
				continue
			}
		}
		docs[locale] = doc
		loaded = append(loaded, locale)
	}
	if len(loaded) == 0 {
		return rep, fmt.Errorf("no loadable locale documents in %s", r.cfg.LocalesPath())
	}

	applied := 0
	for _, e := range edits {
		if e.Value == "" {
			continue
		}
		if !inLocales[e.Locale] {
			rep.Warnings = append(rep.Warnings, fmt.Sprintf("edit for unknown locale %q ignored (key %s)", e.Locale, e.Key))
			continue
		}
		doc, ok := docs[e.Locale]
		if !ok {
			continue // locale excluded above, already warned
		}
		if err := doc.Set(e.Key, e.Value); err != nil {
			rep.Warnings = append(rep.Warnings, fmt.Sprintf("edit %s@%s: %v", e.Key, e.Locale, err))
			continue
		}
		applied++
	}
	rep.Applied = applied

	var werrs []string
	for _, locale := range loaded {
		if err := r.store.Save(locale, docs[locale]); err != nil {
			// Report and continue: already-written locales stay written.
			werrs = append(werrs, err.Error())
		}
	}
	if len(werrs) > 0 {
		return rep, fmt.Errorf("merge persisted incompletely: %s", strings.Join(werrs, "; "))
	}
	return rep, nil
}
