package reconcile

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"keysync/config"
)

// newProject lays out a corpus and locale store under a temp root and
// returns a config pointing at them.
func newProject(t *testing.T, sources map[string]string, locales map[string]string, localeNames []string) *config.Config {
	t.Helper()
	root := t.TempDir()

	for name, content := range sources {
		path := filepath.Join(root, "src", name)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	if err := os.MkdirAll(filepath.Join(root, "locales"), 0755); err != nil {
		t.Fatalf("mkdir locales: %v", err)
	}
	for locale, content := range locales {
		path := filepath.Join(root, "locales", locale+".json")
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("write %s: %v", locale, err)
		}
	}

	cfg := &config.Config{
		Root:      root,
		Locales:   localeNames,
		SourceDir: "src",
	}
	cfg.ApplyDefaults()
	return cfg
}

func newReconciler(t *testing.T, cfg *config.Config) *Reconciler {
	t.Helper()
	rec, err := New(cfg)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	return rec
}

func TestRunSpecScenario(t *testing.T) {
	cfg := newProject(t,
		map[string]string{"app.ts": `t('a.b'); t("a.c");`},
		map[string]string{
			"en": `{"a": {"b": "hi"}}`,
			"de": `{}`,
		},
		[]string{"en", "de"},
	)
	rec := newReconciler(t, cfg)

	res, rep, err := rec.Run()
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if rep.KeysFound != 2 {
		t.Fatalf("KeysFound = %d, want 2", rep.KeysFound)
	}
	if rep.Pruned["en"] != 0 || rep.Pruned["de"] != 0 {
		t.Fatalf("Pruned = %v, want all zero", rep.Pruned)
	}

	want := []string{"a.b", "a.c"}
	if !reflect.DeepEqual(res.Keys, want) {
		t.Fatalf("Result.Keys = %v, want %v", res.Keys, want)
	}

	ab := res.Entries["a.b"]
	if !ab["en"].Present || ab["en"].Text != "hi" {
		t.Fatalf(`a.b/en = %+v, want present "hi"`, ab["en"])
	}
	if ab["de"].Present {
		t.Fatalf("a.b/de = %+v, want absent", ab["de"])
	}
	ac := res.Entries["a.c"]
	if ac["en"].Present || ac["de"].Present {
		t.Fatalf("a.c = %+v, want absent in both locales", ac)
	}

	// The schema artifact was written.
	data, err := os.ReadFile(cfg.SchemaPath())
	if err != nil {
		t.Fatalf("schema artifact not written: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("schema artifact is empty")
	}
}

func TestRunPrunesOrphans(t *testing.T) {
	cfg := newProject(t,
		map[string]string{"app.ts": `t('a.b');`},
		map[string]string{"en": `{"a": {"b": "hi", "z": "stale"}}`},
		[]string{"en"},
	)
	rec := newReconciler(t, cfg)

	_, rep, err := rec.Run()
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if rep.Pruned["en"] != 1 {
		t.Fatalf("Pruned[en] = %d, want 1", rep.Pruned["en"])
	}
}

func TestRunPruneCollapsesEmptiedNode(t *testing.T) {
	cfg := newProject(t,
		map[string]string{"app.ts": `t('other.key');`},
		map[string]string{"en": `{"a": {"z": "stale"}, "other": {"key": "v"}}`},
		[]string{"en"},
	)
	rec := newReconciler(t, cfg)

	_, rep, err := rec.Run()
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if rep.Pruned["en"] != 1 {
		t.Fatalf("Pruned[en] = %d, want 1", rep.Pruned["en"])
	}

	doc, err := rec.Store().Load("en")
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if doc.GetNode("a") != nil {
		t.Fatal("emptied node a should be collapsed")
	}
}

func TestRunEmptyValueCountsAsMissing(t *testing.T) {
	cfg := newProject(t,
		map[string]string{"app.ts": `t('a.b');`},
		map[string]string{"en": `{"a": {"b": ""}}`},
		[]string{"en"},
	)
	rec := newReconciler(t, cfg)

	res, _, err := rec.Run()
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	v := res.Entries["a.b"]["en"]
	if !v.Present || v.Text != "" {
		t.Fatalf("a.b/en = %+v, want present empty", v)
	}
	if !v.Missing() {
		t.Fatal("empty string must count as missing")
	}
}

func TestRunFullyTranslatedKeysExcluded(t *testing.T) {
	cfg := newProject(t,
		map[string]string{"app.ts": `t('done.key'); t('open.key');`},
		map[string]string{
			"en": `{"done": {"key": "ok"}, "open": {"key": "ok"}}`,
			"de": `{"done": {"key": "gut"}}`,
		},
		[]string{"en", "de"},
	)
	rec := newReconciler(t, cfg)

	res, _, err := rec.Run()
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	want := []string{"open.key"}
	if !reflect.DeepEqual(res.Keys, want) {
		t.Fatalf("Result.Keys = %v, want %v", res.Keys, want)
	}
}

func TestRunEmptyCorpusStopsEarly(t *testing.T) {
	cfg := newProject(t,
		map[string]string{"app.ts": `// no calls here`},
		map[string]string{"en": `{"a": {"b": "would be wiped"}}`},
		[]string{"en"},
	)
	rec := newReconciler(t, cfg)

	res, rep, err := rec.Run()
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if res != nil {
		t.Fatal("empty key set should yield a nil result")
	}
	if rep.KeysFound != 0 {
		t.Fatalf("KeysFound = %d, want 0", rep.KeysFound)
	}

	// Nothing was pruned: the store still holds its keys.
	doc, err := rec.Store().Load("en")
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if _, ok := doc.Get("a.b"); !ok {
		t.Fatal("store was pruned on an empty pass")
	}
}

func TestRunBrokenLocaleExcludedWithWarning(t *testing.T) {
	cfg := newProject(t,
		map[string]string{"app.ts": `t('a.b');`},
		map[string]string{
			"en": `{"a": {"b": "hi"}}`,
			"de": `{broken`,
		},
		[]string{"en", "de"},
	)
	rec := newReconciler(t, cfg)

	res, rep, err := rec.Run()
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if len(rep.Warnings) != 1 {
		t.Fatalf("Warnings = %v, want exactly one", rep.Warnings)
	}
	// de is excluded, not treated as fully missing: a.b is complete in en,
	// so nothing is missing.
	if len(res.Keys) != 0 {
		t.Fatalf("Result.Keys = %v, want empty", res.Keys)
	}
	if !reflect.DeepEqual(res.Locales, []string{"en"}) {
		t.Fatalf("Result.Locales = %v, want [en]", res.Locales)
	}
}

func TestRunContinuesAfterPruneWriteFailure(t *testing.T) {
	// A locale name with a path separator loads fine (the document lives
	// in a subdirectory) but makes the store's temp-file creation fail,
	// so the pruned document cannot be persisted.
	cfg := newProject(t,
		map[string]string{"app.ts": `t('a.b');`},
		map[string]string{
			"x/de": `{"a": {"b": "hallo", "z": "stale"}}`,
			"en":   `{"a": {"b": "hi"}}`,
		},
		[]string{"x/de", "en"},
	)
	rec := newReconciler(t, cfg)

	res, rep, err := rec.Run()
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if len(rep.Warnings) != 1 || !strings.Contains(rep.Warnings[0], "x/de") {
		t.Fatalf("Warnings = %v, want one naming x/de", rep.Warnings)
	}
	if rep.Pruned["x/de"] != 1 || rep.Pruned["en"] != 0 {
		t.Fatalf("Pruned = %v, want x/de:1 en:0", rep.Pruned)
	}
	// The failed write keeps the locale in the diff; a.b is complete in
	// both documents, so nothing is missing.
	if !reflect.DeepEqual(res.Locales, []string{"x/de", "en"}) {
		t.Fatalf("Result.Locales = %v, want [x/de en]", res.Locales)
	}
	if len(res.Keys) != 0 {
		t.Fatalf("Result.Keys = %v, want empty", res.Keys)
	}

	// On disk the document is exactly as it was before the pass.
	doc, err := rec.Store().Load("x/de")
	if err != nil {
		t.Fatalf("Load after failed prune: %v", err)
	}
	if _, ok := doc.Get("a.z"); !ok {
		t.Fatal("a.z should survive on disk when the prune write fails")
	}
}

func TestRunAllLocalesBrokenFails(t *testing.T) {
	cfg := newProject(t,
		map[string]string{"app.ts": `t('a.b');`},
		map[string]string{"en": `{broken`},
		[]string{"en"},
	)
	rec := newReconciler(t, cfg)

	if _, _, err := rec.Run(); err == nil {
		t.Fatal("Run should fail when no locale loads")
	}
}

func TestRunIdempotent(t *testing.T) {
	cfg := newProject(t,
		map[string]string{"app.ts": `t('a.b'); t('a.c');`},
		map[string]string{"en": `{"a": {"b": "hi", "z": "stale"}}`},
		[]string{"en"},
	)
	rec := newReconciler(t, cfg)

	if _, rep, err := rec.Run(); err != nil {
		t.Fatalf("first Run error: %v", err)
	} else if rep.Pruned["en"] != 1 {
		t.Fatalf("first Pruned[en] = %d, want 1", rep.Pruned["en"])
	}
	first, err := os.ReadFile(cfg.SchemaPath())
	if err != nil {
		t.Fatalf("reading schema: %v", err)
	}

	_, rep, err := rec.Run()
	if err != nil {
		t.Fatalf("second Run error: %v", err)
	}
	if rep.Pruned["en"] != 0 {
		t.Fatalf("second Pruned[en] = %d, want 0", rep.Pruned["en"])
	}
	second, err := os.ReadFile(cfg.SchemaPath())
	if err != nil {
		t.Fatalf("reading schema: %v", err)
	}
	if string(first) != string(second) {
		t.Fatal("schema artifact changed between identical runs")
	}
}

func TestMergeSpecScenario(t *testing.T) {
	cfg := newProject(t,
		map[string]string{"app.ts": `t('a.b'); t('a.c');`},
		map[string]string{
			"en": `{"a": {"b": "hi"}}`,
			"de": `{}`,
		},
		[]string{"en", "de"},
	)
	rec := newReconciler(t, cfg)

	rep, err := rec.Merge([]Edit{{Key: "a.c", Locale: "de", Value: "Hallo"}})
	if err != nil {
		t.Fatalf("Merge error: %v", err)
	}
	if rep.Applied != 1 {
		t.Fatalf("Applied = %d, want 1", rep.Applied)
	}

	de, err := rec.Store().Load("de")
	if err != nil {
		t.Fatalf("Load de: %v", err)
	}
	if v, ok := de.Get("a.c"); !ok || v != "Hallo" {
		t.Fatalf("de a.c = %q, %v; want Hallo", v, ok)
	}

	// en carries the same content, even though the file was rewritten.
	en, err := rec.Store().Load("en")
	if err != nil {
		t.Fatalf("Load en: %v", err)
	}
	if v, ok := en.Get("a.b"); !ok || v != "hi" {
		t.Fatalf("en a.b = %q, %v; want hi", v, ok)
	}

	// The merge lock was released.
	if _, err := os.Stat(filepath.Join(cfg.LocalesPath(), "keysync.lock")); !os.IsNotExist(err) {
		t.Fatal("lock file still present after merge")
	}
}

func TestMergeIgnoresEmptyValuesAndUnknownLocales(t *testing.T) {
	cfg := newProject(t,
		map[string]string{"app.ts": `t('a.b');`},
		map[string]string{"en": `{"a": {"b": "hi"}}`},
		[]string{"en"},
	)
	rec := newReconciler(t, cfg)

	rep, err := rec.Merge([]Edit{
		{Key: "a.b", Locale: "en", Value: ""},   // empty never overwrites
		{Key: "a.b", Locale: "xx", Value: "??"}, // unknown locale
	})
	if err != nil {
		t.Fatalf("Merge error: %v", err)
	}
	if rep.Applied != 0 {
		t.Fatalf("Applied = %d, want 0", rep.Applied)
	}
	if len(rep.Warnings) != 1 {
		t.Fatalf("Warnings = %v, want one (unknown locale)", rep.Warnings)
	}

	en, err := rec.Store().Load("en")
	if err != nil {
		t.Fatalf("Load en: %v", err)
	}
	if v, _ := en.Get("a.b"); v != "hi" {
		t.Fatalf("en a.b = %q, want hi untouched", v)
	}
}

func TestMergeCreatesMissingLocaleDocument(t *testing.T) {
	cfg := newProject(t,
		map[string]string{"app.ts": `t('a.b');`},
		map[string]string{"en": `{"a": {"b": "hi"}}`},
		[]string{"en", "fr"}, // fr has no document yet
	)
	rec := newReconciler(t, cfg)

	if _, err := rec.Merge([]Edit{{Key: "a.b", Locale: "fr", Value: "salut"}}); err != nil {
		t.Fatalf("Merge error: %v", err)
	}

	fr, err := rec.Store().Load("fr")
	if err != nil {
		t.Fatalf("Load fr: %v", err)
	}
	if v, _ := fr.Get("a.b"); v != "salut" {
		t.Fatalf("fr a.b = %q, want salut", v)
	}
}
