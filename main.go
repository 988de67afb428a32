// keysync — translation-key reconciliation kit for i18next-style projects.
//
// keysync derives the set of translation keys a codebase actually
// references, keeps the per-locale JSON documents and the declaration
// artifact in sync with that set, and exchanges missing translations with
// an external editor as a CSV table.
package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"keysync/config"
	"keysync/editcsv"
	"keysync/extract"
	"keysync/i18n"
	"keysync/reconcile"
	"keysync/store"
)

// Version information (set via -ldflags during build)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// ANSI colors
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[0;31m"
	colorGreen  = "\033[0;32m"
	colorYellow = "\033[1;33m"
	colorBlue   = "\033[0;34m"
)

func logInfo(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorBlue+"[INFO]"+colorReset+" "+format+"\n", args...)
}

func logSuccess(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorGreen+"[OK]"+colorReset+" "+format+"\n", args...)
}

func logWarning(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorYellow+"[WARN]"+colorReset+" "+format+"\n", args...)
}

func logError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorRed+"[ERROR]"+colorReset+" "+format+"\n", args...)
}

// ---------------------------------------------------------------------------
// Global flag
// ---------------------------------------------------------------------------

var rootDir string

// ---------------------------------------------------------------------------
// Root command
// ---------------------------------------------------------------------------

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "keysync",
		Short: "Translation-key reconciliation for i18next-style projects",
		Long: `keysync — translation-key reconciliation kit.

Scans the source corpus for translation calls like t('common.greeting'),
emits the authoritative key schema as a TypeScript declaration, prunes
orphaned keys from the per-locale JSON documents, and surfaces missing
translations as a CSV table for an external editor.

Commands:
  status      Show configuration and per-locale translation statistics
  reconcile   Run a full pass: extract, schematize, prune, diff
  export      Write the missing-translation table as CSV
  merge       Apply an edited CSV back into the locale documents

Configuration is read from .keysync.yaml in the project root; every
setting has a sensible default for a conventional web-app layout.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global persistent flag — inherited by all subcommands
	root.PersistentFlags().StringVar(&rootDir, "root", ".", "Project root directory")

	root.AddCommand(
		newStatusCmd(),
		newReconcileCmd(),
		newExportCmd(),
		newMergeCmd(),
		newVersionCmd(),
	)

	return root
}

func main() {
	i18n.Init("")
	if err := newRootCmd().Execute(); err != nil {
		logError("%v", err)
		os.Exit(1)
	}
}

// loadConfig reads .keysync.yaml from the --root directory.
func loadConfig() (*config.Config, error) {
	return config.Load(rootDir)
}

// ---------------------------------------------------------------------------
// version
// ---------------------------------------------------------------------------

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("keysync version %s\n", version)
			fmt.Printf("  commit:    %s\n", commit)
			fmt.Printf("  built:     %s\n", date)
		},
	}
}

// ---------------------------------------------------------------------------
// status (read-only: configuration + per-locale stats)
// ---------------------------------------------------------------------------

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show configuration and per-locale translation statistics",
		Long: `Show the effective configuration and, per locale, how many keys of the
current corpus are translated, missing, or empty. Does not modify any files.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus()
		},
	}
}

func runStatus() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "\n%sProject%s\n", colorBlue, colorReset)
	fmt.Fprintln(os.Stderr, strings.Repeat("─", 60))
	fmt.Fprintf(os.Stderr, "  Corpus:     %s (exts: %s)\n", cfg.SourcePath(), strings.Join(cfg.Extensions, ", "))
	fmt.Fprintf(os.Stderr, "  Locales:    %s\n", strings.Join(cfg.Locales, ", "))
	fmt.Fprintf(os.Stderr, "  Store:      %s\n", cfg.LocalesPath())
	fmt.Fprintf(os.Stderr, "  Schema:     %s\n", cfg.SchemaPath())
	fmt.Fprintf(os.Stderr, "  Functions:  %s\n", strings.Join(cfg.Functions, ", "))

	if onDisk := cfg.DetectLocales(); len(onDisk) > 0 {
		fmt.Fprintf(os.Stderr, "  On disk:    %s\n", strings.Join(onDisk, ", "))
	}
	fmt.Fprintln(os.Stderr)

	keys, err := extractOnly(cfg)
	if err != nil {
		return err
	}
	total := len(keys)
	docs := store.New(cfg.LocalesPath())

	fmt.Fprintf(os.Stderr, "%sTranslation Statistics%s\n", colorBlue, colorReset)
	fmt.Fprintln(os.Stderr, strings.Repeat("─", 60))
	fmt.Fprintf(os.Stderr, "\n%-10s %-12s %-10s %-8s\n", "Locale", "Translated", "Missing", "Percent")
	fmt.Fprintln(os.Stderr, strings.Repeat("─", 44))

	for _, locale := range cfg.Locales {
		doc, err := docs.Load(locale)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%-10s %-12s %-10s %-8s\n", locale, "missing", "-", "-")
			continue
		}
		translated := 0
		for _, key := range keys {
			if v, ok := doc.Get(key); ok && v != "" {
				translated++
			}
		}
		percent := 0
		if total > 0 {
			percent = translated * 100 / total
		}
		fmt.Fprintf(os.Stderr, "%-10s %-12d %-10d %d%%\n", locale, translated, total-translated, percent)
	}

	fmt.Fprintln(os.Stderr, strings.Repeat("─", 44))
	fmt.Fprintf(os.Stderr, "Corpus keys: %d\n\n", total)
	return nil
}

// extractOnly runs just the extraction step for read-only display.
func extractOnly(cfg *config.Config) ([]string, error) {
	scanner, err := extract.NewScanner(cfg.SourcePath(), cfg.Extensions, cfg.Exclude, cfg.Functions)
	if err != nil {
		return nil, err
	}
	res, err := scanner.Scan()
	if err != nil {
		return nil, err
	}
	for _, w := range res.Warnings {
		logWarning("%s", w)
	}
	return res.Keys, nil
}

// ---------------------------------------------------------------------------
// reconcile (full pass)
// ---------------------------------------------------------------------------

func newReconcileCmd() *cobra.Command {
	var csvOut string

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Run a full pass: extract, schematize, prune, diff",
		Long: `Run one reconciliation pass:

  1. Extract the referenced key set from the corpus.
  2. Write the key schema declaration (round-trip verified).
  3. Prune orphaned keys from every locale document.
  4. Diff the key set against every locale and report missing keys.

With --csv, the missing-translation table is also written for editing.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReconcile(csvOut)
		},
	}

	cmd.Flags().StringVar(&csvOut, "csv", "", "Also write the missing-translation CSV to this path")
	return cmd
}

func runReconcile(csvOut string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	rec, err := reconcile.New(cfg)
	if err != nil {
		return err
	}

	res, rep, err := rec.Run()
	printReport(rep)
	if err != nil {
		return err
	}
	if res == nil {
		logInfo("%s", i18n.T("Nothing to reconcile: no translation keys found in the corpus"))
		return nil
	}

	if rep.Missing == 0 {
		logSuccess("%s", i18n.T("All keys are translated in every locale"))
	} else if csvOut != "" {
		if err := writeCSV(csvOut, res); err != nil {
			return err
		}
		logSuccess("Wrote %s (%d keys to translate)", csvOut, rep.Missing)
	}

	logSuccess("%s", i18n.T("Reconciliation complete"))
	return nil
}

// ---------------------------------------------------------------------------
// export (missing-translation table only, no pruning)
// ---------------------------------------------------------------------------

func newExportCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the missing-translation table as CSV",
		Long: `Run a reconciliation pass and write the missing-translation table as a
CSV file: one row per key, one column per locale plus the key column.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(out)
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "Output CSV path (default from config)")
	return cmd
}

func runExport(out string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if out == "" {
		out = cfg.CSVFile
	}
	rec, err := reconcile.New(cfg)
	if err != nil {
		return err
	}

	res, rep, err := rec.Run()
	printReport(rep)
	if err != nil {
		return err
	}
	if res == nil {
		logInfo("%s", i18n.T("Nothing to reconcile: no translation keys found in the corpus"))
		return nil
	}
	if rep.Missing == 0 {
		logSuccess("%s", i18n.T("All keys are translated in every locale"))
		return nil
	}

	if err := writeCSV(out, res); err != nil {
		return err
	}
	logSuccess("Wrote %s (%d keys to translate)", out, rep.Missing)
	return nil
}

func writeCSV(path string, res *reconcile.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := editcsv.Write(f, res); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ---------------------------------------------------------------------------
// merge (apply edited CSV)
// ---------------------------------------------------------------------------

func newMergeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "merge <edits.csv>",
		Short: "Apply an edited CSV back into the locale documents",
		Long: `Apply translations from an edited CSV file into the locale documents.

Only non-empty cells become edits; empty cells never overwrite existing
values. All configured locales are rewritten on save. The locale store is
exclusively locked for the duration of the merge.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMerge(args[0])
		},
	}
	return cmd
}

func runMerge(path string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	edits, err := editcsv.Read(f, cfg.Locales)
	if err != nil {
		return err
	}
	if len(edits) == 0 {
		logInfo("No edits found in %s", path)
		return nil
	}

	rec, err := reconcile.New(cfg)
	if err != nil {
		return err
	}
	rep, err := rec.Merge(edits)
	printReport(rep)
	if err != nil {
		return err
	}

	logSuccess("Applied %d edits across %d locales", rep.Applied, len(cfg.Locales))
	logSuccess("%s", i18n.T("Merge complete"))
	return nil
}

// ---------------------------------------------------------------------------
// reporting
// ---------------------------------------------------------------------------

// printReport prints counts and every warning; no metric is dropped.
func printReport(rep *reconcile.Report) {
	if rep == nil {
		return
	}
	for _, w := range rep.Warnings {
		logWarning("%s", w)
	}
	if rep.Files > 0 || rep.KeysFound > 0 {
		logInfo("Scanned %d files, found %d keys", rep.Files, rep.KeysFound)
	}
	if len(rep.Pruned) > 0 {
		locales := make([]string, 0, len(rep.Pruned))
		for loc := range rep.Pruned {
			locales = append(locales, loc)
		}
		sort.Strings(locales)
		var parts []string
		for _, loc := range locales {
			parts = append(parts, fmt.Sprintf("%s: %d", loc, rep.Pruned[loc]))
		}
		logInfo("Pruned orphaned keys (%s)", strings.Join(parts, ", "))
	}
	if rep.Missing > 0 {
		logInfo("%d keys missing or empty in at least one locale", rep.Missing)
	}
}
