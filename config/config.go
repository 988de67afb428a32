// Package config — .keysync.yaml configuration file support.
//
// All settings are explicit values threaded into each component's
// constructor; there is no ambient process-wide state. When the file is
// absent, defaults describe a conventional web-app layout.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// FileName is the configuration file looked up in the project root.
const FileName = ".keysync.yaml"

// Config is the top-level .keysync.yaml structure.
type Config struct {
	// Locales is the ordered list of locale identifiers to manage.
	Locales []string `yaml:"locales,omitempty"`
	// SourceDir is the corpus root scanned for translation calls.
	SourceDir string `yaml:"source_dir,omitempty"`
	// LocalesDir is the directory holding <locale>.json documents.
	LocalesDir string `yaml:"locales_dir,omitempty"`
	// SchemaFile is the path of the emitted declaration artifact.
	SchemaFile string `yaml:"schema_file,omitempty"`
	// Extensions are source file extensions to scan (without dot).
	Extensions []string `yaml:"extensions,omitempty"`
	// Exclude are directory/file names skipped while scanning.
	Exclude []string `yaml:"exclude,omitempty"`
	// Functions are translation function names matched in source.
	Functions []string `yaml:"functions,omitempty"`
	// CSVFile is the default path for the editing-boundary CSV.
	CSVFile string `yaml:"csv_file,omitempty"`

	// Root is the project root the config was loaded from (not persisted).
	Root string `yaml:"-"`
}

// Load reads .keysync.yaml from root. A missing file yields a zero config
// (defaults apply); a malformed file is an error.
func Load(root string) (*Config, error) {
	cfg := &Config{Root: root}

	path := filepath.Join(root, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.ApplyDefaults()
			return cfg, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	cfg.Root = root
	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// ApplyDefaults fills unset fields with a conventional layout.
func (c *Config) ApplyDefaults() {
	if len(c.Locales) == 0 {
		c.Locales = []string{"en"}
	}
	if c.SourceDir == "" {
		c.SourceDir = "."
	}
	if c.LocalesDir == "" {
		c.LocalesDir = "locales"
	}
	if c.SchemaFile == "" {
		c.SchemaFile = "translation-keys.d.ts"
	}
	if len(c.Extensions) == 0 {
		c.Extensions = []string{"ts", "tsx", "js", "jsx"}
	}
	if len(c.Exclude) == 0 {
		c.Exclude = []string{"node_modules", "dist", "build", ".git"}
	}
	// Never scan the tool's own outputs.
	c.Exclude = appendMissing(c.Exclude, filepath.Base(c.LocalesDir))
	c.Exclude = appendMissing(c.Exclude, filepath.Base(c.SchemaFile))
	if len(c.Functions) == 0 {
		c.Functions = []string{"t"}
	}
	if c.CSVFile == "" {
		c.CSVFile = "translations.csv"
	}
}

func appendMissing(list []string, name string) []string {
	for _, v := range list {
		if v == name {
			return list
		}
	}
	return append(list, name)
}

// Validate rejects settings the rest of the pipeline cannot honor.
func (c *Config) Validate() error {
	seen := make(map[string]bool)
	for _, loc := range c.Locales {
		if loc == "" || strings.ContainsAny(loc, "/\\") {
			return fmt.Errorf("invalid locale identifier %q", loc)
		}
		if seen[loc] {
			return fmt.Errorf("duplicate locale %q", loc)
		}
		seen[loc] = true
	}
	for _, fn := range c.Functions {
		if fn == "" || strings.ContainsAny(fn, "(). \t") {
			return fmt.Errorf("invalid translation function name %q", fn)
		}
	}
	return nil
}

// SourcePath returns the corpus root resolved against the project root.
func (c *Config) SourcePath() string {
	return filepath.Join(c.Root, c.SourceDir)
}

// LocalesPath returns the locale-document directory resolved against the
// project root.
func (c *Config) LocalesPath() string {
	return filepath.Join(c.Root, c.LocalesDir)
}

// SchemaPath returns the schema artifact path resolved against the project
// root.
func (c *Config) SchemaPath() string {
	return filepath.Join(c.Root, c.SchemaFile)
}

// DetectLocales lists the locales that already have documents on disk,
// sorted, for status display when no config file pins the list.
func (c *Config) DetectLocales() []string {
	entries, err := os.ReadDir(c.LocalesPath())
	if err != nil {
		return nil
	}
	var locales []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasSuffix(name, ".json") {
			locales = append(locales, strings.TrimSuffix(name, ".json"))
		}
	}
	sort.Strings(locales)
	return locales
}
