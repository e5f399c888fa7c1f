// Package config loads the econsheet CLI configuration file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/dlovans/econsheet/pkg/econsheet"
)

// FileName is the configuration file looked up in the working directory.
const FileName = "econsheet.yaml"

const defaultConfigYAML = `# econsheet configuration

# Directory holding one <kind>.yaml (or .json) Field Schema per assumption kind.
schema_dir: schemas

# SQLite database for saved assumption documents.
store_path: econsheet.db

# debug, info, warn or error.
log_level: info

# BCP 47 tag used to group digits in display values.
locale: en-US

# Sub-keys dropped from the compiled payload, per top-level key.
ignore:
  reserves_category: [prms_reserves_category, prms_reserves_sub_category]
`

// Config is the decoded econsheet.yaml.
type Config struct {
	SchemaDir string               `yaml:"schema_dir"`
	StorePath string               `yaml:"store_path"`
	LogLevel  string               `yaml:"log_level"`
	Locale    string               `yaml:"locale"`
	Ignore    econsheet.IgnoreList `yaml:"ignore"`

	// dir is the directory the file was read from; relative paths resolve against it.
	dir string
}

// Default returns the built-in configuration.
func Default() *Config {
	var c Config
	if err := yaml.Unmarshal([]byte(defaultConfigYAML), &c); err != nil {
		panic(fmt.Sprintf("config: built-in defaults: %v", err))
	}
	return &c
}

// DefaultYAML returns the commented default configuration file.
func DefaultYAML() string { return defaultConfigYAML }

// Load reads the configuration at path over the defaults. A missing file
// yields the defaults.
func Load(path string) (*Config, error) {
	c := Default()
	c.dir = filepath.Dir(path)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return c, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return c, nil
}

func (c *Config) validate() error {
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level %q is not one of debug, info, warn, error", c.LogLevel)
	}
	if _, err := language.Parse(c.Locale); err != nil {
		return fmt.Errorf("locale %q: %w", c.Locale, err)
	}
	return nil
}

// LocaleTag returns the parsed display locale.
func (c *Config) LocaleTag() language.Tag {
	tag, err := language.Parse(c.Locale)
	if err != nil {
		return language.AmericanEnglish
	}
	return tag
}

func (c *Config) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) || c.dir == "" {
		return p
	}
	return filepath.Join(c.dir, p)
}

// StoreFile returns the store path resolved against the config file directory.
func (c *Config) StoreFile() string {
	return c.resolve(c.StorePath)
}

// SchemaPath returns the schema file for an assumption kind. A .yaml file wins
// over .yml and .json.
func (c *Config) SchemaPath(kind string) (string, error) {
	dir := c.resolve(c.SchemaDir)
	for _, ext := range []string{".yaml", ".yml", ".json"} {
		p := filepath.Join(dir, kind+ext)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("config: no schema for kind %q in %s", kind, dir)
}

// Kinds lists the assumption kinds that have a schema file.
func (c *Config) Kinds() ([]string, error) {
	dir := c.resolve(c.SchemaDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("config: read schema dir: %w", err)
	}
	seen := make(map[string]bool)
	var kinds []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		switch ext {
		case ".yaml", ".yml", ".json":
		default:
			continue
		}
		kind := strings.TrimSuffix(e.Name(), ext)
		if !seen[kind] {
			seen[kind] = true
			kinds = append(kinds, kind)
		}
	}
	return kinds, nil
}
