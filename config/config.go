package config

import (
	"time"
)

// Config represents the top-level configuration structure.
type Config struct {
	Log         LogConfig     `yaml:"log"`
	Parser      ParserConfig  `yaml:"parser"`
	Cache       CacheConfig   `yaml:"cache"`
	Tables      []Table       `yaml:"tables"`
	Presets     []Preset      `yaml:"presets"`
	URLInterval time.Duration `yaml:"url_interval,omitempty"` // Refresh interval for tables loaded from a URL
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level"` // e.g. "info", "debug"
}

// ParserConfig controls how filter rules are parsed.
type ParserConfig struct {
	Lenient bool `yaml:"lenient"` // Degrade malformed rules instead of rejecting them
}

// CacheConfig controls the compiled filter cache.
type CacheConfig struct {
	TTL time.Duration `yaml:"ttl,omitempty"` // How long an unused compiled rule is kept
}

// Table is a tabular data source. The first record is the header.
type Table struct {
	Name      string `yaml:"name"`
	URL       string `yaml:"url,omitempty"`       // Remote URL
	Path      string `yaml:"path,omitempty"`      // Local file path
	Separator string `yaml:"separator,omitempty"` // Field separator, defaults to ","
}

// Preset is a named, saved filter rule.
type Preset struct {
	Name   string `yaml:"name"`
	Table  string `yaml:"table"`
	Column string `yaml:"column,omitempty"` // Empty matches against every column
	Rule   string `yaml:"rule"`
}

// Defaults applied by Manager.Load when a field is left empty.
const (
	DefaultLogLevel    = "info"
	DefaultCacheTTL    = 10 * time.Minute
	DefaultURLInterval = 24 * time.Hour
)

func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Cache.TTL <= 0 {
		c.Cache.TTL = DefaultCacheTTL
	}
	if c.URLInterval <= 0 {
		c.URLInterval = DefaultURLInterval
	}
	for i := range c.Tables {
		if c.Tables[i].Separator == "" {
			c.Tables[i].Separator = ","
		}
	}
}

// Table returns the table with the given name.
func (c *Config) Table(name string) (Table, bool) {
	for _, t := range c.Tables {
		if t.Name == name {
			return t, true
		}
	}
	return Table{}, false
}

// Preset returns the preset with the given name.
func (c *Config) Preset(name string) (Preset, bool) {
	for _, p := range c.Presets {
		if p.Name == name {
			return p, true
		}
	}
	return Preset{}, false
}
