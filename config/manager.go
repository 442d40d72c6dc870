package config

import (
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// Manager handles thread-safe configuration access and updates.
type Manager struct {
	mu           sync.RWMutex
	current      *Config
	configPath   string
	LoadCallback func(*Config) error // Optional callback after load
}

// NewManager creates a new configuration manager.
func NewManager(path string) *Manager {
	cfg := &Config{}
	cfg.applyDefaults()
	return &Manager{
		configPath: path,
		current:    cfg, // Start with defaults
	}
}

// Load reads the configuration file from disk and updates the current state.
func (m *Manager) Load() error {
	data, err := os.ReadFile(m.configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var newConfig Config
	if err := yaml.Unmarshal(data, &newConfig); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	newConfig.applyDefaults()

	if err := newConfig.Validate(); err != nil {
		return fmt.Errorf("invalid config file: %w", err)
	}

	m.mu.Lock()
	m.current = &newConfig
	m.mu.Unlock()

	if m.LoadCallback != nil {
		if err := m.LoadCallback(&newConfig); err != nil {
			return err
		}
	}

	return nil
}

// Get returns the current configuration safely.
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Validate checks names and references between tables and presets.
func (c *Config) Validate() error {
	tables := make(map[string]bool)
	for _, t := range c.Tables {
		if t.Name == "" {
			return fmt.Errorf("table without a name")
		}
		if tables[t.Name] {
			return fmt.Errorf("duplicate table '%s'", t.Name)
		}
		if (t.URL == "") == (t.Path == "") {
			return fmt.Errorf("table '%s' needs exactly one of url or path", t.Name)
		}
		if len([]rune(t.Separator)) != 1 {
			return fmt.Errorf("table '%s' separator must be a single character", t.Name)
		}
		tables[t.Name] = true
	}

	presets := make(map[string]bool)
	for _, p := range c.Presets {
		if p.Name == "" {
			return fmt.Errorf("preset without a name")
		}
		if presets[p.Name] {
			return fmt.Errorf("duplicate preset '%s'", p.Name)
		}
		if !tables[p.Table] {
			return fmt.Errorf("preset '%s' references unknown table '%s'", p.Name, p.Table)
		}
		presets[p.Name] = true
	}
	return nil
}
