package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ConfigPath returns the default configuration file path: ~/.murmur/config.json.
func ConfigPath() string {
	return filepath.Join(DataDir(), "config.json")
}

// DataDir returns the murmur data directory: ~/.murmur.
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".murmur"
	}
	return filepath.Join(home, ".murmur")
}

// Load reads and parses the config file at path.
// If path is empty, ConfigPath() is used.
// On parse failure it prints a warning and returns DefaultConfig().
func Load(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := DefaultConfig()
			return &cfg, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, &cfg); err != nil {
		fmt.Printf("Warning: failed to parse config %s: %v\n", path, err)
		fmt.Println("Using default configuration.")
		cfg2 := DefaultConfig()
		return &cfg2, nil
	}

	return &cfg, nil
}

// Save writes cfg to path as indented JSON.
// If path is empty, ConfigPath() is used.
func Save(cfg *Config, path string) error {
	if path == "" {
		path = ConfigPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	data = append(data, '\n')

	// May hold API keys.
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}

// Validate reports settings that cannot work.
func (c *Config) Validate() error {
	var errs []error
	switch c.Notes.Backend {
	case NotesBackendMemory, NotesBackendSQLite:
	case NotesBackendPostgres:
		if c.Notes.PostgresDSN == "" {
			errs = append(errs, errors.New("notes.postgresDsn is required for the postgres backend (or set DATABASE_URL)"))
		}
		if c.Notes.Dimensions <= 0 {
			errs = append(errs, errors.New("notes.dimensions must be positive for the postgres backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("notes.backend %q is not one of memory, sqlite, postgres", c.Notes.Backend))
	}
	if c.Notes.TopN < 0 {
		errs = append(errs, errors.New("notes.topN must not be negative"))
	}
	if c.Gateway.Port <= 0 || c.Gateway.Port > 65535 {
		errs = append(errs, fmt.Errorf("gateway.port %d is out of range", c.Gateway.Port))
	}
	if c.Agent.MaxTurns < 0 {
		errs = append(errs, errors.New("agent.maxTurns must not be negative"))
	}
	for i, s := range c.Ingest.Sources {
		if s.URL == "" || s.Schedule == "" {
			errs = append(errs, fmt.Errorf("ingest.sources[%d] needs url and schedule", i))
		}
	}
	return errors.Join(errs...)
}
