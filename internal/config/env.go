package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

const (
	EnvProduction  = "production"
	EnvTest        = "test"
	EnvDevelopment = "development"
)

// LoadDotEnv loads dir/.env.<env> into the process environment. Variables
// that are already set win over the file. A missing file is not an error.
func LoadDotEnv(env, dir string) (string, error) {
	switch env {
	case EnvProduction, EnvTest, EnvDevelopment:
	default:
		return "", fmt.Errorf("invalid environment %q (want production, test or development)", env)
	}
	path := filepath.Join(dir, ".env."+env)
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			slog.Debug("config: no env file", "path", path)
			return path, nil
		}
		return path, fmt.Errorf("load %s: %w", path, err)
	}
	slog.Info("config: env file loaded", "path", path, "env", env)
	return path, nil
}

// ApplyEnv overrides file settings with environment variables.
//
// OPENAI_API_BASE takes precedence over OLLAMA_HOST; DATABASE_URL switches
// notes to the postgres backend.
func (c *Config) ApplyEnv() {
	if v, ok := lookup("OLLAMA_HOST"); ok && (c.Provider.Kind == "" || c.Provider.Kind == "ollama") {
		c.Provider.APIBase = v
	}
	if v, ok := lookup("OPENAI_API_KEY"); ok {
		c.Provider.APIKey = v
	}
	if v, ok := lookup("OPENAI_API_BASE"); ok {
		c.Provider.APIBase = v
	}
	if v, ok := lookup("DEFAULT_MODEL"); ok {
		c.Provider.Model = v
	}
	if v, ok := lookup("EMBED_MODEL"); ok {
		c.Provider.EmbedModel = v
	}
	if v, ok := lookup("WEATHER_API_KEY"); ok {
		c.Weather.APIKey = v
	}
	if v, ok := lookup("DATABASE_URL"); ok {
		c.Notes.PostgresDSN = v
		c.Notes.Backend = NotesBackendPostgres
	}
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
