package config

import (
	"os"
	"path/filepath"
	"testing"
)

var envKeys = []string{
	"OLLAMA_HOST", "OPENAI_API_KEY", "OPENAI_API_BASE", "DEFAULT_MODEL",
	"EMBED_MODEL", "WEATHER_API_KEY", "DATABASE_URL", "MURMUR_TEST_ONLY",
}

// clearEnv blanks every variable ApplyEnv reads for the duration of t.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func TestLoadDotEnv_InvalidEnvironment(t *testing.T) {
	if _, err := LoadDotEnv("staging", t.TempDir()); err == nil {
		t.Fatal("expected error for unknown environment")
	}
}

func TestLoadDotEnv_MissingFile(t *testing.T) {
	dir := t.TempDir()
	path, err := LoadDotEnv(EnvDevelopment, dir)
	if err != nil {
		t.Fatalf("missing file should not fail: %v", err)
	}
	if path != filepath.Join(dir, ".env.development") {
		t.Errorf("unexpected path %q", path)
	}
}

func TestLoadDotEnv_DoesNotOverride(t *testing.T) {
	clearEnv(t)
	os.Unsetenv("MURMUR_TEST_ONLY")
	t.Setenv("DEFAULT_MODEL", "from-shell")

	dir := t.TempDir()
	content := "DEFAULT_MODEL=from-file\nMURMUR_TEST_ONLY=loaded\n"
	if err := os.WriteFile(filepath.Join(dir, ".env.test"), []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("MURMUR_TEST_ONLY") })

	if _, err := LoadDotEnv(EnvTest, dir); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if got := os.Getenv("MURMUR_TEST_ONLY"); got != "loaded" {
		t.Errorf("expected file value to load, got %q", got)
	}
	if got := os.Getenv("DEFAULT_MODEL"); got != "from-shell" {
		t.Errorf("shell value should win, got %q", got)
	}
}

func TestApplyEnv_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("OLLAMA_HOST", "http://gpu-box:11434")
	t.Setenv("DEFAULT_MODEL", "mistral")
	t.Setenv("EMBED_MODEL", "mxbai-embed-large")
	t.Setenv("WEATHER_API_KEY", "w-key")

	cfg := DefaultConfig()
	cfg.ApplyEnv()

	if cfg.Provider.APIBase != "http://gpu-box:11434" {
		t.Errorf("OLLAMA_HOST not applied: %q", cfg.Provider.APIBase)
	}
	if cfg.Provider.Model != "mistral" || cfg.Provider.EmbedModel != "mxbai-embed-large" {
		t.Errorf("models not applied: %+v", cfg.Provider)
	}
	if cfg.Weather.APIKey != "w-key" {
		t.Errorf("weather key not applied")
	}
	if cfg.Notes.Backend != NotesBackendSQLite {
		t.Errorf("backend should be unchanged, got %q", cfg.Notes.Backend)
	}
}

func TestApplyEnv_OpenAIBaseWins(t *testing.T) {
	clearEnv(t)
	t.Setenv("OLLAMA_HOST", "http://localhost:11434")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("OPENAI_API_BASE", "https://api.groq.com/openai/v1")

	cfg := DefaultConfig()
	cfg.ApplyEnv()

	if cfg.Provider.APIBase != "https://api.groq.com/openai/v1" || cfg.Provider.APIKey != "sk-test" {
		t.Errorf("unexpected provider: %+v", cfg.Provider)
	}
}

func TestApplyEnv_OllamaHostIgnoredForOtherKinds(t *testing.T) {
	clearEnv(t)
	t.Setenv("OLLAMA_HOST", "http://localhost:11434")

	cfg := DefaultConfig()
	cfg.Provider.Kind = "openai"
	cfg.ApplyEnv()

	if cfg.Provider.APIBase != "" {
		t.Errorf("OLLAMA_HOST should not apply to openai, got %q", cfg.Provider.APIBase)
	}
}

func TestApplyEnv_DatabaseURL(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://murmur@localhost/notes")

	cfg := DefaultConfig()
	cfg.ApplyEnv()

	if cfg.Notes.Backend != NotesBackendPostgres || cfg.Notes.PostgresDSN != "postgres://murmur@localhost/notes" {
		t.Errorf("unexpected notes config: %+v", cfg.Notes)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("should validate: %v", err)
	}
}
