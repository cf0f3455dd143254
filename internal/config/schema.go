// Package config defines the configuration schema for murmur.
//
// JSON keys use camelCase; ~/.murmur/config.json only needs the values that
// differ from DefaultConfig.
package config

import (
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ---- Provider --------------------------------------------------------------

// ProviderConfig selects and configures the language model.
type ProviderConfig struct {
	Kind        string  `json:"kind"` // registry name; "" detects from apiKey/apiBase
	APIKey      string  `json:"apiKey,omitempty"`
	APIBase     string  `json:"apiBase,omitempty"`
	Model       string  `json:"model"`
	EmbedModel  string  `json:"embedModel,omitempty"`
	Temperature float64 `json:"temperature"`
}

func defaultProviderConfig() ProviderConfig {
	return ProviderConfig{
		Model:       "llama3.1",
		EmbedModel:  "nomic-embed-text",
		Temperature: 0.2,
	}
}

// ---- Agent -----------------------------------------------------------------

// AgentConfig holds turn handling settings.
type AgentConfig struct {
	MaxTurns    int    `json:"maxTurns"`    // chat REPL turn limit, 0 = unlimited
	MaxAttempts int    `json:"maxAttempts"` // selector/filler retry budget
	CatalogPath string `json:"catalogPath,omitempty"`
	SessionsDir string `json:"sessionsDir"`
}

func defaultAgentConfig() AgentConfig {
	return AgentConfig{
		MaxTurns:    0,
		MaxAttempts: 3,
		SessionsDir: "~/.murmur/sessions",
	}
}

// ---- Notes -----------------------------------------------------------------

const (
	NotesBackendMemory   = "memory"
	NotesBackendSQLite   = "sqlite"
	NotesBackendPostgres = "postgres"
)

// NotesConfig selects the note store.
type NotesConfig struct {
	Backend     string `json:"backend"`
	SQLitePath  string `json:"sqlitePath"`
	PostgresDSN string `json:"postgresDsn,omitempty"`
	Dimensions  int    `json:"dimensions"`
	TopN        int    `json:"topN"`
	ChunkSize   int    `json:"chunkSize"`
	// UseEmbeddings ranks by vector similarity instead of keywords.
	// Postgres always embeds.
	UseEmbeddings bool `json:"useEmbeddings"`
}

func defaultNotesConfig() NotesConfig {
	return NotesConfig{
		Backend:       NotesBackendSQLite,
		SQLitePath:    "~/.murmur/notes.db",
		Dimensions:    768,
		TopN:          5,
		ChunkSize:     1500,
		UseEmbeddings: true,
	}
}

// ---- Weather ---------------------------------------------------------------

// WeatherConfig configures the weatherapi.com client. The weather tool is
// disabled without an API key.
type WeatherConfig struct {
	APIBase string `json:"apiBase"`
	APIKey  string `json:"apiKey,omitempty"`
}

func defaultWeatherConfig() WeatherConfig {
	return WeatherConfig{APIBase: "https://api.weatherapi.com"}
}

// ---- Gateway ---------------------------------------------------------------

// GatewayConfig holds the WebSocket server address.
type GatewayConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

func defaultGatewayConfig() GatewayConfig {
	return GatewayConfig{Host: "0.0.0.0", Port: 8080}
}

// ---- Ingest ----------------------------------------------------------------

// IngestSource is a page re-ingested into notes on a cron schedule.
type IngestSource struct {
	Name     string `json:"name,omitempty"`
	URL      string `json:"url"`
	Schedule string `json:"schedule"` // five-field cron expression
	TZ       string `json:"tz,omitempty"`
}

type IngestConfig struct {
	Sources   []IngestSource `json:"sources"`
	StatePath string         `json:"statePath"`
}

func defaultIngestConfig() IngestConfig {
	return IngestConfig{Sources: []IngestSource{}, StatePath: "~/.murmur/ingest/state.json"}
}

// ---- Root config -----------------------------------------------------------

// Config is the root configuration object, loaded from ~/.murmur/config.json.
type Config struct {
	Provider ProviderConfig `json:"provider"`
	Agent    AgentConfig    `json:"agent"`
	Notes    NotesConfig    `json:"notes"`
	Weather  WeatherConfig  `json:"weather"`
	Gateway  GatewayConfig  `json:"gateway"`
	Ingest   IngestConfig   `json:"ingest"`
}

// DefaultConfig returns a Config populated with all default values.
func DefaultConfig() Config {
	return Config{
		Provider: defaultProviderConfig(),
		Agent:    defaultAgentConfig(),
		Notes:    defaultNotesConfig(),
		Weather:  defaultWeatherConfig(),
		Gateway:  defaultGatewayConfig(),
		Ingest:   defaultIngestConfig(),
	}
}

// GatewayAddr returns host:port for the WebSocket server.
func (c *Config) GatewayAddr() string {
	return net.JoinHostPort(c.Gateway.Host, strconv.Itoa(c.Gateway.Port))
}

// ExpandPath resolves a leading "~/" against the user's home directory.
func ExpandPath(p string) string {
	if strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, p[2:])
		}
	}
	return p
}
