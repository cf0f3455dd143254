package dependency

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crystaldolphin/murmur/internal/config"
	"github.com/crystaldolphin/murmur/internal/tools"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Provider.Kind = "ollama"
	cfg.Provider.APIBase = "http://127.0.0.1:1"
	cfg.Agent.SessionsDir = filepath.Join(dir, "sessions")
	cfg.Notes.Backend = config.NotesBackendMemory
	cfg.Ingest.StatePath = filepath.Join(dir, "ingest", "state.json")
	return &cfg
}

func TestNew_WiresServices(t *testing.T) {
	c, err := New(testConfig(t))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	assert.Equal(t, "ollama/llama3.1", c.Provider().Name())
	assert.NotNil(t, c.AgentLoop())
	assert.NotNil(t, c.Orchestrator())
	assert.NotNil(t, c.Sessions())
	assert.NotNil(t, c.Ingester())
	assert.Empty(t, c.Scheduler().Jobs())

	names := c.Registry().Names()
	assert.Contains(t, names, tools.TimeTool)
	assert.Contains(t, names, tools.NoteTool)
	assert.Contains(t, names, tools.CourseTool)
	assert.NotContains(t, names, tools.WeatherTool, "no weather key configured")
	assert.NotContains(t, names, tools.CalendarTool)
}

func TestNew_WeatherWithKey(t *testing.T) {
	cfg := testConfig(t)
	cfg.Weather.APIKey = "w-key"

	c, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	assert.Contains(t, c.Registry().Names(), tools.WeatherTool)
}

func TestNew_SQLiteNotes(t *testing.T) {
	cfg := testConfig(t)
	cfg.Notes.Backend = config.NotesBackendSQLite
	cfg.Notes.SQLitePath = filepath.Join(t.TempDir(), "db", "notes.db")

	c, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, c.Close())
	_, err = os.Stat(cfg.Notes.SQLitePath)
	assert.NoError(t, err)
}

func TestNew_CatalogOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tools.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
tools:
  - name: stock_tool
    description: Stock quotes for a ticker.
    arguments:
      ticker: ""
`), 0o600))

	cfg := testConfig(t)
	cfg.Agent.CatalogPath = path

	c, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	_, ok := c.Catalog().Lookup("stock_tool")
	assert.True(t, ok)
	assert.NotContains(t, c.Registry().Names(), "stock_tool", "no handler for overlay tools")
}

func TestNew_Errors(t *testing.T) {
	t.Run("missing catalog", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Agent.CatalogPath = filepath.Join(t.TempDir(), "missing.yaml")
		_, err := New(cfg)
		assert.Error(t, err)
	})
	t.Run("no model", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Provider.Model = ""
		_, err := New(cfg)
		assert.ErrorContains(t, err, "no model")
	})
	t.Run("bad ingest source", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Ingest.Sources = []config.IngestSource{{URL: "https://x.test", Schedule: "whenever"}}
		_, err := New(cfg)
		assert.Error(t, err)
	})
}
