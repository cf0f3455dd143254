package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/crystaldolphin/murmur/internal/config"
	"github.com/crystaldolphin/murmur/internal/providers"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show murmur status",
	RunE:  runStatus,
}

func mark(err error) string {
	if err == nil {
		return "✓"
	}
	return "✗"
}

func runStatus(_ *cobra.Command, _ []string) error {
	cfgPath := flagConfig
	if cfgPath == "" {
		cfgPath = config.ConfigPath()
	}

	fmt.Printf("%s murmur Status\n\n", logo)

	_, statErr := os.Stat(cfgPath)
	fmt.Printf("Config:    %s %s\n", cfgPath, mark(statErr))

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("  (could not load config: %v)\n", err)
		return nil
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		fmt.Printf("  ✗ %v\n", err)
	}

	sessions := config.ExpandPath(cfg.Agent.SessionsDir)
	_, sessErr := os.Stat(sessions)
	fmt.Printf("Sessions:  %s %s\n", sessions, mark(sessErr))

	p := cfg.Provider
	spec := providers.Resolve(p.Kind, p.APIKey, p.APIBase)
	switch {
	case spec == nil:
		fmt.Printf("Provider:  ✗ unknown kind %q\n", p.Kind)
	case spec.IsLocal:
		base := p.APIBase
		if base == "" {
			base = spec.DefaultAPIBase
		}
		fmt.Printf("Provider:  %s ✓ %s\n", spec.Label(), base)
	case p.APIKey != "":
		fmt.Printf("Provider:  %s ✓\n", spec.Label())
	default:
		fmt.Printf("Provider:  %s (no API key, set %s)\n", spec.Label(), spec.EnvKey)
	}
	fmt.Printf("Model:     %s (embeddings: %s)\n", p.Model, p.EmbedModel)

	notes := cfg.Notes.Backend
	switch notes {
	case config.NotesBackendSQLite:
		notes += " " + config.ExpandPath(cfg.Notes.SQLitePath)
	case config.NotesBackendPostgres:
		notes += " (DATABASE_URL)"
	}
	fmt.Printf("Notes:     %s\n", notes)

	if cfg.Weather.APIKey != "" {
		fmt.Printf("Weather:   ✓ %s\n", cfg.Weather.APIBase)
	} else {
		fmt.Println("Weather:   (not set, WEATHER_API_KEY)")
	}
	fmt.Printf("Gateway:   ws://%s\n", cfg.GatewayAddr())

	if len(cfg.Ingest.Sources) > 0 {
		fmt.Println("\nIngest sources:")
		for _, s := range cfg.Ingest.Sources {
			fmt.Printf("  %-40s %s\n", s.URL, s.Schedule)
		}
	}
	return nil
}
