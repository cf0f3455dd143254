package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/crystaldolphin/murmur/internal/config"
)

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Initialize configuration and data directory",
	RunE:  runOnboard,
}

func runOnboard(_ *cobra.Command, _ []string) error {
	cfgPath := flagConfig
	if cfgPath == "" {
		cfgPath = config.ConfigPath()
	}

	cfg := config.DefaultConfig()
	if _, err := os.Stat(cfgPath); err == nil {
		fmt.Printf("Config already exists at %s\n", cfgPath)
		fmt.Printf("Press Enter to refresh (keep existing values) or Ctrl+C to cancel: ")
		fmt.Scanln()
		if existing, loadErr := config.Load(cfgPath); loadErr == nil {
			cfg = *existing
		}
		if err := config.Save(&cfg, cfgPath); err != nil {
			return err
		}
		fmt.Printf("✓ Config refreshed at %s\n", cfgPath)
	} else {
		if err := config.Save(&cfg, cfgPath); err != nil {
			return err
		}
		fmt.Printf("✓ Created config at %s\n", cfgPath)
	}

	sessions := config.ExpandPath(cfg.Agent.SessionsDir)
	if err := os.MkdirAll(sessions, 0o755); err != nil {
		return fmt.Errorf("create sessions dir: %w", err)
	}
	fmt.Printf("✓ Sessions at %s\n", sessions)

	createCatalogTemplate(filepath.Join(filepath.Dir(cfgPath), "tools.example.yaml"))

	fmt.Printf("\n%s murmur is ready!\n\n", logo)
	fmt.Println("Next steps:")
	fmt.Println("  1. Start Ollama (ollama serve) and pull a model: ollama pull llama3.1")
	fmt.Println("     or set OPENAI_API_KEY / provider.apiKey for a hosted model")
	fmt.Println("  2. Set WEATHER_API_KEY to enable the weather tool (https://www.weatherapi.com)")
	fmt.Printf("  3. Chat: murmur chat -m \"What time is it?\"\n")
	fmt.Printf("  4. Serve transcription clients: murmur serve\n")
	return nil
}

// createCatalogTemplate writes an example tool overlay; point
// agent.catalogPath at a copy to use it.
func createCatalogTemplate(path string) {
	if _, err := os.Stat(path); err == nil {
		return
	}
	const tmpl = `# Extra tools for the selector. Tools without a handler are answered by chat.
# rules: ["..."]            # replaces the default selection rules
tools:
  - name: weather_tool
    description: Current weather for a location.
    arguments:
      location: ""
    keywords: [umbrella, jacket]   # extra follow-up words
`
	if err := os.WriteFile(path, []byte(tmpl), 0o644); err == nil {
		fmt.Printf("  Created %s\n", filepath.Base(path))
	}
}
