// Package dependency wires murmur's services using go.uber.org/dig.
package dependency

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.uber.org/dig"

	"github.com/crystaldolphin/murmur/internal/agent"
	"github.com/crystaldolphin/murmur/internal/bus"
	"github.com/crystaldolphin/murmur/internal/config"
	"github.com/crystaldolphin/murmur/internal/cron"
	"github.com/crystaldolphin/murmur/internal/handlers"
	"github.com/crystaldolphin/murmur/internal/notes"
	"github.com/crystaldolphin/murmur/internal/providers"
	"github.com/crystaldolphin/murmur/internal/schema"
	"github.com/crystaldolphin/murmur/internal/session"
	"github.com/crystaldolphin/murmur/internal/tools"
)

const openTimeout = 15 * time.Second

// Container holds the resolved service singletons.
// Callers use the typed getter methods; they never need to import dig directly.
type Container struct {
	cfg          *config.Config
	provider     providers.Provider
	catalog      *tools.Catalog
	registry     *tools.Registry
	orchestrator *agent.Orchestrator
	sessions     *session.Manager
	msgBus       *bus.MessageBus
	loop         *agent.AgentLoop
	notes        schema.NoteStore
	ingester     *notes.Ingester
	scheduler    *cron.Scheduler
}

func (c *Container) Config() *config.Config            { return c.cfg }
func (c *Container) Provider() providers.Provider      { return c.provider }
func (c *Container) Catalog() *tools.Catalog           { return c.catalog }
func (c *Container) Registry() *tools.Registry         { return c.registry }
func (c *Container) Orchestrator() *agent.Orchestrator { return c.orchestrator }
func (c *Container) Sessions() *session.Manager        { return c.sessions }
func (c *Container) MessageBus() *bus.MessageBus       { return c.msgBus }
func (c *Container) AgentLoop() *agent.AgentLoop       { return c.loop }
func (c *Container) Notes() schema.NoteStore           { return c.notes }
func (c *Container) Ingester() *notes.Ingester         { return c.ingester }
func (c *Container) Scheduler() *cron.Scheduler        { return c.scheduler }

// Close releases the note store.
func (c *Container) Close() error {
	if c.notes == nil {
		return nil
	}
	return c.notes.Close()
}

// FollowUpKeywords is the per-tool follow-up keyword table, after any
// catalog overlay has been merged in.
type FollowUpKeywords map[string][]string

// New builds and wires all services from cfg.
func New(cfg *config.Config) (*Container, error) {
	d := dig.New()

	constructors := []any{
		func() *config.Config { return cfg },
		newProvider,
		newCatalog,
		newNoteStore,
		newRegistry,
		newOrchestrator,
		newSessionManager,
		newMessageBus,
		agent.NewAgentLoop,
		newIngester,
		newScheduler,
	}
	for _, fn := range constructors {
		if err := d.Provide(fn); err != nil {
			return nil, err
		}
	}
	// agent.NewAgentLoop takes the Bus interface.
	if err := d.Provide(func(b *bus.MessageBus) bus.Bus { return b }); err != nil {
		return nil, err
	}

	var result *Container
	err := d.Invoke(func(
		provider providers.Provider,
		catalog *tools.Catalog,
		registry *tools.Registry,
		orchestrator *agent.Orchestrator,
		sessions *session.Manager,
		msgBus *bus.MessageBus,
		loop *agent.AgentLoop,
		store schema.NoteStore,
		ingester *notes.Ingester,
		scheduler *cron.Scheduler,
	) {
		result = &Container{
			cfg:          cfg,
			provider:     provider,
			catalog:      catalog,
			registry:     registry,
			orchestrator: orchestrator,
			sessions:     sessions,
			msgBus:       msgBus,
			loop:         loop,
			notes:        store,
			ingester:     ingester,
			scheduler:    scheduler,
		}
	})
	if err != nil {
		return nil, dig.RootCause(err)
	}
	return result, nil
}

func newProvider(cfg *config.Config) (providers.Provider, error) {
	p := cfg.Provider
	return providers.New(providers.Params{
		Kind:        p.Kind,
		APIKey:      p.APIKey,
		APIBase:     p.APIBase,
		Model:       p.Model,
		EmbedModel:  p.EmbedModel,
		Temperature: p.Temperature,
	})
}

// newCatalog returns the built-in catalog, overlaid with the YAML file at
// agent.catalogPath when one is configured.
func newCatalog(cfg *config.Config) (*tools.Catalog, FollowUpKeywords, error) {
	catalog := tools.BuiltinCatalog()
	keywords := tools.DefaultFollowUpKeywords()

	if path := cfg.Agent.CatalogPath; path != "" {
		file, err := tools.LoadCatalogFile(config.ExpandPath(path))
		if err != nil {
			return nil, nil, err
		}
		if catalog, err = file.Apply(catalog, keywords); err != nil {
			return nil, nil, fmt.Errorf("catalog %s: %w", path, err)
		}
		slog.Info("catalog overlay applied", "path", path, "tools", len(catalog.Names()))
	}
	return catalog, FollowUpKeywords(keywords), nil
}

func newNoteStore(cfg *config.Config, p providers.Provider) (schema.NoteStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), openTimeout)
	defer cancel()

	var embedder schema.Embedder
	if cfg.Notes.UseEmbeddings {
		embedder = p
	}

	switch cfg.Notes.Backend {
	case config.NotesBackendMemory:
		return notes.NewMemoryStore(embedder), nil
	case config.NotesBackendSQLite:
		store, err := notes.OpenSQLite(ctx, config.ExpandPath(cfg.Notes.SQLitePath), embedder)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.NotesBackendPostgres:
		store, err := notes.OpenPostgres(ctx, cfg.Notes.PostgresDSN, cfg.Notes.Dimensions, p)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
	return nil, fmt.Errorf("unknown notes backend %q", cfg.Notes.Backend)
}

func newRegistry(cfg *config.Config, p providers.Provider, catalog *tools.Catalog, store schema.NoteStore) (*tools.Registry, error) {
	deps := handlers.Deps{
		LLM:   p,
		Notes: store,
		TopN:  cfg.Notes.TopN,
		Now:   time.Now,
	}
	if cfg.Weather.APIKey != "" {
		deps.Weather = handlers.NewWeatherAPI(cfg.Weather.APIBase, cfg.Weather.APIKey, nil)
	} else {
		slog.Info("weather tool disabled: no API key (set WEATHER_API_KEY)")
	}
	return handlers.Register(tools.NewRegistryBuilder(), catalog, deps).Build()
}

func newOrchestrator(cfg *config.Config, p providers.Provider, catalog *tools.Catalog, registry *tools.Registry, keywords FollowUpKeywords) *agent.Orchestrator {
	return agent.NewOrchestrator(agent.Options{
		LLM:         p,
		Catalog:     catalog,
		Registry:    registry,
		Keywords:    keywords,
		MaxAttempts: cfg.Agent.MaxAttempts,
	})
}

func newSessionManager(cfg *config.Config) (*session.Manager, error) {
	return session.NewManager(config.ExpandPath(cfg.Agent.SessionsDir))
}

func newMessageBus() *bus.MessageBus {
	return bus.NewMessageBus(100)
}

func newIngester(cfg *config.Config, store schema.NoteStore) *notes.Ingester {
	return notes.NewIngester(store, cfg.Notes.ChunkSize)
}

func newScheduler(cfg *config.Config, ingester *notes.Ingester) (*cron.Scheduler, error) {
	sources := make([]cron.Source, 0, len(cfg.Ingest.Sources))
	for _, s := range cfg.Ingest.Sources {
		sources = append(sources, cron.Source{Name: s.Name, URL: s.URL, Expr: s.Schedule, TZ: s.TZ})
	}
	return cron.NewScheduler(config.ExpandPath(cfg.Ingest.StatePath), sources, func(ctx context.Context, url string) (int, error) {
		res, err := ingester.Ingest(ctx, url)
		return res.Notes, err
	})
}
