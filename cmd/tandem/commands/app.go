package commands

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/tandem-ai/tandem/internal/config"
	"github.com/tandem-ai/tandem/internal/event"
	"github.com/tandem-ai/tandem/internal/interpreter"
	"github.com/tandem-ai/tandem/internal/logging"
	"github.com/tandem-ai/tandem/internal/memory"
	"github.com/tandem-ai/tandem/internal/provider"
	"github.com/tandem-ai/tandem/internal/role"
	"github.com/tandem-ai/tandem/internal/role/planner"
	"github.com/tandem-ai/tandem/internal/session"
	"github.com/tandem-ai/tandem/internal/storage"
)

const defaultMaxTokens = 4096

// app holds the wired-up dependencies shared by the commands.
type app struct {
	cfg     *config.Config
	logger  zerolog.Logger
	bus     *event.Bus
	store   *storage.Store
	client  *provider.Client
	reg     *provider.Registry
	manager *session.Manager
}

// loadApp builds the full dependency graph from configuration.
func loadApp(ctx context.Context) (*app, error) {
	dir, err := getWorkDir()
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(dir)
	if err != nil {
		return nil, err
	}

	level := cfg.LogLevel
	if logLevel != "" {
		level = logLevel
	}
	logCfg := logging.DefaultConfig()
	logCfg.Level = logging.ParseLevel(level)
	logCfg.Pretty = true
	logger := logging.New(logCfg)

	reg, err := buildRegistry(ctx, cfg)
	if err != nil {
		return nil, err
	}

	client := provider.NewClient(reg, defaultMaxTokens, logger)
	bus := event.NewBus()
	store := storage.New(config.GetPaths().StoragePath())
	compressor := memory.NewRoundCompressor(client, logger)

	plannerCfg := planner.Config{
		PromptCompression: cfg.Planner.PromptCompression,
		UseExperience:     cfg.Planner.UseExperience,
		ExperienceDir:     cfg.Planner.ExperienceDir,
		ExperienceTopK:    cfg.Planner.ExperienceTopK,
		UseExample:        cfg.Planner.UseExample,
		ExampleDir:        cfg.Planner.ExampleDir,
	}

	factory := func(meta *session.Metadata, emitter *event.SessionEventEmitter) ([]role.Role, error) {
		p, err := planner.New(plannerCfg, client, compressor, logger)
		if err != nil {
			return nil, err
		}
		ci, err := interpreter.New(client, meta.ExecutionCwd, logger)
		if err != nil {
			return nil, err
		}
		return []role.Role{p, ci}, nil
	}

	manager := session.NewManager(session.ManagerConfig{
		BaseDir:  cfg.Session.Dir,
		MaxTurns: cfg.Session.MaxTurns,
	}, store, bus, factory, logger)

	return &app{
		cfg:     cfg,
		logger:  logger,
		bus:     bus,
		store:   store,
		client:  client,
		reg:     reg,
		manager: manager,
	}, nil
}

func (a *app) close() {
	a.manager.Close()
	a.bus.Close()
}

// buildRegistry registers every configured provider. At least one
// provider must come up for the commands that talk to a model.
func buildRegistry(ctx context.Context, cfg *config.Config) (*provider.Registry, error) {
	reg := provider.NewRegistry(cfg.Model)

	if pc := cfg.Provider["anthropic"]; !pc.Disabled {
		p, err := provider.NewAnthropicProvider(ctx, &provider.AnthropicConfig{
			APIKey:  pc.APIKey,
			BaseURL: pc.BaseURL,
		})
		if err == nil {
			reg.Register(p)
		}
	}
	if pc := cfg.Provider["openai"]; !pc.Disabled {
		p, err := provider.NewOpenAIProvider(ctx, &provider.OpenAIConfig{
			APIKey:  pc.APIKey,
			BaseURL: pc.BaseURL,
		})
		if err == nil {
			reg.Register(p)
		}
	}

	if len(reg.List()) == 0 {
		return nil, fmt.Errorf("no providers configured; set ANTHROPIC_API_KEY or OPENAI_API_KEY")
	}
	return reg, nil
}
