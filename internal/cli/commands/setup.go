package commands

import (
	"log/slog"
	"os"

	"github.com/leapstack-labs/templar/internal/cli/config"
	"github.com/leapstack-labs/templar/internal/cli/output"
	"github.com/leapstack-labs/templar/internal/engine"
	"github.com/spf13/cobra"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Engine   *engine.Engine
	Renderer *output.Renderer
}

// NewCommandContext creates a CommandContext with engine and renderer.
func NewCommandContext(cmd *cobra.Command) (*CommandContext, error) {
	cmdCtx := NewCommandContextWithoutEngine(cmd)

	eng, err := createEngine(cmdCtx.Cfg, cmdCtx.Logger)
	if err != nil {
		return nil, err
	}
	cmdCtx.Engine = eng

	return cmdCtx, nil
}

// NewCommandContextWithoutEngine creates a CommandContext without an engine.
// Useful for commands that don't render templates.
func NewCommandContextWithoutEngine(cmd *cobra.Command) *CommandContext {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.Format))

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Renderer: r,
	}
}

// Helper functions shared across commands

// getConfig returns the current configuration.
// It uses config.GetCurrentConfig() if available, otherwise falls back to defaults.
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}

	return &config.Config{
		TemplatesDir:  getEnvOrDefault("TEMPLAR_TEMPLATES_DIR", config.DefaultTemplatesDir),
		HelpersDir:    getEnvOrDefault("TEMPLAR_HELPERS_DIR", config.DefaultHelpersDir),
		Environment:   getEnvOrDefault("TEMPLAR_ENVIRONMENT", config.DefaultEnv),
		Format:        getEnvOrDefault("TEMPLAR_FORMAT", config.DefaultFormat),
		MaxDepth:      config.DefaultMaxDepth,
		WatchDebounce: config.DefaultWatchDebounce,
	}
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func createEngine(cfg *config.Config, logger *slog.Logger) (*engine.Engine, error) {
	if err := cfg.ValidateDirectories(); err != nil {
		return nil, err
	}

	return engine.New(engine.Config{
		TemplatesDir: cfg.TemplatesDir,
		HelpersDir:   cfg.HelpersDir,
		Vars:         cfg.Vars,
		Environment:  cfg.Environment,
		MaxDepth:     cfg.MaxDepth,
		MaxSteps:     cfg.MaxSteps,
		Logger:       logger,
	})
}
