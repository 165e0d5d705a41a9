// Package engine renders template files from disk.
// It ties together the file loader, helper registry, evaluation context and generator.
package engine

import (
	"fmt"
	"log/slog"
	"maps"

	"github.com/leapstack-labs/templar/internal/helpers"
	"github.com/leapstack-labs/templar/internal/loader"
	starctx "github.com/leapstack-labs/templar/internal/starlark"
	"github.com/leapstack-labs/templar/internal/template"
)

// DefaultEnvironment is used when no environment is configured.
const DefaultEnvironment = "dev"

// Engine renders templates found under a templates directory.
// An Engine is safe for concurrent use; every render gets its own evaluation context.
type Engine struct {
	logger      *slog.Logger
	loader      *loader.FileLoader
	helpers     *helpers.Registry
	generator   *template.Generator
	vars        map[string]any
	environment string
	maxDepth    int
	maxSteps    uint64
}

// Config holds engine configuration.
type Config struct {
	// TemplatesDir is the root for template and include paths
	TemplatesDir string
	// HelpersDir is the directory of Starlark helper files (optional)
	HelpersDir string
	// Vars are variables visible to every template; they override frontmatter vars
	Vars map[string]any
	// Environment is the active environment name, exposed as "env"
	Environment string
	// MaxDepth bounds directive and include nesting (0 uses the default)
	MaxDepth int
	// MaxSteps bounds Starlark work per evaluation (0 is unlimited)
	MaxSteps uint64
	// Logger is the structured logger (optional, uses discard if nil)
	Logger *slog.Logger
}

// New creates an engine and loads its helpers.
func New(cfg Config) (*Engine, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	logger.Debug("initializing engine",
		"templates_dir", cfg.TemplatesDir,
		"helpers_dir", cfg.HelpersDir,
		"environment", cfg.Environment)

	registry := helpers.NewRegistry()
	if cfg.HelpersDir != "" {
		var err error
		registry, err = helpers.LoadAndRegister(cfg.HelpersDir, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to load helpers: %w", err)
		}
	}

	env := cfg.Environment
	if env == "" {
		env = DefaultEnvironment
	}

	maxDepth := cfg.MaxDepth
	if maxDepth <= 0 {
		maxDepth = template.DefaultMaxDepth
	}

	fl := loader.NewFileLoader(cfg.TemplatesDir, logger)

	return &Engine{
		logger:  logger,
		loader:  fl,
		helpers: registry,
		generator: template.NewGenerator(
			template.WithLoader(fl),
			template.WithMaxDepth(maxDepth),
			template.WithLogger(logger),
		),
		vars:        cfg.Vars,
		environment: env,
		maxDepth:    maxDepth,
		maxSteps:    cfg.MaxSteps,
	}, nil
}

// Loader returns the engine's file loader.
func (e *Engine) Loader() *loader.FileLoader {
	return e.loader
}

// Helpers returns the loaded helper registry.
func (e *Engine) Helpers() *helpers.Registry {
	return e.helpers
}

// Environment returns the active environment name.
func (e *Engine) Environment() string {
	return e.environment
}

// Generator returns the generator used for renders.
func (e *Engine) Generator() *template.Generator {
	return e.generator
}

// ParseOptions returns the parse options matching the engine's limits.
func (e *Engine) ParseOptions() []template.Option {
	return []template.Option{template.WithMaxDepth(e.maxDepth)}
}

// NewContext creates a fresh evaluation context. Frontmatter variables are
// applied first and configured variables override them.
func (e *Engine) NewContext(info *starctx.TemplateInfo, frontmatter map[string]any) (*starctx.ExecutionContext, error) {
	merged := make(map[string]any, len(frontmatter)+len(e.vars))
	maps.Copy(merged, frontmatter)
	maps.Copy(merged, e.vars)

	vars, err := starctx.VarsToStarlark(merged)
	if err != nil {
		return nil, err
	}

	return starctx.NewContext(vars,
		starctx.WithEnv(e.environment),
		starctx.WithTemplate(info),
		starctx.WithHelperRegistry(e.helpers),
		starctx.WithMaxSteps(e.maxSteps),
		starctx.WithLogger(e.logger),
	), nil
}

// Parse reads and parses the template at path.
func (e *Engine) Parse(path string) (*template.Template, *loader.Source, error) {
	src, err := e.loader.Read(path)
	if err != nil {
		return nil, nil, err
	}

	tmpl, err := template.ParseString(src.Body, path, e.ParseOptions()...)
	if err != nil {
		return nil, src, err
	}
	return tmpl, src, nil
}

// Discover lists the templates under the templates directory.
func (e *Engine) Discover() ([]string, error) {
	return e.loader.Discover()
}
