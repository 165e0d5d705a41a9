package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// loggerKey is used to store logger in context.
type loggerKey struct{}

// EnvPrefix is the prefix of environment variables read as configuration.
// A double underscore separates nested keys: TEMPLAR_VARS__TITLE sets vars.title.
const EnvPrefix = "TEMPLAR_"

// maxUpwardSearchLevels limits how far up the directory tree to search for config files.
const maxUpwardSearchLevels = 10

// Package-level koanf instance and config file tracking
var (
	k              = koanf.New(".")
	configFileUsed string
	currentConfig  *Config // Stores the loaded config for access by commands
)

// flagKeys maps flag names to config keys where they differ.
var flagKeys = map[string]string{
	"env": "environment",
	"var": "vars",
}

// configExistsIn returns the config file in dir, or "".
func configExistsIn(dir string) string {
	for _, name := range ConfigFileNames {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// findConfigUpward searches upward from startDir for a config file.
// Returns empty string if not found within maxUpwardSearchLevels.
func findConfigUpward(startDir string) string {
	dir := startDir
	for i := 0; i < maxUpwardSearchLevels; i++ {
		if found := configExistsIn(dir); found != "" {
			return found
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root
			break
		}
		dir = parent
	}
	return ""
}

// resolvePathRelativeTo resolves a path relative to baseDir if it's not absolute.
// Returns the path unchanged if it's empty or already absolute.
func resolvePathRelativeTo(path, baseDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

// ResetConfig resets the koanf instance. Used for testing.
func ResetConfig() {
	k = koanf.New(".")
	configFileUsed = ""
	currentConfig = nil
}

// defaults returns the lowest-precedence configuration layer.
func defaults() map[string]any {
	return map[string]any{
		"templates_dir":  DefaultTemplatesDir,
		"helpers_dir":    DefaultHelpersDir,
		"environment":    DefaultEnv,
		"format":         DefaultFormat,
		"max_depth":      DefaultMaxDepth,
		"max_steps":      0,
		"concurrency":    0,
		"watch_debounce": DefaultWatchDebounce.String(),
		"verbose":        false,
	}
}

// LoadConfig loads configuration from file, environment variables, and flags.
// Precedence (highest to lowest):
// flags > env vars > selected environment overrides > config file > defaults
//
// With an empty cfgFile the nearest templar.yaml above the working directory
// is used. Relative paths from the file or defaults are resolved against the
// directory holding the config file; relative paths given as flags are
// resolved against the working directory.
func LoadConfig(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}

	configFileUsed = cfgFile
	if configFileUsed == "" {
		configFileUsed = findConfigUpward(cwd)
	}

	projectRoot := cwd
	if configFileUsed != "" {
		if abs, err := filepath.Abs(configFileUsed); err == nil {
			projectRoot = filepath.Dir(abs)
		}
	}

	// The environment name itself may come from any layer, so resolve it
	// first and then rebuild the stack with its overrides in place.
	k, err = loadLayers(flags, nil)
	if err != nil {
		return nil, err
	}
	if overlay := k.Cut("environments." + k.String("environment")); len(overlay.Keys()) > 0 {
		k, err = loadLayers(flags, overlay)
		if err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
			ErrorUnused:      true,
			WeaklyTypedInput: true,
			TagName:          "koanf",
			Result:           &cfg,
		},
	}); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	var flagPaths map[string]string
	if flags != nil {
		flagPaths = absoluteFlagPaths(flags, cwd)
	}

	// Resolve relative paths
	cfg.ProjectRoot = projectRoot
	cfg.TemplatesDir = resolvePath(cfg.TemplatesDir, "templates-dir", flagPaths, projectRoot)
	cfg.HelpersDir = resolvePath(cfg.HelpersDir, "helpers-dir", flagPaths, projectRoot)
	cfg.Output = resolvePath(cfg.Output, "output", flagPaths, projectRoot)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Store config for access by commands
	currentConfig = &cfg

	return &cfg, nil
}

// flagValue returns the posflag callback loading only explicitly set flags.
func flagValue(flags *pflag.FlagSet) func(f *pflag.Flag) (string, any) {
	return func(f *pflag.Flag) (string, any) {
		if !f.Changed {
			return "", nil
		}

		// Transform kebab-case to snake_case for config keys
		key := strings.ReplaceAll(f.Name, "-", "_")
		if mapped, ok := flagKeys[f.Name]; ok {
			key = mapped
		}

		// --var pairs merge into vars instead of replacing the map
		if f.Name == "var" {
			pairs, err := flags.GetStringToString("var")
			if err != nil {
				return "", nil
			}
			vars := make(map[string]any, len(pairs))
			for name, value := range pairs {
				vars[name] = value
			}
			return key, vars
		}

		return key, posflag.FlagVal(flags, f)
	}
}

// absoluteFlagPaths resolves path flags against the working directory.
func absoluteFlagPaths(flags *pflag.FlagSet, cwd string) map[string]string {
	paths := make(map[string]string)
	for _, name := range []string{"templates-dir", "helpers-dir", "output"} {
		f := flags.Lookup(name)
		if f == nil || !f.Changed || f.Value.Type() != "string" {
			continue
		}
		if v := f.Value.String(); v != "" {
			paths[name] = resolvePathRelativeTo(v, cwd)
		}
	}
	return paths
}

func resolvePath(value, flag string, flagPaths map[string]string, root string) string {
	if p, ok := flagPaths[flag]; ok {
		return p
	}
	return resolvePathRelativeTo(value, root)
}

// loadLayers stacks defaults, the config file, the environment overlay,
// environment variables and changed flags into a new koanf instance.
func loadLayers(flags *pflag.FlagSet, overlay *koanf.Koanf) (*koanf.Koanf, error) {
	kk := koanf.New(".")

	if err := kk.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configFileUsed != "" {
		if err := kk.Load(file.Provider(configFileUsed), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFileUsed, err)
		}
	}

	if overlay != nil {
		if err := kk.Merge(overlay); err != nil {
			return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
		}
	}

	// Transform: TEMPLAR_TEMPLATES_DIR -> templates_dir, TEMPLAR_VARS__TITLE -> vars.title
	if err := kk.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if flags != nil {
		if err := kk.Load(posflag.ProviderWithFlag(flags, ".", kk, flagValue(flags)), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	return kk, nil
}

// GetConfigFileUsed returns the path to the config file being used, if any.
func GetConfigFileUsed() string {
	return configFileUsed
}

// GetCurrentConfig returns the currently loaded configuration.
// This is available after LoadConfig is called.
func GetCurrentConfig() *Config {
	return currentConfig
}

// WithLogger returns a copy of ctx carrying logger.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// GetLogger retrieves the logger from the command context.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	// Return discard logger as safe fallback
	return slog.New(slog.DiscardHandler)
}
