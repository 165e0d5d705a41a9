// Package config provides configuration management for the templar CLI.
package config

import "time"

// Config holds all CLI configuration options.
type Config struct {
	Template      string               `koanf:"template"`
	Output        string               `koanf:"output"`
	TemplatesDir  string               `koanf:"templates_dir"`
	HelpersDir    string               `koanf:"helpers_dir"`
	Vars          map[string]any       `koanf:"vars"`
	Environment   string               `koanf:"environment"`
	Environments  map[string]EnvConfig `koanf:"environments"`
	MaxDepth      int                  `koanf:"max_depth"`
	MaxSteps      uint64               `koanf:"max_steps"`
	Concurrency   int                  `koanf:"concurrency"`
	WatchDebounce time.Duration        `koanf:"watch_debounce"`
	Verbose       bool                 `koanf:"verbose"`
	Format        string               `koanf:"format"`

	// ProjectRoot is the directory relative paths are resolved against.
	ProjectRoot string `koanf:"-"`
}

// EnvConfig holds environment-specific configuration overrides.
type EnvConfig struct {
	Template string         `koanf:"template"`
	Output   string         `koanf:"output"`
	Vars     map[string]any `koanf:"vars"` // merged over the base vars
}

// Default configuration values.
const (
	DefaultTemplatesDir  = "templates"
	DefaultHelpersDir    = "helpers"
	DefaultEnv           = "dev"
	DefaultFormat        = "auto" // Auto-detect: TTY=text, non-TTY=markdown
	DefaultMaxDepth      = 128
	DefaultWatchDebounce = 100 * time.Millisecond
)

// ConfigFileNames are the file names searched for, in order.
var ConfigFileNames = []string{"templar.yaml", "templar.yml"}

// Formats are the accepted values of the format key.
var Formats = []string{"auto", "text", "markdown", "json"}
