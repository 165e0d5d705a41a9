// Package cli provides the command-line interface for templar.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/leapstack-labs/templar/internal/cli/commands"
	"github.com/leapstack-labs/templar/internal/cli/config"
	"github.com/spf13/cobra"
)

var cfgFile string

// Version information (set at build time).
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "templar",
		Short: "templar - text template compiler",
		Long: `templar renders text templates made of literal text and directive blocks.

Directives are written between !!% and %!! markers. The first line of a
directive names what it does: if, ifelse/else, include, transform, or any
other text to group its body. Conditions and transforms are Starlark
expressions evaluated against configured variables, the active environment
and helper functions loaded from .star files.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Skip config loading for help and completion commands
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}

			cfg, err := config.LoadConfig(cfgFile, cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}

			level := slog.LevelWarn
			if cfg.Verbose {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
			cmd.SetContext(config.WithLogger(cmd.Context(), logger))

			if configFile := config.GetConfigFileUsed(); configFile != "" {
				logger.Debug("using config file", "path", configFile)
			}
			logger.Debug("configuration loaded",
				"environment", cfg.Environment,
				"templates_dir", cfg.TemplatesDir,
				"helpers_dir", cfg.HelpersDir)

			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(fmt.Sprintf("{{.Name}} {{.Version}} (commit %s, built %s)\n", GitCommit, BuildDate))

	// Global persistent flags
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default: nearest templar.yaml)")
	flags.StringP("env", "e", "", "Environment name (e.g., dev, prod)")
	flags.String("templates-dir", "", "Path to templates directory")
	flags.String("helpers-dir", "", "Path to helpers directory")
	flags.StringToString("var", nil, "Template variable as name=value (repeatable)")
	flags.Int("max-depth", 0, "Maximum directive and include nesting")
	flags.Uint64("max-steps", 0, "Maximum Starlark steps per expression (0 is unlimited)")
	flags.Int("concurrency", 0, "Maximum templates rendered at once (0 is unlimited)")
	flags.BoolP("verbose", "v", false, "Verbose output")
	flags.StringP("format", "f", "", "Output format (auto|text|markdown|json)")

	_ = rootCmd.RegisterFlagCompletionFunc("format", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return config.Formats, cobra.ShellCompDirectiveNoFileComp
	})

	_ = rootCmd.RegisterFlagCompletionFunc("env", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"dev", "staging", "prod"}, cobra.ShellCompDirectiveNoFileComp
	})

	rootCmd.AddCommand(commands.NewVersionCommand(Version))
	rootCmd.AddCommand(commands.NewGenerateCommand())
	rootCmd.AddCommand(commands.NewRunCommand())
	rootCmd.AddCommand(commands.NewCheckCommand())
	rootCmd.AddCommand(commands.NewInspectCommand())
	rootCmd.AddCommand(commands.NewHelpersCommand())
	rootCmd.AddCommand(commands.NewREPLCommand())
	rootCmd.AddCommand(commands.NewInitCommand())
	rootCmd.AddCommand(NewCompletionCommand())

	return rootCmd
}

// Execute runs the root command until it finishes or the process is interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := NewRootCmd()
	if cmd, err := rootCmd.ExecuteContextC(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s: %v\n", cmd.Name(), err)
		return err
	}
	return nil
}

// NewCompletionCommand creates the completion command.
func NewCompletionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for templar.

To load completions:

Bash:
  $ source <(templar completion bash)

  # To load completions for each session, execute once:
  # Linux:
  $ templar completion bash > /etc/bash_completion.d/templar
  # macOS:
  $ templar completion bash > $(brew --prefix)/etc/bash_completion.d/templar

Zsh:
  # If shell completion is not already enabled in your environment,
  # you will need to enable it. Execute the following once:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc

  # To load completions for each session, execute once:
  $ templar completion zsh > "${fpath[1]}/_templar"

Fish:
  $ templar completion fish | source

  # To load completions for each session, execute once:
  $ templar completion fish > ~/.config/fish/completions/templar.fish

PowerShell:
  PS> templar completion powershell | Out-String | Invoke-Expression
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(out)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			}
			return nil
		},
	}
	return cmd
}
