package commands

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/leapstack-labs/templar/internal/dag"
	"github.com/leapstack-labs/templar/internal/engine"
	"github.com/leapstack-labs/templar/internal/loader"
	"github.com/leapstack-labs/templar/internal/watch"
	"github.com/spf13/cobra"
)

// RunOptions holds options for the run command.
type RunOptions struct {
	Once bool
}

// watchExtensions are the files that trigger a rebuild.
var watchExtensions = append(append([]string{}, loader.DefaultExtensions...), ".star")

// NewRunCommand creates the run command.
func NewRunCommand() *cobra.Command {
	opts := &RunOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Render the project template and rebuild on change",
		Long: `Render the configured template and keep re-rendering it while templates
or helpers change.

The output goes to the configured output path, else to the "output" field of
the template frontmatter, else to stdout. Helpers are reloaded on every
rebuild. Render failures are reported and the watch continues.`,
		Example: `  # Render and watch
  templar run

  # Render once with the prod environment
  templar run --once --env prod`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRun(cmd, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.Once, "once", false, "Render once and exit")

	return cmd
}

func runRun(cmd *cobra.Command, opts *RunOptions) error {
	cmdCtx := NewCommandContextWithoutEngine(cmd)
	cfg := cmdCtx.Cfg
	r := cmdCtx.Renderer

	if cfg.Template == "" {
		return fmt.Errorf("no template configured\nHint: set \"template\" in templar.yaml or use \"templar generate <template>\"")
	}

	ctx := cmd.Context()

	graph, err := renderProject(ctx, cmdCtx)
	if err != nil {
		if opts.Once {
			return err
		}
		r.Error(err.Error())
	}

	if opts.Once {
		return nil
	}

	w, err := watch.New(watch.Options{
		Dirs:       []string{cfg.TemplatesDir, cfg.HelpersDir},
		Extensions: watchExtensions,
		Debounce:   cfg.WatchDebounce,
		Logger:     cmdCtx.Logger,
	})
	if err != nil {
		return err
	}
	defer func() { _ = w.Close() }()

	r.Muted(fmt.Sprintf("Watching %s for changes (Ctrl+C to stop)", cfg.TemplatesDir))

	return w.Run(ctx, func(paths []string) {
		if graph != nil && !affectsTemplate(graph, cfg.TemplatesDir, cfg.Template, paths) {
			cmdCtx.Logger.Debug("change does not affect template", "changed", paths)
			return
		}

		cmdCtx.Logger.Info("rebuilding", "changed", len(paths))
		graph, err = renderProject(ctx, cmdCtx)
		if err != nil {
			r.Error(err.Error())
		}
	})
}

// affectsTemplate reports whether changes to paths can alter the output of tmpl.
// Files outside the templates directory, such as helpers, always do.
func affectsTemplate(graph *dag.Graph, templatesDir, tmpl string, paths []string) bool {
	var changed []string
	for _, p := range paths {
		rel, err := filepath.Rel(templatesDir, p)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return true
		}
		changed = append(changed, filepath.ToSlash(rel))
	}
	return slices.Contains(graph.Affected(changed), path.Clean(tmpl))
}

// renderProject builds a fresh engine, so helper edits take effect, and renders
// the configured template to its destination. It returns the template's include
// graph, or nil when it is unknown.
func renderProject(ctx context.Context, cmdCtx *CommandContext) (*dag.Graph, error) {
	eng, err := createEngine(cmdCtx.Cfg, cmdCtx.Logger)
	if err != nil {
		return nil, err
	}

	res, err := eng.Render(ctx, cmdCtx.Cfg.Template)
	if err != nil {
		return nil, err
	}

	if dest := outputPath(cmdCtx, res); dest == "" {
		err = printResults(cmdCtx.Renderer, []*engine.Result{res})
	} else {
		err = writeResults(cmdCtx.Renderer, []*engine.Result{res}, dest)
	}
	if err != nil {
		return nil, err
	}

	// A graph with errors still lists every template reached
	graph, _ := eng.IncludeGraph(ctx, []string{cmdCtx.Cfg.Template})
	return graph, nil
}

// outputPath picks the configured output, then the frontmatter output
// resolved against the project root. Empty means stdout.
func outputPath(cmdCtx *CommandContext, res *engine.Result) string {
	if cmdCtx.Cfg.Output != "" {
		return cmdCtx.Cfg.Output
	}
	if res.OutputPath == "" {
		return ""
	}
	if filepath.IsAbs(res.OutputPath) || cmdCtx.Cfg.ProjectRoot == "" {
		return res.OutputPath
	}
	return filepath.Join(cmdCtx.Cfg.ProjectRoot, res.OutputPath)
}
