package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/leapstack-labs/templar/internal/cli/output"
	"github.com/leapstack-labs/templar/internal/engine"
	"github.com/spf13/cobra"
)

// GenerateOptions holds options for the generate command.
type GenerateOptions struct {
	Out string
	All bool
}

// NewGenerateCommand creates the generate command.
func NewGenerateCommand() *cobra.Command {
	opts := &GenerateOptions{}

	cmd := &cobra.Command{
		Use:   "generate [template...]",
		Short: "Render templates once",
		Long: `Render one or more templates and write the result.

Template paths are relative to the templates directory. With no arguments the
configured template is rendered; --all renders every template found.

Output goes to stdout unless --out is given. With a single template --out
names the output file; with several it names a directory, and each result is
written under the template's path with its last extension removed.`,
		Example: `  # Render the configured template
  templar generate

  # Render a template to a file
  templar generate pages/index.md.tpl --out dist/index.md

  # Render every template into dist/
  templar generate --all --out dist

  # Render with an extra variable
  templar generate index.tpl --var title=Draft`,
		Aliases: []string{"gen"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Out, "out", "o", "", "Output file (one template) or directory (several)")
	cmd.Flags().BoolVar(&opts.All, "all", false, "Render every template in the templates directory")

	return cmd
}

func runGenerate(cmd *cobra.Command, args []string, opts *GenerateOptions) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}

	paths, err := selectTemplates(cmdCtx, args, opts.All)
	if err != nil {
		return err
	}

	results, err := cmdCtx.Engine.RenderAll(cmd.Context(), paths, cmdCtx.Cfg.Concurrency)
	if err != nil {
		return err
	}

	if opts.Out != "" {
		return writeResults(cmdCtx.Renderer, results, opts.Out)
	}
	return printResults(cmdCtx.Renderer, results)
}

// selectTemplates returns the templates named by args, all templates, or the configured one.
func selectTemplates(cmdCtx *CommandContext, args []string, all bool) ([]string, error) {
	switch {
	case all:
		paths, err := cmdCtx.Engine.Discover()
		if err != nil {
			return nil, err
		}
		if len(paths) == 0 {
			return nil, fmt.Errorf("no templates found in %s", cmdCtx.Cfg.TemplatesDir)
		}
		return paths, nil
	case len(args) > 0:
		return args, nil
	case cmdCtx.Cfg.Template != "":
		return []string{cmdCtx.Cfg.Template}, nil
	default:
		return nil, fmt.Errorf("no template given\nHint: pass a template path or set \"template\" in templar.yaml")
	}
}

// resultOutput is the JSON form of a render result.
type resultOutput struct {
	Template   string `json:"template"`
	RenderID   string `json:"render_id"`
	Output     string `json:"output"`
	File       string `json:"file,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

func toResultOutput(res *engine.Result, file string) resultOutput {
	return resultOutput{
		Template:   res.Path,
		RenderID:   res.ID,
		Output:     res.Output,
		File:       file,
		DurationMS: res.Duration.Milliseconds(),
	}
}

func printResults(r *output.Renderer, results []*engine.Result) error {
	switch r.EffectiveMode() {
	case output.ModeJSON:
		out := make([]resultOutput, len(results))
		for i, res := range results {
			out[i] = toResultOutput(res, "")
		}
		return r.JSON(out)
	case output.ModeMarkdown:
		if len(results) == 1 {
			r.Println(results[0].Output)
			return nil
		}
		for _, res := range results {
			r.Header(2, res.Path)
			r.Println(res.Output)
			r.Println("")
		}
	default:
		for _, res := range results {
			r.Println(res.Output)
		}
	}
	return nil
}

func writeResults(r *output.Renderer, results []*engine.Result, out string) error {
	files := make([]string, len(results))
	if len(results) == 1 {
		files[0] = out
	} else {
		for i, res := range results {
			files[i] = filepath.Join(out, filepath.FromSlash(outputName(res.Path)))
		}
	}

	for i, res := range results {
		if err := writeOutput(files[i], res.Output); err != nil {
			return err
		}
	}

	if r.EffectiveMode() == output.ModeJSON {
		out := make([]resultOutput, len(results))
		for i, res := range results {
			out[i] = toResultOutput(res, files[i])
		}
		return r.JSON(out)
	}

	for i, res := range results {
		r.StatusLine(files[i], "success", fmt.Sprintf("%s, %d bytes", res.Path, len(res.Output)))
	}
	return nil
}

// outputName strips the last extension: "pages/index.md.tpl" -> "pages/index.md".
func outputName(path string) string {
	ext := filepath.Ext(path)
	if ext == "" || ext == path {
		return path
	}
	return strings.TrimSuffix(path, ext)
}

// writeOutput writes content to path, creating parent directories.
func writeOutput(path, content string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
