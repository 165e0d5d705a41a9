package commands

import (
	"fmt"

	"github.com/leapstack-labs/templar/internal/cli/output"
	"github.com/spf13/cobra"
)

// NewCheckCommand creates the check command.
func NewCheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check [template...]",
		Short: "Parse templates and report syntax errors",
		Long: `Parse templates without evaluating them and report every syntax error:
unmatched markers, malformed headers, invalid frontmatter and nesting beyond
the depth limit. With no arguments every template in the templates directory
is checked.`,
		Example: `  # Check every template
  templar check

  # Check one template and print JSON
  templar check index.md.tpl -f json`,
		RunE: runCheck,
	}
}

// checkOutput is the JSON form of one check result.
type checkOutput struct {
	Template string `json:"template"`
	OK       bool   `json:"ok"`
	Error    string `json:"error,omitempty"`
}

func runCheck(cmd *cobra.Command, args []string) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	r := cmdCtx.Renderer

	paths := args
	if len(paths) == 0 {
		paths, err = cmdCtx.Engine.Discover()
		if err != nil {
			return err
		}
	}
	if len(paths) == 0 {
		r.Warning(fmt.Sprintf("no templates found in %s", cmdCtx.Cfg.TemplatesDir))
		return nil
	}

	results := make([]checkOutput, len(paths))
	failed := 0
	for i, path := range paths {
		if err := cmd.Context().Err(); err != nil {
			return err
		}
		results[i] = checkOutput{Template: path, OK: true}
		if err := cmdCtx.Engine.Check(cmd.Context(), []string{path}); err != nil {
			results[i].OK = false
			results[i].Error = err.Error()
			failed++
		}
	}

	if r.EffectiveMode() == output.ModeJSON {
		if err := r.JSON(results); err != nil {
			return err
		}
	} else {
		for _, res := range results {
			if res.OK {
				r.StatusLine(res.Template, "success", "")
				continue
			}
			r.StatusLine(res.Template, "error", res.Error)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d template(s) failed", failed)
	}
	if r.EffectiveMode() != output.ModeJSON {
		r.Success(fmt.Sprintf("%d template(s) ok", len(paths)))
	}
	return nil
}
