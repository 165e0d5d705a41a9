package commands

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/leapstack-labs/templar/internal/cli/output"
	"github.com/leapstack-labs/templar/internal/helpers"
	"github.com/spf13/cobra"
)

// NewHelpersCommand creates the helpers command.
func NewHelpersCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "helpers",
		Short: "List helper functions",
		Long: `List the functions defined by the Starlark files in the helpers directory.

Each file is a namespace named after the file: helpers/text.star defines
text.<function>. Files are inspected without being executed; names that
start with an underscore are private and not listed.`,
		Args: cobra.NoArgs,
		RunE: runHelpers,
	}
}

func runHelpers(cmd *cobra.Command, _ []string) error {
	cmdCtx := NewCommandContextWithoutEngine(cmd)
	r := cmdCtx.Renderer

	namespaces, err := helpers.ParseDir(cmdCtx.Cfg.HelpersDir)
	if err != nil {
		return err
	}

	if r.EffectiveMode() == output.ModeJSON {
		if namespaces == nil {
			namespaces = []*helpers.ParsedNamespace{}
		}
		return r.JSON(namespaces)
	}

	if len(namespaces) == 0 {
		r.Muted(fmt.Sprintf("No helpers found in %s", cmdCtx.Cfg.HelpersDir))
		return nil
	}

	t := r.Table()
	t.AppendHeader(table.Row{"Namespace", "Function", "Signature", "Doc"})
	count := 0
	for _, ns := range namespaces {
		for _, fn := range ns.Functions {
			t.AppendRow(table.Row{ns.Name, fn.Name, ns.Name + "." + fn.Signature(), fn.Summary()})
			count++
		}
		for _, v := range ns.Values {
			t.AppendRow(table.Row{ns.Name, v, ns.Name + "." + v, "(value)"})
		}
	}
	r.RenderTable(t)
	r.Muted(fmt.Sprintf("%d function(s) in %d namespace(s)", count, len(namespaces)))
	return nil
}
