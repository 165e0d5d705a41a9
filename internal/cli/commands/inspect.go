package commands

import (
	"fmt"
	"path"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/leapstack-labs/templar/internal/cli/output"
	"github.com/leapstack-labs/templar/internal/template"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// InspectOptions holds options for the inspect command.
type InspectOptions struct {
	As string
}

// inspectFormats are the values accepted by --as.
var inspectFormats = []string{"table", "yaml", "json"}

// NewInspectCommand creates the inspect command.
func NewInspectCommand() *cobra.Command {
	opts := &InspectOptions{}

	cmd := &cobra.Command{
		Use:   "inspect <template>",
		Short: "Show the parsed block tree of a template",
		Long: `Parse a template and print its block tree.

The table view lists every block with its nesting depth and source line.
The yaml and json views print the tree itself.`,
		Example: `  # Show the blocks as a table
  templar inspect index.md.tpl

  # Dump the tree as YAML
  templar inspect index.md.tpl --as yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.As, "as", "table", "View: table, yaml or json")
	_ = cmd.RegisterFlagCompletionFunc("as", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return inspectFormats, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

// blockView is the serialized form of a block.
type blockView struct {
	Kind     string       `yaml:"kind" json:"kind"`
	Line     int          `yaml:"line" json:"line"`
	Column   int          `yaml:"column" json:"column"`
	Text     string       `yaml:"text,omitempty" json:"text,omitempty"`
	Header   string       `yaml:"header,omitempty" json:"header,omitempty"`
	Cond     string       `yaml:"condition,omitempty" json:"condition,omitempty"`
	Path     string       `yaml:"path,omitempty" json:"path,omitempty"`
	Binding  string       `yaml:"binding,omitempty" json:"binding,omitempty"`
	Expr     string       `yaml:"expr,omitempty" json:"expr,omitempty"`
	Children []*blockView `yaml:"children,omitempty" json:"children,omitempty"`
	Else     []*blockView `yaml:"else,omitempty" json:"else,omitempty"`
}

// templateView is the serialized form of a template.
type templateView struct {
	Template string       `yaml:"template" json:"template"`
	Includes []string     `yaml:"includes,omitempty" json:"includes,omitempty"`
	Upstream []string     `yaml:"upstream,omitempty" json:"upstream,omitempty"` // transitive includes
	Blocks   []*blockView `yaml:"blocks" json:"blocks"`
}

func newBlockViews(blocks []template.Block) []*blockView {
	views := make([]*blockView, 0, len(blocks))
	for _, b := range blocks {
		views = append(views, newBlockView(b))
	}
	return views
}

func newBlockView(b template.Block) *blockView {
	pos := b.Pos()
	v := &blockView{Line: pos.Line, Column: pos.Column}

	switch b := b.(type) {
	case *template.TextBlock:
		v.Kind = "text"
		v.Text = b.Text
	case *template.DirectiveBlock:
		v.Kind = b.Kind.Name()
		switch k := b.Kind.(type) {
		case template.NoOp:
			v.Header = k.Header
		case template.If:
			v.Cond = k.Condition
		case template.IfElse:
			v.Cond = k.Condition
			v.Else = newBlockViews(k.Else)
		case template.Include:
			v.Path = k.Path
		case template.Transform:
			v.Binding = k.Binding
			v.Expr = k.Expr
		}
		v.Children = newBlockViews(b.Children)
	}
	return v
}

func runInspect(cmd *cobra.Command, name string, opts *InspectOptions) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	r := cmdCtx.Renderer

	tmpl, _, err := cmdCtx.Engine.Parse(name)
	if err != nil {
		return err
	}

	view := opts.As
	if r.EffectiveMode() == output.ModeJSON && !cmd.Flags().Changed("as") {
		view = "json"
	}

	tv := templateView{
		Template: name,
		Includes: tmpl.Includes(),
		Blocks:   newBlockViews(tmpl.Blocks),
	}
	if graph, err := cmdCtx.Engine.IncludeGraph(cmd.Context(), []string{name}); err == nil {
		tv.Upstream = graph.Upstream(path.Clean(name))
	}

	switch view {
	case "json":
		return r.JSON(tv)
	case "yaml":
		enc := yaml.NewEncoder(r.Writer())
		enc.SetIndent(2)
		if err := enc.Encode(tv); err != nil {
			return fmt.Errorf("failed to encode yaml: %w", err)
		}
		return enc.Close()
	case "table":
		renderBlockTable(r, tmpl)
		if len(tv.Upstream) > 0 {
			r.Muted("Includes: " + strings.Join(tv.Upstream, ", "))
		}
		return nil
	default:
		return fmt.Errorf("invalid --as %q, must be one of: %s", opts.As, strings.Join(inspectFormats, ", "))
	}
}

func renderBlockTable(r *output.Renderer, tmpl *template.Template) {
	t := r.Table()
	t.AppendHeader(table.Row{"Depth", "Line", "Kind", "Detail"})

	template.Walk(tmpl.Blocks, func(b template.Block, depth int) bool {
		kind, detail := describeBlock(b)
		t.AppendRow(table.Row{depth, b.Pos().Line, strings.Repeat("  ", depth) + kind, detail})
		return true
	})

	r.RenderTable(t)
}

// describeBlock returns a block's kind and a one-line summary.
func describeBlock(b template.Block) (kind, detail string) {
	switch b := b.(type) {
	case *template.TextBlock:
		return "text", truncate(b.Text, 40)
	case *template.DirectiveBlock:
		switch k := b.Kind.(type) {
		case template.NoOp:
			return k.Name(), k.Header
		case template.If:
			return k.Name(), k.Condition
		case template.IfElse:
			return k.Name(), fmt.Sprintf("%s (else: %d)", k.Condition, len(k.Else))
		case template.Include:
			return k.Name(), k.Path
		case template.Transform:
			return k.Name(), fmt.Sprintf("%s -> %s", k.Binding, k.Expr)
		}
	}
	return "unknown", ""
}

// truncate shortens s to n runes on a single line.
func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", `\n`)
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-3]) + "..."
}
