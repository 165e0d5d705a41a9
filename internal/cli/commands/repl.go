package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/chzyer/readline"
	"github.com/leapstack-labs/templar/internal/engine"
	starctx "github.com/leapstack-labs/templar/internal/starlark"
	"github.com/leapstack-labs/templar/internal/template"
	"github.com/spf13/cobra"
)

const replPrompt = "templar> "

// NewREPLCommand creates the repl command.
func NewREPLCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Evaluate expressions and template snippets interactively",
		Long: `Start an interactive session with the same evaluation context templates see:
configured variables, env, helpers and any bindings made with .set.

Input lines are evaluated as Starlark expressions. Dot-commands manage
bindings and render inline template text; type .help for the list.`,
		Args: cobra.NoArgs,
		RunE: runREPL,
	}
}

func runREPL(cmd *cobra.Command, _ []string) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}

	session, err := newREPLSession(cmdCtx.Engine, cmd.OutOrStdout(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	historyFile := ""
	if cmdCtx.Cfg.ProjectRoot != "" {
		dir := filepath.Join(cmdCtx.Cfg.ProjectRoot, ".templar")
		if err := os.MkdirAll(dir, 0750); err == nil {
			historyFile = filepath.Join(dir, "repl_history")
		}
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          replPrompt,
		HistoryFile:     historyFile,
		AutoComplete:    session.completer(),
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
		Stdout:          cmd.OutOrStdout(),
		Stderr:          cmd.ErrOrStderr(),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize REPL: %w", err)
	}
	defer func() { _ = rl.Close() }()

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "templar REPL (env: %s)\n", cmdCtx.Engine.Environment())
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Type .help for commands, .quit to exit")
	_, _ = fmt.Fprintln(cmd.OutOrStdout())

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}

		if quit := session.handle(line); quit {
			break
		}
	}

	return nil
}

// replSession evaluates REPL input against a single evaluation context.
type replSession struct {
	engine *engine.Engine
	ctx    *starctx.ExecutionContext
	out    io.Writer
	errOut io.Writer
}

func newREPLSession(eng *engine.Engine, out, errOut io.Writer) (*replSession, error) {
	ctx, err := eng.NewContext(&starctx.TemplateInfo{Name: "repl", Path: "<repl>"}, nil)
	if err != nil {
		return nil, err
	}
	return &replSession{engine: eng, ctx: ctx, out: out, errOut: errOut}, nil
}

// handle processes one input line and reports whether the session should end.
func (s *replSession) handle(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}

	if !strings.HasPrefix(line, ".") {
		s.eval(line)
		return false
	}

	command, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch strings.ToLower(command) {
	case ".quit", ".exit":
		return true

	case ".help":
		printREPLHelp(s.out)

	case ".set":
		name, value, ok := strings.Cut(rest, " ")
		if !ok || name == "" {
			s.errorf("Usage: .set <name> <value>")
			return false
		}
		s.ctx.Set(name, value)

	case ".unset":
		if rest == "" {
			s.errorf("Usage: .unset <name>")
			return false
		}
		s.ctx.Unset(rest)

	case ".vars":
		s.printVars()

	case ".render":
		s.render(rest)

	default:
		s.errorf("Unknown command: %s (type .help for commands)", command)
	}
	return false
}

func (s *replSession) eval(expr string) {
	v, err := s.ctx.EvalExpr(expr)
	if err != nil {
		s.errorf("Error: %v", err)
		return
	}
	_, _ = fmt.Fprintln(s.out, v.String())
}

// render parses text as a template and generates it in the session context.
// A literal \n in text stands for a newline, so directive headers can be typed on one line.
func (s *replSession) render(text string) {
	text = strings.ReplaceAll(text, `\n`, "\n")

	tmpl, err := template.ParseString(text, "<repl>", s.engine.ParseOptions()...)
	if err != nil {
		s.errorf("Error: %v", err)
		return
	}

	out, err := s.engine.Generator().Generate(tmpl, s.ctx)
	if err != nil {
		s.errorf("Error: %v", err)
		return
	}
	_, _ = fmt.Fprintln(s.out, out)
}

func (s *replSession) printVars() {
	globals := s.ctx.Globals()
	names := make([]string, 0, len(globals))
	for name := range globals {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		_, _ = fmt.Fprintf(s.out, "%s = %s\n", name, globals[name].String())
	}
	for _, b := range s.ctx.Bindings() {
		_, _ = fmt.Fprintf(s.out, "%s := %q\n", b.Name, b.Value)
	}
}

func (s *replSession) errorf(format string, args ...any) {
	_, _ = fmt.Fprintf(s.errOut, format+"\n", args...)
}

// completer offers dot-commands and the names visible to expressions.
func (s *replSession) completer() *readline.PrefixCompleter {
	items := []readline.PrefixCompleterInterface{
		readline.PcItem(".help"),
		readline.PcItem(".set"),
		readline.PcItem(".unset"),
		readline.PcItem(".vars"),
		readline.PcItem(".render"),
		readline.PcItem(".quit"),
		readline.PcItem(".exit"),
	}

	names := make([]string, 0, len(s.ctx.Globals()))
	for name := range s.ctx.Globals() {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		items = append(items, readline.PcItem(name))
	}

	return readline.NewPrefixCompleter(items...)
}

func printREPLHelp(w io.Writer) {
	help := `
Commands:
  .help                 Show this help message
  .set <name> <value>   Bind name to a string value
  .unset <name>         Remove a binding
  .vars                 List variables, helpers and bindings
  .render <text>        Render template text (\n starts a new line)
  .quit / .exit         Exit the REPL

Any other input is evaluated as a Starlark expression.
`
	_, _ = fmt.Fprintln(w, help)
}
