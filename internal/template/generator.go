package template

import (
	"fmt"
	"path"
	"slices"
	"strings"
)

// Context is the evaluation scope a template is generated against.
// Implementations must not be shared between concurrent renders.
type Context interface {
	// EvalBool evaluates a condition expression.
	EvalBool(expr string) (bool, error)
	// EvalString evaluates an expression to a string.
	EvalString(expr string) (string, error)
	// Set binds name to value.
	Set(name, value string)
	// Unset removes the binding for name.
	Unset(name string)
}

// Scope is implemented by contexts that can report an existing binding.
// Transform uses it to restore a shadowed binding instead of removing it.
type Scope interface {
	Lookup(name string) (string, bool)
}

// Loader resolves include paths to template source.
type Loader interface {
	Load(path string) (string, error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(path string) (string, error)

// Load calls f(path).
func (f LoaderFunc) Load(path string) (string, error) { return f(path) }

// Generator renders parsed templates.
// A Generator holds no per-render state and may be shared.
type Generator struct {
	opts options
}

// NewGenerator creates a generator with the given options.
func NewGenerator(opts ...Option) *Generator {
	return &Generator{opts: newOptions(opts)}
}

// Generate renders t against ctx with a generator built from opts.
func Generate(t *Template, ctx Context, opts ...Option) (string, error) {
	return NewGenerator(opts...).Generate(t, ctx)
}

// Generate renders t against ctx. On error no output is returned.
func (g *Generator) Generate(t *Template, ctx Context) (string, error) {
	r := &render{opts: g.opts, ctx: ctx}
	if t.File != "" {
		r.includes = []string{path.Clean(t.File)}
	}
	return r.blocks(t.Blocks, 0)
}

// render carries the state of a single generation call.
type render struct {
	opts     options
	ctx      Context
	includes []string // include stack, outermost first
}

// blocks concatenates the output of each block in order.
func (r *render) blocks(blocks []Block, depth int) (string, error) {
	var sb strings.Builder
	for _, b := range blocks {
		out, err := r.block(b, depth)
		if err != nil {
			return "", err
		}
		sb.WriteString(out)
	}
	return sb.String(), nil
}

func (r *render) block(b Block, depth int) (string, error) {
	switch b := b.(type) {
	case *TextBlock:
		return b.Text, nil
	case *DirectiveBlock:
		if depth >= r.opts.maxDepth {
			return "", NewDepthLimitError(b.Pos(), r.opts.maxDepth)
		}
		return r.directive(b, depth+1)
	default:
		return "", NewUnimplementedError(b.Pos(), fmt.Sprintf("%T", b), "unknown block type")
	}
}

func (r *render) directive(d *DirectiveBlock, depth int) (string, error) {
	switch kind := d.Kind.(type) {
	case NoOp:
		return r.blocks(d.Children, depth)

	case If:
		ok, err := r.evalBool(d, kind.Condition)
		if err != nil {
			return "", err
		}
		if !ok {
			return "", nil
		}
		return r.blocks(d.Children, depth)

	case IfElse:
		ok, err := r.evalBool(d, kind.Condition)
		if err != nil {
			return "", err
		}
		if ok {
			return r.blocks(d.Children, depth)
		}
		return r.blocks(kind.Else, depth)

	case Include:
		return r.include(d, kind, depth)

	case Transform:
		return r.transform(d, kind, depth)

	default:
		name := fmt.Sprintf("%T", d.Kind)
		if d.Kind != nil {
			name = d.Kind.Name()
		}
		return "", NewUnimplementedError(d.Pos(), name, "no generation rule")
	}
}

func (r *render) evalBool(d *DirectiveBlock, expr string) (bool, error) {
	ok, err := r.ctx.EvalBool(expr)
	if err != nil {
		return false, NewEvalError(d.Pos(), expr, err)
	}
	return ok, nil
}

// include loads, parses and renders another template in the current context.
func (r *render) include(d *DirectiveBlock, inc Include, depth int) (string, error) {
	if r.opts.loader == nil {
		return "", NewUnimplementedError(d.Pos(), inc.Name(), "no template loader configured")
	}

	name := path.Clean(inc.Path)
	if slices.Contains(r.includes, name) {
		return "", NewIncludeCycleError(d.Pos(), name, r.includes)
	}

	src, err := r.opts.loader.Load(inc.Path)
	if err != nil {
		return "", WrapRenderError(d.Pos(), fmt.Sprintf("failed to load include %q", inc.Path), err)
	}

	tmpl, err := ParseString(src, inc.Path, WithMaxDepth(r.opts.maxDepth))
	if err != nil {
		return "", err
	}

	r.opts.logger.Debug("including template", "path", inc.Path, "depth", depth)

	r.includes = append(r.includes, name)
	defer func() { r.includes = r.includes[:len(r.includes)-1] }()

	return r.blocks(tmpl.Blocks, depth)
}

// transform renders the body, exposes it to the expression under the
// binding name and returns the expression result. The binding is released
// on every return path.
func (r *render) transform(d *DirectiveBlock, tr Transform, depth int) (string, error) {
	body, err := r.blocks(d.Children, depth)
	if err != nil {
		return "", err
	}

	release := r.bind(tr.Binding, body)
	defer release()

	out, err := r.ctx.EvalString(tr.Expr)
	if err != nil {
		return "", NewEvalError(d.Pos(), tr.Expr, err)
	}
	return out, nil
}

// bind sets name to value and returns a function that undoes the binding.
func (r *render) bind(name, value string) func() {
	prev, had := "", false
	if scope, ok := r.ctx.(Scope); ok {
		prev, had = scope.Lookup(name)
	}

	r.ctx.Set(name, value)

	return func() {
		if had {
			r.ctx.Set(name, prev)
			return
		}
		r.ctx.Unset(name)
	}
}
