package starlark

import (
	"fmt"
	"log/slog"
	"maps"
	"sort"
	"sync"

	"github.com/leapstack-labs/templar/internal/helpers"
	"github.com/leapstack-labs/templar/internal/template"
	"go.starlark.net/starlark"
)

// ExecutionContext is the evaluation scope for one template render.
// It implements template.Context: expressions see the configured variables,
// the "template" global, helper namespaces, and any bindings made with Set.
// An ExecutionContext must not be shared between concurrent renders.
type ExecutionContext struct {
	// Vars are the initial variables from configuration and frontmatter.
	// Each is accessible by its own name.
	Vars starlark.StringDict

	// Env is the active environment name (e.g., "dev", "prod").
	// Accessible as: env
	Env string

	// Template describes the template being rendered.
	// Accessible as: template.name, template.path
	Template *TemplateInfo

	// Helpers contains loaded helper namespaces.
	// Each key is a namespace (e.g., "text") with the module's exports as attributes.
	Helpers starlark.StringDict

	// MaxSteps bounds the Starlark computation steps of a single evaluation.
	// Zero means no limit.
	MaxSteps uint64

	logger *slog.Logger

	// globals is the combined set of predeclared names
	globals starlark.StringDict

	// bindings are string values set during generation; they shadow globals
	bindings map[string]string

	// mu protects globals during initialization
	mu sync.RWMutex
}

var (
	_ template.Context = (*ExecutionContext)(nil)
	_ template.Scope   = (*ExecutionContext)(nil)
)

// ContextOption is a functional option for configuring ExecutionContext.
type ContextOption func(*ExecutionContext)

// WithHelpers sets the helper namespaces for the context.
func WithHelpers(helpers starlark.StringDict) ContextOption {
	return func(ctx *ExecutionContext) {
		ctx.Helpers = helpers
	}
}

// WithHelperRegistry sets helpers from a helpers.Registry.
// This is the preferred way to inject helpers loaded from .star files.
func WithHelperRegistry(registry *helpers.Registry) ContextOption {
	return func(ctx *ExecutionContext) {
		if registry != nil {
			ctx.Helpers = registry.ToStarlarkDict()
		}
	}
}

// WithEnv sets the environment name exposed as the "env" global.
func WithEnv(env string) ContextOption {
	return func(ctx *ExecutionContext) {
		ctx.Env = env
	}
}

// WithTemplate sets the template information exposed as the "template" global.
func WithTemplate(info *TemplateInfo) ContextOption {
	return func(ctx *ExecutionContext) {
		ctx.Template = info
	}
}

// WithMaxSteps limits the computation steps of each evaluation.
func WithMaxSteps(steps uint64) ContextOption {
	return func(ctx *ExecutionContext) {
		ctx.MaxSteps = steps
	}
}

// WithLogger sets the logger receiving Starlark print output.
func WithLogger(logger *slog.Logger) ContextOption {
	return func(ctx *ExecutionContext) {
		if logger != nil {
			ctx.logger = logger
		}
	}
}

// NewContext creates a new execution context with the given variables.
func NewContext(vars starlark.StringDict, opts ...ContextOption) *ExecutionContext {
	ctx := &ExecutionContext{
		Vars:     vars,
		Helpers:  make(starlark.StringDict),
		logger:   slog.New(slog.DiscardHandler),
		bindings: make(map[string]string),
	}

	for _, opt := range opts {
		opt(ctx)
	}

	ctx.buildGlobals()
	return ctx
}

// buildGlobals constructs the combined globals dict.
func (ctx *ExecutionContext) buildGlobals() {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()

	ctx.globals = Predeclared(ctx.Vars, ctx.Env, ctx.Template)

	// Helpers shadow variables of the same name
	for name, helper := range ctx.Helpers {
		ctx.globals[name] = helper
	}
}

// Globals returns the combined predeclared names, excluding bindings.
func (ctx *ExecutionContext) Globals() starlark.StringDict {
	ctx.mu.RLock()
	defer ctx.mu.RUnlock()
	return ctx.globals
}

// AddHelpers adds helper namespaces to the context.
// Returns error if a helper name conflicts with a builtin.
func (ctx *ExecutionContext) AddHelpers(h starlark.StringDict) error {
	for name := range h {
		for _, reserved := range helpers.ReservedNamespaces {
			if name == reserved {
				return fmt.Errorf("helper namespace %q conflicts with builtin", name)
			}
		}
	}

	ctx.mu.Lock()
	if ctx.Helpers == nil {
		ctx.Helpers = make(starlark.StringDict)
	}
	for name, helper := range h {
		ctx.Helpers[name] = helper
	}
	ctx.mu.Unlock()

	ctx.buildGlobals()
	return nil
}

// Set binds name to a string value, shadowing any global of the same name.
func (ctx *ExecutionContext) Set(name, value string) {
	ctx.bindings[name] = value
}

// Unset removes the binding for name. Globals of the same name become visible again.
func (ctx *ExecutionContext) Unset(name string) {
	delete(ctx.bindings, name)
}

// Lookup returns the binding for name. Globals are not reported.
func (ctx *ExecutionContext) Lookup(name string) (string, bool) {
	v, ok := ctx.bindings[name]
	return v, ok
}

// Bindings returns the current bindings sorted by name.
func (ctx *ExecutionContext) Bindings() []Binding {
	out := make([]Binding, 0, len(ctx.bindings))
	for name, value := range ctx.bindings {
		out = append(out, Binding{Name: name, Value: value})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Binding is a name bound with Set.
type Binding struct {
	Name  string
	Value string
}

// EvalExpr evaluates a single Starlark expression and returns the result.
func (ctx *ExecutionContext) EvalExpr(expr string) (starlark.Value, error) {
	thread := ctx.newThread()

	// Combine globals with bindings (bindings take precedence)
	env := ctx.Globals()
	if len(ctx.bindings) > 0 {
		combined := make(starlark.StringDict, len(env)+len(ctx.bindings))
		maps.Copy(combined, env)
		for k, v := range ctx.bindings {
			combined[k] = starlark.String(v)
		}
		env = combined
	}

	result, err := starlark.Eval(thread, ctx.filename(), expr, env) //nolint:staticcheck // SA1019: will migrate to EvalOptions later
	if err != nil {
		return nil, &EvalError{
			File:    ctx.filename(),
			Expr:    expr,
			Message: err.Error(),
			Cause:   err,
		}
	}

	return result, nil
}

// EvalBool evaluates a condition. The result must be a Starlark bool;
// truthy values of other types are rejected.
func (ctx *ExecutionContext) EvalBool(expr string) (bool, error) {
	result, err := ctx.EvalExpr(expr)
	if err != nil {
		return false, err
	}

	b, ok := result.(starlark.Bool)
	if !ok {
		return false, &EvalError{
			File:    ctx.filename(),
			Expr:    expr,
			Message: fmt.Sprintf("condition must evaluate to bool, got %s", result.Type()),
		}
	}
	return bool(b), nil
}

// EvalString evaluates an expression to a string. Strings are returned
// unquoted, numbers in their Starlark form and None as the empty string.
// Other types are rejected.
func (ctx *ExecutionContext) EvalString(expr string) (string, error) {
	result, err := ctx.EvalExpr(expr)
	if err != nil {
		return "", err
	}

	switch v := result.(type) {
	case starlark.String:
		return string(v), nil
	case starlark.NoneType:
		return "", nil
	case starlark.Int, starlark.Float:
		return v.String(), nil
	default:
		return "", &EvalError{
			File:    ctx.filename(),
			Expr:    expr,
			Message: fmt.Sprintf("expression must evaluate to string, got %s", result.Type()),
		}
	}
}

// newThread creates a new Starlark thread for one evaluation.
func (ctx *ExecutionContext) newThread() *starlark.Thread {
	thread := &starlark.Thread{
		Name: ctx.filename(),
		Print: func(thread *starlark.Thread, msg string) {
			ctx.logger.Debug("starlark print", "thread", thread.Name, "msg", msg)
		},
	}
	if ctx.MaxSteps > 0 {
		thread.SetMaxExecutionSteps(ctx.MaxSteps)
	}
	return thread
}

func (ctx *ExecutionContext) filename() string {
	if ctx.Template != nil && ctx.Template.Path != "" {
		return ctx.Template.Path
	}
	return "<template>"
}

// EvalError represents an error during Starlark expression evaluation.
type EvalError struct {
	File    string
	Expr    string
	Message string
	Cause   error
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("%s: error evaluating %q: %s", e.File, e.Expr, e.Message)
}

func (e *EvalError) Unwrap() error {
	return e.Cause
}
