package helpers

import (
	"fmt"
	"log/slog"
	"sort"

	"go.starlark.net/starlark"
)

// ReservedNamespaces are global names owned by the evaluation context.
var ReservedNamespaces = []string{"env", "template"}

// Registry holds loaded helper modules keyed by namespace.
type Registry struct {
	modules map[string]*LoadedModule
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{modules: make(map[string]*LoadedModule)}
}

// RegistryError reports a namespace that cannot be registered.
type RegistryError struct {
	Namespace string
	Path      string
	Message   string
}

func (e *RegistryError) Error() string {
	return fmt.Sprintf("helper namespace %q (%s): %s", e.Namespace, e.Path, e.Message)
}

// Register adds a module. Reserved and duplicate namespaces are rejected.
func (r *Registry) Register(m *LoadedModule) error {
	for _, reserved := range ReservedNamespaces {
		if m.Namespace == reserved {
			return &RegistryError{Namespace: m.Namespace, Path: m.Path, Message: "namespace is reserved"}
		}
	}

	if existing, ok := r.modules[m.Namespace]; ok {
		return &RegistryError{
			Namespace: m.Namespace,
			Path:      m.Path,
			Message:   fmt.Sprintf("already defined in %s", existing.Path),
		}
	}

	r.modules[m.Namespace] = m
	return nil
}

// RegisterAll registers modules in order, stopping at the first error.
func (r *Registry) RegisterAll(modules []*LoadedModule) error {
	for _, m := range modules {
		if err := r.Register(m); err != nil {
			return err
		}
	}
	return nil
}

// Has reports whether namespace is registered.
func (r *Registry) Has(namespace string) bool {
	_, ok := r.modules[namespace]
	return ok
}

// Get returns the module for namespace, or nil.
func (r *Registry) Get(namespace string) *LoadedModule {
	return r.modules[namespace]
}

// Len returns the number of registered modules.
func (r *Registry) Len() int {
	return len(r.modules)
}

// Namespaces returns the registered namespaces in sorted order.
func (r *Registry) Namespaces() []string {
	names := make([]string, 0, len(r.modules))
	for name := range r.modules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ToStarlarkDict exposes every module as a Starlark value with attribute access.
func (r *Registry) ToStarlarkDict() starlark.StringDict {
	dict := make(starlark.StringDict, len(r.modules))
	for name, m := range r.modules {
		dict[name] = &starlarkModule{name: name, exports: m.Exports}
	}
	return dict
}

// LoadAndRegister loads every helper in dir into a new registry.
func LoadAndRegister(dir string, logger *slog.Logger) (*Registry, error) {
	modules, err := NewLoader(dir, logger).Load()
	if err != nil {
		return nil, err
	}

	registry := NewRegistry()
	if err := registry.RegisterAll(modules); err != nil {
		return nil, err
	}
	return registry, nil
}

// starlarkModule is a namespace of helper exports (e.g. text.slug).
type starlarkModule struct {
	name    string
	exports starlark.StringDict
}

var _ starlark.HasAttrs = (*starlarkModule)(nil)

func (m *starlarkModule) String() string        { return fmt.Sprintf("<module %s>", m.name) }
func (m *starlarkModule) Type() string          { return "module" }
func (m *starlarkModule) Freeze()               { m.exports.Freeze() }
func (m *starlarkModule) Truth() starlark.Bool  { return starlark.True }
func (m *starlarkModule) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: module") }

func (m *starlarkModule) Attr(name string) (starlark.Value, error) {
	if v, ok := m.exports[name]; ok {
		return v, nil
	}
	return nil, starlark.NoSuchAttrError(fmt.Sprintf("module %s has no attribute %q", m.name, name))
}

func (m *starlarkModule) AttrNames() []string {
	return m.exports.Keys()
}
