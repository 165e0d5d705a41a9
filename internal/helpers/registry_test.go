package helpers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.starlark.net/starlark"
)

func TestRegistry_Register(t *testing.T) {
	registry := NewRegistry()

	module := &LoadedModule{
		Namespace: "text",
		Path:      "/path/to/text.star",
		Exports: starlark.StringDict{
			"slug": starlark.String("func"),
		},
	}

	require.NoError(t, registry.Register(module))

	assert.True(t, registry.Has("text"), "expected registry to have 'text'")
	assert.Equal(t, 1, registry.Len())
	assert.Same(t, module, registry.Get("text"))
	assert.Nil(t, registry.Get("nonexistent"))
}

func TestRegistry_ReservedNamespace(t *testing.T) {
	for _, reserved := range ReservedNamespaces {
		t.Run(reserved, func(t *testing.T) {
			registry := NewRegistry()
			err := registry.Register(&LoadedModule{Namespace: reserved, Path: "/" + reserved + ".star"})
			require.Error(t, err)

			var regErr *RegistryError
			require.ErrorAs(t, err, &regErr)
			assert.Equal(t, reserved, regErr.Namespace)
		})
	}
}

func TestRegistry_DuplicateNamespace(t *testing.T) {
	registry := NewRegistry()

	require.NoError(t, registry.Register(&LoadedModule{Namespace: "utils", Path: "/path/to/utils.star"}))

	err := registry.Register(&LoadedModule{Namespace: "utils", Path: "/other/path/utils.star"})
	require.Error(t, err)

	var regErr *RegistryError
	require.ErrorAs(t, err, &regErr)
	assert.Equal(t, "utils", regErr.Namespace)
	assert.Contains(t, err.Error(), "/path/to/utils.star")
}

func TestRegistry_RegisterAll_StopsOnError(t *testing.T) {
	registry := NewRegistry()

	modules := []*LoadedModule{
		{Namespace: "dates", Path: "/dates.star"},
		{Namespace: "template", Path: "/template.star"}, // reserved
		{Namespace: "utils", Path: "/utils.star"},
	}

	require.Error(t, registry.RegisterAll(modules))
	assert.Equal(t, 1, registry.Len(), "only modules before the error are registered")
}

func TestRegistry_Namespaces(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.RegisterAll([]*LoadedModule{
		{Namespace: "zeta", Path: "/zeta.star"},
		{Namespace: "alpha", Path: "/alpha.star"},
		{Namespace: "beta", Path: "/beta.star"},
	}))

	assert.Equal(t, []string{"alpha", "beta", "zeta"}, registry.Namespaces())
}

func TestRegistry_ToStarlarkDict(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.Register(&LoadedModule{
		Namespace: "utils",
		Path:      "/utils.star",
		Exports: starlark.StringDict{
			"greet": starlark.String("hello_func"),
			"add":   starlark.String("add_func"),
		},
	}))

	dict := registry.ToStarlarkDict()
	require.Len(t, dict, 1)

	mod, ok := dict["utils"].(starlark.HasAttrs)
	require.True(t, ok, "expected HasAttrs, got %T", dict["utils"])

	greet, err := mod.Attr("greet")
	require.NoError(t, err)
	assert.Equal(t, `"hello_func"`, greet.String())
	assert.Equal(t, []string{"add", "greet"}, mod.AttrNames())

	_, err = mod.Attr("nonexistent")
	assert.Error(t, err)
}

func TestStarlarkModule_Interface(t *testing.T) {
	mod := &starlarkModule{name: "test", exports: starlark.StringDict{}}

	assert.Equal(t, "<module test>", mod.String())
	assert.Equal(t, "module", mod.Type())
	assert.Equal(t, starlark.True, mod.Truth())

	_, err := mod.Hash()
	assert.Error(t, err)
}

func TestLoadAndRegister(t *testing.T) {
	registry, err := LoadAndRegister("/nonexistent/path", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, registry.Len(), "expected empty registry")

	dir := writeHelpers(t, map[string]string{"template.star": "x = 1\n"})
	_, err = LoadAndRegister(dir, nil)
	assert.Error(t, err, "reserved namespace from disk is rejected")
}
