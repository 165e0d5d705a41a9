package starlark

import (
	"fmt"
	"sort"

	"go.starlark.net/starlark"
)

// VarsToStarlark converts configured variables to Starlark values.
// Every key must be a valid Starlark identifier to be reachable by name,
// but no such check is made here; unreachable keys are simply unused.
func VarsToStarlark(vars map[string]any) (starlark.StringDict, error) {
	out := make(starlark.StringDict, len(vars))

	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		v, err := GoToStarlark(vars[k])
		if err != nil {
			return nil, fmt.Errorf("variable %q: %w", k, err)
		}
		out[k] = v
	}
	return out, nil
}

// EnvToStarlark converts the environment name to a Starlark value.
// The environment is accessible as the "env" global.
func EnvToStarlark(env string) starlark.Value {
	return starlark.String(env)
}

// Predeclared returns the predeclared globals for expression evaluation:
// the variables, "env" and "template". Helpers are added separately.
// Variables named "env" or "template" are shadowed by the builtins.
func Predeclared(vars starlark.StringDict, env string, tmpl *TemplateInfo) starlark.StringDict {
	globals := make(starlark.StringDict, len(vars)+2)
	for name, v := range vars {
		globals[name] = v
	}

	globals["env"] = EnvToStarlark(env)

	if tmpl != nil {
		globals["template"] = tmpl.ToStarlark()
	} else {
		globals["template"] = starlark.None
	}

	return globals
}
