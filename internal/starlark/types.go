// Package starlark provides the Starlark evaluation context templates are generated against.
package starlark

import (
	"fmt"
	"path/filepath"
	"strings"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// TemplateInfo describes the template being rendered.
// Exposed as the "template" global in Starlark expressions.
type TemplateInfo struct {
	Name string // File name without extension
	Path string // Path as given to the renderer
}

// NewTemplateInfo derives template information from a template path.
func NewTemplateInfo(path string) *TemplateInfo {
	base := filepath.Base(path)
	return &TemplateInfo{
		Name: strings.TrimSuffix(base, filepath.Ext(base)),
		Path: path,
	}
}

// ToStarlark converts TemplateInfo to a Starlark struct value.
func (t *TemplateInfo) ToStarlark() starlark.Value {
	return starlarkstruct.FromStringDict(starlark.String("template"), starlark.StringDict{
		"name": starlark.String(t.Name),
		"path": starlark.String(t.Path),
	})
}

// GoToStarlark converts a Go value to a Starlark value.
// Supported types: string, int, int64, uint64, float64, bool, []string, []any,
// map[string]any and the map[any]any produced by some YAML decoders.
func GoToStarlark(v any) (starlark.Value, error) {
	if v == nil {
		return starlark.None, nil
	}

	switch val := v.(type) {
	case string:
		return starlark.String(val), nil

	case int:
		return starlark.MakeInt(val), nil

	case int64:
		return starlark.MakeInt64(val), nil

	case uint64:
		return starlark.MakeUint64(val), nil

	case float64:
		return starlark.Float(val), nil

	case bool:
		return starlark.Bool(val), nil

	case []string:
		list := make([]starlark.Value, len(val))
		for i, s := range val {
			list[i] = starlark.String(s)
		}
		return starlark.NewList(list), nil

	case []any:
		list := make([]starlark.Value, len(val))
		for i, item := range val {
			sv, err := GoToStarlark(item)
			if err != nil {
				return nil, fmt.Errorf("list index %d: %w", i, err)
			}
			list[i] = sv
		}
		return starlark.NewList(list), nil

	case map[string]any:
		dict := starlark.NewDict(len(val))
		for k, v := range val {
			sv, err := GoToStarlark(v)
			if err != nil {
				return nil, fmt.Errorf("dict key %q: %w", k, err)
			}
			if err := dict.SetKey(starlark.String(k), sv); err != nil {
				return nil, fmt.Errorf("dict setkey %q: %w", k, err)
			}
		}
		return dict, nil

	case map[any]any:
		m := make(map[string]any, len(val))
		for k, v := range val {
			m[fmt.Sprint(k)] = v
		}
		return GoToStarlark(m)

	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}
