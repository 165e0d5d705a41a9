package helpers

// Static inspection of helper files. Nothing here executes Starlark, so a
// helper with a runtime fault can still be listed.

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"go.starlark.net/syntax"
)

// ParsedFunction is a top-level def found in a helper file.
type ParsedFunction struct {
	Name      string   `json:"name"`
	Params    []string `json:"params"` // Rendered as written: "x", "sep=\"-\"", "*args", "*", "**kw"
	Docstring string   `json:"docstring,omitempty"`
	Line      int      `json:"line"`
}

// Signature renders the function as name(params).
func (f *ParsedFunction) Signature() string {
	return f.Name + "(" + strings.Join(f.Params, ", ") + ")"
}

// Summary returns the first line of the docstring.
func (f *ParsedFunction) Summary() string {
	line, _, _ := strings.Cut(f.Docstring, "\n")
	return strings.TrimSpace(line)
}

// ParsedNamespace describes what a helper file exports once loaded.
type ParsedNamespace struct {
	Name      string            `json:"name"`
	FilePath  string            `json:"file_path"`
	Functions []*ParsedFunction `json:"functions"`
	Values    []string          `json:"values,omitempty"` // Exported non-function globals
}

// ParseDir statically parses every .star file in dir. A missing directory
// yields no namespaces, matching Loader.Load.
func ParseDir(dir string) ([]*ParsedNamespace, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, nil
	}

	files, err := Files(dir)
	if err != nil {
		return nil, err
	}

	namespaces := make([]*ParsedNamespace, 0, len(files))
	for _, file := range files {
		content, err := os.ReadFile(file) //nolint:gosec // G304: path comes from a glob within the helpers directory
		if err != nil {
			return nil, fmt.Errorf("failed to read helper file: %w", err)
		}
		ns, err := ParseStarlarkFile(file, content)
		if err != nil {
			return nil, err
		}
		namespaces = append(namespaces, ns)
	}
	return namespaces, nil
}

// ParseStarlarkFile extracts the exports of one helper file from its syntax
// tree. The namespace name is checked the same way the loader checks it.
func ParseStarlarkFile(filename string, content []byte) (*ParsedNamespace, error) {
	name := strings.TrimSuffix(filepath.Base(filename), ".star")
	if err := validateNamespace(name); err != nil {
		return nil, &ParseError{File: filename, Message: err.Error()}
	}
	if slices.Contains(ReservedNamespaces, name) {
		return nil, &ParseError{File: filename, Message: fmt.Sprintf("namespace %q is reserved", name)}
	}

	f, err := syntax.Parse(filename, content, 0) //nolint:staticcheck // SA1019: will migrate to FileOptions.Parse later
	if err != nil {
		return nil, &ParseError{File: filename, Message: err.Error()}
	}

	ns := &ParsedNamespace{Name: name, FilePath: filename, Functions: []*ParsedFunction{}}
	for _, stmt := range f.Stmts {
		switch s := stmt.(type) {
		case *syntax.DefStmt:
			if exported(s.Name.Name) {
				ns.Functions = append(ns.Functions, &ParsedFunction{
					Name:      s.Name.Name,
					Params:    renderParams(s.Params),
					Docstring: docstring(s.Body),
					Line:      int(s.Name.NamePos.Line),
				})
			}
		case *syntax.AssignStmt:
			if id, ok := s.LHS.(*syntax.Ident); ok && exported(id.Name) && !slices.Contains(ns.Values, id.Name) {
				ns.Values = append(ns.Values, id.Name)
			}
		}
	}
	return ns, nil
}

func exported(name string) bool {
	return !strings.HasPrefix(name, "_")
}

func renderParams(params []syntax.Expr) []string {
	out := make([]string, 0, len(params))
	for _, param := range params {
		switch p := param.(type) {
		case *syntax.Ident:
			out = append(out, p.Name)
		case *syntax.BinaryExpr:
			if id, ok := p.X.(*syntax.Ident); ok && p.Op == syntax.EQ {
				out = append(out, id.Name+"="+shortExpr(p.Y))
			}
		case *syntax.UnaryExpr:
			// A bare * separates keyword-only parameters and has no operand.
			prefix := p.Op.String()
			if id, ok := p.X.(*syntax.Ident); ok {
				out = append(out, prefix+id.Name)
			} else {
				out = append(out, prefix)
			}
		}
	}
	return out
}

func docstring(body []syntax.Stmt) string {
	if len(body) == 0 {
		return ""
	}
	stmt, ok := body[0].(*syntax.ExprStmt)
	if !ok {
		return ""
	}
	lit, ok := stmt.X.(*syntax.Literal)
	if !ok || lit.Token != syntax.STRING {
		return ""
	}
	s, _ := lit.Value.(string)
	return strings.TrimSpace(s)
}

// shortExpr renders a default value; containers collapse to their brackets.
func shortExpr(expr syntax.Expr) string {
	switch e := expr.(type) {
	case *syntax.Literal:
		return e.Raw
	case *syntax.Ident:
		return e.Name
	case *syntax.ListExpr:
		return "[]"
	case *syntax.DictExpr:
		return "{}"
	case *syntax.TupleExpr:
		return "()"
	case *syntax.ParenExpr:
		return shortExpr(e.X)
	case *syntax.UnaryExpr:
		if e.Op == syntax.NOT {
			return "not " + shortExpr(e.X)
		}
		return e.Op.String() + shortExpr(e.X)
	default:
		return "..."
	}
}

// ParseError reports a helper file that cannot be inspected.
type ParseError struct {
	File    string
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("helpers/%s: %s", filepath.Base(e.File), e.Message)
}
