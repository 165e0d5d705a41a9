// Package helpers loads Starlark helper modules for template expressions.
// Each .star file in the helpers directory becomes a namespace named after
// the file, so def slug in text.star is called as text.slug(...).
package helpers

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"go.starlark.net/starlark"
)

// Loader executes the helper files of one directory.
type Loader struct {
	dir    string
	logger *slog.Logger

	// cache holds executed files by name for one Load call. An entry with
	// loading set is on the current load() chain.
	cache map[string]*execResult
}

type execResult struct {
	globals starlark.StringDict
	err     error
	loading bool
}

// NewLoader creates a loader for dir.
func NewLoader(dir string, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Loader{dir: dir, logger: logger}
}

// LoadedModule is an executed helper file.
type LoadedModule struct {
	Namespace string
	Path      string
	Exports   starlark.StringDict // Frozen; names starting with "_" are omitted
}

// Load executes every helper file and returns one module per file, in file
// name order. A missing directory yields no modules.
//
// Helper files may share code with load("other.star", "name"); the loaded
// file must sit in the same directory and is executed once per Load.
func (l *Loader) Load() ([]*LoadedModule, error) {
	info, err := os.Stat(l.dir)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("failed to access helpers directory: %w", err)
	case !info.IsDir():
		return nil, fmt.Errorf("helpers path is not a directory: %s", l.dir)
	}

	files, err := Files(l.dir)
	if err != nil {
		return nil, err
	}

	l.cache = make(map[string]*execResult, len(files))
	defer func() { l.cache = nil }()

	modules := make([]*LoadedModule, 0, len(files))
	for _, file := range files {
		name := filepath.Base(file)
		namespace := strings.TrimSuffix(name, ".star")
		if err := validateNamespace(namespace); err != nil {
			return nil, &LoadError{File: file, Message: err.Error()}
		}

		globals, err := l.exec(name)
		if err != nil {
			return nil, err
		}

		exports := make(starlark.StringDict, len(globals))
		for k, v := range globals {
			if exported(k) {
				exports[k] = v
			}
		}
		// Helpers are shared by concurrent renders.
		exports.Freeze()

		l.logger.Debug("loaded helper module", "namespace", namespace, "exports", len(exports))
		modules = append(modules, &LoadedModule{Namespace: namespace, Path: file, Exports: exports})
	}
	return modules, nil
}

// exec runs the helper file name, or returns its cached result.
func (l *Loader) exec(name string) (starlark.StringDict, error) {
	if r, ok := l.cache[name]; ok {
		if r.loading {
			return nil, &LoadError{File: name, Message: "load cycle"}
		}
		return r.globals, r.err
	}

	r := &execResult{loading: true}
	l.cache[name] = r
	r.globals, r.err = l.execFile(name)
	r.loading = false
	return r.globals, r.err
}

func (l *Loader) execFile(name string) (starlark.StringDict, error) {
	file := filepath.Join(l.dir, name)
	src, err := os.ReadFile(file) //nolint:gosec // G304: name is a file directly inside the helpers directory
	if err != nil {
		return nil, &LoadError{File: file, Message: "failed to read file", Err: err}
	}

	thread := &starlark.Thread{
		Name: "helpers/" + name,
		Print: func(_ *starlark.Thread, msg string) {
			l.logger.Debug("helper print", "file", name, "msg", msg)
		},
		Load: func(_ *starlark.Thread, module string) (starlark.StringDict, error) {
			if path.Base(module) != module || filepath.Ext(module) != ".star" {
				return nil, fmt.Errorf("load %q: only .star files in the helpers directory can be loaded", module)
			}
			return l.exec(module)
		},
	}

	globals, err := starlark.ExecFile(thread, file, src, nil) //nolint:staticcheck // SA1019: will migrate to ExecFileOptions later
	if err != nil {
		return nil, &LoadError{File: file, Message: "execution failed", Err: err}
	}
	return globals, nil
}

// Files returns the .star files directly inside dir, sorted by name.
func Files(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to scan helpers directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".star" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	return files, nil
}

// validateNamespace checks that name can be used as a Starlark identifier.
func validateNamespace(name string) error {
	if name == "" {
		return errors.New("namespace cannot be empty")
	}
	for i, r := range name {
		switch {
		case r == '_', 'a' <= r && r <= 'z', 'A' <= r && r <= 'Z':
		case i > 0 && '0' <= r && r <= '9':
		case i == 0:
			return fmt.Errorf("namespace must start with a letter or underscore: %s", name)
		default:
			return fmt.Errorf("namespace contains invalid character %q: %s", r, name)
		}
	}
	return nil
}

// LoadError reports a helper file that could not be executed.
type LoadError struct {
	File    string
	Message string
	Err     error
}

func (e *LoadError) Error() string {
	msg := fmt.Sprintf("helpers/%s: %s", filepath.Base(e.File), e.Message)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *LoadError) Unwrap() error { return e.Err }
