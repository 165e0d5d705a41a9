package loader

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/leapstack-labs/templar/internal/template"
)

// DefaultExtensions are the file extensions Discover treats as templates.
var DefaultExtensions = []string{".tpl", ".tmpl"}

// Source is a template file read from disk.
type Source struct {
	Path    string // path relative to the loader root
	Body    string // content with frontmatter removed
	Config  *FrontmatterConfig
	HasYAML bool
}

// FileLoader reads templates from a root directory.
// Paths are slash-separated and relative to the root; paths that
// escape the root are rejected.
type FileLoader struct {
	root   string
	logger *slog.Logger
}

var _ template.Loader = (*FileLoader)(nil)

// NewFileLoader creates a loader rooted at dir.
func NewFileLoader(dir string, logger *slog.Logger) *FileLoader {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if dir == "" {
		dir = "."
	}
	return &FileLoader{root: dir, logger: logger}
}

// Root returns the loader's root directory.
func (l *FileLoader) Root() string {
	return l.root
}

// Load returns the body of the template at path with any frontmatter removed.
// It implements template.Loader for include directives; frontmatter of an
// included template is validated but its variables are not applied.
func (l *FileLoader) Load(path string) (string, error) {
	src, err := l.Read(path)
	if err != nil {
		return "", err
	}
	return src.Body, nil
}

// Read reads and splits the template at path.
func (l *FileLoader) Read(path string) (*Source, error) {
	full, err := l.resolve(path)
	if err != nil {
		return nil, err
	}

	l.logger.Debug("reading template", "path", path, "file", full)

	content, err := os.ReadFile(full)
	if err != nil {
		return nil, fmt.Errorf("failed to read template %s: %w", path, err)
	}

	fm, err := ExtractFrontmatter(string(content))
	if err != nil {
		var parseErr *FrontmatterParseError
		var fieldErr *UnknownFieldError
		switch {
		case errors.As(err, &parseErr):
			parseErr.File = path
		case errors.As(err, &fieldErr):
			fieldErr.File = path
		}
		return nil, err
	}

	return &Source{
		Path:    path,
		Body:    fm.Body,
		Config:  fm.Config,
		HasYAML: fm.HasYAML,
	}, nil
}

// resolve maps a template path to a file under the root.
func (l *FileLoader) resolve(path string) (string, error) {
	clean := filepath.FromSlash(path)
	if !filepath.IsLocal(clean) {
		return "", &PathError{Path: path, Root: l.root}
	}
	return filepath.Join(l.root, clean), nil
}

// Discover walks the root and returns the slash-separated paths of all files
// with one of the given extensions, sorted. Hidden files and directories are skipped.
// With no extensions, DefaultExtensions are used.
func (l *FileLoader) Discover(exts ...string) ([]string, error) {
	if len(exts) == 0 {
		exts = DefaultExtensions
	}

	var paths []string
	err := filepath.WalkDir(l.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		name := d.Name()
		if path != l.root && strings.HasPrefix(name, ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() || !slices.Contains(exts, filepath.Ext(name)) {
			return nil
		}

		rel, err := filepath.Rel(l.root, path)
		if err != nil {
			return err
		}
		paths = append(paths, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", l.root, err)
	}

	slices.Sort(paths)
	return paths, nil
}

// PathError reports a template path outside the loader root.
type PathError struct {
	Path string
	Root string
}

func (e *PathError) Error() string {
	return fmt.Sprintf("template path %q is outside %s", e.Path, e.Root)
}
