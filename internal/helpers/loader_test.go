package helpers

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/leapstack-labs/templar/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.starlark.net/starlark"
)

// writeHelpers creates a helpers directory containing files.
func writeHelpers(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "helpers")
	require.NoError(t, os.Mkdir(dir, 0755))
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}
	return dir
}

func TestLoader_Load(t *testing.T) {
	tests := []struct {
		name           string
		setupDir       func(t *testing.T) string
		wantModules    int
		wantNil        bool // expect nil modules (not empty slice)
		wantErr        bool
		wantNamespaces []string
		checkExports   map[string][]string // namespace -> expected exports
	}{
		{
			name: "empty directory",
			setupDir: func(t *testing.T) string {
				return writeHelpers(t, nil)
			},
			wantModules: 0,
		},
		{
			name: "non-existent directory",
			setupDir: func(_ *testing.T) string {
				return "/nonexistent/path/to/helpers"
			},
			wantNil: true,
		},
		{
			name: "not a directory",
			setupDir: func(t *testing.T) string {
				path := filepath.Join(t.TempDir(), "helpers")
				require.NoError(t, os.WriteFile(path, []byte("not a dir"), 0644))
				return path
			},
			wantErr: true,
		},
		{
			name: "single helper with multiple functions",
			setupDir: func(t *testing.T) string {
				return writeHelpers(t, map[string]string{"text.star": `
def greet(name):
    return "Hello, " + name + "!"

def indent(s, n=2):
    return "\n".join([" " * n + line for line in s.split("\n")])

_private = "should not be exported"
`})
			},
			wantModules:    1,
			wantNamespaces: []string{"text"},
			checkExports: map[string][]string{
				"text": {"greet", "indent"},
			},
		},
		{
			name: "multiple helper files",
			setupDir: func(t *testing.T) string {
				return writeHelpers(t, map[string]string{
					"dates.star": "def today():\n    return \"2024-01-01\"\n",
					"math.star":  "def square(x):\n    return x * x\n",
					"notes.txt":  "ignored",
				})
			},
			wantModules:    2,
			wantNamespaces: []string{"dates", "math"},
		},
		{
			name: "syntax error in helper",
			setupDir: func(t *testing.T) string {
				return writeHelpers(t, map[string]string{"broken.star": "def broken(:\n    return 1\n"})
			},
			wantErr: true,
		},
		{
			name: "invalid namespace (starts with number)",
			setupDir: func(t *testing.T) string {
				return writeHelpers(t, map[string]string{"123invalid.star": "x = 1"})
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loader := NewLoader(tt.setupDir(t), testutil.NewTestLogger(t))
			modules, err := loader.Load()

			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)

			if tt.wantNil {
				assert.Nil(t, modules)
				return
			}

			require.Len(t, modules, tt.wantModules)

			namespaces := make(map[string]*LoadedModule)
			for _, m := range modules {
				namespaces[m.Namespace] = m
			}
			for _, ns := range tt.wantNamespaces {
				assert.Contains(t, namespaces, ns)
			}

			for ns, expectedExports := range tt.checkExports {
				module, ok := namespaces[ns]
				require.True(t, ok, "namespace %q not found", ns)
				assert.ElementsMatch(t, expectedExports, module.Exports.Keys())
			}
		})
	}
}

func TestLoader_ExportsAreCallable(t *testing.T) {
	dir := writeHelpers(t, map[string]string{"text.star": `
def shout(s):
    return s.upper() + "!"
`})

	modules, err := NewLoader(dir, nil).Load()
	require.NoError(t, err)
	require.Len(t, modules, 1)

	fn, ok := modules[0].Exports["shout"].(starlark.Callable)
	require.True(t, ok, "expected callable, got %T", modules[0].Exports["shout"])

	result, err := starlark.Call(&starlark.Thread{}, fn, starlark.Tuple{starlark.String("hi")}, nil)
	require.NoError(t, err)
	assert.Equal(t, starlark.String("HI!"), result)
}

func TestLoadError_Error(t *testing.T) {
	err := &LoadError{File: "/a/b/text.star", Message: "boom"}
	assert.Equal(t, "helpers/text.star: boom", err.Error())
}

func TestLoader_LoadSibling(t *testing.T) {
	dir := writeHelpers(t, map[string]string{
		"base.star": "SEP = \"-\"\ncalls = []\n\ndef join(a, b):\n    return a + SEP + b\n",
		"text.star": "load(\"base.star\", \"join\")\n\ndef slug(a, b):\n    return join(a.lower(), b.lower())\n",
	})

	modules, err := NewLoader(dir, testutil.NewTestLogger(t)).Load()
	require.NoError(t, err)
	require.Len(t, modules, 2)

	text := modules[1]
	assert.Equal(t, "text", text.Namespace)
	assert.Equal(t, []string{"slug"}, text.Exports.Keys(), "loaded names stay local to the file")

	slug := text.Exports["slug"].(starlark.Callable)
	result, err := starlark.Call(&starlark.Thread{}, slug, starlark.Tuple{starlark.String("A"), starlark.String("B")}, nil)
	require.NoError(t, err)
	assert.Equal(t, starlark.String("a-b"), result)

	// Exports are frozen, so shared helper state cannot change between renders.
	calls := modules[0].Exports["calls"].(*starlark.List)
	assert.Error(t, calls.Append(starlark.None))
}

func TestLoader_LoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		files   map[string]string
		errText string
	}{
		{
			name: "cycle",
			files: map[string]string{
				"a.star": "load(\"b.star\", \"y\")\nx = 1\n",
				"b.star": "load(\"a.star\", \"x\")\ny = 1\n",
			},
			errText: "load cycle",
		},
		{
			name:    "outside helpers directory",
			files:   map[string]string{"a.star": "load(\"../secret.star\", \"x\")\n"},
			errText: "only .star files in the helpers directory",
		},
		{
			name:    "missing sibling",
			files:   map[string]string{"a.star": "load(\"nope.star\", \"x\")\n"},
			errText: "failed to read file",
		},
		{
			name:    "runtime fault",
			files:   map[string]string{"a.star": "x = 1 // 0\n"},
			errText: "execution failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLoader(writeHelpers(t, tt.files), nil).Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errText)

			var loadErr *LoadError
			assert.ErrorAs(t, err, &loadErr)
		})
	}
}

func TestLoadError_Unwrap(t *testing.T) {
	cause := errors.New("disk on fire")
	err := &LoadError{File: "text.star", Message: "failed to read file", Err: cause}
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "helpers/text.star: failed to read file: disk on fire", err.Error())
}
