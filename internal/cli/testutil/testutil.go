// Package testutil provides test utilities for CLI testing.
package testutil

import (
	"bytes"
	"regexp"
	"strings"
	"testing"

	"github.com/leapstack-labs/templar/internal/cli/output"
	"github.com/leapstack-labs/templar/internal/testutil"
)

// ProjectFiles is the project created by SetupTestProject.
var ProjectFiles = map[string]string{
	"templar.yaml": `template: index.tpl
vars:
  name: World
environments:
  prod:
    vars:
      name: Production
`,
	"templates/index.tpl": `---
description: Greeting page
vars:
  greeting: Hello
---
!!%transform g greeting + ", " + name + "!"
%!!
!!%include partials/sign.tpl
%!!
`,
	"templates/partials/sign.tpl": `!!%if env == "prod"
(live)
%!!
`,
	"templates/plain.tpl": "Just text.\n",
	"helpers/text.star": `SUFFIX = "!"

def shout(s):
    """Upper-case s."""
    return s.upper() + SUFFIX

def _private():
    pass
`,
}

// SetupTestProject creates a temporary project with a config file, templates and helpers.
func SetupTestProject(t *testing.T) string {
	t.Helper()
	return testutil.WriteTree(t, ProjectFiles)
}

// TestRenderer wraps a Renderer for testing with captured output buffers.
type TestRenderer struct {
	*output.Renderer
	Out    *bytes.Buffer
	ErrOut *bytes.Buffer
}

// NewTestRenderer creates a new test renderer with the specified mode and TTY state.
// Output is captured in buffers for inspection.
func NewTestRenderer(mode output.Mode, isTTY bool) *TestRenderer {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	return &TestRenderer{
		Renderer: output.NewRendererWithTTY(out, errOut, isTTY, mode),
		Out:      out,
		ErrOut:   errOut,
	}
}

// Output returns the stdout output as a string.
func (tr *TestRenderer) Output() string {
	return tr.Out.String()
}

// ErrorOutput returns the stderr output as a string.
func (tr *TestRenderer) ErrorOutput() string {
	return tr.ErrOut.String()
}

// ansiPattern matches ANSI escape codes.
var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// AssertNoANSI checks that a string contains no ANSI escape codes.
func AssertNoANSI(t *testing.T, s string) {
	t.Helper()
	if ansiPattern.MatchString(s) {
		t.Errorf("string contains ANSI escape codes: %q", s)
	}
}

// AssertValidMarkdown performs basic markdown validation.
// It checks for unclosed code fences and empty headers.
func AssertValidMarkdown(t *testing.T, md string) {
	t.Helper()

	fenceCount := strings.Count(md, "```")
	if fenceCount%2 != 0 {
		t.Errorf("unbalanced code fences in markdown: found %d occurrences", fenceCount)
	}

	for i, line := range strings.Split(md, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") && strings.TrimLeft(trimmed, "# ") == "" {
			t.Errorf("empty header at line %d: %q", i+1, line)
		}
	}
}
