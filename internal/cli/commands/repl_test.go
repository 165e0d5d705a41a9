package commands

import (
	"bytes"
	"testing"

	"github.com/leapstack-labs/templar/internal/engine"
	"github.com/leapstack-labs/templar/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSession(t *testing.T) (*replSession, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	dir := testutil.WriteTree(t, map[string]string{
		"partials/hi.tpl": "!!%transform h \"hi \" + name\n%!!",
	})

	eng, err := engine.New(engine.Config{
		TemplatesDir: dir,
		Vars:         map[string]any{"name": "World", "count": 3},
		Logger:       testutil.NewTestLogger(t),
	})
	require.NoError(t, err)

	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	s, err := newREPLSession(eng, out, errOut)
	require.NoError(t, err)
	return s, out, errOut
}

func TestREPL_Expressions(t *testing.T) {
	tests := []struct {
		input   string
		wantOut string
		wantErr string
	}{
		{input: "name", wantOut: "\"World\"\n"},
		{input: "count * 2", wantOut: "6\n"},
		{input: "env", wantOut: "\"dev\"\n"},
		{input: "undefined_name", wantErr: "undefined"},
		{input: "   ", wantOut: ""},
		{input: ".bogus", wantErr: "Unknown command: .bogus"},
		{input: ".set", wantErr: "Usage: .set"},
		{input: ".unset", wantErr: "Usage: .unset"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			s, out, errOut := newTestSession(t)
			assert.False(t, s.handle(tt.input))
			assert.Equal(t, tt.wantOut, out.String())
			if tt.wantErr != "" {
				assert.Contains(t, errOut.String(), tt.wantErr)
			} else {
				assert.Empty(t, errOut.String())
			}
		})
	}
}

func TestREPL_SetUnset(t *testing.T) {
	s, out, errOut := newTestSession(t)

	s.handle(".set greeting hello there")
	s.handle("greeting")
	assert.Equal(t, "\"hello there\"\n", out.String())

	out.Reset()
	s.handle(".set name Bound")
	s.handle("name")
	assert.Equal(t, "\"Bound\"\n", out.String(), "bindings shadow variables")

	out.Reset()
	s.handle(".unset name")
	s.handle("name")
	assert.Equal(t, "\"World\"\n", out.String())

	s.handle(".unset greeting")
	s.handle("greeting")
	assert.Contains(t, errOut.String(), "undefined")
}

func TestREPL_Vars(t *testing.T) {
	s, out, _ := newTestSession(t)
	s.handle(".set x 1")
	s.handle(".vars")

	assert.Contains(t, out.String(), "name = \"World\"\n")
	assert.Contains(t, out.String(), "env = \"dev\"\n")
	assert.Contains(t, out.String(), "x := \"1\"\n")
}

func TestREPL_Render(t *testing.T) {
	s, out, errOut := newTestSession(t)

	s.handle(`.render !!%transform b b + "!"\nHello %!!`)
	assert.Equal(t, "Hello!\n", out.String())

	out.Reset()
	s.handle(`.render !!%include partials/hi.tpl\n%!!`)
	assert.Equal(t, "hi World\n", out.String())

	s.handle(`.render !!%if name\nx`)
	assert.Contains(t, errOut.String(), "Error:")
}

func TestREPL_Quit(t *testing.T) {
	s, out, _ := newTestSession(t)

	assert.True(t, s.handle(".quit"))
	assert.True(t, s.handle(".exit"))
	assert.False(t, s.handle(".help"))
	assert.Contains(t, out.String(), ".render <text>")
}

func TestREPL_Completer(t *testing.T) {
	s, _, _ := newTestSession(t)

	var names []string
	for _, child := range s.completer().GetChildren() {
		names = append(names, string(child.GetName()))
	}
	assert.Contains(t, names, ".render ")
	assert.Contains(t, names, "name ")
	assert.Contains(t, names, "env ")
}
