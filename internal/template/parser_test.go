package template

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// directive returns blocks[i] as a *DirectiveBlock, failing the test otherwise.
func directive(t *testing.T, blocks []Block, i int) *DirectiveBlock {
	t.Helper()
	require.Greater(t, len(blocks), i, "missing block %d", i)
	d, ok := blocks[i].(*DirectiveBlock)
	require.True(t, ok, "block[%d]: expected DirectiveBlock, got %T", i, blocks[i])
	return d
}

// text returns blocks[i] as text, failing the test otherwise.
func text(t *testing.T, blocks []Block, i int) string {
	t.Helper()
	require.Greater(t, len(blocks), i, "missing block %d", i)
	tb, ok := blocks[i].(*TextBlock)
	require.True(t, ok, "block[%d]: expected TextBlock, got %T", i, blocks[i])
	return tb.Text
}

func TestParser_ValidInput(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		wantBlocks int
		checkFunc  func(t *testing.T, tmpl *Template)
	}{
		{
			name:       "plain text is trimmed",
			input:      "  \n hello world \t\n",
			wantBlocks: 1,
			checkFunc: func(t *testing.T, tmpl *Template) {
				assert.Equal(t, "hello world", text(t, tmpl.Blocks, 0))
			},
		},
		{
			name:       "empty input",
			input:      "",
			wantBlocks: 0,
		},
		{
			name:       "whitespace only",
			input:      " \n\t ",
			wantBlocks: 1,
			checkFunc: func(t *testing.T, tmpl *Template) {
				assert.Equal(t, "", text(t, tmpl.Blocks, 0))
			},
		},
		{
			name:       "closing marker at top level is text",
			input:      "a %!! b",
			wantBlocks: 1,
			checkFunc: func(t *testing.T, tmpl *Template) {
				assert.Equal(t, "a %!! b", text(t, tmpl.Blocks, 0))
			},
		},
		{
			name:       "closing marker after a directive is text",
			input:      "!!%d\nx%!! y %!!",
			wantBlocks: 2,
			checkFunc: func(t *testing.T, tmpl *Template) {
				d := directive(t, tmpl.Blocks, 0)
				assert.Equal(t, "x", text(t, d.Children, 0))
				assert.Equal(t, "y %!!", text(t, tmpl.Blocks, 1))
			},
		},
		{
			name:       "nested directives",
			input:      "!!%d1\n !!%d2\n textA %!! textB%!!",
			wantBlocks: 1,
			checkFunc: func(t *testing.T, tmpl *Template) {
				d1 := directive(t, tmpl.Blocks, 0)
				assert.Equal(t, NoOp{Header: "d1"}, d1.Kind)
				require.Len(t, d1.Children, 2)

				d2 := directive(t, d1.Children, 0)
				assert.Equal(t, NoOp{Header: "d2"}, d2.Kind)
				require.Len(t, d2.Children, 1)
				assert.Equal(t, "textA", text(t, d2.Children, 0))

				assert.Equal(t, "textB", text(t, d1.Children, 1))
			},
		},
		{
			name: "text between directives",
			input: fmt.Sprintf(`
 textbefore
 %[1]s directive1
   text1
 %[2]s
 textbetween
 %[1]s directive2
   text2
 %[2]s
 textafter
 `, OpenMarker, CloseMarker),
			wantBlocks: 5,
			checkFunc: func(t *testing.T, tmpl *Template) {
				assert.Equal(t, "textbefore", text(t, tmpl.Blocks, 0))
				assert.Equal(t, NoOp{Header: "directive1"}, directive(t, tmpl.Blocks, 1).Kind)
				assert.Equal(t, "text1", text(t, directive(t, tmpl.Blocks, 1).Children, 0))
				assert.Equal(t, "textbetween", text(t, tmpl.Blocks, 2))
				assert.Equal(t, NoOp{Header: "directive2"}, directive(t, tmpl.Blocks, 3).Kind)
				assert.Equal(t, "textafter", text(t, tmpl.Blocks, 4))
			},
		},
		{
			name:       "empty header",
			input:      "!!%   \nbody%!!",
			wantBlocks: 1,
			checkFunc: func(t *testing.T, tmpl *Template) {
				assert.Equal(t, NoOp{Header: ""}, directive(t, tmpl.Blocks, 0).Kind)
			},
		},
		{
			name:       "if",
			input:      "!!% if user == \"admin\"\nsecret%!!",
			wantBlocks: 1,
			checkFunc: func(t *testing.T, tmpl *Template) {
				d := directive(t, tmpl.Blocks, 0)
				assert.Equal(t, If{Condition: `user == "admin"`}, d.Kind)
				assert.Equal(t, "secret", text(t, d.Children, 0))
			},
		},
		{
			name:       "ifelse with else body",
			input:      "!!% ifelse debug\nverbose !!% else\nquiet %!!%!!",
			wantBlocks: 1,
			checkFunc: func(t *testing.T, tmpl *Template) {
				d := directive(t, tmpl.Blocks, 0)
				kind, ok := d.Kind.(IfElse)
				require.True(t, ok, "expected IfElse, got %T", d.Kind)
				assert.Equal(t, "debug", kind.Condition)
				require.Len(t, d.Children, 1)
				assert.Equal(t, "verbose", text(t, d.Children, 0))
				require.Len(t, kind.Else, 1)
				assert.Equal(t, "quiet", text(t, kind.Else, 0))
			},
		},
		{
			name:       "ifelse without else body",
			input:      "!!%ifelse debug\nverbose%!!",
			wantBlocks: 1,
			checkFunc: func(t *testing.T, tmpl *Template) {
				kind, ok := directive(t, tmpl.Blocks, 0).Kind.(IfElse)
				require.True(t, ok)
				assert.Empty(t, kind.Else)
			},
		},
		{
			name:       "include",
			input:      "!!% include partials/header.tpl\n%!!",
			wantBlocks: 1,
			checkFunc: func(t *testing.T, tmpl *Template) {
				d := directive(t, tmpl.Blocks, 0)
				assert.Equal(t, Include{Path: "partials/header.tpl"}, d.Kind)
				assert.Empty(t, d.Children)
			},
		},
		{
			name:       "include with whitespace body",
			input:      "!!% include a.tpl\n   \n%!!",
			wantBlocks: 1,
		},
		{
			name:       "transform",
			input:      "!!% transform body body.upper()\nhello%!!",
			wantBlocks: 1,
			checkFunc: func(t *testing.T, tmpl *Template) {
				d := directive(t, tmpl.Blocks, 0)
				assert.Equal(t, Transform{Binding: "body", Expr: "body.upper()"}, d.Kind)
				assert.Equal(t, "hello", text(t, d.Children, 0))
			},
		},
		{
			name:       "keyword prefix is not a keyword",
			input:      "!!% iffy stuff\nx%!!",
			wantBlocks: 1,
			checkFunc: func(t *testing.T, tmpl *Template) {
				assert.Equal(t, NoOp{Header: "iffy stuff"}, directive(t, tmpl.Blocks, 0).Kind)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpl, err := ParseString(tt.input, "test.tpl")
			require.NoError(t, err)
			require.Len(t, tmpl.Blocks, tt.wantBlocks)
			assert.Equal(t, "test.tpl", tmpl.File)
			if tt.checkFunc != nil {
				tt.checkFunc(t, tmpl)
			}
		})
	}
}

func TestParser_Errors(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		errSubstr string
		unmatched string // expected marker for UnmatchedMarkerError, if any
	}{
		{
			name:      "unclosed directive",
			input:     "!!%d1\ntext",
			errSubstr: "unclosed directive",
			unmatched: OpenMarker,
		},
		{
			name:      "unclosed nested directive",
			input:     "!!%d1\n!!%d2\ntext%!!",
			unmatched: OpenMarker,
		},
		{
			name:      "header without newline",
			input:     "!!% d1 %!!",
			errSubstr: "terminating newline",
		},
		{
			name:      "if without condition",
			input:     "!!% if\nx%!!",
			errSubstr: "requires a condition",
		},
		{
			name:      "ifelse without condition",
			input:     "!!% ifelse\nx%!!",
			errSubstr: "requires a condition",
		},
		{
			name:      "else at top level",
			input:     "!!% else\nx%!!",
			errSubstr: "outside of an 'ifelse'",
		},
		{
			name:      "else inside noop",
			input:     "!!% group\n!!% else\nx%!!%!!",
			errSubstr: "outside of an 'ifelse'",
		},
		{
			name:      "else with arguments",
			input:     "!!% ifelse a\n!!% else b\nx%!!%!!",
			errSubstr: "takes no arguments",
		},
		{
			name:      "two else bodies",
			input:     "!!% ifelse a\n!!% else\nx%!!!!% else\ny%!!%!!",
			errSubstr: "more than one 'else'",
		},
		{
			name:      "include without path",
			input:     "!!% include\n%!!",
			errSubstr: "requires a path",
		},
		{
			name:      "include with body",
			input:     "!!% include a.tpl\nbody%!!",
			errSubstr: "does not take a body",
		},
		{
			name:      "transform without expression",
			input:     "!!% transform name\nx%!!",
			errSubstr: "requires an expression",
		},
		{
			name:      "transform with invalid binding",
			input:     "!!% transform 1abc abc.upper()\nx%!!",
			errSubstr: "requires a binding name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpl, err := ParseString(tt.input, "test.tpl")
			require.Error(t, err)
			assert.Nil(t, tmpl, "no partial tree on error")

			var parseErr *ParseError
			assert.ErrorAs(t, err, &parseErr, "expected ParseError, got %T: %v", err, err)

			if tt.errSubstr != "" {
				assert.Contains(t, err.Error(), tt.errSubstr)
			}
			if tt.unmatched != "" {
				var unmatched *UnmatchedMarkerError
				require.ErrorAs(t, err, &unmatched, "expected UnmatchedMarkerError, got %T", err)
				assert.Equal(t, tt.unmatched, unmatched.Marker)
				assert.NotEmpty(t, unmatched.Remainder)
			}
		})
	}
}

func TestParser_UnclosedReportsRemainder(t *testing.T) {
	_, err := ParseString("ok\n!!% outer\nnever closed", "page.tpl")
	require.Error(t, err)

	var unmatched *UnmatchedMarkerError
	require.ErrorAs(t, err, &unmatched)
	assert.Equal(t, "!!% outer\nnever closed", unmatched.Remainder)
	assert.Equal(t, Position{File: "page.tpl", Line: 2, Column: 1}, unmatched.Position())
	assert.True(t, strings.HasPrefix(err.Error(), "page.tpl:2:1: "), "got %q", err.Error())
}

func TestParser_RemainderIsTruncated(t *testing.T) {
	_, err := Parse("!!%d\n" + strings.Repeat("x", 100))
	require.Error(t, err)

	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Len(t, parseErr.Remainder, maxSnippetLen+len("..."))
	assert.True(t, strings.HasSuffix(parseErr.Remainder, "..."))
}

// nested builds depth nested NoOp directives around body.
func nested(depth int, body string) string {
	var sb strings.Builder
	for i := 0; i < depth; i++ {
		fmt.Fprintf(&sb, "%sd%d\n", OpenMarker, i)
	}
	sb.WriteString(body)
	for i := 0; i < depth; i++ {
		sb.WriteString(CloseMarker)
	}
	return sb.String()
}

func TestParser_DeepNesting(t *testing.T) {
	tmpl, err := Parse(nested(50, "core"))
	require.NoError(t, err)

	depth := 0
	Walk(tmpl.Blocks, func(b Block, d int) bool {
		if _, ok := b.(*TextBlock); ok {
			depth = d
		}
		return true
	})
	assert.Equal(t, 50, depth, "text sits below 50 directives")
}

func TestParser_DepthLimit(t *testing.T) {
	tests := []struct {
		name     string
		depth    int
		maxDepth int
		wantErr  bool
	}{
		{"at limit", 10, 10, false},
		{"over limit", 11, 10, true},
		{"default limit", DefaultMaxDepth, 0, false},
		{"over default limit", DefaultMaxDepth + 1, 0, true},
		{"adversarial input", 100000, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(nested(tt.depth, "x"), WithMaxDepth(tt.maxDepth))
			if !tt.wantErr {
				require.NoError(t, err)
				return
			}
			var depthErr *DepthLimitError
			require.ErrorAs(t, err, &depthErr, "expected DepthLimitError, got %T: %v", err, err)
			want := tt.maxDepth
			if want == 0 {
				want = DefaultMaxDepth
			}
			assert.Equal(t, want, depthErr.Limit)
		})
	}
}

func TestParser_NoEscapeForMarkers(t *testing.T) {
	// Marker sequences cannot appear literally in text.
	_, err := Parse(`price is 50%!! off`)
	require.Error(t, err)
}

func TestTemplate_Includes(t *testing.T) {
	input := `!!% include a.tpl
%!!
!!% ifelse x
!!% include b.tpl
%!!
!!% else
!!% include c.tpl
%!!
!!% include a.tpl
%!!
%!!
%!!`
	tmpl, err := Parse(input)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.tpl", "b.tpl", "c.tpl"}, tmpl.Includes())
}
