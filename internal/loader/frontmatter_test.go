package loader

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractFrontmatter(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		wantYAML bool
		wantBody string
		check    func(t *testing.T, c *FrontmatterConfig)
	}{
		{
			name:     "no frontmatter",
			content:  "hello !!%if x\ny%!!",
			wantBody: "hello !!%if x\ny%!!",
		},
		{
			name:     "vars and description",
			content:  "---\ndescription: greeting page\nvars:\n  who: world\n  n: 2\n---\nHello",
			wantYAML: true,
			wantBody: "Hello",
			check: func(t *testing.T, c *FrontmatterConfig) {
				assert.Equal(t, "greeting page", c.Description)
				assert.Equal(t, map[string]any{"who": "world", "n": 2}, c.Vars)
			},
		},
		{
			name:     "empty block",
			content:  "---\n---\nbody",
			wantYAML: true,
			wantBody: "body",
		},
		{
			name:     "output and meta",
			content:  "---\noutput: out/index.md\nmeta:\n  owner: docs\n---\n",
			wantYAML: true,
			wantBody: "",
			check: func(t *testing.T, c *FrontmatterConfig) {
				assert.Equal(t, "out/index.md", c.Output)
				assert.Equal(t, "docs", c.Meta["owner"])
			},
		},
		{
			name:     "closing marker must start a line",
			content:  "---\ndescription: a---b\n---\nx",
			wantYAML: true,
			wantBody: "x",
			check: func(t *testing.T, c *FrontmatterConfig) {
				assert.Equal(t, "a---b", c.Description)
			},
		},
		{
			name:     "crlf",
			content:  "---\r\ndescription: win\r\n---\r\nbody",
			wantYAML: true,
			wantBody: "body",
		},
		{
			name:     "not at start",
			content:  "text\n---\ndescription: x\n---\n",
			wantBody: "text\n---\ndescription: x\n---\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ExtractFrontmatter(tt.content)
			require.NoError(t, err)
			assert.Equal(t, tt.wantYAML, result.HasYAML, "HasYAML")
			assert.Equal(t, tt.wantBody, result.Body, "Body")
			require.NotNil(t, result.Config)
			if tt.check != nil {
				tt.check(t, result.Config)
			}
		})
	}
}

func TestExtractFrontmatter_UnknownField(t *testing.T) {
	_, err := ExtractFrontmatter("---\nmaterialized: table\n---\n")
	require.Error(t, err)

	var fieldErr *UnknownFieldError
	require.ErrorAs(t, err, &fieldErr)
	assert.Equal(t, "materialized", fieldErr.Field)
	assert.Contains(t, err.Error(), `use "meta" field`)
}

func TestExtractFrontmatter_InvalidYAML(t *testing.T) {
	_, err := ExtractFrontmatter("---\nvars: [unclosed\n---\n")
	require.Error(t, err)

	var parseErr *FrontmatterParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Contains(t, parseErr.Message, "invalid YAML")
}

func TestFrontmatterErrors_WithFile(t *testing.T) {
	assert.Equal(t, "a.tpl: bad", (&FrontmatterParseError{File: "a.tpl", Message: "bad"}).Error())
	assert.Equal(t, "bad", (&FrontmatterParseError{Message: "bad"}).Error())
	assert.Contains(t, (&UnknownFieldError{File: "a.tpl", Field: "x"}).Error(), "a.tpl: unknown field")
}
