// Package loader reads template files from disk and extracts their YAML frontmatter.
package loader

import (
	"fmt"
	"regexp"

	"gopkg.in/yaml.v3"
)

// FrontmatterConfig represents parsed YAML frontmatter.
// Unknown fields cause parse errors (use Meta for extensions).
type FrontmatterConfig struct {
	Description string         `yaml:"description"`
	Output      string         `yaml:"output"` // default output path for this template
	Vars        map[string]any `yaml:"vars"`   // default variables, overridden by configuration
	Meta        map[string]any `yaml:"meta"`   // Extension point for custom fields
}

// FrontmatterResult holds the result of frontmatter extraction.
type FrontmatterResult struct {
	Config  *FrontmatterConfig
	Body    string // template content after frontmatter
	HasYAML bool   // Whether frontmatter was found
}

// frontmatterPattern matches a leading ---\n ... \n--- block.
// The closing delimiter must be on its own line.
var frontmatterPattern = regexp.MustCompile(`(?s)\A---[ \t]*\r?\n(?:(.*?)\r?\n)?---[ \t]*(?:\r?\n|\z)`)

// knownFields are the accepted top-level frontmatter keys.
var knownFields = map[string]bool{
	"description": true,
	"output":      true,
	"vars":        true,
	"meta":        true,
}

// ExtractFrontmatter extracts YAML frontmatter from template content.
// Returns the parsed config, remaining body, and any error.
func ExtractFrontmatter(content string) (*FrontmatterResult, error) {
	result := &FrontmatterResult{
		Config:  &FrontmatterConfig{},
		Body:    content,
		HasYAML: false,
	}

	loc := frontmatterPattern.FindStringSubmatchIndex(content)
	if loc == nil {
		// No frontmatter found, return content as-is
		return result, nil
	}

	result.HasYAML = true
	result.Body = content[loc[1]:]

	var yamlContent string
	if loc[2] >= 0 {
		yamlContent = content[loc[2]:loc[3]]
	}

	config, err := parseFrontmatterYAML(yamlContent)
	if err != nil {
		return nil, err
	}

	result.Config = config
	return result, nil
}

// parseFrontmatterYAML parses YAML content with strict field validation.
func parseFrontmatterYAML(yamlContent string) (*FrontmatterConfig, error) {
	// First, decode into a map to check for unknown fields
	var rawMap map[string]any
	if err := yaml.Unmarshal([]byte(yamlContent), &rawMap); err != nil {
		return nil, &FrontmatterParseError{
			Message: fmt.Sprintf("invalid YAML: %v", err),
		}
	}

	for field := range rawMap {
		if !knownFields[field] {
			return nil, &UnknownFieldError{
				Field: field,
			}
		}
	}

	var config FrontmatterConfig
	if err := yaml.Unmarshal([]byte(yamlContent), &config); err != nil {
		return nil, &FrontmatterParseError{
			Message: fmt.Sprintf("failed to parse frontmatter: %v", err),
		}
	}

	return &config, nil
}

// FrontmatterParseError represents a frontmatter parsing error.
type FrontmatterParseError struct {
	File    string
	Message string
}

func (e *FrontmatterParseError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("%s: %s", e.File, e.Message)
	}
	return e.Message
}

// UnknownFieldError represents an error for unknown frontmatter fields.
type UnknownFieldError struct {
	File  string
	Field string
}

func (e *UnknownFieldError) Error() string {
	msg := fmt.Sprintf("unknown field %q in frontmatter, use \"meta\" field for custom fields", e.Field)
	if e.File != "" {
		return fmt.Sprintf("%s: %s", e.File, msg)
	}
	return msg
}
