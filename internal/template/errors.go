package template

import (
	"fmt"
	"strings"
)

// maxSnippetLen bounds the remainder quoted in parse errors.
const maxSnippetLen = 40

// Error is the base interface for all template errors.
type Error interface {
	error
	Position() Position
}

// baseError provides common error functionality.
type baseError struct {
	pos Position
	msg string
}

func (e *baseError) Position() Position { return e.pos }
func (e *baseError) Error() string {
	if e.pos.File != "" {
		return fmt.Sprintf("%s:%d:%d: %s", e.pos.File, e.pos.Line, e.pos.Column, e.msg)
	}
	return fmt.Sprintf("%d:%d: %s", e.pos.Line, e.pos.Column, e.msg)
}

// ParseError represents malformed template input.
type ParseError struct {
	baseError
	Remainder string // Input starting at the offending location (truncated)
}

// NewParseError creates a new parser error. remainder is the unconsumed
// input at the point of failure; it is truncated for display.
func NewParseError(pos Position, msg, remainder string) *ParseError {
	return &ParseError{baseError: baseError{pos: pos, msg: msg}, Remainder: snippet(remainder)}
}

// NewParseErrorf creates a new parser error with formatting and no remainder.
func NewParseErrorf(pos Position, format string, args ...any) *ParseError {
	return &ParseError{baseError: baseError{pos: pos, msg: fmt.Sprintf(format, args...)}}
}

func (e *ParseError) Error() string {
	base := e.baseError.Error()
	if e.Remainder != "" {
		return fmt.Sprintf("%s near %q", base, e.Remainder)
	}
	return base
}

// UnmatchedMarkerError indicates an opening marker without its closing
// marker, or a closing marker with nothing open.
type UnmatchedMarkerError struct {
	ParseError
	Marker string // The marker that has no counterpart
}

// NewUnmatchedMarkerError creates a new unmatched marker error.
func NewUnmatchedMarkerError(pos Position, marker, remainder string) *UnmatchedMarkerError {
	var msg string
	switch marker {
	case OpenMarker:
		msg = fmt.Sprintf("unclosed directive (missing %q)", CloseMarker)
	case CloseMarker:
		msg = fmt.Sprintf("%q without matching %q", CloseMarker, OpenMarker)
	default:
		msg = fmt.Sprintf("unmatched marker %q", marker)
	}
	return &UnmatchedMarkerError{
		ParseError: *NewParseError(pos, msg, remainder),
		Marker:     marker,
	}
}

// Unwrap exposes the embedded ParseError to errors.As.
func (e *UnmatchedMarkerError) Unwrap() error {
	return &e.ParseError
}

// DepthLimitError indicates that directive or include nesting exceeded the
// configured maximum depth.
type DepthLimitError struct {
	baseError
	Limit int
}

// NewDepthLimitError creates a new depth limit error.
func NewDepthLimitError(pos Position, limit int) *DepthLimitError {
	return &DepthLimitError{
		baseError: baseError{pos: pos, msg: fmt.Sprintf("directive nesting exceeds maximum depth of %d", limit)},
		Limit:     limit,
	}
}

// EvalError represents a failure of the expression evaluator.
type EvalError struct {
	baseError
	Expr  string
	Cause error
}

// NewEvalError wraps an evaluator failure for the expression at pos.
func NewEvalError(pos Position, expr string, cause error) *EvalError {
	return &EvalError{
		baseError: baseError{pos: pos, msg: fmt.Sprintf("error evaluating %q", expr)},
		Expr:      expr,
		Cause:     cause,
	}
}

func (e *EvalError) Error() string {
	base := e.baseError.Error()
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", base, e.Cause)
	}
	return base
}

func (e *EvalError) Unwrap() error {
	return e.Cause
}

// UnimplementedError indicates a directive that cannot be generated.
type UnimplementedError struct {
	baseError
	Kind string
}

// NewUnimplementedError creates a new unimplemented feature error.
func NewUnimplementedError(pos Position, kind, reason string) *UnimplementedError {
	return &UnimplementedError{
		baseError: baseError{pos: pos, msg: fmt.Sprintf("%s directive is not supported: %s", kind, reason)},
		Kind:      kind,
	}
}

// IncludeCycleError indicates a template that includes itself, directly or
// through other includes.
type IncludeCycleError struct {
	baseError
	Path  string
	Chain []string // Include stack at the point of failure, outermost first
}

// NewIncludeCycleError creates a new include cycle error.
func NewIncludeCycleError(pos Position, path string, chain []string) *IncludeCycleError {
	full := append(append([]string{}, chain...), path)
	return &IncludeCycleError{
		baseError: baseError{pos: pos, msg: "include cycle: " + strings.Join(full, " -> ")},
		Path:      path,
		Chain:     full,
	}
}

// RenderError represents an error during generation that is not an
// expression failure, such as an include that could not be loaded.
type RenderError struct {
	baseError
	Cause error
}

// WrapRenderError wraps an underlying error as a render error.
func WrapRenderError(pos Position, msg string, cause error) *RenderError {
	return &RenderError{
		baseError: baseError{pos: pos, msg: msg},
		Cause:     cause,
	}
}

func (e *RenderError) Error() string {
	base := e.baseError.Error()
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", base, e.Cause)
	}
	return base
}

func (e *RenderError) Unwrap() error {
	return e.Cause
}

// snippet truncates s for inclusion in an error message.
func snippet(s string) string {
	if len(s) <= maxSnippetLen {
		return s
	}
	return strings.ToValidUTF8(s[:maxSnippetLen], "") + "..."
}
