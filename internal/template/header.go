package template

import (
	"strings"
	"unicode"
)

// Header keywords. Any other header makes the directive a NoOp.
const (
	keywordIf        = "if"
	keywordIfElse    = "ifelse"
	keywordElse      = "else"
	keywordInclude   = "include"
	keywordTransform = "transform"
)

// splitHeader splits a header into its leading keyword and the trimmed rest.
func splitHeader(header string) (keyword, args string) {
	i := strings.IndexAny(header, " \t")
	if i < 0 {
		return header, ""
	}
	return header[:i], strings.TrimSpace(header[i+1:])
}

func isElseHeader(header string) bool {
	keyword, _ := splitHeader(header)
	return keyword == keywordElse
}

// attachElse moves the body of a closed else frame into its ifelse parent.
func attachElse(parent, elseFrame *frame, parentIsRoot bool) error {
	if _, args := splitHeader(elseFrame.header); args != "" {
		return NewParseErrorf(elseFrame.pos, "'else' takes no arguments, got %q", args)
	}
	if keyword, _ := splitHeader(parent.header); parentIsRoot || keyword != keywordIfElse {
		return NewParseErrorf(elseFrame.pos, "'else' outside of an 'ifelse' directive")
	}
	if parent.hasElse {
		return NewParseErrorf(elseFrame.pos, "'ifelse' directive has more than one 'else'")
	}
	parent.elseBody = elseFrame.children
	parent.hasElse = true
	return nil
}

// buildDirective turns a closed frame into a directive block, selecting the
// kind from the header keyword.
func buildDirective(f *frame) (*DirectiveBlock, error) {
	keyword, args := splitHeader(f.header)

	var kind DirectiveKind
	switch keyword {
	case keywordIf:
		if args == "" {
			return nil, NewParseErrorf(f.pos, "'if' requires a condition")
		}
		kind = If{Condition: args}

	case keywordIfElse:
		if args == "" {
			return nil, NewParseErrorf(f.pos, "'ifelse' requires a condition")
		}
		kind = IfElse{Condition: args, Else: f.elseBody}

	case keywordInclude:
		if args == "" {
			return nil, NewParseErrorf(f.pos, "'include' requires a path")
		}
		if len(f.children) > 0 {
			return nil, NewParseErrorf(f.pos, "'include' does not take a body")
		}
		kind = Include{Path: args}

	case keywordTransform:
		name, expr := splitHeader(args)
		if !isIdentifier(name) {
			return nil, NewParseErrorf(f.pos, "'transform' requires a binding name, got %q", name)
		}
		if expr == "" {
			return nil, NewParseErrorf(f.pos, "'transform %s' requires an expression", name)
		}
		kind = Transform{Binding: name, Expr: expr}

	default:
		kind = NoOp{Header: f.header}
	}

	return &DirectiveBlock{
		blockBase: blockBase{pos: f.pos},
		Kind:      kind,
		Children:  f.children,
	}, nil
}

// isIdentifier reports whether s is usable as a variable name in expressions.
func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if r == '_' || unicode.IsLetter(r) {
			continue
		}
		if i > 0 && unicode.IsDigit(r) {
			continue
		}
		return false
	}
	return true
}
