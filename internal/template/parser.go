package template

import (
	"log/slog"
	"strings"
)

// DefaultMaxDepth is the default limit on directive nesting, counting
// directives reached through includes.
const DefaultMaxDepth = 128

// options holds settings shared by the parser and the generator.
type options struct {
	maxDepth int
	loader   Loader
	logger   *slog.Logger
}

// Option configures parsing and generation.
type Option func(*options)

// WithMaxDepth sets the maximum directive nesting depth.
// Values below 1 keep the default.
func WithMaxDepth(depth int) Option {
	return func(o *options) {
		if depth > 0 {
			o.maxDepth = depth
		}
	}
}

// WithLoader sets the loader used to resolve include directives.
func WithLoader(loader Loader) Option {
	return func(o *options) {
		o.loader = loader
	}
}

// WithLogger sets the logger used during generation.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func newOptions(opts []Option) options {
	o := options{
		maxDepth: DefaultMaxDepth,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Parse parses an inline template.
func Parse(input string, opts ...Option) (*Template, error) {
	return ParseString(input, "", opts...)
}

// ParseString parses template source read from file.
// The file name is only used in positions and error messages.
func ParseString(input, file string, opts ...Option) (*Template, error) {
	tokens, err := NewLexer(input, file).Tokenize()
	if err != nil {
		return nil, err
	}

	p := &parser{
		input:    input,
		tokens:   tokens,
		maxDepth: newOptions(opts).maxDepth,
	}

	blocks, err := p.parse()
	if err != nil {
		return nil, err
	}

	return &Template{Blocks: blocks, File: file}, nil
}

type parser struct {
	input    string
	tokens   []Token
	maxDepth int
}

// frame is an open directive whose closing marker has not been seen yet.
type frame struct {
	header   string
	pos      Position
	offset   int
	children []Block
	elseBody []Block
	hasElse  bool
}

// parse builds the block tree with an explicit stack of open directives so
// that deeply nested input cannot exhaust the call stack.
func (p *parser) parse() ([]Block, error) {
	root := &frame{}
	stack := []*frame{root}

	// Input without markers is a single text run and always yields one
	// Text block, even when it trims to nothing.
	markerless := len(p.tokens) == 2 && p.tokens[0].Type == TokenText

	for _, tok := range p.tokens {
		top := stack[len(stack)-1]

		switch tok.Type {
		case TokenText:
			if text := strings.TrimSpace(tok.Value); text != "" || markerless {
				top.children = append(top.children, &TextBlock{blockBase: blockBase{pos: tok.Pos}, Text: text})
			}

		case TokenOpen:
			if len(stack) > p.maxDepth {
				return nil, NewDepthLimitError(tok.Pos, p.maxDepth)
			}
			stack = append(stack, &frame{header: tok.Value, pos: tok.Pos, offset: tok.Offset})

		case TokenClose:
			// The lexer only emits closes inside a directive.
			if len(stack) == 1 {
				return nil, NewUnmatchedMarkerError(tok.Pos, CloseMarker, p.input[tok.Offset:])
			}
			stack = stack[:len(stack)-1]
			parent := stack[len(stack)-1]

			if isElseHeader(top.header) {
				if err := attachElse(parent, top, len(stack) == 1); err != nil {
					return nil, err
				}
				continue
			}

			block, err := buildDirective(top)
			if err != nil {
				return nil, err
			}
			parent.children = append(parent.children, block)

		case TokenEOF:
			if len(stack) > 1 {
				return nil, NewUnmatchedMarkerError(top.pos, OpenMarker, p.input[top.offset:])
			}
		}
	}

	return root.children, nil
}
