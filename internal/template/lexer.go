package template

import (
	"strings"
	"unicode/utf8"
)

// Directive markers. They are fixed and cannot be escaped inside text.
const (
	OpenMarker  = "!!%"
	CloseMarker = "%!!"
)

// TokenType identifies the type of token.
type TokenType int

// TokenType constants for template token types.
const (
	TokenText  TokenType = iota // Literal text, untrimmed
	TokenOpen                   // !!% followed by a header line; Value is the trimmed header
	TokenClose                  // %!!
	TokenEOF                    // End of input
)

func (t TokenType) String() string {
	switch t {
	case TokenText:
		return "TEXT"
	case TokenOpen:
		return "OPEN"
	case TokenClose:
		return "CLOSE"
	case TokenEOF:
		return "EOF"
	default:
		return "UNKNOWN"
	}
}

// Token represents a lexical token.
type Token struct {
	Type   TokenType
	Value  string
	Pos    Position
	Offset int // Byte offset of the token in the input
}

// Lexer tokenizes a template string.
type Lexer struct {
	input     string
	file      string
	pos       int // current position in input
	line      int // current line number (1-based)
	col       int // current column number (1-based)
	lastLine  int // line at start of current token
	lastCol   int // column at start of current token
	lastStart int // offset at start of current token
	depth     int // open directives; at zero %!! is plain text
}

// NewLexer creates a new lexer for the given input.
func NewLexer(input, file string) *Lexer {
	return &Lexer{
		input: input,
		file:  file,
		pos:   0,
		line:  1,
		col:   1,
	}
}

// Tokenize converts the input into a slice of tokens.
func (l *Lexer) Tokenize() ([]Token, error) {
	var tokens []Token

	for {
		tok, err := l.nextToken()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF {
			break
		}
	}

	return tokens, nil
}

// nextToken returns the next token from the input.
func (l *Lexer) nextToken() (Token, error) {
	l.markStart()

	if l.pos >= len(l.input) {
		return l.token(TokenEOF, ""), nil
	}

	if l.matchString(OpenMarker) {
		return l.scanHeader()
	}

	if l.depth > 0 && l.matchString(CloseMarker) {
		l.advanceBytes(len(CloseMarker))
		l.depth--
		return l.token(TokenClose, ""), nil
	}

	return l.scanText()
}

// scanText scans literal text until an opening marker, a closing marker
// inside a directive body, or EOF.
func (l *Lexer) scanText() (Token, error) {
	start := l.pos

	for l.pos < len(l.input) {
		if l.matchString(OpenMarker) || (l.depth > 0 && l.matchString(CloseMarker)) {
			break
		}
		l.advance()
	}

	if l.pos == start {
		return Token{}, NewParseError(l.position(), "unexpected state in lexer", l.input[l.pos:])
	}

	return l.token(TokenText, l.input[start:l.pos]), nil
}

// scanHeader scans an opening marker and the header line that follows it.
func (l *Lexer) scanHeader() (Token, error) {
	l.advanceBytes(len(OpenMarker))

	end := strings.IndexByte(l.input[l.pos:], '\n')
	if end < 0 {
		return Token{}, NewParseError(l.startPosition(), "directive header is missing its terminating newline", l.input[l.lastStart:])
	}

	header := strings.TrimSpace(l.input[l.pos : l.pos+end])

	// Skip header and newline
	l.advanceBytes(end + 1)
	l.depth++

	return l.token(TokenOpen, header), nil
}

// Helper methods

// token builds a token that starts at the marked start position.
func (l *Lexer) token(typ TokenType, value string) Token {
	return Token{
		Type:   typ,
		Value:  value,
		Pos:    l.startPosition(),
		Offset: l.lastStart,
	}
}

// advance moves to the next rune, updating position tracking.
func (l *Lexer) advance() {
	if l.pos >= len(l.input) {
		return
	}

	r, size := utf8.DecodeRuneInString(l.input[l.pos:])
	l.pos += size

	if r == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
}

// advanceBytes advances over at least n bytes of input.
func (l *Lexer) advanceBytes(n int) {
	target := l.pos + n
	for l.pos < target && l.pos < len(l.input) {
		l.advance()
	}
}

// matchString checks if the input at current position matches s.
func (l *Lexer) matchString(s string) bool {
	return strings.HasPrefix(l.input[l.pos:], s)
}

// markStart records the start position for the current token.
func (l *Lexer) markStart() {
	l.lastLine = l.line
	l.lastCol = l.col
	l.lastStart = l.pos
}

// position returns the current position.
func (l *Lexer) position() Position {
	return Position{File: l.file, Line: l.line, Column: l.col}
}

// startPosition returns the position where the current token started.
func (l *Lexer) startPosition() Position {
	return Position{File: l.file, Line: l.lastLine, Column: l.lastCol}
}
