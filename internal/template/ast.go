// Package template implements the templar template language.
// Literal text is interleaved with directive blocks opened by !!% and closed by %!!.
// The first line after the opening marker is the directive header; it selects
// the directive kind (if, ifelse, include, transform) or groups its body as a no-op.
package template

// Position tracks source location for error reporting.
type Position struct {
	File   string
	Line   int
	Column int
}

// Block is the interface for all template AST nodes.
// The set of implementations is closed: *TextBlock and *DirectiveBlock.
type Block interface {
	Pos() Position
	block() // marker method to restrict implementation
}

// blockBase provides common Position handling for all blocks.
type blockBase struct {
	pos Position
}

func (b *blockBase) Pos() Position { return b.pos }
func (b *blockBase) block()        {}

// TextBlock represents a literal text run (already whitespace-trimmed).
type TextBlock struct {
	blockBase
	Text string
}

// DirectiveBlock represents a directive and the blocks nested inside it.
// Children are owned exclusively by the directive.
type DirectiveBlock struct {
	blockBase
	Kind     DirectiveKind
	Children []Block
}

// DirectiveKind identifies what a directive does with its children.
// Implementations: NoOp, If, IfElse, Include, Transform.
type DirectiveKind interface {
	Name() string
	directiveKind()
}

// NoOp groups its children without changing them.
type NoOp struct {
	Header string // Raw header text, trimmed
}

// If renders its children when Condition evaluates to true.
type If struct {
	Condition string
}

// IfElse renders the directive's children when Condition is true and Else otherwise.
type IfElse struct {
	Condition string
	Else      []Block
}

// Include renders another template, loaded by path, in the current context.
type Include struct {
	Path string
}

// Transform renders its children, binds the result to Binding and
// returns the string result of Expr.
type Transform struct {
	Binding string
	Expr    string
}

func (NoOp) Name() string      { return "noop" }
func (If) Name() string        { return "if" }
func (IfElse) Name() string    { return "ifelse" }
func (Include) Name() string   { return "include" }
func (Transform) Name() string { return "transform" }

func (NoOp) directiveKind()      {}
func (If) directiveKind()        {}
func (IfElse) directiveKind()    {}
func (Include) directiveKind()   {}
func (Transform) directiveKind() {}

// Template represents a complete parsed template.
type Template struct {
	Blocks []Block
	File   string // Source file path, empty for inline sources
}

// Walk visits blocks depth-first in source order. The else-body of an
// IfElse is visited after the directive's children. Returning false from
// fn skips the block's descendants.
func Walk(blocks []Block, fn func(b Block, depth int) bool) {
	walk(blocks, 0, fn)
}

func walk(blocks []Block, depth int, fn func(Block, int) bool) {
	for _, b := range blocks {
		if !fn(b, depth) {
			continue
		}
		d, ok := b.(*DirectiveBlock)
		if !ok {
			continue
		}
		walk(d.Children, depth+1, fn)
		if ie, ok := d.Kind.(IfElse); ok {
			walk(ie.Else, depth+1, fn)
		}
	}
}

// Includes returns the include paths referenced by the template, in order
// of appearance and without duplicates.
func (t *Template) Includes() []string {
	var paths []string
	seen := make(map[string]bool)
	Walk(t.Blocks, func(b Block, _ int) bool {
		if d, ok := b.(*DirectiveBlock); ok {
			if inc, ok := d.Kind.(Include); ok && !seen[inc.Path] {
				seen[inc.Path] = true
				paths = append(paths, inc.Path)
			}
		}
		return true
	})
	return paths
}
