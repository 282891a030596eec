// Package syntax reads atopile source files back into a syntax tree. It
// covers the statements the generator emits: imports, component and module
// blocks, signal declarations, instantiation, attribute assignment and
// connections.
package syntax

import (
	"strings"

	"github.com/alecthomas/participle/v2/lexer"
)

// File is one .ato source file
type File struct {
	Imports []*Import `@@*`
	Blocks  []*Block  `@@*`
}

// Import brings a block defined in another file into scope
// Example: from "library/R.ato" import R
type Import struct {
	Pos    lexer.Position
	Path   string `"from" @String`
	Symbol string `"import" @Ident`
}

// Block is a component or module definition
type Block struct {
	Pos   lexer.Position
	Kind  string  `@( "component" | "module" )`
	Name  string  `@Ident ":"`
	Stmts []*Stmt `@@*`
}

// IsComponent reports whether the block is a component
func (b *Block) IsComponent() bool {
	return b.Kind == "component"
}

// Stmt is one statement of a block body
type Stmt struct {
	Pos    lexer.Position
	Pass   bool        `  @"pass"`
	Signal *SignalDecl `| @@`
	Ref    *RefStmt    `| @@`
}

// SignalDecl declares a signal, optionally bound to a pin
// Example: signal p1 ~ pin 1
type SignalDecl struct {
	Name string `"signal" @Ident`
	Pin  string `( "~" "pin" @Ident )?`
}

// RefStmt is a statement starting with a reference: a connection
// (a ~ b, a ~ pin 1) or an assignment (x = new R, x.value = "10k").
type RefStmt struct {
	Left    *Ref      `@@`
	Connect *Endpoint `( "~" @@`
	Assign  *Value    `| "=" @@ )`
}

// Endpoint is the right side of a connection
type Endpoint struct {
	Pin string `  "pin" @Ident`
	Ref *Ref   `| @@`
}

// Value is the right side of an assignment
type Value struct {
	New    string  `  "new" @Ident`
	String *string `| @String`
}

// Ref is a dotted name: R1, R1.p1, power.VCC
type Ref struct {
	Parts []string `@Ident ( "." @Ident )*`
}

func (r *Ref) String() string {
	return strings.Join(r.Parts, ".")
}
