package syntax

import (
	"github.com/alecthomas/participle/v2/lexer"
)

// AtoLexer tokenizes the subset of atopile emitted by the generator.
// Keywords must come before identifiers so "signal" never lexes as Ident.
var AtoLexer = lexer.MustSimple([]lexer.SimpleRule{
	// Comments run to the end of the line
	{Name: "Comment", Pattern: `#[^\n]*`},

	{Name: "Whitespace", Pattern: `[ \t\r\n]+`},

	{Name: "String", Pattern: `"(?:[^"\\]|\\.)*"`},

	{Name: "Keyword", Pattern: `\b(from|import|component|module|signal|new|pin|pass)\b`},

	// Identifiers, designators and pin numbers
	{Name: "Ident", Pattern: `[A-Za-z0-9_]+`},

	{Name: "Punct", Pattern: `[~=:.,]`},
})
