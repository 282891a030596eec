package syntax

import (
	"fmt"
	"io"

	"github.com/alecthomas/participle/v2"
)

// Parser parses atopile source files
type Parser struct {
	parser *participle.Parser[File]
}

// NewParser creates a new atopile parser instance
func NewParser() (*Parser, error) {
	parser, err := participle.Build[File](
		participle.Lexer(AtoLexer),
		participle.Elide("Comment", "Whitespace"),
		participle.Unquote("String"),
		participle.UseLookahead(2),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build parser: %w", err)
	}

	return &Parser{parser: parser}, nil
}

// Parse parses one file from a reader. filename is used in error positions.
func (p *Parser) Parse(filename string, r io.Reader) (*File, error) {
	f, err := p.parser.Parse(filename, r)
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	return f, nil
}

// ParseString parses one file held in memory
func (p *Parser) ParseString(filename, src string) (*File, error) {
	f, err := p.parser.ParseString(filename, src)
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	return f, nil
}

// ParseBytes parses one file held in memory
func (p *Parser) ParseBytes(filename string, src []byte) (*File, error) {
	f, err := p.parser.ParseBytes(filename, src)
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	return f, nil
}
