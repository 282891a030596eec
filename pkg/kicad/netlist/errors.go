package netlist

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors matched with errors.Is against a *ParseError.
var (
	ErrMalformed         = errors.New("netlist: malformed")
	ErrDanglingReference = errors.New("netlist: dangling reference")
)

// ErrorKind classifies a ParseError
type ErrorKind int

const (
	// Malformed means the structural grammar was violated: unbalanced
	// grouping, a wrong root node or a missing required field.
	Malformed ErrorKind = iota
	// DanglingReference means a net node names a component or pin that
	// does not exist.
	DanglingReference
)

func (k ErrorKind) String() string {
	switch k {
	case Malformed:
		return "malformed netlist"
	case DanglingReference:
		return "dangling reference"
	default:
		return "parse error"
	}
}

// ParseError is returned by Parse. Line and Column locate the offending
// node when known; Subject names the offending entity.
type ParseError struct {
	Kind    ErrorKind
	Line    int
	Column  int
	Subject string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if e.Line > 0 {
		fmt.Fprintf(&b, " at %d:%d", e.Line, e.Column)
	}
	if e.Subject != "" {
		fmt.Fprintf(&b, ": %s", e.Subject)
	}
	if e.Message != "" {
		fmt.Fprintf(&b, ": %s", e.Message)
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

// Unwrap returns the underlying error.
func (e *ParseError) Unwrap() error {
	return e.Cause
}

// Is matches the sentinel error of the error kind.
func (e *ParseError) Is(target error) bool {
	switch e.Kind {
	case Malformed:
		return target == ErrMalformed
	case DanglingReference:
		return target == ErrDanglingReference
	}
	return false
}
