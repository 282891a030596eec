package atopile

import (
	"errors"
	"strings"
)

// Sentinel errors for generation failures.
var (
	// ErrUnresolvedDefinition indicates a component without a part definition.
	ErrUnresolvedDefinition = errors.New("atopile: unresolved definition")
	// ErrNameCollision indicates two emitted identifiers or files clash.
	ErrNameCollision = errors.New("atopile: name collision")
)

// ErrorKind classifies a GenError
type ErrorKind int

const (
	UnresolvedDefinition ErrorKind = iota
	NameCollision
)

// GenError reports a failure to emit a consistent project.
type GenError struct {
	Kind    ErrorKind
	Subject string // identifier, designator or file path
	Scope   string // module or file the clash happened in, if any
	Message string
}

// Error implements the error interface.
func (e *GenError) Error() string {
	var b strings.Builder
	switch e.Kind {
	case UnresolvedDefinition:
		b.WriteString("atopile: unresolved definition")
	case NameCollision:
		b.WriteString("atopile: name collision")
	default:
		b.WriteString("atopile: generation error")
	}
	if e.Subject != "" {
		b.WriteString(" ")
		b.WriteString(e.Subject)
	}
	if e.Scope != "" {
		b.WriteString(" in ")
		b.WriteString(e.Scope)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	return b.String()
}

// Is reports whether the target matches the sentinel error of the kind.
func (e *GenError) Is(target error) bool {
	switch e.Kind {
	case UnresolvedDefinition:
		return target == ErrUnresolvedDefinition
	case NameCollision:
		return target == ErrNameCollision
	}
	return false
}

func collision(subject, scope, msg string) *GenError {
	return &GenError{Kind: NameCollision, Subject: subject, Scope: scope, Message: msg}
}
