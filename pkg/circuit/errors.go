package circuit

import (
	"errors"
	"fmt"
)

// Sentinel errors for the model validation failures.
var (
	ErrDuplicateReference = errors.New("circuit: duplicate reference")
	ErrDegenerateNet      = errors.New("circuit: degenerate net")
	ErrHierarchyCycle     = errors.New("circuit: hierarchy cycle")
	ErrUnknownEndpoint    = errors.New("circuit: unknown endpoint")
	ErrSharedEndpoint     = errors.New("circuit: endpoint on several nets")
)

// ErrorKind classifies a ModelError
type ErrorKind int

const (
	// DuplicateReference: two components share a reference designator.
	DuplicateReference ErrorKind = iota
	// DegenerateNet: a net has fewer than two distinct endpoints.
	DegenerateNet
	// HierarchyCycle: following sheet parents never reaches the root.
	HierarchyCycle
	// UnknownEndpoint: a net endpoint names a component or pin that does
	// not exist. The parser rejects these already; netlists built in code
	// can still carry them.
	UnknownEndpoint
	// SharedEndpoint: one component pin is claimed by two different nets.
	SharedEndpoint
)

func (k ErrorKind) String() string {
	switch k {
	case DuplicateReference:
		return "duplicate reference"
	case DegenerateNet:
		return "degenerate net"
	case HierarchyCycle:
		return "hierarchy cycle"
	case UnknownEndpoint:
		return "unknown endpoint"
	case SharedEndpoint:
		return "shared endpoint"
	default:
		return "model error"
	}
}

// ModelError names the entity that violates a model invariant: a reference
// designator, a net name or a sheet path.
type ModelError struct {
	Kind    ErrorKind
	Subject string
	Detail  string
}

func (e *ModelError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s %q: %s", e.Kind, e.Subject, e.Detail)
	}
	return fmt.Sprintf("%s %q", e.Kind, e.Subject)
}

// Is matches the sentinel error of the error kind.
func (e *ModelError) Is(target error) bool {
	switch e.Kind {
	case DuplicateReference:
		return target == ErrDuplicateReference
	case DegenerateNet:
		return target == ErrDegenerateNet
	case HierarchyCycle:
		return target == ErrHierarchyCycle
	case UnknownEndpoint:
		return target == ErrUnknownEndpoint
	case SharedEndpoint:
		return target == ErrSharedEndpoint
	}
	return false
}
