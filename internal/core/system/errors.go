package system

import (
	"errors"
	"fmt"

	"github.com/l1jgo/ecsched/internal/core/typeid"
)

var (
	ErrInvalidDependency = errors.New("system: invalid dependency")
	ErrHandleDisposed    = errors.New("system: handle already disposed")
)

// Reason classifies a DependencyError.
type Reason int

const (
	ReasonSelf    Reason = iota + 1 // a system refers to itself
	ReasonMissing                   // a referenced system is not in the chain
	ReasonCycle                     // the ordering constraints form a cycle
)

func (r Reason) String() string {
	switch r {
	case ReasonSelf:
		return "depends on itself"
	case ReasonMissing:
		return "references a system outside the chain"
	case ReasonCycle:
		return "is part of a dependency cycle"
	default:
		return "invalid"
	}
}

// DependencyError reports an unsatisfiable ordering constraint. Dependency is
// zero for cycles.
type DependencyError struct {
	System     typeid.ID
	Dependency typeid.ID
	Reason     Reason
}

func (e *DependencyError) Error() string {
	if e.Dependency == 0 {
		return fmt.Sprintf("system: %s %s", e.System, e.Reason)
	}
	return fmt.Sprintf("system: %s %s: %s", e.System, e.Reason, e.Dependency)
}

func (e *DependencyError) Is(target error) bool {
	return target == ErrInvalidDependency
}
