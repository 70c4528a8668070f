package transitions

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotRevertible   = errors.New("the last transition cannot be reverted")
	ErrAlreadyReverted = errors.New("the transition has already been reverted")
)

// Reasons reported by CanRevert.
const (
	ReasonNoTransition         = "no transition found"
	ReasonNoReversible         = "no reversible transition found"
	ReasonAlreadyReverted      = "already reverted"
	ReasonDownstreamDependency = "downstream record depends on this state"
)

// NotRevertibleError lists why a revert was refused. It unwraps to ErrNotRevertible.
type NotRevertibleError struct {
	Reasons []string
}

func (e *NotRevertibleError) Error() string {
	if len(e.Reasons) == 0 {
		return ErrNotRevertible.Error()
	}
	return fmt.Sprintf("%s: %s", ErrNotRevertible.Error(), strings.Join(e.Reasons, ", "))
}

func (e *NotRevertibleError) Unwrap() error {
	return ErrNotRevertible
}
