package ledger

import (
	"errors"
	"fmt"

	"github.com/railfleet/capacity-engine/internal/types"
)

var ErrCapacityExceeded = errors.New("the facility has no capacity left for this month")

// CapacityExceededError is returned when confirming an allocation would
// overbook a facility month beyond the overcommit tolerance.
type CapacityExceededError struct {
	Facility  string
	Month     types.Month
	Total     int
	Used      int
	Tolerance int
}

func (e *CapacityExceededError) Error() string {
	return fmt.Sprintf("%s: %s in %s uses %d of %d slots, overcommit tolerance is %d",
		ErrCapacityExceeded.Error(), e.Facility, e.Month, e.Used, e.Total, e.Tolerance)
}

func (e *CapacityExceededError) Unwrap() error {
	return ErrCapacityExceeded
}
