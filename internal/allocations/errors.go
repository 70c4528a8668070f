package allocations

import (
	"errors"
	"fmt"

	"github.com/railfleet/capacity-engine/internal/models"
)

var (
	ErrVersionConflict = models.ErrVersionConflict
	ErrTransient       = models.ErrTransient

	ErrInvalidTransition = errors.New("the status transition is not allowed")
	ErrNotReplannable    = fmt.Errorf("%w: only proposed and planned allocations can be re-planned", ErrInvalidTransition)
	ErrValidation        = errors.New("the allocation is invalid")
)

var (
	ErrAssetIDMissing     = fmt.Errorf("%w: the asset id must not be empty", ErrValidation)
	ErrAssetNumberMissing = fmt.Errorf("%w: the asset number must not be empty", ErrValidation)
	ErrTargetMonthMissing = fmt.Errorf("%w: the target month must be set", ErrValidation)
	ErrFacilityRequired   = fmt.Errorf("%w: a facility code is required for this status", ErrValidation)
	ErrStatusUnknown      = fmt.Errorf("%w: the status is unknown", ErrValidation)
	ErrInitialStatus      = fmt.Errorf("%w: allocations can only be created as proposed, planned or confirmed", ErrValidation)
	ErrVersionMissing     = fmt.Errorf("%w: the expected version must be set", ErrValidation)
	ErrActualCostStatus   = fmt.Errorf("%w: the actual cost can only be set on completion", ErrValidation)
	ErrActualDateStatus   = fmt.Errorf("%w: the actual date can only be set on arrival or completion", ErrValidation)
	ErrCostNegative       = fmt.Errorf("%w: %w", ErrValidation, models.ErrCostNegative)
	ErrFacilityMalformed  = fmt.Errorf("%w: %w", ErrValidation, models.ErrFacilityCodeMalformed)
)

// InvalidTransitionError is returned when a status change leaves the
// lifecycle graph. It unwraps to ErrInvalidTransition.
type InvalidTransitionError struct {
	From models.AllocationStatus
	To   models.AllocationStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("%s: %s to %s", ErrInvalidTransition.Error(), e.From, e.To)
}

func (e *InvalidTransitionError) Unwrap() error {
	return ErrInvalidTransition
}
