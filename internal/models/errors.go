package models

import (
	"errors"
	"fmt"
)

var (
	ErrGeneral          = errors.New("an error occurred on the server during your request")
	ErrResourceNotFound = errors.New("there is no")
	ErrTransient        = errors.New("the database is busy, please retry your request")
)

var (
	ErrCapacityNegative      = errors.New("total capacity must not be negative")
	ErrCostNegative          = errors.New("costs must not be negative")
	ErrFacilityCodeMalformed = errors.New("facility codes may only contain letters, digits, '-' and '_' and must be at most 32 characters long")
)

// ErrVersionConflict is returned when a write is based on a stale version.
var ErrVersionConflict = errors.New("the resource was modified by someone else, please reload it and try again")

// VersionConflictError describes a rejected write. It unwraps to ErrVersionConflict.
type VersionConflictError struct {
	Resource string
	Expected int
	Actual   int
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("%s: expected version %d, current version is %d", ErrVersionConflict.Error(), e.Expected, e.Actual)
}

func (e *VersionConflictError) Unwrap() error {
	return ErrVersionConflict
}
