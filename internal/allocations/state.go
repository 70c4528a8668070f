package allocations

import (
	"github.com/railfleet/capacity-engine/internal/models"
)

// lifecycle is the status graph without cancellation, which is
// allowed from every non-terminal status.
var lifecycle = map[models.AllocationStatus]models.AllocationStatus{
	models.StatusProposed:  models.StatusPlanned,
	models.StatusPlanned:   models.StatusConfirmed,
	models.StatusConfirmed: models.StatusEnroute,
	models.StatusEnroute:   models.StatusArrived,
	models.StatusArrived:   models.StatusComplete,
}

// CanTransition reports if an allocation may move from one status to another.
func CanTransition(from, to models.AllocationStatus) bool {
	if from.Terminal() || from == to {
		return false
	}

	if to == models.StatusCancelled {
		return true
	}

	return lifecycle[from] == to
}

// Next returns the statuses an allocation in status s can move to.
func Next(s models.AllocationStatus) []models.AllocationStatus {
	next := make([]models.AllocationStatus, 0, 2)
	for _, to := range models.Statuses {
		if CanTransition(s, to) {
			next = append(next, to)
		}
	}
	return next
}

// Reversible reports if the transition from -> to may be reverted.
// Reverting restores from, which is only safe for statuses that hold no
// committed shop work. Transitions into a terminal status are final.
func Reversible(from, to models.AllocationStatus) bool {
	if to.Terminal() {
		return false
	}

	return from == models.StatusProposed || from == models.StatusPlanned
}

// bucket identifies the ledger count an allocation in status s is part of.
type bucket int

const (
	bucketNone bucket = iota
	bucketPlanned
	bucketConfirmed
)

func bucketOf(s models.AllocationStatus) bucket {
	switch {
	case s.CountsAsConfirmed():
		return bucketConfirmed
	case s.CountsAsPlanned():
		return bucketPlanned
	default:
		return bucketNone
	}
}

// initialStatuses are the statuses an allocation can be created in.
var initialStatuses = []models.AllocationStatus{
	models.StatusProposed,
	models.StatusPlanned,
	models.StatusConfirmed,
}
