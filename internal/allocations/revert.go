package allocations

import (
	"context"

	"github.com/google/uuid"
	"github.com/railfleet/capacity-engine/internal/metrics"
	"github.com/railfleet/capacity-engine/internal/models"
	"github.com/railfleet/capacity-engine/internal/transitions"
	"gorm.io/gorm"
)

// ReasonStateChanged is reported when the allocation left the state its last
// logged transition moved it to.
const ReasonStateChanged = "entity state changed since transition"

// eligibility extends the transition log's decision with the current state of a.
func eligibility(ctx context.Context, log *transitions.Log, a models.Allocation) (transitions.Eligibility, error) {
	result, err := log.CanRevert(ctx, models.ProcessAllocation, a.ID)
	if err != nil {
		return result, err
	}

	if result.Entry != nil && result.Revertible && result.Entry.ToState != string(a.Status) {
		result.Revertible = false
		result.Reasons = append(result.Reasons, ReasonStateChanged)
	}

	return result, nil
}

// CanRevert reports if the last transition of the allocation can be reverted.
func (m *Manager) CanRevert(ctx context.Context, id uuid.UUID) (transitions.Eligibility, error) {
	a, err := m.GetByID(ctx, id)
	if err != nil {
		return transitions.Eligibility{}, err
	}

	return eligibility(ctx, m.log, a)
}

// RevertLastTransition moves the allocation back to the status its last
// transition left, if that transition is reversible. The reversal is logged
// as a transition of its own that cannot be reverted.
func (m *Manager) RevertLastTransition(ctx context.Context, id uuid.UUID, actorID, notes string) (models.Allocation, error) {
	var before, a models.Allocation
	var row *models.ShopMonthlyCapacity

	err := models.Transaction(ctx, m.db, func(tx *gorm.DB) (err error) {
		a, err = m.lock(tx, id)
		if err != nil {
			return err
		}
		before = a

		log := m.log.WithTx(tx)
		result, err := eligibility(ctx, log, a)
		if err != nil {
			return err
		}

		if err := result.Err(); err != nil {
			return err
		}
		entry := result.Entry

		a.Status = models.AllocationStatus(entry.FromState)
		a.Version++
		if err := tx.Save(&a).Error; err != nil {
			return err
		}

		row, err = m.recomputeIfMoved(tx, before, a)
		if err != nil {
			return err
		}

		reversal := models.TransitionLogEntry{
			ProcessType:  models.ProcessAllocation,
			EntityID:     a.ID,
			EntityNumber: a.AssetNumber,
			FromState:    string(before.Status),
			ToState:      string(a.Status),
			IsReversible: false,
			ActorID:      actorID,
			Notes:        notes,
			ReversalOfID: &entry.ID,
		}

		if err := log.LogTransition(ctx, &reversal); err != nil {
			return err
		}

		return log.MarkReverted(ctx, entry.ID, actorID, reversal.ID)
	})
	if err != nil {
		return models.Allocation{}, err
	}

	metrics.Reverts.Inc()
	m.afterRevert(ctx, before, a, actorID, row)
	return a, nil
}
