// Package allocations owns the lifecycle of allocations.
//
// Every capacity-affecting write runs in one transaction that locks the
// allocation row first and the capacity ledger rows after it, in facility
// and month order. Version and capacity checks fail inside that transaction.
// Transition log appends, asset history and change events run after commit
// and never fail the operation.
package allocations

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/railfleet/capacity-engine/internal/history"
	"github.com/railfleet/capacity-engine/internal/ledger"
	"github.com/railfleet/capacity-engine/internal/metrics"
	"github.com/railfleet/capacity-engine/internal/models"
	"github.com/railfleet/capacity-engine/internal/notify"
	"github.com/railfleet/capacity-engine/internal/transitions"
	"gorm.io/gorm"
)

type Options struct {
	Ledger   *ledger.Ledger
	Log      *transitions.Log
	Notifier notify.Notifier
	History  *history.Recorder
}

type Manager struct {
	db       *gorm.DB
	ledger   *ledger.Ledger
	log      *transitions.Log
	notifier notify.Notifier
	history  *history.Recorder
}

// New creates a Manager on db. Missing dependencies are created with
// their defaults on the same database.
func New(db *gorm.DB, opts Options) *Manager {
	m := &Manager{
		db:       db,
		ledger:   opts.Ledger,
		log:      opts.Log,
		notifier: opts.Notifier,
		history:  opts.History,
	}

	if m.ledger == nil {
		m.ledger = ledger.New(db, ledger.Options{Notifier: opts.Notifier})
	}

	if m.log == nil {
		m.log = transitions.New(db, AssignmentGuard{})
	}

	if m.notifier == nil {
		m.notifier = notify.Nop{}
	}

	if m.history == nil {
		m.history = history.New(db)
	}

	return m
}

// Ledger returns the capacity ledger the manager writes to.
func (m *Manager) Ledger() *ledger.Ledger {
	return m.ledger
}

// Log returns the transition log of the manager.
func (m *Manager) Log() *transitions.Log {
	return m.log
}

// History returns the asset history recorder of the manager.
func (m *Manager) History() *history.Recorder {
	return m.history
}

// lock reads the allocation and locks it until tx ends.
func (m *Manager) lock(tx *gorm.DB, id uuid.UUID) (models.Allocation, error) {
	var a models.Allocation
	err := models.ForUpdate(tx).First(&a, "id = ?", id).Error
	return a, err
}

func (m *Manager) checkVersion(a models.Allocation, expected int) error {
	if a.Version == expected {
		return nil
	}

	metrics.VersionConflicts.WithLabelValues("allocation").Inc()
	return &models.VersionConflictError{Resource: "allocation", Expected: expected, Actual: a.Version}
}

// Create validates the input and creates the allocation at version 1.
//
// Allocations created as confirmed must fit the capacity of their facility month.
func (m *Manager) Create(ctx context.Context, in CreateInput) (models.Allocation, error) {
	if err := in.Validate(); err != nil {
		return models.Allocation{}, err
	}

	a := in.model()
	var row *models.ShopMonthlyCapacity

	err := models.Transaction(ctx, m.db, func(tx *gorm.DB) error {
		if a.FacilityCode != nil {
			locked, err := m.ledger.Lock(tx, *a.FacilityCode, a.TargetMonth)
			if err != nil {
				return err
			}

			if a.Status == models.StatusConfirmed {
				if err := m.ledger.CheckConfirm(locked, false); err != nil {
					return err
				}
			}
		}

		if err := tx.Create(&a).Error; err != nil {
			return err
		}

		if a.FacilityCode == nil {
			return nil
		}

		recomputed, err := m.ledger.Recompute(tx, *a.FacilityCode, a.TargetMonth)
		row = &recomputed
		return err
	})
	if err != nil {
		return models.Allocation{}, err
	}

	m.afterCreate(ctx, a, row)
	return a, nil
}

// UpdateStatus moves the allocation to a new status.
//
// The change must be based on the current version of the allocation. Moving
// into confirmed is checked against the capacity of the facility month.
func (m *Manager) UpdateStatus(ctx context.Context, id uuid.UUID, change StatusChange) (models.Allocation, error) {
	if err := change.validate(); err != nil {
		return models.Allocation{}, err
	}

	var before, a models.Allocation
	var row *models.ShopMonthlyCapacity

	err := models.Transaction(ctx, m.db, func(tx *gorm.DB) (err error) {
		a, err = m.lock(tx, id)
		if err != nil {
			return err
		}
		before = a

		if err := m.checkVersion(a, change.ExpectedVersion); err != nil {
			return err
		}

		if !CanTransition(a.Status, change.Status) {
			return &InvalidTransitionError{From: a.Status, To: change.Status}
		}

		if change.Status.RequiresFacility() && a.FacilityCode == nil {
			return ErrFacilityRequired
		}

		if change.Status == models.StatusConfirmed && !a.Status.CountsAsConfirmed() {
			locked, err := m.ledger.Lock(tx, *a.FacilityCode, a.TargetMonth)
			if err != nil {
				return err
			}

			if err := m.ledger.CheckConfirm(locked, a.Status.CountsAsPlanned()); err != nil {
				return err
			}
		}

		apply(&a, change)
		if err := tx.Save(&a).Error; err != nil {
			return err
		}

		row, err = m.recomputeIfMoved(tx, before, a)
		return err
	})
	if err != nil {
		return models.Allocation{}, err
	}

	m.afterStatusChange(ctx, before, a, change.ActorID, change.Notes, row)
	return a, nil
}

// apply writes the status change to a and bumps its version.
func apply(a *models.Allocation, change StatusChange) {
	now := time.Now().UTC()
	date := change.ActualDate
	if date == nil {
		date = &now
	}

	switch change.Status {
	case models.StatusArrived:
		a.ActualArrivalDate = date
	case models.StatusComplete:
		a.ActualCompletionDate = date
		a.ActualCost = change.ActualCost
	}

	a.Status = change.Status
	a.Version++
}

// recomputeIfMoved recomputes the ledger row of a when the status change
// moved it between ledger buckets.
func (m *Manager) recomputeIfMoved(tx *gorm.DB, before, after models.Allocation) (*models.ShopMonthlyCapacity, error) {
	if after.FacilityCode == nil || bucketOf(before.Status) == bucketOf(after.Status) {
		return nil, nil
	}

	row, err := m.ledger.Recompute(tx, *after.FacilityCode, after.TargetMonth)
	if err != nil {
		return nil, err
	}

	return &row, nil
}

// Delete removes the allocation and recomputes its ledger row in the same transaction.
func (m *Manager) Delete(ctx context.Context, id uuid.UUID, actorID string) error {
	var a models.Allocation
	var row *models.ShopMonthlyCapacity

	err := models.Transaction(ctx, m.db, func(tx *gorm.DB) (err error) {
		a, err = m.lock(tx, id)
		if err != nil {
			return err
		}

		if err := tx.Delete(&models.Allocation{}, "id = ?", id).Error; err != nil {
			return err
		}

		if a.FacilityCode == nil {
			return nil
		}

		recomputed, err := m.ledger.Recompute(tx, *a.FacilityCode, a.TargetMonth)
		row = &recomputed
		return err
	})
	if err != nil {
		return err
	}

	m.afterDelete(ctx, a, actorID, row)
	return nil
}
