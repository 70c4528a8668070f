package allocations

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/railfleet/capacity-engine/internal/models"
	"github.com/railfleet/capacity-engine/internal/types"
	"golang.org/x/exp/slices"
	"gorm.io/gorm"
)

// pair is a facility month of the capacity ledger.
type pair struct {
	facility string
	month    types.Month
}

func (p pair) equal(o pair) bool {
	return p.facility == o.facility && p.month.Equal(o.month)
}

func pairOf(a models.Allocation) (pair, bool) {
	if a.FacilityCode == nil {
		return pair{}, false
	}
	return pair{facility: *a.FacilityCode, month: a.TargetMonth}, true
}

// sortPairs orders pairs by facility and month, the order ledger rows are locked in.
func sortPairs(pairs []pair) []pair {
	slices.SortFunc(pairs, func(a, b pair) int {
		if c := strings.Compare(a.facility, b.facility); c != 0 {
			return c
		}

		switch {
		case a.month.Before(b.month):
			return -1
		case a.month.After(b.month):
			return 1
		}
		return 0
	})
	return pairs
}

// Replan moves a proposed or planned allocation to another facility or
// target month. Both ledger rows are recomputed in the same transaction.
//
// Confirmed and later allocations hold committed shop work and cannot be re-planned.
func (m *Manager) Replan(ctx context.Context, id uuid.UUID, in ReplanInput) (models.Allocation, error) {
	if err := in.validate(); err != nil {
		return models.Allocation{}, err
	}

	var before, a models.Allocation
	var rows []models.ShopMonthlyCapacity

	err := models.Transaction(ctx, m.db, func(tx *gorm.DB) (err error) {
		a, err = m.lock(tx, id)
		if err != nil {
			return err
		}
		before = a

		if err := m.checkVersion(a, in.ExpectedVersion); err != nil {
			return err
		}

		if a.Status != models.StatusProposed && a.Status != models.StatusPlanned {
			return ErrNotReplannable
		}

		if in.FacilityCode == "" && a.Status.RequiresFacility() {
			return ErrFacilityRequired
		}

		a.FacilityCode = nil
		if in.FacilityCode != "" {
			code := in.FacilityCode
			a.FacilityCode = &code
		}
		a.TargetMonth = in.TargetMonth
		a.Version++

		var pairs []pair
		for _, alloc := range []models.Allocation{before, a} {
			if p, ok := pairOf(alloc); ok && (len(pairs) == 0 || !pairs[0].equal(p)) {
				pairs = append(pairs, p)
			}
		}
		pairs = sortPairs(pairs)

		for _, p := range pairs {
			if _, err := m.ledger.Lock(tx, p.facility, p.month); err != nil {
				return err
			}
		}

		if err := tx.Save(&a).Error; err != nil {
			return err
		}

		if bucketOf(a.Status) == bucketNone {
			return nil
		}

		for _, p := range pairs {
			row, err := m.ledger.Recompute(tx, p.facility, p.month)
			if err != nil {
				return err
			}
			rows = append(rows, row)
		}

		return nil
	})
	if err != nil {
		return models.Allocation{}, err
	}

	m.afterReplan(ctx, before, a, in.ActorID, in.Notes, rows)
	return a, nil
}
