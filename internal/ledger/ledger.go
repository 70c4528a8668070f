// Package ledger maintains the per facility and month capacity ledger.
//
// Ledger rows are created lazily with the default capacity when a facility
// month is first referenced. Their confirmed and planned counts are never
// adjusted incrementally. They are recomputed from the live allocations
// inside the transaction that changed them.
package ledger

import (
	"context"
	"errors"

	"github.com/railfleet/capacity-engine/internal/metrics"
	"github.com/railfleet/capacity-engine/internal/models"
	"github.com/railfleet/capacity-engine/internal/notify"
	"github.com/railfleet/capacity-engine/internal/types"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultOvercommitFraction is the share of the total capacity a facility
// month may be overbooked by.
var DefaultOvercommitFraction = decimal.NewFromFloat(0.10)

// Reader reads ledger rows without locking them.
type Reader interface {
	Read(ctx context.Context, facility string, month types.Month) (models.ShopMonthlyCapacity, bool, error)
}

type Options struct {
	// DefaultCapacity is the total capacity of lazily created rows.
	DefaultCapacity int

	// OvercommitFraction defaults to DefaultOvercommitFraction when nil.
	// Zero disables overcommitting, negative values are treated as zero.
	OvercommitFraction *decimal.Decimal

	Notifier notify.Notifier
}

type Ledger struct {
	db              *gorm.DB
	defaultCapacity int
	fraction        decimal.Decimal
	notifier        notify.Notifier
}

// New creates a ledger on db.
func New(db *gorm.DB, opts Options) *Ledger {
	fraction := DefaultOvercommitFraction
	if opts.OvercommitFraction != nil {
		fraction = *opts.OvercommitFraction
	}

	if fraction.IsNegative() {
		fraction = decimal.Zero
	}

	notifier := opts.Notifier
	if notifier == nil {
		notifier = notify.Nop{}
	}

	return &Ledger{
		db:              db,
		defaultCapacity: opts.DefaultCapacity,
		fraction:        fraction,
		notifier:        notifier,
	}
}

// Tolerance is the number of slots a facility month with the given total
// capacity may be overbooked by.
func (l *Ledger) Tolerance(total int) int {
	return int(decimal.NewFromInt(int64(total)).Mul(l.fraction).Ceil().IntPart())
}

// EnsureExists creates the ledger row for the facility month with the
// default capacity if it does not exist yet. It reports if the row was created.
func (l *Ledger) EnsureExists(tx *gorm.DB, facility string, month types.Month) (bool, error) {
	return l.ensure(tx, facility, month, l.defaultCapacity)
}

func (l *Ledger) ensure(tx *gorm.DB, facility string, month types.Month, total int) (bool, error) {
	row := models.ShopMonthlyCapacity{
		FacilityCode:  models.NormalizeFacilityCode(facility),
		Month:         month,
		TotalCapacity: total,
		Version:       1,
	}

	res := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "facility_code"}, {Name: "month"}},
		DoNothing: true,
	}).Create(&row)

	if res.Error != nil {
		return false, res.Error
	}

	return res.RowsAffected == 1, nil
}

// GetForUpdate reads the ledger row and locks it until tx ends.
//
// It returns an error wrapping models.ErrResourceNotFound when the row does not exist.
func (l *Ledger) GetForUpdate(tx *gorm.DB, facility string, month types.Month) (models.ShopMonthlyCapacity, error) {
	var row models.ShopMonthlyCapacity
	err := models.ForUpdate(tx).
		Where("facility_code = ? AND month = ?", models.NormalizeFacilityCode(facility), month).
		First(&row).Error

	return row, err
}

// Lock ensures the ledger row exists and locks it.
func (l *Ledger) Lock(tx *gorm.DB, facility string, month types.Month) (models.ShopMonthlyCapacity, error) {
	if _, err := l.EnsureExists(tx, facility, month); err != nil {
		return models.ShopMonthlyCapacity{}, err
	}

	return l.GetForUpdate(tx, facility, month)
}

// Read returns the ledger row of the facility month. found is false if
// the row does not exist.
func (l *Ledger) Read(ctx context.Context, facility string, month types.Month) (models.ShopMonthlyCapacity, bool, error) {
	var row models.ShopMonthlyCapacity
	err := l.db.WithContext(ctx).
		Where("facility_code = ? AND month = ?", models.NormalizeFacilityCode(facility), month).
		First(&row).Error

	if errors.Is(err, models.ErrResourceNotFound) {
		return row, false, nil
	} else if err != nil {
		return row, false, err
	}

	return row, true, nil
}

// ReadRange returns the existing ledger rows of the facility for the
// given months, ordered by month.
func (l *Ledger) ReadRange(ctx context.Context, facility string, months []types.Month) ([]models.ShopMonthlyCapacity, error) {
	rows := make([]models.ShopMonthlyCapacity, 0)
	if len(months) == 0 {
		return rows, nil
	}

	err := l.db.WithContext(ctx).
		Where("facility_code = ? AND month IN ?", models.NormalizeFacilityCode(facility), months).
		Order("month ASC").
		Find(&rows).Error

	return rows, err
}

// Recompute sets the confirmed and planned counts of the facility month to
// the number of live allocations in each bucket. The row is created when
// missing. Must be called inside the transaction that changed the allocations.
func (l *Ledger) Recompute(tx *gorm.DB, facility string, month types.Month) (models.ShopMonthlyCapacity, error) {
	facility = models.NormalizeFacilityCode(facility)

	row, err := l.Lock(tx, facility, month)
	if err != nil {
		return row, err
	}

	var buckets []struct {
		Status models.AllocationStatus
		Count  int
	}

	err = tx.Model(&models.Allocation{}).
		Select("status, COUNT(*) AS count").
		Where("facility_code = ? AND target_month = ?", facility, month).
		Group("status").
		Scan(&buckets).Error
	if err != nil {
		return row, err
	}

	row.ConfirmedCount = 0
	row.PlannedCount = 0
	for _, b := range buckets {
		if b.Status.CountsAsConfirmed() {
			row.ConfirmedCount += b.Count
		} else if b.Status.CountsAsPlanned() {
			row.PlannedCount += b.Count
		}
	}

	err = tx.Save(&row).Error
	return row, err
}

// CheckConfirm verifies that one more allocation can be confirmed in the
// facility month of row. When selfCounted is true, the allocation is already
// part of the row's counts and is excluded from the check.
//
// A confirmation is allowed as long as the used slots exceed the total by
// less than the tolerance. A total of zero rejects every confirmation.
func (l *Ledger) CheckConfirm(row models.ShopMonthlyCapacity, selfCounted bool) error {
	used := row.Used()
	if selfCounted && used > 0 {
		used--
	}

	tolerance := l.Tolerance(row.TotalCapacity)
	if row.TotalCapacity > 0 && used-row.TotalCapacity < tolerance {
		return nil
	}

	metrics.CapacityRejections.WithLabelValues(row.FacilityCode).Inc()
	return &CapacityExceededError{
		Facility:  row.FacilityCode,
		Month:     row.Month,
		Total:     row.TotalCapacity,
		Used:      used,
		Tolerance: tolerance,
	}
}

// SetCapacity sets the total capacity of the facility month.
//
// If expectedVersion is not zero, it must match the version of the existing
// row. A row that does not exist yet is created with the new total at version 1.
func (l *Ledger) SetCapacity(ctx context.Context, facility string, month types.Month, total, expectedVersion int, actorID string) (models.ShopMonthlyCapacity, error) {
	facility = models.NormalizeFacilityCode(facility)
	if !models.ValidFacilityCode(facility) {
		return models.ShopMonthlyCapacity{}, models.ErrFacilityCodeMalformed
	}

	if total < 0 {
		return models.ShopMonthlyCapacity{}, models.ErrCapacityNegative
	}

	var row models.ShopMonthlyCapacity
	err := models.Transaction(ctx, l.db, func(tx *gorm.DB) error {
		created, err := l.ensure(tx, facility, month, total)
		if err != nil {
			return err
		}

		row, err = l.GetForUpdate(tx, facility, month)
		if err != nil || created {
			return err
		}

		if expectedVersion != 0 && row.Version != expectedVersion {
			metrics.VersionConflicts.WithLabelValues("capacity").Inc()
			return &models.VersionConflictError{Resource: "capacity", Expected: expectedVersion, Actual: row.Version}
		}

		row.TotalCapacity = total
		row.Version++
		return tx.Save(&row).Error
	})
	if err != nil {
		return models.ShopMonthlyCapacity{}, err
	}

	l.notifier.CapacityChanged(notify.SnapshotOf(row), actorID)
	return row, nil
}
