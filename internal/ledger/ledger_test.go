package ledger_test

import (
	"context"
	"errors"

	"github.com/railfleet/capacity-engine/internal/ledger"
	"github.com/railfleet/capacity-engine/internal/models"
	"github.com/railfleet/capacity-engine/internal/types"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var march = types.NewMonth(2026, 3)

func (suite *TestSuiteStandard) TestTolerance() {
	tests := []struct {
		name      string
		fraction  decimal.Decimal
		total     int
		tolerance int
	}{
		{"Default fraction", ledger.DefaultOvercommitFraction, 10, 1},
		{"Rounds up", ledger.DefaultOvercommitFraction, 25, 3},
		{"Single slot", ledger.DefaultOvercommitFraction, 1, 1},
		{"No capacity", ledger.DefaultOvercommitFraction, 0, 0},
		{"Custom fraction", decimal.NewFromFloat(0.25), 10, 3},
		{"Disabled", decimal.Zero, 10, 0},
		{"Disabled single slot", decimal.Zero, 1, 0},
		{"Negative", decimal.NewFromInt(-1), 10, 0},
	}

	for _, tt := range tests {
		suite.Run(tt.name, func() {
			suite.Assert().Equal(tt.tolerance, suite.ledger(0, tt.fraction).Tolerance(tt.total))
		})
	}
}

func (suite *TestSuiteStandard) TestToleranceUnset() {
	l := ledger.New(models.DB, ledger.Options{})
	suite.Assert().Equal(1, l.Tolerance(10), "A nil fraction uses the default")
}

func (suite *TestSuiteStandard) TestCheckConfirm() {
	l := suite.ledger(0, ledger.DefaultOvercommitFraction)

	tests := []struct {
		name        string
		total       int
		confirmed   int
		planned     int
		selfCounted bool
		allowed     bool
	}{
		{"Ninth of ten", 10, 8, 0, false, true},
		{"Tenth of ten", 10, 9, 0, false, true},
		{"Eleventh within tolerance", 10, 10, 0, false, true},
		{"Twelfth exceeds tolerance", 10, 11, 0, false, false},
		{"Planned counts as used", 10, 6, 5, false, false},
		{"Planned allocation confirming itself", 10, 6, 5, true, true},
		{"No capacity", 0, 0, 0, false, false},
		{"No capacity, self counted", 0, 0, 1, true, false},
	}

	for _, tt := range tests {
		suite.Run(tt.name, func() {
			row := models.ShopMonthlyCapacity{
				FacilityCode:   "F1",
				Month:          march,
				TotalCapacity:  tt.total,
				ConfirmedCount: tt.confirmed,
				PlannedCount:   tt.planned,
			}

			err := l.CheckConfirm(row, tt.selfCounted)
			if tt.allowed {
				suite.Assert().Nil(err)
				return
			}

			suite.Assert().ErrorIs(err, ledger.ErrCapacityExceeded)

			var exceeded *ledger.CapacityExceededError
			suite.Require().True(errors.As(err, &exceeded))
			suite.Assert().Equal("F1", exceeded.Facility)
			suite.Assert().Equal(tt.total, exceeded.Total)
			suite.Assert().Equal(l.Tolerance(tt.total), exceeded.Tolerance)
			suite.Assert().Contains(err.Error(), "2026-03")
		})
	}
}

func (suite *TestSuiteStandard) TestCheckConfirmWithoutOvercommit() {
	l := suite.ledger(0, decimal.Zero)
	row := models.ShopMonthlyCapacity{FacilityCode: "F1", Month: march, TotalCapacity: 1, PlannedCount: 1}

	suite.Assert().ErrorIs(l.CheckConfirm(row, false), ledger.ErrCapacityExceeded)
	suite.Assert().Nil(l.CheckConfirm(row, true))
}

func (suite *TestSuiteStandard) TestEnsureExists() {
	l := suite.ledger(4, ledger.DefaultOvercommitFraction)

	created, err := l.EnsureExists(models.DB, " f1", march)
	suite.Require().Nil(err)
	suite.Assert().True(created)

	created, err = l.EnsureExists(models.DB, "F1", march)
	suite.Require().Nil(err)
	suite.Assert().False(created, "Second call must not create another row")

	row, found, err := l.Read(context.Background(), "F1", march)
	suite.Require().Nil(err)
	suite.Require().True(found)
	suite.Assert().Equal(4, row.TotalCapacity)
	suite.Assert().Equal(4, row.RemainingCapacity)
	suite.Assert().Equal(1, row.Version)

	var count int64
	models.DB.Model(&models.ShopMonthlyCapacity{}).Count(&count)
	suite.Assert().Equal(int64(1), count)
}

func (suite *TestSuiteStandard) TestGetForUpdateMissing() {
	l := suite.ledger(0, ledger.DefaultOvercommitFraction)

	err := models.Transaction(context.Background(), models.DB, func(tx *gorm.DB) error {
		_, err := l.GetForUpdate(tx, "F1", march)
		return err
	})

	suite.Assert().ErrorIs(err, models.ErrResourceNotFound)
	suite.Assert().Contains(err.Error(), "shop monthly capacity")
}

func (suite *TestSuiteStandard) TestReadMissing() {
	_, found, err := suite.ledger(0, ledger.DefaultOvercommitFraction).Read(context.Background(), "F1", march)
	suite.Assert().Nil(err)
	suite.Assert().False(found)
}

func (suite *TestSuiteStandard) TestReadClosedDatabase() {
	l := suite.ledger(0, ledger.DefaultOvercommitFraction)
	sqlDB, _ := models.DB.DB()
	sqlDB.Close()

	_, _, err := l.Read(context.Background(), "F1", march)
	suite.Assert().ErrorIs(err, models.ErrGeneral)
}

func (suite *TestSuiteStandard) TestReadRange() {
	l := suite.ledger(2, ledger.DefaultOvercommitFraction)

	for _, m := range []types.Month{march.AddDate(0, 2), march, march.AddDate(0, 1)} {
		_, err := l.EnsureExists(models.DB, "F1", m)
		suite.Require().Nil(err)
	}
	_, err := l.EnsureExists(models.DB, "F2", march)
	suite.Require().Nil(err)

	rows, err := l.ReadRange(context.Background(), "F1", march.AddDate(0, -1).Range(march.AddDate(0, 2)))
	suite.Require().Nil(err)
	suite.Require().Len(rows, 3)

	for i, row := range rows {
		suite.Assert().Equal("F1", row.FacilityCode)
		suite.Assert().True(march.AddDate(0, i).Equal(row.Month), "Row %d is for %s", i, row.Month)
	}

	rows, err = l.ReadRange(context.Background(), "F1", nil)
	suite.Assert().Nil(err)
	suite.Assert().Empty(rows)
}

func (suite *TestSuiteStandard) TestRecompute() {
	l := suite.ledger(10, ledger.DefaultOvercommitFraction)

	for _, status := range models.Statuses {
		suite.createAllocation("F1", march, status)
	}
	suite.createAllocation("F1", march, models.StatusPlanned)
	suite.createAllocation("F1", march.AddDate(0, 1), models.StatusConfirmed)
	suite.createAllocation("F2", march, models.StatusConfirmed)

	var row models.ShopMonthlyCapacity
	err := models.Transaction(context.Background(), models.DB, func(tx *gorm.DB) (err error) {
		row, err = l.Recompute(tx, "f1", march)
		return err
	})
	suite.Require().Nil(err)

	suite.Assert().Equal(4, row.ConfirmedCount, "confirmed, enroute, arrived and complete are confirmed")
	suite.Assert().Equal(2, row.PlannedCount)
	suite.Assert().Equal(4, row.RemainingCapacity)
	suite.Assert().True(decimal.NewFromInt(60).Equal(row.UtilizationPct))
	suite.Assert().Equal(1, row.Version, "Recomputation does not bump the version")

	stored, found, err := l.Read(context.Background(), "F1", march)
	suite.Require().Nil(err)
	suite.Require().True(found)
	suite.Assert().Equal(row.ConfirmedCount, stored.ConfirmedCount)
	suite.Assert().Equal(row.PlannedCount, stored.PlannedCount)
}

func (suite *TestSuiteStandard) TestRecomputeRollsBack() {
	l := suite.ledger(10, ledger.DefaultOvercommitFraction)
	suite.createAllocation("F1", march, models.StatusConfirmed)

	rollback := errors.New("rollback")
	err := models.Transaction(context.Background(), models.DB, func(tx *gorm.DB) error {
		if _, err := l.Recompute(tx, "F1", march); err != nil {
			return err
		}
		return rollback
	})
	suite.Require().ErrorIs(err, rollback)

	_, found, err := l.Read(context.Background(), "F1", march)
	suite.Assert().Nil(err)
	suite.Assert().False(found, "The lazily created row must be rolled back")
}

func (suite *TestSuiteStandard) TestSetCapacity() {
	l := suite.ledger(0, ledger.DefaultOvercommitFraction)
	ctx := context.Background()

	row, err := l.SetCapacity(ctx, "f1", march, 8, 0, "admin")
	suite.Require().Nil(err)
	suite.Assert().Equal("F1", row.FacilityCode)
	suite.Assert().Equal(8, row.TotalCapacity)
	suite.Assert().Equal(1, row.Version)

	row, err = l.SetCapacity(ctx, "F1", march, 12, 1, "admin")
	suite.Require().Nil(err)
	suite.Assert().Equal(12, row.TotalCapacity)
	suite.Assert().Equal(2, row.Version)

	_, err = l.SetCapacity(ctx, "F1", march, 3, 1, "admin")
	suite.Assert().ErrorIs(err, models.ErrVersionConflict)

	var conflict *models.VersionConflictError
	suite.Require().True(errors.As(err, &conflict))
	suite.Assert().Equal(1, conflict.Expected)
	suite.Assert().Equal(2, conflict.Actual)

	stored, _, err := l.Read(ctx, "F1", march)
	suite.Require().Nil(err)
	suite.Assert().Equal(12, stored.TotalCapacity, "Rejected writes must not change the row")

	suite.Require().Len(suite.notifier.snapshots, 2)
	suite.Assert().Equal(12, suite.notifier.snapshots[1].TotalCapacity)
	suite.Assert().Equal(2, suite.notifier.snapshots[1].Version)
}

func (suite *TestSuiteStandard) TestSetCapacityKeepsCounts() {
	l := suite.ledger(10, ledger.DefaultOvercommitFraction)
	suite.createAllocation("F1", march, models.StatusConfirmed)

	err := models.Transaction(context.Background(), models.DB, func(tx *gorm.DB) error {
		_, err := l.Recompute(tx, "F1", march)
		return err
	})
	suite.Require().Nil(err)

	row, err := l.SetCapacity(context.Background(), "F1", march, 2, 0, "")
	suite.Require().Nil(err)
	suite.Assert().Equal(1, row.ConfirmedCount)
	suite.Assert().Equal(1, row.RemainingCapacity)
	suite.Assert().True(decimal.NewFromInt(50).Equal(row.UtilizationPct))
}

func (suite *TestSuiteStandard) TestSetCapacityValidation() {
	l := suite.ledger(0, ledger.DefaultOvercommitFraction)

	_, err := l.SetCapacity(context.Background(), "F1", march, -1, 0, "")
	suite.Assert().ErrorIs(err, models.ErrCapacityNegative)

	_, err = l.SetCapacity(context.Background(), "F 1", march, 1, 0, "")
	suite.Assert().ErrorIs(err, models.ErrFacilityCodeMalformed)

	suite.Assert().Empty(suite.notifier.snapshots)
}
