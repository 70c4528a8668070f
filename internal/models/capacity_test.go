package models_test

import (
	"github.com/railfleet/capacity-engine/internal/models"
	"github.com/railfleet/capacity-engine/internal/types"
	"github.com/shopspring/decimal"
)

func (suite *TestSuiteStandard) TestCapacityDerivedFields() {
	tests := []struct {
		name        string
		total       int
		confirmed   int
		planned     int
		remaining   int
		utilization string
		atRisk      bool
	}{
		{"Empty", 10, 0, 0, 10, "0", false},
		{"Below threshold", 10, 5, 3, 2, "80", false},
		{"At threshold", 10, 7, 2, 1, "90", true},
		{"Overcommitted", 10, 11, 0, -1, "110", true},
		{"No capacity", 0, 0, 0, 0, "0", false},
		{"Fractional", 3, 1, 0, 2, "33.33", false},
	}

	for i, tt := range tests {
		suite.Run(tt.name, func() {
			row := models.ShopMonthlyCapacity{
				FacilityCode:   " f1 ",
				Month:          types.NewMonth(2026, 1).AddDate(0, i),
				TotalCapacity:  tt.total,
				ConfirmedCount: tt.confirmed,
				PlannedCount:   tt.planned,
				Version:        1,
			}

			suite.Require().Nil(models.DB.Create(&row).Error)

			var stored models.ShopMonthlyCapacity
			suite.Require().Nil(models.DB.First(&stored, "id = ?", row.ID).Error)

			suite.Assert().Equal("F1", stored.FacilityCode)
			suite.Assert().Equal(tt.remaining, stored.RemainingCapacity)
			suite.Assert().True(decimal.RequireFromString(tt.utilization).Equal(stored.UtilizationPct), "Utilization is %s", stored.UtilizationPct)
			suite.Assert().Equal(tt.atRisk, stored.AtRisk)
		})
	}
}

func (suite *TestSuiteStandard) TestCapacityNegative() {
	row := models.ShopMonthlyCapacity{
		FacilityCode:  "F1",
		Month:         types.NewMonth(2026, 3),
		TotalCapacity: -1,
	}

	err := models.DB.Create(&row).Error
	suite.Assert().ErrorIs(err, models.ErrCapacityNegative)
}

func (suite *TestSuiteStandard) TestCapacityUniquePerFacilityMonth() {
	row := models.ShopMonthlyCapacity{FacilityCode: "F1", Month: types.NewMonth(2026, 3), TotalCapacity: 4}
	suite.Require().Nil(models.DB.Create(&row).Error)

	duplicate := models.ShopMonthlyCapacity{FacilityCode: "F1", Month: types.NewMonth(2026, 3), TotalCapacity: 8}
	suite.Assert().NotNil(models.DB.Create(&duplicate).Error)
}
