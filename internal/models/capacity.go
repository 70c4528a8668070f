package models

import (
	"github.com/railfleet/capacity-engine/internal/types"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// AtRiskThreshold is the utilization in percent at and above which a
// facility month is flagged as at risk.
var AtRiskThreshold = decimal.NewFromInt(90)

// ShopMonthlyCapacity is the capacity ledger row of one facility for one month.
//
// ConfirmedCount and PlannedCount are derived from the live allocations of
// the facility month and are only written by the ledger's recomputation.
type ShopMonthlyCapacity struct {
	DefaultModel
	FacilityCode   string      `json:"facilityCode" gorm:"not null;uniqueIndex:idx_capacity_pair,priority:1" example:"F1"`                         // Maintenance facility
	Month          types.Month `json:"month" gorm:"not null;uniqueIndex:idx_capacity_pair,priority:2" example:"2026-03"`                           // Month of the ledger row
	TotalCapacity  int         `json:"totalCapacity" gorm:"not null;default:0;check:total_capacity_not_negative,total_capacity >= 0" example:"10"` // Capacity ceiling
	ConfirmedCount int         `json:"confirmedCount" gorm:"not null;default:0" example:"7"`                                                       // Allocations in confirmed or later in-shop states
	PlannedCount   int         `json:"plannedCount" gorm:"not null;default:0" example:"2"`                                                         // Allocations in planned state

	RemainingCapacity int             `json:"remainingCapacity" gorm:"not null;default:0" example:"1"` // total - confirmed - planned, may be negative when overcommitted
	UtilizationPct    decimal.Decimal `json:"utilizationPct" gorm:"type:DECIMAL(7,2)" example:"90.00"` // (confirmed + planned) / total in percent
	AtRisk            bool            `json:"atRisk" gorm:"not null;default:false" example:"true"`     // Utilization at or above the at risk threshold
	Version           int             `json:"version" gorm:"not null;default:1" example:"1"`           // Bumped by capacity changes, not by count recomputation
}

// TableName overrides the pluralized default.
func (ShopMonthlyCapacity) TableName() string {
	return "shop_monthly_capacity"
}

// BeforeSave recomputes the derived columns.
func (c *ShopMonthlyCapacity) BeforeSave(_ *gorm.DB) error {
	if c.TotalCapacity < 0 {
		return ErrCapacityNegative
	}

	c.FacilityCode = NormalizeFacilityCode(c.FacilityCode)
	c.derive()
	return nil
}

// Used is the number of slots taken by confirmed and planned allocations.
func (c ShopMonthlyCapacity) Used() int {
	return c.ConfirmedCount + c.PlannedCount
}

func (c *ShopMonthlyCapacity) derive() {
	c.RemainingCapacity = c.TotalCapacity - c.Used()

	if c.TotalCapacity == 0 {
		c.UtilizationPct = decimal.Zero
		c.AtRisk = false
		return
	}

	c.UtilizationPct = decimal.NewFromInt(int64(c.Used())).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(c.TotalCapacity))).
		Round(2)
	c.AtRisk = c.UtilizationPct.GreaterThanOrEqual(AtRiskThreshold)
}
