package models

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/railfleet/capacity-engine/internal/types"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// AllocationStatus is the lifecycle state of an allocation.
type AllocationStatus string

const (
	StatusProposed  AllocationStatus = "proposed"
	StatusPlanned   AllocationStatus = "planned"
	StatusConfirmed AllocationStatus = "confirmed"
	StatusEnroute   AllocationStatus = "enroute"
	StatusArrived   AllocationStatus = "arrived"
	StatusComplete  AllocationStatus = "complete"
	StatusCancelled AllocationStatus = "cancelled"
)

// Statuses lists all statuses in lifecycle order.
var Statuses = []AllocationStatus{
	StatusProposed,
	StatusPlanned,
	StatusConfirmed,
	StatusEnroute,
	StatusArrived,
	StatusComplete,
	StatusCancelled,
}

// Valid reports if s is a known status.
func (s AllocationStatus) Valid() bool {
	for _, status := range Statuses {
		if s == status {
			return true
		}
	}
	return false
}

// Terminal reports if no transition can leave s.
func (s AllocationStatus) Terminal() bool {
	return s == StatusComplete || s == StatusCancelled
}

// CountsAsConfirmed reports if an allocation in this status occupies
// a confirmed slot of its facility and month.
func (s AllocationStatus) CountsAsConfirmed() bool {
	return s == StatusConfirmed || s == StatusEnroute || s == StatusArrived || s == StatusComplete
}

// CountsAsPlanned reports if an allocation in this status is part of
// the planned count of its facility and month.
func (s AllocationStatus) CountsAsPlanned() bool {
	return s == StatusPlanned
}

// RequiresFacility reports if an allocation needs a facility code to be in this status.
func (s AllocationStatus) RequiresFacility() bool {
	return s.CountsAsConfirmed() || s.CountsAsPlanned()
}

// ConfirmedStatuses are all statuses counted in the confirmed bucket of the capacity ledger.
func ConfirmedStatuses() []AllocationStatus {
	return []AllocationStatus{StatusConfirmed, StatusEnroute, StatusArrived, StatusComplete}
}

var facilityCodePattern = regexp.MustCompile(`^[A-Z0-9_-]{1,32}$`)

// NormalizeFacilityCode trims and upper-cases a facility code.
func NormalizeFacilityCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidFacilityCode reports if the normalized code is well-formed.
func ValidFacilityCode(code string) bool {
	return facilityCodePattern.MatchString(code)
}

// Allocation assigns an asset to a facility for a target month.
type Allocation struct {
	DefaultModel
	PlanID     *uuid.UUID `json:"planId" gorm:"type:uuid;index" example:"b0a5d4c3-6ec1-4c4f-8c7c-4b1e2a1f0c11"` // Maintenance plan the allocation belongs to
	ScenarioID *uuid.UUID `json:"scenarioId" gorm:"type:uuid" example:"2c8b1f0e-9b4a-4c5e-a3d6-3f2e1b0c9d88"`   // Planning scenario
	DemandID   *uuid.UUID `json:"demandId" gorm:"type:uuid" example:"7d3e2f1a-0b9c-4d8e-a7f6-5e4d3c2b1a00"`     // Demand this allocation serves

	AssetID      string           `json:"assetId" gorm:"not null;index" example:"car-8812"`                                   // Identifier of the asset
	AssetNumber  string           `json:"assetNumber" gorm:"not null" example:"GATX 204512"`                                 // Human-readable asset number
	FacilityCode *string          `json:"facilityCode" gorm:"index:idx_allocation_pair,priority:1" example:"F1"`             // Maintenance facility
	TargetMonth  types.Month      `json:"targetMonth" gorm:"not null;index:idx_allocation_pair,priority:2" example:"2026-03"` // Month the asset is due at the facility
	Status       AllocationStatus `json:"status" gorm:"not null;index;default:proposed" example:"planned"`                   // Lifecycle state
	Version      int              `json:"version" gorm:"not null;default:1" example:"1"`                                     // Optimistic concurrency version

	EstimatedCost decimal.Decimal  `json:"estimatedCost" gorm:"type:DECIMAL(20,8)" example:"12500.00"`
	LaborCost     decimal.Decimal  `json:"laborCost" gorm:"type:DECIMAL(20,8)" example:"7000.00"`
	MaterialCost  decimal.Decimal  `json:"materialCost" gorm:"type:DECIMAL(20,8)" example:"4100.00"`
	FreightCost   decimal.Decimal  `json:"freightCost" gorm:"type:DECIMAL(20,8)" example:"900.00"`
	AbatementCost decimal.Decimal  `json:"abatementCost" gorm:"type:DECIMAL(20,8)" example:"500.00"`
	ActualCost    *decimal.Decimal `json:"actualCost" gorm:"type:DECIMAL(20,8)" example:"13120.55"` // Only set on completion

	PlannedArrivalDate    *time.Time `json:"plannedArrivalDate" example:"2026-03-02T00:00:00Z"`
	ActualArrivalDate     *time.Time `json:"actualArrivalDate" example:"2026-03-04T00:00:00Z"`
	PlannedCompletionDate *time.Time `json:"plannedCompletionDate" example:"2026-03-20T00:00:00Z"`
	ActualCompletionDate  *time.Time `json:"actualCompletionDate" example:"2026-03-23T00:00:00Z"` // Only set on completion

	Notes     string `json:"notes" example:"Tank requalification"`
	CreatedBy string `json:"createdBy" example:"planner-17"`
}

// Facility returns the facility code or an empty string.
func (a Allocation) Facility() string {
	if a.FacilityCode == nil {
		return ""
	}
	return *a.FacilityCode
}

// BeforeSave normalizes the facility code and validates the costs.
func (a *Allocation) BeforeSave(_ *gorm.DB) error {
	if a.FacilityCode != nil {
		code := NormalizeFacilityCode(*a.FacilityCode)
		if code == "" {
			a.FacilityCode = nil
		} else {
			if !ValidFacilityCode(code) {
				return ErrFacilityCodeMalformed
			}
			a.FacilityCode = &code
		}
	}

	for _, cost := range []decimal.Decimal{a.EstimatedCost, a.LaborCost, a.MaterialCost, a.FreightCost, a.AbatementCost} {
		if cost.IsNegative() {
			return ErrCostNegative
		}
	}

	if a.ActualCost != nil && a.ActualCost.IsNegative() {
		return ErrCostNegative
	}

	return nil
}
