package allocations

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/railfleet/capacity-engine/internal/models"
	"github.com/railfleet/capacity-engine/internal/types"
	"github.com/shopspring/decimal"
	"golang.org/x/exp/slices"
)

// CreateInput is the untrusted input for a new allocation.
type CreateInput struct {
	PlanID     *uuid.UUID `json:"planId" example:"b0a5d4c3-6ec1-4c4f-8c7c-4b1e2a1f0c11"`
	ScenarioID *uuid.UUID `json:"scenarioId" example:"2c8b1f0e-9b4a-4c5e-a3d6-3f2e1b0c9d88"`
	DemandID   *uuid.UUID `json:"demandId" example:"7d3e2f1a-0b9c-4d8e-a7f6-5e4d3c2b1a00"`

	AssetID      string                  `json:"assetId" example:"car-8812"`
	AssetNumber  string                  `json:"assetNumber" example:"GATX 204512"`
	FacilityCode string                  `json:"facilityCode" example:"F1"`
	TargetMonth  types.Month             `json:"targetMonth" swaggertype:"string" example:"2026-03"`
	Status       models.AllocationStatus `json:"status" example:"planned"` // Defaults to proposed

	EstimatedCost decimal.Decimal `json:"estimatedCost" example:"12500.00"` // Defaults to the sum of the breakdown
	LaborCost     decimal.Decimal `json:"laborCost" example:"7000.00"`
	MaterialCost  decimal.Decimal `json:"materialCost" example:"4100.00"`
	FreightCost   decimal.Decimal `json:"freightCost" example:"900.00"`
	AbatementCost decimal.Decimal `json:"abatementCost" example:"500.00"`

	PlannedArrivalDate    *time.Time `json:"plannedArrivalDate" example:"2026-03-02T00:00:00Z"`
	PlannedCompletionDate *time.Time `json:"plannedCompletionDate" example:"2026-03-20T00:00:00Z"`

	Notes     string `json:"notes" example:"Tank requalification"`
	CreatedBy string `json:"-"`
}

// Validate normalizes the input and checks it.
func (in *CreateInput) Validate() error {
	in.AssetID = strings.TrimSpace(in.AssetID)
	in.AssetNumber = strings.TrimSpace(in.AssetNumber)
	in.FacilityCode = models.NormalizeFacilityCode(in.FacilityCode)

	if in.Status == "" {
		in.Status = models.StatusProposed
	}

	var errs []error

	if in.AssetID == "" {
		errs = append(errs, ErrAssetIDMissing)
	}

	if in.AssetNumber == "" {
		errs = append(errs, ErrAssetNumberMissing)
	}

	if in.TargetMonth.IsZero() {
		errs = append(errs, ErrTargetMonthMissing)
	}

	if !in.Status.Valid() {
		errs = append(errs, ErrStatusUnknown)
	} else if !slices.Contains(initialStatuses, in.Status) {
		errs = append(errs, ErrInitialStatus)
	}

	if in.FacilityCode == "" && in.Status.RequiresFacility() {
		errs = append(errs, ErrFacilityRequired)
	} else if in.FacilityCode != "" && !models.ValidFacilityCode(in.FacilityCode) {
		errs = append(errs, ErrFacilityMalformed)
	}

	for _, cost := range []decimal.Decimal{in.EstimatedCost, in.LaborCost, in.MaterialCost, in.FreightCost, in.AbatementCost} {
		if cost.IsNegative() {
			errs = append(errs, ErrCostNegative)
			break
		}
	}

	return errors.Join(errs...)
}

func (in CreateInput) model() models.Allocation {
	estimated := in.EstimatedCost
	if estimated.IsZero() {
		estimated = in.LaborCost.Add(in.MaterialCost).Add(in.FreightCost).Add(in.AbatementCost)
	}

	a := models.Allocation{
		PlanID:                in.PlanID,
		ScenarioID:            in.ScenarioID,
		DemandID:              in.DemandID,
		AssetID:               in.AssetID,
		AssetNumber:           in.AssetNumber,
		TargetMonth:           in.TargetMonth,
		Status:                in.Status,
		Version:               1,
		EstimatedCost:         estimated,
		LaborCost:             in.LaborCost,
		MaterialCost:          in.MaterialCost,
		FreightCost:           in.FreightCost,
		AbatementCost:         in.AbatementCost,
		PlannedArrivalDate:    in.PlannedArrivalDate,
		PlannedCompletionDate: in.PlannedCompletionDate,
		Notes:                 in.Notes,
		CreatedBy:             in.CreatedBy,
	}

	if in.FacilityCode != "" {
		code := in.FacilityCode
		a.FacilityCode = &code
	}

	return a
}

// StatusChange requests a status transition of an allocation.
type StatusChange struct {
	Status          models.AllocationStatus `json:"status" example:"confirmed"`
	ExpectedVersion int                     `json:"version" example:"1"`                        // Version the change is based on
	Notes           string                  `json:"notes" example:"Slot confirmed by the shop"` // Recorded in the transition log
	ActualCost      *decimal.Decimal        `json:"actualCost" example:"13120.55"`              // Only on completion
	ActualDate      *time.Time              `json:"actualDate" example:"2026-03-23T00:00:00Z"`  // Arrival or completion date, defaults to now
	ActorID         string                  `json:"-"`
}

func (c StatusChange) validate() error {
	var errs []error

	if !c.Status.Valid() {
		errs = append(errs, ErrStatusUnknown)
	}

	if c.ExpectedVersion < 1 {
		errs = append(errs, ErrVersionMissing)
	}

	if c.ActualCost != nil {
		if c.Status != models.StatusComplete {
			errs = append(errs, ErrActualCostStatus)
		} else if c.ActualCost.IsNegative() {
			errs = append(errs, ErrCostNegative)
		}
	}

	if c.ActualDate != nil && c.Status != models.StatusArrived && c.Status != models.StatusComplete {
		errs = append(errs, ErrActualDateStatus)
	}

	return errors.Join(errs...)
}

// ReplanInput moves a proposed or planned allocation to another facility or month.
type ReplanInput struct {
	FacilityCode    string      `json:"facilityCode" example:"F2"`
	TargetMonth     types.Month `json:"targetMonth" swaggertype:"string" example:"2026-04"`
	ExpectedVersion int         `json:"version" example:"2"`
	Notes           string      `json:"notes" example:"F1 is full in March"`
	ActorID         string      `json:"-"`
}

func (in *ReplanInput) validate() error {
	in.FacilityCode = models.NormalizeFacilityCode(in.FacilityCode)

	var errs []error

	if in.TargetMonth.IsZero() {
		errs = append(errs, ErrTargetMonthMissing)
	}

	if in.FacilityCode != "" && !models.ValidFacilityCode(in.FacilityCode) {
		errs = append(errs, ErrFacilityMalformed)
	}

	if in.ExpectedVersion < 1 {
		errs = append(errs, ErrVersionMissing)
	}

	return errors.Join(errs...)
}

// Filter restricts the allocations returned by List.
type Filter struct {
	FacilityCode string
	Month        types.Month
	From         types.Month
	Until        types.Month
	Status       []models.AllocationStatus
	AssetID      string
	AssetNumber  string
	PlanID       *uuid.UUID
	Offset       int
	Limit        int // Zero or negative returns all allocations
}
