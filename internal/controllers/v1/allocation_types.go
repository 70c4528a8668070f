package v1

import (
	"fmt"
	neturl "net/url"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/railfleet/capacity-engine/internal/allocations"
	"github.com/railfleet/capacity-engine/internal/httputil"
	"github.com/railfleet/capacity-engine/internal/models"
	"github.com/railfleet/capacity-engine/internal/transitions"
	"github.com/railfleet/capacity-engine/internal/types"
)

type AllocationLinks struct {
	Self        string `json:"self" example:"https://example.com/api/v1/allocations/65392deb-5e92-4268-b114-297faad6cdce"`                    // The allocation itself
	Status      string `json:"status" example:"https://example.com/api/v1/allocations/65392deb-5e92-4268-b114-297faad6cdce/status"`           // Status changes
	Replan      string `json:"replan" example:"https://example.com/api/v1/allocations/65392deb-5e92-4268-b114-297faad6cdce/replan"`           // Moves the allocation to another facility month
	Revert      string `json:"revert" example:"https://example.com/api/v1/allocations/65392deb-5e92-4268-b114-297faad6cdce/revert"`           // Revert eligibility and execution
	Transitions string `json:"transitions" example:"https://example.com/api/v1/allocations/65392deb-5e92-4268-b114-297faad6cdce/transitions"` // Audit trail
	Capacity    string `json:"capacity" example:"https://example.com/api/v1/capacity/F1/2026-03"`                                             // Capacity of the facility month, empty without a facility
	History     string `json:"history" example:"https://example.com/api/v1/assets/car-8812/history"`                                          // History of the asset
}

type Allocation struct {
	models.Allocation
	Links AllocationLinks `json:"links"` // Links to related resources
}

func newAllocation(c *gin.Context, model models.Allocation) Allocation {
	url := httputil.BaseURL(c)
	self := fmt.Sprintf("%s/v1/allocations/%s", url, model.ID)

	a := Allocation{
		Allocation: model,
		Links: AllocationLinks{
			Self:        self,
			Status:      self + "/status",
			Replan:      self + "/replan",
			Revert:      self + "/revert",
			Transitions: self + "/transitions",
			History:     fmt.Sprintf("%s/v1/assets/%s/history", url, neturl.PathEscape(model.AssetID)),
		},
	}

	if model.FacilityCode != nil {
		a.Links.Capacity = fmt.Sprintf("%s/v1/capacity/%s/%s", url, *model.FacilityCode, model.TargetMonth)
	}

	return a
}

type AllocationResponse struct {
	Data  *Allocation `json:"data"`                                                          // Data for the allocation
	Error *string     `json:"error" example:"the specified resource ID is not a valid UUID"` // The error, if any occurred
}

type AllocationListResponse struct {
	Data       []Allocation `json:"data"`                                                          // List of allocations
	Error      *string      `json:"error" example:"the specified resource ID is not a valid UUID"` // The error, if any occurred
	Pagination *Pagination  `json:"pagination"`                                                    // Pagination information
}

type AllocationCreateResponse struct {
	Data  []AllocationResponse `json:"data"`                                                          // Data for the allocations
	Error *string              `json:"error" example:"the specified resource ID is not a valid UUID"` // The error, if any occurred
}

// appendError appends an AllocationResponse with the error and returns the updated HTTP status
func (r *AllocationCreateResponse) appendError(c *gin.Context, err error, currentStatus int) int {
	s := err.Error()
	r.Data = append(r.Data, AllocationResponse{Error: &s})

	// The final status code is the highest HTTP status code number
	newStatus := status(c, err)
	if newStatus > currentStatus {
		return newStatus
	}

	return currentStatus
}

type AllocationQueryFilter struct {
	Facility    string   `form:"facility"`    // By facility code
	Month       string   `form:"month"`       // By target month
	From        string   `form:"from"`        // Target month at or after this month
	Until       string   `form:"until"`       // Target month at or before this month
	Status      []string `form:"status"`      // By status, can be repeated
	AssetID     string   `form:"asset"`       // By asset ID
	AssetNumber string   `form:"assetNumber"` // By asset number
	PlanID      string   `form:"plan"`        // By maintenance plan ID
	Offset      uint     `form:"offset"`      // The offset of the first allocation returned. Defaults to 0.
	Limit       int      `form:"limit"`       // Maximum number of allocations to return. Defaults to 50.
}

func (f AllocationQueryFilter) model() (allocations.Filter, error) {
	filter := allocations.Filter{
		FacilityCode: f.Facility,
		AssetID:      f.AssetID,
		AssetNumber:  f.AssetNumber,
		Offset:       int(f.Offset),
		Limit:        f.Limit,
	}

	months := []struct {
		value  string
		target *types.Month
	}{
		{f.Month, &filter.Month},
		{f.From, &filter.From},
		{f.Until, &filter.Until},
	}

	for _, m := range months {
		if err := m.target.UnmarshalParam(m.value); err != nil {
			return allocations.Filter{}, err
		}
	}

	for _, s := range f.Status {
		st := models.AllocationStatus(s)
		if !st.Valid() {
			return allocations.Filter{}, allocations.ErrStatusUnknown
		}
		filter.Status = append(filter.Status, st)
	}

	planID, err := httputil.UUIDFromString(f.PlanID)
	if err != nil {
		return allocations.Filter{}, err
	}

	if planID != uuid.Nil {
		filter.PlanID = &planID
	}

	return filter, nil
}

type TransitionListResponse struct {
	Data  []models.TransitionLogEntry `json:"data"`                                                          // Transitions, oldest first
	Error *string                     `json:"error" example:"the specified resource ID is not a valid UUID"` // The error, if any occurred
}

type RevertEligibility struct {
	Revertible bool                       `json:"revertible" example:"true"`             // Can the last transition be reverted?
	Entry      *models.TransitionLogEntry `json:"entry"`                                 // The transition a revert would undo
	Reasons    []string                   `json:"reasons" example:"no transition found"` // Why the revert is refused
}

func newRevertEligibility(e transitions.Eligibility) RevertEligibility {
	reasons := e.Reasons
	if reasons == nil {
		reasons = []string{}
	}

	return RevertEligibility{
		Revertible: e.Revertible,
		Entry:      e.Entry,
		Reasons:    reasons,
	}
}

type RevertEligibilityResponse struct {
	Data  *RevertEligibility `json:"data"`                                                          // Revert eligibility
	Error *string            `json:"error" example:"the specified resource ID is not a valid UUID"` // The error, if any occurred
}

// RevertEditable is the body of revert requests.
type RevertEditable struct {
	Notes string `json:"notes" example:"Customer withdrew the request"` // Recorded on the reversal entry
}
