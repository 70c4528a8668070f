package v1

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/railfleet/capacity-engine/internal/allocations"
	"github.com/railfleet/capacity-engine/internal/httputil"
	"golang.org/x/exp/slices"
)

// RegisterAllocationRoutes registers the routes for allocations with
// the RouterGroup that is passed.
func (co Controller) RegisterAllocationRoutes(r *gin.RouterGroup) {
	// Root group
	{
		r.OPTIONS("", co.OptionsAllocationList)
		r.GET("", co.GetAllocations)
		r.POST("", co.CreateAllocations)
	}

	// Allocation with ID
	{
		r.OPTIONS("/:id", co.OptionsAllocationDetail)
		r.GET("/:id", co.GetAllocation)
		r.DELETE("/:id", co.DeleteAllocation)
	}

	// Lifecycle
	{
		r.OPTIONS("/:id/status", co.OptionsAllocationPost)
		r.POST("/:id/status", co.UpdateAllocationStatus)
		r.OPTIONS("/:id/replan", co.OptionsAllocationPost)
		r.POST("/:id/replan", co.ReplanAllocation)
		r.OPTIONS("/:id/revert", co.OptionsAllocationRevert)
		r.GET("/:id/revert", co.GetAllocationRevert)
		r.POST("/:id/revert", co.RevertAllocation)
		r.OPTIONS("/:id/transitions", co.OptionsAllocationTransitions)
		r.GET("/:id/transitions", co.GetAllocationTransitions)
	}
}

// @Summary		Allowed HTTP verbs
// @Description	Returns an empty response with the HTTP Header "allow" set to the allowed HTTP verbs
// @Tags			Allocations
// @Success		204
// @Router			/v1/allocations [options]
func (co Controller) OptionsAllocationList(c *gin.Context) {
	httputil.OptionsGetPost(c)
}

// @Summary		Allowed HTTP verbs
// @Description	Returns an empty response with the HTTP Header "allow" set to the allowed HTTP verbs
// @Tags			Allocations
// @Success		204
// @Failure		400	{object}	httpError
// @Failure		404	{object}	httpError
// @Failure		500	{object}	httpError
// @Param			id	path		URIID	true	"ignored, but needed: https://github.com/swaggo/swag/issues/1014"
// @Router			/v1/allocations/{id} [options]
func (co Controller) OptionsAllocationDetail(c *gin.Context) {
	if !co.allocationExists(c) {
		return
	}

	httputil.OptionsGetDelete(c)
}

// @Summary		Allowed HTTP verbs
// @Description	Returns an empty response with the HTTP Header "allow" set to the allowed HTTP verbs
// @Tags			Allocations
// @Success		204
// @Failure		400	{object}	httpError
// @Failure		404	{object}	httpError
// @Param			id	path		URIID	true	"ignored, but needed: https://github.com/swaggo/swag/issues/1014"
// @Router			/v1/allocations/{id}/status [options]
// @Router			/v1/allocations/{id}/replan [options]
func (co Controller) OptionsAllocationPost(c *gin.Context) {
	if !co.allocationExists(c) {
		return
	}

	httputil.OptionsPost(c)
}

// @Summary		Allowed HTTP verbs
// @Description	Returns an empty response with the HTTP Header "allow" set to the allowed HTTP verbs
// @Tags			Allocations
// @Success		204
// @Failure		400	{object}	httpError
// @Failure		404	{object}	httpError
// @Param			id	path		URIID	true	"ignored, but needed: https://github.com/swaggo/swag/issues/1014"
// @Router			/v1/allocations/{id}/revert [options]
func (co Controller) OptionsAllocationRevert(c *gin.Context) {
	if !co.allocationExists(c) {
		return
	}

	httputil.OptionsGetPost(c)
}

// @Summary		Allowed HTTP verbs
// @Description	Returns an empty response with the HTTP Header "allow" set to the allowed HTTP verbs
// @Tags			Allocations
// @Success		204
// @Failure		400	{object}	httpError
// @Failure		404	{object}	httpError
// @Param			id	path		URIID	true	"ignored, but needed: https://github.com/swaggo/swag/issues/1014"
// @Router			/v1/allocations/{id}/transitions [options]
func (co Controller) OptionsAllocationTransitions(c *gin.Context) {
	if !co.allocationExists(c) {
		return
	}

	httputil.OptionsGet(c)
}

// allocationExists checks that the allocation in the URI exists. If not,
// it writes the error response.
func (co Controller) allocationExists(c *gin.Context) bool {
	var uri URIID
	err := c.ShouldBindUri(&uri)
	if err != nil {
		c.JSON(status(c, err), httpError{Error: err.Error()})
		return false
	}

	_, err = co.Manager.GetByID(c.Request.Context(), uri.ID.UUID)
	if err != nil {
		c.JSON(status(c, err), httpError{Error: err.Error()})
		return false
	}

	return true
}

// @Summary		Create allocations
// @Description	Creates new allocations. Confirmed allocations are checked against the capacity of their facility month.
// @Tags			Allocations
// @Accept			json
// @Produce		json
// @Success		201			{object}	AllocationCreateResponse
// @Failure		400			{object}	AllocationCreateResponse
// @Failure		409			{object}	AllocationCreateResponse
// @Failure		500			{object}	AllocationCreateResponse
// @Failure		503			{object}	AllocationCreateResponse
// @Param			allocations	body		[]allocations.CreateInput	true	"Allocations"
// @Param			X-Actor-ID	header		string						false	"Identity of the caller"
// @Router			/v1/allocations [post]
func (co Controller) CreateAllocations(c *gin.Context) {
	var inputs []allocations.CreateInput

	// Bind data and return error if not possible
	err := httputil.BindData(c, &inputs)
	if err != nil {
		e := err.Error()
		c.JSON(status(c, err), AllocationCreateResponse{
			Error: &e,
		})
		return
	}

	// The final http status. Will be modified when errors occur
	s := http.StatusCreated
	r := AllocationCreateResponse{}

	for _, in := range inputs {
		in.CreatedBy = httputil.Actor(c)

		allocation, err := co.Manager.Create(c.Request.Context(), in)
		if err != nil {
			s = r.appendError(c, err, s)
			continue
		}

		data := newAllocation(c, allocation)
		r.Data = append(r.Data, AllocationResponse{Data: &data})
	}

	c.JSON(s, r)
}

// @Summary		List allocations
// @Description	Returns a list of allocations, ordered by target month
// @Tags			Allocations
// @Produce		json
// @Success		200	{object}	AllocationListResponse
// @Failure		400	{object}	AllocationListResponse
// @Failure		500	{object}	AllocationListResponse
// @Router			/v1/allocations [get]
// @Param			facility	query	string		false	"Filter by facility code"
// @Param			month		query	string		false	"Filter by target month (YYYY-MM)"
// @Param			from		query	string		false	"Target month at or after (YYYY-MM)"
// @Param			until		query	string		false	"Target month at or before (YYYY-MM)"
// @Param			status		query	[]string	false	"Filter by status"	collectionFormat(multi)
// @Param			asset		query	string		false	"Filter by asset ID"
// @Param			assetNumber	query	string		false	"Filter by asset number"
// @Param			plan		query	string		false	"Filter by maintenance plan ID"
// @Param			offset		query	uint		false	"The offset of the first allocation returned. Defaults to 0."
// @Param			limit		query	int			false	"Maximum number of allocations to return. Defaults to 50."
func (co Controller) GetAllocations(c *gin.Context) {
	var query AllocationQueryFilter
	err := c.ShouldBindQuery(&query)
	if err != nil {
		e := err.Error()
		c.JSON(status(c, err), AllocationListResponse{
			Error: &e,
		})
		return
	}

	_, setFields := httputil.GetURLFields(c.Request.URL, query)

	filter, err := query.model()
	if err != nil {
		e := err.Error()
		c.JSON(status(c, err), AllocationListResponse{
			Error: &e,
		})
		return
	}

	// Default to 50 allocations
	limit := 50
	if slices.Contains(setFields, "Limit") {
		limit = query.Limit
	}
	filter.Limit = limit

	list, total, err := co.Manager.List(c.Request.Context(), filter)
	if err != nil {
		e := err.Error()
		c.JSON(status(c, err), AllocationListResponse{
			Error: &e,
		})
		return
	}

	data := make([]Allocation, 0, len(list))
	for _, a := range list {
		data = append(data, newAllocation(c, a))
	}

	c.JSON(http.StatusOK, AllocationListResponse{
		Data: data,
		Pagination: &Pagination{
			Count:  len(data),
			Total:  total,
			Offset: query.Offset,
			Limit:  limit,
		},
	})
}

// @Summary		Get allocation
// @Description	Returns a specific allocation
// @Tags			Allocations
// @Produce		json
// @Success		200	{object}	AllocationResponse
// @Failure		400	{object}	AllocationResponse
// @Failure		404	{object}	AllocationResponse
// @Failure		500	{object}	AllocationResponse
// @Param			id	path		URIID	true	"ignored, but needed: https://github.com/swaggo/swag/issues/1014"
// @Router			/v1/allocations/{id} [get]
func (co Controller) GetAllocation(c *gin.Context) {
	var uri URIID
	err := c.ShouldBindUri(&uri)
	if err != nil {
		s := err.Error()
		c.JSON(status(c, err), AllocationResponse{
			Error: &s,
		})
		return
	}

	allocation, err := co.Manager.GetByID(c.Request.Context(), uri.ID.UUID)
	if err != nil {
		s := err.Error()
		c.JSON(status(c, err), AllocationResponse{
			Error: &s,
		})
		return
	}

	data := newAllocation(c, allocation)
	c.JSON(http.StatusOK, AllocationResponse{Data: &data})
}

// @Summary		Delete allocation
// @Description	Deletes an allocation and releases its capacity
// @Tags			Allocations
// @Success		204
// @Failure		400			{object}	httpError
// @Failure		404			{object}	httpError
// @Failure		500			{object}	httpError
// @Failure		503			{object}	httpError
// @Param			id			path		URIID	true	"ignored, but needed: https://github.com/swaggo/swag/issues/1014"
// @Param			X-Actor-ID	header		string	false	"Identity of the caller"
// @Router			/v1/allocations/{id} [delete]
func (co Controller) DeleteAllocation(c *gin.Context) {
	var uri URIID
	err := c.ShouldBindUri(&uri)
	if err != nil {
		c.JSON(status(c, err), httpError{Error: err.Error()})
		return
	}

	err = co.Manager.Delete(c.Request.Context(), uri.ID.UUID, httputil.Actor(c))
	if err != nil {
		c.JSON(status(c, err), httpError{Error: err.Error()})
		return
	}

	c.Status(http.StatusNoContent)
}

// @Summary		Change allocation status
// @Description	Moves the allocation along its lifecycle. The version must match the current version of the allocation.
// @Tags			Allocations
// @Accept			json
// @Produce		json
// @Success		200			{object}	AllocationResponse
// @Failure		400			{object}	AllocationResponse
// @Failure		404			{object}	AllocationResponse
// @Failure		409			{object}	AllocationResponse
// @Failure		500			{object}	AllocationResponse
// @Failure		503			{object}	AllocationResponse
// @Param			id			path		URIID					true	"ignored, but needed: https://github.com/swaggo/swag/issues/1014"
// @Param			change		body		allocations.StatusChange	true	"Status change"
// @Param			X-Actor-ID	header		string					false	"Identity of the caller"
// @Router			/v1/allocations/{id}/status [post]
func (co Controller) UpdateAllocationStatus(c *gin.Context) {
	var uri URIID
	err := c.ShouldBindUri(&uri)
	if err != nil {
		s := err.Error()
		c.JSON(status(c, err), AllocationResponse{
			Error: &s,
		})
		return
	}

	var change allocations.StatusChange
	err = httputil.BindData(c, &change)
	if err != nil {
		s := err.Error()
		c.JSON(status(c, err), AllocationResponse{
			Error: &s,
		})
		return
	}
	change.ActorID = httputil.Actor(c)

	allocation, err := co.Manager.UpdateStatus(c.Request.Context(), uri.ID.UUID, change)
	if err != nil {
		s := err.Error()
		c.JSON(status(c, err), AllocationResponse{
			Error: &s,
		})
		return
	}

	data := newAllocation(c, allocation)
	c.JSON(http.StatusOK, AllocationResponse{Data: &data})
}

// @Summary		Re-plan allocation
// @Description	Moves a proposed or planned allocation to another facility or month
// @Tags			Allocations
// @Accept			json
// @Produce		json
// @Success		200			{object}	AllocationResponse
// @Failure		400			{object}	AllocationResponse
// @Failure		404			{object}	AllocationResponse
// @Failure		409			{object}	AllocationResponse
// @Failure		500			{object}	AllocationResponse
// @Failure		503			{object}	AllocationResponse
// @Param			id			path		URIID					true	"ignored, but needed: https://github.com/swaggo/swag/issues/1014"
// @Param			replan		body		allocations.ReplanInput	true	"New facility month"
// @Param			X-Actor-ID	header		string					false	"Identity of the caller"
// @Router			/v1/allocations/{id}/replan [post]
func (co Controller) ReplanAllocation(c *gin.Context) {
	var uri URIID
	err := c.ShouldBindUri(&uri)
	if err != nil {
		s := err.Error()
		c.JSON(status(c, err), AllocationResponse{
			Error: &s,
		})
		return
	}

	var in allocations.ReplanInput
	err = httputil.BindData(c, &in)
	if err != nil {
		s := err.Error()
		c.JSON(status(c, err), AllocationResponse{
			Error: &s,
		})
		return
	}
	in.ActorID = httputil.Actor(c)

	allocation, err := co.Manager.Replan(c.Request.Context(), uri.ID.UUID, in)
	if err != nil {
		s := err.Error()
		c.JSON(status(c, err), AllocationResponse{
			Error: &s,
		})
		return
	}

	data := newAllocation(c, allocation)
	c.JSON(http.StatusOK, AllocationResponse{Data: &data})
}

// @Summary		Get revert eligibility
// @Description	Returns if the last transition of the allocation can be reverted, and why not
// @Tags			Allocations
// @Produce		json
// @Success		200	{object}	RevertEligibilityResponse
// @Failure		400	{object}	RevertEligibilityResponse
// @Failure		404	{object}	RevertEligibilityResponse
// @Failure		500	{object}	RevertEligibilityResponse
// @Param			id	path		URIID	true	"ignored, but needed: https://github.com/swaggo/swag/issues/1014"
// @Router			/v1/allocations/{id}/revert [get]
func (co Controller) GetAllocationRevert(c *gin.Context) {
	var uri URIID
	err := c.ShouldBindUri(&uri)
	if err != nil {
		s := err.Error()
		c.JSON(status(c, err), RevertEligibilityResponse{
			Error: &s,
		})
		return
	}

	eligibility, err := co.Manager.CanRevert(c.Request.Context(), uri.ID.UUID)
	if err != nil {
		s := err.Error()
		c.JSON(status(c, err), RevertEligibilityResponse{
			Error: &s,
		})
		return
	}

	data := newRevertEligibility(eligibility)
	c.JSON(http.StatusOK, RevertEligibilityResponse{Data: &data})
}

// @Summary		Revert last transition
// @Description	Reverts the last status transition of the allocation if it is eligible
// @Tags			Allocations
// @Accept			json
// @Produce		json
// @Success		200			{object}	AllocationResponse
// @Failure		400			{object}	AllocationResponse
// @Failure		404			{object}	AllocationResponse
// @Failure		409			{object}	AllocationResponse
// @Failure		500			{object}	AllocationResponse
// @Failure		503			{object}	AllocationResponse
// @Param			id			path		URIID			true	"ignored, but needed: https://github.com/swaggo/swag/issues/1014"
// @Param			revert		body		RevertEditable	false	"Notes for the reversal"
// @Param			X-Actor-ID	header		string			false	"Identity of the caller"
// @Router			/v1/allocations/{id}/revert [post]
func (co Controller) RevertAllocation(c *gin.Context) {
	var uri URIID
	err := c.ShouldBindUri(&uri)
	if err != nil {
		s := err.Error()
		c.JSON(status(c, err), AllocationResponse{
			Error: &s,
		})
		return
	}

	// The body is optional
	var body RevertEditable
	err = httputil.BindData(c, &body)
	if err != nil && !errors.Is(err, httputil.ErrRequestBodyEmpty) {
		s := err.Error()
		c.JSON(status(c, err), AllocationResponse{
			Error: &s,
		})
		return
	}

	allocation, err := co.Manager.RevertLastTransition(c.Request.Context(), uri.ID.UUID, httputil.Actor(c), body.Notes)
	if err != nil {
		s := err.Error()
		c.JSON(status(c, err), AllocationResponse{
			Error: &s,
		})
		return
	}

	data := newAllocation(c, allocation)
	c.JSON(http.StatusOK, AllocationResponse{Data: &data})
}

// @Summary		List transitions
// @Description	Returns the status transitions of the allocation, oldest first
// @Tags			Allocations
// @Produce		json
// @Success		200	{object}	TransitionListResponse
// @Failure		400	{object}	TransitionListResponse
// @Failure		404	{object}	TransitionListResponse
// @Failure		500	{object}	TransitionListResponse
// @Param			id	path		URIID	true	"ignored, but needed: https://github.com/swaggo/swag/issues/1014"
// @Router			/v1/allocations/{id}/transitions [get]
func (co Controller) GetAllocationTransitions(c *gin.Context) {
	var uri URIID
	err := c.ShouldBindUri(&uri)
	if err != nil {
		s := err.Error()
		c.JSON(status(c, err), TransitionListResponse{
			Error: &s,
		})
		return
	}

	entries, err := co.Manager.Transitions(c.Request.Context(), uri.ID.UUID)
	if err != nil {
		s := err.Error()
		c.JSON(status(c, err), TransitionListResponse{
			Error: &s,
		})
		return
	}

	c.JSON(http.StatusOK, TransitionListResponse{Data: entries})
}
