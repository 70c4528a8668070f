package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/railfleet/capacity-engine/internal/httputil"
	"github.com/railfleet/capacity-engine/internal/types"
)

// RegisterCapacityRoutes registers the routes for the capacity ledger with
// the RouterGroup that is passed.
func (co Controller) RegisterCapacityRoutes(r *gin.RouterGroup) {
	// Root group
	{
		r.OPTIONS("", co.OptionsCapacityList)
		r.GET("", co.GetCapacities)
	}

	// Facility month
	{
		r.OPTIONS("/:facility/:month", co.OptionsCapacityDetail)
		r.GET("/:facility/:month", co.GetCapacity)
		r.PUT("/:facility/:month", co.SetCapacity)
	}
}

// @Summary		Allowed HTTP verbs
// @Description	Returns an empty response with the HTTP Header "allow" set to the allowed HTTP verbs
// @Tags			Capacity
// @Success		204
// @Router			/v1/capacity [options]
func (co Controller) OptionsCapacityList(c *gin.Context) {
	httputil.OptionsGet(c)
}

// @Summary		Allowed HTTP verbs
// @Description	Returns an empty response with the HTTP Header "allow" set to the allowed HTTP verbs
// @Tags			Capacity
// @Success		204
// @Param			facility	path	string	true	"Facility code"
// @Param			month		path	string	true	"Year and month in YYYY-MM format"
// @Router			/v1/capacity/{facility}/{month} [options]
func (co Controller) OptionsCapacityDetail(c *gin.Context) {
	httputil.OptionsGetPut(c)
}

// @Summary		List capacity
// @Description	Returns the existing ledger rows of a facility for a range of months
// @Tags			Capacity
// @Produce		json
// @Success		200			{object}	CapacityListResponse
// @Failure		400			{object}	CapacityListResponse
// @Failure		500			{object}	CapacityListResponse
// @Param			facility	query		string	true	"Facility code"
// @Param			from		query		string	true	"First month (YYYY-MM)"
// @Param			until		query		string	false	"Last month (YYYY-MM), defaults to from"
// @Router			/v1/capacity [get]
func (co Controller) GetCapacities(c *gin.Context) {
	var filter CapacityQueryFilter

	// Every parameter is bound into a string, so this will always succeed
	_ = c.BindQuery(&filter)

	months, err := filter.months()
	if err != nil {
		e := err.Error()
		c.JSON(status(c, err), CapacityListResponse{
			Error: &e,
		})
		return
	}

	rows, err := co.Manager.Ledger().ReadRange(c.Request.Context(), filter.Facility, months)
	if err != nil {
		e := err.Error()
		c.JSON(status(c, err), CapacityListResponse{
			Error: &e,
		})
		return
	}

	data := make([]Capacity, 0, len(rows))
	for _, row := range rows {
		data = append(data, newCapacity(c, co.Manager.Ledger(), row))
	}

	c.JSON(http.StatusOK, CapacityListResponse{Data: data})
}

func (f CapacityQueryFilter) months() ([]types.Month, error) {
	if f.Facility == "" {
		return nil, errFacilityNotSet
	}

	if f.From == "" {
		return nil, errFromNotSet
	}

	from, err := types.ParseMonth(f.From)
	if err != nil {
		return nil, err
	}

	until := from
	if f.Until != "" {
		until, err = types.ParseMonth(f.Until)
		if err != nil {
			return nil, err
		}
	}

	if from.AddDate(0, maxRangeMonths).Before(until) {
		return nil, errRangeTooLong
	}

	return from.Range(until), nil
}

// @Summary		Get capacity
// @Description	Returns the ledger row of a facility month
// @Tags			Capacity
// @Produce		json
// @Success		200			{object}	CapacityResponse
// @Failure		400			{object}	CapacityResponse
// @Failure		404			{object}	CapacityResponse
// @Failure		500			{object}	CapacityResponse
// @Param			facility	path		string	true	"Facility code"
// @Param			month		path		string	true	"Year and month in YYYY-MM format"
// @Router			/v1/capacity/{facility}/{month} [get]
func (co Controller) GetCapacity(c *gin.Context) {
	var uri URIFacilityMonth
	err := c.ShouldBindUri(&uri)
	if err != nil {
		s := err.Error()
		c.JSON(status(c, err), CapacityResponse{
			Error: &s,
		})
		return
	}

	row, found, err := co.Capacity.Read(c.Request.Context(), uri.Facility, uri.Month)
	if err == nil && !found {
		err = errCapacityNotSet
	}

	if err != nil {
		s := err.Error()
		c.JSON(status(c, err), CapacityResponse{
			Error: &s,
		})
		return
	}

	data := newCapacity(c, co.Manager.Ledger(), row)
	c.JSON(http.StatusOK, CapacityResponse{Data: &data})
}

// @Summary		Set capacity
// @Description	Sets the capacity ceiling of a facility month. The row is created if it does not exist.
// @Tags			Capacity
// @Accept			json
// @Produce		json
// @Success		200			{object}	CapacityResponse
// @Failure		400			{object}	CapacityResponse
// @Failure		409			{object}	CapacityResponse
// @Failure		500			{object}	CapacityResponse
// @Failure		503			{object}	CapacityResponse
// @Param			facility	path		string				true	"Facility code"
// @Param			month		path		string				true	"Year and month in YYYY-MM format"
// @Param			capacity	body		CapacityEditable	true	"Capacity"
// @Param			X-Actor-ID	header		string				false	"Identity of the caller"
// @Router			/v1/capacity/{facility}/{month} [put]
func (co Controller) SetCapacity(c *gin.Context) {
	var uri URIFacilityMonth
	err := c.ShouldBindUri(&uri)
	if err != nil {
		s := err.Error()
		c.JSON(status(c, err), CapacityResponse{
			Error: &s,
		})
		return
	}

	var editable CapacityEditable
	err = httputil.BindData(c, &editable)
	if err != nil {
		s := err.Error()
		c.JSON(status(c, err), CapacityResponse{
			Error: &s,
		})
		return
	}

	l := co.Manager.Ledger()
	row, err := l.SetCapacity(c.Request.Context(), uri.Facility, uri.Month, editable.TotalCapacity, editable.Version, httputil.Actor(c))
	if err != nil {
		s := err.Error()
		c.JSON(status(c, err), CapacityResponse{
			Error: &s,
		})
		return
	}

	data := newCapacity(c, l, row)
	c.JSON(http.StatusOK, CapacityResponse{Data: &data})
}
