// Package v1 serves the allocation engine over HTTP.
package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/railfleet/capacity-engine/internal/allocations"
	"github.com/railfleet/capacity-engine/internal/history"
	"github.com/railfleet/capacity-engine/internal/httputil"
	"github.com/railfleet/capacity-engine/internal/ledger"
	"github.com/railfleet/capacity-engine/internal/notify"
)

// Controller holds the engine components the handlers act on.
type Controller struct {
	Manager *allocations.Manager

	// Capacity serves single capacity reads. It may be a cache in front of
	// the manager's ledger.
	Capacity ledger.Reader

	// Broker feeds the event stream. The stream is not served when nil.
	Broker *notify.Broker

	History *history.Recorder
}

// NewController creates a Controller reading capacity directly from the manager's ledger.
func NewController(manager *allocations.Manager, broker *notify.Broker) Controller {
	return Controller{
		Manager:  manager,
		Capacity: manager.Ledger(),
		Broker:   broker,
		History:  manager.History(),
	}
}

// RegisterRoutes registers all v1 routes with the RouterGroup that is passed.
func (co Controller) RegisterRoutes(r *gin.RouterGroup) {
	{
		r.GET("", Get)
		r.OPTIONS("", Options)
	}

	co.RegisterAllocationRoutes(r.Group("/allocations"))
	co.RegisterCapacityRoutes(r.Group("/capacity"))
	co.RegisterAssetRoutes(r.Group("/assets"))

	if co.Broker != nil {
		co.RegisterEventRoutes(r.Group("/events"))
	}
}

type Response struct {
	Links Links `json:"links"`
}

type Links struct {
	Allocations string `json:"allocations" example:"https://example.com/api/v1/allocations"` // List endpoint for allocations
	Capacity    string `json:"capacity" example:"https://example.com/api/v1/capacity"`       // Capacity ledger
	Events      string `json:"events" example:"https://example.com/api/v1/events"`           // Server-sent change events
}

// @Summary		v1 API
// @Description	Returns general information about the v1 API
// @Tags			v1
// @Success		200	{object}	Response
// @Router			/v1 [get]
func Get(c *gin.Context) {
	url := httputil.BaseURL(c) + "/v1"

	c.JSON(http.StatusOK, Response{
		Links: Links{
			Allocations: url + "/allocations",
			Capacity:    url + "/capacity",
			Events:      url + "/events",
		},
	})
}

// @Summary		Allowed HTTP verbs
// @Description	Returns an empty response with the HTTP Header "allow" set to the allowed HTTP verbs
// @Tags			v1
// @Success		204
// @Router			/v1 [options]
func Options(c *gin.Context) {
	httputil.OptionsGet(c)
}
