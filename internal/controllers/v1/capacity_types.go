package v1

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/railfleet/capacity-engine/internal/httputil"
	"github.com/railfleet/capacity-engine/internal/ledger"
	"github.com/railfleet/capacity-engine/internal/models"
)

// maxRangeMonths limits the months of a single capacity range request.
const maxRangeMonths = 60

// CapacityEditable represents all user configurable parameters of a ledger row
type CapacityEditable struct {
	TotalCapacity int `json:"totalCapacity" example:"12"` // Capacity ceiling of the facility month
	Version       int `json:"version" example:"1"`        // Version the change is based on. 0 skips the check.
}

type CapacityLinks struct {
	Self        string `json:"self" example:"https://example.com/api/v1/capacity/F1/2026-03"`                          // The ledger row itself
	Allocations string `json:"allocations" example:"https://example.com/api/v1/allocations?facility=F1&month=2026-03"` // Allocations of the facility month
}

type Capacity struct {
	models.ShopMonthlyCapacity
	Tolerance int           `json:"tolerance" example:"1"` // How many allocations the facility month may be overbooked by
	Links     CapacityLinks `json:"links"`                 // Links to related resources
}

func newCapacity(c *gin.Context, l *ledger.Ledger, row models.ShopMonthlyCapacity) Capacity {
	url := httputil.BaseURL(c)

	return Capacity{
		ShopMonthlyCapacity: row,
		Tolerance:           l.Tolerance(row.TotalCapacity),
		Links: CapacityLinks{
			Self:        fmt.Sprintf("%s/v1/capacity/%s/%s", url, row.FacilityCode, row.Month),
			Allocations: fmt.Sprintf("%s/v1/allocations?facility=%s&month=%s", url, row.FacilityCode, row.Month),
		},
	}
}

type CapacityResponse struct {
	Data  *Capacity `json:"data"`                                                             // Data for the ledger row
	Error *string   `json:"error" example:"there is no capacity row for this facility month"` // The error, if any occurred
}

type CapacityListResponse struct {
	Data  []Capacity `json:"data"`                                                     // Ledger rows, ordered by month
	Error *string    `json:"error" example:"the facility query parameter must be set"` // The error, if any occurred
}

type CapacityQueryFilter struct {
	Facility string `form:"facility"` // Facility code
	From     string `form:"from"`     // First month (YYYY-MM)
	Until    string `form:"until"`    // Last month (YYYY-MM), defaults to from
}
