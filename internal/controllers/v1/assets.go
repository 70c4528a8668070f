package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/railfleet/capacity-engine/internal/httputil"
	"github.com/railfleet/capacity-engine/internal/models"
)

type URIAsset struct {
	AssetID string `uri:"assetId" binding:"required" example:"car-8812"` // Identifier of the asset
}

type AssetHistoryResponse struct {
	Data  []models.AssetEvent `json:"data"`                                                                // Events, oldest first
	Error *string             `json:"error" example:"an error occurred on the server during your request"` // The error, if any occurred
}

// RegisterAssetRoutes registers the routes for asset history with
// the RouterGroup that is passed.
func (co Controller) RegisterAssetRoutes(r *gin.RouterGroup) {
	r.OPTIONS("/:assetId/history", co.OptionsAssetHistory)
	r.GET("/:assetId/history", co.GetAssetHistory)
}

// @Summary		Allowed HTTP verbs
// @Description	Returns an empty response with the HTTP Header "allow" set to the allowed HTTP verbs
// @Tags			Assets
// @Success		204
// @Param			assetId	path	string	true	"ID of the asset"
// @Router			/v1/assets/{assetId}/history [options]
func (co Controller) OptionsAssetHistory(c *gin.Context) {
	httputil.OptionsGet(c)
}

// @Summary		Get asset history
// @Description	Returns the allocation history of an asset, oldest first. Assets without history return an empty list.
// @Tags			Assets
// @Produce		json
// @Success		200		{object}	AssetHistoryResponse
// @Failure		500		{object}	AssetHistoryResponse
// @Param			assetId	path		string	true	"ID of the asset"
// @Router			/v1/assets/{assetId}/history [get]
func (co Controller) GetAssetHistory(c *gin.Context) {
	var uri URIAsset
	err := c.ShouldBindUri(&uri)
	if err != nil {
		s := err.Error()
		c.JSON(status(c, err), AssetHistoryResponse{
			Error: &s,
		})
		return
	}

	events, err := co.History.List(c.Request.Context(), uri.AssetID)
	if err != nil {
		s := err.Error()
		c.JSON(status(c, err), AssetHistoryResponse{
			Error: &s,
		})
		return
	}

	c.JSON(http.StatusOK, AssetHistoryResponse{Data: events})
}
