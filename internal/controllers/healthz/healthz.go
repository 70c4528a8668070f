package healthz

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/railfleet/capacity-engine/internal/httputil"
	"github.com/railfleet/capacity-engine/internal/models"
	"github.com/rs/zerolog/log"
)

var errDatabaseUnavailable = errors.New("the database is not reachable")

func RegisterRoutes(r *gin.RouterGroup) {
	r.OPTIONS("", Options)
	r.GET("", Get)
}

// @Summary		Allowed HTTP verbs
// @Description	Returns an empty response with the HTTP Header "allow" set to the allowed HTTP verbs
// @Tags			General
// @Success		204
// @Router			/healthz [options]
func Options(c *gin.Context) {
	httputil.OptionsGet(c)
}

// @Summary		Get health
// @Description	Returns the application health and, if not healthy, an error
// @Tags			General
// @Produce		json
// @Success		204
// @Failure		503	{object}	httputil.HTTPError
// @Router			/healthz [get]
func Get(c *gin.Context) {
	if models.DB == nil {
		httputil.NewError(c, http.StatusServiceUnavailable, errDatabaseUnavailable)
		return
	}

	sqlDB, err := models.DB.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}

	if err != nil {
		log.Error().Err(err).Msg("health check failed")
		httputil.NewError(c, http.StatusServiceUnavailable, errDatabaseUnavailable)
		return
	}

	c.Status(http.StatusNoContent)
}
