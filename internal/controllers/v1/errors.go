package v1

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/railfleet/capacity-engine/internal/ledger"
	"github.com/railfleet/capacity-engine/internal/models"
	"github.com/railfleet/capacity-engine/internal/transitions"
)

// retryAfter is the number of seconds clients wait before retrying a transient failure.
const retryAfter = 1

type httpError struct {
	Error string `json:"error" example:"the specified resource ID is not a valid UUID"`
}

// status returns the appropriate HTTP status for an error. Transient
// errors set the Retry-After header.
func status(c *gin.Context, err error) int {
	switch {
	case errors.Is(err, models.ErrGeneral):
		return http.StatusInternalServerError

	case errors.Is(err, models.ErrTransient):
		c.Header("Retry-After", strconv.Itoa(retryAfter))
		return http.StatusServiceUnavailable

	case errors.Is(err, models.ErrResourceNotFound):
		return http.StatusNotFound

	case errors.Is(err, ledger.ErrCapacityExceeded),
		errors.Is(err, models.ErrVersionConflict),
		errors.Is(err, transitions.ErrNotRevertible):
		return http.StatusConflict
	}

	return http.StatusBadRequest
}

var (
	errFacilityNotSet = errors.New("the facility query parameter must be set")
	errFromNotSet     = errors.New("the from query parameter must be set")
	errRangeTooLong   = errors.New("the requested month range must not be longer than 60 months")
	errCapacityNotSet = fmt.Errorf("%w capacity row for this facility month", models.ErrResourceNotFound)
)
