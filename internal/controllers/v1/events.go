package v1

import (
	"io"
	"time"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/railfleet/capacity-engine/internal/httputil"
	"github.com/rs/zerolog/log"
)

const (
	// subscriberBuffer is the number of events buffered per stream.
	subscriberBuffer = 64

	// keepAlive is the interval of comment lines on idle streams.
	keepAlive = 25 * time.Second
)

// RegisterEventRoutes registers the event stream with the RouterGroup that is passed.
func (co Controller) RegisterEventRoutes(r *gin.RouterGroup) {
	r.OPTIONS("", co.OptionsEvents)
	r.GET("", co.GetEvents)
}

// @Summary		Allowed HTTP verbs
// @Description	Returns an empty response with the HTTP Header "allow" set to the allowed HTTP verbs
// @Tags			Events
// @Success		204
// @Router			/v1/events [options]
func (co Controller) OptionsEvents(c *gin.Context) {
	httputil.OptionsGet(c)
}

// @Summary		Stream change events
// @Description	Streams allocation and capacity change events as server-sent events.
// @Description	Events are hints. Clients reconcile by reading the current state.
// @Tags			Events
// @Produce		text/event-stream
// @Success		200
// @Param			topic	query	string	false	"Topic pattern, e.g. allocations.F1.* or capacity.*.2026-03. Defaults to all topics."
// @Router			/v1/events [get]
func (co Controller) GetEvents(c *gin.Context) {
	sub := co.Broker.Subscribe(c.Query("topic"), subscriberBuffer)
	defer sub.Close()

	log.Debug().Str("request-id", requestid.Get(c)).Str("pattern", sub.Pattern()).Msg("event stream opened")

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")

	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false

		case e, ok := <-sub.C():
			if !ok {
				return false
			}
			c.SSEvent(string(e.Type), e)
			return true

		case <-ticker.C:
			_, err := io.WriteString(w, ": keep-alive\n\n")
			return err == nil
		}
	})

	log.Debug().Str("request-id", requestid.Get(c)).Str("pattern", sub.Pattern()).Msg("event stream closed")
}
