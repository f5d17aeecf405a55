package api

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"github.com/silvesterwali/daily-gateway/events"
	"github.com/silvesterwali/daily-gateway/workers"
)

// RegisterPush exposes one endpoint per subscription. The delivery pump POSTs
// envelopes here; a non-2xx answer makes it redeliver, so a handler error maps
// to 500 and success to an empty 204.
func RegisterPush(e *echo.Echo, ws []workers.Worker, logger *log.Logger) {
	bySub := workers.BySubscription(ws)

	e.POST("/push/:subscription", func(c echo.Context) error {
		subscription := c.Param("subscription")
		worker, ok := bySub[subscription]
		if !ok {
			return c.NoContent(http.StatusNotFound)
		}

		body, err := io.ReadAll(c.Request().Body)
		if err != nil {
			return c.NoContent(http.StatusBadRequest)
		}
		msg, err := events.DecodePush(body)
		if err != nil {
			logger.WithField("subscription", subscription).WithError(err).Warn("bad push envelope")
			return c.NoContent(http.StatusBadRequest)
		}

		if err := worker.Handler(c.Request().Context(), msg); err != nil {
			logger.WithFields(log.Fields{
				"subscription": subscription,
				"messageId":    msg.ID,
			}).WithError(err).Error("push handler failed")
			return c.NoContent(http.StatusInternalServerError)
		}
		return c.NoContent(http.StatusNoContent)
	})
}
