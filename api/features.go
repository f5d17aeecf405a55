package api

import (
	"crypto/subtle"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/silvesterwali/daily-gateway/events"
)

// postFeaturesReset publishes a features-reset event. The key check keeps the
// route from being a public cache-flush button.
func (h *handlers) postFeaturesReset(c echo.Context) error {
	if h.flagsResetKey == "" {
		return c.NoContent(http.StatusNotFound)
	}
	key := c.QueryParam("key")
	if subtle.ConstantTimeCompare([]byte(key), []byte(h.flagsResetKey)) != 1 {
		return c.NoContent(http.StatusForbidden)
	}
	if err := h.bus.Publish(c.Request().Context(), events.TopicFeaturesReset, struct{}{}, ""); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
