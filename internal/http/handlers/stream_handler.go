// README: SSE streams: live order view and live delivery tracking.
package handlers

import (
	"io"

	"github.com/gin-gonic/gin"

	"angierens/internal/modules/order"
	"angierens/internal/modules/rider"
	"angierens/internal/types"
)

type StreamHandler struct {
	orders    *order.Service
	projector *order.Projector
	tracker   *rider.Tracker
}

func NewStreamHandler(orders *order.Service, projector *order.Projector, tracker *rider.Tracker) *StreamHandler {
	return &StreamHandler{orders: orders, projector: projector, tracker: tracker}
}

func sseHeaders(c *gin.Context) {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
}

// Watch streams the re-projected order view on every change until the client
// disconnects.
func (h *StreamHandler) Watch(c *gin.Context) {
	id := types.ID(c.Param("id"))
	if _, err := h.orders.Get(c.Request.Context(), id); err != nil {
		writeServiceError(c, err)
		return
	}

	views, stop, err := h.projector.Watch(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	defer stop()

	sseHeaders(c)
	c.Stream(func(io.Writer) bool {
		select {
		case v, ok := <-views:
			if !ok {
				return false
			}
			c.SSEvent("view", v)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

// Track streams route updates for an out-for-delivery order. The watch is
// detached when the client goes away.
func (h *StreamHandler) Track(c *gin.Context) {
	comp, err := h.orders.GetComposite(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	updates, err := h.tracker.Attach(c.Request.Context(), comp)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	defer h.tracker.Detach(comp.Order.ID)

	sseHeaders(c)
	c.Stream(func(io.Writer) bool {
		select {
		case u, ok := <-updates:
			if !ok {
				return false
			}
			if u.Err != nil {
				c.SSEvent("route_error", gin.H{"error": u.Err.Error(), "at": u.At})
				return true
			}
			c.SSEvent("route", gin.H{
				"rider_at": u.RiderAt,
				"planned":  u.Planned,
				"points":   u.Route.Points,
				"distance": u.Route.Distance,
				"duration": u.Route.Duration.String(),
				"at":       u.At,
			})
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
