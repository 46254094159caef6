// README: Rider handlers: position updates, nearby lookup, delivery route.
package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"angierens/internal/modules/order"
	"angierens/internal/modules/rider"
	"angierens/internal/types"
)

type RiderHandler struct {
	riders  *rider.Service
	tracker *rider.Tracker
	orders  *order.Service
}

func NewRiderHandler(riders *rider.Service, tracker *rider.Tracker, orders *order.Service) *RiderHandler {
	return &RiderHandler{riders: riders, tracker: tracker, orders: orders}
}

type updateLocationReq struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (h *RiderHandler) UpdateLocation(c *gin.Context) {
	var req updateLocationReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	err := h.riders.Update(c.Request.Context(), types.ID(c.Param("id")), types.Point{Lat: req.Lat, Lng: req.Lng})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"ok": true})
}

func (h *RiderHandler) Nearby(c *gin.Context) {
	lat, err1 := strconv.ParseFloat(c.Query("lat"), 64)
	lng, err2 := strconv.ParseFloat(c.Query("lng"), 64)
	if err1 != nil || err2 != nil {
		writeError(c, http.StatusBadRequest, "invalid coordinates")
		return
	}
	radiusKm := 5.0
	if v := c.Query("radius_km"); v != "" {
		r, err := strconv.ParseFloat(v, 64)
		if err != nil || r <= 0 {
			writeError(c, http.StatusBadRequest, "invalid radius")
			return
		}
		radiusKm = r
	}

	ids, err := h.riders.Nearby(c.Request.Context(), types.Point{Lat: lat, Lng: lng}, radiusKm)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"riders": ids})
}

// Route returns the current drivable path for an out-for-delivery order:
// from the rider's last position if known, otherwise the planned route from
// the store.
func (h *RiderHandler) Route(c *gin.Context) {
	comp, err := h.orders.GetComposite(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	u, err := h.tracker.Current(c.Request.Context(), comp)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	if u.Err != nil {
		writeServiceError(c, u.Err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{
		"rider_at": u.RiderAt,
		"planned":  u.Planned,
		"points":   u.Route.Points,
		"distance": u.Route.Distance,
		"duration": u.Route.Duration.String(),
	})
}
