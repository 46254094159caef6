// README: Staff board handlers: kitchen queue and the grouped dashboard.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"angierens/internal/modules/order"
)

// kitchenStatuses is what the kitchen display shows: confirmed work that is
// not yet out the door.
var kitchenStatuses = []order.Status{
	order.StatusQueueing, order.StatusPreparing, order.StatusCooking, order.StatusReady,
}

// dashboardStatuses is everything the staff dashboard groups over.
var dashboardStatuses = []order.Status{
	order.StatusPending, order.StatusQueueing, order.StatusPreparing,
	order.StatusCooking, order.StatusReady, order.StatusOnDelivery,
	order.StatusClaimOrder, order.StatusRefunding, order.StatusRefund,
	order.StatusRejected, order.StatusCancelled, order.StatusCompleted,
}

type BoardHandler struct {
	orders *order.Service
}

func NewBoardHandler(orders *order.Service) *BoardHandler {
	return &BoardHandler{orders: orders}
}

// Kitchen lists the cooking queue with per-item completion state.
func (h *BoardHandler) Kitchen(c *gin.Context) {
	list, err := h.orders.ListWithItems(c.Request.Context(), kitchenStatuses)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	if list == nil {
		list = []order.Composite{}
	}
	writeJSON(c, http.StatusOK, gin.H{"orders": list})
}

// Dashboard groups every order into its display bucket.
func (h *BoardHandler) Dashboard(c *gin.Context) {
	list, err := h.orders.ListByStatus(c.Request.Context(), dashboardStatuses)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	groups := map[order.Group][]order.Order{
		order.GroupNew:       {},
		order.GroupInProcess: {},
		order.GroupCompleted: {},
	}
	for _, o := range list {
		g := order.GroupOf(o.Status)
		groups[g] = append(groups[g], o)
	}
	writeJSON(c, http.StatusOK, gin.H{"groups": groups})
}
