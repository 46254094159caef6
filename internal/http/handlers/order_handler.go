// README: Order handlers: checkout, views, lifecycle transitions, completion toggles.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"angierens/internal/http/middleware"
	"angierens/internal/modules/order"
	"angierens/internal/types"
)

type OrderHandler struct {
	orders    *order.Service
	projector *order.Projector
}

func NewOrderHandler(orders *order.Service, projector *order.Projector) *OrderHandler {
	return &OrderHandler{orders: orders, projector: projector}
}

type addOnReq struct {
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type itemReq struct {
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	AddOns    []addOnReq      `json:"add_ons"`
}

type createOrderReq struct {
	CustomerID          string          `json:"customer_id"`
	CustomerName        string          `json:"customer_name"`
	Fulfillment         string          `json:"fulfillment"`
	SpecialInstructions string          `json:"special_instructions"`
	Items               []itemReq       `json:"items"`
	PaymentMethod       string          `json:"payment_method"`
	AmountPaid          decimal.Decimal `json:"amount_paid"`
	Paid                bool            `json:"paid"`
	Delivery            *struct {
		Fee     decimal.Decimal `json:"fee"`
		Address string          `json:"address"`
		Lat     float64         `json:"lat"`
		Lng     float64         `json:"lng"`
	} `json:"delivery"`
}

func (h *OrderHandler) Create(c *gin.Context) {
	var req createOrderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}

	cmd := order.CreateCommand{
		CustomerID:          types.ID(req.CustomerID),
		CustomerName:        req.CustomerName,
		Fulfillment:         order.Fulfillment(req.Fulfillment),
		SpecialInstructions: req.SpecialInstructions,
		Payment: order.PaymentInput{
			Method:     order.PaymentMethod(req.PaymentMethod),
			AmountPaid: req.AmountPaid,
			Paid:       req.Paid,
		},
	}
	for _, it := range req.Items {
		in := order.ItemInput{Name: it.Name, Quantity: it.Quantity, UnitPrice: it.UnitPrice}
		for _, a := range it.AddOns {
			in.AddOns = append(in.AddOns, order.AddOnInput{Name: a.Name, Quantity: a.Quantity, UnitPrice: a.UnitPrice})
		}
		cmd.Items = append(cmd.Items, in)
	}
	if req.Delivery != nil {
		cmd.Delivery = &order.DeliveryInput{
			Fee:         req.Delivery.Fee,
			Address:     req.Delivery.Address,
			Destination: types.Point{Lat: req.Delivery.Lat, Lng: req.Delivery.Lng},
		}
	}

	id, err := h.orders.Create(c.Request.Context(), cmd)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, gin.H{"order_id": id, "status": order.StatusPending})
}

func (h *OrderHandler) Get(c *gin.Context) {
	view, err := h.projector.View(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, view)
}

func (h *OrderHandler) History(c *gin.Context) {
	events, err := h.orders.History(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"events": events})
}

type transitionReq struct {
	To string `json:"to"`
}

// workflowOnlyStatuses cannot be entered through the generic transition
// endpoint: the refund workflow pairs these moves with refund rows, and a raw
// transition would leave an order in a refund state with no request behind it.
var workflowOnlyStatuses = map[order.Status]bool{
	order.StatusRefunding: true,
	order.StatusRefund:    true,
	order.StatusRejected:  true,
}

func (h *OrderHandler) Transition(c *gin.Context) {
	var req transitionReq
	if err := c.ShouldBindJSON(&req); err != nil || req.To == "" {
		writeError(c, http.StatusBadRequest, "missing target status")
		return
	}
	if workflowOnlyStatuses[order.Status(req.To)] {
		writeError(c, http.StatusBadRequest, "status is set by the refund workflow")
		return
	}
	err := h.orders.Transition(c.Request.Context(), order.TransitionCommand{
		OrderID: types.ID(c.Param("id")),
		To:      order.Status(req.To),
		Actor:   middleware.RoleOf(c),
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"status": req.To})
}

func (h *OrderHandler) Cancel(c *gin.Context) {
	if err := h.orders.Cancel(c.Request.Context(), types.ID(c.Param("id"))); err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"status": order.StatusCancelled})
}

func (h *OrderHandler) ConfirmReceipt(c *gin.Context) {
	if err := h.orders.ConfirmReceipt(c.Request.Context(), types.ID(c.Param("id"))); err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"status": order.StatusCompleted})
}

type assignRiderReq struct {
	RiderID string `json:"rider_id"`
}

func (h *OrderHandler) AssignRider(c *gin.Context) {
	var req assignRiderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	err := h.orders.AssignRider(c.Request.Context(), types.ID(c.Param("id")), types.ID(req.RiderID))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"rider_id": req.RiderID})
}

type completionReq struct {
	Completed bool `json:"completed"`
}

func (h *OrderHandler) SetItemCompletion(c *gin.Context) {
	var req completionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	err := h.orders.SetItemCompletion(c.Request.Context(), order.CompletionCommand{
		OrderID:   types.ID(c.Param("id")),
		RecordID:  types.ID(c.Param("itemID")),
		Completed: req.Completed,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"completed": req.Completed})
}

func (h *OrderHandler) SetAddOnCompletion(c *gin.Context) {
	var req completionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	err := h.orders.SetAddOnCompletion(c.Request.Context(), order.CompletionCommand{
		OrderID:   types.ID(c.Param("id")),
		RecordID:  types.ID(c.Param("addOnID")),
		Completed: req.Completed,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"completed": req.Completed})
}
