// README: Refund handlers: customer request, admin resolution, listing.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"angierens/internal/modules/refund"
	"angierens/internal/types"
)

type RefundHandler struct {
	refunds *refund.Service
}

func NewRefundHandler(refunds *refund.Service) *RefundHandler {
	return &RefundHandler{refunds: refunds}
}

type requestRefundReq struct {
	CustomerID         string `json:"customer_id"`
	Reason             string `json:"reason"`
	Destination        string `json:"destination"`
	ConfirmDestination string `json:"confirm_destination"`
}

func (h *RefundHandler) Request(c *gin.Context) {
	var req requestRefundReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	id, err := h.refunds.Request(c.Request.Context(), refund.RequestCommand{
		OrderID:            types.ID(c.Param("id")),
		CustomerID:         types.ID(req.CustomerID),
		Reason:             req.Reason,
		Destination:        req.Destination,
		ConfirmDestination: req.ConfirmDestination,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, gin.H{"refund_id": id, "status": refund.StatusPending})
}

type resolveRefundReq struct {
	Approve       bool   `json:"approve"`
	StaffResponse string `json:"staff_response"`
	ProofRef      string `json:"proof_ref"`
}

func (h *RefundHandler) Resolve(c *gin.Context) {
	var req resolveRefundReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	err := h.refunds.Resolve(c.Request.Context(), refund.ResolveCommand{
		OrderID:       types.ID(c.Param("id")),
		Approve:       req.Approve,
		StaffResponse: req.StaffResponse,
		ProofRef:      req.ProofRef,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	status := refund.StatusRejected
	if req.Approve {
		status = refund.StatusApproved
	}
	writeJSON(c, http.StatusOK, gin.H{"status": status})
}

func (h *RefundHandler) Get(c *gin.Context) {
	r, err := h.refunds.GetByOrder(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, r)
}

func (h *RefundHandler) List(c *gin.Context) {
	refunds, err := h.refunds.List(c.Request.Context(), refund.Status(c.Query("status")))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"refunds": refunds})
}
