// README: Notification handlers backed by the in-memory center.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"angierens/internal/modules/notify"
	"angierens/internal/types"
)

type NotifyHandler struct {
	center *notify.Center
}

func NewNotifyHandler(center *notify.Center) *NotifyHandler {
	return &NotifyHandler{center: center}
}

func (h *NotifyHandler) List(c *gin.Context) {
	recipient := types.ID(c.Param("recipient"))
	writeJSON(c, http.StatusOK, gin.H{
		"notifications": h.center.List(recipient),
		"unread":        h.center.Unread(recipient),
	})
}

func (h *NotifyHandler) MarkAllRead(c *gin.Context) {
	h.center.MarkAllRead(types.ID(c.Param("recipient")))
	writeJSON(c, http.StatusOK, gin.H{"ok": true})
}
