// README: API gateway; registers HTTP routes and delegates to module services.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"angierens/internal/http/handlers"
	"angierens/internal/http/middleware"
	"angierens/internal/modules/notify"
	"angierens/internal/modules/order"
	"angierens/internal/modules/refund"
	"angierens/internal/modules/rider"
)

type ServerDeps struct {
	Orders    *order.Service
	Projector *order.Projector
	Refunds   *refund.Service
	Riders    *rider.Service
	Tracker   *rider.Tracker
	Notify    *notify.Center
}

// NewRouter wires the actor surfaces onto one gin engine. Role enforcement
// beyond the transition table lives here: staff boards and refund resolution
// are closed to customers at the route level.
func NewRouter(deps ServerDeps) http.Handler {
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Logging(), middleware.Recovery(), middleware.Actor())

	orderHandler := handlers.NewOrderHandler(deps.Orders, deps.Projector)
	streamHandler := handlers.NewStreamHandler(deps.Orders, deps.Projector, deps.Tracker)
	refundHandler := handlers.NewRefundHandler(deps.Refunds)
	riderHandler := handlers.NewRiderHandler(deps.Riders, deps.Tracker, deps.Orders)
	boardHandler := handlers.NewBoardHandler(deps.Orders)
	notifyHandler := handlers.NewNotifyHandler(deps.Notify)

	api := r.Group("/api")

	orders := api.Group("/orders")
	orders.POST("", orderHandler.Create)
	orders.GET("/:id", orderHandler.Get)
	orders.GET("/:id/history", orderHandler.History)
	orders.POST("/:id/transition", orderHandler.Transition)
	orders.POST("/:id/cancel", orderHandler.Cancel)
	orders.POST("/:id/confirm", orderHandler.ConfirmReceipt)
	orders.GET("/:id/route", riderHandler.Route)
	orders.GET("/:id/watch", streamHandler.Watch)
	orders.GET("/:id/track", streamHandler.Track)
	orders.POST("/:id/rider", middleware.RequireRole(order.RoleAdmin), orderHandler.AssignRider)

	kitchen := orders.Group("", middleware.RequireRole(order.RoleKitchen, order.RoleAdmin))
	kitchen.POST("/:id/items/:itemID/completion", orderHandler.SetItemCompletion)
	kitchen.POST("/:id/addons/:addOnID/completion", orderHandler.SetAddOnCompletion)

	orders.POST("/:id/refund", refundHandler.Request)
	orders.GET("/:id/refund", refundHandler.Get)
	orders.POST("/:id/refund/resolve", middleware.RequireRole(order.RoleAdmin), refundHandler.Resolve)
	api.GET("/refunds", middleware.RequireRole(order.RoleAdmin), refundHandler.List)

	riders := api.Group("/riders")
	riders.PUT("/:id/location", middleware.RequireRole(order.RoleRider, order.RoleAdmin), riderHandler.UpdateLocation)
	riders.GET("/nearby", middleware.RequireRole(order.RoleAdmin), riderHandler.Nearby)

	boards := api.Group("/board", middleware.RequireRole(order.RoleKitchen, order.RoleAdmin))
	boards.GET("/kitchen", boardHandler.Kitchen)
	boards.GET("/dashboard", boardHandler.Dashboard)

	api.GET("/notifications/:recipient", notifyHandler.List)
	api.POST("/notifications/:recipient/read", notifyHandler.MarkAllRead)

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	return r
}
