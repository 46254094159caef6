// README: Entry point; loads config, wires services, starts HTTP server and background workers.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"angierens/internal/bus"
	"angierens/internal/config"
	httptransport "angierens/internal/http"
	"angierens/internal/infra"
	"angierens/internal/maps"
	"angierens/internal/modules/notify"
	"angierens/internal/modules/order"
	"angierens/internal/modules/refund"
	"angierens/internal/modules/rider"
	"angierens/internal/types"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		log.Fatal(err)
	}
	defer dbPool.Close()

	redisClient := infra.NewRedis(cfg.Redis.Addr)
	changeBus := bus.NewRedisBus(redisClient)

	if cfg.Maps.APIKey == "" {
		log.Fatal("GOOGLE_MAPS_API_KEY is required")
	}
	routeSvc, err := maps.NewRouteService(cfg.Maps.APIKey)
	if err != nil {
		log.Fatalf("maps init: %v", err)
	}

	storeOrigin := types.Point{Lat: cfg.Store.Lat, Lng: cfg.Store.Lng}

	orderStore := order.NewStore(dbPool)
	orderSvc := order.NewService(orderStore, changeBus)
	projector := order.NewProjector(orderStore, changeBus)

	refundStore := refund.NewStore(dbPool)
	refundSvc := refund.NewService(refundStore, orderSvc)

	riderStore := rider.NewStore(dbPool, redisClient)
	riderSvc := rider.NewService(riderStore, changeBus)
	tracker := rider.NewTracker(riderSvc, routeSvc, changeBus, storeOrigin)

	center := notify.NewCenter(cfg.Notify.QueueSize)
	notifier := notify.NewNotifier(center, changeBus, orderSvc)
	go func() {
		if err := notifier.Run(ctx); err != nil && ctx.Err() == nil {
			log.Printf("notifier stopped: %v", err)
		}
	}()

	// Periodic dashboard refresh log; the boards themselves poll over HTTP.
	go projector.Poll(ctx, time.Duration(cfg.Dashboard.PollSeconds)*time.Second,
		[]order.Status{order.StatusPending, order.StatusRefunding},
		func(orders []order.Order) {
			log.Printf("attention queue: %d orders awaiting staff action", len(orders))
		})

	handler := httptransport.NewRouter(httptransport.ServerDeps{
		Orders:    orderSvc,
		Projector: projector,
		Refunds:   refundSvc,
		Riders:    riderSvc,
		Tracker:   tracker,
		Notify:    center,
	})

	server := &http.Server{Addr: cfg.HTTP.Addr, Handler: handler}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	log.Printf("listening on %s", cfg.HTTP.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal(err)
	}
}
