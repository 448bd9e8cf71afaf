package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kiwari-pos/console/internal/backend"
	"github.com/kiwari-pos/console/internal/config"
	"github.com/kiwari-pos/console/internal/enum"
	"github.com/kiwari-pos/console/internal/events"
	"github.com/kiwari-pos/console/internal/router"
	"github.com/kiwari-pos/console/internal/service"
	"github.com/kiwari-pos/console/internal/ws"
)

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := backend.New(cfg.BackendURL, nil)

	hub := ws.NewHub()
	go hub.Run(ctx)

	sessions := service.NewRegistry(cfg.SessionTTL, service.Options{
		ClearCartOnPlace:           cfg.ClearCartOnPlace,
		CoalesceActiveOrderFetches: cfg.CoalesceActiveOrderFetches,
		FetchTimeout:               cfg.FetchTimeout,
	}, hub)
	go sessions.RunSweeper(ctx, time.Minute)

	// Backend notifications are optional; without NATS, dashboards refresh
	// tables only on their own actions.
	if cfg.NATSURL != "" {
		sub, err := events.Connect(cfg.NATSURL)
		if err != nil {
			log.Printf("WARNING: %v; live table updates disabled", err)
		} else {
			defer sub.Close()
			handle := events.RefreshTables(sessions, cfg.FetchTimeout)
			if err := sub.Subscribe(ctx, handle, enum.SubjectTablesUpdated, enum.SubjectOrdersPlaced); err != nil {
				log.Printf("WARNING: %v; live table updates disabled", err)
			} else {
				log.Printf("Subscribed to backend events on %s", cfg.NATSURL)
			}
		}
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           router.New(cfg, client, sessions, hub),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("ERROR: shutdown: %v", err)
		}
	}()

	log.Printf("Starting console on :%s (backend %s)", cfg.Port, cfg.BackendURL)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
	log.Println("Server stopped")
}
