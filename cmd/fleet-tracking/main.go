package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/theoremus-urban-solutions/fleet-tracking/broadcast"
	"github.com/theoremus-urban-solutions/fleet-tracking/config"
	"github.com/theoremus-urban-solutions/fleet-tracking/gtfsrtfeed"
	"github.com/theoremus-urban-solutions/fleet-tracking/ingest"
	"github.com/theoremus-urban-solutions/fleet-tracking/observability"
	"github.com/theoremus-urban-solutions/fleet-tracking/position"
	"github.com/theoremus-urban-solutions/fleet-tracking/routestate"
	"github.com/theoremus-urban-solutions/fleet-tracking/server"
)

func main() {
	configPath := flag.String("config", "", "path to config.yml")
	feedURL := flag.String("feed", "", "GTFS-RT VehiclePositions URL (overrides config)")
	flag.Parse()

	log := observability.NewLogger()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("config load failed", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := broadcast.NewHub(cfg.Broadcast.QueueSize)

	var positions position.Store
	switch cfg.Storage.Backend {
	case "redis":
		rs, err := position.NewRedisStore(ctx, cfg.Storage.Redis.Addr, cfg.Storage.Redis.DB, hub)
		if err != nil {
			log.Error("redis init failed", "addr", cfg.Storage.Redis.Addr, "error", err)
			os.Exit(1)
		}
		defer func() { _ = rs.Close() }()
		positions = rs
	default:
		positions = position.NewMemoryStore(hub)
	}

	routes := routestate.NewStore(hub)
	gateway := ingest.NewGateway(positions, routes, log,
		cfg.Ingest.RetryAttempts,
		time.Duration(cfg.Ingest.RetryBackoffMS)*time.Millisecond)

	if url := firstNonEmpty(*feedURL, cfg.Feed.VehiclePositionsURL); url != "" {
		interval := time.Duration(cfg.Feed.ReadIntervalMS) * time.Millisecond
		if interval <= 0 {
			interval = 15 * time.Second
		}
		poller := gtfsrtfeed.NewPoller(url, interval, gateway, log)
		go poller.Run(ctx)
		log.Info("feed poller started", "url", url, "interval", interval)
	}

	srv := server.New(fmt.Sprintf(":%d", cfg.Server.Port), gateway, positions, routes, hub, log)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("api server failed", "error", err)
			os.Exit(1)
		}
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	log.Info("shutdown signal received")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown error", "error", err)
	} else {
		log.Info("server shut down")
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
