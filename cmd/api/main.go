package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wenwu/saas-platform/tunnel-admin-service/internal/client"
	"github.com/wenwu/saas-platform/tunnel-admin-service/internal/config"
	"github.com/wenwu/saas-platform/tunnel-admin-service/internal/db"
	"github.com/wenwu/saas-platform/tunnel-admin-service/internal/http"
	"github.com/wenwu/saas-platform/tunnel-admin-service/internal/monitor"
	"github.com/wenwu/saas-platform/tunnel-admin-service/internal/policy"
	"github.com/wenwu/saas-platform/tunnel-admin-service/internal/repository"
	"github.com/wenwu/saas-platform/tunnel-admin-service/internal/service"
)

func main() {
	log.Println("Starting Tunnel Admin Service...")

	// Load configuration
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Initialize database
	pool, err := db.NewPool(cfg.Database.DSN(), cfg.Database.Schema)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	// Initialize repositories
	portRepo := repository.NewPortRepository(pool)
	trafficRepo := repository.NewTrafficRepository(pool)
	configRepo := repository.NewConfigRepository(pool)

	// Initialize frps dashboard client
	frpsClient := client.NewFrpsClient(
		cfg.Frps.DashboardAddr,
		cfg.Frps.DashboardUser,
		cfg.Frps.DashboardPassword,
		time.Duration(cfg.Monitor.TimeoutSeconds)*time.Second,
	)

	// Initialize services
	pol := policy.Policy{
		MaxPortsPerUser: cfg.Policy.MaxPortsPerUser,
		MinPort:         cfg.Policy.MinPort,
		MaxPort:         cfg.Policy.MaxPort,
	}
	portService := service.NewPortService(portRepo, pol)
	trafficService := service.NewTrafficService(trafficRepo)
	settingsService := service.NewSettingsService(configRepo)

	// Start the traffic reconciliation loop
	trafficMonitor := monitor.New(
		frpsClient,
		portRepo,
		trafficService,
		time.Duration(cfg.Monitor.IntervalSeconds)*time.Second,
	)
	trafficMonitor.Start()

	// Initialize HTTP server
	server := http.NewServer(cfg, portService, trafficService, settingsService)

	// Start server in goroutine
	go func() {
		addr := fmt.Sprintf(":%s", cfg.Server.Port)
		log.Printf("Server starting on %s", addr)
		if err := server.Run(addr); err != nil {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down...")

	// 等待当前统计周期结束再退出
	trafficMonitor.Stop()

	log.Println("Server exited")
}
