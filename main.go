package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"modbus-registry-api/config"
	"modbus-registry-api/database"
	"modbus-registry-api/handlers"
	"modbus-registry-api/middleware"
	"modbus-registry-api/service"
	"modbus-registry-api/store"
	"modbus-registry-api/utils"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load config
	cfg := config.Load()

	// Connect to databases
	db, err := database.Connect(ctx, cfg.PostgresURL(), cfg.RedisAddr(), cfg.RedisPassword)
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	defer db.Close()

	log.Println("Database connections established")

	// Stores
	users := store.NewUserStore(db.Postgres)
	tokens := store.NewTokenStore(db.Postgres)
	devices := store.NewDeviceStore(db.Postgres)
	registers := store.NewRegisterStore(db.Postgres)
	history := store.NewHistoryStore(db.Postgres)

	// Services
	authService := service.NewAuthService(users, tokens, cfg.BcryptCost, cfg.TokenValidity)
	registryService := service.NewRegistryService(authService, devices, registers, history, cfg.DeviceStaleAfter)
	batch := service.NewBatchCoordinator(registryService)

	// Startup maintenance hook: purge tokens that expired while we were down.
	authService.CleanupExpiredTokens(ctx)

	// Handlers
	authHandler := handlers.NewAuthHandler(authService)
	deviceHandler := handlers.NewDeviceHandler(registryService)
	registerHandler := handlers.NewRegisterHandler(registryService, batch)

	// Middleware for auth endpoints
	authLimiter := middleware.NewRateLimitAuth(db.Redis, cfg.AuthRateLimitMax, cfg.AuthRateLimitWindow)

	// Setup routes
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		utils.WriteJSON(w, http.StatusOK, map[string]string{
			"status":    "ok",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})
	mux.Handle("GET /metrics", promhttp.Handler())

	// Auth endpoints (rate limited per IP)
	mux.Handle("POST /api/auth/signup", authLimiter.Limit(http.HandlerFunc(authHandler.SignUp)))
	mux.Handle("POST /api/auth/login", authLimiter.Limit(http.HandlerFunc(authHandler.Login)))
	mux.HandleFunc("GET /api/auth/validate", authHandler.Validate)

	// Device endpoints (service-level bearer auth)
	mux.HandleFunc("POST /api/devices", deviceHandler.Create)
	mux.HandleFunc("GET /api/devices", deviceHandler.List)
	mux.HandleFunc("GET /api/devices/{deviceID}", deviceHandler.Get)
	mux.HandleFunc("GET /api/devices/{deviceID}/status", deviceHandler.GetStatus)
	mux.HandleFunc("PUT /api/devices/{deviceID}/status/{status}", deviceHandler.UpdateStatus)
	mux.HandleFunc("PUT /api/devices/{deviceID}/network", deviceHandler.UpdateNetwork)

	// Register endpoints
	mux.HandleFunc("POST /api/registers", registerHandler.Create)
	mux.HandleFunc("PUT /api/registers", registerHandler.Write)
	mux.HandleFunc("GET /api/registers/{deviceID}", registerHandler.ListForDevice)
	mux.HandleFunc("GET /api/registers/{deviceID}/{type}/{address}", registerHandler.Read)
	mux.HandleFunc("GET /api/registers/{deviceID}/{type}/{address}/history", registerHandler.History)
	mux.HandleFunc("POST /api/registers/read/batch", registerHandler.ReadBatch)
	mux.HandleFunc("POST /api/registers/write/batch", registerHandler.WriteBatch)

	// Middleware chain
	cors := middleware.NewCORSConfig(cfg.CORSAllowedOrigins, cfg.CORSAllowedMethods, cfg.CORSAllowedHeaders)
	handler := middleware.RequestID(middleware.Logging(middleware.Recover(cors.Handle(mux))))

	addr := ":" + cfg.Port
	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Modbus registry API running on %s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.ShutdownTimeoutSecs)*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}
