package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"affiliate-redirector/abuse"
	"affiliate-redirector/auth"
	"affiliate-redirector/cache"
	"affiliate-redirector/clicks"
	"affiliate-redirector/config"
	"affiliate-redirector/handler"
	appLogger "affiliate-redirector/logger"
	"affiliate-redirector/middleware"
	redisClient "affiliate-redirector/redis"
	"affiliate-redirector/signing"
	"affiliate-redirector/store"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
)

func main() {
	// Initialize logger
	appLogger.Initialize()

	// Load configuration
	cfg := config.MustLoadConfig()
	log.Info().Msg("Configuration loaded successfully")

	// Initialize Redis client and the persistence layer
	rdb := redisClient.NewClient(cfg.Redis)
	linkStore := store.New(rdb, cfg.Clicks.MaxEvents)

	// Initialize link cache (if enabled)
	var linkCache *cache.Cache
	if cfg.Cache.Enabled {
		var err error
		linkCache, err = cache.New(cfg.Cache)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize cache")
		}
	} else {
		log.Info().Msg("Cache disabled in configuration")
	}

	// The signer backs both link signatures and attribution cookies; a
	// missing secret already failed config loading, this is belt-and-braces.
	signer, err := signing.New(cfg.Attribution.Secret)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize signer")
	}

	clickGuard := abuse.NewGuard(linkStore, cfg.Abuse)
	clickRecorder := clicks.NewRecorder(linkStore, cfg.Clicks.Workers, cfg.Clicks.QueueSize)

	// Create handler with dependency injection
	apiHandler := handler.New(linkStore, linkCache, signer, clickGuard, clickRecorder, cfg)

	// Set up router
	r := mux.NewRouter()

	// Apply global middleware
	rateLimiter := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	userAuth := middleware.NewUserAuth(auth.NewJWTManager(cfg.Auth.JWTSecret))
	adminAuth := middleware.NewAdminAuth(cfg.Auth.AdminAPIKey)

	r.Use(middleware.RequestLogger)
	r.Use(rateLimiter.Limit)

	// Register routes
	r.HandleFunc("/health", apiHandler.HealthCheck).Methods("GET")
	r.HandleFunc("/cache/metrics", apiHandler.CacheMetrics).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()
	api.Handle("/partners", userAuth.Protect(http.HandlerFunc(apiHandler.RegisterPartner))).Methods("POST")
	api.Handle("/links", userAuth.Protect(http.HandlerFunc(apiHandler.CreateLink))).Methods("POST")
	api.Handle("/links/{slug}/stats", userAuth.Protect(http.HandlerFunc(apiHandler.LinkStats))).Methods("GET")

	admin := r.PathPrefix("/api/admin").Subrouter()
	admin.Use(adminAuth.Protect)
	admin.HandleFunc("/partners/{partnerID}/approve", apiHandler.ApprovePartner).Methods("POST")
	admin.HandleFunc("/partners/{partnerID}/suspend", apiHandler.SuspendPartner).Methods("POST")

	// Redirect route; visitor identity is optional and only feeds the
	// self-referral check
	r.Handle("/l/{slug}", userAuth.Optional(http.HandlerFunc(apiHandler.Redirect))).Methods("GET", "HEAD")

	// Configure HTTP server
	serverAddress := fmt.Sprintf("%s:%s", cfg.WebServer.IP, cfg.WebServer.Port)
	server := &http.Server{
		Addr: serverAddress,
		// CORS wraps the router itself so OPTIONS preflights are answered
		// even for paths mux would not otherwise match
		Handler:      middleware.CORS(r),
		ReadTimeout:  time.Duration(cfg.WebServer.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.WebServer.WriteTimeout) * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("address", serverAddress).
			Str("scheme", cfg.WebServer.Scheme).
			Msg("Starting server")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.WebServer.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	// Drain pending click events before the store connection goes away
	clickRecorder.Close()

	// Close cache
	if linkCache != nil {
		linkCache.Close()
	}

	// Close Redis connection
	if err := rdb.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close Redis connection")
	}

	log.Info().Msg("Server stopped gracefully")
}
