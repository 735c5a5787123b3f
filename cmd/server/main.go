package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/kiraleos/tweetsmith/internal/api"
	"github.com/kiraleos/tweetsmith/internal/auth"
	"github.com/kiraleos/tweetsmith/internal/config"
	"github.com/kiraleos/tweetsmith/internal/core"
	"github.com/kiraleos/tweetsmith/internal/logger"
	"github.com/kiraleos/tweetsmith/internal/metrics"
	"github.com/kiraleos/tweetsmith/internal/store"
)

func main() {
	// Command line flag for issuing a bearer token
	issueToken := flag.String("issue-token", "", "Print a bearer token for the given user id and exit")
	tokenTTL := flag.Duration("token-ttl", 30*24*time.Hour, "Lifetime of tokens printed by -issue-token")
	flag.Parse()

	if *issueToken != "" {
		config.LoadAuthConfig()
		token, err := auth.NewAuthenticator(config.AppConfig.JWTSecret).GenerateToken(*issueToken, *tokenTTL)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to issue token")
		}
		fmt.Println(token)
		return
	}

	// Load configuration
	config.LoadConfig()
	cfg := config.AppConfig

	// Setup logging
	logger.Init(logger.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty})
	log.Debug().Msg("Service starting in DEBUG mode")

	authn := auth.NewAuthenticator(cfg.JWTSecret)
	ctx := context.Background()
	m := metrics.New(prometheus.DefaultRegisterer)

	// Initialize object store
	objects, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.StoreBackend).Msg("Failed to initialize object store")
	}
	defer closeStore()

	// Initialize LLM provider
	provider, err := core.NewGeminiProvider(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize LLM provider")
	}
	defer provider.Close()

	chatService := core.NewChatService(store.NewInstrumented(objects, m, cfg.StoreBackend))
	relay := core.NewRelay(provider, cfg.HistoryWindow, m)

	// Initialize API Handler and Router
	apiHandler := api.NewAPIHandler(chatService, relay)
	router := api.NewRouter(apiHandler, authn, m, promhttp.Handler())

	serverAddr := fmt.Sprintf(":%s", cfg.HTTPPort)
	srv := &http.Server{
		Addr:        serverAddr,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		// No write timeout: generation streams stay open for as long as the provider keeps
		// sending.
		IdleTimeout: 120 * time.Second,
	}

	// Graceful shutdown handling
	go func() {
		log.Info().Str("addr", serverAddr).Str("store", cfg.StoreBackend).Str("model", cfg.GeminiModel).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Str("addr", serverAddr).Msg("Could not listen")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
		return
	}
	log.Info().Msg("Server exiting gracefully")
}

func openStore(ctx context.Context, cfg config.Config) (store.ObjectStore, func(), error) {
	switch cfg.StoreBackend {
	case "s3":
		s, err := store.NewS3Store(ctx, store.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			Endpoint:        cfg.S3Endpoint,
		})
		if err != nil {
			return nil, nil, err
		}
		return s, func() {}, nil
	case "bolt":
		s, err := store.NewBoltStore(cfg.BoltPath)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { s.Close() }, nil
	case "sqlite":
		s, err := store.NewSQLiteStore(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { s.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}
