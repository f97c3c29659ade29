package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pickemslab/bracket-engine/brackets"
	"github.com/pickemslab/bracket-engine/config"
	"github.com/pickemslab/bracket-engine/db"
	"github.com/pickemslab/bracket-engine/handlers"
	"github.com/pickemslab/bracket-engine/repositories"
	api "github.com/pickemslab/bracket-engine/routes"
	"github.com/pickemslab/bracket-engine/services"
	"github.com/pickemslab/bracket-engine/storage"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("configuration loaded",
		slog.Int("port", cfg.ServerPort),
		slog.Int("tournament_id", cfg.TournamentID),
	)

	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		} else {
			logger.Info("database connection closed")
		}
	}()
	logger.Info("database connection established")

	// Snapshot export is optional; without the R2 block the engine only
	// serves the live view.
	var snapshots *services.SnapshotPublisher
	if cfg.SnapshotsEnabled() {
		uploader, err := storage.NewCloudflareR2Uploader(storage.CloudflareR2UploaderConfig{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicBaseURL:   cfg.R2PublicBaseURL,
		})
		if err != nil {
			logger.Error("failed to initialize Cloudflare R2 uploader", slog.Any("error", err))
			os.Exit(1)
		}
		snapshots = services.NewSnapshotPublisher(uploader)
		logger.Info("bracket snapshot export enabled")
	} else {
		logger.Info("bracket snapshot export disabled")
	}

	wsHub := brackets.NewHub()
	go wsHub.Run()
	logger.Info("WebSocket Hub started")

	stateRepo := repositories.NewPostgresTournamentStateRepository(dbConn)
	teamRepo := repositories.NewPostgresTeamRepository(dbConn)
	bracketRepo := repositories.NewPostgresBracketRepository(dbConn)
	predictionRepo := repositories.NewPostgresPredictionRepository(dbConn)
	logger.Info("Repositories initialized")

	// One lock per tournament: resolutions and stage closures hold it
	// exclusively, reads hold it shared.
	engineMu := &sync.RWMutex{}
	registry := services.DefaultStageRegistry()

	scoringService := services.NewScoringService()
	stageService := services.NewStageService(registry, stateRepo, engineMu, logger)
	bracketService := services.NewBracketService(stateRepo, bracketRepo, teamRepo, predictionRepo, engineMu)
	resolutionService := services.NewResolutionService(
		dbConn,
		services.ResolutionConfig{
			TournamentID:     cfg.TournamentID,
			CorrectionPolicy: services.CorrectionReject,
		},
		registry,
		scoringService,
		stateRepo,
		bracketRepo,
		teamRepo,
		predictionRepo,
		wsHub,
		snapshots,
		engineMu,
		logger,
	)
	logger.Info("Services initialized")

	stageHandler := handlers.NewStageHandler(stageService, cfg.TournamentID)
	bracketHandler := handlers.NewBracketHandler(bracketService)
	adminHandler := handlers.NewAdminHandler(resolutionService)
	logger.Info("HTTP handlers initialized")

	router := chi.NewRouter()
	api.SetupRoutes(router, stageHandler, bracketHandler, adminHandler, wsHub, cfg.JWTSecretKey)
	logger.Info("Routes configured")

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		} else {
			logger.Info("server stopped gracefully")
		}
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelShutdown()

		logger.Info("shutting down server", slog.Duration("timeout", 15*time.Second))
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
			os.Exit(1)
		} else {
			logger.Info("server shutdown complete")
		}
	}
	logger.Info("application exited")
}
