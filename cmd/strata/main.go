// Package main is the entrypoint for the Strata server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/strata-cms/strata/internal/audit"
	"github.com/strata-cms/strata/internal/auth"
	"github.com/strata-cms/strata/internal/config"
	"github.com/strata-cms/strata/internal/contenttypes"
	"github.com/strata-cms/strata/internal/database"
	"github.com/strata-cms/strata/internal/edit"
	"github.com/strata-cms/strata/internal/media"
	"github.com/strata-cms/strata/internal/schema"
	"github.com/strata-cms/strata/internal/server"
	"github.com/strata-cms/strata/internal/storage"
)

func main() {
	cfg := config.Load()

	logLevel := slog.LevelInfo
	if cfg.DevMode {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	slog.Info("starting Strata",
		"port", cfg.Port,
		"content_types", cfg.ContentTypesPath,
		"media_dir", cfg.MediaDir,
		"dev_mode", cfg.DevMode,
	)

	if cfg.DatabaseURL == "" {
		slog.Error("STRATA_DATABASE_URL is required")
		os.Exit(1)
	}

	dbCtx, dbCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer dbCancel()

	db, err := database.New(dbCtx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("database connected")

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("migrations applied")

	// Content type definitions.
	registry := schema.NewRegistry(cfg.ContentTypesPath, cfg.SchemaDefaults())
	if err := registry.Load(); err != nil {
		slog.Error("failed to load content types", "error", err)
		os.Exit(1)
	}
	slog.Info("content types loaded", "count", len(registry.All()))

	// Authentication.
	if cfg.JWTSecret == "" {
		slog.Error("STRATA_JWT_SECRET is required")
		os.Exit(1)
	}

	authRepo := auth.NewRepository(db)
	authService := auth.NewService(authRepo, cfg.JWTSecret)

	if cfg.AdminEmail != "" && cfg.AdminPassword != "" {
		adminCtx, adminCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer adminCancel()

		if err := authService.EnsureAdmin(adminCtx, cfg.AdminEmail, cfg.AdminPassword, cfg.AdminName); err != nil {
			slog.Error("failed to ensure initial admin", "error", err)
			os.Exit(1)
		}
	}

	// Audit logging.
	auditService := audit.NewService(audit.NewRepository(db))
	auditService.Start()

	authHandler := auth.NewHandler(authService, auditService, cfg.DevMode)
	authMiddleware := auth.Middleware(cfg.JWTSecret)

	// Media.
	mediaFiles, err := media.NewFileStore(cfg.MediaDir)
	if err != nil {
		slog.Error("failed to initialize media storage", "error", err)
		os.Exit(1)
	}
	mediaService := media.NewService(media.NewRepository(db), mediaFiles, auditService, cfg.AcceptFileTypes)
	mediaHandler := media.NewHandler(mediaService)

	// Content.
	contentStore := storage.NewContentStore(db, registry)
	taxonomyStore := storage.NewTaxonomyStore(db)
	contentHandler := edit.NewHandler(db, registry, contentStore, taxonomyStore, auditService)

	deps := server.Dependencies{
		DB:             db,
		DevMode:        cfg.DevMode,
		AuthHandler:    authHandler,
		AuthMiddleware: authMiddleware,
		Content:        contentHandler,
		ContentTypes:   contenttypes.NewHandler(db, registry),
		Media:          mediaHandler,
		Audit:          audit.NewHandler(auditService),
	}

	router := server.NewRouter(deps)
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := server.New(addr, router)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		errCh <- srv.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		slog.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	slog.Info("shutting down server (30s timeout)...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
		os.Exit(1)
	}

	auditService.Shutdown(shutdownCtx)

	slog.Info("Strata stopped")
}
