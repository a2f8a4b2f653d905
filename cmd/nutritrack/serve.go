package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/nutritrack/backend/config"
	httpDelivery "github.com/nutritrack/backend/internal/delivery/http"
	"github.com/nutritrack/backend/internal/infrastructure/cache"
	"github.com/nutritrack/backend/internal/infrastructure/openfoodfacts"
	"github.com/nutritrack/backend/internal/infrastructure/registry"
	"github.com/nutritrack/backend/internal/infrastructure/store"
	"github.com/nutritrack/backend/internal/infrastructure/storefront"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		Long: `Start the nutrition tracking API: product registration, barcode
scanning against external sources, and on-demand record resolution.`,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	logger := slog.Default()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	st, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() { _ = st.Close() }()

	if err := st.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	resolver, reconciler := buildEngine(cfg, st, logger)
	registryClient := registry.NewClient(cfg.Registry.APIKey, cfg.Registry.BaseURL, logger)
	foodDB := openfoodfacts.NewClient(cfg.OpenFoodFacts.BaseURL, logger)
	catalog := storefront.NewRepository(storefront.NewFileLoader(cfg.Storefront.CatalogPath), logger)
	lookupCache := cache.NewMemoryCache()

	handler := httpDelivery.NewHandler(httpDelivery.Deps{
		Store:      st,
		Resolver:   resolver,
		Reconciler: reconciler,
		Registry:   registryClient,
		FoodDB:     foodDB,
		Catalog:    catalog,
		Cache:      lookupCache,
		AuditLog:   st,
		CacheTTL:   cfg.Cache.TTL,
		Logger:     logger,
	})
	router := httpDelivery.SetupRouter(cfg, handler)

	server := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Info("server listening",
			"addr", server.Addr, "environment", cfg.Server.Environment)
		errChan <- server.ListenAndServe()
	}()

	select {
	case err := <-errChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}
