package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/nutritrack/backend/config"
	"github.com/nutritrack/backend/internal/domain"
	"github.com/nutritrack/backend/internal/infrastructure/registry"
	"github.com/nutritrack/backend/internal/infrastructure/store"
	"github.com/nutritrack/backend/internal/infrastructure/storefront"
	"github.com/nutritrack/backend/internal/usecase"
)

func reconcileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Run a batch reconciliation pass over an external source",
		Long: `Drain one external source, resolve every record against the
canonical catalog, and attach barcodes for AUTO-tier matches. Every
decision lands in the audit trail regardless of tier, so REVIEW and
FAIL records can be inspected afterwards.`,
		RunE: runReconcile,
	}

	cmd.Flags().String("source", "registry", "record source to drain (registry, storefront)")

	return cmd
}

func runReconcile(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	logger := slog.Default()

	sourceName, _ := cmd.Flags().GetString("source")

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

	var source domain.RecordSource
	switch domain.Source(sourceName) {
	case domain.SourceRegistry:
		client := registry.NewClient(cfg.Registry.APIKey, cfg.Registry.BaseURL, logger)
		source = registry.NewPagedSource(client, cfg.Registry.PageSize)
	case domain.SourceStorefront:
		repo := storefront.NewRepository(storefront.NewFileLoader(cfg.Storefront.CatalogPath), logger)
		source, err = repo.RecordSource(ctx)
		if err != nil {
			return fmt.Errorf("load storefront catalog: %w", err)
		}
	default:
		return fmt.Errorf("unknown source: %s", sourceName)
	}

	resolver, reconciler := buildEngine(cfg, st, logger)
	runner := usecase.NewRunner(resolver, reconciler, cfg.Matching.RecordTimeout, logger)

	stats, err := runner.Run(ctx, source)
	if err != nil {
		return fmt.Errorf("reconciliation run %s: %w", stats.RunID, err)
	}

	logger.Info("reconciliation summary",
		"run_id", stats.RunID,
		"source", stats.Source,
		"processed", stats.Processed,
		"applied", stats.Applied,
		"review", stats.Review,
		"fail", stats.Fail,
		"elapsed", stats.Elapsed)
	return nil
}

// buildEngine wires the resolution pipeline against the given store. The
// store doubles as the audit sink so every decision is queryable later.
func buildEngine(cfg *config.Config, st *store.Store, logger *slog.Logger) (*usecase.ResolutionService, *usecase.Reconciler) {
	index := usecase.NewCandidateIndex(st, usecase.IndexConfig{
		Cap:             cfg.Matching.CandidateCap,
		Floor:           cfg.Matching.CandidateFloor,
		SimilarityFloor: cfg.Matching.SimilarityFloor,
	})

	overrides := make(map[domain.Source]usecase.Thresholds, len(cfg.Matching.SourceOverrides))
	for name, o := range cfg.Matching.SourceOverrides {
		overrides[domain.Source(name)] = usecase.Thresholds{Auto: o.Auto, Review: o.Review}
	}
	classifier := usecase.NewClassifier(usecase.Thresholds{
		Auto:   cfg.Matching.AutoThreshold,
		Review: cfg.Matching.ReviewThreshold,
	}, overrides)

	resolver := usecase.NewResolutionService(index, usecase.NewScorer(), classifier, logger)
	reconciler := usecase.NewReconciler(st, st, logger)
	return resolver, reconciler
}
