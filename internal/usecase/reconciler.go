package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nutritrack/backend/internal/domain"
)

// Reconciler applies classified match results to the canonical store.
// Only AUTO results write, through the store's conditional update, so
// repeated runs over the same feed are side-effect-free after the first
// successful application. REVIEW and FAIL results only reach the audit
// sink.
type Reconciler struct {
	store  domain.CanonicalStore
	audit  domain.AuditSink
	logger *slog.Logger
}

// NewReconciler creates a reconciler. The audit sink may be nil when no
// audit trail is wanted.
func NewReconciler(store domain.CanonicalStore, audit domain.AuditSink, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{store: store, audit: audit, logger: logger}
}

// Apply dispositions one classified record. The outcome for AUTO is
// applied, or already-resolved when the re-check finds the barcode
// claimed or the target product already carrying one; a no-op, never an
// error. Barcode-less AUTO results (storefront records) have nothing to
// write and defer for manual confirmation.
func (r *Reconciler) Apply(ctx context.Context, record *domain.ExternalRecord, result domain.MatchResult) (domain.Outcome, error) {
	outcome, err := r.apply(ctx, record, result)
	if err != nil {
		return outcome, err
	}
	r.recordAudit(ctx, "", record, result, outcome)
	return outcome, nil
}

func (r *Reconciler) apply(ctx context.Context, record *domain.ExternalRecord, result domain.MatchResult) (domain.Outcome, error) {
	switch result.Tier {
	case domain.TierReview:
		return domain.OutcomeDeferred, nil
	case domain.TierFail:
		return domain.OutcomeRejected, nil
	}

	if result.ProductID == 0 {
		return domain.OutcomeRejected, fmt.Errorf("%w: AUTO result without product id", domain.ErrInvalidRequest)
	}
	if result.Barcode == "" {
		// Nothing to attach; surface for manual confirmation instead.
		return domain.OutcomeDeferred, nil
	}

	// Re-check before writing: another pass may have claimed the barcode
	// or resolved the product since classification.
	existing, err := r.store.FindByBarcode(ctx, result.Barcode)
	if err != nil && !errors.Is(err, domain.ErrProductNotFound) {
		return domain.OutcomeRejected, fmt.Errorf("barcode re-check: %w", err)
	}
	if existing != nil {
		r.logger.Debug("barcode already claimed",
			"barcode", result.Barcode, "holder", existing.ID, "target", result.ProductID)
		return domain.OutcomeAlreadyResolved, nil
	}

	wrote, err := r.store.SetBarcodeIfAbsent(ctx, result.ProductID, result.Barcode)
	if err != nil {
		return domain.OutcomeRejected, fmt.Errorf("conditional barcode write: %w", err)
	}
	if !wrote {
		return domain.OutcomeAlreadyResolved, nil
	}

	r.logger.Info("barcode attached",
		"barcode", result.Barcode, "product_id", result.ProductID, "score", result.Score)
	return domain.OutcomeApplied, nil
}

func (r *Reconciler) recordAudit(ctx context.Context, runID string, record *domain.ExternalRecord, result domain.MatchResult, outcome domain.Outcome) {
	if r.audit == nil || record == nil {
		return
	}
	if err := r.audit.Record(ctx, runID, *record, result, outcome); err != nil {
		// The audit trail never blocks reconciliation.
		r.logger.Warn("audit record failed", "error", err)
	}
}

// RunStats aggregates one reconciliation pass per the error taxonomy:
// nothing in a run is fatal, failures are counted and reported at the
// end.
type RunStats struct {
	RunID             string        `json:"runId"`
	Source            domain.Source `json:"source"`
	Processed         int           `json:"processed"`
	Auto              int           `json:"auto"`
	Review            int           `json:"review"`
	Fail              int           `json:"fail"`
	Applied           int           `json:"applied"`
	AlreadyResolved   int           `json:"alreadyResolved"`
	Malformed         int           `json:"malformed"`
	SourceUnavailable int           `json:"sourceUnavailable"`
	Elapsed           time.Duration `json:"elapsed"`
}

// Runner drives a batch reconciliation pass over a record source.
type Runner struct {
	resolver      *ResolutionService
	reconciler    *Reconciler
	recordTimeout time.Duration
	logger        *slog.Logger
}

// NewRunner creates a batch runner. recordTimeout bounds the work done
// for a single record; zero disables the bound.
func NewRunner(resolver *ResolutionService, reconciler *Reconciler, recordTimeout time.Duration, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		resolver:      resolver,
		reconciler:    reconciler,
		recordTimeout: recordTimeout,
		logger:        logger,
	}
}

// Run drains the source sequentially. Cancellation is at record
// granularity: a failed or slow record is counted and skipped, never
// aborting the records behind it. Only context cancellation of the run
// itself stops the pass early.
func (r *Runner) Run(ctx context.Context, source domain.RecordSource) (RunStats, error) {
	stats := RunStats{
		RunID:  uuid.New().String(),
		Source: source.Source(),
	}
	started := time.Now()

	r.logger.Info("reconciliation run started", "run_id", stats.RunID, "source", stats.Source)

	consecutiveFetchFailures := 0
	for {
		if err := ctx.Err(); err != nil {
			stats.Elapsed = time.Since(started)
			return stats, err
		}

		record, err := r.next(ctx, source)
		if err != nil {
			if errors.Is(err, domain.ErrSourceUnavailable) {
				stats.SourceUnavailable++
				consecutiveFetchFailures++
				if consecutiveFetchFailures >= maxConsecutiveFetchFailures {
					stats.Elapsed = time.Since(started)
					return stats, fmt.Errorf("%w: %d consecutive fetch failures", domain.ErrSourceUnavailable, consecutiveFetchFailures)
				}
				continue
			}
			stats.Elapsed = time.Since(started)
			return stats, err
		}
		consecutiveFetchFailures = 0
		if record == nil {
			break
		}

		stats.Processed++
		r.processRecord(ctx, record, &stats)
	}

	stats.Elapsed = time.Since(started)
	r.logger.Info("reconciliation run finished",
		"run_id", stats.RunID,
		"source", stats.Source,
		"processed", stats.Processed,
		"auto", stats.Auto,
		"review", stats.Review,
		"fail", stats.Fail,
		"applied", stats.Applied,
		"already_resolved", stats.AlreadyResolved,
		"malformed", stats.Malformed,
		"source_unavailable", stats.SourceUnavailable,
		"elapsed", stats.Elapsed)
	return stats, nil
}

// maxConsecutiveFetchFailures stops a run whose source has clearly gone
// away, rather than spinning on an unreachable endpoint.
const maxConsecutiveFetchFailures = 5

func (r *Runner) next(ctx context.Context, source domain.RecordSource) (*domain.ExternalRecord, error) {
	fetchCtx := ctx
	if r.recordTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, r.recordTimeout)
		defer cancel()
	}
	record, err := source.Next(fetchCtx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) {
			// A timed-out fetch is a source failure for this record.
			return nil, fmt.Errorf("%w: fetch timed out", domain.ErrSourceUnavailable)
		}
		return nil, err
	}
	return record, nil
}

func (r *Runner) processRecord(ctx context.Context, record *domain.ExternalRecord, stats *RunStats) {
	recordCtx := ctx
	if r.recordTimeout > 0 {
		var cancel context.CancelFunc
		recordCtx, cancel = context.WithTimeout(ctx, r.recordTimeout)
		defer cancel()
	}

	result, err := r.resolver.Resolve(recordCtx, record)
	if err != nil {
		if errors.Is(err, domain.ErrMalformedRecord) {
			stats.Malformed++
			r.reconciler.recordAudit(recordCtx, stats.RunID, record, result, domain.OutcomeRejected)
		} else {
			stats.Fail++
			r.logger.Warn("resolution failed", "run_id", stats.RunID, "name", record.Name, "error", err)
		}
		return
	}

	switch result.Tier {
	case domain.TierAuto:
		stats.Auto++
	case domain.TierReview:
		stats.Review++
	case domain.TierFail:
		stats.Fail++
	}

	outcome, err := r.reconciler.apply(recordCtx, record, result)
	if err != nil {
		r.logger.Warn("apply failed", "run_id", stats.RunID, "barcode", result.Barcode, "error", err)
		return
	}
	r.reconciler.recordAudit(recordCtx, stats.RunID, record, result, outcome)

	switch outcome {
	case domain.OutcomeApplied:
		stats.Applied++
	case domain.OutcomeAlreadyResolved:
		stats.AlreadyResolved++
	}
}
