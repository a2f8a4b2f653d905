package domain

import "context"

// CanonicalStore is the catalog the engine resolves against. The three
// Find* retrieval methods must answer from indexes, never a full scan.
// SetBarcodeIfAbsent is the atomic conditional write the Reconciler's
// idempotency guarantee rests on: it writes only when the product has no
// barcode and no other product holds this barcode, and reports whether it
// actually wrote.
type CanonicalStore interface {
	FindByID(ctx context.Context, id int64) (*CanonicalProduct, error)
	FindByBarcode(ctx context.Context, barcode string) (*CanonicalProduct, error)
	FindByManufacturer(ctx context.Context, manufacturerNorm string, limit int) ([]CanonicalProduct, error)
	FindByTokenOverlap(ctx context.Context, tokens []string, limit int) ([]CanonicalProduct, error)
	FindBySimilarity(ctx context.Context, nameNorm string, floor float64, limit int) ([]CanonicalProduct, error)
	SetBarcodeIfAbsent(ctx context.Context, productID int64, barcode string) (bool, error)
	CreateProduct(ctx context.Context, product *CanonicalProduct) error
	UpdateProduct(ctx context.Context, product *CanonicalProduct) error
}

// RecordSource yields a sequence of external records. Next returns
// (nil, nil) when the sequence is exhausted. Fetch failures surface as a
// distinguishable error (ErrSourceUnavailable) rather than an empty
// result.
type RecordSource interface {
	Source() Source
	Next(ctx context.Context) (*ExternalRecord, error)
}

// AuditSink receives every match result regardless of tier, for later
// inspection of REVIEW and FAIL decisions. runID groups the results of
// one reconciliation pass.
type AuditSink interface {
	Record(ctx context.Context, runID string, record ExternalRecord, result MatchResult, outcome Outcome) error
}
