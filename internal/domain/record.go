package domain

// Source identifies which external system produced a record.
type Source string

const (
	SourceRegistry      Source = "registry"      // government barcode registry
	SourceOpenFoodFacts Source = "openfoodfacts" // crowd-sourced open food database
	SourceStorefront    Source = "storefront"    // scraped convenience-store catalogs
)

// Valid reports whether s names a known source.
func (s Source) Valid() bool {
	switch s {
	case SourceRegistry, SourceOpenFoodFacts, SourceStorefront:
		return true
	}
	return false
}

// ExternalRecord is one observation from a non-canonical source. Records
// are transient: fetched, resolved, discarded. Registry and open-database
// records carry a barcode; storefront records do not and instead carry
// price/image metadata irrelevant to resolution. ReportID is an opaque
// source-native identifier passed through for audit only.
type ExternalRecord struct {
	Source       Source `json:"source"`
	Name         string `json:"name"`
	Manufacturer string `json:"manufacturer,omitempty"`
	Barcode      string `json:"barcode,omitempty"`
	ReportID     string `json:"reportId,omitempty"`
	Price        string `json:"price,omitempty"`
	ImageURL     string `json:"imageUrl,omitempty"`
}

// State is the per-record lifecycle stage. Transitions only move forward;
// a record that fails mid-pipeline lands in StateRejected with the failing
// stage recorded for diagnostics.
type State string

const (
	StateFetched             State = "fetched"
	StateNormalized          State = "normalized"
	StateCandidatesRetrieved State = "candidates_retrieved"
	StateScored              State = "scored"
	StateClassified          State = "classified"
	StateReconciled          State = "reconciled"
	StateDeferred            State = "deferred"
	StateRejected            State = "rejected"
)

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	switch s {
	case StateReconciled, StateDeferred, StateRejected:
		return true
	}
	return false
}
