package domain

// Tier is the confidence tier assigned to a match score.
type Tier string

const (
	TierAuto   Tier = "AUTO"   // safe to write back automatically
	TierReview Tier = "REVIEW" // recorded for human confirmation, never auto-applied
	TierFail   Tier = "FAIL"   // no usable candidate
)

// Evidence carries the individual scoring signals for audit.
type Evidence struct {
	NameSimilarity    float64 `json:"nameSimilarity"`
	TokenOverlap      float64 `json:"tokenOverlap"`
	ManufacturerBonus float64 `json:"manufacturerBonus"`
}

// MatchResult is the engine's decision for one external record. A
// TierAuto result always carries a non-zero ProductID; TierFail never
// does.
type MatchResult struct {
	Barcode     string   `json:"barcode,omitempty"`
	ProductID   int64    `json:"productId,omitempty"`
	ProductName string   `json:"productName,omitempty"`
	Score       float64  `json:"score"`
	Tier        Tier     `json:"tier"`
	Evidence    Evidence `json:"evidence"`
	// FailedStage is set when the record never reached classification
	// (malformed input, no candidates); empty otherwise.
	FailedStage State `json:"failedStage,omitempty"`
}

// Outcome is the Reconciler's disposition of a classified record.
type Outcome string

const (
	OutcomeApplied         Outcome = "applied"          // barcode written
	OutcomeAlreadyResolved Outcome = "already_resolved" // conditional write found nothing to do
	OutcomeDeferred        Outcome = "deferred"         // REVIEW tier, awaiting external decision
	OutcomeRejected        Outcome = "rejected"         // FAIL tier or malformed record
)
