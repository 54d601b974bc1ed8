// Package ingest turns per-product extraction artifacts into rows across
// items, candidates, components, enums, resolved field state, and the review
// state machine's seed rows. Grounded on the teacher's service/ingestion
// shape (import, disambiguate, then populate downstream tables in one pass)
// generalized from decision records to curation candidates.
package ingest

import "github.com/curationlabs/core/internal/model"

// CandidateInput is one extracted assertion for a single field on a product,
// as it arrives from the importer, before id disambiguation.
type CandidateInput struct {
	FieldKey    string
	CandidateID string // raw id as supplied by the extractor; may collide
	Value       string
	Score       float64
	Rank        int
	Source      model.CandidateSource
	Evidence    model.CandidateEvidence
}

// PreexistingReview backfills a KeyReviewAudit row for a candidate review
// recorded before this seeding pass (step 7 of the seeding algorithm).
type PreexistingReview struct {
	FieldKey    string
	CandidateID string // raw id; resolved against the disambiguated id at seed time
	Dimension   model.ReviewDimension
	Lane        model.Lane
	Action      model.ReviewAction
	ActorID     string
	ActorRole   string
}

// ProductSeed is everything needed to seed one product: its identity plus
// every field's raw candidates.
type ProductSeed struct {
	ProductID          string
	Identity           model.ItemIdentity
	Candidates         []CandidateInput
	PreexistingReviews []PreexistingReview
}

// Report summarizes one SeedProduct call, useful for logging and tests.
type Report struct {
	ItemID             string
	CandidatesInserted int
	CandidatesSkipped  int // already present from a prior seed pass
	ComponentsUpserted int
	ListValuesUpserted int
	FieldStatesWritten int
	ReviewSlotsSeeded  int
}
