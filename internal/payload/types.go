// Package payload builds the three read-only payload projections the review
// surface consumes: grid (one item's fields), component (every component of
// a type), and enum (one category's list catalog). Builders only read
// storage and the rules cache; nothing here mutates state.
package payload

import (
	"sort"
	"time"

	"github.com/curationlabs/core/internal/model"
	"github.com/curationlabs/core/internal/rules"
	"github.com/curationlabs/core/internal/storage"
)

// Builder is the shared read-side entry point for every payload shape.
type Builder struct {
	db    *storage.DB
	rules *rules.Cache
}

// NewBuilder wires a Builder to its storage and rules cache, mirroring
// internal/review.NewEngine's constructor shape.
func NewBuilder(db *storage.DB, rulesCache *rules.Cache) *Builder {
	return &Builder{db: db, rules: rulesCache}
}

// CandidateSummary is one candidate's presentation-facing projection,
// shared across all three payload shapes.
type CandidateSummary struct {
	CandidateID string     `json:"candidate_id"`
	Value       string     `json:"value"`
	Score       float64    `json:"score"`
	Tier        int        `json:"tier"`
	Method      string     `json:"method,omitempty"`
	Host        string     `json:"host,omitempty"`
	EvidenceURL string     `json:"evidence_url,omitempty"`
	Quote       string     `json:"evidence_quote,omitempty"`
	RetrievedAt *time.Time `json:"retrieved_at,omitempty"`

	// Synthesized is true for the pseudo-candidate manufactured when a
	// slot's selected_candidate_id no longer resolves to a real row.
	Synthesized bool `json:"synthesized,omitempty"`
}

// candidateOrder sorts candidates by (source_tier asc, score desc), the
// ordering spec §4.4.1 defines for grid payloads and which this package
// applies uniformly to component/enum candidate lists as well.
func candidateOrder(cands []CandidateSummary) {
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].Tier != cands[j].Tier {
			return cands[i].Tier < cands[j].Tier
		}
		return cands[i].Score > cands[j].Score
	})
}

func candidatesFromModel(cands []model.Candidate) []CandidateSummary {
	out := make([]CandidateSummary, len(cands))
	for i, c := range cands {
		out[i] = CandidateSummary{
			CandidateID: c.CandidateID,
			Value:       c.Value,
			Score:       c.Score,
			Tier:        c.Source.Tier,
			Method:      c.Source.Method,
			Host:        c.Source.Host,
			EvidenceURL: c.Evidence.URL,
			Quote:       c.Evidence.Quote,
		}
		if !c.Evidence.RetrievedAt.IsZero() {
			t := c.Evidence.RetrievedAt
			out[i].RetrievedAt = &t
		}
	}
	return out
}
