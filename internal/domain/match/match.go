package match

import (
	"github.com/google/uuid"

	"github.com/peerspark/peerspark-backend/internal/domain"
)

// Skill is one named skill with a proficiency level. Levels are the
// platform's four tiers: beginner, intermediate, advanced, expert.
type Skill struct {
	Name  string `json:"name"`
	Level string `json:"level"`
}

// Snapshot carries the denormalized fields the reranker scores against. It is
// fetched in one batch alongside Stage1 results to avoid per-candidate reads.
type Snapshot struct {
	EntityID   uuid.UUID         `json:"entity_id"`
	EntityType domain.EntityType `json:"entity_type"`

	Title   string `json:"title,omitempty"`
	Summary string `json:"summary,omitempty"`

	Skills       []Skill `json:"skills,omitempty"`
	Location     string  `json:"location,omitempty"`
	Availability string  `json:"availability,omitempty"`
	// TimeCommitment and Duration are only set for projects.
	TimeCommitment string `json:"time_commitment,omitempty"`
	Duration       string `json:"duration,omitempty"`
}

// Candidate is a transient Stage1 result.
type Candidate struct {
	EntityID   uuid.UUID         `json:"entity_id"`
	EntityType domain.EntityType `json:"entity_type"`
	Similarity float64           `json:"similarity"`
	Snapshot   Snapshot          `json:"snapshot"`
}

// Ranked is a Stage2 output entry. Score is the reranked relevance, not the
// Stage1 similarity, and the output order is allowed to differ from Stage1.
type Ranked struct {
	EntityID   uuid.UUID         `json:"entity_id"`
	EntityType domain.EntityType `json:"entity_type"`
	Score      float64           `json:"relevance_score"`
	Similarity float64           `json:"similarity_stage1"`
	Rationale  string            `json:"match_rationale,omitempty"`
	Snapshot   Snapshot          `json:"snapshot"`

	// Sub-scores retained for rationale generation and debugging.
	SkillScore        float64 `json:"skill_score"`
	AvailabilityScore float64 `json:"availability_score"`
	LocationScore     float64 `json:"location_score"`
}

// Weights combines the rerank sub-scores into one relevance score. Callers
// may tune them per request; zero-value weights fall back to defaults.
type Weights struct {
	Similarity   float64 `json:"similarity"`
	Skills       float64 `json:"skills"`
	Availability float64 `json:"availability"`
	Location     float64 `json:"location"`
}

func DefaultWeights() Weights {
	return Weights{Similarity: 0.5, Skills: 0.3, Availability: 0.1, Location: 0.1}
}

// Normalized scales the weights to sum to 1 so scores stay in [0,1]. Weights
// that are all zero (or negative) fall back to the defaults.
func (w Weights) Normalized() Weights {
	total := w.Similarity + w.Skills + w.Availability + w.Location
	if total <= 0 {
		return DefaultWeights()
	}
	return Weights{
		Similarity:   w.Similarity / total,
		Skills:       w.Skills / total,
		Availability: w.Availability / total,
		Location:     w.Location / total,
	}
}
