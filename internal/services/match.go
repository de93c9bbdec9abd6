package services

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/peerspark/peerspark-backend/internal/clients/redis"
	"github.com/peerspark/peerspark-backend/internal/domain"
	"github.com/peerspark/peerspark-backend/internal/domain/match"
	"github.com/peerspark/peerspark-backend/internal/pkg/dbctx"
	"github.com/peerspark/peerspark-backend/internal/pkg/errs"
	"github.com/peerspark/peerspark-backend/internal/platform/logger"
)

const (
	defaultInitialK = 50
	defaultFinalK   = 10
)

// MatchRequest drives one retrieve-then-rerank run. Exactly one of
// Query or (SeedType, SeedID) must be set.
type MatchRequest struct {
	Query    string            `json:"query,omitempty"`
	SeedType domain.EntityType `json:"seed_type,omitempty"`
	SeedID   uuid.UUID         `json:"seed_id,omitempty"`

	TargetType domain.EntityType `json:"target_type"`
	InitialK   int               `json:"initial_k,omitempty"`
	FinalK     int               `json:"final_k,omitempty"`
	Weights    match.Weights     `json:"weights,omitempty"`

	WithRationale bool `json:"with_rationale,omitempty"`
}

type MatchService interface {
	// Match runs the two-stage pipeline. Zero candidates is an empty list,
	// not an error; a seed that was never embedded is ErrNoEmbeddingAvailable.
	Match(dbc dbctx.Context, req MatchRequest) ([]match.Ranked, error)

	// SemanticSearch runs the same pipeline over a union of entity types
	// with default weights.
	SemanticSearch(dbc dbctx.Context, query string, types []domain.EntityType, limit int) ([]match.Ranked, error)
}

type matchService struct {
	log       *logger.Logger
	retrieval RetrievalService
	rationale RationaleGenerator
	cache     redis.MatchCache
}

// NewMatchService wires Stage1 and Stage2. rationale and cache may be nil;
// both are optional accelerants, not correctness dependencies.
func NewMatchService(retrieval RetrievalService, rationale RationaleGenerator, cache redis.MatchCache, baseLog *logger.Logger) MatchService {
	return &matchService{
		log:       baseLog.With("service", "MatchService"),
		retrieval: retrieval,
		rationale: rationale,
		cache:     cache,
	}
}

func (s *matchService) Match(dbc dbctx.Context, req MatchRequest) ([]match.Ranked, error) {
	if err := validateMatchRequest(&req); err != nil {
		return nil, err
	}

	key := matchCacheKey(req)
	if s.cache != nil {
		if cached, ok := s.cache.Get(dbc.Ctx, key); ok {
			return cached, nil
		}
	}

	var (
		seed  match.Snapshot
		cands []match.Candidate
		err   error
	)
	if req.Query != "" {
		cands, err = s.retrieval.CandidatesForQuery(dbc, req.Query, req.TargetType, req.InitialK, nil)
	} else {
		seed, cands, err = s.retrieval.CandidatesForEntity(dbc, req.SeedType, req.SeedID, req.TargetType, req.InitialK)
	}
	if err != nil {
		return nil, err
	}

	ranked := Rerank(seed, cands, req.Weights, req.FinalK)

	if req.WithRationale && s.rationale != nil {
		for i := range ranked {
			text, err := s.rationale.Rationale(dbc.Ctx, seed, ranked[i])
			if err != nil {
				s.log.Warn("rationale generation failed", "entity_id", ranked[i].EntityID, "error", err)
				continue
			}
			ranked[i].Rationale = text
		}
	}

	if s.cache != nil {
		s.cache.Set(dbc.Ctx, key, ranked)
	}
	return ranked, nil
}

func (s *matchService) SemanticSearch(dbc dbctx.Context, query string, types []domain.EntityType, limit int) ([]match.Ranked, error) {
	if query == "" {
		return nil, fmt.Errorf("%w: empty query", errs.ErrInvalidArgument)
	}
	if limit <= 0 {
		limit = defaultFinalK
	}
	if len(types) == 0 {
		types = domain.AllEntityTypes()
	}

	var all []match.Ranked
	for _, t := range types {
		cands, err := s.retrieval.CandidatesForQuery(dbc, query, t, limit, nil)
		if err != nil {
			return nil, err
		}
		all = append(all, Rerank(match.Snapshot{}, cands, match.DefaultWeights(), limit)...)
	}

	sort.Slice(all, func(i, j int) bool {
		if all[i].Score != all[j].Score {
			return all[i].Score > all[j].Score
		}
		if all[i].Similarity != all[j].Similarity {
			return all[i].Similarity > all[j].Similarity
		}
		return all[i].EntityID.String() < all[j].EntityID.String()
	})
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func validateMatchRequest(req *MatchRequest) error {
	if _, err := domain.ParseEntityType(string(req.TargetType)); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrInvalidArgument, err)
	}
	hasQuery := req.Query != ""
	hasSeed := req.SeedID != uuid.Nil
	if hasQuery == hasSeed {
		return fmt.Errorf("%w: exactly one of query or seed must be set", errs.ErrInvalidArgument)
	}
	if hasSeed {
		if _, err := domain.ParseEntityType(string(req.SeedType)); err != nil {
			return fmt.Errorf("%w: %v", errs.ErrInvalidArgument, err)
		}
	}

	if req.InitialK <= 0 {
		req.InitialK = defaultInitialK
	}
	if req.FinalK <= 0 {
		req.FinalK = defaultFinalK
	}
	if req.FinalK > req.InitialK {
		req.FinalK = req.InitialK
	}
	req.Weights = req.Weights.Normalized()
	return nil
}

// matchCacheKey hashes the canonical request JSON so identical requests share
// one cache slot.
func matchCacheKey(req MatchRequest) string {
	raw, err := json.Marshal(req)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
