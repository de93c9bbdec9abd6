package services

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/peerspark/peerspark-backend/internal/domain"
	"github.com/peerspark/peerspark-backend/internal/domain/match"
	"github.com/peerspark/peerspark-backend/internal/pkg/dbctx"
	"github.com/peerspark/peerspark-backend/internal/platform/logger"
)

const (
	defaultContextChunks = 6
	defaultContextBudget = 8000
)

// RAGSource attributes one included chunk so answers can cite where their
// context came from.
type RAGSource struct {
	EntityID   uuid.UUID         `json:"entity_id"`
	EntityType domain.EntityType `json:"entity_type"`
	Title      string            `json:"title,omitempty"`
	Similarity float64           `json:"similarity"`
}

// RAGContext is a bounded context block plus the sources it was packed from.
// An empty Text means the scope yielded nothing; callers generate unaugmented.
type RAGContext struct {
	Text    string      `json:"text"`
	Sources []RAGSource `json:"sources,omitempty"`
}

func (c RAGContext) Empty() bool { return c.Text == "" }

// RAGService assembles generation context from a caller-selected scope of
// knowledge bases and notes. Scope is mandatory; there is no "all knowledge"
// retrieval.
type RAGService interface {
	BuildContext(dbc dbctx.Context, query string, kbIDs, noteIDs []uuid.UUID, topN, budget int) (RAGContext, error)
}

type ragService struct {
	log       *logger.Logger
	retrieval RetrievalService
}

func NewRAGService(retrieval RetrievalService, baseLog *logger.Logger) RAGService {
	return &ragService{log: baseLog.With("service", "RAGService"), retrieval: retrieval}
}

func (s *ragService) BuildContext(dbc dbctx.Context, query string, kbIDs, noteIDs []uuid.UUID, topN, budget int) (RAGContext, error) {
	if len(kbIDs) == 0 && len(noteIDs) == 0 {
		return RAGContext{}, nil
	}
	if topN <= 0 {
		topN = defaultContextChunks
	}
	if budget <= 0 {
		budget = defaultContextBudget
	}

	var cands []match.Candidate
	if len(kbIDs) > 0 {
		filter := map[string]any{"knowledge_base_id": map[string]any{"$in": uuidStrings(kbIDs)}}
		got, err := s.retrieval.CandidatesForQuery(dbc, query, domain.EntityKnowledgeChunk, topN, filter)
		if err != nil {
			return RAGContext{}, fmt.Errorf("retrieve knowledge chunks: %w", err)
		}
		cands = append(cands, got...)
	}
	if len(noteIDs) > 0 {
		filter := map[string]any{"entity_id": map[string]any{"$in": uuidStrings(noteIDs)}}
		got, err := s.retrieval.CandidatesForQuery(dbc, query, domain.EntityNote, topN, filter)
		if err != nil {
			return RAGContext{}, fmt.Errorf("retrieve notes: %w", err)
		}
		cands = append(cands, got...)
	}
	if len(cands) == 0 {
		return RAGContext{}, nil
	}

	sort.Slice(cands, func(i, j int) bool {
		if cands[i].Similarity != cands[j].Similarity {
			return cands[i].Similarity > cands[j].Similarity
		}
		return cands[i].EntityID.String() < cands[j].EntityID.String()
	})
	if len(cands) > topN {
		cands = cands[:topN]
	}

	// Greedy packing in rank order: the lowest-ranked chunk gets truncated
	// first, then dropped entirely once the budget runs out.
	var (
		b       strings.Builder
		sources []RAGSource
	)
	for i, c := range cands {
		block := formatContextBlock(i+1, c.Snapshot)
		remaining := budget - b.Len()
		if remaining <= 0 {
			break
		}
		if len(block) > remaining {
			block = cutToBytes(block, remaining)
			if block == "" {
				break
			}
		}
		b.WriteString(block)
		sources = append(sources, RAGSource{
			EntityID:   c.EntityID,
			EntityType: c.EntityType,
			Title:      c.Snapshot.Title,
			Similarity: c.Similarity,
		})
	}

	return RAGContext{Text: strings.TrimSpace(b.String()), Sources: sources}, nil
}

func formatContextBlock(n int, snap match.Snapshot) string {
	title := snap.Title
	if title == "" {
		title = "untitled"
	}
	return fmt.Sprintf("[source %d] %s (%s %s)\n%s\n\n", n, title, snap.EntityType, snap.EntityID, snap.Summary)
}

// cutToBytes trims s to at most max bytes without splitting a rune.
func cutToBytes(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := s[:max]
	for len(cut) > 0 && !utf8.ValidString(cut) {
		cut = cut[:len(cut)-1]
	}
	return cut
}

func uuidStrings(ids []uuid.UUID) []any {
	out := make([]any, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}
