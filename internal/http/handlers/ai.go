package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/peerspark/peerspark-backend/internal/domain"
	"github.com/peerspark/peerspark-backend/internal/domain/match"
	"github.com/peerspark/peerspark-backend/internal/http/response"
	"github.com/peerspark/peerspark-backend/internal/pkg/dbctx"
	"github.com/peerspark/peerspark-backend/internal/platform/ctxutil"
	"github.com/peerspark/peerspark-backend/internal/services"
)

type AIHandler struct {
	matcher      services.MatchService
	orchestrator services.Orchestrator
}

func NewAIHandler(matcher services.MatchService, orchestrator services.Orchestrator) *AIHandler {
	return &AIHandler{matcher: matcher, orchestrator: orchestrator}
}

func callerID(c *gin.Context) (uuid.UUID, bool) {
	rd := ctxutil.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		return uuid.Nil, false
	}
	return rd.UserID, true
}

type matchReq struct {
	Query    string     `json:"query"`
	SeedType string     `json:"seed_type"`
	SeedID   *uuid.UUID `json:"seed_id"`

	TargetType string         `json:"target_type" binding:"required"`
	InitialK   int            `json:"initial_k"`
	FinalK     int            `json:"final_k"`
	Weights    *match.Weights `json:"weights"`

	WithRationale bool `json:"with_rationale"`
}

// POST /api/ai/match
func (h *AIHandler) Match(c *gin.Context) {
	if _, ok := callerID(c); !ok {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", fmt.Errorf("missing identity"))
		return
	}
	var req matchReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	svcReq := services.MatchRequest{
		Query:         req.Query,
		SeedType:      domain.EntityType(req.SeedType),
		TargetType:    domain.EntityType(req.TargetType),
		InitialK:      req.InitialK,
		FinalK:        req.FinalK,
		WithRationale: req.WithRationale,
	}
	if req.SeedID != nil {
		svcReq.SeedID = *req.SeedID
	}
	if req.Weights != nil {
		svcReq.Weights = *req.Weights
	}

	dbc := dbctx.Context{Ctx: c.Request.Context()}
	results, err := h.matcher.Match(dbc, svcReq)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"matches": results})
}

type searchReq struct {
	Query     string   `json:"query" binding:"required"`
	ItemTypes []string `json:"item_types"`
	Limit     int      `json:"limit"`
}

// POST /api/ai/search
func (h *AIHandler) SemanticSearch(c *gin.Context) {
	if _, ok := callerID(c); !ok {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", fmt.Errorf("missing identity"))
		return
	}
	var req searchReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	var types []domain.EntityType
	for _, s := range req.ItemTypes {
		t, err := domain.ParseEntityType(s)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
			return
		}
		types = append(types, t)
	}

	dbc := dbctx.Context{Ctx: c.Request.Context()}
	results, err := h.matcher.SemanticSearch(dbc, req.Query, types, req.Limit)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"results": results})
}

type askReq struct {
	Query          string      `json:"query" binding:"required"`
	ConversationID *uuid.UUID  `json:"conversation_id"`
	KBIDs          []uuid.UUID `json:"kb_ids"`
	NoteIDs        []uuid.UUID `json:"note_ids"`
	UseTools       bool        `json:"use_tools"`
	PreferredTools []string    `json:"preferred_tools"`
	LLMModelID     string      `json:"llm_model_id"`
}

// POST /api/ai/ask
func (h *AIHandler) Ask(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", fmt.Errorf("missing identity"))
		return
	}
	var req askReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	dbc := dbctx.Context{Ctx: c.Request.Context()}
	result, err := h.orchestrator.Ask(dbc, services.AskRequest{
		UserID:         userID,
		ConversationID: req.ConversationID,
		Query:          req.Query,
		KBIDs:          req.KBIDs,
		NoteIDs:        req.NoteIDs,
		UseTools:       req.UseTools,
		PreferredTools: req.PreferredTools,
		LLMModelID:     req.LLMModelID,
	})
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, result)
}
