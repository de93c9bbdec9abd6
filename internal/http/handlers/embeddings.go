package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/peerspark/peerspark-backend/internal/domain"
	"github.com/peerspark/peerspark-backend/internal/http/response"
	"github.com/peerspark/peerspark-backend/internal/pkg/dbctx"
	"github.com/peerspark/peerspark-backend/internal/services"
)

type EmbeddingHandler struct {
	embedder services.EmbeddingService
}

func NewEmbeddingHandler(embedder services.EmbeddingService) *EmbeddingHandler {
	return &EmbeddingHandler{embedder: embedder}
}

type reembedReq struct {
	EntityTypes []string   `json:"entity_types"`
	EntityType  string     `json:"entity_type"`
	EntityID    *uuid.UUID `json:"entity_id"`
}

// POST /api/embeddings/reembed
//
// With entity_type+entity_id it recomputes one entity synchronously. With
// entity_types (or nothing) it sweeps whole types; the CRUD layer calls the
// single-entity form after text-bearing fields change.
func (h *EmbeddingHandler) Reembed(c *gin.Context) {
	if _, ok := callerID(c); !ok {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", fmt.Errorf("missing identity"))
		return
	}
	var req reembedReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	dbc := dbctx.Context{Ctx: c.Request.Context()}

	if req.EntityID != nil {
		t, err := domain.ParseEntityType(req.EntityType)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
			return
		}
		if err := h.embedder.ReembedEntity(dbc, t, *req.EntityID); err != nil {
			response.RespondServiceError(c, err)
			return
		}
		response.RespondOK(c, gin.H{"reembedded": 1})
		return
	}

	var types []domain.EntityType
	for _, s := range req.EntityTypes {
		t, err := domain.ParseEntityType(s)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
			return
		}
		types = append(types, t)
	}

	count, err := h.embedder.ReembedAll(dbc, types)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"reembedded": count})
}
