package app

import (
	httpH "github.com/peerspark/peerspark-backend/internal/http/handlers"
)

type Handlers struct {
	AI            *httpH.AIHandler
	Conversations *httpH.ConversationHandler
	Embeddings    *httpH.EmbeddingHandler
	Health        *httpH.HealthHandler
}

func wireHandlers(serviceset Services) Handlers {
	return Handlers{
		AI:            httpH.NewAIHandler(serviceset.Matcher, serviceset.Orchestrator),
		Conversations: httpH.NewConversationHandler(serviceset.Conversations),
		Embeddings:    httpH.NewEmbeddingHandler(serviceset.Embeddings),
		Health:        httpH.NewHealthHandler(),
	}
}
