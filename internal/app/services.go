package app

import (
	"github.com/peerspark/peerspark-backend/internal/platform/logger"
	"github.com/peerspark/peerspark-backend/internal/services"
)

type Services struct {
	Embeddings    services.EmbeddingService
	Retrieval     services.RetrievalService
	Matcher       services.MatchService
	RAG           services.RAGService
	Conversations services.ConversationService
	Orchestrator  services.Orchestrator
}

func wireServices(log *logger.Logger, clients Clients, reposet Repos) Services {
	embeddings := services.NewEmbeddingService(
		clients.AI,
		clients.Vectors,
		reposet.Students,
		reposet.Projects,
		reposet.Courses,
		reposet.Chunks,
		reposet.Notes,
		log,
	)
	retrieval := services.NewRetrievalService(
		clients.Vectors,
		embeddings,
		reposet.Students,
		reposet.Projects,
		reposet.Courses,
		reposet.Chunks,
		reposet.Notes,
		log,
	)

	rationale := services.NewLLMRationale(clients.AI, log)
	matcher := services.NewMatchService(retrieval, rationale, clients.MatchCache, log)

	rag := services.NewRAGService(retrieval, log)
	runner := services.NewToolRunner(rag, clients.Search, clients.MCP, log)
	policy := services.NewLLMToolPolicy(clients.AI, log)

	configs := services.NewConfigResolver(reposet.LLMConfigs, services.EnvKeyResolver{}, log)
	conversations := services.NewConversationService(reposet.Conversations, reposet.Messages, log)

	orchestrator := services.NewOrchestrator(
		configs,
		conversations,
		reposet.ToolConfigs,
		policy,
		runner,
		clients.AI,
		clients.Locks,
		log,
	)

	return Services{
		Embeddings:    embeddings,
		Retrieval:     retrieval,
		Matcher:       matcher,
		RAG:           rag,
		Conversations: conversations,
		Orchestrator:  orchestrator,
	}
}
