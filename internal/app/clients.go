package app

import (
	"fmt"

	redisclients "github.com/peerspark/peerspark-backend/internal/clients/redis"
	"github.com/peerspark/peerspark-backend/internal/platform/logger"
	"github.com/peerspark/peerspark-backend/internal/platform/mcptool"
	"github.com/peerspark/peerspark-backend/internal/platform/openai"
	"github.com/peerspark/peerspark-backend/internal/platform/qdrant"
	"github.com/peerspark/peerspark-backend/internal/platform/vectorstore"
	"github.com/peerspark/peerspark-backend/internal/platform/websearch"
)

type Clients struct {
	AI      openai.Client
	Vectors vectorstore.VectorStore
	Locks   redisclients.TurnLocker

	// Optional: a nil client disables the feature it backs.
	Search     websearch.Client
	MCP        mcptool.Client
	MatchCache redisclients.MatchCache
}

// wireClients builds the external-facing clients. The AI provider, the
// vector store and the turn locker are required; web search, MCP tools and
// the match cache degrade to disabled when their env is absent.
func wireClients(log *logger.Logger) (Clients, error) {
	ai, err := openai.NewClient(log)
	if err != nil {
		return Clients{}, fmt.Errorf("init openai client: %w", err)
	}

	qdrantCfg, err := qdrant.ResolveConfigFromEnv()
	if err != nil {
		return Clients{}, fmt.Errorf("resolve qdrant config: %w", err)
	}
	vectors, err := qdrant.NewVectorStore(log, qdrantCfg)
	if err != nil {
		return Clients{}, fmt.Errorf("init qdrant vector store: %w", err)
	}

	locks, err := redisclients.NewTurnLocker(log)
	if err != nil {
		return Clients{}, fmt.Errorf("init turn locker: %w", err)
	}

	search, err := websearch.NewClient(log)
	if err != nil {
		log.Warn("Web search disabled", "error", err)
		search = nil
	}
	mcp, err := mcptool.NewClient(log)
	if err != nil {
		log.Warn("MCP tools disabled", "error", err)
		mcp = nil
	}
	matchCache, err := redisclients.NewMatchCache(log)
	if err != nil {
		log.Warn("Match cache disabled", "error", err)
		matchCache = nil
	}

	return Clients{
		AI:         ai,
		Vectors:    vectors,
		Locks:      locks,
		Search:     search,
		MCP:        mcp,
		MatchCache: matchCache,
	}, nil
}
