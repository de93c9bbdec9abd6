package services

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/peerspark/peerspark-backend/internal/data/repos"
	"github.com/peerspark/peerspark-backend/internal/domain/llmcfg"
	"github.com/peerspark/peerspark-backend/internal/pkg/dbctx"
	"github.com/peerspark/peerspark-backend/internal/pkg/errs"
	"github.com/peerspark/peerspark-backend/internal/platform/logger"
)

// APIKeyResolver reveals a stored key reference. Encrypted credential storage
// lives with an external collaborator; this engine only handles opaque refs.
type APIKeyResolver interface {
	Reveal(ref string) (string, error)
}

// EnvKeyResolver resolves refs of the form "env:VAR_NAME" against the process
// environment. It is the default for single-tenant deployments where every
// user shares the platform's provider keys.
type EnvKeyResolver struct{}

func (EnvKeyResolver) Reveal(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", nil
	}
	name, ok := strings.CutPrefix(ref, "env:")
	if !ok {
		return "", fmt.Errorf("unsupported api key ref %q", ref)
	}
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return "", fmt.Errorf("api key ref %q resolves to an empty value", ref)
	}
	return v, nil
}

// ConfigResolver loads a user's active LLM configuration and reveals its API
// key. Callers pass the resolved config into the engine explicitly rather
// than the engine reading shared state mid-turn.
type ConfigResolver interface {
	// Resolve fails fast with ErrConfigurationMissing when the user has no
	// active config or the key ref cannot be revealed. modelOverride, when
	// non-empty, replaces the configured generation model for this call only.
	Resolve(dbc dbctx.Context, userID uuid.UUID, modelOverride string) (llmcfg.Resolved, error)
}

type configResolver struct {
	log     *logger.Logger
	configs repos.UserLLMConfigRepo
	keys    APIKeyResolver
}

func NewConfigResolver(configs repos.UserLLMConfigRepo, keys APIKeyResolver, baseLog *logger.Logger) ConfigResolver {
	if keys == nil {
		keys = EnvKeyResolver{}
	}
	return &configResolver{
		log:     baseLog.With("service", "ConfigResolver"),
		configs: configs,
		keys:    keys,
	}
}

func (s *configResolver) Resolve(dbc dbctx.Context, userID uuid.UUID, modelOverride string) (llmcfg.Resolved, error) {
	row, err := s.configs.GetActiveByUser(dbc, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return llmcfg.Resolved{}, errs.ErrConfigurationMissing
		}
		return llmcfg.Resolved{}, err
	}

	var key string
	if row.APIKeyRef != "" {
		key, err = s.keys.Reveal(row.APIKeyRef)
		if err != nil {
			s.log.Warn("failed to reveal api key ref", "user_id", userID, "error", err)
			return llmcfg.Resolved{}, errs.ErrConfigurationMissing
		}
	}

	// A non-OpenAI provider with no endpoint of its own would silently fall
	// through to the deployment's OPENAI_BASE_URL; refuse it up front.
	provider := strings.ToLower(strings.TrimSpace(row.Provider))
	if provider != "" && provider != "openai" && strings.TrimSpace(row.BaseURL) == "" {
		return llmcfg.Resolved{}, fmt.Errorf("%w: provider %q requires base_url", errs.ErrConfigurationMissing, row.Provider)
	}

	resolved := llmcfg.Resolved{
		Provider:       row.Provider,
		Model:          row.Model,
		EmbeddingModel: row.EmbeddingModel,
		BaseURL:        row.BaseURL,
		APIKey:         key,
	}
	if mo := strings.TrimSpace(modelOverride); mo != "" {
		resolved.Model = mo
	}
	return resolved, nil
}
