package services

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/peerspark/peerspark-backend/internal/domain/llmcfg"
	"github.com/peerspark/peerspark-backend/internal/pkg/dbctx"
	"github.com/peerspark/peerspark-backend/internal/pkg/errs"
)

type memLLMConfigRepo struct {
	active *llmcfg.UserLLMConfig
}

func (r *memLLMConfigRepo) GetActiveByUser(_ dbctx.Context, _ uuid.UUID) (*llmcfg.UserLLMConfig, error) {
	if r.active == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return r.active, nil
}

func (r *memLLMConfigRepo) Create(_ dbctx.Context, row *llmcfg.UserLLMConfig) (*llmcfg.UserLLMConfig, error) {
	return row, nil
}

func (r *memLLMConfigRepo) Activate(_ dbctx.Context, _, _ uuid.UUID) error { return nil }

func TestResolveCopiesActiveConfig(t *testing.T) {
	t.Setenv("TEST_PROVIDER_KEY", "sk-user")
	repo := &memLLMConfigRepo{active: &llmcfg.UserLLMConfig{
		Provider:       "openai",
		Model:          "gpt-4o",
		EmbeddingModel: "text-embedding-3-small",
		APIKeyRef:      "env:TEST_PROVIDER_KEY",
	}}
	resolver := NewConfigResolver(repo, EnvKeyResolver{}, testLogger(t))

	got, err := resolver.Resolve(dbctx.Context{}, uuid.New(), "")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.Model != "gpt-4o" || got.EmbeddingModel != "text-embedding-3-small" || got.APIKey != "sk-user" {
		t.Fatalf("unexpected resolved config: %+v", got)
	}

	got, err = resolver.Resolve(dbctx.Context{}, uuid.New(), "gpt-4.1")
	if err != nil {
		t.Fatalf("Resolve with override: %v", err)
	}
	if got.Model != "gpt-4.1" {
		t.Fatalf("model override not applied, got %q", got.Model)
	}
}

func TestResolveNonOpenAIProviderRequiresBaseURL(t *testing.T) {
	repo := &memLLMConfigRepo{active: &llmcfg.UserLLMConfig{
		Provider: "anthropic",
		Model:    "claude-sonnet-4-5",
	}}
	resolver := NewConfigResolver(repo, EnvKeyResolver{}, testLogger(t))

	if _, err := resolver.Resolve(dbctx.Context{}, uuid.New(), ""); !errors.Is(err, errs.ErrConfigurationMissing) {
		t.Fatalf("expected ErrConfigurationMissing without base_url, got %v", err)
	}

	repo.active.BaseURL = "https://llm-proxy.internal/v1"
	got, err := resolver.Resolve(dbctx.Context{}, uuid.New(), "")
	if err != nil {
		t.Fatalf("Resolve with base_url: %v", err)
	}
	if got.BaseURL != "https://llm-proxy.internal/v1" {
		t.Fatalf("base_url not carried, got %q", got.BaseURL)
	}
}

func TestResolveNoActiveConfig(t *testing.T) {
	resolver := NewConfigResolver(&memLLMConfigRepo{}, EnvKeyResolver{}, testLogger(t))
	if _, err := resolver.Resolve(dbctx.Context{}, uuid.New(), ""); !errors.Is(err, errs.ErrConfigurationMissing) {
		t.Fatalf("expected ErrConfigurationMissing, got %v", err)
	}
}

func TestResolveUnrevealableKeyRef(t *testing.T) {
	repo := &memLLMConfigRepo{active: &llmcfg.UserLLMConfig{
		Provider:  "openai",
		Model:     "gpt-4o",
		APIKeyRef: "env:TEST_KEY_THAT_IS_NOT_SET",
	}}
	resolver := NewConfigResolver(repo, EnvKeyResolver{}, testLogger(t))
	if _, err := resolver.Resolve(dbctx.Context{}, uuid.New(), ""); !errors.Is(err, errs.ErrConfigurationMissing) {
		t.Fatalf("expected ErrConfigurationMissing, got %v", err)
	}
}
