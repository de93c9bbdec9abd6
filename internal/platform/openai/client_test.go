package openai

import (
	"testing"

	"github.com/peerspark/peerspark-backend/internal/domain/llmcfg"
)

func TestWithConfigOverridesWithoutMutatingBase(t *testing.T) {
	base := &client{
		baseURL:    "https://api.openai.com",
		apiKey:     "sk-platform",
		model:      "gpt-4o",
		embedModel: "text-embedding-3-small",
	}

	bound := WithConfig(base, llmcfg.Resolved{
		Model:   "claude-sonnet-4-5",
		BaseURL: "https://llm-proxy.internal/v1/",
		APIKey:  "sk-user",
	})
	c, ok := bound.(*client)
	if !ok {
		t.Fatalf("WithConfig returned %T, want *client", bound)
	}
	if c.baseURL != "https://llm-proxy.internal/v1" {
		t.Fatalf("baseURL = %q, want trailing slash trimmed", c.baseURL)
	}
	if c.model != "claude-sonnet-4-5" || c.apiKey != "sk-user" {
		t.Fatalf("override not applied: model=%q key=%q", c.model, c.apiKey)
	}
	if c.embedModel != "text-embedding-3-small" {
		t.Fatalf("unset field should inherit, embedModel = %q", c.embedModel)
	}

	if base.baseURL != "https://api.openai.com" || base.apiKey != "sk-platform" || base.model != "gpt-4o" {
		t.Fatalf("base client mutated: %+v", base)
	}
}

func TestWithConfigEmptyKeepsBaseValues(t *testing.T) {
	base := &client{baseURL: "https://api.openai.com", apiKey: "sk-platform", model: "gpt-4o"}

	bound := WithConfig(base, llmcfg.Resolved{})
	c, ok := bound.(*client)
	if !ok {
		t.Fatalf("WithConfig returned %T, want *client", bound)
	}
	if c.baseURL != base.baseURL || c.apiKey != base.apiKey || c.model != base.model {
		t.Fatalf("empty config should keep base values, got %+v", c)
	}
}

func TestWithConfigNilBase(t *testing.T) {
	if got := WithConfig(nil, llmcfg.Resolved{Model: "gpt-4o"}); got != nil {
		t.Fatalf("WithConfig(nil) = %v, want nil", got)
	}
}
