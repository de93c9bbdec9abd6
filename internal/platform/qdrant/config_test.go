package qdrant

import (
	"errors"
	"testing"
)

func TestValidateConfigOK(t *testing.T) {
	err := ValidateConfig(Config{
		URL:             "http://qdrant:6333",
		Collection:      "peerspark",
		NamespacePrefix: "ps",
		VectorDim:       1536,
	})
	if err != nil {
		t.Fatalf("ValidateConfig: %v", err)
	}
}

func TestValidateConfigErrors(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
		code ConfigErrorCode
	}{
		{"missing url", Config{Collection: "c", VectorDim: 8}, ConfigErrorMissingURL},
		{"invalid url", Config{URL: "qdrant:6333", Collection: "c", VectorDim: 8}, ConfigErrorInvalidURL},
		{"missing collection", Config{URL: "http://q:6333", VectorDim: 8}, ConfigErrorMissingCollection},
		{"bad dim", Config{URL: "http://q:6333", Collection: "c", VectorDim: 0}, ConfigErrorInvalidVectorDim},
	}
	for _, tc := range cases {
		err := ValidateConfig(tc.cfg)
		if err == nil {
			t.Fatalf("%s: expected error, got nil", tc.name)
		}
		var cfgErr *ConfigError
		if !errors.As(err, &cfgErr) {
			t.Fatalf("%s: expected ConfigError, got %T", tc.name, err)
		}
		if cfgErr.Code != tc.code {
			t.Fatalf("%s: code want=%q got=%q", tc.name, tc.code, cfgErr.Code)
		}
	}
}
