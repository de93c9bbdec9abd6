package qdrant

import (
	"errors"
	"testing"
)

func TestTranslateFilterMapScope(t *testing.T) {
	filter := map[string]any{
		"entity_type": "knowledge_chunk",
		"knowledge_base_id": map[string]any{
			"$in": []any{"kb-1", "kb-2"},
		},
	}

	got, err := translateFilterMap(filter)
	if err != nil {
		t.Fatalf("translateFilterMap: %v", err)
	}
	if len(got.Must) != 2 {
		t.Fatalf("must length: want=2 got=%d", len(got.Must))
	}

	typeCond := findConditionByKey(got.Must, "entity_type")
	if typeCond == nil {
		t.Fatalf("missing entity_type condition")
	}
	typeMatch, ok := typeCond["match"].(map[string]any)
	if !ok || typeMatch["value"] != "knowledge_chunk" {
		t.Fatalf("entity_type match: got=%v", typeCond["match"])
	}

	kbCond := findConditionByKey(got.Must, "knowledge_base_id")
	if kbCond == nil {
		t.Fatalf("missing knowledge_base_id condition")
	}
	kbMatch, ok := kbCond["match"].(map[string]any)
	if !ok {
		t.Fatalf("knowledge_base_id match type: got=%T", kbCond["match"])
	}
	anyVals, ok := kbMatch["any"].([]any)
	if !ok {
		t.Fatalf("knowledge_base_id any type: got=%T", kbMatch["any"])
	}
	if len(anyVals) != 2 || anyVals[0] != "kb-1" || anyVals[1] != "kb-2" {
		t.Fatalf("knowledge_base_id any values: got=%v", anyVals)
	}
}

func TestTranslateFilterMapNotOperator(t *testing.T) {
	got, err := translateFilterMap(map[string]any{
		"$not": map[string]any{
			"owner_id": "user-1",
		},
	})
	if err != nil {
		t.Fatalf("translateFilterMap: %v", err)
	}
	if len(got.MustNot) != 1 {
		t.Fatalf("must_not length: want=1 got=%d", len(got.MustNot))
	}
}

func TestTranslateFilterMapUnsupportedOperator(t *testing.T) {
	_, err := translateFilterMap(map[string]any{
		"chunk_index": map[string]any{
			"$gt": 2,
		},
	})
	if err == nil {
		t.Fatalf("translateFilterMap: expected error, got nil")
	}

	var opErr *OperationError
	if !errors.As(err, &opErr) {
		t.Fatalf("expected OperationError, got=%T", err)
	}
	if opErr.Code != OperationErrorUnsupportedFilter {
		t.Fatalf("error code: want=%q got=%q", OperationErrorUnsupportedFilter, opErr.Code)
	}
}

func TestTranslateFilterMapEmptyInRejected(t *testing.T) {
	_, err := translateFilterMap(map[string]any{
		"note_id": map[string]any{
			"$in": []any{},
		},
	})
	if err == nil {
		t.Fatalf("translateFilterMap: expected error for empty $in, got nil")
	}
}

func findConditionByKey(items []any, key string) map[string]any {
	for _, raw := range items {
		cond, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		if condKey, _ := cond["key"].(string); condKey == key {
			return cond
		}
	}
	return nil
}
