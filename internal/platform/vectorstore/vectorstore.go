package vectorstore

import "context"

// VectorStore is the vector index the retrieval pipeline runs against.
// Namespaces partition vectors by entity type.
type VectorStore interface {
	Upsert(ctx context.Context, namespace string, vectors []Vector) error
	// QueryMatches returns IDs with their similarity scores, descending.
	// Ties are broken by ID ascending so repeated queries are deterministic.
	QueryMatches(ctx context.Context, namespace string, q []float32, topK int, filter map[string]any) ([]Match, error)
	// FetchVector returns the stored vector for one ID, or ok=false when the
	// entity was never embedded.
	FetchVector(ctx context.Context, namespace string, id string) ([]float32, bool, error)
	DeleteIDs(ctx context.Context, namespace string, ids []string) error
}

type Vector struct {
	ID       string
	Values   []float32
	Metadata map[string]any
}

type Match struct {
	ID    string
	Score float64
}
