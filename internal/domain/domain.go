package domain

import "fmt"

// EntityType names the kinds of records that carry an embedding and can be
// retrieved from the vector index.
type EntityType string

const (
	EntityStudent        EntityType = "student"
	EntityProject        EntityType = "project"
	EntityCourse         EntityType = "course"
	EntityKnowledgeChunk EntityType = "knowledge_chunk"
	EntityNote           EntityType = "note"
)

func AllEntityTypes() []EntityType {
	return []EntityType{EntityStudent, EntityProject, EntityCourse, EntityKnowledgeChunk, EntityNote}
}

func ParseEntityType(s string) (EntityType, error) {
	switch EntityType(s) {
	case EntityStudent, EntityProject, EntityCourse, EntityKnowledgeChunk, EntityNote:
		return EntityType(s), nil
	}
	return "", fmt.Errorf("unknown entity type %q", s)
}
