package services

import (
	"encoding/json"
	"fmt"
	"strings"

	"gorm.io/datatypes"

	"github.com/peerspark/peerspark-backend/internal/domain"
	"github.com/peerspark/peerspark-backend/internal/domain/campus"
	"github.com/peerspark/peerspark-backend/internal/domain/match"
)

// vectorNamespace maps an entity type to its vector index namespace. One
// namespace per type keeps Stage1 scoped without payload filtering.
func vectorNamespace(t domain.EntityType) string { return string(t) }

func decodeSkills(raw datatypes.JSON) []match.Skill {
	if len(raw) == 0 {
		return nil
	}
	var skills []match.Skill
	if err := json.Unmarshal(raw, &skills); err != nil {
		return nil
	}
	out := skills[:0]
	for _, s := range skills {
		if strings.TrimSpace(s.Name) != "" {
			out = append(out, s)
		}
	}
	return out
}

func decodeStrings(raw datatypes.JSON) []string {
	if len(raw) == 0 {
		return nil
	}
	var vals []string
	if err := json.Unmarshal(raw, &vals); err != nil {
		return nil
	}
	return vals
}

func skillsLine(skills []match.Skill) string {
	if len(skills) == 0 {
		return ""
	}
	parts := make([]string, 0, len(skills))
	for _, s := range skills {
		if s.Level != "" {
			parts = append(parts, fmt.Sprintf("%s (%s)", s.Name, s.Level))
		} else {
			parts = append(parts, s.Name)
		}
	}
	return strings.Join(parts, ", ")
}

func snapshotStudent(s *campus.Student) match.Snapshot {
	return match.Snapshot{
		EntityID:     s.ID,
		EntityType:   domain.EntityStudent,
		Title:        s.DisplayName,
		Summary:      s.Bio,
		Skills:       decodeSkills(s.Skills),
		Location:     s.Location,
		Availability: s.Availability,
	}
}

func snapshotProject(p *campus.Project) match.Snapshot {
	return match.Snapshot{
		EntityID:       p.ID,
		EntityType:     domain.EntityProject,
		Title:          p.Title,
		Summary:        p.Description,
		Skills:         decodeSkills(p.RequiredSkills),
		Location:       p.Location,
		TimeCommitment: p.TimeCommitment,
		Duration:       p.Duration,
	}
}

func snapshotCourse(c *campus.Course) match.Snapshot {
	return match.Snapshot{
		EntityID:   c.ID,
		EntityType: domain.EntityCourse,
		Title:      c.Title,
		Summary:    c.Description,
		Skills:     decodeSkills(c.TaughtSkills),
	}
}

func snapshotChunk(k *campus.KnowledgeChunk) match.Snapshot {
	return match.Snapshot{
		EntityID:   k.ID,
		EntityType: domain.EntityKnowledgeChunk,
		Title:      k.Title,
		Summary:    k.Content,
	}
}

func snapshotNote(n *campus.Note) match.Snapshot {
	return match.Snapshot{
		EntityID:   n.ID,
		EntityType: domain.EntityNote,
		Title:      n.Title,
		Summary:    n.Content,
	}
}

// Source-text builders produce the text an entity is embedded from. Field
// labels are kept stable: changing them silently shifts every similarity
// score until a full re-embed.

func sourceTextStudent(s *campus.Student) string {
	var b strings.Builder
	writeField(&b, "Name", s.DisplayName)
	writeField(&b, "Bio", s.Bio)
	writeField(&b, "Skills", skillsLine(decodeSkills(s.Skills)))
	writeField(&b, "Interests", strings.Join(decodeStrings(s.Interests), ", "))
	writeField(&b, "Location", s.Location)
	writeField(&b, "Availability", s.Availability)
	return strings.TrimSpace(b.String())
}

func sourceTextProject(p *campus.Project) string {
	var b strings.Builder
	writeField(&b, "Title", p.Title)
	writeField(&b, "Description", p.Description)
	writeField(&b, "Required skills", skillsLine(decodeSkills(p.RequiredSkills)))
	writeField(&b, "Location", p.Location)
	writeField(&b, "Time commitment", p.TimeCommitment)
	writeField(&b, "Duration", p.Duration)
	return strings.TrimSpace(b.String())
}

func sourceTextCourse(c *campus.Course) string {
	var b strings.Builder
	writeField(&b, "Title", c.Title)
	writeField(&b, "Description", c.Description)
	writeField(&b, "Subject", c.Subject)
	writeField(&b, "Level", c.Level)
	writeField(&b, "Taught skills", skillsLine(decodeSkills(c.TaughtSkills)))
	return strings.TrimSpace(b.String())
}

func sourceTextChunk(k *campus.KnowledgeChunk) string {
	var b strings.Builder
	writeField(&b, "Title", k.Title)
	writeField(&b, "Content", k.Content)
	return strings.TrimSpace(b.String())
}

func sourceTextNote(n *campus.Note) string {
	var b strings.Builder
	writeField(&b, "Title", n.Title)
	writeField(&b, "Content", n.Content)
	return strings.TrimSpace(b.String())
}

func writeField(b *strings.Builder, label, value string) {
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}
	b.WriteString(label)
	b.WriteString(": ")
	b.WriteString(value)
	b.WriteString("\n")
}
