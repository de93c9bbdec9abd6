package services

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/peerspark/peerspark-backend/internal/domain"
	"github.com/peerspark/peerspark-backend/internal/domain/match"
	"github.com/peerspark/peerspark-backend/internal/platform/logger"
	"github.com/peerspark/peerspark-backend/internal/platform/openai"
)

// Rerank is Stage2: it re-scores Stage1 candidates with a weighted
// multi-factor relevance function and returns the top finalK. The output
// order is allowed to differ from Stage1 order; when finalK exceeds the
// candidate count, everything is returned reranked, never padded.
//
// Ties break by Stage1 similarity descending, then entity id ascending, so
// identical inputs always produce identical output.
func Rerank(seed match.Snapshot, candidates []match.Candidate, w match.Weights, finalK int) []match.Ranked {
	w = w.Normalized()

	ranked := make([]match.Ranked, 0, len(candidates))
	seen := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		key := c.EntityID.String()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		skill := scoreSkillFactor(seed, c.Snapshot)
		avail := scoreAvailabilityFactor(seed, c.Snapshot)
		loc := scoreLocation(seed.Location, c.Snapshot.Location)

		score := w.Similarity*clamp01(c.Similarity) +
			w.Skills*skill +
			w.Availability*avail +
			w.Location*loc

		ranked = append(ranked, match.Ranked{
			EntityID:          c.EntityID,
			EntityType:        c.EntityType,
			Score:             clamp01(score),
			Similarity:        c.Similarity,
			Snapshot:          c.Snapshot,
			SkillScore:        skill,
			AvailabilityScore: avail,
			LocationScore:     loc,
		})
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		if ranked[i].Similarity != ranked[j].Similarity {
			return ranked[i].Similarity > ranked[j].Similarity
		}
		return ranked[i].EntityID.String() < ranked[j].EntityID.String()
	})

	if finalK > 0 && len(ranked) > finalK {
		ranked = ranked[:finalK]
	}
	return ranked
}

// ---- skills ----

// Proficiency tiers carry weights 1 through 4. A candidate below the
// required tier earns the requirement's weight minus 0.5 per missing tier,
// floored at 1. A missing skill costs three quarters of its weight.

func skillLevelWeight(level string) float64 {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "expert":
		return 4.0
	case "advanced":
		return 3.0
	case "intermediate":
		return 2.0
	default:
		return 1.0
	}
}

func scoreSkills(held, required []match.Skill) float64 {
	if len(required) == 0 {
		return 0.5
	}

	byName := make(map[string]float64, len(held))
	for _, s := range held {
		name := strings.ToLower(strings.TrimSpace(s.Name))
		lw := skillLevelWeight(s.Level)
		if lw > byName[name] {
			byName[name] = lw
		}
	}

	var total, earned float64
	for _, req := range required {
		reqW := skillLevelWeight(req.Level)
		total += reqW

		heldW, ok := byName[strings.ToLower(strings.TrimSpace(req.Name))]
		if !ok {
			earned -= 0.75 * reqW
			continue
		}
		if heldW >= reqW {
			earned += reqW
			continue
		}
		credit := reqW - 0.5*(reqW-heldW)
		if credit < 1.0 {
			credit = 1.0
		}
		earned += credit
	}
	if total == 0 {
		return 0.5
	}
	return clamp01(earned / total)
}

// scoreSkillFactor orients the comparison: the project or course side
// supplies the requirement, the student side supplies what is held. Pairings
// with no skill semantics (text queries, chunks, notes) score neutral.
func scoreSkillFactor(seed, cand match.Snapshot) float64 {
	held, required, ok := skillSides(seed, cand)
	if !ok {
		return 0.5
	}
	return scoreSkills(held, required)
}

func skillSides(seed, cand match.Snapshot) (held, required []match.Skill, ok bool) {
	switch {
	case seed.EntityType == domain.EntityStudent && (cand.EntityType == domain.EntityProject || cand.EntityType == domain.EntityCourse):
		return seed.Skills, cand.Skills, true
	case cand.EntityType == domain.EntityStudent && (seed.EntityType == domain.EntityProject || seed.EntityType == domain.EntityCourse):
		return cand.Skills, seed.Skills, true
	case seed.EntityType == domain.EntityStudent && cand.EntityType == domain.EntityStudent:
		// Peer matching: either side's skills act as the bar.
		return seed.Skills, cand.Skills, true
	}
	return nil, nil, false
}

// ---- availability / time commitment ----

var (
	hoursRangeRe  = regexp.MustCompile(`(\d+)\s*-\s*(\d+)`)
	hoursPlusRe   = regexp.MustCompile(`(\d+)\s*\+`)
	hoursNumberRe = regexp.MustCompile(`\d+`)
)

// parseWeeklyHours extracts an hours-per-week estimate from free text.
// Ranges average, "30+" reads as 35, full-time reads as 40.
func parseWeeklyHours(text string) (float64, bool) {
	t := strings.ToLower(text)
	if t == "" {
		return 0, false
	}
	if strings.Contains(t, "full-time") || strings.Contains(t, "full time") {
		return 40, true
	}
	if m := hoursRangeRe.FindStringSubmatch(t); m != nil {
		lo, _ := strconv.Atoi(m[1])
		hi, _ := strconv.Atoi(m[2])
		return (float64(lo) + float64(hi)) / 2, true
	}
	if m := hoursPlusRe.FindStringSubmatch(t); m != nil {
		n, _ := strconv.Atoi(m[1])
		return float64(n) + 5, true
	}
	if m := hoursNumberRe.FindString(t); m != "" {
		n, _ := strconv.Atoi(m)
		return float64(n), true
	}
	return 0, false
}

var periodKeywords = []string{
	"summer", "winter", "fall", "spring", "semester", "long term", "long-term", "short term", "short-term",
}

func parsePeriods(text string) map[string]struct{} {
	t := strings.ToLower(text)
	out := map[string]struct{}{}
	for _, kw := range periodKeywords {
		if strings.Contains(t, kw) {
			out[strings.ReplaceAll(kw, "-", " ")] = struct{}{}
		}
	}
	return out
}

// scoreAvailability compares a student's stated availability against a
// project's time commitment and duration. Hours dominate; period keywords
// (summer, semester, long term) refine.
func scoreAvailability(availability, timeCommitment, duration string) float64 {
	if strings.TrimSpace(availability) == "" && strings.TrimSpace(timeCommitment) == "" && strings.TrimSpace(duration) == "" {
		return 0.2
	}

	hoursScore := 0.5
	have, haveOK := parseWeeklyHours(availability)
	need, needOK := parseWeeklyHours(timeCommitment)
	if haveOK && needOK {
		if need <= 0 || have >= need {
			hoursScore = 1.0
		} else {
			hoursScore = have / need
		}
	}

	periodScore := 0.5
	havePeriods := parsePeriods(availability)
	needPeriods := parsePeriods(timeCommitment + " " + duration)
	if len(havePeriods) > 0 && len(needPeriods) > 0 {
		periodScore = 0.2
		for p := range needPeriods {
			if _, ok := havePeriods[p]; ok {
				periodScore = 1.0
				break
			}
		}
	}

	return clamp01(0.6*hoursScore + 0.4*periodScore)
}

func scoreAvailabilityFactor(seed, cand match.Snapshot) float64 {
	// Courses run on fixed schedules; time compatibility is near-automatic.
	if seed.EntityType == domain.EntityCourse || cand.EntityType == domain.EntityCourse {
		return 0.9
	}
	student, other, ok := availabilitySides(seed, cand)
	if !ok {
		return 0.5
	}
	return scoreAvailability(student.Availability, other.TimeCommitment, other.Duration)
}

func availabilitySides(seed, cand match.Snapshot) (student, other match.Snapshot, ok bool) {
	switch {
	case seed.EntityType == domain.EntityStudent && cand.EntityType == domain.EntityProject:
		return seed, cand, true
	case cand.EntityType == domain.EntityStudent && seed.EntityType == domain.EntityProject:
		return cand, seed, true
	}
	return match.Snapshot{}, match.Snapshot{}, false
}

// ---- location ----

// scoreLocation tiers: exact 1.0, substring 0.8, same leading city token
// 0.6, both set but unrelated 0.1, one side missing 0.2, both missing 0.3.
func scoreLocation(a, b string) float64 {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	switch {
	case a == "" && b == "":
		return 0.3
	case a == "" || b == "":
		return 0.2
	case a == b:
		return 1.0
	case strings.Contains(a, b) || strings.Contains(b, a):
		return 0.8
	}
	cityA, _, _ := strings.Cut(a, ",")
	cityB, _, _ := strings.Cut(b, ",")
	if strings.TrimSpace(cityA) == strings.TrimSpace(cityB) {
		return 0.6
	}
	return 0.1
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// ---- rationale ----

// RationaleGenerator produces a short natural-language justification for one
// ranked match. Failures are non-fatal; ranking succeeds without rationales.
type RationaleGenerator interface {
	Rationale(ctx context.Context, seed match.Snapshot, m match.Ranked) (string, error)
}

type llmRationale struct {
	log *logger.Logger
	ai  openai.Client
}

func NewLLMRationale(ai openai.Client, baseLog *logger.Logger) RationaleGenerator {
	return &llmRationale{log: baseLog.With("service", "RationaleGenerator"), ai: ai}
}

const rationaleSystemPrompt = "You write one-sentence explanations of why two records on a student collaboration platform match. Be concrete and mention the strongest factor. Never exceed 30 words."

func (r *llmRationale) Rationale(ctx context.Context, seed match.Snapshot, m match.Ranked) (string, error) {
	user := fmt.Sprintf(
		"Seed %s: %s\nSummary: %s\nSkills: %s\n\nMatch %s: %s\nSummary: %s\nSkills: %s\n\nSub-scores: skills=%.2f availability=%.2f location=%.2f similarity=%.2f",
		seed.EntityType, seedLabel(seed), truncateText(seed.Summary, 400), skillsLine(seed.Skills),
		m.EntityType, m.Snapshot.Title, truncateText(m.Snapshot.Summary, 400), skillsLine(m.Snapshot.Skills),
		m.SkillScore, m.AvailabilityScore, m.LocationScore, m.Similarity,
	)
	text, err := r.ai.GenerateText(ctx, rationaleSystemPrompt, user)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func seedLabel(s match.Snapshot) string {
	if s.Title != "" {
		return s.Title
	}
	return s.EntityID.String()
}

func truncateText(s string, max int) string {
	if len(s) <= max {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
