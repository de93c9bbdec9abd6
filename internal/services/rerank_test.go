package services

import (
	"math"
	"testing"

	"github.com/google/uuid"

	"github.com/peerspark/peerspark-backend/internal/domain"
	"github.com/peerspark/peerspark-backend/internal/domain/match"
)

func almostEqual(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestScoreSkills(t *testing.T) {
	held := []match.Skill{
		{Name: "Go", Level: "expert"},
		{Name: "Postgres", Level: "beginner"},
	}
	required := []match.Skill{
		{Name: "go", Level: "advanced"},
		{Name: "postgres", Level: "intermediate"},
	}

	// Go meets the bar (+3); Postgres is one tier short (2 - 0.5 = 1.5).
	got := scoreSkills(held, required)
	if !almostEqual(got, 4.5/5.0) {
		t.Fatalf("partial overlap: want=%v got=%v", 4.5/5.0, got)
	}

	if got := scoreSkills(nil, required); got != 0 {
		t.Fatalf("all skills missing should clamp to 0, got=%v", got)
	}
	if got := scoreSkills(held, nil); got != 0.5 {
		t.Fatalf("no requirements should be neutral, got=%v", got)
	}
}

func TestScoreSkillsDeficitFloor(t *testing.T) {
	held := []match.Skill{{Name: "rust", Level: "beginner"}}
	required := []match.Skill{{Name: "rust", Level: "expert"}}

	// 4 - 0.5*3 = 2.5, above the floor of 1.
	if got := scoreSkills(held, required); !almostEqual(got, 2.5/4.0) {
		t.Fatalf("deficit credit: want=%v got=%v", 2.5/4.0, got)
	}
}

func TestScoreLocationTiers(t *testing.T) {
	cases := []struct {
		a, b string
		want float64
	}{
		{"Berlin, Germany", "berlin, germany", 1.0},
		{"Berlin", "Berlin, Germany", 0.8},
		{"Berlin, DE", "Berlin, Germany", 0.6},
		{"", "", 0.3},
		{"Berlin", "", 0.2},
		{"Berlin, Germany", "Tokyo, Japan", 0.1},
	}
	for _, tc := range cases {
		if got := scoreLocation(tc.a, tc.b); !almostEqual(got, tc.want) {
			t.Fatalf("scoreLocation(%q, %q): want=%v got=%v", tc.a, tc.b, tc.want, got)
		}
	}
}

func TestParseWeeklyHours(t *testing.T) {
	cases := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"10-20 hours per week", 15, true},
		{"30+ hours", 35, true},
		{"full-time", 40, true},
		{"full time over the summer", 40, true},
		{"about 8 hours", 8, true},
		{"whenever", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, ok := parseWeeklyHours(tc.in)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("parseWeeklyHours(%q): want=(%v,%v) got=(%v,%v)", tc.in, tc.want, tc.ok, got, ok)
		}
	}
}

func TestScoreAvailability(t *testing.T) {
	// Enough hours and a matching period.
	got := scoreAvailability("15 hours per week during summer", "10-20 hours per week", "summer")
	if !almostEqual(got, 1.0) {
		t.Fatalf("full compatibility: want=1.0 got=%v", got)
	}

	// Short on hours, wrong period.
	got = scoreAvailability("5 hours, winter only", "20 hours per week", "summer")
	want := 0.6*(5.0/20.0) + 0.4*0.2
	if !almostEqual(got, want) {
		t.Fatalf("poor compatibility: want=%v got=%v", want, got)
	}

	if got := scoreAvailability("", "", ""); !almostEqual(got, 0.2) {
		t.Fatalf("nothing stated: want=0.2 got=%v", got)
	}
}

func TestRerankReordersAgainstStage1(t *testing.T) {
	seed := match.Snapshot{
		EntityID:     uuid.New(),
		EntityType:   domain.EntityStudent,
		Skills:       []match.Skill{{Name: "go", Level: "advanced"}},
		Location:     "Berlin, Germany",
		Availability: "10-20 hours per week summer",
	}

	highSim := match.Candidate{
		EntityID:   uuid.New(),
		EntityType: domain.EntityProject,
		Similarity: 0.9,
		Snapshot: match.Snapshot{
			EntityID:   uuid.New(),
			EntityType: domain.EntityProject,
		},
	}
	goodFit := match.Candidate{
		EntityID:   uuid.New(),
		EntityType: domain.EntityProject,
		Similarity: 0.7,
		Snapshot: match.Snapshot{
			EntityID:       uuid.New(),
			EntityType:     domain.EntityProject,
			Skills:         []match.Skill{{Name: "go", Level: "intermediate"}},
			Location:       "Berlin, Germany",
			TimeCommitment: "15 hours per week",
			Duration:       "summer",
		},
	}

	ranked := Rerank(seed, []match.Candidate{highSim, goodFit}, match.DefaultWeights(), 10)
	if len(ranked) != 2 {
		t.Fatalf("ranked count: want=2 got=%d", len(ranked))
	}
	if ranked[0].EntityID != goodFit.EntityID {
		t.Fatalf("expected feature-fit candidate to outrank raw similarity: got %v first", ranked[0].EntityID)
	}
	if ranked[0].Score <= ranked[1].Score {
		t.Fatalf("scores not descending: %v then %v", ranked[0].Score, ranked[1].Score)
	}
}

func TestRerankCapsAndDedupes(t *testing.T) {
	seed := match.Snapshot{EntityType: domain.EntityStudent}
	id := uuid.New()
	cands := []match.Candidate{
		{EntityID: id, EntityType: domain.EntityProject, Similarity: 0.8},
		{EntityID: id, EntityType: domain.EntityProject, Similarity: 0.8},
		{EntityID: uuid.New(), EntityType: domain.EntityProject, Similarity: 0.6},
	}

	ranked := Rerank(seed, cands, match.DefaultWeights(), 10)
	if len(ranked) != 2 {
		t.Fatalf("dedupe: want=2 got=%d", len(ranked))
	}

	ranked = Rerank(seed, cands, match.DefaultWeights(), 1)
	if len(ranked) != 1 {
		t.Fatalf("cap: want=1 got=%d", len(ranked))
	}

	// More requested than available returns everything, never padded.
	ranked = Rerank(seed, cands[2:], match.DefaultWeights(), 5)
	if len(ranked) != 1 {
		t.Fatalf("no padding: want=1 got=%d", len(ranked))
	}
}

func TestRerankDeterministicTieBreak(t *testing.T) {
	seed := match.Snapshot{EntityType: domain.EntityStudent}
	a := uuid.MustParse("00000000-0000-0000-0000-00000000000a")
	b := uuid.MustParse("00000000-0000-0000-0000-00000000000b")
	cands := []match.Candidate{
		{EntityID: b, EntityType: domain.EntityProject, Similarity: 0.5},
		{EntityID: a, EntityType: domain.EntityProject, Similarity: 0.5},
	}

	for range 5 {
		ranked := Rerank(seed, cands, match.DefaultWeights(), 10)
		if ranked[0].EntityID != a || ranked[1].EntityID != b {
			t.Fatalf("tie break by entity id: got %v, %v", ranked[0].EntityID, ranked[1].EntityID)
		}
	}
}
