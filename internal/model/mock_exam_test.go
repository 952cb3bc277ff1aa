package model

import (
	"testing"
	"time"
)

func TestRemainingSeconds(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	session := &MockExamSession{
		StartedAt: start,
		ExpiresAt: start.Add(TotalExamMinutes * time.Minute),
	}

	if got := session.RemainingSeconds(start); got != TotalExamSeconds {
		t.Errorf("at start expected %d, got %d", TotalExamSeconds, got)
	}
	if got := session.RemainingSeconds(start.Add(30 * time.Minute)); got != TotalExamSeconds-1800 {
		t.Errorf("after 30m expected %d, got %d", TotalExamSeconds-1800, got)
	}
	if got := session.RemainingSeconds(start.Add(200 * time.Minute)); got != 0 {
		t.Errorf("past expiry expected 0, got %d", got)
	}
}

func TestParseSkill(t *testing.T) {
	for _, raw := range []string{"reading", "listening", "writing", "speaking"} {
		skill, err := ParseSkill(raw)
		if err != nil {
			t.Errorf("%s should parse: %v", raw, err)
		}
		if string(skill) != raw {
			t.Errorf("expected %s, got %s", raw, skill)
		}
	}

	for _, raw := range []string{"", "grammar", "Reading", "READING"} {
		if _, err := ParseSkill(raw); err == nil {
			t.Errorf("%q should not parse", raw)
		}
	}
}

func TestExamLevelValid(t *testing.T) {
	for _, lvl := range []ExamLevel{LevelB1, LevelB2, LevelC1} {
		if !lvl.Valid() {
			t.Errorf("%s should be valid", lvl)
		}
	}
	for _, lvl := range []ExamLevel{"", "A1", "b2", "C2"} {
		if lvl.Valid() {
			t.Errorf("%q should be invalid", lvl)
		}
	}
}

func TestStartRequestExamRefs(t *testing.T) {
	req := &StartMockExamRequest{}
	refs := req.ExamRefs()
	if len(refs) != len(AllSkills) {
		t.Fatalf("expected %d refs, got %d", len(AllSkills), len(refs))
	}
	for _, skill := range AllSkills {
		if _, ok := refs[skill]; !ok {
			t.Errorf("missing ref for %s", skill)
		}
	}
}
