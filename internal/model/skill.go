package model

import "fmt"

// Skill is one of the four independently tested VSTEP components.
type Skill string

const (
	SkillReading   Skill = "reading"
	SkillListening Skill = "listening"
	SkillWriting   Skill = "writing"
	SkillSpeaking  Skill = "speaking"
)

// AllSkills lists every skill in canonical exam order.
var AllSkills = []Skill{SkillReading, SkillListening, SkillWriting, SkillSpeaking}

// Valid reports whether s is one of the four known skills.
func (s Skill) Valid() bool {
	switch s {
	case SkillReading, SkillListening, SkillWriting, SkillSpeaking:
		return true
	}
	return false
}

// ParseSkill converts a raw string into a Skill, rejecting unknown values.
func ParseSkill(raw string) (Skill, error) {
	s := Skill(raw)
	if !s.Valid() {
		return "", fmt.Errorf("unknown skill %q", raw)
	}
	return s, nil
}

// ExamLevel is a VSTEP proficiency band.
type ExamLevel string

const (
	LevelB1 ExamLevel = "B1"
	LevelB2 ExamLevel = "B2"
	LevelC1 ExamLevel = "C1"
)

// Valid reports whether l is a known VSTEP level.
func (l ExamLevel) Valid() bool {
	switch l {
	case LevelB1, LevelB2, LevelC1:
		return true
	}
	return false
}
