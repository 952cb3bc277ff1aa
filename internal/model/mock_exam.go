package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// TotalExamMinutes is the full VSTEP sitting time across all four skills.
const TotalExamMinutes = 172

// TotalExamSeconds is TotalExamMinutes expressed in seconds.
const TotalExamSeconds = TotalExamMinutes * 60

// SessionStatus enumerates mock-exam session states. Transitions are
// forward-only: in_progress -> submitted -> graded.
type SessionStatus string

const (
	SessionStatusInProgress SessionStatus = "in_progress"
	SessionStatusSubmitted  SessionStatus = "submitted"
	SessionStatusGraded     SessionStatus = "graded"
)

// MockExamSession is one user's four-skill mock-exam attempt.
type MockExamSession struct {
	ID           uuid.UUID                 `json:"id"`
	UserID       int                       `json:"user_id"`
	ExamRefs     map[Skill]uuid.UUID       `json:"exam_refs"`
	CurrentSkill Skill                     `json:"current_skill"`
	Answers      map[Skill]json.RawMessage `json:"answers"`
	Status       SessionStatus             `json:"status"`
	StartedAt    time.Time                 `json:"started_at"`
	ExpiresAt    time.Time                 `json:"expires_at"`
	LastSavedAt  *time.Time                `json:"last_saved_at,omitempty"`
	SubmittedAt  *time.Time                `json:"submitted_at,omitempty"`
	TimeSpent    *int                      `json:"time_spent,omitempty"`
	OverallScore float64                   `json:"overall_score"`
	SkillScores  map[Skill]float64         `json:"skill_scores"`
}

// RemainingSeconds returns the seconds left until expiry, floored at zero.
// Expiry is informational only; no write path rejects late saves or submits.
func (s *MockExamSession) RemainingSeconds(now time.Time) int {
	remaining := s.ExpiresAt.Sub(now)
	if remaining < 0 {
		return 0
	}
	return int(remaining.Seconds())
}

// StartMockExamRequest supplies the four exam ids, one per skill, normally
// taken from the random-assembly response.
type StartMockExamRequest struct {
	ReadingExamID   uuid.UUID `json:"reading_exam_id" binding:"required"`
	ListeningExamID uuid.UUID `json:"listening_exam_id" binding:"required"`
	WritingExamID   uuid.UUID `json:"writing_exam_id" binding:"required"`
	SpeakingExamID  uuid.UUID `json:"speaking_exam_id" binding:"required"`
}

// ExamRefs maps the request fields into the per-skill reference map.
func (r *StartMockExamRequest) ExamRefs() map[Skill]uuid.UUID {
	return map[Skill]uuid.UUID{
		SkillReading:   r.ReadingExamID,
		SkillListening: r.ListeningExamID,
		SkillWriting:   r.WritingExamID,
		SkillSpeaking:  r.SpeakingExamID,
	}
}

// SaveProgressRequest is the auto-save payload for a single skill.
type SaveProgressRequest struct {
	Skill   string          `json:"skill" binding:"required,oneof=reading listening writing speaking"`
	Answers json.RawMessage `json:"answers" binding:"required"`
}

// SubmitMockExamRequest carries the authoritative final answer set. It
// replaces auto-saved answers wholesale.
type SubmitMockExamRequest struct {
	Answers   map[Skill]json.RawMessage `json:"answers" binding:"required"`
	TimeSpent int                       `json:"time_spent" binding:"min=0"`
}

// UpdateCurrentSkillRequest advances the skill the client is showing.
// Sequencing is client-driven and not enforced server-side.
type UpdateCurrentSkillRequest struct {
	Skill string `json:"skill" binding:"required,oneof=reading listening writing speaking"`
}
