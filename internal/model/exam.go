package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ExamType distinguishes catalog entry kinds.
type ExamType string

const (
	ExamTypeFullTest ExamType = "full_test"
	ExamTypePractice ExamType = "practice"
	ExamTypeMiniTest ExamType = "mini_test"
)

// Exam represents one catalog entry: a single-skill exam paper.
type Exam struct {
	ID              uuid.UUID  `json:"id"`
	Title           string     `json:"title"`
	Skill           Skill      `json:"skill"`
	Level           ExamLevel  `json:"level"`
	Type            ExamType   `json:"type"`
	DurationMinutes int        `json:"duration_minutes"`
	QuestionCount   int        `json:"question_count"`
	IsPublic        bool       `json:"is_public"`
	CreatedBy       int        `json:"created_by"`
	DeletedAt       *time.Time `json:"-"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// ExamSummary is the per-skill entry returned by random assembly.
type ExamSummary struct {
	ID              uuid.UUID `json:"id"`
	Title           string    `json:"title"`
	Level           ExamLevel `json:"level"`
	QuestionCount   int       `json:"question_count"`
	DurationMinutes int       `json:"duration_minutes"`
}

// ExamContent is the full nested paper for one skill, with correct answers
// stripped. Cached in Redis and returned by the session detail endpoint.
type ExamContent struct {
	ID              uuid.UUID     `json:"id"`
	Title           string        `json:"title"`
	Skill           Skill         `json:"skill"`
	Level           ExamLevel     `json:"level"`
	DurationMinutes int           `json:"duration_minutes"`
	Sections        []ExamSection `json:"sections"`
}

// ExamSection groups passages within an exam (e.g. Reading Part 1).
type ExamSection struct {
	ID           uuid.UUID     `json:"id"`
	Title        string        `json:"title"`
	Instructions string        `json:"instructions,omitempty"`
	OrderNum     int           `json:"order_num"`
	Passages     []ExamPassage `json:"passages"`
}

// ExamPassage holds the stimulus (text or audio) and its questions.
type ExamPassage struct {
	ID        uuid.UUID      `json:"id"`
	Title     string         `json:"title,omitempty"`
	Content   string         `json:"content,omitempty"`
	AudioURL  string         `json:"audio_url,omitempty"`
	OrderNum  int            `json:"order_num"`
	Questions []ExamQuestion `json:"questions"`
}

// QuestionType enumerates supported question formats.
type QuestionType string

const (
	QuestionTypeMultipleChoice QuestionType = "multiple_choice"
	QuestionTypeFillBlank      QuestionType = "fill_blank"
	QuestionTypeEssay          QuestionType = "essay"
	QuestionTypeSpeakingPrompt QuestionType = "speaking_prompt"
)

// ExamQuestion is a question as shown to the candidate (no correct answer).
type ExamQuestion struct {
	ID       uuid.UUID       `json:"id"`
	Number   int             `json:"number"`
	Type     QuestionType    `json:"type"`
	Text     string          `json:"text"`
	Options  json.RawMessage `json:"options,omitempty"`
	OrderNum int             `json:"order_num"`
}

// CreateExamRequest is the admin payload for creating a catalog entry.
type CreateExamRequest struct {
	Title           string              `json:"title" binding:"required,min=3,max=255"`
	Skill           string              `json:"skill" binding:"required,oneof=reading listening writing speaking"`
	Level           string              `json:"level" binding:"required,oneof=B1 B2 C1"`
	Type            string              `json:"type" binding:"required,oneof=full_test practice mini_test"`
	DurationMinutes int                 `json:"duration_minutes" binding:"required,min=1,max=480"`
	Sections        []CreateExamSection `json:"sections" binding:"omitempty,dive"`
}

// CreateExamSection is the nested section payload for exam creation.
type CreateExamSection struct {
	Title        string              `json:"title" binding:"required,min=1,max=255"`
	Instructions string              `json:"instructions" binding:"omitempty,max=2000"`
	OrderNum     int                 `json:"order_num" binding:"min=0"`
	Passages     []CreateExamPassage `json:"passages" binding:"omitempty,dive"`
}

// CreateExamPassage is the nested passage payload for exam creation.
type CreateExamPassage struct {
	Title     string               `json:"title" binding:"omitempty,max=255"`
	Content   string               `json:"content" binding:"omitempty"`
	AudioURL  string               `json:"audio_url" binding:"omitempty,max=512"`
	OrderNum  int                  `json:"order_num" binding:"min=0"`
	Questions []CreateExamQuestion `json:"questions" binding:"omitempty,dive"`
}

// CreateExamQuestion is the nested question payload for exam creation.
type CreateExamQuestion struct {
	Number        int             `json:"number" binding:"min=0"`
	Type          string          `json:"type" binding:"required,oneof=multiple_choice fill_blank essay speaking_prompt"`
	Text          string          `json:"text" binding:"required,min=1,max=4000"`
	Options       json.RawMessage `json:"options" binding:"omitempty"`
	CorrectAnswer string          `json:"correct_answer" binding:"omitempty,max=2000"`
	OrderNum      int             `json:"order_num" binding:"min=0"`
}

// UpdateExamRequest is the admin payload for updating catalog metadata.
type UpdateExamRequest struct {
	Title           string `json:"title" binding:"omitempty,min=3,max=255"`
	Level           string `json:"level" binding:"omitempty,oneof=B1 B2 C1"`
	Type            string `json:"type" binding:"omitempty,oneof=full_test practice mini_test"`
	DurationMinutes int    `json:"duration_minutes" binding:"omitempty,min=1,max=480"`
}
