package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/luyenthi/vstep-backend/internal/config"
	"github.com/luyenthi/vstep-backend/internal/model"
)

// Domain errors surfaced to handlers.
var (
	ErrSessionNotFound    = errors.New("mock exam session not found")
	ErrExamNotInProgress  = errors.New("exam is not in progress")
	ErrResultNotAvailable = errors.New("results not available yet")
	ErrIncompleteExamSet  = errors.New("exam set must resolve to four existing exams")
	ErrInvalidLevel       = errors.New("unknown exam level")
)

// SkillUnavailableError names the skill that has no eligible exams, so the
// caller knows which part of the catalog is empty.
type SkillUnavailableError struct {
	Skill model.Skill
}

func (e *SkillUnavailableError) Error() string {
	return fmt.Sprintf("no eligible exam for skill %s", e.Skill)
}

// ExamCatalog is the catalog surface the orchestrator needs.
type ExamCatalog interface {
	ListEligibleIDs(ctx context.Context, skill model.Skill, level model.ExamLevel) ([]uuid.UUID, error)
	GetSummary(ctx context.Context, id uuid.UUID) (*model.ExamSummary, error)
	CountExisting(ctx context.Context, ids []uuid.UUID) (int, error)
}

// SessionStore is the persistence surface for mock-exam sessions. Every
// method filters by session id and user id together.
type SessionStore interface {
	Create(ctx context.Context, s *model.MockExamSession, totalMinutes int) error
	GetByIDAndUser(ctx context.Context, id uuid.UUID, userID int) (*model.MockExamSession, error)
	SaveSkillAnswers(ctx context.Context, id uuid.UUID, userID int, skill model.Skill, payload json.RawMessage) (time.Time, error)
	UpdateCurrentSkill(ctx context.Context, id uuid.UUID, userID int, skill model.Skill) error
	Submit(ctx context.Context, id uuid.UUID, userID int, answers map[model.Skill]json.RawMessage, timeSpent int) (time.Time, map[model.Skill]uuid.UUID, error)
	ListByUser(ctx context.Context, userID, limit, offset int) ([]model.MockExamSession, error)
}

// ContentLoader resolves an exam id into its nested paper.
type ContentLoader interface {
	GetContent(ctx context.Context, id uuid.UUID) (*model.ExamContent, error)
}

// MockExamService drives a session from random assembly through result
// retrieval. It is the only component with state-transition semantics.
type MockExamService struct {
	catalog  ExamCatalog
	sessions SessionStore
	content  ContentLoader
	rdb      *redis.Client
	cfg      *config.Config
	log      zerolog.Logger
}

// NewMockExamService creates a new MockExamService. rdb may be nil, in which
// case submissions are not forwarded to the grading queue.
func NewMockExamService(
	catalog ExamCatalog,
	sessions SessionStore,
	content ContentLoader,
	rdb *redis.Client,
	cfg *config.Config,
	log zerolog.Logger,
) *MockExamService {
	return &MockExamService{
		catalog:  catalog,
		sessions: sessions,
		content:  content,
		rdb:      rdb,
		cfg:      cfg,
		log:      log.With().Str("component", "mock_exam_service").Logger(),
	}
}

// MockExamSet is the response of random assembly: one exam per skill plus the
// fixed total sitting time.
type MockExamSet struct {
	Level        model.ExamLevel                   `json:"level"`
	Exams        map[model.Skill]model.ExamSummary `json:"exams"`
	TotalMinutes int                               `json:"total_minutes"`
	TotalSeconds int                               `json:"total_seconds"`
}

// AssembleRandom draws one eligible exam per skill at the given level. The
// draw is uniform over the eligible id set, picked here rather than with
// ORDER BY random() (a full-sort hazard on large catalogs). If any skill has
// no candidates the whole operation fails; partial sets are never returned.
// Pure read: two calls may return different exams.
func (s *MockExamService) AssembleRandom(ctx context.Context, level string) (*MockExamSet, error) {
	if level == "" {
		level = s.cfg.DefaultLevel
	}
	lvl := model.ExamLevel(level)
	if !lvl.Valid() {
		return nil, ErrInvalidLevel
	}

	set := &MockExamSet{
		Level:        lvl,
		Exams:        make(map[model.Skill]model.ExamSummary, len(model.AllSkills)),
		TotalMinutes: model.TotalExamMinutes,
		TotalSeconds: model.TotalExamSeconds,
	}

	for _, skill := range model.AllSkills {
		ids, err := s.catalog.ListEligibleIDs(ctx, skill, lvl)
		if err != nil {
			return nil, fmt.Errorf("list eligible exams for %s: %w", skill, err)
		}
		if len(ids) == 0 {
			return nil, &SkillUnavailableError{Skill: skill}
		}

		picked := ids[rand.IntN(len(ids))]
		summary, err := s.catalog.GetSummary(ctx, picked)
		if err != nil {
			return nil, fmt.Errorf("get exam summary for %s: %w", skill, err)
		}
		set.Exams[skill] = *summary
	}

	return set, nil
}

// StartSessionResult is returned once a session row exists.
type StartSessionResult struct {
	MockExamID   uuid.UUID `json:"mock_exam_id"`
	StartedAt    time.Time `json:"started_at"`
	ExpiresAt    time.Time `json:"expires_at"`
	TotalSeconds int       `json:"total_seconds"`
}

// Start creates exactly one session from four exam references. All four must
// resolve to live exams or no row is created.
func (s *MockExamService) Start(ctx context.Context, userID int, req *model.StartMockExamRequest) (*StartSessionResult, error) {
	refs := req.ExamRefs()

	ids := make([]uuid.UUID, 0, len(refs))
	for _, id := range refs {
		ids = append(ids, id)
	}
	count, err := s.catalog.CountExisting(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve exam refs: %w", err)
	}
	if count < len(model.AllSkills) {
		return nil, ErrIncompleteExamSet
	}

	session := &model.MockExamSession{
		UserID:   userID,
		ExamRefs: refs,
	}
	if err := s.sessions.Create(ctx, session, model.TotalExamMinutes); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	s.log.Info().
		Str("session_id", session.ID.String()).
		Int("user_id", userID).
		Msg("Mock exam session started")

	return &StartSessionResult{
		MockExamID:   session.ID,
		StartedAt:    session.StartedAt,
		ExpiresAt:    session.ExpiresAt,
		TotalSeconds: model.TotalExamSeconds,
	}, nil
}

// SessionDetail carries everything a client needs to resume: the current
// skill's paper plus all saved answers and the remaining clock.
type SessionDetail struct {
	MockExamID       uuid.UUID                       `json:"mock_exam_id"`
	Status           model.SessionStatus             `json:"status"`
	CurrentSkill     model.Skill                     `json:"current_skill"`
	ExamRefs         map[model.Skill]uuid.UUID       `json:"exam_refs"`
	Exam             *model.ExamContent              `json:"exam"`
	SavedAnswers     map[model.Skill]json.RawMessage `json:"saved_answers"`
	StartedAt        time.Time                       `json:"started_at"`
	ExpiresAt        time.Time                       `json:"expires_at"`
	RemainingSeconds int                             `json:"remaining_seconds"`
}

// GetDetail loads the session together with the paper for its current skill.
// Non-owners get ErrSessionNotFound, indistinguishable from a missing id.
func (s *MockExamService) GetDetail(ctx context.Context, sessionID uuid.UUID, userID int) (*SessionDetail, error) {
	session, err := s.sessions.GetByIDAndUser(ctx, sessionID, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}

	examID, ok := session.ExamRefs[session.CurrentSkill]
	if !ok {
		return nil, fmt.Errorf("session %s has no exam ref for skill %s", session.ID, session.CurrentSkill)
	}
	content, err := s.content.GetContent(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("load exam content: %w", err)
	}

	return &SessionDetail{
		MockExamID:       session.ID,
		Status:           session.Status,
		CurrentSkill:     session.CurrentSkill,
		ExamRefs:         session.ExamRefs,
		Exam:             content,
		SavedAnswers:     session.Answers,
		StartedAt:        session.StartedAt,
		ExpiresAt:        session.ExpiresAt,
		RemainingSeconds: session.RemainingSeconds(time.Now()),
	}, nil
}

// SaveProgressResult reports the new save timestamp.
type SaveProgressResult struct {
	LastSavedAt time.Time `json:"last_saved_at"`
}

// SaveProgress merges one skill's answers into the session. Other skills'
// entries are untouched. Only in_progress sessions accept the write; the
// status gate lives in the UPDATE itself, so a rejected write mutates
// nothing. Repeating the same skill+payload is safe (last write wins on that
// skill's slot).
func (s *MockExamService) SaveProgress(ctx context.Context, sessionID uuid.UUID, userID int, skill model.Skill, payload json.RawMessage) (*SaveProgressResult, error) {
	savedAt, err := s.sessions.SaveSkillAnswers(ctx, sessionID, userID, skill, payload)
	if err == nil {
		return &SaveProgressResult{LastSavedAt: savedAt}, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("save answers: %w", err)
	}

	// No row matched. Distinguish missing/not-owned from wrong status.
	if _, getErr := s.sessions.GetByIDAndUser(ctx, sessionID, userID); getErr != nil {
		return nil, ErrSessionNotFound
	}
	return nil, ErrExamNotInProgress
}

// UpdateCurrentSkill records which skill the client is showing. Order between
// skills is client-driven; the server only gates on session status.
func (s *MockExamService) UpdateCurrentSkill(ctx context.Context, sessionID uuid.UUID, userID int, skill model.Skill) error {
	err := s.sessions.UpdateCurrentSkill(ctx, sessionID, userID, skill)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("update current skill: %w", err)
	}
	if _, getErr := s.sessions.GetByIDAndUser(ctx, sessionID, userID); getErr != nil {
		return ErrSessionNotFound
	}
	return ErrExamNotInProgress
}

// SubmitResult acknowledges a submission; grading happens asynchronously.
type SubmitResult struct {
	MockExamID  uuid.UUID           `json:"mock_exam_id"`
	Status      model.SessionStatus `json:"status"`
	SubmittedAt time.Time           `json:"submitted_at"`
	Message     string              `json:"message"`
}

// gradingRequest is the payload queued for the external grader.
type gradingRequest struct {
	SessionID uuid.UUID                       `json:"session_id"`
	UserID    int                             `json:"user_id"`
	ExamRefs  map[model.Skill]uuid.UUID       `json:"exam_refs"`
	Answers   map[model.Skill]json.RawMessage `json:"answers"`
}

// Submit replaces the session's answers wholesale with the submitted payload
// and marks the session submitted. It does not grade; a grading request is
// queued for the external grader and the call returns immediately. There is
// no double-submission guard: a second submit overwrites answers, timestamp
// and time spent.
func (s *MockExamService) Submit(ctx context.Context, sessionID uuid.UUID, userID int, req *model.SubmitMockExamRequest) (*SubmitResult, error) {
	for skill := range req.Answers {
		if !skill.Valid() {
			return nil, fmt.Errorf("unknown skill %q in answers", skill)
		}
	}

	submittedAt, refs, err := s.sessions.Submit(ctx, sessionID, userID, req.Answers, req.TimeSpent)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("submit session: %w", err)
	}

	s.enqueueGrading(ctx, sessionID, userID, refs, req.Answers)

	s.log.Info().
		Str("session_id", sessionID.String()).
		Int("user_id", userID).
		Int("time_spent", req.TimeSpent).
		Msg("Mock exam submitted")

	return &SubmitResult{
		MockExamID:  sessionID,
		Status:      model.SessionStatusSubmitted,
		SubmittedAt: submittedAt,
		Message:     "Submission received. Grading is pending.",
	}, nil
}

// enqueueGrading pushes a grading request for the external grader. A queue
// failure is logged but does not fail the submission; the session row is
// already the source of truth.
func (s *MockExamService) enqueueGrading(ctx context.Context, sessionID uuid.UUID, userID int, refs map[model.Skill]uuid.UUID, answers map[model.Skill]json.RawMessage) {
	if s.rdb == nil {
		return
	}

	payload, err := json.Marshal(gradingRequest{
		SessionID: sessionID,
		UserID:    userID,
		ExamRefs:  refs,
		Answers:   answers,
	})
	if err != nil {
		s.log.Error().Err(err).Msg("Marshal grading request failed")
		return
	}
	if err := s.rdb.RPush(ctx, config.WorkerKey.GradingRequestsQueue, payload).Err(); err != nil {
		s.log.Warn().Err(err).Str("session_id", sessionID.String()).Msg("Grading enqueue failed")
	}
}

// MockExamResult exposes the graded outcome. Scores default to zero/empty
// until the grading process has run; overall_score is always present.
type MockExamResult struct {
	MockExamID   uuid.UUID               `json:"mock_exam_id"`
	Status       model.SessionStatus     `json:"status"`
	OverallScore float64                 `json:"overall_score"`
	SkillScores  map[model.Skill]float64 `json:"skill_scores"`
	SubmittedAt  *time.Time              `json:"submitted_at,omitempty"`
	TimeSpent    *int                    `json:"time_spent,omitempty"`
}

// GetResult returns scores for a submitted or graded session. Sessions still
// in progress fail with ErrResultNotAvailable.
func (s *MockExamService) GetResult(ctx context.Context, sessionID uuid.UUID, userID int) (*MockExamResult, error) {
	session, err := s.sessions.GetByIDAndUser(ctx, sessionID, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}

	if session.Status != model.SessionStatusSubmitted && session.Status != model.SessionStatusGraded {
		return nil, ErrResultNotAvailable
	}

	scores := session.SkillScores
	if scores == nil {
		scores = map[model.Skill]float64{}
	}

	return &MockExamResult{
		MockExamID:   session.ID,
		Status:       session.Status,
		OverallScore: session.OverallScore,
		SkillScores:  scores,
		SubmittedAt:  session.SubmittedAt,
		TimeSpent:    session.TimeSpent,
	}, nil
}

// GetSession loads an owned session without any content joins. Used by the
// session clock stream.
func (s *MockExamService) GetSession(ctx context.Context, sessionID uuid.UUID, userID int) (*model.MockExamSession, error) {
	session, err := s.sessions.GetByIDAndUser(ctx, sessionID, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return session, nil
}

// ListMine returns the caller's sessions, newest first.
func (s *MockExamService) ListMine(ctx context.Context, userID, page, perPage int) ([]model.MockExamSession, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 10
	}
	if perPage > 100 {
		perPage = 100
	}

	sessions, err := s.sessions.ListByUser(ctx, userID, perPage, (page-1)*perPage)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	if sessions == nil {
		sessions = []model.MockExamSession{}
	}
	return sessions, nil
}
