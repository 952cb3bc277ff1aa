package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/luyenthi/vstep-backend/internal/model"
)

// MockExamRepository handles mock-exam session data access. Every query that
// touches a session filters by both session id and user id, so a non-owner
// sees pgx.ErrNoRows rather than someone else's attempt.
type MockExamRepository struct {
	pool *pgxpool.Pool
}

// NewMockExamRepository creates a new MockExamRepository.
func NewMockExamRepository(pool *pgxpool.Pool) *MockExamRepository {
	return &MockExamRepository{pool: pool}
}

// Create inserts a new session in in_progress state. Expiry is computed once
// from the server clock; it is never recomputed afterwards.
func (r *MockExamRepository) Create(ctx context.Context, s *model.MockExamSession, totalMinutes int) error {
	refs, err := json.Marshal(s.ExamRefs)
	if err != nil {
		return fmt.Errorf("marshal exam refs: %w", err)
	}

	return r.pool.QueryRow(ctx,
		`INSERT INTO mock_exam_sessions (user_id, exam_refs, current_skill, answers, status, started_at, expires_at)
		 VALUES ($1, $2, $3, '{}'::jsonb, $4, NOW(), NOW() + ($5 * interval '1 minute'))
		 RETURNING id, started_at, expires_at`,
		s.UserID, refs, model.SkillReading, model.SessionStatusInProgress, totalMinutes,
	).Scan(&s.ID, &s.StartedAt, &s.ExpiresAt)
}

const sessionColumns = `id, user_id, exam_refs, current_skill, answers, status,
	started_at, expires_at, last_saved_at, submitted_at, time_spent,
	overall_score, skill_scores`

func scanSession(row pgx.Row) (*model.MockExamSession, error) {
	s := &model.MockExamSession{}
	var refs, answers, scores []byte
	err := row.Scan(&s.ID, &s.UserID, &refs, &s.CurrentSkill, &answers, &s.Status,
		&s.StartedAt, &s.ExpiresAt, &s.LastSavedAt, &s.SubmittedAt, &s.TimeSpent,
		&s.OverallScore, &scores)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(refs, &s.ExamRefs); err != nil {
		return nil, fmt.Errorf("unmarshal exam refs: %w", err)
	}
	s.Answers = map[model.Skill]json.RawMessage{}
	if len(answers) > 0 {
		if err := json.Unmarshal(answers, &s.Answers); err != nil {
			return nil, fmt.Errorf("unmarshal answers: %w", err)
		}
	}
	s.SkillScores = map[model.Skill]float64{}
	if len(scores) > 0 {
		if err := json.Unmarshal(scores, &s.SkillScores); err != nil {
			return nil, fmt.Errorf("unmarshal skill scores: %w", err)
		}
	}
	return s, nil
}

// GetByIDAndUser retrieves a session owned by the given user.
func (r *MockExamRepository) GetByIDAndUser(ctx context.Context, id uuid.UUID, userID int) (*model.MockExamSession, error) {
	return scanSession(r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+`
		 FROM mock_exam_sessions
		 WHERE id = $1 AND user_id = $2`, id, userID))
}

// SaveSkillAnswers merges one skill's answer payload into the session's
// answers map and stamps last_saved_at. The merge happens inside the UPDATE
// (jsonb || jsonb_build_object), so concurrent saves for different skills
// cannot clobber each other's keys. Returns pgx.ErrNoRows when no row matched
// (session missing, not owned, or not in_progress).
func (r *MockExamRepository) SaveSkillAnswers(ctx context.Context, id uuid.UUID, userID int, skill model.Skill, payload json.RawMessage) (time.Time, error) {
	var savedAt time.Time
	err := r.pool.QueryRow(ctx,
		`UPDATE mock_exam_sessions
		 SET answers = answers || jsonb_build_object($3::text, $4::jsonb),
		     last_saved_at = NOW()
		 WHERE id = $1 AND user_id = $2 AND status = $5
		 RETURNING last_saved_at`,
		id, userID, skill, payload, model.SessionStatusInProgress,
	).Scan(&savedAt)
	return savedAt, err
}

// UpdateCurrentSkill records which skill the client is currently showing.
// Sequencing between skills is client-driven and deliberately not checked.
func (r *MockExamRepository) UpdateCurrentSkill(ctx context.Context, id uuid.UUID, userID int, skill model.Skill) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE mock_exam_sessions
		 SET current_skill = $3
		 WHERE id = $1 AND user_id = $2 AND status = $4`,
		id, userID, skill, model.SessionStatusInProgress)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// Submit marks the session submitted and replaces the answers wholesale: the
// submitted payload is authoritative and supersedes auto-saved partial state.
// There is no status guard, so a second submit overwrites the first.
// The exam refs come back with the timestamp so the caller can enqueue
// grading without a second query.
func (r *MockExamRepository) Submit(ctx context.Context, id uuid.UUID, userID int, answers map[model.Skill]json.RawMessage, timeSpent int) (time.Time, map[model.Skill]uuid.UUID, error) {
	payload, err := json.Marshal(answers)
	if err != nil {
		return time.Time{}, nil, fmt.Errorf("marshal answers: %w", err)
	}

	var (
		submittedAt time.Time
		refsRaw     []byte
	)
	err = r.pool.QueryRow(ctx,
		`UPDATE mock_exam_sessions
		 SET status = $3, answers = $4::jsonb, submitted_at = NOW(), time_spent = $5
		 WHERE id = $1 AND user_id = $2
		 RETURNING submitted_at, exam_refs`,
		id, userID, model.SessionStatusSubmitted, payload, timeSpent,
	).Scan(&submittedAt, &refsRaw)
	if err != nil {
		return time.Time{}, nil, err
	}

	var refs map[model.Skill]uuid.UUID
	if err := json.Unmarshal(refsRaw, &refs); err != nil {
		return time.Time{}, nil, fmt.Errorf("unmarshal exam refs: %w", err)
	}
	return submittedAt, refs, nil
}

// GradedSession is one grading result to persist.
type GradedSession struct {
	SessionID    uuid.UUID
	OverallScore float64
	SkillScores  map[model.Skill]float64
}

// SetGraded persists one grading result, flipping the session to graded.
// Only submitted sessions are eligible.
func (r *MockExamRepository) SetGraded(ctx context.Context, g *GradedSession) error {
	scores, err := json.Marshal(g.SkillScores)
	if err != nil {
		return fmt.Errorf("marshal skill scores: %w", err)
	}

	_, err = r.pool.Exec(ctx,
		`UPDATE mock_exam_sessions
		 SET status = $2, overall_score = $3, skill_scores = $4::jsonb
		 WHERE id = $1 AND status = $5`,
		g.SessionID, model.SessionStatusGraded, g.OverallScore, scores, model.SessionStatusSubmitted)
	return err
}

// SetGradedBatch persists a batch of grading results in one statement.
func (r *MockExamRepository) SetGradedBatch(ctx context.Context, batch []*GradedSession) error {
	n := len(batch)
	ids := make([]uuid.UUID, 0, n)
	overall := make([]float64, 0, n)
	scores := make([][]byte, 0, n)

	for _, g := range batch {
		raw, err := json.Marshal(g.SkillScores)
		if err != nil {
			return fmt.Errorf("marshal skill scores: %w", err)
		}
		ids = append(ids, g.SessionID)
		overall = append(overall, g.OverallScore)
		scores = append(scores, raw)
	}

	query := `
		UPDATE mock_exam_sessions AS m
		SET status = 'graded',
		    overall_score = t.overall_score,
		    skill_scores = t.skill_scores::jsonb
		FROM (
			SELECT u.id, u.overall_score, u.skill_scores
			FROM UNNEST(
				$1::uuid[],
				$2::float8[],
				$3::text[]
			) AS u (id, overall_score, skill_scores)
		) AS t
		WHERE m.id = t.id
		  AND m.status = 'submitted'
	`

	// UNNEST has no jsonb[] binding through the text protocol, so scores
	// travel as text and cast inside the statement.
	asText := make([]string, n)
	for i, raw := range scores {
		asText[i] = string(raw)
	}

	_, err := r.pool.Exec(ctx, query, ids, overall, asText)
	return err
}

// ListByUser retrieves a user's sessions, newest first.
func (r *MockExamRepository) ListByUser(ctx context.Context, userID, limit, offset int) ([]model.MockExamSession, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+sessionColumns+`
		 FROM mock_exam_sessions
		 WHERE user_id = $1
		 ORDER BY started_at DESC
		 LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []model.MockExamSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}
