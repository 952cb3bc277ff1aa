package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/luyenthi/vstep-backend/internal/model"
)

// ExamRepository handles exam catalog data access.
type ExamRepository struct {
	pool *pgxpool.Pool
}

// NewExamRepository creates a new ExamRepository.
func NewExamRepository(pool *pgxpool.Pool) *ExamRepository {
	return &ExamRepository{pool: pool}
}

const examColumns = `id, title, skill, level, type, duration_minutes,
	question_count, is_public, created_by, deleted_at, created_at, updated_at`

func scanExam(row pgx.Row) (*model.Exam, error) {
	e := &model.Exam{}
	err := row.Scan(&e.ID, &e.Title, &e.Skill, &e.Level, &e.Type, &e.DurationMinutes,
		&e.QuestionCount, &e.IsPublic, &e.CreatedBy, &e.DeletedAt, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// GetByID retrieves a non-deleted exam by its UUID.
func (r *ExamRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	return scanExam(r.pool.QueryRow(ctx,
		`SELECT `+examColumns+` FROM exams WHERE id = $1 AND deleted_at IS NULL`, id))
}

// ListEligibleIDs returns ids of exams that can be drawn into a mock set:
// matching skill and level, full-test type, public, not soft-deleted.
func (r *ExamRepository) ListEligibleIDs(ctx context.Context, skill model.Skill, level model.ExamLevel) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id FROM exams
		 WHERE skill = $1 AND level = $2 AND type = $3
		   AND is_public AND deleted_at IS NULL`,
		skill, level, model.ExamTypeFullTest)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetSummary retrieves the summary fields for one exam.
func (r *ExamRepository) GetSummary(ctx context.Context, id uuid.UUID) (*model.ExamSummary, error) {
	s := &model.ExamSummary{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, title, level, question_count, duration_minutes
		 FROM exams WHERE id = $1 AND deleted_at IS NULL`, id,
	).Scan(&s.ID, &s.Title, &s.Level, &s.QuestionCount, &s.DurationMinutes)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// CountExisting counts how many of the given ids resolve to live exams.
// Used by session start to reject incomplete exam sets.
func (r *ExamRepository) CountExisting(ctx context.Context, ids []uuid.UUID) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(DISTINCT id) FROM exams
		 WHERE id = ANY($1) AND deleted_at IS NULL`, ids,
	).Scan(&count)
	return count, err
}

// GetContent loads the full nested paper: sections, passages, questions.
// Correct answers are never selected.
func (r *ExamRepository) GetContent(ctx context.Context, id uuid.UUID) (*model.ExamContent, error) {
	exam, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	content := &model.ExamContent{
		ID:              exam.ID,
		Title:           exam.Title,
		Skill:           exam.Skill,
		Level:           exam.Level,
		DurationMinutes: exam.DurationMinutes,
	}

	sectionRows, err := r.pool.Query(ctx,
		`SELECT id, title, instructions, order_num
		 FROM exam_sections WHERE exam_id = $1 ORDER BY order_num`, id)
	if err != nil {
		return nil, fmt.Errorf("list sections: %w", err)
	}
	defer sectionRows.Close()

	sectionIdx := make(map[uuid.UUID]int)
	for sectionRows.Next() {
		var s model.ExamSection
		if err := sectionRows.Scan(&s.ID, &s.Title, &s.Instructions, &s.OrderNum); err != nil {
			return nil, err
		}
		s.Passages = []model.ExamPassage{}
		sectionIdx[s.ID] = len(content.Sections)
		content.Sections = append(content.Sections, s)
	}
	if err := sectionRows.Err(); err != nil {
		return nil, err
	}

	passageRows, err := r.pool.Query(ctx,
		`SELECT p.id, p.section_id, p.title, p.content, p.audio_url, p.order_num
		 FROM exam_passages p
		 JOIN exam_sections s ON p.section_id = s.id
		 WHERE s.exam_id = $1
		 ORDER BY p.order_num`, id)
	if err != nil {
		return nil, fmt.Errorf("list passages: %w", err)
	}
	defer passageRows.Close()

	passageIdx := make(map[uuid.UUID][2]int) // passage id -> (section index, passage index)
	for passageRows.Next() {
		var p model.ExamPassage
		var sectionID uuid.UUID
		if err := passageRows.Scan(&p.ID, &sectionID, &p.Title, &p.Content, &p.AudioURL, &p.OrderNum); err != nil {
			return nil, err
		}
		p.Questions = []model.ExamQuestion{}
		si, ok := sectionIdx[sectionID]
		if !ok {
			continue
		}
		passageIdx[p.ID] = [2]int{si, len(content.Sections[si].Passages)}
		content.Sections[si].Passages = append(content.Sections[si].Passages, p)
	}
	if err := passageRows.Err(); err != nil {
		return nil, err
	}

	questionRows, err := r.pool.Query(ctx,
		`SELECT q.id, q.passage_id, q.number, q.type, q.text, q.options, q.order_num
		 FROM exam_questions q
		 JOIN exam_passages p ON q.passage_id = p.id
		 JOIN exam_sections s ON p.section_id = s.id
		 WHERE s.exam_id = $1
		 ORDER BY q.order_num`, id)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	defer questionRows.Close()

	for questionRows.Next() {
		var q model.ExamQuestion
		var passageID uuid.UUID
		if err := questionRows.Scan(&q.ID, &passageID, &q.Number, &q.Type, &q.Text, &q.Options, &q.OrderNum); err != nil {
			return nil, err
		}
		loc, ok := passageIdx[passageID]
		if !ok {
			continue
		}
		content.Sections[loc[0]].Passages[loc[1]].Questions =
			append(content.Sections[loc[0]].Passages[loc[1]].Questions, q)
	}
	return content, questionRows.Err()
}

// ListPaginated retrieves catalog entries with optional skill/level filters.
// Soft-deleted exams are excluded.
func (r *ExamRepository) ListPaginated(ctx context.Context, skill *model.Skill, level *model.ExamLevel, limit, offset int) ([]model.Exam, int, error) {
	baseQuery := ` FROM exams WHERE deleted_at IS NULL`
	args := []any{}

	if skill != nil {
		args = append(args, *skill)
		baseQuery += fmt.Sprintf(" AND skill = $%d", len(args))
	}
	if level != nil {
		args = append(args, *level)
		baseQuery += fmt.Sprintf(" AND level = $%d", len(args))
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*)`+baseQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + examColumns + baseQuery +
		fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var exams []model.Exam
	for rows.Next() {
		var e model.Exam
		if err := rows.Scan(&e.ID, &e.Title, &e.Skill, &e.Level, &e.Type, &e.DurationMinutes,
			&e.QuestionCount, &e.IsPublic, &e.CreatedBy, &e.DeletedAt, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, 0, err
		}
		exams = append(exams, e)
	}
	return exams, total, rows.Err()
}

// Create inserts a new exam with its nested sections, passages and questions
// in one transaction. The question count is derived from the payload.
func (r *ExamRepository) Create(ctx context.Context, e *model.Exam, sections []model.CreateExamSection) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	questionCount := 0
	for _, s := range sections {
		for _, p := range s.Passages {
			questionCount += len(p.Questions)
		}
	}
	e.QuestionCount = questionCount

	err = tx.QueryRow(ctx,
		`INSERT INTO exams (title, skill, level, type, duration_minutes, question_count, is_public, created_by)
		 VALUES ($1, $2, $3, $4, $5, $6, false, $7)
		 RETURNING id, is_public, created_at, updated_at`,
		e.Title, e.Skill, e.Level, e.Type, e.DurationMinutes, e.QuestionCount, e.CreatedBy,
	).Scan(&e.ID, &e.IsPublic, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert exam: %w", err)
	}

	for _, s := range sections {
		var sectionID uuid.UUID
		err = tx.QueryRow(ctx,
			`INSERT INTO exam_sections (exam_id, title, instructions, order_num)
			 VALUES ($1, $2, $3, $4) RETURNING id`,
			e.ID, s.Title, s.Instructions, s.OrderNum,
		).Scan(&sectionID)
		if err != nil {
			return fmt.Errorf("insert section: %w", err)
		}

		for _, p := range s.Passages {
			var passageID uuid.UUID
			err = tx.QueryRow(ctx,
				`INSERT INTO exam_passages (section_id, title, content, audio_url, order_num)
				 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
				sectionID, p.Title, p.Content, p.AudioURL, p.OrderNum,
			).Scan(&passageID)
			if err != nil {
				return fmt.Errorf("insert passage: %w", err)
			}

			for _, q := range p.Questions {
				_, err = tx.Exec(ctx,
					`INSERT INTO exam_questions (passage_id, number, type, text, options, correct_answer, order_num)
					 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
					passageID, q.Number, q.Type, q.Text, q.Options, q.CorrectAnswer, q.OrderNum)
				if err != nil {
					return fmt.Errorf("insert question: %w", err)
				}
			}
		}
	}

	return tx.Commit(ctx)
}

// UpdateMeta updates catalog metadata fields that were supplied.
func (r *ExamRepository) UpdateMeta(ctx context.Context, id uuid.UUID, req *model.UpdateExamRequest) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE exams SET
		   title = COALESCE(NULLIF($1, ''), title),
		   level = COALESCE(NULLIF($2, ''), level),
		   type = COALESCE(NULLIF($3, ''), type),
		   duration_minutes = CASE WHEN $4 > 0 THEN $4 ELSE duration_minutes END,
		   updated_at = NOW()
		 WHERE id = $5 AND deleted_at IS NULL`,
		req.Title, req.Level, req.Type, req.DurationMinutes, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// SetPublic publishes or unpublishes an exam.
func (r *ExamRepository) SetPublic(ctx context.Context, id uuid.UUID, public bool) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE exams SET is_public = $1, updated_at = NOW()
		 WHERE id = $2 AND deleted_at IS NULL`, public, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// SoftDelete marks an exam deleted without removing rows. Eligibility and
// catalog lookups exclude it immediately; in-flight sessions can still serve
// its content from the Redis cache until the TTL lapses.
func (r *ExamRepository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE exams SET deleted_at = NOW(), updated_at = NOW()
		 WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
