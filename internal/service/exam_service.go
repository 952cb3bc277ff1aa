package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/luyenthi/vstep-backend/internal/config"
	"github.com/luyenthi/vstep-backend/internal/model"
	"github.com/luyenthi/vstep-backend/internal/repository"
	"github.com/luyenthi/vstep-backend/internal/response"
)

// ExamService handles catalog business logic and Redis content caching.
type ExamService struct {
	examRepo *repository.ExamRepository
	rdb      *redis.Client
	cfg      *config.Config
	log      zerolog.Logger
}

// NewExamService creates a new ExamService.
func NewExamService(examRepo *repository.ExamRepository, rdb *redis.Client, cfg *config.Config, log zerolog.Logger) *ExamService {
	return &ExamService{
		examRepo: examRepo,
		rdb:      rdb,
		cfg:      cfg,
		log:      log.With().Str("component", "exam_service").Logger(),
	}
}

// GetByID retrieves a catalog entry.
func (s *ExamService) GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	return s.examRepo.GetByID(ctx, id)
}

// List retrieves catalog entries with optional skill/level filters.
func (s *ExamService) List(ctx context.Context, skill *model.Skill, level *model.ExamLevel, page, perPage int) ([]model.Exam, *response.Pagination, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 10
	}
	if perPage > 100 {
		perPage = 100
	}

	exams, total, err := s.examRepo.ListPaginated(ctx, skill, level, perPage, (page-1)*perPage)
	if err != nil {
		return nil, nil, err
	}
	if exams == nil {
		exams = []model.Exam{}
	}

	pagination := &response.Pagination{
		Page:       page,
		PerPage:    perPage,
		TotalItems: total,
		TotalPages: (total + perPage - 1) / perPage,
	}
	return exams, pagination, nil
}

// Create inserts a new exam with its nested content. New exams start private;
// Publish makes them eligible for random assembly.
func (s *ExamService) Create(ctx context.Context, createdBy int, req *model.CreateExamRequest) (*model.Exam, error) {
	exam := &model.Exam{
		Title:           req.Title,
		Skill:           model.Skill(req.Skill),
		Level:           model.ExamLevel(req.Level),
		Type:            model.ExamType(req.Type),
		DurationMinutes: req.DurationMinutes,
		CreatedBy:       createdBy,
	}
	if err := s.examRepo.Create(ctx, exam, req.Sections); err != nil {
		return nil, fmt.Errorf("create exam: %w", err)
	}
	return exam, nil
}

// Update changes catalog metadata and drops the stale cached content.
func (s *ExamService) Update(ctx context.Context, id uuid.UUID, req *model.UpdateExamRequest) error {
	if err := s.examRepo.UpdateMeta(ctx, id, req); err != nil {
		return err
	}
	s.invalidateCache(ctx, id)
	return nil
}

// Publish makes an exam public and warms its content cache so the first
// session detail request does not pay the nested catalog query.
func (s *ExamService) Publish(ctx context.Context, id uuid.UUID) error {
	if err := s.examRepo.SetPublic(ctx, id, true); err != nil {
		return err
	}
	if _, err := s.warmContentCache(ctx, id); err != nil {
		// The read-through path recovers; publish itself already succeeded.
		s.log.Warn().Err(err).Str("exam_id", id.String()).Msg("Content cache warm failed")
	}
	s.log.Info().Str("exam_id", id.String()).Msg("Exam published")
	return nil
}

// Delete soft-deletes an exam and drops its cached content. Existing sessions
// keep their reference; eligibility queries exclude the exam immediately.
func (s *ExamService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.examRepo.SoftDelete(ctx, id); err != nil {
		return err
	}
	s.invalidateCache(ctx, id)
	return nil
}

// GetContent returns the nested paper for one exam, read-through cached in
// Redis. Cache failures fall back to PostgreSQL.
func (s *ExamService) GetContent(ctx context.Context, id uuid.UUID) (*model.ExamContent, error) {
	key := config.CacheKey.ExamContentKey(id.String())

	cached, err := s.rdb.Get(ctx, key).Result()
	if err == nil {
		var content model.ExamContent
		if jsonErr := json.Unmarshal([]byte(cached), &content); jsonErr == nil {
			return &content, nil
		}
		// Corrupt cache entry; fall through to the database.
		s.rdb.Del(ctx, key)
	} else if !errors.Is(err, redis.Nil) {
		s.log.Warn().Err(err).Msg("Content cache read failed")
	}

	return s.warmContentCache(ctx, id)
}

// warmContentCache loads content from PostgreSQL and stores it in Redis.
func (s *ExamService) warmContentCache(ctx context.Context, id uuid.UUID) (*model.ExamContent, error) {
	content, err := s.examRepo.GetContent(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load exam content: %w", err)
	}

	raw, err := json.Marshal(content)
	if err != nil {
		return nil, fmt.Errorf("marshal exam content: %w", err)
	}
	key := config.CacheKey.ExamContentKey(id.String())
	if err := s.rdb.Set(ctx, key, raw, s.cfg.ContentCacheTTL).Err(); err != nil {
		s.log.Warn().Err(err).Str("exam_id", id.String()).Msg("Content cache write failed")
	}

	return content, nil
}

func (s *ExamService) invalidateCache(ctx context.Context, id uuid.UUID) {
	key := config.CacheKey.ExamContentKey(id.String())
	if err := s.rdb.Del(ctx, key).Err(); err != nil {
		s.log.Warn().Err(err).Str("exam_id", id.String()).Msg("Content cache invalidate failed")
	}
}
