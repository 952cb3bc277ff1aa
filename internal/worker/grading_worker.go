package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/luyenthi/vstep-backend/internal/config"
	"github.com/luyenthi/vstep-backend/internal/model"
	"github.com/luyenthi/vstep-backend/internal/repository"
)

const (
	GradeBatchSize    = 50
	GradeBatchTimeout = 2 * time.Second
	GradePollTimeout  = 1 * time.Second
)

// GradingWorker consumes grading results produced by the external grading
// pipeline and persists them. It does not compute scores itself; it only
// flips submitted sessions to graded with the scores it is handed.
type GradingWorker struct {
	sessions *repository.MockExamRepository
	rdb      *redis.Client
	log      zerolog.Logger
}

func NewGradingWorker(sessions *repository.MockExamRepository, rdb *redis.Client, log zerolog.Logger) *GradingWorker {
	return &GradingWorker{
		sessions: sessions,
		rdb:      rdb,
		log:      log.With().Str("component", "grading_worker").Logger(),
	}
}

type gradingResult struct {
	SessionID    string                  `json:"session_id"`
	OverallScore float64                 `json:"overall_score"`
	SkillScores  map[model.Skill]float64 `json:"skill_scores"`
}

// ----------------------------------------------------------------
// Worker loop with batching
// ----------------------------------------------------------------

func (w *GradingWorker) Start(ctx context.Context) {
	w.log.Info().Msg("GradingWorker started")

	batch := make([]*gradingResult, 0, GradeBatchSize)
	lastFlush := time.Now()

	for {
		// Should flush?
		if len(batch) > 0 &&
			(len(batch) >= GradeBatchSize || time.Since(lastFlush) >= GradeBatchTimeout) {

			w.flushSafe(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Msg("Shutdown requested. Flushing remaining batch...")
			w.flushSafe(context.Background(), batch)
			return

		default:
			item, err := w.rdb.BLPop(ctx, GradePollTimeout, config.WorkerKey.GradingResultsQueue).Result()
			if err != nil {
				if err != redis.Nil && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
				}
				continue
			}

			if len(item) < 2 {
				continue
			}

			var res gradingResult
			if err := json.Unmarshal([]byte(item[1]), &res); err != nil {
				w.log.Error().Err(err).Msg("Invalid JSON payload")
				continue
			}

			batch = append(batch, &res)
		}
	}
}

// ----------------------------------------------------------------
// Batch persist with single-row fallback and requeue
// ----------------------------------------------------------------

func (w *GradingWorker) flushSafe(ctx context.Context, batch []*gradingResult) {
	if len(batch) == 0 {
		return
	}

	graded, malformed := w.toGraded(batch)
	for _, res := range malformed {
		w.log.Error().Str("session_id", res.SessionID).Msg("Unparseable session id, dropping result")
	}
	if len(graded) == 0 {
		return
	}

	if err := w.sessions.SetGradedBatch(ctx, graded); err != nil {
		w.log.Warn().Err(err).Msg("bulk grade update failed, using fallback")

		for _, g := range graded {
			if err := w.sessions.SetGraded(ctx, g); err != nil {
				w.log.Error().Err(err).Str("session_id", g.SessionID.String()).Msg("persist failed, requeueing")
				raw, _ := json.Marshal(gradingResult{
					SessionID:    g.SessionID.String(),
					OverallScore: g.OverallScore,
					SkillScores:  g.SkillScores,
				})
				w.rdb.RPush(ctx, config.WorkerKey.GradingResultsQueue, raw)
			}
		}
		return
	}

	w.log.Info().Int("count", len(graded)).Msg("Grading results persisted")
}

func (w *GradingWorker) toGraded(batch []*gradingResult) ([]*repository.GradedSession, []*gradingResult) {
	graded := make([]*repository.GradedSession, 0, len(batch))
	var malformed []*gradingResult

	for _, res := range batch {
		id, err := uuid.Parse(res.SessionID)
		if err != nil {
			malformed = append(malformed, res)
			continue
		}
		skillScores := res.SkillScores
		if skillScores == nil {
			skillScores = map[model.Skill]float64{}
		}
		graded = append(graded, &repository.GradedSession{
			SessionID:    id,
			OverallScore: res.OverallScore,
			SkillScores:  skillScores,
		})
	}

	return graded, malformed
}
