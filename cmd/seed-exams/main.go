package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/luyenthi/vstep-backend/internal/config"
	"github.com/luyenthi/vstep-backend/internal/database"
	"github.com/luyenthi/vstep-backend/internal/logger"
	"github.com/luyenthi/vstep-backend/internal/model"
	"github.com/luyenthi/vstep-backend/internal/repository"
)

// Seeds a minimal published catalog: two full-test exams per skill at every
// level, enough for random assembly to have a real choice to make.
func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx := context.Background()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	examRepo := repository.NewExamRepository(pool)

	durations := map[model.Skill]int{
		model.SkillReading:   60,
		model.SkillListening: 47,
		model.SkillWriting:   60,
		model.SkillSpeaking:  12,
	}

	total := 0
	for _, level := range []model.ExamLevel{model.LevelB1, model.LevelB2, model.LevelC1} {
		for _, skill := range model.AllSkills {
			for variant := 1; variant <= 2; variant++ {
				exam := &model.Exam{
					Title:           fmt.Sprintf("VSTEP %s %s Full Test %d", level, skill, variant),
					Skill:           skill,
					Level:           level,
					Type:            model.ExamTypeFullTest,
					DurationMinutes: durations[skill],
				}

				if err := examRepo.Create(ctx, exam, seedSections(skill)); err != nil {
					log.Fatal().Err(err).
						Str("title", exam.Title).
						Msg("Failed to seed exam")
				}
				if err := examRepo.SetPublic(ctx, exam.ID, true); err != nil {
					log.Fatal().Err(err).
						Str("title", exam.Title).
						Msg("Failed to publish seeded exam")
				}
				total++
			}
		}
	}

	log.Info().Int("exams", total).Msg("Catalog seeded")
}

func seedSections(skill model.Skill) []model.CreateExamSection {
	switch skill {
	case model.SkillReading:
		return []model.CreateExamSection{{
			Title:        "Part 1",
			Instructions: "Read the passage and choose the best answer for each question.",
			OrderNum:     1,
			Passages: []model.CreateExamPassage{{
				Title:    "Urban Green Spaces",
				Content:  "City parks have long served as more than decoration. Researchers tracking air quality across forty metropolitan areas found that districts bordering large parks recorded measurably lower particulate levels than comparable districts without them.",
				OrderNum: 1,
				Questions: []model.CreateExamQuestion{
					{
						Number:        1,
						Type:          string(model.QuestionTypeMultipleChoice),
						Text:          "According to the passage, districts near large parks had",
						Options:       mustOptions("lower particulate levels", "more decoration", "fewer researchers", "higher air pressure"),
						CorrectAnswer: "A",
						OrderNum:      1,
					},
					{
						Number:        2,
						Type:          string(model.QuestionTypeMultipleChoice),
						Text:          "The study covered how many metropolitan areas?",
						Options:       mustOptions("fourteen", "forty", "four", "four hundred"),
						CorrectAnswer: "B",
						OrderNum:      2,
					},
				},
			}},
		}}
	case model.SkillListening:
		return []model.CreateExamSection{{
			Title:        "Part 1",
			Instructions: "Listen to the recording and answer the questions.",
			OrderNum:     1,
			Passages: []model.CreateExamPassage{{
				Title:    "Campus Announcement",
				AudioURL: "https://cdn.example.com/audio/campus-announcement.mp3",
				OrderNum: 1,
				Questions: []model.CreateExamQuestion{{
					Number:        1,
					Type:          string(model.QuestionTypeMultipleChoice),
					Text:          "What is the announcement mainly about?",
					Options:       mustOptions("a schedule change", "a new building", "a sports event", "a library fine"),
					CorrectAnswer: "A",
					OrderNum:      1,
				}},
			}},
		}}
	case model.SkillWriting:
		return []model.CreateExamSection{{
			Title:        "Task 1",
			Instructions: "Write at least 120 words.",
			OrderNum:     1,
			Passages: []model.CreateExamPassage{{
				OrderNum: 1,
				Questions: []model.CreateExamQuestion{{
					Number:   1,
					Type:     string(model.QuestionTypeEssay),
					Text:     "You recently attended a workshop organized by your company. Write an email to a colleague describing what you learned and recommending whether they should attend the next one.",
					OrderNum: 1,
				}},
			}},
		}}
	default: // speaking
		return []model.CreateExamSection{{
			Title:        "Part 1: Social Interaction",
			Instructions: "Speak for 3 minutes on the given topics.",
			OrderNum:     1,
			Passages: []model.CreateExamPassage{{
				OrderNum: 1,
				Questions: []model.CreateExamQuestion{{
					Number:   1,
					Type:     string(model.QuestionTypeSpeakingPrompt),
					Text:     "Describe a place in your hometown that you would recommend to a visitor, and explain why.",
					OrderNum: 1,
				}},
			}},
		}}
	}
}

func mustOptions(opts ...string) json.RawMessage {
	raw, err := json.Marshal(opts)
	if err != nil {
		panic(err)
	}
	return raw
}
