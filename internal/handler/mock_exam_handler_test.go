package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/luyenthi/vstep-backend/internal/config"
	"github.com/luyenthi/vstep-backend/internal/middleware"
	"github.com/luyenthi/vstep-backend/internal/model"
	"github.com/luyenthi/vstep-backend/internal/response"
	"github.com/luyenthi/vstep-backend/internal/service"
	"github.com/luyenthi/vstep-backend/internal/validator"
)

// Lean fakes: just enough store behavior for one in_progress session.

type stubCatalog struct{ ids map[uuid.UUID]bool }

func (s *stubCatalog) ListEligibleIDs(context.Context, model.Skill, model.ExamLevel) ([]uuid.UUID, error) {
	return nil, nil
}

func (s *stubCatalog) GetSummary(context.Context, uuid.UUID) (*model.ExamSummary, error) {
	return nil, pgx.ErrNoRows
}

func (s *stubCatalog) CountExisting(_ context.Context, ids []uuid.UUID) (int, error) {
	n := 0
	for _, id := range ids {
		if s.ids[id] {
			n++
		}
	}
	return n, nil
}

type stubStore struct {
	session *model.MockExamSession
}

func (s *stubStore) match(id uuid.UUID, userID int) bool {
	return s.session != nil && s.session.ID == id && s.session.UserID == userID
}

func (s *stubStore) Create(_ context.Context, m *model.MockExamSession, totalMinutes int) error {
	m.ID = uuid.New()
	m.CurrentSkill = model.SkillReading
	m.Status = model.SessionStatusInProgress
	m.StartedAt = time.Now()
	m.ExpiresAt = m.StartedAt.Add(time.Duration(totalMinutes) * time.Minute)
	m.Answers = map[model.Skill]json.RawMessage{}
	s.session = m
	return nil
}

func (s *stubStore) GetByIDAndUser(_ context.Context, id uuid.UUID, userID int) (*model.MockExamSession, error) {
	if !s.match(id, userID) {
		return nil, pgx.ErrNoRows
	}
	return s.session, nil
}

func (s *stubStore) SaveSkillAnswers(_ context.Context, id uuid.UUID, userID int, skill model.Skill, payload json.RawMessage) (time.Time, error) {
	if !s.match(id, userID) || s.session.Status != model.SessionStatusInProgress {
		return time.Time{}, pgx.ErrNoRows
	}
	s.session.Answers[skill] = payload
	return time.Now(), nil
}

func (s *stubStore) UpdateCurrentSkill(_ context.Context, id uuid.UUID, userID int, skill model.Skill) error {
	if !s.match(id, userID) || s.session.Status != model.SessionStatusInProgress {
		return pgx.ErrNoRows
	}
	s.session.CurrentSkill = skill
	return nil
}

func (s *stubStore) Submit(_ context.Context, id uuid.UUID, userID int, answers map[model.Skill]json.RawMessage, timeSpent int) (time.Time, map[model.Skill]uuid.UUID, error) {
	if !s.match(id, userID) {
		return time.Time{}, nil, pgx.ErrNoRows
	}
	now := time.Now()
	s.session.Status = model.SessionStatusSubmitted
	s.session.Answers = answers
	s.session.SubmittedAt = &now
	s.session.TimeSpent = &timeSpent
	return now, s.session.ExamRefs, nil
}

func (s *stubStore) ListByUser(context.Context, int, int, int) ([]model.MockExamSession, error) {
	return nil, nil
}

type stubContent struct{}

func (stubContent) GetContent(_ context.Context, id uuid.UUID) (*model.ExamContent, error) {
	return &model.ExamContent{ID: id}, nil
}

const testUserID = 7

// newTestRouter mounts the handler behind a middleware that injects claims,
// standing in for the JWT layer.
func newTestRouter(t *testing.T) (*gin.Engine, *stubStore, *stubCatalog) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	validator.Setup()

	catalog := &stubCatalog{ids: map[uuid.UUID]bool{}}
	store := &stubStore{}
	svc := service.NewMockExamService(catalog, store, stubContent{}, nil,
		&config.Config{DefaultLevel: "B2"}, zerolog.Nop())
	h := NewMockExamHandler(svc)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.ContextKeyClaims, &service.Claims{UserID: testUserID, Role: model.RoleStudent})
	})
	r.POST("/mock-exams", h.Start)
	r.GET("/mock-exams/:id", h.GetDetail)
	r.PUT("/mock-exams/:id/save", h.SaveProgress)
	r.PUT("/mock-exams/:id/skill", h.UpdateCurrentSkill)
	r.POST("/mock-exams/:id/submit", h.Submit)
	r.GET("/mock-exams/:id/result", h.GetResult)

	return r, store, catalog
}

func doRequest(t *testing.T, r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Buffer
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewBuffer(raw)
	} else {
		reader = bytes.NewBuffer(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func errCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body response.Response
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Error == nil {
		t.Fatalf("expected error body, got %s", w.Body.String())
	}
	return string(body.Error.Code)
}

func startTestSession(t *testing.T, store *stubStore, catalog *stubCatalog) uuid.UUID {
	t.Helper()
	refs := map[model.Skill]uuid.UUID{}
	for _, skill := range model.AllSkills {
		id := uuid.New()
		refs[skill] = id
		catalog.ids[id] = true
	}
	session := &model.MockExamSession{UserID: testUserID, ExamRefs: refs}
	if err := store.Create(context.Background(), session, model.TotalExamMinutes); err != nil {
		t.Fatalf("create session: %v", err)
	}
	return session.ID
}

func TestStartRejectsMissingFields(t *testing.T) {
	r, _, _ := newTestRouter(t)

	w := doRequest(t, r, http.MethodPost, "/mock-exams", map[string]string{
		"reading_exam_id": uuid.New().String(),
	})

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
	if code := errCode(t, w); code != "VALIDATION_ERROR" {
		t.Errorf("expected VALIDATION_ERROR, got %s", code)
	}
}

func TestStartUnknownRefsIs400(t *testing.T) {
	r, _, _ := newTestRouter(t)

	w := doRequest(t, r, http.MethodPost, "/mock-exams", map[string]string{
		"reading_exam_id":   uuid.New().String(),
		"listening_exam_id": uuid.New().String(),
		"writing_exam_id":   uuid.New().String(),
		"speaking_exam_id":  uuid.New().String(),
	})

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
	if code := errCode(t, w); code != "EXAM_SET_INCOMPLETE" {
		t.Errorf("expected EXAM_SET_INCOMPLETE, got %s", code)
	}
}

func TestGetDetailMalformedIDIs400(t *testing.T) {
	r, _, _ := newTestRouter(t)

	w := doRequest(t, r, http.MethodGet, "/mock-exams/not-a-uuid", nil)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if code := errCode(t, w); code != "INVALID_ID" {
		t.Errorf("expected INVALID_ID, got %s", code)
	}
}

func TestGetDetailUnknownSessionIs404(t *testing.T) {
	r, _, _ := newTestRouter(t)

	w := doRequest(t, r, http.MethodGet, "/mock-exams/"+uuid.NewString(), nil)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", w.Code, w.Body.String())
	}
	if code := errCode(t, w); code != "NOT_FOUND" {
		t.Errorf("expected NOT_FOUND, got %s", code)
	}
}

func TestSaveProgressAndDetailRoundTrip(t *testing.T) {
	r, store, catalog := newTestRouter(t)
	id := startTestSession(t, store, catalog)

	w := doRequest(t, r, http.MethodPut, "/mock-exams/"+id.String()+"/save", model.SaveProgressRequest{
		Skill:   "reading",
		Answers: json.RawMessage(`{"1":"A"}`),
	})
	if w.Code != http.StatusOK {
		t.Fatalf("save: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w = doRequest(t, r, http.MethodGet, "/mock-exams/"+id.String(), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("detail: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var body struct {
		Data struct {
			SavedAnswers map[string]json.RawMessage `json:"saved_answers"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if string(body.Data.SavedAnswers["reading"]) != `{"1":"A"}` {
		t.Errorf("saved answers not returned: %s", w.Body.String())
	}
}

func TestSaveProgressRejectsUnknownSkill(t *testing.T) {
	r, store, catalog := newTestRouter(t)
	id := startTestSession(t, store, catalog)

	w := doRequest(t, r, http.MethodPut, "/mock-exams/"+id.String()+"/save", map[string]interface{}{
		"skill":   "grammar",
		"answers": map[string]string{"1": "A"},
	})

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
	if code := errCode(t, w); code != "VALIDATION_ERROR" {
		t.Errorf("expected VALIDATION_ERROR, got %s", code)
	}
}

func TestSaveAfterSubmitIs400(t *testing.T) {
	r, store, catalog := newTestRouter(t)
	id := startTestSession(t, store, catalog)

	w := doRequest(t, r, http.MethodPost, "/mock-exams/"+id.String()+"/submit", model.SubmitMockExamRequest{
		Answers: map[model.Skill]json.RawMessage{model.SkillReading: json.RawMessage(`{}`)},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("submit: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w = doRequest(t, r, http.MethodPut, "/mock-exams/"+id.String()+"/save", model.SaveProgressRequest{
		Skill:   "reading",
		Answers: json.RawMessage(`{"1":"A"}`),
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
	if code := errCode(t, w); code != "EXAM_NOT_IN_PROGRESS" {
		t.Errorf("expected EXAM_NOT_IN_PROGRESS, got %s", code)
	}
}

func TestResultLifecycleCodes(t *testing.T) {
	r, store, catalog := newTestRouter(t)
	id := startTestSession(t, store, catalog)

	w := doRequest(t, r, http.MethodGet, "/mock-exams/"+id.String()+"/result", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 before submit, got %d: %s", w.Code, w.Body.String())
	}
	if code := errCode(t, w); code != "RESULT_NOT_AVAILABLE" {
		t.Errorf("expected RESULT_NOT_AVAILABLE, got %s", code)
	}

	w = doRequest(t, r, http.MethodPost, "/mock-exams/"+id.String()+"/submit", model.SubmitMockExamRequest{
		Answers: map[model.Skill]json.RawMessage{model.SkillReading: json.RawMessage(`{}`)},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("submit: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w = doRequest(t, r, http.MethodGet, "/mock-exams/"+id.String()+"/result", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 after submit, got %d: %s", w.Code, w.Body.String())
	}

	var body struct {
		Data struct {
			Status       string  `json:"status"`
			OverallScore float64 `json:"overall_score"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Data.Status != "submitted" {
		t.Errorf("expected status submitted, got %s", body.Data.Status)
	}
	if body.Data.OverallScore != 0 {
		t.Errorf("expected zero score before grading, got %f", body.Data.OverallScore)
	}
}
