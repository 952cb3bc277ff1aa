package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/luyenthi/vstep-backend/internal/middleware"
	"github.com/luyenthi/vstep-backend/internal/model"
	"github.com/luyenthi/vstep-backend/internal/response"
	"github.com/luyenthi/vstep-backend/internal/service"
	"github.com/luyenthi/vstep-backend/internal/validator"
)

// MockExamHandler handles the mock-exam session lifecycle endpoints.
type MockExamHandler struct {
	mockService *service.MockExamService
}

// NewMockExamHandler creates a new MockExamHandler.
func NewMockExamHandler(mockService *service.MockExamService) *MockExamHandler {
	return &MockExamHandler{mockService: mockService}
}

// AssembleRandom godoc
// POST /api/v1/exams/mock-exams/random?level=
// Draws one eligible full-test exam per skill. Read-only; two calls may
// return different sets.
func (h *MockExamHandler) AssembleRandom(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	set, err := h.mockService.AssembleRandom(c.Request.Context(), c.Query("level"))
	if err != nil {
		var skillErr *service.SkillUnavailableError
		switch {
		case errors.As(err, &skillErr):
			response.Fail(c, http.StatusNotFound, response.ErrSkillNoExams)
		case errors.Is(err, service.ErrInvalidLevel):
			response.Fail(c, http.StatusBadRequest, response.ErrInvalidLevel)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	response.Success(c, http.StatusOK, set)
}

// Start godoc
// POST /api/v1/exams/mock-exams
// Creates one session from four exam references.
func (h *MockExamHandler) Start(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.StartMockExamRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	result, err := h.mockService.Start(c.Request.Context(), claims.UserID, &req)
	if err != nil {
		if errors.Is(err, service.ErrIncompleteExamSet) {
			response.Fail(c, http.StatusBadRequest, response.ErrExamSetIncomplete)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusCreated, result)
}

// ListMine godoc
// GET /api/v1/exams/mock-exams
// Returns the caller's sessions, newest first.
func (h *MockExamHandler) ListMine(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "10"))

	sessions, err := h.mockService.ListMine(c.Request.Context(), claims.UserID, page, perPage)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"sessions": sessions})
}

// GetDetail godoc
// GET /api/v1/exams/mock-exams/:id
// Returns the current skill's paper plus saved answers so a client can
// resume. Non-owners get 404, indistinguishable from a missing session.
func (h *MockExamHandler) GetDetail(c *gin.Context) {
	claims, sessionID, ok := h.sessionParams(c)
	if !ok {
		return
	}

	detail, err := h.mockService.GetDetail(c.Request.Context(), sessionID, claims.UserID)
	if err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, detail)
}

// SaveProgress godoc
// PUT /api/v1/exams/mock-exams/:id/save
// Merges one skill's answers into the session.
func (h *MockExamHandler) SaveProgress(c *gin.Context) {
	claims, sessionID, ok := h.sessionParams(c)
	if !ok {
		return
	}

	var req model.SaveProgressRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	result, err := h.mockService.SaveProgress(c.Request.Context(), sessionID, claims.UserID, model.Skill(req.Skill), req.Answers)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSessionNotFound):
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		case errors.Is(err, service.ErrExamNotInProgress):
			response.Fail(c, http.StatusBadRequest, response.ErrExamNotInProgress)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	response.Success(c, http.StatusOK, result)
}

// UpdateCurrentSkill godoc
// PUT /api/v1/exams/mock-exams/:id/skill
// Records which skill the client is currently showing.
func (h *MockExamHandler) UpdateCurrentSkill(c *gin.Context) {
	claims, sessionID, ok := h.sessionParams(c)
	if !ok {
		return
	}

	var req model.UpdateCurrentSkillRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	err := h.mockService.UpdateCurrentSkill(c.Request.Context(), sessionID, claims.UserID, model.Skill(req.Skill))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSessionNotFound):
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		case errors.Is(err, service.ErrExamNotInProgress):
			response.Fail(c, http.StatusBadRequest, response.ErrExamNotInProgress)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	response.Success(c, http.StatusOK, gin.H{"current_skill": req.Skill})
}

// Submit godoc
// POST /api/v1/exams/mock-exams/:id/submit
// Replaces the answers wholesale and marks the session submitted. Grading is
// asynchronous; the response only acknowledges the submission.
func (h *MockExamHandler) Submit(c *gin.Context) {
	claims, sessionID, ok := h.sessionParams(c)
	if !ok {
		return
	}

	var req model.SubmitMockExamRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	result, err := h.mockService.Submit(c.Request.Context(), sessionID, claims.UserID, &req)
	if err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, result)
}

// GetResult godoc
// GET /api/v1/exams/mock-exams/:id/result
// Returns scores once the session is submitted or graded. Scores default to
// zero until the grading process has run.
func (h *MockExamHandler) GetResult(c *gin.Context) {
	claims, sessionID, ok := h.sessionParams(c)
	if !ok {
		return
	}

	result, err := h.mockService.GetResult(c.Request.Context(), sessionID, claims.UserID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSessionNotFound):
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		case errors.Is(err, service.ErrResultNotAvailable):
			response.Fail(c, http.StatusBadRequest, response.ErrResultNotAvailable)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	response.Success(c, http.StatusOK, result)
}

// sessionParams extracts the caller's claims and the session id path param,
// writing the error response itself when either is missing.
func (h *MockExamHandler) sessionParams(c *gin.Context) (*service.Claims, uuid.UUID, bool) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return nil, uuid.Nil, false
	}

	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return nil, uuid.Nil, false
	}

	return claims, sessionID, true
}
