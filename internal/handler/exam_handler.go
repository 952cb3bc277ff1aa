package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/luyenthi/vstep-backend/internal/middleware"
	"github.com/luyenthi/vstep-backend/internal/model"
	"github.com/luyenthi/vstep-backend/internal/response"
	"github.com/luyenthi/vstep-backend/internal/service"
	"github.com/luyenthi/vstep-backend/internal/validator"
)

// ExamHandler handles exam catalog endpoints, both the authenticated
// browse surface and the admin CRUD surface.
type ExamHandler struct {
	examService *service.ExamService
}

// NewExamHandler creates a new ExamHandler.
func NewExamHandler(examService *service.ExamService) *ExamHandler {
	return &ExamHandler{examService: examService}
}

// List godoc
// GET /api/v1/exams?skill=&level=&page=&per_page=
func (h *ExamHandler) List(c *gin.Context) {
	var skill *model.Skill
	if raw := c.Query("skill"); raw != "" {
		parsed, err := model.ParseSkill(raw)
		if err != nil {
			response.Fail(c, http.StatusBadRequest, response.ErrInvalidSkill)
			return
		}
		skill = &parsed
	}

	var level *model.ExamLevel
	if raw := c.Query("level"); raw != "" {
		lvl := model.ExamLevel(raw)
		if !lvl.Valid() {
			response.Fail(c, http.StatusBadRequest, response.ErrInvalidLevel)
			return
		}
		level = &lvl
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "10"))

	exams, pagination, err := h.examService.List(c.Request.Context(), skill, level, page, perPage)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"exams": exams}, pagination)
}

// Create godoc
// POST /api/v1/admin/exams
// Creates a catalog entry with nested sections/passages/questions.
func (h *ExamHandler) Create(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.CreateExamRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	exam, err := h.examService.Create(c.Request.Context(), claims.UserID, &req)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"exam": exam})
}

// Get godoc
// GET /api/v1/exams/:id
// Returns the catalog entry with its full nested content.
func (h *ExamHandler) Get(c *gin.Context) {
	id, ok := h.examID(c)
	if !ok {
		return
	}

	exam, err := h.examService.GetByID(c.Request.Context(), id)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}

	content, err := h.examService.GetContent(c.Request.Context(), id)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"exam": exam, "content": content})
}

// Update godoc
// PUT /api/v1/admin/exams/:id
func (h *ExamHandler) Update(c *gin.Context) {
	id, ok := h.examID(c)
	if !ok {
		return
	}

	var req model.UpdateExamRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.examService.Update(c.Request.Context(), id, &req); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}

// Publish godoc
// POST /api/v1/admin/exams/:id/publish
// Makes the exam public and eligible for random assembly.
func (h *ExamHandler) Publish(c *gin.Context) {
	id, ok := h.examID(c)
	if !ok {
		return
	}

	if err := h.examService.Publish(c.Request.Context(), id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}

// Delete godoc
// DELETE /api/v1/admin/exams/:id
// Soft delete; running sessions keep their reference.
func (h *ExamHandler) Delete(c *gin.Context) {
	id, ok := h.examID(c)
	if !ok {
		return
	}

	if err := h.examService.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}

func (h *ExamHandler) examID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return uuid.Nil, false
	}
	return id, true
}
