package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/studyplan-backend/internal/middleware"
	"github.com/stemsi/studyplan-backend/internal/model"
	"github.com/stemsi/studyplan-backend/internal/response"
	"github.com/stemsi/studyplan-backend/internal/service"
	"github.com/stemsi/studyplan-backend/internal/validator"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ExamManager is the owner-facing exam service.
type ExamManager interface {
	Create(ctx context.Context, ownerID uuid.UUID, req model.CreateExamRequest) (*model.Exam, error)
	Get(ctx context.Context, ownerID, examID uuid.UUID) (*model.Exam, error)
	Update(ctx context.Context, ownerID, examID uuid.UUID, req model.UpdateExamRequest) (*model.Exam, error)
	List(ctx context.Context, ownerID uuid.UUID, page, perPage int) ([]model.ExamSummary, *response.Pagination, error)
	ListResults(ctx context.Context, ownerID, examID uuid.UUID, f model.ResultListFilter) ([]model.ExamResult, *response.Pagination, error)
	ExportResults(ctx context.Context, ownerID, examID uuid.UUID) (*service.ResultExport, error)
}

// ResultSender dispatches result emails.
type ResultSender interface {
	SendResults(ctx context.Context, examID uuid.UUID, participantIDs []string, requesterID uuid.UUID) (*service.SendResultsOutcome, error)
}

// OwnerExamHandler handles exam management for authenticated owners.
type OwnerExamHandler struct {
	exams  ExamManager
	sender ResultSender
	log    zerolog.Logger
}

// NewOwnerExamHandler creates a new OwnerExamHandler.
func NewOwnerExamHandler(exams ExamManager, sender ResultSender, log zerolog.Logger) *OwnerExamHandler {
	return &OwnerExamHandler{
		exams:  exams,
		sender: sender,
		log:    log.With().Str("component", "owner_exam_handler").Logger(),
	}
}

// ownerAndExam reads the caller's claims and the :id param.
func ownerAndExam(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return uuid.Nil, uuid.Nil, false
	}
	examID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return uuid.Nil, uuid.Nil, false
	}
	return claims.UserID, examID, true
}

// CreateExam godoc
// POST /api/v1/owner/exams
func (h *OwnerExamHandler) CreateExam(c *gin.Context) {
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

	exam, err := h.exams.Create(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, h.log, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"exam": exam})
}

// ListExams godoc
// GET /api/v1/owner/exams
func (h *OwnerExamHandler) ListExams(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "20"))

	exams, pagination, err := h.exams.List(c.Request.Context(), claims.UserID, page, perPage)
	if err != nil {
		response.Error(c, h.log, err)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"exams": exams}, pagination)
}

// GetExam godoc
// GET /api/v1/owner/exams/:id
// Returns the full exam, answer key included.
func (h *OwnerExamHandler) GetExam(c *gin.Context) {
	ownerID, examID, ok := ownerAndExam(c)
	if !ok {
		return
	}

	exam, err := h.exams.Get(c.Request.Context(), ownerID, examID)
	if err != nil {
		response.Error(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"exam": exam})
}

// UpdateExam godoc
// PUT /api/v1/owner/exams/:id
func (h *OwnerExamHandler) UpdateExam(c *gin.Context) {
	ownerID, examID, ok := ownerAndExam(c)
	if !ok {
		return
	}

	var req model.UpdateExamRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	exam, err := h.exams.Update(c.Request.Context(), ownerID, examID, req)
	if err != nil {
		response.Error(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"exam": exam})
}

// ListResults godoc
// GET /api/v1/owner/exams/:id/results?status=&page=&per_page=
func (h *OwnerExamHandler) ListResults(c *gin.Context) {
	ownerID, examID, ok := ownerAndExam(c)
	if !ok {
		return
	}

	var filter model.ResultListFilter
	if fields := validator.BindQuery(c, &filter); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	results, pagination, err := h.exams.ListResults(c.Request.Context(), ownerID, examID, filter)
	if err != nil {
		response.Error(c, h.log, err)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"results": results}, pagination)
}

// ExportResults godoc
// GET /api/v1/owner/exams/:id/results/export
// Streams the results as an XLSX attachment.
func (h *OwnerExamHandler) ExportResults(c *gin.Context) {
	ownerID, examID, ok := ownerAndExam(c)
	if !ok {
		return
	}

	export, err := h.exams.ExportResults(c.Request.Context(), ownerID, examID)
	if err != nil {
		response.Error(c, h.log, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename))
	c.Data(http.StatusOK, xlsxContentType, export.Data)
}

// SendResults godoc
// POST /api/v1/owner/exams/:id/send-results
// Queues result emails. Per-participant failures are reported in the body
// with a 200; only whole-request failures change the status.
func (h *OwnerExamHandler) SendResults(c *gin.Context) {
	ownerID, examID, ok := ownerAndExam(c)
	if !ok {
		return
	}

	var req model.SendResultsRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	out, err := h.sender.SendResults(c.Request.Context(), examID, req.Participants, ownerID)
	if err != nil {
		response.Error(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, out)
}
