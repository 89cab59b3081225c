package handler

import (
	"context"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/studyplan-backend/internal/model"
	"github.com/stemsi/studyplan-backend/internal/response"
	"github.com/stemsi/studyplan-backend/internal/service"
	"github.com/stemsi/studyplan-backend/internal/validator"
)

// SessionService is the participant-facing part of service.ExamSessionService.
type SessionService interface {
	Join(ctx context.Context, examID uuid.UUID, in service.JoinInput) (*service.JoinSession, error)
	Submit(ctx context.Context, examID uuid.UUID, in service.SubmitInput) (*service.SubmitOutcome, error)
	Check(ctx context.Context, in model.CheckExamRequest) (*service.CheckedExam, error)
	ViewResult(ctx context.Context, q url.Values) (*service.ResultView, error)
}

// ParticipantHandler serves the unauthenticated exam endpoints.
type ParticipantHandler struct {
	sessions SessionService
	log      zerolog.Logger
}

// NewParticipantHandler creates a new ParticipantHandler.
func NewParticipantHandler(sessions SessionService, log zerolog.Logger) *ParticipantHandler {
	return &ParticipantHandler{
		sessions: sessions,
		log:      log.With().Str("component", "participant_handler").Logger(),
	}
}

// examIDParam parses :exam_id, writing the error response when it is malformed.
func examIDParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return uuid.Nil, false
	}
	return id, true
}

// Join godoc
// POST /api/v1/exams/:exam_id/join
// Validates the participant and returns the questions without the answer key.
func (h *ParticipantHandler) Join(c *gin.Context) {
	examID, ok := examIDParam(c)
	if !ok {
		return
	}

	var req model.JoinExamRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	session, err := h.sessions.Join(c.Request.Context(), examID, service.JoinInput{
		ParticipantID:    req.ParticipantID,
		ParticipantEmail: req.ParticipantEmail,
		SubjectCode:      req.SubjectCode,
	})
	if err != nil {
		response.Error(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, session)
}

// Submit godoc
// POST /api/v1/exams/:exam_id/submit
// Grades and stores the answer sheet. The score is not returned.
func (h *ParticipantHandler) Submit(c *gin.Context) {
	examID, ok := examIDParam(c)
	if !ok {
		return
	}

	var req model.SubmitExamRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	out, err := h.sessions.Submit(c.Request.Context(), examID, service.SubmitInput{
		ParticipantID:    req.ParticipantID,
		ParticipantEmail: req.ParticipantEmail,
		StartedAt:        req.StartedAt,
		Answers:          req.Answers,
	})
	if err != nil {
		response.Error(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, out)
}

// Check godoc
// GET|POST /api/v1/exams/check
// Confirms pre-join credentials, from the query string or a JSON body.
func (h *ParticipantHandler) Check(c *gin.Context) {
	var req model.CheckExamRequest
	if fields := validator.BindQueryOrBody(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	exam, err := h.sessions.Check(c.Request.Context(), req)
	if err != nil {
		response.Error(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"exam": exam})
}

// ViewResult godoc
// GET /api/v1/results/view
// Verifies a signed result link and returns the graded attempt.
func (h *ParticipantHandler) ViewResult(c *gin.Context) {
	view, err := h.sessions.ViewResult(c.Request.Context(), c.Request.URL.Query())
	if err != nil {
		response.ViewFail(c, h.log, err)
		return
	}

	response.ViewOK(c, view.Exam, view.Result)
}
