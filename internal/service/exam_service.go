package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stemsi/studyplan-backend/internal/apperr"
	"github.com/stemsi/studyplan-backend/internal/database"
	"github.com/stemsi/studyplan-backend/internal/model"
	"github.com/stemsi/studyplan-backend/internal/repository"
	"github.com/stemsi/studyplan-backend/internal/response"
	"github.com/stemsi/studyplan-backend/internal/timing"
)

// ExamService handles owner-side exam management.
type ExamService struct {
	exams   ExamWriter
	cache   ExamInvalidator
	results ResultLister
	log     zerolog.Logger
}

// NewExamService creates a new ExamService. cache may be nil.
func NewExamService(exams ExamWriter, cache ExamInvalidator, results ResultLister, log zerolog.Logger) *ExamService {
	return &ExamService{
		exams:   exams,
		cache:   cache,
		results: results,
		log:     log.With().Str("component", "exam_service").Logger(),
	}
}

func clampPage(page, perPage int) (int, int) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}
	if perPage > 100 {
		perPage = 100
	}
	return page, perPage
}

func applyTiming(e *model.Exam, t model.ExamTiming) error {
	sched := timing.Schedule{
		IsTimed:              t.IsTimed,
		Start:                t.ScheduledStartAt,
		End:                  t.ScheduledEndAt,
		DurationMinutes:      t.DurationMinutes,
		AllowLateSubmissions: t.AllowLateSubmissions,
		LateWindowMinutes:    t.LateWindowMinutes,
	}
	if err := timing.Normalize(&sched); err != nil {
		return apperr.Wrap(err, apperr.KindInput, string(response.ErrInvalidTiming), err.Error())
	}
	e.IsTimed = sched.IsTimed
	e.ScheduledStartAt = sched.Start
	e.ScheduledEndAt = sched.End
	e.DurationMinutes = sched.DurationMinutes
	e.AllowLateSubmissions = sched.AllowLateSubmissions
	e.LateWindowMinutes = sched.LateWindowMinutes
	return nil
}

func checkRule(r *model.ParticipantRule) error {
	if r != nil && r.MinLength != nil && r.MaxLength != nil && *r.MinLength > *r.MaxLength {
		return apperr.New(apperr.KindInput, string(response.ErrValidation),
			"participant_rule.min_length cannot exceed max_length")
	}
	return nil
}

// ownedExam loads an exam and checks that ownerID created it.
func (s *ExamService) ownedExam(ctx context.Context, ownerID, examID uuid.UUID) (*model.Exam, error) {
	exam, err := s.exams.GetByID(ctx, examID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fail(apperr.KindNotFound, response.ErrExamNotFound)
		}
		return nil, apperr.Internal(err, "load exam")
	}
	if exam.OwnerID != ownerID {
		return nil, fail(apperr.KindForbidden, response.ErrNotExamOwner)
	}
	return exam, nil
}

// Create stores a new exam owned by ownerID.
func (s *ExamService) Create(ctx context.Context, ownerID uuid.UUID, req model.CreateExamRequest) (*model.Exam, error) {
	if err := checkRule(req.ParticipantRule); err != nil {
		return nil, err
	}

	exam := &model.Exam{
		OwnerID:         ownerID,
		Title:           strings.TrimSpace(req.Title),
		Description:     req.Description,
		SubjectCode:     req.SubjectCode,
		ExamCode:        req.ExamCode,
		Questions:       req.Questions,
		ParticipantRule: req.ParticipantRule,
	}
	if err := applyTiming(exam, req.ExamTiming); err != nil {
		return nil, err
	}

	if err := s.exams.Create(ctx, exam); err != nil {
		if database.IsUniqueViolation(err, repository.ExamConstraintCode) {
			return nil, fail(apperr.KindConflict, response.ErrExamCodeTaken)
		}
		return nil, apperr.Internal(err, "create exam")
	}

	s.log.Info().
		Str("exam_id", exam.ID.String()).
		Str("owner_id", ownerID.String()).
		Int("questions", exam.QuestionCount()).
		Msg("Exam created")
	return exam, nil
}

// Get returns an owner's exam including the answer key.
func (s *ExamService) Get(ctx context.Context, ownerID, examID uuid.UUID) (*model.Exam, error) {
	return s.ownedExam(ctx, ownerID, examID)
}

// Update applies req to an owner's exam and drops cached copies.
func (s *ExamService) Update(ctx context.Context, ownerID, examID uuid.UUID, req model.UpdateExamRequest) (*model.Exam, error) {
	exam, err := s.ownedExam(ctx, ownerID, examID)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		exam.Title = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		exam.Description = *req.Description
	}
	if req.SubjectCode != nil {
		exam.SubjectCode = *req.SubjectCode
	}
	if req.Questions != nil {
		exam.Questions = req.Questions
	}
	if req.ParticipantRule != nil {
		if err := checkRule(req.ParticipantRule); err != nil {
			return nil, err
		}
		exam.ParticipantRule = req.ParticipantRule
	}
	if req.Timing != nil {
		if err := applyTiming(exam, *req.Timing); err != nil {
			return nil, err
		}
	}

	if err := s.exams.Update(ctx, exam); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fail(apperr.KindNotFound, response.ErrExamNotFound)
		}
		return nil, apperr.Internal(err, "update exam")
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, exam); err != nil {
			s.log.Warn().Err(err).Str("exam_id", exam.ID.String()).Msg("Cache invalidation failed")
		}
	}

	s.log.Info().Str("exam_id", exam.ID.String()).Msg("Exam updated")
	return exam, nil
}

// List returns one page of the owner's exams.
func (s *ExamService) List(ctx context.Context, ownerID uuid.UUID, page, perPage int) ([]model.ExamSummary, *response.Pagination, error) {
	page, perPage = clampPage(page, perPage)

	exams, total, err := s.exams.ListByOwner(ctx, ownerID, perPage, (page-1)*perPage)
	if err != nil {
		return nil, nil, apperr.Internal(err, "list exams")
	}

	out := make([]model.ExamSummary, len(exams))
	for i := range exams {
		out[i] = exams[i].Summary()
	}
	return out, response.NewPagination(page, perPage, total), nil
}

// ListResults returns one page of an owned exam's results.
func (s *ExamService) ListResults(ctx context.Context, ownerID, examID uuid.UUID, f model.ResultListFilter) ([]model.ExamResult, *response.Pagination, error) {
	if _, err := s.ownedExam(ctx, ownerID, examID); err != nil {
		return nil, nil, err
	}
	page, perPage := clampPage(f.Page, f.PerPage)

	results, total, err := s.results.ListByExam(ctx, examID, f.Status, perPage, (page-1)*perPage)
	if err != nil {
		return nil, nil, apperr.Internal(err, "list results")
	}
	if results == nil {
		results = []model.ExamResult{}
	}
	return results, response.NewPagination(page, perPage, total), nil
}
