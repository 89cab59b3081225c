package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/stemsi/studyplan-backend/internal/apperr"
	"github.com/stemsi/studyplan-backend/internal/mailer"
	"github.com/stemsi/studyplan-backend/internal/model"
	"github.com/stemsi/studyplan-backend/internal/participant"
	"github.com/stemsi/studyplan-backend/internal/response"
	"github.com/stemsi/studyplan-backend/internal/scoring"
	"github.com/stemsi/studyplan-backend/internal/signedlink"
	"github.com/stemsi/studyplan-backend/internal/timing"
)

// SessionOptions tunes the participant flows.
type SessionOptions struct {
	// ResultPageURL is the page emailed result links point to.
	ResultPageURL string
	// MinViewWindow keeps results viewable for at least this long after the official end.
	MinViewWindow time.Duration
	// SingleUseLinks rejects a result link whose nonce was already redeemed.
	SingleUseLinks bool
	// ExamCodeHashCost is the bcrypt cost for the exam code hash returned by Check.
	ExamCodeHashCost int
}

// ExamSessionService handles joining, submitting and result delivery.
type ExamSessionService struct {
	exams   ExamStore
	results ResultStore
	nonces  NonceStore
	mail    ResultMailer
	links   *signedlink.Codec
	opts    SessionOptions
	now     func() time.Time
	log     zerolog.Logger
}

// NewExamSessionService creates a new ExamSessionService.
func NewExamSessionService(
	exams ExamStore,
	results ResultStore,
	nonces NonceStore,
	mail ResultMailer,
	links *signedlink.Codec,
	opts SessionOptions,
	log zerolog.Logger,
) *ExamSessionService {
	if opts.ExamCodeHashCost == 0 {
		opts.ExamCodeHashCost = bcrypt.DefaultCost
	}
	return &ExamSessionService{
		exams:   exams,
		results: results,
		nonces:  nonces,
		mail:    mail,
		links:   links,
		opts:    opts,
		now:     time.Now,
		log:     log.With().Str("component", "exam_session_service").Logger(),
	}
}

// WithClock replaces the time source.
func (s *ExamSessionService) WithClock(now func() time.Time) *ExamSessionService {
	s.now = now
	return s
}

func fail(kind apperr.Kind, code response.ErrCode) *apperr.Error {
	return apperr.New(kind, string(code), response.GetMessage(code))
}

// ScheduleOf extracts an exam's timing configuration.
func ScheduleOf(e *model.Exam) timing.Schedule {
	return timing.Schedule{
		IsTimed:              e.IsTimed,
		Start:                e.ScheduledStartAt,
		End:                  e.ScheduledEndAt,
		DurationMinutes:      e.DurationMinutes,
		AllowLateSubmissions: e.AllowLateSubmissions,
		LateWindowMinutes:    e.LateWindowMinutes,
	}
}

func (s *ExamSessionService) policy(e *model.Exam) timing.Policy {
	return timing.PolicyOf(ScheduleOf(e), s.opts.MinViewWindow)
}

func (s *ExamSessionService) loadExam(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	exam, err := s.exams.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fail(apperr.KindNotFound, response.ErrExamNotFound)
		}
		return nil, apperr.Internal(err, "load exam")
	}
	return exam, nil
}

// findResult returns nil without error when the participant has no result yet.
func (s *ExamSessionService) findResult(ctx context.Context, examID uuid.UUID, participantID string) (*model.ExamResult, error) {
	res, err := s.results.GetByExamAndParticipant(ctx, examID, participantID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, apperr.Internal(err, "load exam result")
	}
	return res, nil
}

// createResult inserts an in-progress result, or returns the one a
// concurrent request created first.
func (s *ExamSessionService) createResult(ctx context.Context, exam *model.Exam, participantID, email string, startedAt time.Time) (*model.ExamResult, error) {
	res := &model.ExamResult{
		ExamID:           exam.ID,
		ParticipantID:    participantID,
		ParticipantEmail: email,
		Answers:          []model.Answer{},
		StartedAt:        startedAt,
		TotalQuestions:   exam.QuestionCount(),
		Status:           model.ResultStatusInProgress,
	}
	err := s.results.Create(ctx, res)
	if err == nil {
		return res, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.Internal(err, "create exam result")
	}

	existing, err := s.findResult(ctx, exam.ID, participantID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, apperr.Internal(fmt.Errorf("result for %s vanished after insert conflict", participantID), "create exam result")
	}
	return existing, nil
}

func windowError(w timing.Window) error {
	switch w {
	case timing.NotStarted:
		return fail(apperr.KindForbidden, response.ErrExamNotStarted)
	case timing.Closed:
		return fail(apperr.KindForbidden, response.ErrExamEnded)
	}
	return nil
}

func secretEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// ────────────────────────────────────────────────────────────────────────────
// Join
// ────────────────────────────────────────────────────────────────────────────

// JoinInput identifies a participant entering an exam.
type JoinInput struct {
	ParticipantID    string
	ParticipantEmail string
	SubjectCode      string
}

// JoinSession is what a participant needs to take the exam.
type JoinSession struct {
	ExamID          uuid.UUID              `json:"exam_id"`
	ExamTitle       string                 `json:"exam_title"`
	Questions       []model.PublicQuestion `json:"questions"`
	ExamResultID    uuid.UUID              `json:"exam_result_id"`
	StartedAt       time.Time              `json:"started_at"`
	Status          model.ResultStatus     `json:"status"`
	IsTimed         bool                   `json:"is_timed"`
	DurationMinutes *int                   `json:"duration_minutes,omitempty"`
	EndsAt          *time.Time             `json:"ends_at,omitempty"`
	SubmitDeadline  *time.Time             `json:"submit_deadline,omitempty"`
}

// Join validates the participant and returns their session, creating the
// result record on first entry. Repeated joins return the same record.
func (s *ExamSessionService) Join(ctx context.Context, examID uuid.UUID, in JoinInput) (*JoinSession, error) {
	exam, err := s.loadExam(ctx, examID)
	if err != nil {
		return nil, err
	}

	if !secretEqual(in.SubjectCode, exam.SubjectCode) {
		return nil, fail(apperr.KindUnauthorized, response.ErrSubjectCodeMismatch)
	}
	if v := participant.Explain(in.ParticipantID, exam.ParticipantRule); v != participant.ViolationNone {
		s.log.Info().
			Str("exam_id", exam.ID.String()).
			Str("participant_id", in.ParticipantID).
			Str("violation", string(v)).
			Msg("join rejected by participant rule")
		return nil, fail(apperr.KindUnauthorized, response.ErrParticipantRule)
	}

	now := s.now()
	p := s.policy(exam)
	if err := windowError(p.JoinWindow(now)); err != nil {
		return nil, err
	}

	res, err := s.findResult(ctx, exam.ID, in.ParticipantID)
	if err != nil {
		return nil, err
	}
	if res == nil {
		res, err = s.createResult(ctx, exam, in.ParticipantID, strings.TrimSpace(in.ParticipantEmail), now)
		if err != nil {
			return nil, err
		}
		s.log.Info().
			Str("exam_id", exam.ID.String()).
			Str("participant_id", in.ParticipantID).
			Str("exam_result_id", res.ID.String()).
			Msg("participant joined")
	}

	session := &JoinSession{
		ExamID:          exam.ID,
		ExamTitle:       exam.Title,
		Questions:       model.PublicQuestions(exam.Questions),
		ExamResultID:    res.ID,
		StartedAt:       res.StartedAt,
		Status:          res.Status,
		IsTimed:         exam.IsTimed,
		DurationMinutes: exam.DurationMinutes,
	}
	if end, ok := p.OfficialEnd(); ok {
		session.EndsAt = &end
	}
	if deadline, ok := p.SubmitDeadline(); ok {
		session.SubmitDeadline = &deadline
	}
	return session, nil
}

// ────────────────────────────────────────────────────────────────────────────
// Submit
// ────────────────────────────────────────────────────────────────────────────

// SubmitInput is a participant's final answer sheet.
type SubmitInput struct {
	ParticipantID    string
	ParticipantEmail string
	StartedAt        *time.Time
	Answers          []model.Answer
}

// SubmitOutcome acknowledges a submission. The score is not disclosed.
type SubmitOutcome struct {
	ExamResultID uuid.UUID          `json:"exam_result_id"`
	Status       model.ResultStatus `json:"status"`
	EndedAt      time.Time          `json:"ended_at"`
}

// Submit grades and stores the participant's answers. A result can be
// submitted once; any later attempt is a conflict.
func (s *ExamSessionService) Submit(ctx context.Context, examID uuid.UUID, in SubmitInput) (*SubmitOutcome, error) {
	exam, err := s.loadExam(ctx, examID)
	if err != nil {
		return nil, err
	}

	res, err := s.findResult(ctx, exam.ID, in.ParticipantID)
	if err != nil {
		return nil, err
	}
	if res != nil && res.Status.IsTerminal() {
		return nil, fail(apperr.KindConflict, response.ErrAlreadySubmitted)
	}

	now := s.now()
	p := s.policy(exam)
	if !p.CanSubmit(now) {
		return nil, fail(apperr.KindForbidden, response.ErrSubmissionClosed)
	}

	if res == nil {
		// No join on record: create the result here, under the same rule a join enforces.
		if !participant.Validate(in.ParticipantID, exam.ParticipantRule) {
			return nil, fail(apperr.KindUnauthorized, response.ErrParticipantRule)
		}
		startedAt := now
		if in.StartedAt != nil && !in.StartedAt.After(now) {
			startedAt = *in.StartedAt
		}
		res, err = s.createResult(ctx, exam, in.ParticipantID, strings.TrimSpace(in.ParticipantEmail), startedAt)
		if err != nil {
			return nil, err
		}
		if res.Status.IsTerminal() {
			return nil, fail(apperr.KindConflict, response.ErrAlreadySubmitted)
		}
	}

	graded := scoring.Score(exam.Questions, in.Answers)
	status := model.ResultStatusSubmitted
	if p.IsLate(now) {
		status = model.ResultStatusLate
	}

	updated, err := s.results.CompleteSubmission(ctx, res.ID, scoring.Grade(in.Answers, graded.Details), graded.Score, status, now)
	if err != nil {
		return nil, apperr.Internal(err, "store submission")
	}
	if !updated {
		return nil, fail(apperr.KindConflict, response.ErrAlreadySubmitted)
	}

	s.log.Info().
		Str("exam_id", exam.ID.String()).
		Str("participant_id", in.ParticipantID).
		Str("status", string(status)).
		Int("answers", len(in.Answers)).
		Msg("submission stored")

	return &SubmitOutcome{ExamResultID: res.ID, Status: status, EndedAt: now}, nil
}

// ────────────────────────────────────────────────────────────────────────────
// Send results
// ────────────────────────────────────────────────────────────────────────────

// Per-participant outcomes of SendResults.
const (
	SendStatusOK    = "ok"
	SendStatusError = "error"
)

// SendResultItem is the outcome for one participant of a batch.
type SendResultItem struct {
	ParticipantID  string     `json:"participant_id"`
	Status         string     `json:"status"`
	Message        string     `json:"message,omitempty"`
	Score          *int       `json:"score,omitempty"`
	TotalQuestions int        `json:"total_questions,omitempty"`
	Percent        *float64   `json:"percent,omitempty"`
	ResultSentAt   *time.Time `json:"result_sent_at,omitempty"`
}

// SendResultsOutcome summarizes a batch.
type SendResultsOutcome struct {
	Message string           `json:"message"`
	Sent    int              `json:"sent"`
	Failed  int              `json:"failed"`
	Results []SendResultItem `json:"results"`
}

// SendResults emails each listed participant a signed link to their result.
// Participants are handled independently; one failure does not stop the batch.
func (s *ExamSessionService) SendResults(ctx context.Context, examID uuid.UUID, participantIDs []string, requesterID uuid.UUID) (*SendResultsOutcome, error) {
	exam, err := s.loadExam(ctx, examID)
	if err != nil {
		return nil, err
	}
	if exam.OwnerID != requesterID {
		return nil, fail(apperr.KindForbidden, response.ErrNotExamOwner)
	}

	out := &SendResultsOutcome{Results: make([]SendResultItem, 0, len(participantIDs))}
	for _, pid := range participantIDs {
		item := s.sendOne(ctx, exam, strings.TrimSpace(pid))
		if item.Status == SendStatusOK {
			out.Sent++
		} else {
			out.Failed++
		}
		out.Results = append(out.Results, item)
	}
	out.Message = fmt.Sprintf("%d of %d result emails queued", out.Sent, len(participantIDs))

	s.log.Info().
		Str("exam_id", exam.ID.String()).
		Int("sent", out.Sent).
		Int("failed", out.Failed).
		Msg("result emails dispatched")
	return out, nil
}

func (s *ExamSessionService) sendOne(ctx context.Context, exam *model.Exam, pid string) SendResultItem {
	item := SendResultItem{ParticipantID: pid, Status: SendStatusError}
	itemLog := s.log.With().Str("exam_id", exam.ID.String()).Str("participant_id", pid).Logger()

	res, err := s.findResult(ctx, exam.ID, pid)
	if err != nil {
		itemLog.Error().Err(err).Msg("load result for sending")
		item.Message = "failed to load result"
		return item
	}
	if res == nil {
		item.Message = "result not found"
		return item
	}
	if !res.Status.IsTerminal() {
		item.Message = "not submitted yet"
		return item
	}

	policy := s.policy(exam)
	switch policy.ViewWindow(res.EndedAt, s.now()) {
	case timing.NotStarted:
		item.Message = "results are not available yet"
		if end, ok := policy.OfficialEnd(); ok {
			item.Message = "results are not available until " + end.UTC().Format(time.RFC3339)
		}
		return item
	case timing.Closed:
		item.Message = "result view window has closed"
		return item
	}

	score, total := resultScore(exam, res)
	percent := scoring.Percent(score, total)

	link, err := s.links.Build(s.opts.ResultPageURL, signedlink.LinkInput{
		Email:         res.ParticipantEmail,
		CreatedBy:     exam.OwnerID,
		ExamID:        exam.ID,
		ParticipantID: res.ParticipantID,
		ExamCode:      exam.ExamCode,
	})
	if err != nil {
		itemLog.Error().Err(err).Msg("build result link")
		item.Message = "failed to build result link"
		return item
	}

	now := s.now()
	job := mailer.ResultEmail{
		ResultID:       res.ID,
		ExamID:         exam.ID,
		ExamTitle:      exam.Title,
		ParticipantID:  res.ParticipantID,
		Email:          res.ParticipantEmail,
		Score:          score,
		TotalQuestions: total,
		Percent:        percent,
		ViewURL:        link,
		LinkExpiresAt:  now.Add(s.links.MaxAge()),
	}
	if err := s.mail.EnqueueResult(ctx, job); err != nil {
		itemLog.Error().Err(err).Msg("enqueue result email")
		item.Message = "failed to queue email"
		return item
	}

	if err := s.results.MarkResultSent(ctx, res.ID, now); err != nil {
		itemLog.Error().Err(err).Msg("mark result sent")
		item.Message = "email queued but sent state was not recorded"
		return item
	}

	item.Status = SendStatusOK
	item.Score = &score
	item.TotalQuestions = total
	item.Percent = &percent
	item.ResultSentAt = &now
	return item
}

// resultScore prefers the stored score and regrades only when none was stored.
func resultScore(exam *model.Exam, res *model.ExamResult) (int, int) {
	total := res.TotalQuestions
	if total == 0 {
		total = exam.QuestionCount()
	}
	if res.Score != nil {
		return *res.Score, total
	}
	return scoring.Score(exam.Questions, res.Answers).Score, total
}

// ────────────────────────────────────────────────────────────────────────────
// View result
// ────────────────────────────────────────────────────────────────────────────

// ViewExam is the exam part of a result view.
type ViewExam struct {
	ID                   uuid.UUID  `json:"id"`
	Title                string     `json:"title"`
	Description          string     `json:"description"`
	IsTimed              bool       `json:"is_timed"`
	ScheduledStartAt     *time.Time `json:"scheduled_start_at,omitempty"`
	ScheduledEndAt       *time.Time `json:"scheduled_end_at,omitempty"`
	DurationMinutes      *int       `json:"duration_minutes,omitempty"`
	AllowLateSubmissions bool       `json:"allow_late_submissions"`
	LateWindowMinutes    int        `json:"late_window_minutes"`
	TotalQuestions       int        `json:"total_questions"`
}

// QuestionReview is one question with the participant's answer. The correct
// choice is revealed only for answered questions.
type QuestionReview struct {
	QuestionIndex       int                  `json:"question_index"`
	Content             []model.ContentBlock `json:"content"`
	Choices             []model.PublicChoice `json:"choices"`
	SelectedChoiceIndex *int                 `json:"selected_choice_index"`
	IsCorrect           bool                 `json:"is_correct"`
	CorrectChoiceIndex  *int                 `json:"correct_choice_index,omitempty"`
}

// ViewResultBody is the participant's graded attempt.
type ViewResultBody struct {
	ID             uuid.UUID          `json:"id"`
	ParticipantID  string             `json:"participant_id"`
	Score          int                `json:"score"`
	TotalQuestions int                `json:"total_questions"`
	Percent        float64            `json:"percent"`
	Status         model.ResultStatus `json:"status"`
	StartedAt      time.Time          `json:"started_at"`
	EndedAt        *time.Time         `json:"ended_at,omitempty"`
	Questions      []QuestionReview   `json:"questions"`
}

// ResultView is a verified result page.
type ResultView struct {
	Exam   ViewExam       `json:"exam"`
	Result ViewResultBody `json:"result"`
}

func linkError(err error) error {
	var le *signedlink.Error
	if !errors.As(err, &le) {
		return apperr.Internal(err, "verify result link")
	}
	kind := apperr.KindInput
	if le.Code == signedlink.CodeStale || le.Code == signedlink.CodeBadSignature {
		kind = apperr.KindUnauthorized
	}
	return apperr.Wrap(err, kind, le.Code, response.GetMessage(response.ErrCode(le.Code)))
}

// ViewResult verifies a signed result link and returns the graded attempt it names.
func (s *ExamSessionService) ViewResult(ctx context.Context, q url.Values) (*ResultView, error) {
	req, err := s.links.Verify(q)
	if err != nil {
		return nil, linkError(err)
	}

	now := s.now()
	exam, err := s.loadExam(ctx, req.ExamID)
	if err != nil {
		return nil, err
	}
	if exam.OwnerID != req.CreatedBy {
		return nil, fail(apperr.KindForbidden, response.ErrCreatorMismatch)
	}
	if !secretEqual(exam.ExamCode, req.ExamCode) {
		return nil, fail(apperr.KindForbidden, response.ErrExamCodeMismatch)
	}

	res, err := s.findResult(ctx, exam.ID, req.ParticipantID)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, fail(apperr.KindNotFound, response.ErrResultNotFound)
	}
	if !strings.EqualFold(strings.TrimSpace(res.ParticipantEmail), strings.TrimSpace(req.Email)) {
		return nil, fail(apperr.KindForbidden, response.ErrEmailMismatch)
	}
	if !participant.Validate(req.ParticipantID, exam.ParticipantRule) {
		return nil, fail(apperr.KindForbidden, response.ErrParticipantRule)
	}

	switch s.policy(exam).ViewWindow(res.EndedAt, now) {
	case timing.NotStarted:
		return nil, fail(apperr.KindForbidden, response.ErrNotYetAvailable)
	case timing.Closed:
		return nil, fail(apperr.KindForbidden, response.ErrResultExpired)
	}
	if !res.Status.IsViewable() {
		return nil, fail(apperr.KindForbidden, response.ErrInvalidStatus)
	}

	// The nonce is spent only by a request that would otherwise succeed.
	if err := s.claimNonce(ctx, req, now); err != nil {
		return nil, err
	}

	return buildResultView(exam, res), nil
}

func (s *ExamSessionService) claimNonce(ctx context.Context, req *signedlink.Request, now time.Time) error {
	if !s.opts.SingleUseLinks {
		return nil
	}
	ttl := req.IssuedAt.Add(s.links.MaxAge()).Sub(now)
	if ttl < time.Second {
		ttl = time.Second
	}
	fresh, err := s.nonces.Claim(ctx, req.Nonce, ttl)
	if err != nil {
		return apperr.Internal(err, "claim link nonce")
	}
	if !fresh {
		return fail(apperr.KindForbidden, response.ErrReplayedRequest)
	}
	return nil
}

func buildResultView(exam *model.Exam, res *model.ExamResult) *ResultView {
	graded := scoring.Score(exam.Questions, res.Answers)
	score, total := resultScore(exam, res)

	byQuestion := make(map[int]scoring.AnswerDetail, len(graded.Details))
	for _, d := range graded.Details {
		if d.Reason == scoring.ReasonOutOfRange || d.Reason == scoring.ReasonDuplicate {
			continue
		}
		byQuestion[d.QuestionIndex] = d
	}

	reviews := make([]QuestionReview, len(exam.Questions))
	for i, q := range exam.Questions {
		pub := q.Public(i)
		r := QuestionReview{QuestionIndex: i, Content: pub.Content, Choices: pub.Choices}
		if d, ok := byQuestion[i]; ok {
			selected := d.SelectedChoiceIndex
			r.SelectedChoiceIndex = &selected
			r.IsCorrect = d.IsCorrect
			if d.CorrectChoiceIndex >= 0 {
				correct := d.CorrectChoiceIndex
				r.CorrectChoiceIndex = &correct
			}
		}
		reviews[i] = r
	}

	return &ResultView{
		Exam: ViewExam{
			ID:                   exam.ID,
			Title:                exam.Title,
			Description:          exam.Description,
			IsTimed:              exam.IsTimed,
			ScheduledStartAt:     exam.ScheduledStartAt,
			ScheduledEndAt:       exam.ScheduledEndAt,
			DurationMinutes:      exam.DurationMinutes,
			AllowLateSubmissions: exam.AllowLateSubmissions,
			LateWindowMinutes:    exam.LateWindowMinutes,
			TotalQuestions:       total,
		},
		Result: ViewResultBody{
			ID:             res.ID,
			ParticipantID:  res.ParticipantID,
			Score:          score,
			TotalQuestions: total,
			Percent:        scoring.Percent(score, total),
			Status:         res.Status,
			StartedAt:      res.StartedAt,
			EndedAt:        res.EndedAt,
			Questions:      reviews,
		},
	}
}

// ────────────────────────────────────────────────────────────────────────────
// Check
// ────────────────────────────────────────────────────────────────────────────

// CheckedExam is the pre-join view of an exam. The exam code is only ever
// returned hashed.
type CheckedExam struct {
	ID                   uuid.UUID  `json:"id"`
	OwnerID              uuid.UUID  `json:"owner_id"`
	Title                string     `json:"title"`
	Description          string     `json:"description"`
	QuestionCount        int        `json:"question_count"`
	IsTimed              bool       `json:"is_timed"`
	ScheduledStartAt     *time.Time `json:"scheduled_start_at,omitempty"`
	ScheduledEndAt       *time.Time `json:"scheduled_end_at,omitempty"`
	DurationMinutes      *int       `json:"duration_minutes,omitempty"`
	AllowLateSubmissions bool       `json:"allow_late_submissions"`
	LateWindowMinutes    int        `json:"late_window_minutes"`
	JoinWindow           string     `json:"join_window"`
	ExamCodeHash         string     `json:"exam_code_hash"`
}

// Check validates pre-join credentials. With an exam_id it only confirms the
// exam belongs to created_by; with an exam_code it runs the join checks too.
func (s *ExamSessionService) Check(ctx context.Context, in model.CheckExamRequest) (*CheckedExam, error) {
	ownerID, err := uuid.Parse(strings.TrimSpace(in.CreatedBy))
	if err != nil {
		return nil, fail(apperr.KindInput, response.ErrInvalidID)
	}

	var exam *model.Exam
	switch {
	case in.ExamID != "":
		examID, err := uuid.Parse(strings.TrimSpace(in.ExamID))
		if err != nil {
			return nil, fail(apperr.KindInput, response.ErrInvalidID)
		}
		if exam, err = s.loadExam(ctx, examID); err != nil {
			return nil, err
		}
		if exam.OwnerID != ownerID {
			return nil, fail(apperr.KindForbidden, response.ErrCreatorMismatch)
		}

	case in.ExamCode != "":
		if in.ParticipantID == "" || in.SubjectCode == "" {
			return nil, apperr.New(apperr.KindInput, string(response.ErrValidation),
				"participant_id and subject_code are required with exam_code")
		}
		exam, err = s.exams.GetByCode(ctx, strings.TrimSpace(in.ExamCode))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, fail(apperr.KindNotFound, response.ErrExamNotFound)
			}
			return nil, apperr.Internal(err, "load exam by code")
		}
		if exam.OwnerID != ownerID {
			return nil, fail(apperr.KindForbidden, response.ErrCreatorMismatch)
		}
		if !secretEqual(in.SubjectCode, exam.SubjectCode) {
			return nil, fail(apperr.KindUnauthorized, response.ErrSubjectCodeMismatch)
		}
		if !participant.Validate(in.ParticipantID, exam.ParticipantRule) {
			return nil, fail(apperr.KindUnauthorized, response.ErrParticipantRule)
		}
		if err := windowError(s.policy(exam).JoinWindow(s.now())); err != nil {
			return nil, err
		}

	default:
		return nil, apperr.New(apperr.KindInput, string(response.ErrValidation),
			"either exam_id or exam_code is required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(exam.ExamCode), s.opts.ExamCodeHashCost)
	if err != nil {
		return nil, apperr.Internal(err, "hash exam code")
	}

	return &CheckedExam{
		ID:                   exam.ID,
		OwnerID:              exam.OwnerID,
		Title:                exam.Title,
		Description:          exam.Description,
		QuestionCount:        exam.QuestionCount(),
		IsTimed:              exam.IsTimed,
		ScheduledStartAt:     exam.ScheduledStartAt,
		ScheduledEndAt:       exam.ScheduledEndAt,
		DurationMinutes:      exam.DurationMinutes,
		AllowLateSubmissions: exam.AllowLateSubmissions,
		LateWindowMinutes:    exam.LateWindowMinutes,
		JoinWindow:           s.policy(exam).JoinWindow(s.now()).String(),
		ExamCodeHash:         string(hash),
	}, nil
}
