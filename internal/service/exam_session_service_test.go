package service

import (
	"context"
	"encoding/json"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/stemsi/studyplan-backend/internal/apperr"
	"github.com/stemsi/studyplan-backend/internal/model"
	"github.com/stemsi/studyplan-backend/internal/response"
	"github.com/stemsi/studyplan-backend/internal/signedlink"
)

var examStart = time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)

type sessionFixture struct {
	svc     *ExamSessionService
	clock   *testClock
	codec   *signedlink.Codec
	exam    *model.Exam
	exams   *memExams
	results *memResults
	nonces  *memNonces
	queue   *memQueue
}

func intp(v int) *int { return &v }

func timedExam() *model.Exam {
	start := examStart
	end := start.Add(time.Hour)
	return &model.Exam{
		ID:          uuid.New(),
		OwnerID:     uuid.New(),
		Title:       "Biology quiz",
		SubjectCode: "BIO-7",
		ExamCode:    "BIO2026",
		Questions: []model.Question{
			{Content: []model.ContentBlock{{Type: model.ContentText, Value: "Q1"}}, Choices: []model.Choice{{Text: "a", IsCorrect: true}, {Text: "b"}}},
			{Content: []model.ContentBlock{{Type: model.ContentText, Value: "Q2"}}, Choices: []model.Choice{{Text: "a"}, {Text: "b", IsCorrect: true}}},
			{Content: []model.ContentBlock{{Type: model.ContentText, Value: "Q3"}}, Choices: []model.Choice{{Text: "a"}, {Text: "b"}, {Text: "c", IsCorrect: true}}},
			{Content: []model.ContentBlock{{Type: model.ContentText, Value: "Q4"}}, Choices: []model.Choice{{Text: "a", IsCorrect: true}, {Text: "b"}}},
		},
		ParticipantRule:      &model.ParticipantRule{StartsWith: []string{"S-"}, MinLength: intp(4), MaxLength: intp(10)},
		IsTimed:              true,
		ScheduledStartAt:     &start,
		ScheduledEndAt:       &end,
		DurationMinutes:      intp(60),
		AllowLateSubmissions: true,
		LateWindowMinutes:    15,
	}
}

func newSessionFixture(t *testing.T, exam *model.Exam) *sessionFixture {
	t.Helper()
	f := &sessionFixture{
		clock:   &testClock{t: examStart.Add(10 * time.Minute)},
		exam:    exam,
		exams:   newMemExams(exam),
		results: newMemResults(),
		nonces:  &memNonces{},
		queue:   &memQueue{fail: map[string]bool{}},
	}
	f.codec = signedlink.New("test-secret", 72*time.Hour, time.Minute).WithClock(f.clock.Now)
	f.svc = NewExamSessionService(f.exams, f.results, f.nonces, f.queue, f.codec, SessionOptions{
		ResultPageURL:    "https://study.example.com/results/view",
		MinViewWindow:    24 * time.Hour,
		ExamCodeHashCost: bcrypt.MinCost,
	}, zerolog.Nop()).WithClock(f.clock.Now)
	return f
}

func (f *sessionFixture) join(t *testing.T, pid string) *JoinSession {
	t.Helper()
	s, err := f.svc.Join(context.Background(), f.exam.ID, JoinInput{
		ParticipantID:    pid,
		ParticipantEmail: pid + "@example.com",
		SubjectCode:      f.exam.SubjectCode,
	})
	require.NoError(t, err)
	return s
}

func (f *sessionFixture) submit(pid string, answers ...model.Answer) (*SubmitOutcome, error) {
	return f.svc.Submit(context.Background(), f.exam.ID, SubmitInput{
		ParticipantID:    pid,
		ParticipantEmail: pid + "@example.com",
		Answers:          answers,
	})
}

func answer(q, c int) model.Answer {
	return model.Answer{QuestionIndex: q, SelectedChoiceIndex: c}
}

func assertCode(t *testing.T, err error, kind apperr.Kind, code response.ErrCode) {
	t.Helper()
	require.Error(t, err)
	ae, ok := apperr.As(err)
	require.True(t, ok, "expected *apperr.Error, got %v", err)
	assert.Equal(t, kind, ae.Kind)
	assert.Equal(t, string(code), ae.Code)
}

// ─── Join ───────────────────────────────────────────────────────────────────

func TestJoinIsIdempotent(t *testing.T) {
	f := newSessionFixture(t, timedExam())

	first := f.join(t, "S-1001")
	f.clock.Set(examStart.Add(20 * time.Minute))
	second := f.join(t, "S-1001")

	assert.Equal(t, first.ExamResultID, second.ExamResultID)
	assert.Equal(t, first.StartedAt, second.StartedAt)
	assert.Equal(t, model.ResultStatusInProgress, second.Status)
	assert.Len(t, f.results.rows, 1)

	require.NotNil(t, first.EndsAt)
	assert.Equal(t, examStart.Add(time.Hour), *first.EndsAt)
	assert.Equal(t, examStart.Add(75*time.Minute), *first.SubmitDeadline)
	assert.Equal(t, 4, f.results.get(first.ExamResultID).TotalQuestions)
}

func TestJoinNeverExposesAnswerKey(t *testing.T) {
	f := newSessionFixture(t, timedExam())
	s := f.join(t, "S-1001")

	raw, err := json.Marshal(s)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "is_correct")
	assert.NotContains(t, string(raw), f.exam.SubjectCode)
	require.Len(t, s.Questions, 4)
	assert.Len(t, s.Questions[2].Choices, 3)
}

func TestJoinRejections(t *testing.T) {
	tests := []struct {
		name   string
		examID func(f *sessionFixture) uuid.UUID
		in     JoinInput
		now    time.Time
		kind   apperr.Kind
		code   response.ErrCode
	}{
		{
			name:   "unknown exam",
			examID: func(*sessionFixture) uuid.UUID { return uuid.New() },
			in:     JoinInput{ParticipantID: "S-1001", SubjectCode: "BIO-7"},
			now:    examStart,
			kind:   apperr.KindNotFound,
			code:   response.ErrExamNotFound,
		},
		{
			name: "wrong subject code",
			in:   JoinInput{ParticipantID: "S-1001", SubjectCode: "bio-7"},
			now:  examStart,
			kind: apperr.KindUnauthorized,
			code: response.ErrSubjectCodeMismatch,
		},
		{
			name: "prefix not allowed",
			in:   JoinInput{ParticipantID: "T-1001", SubjectCode: "BIO-7"},
			now:  examStart,
			kind: apperr.KindUnauthorized,
			code: response.ErrParticipantRule,
		},
		{
			name: "id too long",
			in:   JoinInput{ParticipantID: "S-123456789", SubjectCode: "BIO-7"},
			now:  examStart,
			kind: apperr.KindUnauthorized,
			code: response.ErrParticipantRule,
		},
		{
			name: "before start",
			in:   JoinInput{ParticipantID: "S-1001", SubjectCode: "BIO-7"},
			now:  examStart.Add(-time.Second),
			kind: apperr.KindForbidden,
			code: response.ErrExamNotStarted,
		},
		{
			name: "after late window",
			in:   JoinInput{ParticipantID: "S-1001", SubjectCode: "BIO-7"},
			now:  examStart.Add(75*time.Minute + time.Second),
			kind: apperr.KindForbidden,
			code: response.ErrExamEnded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newSessionFixture(t, timedExam())
			f.clock.Set(tt.now)
			examID := f.exam.ID
			if tt.examID != nil {
				examID = tt.examID(f)
			}
			_, err := f.svc.Join(context.Background(), examID, tt.in)
			assertCode(t, err, tt.kind, tt.code)
			assert.Empty(t, f.results.rows)
		})
	}
}

func TestJoinInclusiveBounds(t *testing.T) {
	f := newSessionFixture(t, timedExam())

	f.clock.Set(examStart)
	f.join(t, "S-1001")

	f.clock.Set(examStart.Add(75 * time.Minute))
	f.join(t, "S-1002")
}

func TestJoinRefetchesAfterLostInsertRace(t *testing.T) {
	f := newSessionFixture(t, timedExam())
	winner := f.join(t, "S-1001")

	// The lookup misses, the insert conflicts, and the refetch finds the winner.
	f.results.staleReads = 1
	loser := f.join(t, "S-1001")

	assert.Equal(t, winner.ExamResultID, loser.ExamResultID)
	assert.Len(t, f.results.rows, 1)
}

func TestConcurrentJoinsShareOneResult(t *testing.T) {
	f := newSessionFixture(t, timedExam())

	const n = 16
	ids := make([]uuid.UUID, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := f.svc.Join(context.Background(), f.exam.ID, JoinInput{
				ParticipantID: "S-1001", ParticipantEmail: "s@example.com", SubjectCode: "BIO-7",
			})
			if assert.NoError(t, err) {
				ids[i] = s.ExamResultID
			}
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	assert.Len(t, f.results.rows, 1)
}

func TestJoinUntimedExamAnyTime(t *testing.T) {
	exam := timedExam()
	exam.IsTimed = false
	exam.ScheduledStartAt, exam.ScheduledEndAt, exam.DurationMinutes = nil, nil, nil
	f := newSessionFixture(t, exam)

	f.clock.Set(examStart.Add(-48 * time.Hour))
	s := f.join(t, "S-1001")
	assert.Nil(t, s.EndsAt)
	assert.Nil(t, s.SubmitDeadline)
}

// ─── Submit ─────────────────────────────────────────────────────────────────

func TestSubmitScoresAndStores(t *testing.T) {
	f := newSessionFixture(t, timedExam())
	s := f.join(t, "S-1001")
	f.clock.Set(examStart.Add(50 * time.Minute))

	out, err := f.submit("S-1001", answer(0, 0), answer(1, 0), answer(2, 2), answer(2, 0), answer(9, 1))
	require.NoError(t, err)

	assert.Equal(t, s.ExamResultID, out.ExamResultID)
	assert.Equal(t, model.ResultStatusSubmitted, out.Status)
	assert.Equal(t, examStart.Add(50*time.Minute), out.EndedAt)

	stored := f.results.get(s.ExamResultID)
	require.NotNil(t, stored.Score)
	assert.Equal(t, 2, *stored.Score)
	require.Len(t, stored.Answers, 5)
	assert.True(t, *stored.Answers[0].IsCorrect)
	assert.False(t, *stored.Answers[1].IsCorrect)
	assert.False(t, *stored.Answers[3].IsCorrect, "duplicate answer never scores")
	assert.Equal(t, examStart.Add(50*time.Minute), *stored.EndedAt)
}

func TestSubmitDoesNotRevealScore(t *testing.T) {
	f := newSessionFixture(t, timedExam())
	f.join(t, "S-1001")

	out, err := f.submit("S-1001", answer(0, 0))
	require.NoError(t, err)
	raw, _ := json.Marshal(out)
	assert.NotContains(t, string(raw), "score")
}

func TestSubmitInLateWindowIsLate(t *testing.T) {
	f := newSessionFixture(t, timedExam())
	f.join(t, "S-1001")
	f.clock.Set(examStart.Add(70 * time.Minute))

	out, err := f.submit("S-1001", answer(0, 0))
	require.NoError(t, err)
	assert.Equal(t, model.ResultStatusLate, out.Status)

	f.clock.Set(examStart.Add(60 * time.Minute))
	f.join(t, "S-1002")
	out, err = f.submit("S-1002")
	require.NoError(t, err)
	assert.Equal(t, model.ResultStatusSubmitted, out.Status, "the official end itself is on time")
}

func TestSubmitAfterDeadlineIsClosed(t *testing.T) {
	f := newSessionFixture(t, timedExam())
	f.join(t, "S-1001")
	f.clock.Set(examStart.Add(76 * time.Minute))

	_, err := f.submit("S-1001", answer(0, 0))
	assertCode(t, err, apperr.KindForbidden, response.ErrSubmissionClosed)
}

func TestSubmitTwiceConflicts(t *testing.T) {
	f := newSessionFixture(t, timedExam())
	s := f.join(t, "S-1001")

	_, err := f.submit("S-1001", answer(0, 0), answer(1, 1))
	require.NoError(t, err)

	_, err = f.submit("S-1001", answer(0, 1))
	assertCode(t, err, apperr.KindConflict, response.ErrAlreadySubmitted)
	assert.Equal(t, 2, *f.results.get(s.ExamResultID).Score)

	// A terminal result is reported as a conflict even after the window closes.
	f.clock.Set(examStart.Add(5 * time.Hour))
	_, err = f.submit("S-1001")
	assertCode(t, err, apperr.KindConflict, response.ErrAlreadySubmitted)
}

func TestConcurrentSubmitsOneWins(t *testing.T) {
	f := newSessionFixture(t, timedExam())
	s := f.join(t, "S-1001")

	const n = 12
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		ok        int
		conflicts int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// Even attempts answer everything right, odd ones everything wrong.
			c := 0
			if i%2 == 1 {
				c = 1
			}
			_, err := f.submit("S-1001", answer(0, c))
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				ok++
			} else if apperr.CodeOf(err) == string(response.ErrAlreadySubmitted) {
				conflicts++
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, conflicts)
	stored := f.results.get(s.ExamResultID)
	require.NotNil(t, stored.Score)
	assert.Contains(t, []int{0, 1}, *stored.Score)
}

func TestSubmitWithoutJoinCreatesResult(t *testing.T) {
	f := newSessionFixture(t, timedExam())
	f.clock.Set(examStart.Add(30 * time.Minute))
	future := examStart.Add(2 * time.Hour)
	past := examStart.Add(5 * time.Minute)

	out, err := f.svc.Submit(context.Background(), f.exam.ID, SubmitInput{
		ParticipantID: "S-1001", ParticipantEmail: "a@example.com", StartedAt: &past,
		Answers: []model.Answer{answer(0, 0)},
	})
	require.NoError(t, err)
	assert.Equal(t, past, f.results.get(out.ExamResultID).StartedAt)

	out, err = f.svc.Submit(context.Background(), f.exam.ID, SubmitInput{
		ParticipantID: "S-1002", ParticipantEmail: "b@example.com", StartedAt: &future,
	})
	require.NoError(t, err)
	assert.Equal(t, examStart.Add(30*time.Minute), f.results.get(out.ExamResultID).StartedAt)

	_, err = f.svc.Submit(context.Background(), f.exam.ID, SubmitInput{ParticipantID: "X-1"})
	assertCode(t, err, apperr.KindUnauthorized, response.ErrParticipantRule)
}

func TestSubmitUnknownExam(t *testing.T) {
	f := newSessionFixture(t, timedExam())
	_, err := f.svc.Submit(context.Background(), uuid.New(), SubmitInput{ParticipantID: "S-1001"})
	assertCode(t, err, apperr.KindNotFound, response.ErrExamNotFound)
}

// ─── Send results ───────────────────────────────────────────────────────────

func TestSendResultsPartialFailure(t *testing.T) {
	f := newSessionFixture(t, timedExam())
	for _, pid := range []string{"S-1001", "S-1002", "S-1003", "S-1004"} {
		f.join(t, pid)
	}
	_, err := f.submit("S-1001", answer(0, 0), answer(1, 1), answer(2, 0))
	require.NoError(t, err)
	_, err = f.submit("S-1003", answer(0, 0))
	require.NoError(t, err)
	_, err = f.submit("S-1004", answer(0, 0))
	require.NoError(t, err)

	f.queue.fail["S-1003"] = true
	f.results.failMark["S-1004"] = true
	f.clock.Set(examStart.Add(90 * time.Minute))

	out, err := f.svc.SendResults(context.Background(), f.exam.ID,
		[]string{"S-1001", "S-1002", "S-9999", "S-1003", "S-1004"}, f.exam.OwnerID)
	require.NoError(t, err)

	require.Len(t, out.Results, 5)
	assert.Equal(t, 1, out.Sent)
	assert.Equal(t, 4, out.Failed)
	assert.Equal(t, "1 of 5 result emails queued", out.Message)

	okItem := out.Results[0]
	assert.Equal(t, SendStatusOK, okItem.Status)
	assert.Equal(t, 2, *okItem.Score)
	assert.Equal(t, 4, okItem.TotalQuestions)
	assert.Equal(t, 50.0, *okItem.Percent)
	assert.Equal(t, examStart.Add(90*time.Minute), *okItem.ResultSentAt)

	assert.Equal(t, "not submitted yet", out.Results[1].Message)
	assert.Equal(t, "result not found", out.Results[2].Message)
	assert.Equal(t, "failed to queue email", out.Results[3].Message)
	assert.Equal(t, SendStatusError, out.Results[4].Status)
	assert.Equal(t, SendStatusError, out.Results[1].Status)

	require.Len(t, f.queue.jobs, 2)
	job := f.queue.jobs[0]
	assert.Equal(t, "S-1001@example.com", job.Email)
	assert.Equal(t, examStart.Add(90*time.Minute+72*time.Hour), job.LinkExpiresAt)

	sent, err := f.results.GetByExamAndParticipant(context.Background(), f.exam.ID, "S-1001")
	require.NoError(t, err)
	assert.True(t, sent.IsResultSent)
	pending, err := f.results.GetByExamAndParticipant(context.Background(), f.exam.ID, "S-1004")
	require.NoError(t, err)
	assert.False(t, pending.IsResultSent)
}

func TestSendResultsBeforeOfficialEnd(t *testing.T) {
	f := newSessionFixture(t, timedExam())
	f.join(t, "S-1001")
	_, err := f.submit("S-1001", answer(0, 0))
	require.NoError(t, err)

	f.clock.Set(examStart.Add(50 * time.Minute))
	out, err := f.svc.SendResults(context.Background(), f.exam.ID, []string{"S-1001"}, f.exam.OwnerID)
	require.NoError(t, err)

	require.Len(t, out.Results, 1)
	assert.Equal(t, SendStatusError, out.Results[0].Status)
	assert.Equal(t, "results are not available until 2026-01-10T10:00:00Z", out.Results[0].Message)
	assert.Empty(t, f.queue.jobs)

	res, err := f.results.GetByExamAndParticipant(context.Background(), f.exam.ID, "S-1001")
	require.NoError(t, err)
	assert.False(t, res.IsResultSent)
}

func TestSendResultsRequiresOwner(t *testing.T) {
	f := newSessionFixture(t, timedExam())
	_, err := f.svc.SendResults(context.Background(), f.exam.ID, []string{"S-1001"}, uuid.New())
	assertCode(t, err, apperr.KindForbidden, response.ErrNotExamOwner)

	_, err = f.svc.SendResults(context.Background(), uuid.New(), []string{"S-1001"}, f.exam.OwnerID)
	assertCode(t, err, apperr.KindNotFound, response.ErrExamNotFound)
}

func TestEmailedLinkOpensResult(t *testing.T) {
	f := newSessionFixture(t, timedExam())
	f.join(t, "S-1001")
	_, err := f.submit("S-1001", answer(0, 0), answer(2, 1))
	require.NoError(t, err)

	f.clock.Set(examStart.Add(61 * time.Minute))
	_, err = f.svc.SendResults(context.Background(), f.exam.ID, []string{"S-1001"}, f.exam.OwnerID)
	require.NoError(t, err)
	require.Len(t, f.queue.jobs, 1)

	u, err := url.Parse(f.queue.jobs[0].ViewURL)
	require.NoError(t, err)
	assert.Equal(t, "/results/view", u.Path)

	view, err := f.svc.ViewResult(context.Background(), u.Query())
	require.NoError(t, err)
	assert.Equal(t, 1, view.Result.Score)
	assert.Equal(t, 25.0, view.Result.Percent)
	assert.Equal(t, f.exam.Title, view.Exam.Title)
}

// ─── View result ────────────────────────────────────────────────────────────

// submitted returns a fixture with S-1001 submitted at 09:40.
func submitted(t *testing.T) *sessionFixture {
	t.Helper()
	f := newSessionFixture(t, timedExam())
	f.join(t, "S-1001")
	f.clock.Set(examStart.Add(40 * time.Minute))
	_, err := f.submit("S-1001", answer(0, 0), answer(1, 0), answer(3, 0))
	require.NoError(t, err)
	return f
}

func (f *sessionFixture) link(t *testing.T, in signedlink.LinkInput) url.Values {
	t.Helper()
	q, err := f.codec.Query(in)
	require.NoError(t, err)
	return q
}

func (f *sessionFixture) validInput() signedlink.LinkInput {
	return signedlink.LinkInput{
		Email:         "S-1001@example.com",
		CreatedBy:     f.exam.OwnerID,
		ExamID:        f.exam.ID,
		ParticipantID: "S-1001",
		ExamCode:      f.exam.ExamCode,
	}
}

func TestViewResultDetails(t *testing.T) {
	f := submitted(t)
	f.clock.Set(examStart.Add(2 * time.Hour))
	in := f.validInput()
	in.Email = "  s-1001@EXAMPLE.com "

	view, err := f.svc.ViewResult(context.Background(), f.link(t, in))
	require.NoError(t, err)

	assert.Equal(t, 2, view.Result.Score)
	assert.Equal(t, 4, view.Result.TotalQuestions)
	assert.Equal(t, 50.0, view.Result.Percent)
	assert.Equal(t, model.ResultStatusSubmitted, view.Result.Status)
	require.Len(t, view.Result.Questions, 4)

	q0 := view.Result.Questions[0]
	assert.True(t, q0.IsCorrect)
	assert.Equal(t, 0, *q0.SelectedChoiceIndex)
	assert.Equal(t, 0, *q0.CorrectChoiceIndex)

	q1 := view.Result.Questions[1]
	assert.False(t, q1.IsCorrect)
	assert.Equal(t, 1, *q1.CorrectChoiceIndex)

	q2 := view.Result.Questions[2]
	assert.Nil(t, q2.SelectedChoiceIndex)
	assert.Nil(t, q2.CorrectChoiceIndex, "unanswered questions keep their key hidden")

	raw, _ := json.Marshal(view)
	assert.NotContains(t, string(raw), f.exam.ExamCode)
}

func TestViewResultErrors(t *testing.T) {
	afterEnd := examStart.Add(2 * time.Hour)

	tests := []struct {
		name   string
		setup  func(t *testing.T, f *sessionFixture)
		query  func(t *testing.T, f *sessionFixture) url.Values
		viewAt time.Time
		kind   apperr.Kind
		code   response.ErrCode
	}{
		{
			name:   "missing parameter",
			query: func(t *testing.T, f *sessionFixture) url.Values {
				q := f.link(t, f.validInput())
				q.Del("nonce")
				return q
			},
			viewAt: afterEnd,
			kind:   apperr.KindInput,
			code:   response.ErrBadQuery,
		},
		{
			name: "tampered participant",
			query: func(t *testing.T, f *sessionFixture) url.Values {
				q := f.link(t, f.validInput())
				q.Set("participant_id", "S-1002")
				return q
			},
			viewAt: afterEnd,
			kind:   apperr.KindUnauthorized,
			code:   response.ErrBadSignature,
		},
		{
			name:   "stale link",
			query:  func(t *testing.T, f *sessionFixture) url.Values { return f.link(t, f.validInput()) },
			viewAt: examStart.Add(40*time.Minute + 73*time.Hour),
			kind:   apperr.KindUnauthorized,
			code:   response.ErrStaleRequest,
		},
		{
			name: "other owner",
			query: func(t *testing.T, f *sessionFixture) url.Values {
				in := f.validInput()
				in.CreatedBy = uuid.New()
				return f.link(t, in)
			},
			viewAt: afterEnd,
			kind:   apperr.KindForbidden,
			code:   response.ErrCreatorMismatch,
		},
		{
			name: "unknown exam",
			query: func(t *testing.T, f *sessionFixture) url.Values {
				in := f.validInput()
				in.ExamID = uuid.New()
				return f.link(t, in)
			},
			viewAt: afterEnd,
			kind:   apperr.KindNotFound,
			code:   response.ErrExamNotFound,
		},
		{
			name: "wrong exam code",
			query: func(t *testing.T, f *sessionFixture) url.Values {
				in := f.validInput()
				in.ExamCode = "OTHER"
				return f.link(t, in)
			},
			viewAt: afterEnd,
			kind:   apperr.KindForbidden,
			code:   response.ErrExamCodeMismatch,
		},
		{
			name: "no result",
			query: func(t *testing.T, f *sessionFixture) url.Values {
				in := f.validInput()
				in.ParticipantID = "S-2002"
				return f.link(t, in)
			},
			viewAt: afterEnd,
			kind:   apperr.KindNotFound,
			code:   response.ErrResultNotFound,
		},
		{
			name: "other email",
			query: func(t *testing.T, f *sessionFixture) url.Values {
				in := f.validInput()
				in.Email = "someone@example.com"
				return f.link(t, in)
			},
			viewAt: afterEnd,
			kind:   apperr.KindForbidden,
			code:   response.ErrEmailMismatch,
		},
		{
			name: "rule tightened after submission",
			setup: func(_ *testing.T, f *sessionFixture) {
				e := f.exams.rows[f.exam.ID]
				e.ParticipantRule = &model.ParticipantRule{StartsWith: []string{"T-"}}
				f.exams.rows[f.exam.ID] = e
			},
			query:  func(t *testing.T, f *sessionFixture) url.Values { return f.link(t, f.validInput()) },
			viewAt: afterEnd,
			kind:   apperr.KindForbidden,
			code:   response.ErrParticipantRule,
		},
		{
			name:   "before official end",
			query:  func(t *testing.T, f *sessionFixture) url.Values { return f.link(t, f.validInput()) },
			viewAt: examStart.Add(59 * time.Minute),
			kind:   apperr.KindForbidden,
			code:   response.ErrNotYetAvailable,
		},
		{
			name:   "after view window",
			query:  func(t *testing.T, f *sessionFixture) url.Values { return f.link(t, f.validInput()) },
			viewAt: examStart.Add(time.Hour + 24*time.Hour + time.Second),
			kind:   apperr.KindForbidden,
			code:   response.ErrResultExpired,
		},
		{
			name: "still in progress",
			setup: func(t *testing.T, f *sessionFixture) {
				f.clock.Set(examStart.Add(41 * time.Minute))
				f.join(t, "S-1002")
			},
			query: func(t *testing.T, f *sessionFixture) url.Values {
				in := f.validInput()
				in.ParticipantID = "S-1002"
				in.Email = "S-1002@example.com"
				return f.link(t, in)
			},
			viewAt: afterEnd,
			kind:   apperr.KindForbidden,
			code:   response.ErrInvalidStatus,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := submitted(t)
			if tt.setup != nil {
				tt.setup(t, f)
			}
			q := tt.query(t, f)
			f.clock.Set(tt.viewAt)

			_, err := f.svc.ViewResult(context.Background(), q)
			assertCode(t, err, tt.kind, tt.code)
		})
	}
}

func TestViewResultSingleUse(t *testing.T) {
	f := submitted(t)
	f.svc.opts.SingleUseLinks = true
	q := f.link(t, f.validInput())
	f.clock.Set(examStart.Add(2 * time.Hour))

	_, err := f.svc.ViewResult(context.Background(), q)
	require.NoError(t, err)

	_, err = f.svc.ViewResult(context.Background(), q)
	assertCode(t, err, apperr.KindForbidden, response.ErrReplayedRequest)

	// The nonce is remembered until the link would have gone stale anyway.
	for _, ttl := range f.nonces.seen {
		assert.Equal(t, 72*time.Hour-80*time.Minute, ttl)
	}
}

func TestViewResultRejectedOpenKeepsLinkUsable(t *testing.T) {
	f := submitted(t)
	f.svc.opts.SingleUseLinks = true
	q := f.link(t, f.validInput())

	// 09:50, before the official end.
	f.clock.Set(examStart.Add(50 * time.Minute))
	_, err := f.svc.ViewResult(context.Background(), q)
	assertCode(t, err, apperr.KindForbidden, response.ErrNotYetAvailable)

	wrong := f.validInput()
	wrong.Email = "someone-else@example.com"
	_, err = f.svc.ViewResult(context.Background(), f.link(t, wrong))
	assertCode(t, err, apperr.KindForbidden, response.ErrEmailMismatch)
	assert.Empty(t, f.nonces.seen)

	// 11:00, inside the view window.
	f.clock.Set(examStart.Add(2 * time.Hour))
	view, err := f.svc.ViewResult(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, "S-1001", view.Result.ParticipantID)

	_, err = f.svc.ViewResult(context.Background(), q)
	assertCode(t, err, apperr.KindForbidden, response.ErrReplayedRequest)
}

func TestViewResultUntimedExam(t *testing.T) {
	exam := timedExam()
	exam.IsTimed = false
	exam.ScheduledStartAt, exam.ScheduledEndAt, exam.DurationMinutes = nil, nil, nil
	f := newSessionFixture(t, exam)
	f.join(t, "S-1001")
	q := f.link(t, f.validInput())

	_, err := f.svc.ViewResult(context.Background(), q)
	assertCode(t, err, apperr.KindForbidden, response.ErrNotYetAvailable)

	_, err = f.submit("S-1001", answer(0, 0))
	require.NoError(t, err)
	view, err := f.svc.ViewResult(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, 1, view.Result.Score)
}

// ─── Check ──────────────────────────────────────────────────────────────────

func TestCheckByExamID(t *testing.T) {
	f := newSessionFixture(t, timedExam())

	out, err := f.svc.Check(context.Background(), model.CheckExamRequest{
		CreatedBy: f.exam.OwnerID.String(),
		ExamID:    f.exam.ID.String(),
	})
	require.NoError(t, err)
	assert.Equal(t, f.exam.ID, out.ID)
	assert.Equal(t, 4, out.QuestionCount)
	assert.Equal(t, "open", out.JoinWindow)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(out.ExamCodeHash), []byte(f.exam.ExamCode)))

	raw, _ := json.Marshal(out)
	assert.NotContains(t, string(raw), `"`+f.exam.ExamCode+`"`)
}

func TestCheckByExamCode(t *testing.T) {
	f := newSessionFixture(t, timedExam())

	out, err := f.svc.Check(context.Background(), model.CheckExamRequest{
		CreatedBy:     f.exam.OwnerID.String(),
		ParticipantID: "S-1001",
		SubjectCode:   "BIO-7",
		ExamCode:      "BIO2026",
	})
	require.NoError(t, err)
	assert.Equal(t, f.exam.ID, out.ID)
}

func TestCheckRejections(t *testing.T) {
	owner := func(f *sessionFixture) string { return f.exam.OwnerID.String() }

	tests := []struct {
		name string
		req  func(f *sessionFixture) model.CheckExamRequest
		now  time.Time
		kind apperr.Kind
		code response.ErrCode
	}{
		{
			name: "bad owner id",
			req:  func(f *sessionFixture) model.CheckExamRequest { return model.CheckExamRequest{CreatedBy: "nope", ExamID: f.exam.ID.String()} },
			kind: apperr.KindInput,
			code: response.ErrInvalidID,
		},
		{
			name: "bad exam id",
			req:  func(f *sessionFixture) model.CheckExamRequest { return model.CheckExamRequest{CreatedBy: owner(f), ExamID: "123"} },
			kind: apperr.KindInput,
			code: response.ErrInvalidID,
		},
		{
			name: "neither form",
			req:  func(f *sessionFixture) model.CheckExamRequest { return model.CheckExamRequest{CreatedBy: owner(f)} },
			kind: apperr.KindInput,
			code: response.ErrValidation,
		},
		{
			name: "code form incomplete",
			req: func(f *sessionFixture) model.CheckExamRequest {
				return model.CheckExamRequest{CreatedBy: owner(f), ExamCode: "BIO2026"}
			},
			kind: apperr.KindInput,
			code: response.ErrValidation,
		},
		{
			name: "missing exam",
			req: func(f *sessionFixture) model.CheckExamRequest {
				return model.CheckExamRequest{CreatedBy: owner(f), ExamID: uuid.NewString()}
			},
			kind: apperr.KindNotFound,
			code: response.ErrExamNotFound,
		},
		{
			name: "unknown code",
			req: func(f *sessionFixture) model.CheckExamRequest {
				return model.CheckExamRequest{CreatedBy: owner(f), ExamCode: "NOPE", ParticipantID: "S-1001", SubjectCode: "BIO-7"}
			},
			kind: apperr.KindNotFound,
			code: response.ErrExamNotFound,
		},
		{
			name: "other owner",
			req: func(f *sessionFixture) model.CheckExamRequest {
				return model.CheckExamRequest{CreatedBy: uuid.NewString(), ExamID: f.exam.ID.String()}
			},
			kind: apperr.KindForbidden,
			code: response.ErrCreatorMismatch,
		},
		{
			name: "wrong subject code",
			req: func(f *sessionFixture) model.CheckExamRequest {
				return model.CheckExamRequest{CreatedBy: owner(f), ExamCode: "BIO2026", ParticipantID: "S-1001", SubjectCode: "BIO-8"}
			},
			kind: apperr.KindUnauthorized,
			code: response.ErrSubjectCodeMismatch,
		},
		{
			name: "participant rule",
			req: func(f *sessionFixture) model.CheckExamRequest {
				return model.CheckExamRequest{CreatedBy: owner(f), ExamCode: "BIO2026", ParticipantID: "Q", SubjectCode: "BIO-7"}
			},
			kind: apperr.KindUnauthorized,
			code: response.ErrParticipantRule,
		},
		{
			name: "too early",
			req: func(f *sessionFixture) model.CheckExamRequest {
				return model.CheckExamRequest{CreatedBy: owner(f), ExamCode: "BIO2026", ParticipantID: "S-1001", SubjectCode: "BIO-7"}
			},
			now:  examStart.Add(-time.Hour),
			kind: apperr.KindForbidden,
			code: response.ErrExamNotStarted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newSessionFixture(t, timedExam())
			if !tt.now.IsZero() {
				f.clock.Set(tt.now)
			}
			_, err := f.svc.Check(context.Background(), tt.req(f))
			assertCode(t, err, tt.kind, tt.code)
		})
	}
}
