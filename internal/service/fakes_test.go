package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/stemsi/studyplan-backend/internal/mailer"
	"github.com/stemsi/studyplan-backend/internal/model"
	"github.com/stemsi/studyplan-backend/internal/repository"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

// ─── exams ──────────────────────────────────────────────────────────────────

type memExams struct {
	mu   sync.Mutex
	rows map[uuid.UUID]model.Exam
}

func newMemExams(exams ...*model.Exam) *memExams {
	m := &memExams{rows: make(map[uuid.UUID]model.Exam)}
	for _, e := range exams {
		m.rows[e.ID] = *e
	}
	return m
}

func (m *memExams) GetByID(_ context.Context, id uuid.UUID) (*model.Exam, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.rows[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &e, nil
}

func (m *memExams) GetByCode(_ context.Context, code string) (*model.Exam, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.rows {
		if e.ExamCode == code {
			return &e, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m *memExams) Create(_ context.Context, e *model.Exam) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.rows {
		if existing.ExamCode == e.ExamCode {
			return &pgconn.PgError{Code: "23505", ConstraintName: repository.ExamConstraintCode}
		}
	}
	e.ID = uuid.New()
	e.CreatedAt = time.Now()
	e.UpdatedAt = e.CreatedAt
	m.rows[e.ID] = *e
	return nil
}

func (m *memExams) Update(_ context.Context, e *model.Exam) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[e.ID]; !ok {
		return pgx.ErrNoRows
	}
	e.UpdatedAt = time.Now()
	m.rows[e.ID] = *e
	return nil
}

func (m *memExams) ListByOwner(_ context.Context, ownerID uuid.UUID, limit, offset int) ([]model.Exam, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []model.Exam
	for _, e := range m.rows {
		if e.OwnerID == ownerID {
			all = append(all, e)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Title < all[j].Title })
	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

type recordingInvalidator struct {
	ids []uuid.UUID
}

func (r *recordingInvalidator) Invalidate(_ context.Context, e *model.Exam) error {
	r.ids = append(r.ids, e.ID)
	return nil
}

// ─── results ────────────────────────────────────────────────────────────────

type memResults struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*model.ExamResult
	// staleReads makes the next lookups miss, as a reader racing an insert would.
	staleReads int
	failMark   map[string]bool
}

func newMemResults() *memResults {
	return &memResults{rows: make(map[uuid.UUID]*model.ExamResult), failMark: map[string]bool{}}
}

func cloneResult(r *model.ExamResult) *model.ExamResult {
	cp := *r
	cp.Answers = append([]model.Answer(nil), r.Answers...)
	return &cp
}

func (m *memResults) find(examID uuid.UUID, pid string) *model.ExamResult {
	for _, r := range m.rows {
		if r.ExamID == examID && r.ParticipantID == pid {
			return r
		}
	}
	return nil
}

func (m *memResults) GetByExamAndParticipant(_ context.Context, examID uuid.UUID, pid string) (*model.ExamResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.staleReads > 0 {
		m.staleReads--
		return nil, pgx.ErrNoRows
	}
	r := m.find(examID, pid)
	if r == nil {
		return nil, pgx.ErrNoRows
	}
	return cloneResult(r), nil
}

func (m *memResults) Create(_ context.Context, res *model.ExamResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.find(res.ExamID, res.ParticipantID) != nil {
		return pgx.ErrNoRows
	}
	res.ID = uuid.New()
	res.CreatedAt = time.Now()
	res.UpdatedAt = res.CreatedAt
	m.rows[res.ID] = cloneResult(res)
	return nil
}

func (m *memResults) CompleteSubmission(_ context.Context, id uuid.UUID, answers []model.Answer, score int, status model.ResultStatus, endedAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok || r.Status != model.ResultStatusInProgress {
		return false, nil
	}
	r.Answers = append([]model.Answer(nil), answers...)
	r.Score = &score
	r.Status = status
	r.EndedAt = &endedAt
	return true, nil
}

func (m *memResults) MarkResultSent(_ context.Context, id uuid.UUID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok {
		return pgx.ErrNoRows
	}
	if m.failMark[r.ParticipantID] {
		return errors.New("connection reset")
	}
	r.IsResultSent = true
	r.ResultSentAt = &at
	return nil
}

func (m *memResults) ListByExam(_ context.Context, examID uuid.UUID, status string, limit, offset int) ([]model.ExamResult, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []model.ExamResult
	for _, r := range m.rows {
		if r.ExamID == examID && (status == "" || string(r.Status) == status) {
			all = append(all, *cloneResult(r))
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ParticipantID < all[j].ParticipantID })
	total := len(all)
	if limit == 0 {
		return all, total, nil
	}
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

// put stores a result directly, bypassing the join flow.
func (m *memResults) put(r *model.ExamResult) *model.ExamResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	m.rows[r.ID] = cloneResult(r)
	return r
}

func (m *memResults) get(id uuid.UUID) *model.ExamResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneResult(m.rows[id])
}

// ─── nonces, mail, users ────────────────────────────────────────────────────

type memNonces struct {
	mu   sync.Mutex
	seen map[string]time.Duration
}

func (m *memNonces) Claim(_ context.Context, nonce string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.seen == nil {
		m.seen = map[string]time.Duration{}
	}
	if _, ok := m.seen[nonce]; ok {
		return false, nil
	}
	m.seen[nonce] = ttl
	return true, nil
}

type memQueue struct {
	mu   sync.Mutex
	jobs []mailer.ResultEmail
	fail map[string]bool
}

func (q *memQueue) EnqueueResult(_ context.Context, job mailer.ResultEmail) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.fail[job.ParticipantID] {
		return errors.New("redis: connection refused")
	}
	q.jobs = append(q.jobs, job)
	return nil
}

type memUsers struct {
	mu   sync.Mutex
	rows map[uuid.UUID]model.User
}

func (m *memUsers) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.rows[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &u, nil
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.rows {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m *memUsers) Create(_ context.Context, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rows == nil {
		m.rows = map[uuid.UUID]model.User{}
	}
	for _, existing := range m.rows {
		if existing.Email == u.Email {
			return &pgconn.PgError{Code: "23505", ConstraintName: repository.UserConstraintEmail}
		}
	}
	u.ID = uuid.New()
	m.rows[u.ID] = *u
	return nil
}
