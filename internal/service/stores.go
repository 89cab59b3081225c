package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/studyplan-backend/internal/mailer"
	"github.com/stemsi/studyplan-backend/internal/model"
)

// ExamStore reads exams for the participant-facing flows.
type ExamStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error)
	GetByCode(ctx context.Context, code string) (*model.Exam, error)
}

// ExamWriter is the owner-facing exam persistence.
type ExamWriter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error)
	Create(ctx context.Context, e *model.Exam) error
	Update(ctx context.Context, e *model.Exam) error
	ListByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]model.Exam, int, error)
}

// ExamInvalidator drops cached copies of an exam after it changes.
type ExamInvalidator interface {
	Invalidate(ctx context.Context, exam *model.Exam) error
}

// ResultStore persists exam results. Lookups return pgx.ErrNoRows when
// nothing matches; Create returns pgx.ErrNoRows when a concurrent insert won.
type ResultStore interface {
	GetByExamAndParticipant(ctx context.Context, examID uuid.UUID, participantID string) (*model.ExamResult, error)
	Create(ctx context.Context, res *model.ExamResult) error
	CompleteSubmission(ctx context.Context, id uuid.UUID, answers []model.Answer, score int, status model.ResultStatus, endedAt time.Time) (bool, error)
	MarkResultSent(ctx context.Context, id uuid.UUID, at time.Time) error
}

// ResultLister lists an exam's results for its owner.
type ResultLister interface {
	ListByExam(ctx context.Context, examID uuid.UUID, status string, limit, offset int) ([]model.ExamResult, int, error)
}

// NonceStore records redeemed result-link nonces.
type NonceStore interface {
	Claim(ctx context.Context, nonce string, ttl time.Duration) (bool, error)
}

// ResultMailer queues result emails for delivery.
type ResultMailer interface {
	EnqueueResult(ctx context.Context, job mailer.ResultEmail) error
}

// UserStore reads and creates owner accounts.
type UserStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	Create(ctx context.Context, u *model.User) error
}
