package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/studyplan-backend/internal/model"
)

// ExamConstraintCode is the unique constraint on exams.exam_code.
const ExamConstraintCode = "exams_exam_code_key"

const examColumns = `id, owner_id, title, description, subject_code, exam_code, questions,
	participant_rule, is_timed, scheduled_start_at, scheduled_end_at, duration_minutes,
	allow_late_submissions, late_window_minutes, created_at, updated_at`

// ExamRepository handles exam data access.
type ExamRepository struct {
	pool *pgxpool.Pool
}

// NewExamRepository creates a new ExamRepository.
func NewExamRepository(pool *pgxpool.Pool) *ExamRepository {
	return &ExamRepository{pool: pool}
}

func scanExam(row pgx.Row) (*model.Exam, error) {
	var (
		e         model.Exam
		questions []byte
		rule      []byte
	)
	err := row.Scan(&e.ID, &e.OwnerID, &e.Title, &e.Description, &e.SubjectCode, &e.ExamCode,
		&questions, &rule, &e.IsTimed, &e.ScheduledStartAt, &e.ScheduledEndAt, &e.DurationMinutes,
		&e.AllowLateSubmissions, &e.LateWindowMinutes, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(questions) > 0 {
		if err := json.Unmarshal(questions, &e.Questions); err != nil {
			return nil, fmt.Errorf("decode questions of exam %s: %w", e.ID, err)
		}
	}
	if len(rule) > 0 && string(rule) != "null" {
		e.ParticipantRule = &model.ParticipantRule{}
		if err := json.Unmarshal(rule, e.ParticipantRule); err != nil {
			return nil, fmt.Errorf("decode participant rule of exam %s: %w", e.ID, err)
		}
	}
	return &e, nil
}

// GetByID retrieves an exam by its UUID.
func (r *ExamRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	return scanExam(r.pool.QueryRow(ctx,
		`SELECT `+examColumns+` FROM exams WHERE id = $1`, id))
}

// GetByCode retrieves an exam by its join code.
func (r *ExamRepository) GetByCode(ctx context.Context, code string) (*model.Exam, error) {
	return scanExam(r.pool.QueryRow(ctx,
		`SELECT `+examColumns+` FROM exams WHERE exam_code = $1`, code))
}

// Create inserts a new exam and fills in its generated fields.
func (r *ExamRepository) Create(ctx context.Context, e *model.Exam) error {
	questions, rule, err := encodeExamDocs(e)
	if err != nil {
		return err
	}
	return r.pool.QueryRow(ctx,
		`INSERT INTO exams (owner_id, title, description, subject_code, exam_code, questions,
		                    participant_rule, is_timed, scheduled_start_at, scheduled_end_at,
		                    duration_minutes, allow_late_submissions, late_window_minutes)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 RETURNING id, created_at, updated_at`,
		e.OwnerID, e.Title, e.Description, e.SubjectCode, e.ExamCode, questions, rule,
		e.IsTimed, e.ScheduledStartAt, e.ScheduledEndAt, e.DurationMinutes,
		e.AllowLateSubmissions, e.LateWindowMinutes,
	).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
}

// Update overwrites the mutable fields of an exam.
func (r *ExamRepository) Update(ctx context.Context, e *model.Exam) error {
	questions, rule, err := encodeExamDocs(e)
	if err != nil {
		return err
	}
	return r.pool.QueryRow(ctx,
		`UPDATE exams
		 SET title = $2, description = $3, subject_code = $4, questions = $5, participant_rule = $6,
		     is_timed = $7, scheduled_start_at = $8, scheduled_end_at = $9, duration_minutes = $10,
		     allow_late_submissions = $11, late_window_minutes = $12, updated_at = NOW()
		 WHERE id = $1
		 RETURNING updated_at`,
		e.ID, e.Title, e.Description, e.SubjectCode, questions, rule,
		e.IsTimed, e.ScheduledStartAt, e.ScheduledEndAt, e.DurationMinutes,
		e.AllowLateSubmissions, e.LateWindowMinutes,
	).Scan(&e.UpdatedAt)
}

// ListByOwner returns an owner's exams, newest first, with the total count.
func (r *ExamRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]model.Exam, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM exams WHERE owner_id = $1`, ownerID,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+examColumns+` FROM exams
		 WHERE owner_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3`, ownerID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var exams []model.Exam
	for rows.Next() {
		e, err := scanExam(rows)
		if err != nil {
			return nil, 0, err
		}
		exams = append(exams, *e)
	}
	return exams, total, rows.Err()
}

func encodeExamDocs(e *model.Exam) ([]byte, []byte, error) {
	questions := e.Questions
	if questions == nil {
		questions = []model.Question{}
	}
	qb, err := json.Marshal(questions)
	if err != nil {
		return nil, nil, fmt.Errorf("encode questions: %w", err)
	}
	if e.ParticipantRule.IsEmpty() {
		return qb, nil, nil
	}
	rb, err := json.Marshal(e.ParticipantRule)
	if err != nil {
		return nil, nil, fmt.Errorf("encode participant rule: %w", err)
	}
	return qb, rb, nil
}
