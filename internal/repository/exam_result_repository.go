package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/studyplan-backend/internal/model"
)

const resultColumns = `id, exam_id, participant_id, participant_email, answers, started_at, ended_at,
	total_questions, score, status, is_result_sent, result_sent_at, created_at, updated_at`

// activeStatuses are the states covered by the one-attempt-per-participant index.
var activeStatuses = []string{
	string(model.ResultStatusInProgress),
	string(model.ResultStatusSubmitted),
	string(model.ResultStatusLate),
}

// ExamResultRepository handles exam result data access.
type ExamResultRepository struct {
	pool *pgxpool.Pool
}

// NewExamResultRepository creates a new ExamResultRepository.
func NewExamResultRepository(pool *pgxpool.Pool) *ExamResultRepository {
	return &ExamResultRepository{pool: pool}
}

func scanResult(row pgx.Row) (*model.ExamResult, error) {
	var (
		res     model.ExamResult
		answers []byte
	)
	err := row.Scan(&res.ID, &res.ExamID, &res.ParticipantID, &res.ParticipantEmail, &answers,
		&res.StartedAt, &res.EndedAt, &res.TotalQuestions, &res.Score, &res.Status,
		&res.IsResultSent, &res.ResultSentAt, &res.CreatedAt, &res.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(answers) > 0 {
		if err := json.Unmarshal(answers, &res.Answers); err != nil {
			return nil, fmt.Errorf("decode answers of result %s: %w", res.ID, err)
		}
	}
	return &res, nil
}

// GetByExamAndParticipant retrieves the active result for an exam-participant pair.
func (r *ExamResultRepository) GetByExamAndParticipant(ctx context.Context, examID uuid.UUID, participantID string) (*model.ExamResult, error) {
	return scanResult(r.pool.QueryRow(ctx,
		`SELECT `+resultColumns+`
		 FROM exam_results
		 WHERE exam_id = $1 AND participant_id = $2 AND status = ANY($3)`,
		examID, participantID, activeStatuses))
}

// Create inserts a new in-progress result. When a concurrent join already
// created one, nothing is inserted and pgx.ErrNoRows is returned.
func (r *ExamResultRepository) Create(ctx context.Context, res *model.ExamResult) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO exam_results (exam_id, participant_id, participant_email, answers,
		                           started_at, total_questions, status)
		 VALUES ($1, $2, $3, '[]'::jsonb, $4, $5, $6)
		 ON CONFLICT (exam_id, participant_id) WHERE status IN ('in_progress', 'submitted', 'late')
		 DO NOTHING
		 RETURNING id, created_at, updated_at`,
		res.ExamID, res.ParticipantID, res.ParticipantEmail, res.StartedAt,
		res.TotalQuestions, model.ResultStatusInProgress,
	).Scan(&res.ID, &res.CreatedAt, &res.UpdatedAt)
}

// CompleteSubmission stores graded answers on an in-progress result.
// It reports false when the result was no longer in progress.
func (r *ExamResultRepository) CompleteSubmission(ctx context.Context, id uuid.UUID, answers []model.Answer, score int, status model.ResultStatus, endedAt time.Time) (bool, error) {
	if answers == nil {
		answers = []model.Answer{}
	}
	raw, err := json.Marshal(answers)
	if err != nil {
		return false, fmt.Errorf("encode answers: %w", err)
	}

	tag, err := r.pool.Exec(ctx,
		`UPDATE exam_results
		 SET answers = $2, score = $3, status = $4, ended_at = $5, updated_at = NOW()
		 WHERE id = $1 AND status = $6`,
		id, raw, score, status, endedAt, model.ResultStatusInProgress)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// MarkResultSent records that the result email was dispatched.
func (r *ExamResultRepository) MarkResultSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE exam_results
		 SET is_result_sent = TRUE, result_sent_at = $2, updated_at = NOW()
		 WHERE id = $1`, id, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// ListByExam returns an exam's results, optionally filtered by status.
// A limit of 0 returns every row.
func (r *ExamResultRepository) ListByExam(ctx context.Context, examID uuid.UUID, status string, limit, offset int) ([]model.ExamResult, int, error) {
	where := ` WHERE exam_id = $1`
	args := []any{examID}
	if status != "" {
		args = append(args, status)
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM exam_results`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + resultColumns + ` FROM exam_results` + where + ` ORDER BY started_at ASC, participant_id ASC`
	if limit > 0 {
		args = append(args, limit, offset)
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var results []model.ExamResult
	for rows.Next() {
		res, err := scanResult(rows)
		if err != nil {
			return nil, 0, err
		}
		results = append(results, *res)
	}
	return results, total, rows.Err()
}
