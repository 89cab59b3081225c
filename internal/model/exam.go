package model

import (
	"time"

	"github.com/google/uuid"
)

// ParticipantRule constrains the identifiers allowed to join an exam.
type ParticipantRule struct {
	StartsWith []string `json:"starts_with,omitempty" binding:"omitempty,dive,required"`
	MinLength  *int     `json:"min_length,omitempty" binding:"omitempty,min=0"`
	MaxLength  *int     `json:"max_length,omitempty" binding:"omitempty,min=0"`
}

// IsEmpty reports whether the rule imposes no constraint at all.
func (r *ParticipantRule) IsEmpty() bool {
	return r == nil || (len(r.StartsWith) == 0 && r.MinLength == nil && r.MaxLength == nil)
}

// Exam represents an exam entity.
type Exam struct {
	ID                   uuid.UUID        `json:"id"`
	OwnerID              uuid.UUID        `json:"owner_id"`
	Title                string           `json:"title"`
	Description          string           `json:"description"`
	SubjectCode          string           `json:"subject_code,omitempty"`
	ExamCode             string           `json:"exam_code,omitempty"`
	Questions            []Question       `json:"questions"`
	ParticipantRule      *ParticipantRule `json:"participant_rule,omitempty"`
	IsTimed              bool             `json:"is_timed"`
	ScheduledStartAt     *time.Time       `json:"scheduled_start_at,omitempty"`
	ScheduledEndAt       *time.Time       `json:"scheduled_end_at,omitempty"`
	DurationMinutes      *int             `json:"duration_minutes,omitempty"`
	AllowLateSubmissions bool             `json:"allow_late_submissions"`
	LateWindowMinutes    int              `json:"late_window_minutes"`
	CreatedAt            time.Time        `json:"created_at"`
	UpdatedAt            time.Time        `json:"updated_at"`
}

// QuestionCount returns the number of questions currently on the exam.
func (e *Exam) QuestionCount() int {
	return len(e.Questions)
}

// ExamSummary is the list view of an exam (no questions, no secrets).
type ExamSummary struct {
	ID                   uuid.UUID  `json:"id"`
	Title                string     `json:"title"`
	Description          string     `json:"description"`
	QuestionCount        int        `json:"question_count"`
	IsTimed              bool       `json:"is_timed"`
	ScheduledStartAt     *time.Time `json:"scheduled_start_at,omitempty"`
	ScheduledEndAt       *time.Time `json:"scheduled_end_at,omitempty"`
	DurationMinutes      *int       `json:"duration_minutes,omitempty"`
	AllowLateSubmissions bool       `json:"allow_late_submissions"`
	LateWindowMinutes    int        `json:"late_window_minutes"`
	CreatedAt            time.Time  `json:"created_at"`
}

// Summary drops questions and access codes.
func (e *Exam) Summary() ExamSummary {
	return ExamSummary{
		ID:                   e.ID,
		Title:                e.Title,
		Description:          e.Description,
		QuestionCount:        e.QuestionCount(),
		IsTimed:              e.IsTimed,
		ScheduledStartAt:     e.ScheduledStartAt,
		ScheduledEndAt:       e.ScheduledEndAt,
		DurationMinutes:      e.DurationMinutes,
		AllowLateSubmissions: e.AllowLateSubmissions,
		LateWindowMinutes:    e.LateWindowMinutes,
		CreatedAt:            e.CreatedAt,
	}
}

// ExamTiming is the scheduling part of create/update payloads.
type ExamTiming struct {
	IsTimed              bool       `json:"is_timed"`
	ScheduledStartAt     *time.Time `json:"scheduled_start_at" binding:"omitempty"`
	ScheduledEndAt       *time.Time `json:"scheduled_end_at" binding:"omitempty"`
	DurationMinutes      *int       `json:"duration_minutes" binding:"omitempty,min=1,max=1440"`
	AllowLateSubmissions bool       `json:"allow_late_submissions"`
	LateWindowMinutes    int        `json:"late_window_minutes" binding:"omitempty,max=1440"`
}

// CreateExamRequest is the payload for creating a new exam.
type CreateExamRequest struct {
	Title           string           `json:"title" binding:"required,min=3,max=255"`
	Description     string           `json:"description" binding:"omitempty,max=2000"`
	SubjectCode     string           `json:"subject_code" binding:"required,min=2,max=64"`
	ExamCode        string           `json:"exam_code" binding:"required,min=4,max=32,alphanum"`
	Questions       []Question       `json:"questions" binding:"required,min=1,dive"`
	ParticipantRule *ParticipantRule `json:"participant_rule" binding:"omitempty"`
	ExamTiming
}

// UpdateExamRequest is the payload for updating an existing exam.
// Nil fields are left untouched; timing is replaced as a whole when present.
type UpdateExamRequest struct {
	Title           *string          `json:"title" binding:"omitempty,min=3,max=255"`
	Description     *string          `json:"description" binding:"omitempty,max=2000"`
	SubjectCode     *string          `json:"subject_code" binding:"omitempty,min=2,max=64"`
	Questions       []Question       `json:"questions" binding:"omitempty,min=1,dive"`
	ParticipantRule *ParticipantRule `json:"participant_rule" binding:"omitempty"`
	Timing          *ExamTiming      `json:"timing" binding:"omitempty"`
}

// CheckExamRequest covers both forms of the pre-join credential check.
type CheckExamRequest struct {
	CreatedBy     string `json:"created_by" form:"created_by" binding:"required"`
	ExamID        string `json:"exam_id" form:"exam_id"`
	ParticipantID string `json:"participant_id" form:"participant_id" binding:"omitempty,max=128"`
	SubjectCode   string `json:"subject_code" form:"subject_code"`
	ExamCode      string `json:"exam_code" form:"exam_code"`
}
