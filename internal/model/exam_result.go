package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ResultStatus enumerates exam result states.
type ResultStatus string

const (
	ResultStatusInProgress ResultStatus = "in_progress"
	ResultStatusSubmitted  ResultStatus = "submitted"
	ResultStatusLate       ResultStatus = "late"
)

// IsTerminal reports whether no further submission may change the result.
func (s ResultStatus) IsTerminal() bool {
	return s == ResultStatusSubmitted || s == ResultStatusLate
}

// IsViewable reports whether a result in this state may be shown to the participant.
func (s ResultStatus) IsViewable() bool {
	return s.IsTerminal()
}

// Answer is one submitted selection. QuestionIndex is -1 for entries that
// could not be read.
type Answer struct {
	QuestionIndex       int   `json:"question_index"`
	SelectedChoiceIndex int   `json:"selected_choice_index"`
	IsCorrect           *bool `json:"is_correct,omitempty"`
}

// UnmarshalJSON accepts camelCase and snake_case keys and numeric strings.
func (a *Answer) UnmarshalJSON(data []byte) error {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		*a = Answer{QuestionIndex: -1, SelectedChoiceIndex: -1}
		return nil
	}

	out := Answer{QuestionIndex: -1, SelectedChoiceIndex: -1}
	if raw, ok := pick(obj, "question_index", "questionIndex", "question"); ok {
		if n, ok := flexInt(raw); ok {
			out.QuestionIndex = n
		}
	}
	if raw, ok := pick(obj, "selected_choice_index", "selectedChoiceIndex", "selected_index", "selectedIndex", "choice"); ok {
		if n, ok := flexInt(raw); ok {
			out.SelectedChoiceIndex = n
		}
	}
	if raw, ok := pick(obj, "is_correct", "isCorrect"); ok {
		if b, ok := flexBool(raw); ok {
			out.IsCorrect = &b
		}
	}
	*a = out
	return nil
}

// ExamResult represents one participant's attempt at one exam.
type ExamResult struct {
	ID               uuid.UUID    `json:"id"`
	ExamID           uuid.UUID    `json:"exam_id"`
	ParticipantID    string       `json:"participant_id"`
	ParticipantEmail string       `json:"participant_email"`
	Answers          []Answer     `json:"answers"`
	StartedAt        time.Time    `json:"started_at"`
	EndedAt          *time.Time   `json:"ended_at,omitempty"`
	TotalQuestions   int          `json:"total_questions"`
	Score            *int         `json:"score,omitempty"`
	Status           ResultStatus `json:"status"`
	IsResultSent     bool         `json:"is_result_sent"`
	ResultSentAt     *time.Time   `json:"result_sent_at,omitempty"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

// JoinExamRequest is the payload for a participant joining an exam.
type JoinExamRequest struct {
	ParticipantID    string `json:"participant_id" binding:"required,max=128"`
	ParticipantEmail string `json:"participant_email" binding:"required,email,max=255"`
	SubjectCode      string `json:"subject_code" binding:"required,max=64"`
}

// SubmitExamRequest is the payload for submitting answers.
// Status is accepted for older clients and ignored.
type SubmitExamRequest struct {
	ParticipantID    string     `json:"participant_id" binding:"required,max=128"`
	ParticipantEmail string     `json:"participant_email" binding:"required,email,max=255"`
	Status           string     `json:"status" binding:"omitempty"`
	StartedAt        *time.Time `json:"started_at" binding:"omitempty"`
	Answers          []Answer   `json:"answers" binding:"max=1000"`
}

// SendResultsRequest lists the participants to notify.
type SendResultsRequest struct {
	Participants []string `json:"participants" binding:"required,min=1,max=500,dive,required"`
}

// ResultListFilter narrows an owner's result listing.
type ResultListFilter struct {
	Status  string `form:"status" binding:"omitempty,oneof=in_progress submitted late"`
	Page    int    `form:"page" binding:"omitempty,min=1"`
	PerPage int    `form:"per_page" binding:"omitempty,min=1,max=200"`
}
