// Package scoring grades submitted answers against an exam's answer key.
package scoring

import (
	"github.com/shopspring/decimal"

	"github.com/stemsi/studyplan-backend/internal/model"
)

// Reason explains how an answer was graded.
type Reason string

const (
	ReasonCorrect          Reason = "correct"
	ReasonWrong            Reason = "wrong"
	ReasonOutOfRange       Reason = "out_of_range"
	ReasonNoAnswerKey      Reason = "no_answer_key"
	ReasonDuplicate        Reason = "duplicate"
	ReasonInvalidSelection Reason = "invalid_selection"
)

// AnswerDetail is the grading of one submitted answer.
type AnswerDetail struct {
	QuestionIndex       int    `json:"question_index"`
	SelectedChoiceIndex int    `json:"selected_choice_index"`
	CorrectChoiceIndex  int    `json:"correct_choice_index"`
	IsCorrect           bool   `json:"is_correct"`
	Reason              Reason `json:"reason"`
}

// Result is the outcome of grading a submission.
type Result struct {
	Score   int            `json:"score"`
	Details []AnswerDetail `json:"details"`
}

// CorrectIndex returns the index of the first correct choice, or -1.
func CorrectIndex(q model.Question) int {
	for i, c := range q.Choices {
		if c.IsCorrect {
			return i
		}
	}
	return -1
}

// Score grades answers in submission order. Answers pointing outside the
// question list, or repeating an already graded question, earn nothing and
// are not errors.
func Score(questions []model.Question, answers []model.Answer) Result {
	res := Result{Details: make([]AnswerDetail, 0, len(answers))}
	seen := make(map[int]struct{}, len(answers))

	for _, a := range answers {
		d := AnswerDetail{
			QuestionIndex:       a.QuestionIndex,
			SelectedChoiceIndex: a.SelectedChoiceIndex,
			CorrectChoiceIndex:  -1,
		}

		if a.QuestionIndex < 0 || a.QuestionIndex >= len(questions) {
			d.Reason = ReasonOutOfRange
			res.Details = append(res.Details, d)
			continue
		}
		if _, dup := seen[a.QuestionIndex]; dup {
			d.Reason = ReasonDuplicate
			res.Details = append(res.Details, d)
			continue
		}
		seen[a.QuestionIndex] = struct{}{}

		q := questions[a.QuestionIndex]
		d.CorrectChoiceIndex = CorrectIndex(q)

		switch {
		case d.CorrectChoiceIndex < 0:
			d.Reason = ReasonNoAnswerKey
		case a.SelectedChoiceIndex < 0 || a.SelectedChoiceIndex >= len(q.Choices):
			d.Reason = ReasonInvalidSelection
		case a.SelectedChoiceIndex == d.CorrectChoiceIndex:
			d.IsCorrect = true
			d.Reason = ReasonCorrect
			res.Score++
		default:
			d.Reason = ReasonWrong
		}
		res.Details = append(res.Details, d)
	}

	return res
}

// Grade returns answers with IsCorrect filled from details, for storage.
func Grade(answers []model.Answer, details []AnswerDetail) []model.Answer {
	out := make([]model.Answer, len(answers))
	for i, a := range answers {
		out[i] = a
		if i < len(details) {
			ok := details[i].IsCorrect
			out[i].IsCorrect = &ok
		}
	}
	return out
}

// Percent is score/total*100 rounded half-up to two decimals; 0 when total is 0.
func Percent(score, total int) float64 {
	if total <= 0 {
		return 0
	}
	p := decimal.NewFromInt(int64(score)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(total))).
		Round(2)
	f, _ := p.Float64()
	return f
}
