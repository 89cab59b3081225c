package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/stemsi/studyplan-backend/internal/apperr"
	"github.com/stemsi/studyplan-backend/internal/model"
	"github.com/stemsi/studyplan-backend/internal/scoring"
)

const resultSheet = "Results"

var resultHeader = []interface{}{
	"Participant ID", "Email", "Status", "Score", "Total Questions", "Percent",
	"Started At", "Ended At", "Result Sent At",
}

// ResultExport is a rendered spreadsheet.
type ResultExport struct {
	Filename string
	Data     []byte
}

// ExportResults renders every result of an owned exam as an XLSX workbook.
func (s *ExamService) ExportResults(ctx context.Context, ownerID, examID uuid.UUID) (*ResultExport, error) {
	exam, err := s.ownedExam(ctx, ownerID, examID)
	if err != nil {
		return nil, err
	}

	results, _, err := s.results.ListByExam(ctx, examID, "", 0, 0)
	if err != nil {
		return nil, apperr.Internal(err, "list results")
	}

	data, err := renderResultWorkbook(exam, results)
	if err != nil {
		return nil, apperr.Internal(err, "render results workbook")
	}

	s.log.Info().
		Str("exam_id", exam.ID.String()).
		Int("rows", len(results)).
		Msg("Results exported")

	return &ResultExport{
		Filename: fmt.Sprintf("%s-results.xlsx", exportSlug(exam)),
		Data:     data,
	}, nil
}

func renderResultWorkbook(exam *model.Exam, results []model.ExamResult) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), resultSheet); err != nil {
		return nil, err
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}
	if err := f.SetSheetRow(resultSheet, "A1", &resultHeader); err != nil {
		return nil, err
	}
	if err := f.SetRowStyle(resultSheet, 1, 1, bold); err != nil {
		return nil, err
	}

	for i := range results {
		res := &results[i]
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}

		var score, percent interface{}
		total := res.TotalQuestions
		if res.Status.IsTerminal() {
			sc, t := resultScore(exam, res)
			score, total = sc, t
			percent = scoring.Percent(sc, t)
		}

		row := []interface{}{
			res.ParticipantID,
			res.ParticipantEmail,
			string(res.Status),
			score,
			total,
			percent,
			formatTime(&res.StartedAt),
			formatTime(res.EndedAt),
			formatTime(res.ResultSentAt),
		}
		if err := f.SetSheetRow(resultSheet, cell, &row); err != nil {
			return nil, err
		}
	}

	if err := f.SetColWidth(resultSheet, "A", "I", 20); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// exportSlug keeps letters, digits and dashes of the exam code.
func exportSlug(exam *model.Exam) string {
	slug := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			return r
		}
		return -1
	}, exam.ExamCode)
	if slug == "" {
		return exam.ID.String()
	}
	return slug
}
