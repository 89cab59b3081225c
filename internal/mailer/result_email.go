package mailer

import (
	"bytes"
	"embed"
	"fmt"
	htmltmpl "html/template"
	"net/mail"
	texttmpl "text/template"
	"time"

	"github.com/google/uuid"
)

//go:embed templates/*
var templateFS embed.FS

var (
	resultText = texttmpl.Must(texttmpl.ParseFS(templateFS, "templates/result.txt")).Option("missingkey=error")
	resultHTML = htmltmpl.Must(htmltmpl.ParseFS(templateFS, "templates/result.gohtml")).Option("missingkey=error")
)

// ResultEmail is the queued job announcing a graded result to a participant.
type ResultEmail struct {
	ResultID       uuid.UUID `json:"result_id"`
	ExamID         uuid.UUID `json:"exam_id"`
	ExamTitle      string    `json:"exam_title"`
	ParticipantID  string    `json:"participant_id"`
	Email          string    `json:"email"`
	Score          int       `json:"score"`
	TotalQuestions int       `json:"total_questions"`
	Percent        float64   `json:"percent"`
	ViewURL        string    `json:"view_url"`
	LinkExpiresAt  time.Time `json:"link_expires_at"`
	Attempts       int       `json:"attempts"`
}

// Render builds the message for a result email.
func (e ResultEmail) Render() (Message, error) {
	var text, html bytes.Buffer
	if err := resultText.Execute(&text, e); err != nil {
		return Message{}, fmt.Errorf("render text: %w", err)
	}
	if err := resultHTML.Execute(&html, e); err != nil {
		return Message{}, fmt.Errorf("render html: %w", err)
	}
	return Message{
		To:      mail.Address{Name: e.ParticipantID, Address: e.Email},
		Subject: fmt.Sprintf("Your result for %s", e.ExamTitle),
		Text:    text.String(),
		HTML:    html.String(),
	}, nil
}
