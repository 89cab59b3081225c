package model

import (
	"encoding/json"
)

// ContentBlockType enumerates the kinds of question content.
type ContentBlockType string

const (
	ContentText  ContentBlockType = "text"
	ContentImage ContentBlockType = "image"
)

// ContentBlock is one piece of a question prompt (a paragraph or an image URL).
type ContentBlock struct {
	Type  ContentBlockType `json:"type" binding:"required,oneof=text image"`
	Value string           `json:"value" binding:"required"`
}

// Choice is an answer option. IsCorrect is the grading secret.
type Choice struct {
	Text      string `json:"text" binding:"required"`
	IsCorrect bool   `json:"is_correct"`
}

// Question is a multiple-choice item as stored in the exam document.
type Question struct {
	Content []ContentBlock `json:"content" binding:"required,min=1,dive"`
	Choices []Choice       `json:"choices" binding:"required,min=2,dive"`
}

// PublicChoice is a Choice as participants see it.
type PublicChoice struct {
	Text string `json:"text"`
}

// PublicQuestion is the participant-facing projection of a Question.
// It has no field that can carry the answer key.
type PublicQuestion struct {
	Index   int            `json:"index"`
	Content []ContentBlock `json:"content"`
	Choices []PublicChoice `json:"choices"`
}

// Public projects q for participants.
func (q Question) Public(index int) PublicQuestion {
	choices := make([]PublicChoice, len(q.Choices))
	for i, c := range q.Choices {
		choices[i] = PublicChoice{Text: c.Text}
	}
	content := make([]ContentBlock, len(q.Content))
	copy(content, q.Content)
	return PublicQuestion{Index: index, Content: content, Choices: choices}
}

// PublicQuestions projects a whole question list.
func PublicQuestions(qs []Question) []PublicQuestion {
	out := make([]PublicQuestion, len(qs))
	for i, q := range qs {
		out[i] = q.Public(i)
	}
	return out
}

// UnmarshalJSON accepts a bare string as a text-only choice and the legacy
// isCorrect / correct keys in any scalar form.
func (c *Choice) UnmarshalJSON(data []byte) error {
	if s, ok := flexString(data); ok {
		*c = Choice{Text: s}
		return nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}

	out := Choice{}
	if raw, ok := pick(obj, "text", "label", "value"); ok {
		out.Text, _ = flexString(raw)
	}
	if raw, ok := pick(obj, "is_correct", "isCorrect", "correct"); ok {
		out.IsCorrect, _ = flexBool(raw)
	}
	*c = out
	return nil
}

// UnmarshalJSON accepts a plain-string prompt, a single block, or a block list,
// under either "content" or the legacy "question"/"text" keys.
func (q *Question) UnmarshalJSON(data []byte) error {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}

	out := Question{}
	if raw, ok := pick(obj, "content", "question", "text"); ok {
		out.Content = decodeContent(raw)
	}
	if raw, ok := pick(obj, "choices", "options"); ok {
		if err := json.Unmarshal(raw, &out.Choices); err != nil {
			return err
		}
	}
	*q = out
	return nil
}

func decodeContent(raw json.RawMessage) []ContentBlock {
	if s, ok := flexString(raw); ok {
		return []ContentBlock{{Type: ContentText, Value: s}}
	}
	var blocks []ContentBlock
	if err := json.Unmarshal(raw, &blocks); err == nil {
		return blocks
	}
	var single ContentBlock
	if err := json.Unmarshal(raw, &single); err == nil && single.Value != "" {
		return []ContentBlock{single}
	}
	return nil
}
