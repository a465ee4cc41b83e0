package model

import (
	"fmt"
)

// Questionnaire is a survey definition. It is authored outside this service
// and stored as one JSON blob per row of the questionnaires worksheet.
type Questionnaire struct {
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Audios      map[string]string `json:"audios"`
	Strategy    Strategy          `json:"strategy"`
}

// Strategy orders the three phases a tester goes through.
type Strategy struct {
	Pre  PhaseQuestions `json:"pre"`
	Pair PairPhase      `json:"pair"`
	Post PhaseQuestions `json:"post"`
}

// PhaseQuestions holds the questions of the pre or post phase.
type PhaseQuestions struct {
	Questions []Question `json:"questions"`
}

// PairPhase configures the pairwise audio comparison trials.
type PairPhase struct {
	Questions []Question `json:"questions"`
	// SampleRate is the fraction of audio pairs presented, 0 to 1.
	SampleRate          float64    `json:"sampleRate"`
	AllowReplay         bool       `json:"allowReplay"`
	ShowPreviousAnswers bool       `json:"showPreviousAnswers"`
	AdditionalQuestions []Question `json:"additionalQuestions"`
}

// Validate enforces the questionnaire invariants.
func (q *Questionnaire) Validate() error {
	if q.ID == "" {
		return fmt.Errorf("questionnaire id is required")
	}
	if q.Strategy.Pair.SampleRate < 0 || q.Strategy.Pair.SampleRate > 1 {
		return fmt.Errorf("questionnaire %s: sampleRate %v outside [0,1]", q.ID, q.Strategy.Pair.SampleRate)
	}

	check := func(phase string, questions []Question, allowed func(QuestionType) bool) error {
		for i, question := range questions {
			if err := question.Validate(); err != nil {
				return fmt.Errorf("questionnaire %s: %s[%d]: %w", q.ID, phase, i, err)
			}
			if !allowed(question.Type) {
				return fmt.Errorf("questionnaire %s: %s[%d]: type %q not allowed here", q.ID, phase, i, question.Type)
			}
		}
		return nil
	}

	anyType := func(QuestionType) bool { return true }
	pairOnly := func(t QuestionType) bool { return t == QuestionTypePair }

	if err := check("pre", q.Strategy.Pre.Questions, QuestionType.IsPreQuestion); err != nil {
		return err
	}
	if err := check("pair", q.Strategy.Pair.Questions, pairOnly); err != nil {
		return err
	}
	if err := check("pair.additional", q.Strategy.Pair.AdditionalQuestions, anyType); err != nil {
		return err
	}
	return check("post", q.Strategy.Post.Questions, QuestionType.IsPreQuestion)
}
