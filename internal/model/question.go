package model

import (
	"encoding/json"
	"errors"
	"fmt"
)

// QuestionType is the discriminant carried by every question on the wire.
type QuestionType string

const (
	QuestionTypeShortAnswer    QuestionType = "short-answer"
	QuestionTypeLongAnswer     QuestionType = "long-answer"
	QuestionTypeMultipleChoice QuestionType = "multiple-choice"
	QuestionTypeScale          QuestionType = "scale"
	QuestionTypePair           QuestionType = "pair"
)

// IsPreQuestion reports whether t may appear in the pre and post phases.
func (t QuestionType) IsPreQuestion() bool {
	switch t {
	case QuestionTypeShortAnswer, QuestionTypeLongAnswer, QuestionTypeMultipleChoice, QuestionTypeScale:
		return true
	}
	return false
}

// Question is a tagged union over the question variants. Exactly one of the
// payload pointers is set for variants that carry extra data:
// Choice for multiple-choice, Scale for scale, Pair for pair.
type Question struct {
	Type     QuestionType
	Question string

	Choice *ChoiceOptions
	Scale  *ScaleRange
	Pair   *PairOptions
}

// ChoiceOptions is the ordered option list of a multiple-choice question.
type ChoiceOptions struct {
	Options []string
}

// ScaleRange bounds a scale question.
type ScaleRange struct {
	Min  float64
	Max  float64
	Step float64
}

// PairOptions configures a pairwise audio comparison question.
type PairOptions struct {
	AllowNeutral bool
}

func ShortAnswer(text string) Question {
	return Question{Type: QuestionTypeShortAnswer, Question: text}
}

func LongAnswer(text string) Question {
	return Question{Type: QuestionTypeLongAnswer, Question: text}
}

func MultipleChoice(text string, options ...string) Question {
	return Question{Type: QuestionTypeMultipleChoice, Question: text, Choice: &ChoiceOptions{Options: options}}
}

func Scale(text string, min, max, step float64) Question {
	return Question{Type: QuestionTypeScale, Question: text, Scale: &ScaleRange{Min: min, Max: max, Step: step}}
}

func PairComparison(text string, allowNeutral bool) Question {
	return Question{Type: QuestionTypePair, Question: text, Pair: &PairOptions{AllowNeutral: allowNeutral}}
}

// Validate checks the variant payload against its discriminant.
func (q Question) Validate() error {
	if q.Question == "" {
		return errors.New("question text is required")
	}
	switch q.Type {
	case QuestionTypeShortAnswer, QuestionTypeLongAnswer:
	case QuestionTypeMultipleChoice:
		if q.Choice == nil || len(q.Choice.Options) == 0 {
			return fmt.Errorf("multiple-choice question %q has no options", q.Question)
		}
	case QuestionTypeScale:
		if q.Scale == nil {
			return fmt.Errorf("scale question %q has no range", q.Question)
		}
		if q.Scale.Max <= q.Scale.Min {
			return fmt.Errorf("scale question %q: max must be greater than min", q.Question)
		}
		if q.Scale.Step <= 0 {
			return fmt.Errorf("scale question %q: step must be positive", q.Question)
		}
	case QuestionTypePair:
	default:
		return fmt.Errorf("unknown question type %q", q.Type)
	}
	return nil
}

// questionWire is the flat JSON shape shared by all variants.
type questionWire struct {
	Type         QuestionType `json:"type"`
	Question     string       `json:"question"`
	Options      []string     `json:"options,omitempty"`
	Min          *float64     `json:"min,omitempty"`
	Max          *float64     `json:"max,omitempty"`
	Step         *float64     `json:"step,omitempty"`
	AllowNeutral *bool        `json:"allowNeutral,omitempty"`
}

func (q Question) MarshalJSON() ([]byte, error) {
	switch q.Type {
	case QuestionTypeShortAnswer, QuestionTypeLongAnswer:
		return json.Marshal(struct {
			Type     QuestionType `json:"type"`
			Question string       `json:"question"`
		}{q.Type, q.Question})
	case QuestionTypeMultipleChoice:
		options := []string{}
		if q.Choice != nil && q.Choice.Options != nil {
			options = q.Choice.Options
		}
		return json.Marshal(struct {
			Type     QuestionType `json:"type"`
			Question string       `json:"question"`
			Options  []string     `json:"options"`
		}{q.Type, q.Question, options})
	case QuestionTypeScale:
		var r ScaleRange
		if q.Scale != nil {
			r = *q.Scale
		}
		return json.Marshal(struct {
			Type     QuestionType `json:"type"`
			Question string       `json:"question"`
			Min      float64      `json:"min"`
			Max      float64      `json:"max"`
			Step     float64      `json:"step"`
		}{q.Type, q.Question, r.Min, r.Max, r.Step})
	case QuestionTypePair:
		var allow bool
		if q.Pair != nil {
			allow = q.Pair.AllowNeutral
		}
		return json.Marshal(struct {
			Type         QuestionType `json:"type"`
			Question     string       `json:"question"`
			AllowNeutral bool         `json:"allowNeutral"`
		}{q.Type, q.Question, allow})
	default:
		return nil, fmt.Errorf("marshal question: unknown type %q", q.Type)
	}
}

func (q *Question) UnmarshalJSON(data []byte) error {
	var w questionWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	out := Question{Type: w.Type, Question: w.Question}
	switch w.Type {
	case QuestionTypeShortAnswer, QuestionTypeLongAnswer:
	case QuestionTypeMultipleChoice:
		options := w.Options
		if options == nil {
			options = []string{}
		}
		out.Choice = &ChoiceOptions{Options: options}
	case QuestionTypeScale:
		out.Scale = &ScaleRange{Min: deref(w.Min), Max: deref(w.Max), Step: deref(w.Step)}
	case QuestionTypePair:
		out.Pair = &PairOptions{AllowNeutral: w.AllowNeutral != nil && *w.AllowNeutral}
	case "":
		return errors.New("question is missing its type")
	default:
		return fmt.Errorf("unknown question type %q", w.Type)
	}

	*q = out
	return nil
}

func deref(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}
