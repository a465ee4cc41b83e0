package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// QuestionnaireResponse is one tester's completed submission. It is appended
// to the questionnaire's response worksheet as a single immutable row.
//
// Body, when set, is the submission exactly as the client sent it; it is
// what gets stored, with tid replaced, so fields this type does not model
// survive.
type QuestionnaireResponse struct {
	QID  string                 `json:"qid" binding:"max=100"`
	TID  string                 `json:"tid"`
	Pre  []QuestionResponse     `json:"pre"`
	Pair []PairQuestionResponse `json:"pair" binding:"dive"`
	Post []QuestionResponse     `json:"post"`

	Body json.RawMessage `json:"-"`
}

// Document returns the JSON stored for r: Body with qid and tid set to r's
// values, or the typed encoding when there is no Body.
func (r *QuestionnaireResponse) Document() ([]byte, error) {
	if len(r.Body) == 0 {
		return json.Marshal(r)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(r.Body, &fields); err != nil {
		return nil, fmt.Errorf("response body: %w", err)
	}
	if fields == nil {
		return nil, errors.New("response body is not a JSON object")
	}
	for key, value := range map[string]string{"qid": r.QID, "tid": r.TID} {
		encoded, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		fields[key] = encoded
	}
	return json.Marshal(fields)
}

// ResponseType is the discriminant of a QuestionResponse.
type ResponseType string

const (
	ResponseTypeText           ResponseType = "text"
	ResponseTypeScale          ResponseType = "scale"
	ResponseTypeMultipleChoice ResponseType = "multiple-choice"
)

// QuestionResponse answers a pre or post question. Text carries the answer for
// text and multiple-choice responses, Value for scale responses.
//
// Inferred is set when the client sent no type; Type then holds the guess
// made from the answer's JSON kind, and encoding leaves the tag out again.
type QuestionResponse struct {
	Type     ResponseType
	Question string
	Text     string
	Value    float64
	Inferred bool
}

func TextResponse(question, answer string) QuestionResponse {
	return QuestionResponse{Type: ResponseTypeText, Question: question, Text: answer}
}

func ScaleResponse(question string, value float64) QuestionResponse {
	return QuestionResponse{Type: ResponseTypeScale, Question: question, Value: value}
}

func ChoiceResponse(question, selected string) QuestionResponse {
	return QuestionResponse{Type: ResponseTypeMultipleChoice, Question: question, Text: selected}
}

func (r QuestionResponse) MarshalJSON() ([]byte, error) {
	tag := r.Type
	if r.Inferred {
		tag = ""
	}
	switch r.Type {
	case ResponseTypeText, ResponseTypeMultipleChoice:
		return json.Marshal(struct {
			Type     ResponseType `json:"type,omitempty"`
			Question string       `json:"question"`
			Response string       `json:"response"`
		}{tag, r.Question, r.Text})
	case ResponseTypeScale:
		return json.Marshal(struct {
			Type     ResponseType `json:"type,omitempty"`
			Question string       `json:"question"`
			Response float64      `json:"response"`
		}{tag, r.Question, r.Value})
	default:
		return nil, fmt.Errorf("marshal response: unknown type %q", r.Type)
	}
}

// UnmarshalJSON accepts both the tagged shape and the untagged one older
// clients send. For the latter a numeric answer is read as a scale response
// and a string answer as a text response, and the result is marked Inferred
// since an untagged string may equally be a multiple-choice selection.
func (r *QuestionResponse) UnmarshalJSON(data []byte) error {
	var w struct {
		Type     ResponseType    `json:"type"`
		Question string          `json:"question"`
		Response json.RawMessage `json:"response"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	raw := bytes.TrimSpace(w.Response)
	isString := len(raw) > 0 && raw[0] == '"'

	t := w.Type
	if t == "" {
		if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
			return errors.New("response is missing both type and answer")
		}
		if isString {
			t = ResponseTypeText
		} else {
			t = ResponseTypeScale
		}
	}

	out := QuestionResponse{Type: t, Question: w.Question, Inferred: w.Type == ""}
	switch t {
	case ResponseTypeText, ResponseTypeMultipleChoice:
		if len(raw) > 0 && !bytes.Equal(raw, []byte("null")) {
			if err := json.Unmarshal(raw, &out.Text); err != nil {
				return fmt.Errorf("%s response to %q: %w", t, w.Question, err)
			}
		}
	case ResponseTypeScale:
		if len(raw) > 0 && !bytes.Equal(raw, []byte("null")) {
			if err := json.Unmarshal(raw, &out.Value); err != nil {
				return fmt.Errorf("scale response to %q: %w", w.Question, err)
			}
		}
	default:
		return fmt.Errorf("unknown response type %q", t)
	}

	*r = out
	return nil
}

// Preference is the outcome of one listening round.
type Preference int

const (
	PreferNeutral Preference = 0
	PreferFirst   Preference = 1
	PreferSecond  Preference = 2
)

// PairQuestionResponse records both rounds of one pairwise comparison.
type PairQuestionResponse struct {
	Question string     `json:"question"`
	Audios   [2]string  `json:"audios"`
	Round1   Preference `json:"round1" binding:"min=0,max=2"`
	Round2   Preference `json:"round2" binding:"min=0,max=2"`
}
