package service

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/listening-survey/internal/model"
	"github.com/stemsi/listening-survey/internal/repository"
)

// SurveyService is what the HTTP boundary talks to.
type SurveyService struct {
	store *repository.RecordStore
	log   zerolog.Logger
	newID func() string
}

func NewSurveyService(store *repository.RecordStore, log zerolog.Logger) *SurveyService {
	return &SurveyService{
		store: store,
		log:   log.With().Str("component", "survey_service").Logger(),
		newID: uuid.NewString,
	}
}

// SubmitResponse stamps a fresh tester id on resp, replacing whatever the
// client sent, and appends it. It returns the assigned id.
func (s *SurveyService) SubmitResponse(ctx context.Context, resp *model.QuestionnaireResponse) (string, error) {
	resp.TID = s.newID()
	if err := s.store.SaveResponse(ctx, resp); err != nil {
		s.log.Error().Err(err).Str("qid", resp.QID).Msg("Error processing questionnaire response")
		return "", err
	}
	return resp.TID, nil
}

// FindQuestionnaire exposes the full lookup outcome so the caller can pick a
// status for each case.
func (s *SurveyService) FindQuestionnaire(ctx context.Context, id string) repository.Lookup {
	return s.store.FindQuestionnaire(ctx, id)
}

// GetQuestionnaire reports failures as not found.
func (s *SurveyService) GetQuestionnaire(ctx context.Context, id string) (json.RawMessage, bool) {
	return s.store.GetQuestionnaire(ctx, id)
}

func (s *SurveyService) QuestionnaireIDs(ctx context.Context) []string {
	return s.store.GetAllQuestionnaireIDs(ctx)
}
