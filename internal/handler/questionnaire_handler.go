package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/listening-survey/internal/repository"
	"github.com/stemsi/listening-survey/internal/response"
	"github.com/stemsi/listening-survey/internal/service"
	"github.com/stemsi/listening-survey/internal/storeerr"
)

type QuestionnaireHandler struct {
	surveyService *service.SurveyService
}

func NewQuestionnaireHandler(surveyService *service.SurveyService) *QuestionnaireHandler {
	return &QuestionnaireHandler{surveyService: surveyService}
}

// GetByID godoc
// GET /api/questionnaires/:id
func (h *QuestionnaireHandler) GetByID(c *gin.Context) {
	raw, ok := h.lookup(c, c.Param("id"))
	if !ok {
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", raw)
}

// PageData godoc
// GET /questionnaire?id=
//
// Loader for the questionnaire page: the same lookup, wrapped for the page.
func (h *QuestionnaireHandler) PageData(c *gin.Context) {
	raw, ok := h.lookup(c, c.Query("id"))
	if !ok {
		return
	}
	response.Success(c, http.StatusOK, gin.H{"questionnaire": raw})
}

// ListIDs godoc
// GET /api/questionnaires
func (h *QuestionnaireHandler) ListIDs(c *gin.Context) {
	ids := h.surveyService.QuestionnaireIDs(c.Request.Context())
	response.Success(c, http.StatusOK, gin.H{"ids": ids})
}

// lookup writes the failure response itself and otherwise returns the stored
// questionnaire bytes. Backend and decode failures answer 404 like a missing
// row; only a configuration defect answers 500. The id is matched exactly as
// sent.
func (h *QuestionnaireHandler) lookup(c *gin.Context, id string) (json.RawMessage, bool) {
	if id == "" {
		response.Fail(c, http.StatusBadRequest, response.ErrIDRequired)
		return nil, false
	}

	result := h.surveyService.FindQuestionnaire(c.Request.Context(), id)
	switch result.Status {
	case repository.LookupFound:
		return result.Raw, true
	case repository.LookupFailed:
		if errors.Is(result.Err, storeerr.ErrConfiguration) {
			response.Fail(c, http.StatusInternalServerError, response.ErrStorageMisconfigured)
			return nil, false
		}
	}
	response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	return nil, false
}
