package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/listening-survey/internal/model"
	"github.com/stemsi/listening-survey/internal/response"
	"github.com/stemsi/listening-survey/internal/service"
	"github.com/stemsi/listening-survey/internal/storeerr"
	"github.com/stemsi/listening-survey/internal/validator"
)

type ResponseHandler struct {
	surveyService *service.SurveyService
}

func NewResponseHandler(surveyService *service.SurveyService) *ResponseHandler {
	return &ResponseHandler{surveyService: surveyService}
}

// Submit godoc
// POST /api/responses
func (h *ResponseHandler) Submit(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
		return
	}

	var req model.QuestionnaireResponse
	if code, fields := validator.BindBody(body, &req); code != "" {
		response.FailWithFields(c, http.StatusBadRequest, code, fields)
		return
	}
	// The stored document is the client's own JSON; fields the model does
	// not know about survive.
	req.Body = body

	if req.QID == "" {
		response.Fail(c, http.StatusBadRequest, response.ErrQIDRequired)
		return
	}

	tid, err := h.surveyService.SubmitResponse(c.Request.Context(), &req)
	if err != nil {
		code := response.ErrSaveFailed
		if errors.Is(err, storeerr.ErrConfiguration) {
			code = response.ErrStorageMisconfigured
		}
		response.Fail(c, http.StatusInternalServerError, code)
		return
	}

	response.Success(c, http.StatusOK, response.SubmitBody{
		Success: true,
		Message: "Response saved successfully",
		TID:     tid,
	})
}
