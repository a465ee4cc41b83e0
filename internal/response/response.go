package response

import (
	"github.com/gin-gonic/gin"
)

// ErrorBody is the JSON body of every failed request. Error carries the
// human-readable message clients display.
type ErrorBody struct {
	Error     string            `json:"error"`
	Code      ErrCode           `json:"code"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

// SubmitBody acknowledges a stored questionnaire response.
type SubmitBody struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	TID     string `json:"tid"`
}

// ────────────────────────────────────────────────────────────────────────────
// Helper builders
// ────────────────────────────────────────────────────────────────────────────

// Success sends data as the JSON body with the given status code.
func Success(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, data)
}

// Fail sends an error response with an error code and no field-level details.
func Fail(c *gin.Context, statusCode int, code ErrCode) {
	c.JSON(statusCode, buildError(c, code, nil))
}

// FailWithFields sends an error response with field-level validation details.
func FailWithFields(c *gin.Context, statusCode int, code ErrCode, fields map[string]string) {
	c.JSON(statusCode, buildError(c, code, fields))
}

// AbortFail aborts the middleware chain and sends an error response.
func AbortFail(c *gin.Context, statusCode int, code ErrCode) {
	c.AbortWithStatusJSON(statusCode, buildError(c, code, nil))
}

// ────────────────────────────────────────────────────────────────────────────
// Internal helpers
// ────────────────────────────────────────────────────────────────────────────

func buildError(c *gin.Context, code ErrCode, fields map[string]string) ErrorBody {
	reqID, _ := c.Get(ContextKeyRequestID)
	id, _ := reqID.(string)
	return ErrorBody{
		Error:     GetMessage(code),
		Code:      code,
		Fields:    fields,
		RequestID: id,
	}
}
