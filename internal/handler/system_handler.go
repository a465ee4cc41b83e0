package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/listening-survey/internal/response"
)

type SystemHandler struct {
	backend string
}

func NewSystemHandler(backend string) *SystemHandler {
	return &SystemHandler{backend: backend}
}

// Health godoc
// GET /health
func (h *SystemHandler) Health(c *gin.Context) {
	response.Success(c, http.StatusOK, gin.H{"status": "ok", "storage": h.backend})
}
