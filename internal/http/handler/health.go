package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/janburzinski/notra/internal/http/dto"
)

type HealthHandler struct {
	commitSHA *string
	now       func() time.Time
}

func NewHealthHandler(commitSHA string) *HealthHandler {
	h := &HealthHandler{now: time.Now}
	if commitSHA != "" {
		h.commitSHA = &commitSHA
	}
	return h
}

func (h *HealthHandler) Healthcheck(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, dto.HealthcheckResponse{
		OK:        true,
		Time:      h.now().UTC().Format("2006-01-02T15:04:05.000Z"),
		CommitSHA: h.commitSHA,
	})
}
