package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/janburzinski/notra/internal/http/dto"
	"github.com/janburzinski/notra/internal/http/middleware"
	"github.com/janburzinski/notra/internal/service"
)

const manualRunSuccessMessage = "Schedule triggered successfully"

type ManualRunHandler struct {
	service service.ManualRunService
}

func NewManualRunHandler(svc service.ManualRunService) *ManualRunHandler {
	return &ManualRunHandler{service: svc}
}

func (h *ManualRunHandler) Run(c *gin.Context) {
	ctx := c.Request.Context()

	organizationID := c.Param("organizationId")
	triggerID := strings.TrimSpace(c.Query("triggerId"))
	if triggerID == "" {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "triggerId is required"})
		return
	}

	userID := c.GetString(middleware.UserIDKey)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, dto.ErrorResponse{Error: "Unauthorized"})
		return
	}

	result, err := h.service.Run(ctx, service.ManualRunRequest{
		OrganizationID: organizationID,
		TriggerID:      triggerID,
		TriggeredBy:    userID,
	})
	if err != nil {
		var mre *service.ManualRunError
		if errors.As(err, &mre) {
			status := mre.Status
			if status == 0 {
				status = http.StatusBadRequest
			}
			c.JSON(status, dto.ErrorResponse{
				Error:   mre.Message,
				Message: mre.Message,
				Code:    mre.Code,
				Status:  status,
			})
			return
		}
		slog.ErrorContext(ctx, "failed to trigger schedule", "error", err, "trigger_id", triggerID, "organization_id", organizationID)
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Error:  "Failed to trigger schedule",
			Status: http.StatusInternalServerError,
		})
		return
	}

	c.JSON(http.StatusOK, dto.ManualRunResponse{
		Success:       true,
		WorkflowRunID: result.WorkflowRunID,
		Kind:          string(result.Kind),
		Message:       manualRunSuccessMessage,
	})
}
