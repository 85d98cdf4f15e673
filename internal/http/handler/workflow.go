package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/janburzinski/notra/internal/http/dto"
	"github.com/janburzinski/notra/internal/model"
	"github.com/janburzinski/notra/internal/service"
	"github.com/janburzinski/notra/internal/workflow"
)

// WorkflowHandler serves the internal routes that start runs directly.
type WorkflowHandler struct {
	starter service.WorkflowStarter
}

func NewWorkflowHandler(starter service.WorkflowStarter) *WorkflowHandler {
	return &WorkflowHandler{starter: starter}
}

func (h *WorkflowHandler) StartEvent(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.EventWorkflowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid request body", Message: err.Error()})
		return
	}

	raw, err := json.Marshal(req)
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid request body", Message: err.Error()})
		return
	}
	payload, err := workflow.ParseEventPayload(raw)
	if err != nil {
		slog.WarnContext(ctx, "invalid event workflow payload", "error", err)
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid payload", Message: err.Error()})
		return
	}

	ids, err := h.starter.Start(ctx, service.RunRequest{
		Workflow:  model.WorkflowEvent,
		TriggerID: payload.TriggerID,
		Payload:   payload,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to start event workflow", "error", err, "trigger_id", payload.TriggerID)
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "failed to start workflow"})
		return
	}

	c.JSON(http.StatusAccepted, dto.WorkflowRunResponse{WorkflowRunID: firstID(ids)})
}

func (h *WorkflowHandler) StartSchedule(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.ScheduleWorkflowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid request body", Message: err.Error()})
		return
	}

	ids, err := h.starter.Start(ctx, service.RunRequest{
		Workflow:  model.WorkflowSchedule,
		TriggerID: req.TriggerID,
		Payload:   workflow.SchedulePayload{TriggerID: req.TriggerID, Manual: req.Manual},
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to start schedule workflow", "error", err, "trigger_id", req.TriggerID)
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "failed to start workflow"})
		return
	}

	c.JSON(http.StatusAccepted, dto.WorkflowRunResponse{WorkflowRunID: firstID(ids)})
}

func firstID(ids []string) string {
	if len(ids) == 0 {
		return ""
	}
	return ids[0]
}
