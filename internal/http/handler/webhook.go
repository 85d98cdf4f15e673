package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/janburzinski/notra/internal/http/dto"
	"github.com/janburzinski/notra/internal/service"
)

const maxWebhookBody = 5 << 20

type GitHubWebhookHandler struct {
	service service.WebhookService
}

func NewGitHubWebhookHandler(svc service.WebhookService) *GitHubWebhookHandler {
	return &GitHubWebhookHandler{service: svc}
}

func (h *GitHubWebhookHandler) HandleEvent(c *gin.Context) {
	ctx := c.Request.Context()

	eventType := c.GetHeader("X-GitHub-Event")
	if eventType == "" {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "missing event type"})
		return
	}
	signature := c.GetHeader("X-Hub-Signature-256")
	if signature == "" {
		c.JSON(http.StatusUnauthorized, dto.ErrorResponse{Error: "missing signature"})
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "failed to read request body"})
		return
	}

	result, err := h.service.HandleGitHub(ctx, service.GitHubDelivery{
		IntegrationID: c.Param("integrationId"),
		EventType:     eventType,
		DeliveryID:    c.GetHeader("X-GitHub-Delivery"),
		Signature:     signature,
		Body:          body,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrIntegrationNotFound):
			c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "integration not found"})
		case errors.Is(err, service.ErrWebhookNotConfigured):
			c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "webhook not configured"})
		case errors.Is(err, service.ErrInvalidSignature):
			c.JSON(http.StatusUnauthorized, dto.ErrorResponse{Error: "invalid signature"})
		case errors.Is(err, service.ErrUnsupportedEvent):
			c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "unsupported event", Message: err.Error()})
		default:
			slog.ErrorContext(ctx, "failed to process github webhook", "error", err, "event", eventType)
			c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "failed to process webhook"})
		}
		return
	}

	status := http.StatusAccepted
	if result.Ignored {
		status = http.StatusOK
	}
	c.JSON(status, result)
}
