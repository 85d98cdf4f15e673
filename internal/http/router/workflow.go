package router

import (
	"github.com/gin-gonic/gin"

	"github.com/janburzinski/notra/internal/http/handler"
)

func WorkflowRouter(router *gin.RouterGroup, handler *handler.WorkflowHandler) {
	router.POST("/event", handler.StartEvent)
	router.POST("/schedule", handler.StartSchedule)
}

func AutomationRouter(router *gin.RouterGroup, handler *handler.ManualRunHandler) {
	router.POST("/schedules/run", handler.Run)
}

func WebhookRouter(router *gin.RouterGroup, handler *handler.GitHubWebhookHandler) {
	router.POST("/github/:integrationId", handler.HandleEvent)
}
