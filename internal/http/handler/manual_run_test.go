package handler_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/janburzinski/notra/internal/http/handler"
	"github.com/janburzinski/notra/internal/http/middleware"
	"github.com/janburzinski/notra/internal/service"
)

var _ = Describe("ManualRunHandler", func() {
	var (
		router *gin.Engine
		svc    *mockManualRunService
	)

	run := func(path, userID string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		if userID != "" {
			req.Header.Set("X-User-Id", userID)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		router = gin.New()
		svc = &mockManualRunService{}
		h := handler.NewManualRunHandler(svc)
		router.POST("/organizations/:organizationId/automation/schedules/run", middleware.RequireUserID(), h.Run)
	})

	It("triggers the run for the caller", func() {
		svc.runFn = func(context.Context, service.ManualRunRequest) (*service.ManualRunResult, error) {
			return &service.ManualRunResult{Kind: service.ManualRunEvent, WorkflowRunID: "wfr_9"}, nil
		}

		w := run("/organizations/org_1/automation/schedules/run?triggerId=trg_1", "user_1")

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Body.String()).To(MatchJSON(`{
			"success": true,
			"workflowRunId": "wfr_9",
			"kind": "event",
			"message": "Schedule triggered successfully"
		}`))
		Expect(*svc.got).To(Equal(service.ManualRunRequest{
			OrganizationID: "org_1",
			TriggerID:      "trg_1",
			TriggeredBy:    "user_1",
		}))
	})

	It("requires a trigger id", func() {
		w := run("/organizations/org_1/automation/schedules/run", "user_1")
		Expect(w.Code).To(Equal(http.StatusBadRequest))
		Expect(svc.got).To(BeNil())
	})

	It("requires a user", func() {
		w := run("/organizations/org_1/automation/schedules/run?triggerId=trg_1", "")
		Expect(w.Code).To(Equal(http.StatusUnauthorized))
		Expect(svc.got).To(BeNil())
	})

	It("maps rejections to their status and code", func() {
		svc.runFn = func(context.Context, service.ManualRunRequest) (*service.ManualRunResult, error) {
			return nil, &service.ManualRunError{
				Message: "Trigger is disabled",
				Code:    service.CodeTriggerDisabled,
				Status:  http.StatusConflict,
			}
		}

		w := run("/organizations/org_1/automation/schedules/run?triggerId=trg_1", "user_1")

		Expect(w.Code).To(Equal(http.StatusConflict))
		Expect(w.Body.String()).To(MatchJSON(`{
			"error": "Trigger is disabled",
			"message": "Trigger is disabled",
			"code": "TRIGGER_DISABLED",
			"status": 409
		}`))
	})

	It("hides unexpected errors", func() {
		svc.runFn = func(context.Context, service.ManualRunRequest) (*service.ManualRunResult, error) {
			return nil, errors.New("pg: connection refused")
		}

		w := run("/organizations/org_1/automation/schedules/run?triggerId=trg_1", "user_1")

		Expect(w.Code).To(Equal(http.StatusInternalServerError))
		Expect(w.Body.String()).To(ContainSubstring("Failed to trigger schedule"))
		Expect(w.Body.String()).NotTo(ContainSubstring("connection refused"))
	})
})
