package handler_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/janburzinski/notra/internal/http/handler"
	"github.com/janburzinski/notra/internal/model"
	"github.com/janburzinski/notra/internal/service"
	"github.com/janburzinski/notra/internal/workflow"
)

func postJSON(router *gin.Engine, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

var _ = Describe("WorkflowHandler", func() {
	var (
		router  *gin.Engine
		starter *mockStarter
	)

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		router = gin.New()
		starter = &mockStarter{}
		h := handler.NewWorkflowHandler(starter)
		router.POST("/workflows/event", h.StartEvent)
		router.POST("/workflows/schedule", h.StartSchedule)
	})

	Describe("StartEvent", func() {
		It("starts an event run", func() {
			w := postJSON(router, "/workflows/event", `{
				"triggerId": "trg_1",
				"eventType": "release",
				"eventAction": "published",
				"eventData": {"tagName": "v1.2.0"},
				"repositoryId": "int_1",
				"deliveryId": "d-1"
			}`)

			Expect(w.Code).To(Equal(http.StatusAccepted))
			Expect(w.Body.String()).To(MatchJSON(`{"workflowRunId":"wfr_1"}`))
			Expect(starter.reqs).To(HaveLen(1))
			Expect(starter.reqs[0].Workflow).To(Equal(model.WorkflowEvent))
			Expect(starter.reqs[0].TriggerID).To(Equal("trg_1"))

			payload, ok := starter.reqs[0].Payload.(workflow.EventPayload)
			Expect(ok).To(BeTrue())
			Expect(payload.EventAction).To(Equal("published"))
			Expect(payload.EventData).To(HaveKeyWithValue("tagName", "v1.2.0"))
			Expect(payload.DeliveryID).To(Equal("d-1"))
		})

		It("accepts an empty event action", func() {
			w := postJSON(router, "/workflows/event", `{
				"triggerId": "trg_1", "eventType": "push", "eventAction": "",
				"eventData": {}, "repositoryId": "int_1"
			}`)
			Expect(w.Code).To(Equal(http.StatusAccepted))
		})

		DescribeTable("rejects invalid payloads",
			func(body string) {
				w := postJSON(router, "/workflows/event", body)
				Expect(w.Code).To(Equal(http.StatusBadRequest))
				Expect(starter.reqs).To(BeEmpty())
			},
			Entry("malformed json", `{`),
			Entry("missing trigger", `{"eventType":"release","eventAction":"published","eventData":{},"repositoryId":"int_1"}`),
			Entry("missing action", `{"triggerId":"trg_1","eventType":"release","eventData":{},"repositoryId":"int_1"}`),
			Entry("event data not an object", `{"triggerId":"trg_1","eventType":"release","eventAction":"published","eventData":[1],"repositoryId":"int_1"}`),
			Entry("missing repository", `{"triggerId":"trg_1","eventType":"release","eventAction":"published","eventData":{}}`),
		)

		It("returns 500 when the run cannot be started", func() {
			starter.startFn = func(context.Context, ...service.RunRequest) ([]string, error) {
				return nil, errors.New("redis down")
			}
			w := postJSON(router, "/workflows/event", `{
				"triggerId": "trg_1", "eventType": "release", "eventAction": "published",
				"eventData": {}, "repositoryId": "int_1"
			}`)
			Expect(w.Code).To(Equal(http.StatusInternalServerError))
			Expect(w.Body.String()).NotTo(ContainSubstring("redis down"))
		})
	})

	Describe("StartSchedule", func() {
		It("starts a schedule run", func() {
			w := postJSON(router, "/workflows/schedule", `{"triggerId":"trg_2","manual":true}`)

			Expect(w.Code).To(Equal(http.StatusAccepted))
			Expect(starter.reqs).To(HaveLen(1))
			Expect(starter.reqs[0].Workflow).To(Equal(model.WorkflowSchedule))
			Expect(starter.reqs[0].Payload).To(Equal(workflow.SchedulePayload{TriggerID: "trg_2", Manual: true}))
		})

		It("requires a trigger id", func() {
			w := postJSON(router, "/workflows/schedule", `{"manual":true}`)
			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})
	})
})
