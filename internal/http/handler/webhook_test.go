package handler_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/janburzinski/notra/internal/http/handler"
	"github.com/janburzinski/notra/internal/service"
)

var _ = Describe("GitHubWebhookHandler", func() {
	var (
		router *gin.Engine
		svc    *mockWebhookService
	)

	deliver := func(event, signature, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/github/int_1", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		if event != "" {
			req.Header.Set("X-GitHub-Event", event)
		}
		if signature != "" {
			req.Header.Set("X-Hub-Signature-256", signature)
		}
		req.Header.Set("X-GitHub-Delivery", "delivery-1")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		router = gin.New()
		svc = &mockWebhookService{}
		h := handler.NewGitHubWebhookHandler(svc)
		router.POST("/webhooks/github/:integrationId", h.HandleEvent)
	})

	It("passes the delivery through and accepts started runs", func() {
		w := deliver("release", "sha256=abc", `{"action":"published"}`)

		Expect(w.Code).To(Equal(http.StatusAccepted))
		Expect(w.Body.String()).To(MatchJSON(`{"eventType":"release","workflowRunIds":["wfr_1"]}`))
		Expect(svc.got.IntegrationID).To(Equal("int_1"))
		Expect(svc.got.DeliveryID).To(Equal("delivery-1"))
		Expect(svc.got.Signature).To(Equal("sha256=abc"))
		Expect(string(svc.got.Body)).To(Equal(`{"action":"published"}`))
	})

	It("answers ignored deliveries with 200", func() {
		svc.handleFn = func(_ context.Context, d service.GitHubDelivery) (*service.WebhookResult, error) {
			return &service.WebhookResult{EventType: d.EventType, Ignored: true, Reason: "pong"}, nil
		}
		w := deliver("ping", "sha256=abc", `{}`)
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Body.String()).To(ContainSubstring("pong"))
	})

	It("requires the event header", func() {
		Expect(deliver("", "sha256=abc", `{}`).Code).To(Equal(http.StatusBadRequest))
		Expect(svc.got).To(BeNil())
	})

	It("requires a signature", func() {
		Expect(deliver("release", "", `{}`).Code).To(Equal(http.StatusUnauthorized))
		Expect(svc.got).To(BeNil())
	})

	DescribeTable("maps service errors",
		func(err error, expected int) {
			svc.handleFn = func(context.Context, service.GitHubDelivery) (*service.WebhookResult, error) {
				return nil, err
			}
			Expect(deliver("release", "sha256=abc", `{}`).Code).To(Equal(expected))
		},
		Entry("unknown integration", service.ErrIntegrationNotFound, http.StatusNotFound),
		Entry("no secret", service.ErrWebhookNotConfigured, http.StatusNotFound),
		Entry("bad signature", service.ErrInvalidSignature, http.StatusUnauthorized),
		Entry("unsupported event", fmt.Errorf("%w: issues", service.ErrUnsupportedEvent), http.StatusBadRequest),
		Entry("anything else", errors.New("listing webhook triggers: boom"), http.StatusInternalServerError),
	)
})
