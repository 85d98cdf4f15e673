package service_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/janburzinski/notra/internal/model"
	"github.com/janburzinski/notra/internal/service"
	"github.com/janburzinski/notra/internal/store"
	"github.com/janburzinski/notra/internal/workflow"
)

const webhookSecret = "s3cret"

func sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

const releaseBody = `{
  "action": "published",
  "release": {"tag_name": "v1.2.0", "draft": false, "prerelease": true, "published_at": "2026-10-01T12:00:00Z"},
  "repository": {"full_name": "acme/rocket", "default_branch": "main"}
}`

const pushBody = `{
  "ref": "refs/heads/main",
  "deleted": false,
  "commits": [
    {"id": "a1", "timestamp": "2026-10-01T10:00:00Z"},
    {"id": "b2", "timestamp": "2026-10-01T11:00:00Z"}
  ],
  "head_commit": {"id": "b2"},
  "repository": {"full_name": "acme/rocket", "default_branch": "main"}
}`

var _ = Describe("WebhookService", func() {
	var (
		ctx         context.Context
		integration *model.RepositoryIntegration
		triggers    []model.Trigger
		starter     *mockStarter
		secrets     plainSecrets
		svc         service.WebhookService
	)

	deliver := func(eventType, body string) (*service.WebhookResult, error) {
		return svc.HandleGitHub(ctx, service.GitHubDelivery{
			IntegrationID: "int_1",
			EventType:     eventType,
			DeliveryID:    "dlv_1",
			Signature:     sign([]byte(body), webhookSecret),
			Body:          []byte(body),
		})
	}

	BeforeEach(func() {
		ctx = context.Background()
		secret := webhookSecret
		integration = &model.RepositoryIntegration{
			ID: "int_1", OrganizationID: "org_1", Provider: model.ProviderGitHub,
			Owner: "acme", Repo: "rocket", Enabled: true, RepositoryEnabled: true,
			EncryptedWebhookSecret: &secret,
		}
		triggers = []model.Trigger{
			{ID: "trg_release", OrganizationID: "org_1", Enabled: true, SourceType: model.SourceTypeGitHubWebhook},
			{ID: "trg_push", OrganizationID: "org_1", Enabled: true, SourceType: model.SourceTypeGitHubWebhook,
				SourceConfig: json.RawMessage(`{"eventTypes":["push"]}`)},
			{ID: "trg_both", OrganizationID: "org_1", Enabled: true, SourceType: model.SourceTypeGitHubWebhook,
				SourceConfig: json.RawMessage(`{"eventTypes":["release","push"]}`)},
		}
		starter = &mockStarter{}
		secrets = plainSecrets{}
	})

	JustBeforeEach(func() {
		integrations := &mockIntegrationStore{
			getByIDFn: func(_ context.Context, id string) (*model.RepositoryIntegration, error) {
				if id != integration.ID {
					return nil, store.ErrNotFound
				}
				return integration, nil
			},
		}
		lister := &mockTriggerStore{
			listWebhookFn: func(_ context.Context, organizationID, repositoryID string) ([]model.Trigger, error) {
				Expect(organizationID).To(Equal("org_1"))
				Expect(repositoryID).To(Equal("int_1"))
				return triggers, nil
			},
		}
		svc = service.NewWebhookService(integrations, lister, secrets, starter, nil)
	})

	It("starts an event run for every trigger listening to releases", func() {
		res, err := deliver("release", releaseBody)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Ignored).To(BeFalse())
		Expect(res.WorkflowRunIDs).To(HaveLen(2))

		Expect(starter.requests).To(HaveLen(2))
		Expect(starter.requests[0].TriggerID).To(Equal("trg_release"))
		Expect(starter.requests[1].TriggerID).To(Equal("trg_both"))

		payload := starter.requests[0].Payload.(workflow.EventPayload)
		Expect(payload.EventType).To(Equal("release"))
		Expect(payload.EventAction).To(Equal("published"))
		Expect(payload.RepositoryID).To(Equal("int_1"))
		Expect(payload.DeliveryID).To(Equal("dlv_1"))
		Expect(payload.EventData).To(Equal(map[string]any{
			"tagName":     "v1.2.0",
			"prerelease":  true,
			"draft":       false,
			"publishedAt": "2026-10-01T12:00:00Z",
		}))
	})

	It("normalizes default-branch pushes", func() {
		res, err := deliver("push", pushBody)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.WorkflowRunIDs).To(HaveLen(2))

		payload := starter.requests[0].Payload.(workflow.EventPayload)
		Expect(starter.requests[0].TriggerID).To(Equal("trg_push"))
		Expect(payload.EventAction).To(Equal("pushed"))
		Expect(payload.EventData).To(HaveKeyWithValue("ref", "refs/heads/main"))
		Expect(payload.EventData).To(HaveKeyWithValue("branch", "main"))
		Expect(payload.EventData).To(HaveKeyWithValue("headCommit", map[string]any{"id": "b2"}))
		Expect(payload.EventData["commits"]).To(Equal([]any{
			map[string]any{"id": "a1", "timestamp": "2026-10-01T10:00:00Z"},
			map[string]any{"id": "b2", "timestamp": "2026-10-01T11:00:00Z"},
		}))
	})

	It("ignores pushes to other branches", func() {
		branch := "develop"
		integration.DefaultBranch = &branch

		res, err := deliver("push", pushBody)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Ignored).To(BeTrue())
		Expect(res.Reason).To(ContainSubstring("non-default branch main"))
		Expect(starter.requests).To(BeEmpty())
	})

	It("ignores draft releases", func() {
		body := `{"action":"published","release":{"tag_name":"v2","draft":true}}`
		res, err := deliver("release", body)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Ignored).To(BeTrue())
		Expect(res.Reason).To(Equal("draft release"))
	})

	It("ignores release actions other than published", func() {
		body := `{"action":"edited","release":{"tag_name":"v2"}}`
		res, err := deliver("release", body)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Ignored).To(BeTrue())
		Expect(starter.requests).To(BeEmpty())
	})

	It("answers pings without starting runs", func() {
		res, err := deliver("ping", `{"zen":"Keep it logically awesome."}`)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Reason).To(Equal("pong"))
		Expect(starter.requests).To(BeEmpty())
	})

	It("reports deliveries no trigger listens to", func() {
		triggers = triggers[:1]

		res, err := deliver("push", pushBody)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Ignored).To(BeTrue())
		Expect(res.Reason).To(Equal("no matching triggers"))
	})

	It("rejects bad signatures", func() {
		_, err := svc.HandleGitHub(ctx, service.GitHubDelivery{
			IntegrationID: "int_1",
			EventType:     "release",
			Signature:     sign([]byte(releaseBody), "wrong"),
			Body:          []byte(releaseBody),
		})
		Expect(err).To(MatchError(service.ErrInvalidSignature))
	})

	It("rejects unknown integrations and missing secrets", func() {
		_, err := svc.HandleGitHub(ctx, service.GitHubDelivery{IntegrationID: "int_x", EventType: "release"})
		Expect(err).To(MatchError(service.ErrIntegrationNotFound))

		integration.EncryptedWebhookSecret = nil
		_, err = deliver("release", releaseBody)
		Expect(err).To(MatchError(service.ErrWebhookNotConfigured))
	})

	It("skips disabled integrations after verifying the signature", func() {
		integration.RepositoryEnabled = false

		res, err := deliver("release", releaseBody)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Ignored).To(BeTrue())
		Expect(res.Reason).To(Equal("integration disabled"))
	})

	Context("when the secret cannot be decrypted", func() {
		BeforeEach(func() {
			secrets = plainSecrets{err: errors.New("crypto: decrypt: message authentication failed")}
		})

		It("returns the decryption error", func() {
			_, err := deliver("release", releaseBody)
			Expect(err).To(MatchError(ContainSubstring("decrypting webhook secret")))
		})
	})

	It("rejects event types it cannot parse", func() {
		_, err := deliver("not_a_real_event", `{}`)
		Expect(err).To(MatchError(service.ErrUnsupportedEvent))
	})
})
