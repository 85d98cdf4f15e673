package notify_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/resend/resend-go/v2"

	"github.com/janburzinski/notra/internal/model"
	"github.com/janburzinski/notra/internal/notify"
)

type fakeLogs struct {
	mu        sync.Mutex
	entries   []*model.RunLogEntry
	createErr error
	deleted   int64
	deleteErr error
	deletedAt time.Time
}

func (f *fakeLogs) Create(_ context.Context, entry *model.RunLogEntry) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeLogs) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletedAt = now
	return f.deleted, f.deleteErr
}

type fakeSender struct {
	mu       sync.Mutex
	requests []*resend.SendEmailRequest
	failFor  map[string]error
	delay    time.Duration
	inFlight int
	peak     int
}

func (f *fakeSender) SendWithContext(_ context.Context, params *resend.SendEmailRequest) (*resend.SendEmailResponse, error) {
	f.mu.Lock()
	f.inFlight++
	f.peak = max(f.peak, f.inFlight)
	f.mu.Unlock()

	time.Sleep(f.delay)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.inFlight--
	f.requests = append(f.requests, params)
	if err := f.failFor[params.To[0]]; err != nil {
		return nil, err
	}
	return &resend.SendEmailResponse{Id: "msg_" + params.To[0]}, nil
}

var _ = Describe("AuditSink", func() {
	It("stamps ids and expiry from the retention period", func() {
		logs := &fakeLogs{}
		sink := notify.NewAuditSink(logs, nil)

		entry, err := sink.Append(context.Background(), notify.Entry{
			OrganizationID:  "org_1",
			IntegrationID:   "trg_1",
			IntegrationType: model.IntegrationTypeWebhook,
			Title:           `Event "Releases" created "v2"`,
			Status:          model.LogStatusSuccess,
			ReferenceID:     ptr("post_1"),
			Payload:         map[string]any{"triggerId": "trg_1"},
			RetentionDays:   30,
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(logs.entries).To(HaveLen(1))
		Expect(entry.ID).NotTo(BeEmpty())
		Expect(entry.ExpiresAt.Sub(entry.CreatedAt)).To(Equal(30 * 24 * time.Hour))
		Expect(string(entry.Payload)).To(MatchJSON(`{"triggerId":"trg_1"}`))
	})

	It("returns write failures instead of dropping them", func() {
		sink := notify.NewAuditSink(&fakeLogs{createErr: errors.New("db down")}, nil)

		_, err := sink.Append(context.Background(), notify.Entry{OrganizationID: "org_1", RetentionDays: 7})
		Expect(err).To(MatchError(ContainSubstring("db down")))
	})
})

var _ = Describe("Notifier", func() {
	email := notify.ContentCreatedEmail{
		Subject:          "New content created from release event",
		OrganizationName: "Acme <Inc>",
		OrganizationSlug: "acme",
		ScheduleName:     "Releases",
		ContentTitle:     "Version 2",
		ContentType:      "linkedin_post",
		ContentLink:      "https://app.usenotra.com/acme/content/post_1",
	}

	It("is disabled without a sender", func() {
		n := notify.NewNotifierWithSender(nil, "from@notra.test", "", nil)
		Expect(n.Enabled()).To(BeFalse())

		deliveries, err := n.SendContentCreated(context.Background(), []string{"a@acme.test"}, email)
		Expect(err).NotTo(HaveOccurred())
		Expect(deliveries).To(BeNil())
	})

	It("sends one email per recipient and isolates failures", func() {
		sender := &fakeSender{failFor: map[string]error{"b@acme.test": errors.New("mailbox full")}}
		n := notify.NewNotifierWithSender(sender, "Notra <n@notra.test>", "support@notra.test", nil)

		deliveries, err := n.SendContentCreated(context.Background(), []string{"a@acme.test", "b@acme.test"}, email)
		Expect(err).NotTo(HaveOccurred())
		Expect(deliveries).To(Equal([]notify.Delivery{
			{Recipient: "a@acme.test", MessageID: "msg_a@acme.test"},
			{Recipient: "b@acme.test", Error: "mailbox full"},
		}))

		Expect(sender.requests).To(HaveLen(2))
		req := sender.requests[0]
		Expect(req.Subject).To(Equal(email.Subject))
		Expect(req.ReplyTo).To(Equal("support@notra.test"))
		Expect(req.Html).To(ContainSubstring(`href="https://app.usenotra.com/acme/content/post_1"`))
		Expect(req.Html).To(ContainSubstring("New LinkedIn post ready for review"))
		Expect(req.Html).To(ContainSubstring("Acme &lt;Inc&gt;"))
	})
})

var _ = Describe("Notifier fan-out", func() {
	It("bounds concurrent sends and keeps deliveries in recipient order", func() {
		sender := &fakeSender{delay: 10 * time.Millisecond}
		n := notify.NewNotifierWithSender(sender, "Notra <n@notra.test>", "", nil)

		recipients := make([]string, 20)
		for i := range recipients {
			recipients[i] = fmt.Sprintf("user%d@acme.test", i)
		}

		deliveries, err := n.SendContentCreated(context.Background(), recipients, notify.ContentCreatedEmail{Subject: "New post"})
		Expect(err).NotTo(HaveOccurred())
		Expect(deliveries).To(HaveLen(20))
		for i, d := range deliveries {
			Expect(d.Recipient).To(Equal(recipients[i]))
			Expect(d.MessageID).To(Equal("msg_" + recipients[i]))
		}

		Expect(sender.requests).To(HaveLen(20))
		Expect(sender.peak).To(BeNumerically("<=", 8))
		Expect(sender.peak).To(BeNumerically(">", 1))
	})
})

var _ = Describe("RetentionSweeper", func() {
	It("deletes expired entries", func() {
		logs := &fakeLogs{deleted: 3}
		sweeper := notify.NewRetentionSweeper(logs, time.Minute)

		Expect(sweeper.SweepOnce(context.Background())).To(Equal(int64(3)))
		Expect(logs.deletedAt).NotTo(BeZero())
	})

	It("swallows sweep errors", func() {
		sweeper := notify.NewRetentionSweeper(&fakeLogs{deleteErr: errors.New("boom")}, time.Minute)
		Expect(sweeper.SweepOnce(context.Background())).To(BeZero())
	})

	It("stops when asked", func() {
		logs := &fakeLogs{}
		sweeper := notify.NewRetentionSweeper(logs, time.Hour)

		go sweeper.Run(context.Background())
		Eventually(func() time.Time {
			logs.mu.Lock()
			defer logs.mu.Unlock()
			return logs.deletedAt
		}).ShouldNot(BeZero())
		sweeper.Stop()
		sweeper.Wait()
	})
})

func ptr[T any](v T) *T { return &v }
