package ledger_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/janburzinski/notra/core/config"
	"github.com/janburzinski/notra/internal/ledger"
)

type recordedCall struct {
	Path string
	Auth string
	Body map[string]any
}

type fakeAutumn struct {
	mu      sync.Mutex
	calls   []recordedCall
	handle  func(path string, body map[string]any) (int, any)
	server  *httptest.Server
	gateway *ledger.Gateway
}

func newFakeAutumn(handle func(path string, body map[string]any) (int, any)) *fakeAutumn {
	f := &fakeAutumn{handle: handle}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)

		f.mu.Lock()
		f.calls = append(f.calls, recordedCall{Path: r.URL.Path, Auth: r.Header.Get("Authorization"), Body: body})
		f.mu.Unlock()

		status, resp := f.handle(r.URL.Path, body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(resp)
	}))
	f.gateway = ledger.New(config.LedgerConfig{
		SecretKey:  "am_sk_test",
		BaseURL:    f.server.URL,
		Timeout:    2 * time.Second,
		MaxRetries: 2,
	}, nil)
	return f
}

func (f *fakeAutumn) Calls() []recordedCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedCall(nil), f.calls...)
}

var _ = Describe("Gateway", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	Context("when no secret key is configured", func() {
		It("allows everything without reserving", func() {
			g := ledger.New(config.LedgerConfig{}, nil)
			Expect(g.Enabled()).To(BeFalse())

			res, err := g.Reserve(ctx, "org_1", ledger.FeatureAICredits)
			Expect(err).NotTo(HaveOccurred())
			Expect(res).To(Equal(ledger.Reservation{Allowed: true, Reserved: false}))
			Expect(g.RetentionDays(ctx, "org_1")).To(Equal(30))

			g.Refund(ctx, "org_1", ledger.FeatureAICredits)
		})
	})

	Describe("Reserve", func() {
		It("checks one credit with send_event and reports a reservation", func() {
			f := newFakeAutumn(func(string, map[string]any) (int, any) {
				return http.StatusOK, map[string]any{"allowed": true, "balance": 4}
			})
			defer f.server.Close()

			res, err := f.gateway.Reserve(ctx, "org_1", ledger.FeatureAICredits)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Allowed).To(BeTrue())
			Expect(res.Reserved).To(BeTrue())
			Expect(*res.Balance).To(BeNumerically("==", 4))

			calls := f.Calls()
			Expect(calls).To(HaveLen(1))
			Expect(calls[0].Path).To(Equal("/v1/check"))
			Expect(calls[0].Auth).To(Equal("Bearer am_sk_test"))
			Expect(calls[0].Body).To(HaveKeyWithValue("customer_id", "org_1"))
			Expect(calls[0].Body).To(HaveKeyWithValue("feature_id", "ai_credits"))
			Expect(calls[0].Body).To(HaveKeyWithValue("required_balance", BeNumerically("==", 1)))
			Expect(calls[0].Body).To(HaveKeyWithValue("send_event", true))
		})

		It("returns a denied reservation without error", func() {
			f := newFakeAutumn(func(string, map[string]any) (int, any) {
				return http.StatusOK, map[string]any{"allowed": false, "balance": 0}
			})
			defer f.server.Close()

			res, err := f.gateway.Reserve(ctx, "org_1", ledger.FeatureAICredits)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Allowed).To(BeFalse())
			Expect(res.Reserved).To(BeFalse())
		})

		It("does not resend a check the ledger may have recorded", func() {
			var attempts int
			f := newFakeAutumn(func(string, map[string]any) (int, any) {
				attempts++
				if attempts == 1 {
					return http.StatusServiceUnavailable, map[string]any{"message": "busy"}
				}
				return http.StatusOK, map[string]any{"allowed": true, "balance": 3}
			})
			defer f.server.Close()

			_, err := f.gateway.Reserve(ctx, "org_1", ledger.FeatureAICredits)
			Expect(err).To(HaveOccurred())

			var apiErr *ledger.APIError
			Expect(errors.As(err, &apiErr)).To(BeTrue())
			Expect(apiErr.StatusCode).To(Equal(http.StatusServiceUnavailable))

			calls := f.Calls()
			Expect(calls).To(HaveLen(1))
			Expect(calls[0].Path).To(Equal("/v1/check"))
		})

		It("retries when the ledger cannot be reached", func() {
			f := newFakeAutumn(func(string, map[string]any) (int, any) {
				return http.StatusOK, map[string]any{}
			})
			f.server.Close()

			start := time.Now()
			_, err := f.gateway.Reserve(ctx, "org_1", ledger.FeatureAICredits)
			Expect(err).To(HaveOccurred())
			Expect(time.Since(start)).To(BeNumerically(">=", 150*time.Millisecond))
		})

		It("does not retry client errors", func() {
			f := newFakeAutumn(func(string, map[string]any) (int, any) {
				return http.StatusBadRequest, map[string]any{"message": "bad customer"}
			})
			defer f.server.Close()

			_, err := f.gateway.Reserve(ctx, "org_1", ledger.FeatureAICredits)
			Expect(err).To(HaveOccurred())
			Expect(f.Calls()).To(HaveLen(1))
		})
	})

	Describe("Refund", func() {
		It("retries server errors", func() {
			var attempts int
			f := newFakeAutumn(func(string, map[string]any) (int, any) {
				attempts++
				if attempts == 1 {
					return http.StatusServiceUnavailable, map[string]any{}
				}
				return http.StatusOK, map[string]any{}
			})
			defer f.server.Close()

			f.gateway.Refund(ctx, "org_1", ledger.FeatureAICredits)

			calls := f.Calls()
			Expect(calls).To(HaveLen(2))
			Expect(calls[1].Path).To(Equal("/v1/track"))
		})

		It("tracks a zero-value event and swallows failures", func() {
			f := newFakeAutumn(func(string, map[string]any) (int, any) {
				return http.StatusInternalServerError, map[string]any{}
			})
			defer f.server.Close()

			f.gateway.Refund(ctx, "org_1", ledger.FeatureAICredits)

			calls := f.Calls()
			Expect(calls).NotTo(BeEmpty())
			Expect(calls[0].Path).To(Equal("/v1/track"))
			Expect(calls[0].Body).To(HaveKeyWithValue("value", BeNumerically("==", 0)))
		})
	})

	DescribeTable("RetentionDays",
		func(allowed map[string]bool, status int, want int) {
			f := newFakeAutumn(func(_ string, body map[string]any) (int, any) {
				feature, _ := body["feature_id"].(string)
				return status, map[string]any{"allowed": allowed[feature]}
			})
			defer f.server.Close()

			Expect(f.gateway.RetentionDays(ctx, "org_1")).To(Equal(want))
		},
		Entry("90 day tier", map[string]bool{"log_retention_90_days": true}, http.StatusOK, 90),
		Entry("30 day tier", map[string]bool{"log_retention_30_days": true}, http.StatusOK, 30),
		Entry("no tier", map[string]bool{}, http.StatusOK, 7),
		Entry("ledger failure falls back", map[string]bool{}, http.StatusBadRequest, 7),
	)
})
