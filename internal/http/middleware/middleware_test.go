package middleware_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis_rate/v10"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/janburzinski/notra/internal/http/middleware"
)

type fakeLimiter struct {
	allowFn func(ctx context.Context, key string, limit redis_rate.Limit) (*redis_rate.Result, error)
	keys    []string
}

func (f *fakeLimiter) Allow(ctx context.Context, key string, limit redis_rate.Limit) (*redis_rate.Result, error) {
	f.keys = append(f.keys, key)
	if f.allowFn != nil {
		return f.allowFn(ctx, key, limit)
	}
	return &redis_rate.Result{Limit: limit, Allowed: 1, Remaining: limit.Burst - 1}, nil
}

func serve(router *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

var _ = Describe("middleware", func() {
	var router *gin.Engine

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		router = gin.New()
	})

	Describe("RequireBearer", func() {
		BeforeEach(func() {
			router.GET("/internal", middleware.RequireBearer("s3cret"), func(c *gin.Context) {
				c.Status(http.StatusNoContent)
			})
		})

		DescribeTable("authorization header",
			func(header string, expected int) {
				req := httptest.NewRequest(http.MethodGet, "/internal", nil)
				if header != "" {
					req.Header.Set("Authorization", header)
				}
				Expect(serve(router, req).Code).To(Equal(expected))
			},
			Entry("valid token", "Bearer s3cret", http.StatusNoContent),
			Entry("lowercase scheme", "bearer s3cret", http.StatusNoContent),
			Entry("missing header", "", http.StatusUnauthorized),
			Entry("wrong scheme", "Basic s3cret", http.StatusUnauthorized),
			Entry("wrong token", "Bearer nope", http.StatusUnauthorized),
			Entry("no token", "Bearer", http.StatusUnauthorized),
		)

		It("rejects everything when no secret is configured", func() {
			r := gin.New()
			r.GET("/internal", middleware.RequireBearer(""), func(c *gin.Context) {
				c.Status(http.StatusNoContent)
			})
			req := httptest.NewRequest(http.MethodGet, "/internal", nil)
			req.Header.Set("Authorization", "Bearer ")
			Expect(serve(r, req).Code).To(Equal(http.StatusUnauthorized))
		})
	})

	Describe("RequireUserID", func() {
		BeforeEach(func() {
			router.GET("/me", middleware.RequireUserID(), func(c *gin.Context) {
				c.String(http.StatusOK, c.GetString(middleware.UserIDKey))
			})
		})

		It("stores the forwarded user id", func() {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			req.Header.Set("X-User-Id", " user_1 ")
			w := serve(router, req)
			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(w.Body.String()).To(Equal("user_1"))
		})

		It("rejects requests without a user", func() {
			w := serve(router, httptest.NewRequest(http.MethodGet, "/me", nil))
			Expect(w.Code).To(Equal(http.StatusUnauthorized))
		})
	})

	Describe("RateLimit", func() {
		var limiter *fakeLimiter

		BeforeEach(func() {
			limiter = &fakeLimiter{}
			router.GET("/limited", middleware.RateLimit(limiter, redis_rate.PerMinute(2), "ratelimit:healthcheck"), func(c *gin.Context) {
				c.Status(http.StatusOK)
			})
		})

		It("keys on the client ip", func() {
			req := httptest.NewRequest(http.MethodGet, "/limited", nil)
			req.RemoteAddr = "203.0.113.9:4567"
			w := serve(router, req)

			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(limiter.keys).To(Equal([]string{"ratelimit:healthcheck:203.0.113.9"}))
			Expect(w.Header().Get("X-RateLimit-Limit")).To(Equal("2"))
		})

		It("returns 429 with Retry-After when denied", func() {
			limiter.allowFn = func(_ context.Context, _ string, limit redis_rate.Limit) (*redis_rate.Result, error) {
				return &redis_rate.Result{Limit: limit, Allowed: 0, RetryAfter: 25 * time.Second, ResetAfter: 30 * time.Second}, nil
			}

			w := serve(router, httptest.NewRequest(http.MethodGet, "/limited", nil))

			Expect(w.Code).To(Equal(http.StatusTooManyRequests))
			Expect(w.Header().Get("Retry-After")).To(Equal("25"))
			Expect(w.Body.String()).To(ContainSubstring("Rate limit exceeded"))
		})

		It("lets requests through when the limiter fails", func() {
			limiter.allowFn = func(context.Context, string, redis_rate.Limit) (*redis_rate.Result, error) {
				return nil, errors.New("redis down")
			}
			Expect(serve(router, httptest.NewRequest(http.MethodGet, "/limited", nil)).Code).To(Equal(http.StatusOK))
		})
	})

	Describe("Recovery", func() {
		It("converts panics into 500", func() {
			router.Use(middleware.Recovery(), middleware.Logger())
			router.GET("/boom", func(*gin.Context) { panic("boom") })

			w := serve(router, httptest.NewRequest(http.MethodGet, "/boom", nil))
			Expect(w.Code).To(Equal(http.StatusInternalServerError))
		})
	})
})
