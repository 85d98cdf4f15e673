package scm_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/janburzinski/notra/core/config"
	"github.com/janburzinski/notra/internal/model"
	"github.com/janburzinski/notra/internal/scm"
)

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func strPtr(s string) *string { return &s }

var _ = Describe("GitHub client", func() {
	var (
		ctx      context.Context
		server   *httptest.Server
		client   scm.Client
		lastAuth string
		lastQry  map[string]string
	)

	BeforeEach(func() {
		ctx = context.Background()
		lastQry = map[string]string{}

		mux := http.NewServeMux()
		mux.HandleFunc("GET /repos/acme/rocket/pulls/42", func(w http.ResponseWriter, r *http.Request) {
			lastAuth = r.Header.Get("Authorization")
			writeJSON(w, map[string]any{
				"number": 42, "title": "Add launch button", "body": "Adds it", "state": "closed",
				"merged": true, "merged_at": "2026-01-02T03:04:05Z", "html_url": "https://github.com/acme/rocket/pull/42",
				"user":   map[string]any{"login": "octo"},
				"labels": []map[string]any{{"name": "feature"}},
				"base":   map[string]any{"ref": "main"}, "head": map[string]any{"ref": "launch"},
				"changed_files": 3, "additions": 10, "deletions": 2,
			})
		})
		mux.HandleFunc("GET /repos/acme/rocket/pulls/404", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			writeJSON(w, map[string]any{"message": "Not Found"})
		})
		mux.HandleFunc("GET /repos/acme/rocket/releases/latest", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, map[string]any{"tag_name": "v2.0.0", "name": "Two", "published_at": "2026-02-01T00:00:00Z"})
		})
		mux.HandleFunc("GET /repos/acme/rocket/releases/tags/v1.2.0", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, map[string]any{"tag_name": "v1.2.0", "prerelease": true, "author": map[string]any{"login": "octo"}})
		})
		mux.HandleFunc("GET /repos/acme/rocket/commits", func(w http.ResponseWriter, r *http.Request) {
			for _, k := range []string{"sha", "since", "until", "page", "per_page"} {
				lastQry[k] = r.URL.Query().Get(k)
			}
			w.Header().Set("Link", `<`+"http://"+r.Host+`/repos/acme/rocket/commits?page=3>; rel="next"`)
			writeJSON(w, []map[string]any{{
				"sha":      "abc123",
				"html_url": "https://github.com/acme/rocket/commit/abc123",
				"commit": map[string]any{
					"message": "feat(ui): launch button\n\nbody",
					"author":  map[string]any{"name": "Octo Cat", "date": "2026-01-01T10:00:00Z"},
				},
			}})
		})
		server = httptest.NewServer(mux)

		factory := scm.NewFactory(config.GitHubConfig{Token: "fallback"}, server.Client())
		var err error
		client, err = factory.ForRepository(&model.RepositoryContext{
			Provider:      model.ProviderGitHub,
			Owner:         "acme",
			Repo:          "rocket",
			DefaultBranch: strPtr("main"),
			APIBaseURL:    strPtr(server.URL),
			Token:         "ghp_repo",
		})
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		server.Close()
	})

	It("maps pull request details", func() {
		pr, err := client.GetPullRequest(ctx, 42)

		Expect(err).NotTo(HaveOccurred())
		Expect(lastAuth).To(Equal("Bearer ghp_repo"))
		Expect(pr.Title).To(Equal("Add launch button"))
		Expect(pr.Author).To(Equal("octo"))
		Expect(pr.Merged).To(BeTrue())
		Expect(pr.MergedAt).NotTo(BeNil())
		Expect(pr.Labels).To(ConsistOf("feature"))
		Expect(pr.ChangedFiles).To(Equal(3))
		Expect(pr.BaseBranch).To(Equal("main"))
	})

	It("maps 404 to ErrNotFound", func() {
		_, err := client.GetPullRequest(ctx, 404)
		Expect(errors.Is(err, scm.ErrNotFound)).To(BeTrue())
	})

	It("fetches the latest release when no tag is given", func() {
		rel, err := client.GetRelease(ctx, "latest")

		Expect(err).NotTo(HaveOccurred())
		Expect(rel.TagName).To(Equal("v2.0.0"))
		Expect(rel.PublishedAt).NotTo(BeNil())
	})

	It("fetches a release by tag", func() {
		rel, err := client.GetRelease(ctx, "v1.2.0")

		Expect(err).NotTo(HaveOccurred())
		Expect(rel.Prerelease).To(BeTrue())
		Expect(rel.Author).To(Equal("octo"))
	})

	It("lists commits on the default branch with pagination", func() {
		since := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		page, err := client.ListCommits(ctx, scm.CommitQuery{Since: since, Until: since.Add(24 * time.Hour), Page: 2, PerPage: 500})

		Expect(err).NotTo(HaveOccurred())
		Expect(lastQry["sha"]).To(Equal("main"))
		Expect(lastQry["page"]).To(Equal("2"))
		Expect(lastQry["per_page"]).To(Equal("100"))
		Expect(lastQry["since"]).To(HavePrefix("2026-01-01T00:00:00"))
		Expect(page.Page).To(Equal(2))
		Expect(page.PerPage).To(Equal(100))
		Expect(page.HasMore).To(BeTrue())
		Expect(*page.NextPage).To(Equal(3))
		Expect(page.Commits).To(HaveLen(1))
		Expect(page.Commits[0].Author).To(Equal("Octo Cat"))
	})
})

var _ = Describe("GitLab client", func() {
	var (
		ctx    context.Context
		server *httptest.Server
		client scm.Client
	)

	BeforeEach(func() {
		ctx = context.Background()
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.EscapedPath() {
			case "/api/v4/projects/group%2Fproject/merge_requests/7":
				writeJSON(w, map[string]any{
					"iid": 7, "title": "Faster builds", "description": "cache", "state": "merged",
					"author": map[string]any{"username": "gl-user"}, "labels": []string{"ci"},
					"changes_count": "1000+", "target_branch": "main", "source_branch": "cache",
				})
			case "/api/v4/projects/group%2Fproject/releases":
				writeJSON(w, []map[string]any{{"tag_name": "v3.1.0", "name": "3.1", "author": map[string]any{"username": "gl-user"}}})
			case "/api/v4/projects/group%2Fproject/repository/commits":
				writeJSON(w, []map[string]any{{"id": "def456", "message": "fix: crash", "author_name": "GL", "authored_date": "2026-01-01T10:00:00Z"}})
			default:
				w.WriteHeader(http.StatusNotFound)
				writeJSON(w, map[string]any{"message": "404 Not Found"})
			}
		}))

		factory := scm.NewFactory(config.GitHubConfig{}, server.Client())
		var err error
		client, err = factory.ForRepository(&model.RepositoryContext{
			Provider:   model.ProviderGitLab,
			Owner:      "group",
			Repo:       "project",
			APIBaseURL: strPtr(server.URL),
			Token:      "glpat",
		})
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		server.Close()
	})

	It("maps merge requests", func() {
		mr, err := client.GetPullRequest(ctx, 7)

		Expect(err).NotTo(HaveOccurred())
		Expect(mr.Merged).To(BeTrue())
		Expect(mr.Author).To(Equal("gl-user"))
		Expect(mr.ChangedFiles).To(Equal(1000))
		Expect(mr.Labels).To(ConsistOf("ci"))
	})

	It("uses the newest release as latest", func() {
		rel, err := client.GetRelease(ctx, "")

		Expect(err).NotTo(HaveOccurred())
		Expect(rel.TagName).To(Equal("v3.1.0"))
	})

	It("maps missing releases to ErrNotFound", func() {
		_, err := client.GetRelease(ctx, "v0.0.1")
		Expect(errors.Is(err, scm.ErrNotFound)).To(BeTrue())
	})

	It("lists commits without a next page", func() {
		page, err := client.ListCommits(ctx, scm.CommitQuery{Since: time.Now().Add(-time.Hour), Until: time.Now()})

		Expect(err).NotTo(HaveOccurred())
		Expect(page.HasMore).To(BeFalse())
		Expect(page.NextPage).To(BeNil())
		Expect(page.Commits[0].SHA).To(Equal("def456"))
	})
})

var _ = Describe("Factory", func() {
	It("rejects unknown providers", func() {
		_, err := scm.NewFactory(config.GitHubConfig{}, nil).ForRepository(&model.RepositoryContext{Provider: "bitbucket"})
		Expect(err).To(MatchError(ContainSubstring("unsupported provider")))
	})
})

var _ = Describe("Window", func() {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	DescribeTable("clamps the lookback",
		func(days int, wantDays int) {
			start, end := scm.Window(now, days)
			Expect(end).To(Equal(now))
			Expect(end.Sub(start)).To(Equal(time.Duration(wantDays) * 24 * time.Hour))
		},
		Entry("zero", 0, 1),
		Entry("in range", 14, 14),
		Entry("too large", 365, 90),
	)
})
