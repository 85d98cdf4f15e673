// Package scm reads pull requests, releases and commits from the
// repository hosts an integration can point at.
package scm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/janburzinski/notra/core/config"
	"github.com/janburzinski/notra/internal/model"
)

var ErrNotFound = errors.New("scm: not found")

const (
	DefaultPerPage = 30
	MaxPerPage     = 100
	MaxLookback    = 90
)

type PullRequest struct {
	Number       int        `json:"number"`
	Title        string     `json:"title"`
	Body         string     `json:"body"`
	State        string     `json:"state"`
	Author       string     `json:"author"`
	URL          string     `json:"url"`
	Merged       bool       `json:"merged"`
	MergedAt     *time.Time `json:"merged_at"`
	Labels       []string   `json:"labels"`
	BaseBranch   string     `json:"base_branch"`
	HeadBranch   string     `json:"head_branch"`
	ChangedFiles int        `json:"changed_files"`
	Additions    int        `json:"additions"`
	Deletions    int        `json:"deletions"`
}

type Release struct {
	TagName     string     `json:"tag_name"`
	Name        string     `json:"name"`
	Body        string     `json:"body"`
	URL         string     `json:"url"`
	Author      string     `json:"author"`
	Prerelease  bool       `json:"prerelease"`
	Draft       bool       `json:"draft"`
	PublishedAt *time.Time `json:"published_at"`
}

type Commit struct {
	SHA     string    `json:"sha"`
	Message string    `json:"message"`
	Author  string    `json:"author"`
	Date    time.Time `json:"date"`
	URL     string    `json:"url"`
}

type CommitQuery struct {
	Since   time.Time
	Until   time.Time
	Branch  string
	Page    int
	PerPage int
}

type CommitPage struct {
	Commits  []Commit `json:"commits"`
	Page     int      `json:"page"`
	PerPage  int      `json:"perPage"`
	HasMore  bool     `json:"hasMore"`
	NextPage *int     `json:"nextPage"`
}

// Client is a read-only view of one repository.
type Client interface {
	GetPullRequest(ctx context.Context, number int) (*PullRequest, error)
	// GetRelease returns the release for tag, or the latest published
	// release when tag is "latest" or empty.
	GetRelease(ctx context.Context, tag string) (*Release, error)
	ListCommits(ctx context.Context, q CommitQuery) (*CommitPage, error)
}

// Factory builds host clients for resolved repositories.
type Factory struct {
	githubBaseURL string
	fallbackToken string
	httpClient    *http.Client
}

func NewFactory(cfg config.GitHubConfig, httpClient *http.Client) *Factory {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Factory{
		githubBaseURL: cfg.APIBaseURL,
		fallbackToken: cfg.Token,
		httpClient:    httpClient,
	}
}

func (f *Factory) ForRepository(repo *model.RepositoryContext) (Client, error) {
	switch repo.Provider {
	case model.ProviderGitHub, "":
		baseURL := f.githubBaseURL
		if repo.APIBaseURL != nil && *repo.APIBaseURL != "" {
			baseURL = *repo.APIBaseURL
		}
		token := repo.Token
		if token == "" {
			token = f.fallbackToken
		}
		return newGitHubClient(f.httpClient, baseURL, token, repo.Owner, repo.Repo, repo.DefaultBranch)
	case model.ProviderGitLab:
		baseURL := ""
		if repo.APIBaseURL != nil {
			baseURL = *repo.APIBaseURL
		}
		return newGitLabClient(f.httpClient, baseURL, repo.Token, repo.FullName(), repo.DefaultBranch)
	default:
		return nil, fmt.Errorf("scm: unsupported provider %q", repo.Provider)
	}
}

// Window returns the [now-days, now] range, with days clamped to 1..90.
func Window(now time.Time, days int) (time.Time, time.Time) {
	days = min(max(days, 1), MaxLookback)
	return now.Add(-time.Duration(days) * 24 * time.Hour), now
}

func normalizePage(page, perPage int) (int, int) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = DefaultPerPage
	}
	return page, min(perPage, MaxPerPage)
}

func pageResult(commits []Commit, page, perPage, next int) *CommitPage {
	result := &CommitPage{Commits: commits, Page: page, PerPage: perPage}
	if commits == nil {
		result.Commits = []Commit{}
	}
	if next > 0 {
		result.HasMore = true
		result.NextPage = &next
	}
	return result
}

func firstLine(message string) string {
	line, _, _ := strings.Cut(message, "\n")
	return strings.TrimSpace(line)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
