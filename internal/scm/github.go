package scm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/go-github/v74/github"
)

type githubClient struct {
	client        *github.Client
	owner         string
	repo          string
	defaultBranch *string
}

func newGitHubClient(httpClient *http.Client, baseURL, token, owner, repo string, defaultBranch *string) (*githubClient, error) {
	client := github.NewClient(httpClient)
	if token != "" {
		client = client.WithAuthToken(token)
	}
	if baseURL != "" {
		u, err := url.Parse(strings.TrimSuffix(baseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("parse github base url: %w", err)
		}
		client.BaseURL = u
	}
	return &githubClient{client: client, owner: owner, repo: repo, defaultBranch: defaultBranch}, nil
}

func (c *githubClient) GetPullRequest(ctx context.Context, number int) (*PullRequest, error) {
	pr, _, err := c.client.PullRequests.Get(ctx, c.owner, c.repo, number)
	if err != nil {
		return nil, githubError("get pull request", err)
	}

	out := &PullRequest{
		Number:       pr.GetNumber(),
		Title:        pr.GetTitle(),
		Body:         pr.GetBody(),
		State:        pr.GetState(),
		Author:       pr.GetUser().GetLogin(),
		URL:          pr.GetHTMLURL(),
		Merged:       pr.GetMerged(),
		BaseBranch:   pr.GetBase().GetRef(),
		HeadBranch:   pr.GetHead().GetRef(),
		ChangedFiles: pr.GetChangedFiles(),
		Additions:    pr.GetAdditions(),
		Deletions:    pr.GetDeletions(),
	}
	if pr.MergedAt != nil {
		t := pr.MergedAt.Time
		out.MergedAt = &t
	}
	for _, l := range pr.Labels {
		out.Labels = append(out.Labels, l.GetName())
	}
	return out, nil
}

func (c *githubClient) GetRelease(ctx context.Context, tag string) (*Release, error) {
	var (
		rel *github.RepositoryRelease
		err error
	)
	if tag == "" || tag == "latest" {
		rel, _, err = c.client.Repositories.GetLatestRelease(ctx, c.owner, c.repo)
	} else {
		rel, _, err = c.client.Repositories.GetReleaseByTag(ctx, c.owner, c.repo, tag)
	}
	if err != nil {
		return nil, githubError("get release", err)
	}

	out := &Release{
		TagName:    rel.GetTagName(),
		Name:       rel.GetName(),
		Body:       rel.GetBody(),
		URL:        rel.GetHTMLURL(),
		Author:     rel.GetAuthor().GetLogin(),
		Prerelease: rel.GetPrerelease(),
		Draft:      rel.GetDraft(),
	}
	if rel.PublishedAt != nil {
		t := rel.PublishedAt.Time
		out.PublishedAt = &t
	}
	return out, nil
}

func (c *githubClient) ListCommits(ctx context.Context, q CommitQuery) (*CommitPage, error) {
	page, perPage := normalizePage(q.Page, q.PerPage)
	branch := q.Branch
	if branch == "" {
		branch = deref(c.defaultBranch)
	}

	opts := &github.CommitsListOptions{
		SHA:         branch,
		Since:       q.Since,
		Until:       q.Until,
		ListOptions: github.ListOptions{Page: page, PerPage: perPage},
	}
	commits, resp, err := c.client.Repositories.ListCommits(ctx, c.owner, c.repo, opts)
	if err != nil {
		return nil, githubError("list commits", err)
	}

	out := make([]Commit, 0, len(commits))
	for _, rc := range commits {
		author := rc.GetAuthor().GetLogin()
		if author == "" {
			author = rc.GetCommit().GetAuthor().GetName()
		}
		out = append(out, Commit{
			SHA:     rc.GetSHA(),
			Message: rc.GetCommit().GetMessage(),
			Author:  author,
			Date:    rc.GetCommit().GetAuthor().GetDate().Time,
			URL:     rc.GetHTMLURL(),
		})
	}

	next := 0
	if resp != nil {
		next = resp.NextPage
	}
	return pageResult(out, page, perPage, next), nil
}

func githubError(op string, err error) error {
	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil && ghErr.Response.StatusCode == http.StatusNotFound {
		return fmt.Errorf("github %s: %w", op, ErrNotFound)
	}
	return fmt.Errorf("github %s: %w", op, err)
}
