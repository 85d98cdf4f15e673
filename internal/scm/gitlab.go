package scm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	gitlab "gitlab.com/gitlab-org/api/client-go"
)

type gitlabClient struct {
	client        *gitlab.Client
	project       string
	defaultBranch *string
}

func newGitLabClient(httpClient *http.Client, instanceURL, token, project string, defaultBranch *string) (*gitlabClient, error) {
	opts := []gitlab.ClientOptionFunc{gitlab.WithHTTPClient(httpClient)}
	if instanceURL != "" {
		opts = append(opts, gitlab.WithBaseURL(strings.TrimSuffix(instanceURL, "/")+"/api/v4"))
	}
	client, err := gitlab.NewClient(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating gitlab client: %w", err)
	}
	return &gitlabClient{client: client, project: project, defaultBranch: defaultBranch}, nil
}

func (c *gitlabClient) GetPullRequest(ctx context.Context, number int) (*PullRequest, error) {
	mr, _, err := c.client.MergeRequests.GetMergeRequest(c.project, int64(number), nil, gitlab.WithContext(ctx))
	if err != nil {
		return nil, gitlabError("get merge request", err)
	}

	out := &PullRequest{
		Number:     number,
		Title:      mr.Title,
		Body:       mr.Description,
		State:      mr.State,
		URL:        mr.WebURL,
		Merged:     mr.State == "merged",
		MergedAt:   mr.MergedAt,
		Labels:     mr.Labels,
		BaseBranch: mr.TargetBranch,
		HeadBranch: mr.SourceBranch,
	}
	if mr.Author != nil {
		out.Author = mr.Author.Username
	}
	// GitLab reports "1000+" for very large merge requests.
	if n, err := strconv.Atoi(strings.TrimSuffix(mr.ChangesCount, "+")); err == nil {
		out.ChangedFiles = n
	}
	return out, nil
}

func (c *gitlabClient) GetRelease(ctx context.Context, tag string) (*Release, error) {
	var (
		rel *gitlab.Release
		err error
	)
	if tag == "" || tag == "latest" {
		rel, err = c.latestRelease(ctx)
	} else {
		rel, _, err = c.client.Releases.GetRelease(c.project, tag, gitlab.WithContext(ctx))
	}
	if err != nil {
		return nil, gitlabError("get release", err)
	}

	return &Release{
		TagName:     rel.TagName,
		Name:        rel.Name,
		Body:        rel.Description,
		Author:      rel.Author.Username,
		Prerelease:  rel.UpcomingRelease,
		PublishedAt: rel.ReleasedAt,
	}, nil
}

func (c *gitlabClient) latestRelease(ctx context.Context) (*gitlab.Release, error) {
	releases, _, err := c.client.Releases.ListReleases(c.project, &gitlab.ListReleasesOptions{
		ListOptions: gitlab.ListOptions{PerPage: 1},
		OrderBy:     gitlab.Ptr("released_at"),
		Sort:        gitlab.Ptr("desc"),
	}, gitlab.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	if len(releases) == 0 {
		return nil, gitlab.ErrNotFound
	}
	return releases[0], nil
}

func (c *gitlabClient) ListCommits(ctx context.Context, q CommitQuery) (*CommitPage, error) {
	page, perPage := normalizePage(q.Page, q.PerPage)

	opts := &gitlab.ListCommitsOptions{
		ListOptions: gitlab.ListOptions{Page: int64(page), PerPage: int64(perPage)},
		Since:       gitlab.Ptr(q.Since),
		Until:       gitlab.Ptr(q.Until),
	}
	branch := q.Branch
	if branch == "" {
		branch = deref(c.defaultBranch)
	}
	if branch != "" {
		opts.RefName = gitlab.Ptr(branch)
	}

	commits, resp, err := c.client.Commits.ListCommits(c.project, opts, gitlab.WithContext(ctx))
	if err != nil {
		return nil, gitlabError("list commits", err)
	}

	out := make([]Commit, 0, len(commits))
	for _, gc := range commits {
		commit := Commit{
			SHA:     gc.ID,
			Message: gc.Message,
			Author:  gc.AuthorName,
			URL:     gc.WebURL,
		}
		if gc.AuthoredDate != nil {
			commit.Date = *gc.AuthoredDate
		}
		out = append(out, commit)
	}

	next := 0
	if resp != nil {
		next = int(resp.NextPage)
	}
	return pageResult(out, page, perPage, next), nil
}

func gitlabError(op string, err error) error {
	var glErr *gitlab.ErrorResponse
	notFound := errors.As(err, &glErr) && glErr.Response != nil && glErr.Response.StatusCode == http.StatusNotFound
	if notFound || errors.Is(err, gitlab.ErrNotFound) {
		return fmt.Errorf("gitlab %s: %w", op, ErrNotFound)
	}
	return fmt.Errorf("gitlab %s: %w", op, err)
}
