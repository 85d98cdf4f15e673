package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/janburzinski/notra/common/id"
	"github.com/janburzinski/notra/common/llm"
	"github.com/janburzinski/notra/internal/model"
	"github.com/janburzinski/notra/internal/repoaccess"
	"github.com/janburzinski/notra/internal/scm"
)

const (
	MaxTitleLength     = 120
	maxCommitMessage   = 500
	maxDescriptionBody = 4000
)

type PullRequestParams struct {
	PullNumber    int    `json:"pull_number" jsonschema:"required,minimum=1,description=Pull request or merge request number"`
	IntegrationID string `json:"integrationId" jsonschema:"required,description=Integration id of the repository"`
}

type ReleaseParams struct {
	Tag           string `json:"tag,omitempty" jsonschema:"default=latest,description=Release tag. Use latest for the most recent release."`
	IntegrationID string `json:"integrationId" jsonschema:"required,description=Integration id of the repository"`
}

type CommitsParams struct {
	Days          int    `json:"days" jsonschema:"required,minimum=1,maximum=90,description=How many days back to look"`
	IntegrationID string `json:"integrationId" jsonschema:"required,description=Integration id of the repository"`
	Page          int    `json:"page,omitempty" jsonschema:"minimum=1,description=Page to fetch. Defaults to 1."`
}

type SkillParams struct {
	Name string `json:"name" jsonschema:"required,description=Skill name as returned by listAvailableSkills"`
}

type CreatePostParams struct {
	Title    string `json:"title" jsonschema:"required,maxLength=120,description=Plain-text title without markdown"`
	Markdown string `json:"markdown" jsonschema:"required,description=Post body as markdown without the title heading"`
}

type UpdatePostParams struct {
	PostID   string  `json:"postId" jsonschema:"required,description=Id returned by createPost"`
	Title    *string `json:"title,omitempty" jsonschema:"maxLength=120,description=New title"`
	Markdown *string `json:"markdown,omitempty" jsonschema:"description=New markdown body"`
}

type ViewPostParams struct {
	PostID string `json:"postId" jsonschema:"required,description=Id returned by createPost"`
}

type noParams struct{}

// toolset is built per run. It holds the allow-list and the posts the run
// created, so nothing leaks between runs.
type toolset struct {
	outputType     model.OutputType
	organizationID string
	allow          *repoaccess.AllowList
	resolver       RepositoryResolver
	hosts          HostFactory
	posts          PostStore
	skills         *SkillRegistry
	sourceMetadata *model.SourceMetadata
	now            func() time.Time

	mu          sync.Mutex
	postID      string
	title       string
	lastInvalid error
}

func (t *toolset) Definitions() []llm.Tool {
	return []llm.Tool{
		{
			Name:        "getPullRequests",
			Description: "Fetch one pull request (merge request on GitLab): title, description, state, author, merge time, labels and change counts. File contents are not included.",
			Parameters:  llm.GenerateSchemaFrom(PullRequestParams{}),
		},
		{
			Name:        "getReleaseByTag",
			Description: "Fetch a release by tag, or the latest release when tag is \"latest\".",
			Parameters:  llm.GenerateSchemaFrom(ReleaseParams{}),
		},
		{
			Name:        "getCommitsByTimeframe",
			Description: "List commits from the last N days on the default branch, grouped by Conventional Commit type. Paginated: keep fetching while pagination.hasMore is true.",
			Parameters:  llm.GenerateSchemaFrom(CommitsParams{}),
		},
		{
			Name:        "listAvailableSkills",
			Description: "List the writing skills you can load with getSkillByName.",
			Parameters:  llm.GenerateSchemaFrom(noParams{}),
		},
		{
			Name:        "getSkillByName",
			Description: "Load the full instructions of a skill.",
			Parameters:  llm.GenerateSchemaFrom(SkillParams{}),
		},
		{
			Name:        "createPost",
			Description: "Save the finished content as a draft post. Content type and source repositories are set automatically. Returns the post id.",
			Parameters:  llm.GenerateSchemaFrom(CreatePostParams{}),
		},
		{
			Name:        "updatePost",
			Description: "Revise the post created in this run. Omitted fields stay unchanged.",
			Parameters:  llm.GenerateSchemaFrom(UpdatePostParams{}),
		},
		{
			Name:        "viewPost",
			Description: "Read back the post created in this run.",
			Parameters:  llm.GenerateSchemaFrom(ViewPostParams{}),
		},
	}
}

func (t *toolset) Execute(ctx context.Context, name, arguments string) (string, error) {
	var (
		result any
		err    error
	)
	switch name {
	case "getPullRequests":
		result, err = runTool(ctx, arguments, t.getPullRequest)
	case "getReleaseByTag":
		result, err = runTool(ctx, arguments, t.getRelease)
	case "getCommitsByTimeframe":
		result, err = runTool(ctx, arguments, t.getCommits)
	case "listAvailableSkills":
		result = map[string]any{"skills": t.skills.List()}
	case "getSkillByName":
		result, err = runTool(ctx, arguments, t.getSkill)
	case "createPost":
		result, err = runTool(ctx, arguments, t.createPost)
	case "updatePost":
		result, err = runTool(ctx, arguments, t.updatePost)
	case "viewPost":
		result, err = runTool(ctx, arguments, t.viewPost)
	default:
		return "", fmt.Errorf("unknown tool: %s", name)
	}
	if err != nil {
		return "", err
	}

	data, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("encode %s result: %w", name, err)
	}
	return string(data), nil
}

func runTool[P any, R any](ctx context.Context, arguments string, fn func(context.Context, P) (R, error)) (any, error) {
	params, err := llm.ParseToolArguments[P](arguments)
	if err != nil {
		return nil, err
	}
	return fn(ctx, params)
}

func (t *toolset) client(ctx context.Context, integrationID string) (scm.Client, *model.RepositoryContext, error) {
	if _, err := t.allow.Lookup(integrationID); err != nil {
		return nil, nil, err
	}
	repo, err := t.resolver.Resolve(ctx, integrationID, repoaccess.ResolveOptions{OrganizationID: t.organizationID})
	if err != nil {
		return nil, nil, err
	}
	client, err := t.hosts.ForRepository(repo)
	if err != nil {
		return nil, nil, err
	}
	return client, repo, nil
}

func (t *toolset) getPullRequest(ctx context.Context, p PullRequestParams) (*scm.PullRequest, error) {
	if p.PullNumber < 1 {
		return nil, errors.New("pull_number must be a positive integer")
	}
	client, _, err := t.client(ctx, p.IntegrationID)
	if err != nil {
		return nil, err
	}
	pr, err := client.GetPullRequest(ctx, p.PullNumber)
	if err != nil {
		return nil, err
	}
	pr.Body = truncateRunes(pr.Body, maxDescriptionBody)
	return pr, nil
}

func (t *toolset) getRelease(ctx context.Context, p ReleaseParams) (*scm.Release, error) {
	client, _, err := t.client(ctx, p.IntegrationID)
	if err != nil {
		return nil, err
	}
	tag := strings.TrimSpace(p.Tag)
	if tag == "" {
		tag = "latest"
	}
	rel, err := client.GetRelease(ctx, tag)
	if err != nil {
		return nil, err
	}
	rel.Body = truncateRunes(rel.Body, maxDescriptionBody)
	return rel, nil
}

type commitSummary struct {
	SHA     string    `json:"sha"`
	Message string    `json:"message"`
	Author  string    `json:"author"`
	Date    time.Time `json:"date"`
}

type pagination struct {
	Page     int  `json:"page"`
	PerPage  int  `json:"perPage"`
	HasMore  bool `json:"hasMore"`
	NextPage *int `json:"nextPage"`
}

type commitsResult struct {
	Repository string            `json:"repository"`
	Since      time.Time         `json:"since"`
	Until      time.Time         `json:"until"`
	Commits    []commitSummary   `json:"commits"`
	Groups     []scm.CommitGroup `json:"groups"`
	Pagination pagination        `json:"pagination"`
}

func (t *toolset) getCommits(ctx context.Context, p CommitsParams) (*commitsResult, error) {
	if p.Days < 1 || p.Days > scm.MaxLookback {
		return nil, fmt.Errorf("days must be between 1 and %d", scm.MaxLookback)
	}
	client, repo, err := t.client(ctx, p.IntegrationID)
	if err != nil {
		return nil, err
	}

	since, until := scm.Window(t.now(), p.Days)
	page, err := client.ListCommits(ctx, scm.CommitQuery{Since: since, Until: until, Page: p.Page})
	if err != nil {
		return nil, err
	}

	commits := make([]commitSummary, len(page.Commits))
	for i, c := range page.Commits {
		commits[i] = commitSummary{
			SHA:     c.SHA,
			Message: truncateRunes(c.Message, maxCommitMessage),
			Author:  c.Author,
			Date:    c.Date,
		}
	}
	return &commitsResult{
		Repository: repo.FullName(),
		Since:      since,
		Until:      until,
		Commits:    commits,
		Groups:     scm.GroupByType(page.Commits),
		Pagination: pagination{Page: page.Page, PerPage: page.PerPage, HasMore: page.HasMore, NextPage: page.NextPage},
	}, nil
}

func (t *toolset) getSkill(_ context.Context, p SkillParams) (Skill, error) {
	return t.skills.Get(p.Name)
}

type postRef struct {
	PostID string `json:"postId"`
	Title  string `json:"title"`
}

type postView struct {
	PostID   string `json:"postId"`
	Title    string `json:"title"`
	Markdown string `json:"markdown"`
}

func (t *toolset) createPost(ctx context.Context, p CreatePostParams) (*postRef, error) {
	title, markdown, err := validatePost(p.Title, p.Markdown)
	if err != nil {
		t.recordInvalid(err)
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.postID != "" {
		return nil, fmt.Errorf("a post was already created in this run (postId %s). Use updatePost to revise it", t.postID)
	}

	post := &model.Post{
		ID:             id.New(),
		OrganizationID: t.organizationID,
		Title:          title,
		Markdown:       markdown,
		Content:        RenderMarkdown(markdown),
		ContentType:    t.outputType,
		SourceMetadata: t.sourceMetadata,
		Status:         model.PostStatusDraft,
	}
	if err := t.posts.Create(ctx, post); err != nil {
		return nil, fmt.Errorf("save post: %w", err)
	}

	t.postID = post.ID
	t.title = post.Title
	t.lastInvalid = nil
	return &postRef{PostID: post.ID, Title: post.Title}, nil
}

func (t *toolset) updatePost(ctx context.Context, p UpdatePostParams) (*postRef, error) {
	post, err := t.ownPost(ctx, p.PostID)
	if err != nil {
		return nil, err
	}

	title, markdown := post.Title, post.Markdown
	if p.Title != nil {
		title = *p.Title
	}
	if p.Markdown != nil {
		markdown = *p.Markdown
	}
	title, markdown, err = validatePost(title, markdown)
	if err != nil {
		return nil, err
	}

	post.Title = title
	post.Markdown = markdown
	post.Content = RenderMarkdown(markdown)
	if err := t.posts.UpdateContent(ctx, post); err != nil {
		return nil, fmt.Errorf("update post: %w", err)
	}

	t.mu.Lock()
	t.title = title
	t.mu.Unlock()
	return &postRef{PostID: post.ID, Title: post.Title}, nil
}

func (t *toolset) viewPost(ctx context.Context, p ViewPostParams) (*postView, error) {
	post, err := t.ownPost(ctx, p.PostID)
	if err != nil {
		return nil, err
	}
	return &postView{PostID: post.ID, Title: post.Title, Markdown: post.Markdown}, nil
}

// ownPost only returns the post this run created.
func (t *toolset) ownPost(ctx context.Context, postID string) (*model.Post, error) {
	t.mu.Lock()
	created := t.postID
	t.mu.Unlock()

	if created == "" || postID != created {
		return nil, fmt.Errorf("post %s was not created in this run", postID)
	}
	return t.posts.GetForOrganization(ctx, postID, t.organizationID)
}

func (t *toolset) recordInvalid(err error) {
	t.mu.Lock()
	t.lastInvalid = err
	t.mu.Unlock()
}

// created returns the run's post, or nil when none was saved.
func (t *toolset) created() *GenerateOutput {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.postID == "" {
		return nil
	}
	return &GenerateOutput{PostID: t.postID, Title: t.title}
}

func (t *toolset) invalid() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastInvalid
}

func validatePost(title, markdown string) (string, string, error) {
	title = strings.TrimSpace(title)
	switch {
	case title == "":
		return "", "", fmt.Errorf("%w: title must not be empty", ErrInvalidPost)
	case utf8.RuneCountInString(title) > MaxTitleLength:
		return "", "", fmt.Errorf("%w: title must be at most %d characters", ErrInvalidPost, MaxTitleLength)
	case strings.TrimSpace(markdown) == "":
		return "", "", fmt.Errorf("%w: markdown must not be empty", ErrInvalidPost)
	}
	return title, markdown, nil
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + "..."
}
