// Package agent runs the bounded tool-calling loop that turns repository
// activity into a draft post.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/janburzinski/notra/common/llm"
	"github.com/janburzinski/notra/common/logger"
	"github.com/janburzinski/notra/internal/metrics"
	"github.com/janburzinski/notra/internal/model"
	"github.com/janburzinski/notra/internal/repoaccess"
	"github.com/janburzinski/notra/internal/scm"
)

const (
	DefaultMaxSteps   = 35
	doomLoopThreshold = 3 // same single tool call with identical args
	maxParallelTools  = 4
	noContentExcerpt  = 300
)

var (
	ErrUnsupportedOutputType = errors.New("unsupported output type")
	// ErrNoContent means the model answered in plain text without saving a post.
	ErrNoContent = errors.New("agent finished without creating a post")
	// ErrInvalidPost means every createPost attempt failed validation.
	ErrInvalidPost = errors.New("invalid post")
	ErrStepLimit   = errors.New("agent step limit reached without creating a post")
	ErrDoomLoop    = errors.New("agent repeated the same tool call without progress")
)

type PostStore interface {
	Create(ctx context.Context, post *model.Post) error
	GetForOrganization(ctx context.Context, id, organizationID string) (*model.Post, error)
	UpdateContent(ctx context.Context, post *model.Post) error
}

type RepositoryResolver interface {
	Resolve(ctx context.Context, integrationID string, opts repoaccess.ResolveOptions) (*model.RepositoryContext, error)
}

type HostFactory interface {
	ForRepository(repo *model.RepositoryContext) (scm.Client, error)
}

// Generator is what the workflows depend on.
type Generator interface {
	Generate(ctx context.Context, outputType model.OutputType, opts GenerateOptions) (*GenerateOutput, error)
}

type GenerateOptions struct {
	OrganizationID string
	Repositories   []repoaccess.AllowedRepository
	Tone           model.ToneProfile
	PromptInput    PromptInput
	SourceMetadata *model.SourceMetadata
}

type GenerateOutput struct {
	PostID string `json:"postId"`
	Title  string `json:"title"`
}

type Params struct {
	LLM      llm.AgentClient
	Posts    PostStore
	Resolver RepositoryResolver
	Hosts    HostFactory
	Skills   *SkillRegistry
	MaxSteps int
	Now      func() time.Time
	Logger   *slog.Logger
}

type Runtime struct {
	llm      llm.AgentClient
	posts    PostStore
	resolver RepositoryResolver
	hosts    HostFactory
	skills   *SkillRegistry
	maxSteps int
	now      func() time.Time
	logger   *slog.Logger
}

func New(p Params) *Runtime {
	r := &Runtime{
		llm:      p.LLM,
		posts:    p.Posts,
		resolver: p.Resolver,
		hosts:    p.Hosts,
		skills:   p.Skills,
		maxSteps: p.MaxSteps,
		now:      p.Now,
		logger:   p.Logger,
	}
	if r.maxSteps <= 0 {
		r.maxSteps = DefaultMaxSteps
	}
	if r.now == nil {
		r.now = time.Now
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	if r.skills == nil {
		r.skills = &SkillRegistry{skills: map[string]Skill{}}
	}
	return r
}

type toolCallRecord struct {
	name string
	args string
}

type toolResult struct {
	callID  string
	content string
	isError bool
}

// Generate runs the agent for one output type. It returns the saved post,
// or an error wrapping ErrNoContent, ErrInvalidPost, ErrStepLimit or
// ErrDoomLoop when no post was produced.
func (r *Runtime) Generate(ctx context.Context, outputType model.OutputType, opts GenerateOptions) (*GenerateOutput, error) {
	if !IsSupportedOutputType(outputType) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedOutputType, outputType)
	}
	if len(opts.Repositories) == 0 {
		return nil, errors.New("at least one repository is required")
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		OrganizationID: logger.Ptr(opts.OrganizationID),
		Component:      "notra.agent",
	})

	prompt, err := userPrompt(outputType, opts.Tone, opts.PromptInput)
	if err != nil {
		return nil, err
	}

	tools := &toolset{
		outputType:     outputType,
		organizationID: opts.OrganizationID,
		allow:          repoaccess.NewAllowList(opts.Repositories...),
		resolver:       r.resolver,
		hosts:          r.hosts,
		posts:          r.posts,
		skills:         r.skills,
		sourceMetadata: opts.SourceMetadata,
		now:            r.now,
	}
	definitions := tools.Definitions()

	messages := []llm.Message{
		{Role: "system", Content: systemPrompt(outputType)},
		{Role: "system", Content: repositoryNote(tools.allow)},
		{Role: "user", Content: prompt},
	}

	start := time.Now()
	var recentCalls []toolCallRecord
	steps := 0
	stopErr := ErrStepLimit

loop:
	for steps < r.maxSteps {
		steps++

		resp, err := r.llm.ChatWithTools(ctx, llm.AgentRequest{
			Messages: messages,
			Tools:    definitions,
		})
		if err != nil {
			// A saved post stands even if a later turn fails, so the run
			// never reports failure while leaving content behind.
			if out := tools.created(); out != nil {
				r.logger.WarnContext(ctx, "agent model call failed after creating post, keeping it",
					"post_id", out.PostID,
					"steps", steps,
					"error", err)
				return out, nil
			}
			return nil, fmt.Errorf("agent step %d: %w", steps, err)
		}

		if len(resp.ToolCalls) == 0 {
			if out := tools.created(); out != nil {
				r.logger.InfoContext(ctx, "agent created post",
					"output_type", outputType,
					"post_id", out.PostID,
					"steps", steps,
					"duration_ms", time.Since(start).Milliseconds())
				return out, nil
			}
			if invalid := tools.invalid(); invalid != nil {
				return nil, invalid
			}
			return nil, fmt.Errorf("%w: %s", ErrNoContent, logger.Truncate(resp.Content, noContentExcerpt))
		}

		if len(resp.ToolCalls) == 1 {
			tc := resp.ToolCalls[0]
			recentCalls = append(recentCalls, toolCallRecord{name: tc.Name, args: normalizeArgs(tc.Arguments)})
			if len(recentCalls) > doomLoopThreshold {
				recentCalls = recentCalls[1:]
			}
			if len(recentCalls) == doomLoopThreshold && allIdentical(recentCalls) {
				r.logger.WarnContext(ctx, "agent doom loop detected, stopping",
					"steps", steps,
					"repeated_tool", tc.Name)
				stopErr = ErrDoomLoop
				break loop
			}
		} else {
			recentCalls = nil
		}

		messages = append(messages, llm.Message{
			Role:      "assistant",
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})
		for _, res := range r.executeToolsParallel(ctx, tools, resp.ToolCalls) {
			messages = append(messages, llm.Message{
				Role:       "tool",
				Content:    res.content,
				ToolCallID: res.callID,
				IsError:    res.isError,
			})
		}
	}

	if out := tools.created(); out != nil {
		r.logger.InfoContext(ctx, "agent stopped after creating post",
			"output_type", outputType,
			"post_id", out.PostID,
			"steps", steps,
			"reason", stopErr.Error())
		return out, nil
	}
	if invalid := tools.invalid(); invalid != nil {
		return nil, fmt.Errorf("%w (%w)", stopErr, invalid)
	}
	return nil, fmt.Errorf("%w after %d steps", stopErr, steps)
}

// executeToolsParallel runs one turn's tool calls with bounded parallelism.
// Tool failures become error results for the model, never Go errors.
func (r *Runtime) executeToolsParallel(ctx context.Context, tools *toolset, calls []llm.ToolCall) []toolResult {
	results := make([]toolResult, len(calls))

	var g errgroup.Group
	g.SetLimit(maxParallelTools)
	for i, call := range calls {
		g.Go(func() error {
			content, err := tools.Execute(ctx, call.Name, call.Arguments)
			metrics.RecordToolCall(call.Name, err)
			if err != nil {
				r.logger.DebugContext(ctx, "agent tool failed", "tool", call.Name, "error", err)
				content = fmt.Sprintf("Error: %s", err)
			}
			results[i] = toolResult{callID: call.ID, content: content, isError: err != nil}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func repositoryNote(allow *repoaccess.AllowList) string {
	data, _ := json.Marshal(allow.Entries())
	return "Repositories available to the tools in this run (pass integrationId only):\n" + string(data)
}

// normalizeArgs normalizes JSON arguments for comparison.
func normalizeArgs(args string) string {
	var v any
	if err := json.Unmarshal([]byte(args), &v); err != nil {
		return args
	}
	normalized, err := json.Marshal(v)
	if err != nil {
		return args
	}
	return string(normalized)
}

func allIdentical(calls []toolCallRecord) bool {
	if len(calls) == 0 {
		return false
	}
	first := calls[0]
	for _, c := range calls[1:] {
		if c != first {
			return false
		}
	}
	return true
}
