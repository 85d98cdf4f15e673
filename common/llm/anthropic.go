package llm

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultAnthropicModel = "claude-sonnet-4-5"

type anthropicClient struct {
	client    anthropic.Client
	model     string
	maxTokens int
}

func newAnthropicClient(cfg Config) (AgentClient, error) {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &anthropicClient{
		client:    anthropic.NewClient(opts...),
		model:     cmp.Or(cfg.Model, defaultAnthropicModel),
		maxTokens: cfg.MaxTokens,
	}, nil
}

func (c *anthropicClient) Model() string { return c.model }

func (c *anthropicClient) ChatWithTools(ctx context.Context, req AgentRequest) (*AgentResponse, error) {
	system, messages := anthropicTurns(req.Messages)
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: int64(cmp.Or(req.MaxTokens, c.maxTokens, defaultMaxTokens)),
		System:    system,
		Messages:  messages,
		Tools:     anthropicTools(req.Tools),
	}
	if req.Temperature != nil {
		params.Temperature = anthropic.Float(*req.Temperature)
	}

	start := time.Now()
	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic messages: %w", err)
	}

	out := &AgentResponse{
		FinishReason:     anthropicFinishReason(resp.StopReason),
		PromptTokens:     int(resp.Usage.InputTokens),
		CompletionTokens: int(resp.Usage.OutputTokens),
	}
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			out.Content += block.Text
		case "tool_use":
			out.ToolCalls = append(out.ToolCalls, ToolCall{
				ID:        block.ID,
				Name:      block.Name,
				Arguments: string(block.Input),
			})
		}
	}

	logCompletion(ctx, "anthropic", c.model, start, out)
	return out, nil
}

// anthropicTurns splits system prompts out of the conversation and folds
// consecutive tool results into the single user turn Anthropic expects
// after a parallel tool call. The last system block is marked cacheable
// since the agent resends it every step.
func anthropicTurns(msgs []Message) ([]anthropic.TextBlockParam, []anthropic.MessageParam) {
	var (
		system []anthropic.TextBlockParam
		turns  []anthropic.MessageParam
	)

	appendUser := func(block anthropic.ContentBlockParamUnion, mergeable bool) {
		if mergeable && len(turns) > 0 {
			last := &turns[len(turns)-1]
			if last.Role == anthropic.MessageParamRoleUser && isToolResultTurn(*last) {
				last.Content = append(last.Content, block)
				return
			}
		}
		turns = append(turns, anthropic.NewUserMessage(block))
	}

	for _, msg := range msgs {
		switch msg.Role {
		case "system":
			system = append(system, anthropic.TextBlockParam{Text: msg.Content})
		case "user":
			appendUser(anthropic.NewTextBlock(msg.Content), false)
		case "assistant":
			var blocks []anthropic.ContentBlockParamUnion
			if msg.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, toolInput(tc.Arguments), tc.Name))
			}
			if len(blocks) == 0 {
				continue
			}
			turns = append(turns, anthropic.NewAssistantMessage(blocks...))
		case "tool":
			appendUser(anthropic.NewToolResultBlock(msg.ToolCallID, msg.Content, msg.IsError), true)
		}
	}

	if n := len(system); n > 0 {
		system[n-1].CacheControl = anthropic.NewCacheControlEphemeralParam()
	}
	return system, turns
}

func isToolResultTurn(turn anthropic.MessageParam) bool {
	for _, block := range turn.Content {
		if block.OfToolResult == nil {
			return false
		}
	}
	return len(turn.Content) > 0
}

func anthropicTools(tools []Tool) []anthropic.ToolUnionParam {
	if len(tools) == 0 {
		return nil
	}
	out := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		properties, required := schemaObject(t.Parameters)
		if properties == nil {
			properties = map[string]any{}
		}
		out = append(out, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        t.Name,
				Description: anthropic.String(t.Description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: properties,
					Required:   required,
				},
			},
		})
	}
	return out
}

func anthropicFinishReason(reason anthropic.StopReason) string {
	switch reason {
	case anthropic.StopReasonEndTurn, anthropic.StopReasonStopSequence:
		return FinishStop
	case anthropic.StopReasonToolUse:
		return FinishToolCalls
	case anthropic.StopReasonMaxTokens:
		return FinishLength
	default:
		return string(reason)
	}
}

// toolInput passes the model's arguments back verbatim. Malformed JSON is
// replaced with an empty object so the request itself stays valid.
func toolInput(arguments string) json.RawMessage {
	if !json.Valid([]byte(arguments)) {
		return json.RawMessage("{}")
	}
	return json.RawMessage(arguments)
}
