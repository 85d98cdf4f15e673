package llm

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

const defaultOpenAIModel = "gpt-4o"

// ErrRefused is returned when the model declines to answer.
var ErrRefused = errors.New("model refused the request")

type openaiClient struct {
	client          openai.Client
	model           string
	maxTokens       int
	reasoningEffort ReasoningEffort
}

func newOpenAIClient(cfg Config) (AgentClient, error) {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &openaiClient{
		client:          openai.NewClient(opts...),
		model:           cmp.Or(cfg.Model, defaultOpenAIModel),
		maxTokens:       cfg.MaxTokens,
		reasoningEffort: cfg.ReasoningEffort,
	}, nil
}

func (c *openaiClient) Model() string { return c.model }

func (c *openaiClient) ChatWithTools(ctx context.Context, req AgentRequest) (*AgentResponse, error) {
	params := openai.ChatCompletionNewParams{
		Model:               c.model,
		Messages:            openaiMessages(req.Messages),
		Tools:               openaiTools(req.Tools),
		MaxCompletionTokens: openai.Int(int64(cmp.Or(req.MaxTokens, c.maxTokens, defaultMaxTokens))),
	}
	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}
	if c.reasoningEffort != "" {
		params.ReasoningEffort = shared.ReasoningEffort(c.reasoningEffort)
	}

	start := time.Now()
	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai chat completions: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("openai chat completions: no choices in response")
	}

	choice := resp.Choices[0]
	if choice.Message.Refusal != "" {
		return nil, fmt.Errorf("%w: %s", ErrRefused, choice.Message.Refusal)
	}

	out := &AgentResponse{
		Content:          choice.Message.Content,
		FinishReason:     openaiFinishReason(string(choice.FinishReason)),
		PromptTokens:     int(resp.Usage.PromptTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
	}
	for _, tc := range choice.Message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}

	logCompletion(ctx, "openai", c.model, start, out)
	return out, nil
}

func openaiMessages(msgs []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, msg := range msgs {
		switch msg.Role {
		case "system":
			out = append(out, openai.SystemMessage(msg.Content))
		case "user":
			user := openai.ChatCompletionUserMessageParam{
				Content: openai.ChatCompletionUserMessageParamContentUnion{OfString: openai.String(msg.Content)},
			}
			if msg.Name != "" {
				user.Name = openai.String(SanitizeName(msg.Name))
			}
			out = append(out, openai.ChatCompletionMessageParamUnion{OfUser: &user})
		case "assistant":
			assistant := openai.ChatCompletionAssistantMessageParam{}
			if msg.Content != "" {
				assistant.Content = openai.ChatCompletionAssistantMessageParamContentUnion{OfString: openai.String(msg.Content)}
			}
			for _, tc := range msg.ToolCalls {
				assistant.ToolCalls = append(assistant.ToolCalls, openai.ChatCompletionMessageToolCallParam{
					ID: tc.ID,
					Function: openai.ChatCompletionMessageToolCallFunctionParam{
						Name:      tc.Name,
						Arguments: string(toolInput(tc.Arguments)),
					},
				})
			}
			out = append(out, openai.ChatCompletionMessageParamUnion{OfAssistant: &assistant})
		case "tool":
			// Chat completions has no error flag on tool results.
			content := msg.Content
			if msg.IsError {
				content = "[tool error] " + content
			}
			out = append(out, openai.ToolMessage(content, msg.ToolCallID))
		}
	}
	return out
}

func openaiTools(tools []Tool) []openai.ChatCompletionToolParam {
	if len(tools) == 0 {
		return nil
	}
	out := make([]openai.ChatCompletionToolParam, 0, len(tools))
	for _, t := range tools {
		var params shared.FunctionParameters
		if t.Parameters != nil {
			if data, err := json.Marshal(t.Parameters); err == nil {
				_ = json.Unmarshal(data, &params)
			}
		}
		out = append(out, openai.ChatCompletionToolParam{
			Function: shared.FunctionDefinitionParam{
				Name:        t.Name,
				Description: openai.String(t.Description),
				Parameters:  params,
			},
		})
	}
	return out
}

func openaiFinishReason(reason string) string {
	switch reason {
	case "stop", "content_filter":
		return FinishStop
	case "tool_calls", "function_call":
		return FinishToolCalls
	case "length":
		return FinishLength
	default:
		return reason
	}
}
