// Package openai provides a model.Client implementation backed by the OpenAI
// Chat Completions API. It translates model.Request values into ChatCompletion
// calls using github.com/sashabaranov/go-openai and maps responses back into
// the generic model types.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/datapilot-ai/agentcore/runtime/agent/model"
	"github.com/datapilot-ai/agentcore/runtime/agent/tools"
)

// ChatClient captures the subset of the go-openai client used by the adapter.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Options configures the OpenAI adapter.
type Options struct {
	Client       ChatClient
	DefaultModel string
	Temperature  float64
	MaxTokens    int
}

// Client implements model.Client via the OpenAI Chat Completions API.
type Client struct {
	chat         ChatClient
	defaultModel string
	temp         float64
	maxTok       int
}

// New builds an OpenAI-backed model client from the provided options.
func New(opts Options) (*Client, error) {
	if opts.Client == nil {
		return nil, errors.New("openai client is required")
	}
	modelID := strings.TrimSpace(opts.DefaultModel)
	if modelID == "" {
		return nil, errors.New("default model is required")
	}
	return &Client{chat: opts.Client, defaultModel: modelID, temp: opts.Temperature, maxTok: opts.MaxTokens}, nil
}

// NewFromAPIKey constructs a client using the default go-openai HTTP client.
func NewFromAPIKey(apiKey, defaultModel string) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("api key is required")
	}
	return New(Options{Client: openai.NewClient(apiKey), DefaultModel: defaultModel})
}

// Complete renders a chat completion using the configured OpenAI client.
func (c *Client) Complete(ctx context.Context, req *model.Request) (*model.Response, error) {
	request, err := c.prepareRequest(req)
	if err != nil {
		return nil, err
	}
	response, err := c.chat.CreateChatCompletion(ctx, *request)
	if err != nil {
		return nil, fmt.Errorf("openai chat completion: %w", err)
	}
	return translateResponse(response), nil
}

// Stream reports that OpenAI Chat Completions streaming is not yet supported by
// this adapter. Callers should fall back to Complete.
func (c *Client) Stream(context.Context, *model.Request) (model.Streamer, error) {
	return nil, errors.New("openai: streaming not supported, use Complete")
}

func (c *Client) prepareRequest(req *model.Request) (*openai.ChatCompletionRequest, error) {
	if req == nil || len(req.Messages) == 0 {
		return nil, errors.New("openai: messages are required")
	}
	modelID := req.Model
	if modelID == "" {
		modelID = c.defaultModel
	}
	messages, err := encodeMessages(req.Messages)
	if err != nil {
		return nil, err
	}
	toolDefs, err := encodeTools(req.Tools)
	if err != nil {
		return nil, err
	}
	temp := float64(req.Temperature)
	if temp == 0 {
		temp = c.temp
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.maxTok
	}
	request := &openai.ChatCompletionRequest{
		Model:       modelID,
		Messages:    messages,
		Temperature: float32(temp),
		MaxTokens:   maxTokens,
		Tools:       toolDefs,
	}
	return request, nil
}

func encodeMessages(msgs []*model.Message) ([]openai.ChatCompletionMessage, error) {
	out := make([]openai.ChatCompletionMessage, 0, len(msgs))
	for _, m := range msgs {
		if m == nil {
			continue
		}
		role := openAIRole(m.Role)
		var text strings.Builder
		var toolCalls []openai.ToolCall
		for _, part := range m.Parts {
			switch v := part.(type) {
			case model.TextPart:
				text.WriteString(v.Text)
			case model.ToolUsePart:
				args, err := json.Marshal(v.Input)
				if err != nil {
					return nil, fmt.Errorf("openai: encode tool_use args: %w", err)
				}
				toolCalls = append(toolCalls, openai.ToolCall{
					ID:   v.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      v.Name,
						Arguments: string(args),
					},
				})
			case model.ToolResultPart:
				content, err := toolResultContent(v)
				if err != nil {
					return nil, err
				}
				out = append(out, openai.ChatCompletionMessage{
					Role:       openai.ChatMessageRoleTool,
					Content:    content,
					ToolCallID: v.ToolUseID,
				})
			}
		}
		if text.Len() == 0 && len(toolCalls) == 0 {
			continue
		}
		out = append(out, openai.ChatCompletionMessage{
			Role:      role,
			Content:   text.String(),
			ToolCalls: toolCalls,
		})
	}
	if len(out) == 0 {
		return nil, errors.New("openai: at least one message with content is required")
	}
	return out, nil
}

func toolResultContent(v model.ToolResultPart) (string, error) {
	switch c := v.Content.(type) {
	case nil:
		return "", nil
	case string:
		return c, nil
	case []byte:
		return string(c), nil
	default:
		data, err := json.Marshal(c)
		if err != nil {
			return "", fmt.Errorf("openai: encode tool_result content: %w", err)
		}
		return string(data), nil
	}
}

func openAIRole(role model.ConversationRole) string {
	switch role {
	case model.ConversationRoleSystem:
		return openai.ChatMessageRoleSystem
	case model.ConversationRoleAssistant:
		return openai.ChatMessageRoleAssistant
	default:
		return openai.ChatMessageRoleUser
	}
}

func encodeTools(defs []*model.ToolDefinition) ([]openai.Tool, error) {
	if len(defs) == 0 {
		return nil, nil
	}
	toolList := make([]openai.Tool, 0, len(defs))
	for _, def := range defs {
		if def == nil {
			continue
		}
		params, err := json.Marshal(def.InputSchema)
		if err != nil {
			return nil, fmt.Errorf("openai: marshal tool %s schema: %w", def.Name, err)
		}
		toolList = append(toolList, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        def.Name,
				Description: def.Description,
				Parameters:  json.RawMessage(params),
			},
		})
	}
	return toolList, nil
}

func translateResponse(resp openai.ChatCompletionResponse) *model.Response {
	out := &model.Response{}
	for _, choice := range resp.Choices {
		msg := choice.Message
		var parts []model.Part
		if strings.TrimSpace(msg.Content) != "" {
			parts = append(parts, model.TextPart{Text: msg.Content})
		}
		if len(parts) > 0 {
			out.Content = append(out.Content, model.Message{Role: model.ConversationRoleAssistant, Parts: parts})
		}
		for _, call := range msg.ToolCalls {
			out.ToolCalls = append(out.ToolCalls, model.ToolCall{
				Name:    tools.ID(call.Function.Name),
				Payload: json.RawMessage(parseToolArguments(call.Function.Arguments)),
				ID:      call.ID,
			})
		}
		if choice.FinishReason != "" {
			out.StopReason = string(choice.FinishReason)
		}
	}
	out.Usage = model.TokenUsage{
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
		TotalTokens:  resp.Usage.TotalTokens,
	}
	return out
}

func parseToolArguments(raw string) []byte {
	if strings.TrimSpace(raw) == "" {
		return []byte("{}")
	}
	var payload any
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		data, _ := json.Marshal(map[string]any{"raw": raw})
		return data
	}
	return []byte(raw)
}
