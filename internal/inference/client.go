// Package inference wraps the OpenAI-compatible chat completion API
// of the inference backend. Each call binds to the single credential
// handed in by the resilient invoker; the package itself holds no key
// material.
package inference

import (
	"context"
	"errors"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/dostlabs/dost/internal/credential"
	"github.com/dostlabs/dost/internal/invoker"
	"github.com/dostlabs/dost/internal/store"
)

// DefaultBaseURL points at Groq's OpenAI-compatible endpoint.
const DefaultBaseURL = "https://api.groq.com/openai/v1"

// ChatRequest is one completion request. Prior turns ride along as
// store messages; only role and content cross the wire.
type ChatRequest struct {
	System      string
	Messages    []store.Message
	Model       string
	Temperature float64
	MaxTokens   int64
}

// Client issues chat completions against one backend endpoint.
type Client struct {
	baseURL string
	model   string
}

// NewClient creates a client for the given endpoint and default
// model. Empty baseURL selects the Groq endpoint.
func NewClient(baseURL, model string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{baseURL: baseURL, model: model}
}

// Model returns the default model identifier.
func (c *Client) Model() string { return c.model }

func (c *Client) api(cred credential.Credential) openai.Client {
	return openai.NewClient(
		option.WithAPIKey(cred.APIKey),
		option.WithBaseURL(c.baseURL),
	)
}

func (c *Client) params(req ChatRequest) openai.ChatCompletionNewParams {
	model := req.Model
	if model == "" {
		model = c.model
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	for _, m := range req.Messages {
		switch m.Role {
		case "assistant":
			messages = append(messages, openai.AssistantMessage(m.Content))
		default:
			messages = append(messages, openai.UserMessage(m.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(model),
		Messages: messages,
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(req.MaxTokens)
	}
	return params
}

// Complete performs a non-streaming completion and returns the reply
// text. Throttle responses come back as invoker.RateLimitError so the
// pool can rotate.
func (c *Client) Complete(ctx context.Context, cred credential.Credential, req ChatRequest) (string, error) {
	api := c.api(cred)
	resp, err := api.Chat.Completions.New(ctx, c.params(req))
	if err != nil {
		return "", classify(err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("inference: empty completion")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// CollectStream performs a streaming completion and accumulates the
// token deltas into the full reply text. One adapter for every
// handler; nobody re-implements the chunk loop.
func (c *Client) CollectStream(ctx context.Context, cred credential.Credential, req ChatRequest) (string, error) {
	api := c.api(cred)
	stream := api.Chat.Completions.NewStreaming(ctx, c.params(req))

	var sb strings.Builder
	acc := openai.ChatCompletionAccumulator{}
	for stream.Next() {
		chunk := stream.Current()
		acc.AddChunk(chunk)
		if len(chunk.Choices) > 0 {
			sb.WriteString(chunk.Choices[0].Delta.Content)
		}
	}
	if err := stream.Err(); err != nil {
		return "", classify(err)
	}
	return strings.TrimSpace(sb.String()), nil
}

// classify maps SDK errors onto the invoker's taxonomy: HTTP 429 (or
// throttle-shaped message text) becomes RateLimitError, everything
// else passes through as a hard failure.
func classify(err error) error {
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		if apierr.StatusCode == 429 {
			return &invoker.RateLimitError{
				Status: apierr.StatusCode,
				Body:   apierr.Error(),
				Err:    err,
			}
		}
		return err
	}
	if invoker.LooksRateLimited(err) {
		return &invoker.RateLimitError{Body: err.Error(), Err: err}
	}
	return err
}
