// Package openai provides a thin wrapper around the official OpenAI Go SDK
// for chat-completion generation calls.
package openai

import (
	"context"
	"errors"
	"fmt"

	openaisdk "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

var (
	// ErrEmptyPayload is returned when Generate is called with an empty user payload.
	ErrEmptyPayload = errors.New("openai: user payload is empty")
	// ErrNoChoices is returned when the API response contains no completion.
	ErrNoChoices = errors.New("openai: no choices in response")
)

const defaultModel = openaisdk.ChatModelGPT4oMini

// Client calls the OpenAI chat completions API via the official SDK.
// Each call is stateless: the caller includes any conversation history it
// wants the model to see in the user payload.
type Client struct {
	sdk   openaisdk.Client
	model openaisdk.ChatModel
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithModel sets the chat model. Empty keeps the default.
func WithModel(model string) ClientOption {
	return func(c *Client) {
		if model != "" {
			c.model = openaisdk.ChatModel(model)
		}
	}
}

// NewClient creates a generation client using the official SDK.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	client := &Client{
		sdk:   openaisdk.NewClient(option.WithAPIKey(apiKey)),
		model: defaultModel,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Generate produces a completion for the given system instruction and user
// payload. The answer text is returned verbatim; quality judgments are the
// caller's concern, only transport/API failures are errors.
func (c *Client) Generate(ctx context.Context, systemPrompt, userPayload string) (string, error) {
	if userPayload == "" {
		return "", ErrEmptyPayload
	}

	resp, err := c.sdk.Chat.Completions.New(ctx, openaisdk.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openaisdk.ChatCompletionMessageParamUnion{
			openaisdk.SystemMessage(systemPrompt),
			openaisdk.UserMessage(userPayload),
		},
	})
	if err != nil {
		return "", fmt.Errorf("openai generate: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoices
	}
	return resp.Choices[0].Message.Content, nil
}
