// Package generation adapts external text generation providers to the
// advisor's streaming interface.
package generation

import (
	"context"
	"errors"
	"fmt"

	"github.com/agrimentor/agrimentor/internal/service"
	openai "github.com/sashabaranov/go-openai"
)

// DefaultOpenAIModel is the chat model used when none is configured.
const DefaultOpenAIModel = openai.GPT4oMini

// ErrNoAPIKey is returned when the client is constructed without credentials.
var ErrNoAPIKey = errors.New("generation: API key is required")

// OpenAIGenerator streams chat completions from the OpenAI API.
type OpenAIGenerator struct {
	client *openai.Client
	model  string
}

// NewOpenAIGenerator creates a new OpenAIGenerator instance
func NewOpenAIGenerator(apiKey, model string) (*OpenAIGenerator, error) {
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	if model == "" {
		model = DefaultOpenAIModel
	}
	return &OpenAIGenerator{
		client: openai.NewClient(apiKey),
		model:  model,
	}, nil
}

// Stream starts a streaming completion for the given request.
func (g *OpenAIGenerator) Stream(ctx context.Context, req service.GenerationRequest) (service.TokenStream, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.History)+2)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: req.SystemPrompt,
	})
	for _, m := range req.History {
		role := openai.ChatMessageRoleUser
		if m.Role == service.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    role,
			Content: m.Content,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.UserMessage,
	})

	stream, err := g.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:    g.model,
		Messages: messages,
		Stream:   true,
		StreamOptions: &openai.StreamOptions{
			IncludeUsage: true,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start completion stream: %w", err)
	}

	return &openaiStream{inner: stream}, nil
}

type openaiStream struct {
	inner *openai.ChatCompletionStream
	usage service.GenerationUsage
}

// Recv returns the next token. The final chunk carries usage totals and no
// choices, so empty chunks are skipped.
func (s *openaiStream) Recv() (string, error) {
	for {
		resp, err := s.inner.Recv()
		if err != nil {
			return "", err
		}
		if resp.Usage != nil {
			s.usage = service.GenerationUsage{
				InputTokens:  resp.Usage.PromptTokens,
				OutputTokens: resp.Usage.CompletionTokens,
			}
		}
		if len(resp.Choices) == 0 {
			continue
		}
		if resp.Choices[0].Delta.Content == "" && resp.Choices[0].FinishReason != "" {
			continue
		}
		return resp.Choices[0].Delta.Content, nil
	}
}

func (s *openaiStream) Usage() service.GenerationUsage {
	return s.usage
}

func (s *openaiStream) Close() error {
	return s.inner.Close()
}
