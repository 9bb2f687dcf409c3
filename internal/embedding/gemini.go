package embedding

import (
	"context"
	"errors"

	"google.golang.org/genai"
)

// DefaultGeminiModel is the Gemini model used for generating embeddings.
const DefaultGeminiModel = "text-embedding-004"

const (
	taskTypeDocument = "RETRIEVAL_DOCUMENT"
	taskTypeQuery    = "RETRIEVAL_QUERY"
)

// GeminiProvider generates embeddings via the Gemini API, which natively
// distinguishes document and query task types and supports truncated output
// dimensionality.
type GeminiProvider struct {
	client     *genai.Client
	model      string
	dimensions int32
}

// NewGeminiProvider creates a Gemini-backed embedding provider.
func NewGeminiProvider(ctx context.Context, apiKey, model string, dimensions int) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	if model == "" {
		model = DefaultGeminiModel
	}
	if dimensions <= 0 {
		dimensions = DefaultDimensions
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}

	return &GeminiProvider{
		client:     client,
		model:      model,
		dimensions: int32(dimensions),
	}, nil
}

// Model implements Provider.
func (p *GeminiProvider) Model() string {
	return p.model
}

// Embed implements Provider.
func (p *GeminiProvider) Embed(ctx context.Context, texts []string, intent Intent) ([][]float32, error) {
	taskType := taskTypeDocument
	if intent == IntentQuery {
		taskType = taskTypeQuery
	}

	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = &genai.Content{Parts: []*genai.Part{{Text: text}}}
	}

	resp, err := p.client.Models.EmbedContent(ctx, p.model, contents, &genai.EmbedContentConfig{
		TaskType:             taskType,
		OutputDimensionality: genai.Ptr(p.dimensions),
	})
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return nil, &ProviderError{
				StatusCode: apiErr.Code,
				Body:       apiErr.Message,
			}
		}
		return nil, err
	}

	if len(resp.Embeddings) != len(texts) {
		return nil, errors.New("no embedding values returned")
	}

	vectors := make([][]float32, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		vectors[i] = e.Values
	}
	return vectors, nil
}
