package embedding

import (
	"context"
	"errors"
	"sort"

	openai "github.com/sashabaranov/go-openai"
)

// DefaultOpenAIModel is the OpenAI model used for generating embeddings.
// text-embedding-3 models support truncated output dimensions, which keeps
// the index at DefaultDimensions.
const DefaultOpenAIModel = openai.SmallEmbedding3

// OpenAIProvider generates embeddings via the OpenAI API. OpenAI has no
// native task-type parameter, so document and query intents produce
// identical requests; the split is kept so callers stay routed correctly
// for providers that do distinguish them.
type OpenAIProvider struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
}

// NewOpenAIProvider creates an OpenAI-backed embedding provider.
func NewOpenAIProvider(apiKey string, model openai.EmbeddingModel, dimensions int) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	if model == "" {
		model = DefaultOpenAIModel
	}
	if dimensions <= 0 {
		dimensions = DefaultDimensions
	}
	return &OpenAIProvider{
		client:     openai.NewClient(apiKey),
		model:      model,
		dimensions: dimensions,
	}, nil
}

// Model implements Provider.
func (p *OpenAIProvider) Model() string {
	return string(p.model)
}

// Embed implements Provider.
func (p *OpenAIProvider) Embed(ctx context.Context, texts []string, _ Intent) ([][]float32, error) {
	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      texts,
		Model:      p.model,
		Dimensions: p.dimensions,
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return nil, &ProviderError{
				StatusCode: apiErr.HTTPStatusCode,
				Body:       apiErr.Message,
			}
		}
		return nil, err
	}

	if len(resp.Data) != len(texts) {
		return nil, errors.New("no embedding data returned")
	}

	// The API documents response order by index, not position.
	sort.Slice(resp.Data, func(i, j int) bool {
		return resp.Data[i].Index < resp.Data[j].Index
	})

	vectors := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		vectors[i] = d.Embedding
	}
	return vectors, nil
}
