// Package embedding wraps remote embedding providers behind a single client
// that validates dimensions and batches requests.
package embedding

import (
	"context"
	"errors"
	"fmt"
)

const (
	// DefaultDimensions is the vector size every index row must share.
	// Mixing dimensions (or models) silently corrupts similarity rankings,
	// so the client rejects any vector of another size.
	DefaultDimensions = 512

	// providerBatchLimit is the maximum number of inputs per provider call;
	// larger batches are split transparently.
	providerBatchLimit = 128
)

// Intent distinguishes document-side from query-side embedding calls.
// Providers optimize the vector space differently for each, so ingest text
// must go through the document path and live search text through the query
// path.
type Intent string

const (
	IntentDocument Intent = "document"
	IntentQuery    Intent = "query"
)

var (
	// ErrEmptyText is returned when text is empty
	ErrEmptyText = errors.New("text cannot be empty")
	// ErrWrongDimensions is returned when an embedding has unexpected dimensions
	ErrWrongDimensions = errors.New("embedding has wrong dimensions")
	// ErrNoAPIKey is returned when no embedding provider credentials are configured
	ErrNoAPIKey = errors.New("embedding provider API key not set")
)

// ProviderError carries a non-success provider response back to the caller,
// which decides whether to retry or abandon the attempt.
type ProviderError struct {
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("embedding provider returned status %d: %s", e.StatusCode, e.Body)
}

// Provider is the raw embedding backend the Client delegates to.
type Provider interface {
	Embed(ctx context.Context, texts []string, intent Intent) ([][]float32, error)
	// Model identifies the model version producing the vectors; it is stored
	// alongside each vector to guard the single-model invariant.
	Model() string
}

// Client validates and batches embedding calls against a Provider.
type Client struct {
	provider   Provider
	dimensions int
}

// NewClient creates a Client with the default expected dimensions.
func NewClient(provider Provider) *Client {
	return NewClientWithDimensions(provider, DefaultDimensions)
}

// NewClientWithDimensions creates a Client with explicit expected dimensions.
func NewClientWithDimensions(provider Provider, dimensions int) *Client {
	if dimensions <= 0 {
		dimensions = DefaultDimensions
	}
	return &Client{
		provider:   provider,
		dimensions: dimensions,
	}
}

// Model returns the provider's model identifier.
func (c *Client) Model() string {
	return c.provider.Model()
}

// EmbedDocuments embeds a batch of document chunks, splitting over the
// provider's per-request input limit. The result preserves input order.
func (c *Client) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	for _, t := range texts {
		if t == "" {
			return nil, ErrEmptyText
		}
	}

	vectors := make([][]float32, 0, len(texts))
	for offset := 0; offset < len(texts); offset += providerBatchLimit {
		end := offset + providerBatchLimit
		if end > len(texts) {
			end = len(texts)
		}
		batch, err := c.provider.Embed(ctx, texts[offset:end], IntentDocument)
		if err != nil {
			return nil, fmt.Errorf("failed to embed documents: %w", err)
		}
		if len(batch) != end-offset {
			return nil, fmt.Errorf("provider returned %d embeddings for %d inputs", len(batch), end-offset)
		}
		for _, vec := range batch {
			if len(vec) != c.dimensions {
				return nil, ErrWrongDimensions
			}
		}
		vectors = append(vectors, batch...)
	}

	return vectors, nil
}

// EmbedQuery embeds a single live search query with query intent.
func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}

	vectors, err := c.provider.Embed(ctx, []string{text}, IntentQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(vectors) == 0 {
		return nil, errors.New("no embedding data returned")
	}
	if len(vectors[0]) != c.dimensions {
		return nil, ErrWrongDimensions
	}

	return vectors[0], nil
}
