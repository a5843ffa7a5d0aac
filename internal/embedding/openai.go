package embedding

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"

	"hydrokb/internal/config"
)

// OpenAIProvider is the cloud-API variant. One network call per text or per
// batch through the OpenAI-compatible embeddings endpoint.
type OpenAIProvider struct {
	embedder *embeddings.EmbedderImpl
	info     ProviderInfo
}

func NewOpenAIProvider(pc config.ProviderConfig) (*OpenAIProvider, error) {
	opts := []openai.Option{
		openai.WithToken(strings.TrimPrefix(pc.APIKey, "Bearer ")),
		openai.WithModel(pc.Model),
		openai.WithEmbeddingModel(pc.Model),
	}
	if pc.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(pc.BaseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize openai client: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	return &OpenAIProvider{
		embedder: embedder,
		info: ProviderInfo{
			ID:        pc.ID,
			Name:      pc.Name,
			Kind:      KindOpenAI,
			Model:     pc.Model,
			Dimension: pc.Dimension,
		},
	}, nil
}

func (p *OpenAIProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := p.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	return vec, nil
}

func (p *OpenAIProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vecs, err := p.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	return vecs, nil
}

func (p *OpenAIProvider) Dimension() int { return p.info.Dimension }

func (p *OpenAIProvider) Info() ProviderInfo { return p.info }
