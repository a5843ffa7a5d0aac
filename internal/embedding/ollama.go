package embedding

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"

	"hydrokb/internal/config"
)

const defaultOllamaURL = "http://localhost:11434"

// OllamaProvider is the local-model-server variant. The server has no native
// batch endpoint, so a batch request is served as N sequential calls.
type OllamaProvider struct {
	embedder *embeddings.EmbedderImpl
	client   *http.Client
	baseURL  string
	info     ProviderInfo

	checkMu sync.Mutex
	checked bool
}

func NewOllamaProvider(pc config.ProviderConfig) (*OllamaProvider, error) {
	baseURL := pc.BaseURL
	if baseURL == "" {
		baseURL = defaultOllamaURL
	}
	llm, err := ollama.New(
		ollama.WithServerURL(baseURL),
		ollama.WithModel(pc.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ollama client: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	return &OllamaProvider{
		embedder: embedder,
		client:   &http.Client{Timeout: 10 * time.Second},
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		info: ProviderInfo{
			ID:        pc.ID,
			Name:      pc.Name,
			Kind:      KindOllama,
			Model:     pc.Model,
			Dimension: pc.Dimension,
		},
	}, nil
}

// checkModel verifies the requested model is present on the local server via
// /api/tags. Only a successful check is cached: an unreachable server or a
// model pulled after startup is checked again on the next call.
func (p *OllamaProvider) checkModel(ctx context.Context) error {
	p.checkMu.Lock()
	defer p.checkMu.Unlock()
	if p.checked {
		return nil
	}
	if err := p.lookupModel(ctx); err != nil {
		return err
	}
	p.checked = true
	return nil
}

func (p *OllamaProvider) lookupModel(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: server returned status %d", ErrProviderUnavailable, resp.StatusCode)
	}
	var tags struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	for _, m := range tags.Models {
		// Tags carry a ":latest" style suffix.
		if m.Name == p.info.Model || strings.SplitN(m.Name, ":", 2)[0] == p.info.Model {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrModelNotFound, p.info.Model)
}

func (p *OllamaProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := p.checkModel(ctx); err != nil {
		return nil, err
	}
	vec, err := p.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	return vec, nil
}

func (p *OllamaProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := p.checkModel(ctx); err != nil {
		return nil, err
	}
	vecs := make([][]float32, len(texts))
	for i, t := range texts {
		vec, err := p.embedder.EmbedQuery(ctx, t)
		if err != nil {
			return nil, fmt.Errorf("%w: text %d: %v", ErrProviderUnavailable, i, err)
		}
		vecs[i] = vec
	}
	return vecs, nil
}

func (p *OllamaProvider) Dimension() int { return p.info.Dimension }

func (p *OllamaProvider) Info() ProviderInfo { return p.info }
