// Package embedding provides pluggable embedding backends behind a single
// provider registry. Every failure path degrades to a deterministic offline
// vector instead of propagating an error, so ingestion and search keep
// working when no real backend is reachable.
package embedding

import (
	"context"
	"errors"
	"fmt"

	"hydrokb/internal/config"
)

// Kind is the closed set of provider variants. Dispatch happens on this
// enum, never on id prefixes.
type Kind int

const (
	KindMock Kind = iota
	KindOpenAI
	KindOllama
)

func (k Kind) String() string {
	switch k {
	case KindOpenAI:
		return "openai"
	case KindOllama:
		return "ollama"
	default:
		return "mock"
	}
}

// KindFromString parses the config representation of a provider kind.
func KindFromString(s string) (Kind, error) {
	switch s {
	case "openai":
		return KindOpenAI, nil
	case "ollama":
		return KindOllama, nil
	case "mock", "":
		return KindMock, nil
	default:
		return KindMock, fmt.Errorf("unknown provider kind %q", s)
	}
}

// ProviderInfo describes a configured embedding backend.
type ProviderInfo struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Kind      Kind   `json:"-"`
	Model     string `json:"model"`
	Dimension int    `json:"dimension"`
}

// Provider generates fixed-dimension vectors for text.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
	Info() ProviderInfo
}

// Embedding is the registry's degraded-tolerant result: the vector is always
// usable; Degraded marks vectors produced by the offline fallback.
type Embedding struct {
	Vector   []float32
	Degraded bool
	Reason   string
}

var (
	// ErrProviderUnavailable means the backend is unreachable or has no
	// usable credential.
	ErrProviderUnavailable = errors.New("embedding provider unavailable")
	// ErrModelNotFound means the local model server does not have the
	// requested model pulled.
	ErrModelNotFound = errors.New("embedding model not found on local server")
	// ErrProviderNotRegistered is returned by SetActive for unknown ids.
	ErrProviderNotRegistered = errors.New("embedding provider not registered")
)

// build constructs a concrete provider from its config entry. A provider
// that cannot be constructed (missing credential, disabled) is returned as
// nil together with the reason; the registry keeps its descriptor and serves
// it through the fallback.
func build(pc config.ProviderConfig) (Provider, string) {
	kind, err := KindFromString(pc.Kind)
	if err != nil {
		return nil, err.Error()
	}
	if !pc.Enabled {
		return nil, fmt.Sprintf("provider %s is disabled", pc.ID)
	}
	switch kind {
	case KindOpenAI:
		if pc.APIKey == "" {
			return nil, fmt.Sprintf("provider %s has no API key configured", pc.ID)
		}
		p, err := NewOpenAIProvider(pc)
		if err != nil {
			return nil, fmt.Sprintf("failed to initialize %s: %v", pc.ID, err)
		}
		return p, ""
	case KindOllama:
		p, err := NewOllamaProvider(pc)
		if err != nil {
			return nil, fmt.Sprintf("failed to initialize %s: %v", pc.ID, err)
		}
		return p, ""
	default:
		return NewMockProvider(pc.ID, pc.Name, pc.Dimension), ""
	}
}
