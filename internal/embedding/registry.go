package embedding

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"hydrokb/internal/config"
)

// entry pairs a descriptor with its (possibly nil) constructed provider. A
// nil provider means construction was skipped or failed; the registry serves
// such entries through the fallback with the recorded reason.
type entry struct {
	info     ProviderInfo
	provider Provider
	reason   string
}

// Registry owns the configured providers and the single active selection.
// It is an explicit handle passed into the retrieval engine, not process
// global state. Switching the active provider does not re-embed existing
// chunks; VectorIndexSync closes that window lazily.
type Registry struct {
	mu      sync.RWMutex
	order   []string
	entries map[string]*entry
	active  string
}

// NewRegistry builds a registry from config. Providers that cannot be
// constructed are kept as degraded descriptors so that listing and
// activation still work and the pipeline never stalls.
func NewRegistry(cfg config.EmbeddingConfig) *Registry {
	r := &Registry{entries: map[string]*entry{}}
	for _, pc := range cfg.Providers {
		kind, _ := KindFromString(pc.Kind)
		info := ProviderInfo{ID: pc.ID, Name: pc.Name, Kind: kind, Model: pc.Model, Dimension: pc.Dimension}
		if info.Dimension <= 0 {
			info.Dimension = DefaultMockDimension
		}
		p, reason := build(pc)
		if p == nil {
			log.Warn().Str("provider", pc.ID).Str("reason", reason).
				Msg("Embedding provider not usable, requests will degrade to fallback")
		}
		r.order = append(r.order, pc.ID)
		r.entries[pc.ID] = &entry{info: info, provider: p, reason: reason}
	}
	if len(r.order) == 0 {
		mock := NewMockProvider("mock", "Offline fallback", DefaultMockDimension)
		r.order = append(r.order, "mock")
		r.entries["mock"] = &entry{info: mock.Info(), provider: mock}
	}
	r.active = cfg.Active
	if _, ok := r.entries[r.active]; !ok {
		r.active = r.order[0]
	}
	return r
}

// List returns the descriptors of all configured providers in config order.
func (r *Registry) List() []ProviderInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	infos := make([]ProviderInfo, 0, len(r.order))
	for _, id := range r.order {
		infos = append(infos, r.entries[id].info)
	}
	return infos
}

// SetActive switches the active provider. Existing vectors are not migrated;
// the next sync pass re-embeds whatever no longer matches the new dimension.
func (r *Registry) SetActive(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[id]; !ok {
		return ErrProviderNotRegistered
	}
	if id != r.active {
		log.Info().Str("from", r.active).Str("to", id).Msg("Switching active embedding provider")
	}
	r.active = id
	return nil
}

// Active returns the descriptor of the active provider.
func (r *Registry) Active() ProviderInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.entries[r.active].info
}

// Dimension returns the active provider's output dimension. Fallback vectors
// are generated at this dimension too, so one sync pass keeps the index
// shape stable.
func (r *Registry) Dimension() int {
	return r.Active().Dimension
}

func (r *Registry) activeEntry() *entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.entries[r.active]
}

// Embed generates a vector for text. Provider failures never propagate: the
// result degrades to the deterministic fallback with the failure reason
// attached.
func (r *Registry) Embed(ctx context.Context, text string) Embedding {
	e := r.activeEntry()
	if e.provider == nil {
		return r.fallback(text, e)
	}
	vec, err := e.provider.Embed(ctx, text)
	if err != nil {
		log.Warn().Err(err).Str("provider", e.info.ID).Msg("Embedding failed, using fallback vector")
		return Embedding{Vector: MockVector(text, e.info.Dimension), Degraded: true, Reason: err.Error()}
	}
	return Embedding{Vector: vec}
}

// EmbedBatch generates vectors for texts, degrading the whole batch to
// fallback vectors if the provider rejects it.
func (r *Registry) EmbedBatch(ctx context.Context, texts []string) []Embedding {
	e := r.activeEntry()
	if e.provider == nil {
		out := make([]Embedding, len(texts))
		for i, t := range texts {
			out[i] = r.fallback(t, e)
		}
		return out
	}
	vecs, err := e.provider.EmbedBatch(ctx, texts)
	if err != nil {
		log.Warn().Err(err).Str("provider", e.info.ID).Msg("Batch embedding failed, using fallback vectors")
		out := make([]Embedding, len(texts))
		for i, t := range texts {
			out[i] = Embedding{Vector: MockVector(t, e.info.Dimension), Degraded: true, Reason: err.Error()}
		}
		return out
	}
	out := make([]Embedding, len(vecs))
	for i, v := range vecs {
		out[i] = Embedding{Vector: v}
	}
	return out
}

// TryEmbed generates a vector without the degraded safety net. Ingestion
// uses it for the first chunk of a document, where a failure should surface
// as a configuration problem instead of silently indexing fallback vectors.
func (r *Registry) TryEmbed(ctx context.Context, text string) ([]float32, error) {
	e := r.activeEntry()
	if e.provider == nil {
		return nil, ErrProviderUnavailable
	}
	return e.provider.Embed(ctx, text)
}

// ActiveUsable reports whether the active provider was actually constructed.
// When it was not (missing credential, disabled), callers degrade straight to
// the fallback instead of treating the first failure as fatal.
func (r *Registry) ActiveUsable() bool {
	return r.activeEntry().provider != nil
}

func (r *Registry) fallback(text string, e *entry) Embedding {
	reason := e.reason
	if reason == "" {
		reason = ErrProviderUnavailable.Error()
	}
	return Embedding{Vector: MockVector(text, e.info.Dimension), Degraded: true, Reason: reason}
}
