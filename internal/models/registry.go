// Package models picks which OpenRouter model plays each seat.
package models

import (
	"context"
	"log/slog"

	"github.com/lorenzotomasdiez/chameleon/internal/openrouter"
)

// Lister fetches the live model catalog.
type Lister interface {
	ListModels(ctx context.Context) ([]openrouter.Model, error)
}

// Registry holds the free models players may be assigned.
type Registry struct {
	free []openrouter.Model
}

// NewRegistry keeps only free models (prompt and completion price "0").
// Models without pricing are excluded.
func NewRegistry(models []openrouter.Model) *Registry {
	var free []openrouter.Model
	for _, m := range models {
		if m.Pricing == nil {
			continue
		}
		if m.Pricing.Prompt == "0" && m.Pricing.Completion == "0" {
			free = append(free, m)
		}
	}
	return &Registry{free: free}
}

// Load builds a registry from the live catalog, falling back to
// DefaultFreeModels when the catalog is unreachable or has no free models.
func Load(ctx context.Context, l Lister, logger *slog.Logger) *Registry {
	all, err := l.ListModels(ctx)
	if err != nil {
		logger.Warn("could not fetch models, using defaults", "error", err)
		return NewRegistry(DefaultFreeModels())
	}
	r := NewRegistry(all)
	if len(r.free) == 0 {
		logger.Warn("no free models listed, using defaults")
		return NewRegistry(DefaultFreeModels())
	}
	return r
}

// FreeModels returns all free models in the registry.
func (r *Registry) FreeModels() []openrouter.Model {
	return r.free
}

// Contains reports whether id is a free model in the registry.
func (r *Registry) Contains(id string) bool {
	for _, m := range r.free {
		if m.ID == id {
			return true
		}
	}
	return false
}

// SelectModels returns n models, cycling when n exceeds the free list.
func (r *Registry) SelectModels(n int) []openrouter.Model {
	if len(r.free) == 0 {
		return nil
	}
	selected := make([]openrouter.Model, n)
	for i := range n {
		selected[i] = r.free[i%len(r.free)]
	}
	return selected
}

// Assign returns a model id per seat. A non-empty pinned id is used for
// every seat.
func (r *Registry) Assign(seats int, pinned string) []string {
	ids := make([]string, seats)
	if pinned != "" {
		for i := range ids {
			ids[i] = pinned
		}
		return ids
	}
	for i, m := range r.SelectModels(seats) {
		ids[i] = m.ID
	}
	return ids
}

// DefaultFreeModels is the fallback list of known free models.
func DefaultFreeModels() []openrouter.Model {
	return []openrouter.Model{
		{ID: "qwen/qwen3-235b-a22b:free", Name: "Qwen3 235B A22B", Pricing: &openrouter.Pricing{Prompt: "0", Completion: "0"}},
		{ID: "google/gemma-3n-e2b-it:free", Name: "Gemma 3n 2B", Pricing: &openrouter.Pricing{Prompt: "0", Completion: "0"}},
		{ID: "nvidia/nemotron-nano-9b-v2:free", Name: "Nemotron Nano 9B V2", Pricing: &openrouter.Pricing{Prompt: "0", Completion: "0"}},
		{ID: "meta-llama/llama-3.3-70b-instruct:free", Name: "Llama 3.3 70B Instruct", Pricing: &openrouter.Pricing{Prompt: "0", Completion: "0"}},
		{ID: "openai/gpt-oss-120b:free", Name: "GPT OSS 120B", Pricing: &openrouter.Pricing{Prompt: "0", Completion: "0"}},
	}
}
