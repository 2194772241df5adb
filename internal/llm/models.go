package llm

import (
	"context"
	"fmt"
	"sync"

	"charm.land/catwalk/pkg/catwalk"
)

var (
	providersCache []catwalk.Provider
	providersMu    sync.RWMutex
	cacheLoaded    bool
)

// CatalogProviders returns the model catalog from catwalk, cached after
// the first fetch.
func CatalogProviders(ctx context.Context) ([]catwalk.Provider, error) {
	providersMu.RLock()
	if cacheLoaded {
		defer providersMu.RUnlock()
		return providersCache, nil
	}
	providersMu.RUnlock()

	providersMu.Lock()
	defer providersMu.Unlock()

	if cacheLoaded {
		return providersCache, nil
	}

	client := catwalk.New()
	providers, err := client.GetProviders(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch model catalog: %w", err)
	}

	providersCache = providers
	cacheLoaded = true
	return providers, nil
}

// ModelInfo is a simplified model representation for listing.
type ModelInfo struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Provider      string  `json:"provider"`
	ContextWindow int64   `json:"context_window"`
	CostPer1MIn   float64 `json:"cost_per_1m_in"`
	CostPer1MOut  float64 `json:"cost_per_1m_out"`
	CanReason     bool    `json:"can_reason"`
}

// ListAllModels returns a flat list of all catalog models.
func ListAllModels(ctx context.Context) ([]ModelInfo, error) {
	providers, err := CatalogProviders(ctx)
	if err != nil {
		return nil, err
	}

	var models []ModelInfo
	for _, p := range providers {
		for _, m := range p.Models {
			models = append(models, ModelInfo{
				ID:            m.ID,
				Name:          m.Name,
				Provider:      string(p.ID),
				ContextWindow: m.ContextWindow,
				CostPer1MIn:   m.CostPer1MIn,
				CostPer1MOut:  m.CostPer1MOut,
				CanReason:     m.CanReason,
			})
		}
	}
	return models, nil
}

// LookupModel finds a model's catalog entry, or nil when the catalog does
// not know it (local models, unlisted endpoints).
func LookupModel(ctx context.Context, provider, model string) *ModelInfo {
	providers, err := CatalogProviders(ctx)
	if err != nil {
		return nil
	}
	for _, p := range providers {
		if string(p.ID) != provider {
			continue
		}
		for _, m := range p.Models {
			if m.ID == model {
				return &ModelInfo{
					ID:            m.ID,
					Name:          m.Name,
					Provider:      string(p.ID),
					ContextWindow: m.ContextWindow,
					CostPer1MIn:   m.CostPer1MIn,
					CostPer1MOut:  m.CostPer1MOut,
					CanReason:     m.CanReason,
				}
			}
		}
	}
	return nil
}

// EstimateCost returns the USD cost of a run's token usage against a
// catalog model, or 0 when the model has no pricing data.
func EstimateCost(info *ModelInfo, usage Usage) float64 {
	if info == nil {
		return 0
	}
	return float64(usage.InputTokens)/1_000_000*info.CostPer1MIn +
		float64(usage.OutputTokens)/1_000_000*info.CostPer1MOut
}
