package orchestrator

import (
	"context"

	"github.com/arcanum-labs/arcanum/pkg/llms"
)

// CachedOrchestrator composes a response cache over a core orchestrator.
// The instance-level EnableCaching flag and the per-call useCache
// argument both gate the cache; both must be true for it to apply.
type CachedOrchestrator struct {
	core  *Orchestrator
	cache *ResponseCache

	// EnableCaching gates caching for every call through this instance.
	EnableCaching bool
}

// NewCachedOrchestrator wraps core with cache. A nil or disabled cache
// yields pass-through behavior.
func NewCachedOrchestrator(core *Orchestrator, cache *ResponseCache) *CachedOrchestrator {
	return &CachedOrchestrator{
		core:          core,
		cache:         cache,
		EnableCaching: cache.Enabled(),
	}
}

// Generate consults the cache before delegating. Cached hits invoke no
// provider and surface the stored AIResponse as the single attempt.
func (c *CachedOrchestrator) Generate(ctx context.Context, req *llms.GenerateRequest) (*llms.OrchestratorResponse, error) {
	return c.GenerateCached(ctx, req, true)
}

// GenerateCached is Generate with an explicit per-call cache gate.
func (c *CachedOrchestrator) GenerateCached(ctx context.Context, req *llms.GenerateRequest, useCache bool) (*llms.OrchestratorResponse, error) {
	useCache = useCache && c.EnableCaching && c.cache.Enabled()

	var params KeyParams
	if useCache {
		params = KeyParams{
			Prompt:       req.Prompt,
			SystemPrompt: req.SystemPrompt,
			Model:        req.Model,
			Config:       req.Config,
		}
		if cached := c.cache.Get(ctx, params); cached != nil {
			return &llms.OrchestratorResponse{
				Primary:     cached,
				AllAttempts: []*llms.AIResponse{cached},
				TotalCost:   cached.EstimatedCost,
			}, nil
		}
	}

	resp, err := c.core.Generate(ctx, req)
	if err != nil {
		return nil, err
	}

	if useCache {
		c.cache.Set(ctx, resp.Primary, params, 0)
	}
	return resp, nil
}

// GenerateParallel delegates; parallel batch calls bypass the cache since
// batch prompts are effectively unique per reading.
func (c *CachedOrchestrator) GenerateParallel(ctx context.Context, reqs []*llms.GenerateRequest) ([]*llms.OrchestratorResponse, error) {
	return c.core.GenerateParallel(ctx, reqs)
}

// ProviderStatus delegates to the core orchestrator.
func (c *CachedOrchestrator) ProviderStatus() Status {
	return c.core.ProviderStatus()
}

// CacheMetrics returns the underlying cache metrics snapshot.
func (c *CachedOrchestrator) CacheMetrics() CacheMetrics {
	return c.cache.Metrics()
}
