package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"log/slog"

	"github.com/arcanum-labs/arcanum/pkg/config"
	"github.com/arcanum-labs/arcanum/pkg/llms"
)

// SettingsSource supplies the administrative settings the orchestrator is
// built from. The core never reads credentials from the environment per
// request; it loads through this source on construction and again after
// every invalidation.
type SettingsSource interface {
	Settings(ctx context.Context) (*config.SettingsConfig, error)
}

// StaticSettings adapts a fixed config as a SettingsSource.
type StaticSettings struct {
	Config *config.SettingsConfig
}

func (s StaticSettings) Settings(ctx context.Context) (*config.SettingsConfig, error) {
	return s.Config, nil
}

// Service holds the process-wide orchestrator singleton. Administrative
// settings changes call Invalidate, which discards the cached instance so
// the next request rebuilds providers with updated credentials and
// priority.
type Service struct {
	mu      sync.Mutex
	source  SettingsSource
	cache   *ResponseCache
	models  *llms.ModelRegistry
	current *CachedOrchestrator
}

// NewService creates the singleton holder. cache may be a degraded
// (no-redis) cache; models may be nil to use the global registry.
func NewService(source SettingsSource, cache *ResponseCache, models *llms.ModelRegistry) *Service {
	if models == nil {
		models = llms.DefaultModelRegistry()
	}
	return &Service{source: source, cache: cache, models: models}
}

// Get returns the cached orchestrator, building it on first use.
func (s *Service) Get(ctx context.Context) (*CachedOrchestrator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil {
		return s.current, nil
	}

	built, err := s.build(ctx)
	if err != nil {
		return nil, err
	}
	s.current = built
	return built, nil
}

// Invalidate discards the cached orchestrator. The next Get rebuilds it
// from freshly loaded settings.
func (s *Service) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = nil
	slog.Info("Orchestrator cache invalidated")
}

// Generator returns a Generator view that resolves the current singleton
// on every call, so callers built once at boot still pick up rebuilt
// orchestrators after an invalidation.
func (s *Service) Generator() Generator {
	return serviceGenerator{svc: s}
}

type serviceGenerator struct {
	svc *Service
}

func (g serviceGenerator) Generate(ctx context.Context, req *llms.GenerateRequest) (*llms.OrchestratorResponse, error) {
	o, err := g.svc.Get(ctx)
	if err != nil {
		return nil, err
	}
	return o.Generate(ctx, req)
}

func (g serviceGenerator) GenerateParallel(ctx context.Context, reqs []*llms.GenerateRequest) ([]*llms.OrchestratorResponse, error) {
	o, err := g.svc.Get(ctx)
	if err != nil {
		return nil, err
	}
	return o.GenerateParallel(ctx, reqs)
}

func (g serviceGenerator) ProviderStatus() Status {
	o, err := g.svc.Get(context.Background())
	if err != nil {
		return Status{}
	}
	return o.ProviderStatus()
}

func (s *Service) build(ctx context.Context) (*CachedOrchestrator, error) {
	settings, err := s.source.Settings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	providerRegistry := llms.NewProviderRegistry()
	ordered := settings.OrderedProviders()

	providers := make([]llms.Provider, 0, len(ordered))
	defaultModels := make(DefaultModels, len(ordered))
	var (
		timeout    time.Duration
		maxRetries int
	)
	for i := range ordered {
		cfg := ordered[i]
		p, err := providerRegistry.CreateFromConfig(&cfg)
		if err != nil {
			slog.Warn("Skipping provider that failed to construct", "type", cfg.Type, "error", err)
			continue
		}
		providers = append(providers, p)
		defaultModels[p.Name()] = cfg.Model
		s.models.PopulateFromProvider(p)
		if timeout == 0 {
			timeout = time.Duration(cfg.Timeout) * time.Second
			maxRetries = cfg.MaxRetries
		}
	}

	if timeout == 0 {
		timeout = time.Duration(settings.DefaultTimeout) * time.Second
	}

	core, err := New(providers, defaultModels,
		WithTimeout(timeout),
		WithMaxRetries(maxRetries),
	)
	if err != nil {
		return nil, err
	}

	slog.Info("Orchestrator built",
		"providers", len(providers),
		"timeout", timeout,
		"max_retries", maxRetries)
	return NewCachedOrchestrator(core, s.cache), nil
}
