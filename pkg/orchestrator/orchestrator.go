// Package orchestrator multiplexes LLM providers with per-attempt
// timeouts, bounded retries with exponential backoff, model routing,
// parallel fan-out, and optional response caching.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/sync/errgroup"

	"github.com/arcanum-labs/arcanum/pkg/llms"
)

// backoffCap bounds exponential backoff between attempts.
const backoffCap = 4 * time.Second

// Generator is the orchestration surface the reading engines depend on.
type Generator interface {
	Generate(ctx context.Context, req *llms.GenerateRequest) (*llms.OrchestratorResponse, error)
	GenerateParallel(ctx context.Context, reqs []*llms.GenerateRequest) ([]*llms.OrchestratorResponse, error)
	ProviderStatus() Status
}

// Status describes the orchestrator's provider configuration.
type Status struct {
	TotalProviders int            `json:"total_providers"`
	Primary        ProviderInfo   `json:"primary"`
	Fallbacks      []ProviderInfo `json:"fallbacks"`
	TimeoutSeconds float64        `json:"timeout"`
	MaxRetries     int            `json:"max_retries"`
}

// ProviderInfo names a provider and its default model.
type ProviderInfo struct {
	Name  string `json:"name"`
	Model string `json:"model"`
}

// ProviderFailure records one provider's terminal failure during routing.
type ProviderFailure struct {
	Provider  string
	Kind      llms.ErrorKind
	Message   string
	IsPrimary bool
}

// AllProvidersFailedError reports that every compatible provider failed.
type AllProvidersFailedError struct {
	Failures []ProviderFailure
}

func (e *AllProvidersFailedError) Error() string {
	var sb strings.Builder
	sb.WriteString("all providers failed: ")
	for i, f := range e.Failures {
		if i > 0 {
			sb.WriteString("; ")
		}
		fmt.Fprintf(&sb, "%s (%s): %s", f.Provider, f.Kind, f.Message)
	}
	return sb.String()
}

// NoCompatibleProviderError reports model routing that matched nothing.
type NoCompatibleProviderError struct {
	Model string
}

func (e *NoCompatibleProviderError) Error() string {
	return fmt.Sprintf("no compatible provider for model %q", e.Model)
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithTimeout sets the per-attempt deadline.
func WithTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.timeout = d }
}

// WithMaxRetries sets retries per provider. 0 means a single attempt.
func WithMaxRetries(n int) Option {
	return func(o *Orchestrator) { o.maxRetries = n }
}

// WithSleep replaces the backoff sleep, for tests.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(o *Orchestrator) { o.sleep = sleep }
}

// WithoutBreakers disables circuit breakers, for tests.
func WithoutBreakers() Option {
	return func(o *Orchestrator) { o.breakers = nil }
}

// DefaultModels maps provider name to the model used when a request does
// not pin one; populated from provider configs at construction.
type DefaultModels map[string]string

// Orchestrator tries providers strictly in priority order, retrying
// retryable failures per provider before falling back to the next.
type Orchestrator struct {
	providers     []llms.Provider
	defaultModels DefaultModels
	timeout       time.Duration
	maxRetries    int
	breakers      map[string]*gobreaker.CircuitBreaker
	sleep         func(ctx context.Context, d time.Duration) error
}

// New creates an orchestrator. Index 0 of providers is the primary; the
// rest are fallbacks in order. An empty provider list is an error.
func New(providers []llms.Provider, defaultModels DefaultModels, opts ...Option) (*Orchestrator, error) {
	if len(providers) == 0 {
		return nil, fmt.Errorf("orchestrator requires at least one provider")
	}

	o := &Orchestrator{
		providers:     providers,
		defaultModels: defaultModels,
		timeout:       30 * time.Second,
		maxRetries:    2,
		sleep:         sleepCtx,
		breakers:      make(map[string]*gobreaker.CircuitBreaker),
	}
	for _, opt := range opts {
		opt(o)
	}

	if o.breakers != nil {
		for _, p := range providers {
			name := p.Name()
			o.breakers[name] = gobreaker.NewCircuitBreaker(gobreaker.Settings{
				Name:    name,
				Timeout: 30 * time.Second,
				ReadyToTrip: func(counts gobreaker.Counts) bool {
					return counts.ConsecutiveFailures >= 5
				},
				OnStateChange: func(name string, from, to gobreaker.State) {
					slog.Warn("Provider circuit state changed", "provider", name, "from", from.String(), "to", to.String())
				},
			})
		}
	}

	return o, nil
}

// Generate routes the request, trying compatible providers in priority
// order. The returned response's Primary is always the final attempt.
func (o *Orchestrator) Generate(ctx context.Context, req *llms.GenerateRequest) (*llms.OrchestratorResponse, error) {
	compatible := o.compatibleProviders(req.Model)
	if len(compatible) == 0 {
		return nil, &NoCompatibleProviderError{Model: req.Model}
	}

	var (
		attempts []*llms.AIResponse
		failures []ProviderFailure
	)

	for i, provider := range compatible {
		resp, err := o.tryProvider(ctx, provider, req)
		if err == nil {
			attempts = append(attempts, resp)
			return buildResponse(attempts), nil
		}

		kind := llms.ErrUnknown
		if pe, ok := llms.AsProviderError(err); ok {
			kind = pe.Kind
		}
		// Keep the failed provider in the attempt history so the ordered
		// chain of providers is visible in the final response.
		attempts = append(attempts, &llms.AIResponse{
			Provider:     provider.Name(),
			Model:        o.effectiveRequest(provider.Name(), req).Model,
			FinishReason: llms.FinishOther,
			CreatedAt:    time.Now(),
		})
		failures = append(failures, ProviderFailure{
			Provider:  provider.Name(),
			Kind:      kind,
			Message:   err.Error(),
			IsPrimary: i == 0,
		})
		slog.Warn("Provider failed, falling back",
			"provider", provider.Name(),
			"kind", string(kind),
			"remaining", len(compatible)-i-1)
	}

	metricAllFailed.Inc()
	return nil, &AllProvidersFailedError{Failures: failures}
}

// tryProvider runs up to maxRetries+1 attempts against one provider,
// backing off between retryable failures. Non-retryable errors propagate
// immediately.
func (o *Orchestrator) tryProvider(ctx context.Context, provider llms.Provider, req *llms.GenerateRequest) (*llms.AIResponse, error) {
	name := provider.Name()

	invoke := func() (*llms.AIResponse, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, o.timeout)
		defer cancel()
		metricAttempts.WithLabelValues(name).Inc()
		return provider.Generate(attemptCtx, o.effectiveRequest(name, req))
	}

	var lastErr error
	for attempt := 0; attempt <= o.maxRetries; attempt++ {
		resp, err := o.withBreaker(name, invoke)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		var brkErr *nonRetryableBreakerError
		if errors.As(err, &brkErr) {
			// Open breaker: fall through to the next provider at once.
			return nil, brkErr.ProviderError
		}

		pe, ok := llms.AsProviderError(err)
		if !ok || !pe.Retryable() {
			return nil, err
		}
		if attempt == o.maxRetries {
			break
		}

		wait := backoff(attempt)
		if pe.RetryAfter > 0 {
			wait = pe.RetryAfter
		}
		slog.Warn("Retryable provider error, backing off",
			"provider", name,
			"kind", string(pe.Kind),
			"attempt", attempt+1,
			"wait", wait)
		if err := o.sleep(ctx, wait); err != nil {
			return nil, llms.NewProviderError(llms.ErrTimeout, name, "canceled during backoff")
		}
	}
	return nil, lastErr
}

// withBreaker wraps one attempt in the provider's circuit breaker. An
// open breaker surfaces as service_unavailable so routing falls through
// to the next provider without burning retries.
func (o *Orchestrator) withBreaker(name string, invoke func() (*llms.AIResponse, error)) (*llms.AIResponse, error) {
	if o.breakers == nil {
		return invoke()
	}
	breaker, ok := o.breakers[name]
	if !ok {
		return invoke()
	}

	result, err := breaker.Execute(func() (interface{}, error) {
		return invoke()
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			pe := llms.NewProviderError(llms.ErrServiceUnavailable, name, "circuit breaker open")
			// No point retrying an open breaker within this request.
			pe.RetryAfter = 0
			return nil, &nonRetryableBreakerError{pe}
		}
		return nil, err
	}
	return result.(*llms.AIResponse), nil
}

// nonRetryableBreakerError keeps the taxonomy kind while suppressing
// in-request retries against an open breaker.
type nonRetryableBreakerError struct {
	*llms.ProviderError
}

func (e *nonRetryableBreakerError) Unwrap() error { return e.ProviderError }

// GenerateParallel runs the requests concurrently, preserving input order
// in the result slice. Any single failure fails the whole batch; callers
// wanting partial success must orchestrate themselves.
func (o *Orchestrator) GenerateParallel(ctx context.Context, reqs []*llms.GenerateRequest) ([]*llms.OrchestratorResponse, error) {
	results := make([]*llms.OrchestratorResponse, len(reqs))

	g, gctx := errgroup.WithContext(ctx)
	for i, req := range reqs {
		g.Go(func() error {
			resp, err := o.Generate(gctx, req)
			if err != nil {
				return fmt.Errorf("parallel request %d: %w", i, err)
			}
			results[i] = resp
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// ProviderStatus reports the provider chain configuration.
func (o *Orchestrator) ProviderStatus() Status {
	status := Status{
		TotalProviders: len(o.providers),
		TimeoutSeconds: o.timeout.Seconds(),
		MaxRetries:     o.maxRetries,
	}
	for i, p := range o.providers {
		info := ProviderInfo{Name: p.Name(), Model: o.defaultModels[p.Name()]}
		if i == 0 {
			status.Primary = info
		} else {
			status.Fallbacks = append(status.Fallbacks, info)
		}
	}
	return status
}

// compatibleProviders filters by model, preserving priority order. An
// unset model keeps every provider. Matching is substring containment,
// so a registry id like "gemini-2.0-flash" claims both the dated
// variants and vendor-prefixed aliases ("models/gemini-2.0-flash").
func (o *Orchestrator) compatibleProviders(model string) []llms.Provider {
	if model == "" {
		return o.providers
	}
	var out []llms.Provider
	for _, p := range o.providers {
		for _, m := range p.AvailableModels() {
			if strings.Contains(model, m) {
				out = append(out, p)
				break
			}
		}
	}
	return out
}

// effectiveRequest fills the provider's default model into requests that
// do not pin one, so attempt logs always carry a concrete model id.
func (o *Orchestrator) effectiveRequest(providerName string, req *llms.GenerateRequest) *llms.GenerateRequest {
	if req.Model != "" || o.defaultModels[providerName] == "" {
		return req
	}
	withModel := *req
	withModel.Model = o.defaultModels[providerName]
	return &withModel
}

func buildResponse(attempts []*llms.AIResponse) *llms.OrchestratorResponse {
	var total float64
	for _, a := range attempts {
		total += a.EstimatedCost
	}
	return &llms.OrchestratorResponse{
		Primary:     attempts[len(attempts)-1],
		AllAttempts: attempts,
		TotalCost:   total,
	}
}

// backoff returns min(2^attempt, cap) seconds.
func backoff(attempt int) time.Duration {
	d := time.Duration(1<<attempt) * time.Second
	if d > backoffCap {
		return backoffCap
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
