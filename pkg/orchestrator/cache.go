package orchestrator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync/atomic"
	"time"

	"log/slog"

	"github.com/go-redis/redis/v8"

	"github.com/arcanum-labs/arcanum/pkg/config"
	"github.com/arcanum-labs/arcanum/pkg/llms"
)

// KeyParams are the fields that define an LLM call's result. Everything
// here participates in the cache fingerprint; the fields deliberately
// excluded are listed in excludedKeyFields.
type KeyParams struct {
	Prompt       string
	SystemPrompt string
	Model        string
	Config       *llms.GenerationConfig
}

// excludedKeyFields documents request parameters that never enter the
// fingerprint because they do not change the generated content.
var excludedKeyFields = []string{"timeout", "max_retries", "latency_ms", "created_at"}

// CacheMetrics is a snapshot of cache effectiveness.
type CacheMetrics struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	Errors  int64   `json:"errors"`
	Total   int64   `json:"total"`
	HitRate float64 `json:"hit_rate"`
}

// CacheHealth reports the backing store's reachability.
type CacheHealth struct {
	Status string  `json:"status"`
	RTTMS  float64 `json:"rtt_ms,omitempty"`
	Error  string  `json:"error,omitempty"`
}

// redisClient is the subset of redis.Client the cache uses. Tests
// substitute an in-memory implementation.
type redisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Scan(ctx context.Context, cursor uint64, match string, count int64) *redis.ScanCmd
	Ping(ctx context.Context) *redis.StatusCmd
}

// ResponseCache stores AIResponses in redis keyed by a deterministic
// request fingerprint. Cache failures never propagate: every error path
// degrades to a miss and is counted. A cache constructed against an
// unreachable redis still works, as a no-op.
type ResponseCache struct {
	client redisClient
	ttl    time.Duration
	prefix string

	hits   atomic.Int64
	misses atomic.Int64
	errors atomic.Int64
}

// NewResponseCache connects to redis and returns a usable cache. When
// caching is disabled by config, or the initial ping fails, the client is
// dropped and the cache degrades to no-cache; all methods guard on the
// nil client.
func NewResponseCache(cfg *config.CacheConfig) *ResponseCache {
	cache := &ResponseCache{
		ttl:    time.Duration(cfg.TTLHours) * time.Hour,
		prefix: cfg.Prefix,
	}
	if !cfg.IsEnabled() {
		return cache
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		slog.Warn("Redis unavailable, response caching disabled", "addr", cfg.Addr, "error", err)
		_ = client.Close()
		return cache
	}

	cache.client = client
	return cache
}

// newResponseCacheWithClient is used by tests to inject a client.
func newResponseCacheWithClient(client redisClient, ttl time.Duration, prefix string) *ResponseCache {
	return &ResponseCache{client: client, ttl: ttl, prefix: prefix}
}

// Key builds the deterministic fingerprint: canonical sorted-key JSON of
// the deterministic parameters, SHA-256 hashed, with the cache prefix.
func (c *ResponseCache) Key(params KeyParams) string {
	// A map marshals with sorted keys, which makes the serialization
	// canonical regardless of parameter ordering at the call site.
	fields := map[string]interface{}{
		"prompt":        params.Prompt,
		"system_prompt": params.SystemPrompt,
		"model":         params.Model,
	}
	if params.Config != nil {
		fields["temperature"] = params.Config.Temperature
		fields["max_tokens"] = params.Config.MaxTokens
		fields["top_p"] = params.Config.TopP
		fields["frequency_penalty"] = params.Config.FrequencyPenalty
		fields["presence_penalty"] = params.Config.PresencePenalty
		if len(params.Config.StopSequences) > 0 {
			fields["stop_sequences"] = params.Config.StopSequences
		}
	}

	data, _ := json.Marshal(fields)
	sum := sha256.Sum256(data)
	return c.prefix + hex.EncodeToString(sum[:])
}

// Get returns the cached response for the params, or nil on miss.
func (c *ResponseCache) Get(ctx context.Context, params KeyParams) *llms.AIResponse {
	if c.client == nil {
		return nil
	}

	data, err := c.client.Get(ctx, c.Key(params)).Bytes()
	if err == redis.Nil {
		c.misses.Add(1)
		metricCacheMisses.Inc()
		return nil
	}
	if err != nil {
		c.countError("get", err)
		return nil
	}

	var resp llms.AIResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		c.countError("decode", err)
		return nil
	}

	c.hits.Add(1)
	metricCacheHits.Inc()
	return &resp
}

// Set stores a response. ttl <= 0 uses the default. Returns whether the
// write succeeded.
func (c *ResponseCache) Set(ctx context.Context, resp *llms.AIResponse, params KeyParams, ttl time.Duration) bool {
	if c.client == nil || resp == nil {
		return false
	}
	if ttl <= 0 {
		ttl = c.ttl
	}

	// time.Time marshals as RFC 3339, so CreatedAt round-trips as an
	// ISO-8601 string.
	data, err := json.Marshal(resp)
	if err != nil {
		c.countError("encode", err)
		return false
	}
	if err := c.client.Set(ctx, c.Key(params), data, ttl).Err(); err != nil {
		c.countError("set", err)
		return false
	}
	return true
}

// Invalidate deletes one entry.
func (c *ResponseCache) Invalidate(ctx context.Context, params KeyParams) bool {
	if c.client == nil {
		return false
	}
	deleted, err := c.client.Del(ctx, c.Key(params)).Result()
	if err != nil {
		c.countError("del", err)
		return false
	}
	return deleted > 0
}

// ClearAll deletes every key under the cache prefix and returns the count.
func (c *ResponseCache) ClearAll(ctx context.Context) int {
	if c.client == nil {
		return 0
	}

	var (
		cursor  uint64
		deleted int
	)
	for {
		keys, next, err := c.client.Scan(ctx, cursor, c.prefix+"*", 100).Result()
		if err != nil {
			c.countError("scan", err)
			return deleted
		}
		if len(keys) > 0 {
			n, err := c.client.Del(ctx, keys...).Result()
			if err != nil {
				c.countError("del", err)
				return deleted
			}
			deleted += int(n)
		}
		cursor = next
		if cursor == 0 {
			return deleted
		}
	}
}

// Health pings the backing store.
func (c *ResponseCache) Health(ctx context.Context) CacheHealth {
	if c.client == nil {
		return CacheHealth{Status: "disabled"}
	}
	start := time.Now()
	if err := c.client.Ping(ctx).Err(); err != nil {
		return CacheHealth{Status: "unhealthy", Error: err.Error()}
	}
	return CacheHealth{Status: "healthy", RTTMS: float64(time.Since(start).Microseconds()) / 1000}
}

// Metrics returns a snapshot. HitRate is 0 when no lookups happened.
func (c *ResponseCache) Metrics() CacheMetrics {
	if c == nil {
		return CacheMetrics{}
	}
	hits := c.hits.Load()
	misses := c.misses.Load()
	errs := c.errors.Load()
	m := CacheMetrics{
		Hits:   hits,
		Misses: misses,
		Errors: errs,
		Total:  hits + misses + errs,
	}
	if hits+misses > 0 {
		m.HitRate = float64(hits) / float64(hits+misses)
	}
	return m
}

// Enabled reports whether a backing client is attached.
func (c *ResponseCache) Enabled() bool {
	return c != nil && c.client != nil
}

func (c *ResponseCache) countError(op string, err error) {
	c.errors.Add(1)
	metricCacheErrors.Inc()
	slog.Warn("Response cache error, degrading to miss", "op", op, "error", err)
}
