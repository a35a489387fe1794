package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_EmptyPathYieldsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 15, cfg.Server.ShutdownTimeoutSeconds)

	assert.Equal(t, "sqlite", cfg.Database.Type)
	assert.Equal(t, "knowledge_base", cfg.RAG.KnowledgePath)
	assert.Equal(t, "tarot_knowledge", cfg.RAG.Collection)
	assert.Equal(t, 3, cfg.RAG.TopK)
	assert.Equal(t, 256, cfg.RAG.LRUSize)

	assert.Equal(t, "ollama", cfg.RAG.Embedder.Type)
	assert.Equal(t, "paraphrase-multilingual", cfg.RAG.Embedder.Model)
	assert.Equal(t, 384, cfg.RAG.Embedder.Dimension)

	assert.Equal(t, 2, cfg.Reading.MaxParseRetries)
	assert.Equal(t, 3, cfg.Reading.BatchSize)
	assert.Equal(t, 5, cfg.Reading.MaxConcurrency)
	assert.Equal(t, 90, cfg.Reading.StreamTimeoutSeconds)

	assert.True(t, cfg.Cache.IsEnabled())
	assert.Equal(t, "localhost:6379", cfg.Cache.Addr)
	assert.Equal(t, 24, cfg.Cache.TTLHours)

	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "simple", cfg.Logger.Format)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("ARC_TEST_KEY", "sk-from-env")
	path := writeConfig(t, `
settings:
  providers:
    - type: openai
      api_key: ${ARC_TEST_KEY}
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Len(t, cfg.Settings.Providers, 1)
	assert.Equal(t, "sk-from-env", cfg.Settings.Providers[0].APIKey)
	// The provider's model default lands too.
	assert.Equal(t, "gpt-4o", cfg.Settings.Providers[0].Model)
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "server: [not a map"))
	assert.Error(t, err)
}

func TestLoad_ValidationFailures(t *testing.T) {
	cases := map[string]string{
		"bad port": `
server:
  port: 99999
`,
		"bad provider type": `
settings:
  providers:
    - type: mistral
      api_key: x
`,
		"duplicate provider": `
settings:
  providers:
    - type: openai
      api_key: a
    - type: openai
      api_key: b
`,
		"bad embedder type": `
rag:
  embedder:
    type: cohere
`,
		"bad database type": `
database:
  type: mongodb
`,
	}
	for name, content := range cases {
		_, err := Load(writeConfig(t, content))
		assert.Error(t, err, name)
	}
}

func TestSettingsConfig_OrderedProviders(t *testing.T) {
	cfg := &SettingsConfig{
		ProviderPriority: []string{"anthropic", "openai"},
		Providers: []LLMProviderConfig{
			{Type: "openai", APIKey: "a"},
			{Type: "anthropic", APIKey: "b"},
			{Type: "gemini", APIKey: "c"},
		},
	}
	cfg.SetDefaults()

	ordered := cfg.OrderedProviders()
	require.Len(t, ordered, 3)
	assert.Equal(t, "anthropic", ordered[0].Type)
	assert.Equal(t, "openai", ordered[1].Type)
	// Configured but unprioritized providers go last.
	assert.Equal(t, "gemini", ordered[2].Type)
}

func TestSettingsConfig_OrderedProvidersSkipsDisabled(t *testing.T) {
	off := false
	cfg := &SettingsConfig{
		Providers: []LLMProviderConfig{
			{Type: "openai", APIKey: "a", Enabled: &off},
			{Type: "anthropic", APIKey: "b"},
		},
	}
	cfg.SetDefaults()

	ordered := cfg.OrderedProviders()
	require.Len(t, ordered, 1)
	assert.Equal(t, "anthropic", ordered[0].Type)
}

func TestSettingsConfig_PriorityDefaultsToDeclarationOrder(t *testing.T) {
	cfg := &SettingsConfig{
		Providers: []LLMProviderConfig{
			{Type: "gemini", APIKey: "c"},
			{Type: "openai", APIKey: "a"},
		},
	}
	cfg.SetDefaults()
	assert.Equal(t, []string{"gemini", "openai"}, cfg.ProviderPriority)
}

func TestLLMProviderConfig_Defaults(t *testing.T) {
	p := LLMProviderConfig{Type: "anthropic", APIKey: "k"}
	p.SetDefaults()

	assert.Equal(t, "claude-sonnet-4-20250514", p.Model)
	assert.Equal(t, "https://api.anthropic.com/v1", p.Host)
	require.NotNil(t, p.Temperature)
	assert.Equal(t, 0.7, *p.Temperature)
	assert.Equal(t, 4096, p.MaxTokens)
	assert.Equal(t, 30, p.Timeout)
	assert.Equal(t, 3, p.MaxRetries)
	assert.True(t, p.IsEnabled())
}

func TestLLMProviderConfig_APIKeyFromEnv(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "gm-key")
	p := LLMProviderConfig{Type: "gemini"}
	p.SetDefaults()
	assert.Equal(t, "gm-key", p.APIKey)
}

func TestLLMProviderConfig_TemperatureBounds(t *testing.T) {
	bad := 3.0
	p := LLMProviderConfig{Type: "openai", APIKey: "k", Temperature: &bad}
	assert.Error(t, p.Validate())
}

func TestServerConfig_Address(t *testing.T) {
	c := ServerConfig{Host: "127.0.0.1", Port: 9000}
	assert.Equal(t, "127.0.0.1:9000", c.Address())
}
