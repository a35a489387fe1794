package config

import "fmt"

// RAGConfig configures the retrieval pipeline: embedder, vector store,
// knowledge base location, and the retriever LRU cache.
type RAGConfig struct {
	// KnowledgePath is the knowledge-base root directory.
	KnowledgePath string `yaml:"knowledge_path,omitempty"`

	// PersistPath is the vector store directory.
	PersistPath string `yaml:"persist_path,omitempty"`

	// Collection names the vector collection.
	Collection string `yaml:"collection,omitempty"`

	// Embedder selects the embedding backend.
	Embedder EmbedderConfig `yaml:"embedder,omitempty"`

	// TopK is the default number of snippets per retrieval.
	TopK int `yaml:"top_k,omitempty"`

	// LRUSize caps the retriever cache entry count. 0 disables the cache.
	LRUSize int `yaml:"lru_size,omitempty"`

	// LRUTTLSeconds is the per-entry lifetime in the retriever cache.
	LRUTTLSeconds int `yaml:"lru_ttl_seconds,omitempty"`

	// WatchKnowledge enables dev-mode re-loading on file changes.
	WatchKnowledge bool `yaml:"watch_knowledge,omitempty"`
}

// EmbedderConfig configures the embedding model singleton.
type EmbedderConfig struct {
	// Type selects the adapter (ollama, openai).
	Type string `yaml:"type,omitempty"`

	// Model is the embedding model id.
	Model string `yaml:"model,omitempty"`

	// Host is the embedding API endpoint.
	Host string `yaml:"host,omitempty"`

	// APIKey for hosted embedders.
	APIKey string `yaml:"api_key,omitempty"`

	// Dimension of the produced vectors.
	Dimension int `yaml:"dimension,omitempty"`

	// Timeout in seconds per embed call.
	Timeout int `yaml:"timeout,omitempty"`
}

func (c *RAGConfig) SetDefaults() {
	if c.KnowledgePath == "" {
		c.KnowledgePath = "knowledge_base"
	}
	if c.PersistPath == "" {
		c.PersistPath = ".arcanum/vectors"
	}
	if c.Collection == "" {
		c.Collection = "tarot_knowledge"
	}
	if c.TopK == 0 {
		c.TopK = 3
	}
	if c.LRUSize == 0 {
		c.LRUSize = 256
	}
	if c.LRUTTLSeconds == 0 {
		c.LRUTTLSeconds = 3600
	}
	c.Embedder.SetDefaults()
}

func (c *EmbedderConfig) SetDefaults() {
	if c.Type == "" {
		c.Type = "ollama"
	}
	switch c.Type {
	case "ollama":
		if c.Model == "" {
			// Multilingual MiniLM keeps Korean and English queries in
			// the same vector space.
			c.Model = "paraphrase-multilingual"
		}
		if c.Host == "" {
			c.Host = "http://localhost:11434"
		}
		if c.Dimension == 0 {
			c.Dimension = 384
		}
	case "openai":
		if c.Model == "" {
			c.Model = "text-embedding-3-small"
		}
		if c.Host == "" {
			c.Host = "https://api.openai.com/v1"
		}
		if c.Dimension == 0 {
			c.Dimension = 1536
		}
	}
	if c.Timeout == 0 {
		c.Timeout = 30
	}
}

func (c *RAGConfig) Validate() error {
	switch c.Embedder.Type {
	case "", "ollama", "openai":
	default:
		return fmt.Errorf("invalid embedder type %q (valid: ollama, openai)", c.Embedder.Type)
	}
	if c.TopK < 1 {
		return fmt.Errorf("top_k must be at least 1")
	}
	return nil
}
