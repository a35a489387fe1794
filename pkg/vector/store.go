// Package vector provides the persistent k-NN collection behind the
// retrieval pipeline, backed by an embedded chromem-go database.
package vector

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"sync"

	"github.com/philippgille/chromem-go"

	"github.com/arcanum-labs/arcanum/pkg/embedders"
)

// RetrievalResult holds parallel lists of length <= k.
type RetrievalResult struct {
	Documents []string            `json:"documents"`
	Metadatas []map[string]string `json:"metadatas"`
	Distances []float32           `json:"distances"`
	IDs       []string            `json:"ids"`
}

// Entry is one stored document.
type Entry struct {
	ID        string            `json:"id"`
	Document  string            `json:"document"`
	Metadata  map[string]string `json:"metadata"`
	Embedding []float32         `json:"embedding"`
}

// Store is a persistent vector collection. Documents are embedded
// internally through the configured embedder; persistence lives in a
// local directory and re-initialization reuses existing data.
type Store struct {
	db         *chromem.DB
	embedder   embedders.Embedder
	collection string

	mu  sync.RWMutex
	col *chromem.Collection
}

// New opens (or creates) the store at persistPath.
func New(persistPath, collection string, embedder embedders.Embedder) (*Store, error) {
	if err := os.MkdirAll(persistPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create persist directory: %w", err)
	}

	db, err := chromem.NewPersistentDB(persistPath, false)
	if err != nil {
		return nil, fmt.Errorf("failed to open vector database: %w", err)
	}

	s := &Store{db: db, embedder: embedder, collection: collection}
	if _, err := s.getCollection(); err != nil {
		return nil, err
	}
	slog.Info("Vector store ready",
		"path", persistPath,
		"collection", collection,
		"dimension", embedder.Dimension())
	return s, nil
}

func (s *Store) getCollection() (*chromem.Collection, error) {
	s.mu.RLock()
	if s.col != nil {
		col := s.col
		s.mu.RUnlock()
		return col, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.col != nil {
		return s.col, nil
	}

	// The embedding function is only invoked when a document arrives
	// without a pre-computed vector; Add always pre-computes, so this is
	// the query-text path.
	embedFunc := func(ctx context.Context, text string) ([]float32, error) {
		return s.embedder.EncodeSingle(ctx, text)
	}

	meta := map[string]string{
		"embedding_model": s.embedder.ModelName(),
		"dimension":       strconv.Itoa(s.embedder.Dimension()),
	}
	col, err := s.db.GetOrCreateCollection(s.collection, meta, embedFunc)
	if err != nil {
		return nil, fmt.Errorf("failed to get/create collection %q: %w", s.collection, err)
	}
	s.col = col
	return col, nil
}

// Add embeds and appends documents. The three lists must have the same
// length and ids must be unique within the collection.
func (s *Store) Add(ctx context.Context, documents []string, metadatas []map[string]string, ids []string) error {
	if len(documents) == 0 {
		return fmt.Errorf("cannot add zero documents")
	}
	if len(documents) != len(ids) || len(documents) != len(metadatas) {
		return fmt.Errorf("documents, metadatas and ids must have equal length (%d, %d, %d)",
			len(documents), len(metadatas), len(ids))
	}

	col, err := s.getCollection()
	if err != nil {
		return err
	}

	embeddings, err := s.embedder.Encode(ctx, documents)
	if err != nil {
		return fmt.Errorf("failed to embed documents: %w", err)
	}

	docs := make([]chromem.Document, len(documents))
	for i := range documents {
		docs[i] = chromem.Document{
			ID:        ids[i],
			Content:   documents[i],
			Metadata:  metadatas[i],
			Embedding: embeddings[i],
		}
	}

	if err := col.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to add documents: %w", err)
	}
	return nil
}

// Search embeds the query and returns the top-k nearest entries.
// filter is an equality match over metadata. k must be at least 1; it is
// clamped to the collection size.
func (s *Store) Search(ctx context.Context, query string, k int, filter map[string]string) (*RetrievalResult, error) {
	if k < 1 {
		return nil, fmt.Errorf("k must be at least 1, got %d", k)
	}

	col, err := s.getCollection()
	if err != nil {
		return nil, err
	}

	count := col.Count()
	if count == 0 {
		return &RetrievalResult{}, nil
	}
	if k > count {
		k = count
	}

	vec, err := s.embedder.EncodeSingle(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	results, err := col.QueryEmbedding(ctx, vec, k, filter, nil)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	out := &RetrievalResult{
		Documents: make([]string, 0, len(results)),
		Metadatas: make([]map[string]string, 0, len(results)),
		Distances: make([]float32, 0, len(results)),
		IDs:       make([]string, 0, len(results)),
	}
	for _, r := range results {
		out.Documents = append(out.Documents, r.Content)
		out.Metadatas = append(out.Metadatas, r.Metadata)
		// chromem reports cosine similarity; callers expect distance.
		out.Distances = append(out.Distances, 1-r.Similarity)
		out.IDs = append(out.IDs, r.ID)
	}
	return out, nil
}

// GetByID returns one entry, or nil when absent.
func (s *Store) GetByID(ctx context.Context, id string) (*Entry, error) {
	col, err := s.getCollection()
	if err != nil {
		return nil, err
	}

	doc, err := col.GetByID(ctx, id)
	if err != nil {
		// chromem reports absence as an error; treat it as a miss.
		return nil, nil
	}
	return &Entry{
		ID:        doc.ID,
		Document:  doc.Content,
		Metadata:  doc.Metadata,
		Embedding: doc.Embedding,
	}, nil
}

// Delete removes entries by id.
func (s *Store) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	col, err := s.getCollection()
	if err != nil {
		return err
	}
	if err := col.Delete(ctx, nil, nil, ids...); err != nil {
		return fmt.Errorf("failed to delete documents: %w", err)
	}
	return nil
}

// Clear drops and recreates the collection.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	if err := s.db.DeleteCollection(s.collection); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to delete collection: %w", err)
	}
	s.col = nil
	s.mu.Unlock()

	_, err := s.getCollection()
	return err
}

// Count returns the number of stored entries.
func (s *Store) Count() (int, error) {
	col, err := s.getCollection()
	if err != nil {
		return 0, err
	}
	return col.Count(), nil
}
