package vector

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// hashEmbedder produces deterministic unit vectors from token hashes, so
// identical texts land on identical embeddings.
type hashEmbedder struct{}

func (hashEmbedder) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("empty input")
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec, err := hashEmbedder{}.EncodeSingle(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (hashEmbedder) EncodeSingle(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, 8)
	h := fnv.New32a()
	for i, r := range text {
		h.Write([]byte{byte(r)})
		vec[i%8] += float32(h.Sum32()%1000) / 1000
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v * v)
	}
	if norm == 0 {
		vec[0] = 1
		return vec, nil
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec, nil
}

func (hashEmbedder) Dimension() int    { return 8 }
func (hashEmbedder) ModelName() string { return "hash-test" }

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir(), "tarot_knowledge", hashEmbedder{})
	require.NoError(t, err)
	return s
}

func addFixture(t *testing.T, s *Store) {
	t.Helper()
	err := s.Add(context.Background(),
		[]string{
			"The Fool upright means new beginnings and adventure",
			"The Magician upright means willpower and manifestation",
			"The celtic cross spread lays ten cards",
		},
		[]map[string]string{
			{"kind": "card", "card_id": "0"},
			{"kind": "card", "card_id": "1"},
			{"kind": "spread", "spread": "celtic_cross"},
		},
		[]string{"card-0-upright", "card-1-upright", "spread-celtic_cross"},
	)
	require.NoError(t, err)
}

func TestStore_AddAndCount(t *testing.T) {
	s := newTestStore(t)
	addFixture(t, s)

	n, err := s.Count()
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestStore_AddValidation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.Add(ctx, nil, nil, nil)
	assert.Error(t, err)

	err = s.Add(ctx, []string{"a", "b"}, []map[string]string{{}}, []string{"1", "2"})
	assert.Error(t, err, "length mismatch rejected")
}

func TestStore_Search(t *testing.T) {
	s := newTestStore(t)
	addFixture(t, s)

	res, err := s.Search(context.Background(), "The Fool upright means new beginnings and adventure", 2, nil)
	require.NoError(t, err)
	require.Len(t, res.Documents, 2)
	assert.Len(t, res.IDs, 2)
	assert.Len(t, res.Distances, 2)
	// The identical document is the nearest hit at distance ~0.
	assert.Equal(t, "card-0-upright", res.IDs[0])
	assert.InDelta(t, 0, res.Distances[0], 1e-5)
	assert.LessOrEqual(t, res.Distances[0], res.Distances[1])
}

func TestStore_SearchFilter(t *testing.T) {
	s := newTestStore(t)
	addFixture(t, s)

	res, err := s.Search(context.Background(), "ten cards", 3, map[string]string{"kind": "spread"})
	require.NoError(t, err)
	require.Len(t, res.IDs, 1)
	assert.Equal(t, "spread-celtic_cross", res.IDs[0])
}

func TestStore_SearchClampsK(t *testing.T) {
	s := newTestStore(t)
	addFixture(t, s)

	res, err := s.Search(context.Background(), "cards", 50, nil)
	require.NoError(t, err)
	assert.Len(t, res.IDs, 3, "k clamps to the collection size")

	_, err = s.Search(context.Background(), "cards", 0, nil)
	assert.Error(t, err)
}

func TestStore_SearchEmptyCollection(t *testing.T) {
	s := newTestStore(t)

	res, err := s.Search(context.Background(), "anything", 5, nil)
	require.NoError(t, err)
	assert.Empty(t, res.IDs)
}

func TestStore_GetByID(t *testing.T) {
	s := newTestStore(t)
	addFixture(t, s)
	ctx := context.Background()

	entry, err := s.GetByID(ctx, "card-1-upright")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "The Magician upright means willpower and manifestation", entry.Document)
	assert.Equal(t, "card", entry.Metadata["kind"])
	assert.Len(t, entry.Embedding, 8)

	// Absence is a nil entry, not an error.
	missing, err := s.GetByID(ctx, "card-77-upright")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestStore_Delete(t *testing.T) {
	s := newTestStore(t)
	addFixture(t, s)
	ctx := context.Background()

	require.NoError(t, s.Delete(ctx, []string{"card-0-upright"}))
	n, err := s.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// Deleting nothing is a no-op.
	require.NoError(t, s.Delete(ctx, nil))
}

func TestStore_Clear(t *testing.T) {
	s := newTestStore(t)
	addFixture(t, s)
	ctx := context.Background()

	require.NoError(t, s.Clear(ctx))
	n, err := s.Count()
	require.NoError(t, err)
	assert.Zero(t, n)

	// The collection is usable again after a clear.
	addFixture(t, s)
	n, err = s.Count()
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestStore_PersistenceAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir, "tarot_knowledge", hashEmbedder{})
	require.NoError(t, err)
	addFixture(t, s)

	reopened, err := New(dir, "tarot_knowledge", hashEmbedder{})
	require.NoError(t, err)
	n, err := reopened.Count()
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	entry, err := reopened.GetByID(context.Background(), "card-0-upright")
	require.NoError(t, err)
	require.NotNil(t, entry)
}
