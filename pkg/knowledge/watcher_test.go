package knowledge

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcanum-labs/arcanum/pkg/tarot"
)

func writeCard(t *testing.T, root, rel string, card tarot.Card) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	data, err := json.Marshal(card)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func TestWatch_ReloadsOnChange(t *testing.T) {
	root := t.TempDir()
	writeCard(t, root, "cards/major_arcana/00_fool.json", tarot.Card{ID: 0, Name: "The Fool"})

	kb, err := Load(root)
	require.NoError(t, err)
	require.NotNil(t, kb.Card(0))
	require.Nil(t, kb.Card(1))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- kb.Watch(ctx) }()

	// Give the watcher a beat to register the directory tree.
	time.Sleep(100 * time.Millisecond)

	writeCard(t, root, "cards/major_arcana/01_magician.json", tarot.Card{ID: 1, Name: "The Magician"})

	require.Eventually(t, func() bool {
		return kb.Card(1) != nil
	}, 5*time.Second, 50*time.Millisecond, "new card should appear after the debounced reload")

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop on context cancellation")
	}
}

func TestWatch_StopsWithoutChanges(t *testing.T) {
	kb, err := Load(t.TempDir())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err = kb.Watch(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
