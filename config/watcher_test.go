package config

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcherInvalidatesOnChange(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "greet.yaml", greetYAML)

	r := NewRegistry(dir, nil)
	first, err := r.Load("greet")
	require.NoError(t, err)

	w := NewWatcher(r, 10*time.Millisecond, nil)
	w.Start(context.Background())
	defer w.Stop()

	// Push the mtime forward explicitly: coarse filesystem timestamp
	// resolution would otherwise make this racy.
	changed := `
nodes:
  - type: Standard
    endpoint: main
    prompt: "changed"
`
	require.NoError(t, os.WriteFile(path, []byte(changed), 0o644))
	future := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(path, future, future))

	require.Eventually(t, func() bool {
		def, err := r.Load("greet")
		return err == nil && def != first
	}, 2*time.Second, 10*time.Millisecond)

	def, err := r.Load("greet")
	require.NoError(t, err)
	assert.Equal(t, "changed", def.Nodes[0].Prompt)
}

func TestWatcherInvalidatesOnRemove(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "greet.yaml", greetYAML)

	r := NewRegistry(dir, nil)
	_, err := r.Load("greet")
	require.NoError(t, err)

	w := NewWatcher(r, 10*time.Millisecond, nil)
	w.Start(context.Background())
	defer w.Stop()

	require.NoError(t, os.Remove(path))

	require.Eventually(t, func() bool {
		_, err := r.Load("greet")
		return err != nil
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWatcherStopIsIdempotent(t *testing.T) {
	r := NewRegistry(t.TempDir(), nil)
	w := NewWatcher(r, 10*time.Millisecond, nil)
	w.Start(context.Background())
	w.Stop()
	w.Stop()
}

func TestWatcherIgnoresNonYAML(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "notes.txt", "not a workflow")

	r := NewRegistry(dir, nil)
	w := NewWatcher(r, 10*time.Millisecond, nil)
	snapshot := w.scan()
	assert.Empty(t, snapshot)
}
