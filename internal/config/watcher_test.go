package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWatcherFiresOnChangeAfterDebounce(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("portRange:\n  min: 3000\n  max: 9999\n"), 0o644))

	changed := make(chan Config, 1)
	w := NewWatcher(dir, func(cfg Config) { changed <- cfg })
	require.NoError(t, w.Start())
	defer w.Stop()

	require.NoError(t, os.WriteFile(path, []byte("portRange:\n  min: 5000\n  max: 5999\n"), 0o644))

	select {
	case cfg := <-changed:
		require.Equal(t, 5000, cfg.PortRange.Min)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for watcher reload")
	}
}
