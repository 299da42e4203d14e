package document

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type eventRecorder struct {
	mu          sync.Mutex
	indexed     []string
	removed     []string
	removedDirs []string
}

func (r *eventRecorder) onIndex(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.indexed = append(r.indexed, path)
}

func (r *eventRecorder) onRemove(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removed = append(r.removed, path)
}

func (r *eventRecorder) onRemoveDir(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removedDirs = append(r.removedDirs, path)
}

func (r *eventRecorder) waitIndexed(t *testing.T, want int) []string {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		r.mu.Lock()
		got := len(r.indexed)
		snapshot := append([]string(nil), r.indexed...)
		r.mu.Unlock()
		if got >= want {
			return snapshot
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %d index events, got %d", want, got)
		case <-time.After(20 * time.Millisecond):
		}
	}
}

func TestWatcher(t *testing.T) {
	t.Run("indexes new supported files", func(t *testing.T) {
		dir := t.TempDir()
		rec := &eventRecorder{}
		w := NewWatcher(dir, rec.onIndex, rec.onRemove, rec.onRemoveDir, nil)
		require.NoError(t, w.Start(context.Background()))
		defer w.Stop()

		path := filepath.Join(dir, "guide.md")
		require.NoError(t, os.WriteFile(path, []byte("content"), 0o644))

		indexed := rec.waitIndexed(t, 1)
		assert.Contains(t, indexed, path)
	})

	t.Run("ignores unsupported files", func(t *testing.T) {
		dir := t.TempDir()
		rec := &eventRecorder{}
		w := NewWatcher(dir, rec.onIndex, rec.onRemove, rec.onRemoveDir, nil)
		require.NoError(t, w.Start(context.Background()))
		defer w.Stop()

		require.NoError(t, os.WriteFile(filepath.Join(dir, "image.png"), []byte{1}, 0o644))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

		indexed := rec.waitIndexed(t, 1)
		for _, p := range indexed {
			assert.NotEqual(t, filepath.Join(dir, "image.png"), p)
		}
	})

	t.Run("debounces rapid writes", func(t *testing.T) {
		dir := t.TempDir()
		rec := &eventRecorder{}
		w := NewWatcher(dir, rec.onIndex, rec.onRemove, rec.onRemoveDir, nil)
		require.NoError(t, w.Start(context.Background()))
		defer w.Stop()

		path := filepath.Join(dir, "busy.md")
		for i := 0; i < 5; i++ {
			require.NoError(t, os.WriteFile(path, []byte("draft"), 0o644))
			time.Sleep(10 * time.Millisecond)
		}

		rec.waitIndexed(t, 1)
		// Allow any stray timers to fire before counting.
		time.Sleep(2 * debounceWindow)
		rec.mu.Lock()
		count := len(rec.indexed)
		rec.mu.Unlock()
		assert.LessOrEqual(t, count, 2)
	})

	t.Run("reports removals", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "gone.md")
		require.NoError(t, os.WriteFile(path, []byte("content"), 0o644))

		rec := &eventRecorder{}
		w := NewWatcher(dir, rec.onIndex, rec.onRemove, rec.onRemoveDir, nil)
		require.NoError(t, w.Start(context.Background()))
		defer w.Stop()

		require.NoError(t, os.Remove(path))

		deadline := time.After(5 * time.Second)
		for {
			rec.mu.Lock()
			removed := append([]string(nil), rec.removed...)
			rec.mu.Unlock()
			if len(removed) > 0 {
				assert.Contains(t, removed, path)
				return
			}
			select {
			case <-deadline:
				t.Fatal("timed out waiting for remove event")
			case <-time.After(20 * time.Millisecond):
			}
		}
	})

	t.Run("reports removed directories", func(t *testing.T) {
		dir := t.TempDir()
		sub := filepath.Join(dir, "archive")
		require.NoError(t, os.Mkdir(sub, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(sub, "old.md"), []byte("content"), 0o644))

		rec := &eventRecorder{}
		w := NewWatcher(dir, rec.onIndex, rec.onRemove, rec.onRemoveDir, nil)
		require.NoError(t, w.Start(context.Background()))
		defer w.Stop()

		require.NoError(t, os.RemoveAll(sub))

		deadline := time.After(5 * time.Second)
		for {
			rec.mu.Lock()
			dirs := append([]string(nil), rec.removedDirs...)
			rec.mu.Unlock()
			if len(dirs) > 0 {
				assert.Contains(t, dirs, sub)
				return
			}
			select {
			case <-deadline:
				t.Fatal("timed out waiting for directory remove event")
			case <-time.After(20 * time.Millisecond):
			}
		}
	})

	t.Run("stop is idempotent", func(t *testing.T) {
		w := NewWatcher(t.TempDir(), nil, nil, nil, nil)
		require.NoError(t, w.Start(context.Background()))
		w.Stop()
		w.Stop()
	})
}
