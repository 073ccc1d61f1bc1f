package watcher

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

func TestEventTypeString(t *testing.T) {
	testCases := []struct {
		eventType EventType
		expected  string
	}{
		{EventTypeCreated, "created"},
		{EventTypeModified, "modified"},
		{EventTypeDeleted, "deleted"},
		{EventTypeRenamed, "renamed"},
		{EventType(99), "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.expected, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.eventType.String())
		})
	}
}

func TestNewFileWatcher(t *testing.T) {
	watcher, err := NewFileWatcher(nil)
	require.NoError(t, err)
	defer watcher.Stop()

	assert.NotNil(t, watcher.watcher)
	assert.Empty(t, watcher.filters)
	assert.Empty(t, watcher.handlers)
}

func TestFileWatcherStopIsIdempotent(t *testing.T) {
	watcher, err := NewFileWatcher(nil)
	require.NoError(t, err)

	assert.NoError(t, watcher.Stop())
	assert.NoError(t, watcher.Stop())
}

func TestAddRecursiveSkipsHiddenDirs(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "html", "partials"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".git", "objects"), 0755))

	watcher, err := NewFileWatcher(nil)
	require.NoError(t, err)
	defer watcher.Stop()

	require.NoError(t, watcher.AddRecursive(root))

	list := watcher.WatchList()
	assert.Contains(t, list, root)
	assert.Contains(t, list, filepath.Join(root, "html"))
	assert.Contains(t, list, filepath.Join(root, "html", "partials"))
	assert.NotContains(t, list, filepath.Join(root, ".git"))
}

func TestAddRecursiveMissingRoot(t *testing.T) {
	watcher, err := NewFileWatcher(nil)
	require.NoError(t, err)
	defer watcher.Stop()

	assert.Error(t, watcher.AddRecursive(filepath.Join(t.TempDir(), "missing")))
}

type eventSink struct {
	mutex  sync.Mutex
	events []ChangeEvent
}

func (s *eventSink) handle(e ChangeEvent) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.events = append(s.events, e)
}

func (s *eventSink) paths() []string {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	out := make([]string, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.Path)
	}
	return out
}

func TestFileWatcherDeliversFilteredEvents(t *testing.T) {
	root := t.TempDir()

	watcher, err := NewFileWatcher(nil)
	require.NoError(t, err)
	defer watcher.Stop()

	sink := &eventSink{}
	watcher.AddFilter(NoTempFilter)
	watcher.AddFilter(NoHiddenFilter)
	watcher.AddHandler(sink.handle)
	require.NoError(t, watcher.AddRecursive(root))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, watcher.Start(ctx))

	kept := filepath.Join(root, "index.html")
	require.NoError(t, os.WriteFile(filepath.Join(root, ".index.html.swp"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "index.html~"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(kept, []byte("x"), 0644))

	assert.Eventually(t, func() bool {
		for _, p := range sink.paths() {
			if p == kept {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)

	for _, p := range sink.paths() {
		assert.Equal(t, kept, p)
	}
}

func TestFileWatcherAddsNewDirectories(t *testing.T) {
	root := t.TempDir()

	watcher, err := NewFileWatcher(nil)
	require.NoError(t, err)
	defer watcher.Stop()

	sink := &eventSink{}
	watcher.AddHandler(sink.handle)
	require.NoError(t, watcher.AddRecursive(root))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, watcher.Start(ctx))

	dir := filepath.Join(root, "partials")
	require.NoError(t, os.Mkdir(dir, 0755))

	assert.Eventually(t, func() bool {
		for _, p := range watcher.WatchList() {
			if p == dir {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)

	file := filepath.Join(dir, "nav.html")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))

	assert.Eventually(t, func() bool {
		for _, p := range sink.paths() {
			if p == file {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)
}

func TestFilters(t *testing.T) {
	testCases := []struct {
		path   string
		temp   bool
		hidden bool
	}{
		{"src/html/index.html", true, true},
		{"src/html/index.html~", false, true},
		{"src/html/.index.html.swp", false, false},
		{"src/html/index.swx", false, true},
		{"src/html/#index.html#", false, true},
		{"src/html/4913", false, true},
		{"src/.env", true, false},
		{"src/styles/a.tmp", false, true},
	}

	for _, tc := range testCases {
		t.Run(tc.path, func(t *testing.T) {
			assert.Equal(t, tc.temp, NoTempFilter(tc.path))
			assert.Equal(t, tc.hidden, NoHiddenFilter(tc.path))
		})
	}
}
