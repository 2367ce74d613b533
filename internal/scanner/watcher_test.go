package scanner

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func startTestWatcher(t *testing.T, dir string) (*Watcher, chan struct{}) {
	t.Helper()
	changed := make(chan struct{}, 1)
	w, err := NewWatcher(dir, New(), func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	require.NoError(t, err)
	// Tight debounce keeps the test fast without changing the logic.
	w.debounceDur = 50 * time.Millisecond

	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(w.Stop)
	return w, changed
}

func waitForChange(t *testing.T, changed chan struct{}) {
	t.Helper()
	select {
	case <-changed:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for rescan callback")
	}
}

func TestWatcherTriggersRescanOnDeclarationChange(t *testing.T) {
	dir := t.TempDir()
	_, changed := startTestWatcher(t, dir)

	writeFile(t, dir, "svc.py", "@op(path=\"/x\", name=\"x\", description=\"d\", params={})\ndef h():\n    pass\n")
	waitForChange(t, changed)
}

func TestWatcherDebouncesBursts(t *testing.T) {
	dir := t.TempDir()
	_, changed := startTestWatcher(t, dir)

	// A burst of rapid saves should settle into a single callback.
	for i := 0; i < 5; i++ {
		writeFile(t, dir, "svc.py", "# rev\n")
		time.Sleep(5 * time.Millisecond)
	}
	waitForChange(t, changed)

	select {
	case <-changed:
		t.Error("burst of writes fired more than one rescan")
	case <-time.After(400 * time.Millisecond):
	}
}

func TestWatcherPicksUpNewSubdirectories(t *testing.T) {
	dir := t.TempDir()
	_, changed := startTestWatcher(t, dir)

	sub := filepath.Join(dir, "handlers")
	require.NoError(t, os.Mkdir(sub, 0755))
	// Give the watcher a moment to register the new directory.
	time.Sleep(200 * time.Millisecond)

	writeFile(t, sub, "new.py", "def h():\n    pass\n")
	waitForChange(t, changed)
}

func TestWatcherIgnoresUnrelatedFiles(t *testing.T) {
	dir := t.TempDir()
	_, changed := startTestWatcher(t, dir)

	writeFile(t, dir, "notes.txt", "nothing to see\n")

	select {
	case <-changed:
		t.Error("non-declaration file triggered a rescan")
	case <-time.After(400 * time.Millisecond):
	}
}

func TestWatcherStopIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	w, _ := startTestWatcher(t, dir)

	w.Stop()
	w.Stop()
}
