package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func drainEvents(t *testing.T, ch <-chan Event, timeout time.Duration) []Event {
	t.Helper()
	var events []Event
	deadline := time.After(timeout)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-deadline:
			return events
		}
	}
}

func TestFileWatcherEmitsModifiedForNewFile(t *testing.T) {
	root := t.TempDir()
	w := NewFileWatcher(root, 30*time.Millisecond, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	go w.Run(ctx)

	time.Sleep(20 * time.Millisecond) // let the seed scan complete first
	require.NoError(t, os.WriteFile(filepath.Join(root, "new.go"), []byte("package main\n"), 0o644))

	events := drainEvents(t, w.Events(), 280*time.Millisecond)
	require.Contains(t, events, Event{Kind: Modified, Path: "new.go"})
}

func TestFileWatcherDoesNotReplaySeededFiles(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "existing.go"), []byte("package main\n"), 0o644))

	w := NewFileWatcher(root, 30*time.Millisecond, 10*time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	go w.Run(ctx)

	events := drainEvents(t, w.Events(), 140*time.Millisecond)
	require.Empty(t, events)
}

func TestFileWatcherEmitsDeletedForRemovedFile(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "gone.go")
	require.NoError(t, os.WriteFile(path, []byte("package main\n"), 0o644))

	w := NewFileWatcher(root, 30*time.Millisecond, 10*time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	go w.Run(ctx)

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, os.Remove(path))

	events := drainEvents(t, w.Events(), 280*time.Millisecond)
	require.Contains(t, events, Event{Kind: Deleted, Path: "gone.go"})
}

func TestFileWatcherResetsDebounceOnRepeatedEdits(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "busy.go")

	w := NewFileWatcher(root, 60*time.Millisecond, 10*time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 400*time.Millisecond)
	defer cancel()
	go w.Run(ctx)

	time.Sleep(15 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("v1\n"), 0o644))

	start := time.Now()
	for time.Since(start) < 100*time.Millisecond {
		time.Sleep(20 * time.Millisecond)
		require.NoError(t, os.WriteFile(path, []byte(time.Now().String()), 0o644))
	}

	events := drainEvents(t, w.Events(), 380*time.Millisecond)
	count := 0
	for _, ev := range events {
		if ev.Path == "busy.go" {
			count++
		}
	}
	require.Equal(t, 1, count, "repeated edits within the debounce window must coalesce into a single event")
}

func TestHeadWatcherDetectsBranchSwitch(t *testing.T) {
	root := t.TempDir()
	gitDir := filepath.Join(root, ".git")
	require.NoError(t, os.MkdirAll(gitDir, 0o755))
	headPath := filepath.Join(gitDir, "HEAD")
	require.NoError(t, os.WriteFile(headPath, []byte("ref: refs/heads/main\n"), 0o644))

	hw := NewHeadWatcher(root, 0)

	change, err := hw.Check()
	require.NoError(t, err)
	require.Nil(t, change, "first check only seeds the baseline")

	change, err = hw.Check()
	require.NoError(t, err)
	require.Nil(t, change)

	require.NoError(t, os.WriteFile(headPath, []byte("ref: refs/heads/feature\n"), 0o644))
	change, err = hw.Check()
	require.NoError(t, err)
	require.NotNil(t, change)
	require.Equal(t, "ref: refs/heads/main\n", change.OldHead)
	require.Equal(t, "ref: refs/heads/feature\n", change.NewHead)
}

func TestHeadWatcherResolvesWorktreeHead(t *testing.T) {
	root := t.TempDir()
	realGitDir := filepath.Join(t.TempDir(), "worktrees", "feature")
	require.NoError(t, os.MkdirAll(realGitDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(realGitDir, "HEAD"), []byte("abc123\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".git"), []byte("gitdir: "+realGitDir+"\n"), 0o644))

	hw := NewHeadWatcher(root, 0)
	_, err := hw.Check()
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(realGitDir, "HEAD"), []byte("def456\n"), 0o644))
	change, err := hw.Check()
	require.NoError(t, err)
	require.NotNil(t, change)
	require.Equal(t, "def456\n", change.NewHead)
}
