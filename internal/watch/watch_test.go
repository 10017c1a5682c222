package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hanpama/populate/internal/compiler"
	"github.com/hanpama/populate/internal/eventbus"
	"github.com/hanpama/populate/internal/events"
	"github.com/hanpama/populate/internal/schema"
)

func loader(path string) LoadFunc {
	return func() (*compiler.Compiler, error) {
		decl, err := schema.Load(path, schema.LoadOptions{})
		if err != nil {
			return nil, err
		}
		return compiler.New(decl), nil
	}
}

func startWatcher(t *testing.T, path string) (*compiler.Holder, chan events.SchemaReload) {
	t.Helper()
	prev := eventbus.Global()
	eventbus.Use(eventbus.New())
	t.Cleanup(func() { eventbus.Use(prev) })

	reloads := make(chan events.SchemaReload, 8)
	eventbus.Subscribe(func(_ context.Context, e events.SchemaReload) { reloads <- e })

	c, err := loader(path)()
	require.NoError(t, err)
	holder := compiler.NewHolder(c)

	w, err := New(path, loader(path), holder, WithDebounce(20*time.Millisecond))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	ready := make(chan struct{})
	go func() { done <- w.Run(ctx, ready) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})
	<-ready
	return holder, reloads
}

func waitReload(t *testing.T, reloads <-chan events.SchemaReload) events.SchemaReload {
	t.Helper()
	select {
	case e := <-reloads:
		return e
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for schema reload")
		return events.SchemaReload{}
	}
}

// waitSuccess skips reloads that saw a partially written file.
func waitSuccess(t *testing.T, reloads <-chan events.SchemaReload) events.SchemaReload {
	t.Helper()
	for {
		if e := waitReload(t, reloads); e.Err == nil {
			return e
		}
	}
}

func TestReloadOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.graphql")
	require.NoError(t, os.WriteFile(path, []byte("type A { a: String }"), 0o644))
	holder, reloads := startWatcher(t, path)
	require.Equal(t, "A", holder.Load().Name())

	require.NoError(t, os.WriteFile(path, []byte("type B { b: String }"), 0o644))
	e := waitSuccess(t, reloads)
	require.Equal(t, path, e.Path)
	require.Equal(t, "B", holder.Load().Name())
}

func TestFailedReloadKeepsPrevious(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.graphql")
	require.NoError(t, os.WriteFile(path, []byte("type A { a: String }"), 0o644))
	holder, reloads := startWatcher(t, path)

	require.NoError(t, os.WriteFile(path, []byte("type {"), 0o644))
	e := waitReload(t, reloads)
	require.Error(t, e.Err)
	require.Equal(t, "A", holder.Load().Name())
}

func TestDirectoryIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.graphql"), []byte("type A { a: String }"), 0o644))
	holder, reloads := startWatcher(t, dir)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hi"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "0.graphql"), []byte("type Z { z: String }"), 0o644))
	waitSuccess(t, reloads)
	require.Equal(t, "Z", holder.Load().Name())
}

func TestNewMissingPath(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "nope.graphql"), nil, nil)
	require.Error(t, err)
}
