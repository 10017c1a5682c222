// Package watch reloads the schema when its files change.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/hanpama/populate/internal/compiler"
	"github.com/hanpama/populate/internal/eventbus"
	"github.com/hanpama/populate/internal/events"
	"github.com/hanpama/populate/internal/schema"
)

// LoadFunc builds a fresh compiler from the files on disk.
type LoadFunc func() (*compiler.Compiler, error)

// Watcher swaps the compiler in a Holder whenever the watched schema
// file, or any schema file below a watched directory, changes. A failed
// reload keeps the previous compiler.
type Watcher struct {
	path     string
	dir      bool
	load     LoadFunc
	holder   *compiler.Holder
	debounce time.Duration
}

type Option func(*Watcher)

// WithDebounce sets how long to wait for writes to settle. Default 100ms.
func WithDebounce(d time.Duration) Option { return func(w *Watcher) { w.debounce = d } }

func New(path string, load LoadFunc, holder *compiler.Holder, opts ...Option) (*Watcher, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("watch: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("watch: %w", err)
	}
	w := &Watcher{
		path:     abs,
		dir:      info.IsDir(),
		load:     load,
		holder:   holder,
		debounce: 100 * time.Millisecond,
	}
	for _, f := range opts {
		f(w)
	}
	return w, nil
}

// Run watches until ctx is done. ready, if non-nil, is closed once the
// watches are in place.
func (w *Watcher) Run(ctx context.Context, ready chan<- struct{}) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	defer fw.Close()

	if err := w.add(fw); err != nil {
		return err
	}
	if ready != nil {
		close(ready)
	}

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if w.dir && ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					_ = fw.Add(ev.Name)
				}
			}
			if w.relevant(ev) {
				timer.Reset(w.debounce)
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			eventbus.Publish(ctx, events.SchemaReload{Path: w.path, Err: err})
		case <-timer.C:
			w.Reload(ctx)
		}
	}
}

// Reload loads the schema once and swaps it in on success.
func (w *Watcher) Reload(ctx context.Context) error {
	start := time.Now()
	c, err := w.load()
	if err == nil {
		w.holder.Swap(c)
	}
	eventbus.Publish(ctx, events.SchemaReload{Path: w.path, Err: err, Duration: time.Since(start)})
	return err
}

// add watches the parent directory of a file, so editors that replace
// the file by rename are still seen, or every directory below a schema
// directory.
func (w *Watcher) add(fw *fsnotify.Watcher) error {
	if !w.dir {
		if err := fw.Add(filepath.Dir(w.path)); err != nil {
			return fmt.Errorf("watch: %w", err)
		}
		return nil
	}
	err := filepath.WalkDir(w.path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return fw.Add(p)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	return nil
}

func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) && !ev.Has(fsnotify.Remove) {
		return false
	}
	if !w.dir {
		return filepath.Clean(ev.Name) == w.path
	}
	f, err := schema.DetectFormat(ev.Name)
	return err == nil && f == schema.FormatSDL
}
