package localstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// File implements Store backed by a single YAML file on disk.
// Reads are served from an in-memory copy; every mutation rewrites the file.
type File struct {
	path   string
	logger *slog.Logger

	mu     sync.Mutex
	values map[string]string
}

// Open loads the store at path, creating its directory if needed.
// A missing file yields an empty store. A corrupt file is logged and
// treated as empty.
func Open(path string, logger *slog.Logger) (*File, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("localstore: resolve path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return nil, fmt.Errorf("localstore: mkdir: %w", err)
	}
	f := &File{path: abs, logger: logger, values: map[string]string{}}
	if err := f.reload(); err != nil {
		logger.Warn("localstore: load failed, starting empty",
			slog.String("path", abs),
			slog.String("error", err.Error()))
	}
	return f, nil
}

// Path returns the absolute path of the backing file.
func (f *File) Path() string {
	return f.path
}

// Get returns the cached value for key.
func (f *File) Get(key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.values[key]
	return v, ok, nil
}

// Set stores value and persists the whole map.
func (f *File) Set(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	prev, had := f.values[key]
	f.values[key] = value
	if err := f.flush(); err != nil {
		if had {
			f.values[key] = prev
		} else {
			delete(f.values, key)
		}
		return err
	}
	return nil
}

// Remove deletes key and persists the whole map.
func (f *File) Remove(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	prev, had := f.values[key]
	if !had {
		return nil
	}
	delete(f.values, key)
	if err := f.flush(); err != nil {
		f.values[key] = prev
		return err
	}
	return nil
}

// reload replaces the cache with the file contents. f.mu is held from the
// read to the swap so a concurrent Set is never replaced by an older snapshot.
func (f *File) reload() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		f.values = map[string]string{}
		return nil
	}
	if err != nil {
		return fmt.Errorf("localstore: read: %w", err)
	}
	values := map[string]string{}
	if err := yaml.Unmarshal(data, &values); err != nil {
		return fmt.Errorf("localstore: parse: %w", err)
	}
	if values == nil {
		values = map[string]string{}
	}
	f.values = values
	return nil
}

// flush atomically writes the cache: tmp file → fsync → rename.
// Callers hold f.mu.
func (f *File) flush() error {
	data, err := yaml.Marshal(f.values)
	if err != nil {
		return fmt.Errorf("localstore: encode: %w", err)
	}
	dir := filepath.Dir(f.path)

	tmp, err := os.CreateTemp(dir, ".ideashare-tmp-*")
	if err != nil {
		return fmt.Errorf("localstore: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("localstore: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("localstore: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("localstore: close temp: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("localstore: rename: %w", err)
	}
	success = true
	return nil
}

// Watch reloads the cache whenever the backing file is changed by another
// process, until ctx is cancelled. onReload, if non-nil, runs after each
// successful reload.
//
// The parent directory is watched rather than the file itself because our own
// writes replace the file by rename, which would drop a file-level watch.
func (f *File) Watch(ctx context.Context, onReload func()) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(filepath.Dir(f.path)); err != nil {
		return err
	}
	f.logger.Info("localstore: watching", slog.String("path", f.path))

	for {
		select {
		case <-ctx.Done():
			f.logger.Info("localstore: watcher stopped")
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != f.path {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if err := f.reload(); err != nil {
				f.logger.Warn("localstore: reload failed", slog.String("error", err.Error()))
				continue
			}
			f.logger.Debug("localstore: reloaded", slog.String("op", ev.Op.String()))
			if onReload != nil {
				onReload()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			f.logger.Error("localstore: watcher error", slog.String("error", watchErr.Error()))
		}
	}
}
