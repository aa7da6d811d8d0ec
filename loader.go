package minijinja

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Loader resolves a template name to its source text. Environment.GetTemplate
// consults the configured Loader whenever a name isn't already registered
// via AddTemplate.
type Loader interface {
	Load(name string) (string, error)
}

// MapLoader serves templates out of an in-memory name->source map, useful
// for tests and embedded template sets.
type MapLoader map[string]string

// Load implements Loader.
func (m MapLoader) Load(name string) (string, error) {
	src, ok := m[name]
	if !ok {
		return "", NewError(ErrTemplateNotFound, name)
	}
	return src, nil
}

// FuncLoader adapts a plain function into a Loader.
type FuncLoader func(name string) (string, error)

// Load implements Loader.
func (f FuncLoader) Load(name string) (string, error) { return f(name) }

// FileSystemLoader serves templates from files rooted at a directory,
// rejecting names that would escape the root via "..".
type FileSystemLoader struct {
	Root string
}

// NewFileSystemLoader creates a loader rooted at dir.
func NewFileSystemLoader(dir string) *FileSystemLoader {
	return &FileSystemLoader{Root: dir}
}

// Load implements Loader.
func (l *FileSystemLoader) Load(name string) (string, error) {
	clean := filepath.Clean(name)
	if strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", NewError(ErrTemplateNotFound, name)
	}
	path := filepath.Join(l.Root, clean)
	data, err := os.ReadFile(path)
	if err != nil {
		return "", NewError(ErrTemplateNotFound, name)
	}
	return string(data), nil
}

// ChainLoader tries each Loader in order, returning the first match.
type ChainLoader []Loader

// Load implements Loader.
func (c ChainLoader) Load(name string) (string, error) {
	for _, l := range c {
		src, err := l.Load(name)
		if err == nil {
			return src, nil
		}
	}
	return "", NewError(ErrTemplateNotFound, name)
}

// WatchFS watches the loader's root directory for changes and invalidates
// any cached templates whose name matches the changed file, so the next
// GetTemplate call reloads and reparses them. It returns a stop function
// that closes the underlying watcher; the caller owns its lifetime.
func (e *Environment) WatchFS(l *FileSystemLoader) (stop func() error, err error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch template directory: %w", err)
	}
	if err := filepath.WalkDir(l.Root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	}); err != nil {
		watcher.Close()
		return nil, err
	}

	var once sync.Once
	done := make(chan struct{})
	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
					continue
				}
				rel, err := filepath.Rel(l.Root, event.Name)
				if err != nil {
					continue
				}
				e.templatesMu.Lock()
				delete(e.templates, filepath.ToSlash(rel))
				e.templatesMu.Unlock()
			case <-done:
				return
			}
		}
	}()

	return func() error {
		once.Do(func() { close(done) })
		return watcher.Close()
	}, nil
}
