package menu

import (
	"context"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/pitabwire/util"
	"gopkg.in/yaml.v3"

	"github.com/voicetyped/ussdmenu/pkg/events"
	"github.com/voicetyped/ussdmenu/pkg/hooks"
	"github.com/voicetyped/ussdmenu/pkg/ussd"
)

// Loader loads menu definitions from a directory of YAML files, registers
// them as handlers and optionally hot-reloads them.
type Loader struct {
	dir       string
	registry  *ussd.Registry
	exec      *hooks.Executor
	publisher *events.Publisher

	mu   sync.RWMutex
	defs map[string]*Definition
}

// NewLoader creates a loader registering into registry. exec serves hook
// menus and may be nil when none are used.
func NewLoader(dir string, registry *ussd.Registry, exec *hooks.Executor, pub *events.Publisher) *Loader {
	return &Loader{
		dir:       dir,
		registry:  registry,
		exec:      exec,
		publisher: pub,
		defs:      make(map[string]*Definition),
	}
}

// NewHandler builds the handler serving def.
func NewHandler(def *Definition, exec *hooks.Executor) (ussd.Handler, error) {
	if def.Hook != nil {
		if exec == nil {
			return nil, fmt.Errorf("menu %q: hook menus need a hook executor", def.ID)
		}
		return NewRemote(def.ID, *def.Hook, exec), nil
	}
	return NewDeclarative(def), nil
}

// LoadAll loads every .yaml and .yml file in the directory. Either all
// definitions are registered or, on error, the previous set stays in place.
func (l *Loader) LoadAll(ctx context.Context) (map[string]*Definition, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("read menu dir %q: %w", l.dir, err)
	}

	loaded := make(map[string]*Definition)
	handlers := make(map[string]ussd.Handler)
	for _, entry := range entries {
		if entry.IsDir() || !isMenuFile(entry.Name()) {
			continue
		}

		path := filepath.Join(l.dir, entry.Name())
		def, err := loadFile(path)
		if err != nil {
			return nil, fmt.Errorf("load %q: %w", path, err)
		}
		if _, dup := loaded[def.ID]; dup {
			return nil, fmt.Errorf("load %q: duplicate menu id %q", path, def.ID)
		}
		h, err := NewHandler(def, l.exec)
		if err != nil {
			return nil, err
		}
		loaded[def.ID] = def
		handlers[def.ID] = h
	}

	l.mu.Lock()
	previous := l.defs
	l.defs = loaded
	l.mu.Unlock()

	for id := range previous {
		if _, ok := loaded[id]; !ok {
			l.registry.Unregister(id)
		}
	}
	for id, h := range handlers {
		if err := l.registry.RegisterHandler(id, h); err != nil {
			return nil, err
		}
	}

	if l.publisher != nil {
		_ = l.publisher.Emit(ctx, events.MenusReloaded, "", &events.ReloadData{
			Source: l.dir,
			Keys:   slices.Sorted(maps.Keys(loaded)),
		})
	}

	return loaded, nil
}

// Definitions returns the loaded definitions.
func (l *Loader) Definitions() map[string]*Definition {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return maps.Clone(l.defs)
}

func loadFile(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}
	if def.ID == "" {
		base := filepath.Base(path)
		def.ID = base[:len(base)-len(filepath.Ext(base))]
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

func isMenuFile(name string) bool {
	ext := filepath.Ext(name)
	return ext == ".yaml" || ext == ".yml"
}

// WatchAndReload watches the menu directory and reloads on change.
// This blocks until the done channel is closed.
func (l *Loader) WatchAndReload(ctx context.Context, done <-chan struct{}) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(l.dir); err != nil {
		return fmt.Errorf("watch dir %q: %w", l.dir, err)
	}

	for {
		select {
		case <-done:
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !isMenuFile(event.Name) {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				if _, err := l.LoadAll(ctx); err != nil {
					util.Log(ctx).WithError(err).Error("menu reload failed, keeping previous menus")
				}
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return err
		}
	}
}
