package ussd

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/voicetyped/ussdmenu/pkg/events"
)

// RouteLoader loads and optionally hot-reloads a route table from a YAML file.
//
//	default: demo
//	"100": info
//	"101": voucher
type RouteLoader struct {
	path      string
	publisher *events.Publisher

	mu       sync.RWMutex
	table    RouteTable
	fallback RouteTable
	loaded   bool
}

// NewRouteLoader creates a loader for the given file.
func NewRouteLoader(path string) *RouteLoader {
	return &RouteLoader{
		path:  path,
		table: RouteTable{},
	}
}

// NewStaticRoutes returns a loader serving a fixed table.
func NewStaticRoutes(table RouteTable) *RouteLoader {
	l := &RouteLoader{table: RouteTable{}, loaded: true}
	maps.Copy(l.table, table)
	return l
}

// WithFallback sets the table served until the first successful Load. A
// failed Load never replaces a table that loaded before.
func (l *RouteLoader) WithFallback(table RouteTable) *RouteLoader {
	l.mu.Lock()
	l.fallback = maps.Clone(table)
	l.mu.Unlock()
	return l
}

// WithPublisher makes Load emit routes.reloaded events.
func (l *RouteLoader) WithPublisher(pub *events.Publisher) *RouteLoader {
	l.publisher = pub
	return l
}

// Load reads the route file and replaces the current table.
func (l *RouteLoader) Load() (RouteTable, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("read route file %q: %w", l.path, err)
	}

	var table RouteTable
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}
	if table == nil {
		table = RouteTable{}
	}

	for code := range table {
		if code == DefaultRoute {
			continue
		}
		if c, ok := DialCode("*" + code); !ok || c != code {
			return nil, fmt.Errorf("route %q: code must be digits", code)
		}
	}

	l.mu.Lock()
	l.table = table
	l.loaded = true
	l.mu.Unlock()

	if l.publisher != nil {
		codes := slices.Sorted(maps.Keys(table))
		if err := l.publisher.Emit(context.Background(), events.RoutesReloaded, "", &events.ReloadData{
			Source: l.path,
			Keys:   codes,
		}); err != nil {
			slog.Warn("event publish failed", slog.String("event_type", string(events.RoutesReloaded)), slog.String("error", err.Error()))
		}
	}

	return l.Table(), nil
}

// Table returns a snapshot of the current route table.
func (l *RouteLoader) Table() RouteTable {
	l.mu.RLock()
	defer l.mu.RUnlock()
	src := l.table
	if !l.loaded && l.fallback != nil {
		src = l.fallback
	}
	cp := make(RouteTable, len(src))
	maps.Copy(cp, src)
	return cp
}

// WatchAndReload watches the route file's directory and reloads on change.
// This blocks until the done channel is closed.
func (l *RouteLoader) WatchAndReload(done <-chan struct{}, onErr func(error)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(l.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch dir %q: %w", dir, err)
	}

	for {
		select {
		case <-done:
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(l.path) {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				if _, err := l.Load(); err != nil && onErr != nil {
					onErr(err)
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
