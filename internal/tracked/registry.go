// Package tracked maintains the registry of servers rendered in per-entity
// mode. Entities come from a YAML file that can be edited while the service
// runs; the registry hot-reloads it.
package tracked

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Entity is one explicitly registered server.
type Entity struct {
	// Key is the "host:port" identifier matching the time-series rows.
	Key string `yaml:"key"`

	// Name overrides the listing display name; empty keeps the fetched one.
	Name string `yaml:"name"`

	// Color is the hex sparkline color for this entity, e.g. "#40c4ff".
	Color string `yaml:"color"`

	// Icon is a path to a PNG drawn in the entity card header.
	Icon string `yaml:"icon"`

	// Probe enables a direct A2S query when the entity is missing from the
	// fetched listing.
	Probe bool `yaml:"probe"`
}

type file struct {
	Entities []Entity `yaml:"entities"`
}

// Load reads and validates the registry file.
func Load(path string) ([]Entity, error) {
	raw, err := os.ReadFile(path) //nolint:gosec
	if err != nil {
		return nil, err
	}

	var f file
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse tracked entities: %w", err)
	}

	for i, e := range f.Entities {
		if e.Key == "" {
			return nil, fmt.Errorf("tracked entity %d: missing key", i)
		}
	}

	return f.Entities, nil
}

// Registry is a thread-safe snapshot of the current entity set.
type Registry struct {
	mu       sync.RWMutex
	entities []Entity
}

// NewRegistry returns a registry seeded with the given entities.
func NewRegistry(entities []Entity) *Registry {
	return &Registry{entities: entities}
}

// Entities returns a copy of the current entity set.
func (r *Registry) Entities() []Entity {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Entity, len(r.entities))
	copy(out, r.entities)
	return out
}

// Set replaces the entity set.
func (r *Registry) Set(entities []Entity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entities = entities
}

// Watch monitors path and reloads the registry each time the file is written.
// A failed reload logs the error and keeps the previous entity set. Watch
// blocks until ctx is cancelled.
func (r *Registry) Watch(ctx context.Context, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(path); err != nil {
		return err
	}

	log.Info().Str("path", path).Msg("Watching tracked entities file")

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			// Editors often save via rename, so catch Create as well as Write.
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			entities, err := Load(path)
			if err != nil {
				log.Error().Err(err).Str("path", path).Msg("Reload of tracked entities failed, keeping previous set")
				continue
			}

			r.Set(entities)
			log.Info().Int("count", len(entities)).Msg("Tracked entities reloaded")

			// Re-add in case an atomic save replaced the inode.
			_ = watcher.Add(path)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Error().Err(err).Msg("Tracked entities watcher error")
		}
	}
}
