// Package cache keeps large immutable objects, such as placement catalogs,
// so that games sharing a board shape build them only once.
package cache

import (
	"sync"

	"github.com/rs/zerolog/log"
)

type cache struct {
	sync.Mutex
	objects map[string]any
}

// LoadFunc builds the object stored under key.
type LoadFunc func(key string) (any, error)

// GlobalObjectCache is shared by every game in the process.
var GlobalObjectCache = newCache()

func newCache() *cache {
	return &cache{objects: make(map[string]any)}
}

func (c *cache) get(key string, load LoadFunc) (any, error) {
	c.Lock()
	defer c.Unlock()
	if obj, ok := c.objects[key]; ok {
		log.Trace().Str("key", key).Msg("getting-obj-from-cache")
		return obj, nil
	}
	log.Debug().Str("key", key).Msg("loading-into-cache")
	obj, err := load(key)
	if err != nil {
		return nil, err
	}
	c.objects[key] = obj
	return obj, nil
}

func (c *cache) len() int {
	c.Lock()
	defer c.Unlock()
	return len(c.objects)
}

// Load returns the object under key, building it with load on first use.
// Failed loads are not cached.
func Load[T any](key string, load func() (T, error)) (T, error) {
	obj, err := GlobalObjectCache.get(key, func(string) (any, error) {
		return load()
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return obj.(T), nil
}

// Clear empties the global cache.
func Clear() {
	GlobalObjectCache.Lock()
	defer GlobalObjectCache.Unlock()
	clear(GlobalObjectCache.objects)
}
