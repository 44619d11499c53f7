package server

import (
	"maps"
	"sync"
)

// Env is the dev server's live import.meta.env map. Changes are visible to
// the next module served.
type Env struct {
	mu     sync.RWMutex
	values map[string]any
}

func NewEnv(values map[string]any) *Env {
	return &Env{values: maps.Clone(values)}
}

func (e *Env) Set(key string, value any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.values == nil {
		e.values = map[string]any{}
	}
	e.values[key] = value
}

func (e *Env) Get(key string) (any, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	v, ok := e.values[key]
	return v, ok
}

func (e *Env) Snapshot() map[string]any {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := maps.Clone(e.values)
	if out == nil {
		out = map[string]any{}
	}
	return out
}
