//-------------------------------------------------------------------------
//
// pgEdge Olist Warehouse Loader
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package schema

import (
	"fmt"
	"sort"
	"sync"
)

var (
	registry = make(map[string]*Definition)
	mu       sync.RWMutex
)

// Register adds a schema definition to the registry.
func Register(def *Definition) {
	mu.Lock()
	defer mu.Unlock()
	registry[def.Name] = def
}

// Get retrieves a schema definition by name.
func Get(name string) (*Definition, error) {
	mu.RLock()
	defer mu.RUnlock()

	def, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown schema: %s", name)
	}
	return def, nil
}

// List returns all registered schema names, sorted.
func List() []string {
	mu.RLock()
	defer mu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// All returns all registered schema definitions in pipeline order
// (staging before dw).
func All() []*Definition {
	mu.RLock()
	defer mu.RUnlock()

	defs := make([]*Definition, 0, len(registry))
	for _, def := range registry {
		defs = append(defs, def)
	}
	sort.Slice(defs, func(i, j int) bool {
		ri, rj := pipelineRank(defs[i].Name), pipelineRank(defs[j].Name)
		if ri != rj {
			return ri < rj
		}
		return defs[i].Name < defs[j].Name
	})
	return defs
}

func pipelineRank(name string) int {
	switch name {
	case "staging":
		return 0
	case "dw":
		return 1
	default:
		return 2
	}
}
