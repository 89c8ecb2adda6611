// Copyright © 2017 Circonus, Inc. <support@circonus.com>
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package check

import (
	"fmt"
	"sort"
	"sync"
)

// Factory builds a check instance. init is the integration wide
// init_config section, inst the instance section. Factories validate the
// configuration and must not perform blocking I/O.
type Factory func(id string, init, inst map[string]interface{}, deps Deps) (Check, error)

// Registry maps check types to their factory. The set of types is fixed
// once registration is done and the type of each instance is selected
// once, from configuration.
type Registry struct {
	factories map[string]Factory
	sync.RWMutex
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory for typ.
func (r *Registry) Register(typ string, f Factory) error {
	if typ == "" {
		return fmt.Errorf("invalid check type (empty)")
	}
	if f == nil {
		return fmt.Errorf("invalid factory (nil) for %s", typ)
	}

	r.Lock()
	defer r.Unlock()

	if _, exists := r.factories[typ]; exists {
		return fmt.Errorf("duplicate check type (%s)", typ)
	}
	r.factories[typ] = f

	return nil
}

// MustRegister is Register, panicking on error.
func (r *Registry) MustRegister(typ string, f Factory) {
	if err := r.Register(typ, f); err != nil {
		panic(err)
	}
}

// New builds an instance of typ.
func (r *Registry) New(typ, id string, init, inst map[string]interface{}, deps Deps) (Check, error) {
	r.RLock()
	f, ok := r.factories[typ]
	r.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%s: %w", typ, ErrUnknownType)
	}
	if init == nil {
		init = map[string]interface{}{}
	}
	if inst == nil {
		inst = map[string]interface{}{}
	}

	return f(id, init, inst, deps)
}

// Has reports whether typ is registered.
func (r *Registry) Has(typ string) bool {
	r.RLock()
	defer r.RUnlock()
	_, ok := r.factories[typ]
	return ok
}

// Types lists the registered types, sorted.
func (r *Registry) Types() []string {
	r.RLock()
	defer r.RUnlock()
	types := make([]string, 0, len(r.factories))
	for t := range r.factories {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
