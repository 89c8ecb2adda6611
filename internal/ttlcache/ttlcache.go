// Copyright © 2017 Circonus, Inc. <support@circonus.com>
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

// Package ttlcache is a keyed cache whose entries are recomputed once their
// ttl has elapsed. Concurrent readers of an expired key share a single
// recomputation.
package ttlcache

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	// ErrInvalidTTL is returned for a ttl that is not positive.
	ErrInvalidTTL = errors.New("ttl must be greater than zero")
	// ErrComputePanicked is returned to callers that were waiting on a
	// compute which panicked.
	ErrComputePanicked = errors.New("compute panicked")
)

// ComputeFunc produces a fresh value for a key.
type ComputeFunc func() (interface{}, error)

// Cache is safe for concurrent use. The zero value is not usable, use New.
type Cache struct {
	entries map[string]*entry
	now     func() time.Time
	sync.Mutex
}

type entry struct {
	value    interface{}
	storedAt time.Time
	ttl      time.Duration
	valid    bool
	inflight *call
}

type call struct {
	done  chan struct{}
	value interface{}
	err   error
}

// New returns an empty cache.
func New() *Cache {
	return &Cache{
		entries: make(map[string]*entry),
		now:     time.Now,
	}
}

func (e *entry) fresh(now time.Time) bool {
	return e.valid && now.Sub(e.storedAt) < e.ttl
}

// GetOrRefresh returns the cached value for key while it is younger than
// ttl. Otherwise compute is called, at most once per expiry no matter how
// many callers are waiting, and its result is shared with them. A failed
// compute is not stored: the previous value stays in place, every waiting
// caller receives the error and the next call tries again. A panic in
// compute is propagated to the caller that ran it, waiters receive
// ErrComputePanicked.
func (c *Cache) GetOrRefresh(key string, ttl time.Duration, compute ComputeFunc) (interface{}, error) {
	if ttl <= 0 {
		return nil, ErrInvalidTTL
	}

	c.Lock()
	e, ok := c.entries[key]
	if !ok {
		e = &entry{}
		c.entries[key] = e
	}
	if e.fresh(c.now()) {
		v := e.value
		c.Unlock()
		return v, nil
	}
	if cl := e.inflight; cl != nil {
		c.Unlock()
		<-cl.done
		return cl.value, cl.err
	}
	cl := &call{done: make(chan struct{})}
	e.inflight = cl
	c.Unlock()

	panicked := true
	defer func() {
		if panicked {
			cl.value, cl.err = nil, ErrComputePanicked
		}
		c.Lock()
		if cl.err == nil {
			e.value = cl.value
			e.storedAt = c.now()
			e.ttl = ttl
			e.valid = true
		}
		e.inflight = nil
		c.Unlock()
		close(cl.done)
	}()

	cl.value, cl.err = compute()
	panicked = false

	return cl.value, cl.err
}

// Get returns the value for key if it has not expired.
func (c *Cache) Get(key string) (interface{}, bool) {
	c.Lock()
	defer c.Unlock()
	e, ok := c.entries[key]
	if !ok || !e.fresh(c.now()) {
		return nil, false
	}
	return e.value, true
}

// Set stores value for key, valid for ttl.
func (c *Cache) Set(key string, value interface{}, ttl time.Duration) error {
	if ttl <= 0 {
		return ErrInvalidTTL
	}
	c.Lock()
	defer c.Unlock()
	e, ok := c.entries[key]
	if !ok {
		e = &entry{}
		c.entries[key] = e
	}
	e.value = value
	e.storedAt = c.now()
	e.ttl = ttl
	e.valid = true
	return nil
}

// Delete removes key.
func (c *Cache) Delete(key string) {
	c.Lock()
	defer c.Unlock()
	delete(c.entries, key)
}

// Len returns the number of entries holding a value, expired or not.
func (c *Cache) Len() int {
	c.Lock()
	defer c.Unlock()
	n := 0
	for _, e := range c.entries {
		if e.valid {
			n++
		}
	}
	return n
}

// Clear removes every entry.
func (c *Cache) Clear() {
	c.Lock()
	defer c.Unlock()
	c.entries = make(map[string]*entry)
}

// Clamp forces d into [min, max], logging a warning naming the option when
// it had to be adjusted.
func Clamp(name string, d, min, max time.Duration, logger zerolog.Logger) time.Duration {
	switch {
	case d < min:
		logger.Warn().Str("option", name).Str("value", d.String()).Str("min", min.String()).Msg("below allowed range, using minimum")
		return min
	case d > max:
		logger.Warn().Str("option", name).Str("value", d.String()).Str("max", max.String()).Msg("above allowed range, using maximum")
		return max
	}
	return d
}
