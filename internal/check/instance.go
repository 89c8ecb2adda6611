// Copyright © 2017 Circonus, Inc. <support@circonus.com>
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package check

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/circonus-labs/circonus-checks/internal/sink"
	"github.com/rs/zerolog"
)

// Instance drives one configured check through its lifecycle. Runs are
// bounded by the instance timeout and never overlap.
type Instance struct {
	id              string
	typ             string
	check           Check
	target          string
	timeout         time.Duration
	baseTags        []string
	hostname        string
	state           State
	running         bool
	lastStart       time.Time
	lastEnd         time.Time
	lastRunDuration time.Duration
	lastError       string
	lastMetrics     int
	runs            uint64
	errors          uint64
	logger          zerolog.Logger
	sync.Mutex
}

// InventoryStats defines the stats an instance exposes for the /inventory endpoint
type InventoryStats struct {
	ID              string `json:"id"`
	Type            string `json:"type"`
	State           State  `json:"state"`
	Target          string `json:"service_check"`
	LastError       string `json:"last_error"`
	LastMetrics     int    `json:"last_metrics"`
	LastRunDuration string `json:"last_run_duration"`
	LastRunEnd      string `json:"last_run_end"`
	LastRunStart    string `json:"last_run_start"`
	Runs            uint64 `json:"runs"`
	Errors          uint64 `json:"errors"`
}

// NewInstance wraps a constructed check. The instance starts CONFIGURED.
func NewInstance(typ, id string, c Check, cfg Common, baseTags []string, logger zerolog.Logger) (*Instance, error) {
	if c == nil {
		return nil, fmt.Errorf("invalid check (nil)")
	}
	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("invalid timeout (%s)", cfg.Timeout)
	}

	target := typ + ".can_connect"
	if t, ok := c.(Targeter); ok {
		target = t.ServiceCheckName()
	}

	i := &Instance{
		id:       id,
		typ:      typ,
		check:    c,
		target:   target,
		timeout:  cfg.Timeout,
		baseTags: append(append([]string(nil), baseTags...), cfg.Tags...),
		hostname: cfg.Hostname,
		logger:   logger.With().Str("check", typ).Str("id", id).Logger(),
	}
	i.setState(Configured)

	return i, nil
}

// ID returns the instance id.
func (i *Instance) ID() string { return i.id }

// Type returns the check type.
func (i *Instance) Type() string { return i.typ }

// Logger returns the instance logger.
func (i *Instance) Logger() zerolog.Logger { return i.logger }

// State returns the current lifecycle state.
func (i *Instance) State() State {
	i.Lock()
	defer i.Unlock()
	return i.state
}

// setState must be called with the lock held (or before the instance is shared).
func (i *Instance) setState(s State) bool {
	if !canTransition(i.state, s) {
		i.logger.Warn().Str("from", i.state.String()).Str("to", s.String()).Msg("invalid state transition")
		return false
	}
	i.state = s
	return true
}

// Run performs one collection into s. A run still in progress yields
// ErrAlreadyRunning, a closed instance ErrTornDown. Exceeding the timeout
// yields ErrTimeout; anything the check emits afterwards is dropped. Hard
// failures are returned, soft failures are logged. Either way the terminal
// service check is emitted before Run returns.
func (i *Instance) Run(ctx context.Context, s sink.Sink) error {
	i.Lock()
	if i.state == Teardown {
		i.Unlock()
		return ErrTornDown
	}
	if i.running {
		i.Unlock()
		i.logger.Warn().Msg(ErrAlreadyRunning.Error())
		return ErrAlreadyRunning
	}
	i.running = true
	i.setState(Collecting)
	i.lastStart = time.Now()
	i.Unlock()

	start := time.Now()
	rctx, cancel := context.WithTimeout(ctx, i.timeout)

	r := NewReporter(s, i.target, i.baseTags, i.logger)
	if i.hostname != "" {
		r.SetHostname(i.hostname)
	}

	done := make(chan error, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- fmt.Errorf("check panic: %v", p)
			}
		}()
		done <- i.check.Collect(rctx, r)
	}()

	var err error
	timedOut := false
	select {
	case err = <-done:
	case <-rctx.Done():
		timedOut = true
		if ctx.Err() != nil {
			err = fmt.Errorf("run canceled: %w", ctx.Err())
		} else {
			err = fmt.Errorf("%w after %s", ErrTimeout, i.timeout)
		}
	}

	r.Finish(err)

	if IsSoft(err) {
		i.logger.Warn().Err(err).Msg("collection")
		err = nil
	}

	metrics, _ := r.Emitted()

	i.Lock()
	i.lastEnd = time.Now()
	i.lastRunDuration = time.Since(start)
	i.lastMetrics = metrics
	i.runs++
	i.lastError = ""
	if err != nil {
		i.errors++
		i.lastError = err.Error()
	}
	if !timedOut {
		i.running = false
		if i.state == Collecting {
			i.setState(Idle)
		}
	}
	i.Unlock()

	if timedOut {
		// the guard is held until the abandoned collection returns
		go func() {
			<-done
			cancel()
			i.Lock()
			i.running = false
			if i.state == Collecting {
				i.setState(Idle)
			}
			i.Unlock()
		}()
	} else {
		cancel()
	}

	return err
}

// Close tears the instance down, releasing the check's resources.
func (i *Instance) Close() error {
	i.Lock()
	if i.state == Teardown {
		i.Unlock()
		return nil
	}
	i.setState(Teardown)
	i.Unlock()

	return i.check.Close()
}

// Inventory returns the instance stats.
func (i *Instance) Inventory() InventoryStats {
	i.Lock()
	defer i.Unlock()
	return InventoryStats{
		ID:              i.id,
		Type:            i.typ,
		State:           i.state,
		Target:          i.target,
		LastError:       i.lastError,
		LastMetrics:     i.lastMetrics,
		LastRunDuration: i.lastRunDuration.String(),
		LastRunEnd:      i.lastEnd.String(),
		LastRunStart:    i.lastStart.String(),
		Runs:            i.runs,
		Errors:          i.errors,
	}
}
