// Copyright © 2017 Circonus, Inc. <support@circonus.com>
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

// Package checks marshals the configured integration check instances
package checks

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/circonus-labs/circonus-checks/internal/check"
	"github.com/circonus-labs/circonus-checks/internal/config"
	"github.com/circonus-labs/circonus-checks/internal/config/defaults"
	"github.com/circonus-labs/circonus-checks/internal/sink"
	"github.com/circonus-labs/circonus-checks/internal/tags"
	"github.com/circonus-labs/circonus-checks/internal/ttlcache"
	cgm "github.com/circonus-labs/circonus-gometrics/v3"
	appstats "github.com/maier/go-appstats"
	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Options controls which instances are loaded.
type Options struct {
	ConfDir  string        // directory of <type>.(json|toml|yaml) files
	Enabled  []string      // restrict to these types, empty means every registered type
	Timeout  time.Duration // default per run timeout
	BaseTags []string      // added to every emission
	Debug    bool          // cgm debug logging
}

// Checks defines the integration check manager
type Checks struct {
	registry     *check.Registry
	instances    map[string]*check.Instance
	aggregator   *sink.Aggregator
	accessDenied *ttlcache.Cache
	logger       zerolog.Logger
	running      bool
	sync.Mutex
}

// ErrUnknownInstance no instance or type matches the requested id.
var ErrUnknownInstance = errors.New("unknown check instance")

// OptionsFromConfig builds Options from the running configuration.
func OptionsFromConfig() (Options, error) {
	opts := Options{
		ConfDir:  viper.GetString(config.KeyChecksConfDir),
		Enabled:  viper.GetStringSlice(config.KeyChecksEnabled),
		BaseTags: tags.GetBaseTags(),
		Debug:    viper.GetBool(config.KeyDebugCGM),
	}
	if opts.ConfDir == "" {
		opts.ConfDir = defaults.ConfDPath
	}

	spec := viper.GetString(config.KeyChecksTimeout)
	if spec == "" {
		spec = defaults.CheckTimeout
	}
	d, err := time.ParseDuration(spec)
	if err != nil {
		return opts, &config.InvalidError{Key: config.KeyChecksTimeout, Reason: "unparsable duration", Err: err}
	}
	opts.Timeout = d

	return opts, nil
}

// New creates a new check manager, constructing every configured instance
// of the types known to reg. Configuration errors abort the load.
func New(reg *check.Registry, opts Options) (*Checks, error) {
	if reg == nil {
		return nil, pkgerrors.New("invalid registry (nil)")
	}
	if opts.Timeout <= 0 {
		return nil, config.Invalidf(config.KeyChecksTimeout, "must be greater than zero (%s)", opts.Timeout)
	}

	logger := log.With().Str("pkg", "checks").Logger()

	agg, err := sink.NewAggregator(logger, opts.Debug)
	if err != nil {
		return nil, err
	}

	c := &Checks{
		registry:     reg,
		instances:    make(map[string]*check.Instance),
		aggregator:   agg,
		accessDenied: ttlcache.New(),
		logger:       logger,
	}

	c.logger.Info().Str("conf_dir", opts.ConfDir).Msg("configuring checks")

	if err := c.configure(opts); err != nil {
		_ = c.Close()
		return nil, pkgerrors.Wrap(err, "configuring checks")
	}

	return c, nil
}

func (c *Checks) configure(opts Options) error {
	types := opts.Enabled
	if len(types) == 0 {
		types = c.registry.Types()
	}

	appstats.AddInt("checks.total", 0)

	for _, typ := range types {
		if !c.registry.Has(typ) {
			return fmt.Errorf("%s: %w", typ, check.ErrUnknownType)
		}

		raw, err := config.LoadConfigMap(filepath.Join(opts.ConfDir, typ))
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				c.logger.Debug().Str("type", typ).Msg("no configuration, skipping")
				continue
			}
			return err
		}

		initCfg, _ := raw["init_config"].(map[string]interface{})
		list, ok := raw["instances"].([]interface{})
		if !ok {
			if _, present := raw["instances"]; present {
				return config.Invalid(typ+".instances", "must be a list")
			}
			c.logger.Warn().Str("type", typ).Msg("no instances configured")
			continue
		}

		for idx, item := range list {
			inst, ok := item.(map[string]interface{})
			if !ok {
				return config.Invalidf(typ+".instances", "item %d is not a map", idx)
			}
			if err := c.addInstance(typ, idx, initCfg, inst, opts); err != nil {
				return err
			}
		}
	}

	return nil
}

func (c *Checks) addInstance(typ string, idx int, initCfg, inst map[string]interface{}, opts Options) error {
	var common check.Common
	if err := check.Decode(inst, &common); err != nil {
		return pkgerrors.Wrapf(err, "%s instance %d", typ, idx)
	}
	if common.Timeout <= 0 {
		common.Timeout = opts.Timeout
	}

	id := typ + ":" + strconv.Itoa(idx)
	if common.Name != "" {
		id = typ + ":" + common.Name
	}
	if _, dup := c.instances[id]; dup {
		return config.Invalidf(typ+".instances", "duplicate instance name (%s)", common.Name)
	}

	deps := check.Deps{
		Logger:       c.logger.With().Str("check", typ).Str("id", id).Logger(),
		BaseTags:     append([]string(nil), opts.BaseTags...),
		AccessDenied: c.accessDenied,
	}

	chk, err := c.registry.New(typ, id, initCfg, inst, deps)
	if err != nil {
		return pkgerrors.Wrapf(err, "%s instance %d", typ, idx)
	}

	ci, err := check.NewInstance(typ, id, chk, common, opts.BaseTags, c.logger)
	if err != nil {
		return pkgerrors.Wrapf(err, "%s instance %d", typ, idx)
	}

	c.instances[id] = ci
	appstats.IncrementInt("checks.total")
	c.logger.Info().Str("id", id).Msg("enabled check")

	return nil
}

// Run triggers the instances matching id (an instance id, a check type, or
// empty for all) and waits for them to finish. Emissions go to the
// aggregator and to any extra sinks.
func (c *Checks) Run(ctx context.Context, id string, extra ...sink.Sink) error {
	c.Lock()

	if len(c.instances) == 0 {
		c.Unlock()
		return nil // nothing to do
	}

	if id == "" && c.running {
		c.logger.Warn().Msg("already in progress")
		c.Unlock()
		return nil
	}

	selected := c.selectLocked(id)
	if len(selected) == 0 {
		c.Unlock()
		c.logger.Warn().Str("id", id).Msg("unknown check")
		return fmt.Errorf("%s: %w", id, ErrUnknownInstance)
	}

	if id == "" {
		c.running = true
	}
	c.Unlock()

	dest := sink.Sink(c.aggregator)
	if len(extra) > 0 {
		dest = sink.Tee(append([]sink.Sink{c.aggregator}, extra...)...)
	}

	start := time.Now()
	appstats.SetString("checks.last_start", start.String())

	var wg sync.WaitGroup
	var errmu sync.Mutex
	var errs []error

	wg.Add(len(selected))
	for _, ci := range selected {
		clog := ci.Logger()
		clog.Debug().Msg("collecting")
		go func(ci *check.Instance) {
			defer wg.Done()
			appstats.IncrementInt("checks.runs")
			if err := ci.Run(ctx, dest); err != nil {
				appstats.IncrementInt("checks.errors")
				clog.Error().Err(err).Msg("collecting")
				errmu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", ci.ID(), err))
				errmu.Unlock()
			}
			clog.Debug().Str("duration", time.Since(start).String()).Msg("done")
		}(ci)
	}

	wg.Wait()

	c.logger.Debug().Msg("all checks done")

	appstats.SetString("checks.last_end", time.Now().String())
	appstats.SetString("checks.last_duration", time.Since(start).String())

	if id == "" {
		c.Lock()
		c.running = false
		c.Unlock()
	}

	return errors.Join(errs...)
}

func (c *Checks) selectLocked(id string) []*check.Instance {
	selected := []*check.Instance{}
	if ci, ok := c.instances[id]; ok {
		return append(selected, ci)
	}
	for _, ci := range c.instances {
		if id == "" || ci.Type() == id {
			selected = append(selected, ci)
		}
	}
	sort.Slice(selected, func(i, j int) bool { return selected[i].ID() < selected[j].ID() })
	return selected
}

// IsCheck determines if id names an instance or a configured check type
func (c *Checks) IsCheck(id string) bool {
	if id == "" {
		return false
	}

	c.Lock()
	defer c.Unlock()

	return len(c.selectLocked(id)) > 0
}

// IDs lists the instance ids, sorted.
func (c *Checks) IDs() []string {
	c.Lock()
	defer c.Unlock()
	ids := make([]string, 0, len(c.instances))
	for id := range c.instances {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Flush returns the metrics aggregated since the previous flush
func (c *Checks) Flush() *cgm.Metrics {
	appstats.SetString("checks.last_flush", time.Now().String())
	return c.aggregator.Flush()
}

// Inventory returns the stats of every instance, sorted by id
func (c *Checks) Inventory() []check.InventoryStats {
	c.Lock()
	defer c.Unlock()
	inv := make([]check.InventoryStats, 0, len(c.instances))
	for _, ci := range c.instances {
		inv = append(inv, ci.Inventory())
	}
	sort.Slice(inv, func(i, j int) bool { return inv[i].ID < inv[j].ID })
	return inv
}

// Close tears down every instance and clears the shared registries.
func (c *Checks) Close() error {
	c.Lock()
	defer c.Unlock()

	var errs []error
	for id, ci := range c.instances {
		if err := ci.Close(); err != nil {
			c.logger.Warn().Err(err).Str("id", id).Msg("closing check")
			errs = append(errs, fmt.Errorf("%s: %w", id, err))
		}
	}
	c.accessDenied.Clear()

	return errors.Join(errs...)
}
