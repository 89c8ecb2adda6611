// Copyright © 2017 Circonus, Inc. <support@circonus.com>
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

// Package process reports resource usage summed over a group of processes
// selected by name, command line, pid or pid file.
package process

import (
	"context"
	"fmt"
	"math"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/circonus-labs/circonus-checks/internal/check"
	"github.com/circonus-labs/circonus-checks/internal/config"
	"github.com/circonus-labs/circonus-checks/internal/sink"
	"github.com/circonus-labs/circonus-checks/internal/ttlcache"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Name of the check type.
const Name = "process"

const (
	metricPrefix = "system.processes."

	defaultADCacheDuration  = 120 * time.Second
	defaultPIDCacheDuration = 120 * time.Second

	pidCacheKey = "pids"
)

// summed attributes, emitted as gauges
var gaugeAttrs = []string{
	"threads",
	"mem.rss",
	"mem.vms",
	"mem.pct",
	"open_file_descriptors",
	"ioread_count",
	"iowrite_count",
	"ioread_bytes",
	"iowrite_bytes",
	"voluntary_ctx_switches",
	"involuntary_ctx_switches",
}

var rateAttrs = []string{
	"mem.page_faults.minor_faults",
	"mem.page_faults.children_minor_faults",
	"mem.page_faults.major_faults",
	"mem.page_faults.children_major_faults",
}

// Process defines the process check
type Process struct {
	name         string
	matchers     []*regexp.Regexp
	searchFor    []string
	exactMatch   bool
	pid          int32
	pidFile      string
	children     bool
	user         string
	ignoreDenied bool
	warning      [2]float64
	critical     [2]float64
	bounded      bool
	adTTL        time.Duration
	pidTTL       time.Duration
	denied       *ttlcache.Cache // shared across instances
	pids         *ttlcache.Cache
	cpu          map[int32]cpuSample
	src          Source
	now          func() time.Time
	logger       zerolog.Logger
	sync.Mutex
}

type cpuSample struct {
	seconds float64
	at      time.Time
}

type thresholds struct {
	Warning  []float64 `json:"warning"`
	Critical []float64 `json:"critical"`
}

type processOptions struct {
	Name                      string        `json:"name"`
	SearchString              []string      `json:"search_string"`
	ExactMatch                *bool         `json:"exact_match"`
	PID                       int           `json:"pid"`
	PIDFile                   string        `json:"pid_file"`
	CollectChildren           bool          `json:"collect_children"`
	User                      string        `json:"user"`
	IgnoreDeniedAccess        *bool         `json:"ignore_denied_access"`
	Thresholds                *thresholds   `json:"thresholds"`
	AccessDeniedCacheDuration time.Duration `json:"access_denied_cache_duration"`
	PIDCacheDuration          time.Duration `json:"pid_cache_duration"`
}

// New creates a process check instance reading the local process table.
func New(id string, init, inst map[string]interface{}, deps check.Deps) (check.Check, error) {
	return newProcess(init, inst, deps, hostSource{})
}

func newProcess(init, inst map[string]interface{}, deps check.Deps, src Source) (*Process, error) {
	var opts processOptions
	if err := check.Decode(init, &opts); err != nil {
		return nil, err
	}
	if err := check.Decode(inst, &opts); err != nil {
		return nil, err
	}

	if err := check.Required("name", opts.Name); err != nil {
		return nil, err
	}
	if len(opts.SearchString) == 0 && opts.PID == 0 && opts.PIDFile == "" {
		return nil, config.Invalid("search_string", "one of search_string, pid or pid_file is required")
	}
	if opts.PID < 0 {
		return nil, config.Invalidf("pid", "invalid pid (%d)", opts.PID)
	}
	if opts.AccessDeniedCacheDuration < 0 {
		return nil, config.Invalid("access_denied_cache_duration", "must not be negative")
	}
	if opts.PIDCacheDuration < 0 {
		return nil, config.Invalid("pid_cache_duration", "must not be negative")
	}

	p := &Process{
		name:         opts.Name,
		searchFor:    opts.SearchString,
		exactMatch:   true,
		pid:          int32(opts.PID),
		pidFile:      opts.PIDFile,
		children:     opts.CollectChildren,
		user:         opts.User,
		ignoreDenied: true,
		warning:      [2]float64{1, math.Inf(1)},
		critical:     [2]float64{1, math.Inf(1)},
		adTTL:        opts.AccessDeniedCacheDuration,
		pidTTL:       opts.PIDCacheDuration,
		denied:       deps.AccessDenied,
		pids:         ttlcache.New(),
		cpu:          make(map[int32]cpuSample),
		src:          src,
		now:          time.Now,
		logger:       deps.Logger,
	}
	if opts.ExactMatch != nil {
		p.exactMatch = *opts.ExactMatch
	}
	if opts.IgnoreDeniedAccess != nil {
		p.ignoreDenied = *opts.IgnoreDeniedAccess
	}
	if p.adTTL == 0 {
		p.adTTL = defaultADCacheDuration
	}
	if p.pidTTL == 0 {
		p.pidTTL = defaultPIDCacheDuration
	}
	if p.denied == nil {
		p.denied = ttlcache.New()
	}

	if !p.exactMatch {
		for _, s := range opts.SearchString {
			rx, err := regexp.Compile(s)
			if err != nil {
				return nil, &config.InvalidError{Key: "search_string", Reason: "invalid pattern", Err: err}
			}
			p.matchers = append(p.matchers, rx)
		}
	}

	if opts.Thresholds != nil {
		p.bounded = true
		var err error
		if p.warning, err = bounds("thresholds.warning", opts.Thresholds.Warning); err != nil {
			return nil, err
		}
		if p.critical, err = bounds("thresholds.critical", opts.Thresholds.Critical); err != nil {
			return nil, err
		}
	}

	return p, nil
}

func bounds(key string, v []float64) ([2]float64, error) {
	switch len(v) {
	case 0:
		return [2]float64{1, math.Inf(1)}, nil
	case 2:
		if v[0] > v[1] {
			return [2]float64{}, config.Invalidf(key, "min (%v) greater than max (%v)", v[0], v[1])
		}
		return [2]float64{v[0], v[1]}, nil
	}
	return [2]float64{}, config.Invalid(key, "expected [min, max]")
}

// ServiceCheckName of the terminal service check.
func (p *Process) ServiceCheckName() string {
	return "process.up"
}

// Collect finds the process group and reports its summed usage.
func (p *Process) Collect(ctx context.Context, r *check.Reporter) error {
	p.Lock()
	defer p.Unlock()

	pids, err := p.targetPIDs()
	if err != nil {
		return err
	}

	if p.children {
		pids = p.addChildren(pids)
	}
	if p.user != "" {
		pids = p.filterUser(pids)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	tl := []string{"process_name:" + p.name}
	r.Gauge(metricPrefix+"number", float64(len(pids)), tl...)
	if len(pids) == 0 {
		p.logger.Warn().Str("process", p.name).Msg("no matching process found")
	}

	p.report(r, p.sample(pids), tl)
	p.serviceCheck(r, len(pids), tl)

	return nil
}

// Close is a no-op, nothing is held across runs.
func (p *Process) Close() error {
	return nil
}

func (p *Process) targetPIDs() ([]int32, error) {
	switch {
	case len(p.searchFor) > 0:
		v, err := p.pids.GetOrRefresh(pidCacheKey, p.pidTTL, func() (interface{}, error) {
			return p.findPIDs()
		})
		if err != nil {
			return nil, err
		}
		return append([]int32(nil), v.([]int32)...), nil
	case p.pid > 0:
		return p.existing(p.pid), nil
	}

	data, err := os.ReadFile(p.pidFile)
	if err != nil {
		// no pid file, the process is not running
		p.logger.Debug().Err(err).Str("file", p.pidFile).Msg("unable to read pid file")
		return []int32{}, nil
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, errors.Wrapf(err, "parsing pid file (%s)", p.pidFile)
	}
	return p.existing(int32(pid)), nil
}

func (p *Process) existing(pid int32) []int32 {
	if _, err := p.src.Name(pid); errors.Is(err, errNotRunning) {
		return []int32{}
	}
	return []int32{pid}
}

func deniedKey(pid int32) string {
	return strconv.Itoa(int(pid))
}

// findPIDs scans the process table. Pids the agent was denied access to
// are skipped until their entry in the shared cache expires.
func (p *Process) findPIDs() ([]int32, error) {
	all, err := p.src.Pids()
	if err != nil {
		return nil, errors.Wrap(err, "listing processes")
	}

	found := []int32{}
	for _, pid := range all {
		if _, skip := p.denied.Get(deniedKey(pid)); skip {
			continue
		}
		ok, err := p.matches(pid)
		switch {
		case errors.Is(err, errAccessDenied):
			p.logger.Debug().Int32("pid", pid).Msg("access denied to process")
			_ = p.denied.Set(deniedKey(pid), true, p.adTTL)
			if !p.ignoreDenied {
				return nil, errors.Wrapf(err, "inspecting pid %d", pid)
			}
			continue
		case errors.Is(err, errNotRunning):
			continue
		case err != nil:
			p.logger.Debug().Err(err).Int32("pid", pid).Msg("inspecting process")
			continue
		}
		p.denied.Delete(deniedKey(pid))
		if ok {
			found = append(found, pid)
		}
	}

	if len(found) == 0 {
		p.logger.Debug().Strs("search_string", p.searchFor).Msg("no process matched")
	}

	return found, nil
}

func (p *Process) matches(pid int32) (bool, error) {
	if p.exactMatch {
		name, err := p.src.Name(pid)
		if err != nil {
			return false, err
		}
		for _, s := range p.searchFor {
			if name == s {
				return true, nil
			}
		}
		return false, nil
	}

	cmd, err := p.src.Cmdline(pid)
	if err != nil {
		return false, err
	}
	for _, rx := range p.matchers {
		if rx.MatchString(cmd) {
			return true, nil
		}
	}
	return false, nil
}

func (p *Process) addChildren(pids []int32) []int32 {
	seen := make(map[int32]bool, len(pids))
	queue := append([]int32(nil), pids...)
	for _, pid := range pids {
		seen[pid] = true
	}
	for len(queue) > 0 {
		pid := queue[0]
		queue = queue[1:]
		children, err := p.src.Children(pid)
		if err != nil {
			p.logger.Debug().Err(err).Int32("pid", pid).Msg("listing children")
			continue
		}
		for _, c := range children {
			if seen[c] {
				continue
			}
			seen[c] = true
			pids = append(pids, c)
			queue = append(queue, c)
		}
	}
	return pids
}

func (p *Process) filterUser(pids []int32) []int32 {
	kept := []int32{}
	for _, pid := range pids {
		user, err := p.src.Username(pid)
		if err != nil {
			p.logger.Debug().Err(err).Int32("pid", pid).Msg("reading process user")
			continue
		}
		if user == p.user {
			kept = append(kept, pid)
		}
	}
	return kept
}

// sample reads every pid, returning the per-attribute values. The pid cache
// is dropped when a process has exited since it was found.
func (p *Process) sample(pids []int32) map[string][]float64 {
	vals := make(map[string][]float64)
	now := p.now()
	ncpu := p.src.NumCPU()

	current := make(map[int32]bool, len(pids))
	for _, pid := range pids {
		current[pid] = true
		s, err := p.src.Sample(pid)
		if err != nil {
			if errors.Is(err, errNotRunning) {
				p.pids.Delete(pidCacheKey)
			}
			p.logger.Debug().Err(err).Int32("pid", pid).Msg("sampling process")
			continue
		}

		for k, v := range s {
			vals[k] = append(vals[k], v)
		}

		if secs, ok := s[attrCPUSeconds]; ok {
			// the first sample of a process only primes the usage
			if prev, seen := p.cpu[pid]; seen {
				if elapsed := now.Sub(prev.at).Seconds(); elapsed > 0 && secs >= prev.seconds {
					pct := (secs - prev.seconds) / elapsed * 100
					vals["cpu.pct"] = append(vals["cpu.pct"], pct)
					if ncpu > 0 {
						vals["cpu.normalized_pct"] = append(vals["cpu.normalized_pct"], pct/float64(ncpu))
					}
				}
			}
			p.cpu[pid] = cpuSample{seconds: secs, at: now}
		}

		if created, ok := s[attrCreateTime]; ok {
			runTime := float64(now.UnixNano())/float64(time.Second) - created
			vals["run_time"] = append(vals["run_time"], runTime)
		}
	}

	for pid := range p.cpu {
		if !current[pid] {
			delete(p.cpu, pid)
		}
	}

	return vals
}

func (p *Process) report(r *check.Reporter, vals map[string][]float64, tl []string) {
	for _, attr := range append([]string{"cpu.pct", "cpu.normalized_pct"}, gaugeAttrs...) {
		v, ok := vals[attr]
		if !ok {
			continue
		}
		sum := total(v)
		r.Gauge(metricPrefix+attr, sum, tl...)
		if attr == "ioread_bytes" || attr == "iowrite_bytes" {
			r.MonotonicCount(metricPrefix+attr+"_count", sum, tl...)
		}
	}

	if rt, ok := vals["run_time"]; ok {
		sorted := append([]float64(nil), rt...)
		sort.Float64s(sorted)
		r.Gauge(metricPrefix+"run_time.avg", total(sorted)/float64(len(sorted)), tl...)
		r.Gauge(metricPrefix+"run_time.max", sorted[len(sorted)-1], tl...)
		r.Gauge(metricPrefix+"run_time.min", sorted[0], tl...)
	}

	for _, attr := range rateAttrs {
		if v, ok := vals[attr]; ok {
			r.Rate(metricPrefix+attr, total(v), tl...)
		}
	}
}

func total(v []float64) float64 {
	sum := 0.0
	for _, x := range v {
		sum += x
	}
	return sum
}

func outside(b [2]float64, n float64) bool {
	return n < b[0] || n > b[1]
}

func (p *Process) serviceCheck(r *check.Reporter, n int, tl []string) {
	status := sink.OK
	count := float64(n)
	switch {
	case !p.bounded && n < 1:
		status = sink.Critical
	case p.bounded:
		if outside(p.warning, count) {
			status = sink.Warning
		}
		if outside(p.critical, count) {
			status = sink.Critical
		}
	}

	msg := fmt.Sprintf("PROCS %s: %d processes found for %s", status, n, p.name)
	r.ServiceCheck(p.ServiceCheckName(), status, append(append([]string(nil), tl...), "process:"+p.name), msg)
}
