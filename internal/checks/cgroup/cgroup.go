// Copyright © 2017 Circonus, Inc. <support@circonus.com>
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

// Package cgroup reports the cgroup v1 resource usage of processes.
package cgroup

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/circonus-labs/circonus-checks/internal/check"
	"github.com/circonus-labs/circonus-checks/internal/config"
	"github.com/circonus-labs/circonus-checks/internal/mapping"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Name of the check type.
const Name = "cgroup"

const defaultWarnAfter = 3

// Cgroup defines the cgroup check
type Cgroup struct {
	procFSPath  string
	rootPath    string
	pids        []int
	pidFiles    []string
	warnAfter   int
	stats       []statFile
	mountpoints map[string]string // subsystem -> mountpoint, discovered on first run
	misses      map[string]int    // consecutive failed lookups per pid and stat file
	logger      zerolog.Logger
	sync.Mutex
}

type cgroupOptions struct {
	ProcFSPath  string            `json:"procfs_path"`
	RootPath    string            `json:"root_path"`
	PIDs        []int             `json:"pids"`
	PIDFiles    []string          `json:"pid_files"`
	Mountpoints map[string]string `json:"mountpoints"`
	WarnAfter   *int              `json:"missing_file_warn_after"`
}

// New creates a cgroup check instance.
func New(id string, init, inst map[string]interface{}, deps check.Deps) (check.Check, error) {
	var opts cgroupOptions
	if err := check.Decode(init, &opts); err != nil {
		return nil, err
	}
	if err := check.Decode(inst, &opts); err != nil {
		return nil, err
	}

	if len(opts.PIDs) == 0 && len(opts.PIDFiles) == 0 {
		return nil, config.Invalid("pids", "one of pids or pid_files is required")
	}
	for _, pid := range opts.PIDs {
		if pid <= 0 {
			return nil, config.Invalidf("pids", "invalid pid (%d)", pid)
		}
	}
	warnAfter := defaultWarnAfter
	if opts.WarnAfter != nil {
		if *opts.WarnAfter < 0 {
			return nil, config.Invalidf("missing_file_warn_after", "must not be negative (%d)", *opts.WarnAfter)
		}
		warnAfter = *opts.WarnAfter
	}

	c := &Cgroup{
		procFSPath: strings.TrimRight(opts.ProcFSPath, "/"),
		rootPath:   strings.TrimRight(opts.RootPath, "/"),
		pids:       opts.PIDs,
		pidFiles:   opts.PIDFiles,
		warnAfter:  warnAfter,
		stats:      statFiles(),
		misses:     make(map[string]int),
		logger:     deps.Logger,
	}
	if c.procFSPath == "" {
		c.procFSPath = "/proc"
	}
	if len(opts.Mountpoints) > 0 {
		c.mountpoints = opts.Mountpoints
	}
	for i := range c.stats {
		c.stats[i].table.Prefix = metricPrefix
		c.stats[i].table.Logger = c.logger
	}

	return c, nil
}

// ServiceCheckName of the terminal service check.
func (c *Cgroup) ServiceCheckName() string {
	return "cgroup.can_collect"
}

// Collect reads the stat files of every configured process. A process
// that cannot be read is skipped, the run fails only when none could be.
func (c *Cgroup) Collect(ctx context.Context, r *check.Reporter) error {
	c.Lock()
	defer c.Unlock()

	if c.mountpoints == nil {
		mp, err := c.discoverMountpoints()
		if err != nil {
			return err
		}
		c.mountpoints = mp
	}

	pids, err := c.targetPIDs()
	if err != nil {
		return err
	}

	var lastErr error
	collected := 0
	for _, pid := range pids {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.collectPID(pid, r); err != nil {
			c.logger.Warn().Err(err).Int("pid", pid).Msg("skipping process")
			lastErr = err
			continue
		}
		collected++
	}

	if collected == 0 && lastErr != nil {
		return lastErr
	}

	return nil
}

// Close is a no-op, nothing is held across runs.
func (c *Cgroup) Close() error {
	return nil
}

func (c *Cgroup) targetPIDs() ([]int, error) {
	pids := append([]int(nil), c.pids...)
	for _, file := range c.pidFiles {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, errors.Wrapf(err, "reading pid file (%s)", file)
		}
		pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
		if err != nil {
			return nil, errors.Wrapf(err, "parsing pid file (%s)", file)
		}
		pids = append(pids, pid)
	}
	return pids, nil
}

func (c *Cgroup) collectPID(pid int, r *check.Reporter) error {
	subsystems, err := c.readProcCgroup(pid)
	if err != nil {
		return err
	}

	failures := 0
	for _, sf := range c.stats {
		key := strconv.Itoa(pid) + "|" + sf.subsystem + "/" + sf.file
		cgroupPath, statPath, found := c.findStatFile(subsystems, sf.subsystem, sf.file)
		var f *os.File
		var oerr error
		if found {
			f, oerr = os.Open(statPath)
			if oerr != nil && os.IsNotExist(oerr) {
				found = false
			}
		}
		if !found {
			failures++
			c.misses[key]++
			if c.warnAfter > 0 && c.misses[key] == c.warnAfter {
				c.logger.Warn().Int("pid", pid).Str("file", sf.file).Str("subsystem", sf.subsystem).Int("lookups", c.misses[key]).Msg("cgroup file repeatedly missing")
			}
			continue
		}
		c.misses[key] = 0
		if oerr != nil {
			// the process can exit between lookup and read
			c.logger.Debug().Err(oerr).Str("file", statPath).Msg("cannot read cgroup file")
			continue
		}
		row, err := sf.parse(f)
		f.Close()
		if err != nil {
			c.logger.Debug().Err(err).Str("file", statPath).Msg("parsing cgroup file")
			continue
		}

		tl := mapping.EntityTags(nil,
			"cgroup_subsystem", sf.subsystem,
			"cgroup_path", cgroupPath,
			"pid", strconv.Itoa(pid))
		r.Metrics(sf.table.Apply(row, tl))
	}

	r.Gauge(metricPrefix+"stat_file_failures", float64(failures), "pid:"+strconv.Itoa(pid))

	if failures >= len(c.stats) {
		return errors.Errorf("no cgroup stat files found for pid %d", pid)
	}

	return nil
}

// readProcCgroup maps subsystem to cgroup path from /proc/<pid>/cgroup
//   4:memory:/docker/0123abcd
func (c *Cgroup) readProcCgroup(pid int) (map[string]string, error) {
	file := filepath.Join(c.procFSPath, strconv.Itoa(pid), "cgroup")
	f, err := os.Open(file)
	if err != nil {
		return nil, errors.Wrap(err, "opening proc cgroup file")
	}
	defer f.Close()

	subsystems := make(map[string]string)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		parts := strings.SplitN(scanner.Text(), ":", 3)
		if len(parts) != 3 || parts[1] == "" {
			continue
		}
		subsystems[parts[1]] = parseSubsystemPath(parts[2])
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "scanning proc cgroup file")
	}

	return subsystems, nil
}

// findStatFile locates file for subsys under the known mountpoints.
func (c *Cgroup) findStatFile(subsystems map[string]string, subsys, file string) (string, string, bool) {
	if _, ok := subsystems[subsys]; !ok && subsys == "cpuacct" {
		for _, alt := range []string{"cpuacct,cpu", "cpu,cpuacct"} {
			if _, ok := subsystems[alt]; ok {
				subsys = alt
				break
			}
		}
	}
	if _, ok := subsystems[subsys]; !ok && subsys == "cpu" {
		for _, name := range sortedKeys(subsystems) {
			if strings.Contains(name, "cpuacct") {
				subsys = name
				break
			}
		}
	}

	cgroupPath, ok := subsystems[subsys]
	if !ok {
		return "", "", false
	}

	for _, name := range sortedKeys(c.mountpoints) {
		mountpoint := c.mountpoints[name]
		dir := filepath.Join(mountpoint, cgroupPath)
		if subsys == filepath.Base(mountpoint) && exists(dir) {
			return cgroupPath, filepath.Join(dir, file), true
		}
		// controllers reported as cpu,cpuacct may be mounted as cpuacct,cpu
		if strings.Contains(mountpoint, "cpuacct") && strings.Contains(subsys, "cpu") {
			parts := strings.Split(subsys, ",")
			flipped := parts[0]
			if len(parts) > 1 {
				flipped = parts[1] + "," + parts[0]
			}
			dir = filepath.Join(filepath.Dir(mountpoint), flipped, cgroupPath)
			if exists(dir) {
				return cgroupPath, filepath.Join(dir, file), true
			}
		}
	}

	return "", "", false
}

// discoverMountpoints finds the mountpoint of each subsystem in the stat
// tables from <procfs>/mounts.
func (c *Cgroup) discoverMountpoints() (map[string]string, error) {
	file := filepath.Join(c.procFSPath, "mounts")
	f, err := os.Open(file)
	if err != nil {
		return nil, errors.Wrap(err, "opening mounts")
	}
	defer f.Close()

	type mount struct {
		point string
		opts  []string
	}
	mounts := []mount{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 4 || fields[2] != "cgroup" {
			continue
		}
		mounts = append(mounts, mount{point: fields[1], opts: strings.Split(fields[3], ",")})
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "scanning mounts")
	}
	if len(mounts) == 0 {
		return nil, errors.New("no mounted cgroups found")
	}

	result := make(map[string]string)
	for _, sf := range c.stats {
		if _, done := result[sf.subsystem]; done {
			continue
		}
		if len(mounts) == 1 {
			result[sf.subsystem] = filepath.Join(c.rootPath, mounts[0].point)
			continue
		}
		candidate := ""
		for _, m := range mounts {
			if !hasOpt(m.opts, sf.subsystem) || !exists(filepath.Join(c.rootPath, m.point)) {
				continue
			}
			candidate = m.point
			if strings.HasPrefix(m.point, "/host/") {
				break
			}
		}
		if candidate == "" {
			c.logger.Warn().Str("subsystem", sf.subsystem).Msg("cgroup not mounted")
			continue
		}
		result[sf.subsystem] = filepath.Join(c.rootPath, candidate)
	}

	if len(result) == 0 {
		return nil, errors.New("no cgroups were found")
	}

	return result, nil
}

func hasOpt(opts []string, name string) bool {
	for _, o := range opts {
		if o == name {
			return true
		}
	}
	return false
}

func exists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
