// Copyright © 2017 Circonus, Inc. <support@circonus.com>
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package process

import (
	"errors"
	"os"
	"time"

	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/process"
)

var (
	// errAccessDenied the agent may not inspect the process.
	errAccessDenied = errors.New("access denied")

	// errNotRunning the process exited.
	errNotRunning = errors.New("process not running")
)

// Sample holds the attributes read from one process, keyed by metric
// suffix. Attributes which could not be read are absent.
type Sample map[string]float64

const (
	attrCPUSeconds = "cpu_seconds"
	attrCreateTime = "create_time"
)

// Source enumerates processes and reads their attributes.
type Source interface {
	Pids() ([]int32, error)
	Name(pid int32) (string, error)
	Cmdline(pid int32) (string, error)
	Username(pid int32) (string, error)
	Children(pid int32) ([]int32, error)
	Sample(pid int32) (Sample, error)
	NumCPU() int
}

// hostSource reads the local process table with gopsutil.
type hostSource struct{}

func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, process.ErrorProcessNotRunning), errors.Is(err, os.ErrNotExist):
		return errNotRunning
	case errors.Is(err, os.ErrPermission):
		return errAccessDenied
	}
	return err
}

func (hostSource) Pids() ([]int32, error) {
	return process.Pids()
}

func (hostSource) open(pid int32) (*process.Process, error) {
	p, err := process.NewProcess(pid)
	if err != nil {
		return nil, classify(err)
	}
	return p, nil
}

func (h hostSource) Name(pid int32) (string, error) {
	p, err := h.open(pid)
	if err != nil {
		return "", err
	}
	name, err := p.Name()
	return name, classify(err)
}

func (h hostSource) Cmdline(pid int32) (string, error) {
	p, err := h.open(pid)
	if err != nil {
		return "", err
	}
	cmd, err := p.Cmdline()
	return cmd, classify(err)
}

func (h hostSource) Username(pid int32) (string, error) {
	p, err := h.open(pid)
	if err != nil {
		return "", err
	}
	user, err := p.Username()
	return user, classify(err)
}

func (h hostSource) Children(pid int32) ([]int32, error) {
	p, err := h.open(pid)
	if err != nil {
		return nil, err
	}
	children, err := p.Children()
	if err != nil {
		if errors.Is(err, process.ErrorNoChildren) {
			return nil, nil
		}
		return nil, classify(err)
	}
	pids := make([]int32, 0, len(children))
	for _, c := range children {
		pids = append(pids, c.Pid)
	}
	return pids, nil
}

// Sample reads every attribute it can. Only a vanished process is an
// error, attributes the agent may not read are left out.
func (h hostSource) Sample(pid int32) (Sample, error) {
	p, err := h.open(pid)
	if err != nil {
		return nil, err
	}
	if running, err := p.IsRunning(); err == nil && !running {
		return nil, errNotRunning
	}

	s := Sample{}
	denied := 0

	note := func(err error) bool {
		if err == nil {
			return true
		}
		if classify(err) == errAccessDenied {
			denied++
		}
		return false
	}

	if v, err := p.NumThreads(); note(err) {
		s["threads"] = float64(v)
	}
	if mi, err := p.MemoryInfo(); note(err) && mi != nil {
		s["mem.rss"] = float64(mi.RSS)
		s["mem.vms"] = float64(mi.VMS)
	}
	if v, err := p.MemoryPercent(); note(err) {
		s["mem.pct"] = float64(v)
	}
	if v, err := p.NumFDs(); note(err) {
		s["open_file_descriptors"] = float64(v)
	}
	if io, err := p.IOCounters(); note(err) && io != nil {
		s["ioread_count"] = float64(io.ReadCount)
		s["iowrite_count"] = float64(io.WriteCount)
		s["ioread_bytes"] = float64(io.ReadBytes)
		s["iowrite_bytes"] = float64(io.WriteBytes)
	}
	if cs, err := p.NumCtxSwitches(); note(err) && cs != nil {
		s["voluntary_ctx_switches"] = float64(cs.Voluntary)
		s["involuntary_ctx_switches"] = float64(cs.Involuntary)
	}
	if pf, err := p.PageFaults(); note(err) && pf != nil {
		s["mem.page_faults.minor_faults"] = float64(pf.MinorFaults)
		s["mem.page_faults.children_minor_faults"] = float64(pf.ChildMinorFaults)
		s["mem.page_faults.major_faults"] = float64(pf.MajorFaults)
		s["mem.page_faults.children_major_faults"] = float64(pf.ChildMajorFaults)
	}
	if ts, err := p.Times(); note(err) && ts != nil {
		s[attrCPUSeconds] = ts.User + ts.System
	}
	if ms, err := p.CreateTime(); note(err) {
		s[attrCreateTime] = float64(time.Duration(ms)*time.Millisecond) / float64(time.Second)
	}

	if len(s) == 0 && denied > 0 {
		return nil, errAccessDenied
	}

	return s, nil
}

func (hostSource) NumCPU() int {
	n, err := cpu.Counts(true)
	if err != nil {
		return 0
	}
	return n
}
