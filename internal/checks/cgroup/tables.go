// Copyright © 2017 Circonus, Inc. <support@circonus.com>
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package cgroup

import (
	"github.com/circonus-labs/circonus-checks/internal/mapping"
	"github.com/circonus-labs/circonus-checks/internal/sink"
)

const metricPrefix = "system.cgroups."

// statFile is one cgroup pseudo file and how to map it.
type statFile struct {
	subsystem string
	file      string
	parse     parseFunc
	table     mapping.Table
}

// usage divides the sum of all but the last value by the last (a limit).
// Unset limits report the sentinel and are skipped.
func usage(vals []float64) (float64, bool) {
	n := len(vals) - 1
	if n < 1 {
		return 0, false
	}
	limit := vals[n]
	if limit <= 0 || limit >= mapping.Unlimited {
		return 0, false
	}
	sum := 0.0
	for _, v := range vals[:n] {
		sum += v
	}
	return sum / limit, true
}

func statFiles() []statFile {
	return []statFile{
		{
			subsystem: "memory",
			file:      "memory.stat",
			parse:     parseKeyValue,
			table: mapping.Table{
				Fields: map[string]mapping.Spec{
					"cache":                     {Name: "mem.cache", Type: sink.Gauge},
					"rss":                       {Name: "mem.rss", Type: sink.Gauge},
					"swap":                      {Name: "mem.swap", Type: sink.Gauge},
					"hierarchical_memory_limit": {Name: "mem.limit", Type: sink.Gauge, Sentinel: mapping.Unlimited},
					"hierarchical_memsw_limit":  {Name: "mem.sw_limit", Type: sink.Gauge, Sentinel: mapping.Unlimited},
				},
				Computed: []mapping.Computed{
					{Name: "mem.in_use", Sources: []string{"rss", "hierarchical_memory_limit"}, Combine: usage, Type: sink.Gauge},
					{Name: "mem.sw_in_use", Sources: []string{"swap", "rss", "hierarchical_memsw_limit"}, Combine: usage, Type: sink.Gauge},
				},
			},
		},
		{
			subsystem: "memory",
			file:      "memory.soft_limit_in_bytes",
			parse:     parseSingle,
			table: mapping.Table{Fields: map[string]mapping.Spec{
				"value": {Name: "mem.soft_limit", Type: sink.Gauge, Sentinel: mapping.Unlimited},
			}},
		},
		{
			subsystem: "memory",
			file:      "memory.kmem.usage_in_bytes",
			parse:     parseSingle,
			table: mapping.Table{Fields: map[string]mapping.Spec{
				"value": {Name: "kmem.usage", Type: sink.Gauge, Sentinel: mapping.Unlimited},
			}},
		},
		{
			subsystem: "cpuacct",
			file:      "cpuacct.stat",
			parse:     parseKeyValue,
			table: mapping.Table{Fields: map[string]mapping.Spec{
				"user":   {Name: "cpu.user", Type: sink.Rate},
				"system": {Name: "cpu.system", Type: sink.Rate},
			}},
		},
		{
			subsystem: "cpuacct",
			file:      "cpuacct.usage",
			parse:     parseSingle,
			table: mapping.Table{Fields: map[string]mapping.Spec{
				"value": {Name: "cpu.usage", Type: sink.Rate, Scale: 1e-7},
			}},
		},
		{
			subsystem: "cpu",
			file:      "cpu.stat",
			parse:     parseKeyValue,
			table: mapping.Table{Fields: map[string]mapping.Spec{
				"nr_periods":   {Name: "cpu.throttle_periods", Type: sink.Rate},
				"nr_throttled": {Name: "cpu.throttled", Type: sink.Rate},
			}},
		},
		{
			subsystem: "cpu",
			file:      "cpu.cfs_period_us",
			parse:     parseSingle,
			table: mapping.Table{Fields: map[string]mapping.Spec{
				"value": {Name: "cpu.cfs_period", Type: sink.Gauge},
			}},
		},
		{
			subsystem: "cpu",
			file:      "cpu.cfs_quota_us",
			parse:     parseSingle,
			table: mapping.Table{Fields: map[string]mapping.Spec{
				"value": {Name: "cpu.cfs_quota", Type: sink.Gauge},
			}},
		},
		{
			subsystem: "cpu",
			file:      "cpu.shares",
			parse:     parseSingle,
			table: mapping.Table{Fields: map[string]mapping.Spec{
				"value": {Name: "cpu.shares", Type: sink.Gauge},
			}},
		},
		{
			subsystem: "blkio",
			file:      "blkio.throttle.io_service_bytes",
			parse:     parseBlkio,
			table: mapping.Table{Fields: map[string]mapping.Spec{
				"io_read":  {Name: "io.read_bytes", Type: sink.Rate},
				"io_write": {Name: "io.write_bytes", Type: sink.Rate},
			}},
		},
	}
}
