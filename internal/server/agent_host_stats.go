// Copyright © 2020 Circonus, Inc. <support@circonus.com>
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package server

import (
	"os"

	"github.com/circonus-labs/circonus-checks/internal/tags"
	cgm "github.com/circonus-labs/circonus-gometrics/v3"
	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/host"
	"github.com/shirou/gopsutil/mem"
	"github.com/shirou/gopsutil/process"
)

// agentHostStats produces the internal agent host metrics.
func (s *Server) agentHostStats(metrics cgm.Metrics, mtags []string) {
	if ut, err := host.Uptime(); err != nil {
		s.logger.Error().Err(err).Msg("host uptime")
	} else {
		ctag := tags.Merge(mtags, []string{"units:seconds"})
		metrics[tags.MetricNameWithStreamTags("agent_host_uptime", tags.FromList(ctag))] = cgm.Metric{Value: ut, Type: "L"}
	}

	if lcpu, err := cpu.Counts(true); err != nil {
		s.logger.Error().Err(err).Msg("logical cores")
	} else {
		ctag := tags.Merge(mtags, []string{"type:logical"})
		metrics[tags.MetricNameWithStreamTags("agent_host_cores", tags.FromList(ctag))] = cgm.Metric{Value: lcpu, Type: "L"}
	}

	if vm, err := mem.VirtualMemory(); err != nil {
		s.logger.Error().Err(err).Msg("memory")
	} else {
		ctag := tags.Merge(mtags, []string{"units:bytes"})
		metrics[tags.MetricNameWithStreamTags("agent_host_memory", tags.FromList(ctag))] = cgm.Metric{Value: vm.Total, Type: "L"}
	}

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		s.logger.Error().Err(err).Msg("agent process")
		return
	}
	if threads, err := p.NumThreads(); err != nil {
		s.logger.Error().Err(err).Msg("agent process threads")
	} else {
		metrics[tags.MetricNameWithStreamTags("agent_threads", tags.FromList(mtags))] = cgm.Metric{Value: threads, Type: "L"}
	}
	if mi, err := p.MemoryInfo(); err != nil {
		s.logger.Error().Err(err).Msg("agent process memory")
	} else {
		ctag := tags.Merge(mtags, []string{"units:bytes"})
		metrics[tags.MetricNameWithStreamTags("agent_rss", tags.FromList(ctag))] = cgm.Metric{Value: mi.RSS, Type: "L"}
	}
}
