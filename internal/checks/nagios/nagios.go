// Copyright © 2017 Circonus, Inc. <support@circonus.com>
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

// Package nagios follows a nagios installation: events from the nagios
// log, gauges from the host and service perfdata files, and the results of
// nagios plugins run directly.
package nagios

import (
	"bufio"
	"context"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/circonus-labs/circonus-checks/internal/check"
	"github.com/circonus-labs/circonus-checks/internal/config"
	"github.com/circonus-labs/circonus-checks/internal/sink"
	"github.com/circonus-labs/circonus-checks/internal/tags"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Name of the check type.
const Name = "nagios"

var confKeyRx = regexp.MustCompile(`^(log_file|host_perfdata_file_template|service_perfdata_file_template|host_perfdata_file|service_perfdata_file)\s*=\s*(.+)$`)

type nagiosOptions struct {
	NagiosConf            string          `json:"nagios_conf"`
	NagiosLog             string          `json:"nagios_log"`
	CollectEvents         *bool           `json:"collect_events"`
	PassiveChecksEvents   bool            `json:"passive_checks_events"`
	HostPerformanceData   bool            `json:"collect_host_performance_data"`
	ServicePerformanceData bool            `json:"collect_service_performance_data"`
	Plugins               []pluginOptions `json:"plugins"`
	Tags                  []string        `json:"tags"`
}

// Nagios defines the nagios check
type Nagios struct {
	tailers []*tailer
	plugins []*plugin
	r       *check.Reporter // reporter of the run in progress
	logger  zerolog.Logger
}

// New creates a nagios check instance.
func New(id string, init, inst map[string]interface{}, deps check.Deps) (check.Check, error) {
	var opts nagiosOptions
	if err := check.Decode(inst, &opts); err != nil {
		return nil, err
	}
	if opts.NagiosConf == "" && opts.NagiosLog == "" && len(opts.Plugins) == 0 {
		return nil, config.Invalid("nagios_conf", "one of nagios_conf, nagios_log or plugins is required")
	}

	conf := map[string]string{}
	if opts.NagiosConf != "" {
		c, err := parseConfig(opts.NagiosConf)
		if err != nil {
			return nil, config.Invalidf("nagios_conf", "%s", err)
		}
		conf = c
	}
	if opts.NagiosLog != "" {
		conf["log_file"] = opts.NagiosLog
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = ""
	}

	n := &Nagios{logger: deps.Logger}

	if logFile := conf["log_file"]; logFile != "" && (opts.CollectEvents == nil || *opts.CollectEvents) {
		ep := &eventParser{
			hostname: hostname,
			passive:  opts.PassiveChecksEvents,
			tags:     opts.Tags,
			emit:     n.event,
			logger:   deps.Logger,
		}
		n.tailers = append(n.tailers, newTailer(logFile, ep.parse))
	}

	perf := []struct {
		enabled bool
		kind    string
		field   string
	}{
		{opts.HostPerformanceData, "host", "HOSTPERFDATA"},
		{opts.ServicePerformanceData, "service", "SERVICEPERFDATA"},
	}
	for _, pd := range perf {
		file, tmpl := conf[pd.kind+"_perfdata_file"], conf[pd.kind+"_perfdata_file_template"]
		if !pd.enabled || file == "" || tmpl == "" {
			continue
		}
		rx, err := compileTemplate(tmpl)
		if err != nil {
			return nil, config.Invalidf("nagios_conf", "%s", err)
		}
		pp := &perfdataParser{
			line:     rx,
			field:    pd.field,
			service:  pd.kind == "service",
			hostname: hostname,
			tags:     opts.Tags,
			emit:     n.metric,
			logger:   deps.Logger,
		}
		n.tailers = append(n.tailers, newTailer(file, pp.parse))
	}

	for idx, po := range opts.Plugins {
		key := "plugins[" + strconv.Itoa(idx) + "]"
		if po.Command == "" {
			return nil, config.Invalid(key+".command", "required")
		}
		if po.Name == "" {
			po.Name = po.Command[strings.LastIndexByte(po.Command, '/')+1:]
		}
		n.plugins = append(n.plugins, &plugin{
			name:    po.Name,
			command: po.Command,
			args:    po.Args,
			dir:     po.Dir,
			timeout: po.Timeout,
			logger:  deps.Logger,
		})
	}

	if len(n.tailers) == 0 && len(n.plugins) == 0 {
		deps.Logger.Warn().Msg("nothing to collect, check the nagios configuration")
	}

	return n, nil
}

// parseConfig reads the file locations out of nagios.cfg
func parseConfig(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "could not parse nagios config file")
	}
	defer f.Close()

	conf := map[string]string{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if m := confKeyRx.FindStringSubmatch(line); m != nil {
			conf[m[1]] = m[2]
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "could not parse nagios config file")
	}
	return conf, nil
}

// ServiceCheckName of the terminal service check, plugin results only.
func (n *Nagios) ServiceCheckName() string {
	if len(n.plugins) == 0 {
		return ""
	}
	return pluginServiceCheck
}

// Close is a no-op.
func (n *Nagios) Close() error {
	return nil
}

func (n *Nagios) event(e sink.Event) {
	n.r.Event(e)
}

func (n *Nagios) metric(m sink.Metric) {
	n.r.Metric(m)
}

// Collect reads what was appended to the followed files and runs the
// plugins. A file that cannot be read is followed from its end again on the
// next run.
func (n *Nagios) Collect(ctx context.Context, r *check.Reporter) error {
	n.r = r
	defer func() { n.r = nil }()

	var failed []string
	for _, t := range n.tailers {
		lines, err := t.read()
		if err != nil {
			n.logger.Warn().Err(err).Str("file", t.path).Msg("can't tail file, will retry from the end of file on the next run")
			t.reset()
			failed = append(failed, t.path)
			continue
		}
		n.logger.Debug().Str("file", t.path).Int("lines", lines).Msg("parsed")
	}

	for _, p := range n.plugins {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		n.runPlugin(ctx, p, r)
	}

	if len(failed) > 0 {
		return check.Soft(errors.Errorf("tailing %s", strings.Join(failed, ", ")))
	}
	return nil
}

func (n *Nagios) runPlugin(ctx context.Context, p *plugin, r *check.Reporter) {
	tl := []string{"plugin:" + p.name}

	res, err := p.exec(ctx)
	if err != nil {
		r.ServiceCheck(pluginServiceCheck, sink.Critical, tl, err.Error())
		return
	}

	r.ServiceCheck(pluginServiceCheck, res.status, tl, res.output)
	r.Timing("nagios.plugin.duration", res.duration, tl...)
	for _, item := range res.perfdata {
		r.Gauge(metricPrefix+"."+p.name+"."+item.label, item.value, tags.Merge(tl, item.tags)...)
	}
}
