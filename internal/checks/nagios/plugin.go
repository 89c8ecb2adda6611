// Copyright © 2017 Circonus, Inc. <support@circonus.com>
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package nagios

import (
	"bufio"
	"bytes"
	"context"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/circonus-labs/circonus-checks/internal/sink"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const pluginServiceCheck = "nagios.plugin"

// plugin exit codes
var exitStatus = sink.NewStatusMap(map[string]sink.Status{
	"0": sink.OK,
	"1": sink.Warning,
	"2": sink.Critical,
	"3": sink.Unknown,
})

type pluginOptions struct {
	Name    string        `json:"name"`
	Command string        `json:"command"`
	Args    []string      `json:"args"`
	Dir     string        `json:"dir"`
	Timeout time.Duration `json:"timeout"`
}

// plugin runs a nagios plugin, the exit code gives the status and the
// perfdata after '|' gives gauges.
type plugin struct {
	name    string
	command string
	args    []string
	dir     string
	timeout time.Duration
	logger  zerolog.Logger
}

// result of one plugin execution
type result struct {
	status   sink.Status
	output   string
	perfdata []perfItem
	duration time.Duration
}

func (p *plugin) exec(ctx context.Context) (*result, error) {
	plog := p.logger.With().Str("plugin", p.name).Logger()

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	start := time.Now()
	cmd := exec.CommandContext(ctx, p.command, p.args...)
	cmd.Dir = p.dir

	var errOut bytes.Buffer
	cmd.Stderr = &errOut

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.Wrap(err, "stdout pipe")
	}

	if err := cmd.Start(); err != nil {
		plog.Error().Err(err).Str("cmd", p.command).Msg("cmd start")
		return nil, errors.Wrap(err, "cmd start")
	}

	lines := []string{}
	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		plog.Warn().Err(err).Msg("reading stdio")
	}

	res := parseOutput(lines)

	code := 0
	if err := cmd.Wait(); err != nil {
		var exiterr *exec.ExitError
		if !errors.As(err, &exiterr) || ctx.Err() != nil {
			stderr := strings.ReplaceAll(errOut.String(), "\n", " ")
			plog.Error().Err(err).Str("stderr", stderr).Str("cmd", p.command).Msg("plugin did not complete")
			return nil, errors.Wrapf(err, "cmd err (%s)", strings.TrimSpace(stderr))
		}
		code = exiterr.ExitCode()
	}

	res.status = exitStatus.Lookup(strconv.Itoa(code))
	res.duration = time.Since(start)
	if res.output == "" {
		res.output = strings.TrimSpace(errOut.String())
	}

	plog.Debug().Int("exit", code).Str("status", res.status.String()).Msg("plugin done")

	return res, nil
}

// parseOutput splits plugin output into the status text and perfdata.
// Perfdata follows the first '|' of the first line and of the long text.
func parseOutput(lines []string) *result {
	res := &result{perfdata: []perfItem{}}
	if len(lines) == 0 {
		return res
	}

	text, perf := splitPerf(lines[0])
	res.output = text
	perfdata := []string{perf}

	inPerf := false
	for _, line := range lines[1:] {
		if inPerf {
			perfdata = append(perfdata, line)
			continue
		}
		if i := strings.IndexByte(line, '|'); i >= 0 {
			inPerf = true
			perfdata = append(perfdata, line[i+1:])
		}
	}

	res.perfdata = parsePerfdata(strings.Join(perfdata, " "))
	return res
}

func splitPerf(line string) (string, string) {
	if i := strings.IndexByte(line, '|'); i >= 0 {
		return strings.TrimSpace(line[:i]), line[i+1:]
	}
	return strings.TrimSpace(line), ""
}
