// Copyright © 2017 Circonus, Inc. <support@circonus.com>
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package cgroup

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/circonus-labs/circonus-checks/internal/mapping"
	"github.com/pkg/errors"
)

type parseFunc func(r io.Reader) (mapping.Row, error)

// parseKeyValue reads "key value" lines (memory.stat, cpu.stat, ...).
func parseKeyValue(r io.Reader) (mapping.Row, error) {
	row := mapping.Row{}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) != 2 {
			continue
		}
		v, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			continue
		}
		row[fields[0]] = v
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "scanning stat file")
	}
	return row, nil
}

// parseSingle reads a file holding one integer, stored as "value".
func parseSingle(r io.Reader) (mapping.Row, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "reading stat file")
	}
	s := strings.TrimSpace(string(data))
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		u, uerr := strconv.ParseUint(s, 10, 64)
		if uerr != nil {
			return nil, errors.Wrapf(err, "parsing value (%s)", s)
		}
		return mapping.Row{"value": u}, nil
	}
	return mapping.Row{"value": v}, nil
}

// parseBlkio sums the Read and Write byte counters over all devices.
//   8:0 Read 1024
//   8:0 Write 2048
func parseBlkio(r io.Reader) (mapping.Row, error) {
	var read, write uint64
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) != 3 {
			continue
		}
		v, err := strconv.ParseUint(fields[2], 10, 64)
		if err != nil {
			continue
		}
		switch fields[1] {
		case "Read":
			read += v
		case "Write":
			write += v
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "scanning blkio file")
	}
	return mapping.Row{"io_read": read, "io_write": write}, nil
}

// parseSubsystemPath normalizes the path column of /proc/<pid>/cgroup.
// Slices are kept as is, docker paths keep the last docker segment.
func parseSubsystemPath(p string) string {
	if strings.Contains(p, ".slice") {
		return strings.TrimLeft(p, "/")
	}
	if i := strings.LastIndex(p, "docker"); i != -1 {
		return p[i:]
	}
	return strings.TrimPrefix(p, "/")
}
