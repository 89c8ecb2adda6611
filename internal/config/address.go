// Copyright © 2017 Circonus, Inc. <support@circonus.com>
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package config

import (
	"net"
	"regexp"
	"strings"

	"github.com/circonus-labs/circonus-checks/internal/config/defaults"
	"github.com/pkg/errors"
)

var (
	portOnlyRx = regexp.MustCompile(`^[0-9]+$`)
	ipv6OnlyRx = regexp.MustCompile(`^\[[a-f0-9:]+\]$`)
)

// ParseListen verifies and parses a listen address spec, filling in the
// default port (or address) for partial specs.
func ParseListen(spec string) (*net.TCPAddr, error) {
	switch {
	case spec == "":
		spec = defaults.Listen
	case portOnlyRx.MatchString(spec):
		spec = ":" + spec
	case ipv6OnlyRx.MatchString(spec):
		spec += defaults.Listen
	case strings.Contains(spec, ".") && !strings.Contains(spec, ":"):
		spec += defaults.Listen
	}

	host, port, err := net.SplitHostPort(spec)
	if err != nil {
		return nil, errors.Wrap(err, "parsing listen")
	}

	addr, err := net.ResolveTCPAddr("tcp", net.JoinHostPort(host, port))
	if err != nil {
		return nil, errors.Wrap(err, "resolving listen")
	}

	return addr, nil
}
