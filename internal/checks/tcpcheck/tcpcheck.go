// Copyright © 2017 Circonus, Inc. <support@circonus.com>
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

// Package tcpcheck verifies that a TCP port accepts connections.
package tcpcheck

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/circonus-labs/circonus-checks/internal/check"
	"github.com/circonus-labs/circonus-checks/internal/config"
	"github.com/circonus-labs/circonus-checks/internal/sink"
	"github.com/circonus-labs/circonus-checks/internal/tags"
	"github.com/circonus-labs/circonus-checks/internal/ttlcache"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Name of the check type.
const Name = "tcp_check"

const (
	serviceCheckName = "tcp.can_connect"
	defaultTimeout   = 10 * time.Second
	addrsKey         = "addrs"
)

type tcpOptions struct {
	Name                string        `json:"name"`
	Host                string        `json:"host"`
	Port                int           `json:"port"`
	Timeout             time.Duration `json:"timeout"`
	CollectResponseTime bool          `json:"collect_response_time"`
	MultipleIPs         bool          `json:"multiple_ips"`
	IPCacheDuration     time.Duration `json:"ip_cache_duration"`
}

// resolver is satisfied by *net.Resolver
type resolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// TCP defines the tcp check
type TCP struct {
	host         string
	port         string
	timeout      time.Duration
	responseTime bool
	multipleIPs  bool
	literal      bool
	ipTTL        time.Duration
	addrs        *ttlcache.Cache
	resolver     resolver
	dialer       *net.Dialer
	tags         []string
	logger       zerolog.Logger
}

// New creates a tcp check instance.
func New(id string, init, inst map[string]interface{}, deps check.Deps) (check.Check, error) {
	var opts tcpOptions
	if err := check.Decode(inst, &opts); err != nil {
		return nil, err
	}
	if err := check.Required("host", opts.Host); err != nil {
		return nil, err
	}
	if opts.Port <= 0 || opts.Port > 65535 {
		return nil, config.Invalidf("port", "must be between 1 and 65535 (%d)", opts.Port)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}

	port := strconv.Itoa(opts.Port)
	c := &TCP{
		host:         opts.Host,
		port:         port,
		timeout:      opts.Timeout,
		responseTime: opts.CollectResponseTime,
		multipleIPs:  opts.MultipleIPs,
		literal:      net.ParseIP(opts.Host) != nil,
		ipTTL:        opts.IPCacheDuration,
		addrs:        ttlcache.New(),
		resolver:     net.DefaultResolver,
		dialer:       &net.Dialer{},
		logger:       deps.Logger,
	}
	c.tags = []string{
		"url:" + net.JoinHostPort(opts.Host, port),
		"target_host:" + opts.Host,
		"port:" + port,
	}
	if opts.Name != "" {
		c.tags = append(c.tags, "instance:"+opts.Name)
	}

	return c, nil
}

// ServiceCheckName of the terminal service check.
func (c *TCP) ServiceCheckName() string {
	return serviceCheckName
}

// Close is a no-op.
func (c *TCP) Close() error {
	return nil
}

// Collect connects to every address of the target.
func (c *TCP) Collect(ctx context.Context, r *check.Reporter) error {
	addrs, err := c.resolve(ctx)
	if err != nil {
		cerr := &check.ConnectError{Target: c.host, Err: err}
		r.ServiceCheck(serviceCheckName, sink.Critical, c.tags, cerr.Error())
		r.Gauge("network.tcp.can_connect", 0, c.tags...)
		return cerr
	}

	for _, addr := range addrs {
		tl := tags.Merge(c.tags, []string{"address:" + addr})
		elapsed, err := c.connect(ctx, addr)
		if err != nil {
			msg := err.Error()
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				msg = "Timeout after " + c.timeout.String()
			}
			c.logger.Debug().Err(err).Str("address", addr).Msg("connect")
			r.ServiceCheck(serviceCheckName, sink.Critical, tl, msg)
			r.Gauge("network.tcp.can_connect", 0, tl...)
			continue
		}
		if c.responseTime {
			r.Gauge("network.tcp.response_time", elapsed.Seconds(), tl...)
		}
		r.ServiceCheck(serviceCheckName, sink.OK, tl, "")
		r.Gauge("network.tcp.can_connect", 1, tl...)
	}

	return nil
}

func (c *TCP) connect(ctx context.Context, addr string) (time.Duration, error) {
	dctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	conn, err := c.dialer.DialContext(dctx, "tcp", net.JoinHostPort(addr, c.port))
	if err != nil {
		return 0, err
	}
	elapsed := time.Since(start)
	conn.Close()
	return elapsed, nil
}

// resolve returns the addresses to connect to. Lookups are cached for
// ip_cache_duration, or for the run when unset.
func (c *TCP) resolve(ctx context.Context) ([]string, error) {
	if c.literal {
		return []string{c.host}, nil
	}

	lookup := func() (interface{}, error) {
		addrs, err := c.resolver.LookupHost(ctx, c.host)
		if err != nil {
			return nil, err
		}
		if len(addrs) == 0 {
			return nil, errors.Errorf("no addresses for %s", c.host)
		}
		if !c.multipleIPs {
			addrs = addrs[:1]
		}
		return addrs, nil
	}

	var v interface{}
	var err error
	if c.ipTTL > 0 {
		v, err = c.addrs.GetOrRefresh(addrsKey, c.ipTTL, lookup)
	} else {
		v, err = lookup()
	}
	if err != nil {
		return nil, errors.Wrap(err, "resolving")
	}
	return v.([]string), nil
}
