// Copyright © 2017 Circonus, Inc. <support@circonus.com>
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

// Package dnscheck resolves a hostname against a nameserver and optionally
// validates the answers.
package dnscheck

import (
	"context"
	"net"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/circonus-labs/circonus-checks/internal/check"
	"github.com/circonus-labs/circonus-checks/internal/config"
	"github.com/circonus-labs/circonus-checks/internal/sink"
	"github.com/miekg/dns"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Name of the check type.
const Name = "dns_check"

const (
	serviceCheckName = "dns.can_resolve"
	defaultTimeout   = 5 * time.Second
	defaultPort      = 53
	resolvConf       = "/etc/resolv.conf"

	// recordNXDomain expects the name not to exist
	recordNXDomain = "NXDOMAIN"
)

type dnsOptions struct {
	Name           string        `json:"name"`
	Hostname       string        `json:"hostname"`
	Nameserver     string        `json:"nameserver"`
	NameserverPort int           `json:"nameserver_port"`
	RecordType     string        `json:"record_type"`
	ResolvesAs     []string      `json:"resolves_as"`
	Timeout        time.Duration `json:"timeout"`
}

// DNS defines the dns check
type DNS struct {
	hostname   string
	server     string
	recordType string
	qtype      uint16
	expect     []string
	client     *dns.Client
	tags       []string
	logger     zerolog.Logger
}

// New creates a dns check instance.
func New(id string, init, inst map[string]interface{}, deps check.Deps) (check.Check, error) {
	var opts dnsOptions
	if err := check.Decode(inst, &opts); err != nil {
		return nil, err
	}
	if err := check.Required("hostname", opts.Hostname); err != nil {
		return nil, err
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.NameserverPort == 0 {
		opts.NameserverPort = defaultPort
	}

	recordType := strings.ToUpper(opts.RecordType)
	if recordType == "" {
		recordType = "A"
	}
	qtype := dns.TypeA
	if recordType != recordNXDomain {
		t, ok := dns.StringToType[recordType]
		if !ok {
			return nil, config.Invalidf("record_type", "unsupported record type (%s)", opts.RecordType)
		}
		qtype = t
	}

	nameserver := opts.Nameserver
	if nameserver == "" {
		cc, err := dns.ClientConfigFromFile(resolvConf)
		if err != nil || len(cc.Servers) == 0 {
			return nil, config.Invalid("nameserver", "not set and no system nameserver found")
		}
		nameserver = cc.Servers[0]
	}

	c := &DNS{
		hostname:   opts.Hostname,
		server:     net.JoinHostPort(nameserver, strconv.Itoa(opts.NameserverPort)),
		recordType: recordType,
		qtype:      qtype,
		client:     &dns.Client{Timeout: opts.Timeout},
		logger:     deps.Logger,
	}
	for _, e := range opts.ResolvesAs {
		if e = strings.TrimSpace(e); e != "" {
			c.expect = append(c.expect, normalize(e))
		}
	}
	sort.Strings(c.expect)

	c.tags = []string{
		"nameserver:" + nameserver,
		"resolved_hostname:" + opts.Hostname,
		"record_type:" + recordType,
	}
	if opts.Name != "" {
		c.tags = append(c.tags, "instance:"+opts.Name)
	}
	if len(opts.ResolvesAs) > 0 {
		c.tags = append(c.tags, "resolved_as:"+strings.Join(c.expect, ","))
	}

	return c, nil
}

// ServiceCheckName of the terminal service check.
func (c *DNS) ServiceCheckName() string {
	return serviceCheckName
}

// Close is a no-op.
func (c *DNS) Close() error {
	return nil
}

// Collect runs the query.
func (c *DNS) Collect(ctx context.Context, r *check.Reporter) error {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(c.hostname), c.qtype)
	msg.RecursionDesired = true

	resp, rtt, err := c.client.ExchangeContext(ctx, msg, c.server)
	if err != nil {
		cerr := &check.ConnectError{Target: c.server, Err: err}
		r.ServiceCheck(serviceCheckName, sink.Critical, c.tags, cerr.Error())
		return cerr
	}

	if err := c.validate(resp); err != nil {
		r.ServiceCheck(serviceCheckName, sink.Critical, c.tags, err.Error())
		return err
	}

	r.Gauge("dns.response_time", rtt.Seconds(), c.tags...)
	r.ServiceCheck(serviceCheckName, sink.OK, c.tags, "")
	return nil
}

func (c *DNS) validate(resp *dns.Msg) error {
	if c.recordType == recordNXDomain {
		if resp.Rcode != dns.RcodeNameError {
			return errors.Errorf("expected NXDOMAIN for %s, got %s", c.hostname, dns.RcodeToString[resp.Rcode])
		}
		return nil
	}

	if resp.Rcode != dns.RcodeSuccess {
		return errors.Errorf("%s %s: rcode %s", c.recordType, c.hostname, dns.RcodeToString[resp.Rcode])
	}

	answers := []string{}
	for _, rr := range resp.Answer {
		if rr.Header().Rrtype != c.qtype {
			continue
		}
		if v := value(rr); v != "" {
			answers = append(answers, normalize(v))
		}
	}
	if len(answers) == 0 {
		return errors.Errorf("%s %s: no answer", c.recordType, c.hostname)
	}

	if len(c.expect) == 0 {
		return nil
	}
	sort.Strings(answers)
	if strings.Join(answers, ",") != strings.Join(c.expect, ",") {
		return errors.Errorf("%s %s: resolved as (%s), expected (%s)", c.recordType, c.hostname, strings.Join(answers, ","), strings.Join(c.expect, ","))
	}
	return nil
}

// value extracts the comparable part of an answer record.
func value(rr dns.RR) string {
	switch v := rr.(type) {
	case *dns.A:
		return v.A.String()
	case *dns.AAAA:
		return v.AAAA.String()
	case *dns.CNAME:
		return v.Target
	case *dns.MX:
		return v.Mx
	case *dns.NS:
		return v.Ns
	case *dns.PTR:
		return v.Ptr
	case *dns.TXT:
		return strings.Join(v.Txt, "")
	case *dns.SRV:
		return v.Target
	}
	fields := strings.Fields(rr.String())
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}

// normalize canonicalizes ip addresses and strips the trailing dot of names
func normalize(s string) string {
	if ip := net.ParseIP(s); ip != nil {
		return ip.String()
	}
	return strings.ToLower(strings.TrimSuffix(s, "."))
}
