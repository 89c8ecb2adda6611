// Copyright © 2017 Circonus, Inc. <support@circonus.com>
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

// Package openldap reads the cn=Monitor backend of an OpenLDAP server and
// runs optional custom searches.
package openldap

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/circonus-labs/circonus-checks/internal/check"
	"github.com/circonus-labs/circonus-checks/internal/config"
	"github.com/circonus-labs/circonus-checks/internal/sink"
	"github.com/go-ldap/ldap/v3"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Name of the check type.
const Name = "openldap"

const (
	serviceCheckName = "openldap.can_connect"
	metricPrefix     = "openldap."
	defaultTimeout   = 10 * time.Second

	searchBase   = "cn=Monitor"
	searchFilter = "(objectClass=*)"

	connectionsDN = "cn=connections,cn=monitor"
	operationsDN  = "cn=operations,cn=monitor"
	statisticsDN  = "cn=statistics,cn=monitor"
	threadsDN     = "cn=threads,cn=monitor"
	timeDN        = "cn=time,cn=monitor"
	waitersDN     = "cn=waiters,cn=monitor"
)

var monitorAttributes = []string{"*", "+"}

// Directory is the part of an LDAP connection used by the check.
type Directory interface {
	Bind(username, password string) error
	UnauthenticatedBind(username string) error
	Search(req *ldap.SearchRequest) (*ldap.SearchResult, error)
	Unbind() error
}

type customQuery struct {
	Name         string   `json:"name"`
	SearchBase   string   `json:"search_base"`
	SearchFilter string   `json:"search_filter"`
	Attributes   []string `json:"attributes"`
	Username     *string  `json:"username"` // empty for an anonymous bind, nil reuses the instance credentials
	Password     string   `json:"password"`
}

type ldapOptions struct {
	URL           string        `json:"url"`
	Username      string        `json:"username"`
	Password      string        `json:"password"`
	Timeout       time.Duration `json:"timeout"`
	SSLKey        string        `json:"ssl_key"`
	SSLCert       string        `json:"ssl_cert"`
	SSLCACerts    string        `json:"ssl_ca_certs"`
	SSLVerify     *bool         `json:"ssl_verify"`
	CustomQueries []customQuery `json:"custom_queries"`
}

// OpenLDAP defines the openldap check
type OpenLDAP struct {
	url      string
	username string
	password string
	queries  []customQuery
	tags     []string
	dial     func(ctx context.Context) (Directory, error)
	logger   zerolog.Logger
}

// New creates an openldap check instance.
func New(id string, init, inst map[string]interface{}, deps check.Deps) (check.Check, error) {
	o, opts, err := newOpenLDAP(inst, deps)
	if err != nil {
		return nil, err
	}

	var tlsConfig *tls.Config
	if strings.HasPrefix(strings.ToLower(opts.URL), "ldaps") {
		if tlsConfig, err = tlsSettings(opts, deps.Logger); err != nil {
			return nil, err
		}
	}
	dialer := &net.Dialer{Timeout: opts.Timeout}
	o.dial = func(ctx context.Context) (Directory, error) {
		dopts := []ldap.DialOpt{ldap.DialWithDialer(dialer)}
		if tlsConfig != nil {
			dopts = append(dopts, ldap.DialWithTLSConfig(tlsConfig))
		}
		conn, err := ldap.DialURL(opts.URL, dopts...)
		if err != nil {
			return nil, err
		}
		timeout := opts.Timeout
		if dl, ok := ctx.Deadline(); ok && time.Until(dl) < timeout {
			timeout = time.Until(dl)
		}
		conn.SetTimeout(timeout)
		return conn, nil
	}

	return o, nil
}

func newOpenLDAP(inst map[string]interface{}, deps check.Deps) (*OpenLDAP, ldapOptions, error) {
	var opts ldapOptions
	if err := check.Decode(inst, &opts); err != nil {
		return nil, opts, err
	}
	if err := check.Required("url", opts.URL); err != nil {
		return nil, opts, err
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	for i, q := range opts.CustomQueries {
		key := fmt.Sprintf("custom_queries[%d]", i)
		if q.Name == "" {
			return nil, opts, config.Invalid(key+".name", "required")
		}
		if q.SearchBase == "" {
			return nil, opts, config.Invalid(key+".search_base", "required")
		}
		if q.SearchFilter == "" {
			return nil, opts, config.Invalid(key+".search_filter", "required")
		}
		if _, err := ldap.CompileFilter(q.SearchFilter); err != nil {
			return nil, opts, config.Invalidf(key+".search_filter", "%s", err)
		}
	}

	o := &OpenLDAP{
		url:      opts.URL,
		username: opts.Username,
		password: opts.Password,
		queries:  opts.CustomQueries,
		tags:     []string{"url:" + opts.URL},
		logger:   deps.Logger,
	}
	return o, opts, nil
}

func tlsSettings(opts ldapOptions, logger zerolog.Logger) (*tls.Config, error) {
	verify := opts.SSLVerify == nil || *opts.SSLVerify
	cfg := &tls.Config{InsecureSkipVerify: !verify} //nolint:gosec

	if !verify && opts.SSLCACerts != "" {
		logger.Warn().Msg("ssl_verify is disabled while ssl_ca_certs is set, no validation will be performed")
	}

	if opts.SSLCert != "" || opts.SSLKey != "" {
		pair, err := tls.LoadX509KeyPair(opts.SSLCert, opts.SSLKey)
		if err != nil {
			return nil, config.Invalidf("ssl_cert", "%s", err)
		}
		cfg.Certificates = []tls.Certificate{pair}
	}

	if opts.SSLCACerts == "" {
		return cfg, nil
	}
	info, err := os.Stat(opts.SSLCACerts)
	if err != nil {
		return nil, config.Invalidf("ssl_ca_certs", "invalid path %s: %s", opts.SSLCACerts, err)
	}
	files := []string{opts.SSLCACerts}
	if info.IsDir() {
		if files, err = filepath.Glob(filepath.Join(opts.SSLCACerts, "*")); err != nil {
			return nil, config.Invalidf("ssl_ca_certs", "%s", err)
		}
	}
	pool := x509.NewCertPool()
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			continue
		}
		pool.AppendCertsFromPEM(data)
	}
	cfg.RootCAs = pool

	return cfg, nil
}

// ServiceCheckName of the terminal service check.
func (o *OpenLDAP) ServiceCheckName() string {
	return serviceCheckName
}

// Close is a no-op, every run binds and unbinds.
func (o *OpenLDAP) Close() error {
	return nil
}

// Collect binds, reads the monitor backend and runs the custom queries.
func (o *OpenLDAP) Collect(ctx context.Context, r *check.Reporter) error {
	dir, err := o.dial(ctx)
	if err != nil {
		r.ServiceCheck(serviceCheckName, sink.Critical, o.tags, err.Error())
		return &check.ConnectError{Err: err}
	}
	defer func() {
		if err := dir.Unbind(); err != nil {
			o.logger.Debug().Err(err).Msg("unbind")
		}
	}()

	start := time.Now()
	if err := bind(dir, o.username, o.password); err != nil {
		o.logger.Error().Err(err).Str("url", o.url).Msg("could not bind")
		r.ServiceCheck(serviceCheckName, sink.Critical, o.tags, err.Error())
		return &check.ConnectError{Err: err}
	}
	r.ServiceCheck(serviceCheckName, sink.OK, o.tags, "")
	r.Gauge(metricPrefix+"bind_time", time.Since(start).Seconds(), o.tags...)

	req := ldap.NewSearchRequest(searchBase, ldap.ScopeWholeSubtree, ldap.NeverDerefAliases, 0, 0, false, searchFilter, monitorAttributes, nil)
	res, err := dir.Search(req)
	if err != nil {
		return errors.Wrap(err, "searching monitor backend")
	}
	for _, entry := range res.Entries {
		o.monitorEntry(entry, r)
	}

	for _, q := range o.queries {
		if err := ctx.Err(); err != nil {
			return err
		}
		o.customQuery(dir, q, r)
	}

	return nil
}

func bind(dir Directory, username, password string) error {
	if username == "" || password == "" {
		return dir.UnauthenticatedBind(username)
	}
	return dir.Bind(username, password)
}

func (o *OpenLDAP) customQuery(dir Directory, q customQuery, r *check.Reporter) {
	username, password := o.username, o.password
	if q.Username != nil {
		username, password = *q.Username, q.Password
	}
	if err := bind(dir, username, password); err != nil {
		o.logger.Error().Err(err).Str("query", q.Name).Msg("could not rebind")
		return
	}

	req := ldap.NewSearchRequest(q.SearchBase, ldap.ScopeWholeSubtree, ldap.NeverDerefAliases, 0, 0, false, q.SearchFilter, q.Attributes, nil)
	start := time.Now()
	res, err := dir.Search(req)
	if err != nil {
		o.logger.Error().Err(err).Str("query", q.Name).Msg("unable to perform search query")
		return
	}
	qtags := append([]string{"query:" + q.Name}, o.tags...)
	r.Gauge(metricPrefix+"query.duration", time.Since(start).Seconds(), qtags...)
	r.Gauge(metricPrefix+"query.entries", float64(len(res.Entries)), qtags...)
}

// monitorEntry dispatches on the DN suffix of entry.
func (o *OpenLDAP) monitorEntry(entry *ldap.Entry, r *check.Reporter) {
	dn := strings.ToLower(entry.DN)
	cn := commonName(entry.DN)

	switch {
	case strings.HasSuffix(dn, connectionsDN):
		v, ok := attr(entry, "monitorCounter")
		switch {
		case !ok:
		case cn == "max_file_descriptors" || cn == "current":
			r.Gauge(metricPrefix+"connections."+cn, v, o.tags...)
		case cn == "total":
			r.MonotonicCount(metricPrefix+"connections.total", v, o.tags...)
		}

	case strings.HasSuffix(dn, operationsDN):
		initiated, iok := attr(entry, "monitorOpInitiated")
		completed, cok := attr(entry, "monitorOpCompleted")
		if !iok || !cok {
			return
		}
		if cn == "operations" {
			r.MonotonicCount(metricPrefix+"operations.initiated.total", initiated, o.tags...)
			r.MonotonicCount(metricPrefix+"operations.completed.total", completed, o.tags...)
			return
		}
		optags := append([]string{"operation:" + cn}, o.tags...)
		r.MonotonicCount(metricPrefix+"operations.initiated", initiated, optags...)
		r.MonotonicCount(metricPrefix+"operations.completed", completed, optags...)

	case strings.HasSuffix(dn, statisticsDN):
		if v, ok := attr(entry, "monitorCounter"); ok && cn != "statistics" {
			r.MonotonicCount(metricPrefix+"statistics."+cn, v, o.tags...)
		}

	case strings.HasSuffix(dn, threadsDN):
		v, ok := attr(entry, "monitoredInfo")
		if !ok {
			return
		}
		switch cn {
		case "max", "max_pending":
			r.Gauge(metricPrefix+"threads."+cn, v, o.tags...)
		case "open", "starting", "active", "pending", "backload":
			r.Gauge(metricPrefix+"threads", v, append([]string{"status:" + cn}, o.tags...)...)
		}

	case strings.HasSuffix(dn, timeDN):
		if v, ok := attr(entry, "monitoredInfo"); ok && cn == "uptime" {
			r.Gauge(metricPrefix+"uptime", v, o.tags...)
		}

	case strings.HasSuffix(dn, waitersDN):
		if v, ok := attr(entry, "monitorCounter"); ok && cn != "waiters" {
			r.Gauge(metricPrefix+"waiter."+cn, v, o.tags...)
		}
	}
}

// commonName returns the first cn of dn, lower cased with spaces replaced,
// e.g. "cn=Max File Descriptors,cn=Connections,cn=Monitor" is
// max_file_descriptors.
func commonName(dn string) string {
	first, _, _ := strings.Cut(strings.ToLower(dn), ",")
	_, value, _ := strings.Cut(first, "=")
	return strings.ReplaceAll(strings.TrimSpace(value), " ", "_")
}

func attr(entry *ldap.Entry, name string) (float64, bool) {
	s := entry.GetAttributeValue(name)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
