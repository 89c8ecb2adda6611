// Copyright © 2017 Circonus, Inc. <support@circonus.com>
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

// Package envoy collects the admin /stats endpoint of an envoy proxy.
package envoy

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/circonus-labs/circonus-checks/internal/check"
	"github.com/circonus-labs/circonus-checks/internal/config"
	"github.com/circonus-labs/circonus-checks/internal/sink"
	"github.com/rs/zerolog"
)

// Name of the check type.
const Name = "envoy"

const (
	serviceCheckName = "envoy.can_connect"
	metricPrefix     = "envoy."
	noValues         = "No recorded values"
	defaultTimeout   = 10 * time.Second
)

type envoyOptions struct {
	StatsURL                string        `json:"stats_url"`
	Username                string        `json:"username"`
	Password                string        `json:"password"`
	Timeout                 time.Duration `json:"timeout"`
	TLSVerify               *bool         `json:"tls_verify"`
	IncludedMetrics         []string      `json:"included_metrics"`
	ExcludedMetrics         []string      `json:"excluded_metrics"`
	CacheMetrics            *bool         `json:"cache_metrics"`
	DisableLegacyClusterTag bool          `json:"disable_legacy_cluster_tag"`
}

// Envoy defines the envoy check
type Envoy struct {
	statsURL string
	username string
	password string
	client   *http.Client
	parser   *Parser
	include  []*regexp.Regexp
	exclude  []*regexp.Regexp
	cache    bool
	allowed  map[string]bool
	scTags   []string
	logger   zerolog.Logger
	sync.Mutex
}

// New creates an envoy check instance.
func New(id string, init, inst map[string]interface{}, deps check.Deps) (check.Check, error) {
	var opts envoyOptions
	if err := check.Decode(inst, &opts); err != nil {
		return nil, err
	}
	if err := check.Required("stats_url", opts.StatsURL); err != nil {
		return nil, err
	}
	u, err := url.Parse(opts.StatsURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, config.Invalid("stats_url", "not an absolute URL")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}

	e := &Envoy{
		statsURL: opts.StatsURL,
		username: opts.Username,
		password: opts.Password,
		parser:   NewParser(!opts.DisableLegacyClusterTag),
		cache:    opts.CacheMetrics == nil || *opts.CacheMetrics,
		allowed:  map[string]bool{},
		scTags:   []string{"endpoint:" + opts.StatsURL},
		logger:   deps.Logger,
	}
	if e.include, err = compile("included_metrics", opts.IncludedMetrics); err != nil {
		return nil, err
	}
	if e.exclude, err = compile("excluded_metrics", opts.ExcludedMetrics); err != nil {
		return nil, err
	}

	transport := &http.Transport{
		DisableCompression:  false,
		DisableKeepAlives:   true,
		MaxIdleConnsPerHost: 1,
	}
	if opts.TLSVerify != nil && !*opts.TLSVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	}
	e.client = &http.Client{Transport: transport, Timeout: opts.Timeout}

	return e, nil
}

func compile(key string, patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for i, p := range patterns {
		rx, err := regexp.Compile(p)
		if err != nil {
			return nil, config.Invalidf(fmt.Sprintf("%s[%d]", key, i), "%s", err)
		}
		out = append(out, rx)
	}
	return out, nil
}

// ServiceCheckName of the terminal service check.
func (e *Envoy) ServiceCheckName() string {
	return serviceCheckName
}

// Collect fetches and maps the stats.
func (e *Envoy) Collect(ctx context.Context, r *check.Reporter) error {
	body, err := e.fetch(ctx)
	if err != nil {
		r.ServiceCheck(serviceCheckName, sink.Critical, e.scTags, err.Error())
		return &check.ConnectError{Err: err}
	}
	defer body.Close()

	r.ServiceCheck(serviceCheckName, sink.OK, e.scTags, "")

	unknown := 0
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if !e.collectLine(scanner.Text(), r) {
			unknown++
		}
	}
	if err := scanner.Err(); err != nil {
		return check.Soft(fmt.Errorf("reading stats: %w", err))
	}
	if unknown > 0 {
		e.logger.Debug().Int("unknown", unknown).Msg("stats not in catalog")
	}
	return nil
}

// Close is a no-op, connections are not kept.
func (e *Envoy) Close() error {
	return nil
}

func (e *Envoy) fetch(ctx context.Context) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.statsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("prepare request: %w", err)
	}
	if e.username != "" {
		req.SetBasicAuth(e.username, e.password)
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("%s: %s", e.statsURL, resp.Status)
	}
	return resp.Body, nil
}

// collectLine emits the stat on line, false when the stat is not known.
func (e *Envoy) collectLine(line string, r *check.Reporter) bool {
	stat, value, ok := strings.Cut(line, ":")
	if !ok {
		return true
	}
	stat = strings.TrimSpace(stat)
	value = strings.TrimSpace(value)
	if stat == "" || !e.wanted(stat) {
		return true
	}

	name, tagList, typ, err := e.parser.Parse(stat)
	if err != nil {
		if errors.Is(err, ErrUnknownTags) {
			e.logger.Debug().Err(err).Msg("skipping")
		}
		return false
	}
	name = metricPrefix + name

	if typ == sink.Histogram {
		if value == noValues {
			return true
		}
		for suffix, v := range Percentiles(value) {
			r.Gauge(name+"."+suffix, v, tagList...)
		}
		return true
	}

	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		e.logger.Debug().Str("stat", stat).Str("value", value).Msg("non-numeric value")
		return true
	}
	r.Metric(sink.Metric{Name: name, Type: typ, Value: v, Tags: tagList})
	return true
}

// wanted applies the include and exclude lists, decisions are cached per
// stat when enabled.
func (e *Envoy) wanted(stat string) bool {
	if len(e.include) == 0 && len(e.exclude) == 0 {
		return true
	}
	if e.cache {
		e.Lock()
		ok, seen := e.allowed[stat]
		e.Unlock()
		if seen {
			return ok
		}
	}

	ok := len(e.include) == 0
	for _, rx := range e.include {
		if rx.MatchString(stat) {
			ok = true
			break
		}
	}
	if ok {
		for _, rx := range e.exclude {
			if rx.MatchString(stat) {
				ok = false
				break
			}
		}
	}

	if e.cache {
		e.Lock()
		e.allowed[stat] = ok
		e.Unlock()
	}
	return ok
}
