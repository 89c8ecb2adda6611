// Copyright © 2017 Circonus, Inc. <support@circonus.com>
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

// Package openmetrics scrapes a prometheus text format endpoint.
package openmetrics

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/circonus-labs/circonus-checks/internal/check"
	"github.com/circonus-labs/circonus-checks/internal/config"
	"github.com/circonus-labs/circonus-checks/internal/sink"
	"github.com/circonus-labs/circonus-checks/internal/tags"
	"github.com/pkg/errors"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"github.com/rs/zerolog"
)

// Name of the check type.
const Name = "openmetrics"

const (
	healthName          = "openmetrics.health"
	metricStatusEnabled = "enabled"  // setting string indicating metrics should be made 'active'
	regexPat            = `^(?:%s)$` // fmt pattern used compile include/exclude regular expressions
	acceptHeader        = `text/plain;version=0.0.4;q=0.9,*/*;q=0.1`
	defaultTimeout      = 10 * time.Second
)

var (
	defaultExcludeRegex = regexp.MustCompile(fmt.Sprintf(regexPat, ""))
	defaultIncludeRegex = regexp.MustCompile(fmt.Sprintf(regexPat, ".+"))
)

// omOptions defines what elements can be set in an instance
type omOptions struct {
	Endpoint             string            `json:"openmetrics_endpoint"`
	Namespace            string            `json:"namespace"`
	MetricsEnabled       []string          `json:"metrics_enabled"`
	MetricsDisabled      []string          `json:"metrics_disabled"`
	MetricsDefaultStatus string            `json:"metrics_default_status"`
	IncludeRegex         string            `json:"include_regex"`
	ExcludeRegex         string            `json:"exclude_regex"`
	ExcludeLabels        []string          `json:"exclude_labels"`
	RenameLabels         map[string]string `json:"rename_labels"`
	Headers              map[string]string `json:"headers"`
	Timeout              time.Duration     `json:"timeout"`
}

// OpenMetrics defines the openmetrics check
type OpenMetrics struct {
	endpoint            string
	namespace           string          // metric name prefix, may be empty
	health              string          // service check name
	metricDefaultActive bool            // default status for metrics NOT explicitly in metricStatus
	metricNameRegex     *regexp.Regexp  // regex for cleaning names
	metricStatus        map[string]bool // list of metrics and whether they should be collected or not
	include             *regexp.Regexp
	exclude             *regexp.Regexp
	excludeLabels       map[string]bool
	renameLabels        map[string]string
	headers             map[string]string
	timeout             time.Duration
	client              *http.Client
	scTags              []string
	logger              zerolog.Logger
}

// New creates an openmetrics check instance.
func New(id string, init, inst map[string]interface{}, deps check.Deps) (check.Check, error) {
	var opts omOptions
	if err := check.Decode(inst, &opts); err != nil {
		return nil, err
	}
	if err := check.Required("openmetrics_endpoint", opts.Endpoint); err != nil {
		return nil, err
	}
	if u, err := url.Parse(opts.Endpoint); err != nil || u.Scheme == "" || u.Host == "" {
		return nil, config.Invalid("openmetrics_endpoint", "not an absolute URL")
	}

	c := &OpenMetrics{
		endpoint:            opts.Endpoint,
		namespace:           strings.Trim(opts.Namespace, "."),
		health:              healthName,
		metricStatus:        map[string]bool{},
		metricDefaultActive: true,
		include:             defaultIncludeRegex,
		exclude:             defaultExcludeRegex,
		metricNameRegex:     regexp.MustCompile("[\r\n\"']"), // used to strip unwanted characters
		excludeLabels:       map[string]bool{},
		renameLabels:        opts.RenameLabels,
		headers:             opts.Headers,
		timeout:             opts.Timeout,
		scTags:              []string{"endpoint:" + opts.Endpoint},
		logger:              deps.Logger,
	}
	if c.namespace != "" {
		c.health = c.namespace + "." + healthName
	}
	if c.timeout <= 0 {
		c.timeout = defaultTimeout
	}

	if opts.IncludeRegex != "" {
		rx, err := regexp.Compile(fmt.Sprintf(regexPat, opts.IncludeRegex))
		if err != nil {
			return nil, config.Invalidf("include_regex", "%s", err)
		}
		c.include = rx
	}
	if opts.ExcludeRegex != "" {
		rx, err := regexp.Compile(fmt.Sprintf(regexPat, opts.ExcludeRegex))
		if err != nil {
			return nil, config.Invalidf("exclude_regex", "%s", err)
		}
		c.exclude = rx
	}

	for _, name := range opts.MetricsEnabled {
		c.metricStatus[name] = true
	}
	for _, name := range opts.MetricsDisabled {
		c.metricStatus[name] = false
	}
	if opts.MetricsDefaultStatus != "" {
		status := strings.ToLower(opts.MetricsDefaultStatus)
		if status != metricStatusEnabled && status != "disabled" {
			return nil, config.Invalidf("metrics_default_status", "invalid metric default status (%s)", opts.MetricsDefaultStatus)
		}
		c.metricDefaultActive = status == metricStatusEnabled
	}
	for _, l := range opts.ExcludeLabels {
		c.excludeLabels[l] = true
	}

	c.client = &http.Client{Transport: &http.Transport{DisableCompression: false, DisableKeepAlives: true, MaxIdleConnsPerHost: 1}}

	return c, nil
}

// ServiceCheckName of the terminal service check.
func (c *OpenMetrics) ServiceCheckName() string {
	return c.health
}

// Close is a no-op.
func (c *OpenMetrics) Close() error {
	return nil
}

// Collect scrapes the endpoint.
func (c *OpenMetrics) Collect(ctx context.Context, r *check.Reporter) error {
	tctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(tctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return errors.Wrap(err, "prepare request")
	}
	req.Header.Set("Accept", acceptHeader)
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	err = c.httpDoRequest(tctx, req, func(resp *http.Response, err error) error {
		if err != nil {
			return &check.ConnectError{Err: err}
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return &check.ConnectError{Err: errors.Errorf("%s: %s", c.endpoint, resp.Status)}
		}
		return c.parse(resp.Body, r)
	})
	if err != nil {
		r.ServiceCheck(c.health, sink.Critical, c.scTags, err.Error())
		return err
	}

	r.ServiceCheck(c.health, sink.OK, c.scTags, "")
	return nil
}

func (c *OpenMetrics) httpDoRequest(ctx context.Context, req *http.Request, respHandler func(*http.Response, error) error) error {
	ec := make(chan error, 1)

	go func() { ec <- respHandler(c.client.Do(req)) }() //nolint:bodyclose

	select {
	case <-ctx.Done():
		<-ec
		return &check.ConnectError{Err: ctx.Err()}
	case err := <-ec:
		return err
	}
}

func (c *OpenMetrics) parse(data io.Reader, r *check.Reporter) error {
	var parser expfmt.TextParser

	// formats supported from https://prometheus.io/docs/instrumenting/exposition_formats/

	metricFamilies, err := parser.TextToMetricFamilies(data)
	if err != nil {
		return errors.Wrap(err, "parser - metric families")
	}

	for mn, mf := range metricFamilies {
		for _, m := range mf.Metric {
			labels := c.getLabels(m)
			switch mf.GetType() {
			case dto.MetricType_SUMMARY:
				c.addMetric(r, mn+".count", sink.MonotonicCount, labels, float64(m.GetSummary().GetSampleCount()))
				c.addMetric(r, mn+".sum", sink.MonotonicCount, labels, m.GetSummary().GetSampleSum())
				for qn, qv := range c.getQuantiles(m) {
					c.addMetric(r, mn+".quantile", sink.Gauge, tags.Merge(labels, []string{"quantile:" + qn}), qv)
				}
			case dto.MetricType_HISTOGRAM:
				c.addMetric(r, mn+".count", sink.MonotonicCount, labels, float64(m.GetHistogram().GetSampleCount()))
				c.addMetric(r, mn+".sum", sink.MonotonicCount, labels, m.GetHistogram().GetSampleSum())
				for bn, bv := range c.getBuckets(m) {
					c.addMetric(r, mn+".bucket", sink.MonotonicCount, tags.Merge(labels, []string{"upper_bound:" + bn}), float64(bv))
				}
			case dto.MetricType_COUNTER:
				if m.GetCounter().Value != nil {
					c.addMetric(r, strings.TrimSuffix(mn, "_total")+".count", sink.MonotonicCount, labels, *m.GetCounter().Value)
				}
			case dto.MetricType_GAUGE:
				if m.GetGauge().Value != nil {
					c.addMetric(r, mn, sink.Gauge, labels, *m.GetGauge().Value)
				}
			case dto.MetricType_UNTYPED:
				if m.GetUntyped().Value != nil {
					if math.IsInf(*m.GetUntyped().Value, 0) {
						c.logger.Warn().Str("metric", mn).Str("type", mf.GetType().String()).Msg("skipping infinite value")
						continue
					}
					c.addMetric(r, mn, sink.Gauge, labels, *m.GetUntyped().Value)
				}
			}
		}
	}

	return nil
}

// addMetric emits a metric if it is active. Status and filters are applied
// to the family name.
func (c *OpenMetrics) addMetric(r *check.Reporter, mname string, typ sink.Type, mtags []string, val float64) {
	family := c.cleanName(mname)
	if i := strings.IndexByte(family, '.'); i > 0 {
		family = family[:i]
	}

	active, found := c.metricStatus[family]
	if (found && !active) || (!found && !c.metricDefaultActive) {
		return
	}
	if !c.include.MatchString(family) || c.exclude.MatchString(family) {
		return
	}

	name := c.cleanName(mname)
	if c.namespace != "" {
		name = c.namespace + "." + name
	}
	r.Metric(sink.Metric{Name: name, Type: typ, Value: val, Tags: mtags})
}

// cleanName is used to clean the metric name
func (c *OpenMetrics) cleanName(name string) string {
	return c.metricNameRegex.ReplaceAllString(name, "")
}

func (c *OpenMetrics) getLabels(m *dto.Metric) []string {
	labels := []string{}

	for _, label := range m.Label {
		if label.Name == nil || label.Value == nil {
			continue
		}
		ln := c.metricNameRegex.ReplaceAllString(*label.Name, "")
		if c.excludeLabels[ln] {
			continue
		}
		if renamed, ok := c.renameLabels[ln]; ok {
			ln = renamed
		}
		lv := c.metricNameRegex.ReplaceAllString(*label.Value, "")
		labels = append(labels, tags.KV(ln, lv))
	}

	return labels
}

func (c *OpenMetrics) getQuantiles(m *dto.Metric) map[string]float64 {
	ret := make(map[string]float64)
	for _, q := range m.GetSummary().Quantile {
		if q.Value != nil && !math.IsNaN(*q.Value) {
			ret[strconv.FormatFloat(q.GetQuantile(), 'g', -1, 64)] = *q.Value
		}
	}
	return ret
}

func (c *OpenMetrics) getBuckets(m *dto.Metric) map[string]uint64 {
	ret := make(map[string]uint64)
	for _, b := range m.GetHistogram().Bucket {
		if b.CumulativeCount != nil {
			ret[strconv.FormatFloat(b.GetUpperBound(), 'g', -1, 64)] = *b.CumulativeCount
		}
	}
	return ret
}
