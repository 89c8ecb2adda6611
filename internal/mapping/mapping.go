// Copyright © 2017 Circonus, Inc. <support@circonus.com>
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

// Package mapping turns raw rows returned by source clients into metric
// emissions using declarative tables.
package mapping

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/circonus-labs/circonus-checks/internal/sink"
	"github.com/circonus-labs/circonus-checks/internal/tags"
	"github.com/rs/zerolog"
)

// Unlimited is the value kernels and databases report for "no limit".
// Values at or above it are never emitted.
const Unlimited = float64(1 << 60)

// Row is one raw record, field name to value.
type Row map[string]interface{}

// Float returns field as a float64. Integers, floats, booleans and numeric
// strings (or byte slices) are accepted.
func (r Row) Float(field string) (float64, bool) {
	v, ok := r[field]
	if !ok {
		return 0, false
	}
	return ToFloat(v)
}

// ToFloat coerces a raw value to float64.
func ToFloat(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int8:
		return float64(t), true
	case int16:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case uint:
		return float64(t), true
	case uint8:
		return float64(t), true
	case uint16:
		return float64(t), true
	case uint32:
		return float64(t), true
	case uint64:
		return float64(t), true
	case bool:
		if t {
			return 1, true
		}
		return 0, true
	case []byte:
		return parseNumber(string(t))
	case string:
		return parseNumber(t)
	}
	return 0, false
}

func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	switch strings.ToUpper(s) {
	case "ON", "YES", "TRUE":
		return 1, true
	case "OFF", "NO", "FALSE":
		return 0, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// Below reports whether raw is strictly below limit. Integers, and strings
// holding an integer, are compared exactly when limit is a whole number, so
// 1<<60-1 stays below 1<<60 even though float64 rounds it up.
func Below(raw interface{}, limit float64) bool {
	if lim, ok := wholeLimit(limit); ok {
		switch t := raw.(type) {
		case int:
			return t < 0 || uint64(t) < lim
		case int64:
			return t < 0 || uint64(t) < lim
		case uint:
			return uint64(t) < lim
		case uint64:
			return t < lim
		case []byte:
			if below, ok := integerBelow(string(t), lim); ok {
				return below
			}
		case string:
			if below, ok := integerBelow(t, lim); ok {
				return below
			}
		}
	}
	v, ok := ToFloat(raw)
	return !ok || v < limit
}

func wholeLimit(limit float64) (uint64, bool) {
	if limit <= 0 || limit >= 1<<64 || limit != math.Trunc(limit) {
		return 0, false
	}
	return uint64(limit), true
}

func integerBelow(s string, lim uint64) (bool, bool) {
	s = strings.TrimSpace(s)
	if u, err := strconv.ParseUint(s, 10, 64); err == nil {
		return u < lim, true
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil && i < 0 {
		return true, true
	}
	return false, false
}

// Spec maps one raw field to a metric. Sentinel, when non-zero, drops raw
// values at or above it.
type Spec struct {
	Name     string
	Type     sink.Type
	Scale    float64 // multiplier, zero means 1
	Sentinel float64
}

// CombineFunc derives one value from the values of its sources, in order.
type CombineFunc func(vals []float64) (float64, bool)

// Computed is a metric derived from several raw fields. It is skipped when
// any source is absent.
type Computed struct {
	Name    string
	Sources []string
	Combine CombineFunc
	Type    sink.Type
}

// Sum adds its inputs.
func Sum(vals []float64) (float64, bool) {
	total := 0.0
	for _, v := range vals {
		total += v
	}
	return total, true
}

// Difference subtracts the remaining inputs from the first.
func Difference(vals []float64) (float64, bool) {
	if len(vals) == 0 {
		return 0, false
	}
	d := vals[0]
	for _, v := range vals[1:] {
		d -= v
	}
	return d, true
}

// Ratio divides the first input by the second, dropped on a zero divisor.
func Ratio(vals []float64) (float64, bool) {
	if len(vals) != 2 || vals[1] == 0 {
		return 0, false
	}
	return vals[0] / vals[1], true
}

// Table is a declarative mapping of raw fields. Sentinel, when non-zero,
// applies to every raw field and every computed value.
type Table struct {
	Prefix   string
	Fields   map[string]Spec
	Computed []Computed
	Sentinel float64
	Logger   zerolog.Logger
}

// Apply maps row to metrics tagged with tagList. The result is sorted by
// metric name and Apply has no side effects, so repeated calls on the same
// row produce the same emissions.
func (t *Table) Apply(row Row, tagList []string) []sink.Metric {
	tl := tags.Normalize(tagList)
	out := make([]sink.Metric, 0, len(t.Fields)+len(t.Computed))

	for field, spec := range t.Fields {
		raw, ok := row[field]
		if !ok {
			continue
		}
		if (spec.Sentinel > 0 && !Below(raw, spec.Sentinel)) || (t.Sentinel > 0 && !Below(raw, t.Sentinel)) {
			continue
		}
		v, ok := ToFloat(raw)
		if !ok {
			continue
		}
		if spec.Scale != 0 {
			v *= spec.Scale
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		out = append(out, sink.Metric{Name: t.Prefix + spec.Name, Type: spec.Type, Value: v, Tags: append([]string(nil), tl...)})
	}

	for _, c := range t.Computed {
		vals := make([]float64, 0, len(c.Sources))
		missing := ""
		for _, src := range c.Sources {
			v, ok := row.Float(src)
			if !ok {
				missing = src
				break
			}
			vals = append(vals, v)
		}
		if missing != "" {
			t.Logger.Debug().Str("metric", c.Name).Str("source", missing).Msg("source absent, skipping computed metric")
			continue
		}
		v, ok := c.Combine(vals)
		if !ok || !t.keep(v) {
			continue
		}
		out = append(out, sink.Metric{Name: t.Prefix + c.Name, Type: c.Type, Value: v, Tags: append([]string(nil), tl...)})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })

	return out
}

// Emit applies the table and sends the results to s.
func (t *Table) Emit(s sink.Sink, row Row, tagList []string) int {
	metrics := t.Apply(row, tagList)
	for _, m := range metrics {
		s.Metric(m)
	}
	return len(metrics)
}

func (t *Table) keep(v float64) bool {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return false
	}
	if t.Sentinel > 0 && v >= t.Sentinel {
		return false
	}
	return true
}

// EntityTags returns a new tag set holding base plus the given key, value
// pairs. base is never modified. A trailing key without a value is ignored.
func EntityTags(base []string, kv ...string) []string {
	extra := make([]string, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		extra = append(extra, tags.KV(kv[i], kv[i+1]))
	}
	return tags.Merge(base, extra)
}
