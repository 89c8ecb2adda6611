// Copyright © 2017 Circonus, Inc. <support@circonus.com>
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

// Package sink defines the emissions produced by checks (metrics, service
// checks and events) and the destinations which receive them.
package sink

import (
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Type is the submission type of a metric emission.
type Type int

// Metric types.
const (
	Gauge Type = iota
	Count
	MonotonicCount
	Rate
	Histogram
)

var typeNames = map[Type]string{
	Gauge:          "gauge",
	Count:          "count",
	MonotonicCount: "monotonic_count",
	Rate:           "rate",
	Histogram:      "histogram",
}

func (t Type) String() string {
	if n, ok := typeNames[t]; ok {
		return n
	}
	return "unknown"
}

// MarshalText renders the type by name.
func (t Type) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText parses a type name.
func (t *Type) UnmarshalText(text []byte) error {
	v, err := ParseType(string(text))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// ParseType maps a type name (e.g. from a mapping table) to a Type.
func ParseType(name string) (Type, error) {
	for t, n := range typeNames {
		if n == strings.ToLower(name) {
			return t, nil
		}
	}
	return Gauge, errors.Errorf("unknown metric type (%s)", name)
}

// Metric is a single numeric emission, created fresh on each run.
type Metric struct {
	Name     string   `json:"name"`
	Type     Type     `json:"type"`
	Value    float64  `json:"value"`
	Tags     []string `json:"tags"`
	Hostname string   `json:"hostname,omitempty"`
}

// ServiceCheck is the health signal for one monitored target.
type ServiceCheck struct {
	Name     string   `json:"name"`
	Status   Status   `json:"status"`
	Tags     []string `json:"tags"`
	Message  string   `json:"message,omitempty"`
	Hostname string   `json:"hostname,omitempty"`
}

// AlertType classifies an event.
type AlertType string

// Event alert types.
const (
	AlertSuccess AlertType = "success"
	AlertWarning AlertType = "warning"
	AlertError   AlertType = "error"
	AlertInfo    AlertType = "info"
)

// Event is a fire-and-forget notification.
type Event struct {
	Title          string    `json:"title"`
	Text           string    `json:"text"`
	AlertType      AlertType `json:"alert_type"`
	Tags           []string  `json:"tags"`
	SourceType     string    `json:"source_type_name,omitempty"`
	AggregationKey string    `json:"aggregation_key,omitempty"`
	Hostname       string    `json:"hostname,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// Sink receives emissions. Implementations must be safe for concurrent use.
type Sink interface {
	Metric(m Metric)
	ServiceCheck(sc ServiceCheck)
	Event(e Event)
}

type tee []Sink

// Tee returns a Sink delivering every emission to each of sinks, in order.
func Tee(sinks ...Sink) Sink {
	return tee(sinks)
}

func (t tee) Metric(m Metric) {
	for _, s := range t {
		s.Metric(m)
	}
}

func (t tee) ServiceCheck(sc ServiceCheck) {
	for _, s := range t {
		s.ServiceCheck(sc)
	}
}

func (t tee) Event(e Event) {
	for _, s := range t {
		s.Event(e)
	}
}
