// Copyright © 2017 Circonus, Inc. <support@circonus.com>
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package sink

import (
	"sync"

	"github.com/circonus-labs/circonusllhist"
)

// Recorder is an in-memory Sink keeping every emission in arrival order.
// Histogram samples are additionally accumulated per series.
type Recorder struct {
	metrics       []Metric
	serviceChecks []ServiceCheck
	events        []Event
	histograms    map[string]*circonusllhist.Histogram
	sync.Mutex
}

// Recording is a snapshot of a Recorder.
type Recording struct {
	Metrics       []Metric       `json:"metrics"`
	ServiceChecks []ServiceCheck `json:"service_checks"`
	Events        []Event        `json:"events"`
}

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{histograms: make(map[string]*circonusllhist.Histogram)}
}

// Metric records m.
func (r *Recorder) Metric(m Metric) {
	r.Lock()
	defer r.Unlock()

	m.Tags = append([]string(nil), m.Tags...)
	r.metrics = append(r.metrics, m)

	if m.Type == Histogram {
		key := contextKey(m)
		h, ok := r.histograms[key]
		if !ok {
			h = circonusllhist.New()
			r.histograms[key] = h
		}
		_ = h.RecordValue(m.Value)
	}
}

// ServiceCheck records sc.
func (r *Recorder) ServiceCheck(sc ServiceCheck) {
	r.Lock()
	defer r.Unlock()
	sc.Tags = append([]string(nil), sc.Tags...)
	r.serviceChecks = append(r.serviceChecks, sc)
}

// Event records e.
func (r *Recorder) Event(e Event) {
	r.Lock()
	defer r.Unlock()
	e.Tags = append([]string(nil), e.Tags...)
	r.events = append(r.events, e)
}

// Metrics returns the recorded metrics, optionally restricted to name.
func (r *Recorder) Metrics(name ...string) []Metric {
	r.Lock()
	defer r.Unlock()

	out := []Metric{}
	for _, m := range r.metrics {
		if len(name) == 0 || m.Name == name[0] {
			out = append(out, m)
		}
	}
	return out
}

// ServiceChecks returns the recorded service checks, optionally restricted to name.
func (r *Recorder) ServiceChecks(name ...string) []ServiceCheck {
	r.Lock()
	defer r.Unlock()

	out := []ServiceCheck{}
	for _, sc := range r.serviceChecks {
		if len(name) == 0 || sc.Name == name[0] {
			out = append(out, sc)
		}
	}
	return out
}

// Events returns the recorded events.
func (r *Recorder) Events() []Event {
	r.Lock()
	defer r.Unlock()
	return append([]Event(nil), r.events...)
}

// HistogramMean returns the approximate mean of the samples recorded for
// the histogram series (name, tags), false when there are none.
func (r *Recorder) HistogramMean(name string, tagList []string) (float64, bool) {
	r.Lock()
	defer r.Unlock()
	h, ok := r.histograms[contextKey(Metric{Name: name, Tags: tagList})]
	if !ok {
		return 0, false
	}
	return h.ApproxMean(), true
}

// Snapshot returns a copy of everything recorded so far.
func (r *Recorder) Snapshot() Recording {
	r.Lock()
	defer r.Unlock()
	return Recording{
		Metrics:       append([]Metric{}, r.metrics...),
		ServiceChecks: append([]ServiceCheck{}, r.serviceChecks...),
		Events:        append([]Event{}, r.events...),
	}
}

// Reset discards everything recorded.
func (r *Recorder) Reset() {
	r.Lock()
	defer r.Unlock()
	r.metrics = nil
	r.serviceChecks = nil
	r.events = nil
	r.histograms = make(map[string]*circonusllhist.Histogram)
}
