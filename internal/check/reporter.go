// Copyright © 2017 Circonus, Inc. <support@circonus.com>
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package check

import (
	"strings"
	"sync"
	"time"

	"github.com/circonus-labs/circonus-checks/internal/sink"
	"github.com/circonus-labs/circonus-checks/internal/tags"
	"github.com/rs/zerolog"
)

// Reporter is handed to Check.Collect for a single run. Metrics and events
// go straight to the sink. Service checks are held until Finish so that
// exactly one result per target (name + tags) is emitted: the worst status
// reported wins and the first CRITICAL is never replaced.
type Reporter struct {
	sink     sink.Sink
	target   string
	baseTags []string
	hostname string
	results  map[string]*sink.ServiceCheck
	order    []string
	metrics  int
	dropped  int
	closed   bool
	logger   zerolog.Logger
	sync.Mutex
}

// NewReporter returns a reporter for one run. target is the name of the
// instance's terminal service check, baseTags are added to every emission.
func NewReporter(s sink.Sink, target string, baseTags []string, logger zerolog.Logger) *Reporter {
	return &Reporter{
		sink:     s,
		target:   target,
		baseTags: tags.Normalize(baseTags),
		results:  make(map[string]*sink.ServiceCheck),
		logger:   logger,
	}
}

// SetHostname sets the hostname attached to subsequent emissions.
func (r *Reporter) SetHostname(h string) {
	r.Lock()
	r.hostname = h
	r.Unlock()
}

// Tags returns a copy of the instance tag set.
func (r *Reporter) Tags() []string {
	return append([]string(nil), r.baseTags...)
}

// Target returns the name of the instance's terminal service check.
func (r *Reporter) Target() string {
	return r.target
}

// Metric emits m with the instance tags merged into its own.
func (r *Reporter) Metric(m sink.Metric) {
	m.Tags = tags.Merge(r.baseTags, m.Tags)

	r.Lock()
	defer r.Unlock()

	if r.closed {
		r.dropped++
		r.logger.Debug().Str("metric", m.Name).Msg("run finished, dropping late emission")
		return
	}
	r.metrics++
	if m.Hostname == "" {
		m.Hostname = r.hostname
	}
	r.sink.Metric(m)
}

// Metrics emits each of ms.
func (r *Reporter) Metrics(ms []sink.Metric) {
	for _, m := range ms {
		r.Metric(m)
	}
}

func (r *Reporter) emit(name string, typ sink.Type, value float64, tagList []string) {
	r.Metric(sink.Metric{Name: name, Type: typ, Value: value, Tags: tagList})
}

// Gauge emits a gauge.
func (r *Reporter) Gauge(name string, value float64, tagList ...string) {
	r.emit(name, sink.Gauge, value, tagList)
}

// Count emits a count.
func (r *Reporter) Count(name string, value float64, tagList ...string) {
	r.emit(name, sink.Count, value, tagList)
}

// MonotonicCount emits the raw value of an ever increasing counter.
func (r *Reporter) MonotonicCount(name string, value float64, tagList ...string) {
	r.emit(name, sink.MonotonicCount, value, tagList)
}

// Rate emits the raw value of a counter to be reported per second.
func (r *Reporter) Rate(name string, value float64, tagList ...string) {
	r.emit(name, sink.Rate, value, tagList)
}

// Histogram emits one histogram sample.
func (r *Reporter) Histogram(name string, value float64, tagList ...string) {
	r.emit(name, sink.Histogram, value, tagList)
}

// Timing emits a duration as a histogram sample in milliseconds.
func (r *Reporter) Timing(name string, d time.Duration, tagList ...string) {
	r.emit(name, sink.Histogram, float64(d)/float64(time.Millisecond), tagList)
}

// ServiceCheck records a result for the target (name, tags).
func (r *Reporter) ServiceCheck(name string, status sink.Status, tagList []string, message string) {
	tl := tags.Merge(r.baseTags, tagList)
	key := name + "|" + strings.Join(tl, ",")

	r.Lock()
	defer r.Unlock()

	if r.closed {
		r.dropped++
		return
	}

	prev, ok := r.results[key]
	if !ok {
		r.results[key] = &sink.ServiceCheck{Name: name, Status: status, Tags: tl, Message: message, Hostname: r.hostname}
		r.order = append(r.order, key)
		return
	}
	if prev.Status == sink.Critical {
		return
	}
	if sink.Worse(prev.Status, status) != prev.Status {
		prev.Status = status
		prev.Message = message
	}
}

// Event emits e with the instance tags merged into its own.
func (r *Reporter) Event(e sink.Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	if e.AlertType == "" {
		e.AlertType = sink.AlertInfo
	}
	e.Tags = tags.Merge(r.baseTags, e.Tags)

	r.Lock()
	defer r.Unlock()

	if r.closed {
		r.dropped++
		return
	}
	if e.Hostname == "" {
		e.Hostname = r.hostname
	}
	r.sink.Event(e)
}

// Finish ends the run and emits the held service checks. If nothing was
// reported for the instance target one is added: CRITICAL carrying err
// when the run failed, OK otherwise. A failed run also escalates results
// already reported for the target. Emissions after Finish are dropped and
// Finish waits for emissions already handed to the sink.
func (r *Reporter) Finish(err error) {
	r.Lock()
	if r.closed {
		r.Unlock()
		return
	}
	r.closed = true

	if r.target != "" {
		status, msg := sink.OK, ""
		if err != nil && !IsSoft(err) {
			status, msg = sink.Critical, err.Error()
		}
		found := false
		for _, key := range r.order {
			sc := r.results[key]
			if sc.Name != r.target {
				continue
			}
			found = true
			if status == sink.Critical && sc.Status != sink.Critical {
				sc.Status = status
				sc.Message = msg
			}
		}
		if !found {
			key := r.target + "|" + strings.Join(r.baseTags, ",")
			r.results[key] = &sink.ServiceCheck{Name: r.target, Status: status, Tags: r.Tags(), Message: msg, Hostname: r.hostname}
			r.order = append(r.order, key)
		}
	}

	results := make([]sink.ServiceCheck, 0, len(r.order))
	for _, key := range r.order {
		results = append(results, *r.results[key])
	}
	r.Unlock()

	for _, sc := range results {
		r.sink.ServiceCheck(sc)
	}
}

// Emitted returns the number of metrics emitted and dropped (late) so far.
func (r *Reporter) Emitted() (int, int) {
	r.Lock()
	defer r.Unlock()
	return r.metrics, r.dropped
}
