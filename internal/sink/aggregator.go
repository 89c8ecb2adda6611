// Copyright © 2017 Circonus, Inc. <support@circonus.com>
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package sink

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/circonus-labs/circonus-checks/internal/tags"
	cgm "github.com/circonus-labs/circonus-gometrics/v3"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Aggregator is a Sink backed by circonus-gometrics in manual mode. It
// accumulates emissions between flushes and converts the submission types
// cgm does not know about (monotonic_count, rate) on the way in. cgm
// counters are integral, fractional counts are carried per series until
// they add up to a whole increment.
type Aggregator struct {
	metrics *cgm.CirconusMetrics
	prev    map[string]sample
	carry   map[string]float64
	now     func() time.Time
	logger  zerolog.Logger
	sync.Mutex
}

type sample struct {
	ts    time.Time
	value float64
}

// NewAggregator creates an aggregator, debug enables cgm's own logging.
func NewAggregator(logger zerolog.Logger, debug bool) (*Aggregator, error) {
	cmc := &cgm.Config{
		Debug: debug,
		Log:   logshim{logh: logger.With().Str("pkg", "cgm").Logger()},
	}
	// put cgm into manual mode (no interval, no api key, invalid submission url)
	cmc.Interval = "0"                            // disable automatic flush
	cmc.CheckManager.Check.SubmissionURL = "none" // disable check management (create/update)

	m, err := cgm.NewCirconusMetrics(cmc)
	if err != nil {
		return nil, errors.Wrap(err, "aggregator cgm")
	}

	return &Aggregator{
		metrics: m,
		prev:    make(map[string]sample),
		carry:   make(map[string]float64),
		now:     time.Now,
		logger:  logger,
	}, nil
}

// Metric records m according to its type.
func (a *Aggregator) Metric(m Metric) {
	if math.IsNaN(m.Value) || math.IsInf(m.Value, 0) {
		a.logger.Debug().Str("metric", m.Name).Float64("value", m.Value).Msg("non-finite value, dropping")
		return
	}

	mt := a.tags(m.Tags, m.Hostname)

	switch m.Type {
	case Gauge:
		a.metrics.GaugeWithTags(m.Name, mt, m.Value)
	case Count:
		if m.Value < 0 {
			a.logger.Debug().Str("metric", m.Name).Float64("value", m.Value).Msg("negative count, dropping")
			return
		}
		a.metrics.IncrementByValueWithTags(m.Name, mt, a.whole(m, m.Value))
	case MonotonicCount:
		delta, ok := a.delta(m)
		if !ok {
			return
		}
		a.metrics.IncrementByValueWithTags(m.Name, mt, a.whole(m, delta))
	case Rate:
		now := a.now()
		a.Lock()
		key := contextKey(m)
		prev, seen := a.prev[key]
		a.prev[key] = sample{ts: now, value: m.Value}
		a.Unlock()
		if !seen {
			return // first sample primes the rate
		}
		elapsed := now.Sub(prev.ts).Seconds()
		if elapsed <= 0 || m.Value < prev.value {
			return
		}
		a.metrics.GaugeWithTags(m.Name, mt, (m.Value-prev.value)/elapsed)
	case Histogram:
		a.metrics.RecordValueWithTags(m.Name, mt, m.Value)
	default:
		a.logger.Warn().Str("metric", m.Name).Int("type", int(m.Type)).Msg("unknown metric type, dropping")
	}
}

// delta returns the increase of a monotonic counter since its previous
// sample. The first sample only primes, a decrease is a reset and is skipped.
func (a *Aggregator) delta(m Metric) (float64, bool) {
	a.Lock()
	defer a.Unlock()

	key := contextKey(m)
	prev, seen := a.prev[key]
	a.prev[key] = sample{ts: a.now(), value: m.Value}
	if !seen {
		return 0, false
	}
	if m.Value < prev.value {
		a.logger.Debug().Str("metric", m.Name).Msg("counter reset")
		return 0, false
	}
	return m.Value - prev.value, true
}

// whole adds v to the remainder carried for the series of m and returns the
// integral part of the sum.
func (a *Aggregator) whole(m Metric, v float64) uint64 {
	a.Lock()
	defer a.Unlock()

	key := contextKey(m)
	total := a.carry[key] + v
	n := math.Floor(total + 1e-9)
	if n < 0 {
		n = 0
	}
	a.carry[key] = math.Max(total-n, 0)
	return uint64(n)
}

// ServiceCheck records the status as a gauge, plus the message as text.
func (a *Aggregator) ServiceCheck(sc ServiceCheck) {
	mt := a.tags(sc.Tags, sc.Hostname)
	a.metrics.GaugeWithTags(sc.Name, mt, int(sc.Status))
	if sc.Message != "" {
		a.metrics.SetTextWithTags(sc.Name+".message", mt, sc.Message)
	}
}

// Event records the event as a text metric.
func (a *Aggregator) Event(e Event) {
	tl := append([]string{"alert_type:" + string(e.AlertType)}, e.Tags...)
	if e.SourceType != "" {
		tl = append(tl, "source_type:"+e.SourceType)
	}
	text := e.Title
	if e.Text != "" {
		text += ": " + e.Text
	}
	a.metrics.SetTextWithTags("event", a.tags(tl, e.Hostname), text)
}

// Flush returns and resets the accumulated metrics.
func (a *Aggregator) Flush() *cgm.Metrics {
	return a.metrics.FlushMetrics()
}

func (a *Aggregator) tags(tagList []string, hostname string) cgm.Tags {
	if hostname != "" {
		tagList = tags.Merge(tagList, []string{"host:" + hostname})
	}
	return tags.FromList(tagList)
}

// contextKey identifies a metric series, name plus sorted tags.
func contextKey(m Metric) string {
	tl := append([]string(nil), m.Tags...)
	sort.Strings(tl)
	return m.Name + "|" + strings.Join(tl, ",") + "|" + m.Hostname
}

// logshim is used to satisfy cgm Logger interface (avoiding ptr receiver issue)
type logshim struct {
	logh zerolog.Logger
}

func (l logshim) Printf(msgfmt string, v ...interface{}) {
	l.logh.Debug().Msg(fmt.Sprintf(msgfmt, v...))
}
