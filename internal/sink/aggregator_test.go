// Copyright © 2017 Circonus, Inc. <support@circonus.com>
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package sink

import (
	"fmt"
	"math"
	"strings"
	"testing"
	"time"

	cgm "github.com/circonus-labs/circonus-gometrics/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func findMetric(m *cgm.Metrics, name string) (cgm.Metric, bool) {
	for k, v := range *m {
		if k == name || strings.HasPrefix(k, name+"|ST[") {
			return v, true
		}
	}
	return cgm.Metric{}, false
}

func newTestAggregator(t *testing.T) *Aggregator {
	t.Helper()
	a, err := NewAggregator(log.Logger, false)
	if err != nil {
		t.Fatalf("expected no error, got (%s)", err)
	}
	return a
}

func TestAggregatorGauge(t *testing.T) {
	t.Log("Testing Aggregator gauge")
	zerolog.SetGlobalLevel(zerolog.Disabled)

	a := newTestAggregator(t)
	a.Metric(Metric{Name: "foo", Type: Gauge, Value: 1.5, Tags: []string{"a:b"}})
	a.Metric(Metric{Name: "nan", Type: Gauge, Value: math.NaN()})

	m := a.Flush()
	if _, ok := findMetric(m, "foo"); !ok {
		t.Fatalf("expected foo in (%#v)", *m)
	}
	if _, ok := findMetric(m, "nan"); ok {
		t.Fatal("expected NaN gauge to be dropped")
	}
}

func TestAggregatorCount(t *testing.T) {
	t.Log("Testing Aggregator count")
	zerolog.SetGlobalLevel(zerolog.Disabled)

	a := newTestAggregator(t)
	a.Metric(Metric{Name: "c", Type: Count, Value: 2})
	a.Metric(Metric{Name: "c", Type: Count, Value: 3})
	a.Metric(Metric{Name: "neg", Type: Count, Value: -1})

	m := a.Flush()
	c, ok := findMetric(m, "c")
	if !ok {
		t.Fatalf("expected c in (%#v)", *m)
	}
	if fmt.Sprint(c.Value) != "5" {
		t.Fatalf("expected 5 got (%v)", c.Value)
	}
	if _, ok := findMetric(m, "neg"); ok {
		t.Fatal("expected negative count to be dropped")
	}
}

func TestAggregatorMonotonicCount(t *testing.T) {
	t.Log("Testing Aggregator monotonic_count")
	zerolog.SetGlobalLevel(zerolog.Disabled)

	a := newTestAggregator(t)

	t.Log("\tfirst sample primes")
	{
		a.Metric(Metric{Name: "mc", Type: MonotonicCount, Value: 10})
		m := a.Flush()
		if _, ok := findMetric(m, "mc"); ok {
			t.Fatal("expected no emission on first sample")
		}
	}

	t.Log("\tdelta")
	{
		a.Metric(Metric{Name: "mc", Type: MonotonicCount, Value: 15})
		m := a.Flush()
		v, ok := findMetric(m, "mc")
		if !ok {
			t.Fatal("expected mc")
		}
		if fmt.Sprint(v.Value) != "5" {
			t.Fatalf("expected 5 got (%v)", v.Value)
		}
	}

	t.Log("\treset skipped")
	{
		a.Metric(Metric{Name: "mc", Type: MonotonicCount, Value: 3})
		m := a.Flush()
		if _, ok := findMetric(m, "mc"); ok {
			t.Fatal("expected no emission after reset")
		}
	}

	t.Log("\tseries are independent")
	{
		a.Metric(Metric{Name: "mc", Type: MonotonicCount, Value: 100, Tags: []string{"x:y"}})
		a.Metric(Metric{Name: "mc", Type: MonotonicCount, Value: 4})
		m := a.Flush()
		v, ok := findMetric(m, "mc")
		if !ok {
			t.Fatal("expected mc")
		}
		if fmt.Sprint(v.Value) != "1" {
			t.Fatalf("expected 1 got (%v)", v.Value)
		}
	}
}

func TestAggregatorFractionalCount(t *testing.T) {
	t.Log("Testing Aggregator fractional counts")
	zerolog.SetGlobalLevel(zerolog.Disabled)

	a := newTestAggregator(t)

	t.Log("\tcount remainders carried")
	{
		a.Metric(Metric{Name: "c", Type: Count, Value: 0.5})
		a.Metric(Metric{Name: "c", Type: Count, Value: 0.5})
		a.Metric(Metric{Name: "c", Type: Count, Value: 1.25})
		m := a.Flush()
		c, ok := findMetric(m, "c")
		if !ok {
			t.Fatalf("expected c in (%#v)", *m)
		}
		if fmt.Sprint(c.Value) != "2" {
			t.Fatalf("expected 2 got (%v)", c.Value)
		}

		a.Metric(Metric{Name: "c", Type: Count, Value: 0.75})
		m = a.Flush()
		c, _ = findMetric(m, "c")
		if fmt.Sprint(c.Value) != "1" {
			t.Fatalf("expected 1 got (%v)", c.Value)
		}
	}

	t.Log("\ttenths add up")
	{
		for i := 0; i < 10; i++ {
			a.Metric(Metric{Name: "tenths", Type: Count, Value: 0.1})
		}
		m := a.Flush()
		c, _ := findMetric(m, "tenths")
		if fmt.Sprint(c.Value) != "1" {
			t.Fatalf("expected 1 got (%v)", c.Value)
		}
	}

	t.Log("\tmonotonic deltas carried")
	{
		a.Metric(Metric{Name: "mc", Type: MonotonicCount, Value: 10})
		a.Metric(Metric{Name: "mc", Type: MonotonicCount, Value: 10.5})
		_ = a.Flush()
		a.Metric(Metric{Name: "mc", Type: MonotonicCount, Value: 11.25})
		m := a.Flush()
		v, ok := findMetric(m, "mc")
		if !ok {
			t.Fatal("expected mc")
		}
		if fmt.Sprint(v.Value) != "1" {
			t.Fatalf("expected 1 got (%v)", v.Value)
		}
	}
}

func TestAggregatorRate(t *testing.T) {
	t.Log("Testing Aggregator rate")
	zerolog.SetGlobalLevel(zerolog.Disabled)

	a := newTestAggregator(t)
	now := time.Unix(1000, 0)
	a.now = func() time.Time { return now }

	a.Metric(Metric{Name: "r", Type: Rate, Value: 100})
	if _, ok := findMetric(a.Flush(), "r"); ok {
		t.Fatal("expected no emission on first sample")
	}

	now = now.Add(10 * time.Second)
	a.Metric(Metric{Name: "r", Type: Rate, Value: 150})
	v, ok := findMetric(a.Flush(), "r")
	if !ok {
		t.Fatal("expected r")
	}
	if fmt.Sprint(v.Value) != "5" {
		t.Fatalf("expected 5 got (%v)", v.Value)
	}
}

func TestAggregatorServiceCheck(t *testing.T) {
	t.Log("Testing Aggregator service check")
	zerolog.SetGlobalLevel(zerolog.Disabled)

	a := newTestAggregator(t)
	a.ServiceCheck(ServiceCheck{Name: "mysql.can_connect", Status: Critical, Message: "refused"})
	a.Event(Event{Title: "restart", AlertType: AlertWarning})

	m := a.Flush()
	v, ok := findMetric(m, "mysql.can_connect")
	if !ok {
		t.Fatal("expected status gauge")
	}
	if fmt.Sprint(v.Value) != "2" {
		t.Fatalf("expected 2 got (%v)", v.Value)
	}
	if _, ok := findMetric(m, "mysql.can_connect.message"); !ok {
		t.Fatal("expected message text")
	}
	if _, ok := findMetric(m, "event"); !ok {
		t.Fatal("expected event text")
	}
}
