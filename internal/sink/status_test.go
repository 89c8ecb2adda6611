// Copyright © 2017 Circonus, Inc. <support@circonus.com>
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package sink

import (
	"encoding/json"
	"testing"
)

func TestParseStatus(t *testing.T) {
	t.Log("Testing ParseStatus")

	tt := []struct {
		in          string
		expect      Status
		shouldError bool
	}{
		{"ok", OK, false},
		{"WARNING", Warning, false},
		{"crit", Critical, false},
		{"Unknown", Unknown, false},
		{"bogus", Unknown, true},
	}

	for _, tst := range tt {
		t.Logf("\t%s", tst.in)
		s, err := ParseStatus(tst.in)
		if tst.shouldError && err == nil {
			t.Fatal("expected error")
		}
		if !tst.shouldError && err != nil {
			t.Fatalf("expected no error, got (%s)", err)
		}
		if s != tst.expect {
			t.Fatalf("expected (%s) got (%s)", tst.expect, s)
		}
	}
}

func TestWorse(t *testing.T) {
	t.Log("Testing Worse")

	tt := []struct {
		a, b, expect Status
	}{
		{OK, Unknown, Unknown},
		{Unknown, Warning, Warning},
		{Warning, Critical, Critical},
		{Critical, OK, Critical},
		{Critical, Unknown, Critical},
		{OK, OK, OK},
	}

	for _, tst := range tt {
		if got := Worse(tst.a, tst.b); got != tst.expect {
			t.Fatalf("Worse(%s,%s) expected (%s) got (%s)", tst.a, tst.b, tst.expect, got)
		}
	}
}

func TestStatusMap(t *testing.T) {
	t.Log("Testing StatusMap")

	sm := NewStatusMap(map[string]Status{
		"Running": OK,
		"stopped": Critical,
	})

	if s := sm.Lookup("RUNNING"); s != OK {
		t.Fatalf("expected OK got (%s)", s)
	}
	if s := sm.Lookup(" stopped "); s != Critical {
		t.Fatalf("expected CRITICAL got (%s)", s)
	}
	if s := sm.Lookup("paused"); s != Unknown {
		t.Fatalf("expected UNKNOWN fallback got (%s)", s)
	}
}

func TestParseType(t *testing.T) {
	t.Log("Testing ParseType")

	for typ, name := range typeNames {
		got, err := ParseType(name)
		if err != nil {
			t.Fatalf("expected no error, got (%s)", err)
		}
		if got != typ {
			t.Fatalf("expected (%s) got (%s)", typ, got)
		}
	}

	if _, err := ParseType("summary"); err == nil {
		t.Fatal("expected error")
	}
}

func TestRecordingJSON(t *testing.T) {
	t.Log("Testing Recording json")

	in := Recording{
		Metrics:       []Metric{{Name: "m", Type: MonotonicCount, Value: 1, Tags: []string{"a:b"}}},
		ServiceChecks: []ServiceCheck{{Name: "sc", Status: Warning}},
	}
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("expected no error, got (%s)", err)
	}
	var out Recording
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("expected no error, got (%s)", err)
	}
	if out.Metrics[0].Type != MonotonicCount || out.ServiceChecks[0].Status != Warning {
		t.Fatalf("unexpected %v", out)
	}

	t.Log("	unknown names")
	{
		if err := json.Unmarshal([]byte(`{"metrics":[{"type":"bogus"}]}`), &out); err == nil {
			t.Fatal("expected error")
		}
	}
}
