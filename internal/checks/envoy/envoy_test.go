// Copyright © 2017 Circonus, Inc. <support@circonus.com>
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package envoy

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/circonus-labs/circonus-checks/internal/check"
	"github.com/circonus-labs/circonus-checks/internal/config"
	"github.com/circonus-labs/circonus-checks/internal/sink"
	"github.com/rs/zerolog"
)

var statsData = `cluster.service_a.upstream_cx_total: 12
cluster.service_a.upstream_cx_active: 3
cluster.service_a.upstream_rq_time: P0(nan,1) P25(nan,2.5) P50(4,5) P75(nan,6) P90(nan,7) P95(nan,8) P99(9,9) P99.5(nan,9) P99.9(nan,10) P100(11,12)
cluster.service_b.upstream_rq_time: No recorded values
http.admin.downstream_rq_total: 100
server.uptime: 3600
some.unknown.stat: 1
server.version: abc
`

func newServer(t *testing.T, status int, user string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user != "" {
			if u, _, ok := r.BasicAuth(); !ok || u != user {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
		}
		if r.URL.Path != "/stats" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(status)
		fmt.Fprint(w, statsData)
	}))
}

func run(t *testing.T, inst map[string]interface{}) (*sink.Recorder, error) {
	t.Helper()
	c, err := New("envoy", nil, inst, check.Deps{Logger: zerolog.Nop()})
	if err != nil {
		t.Fatalf("expected no error, got (%s)", err)
	}
	rec := sink.NewRecorder()
	r := check.NewReporter(rec, serviceCheckName, nil, zerolog.Nop())
	err = c.Collect(context.Background(), r)
	r.Finish(err)
	return rec, err
}

func TestNew(t *testing.T) {
	t.Log("Testing New")
	zerolog.SetGlobalLevel(zerolog.Disabled)

	tt := []struct {
		desc string
		inst map[string]interface{}
		key  string
	}{
		{"no url", map[string]interface{}{}, "stats_url"},
		{"relative url", map[string]interface{}{"stats_url": "/stats"}, "stats_url"},
		{"bad include", map[string]interface{}{"stats_url": "http://localhost/stats", "included_metrics": []interface{}{"("}}, "included_metrics[0]"},
		{"bad timeout", map[string]interface{}{"stats_url": "http://localhost/stats", "timeout": "soon"}, "timeout"},
	}

	for _, tst := range tt {
		t.Logf("\t%s", tst.desc)
		_, err := New("envoy", nil, tst.inst, check.Deps{Logger: zerolog.Nop()})
		var ie *config.InvalidError
		if !errors.As(err, &ie) {
			t.Fatalf("expected InvalidError, got (%v)", err)
		}
		if ie.Key != tst.key {
			t.Fatalf("expected key (%s) got (%s)", tst.key, ie.Key)
		}
	}
}

func TestCollect(t *testing.T) {
	t.Log("Testing Collect")
	zerolog.SetGlobalLevel(zerolog.Disabled)

	srv := newServer(t, http.StatusOK, "admin")
	defer srv.Close()

	rec, err := run(t, map[string]interface{}{"stats_url": srv.URL + "/stats", "username": "admin", "password": "x"})
	if err != nil {
		t.Fatalf("expected no error, got (%s)", err)
	}

	t.Log("\tcounters and gauges")
	{
		cx := rec.Metrics("envoy.cluster.upstream_cx_total")
		if len(cx) != 1 || cx[0].Type != sink.MonotonicCount || cx[0].Value != 12 {
			t.Fatalf("unexpected %v", cx)
		}
		want := map[string]bool{"cluster_name:service_a": true, "envoy_cluster:service_a": true}
		for _, tag := range cx[0].Tags {
			delete(want, tag)
		}
		if len(want) != 0 {
			t.Fatalf("missing tags %v in %v", want, cx[0].Tags)
		}
		if up := rec.Metrics("envoy.server.uptime"); len(up) != 1 || up[0].Value != 3600 {
			t.Fatalf("unexpected %v", up)
		}
		if rq := rec.Metrics("envoy.http.downstream_rq_total"); len(rq) != 1 {
			t.Fatalf("unexpected %v", rq)
		}
		if len(rec.Metrics("envoy.server.version")) != 0 {
			t.Fatal("expected non-numeric value skipped")
		}
	}

	t.Log("\thistogram")
	{
		if p50 := rec.Metrics("envoy.cluster.upstream_rq_time.50percentile"); len(p50) != 1 || p50[0].Value != 4 {
			t.Fatalf("unexpected %v", p50)
		}
		if p100 := rec.Metrics("envoy.cluster.upstream_rq_time.100percentile"); len(p100) != 1 || p100[0].Value != 11 {
			t.Fatalf("unexpected %v", p100)
		}
		if p25 := rec.Metrics("envoy.cluster.upstream_rq_time.25percentile"); len(p25) != 0 {
			t.Fatalf("expected nan skipped, got %v", p25)
		}
	}

	t.Log("\tservice check")
	{
		scs := rec.ServiceChecks(serviceCheckName)
		if len(scs) != 1 || scs[0].Status != sink.OK {
			t.Fatalf("expected one OK, got %v", scs)
		}
		if scs[0].Tags[0] != "endpoint:"+srv.URL+"/stats" {
			t.Fatalf("unexpected tags %v", scs[0].Tags)
		}
	}
}

func TestCollectFilters(t *testing.T) {
	t.Log("Testing Collect filters")
	zerolog.SetGlobalLevel(zerolog.Disabled)

	srv := newServer(t, http.StatusOK, "")
	defer srv.Close()

	rec, err := run(t, map[string]interface{}{
		"stats_url":                  srv.URL + "/stats",
		"included_metrics":           []interface{}{`^cluster\.`},
		"excluded_metrics":           []interface{}{`upstream_rq_time`},
		"disable_legacy_cluster_tag": true,
	})
	if err != nil {
		t.Fatalf("expected no error, got (%s)", err)
	}
	if len(rec.Metrics("envoy.server.uptime")) != 0 {
		t.Fatal("expected server stats filtered")
	}
	if len(rec.Metrics("envoy.cluster.upstream_rq_time.50percentile")) != 0 {
		t.Fatal("expected excluded histogram")
	}
	cx := rec.Metrics("envoy.cluster.upstream_cx_total")
	if len(cx) != 1 {
		t.Fatalf("expected cluster stat, got %v", cx)
	}
	for _, tag := range cx[0].Tags {
		if tag == "cluster_name:service_a" {
			t.Fatal("expected legacy tag disabled")
		}
	}
}

func TestCollectFailures(t *testing.T) {
	t.Log("Testing Collect failures")
	zerolog.SetGlobalLevel(zerolog.Disabled)

	t.Log("\tunauthorized")
	{
		srv := newServer(t, http.StatusOK, "admin")
		defer srv.Close()
		rec, err := run(t, map[string]interface{}{"stats_url": srv.URL + "/stats"})
		if !check.IsConnect(err) {
			t.Fatalf("expected connect error, got (%v)", err)
		}
		scs := rec.ServiceChecks(serviceCheckName)
		if len(scs) != 1 || scs[0].Status != sink.Critical {
			t.Fatalf("expected one CRITICAL, got %v", scs)
		}
		if len(rec.Metrics()) != 0 {
			t.Fatal("expected no metrics")
		}
	}

	t.Log("\tunreachable")
	{
		srv := newServer(t, http.StatusOK, "")
		url := srv.URL + "/stats"
		srv.Close()
		rec, err := run(t, map[string]interface{}{"stats_url": url, "timeout": "1s"})
		if err == nil {
			t.Fatal("expected error")
		}
		if scs := rec.ServiceChecks(serviceCheckName); len(scs) != 1 || scs[0].Status != sink.Critical {
			t.Fatalf("expected one CRITICAL, got %v", scs)
		}
	}
}
