// Copyright © 2017 Circonus, Inc. <support@circonus.com>
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package server

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/circonus-labs/circonus-checks/internal/check"
	"github.com/circonus-labs/circonus-checks/internal/checks"
	"github.com/circonus-labs/circonus-checks/internal/config"
	cgm "github.com/circonus-labs/circonus-gometrics/v3"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

type gauge struct {
	value float64
}

func (g *gauge) Collect(ctx context.Context, r *check.Reporter) error {
	r.Gauge("gauge.value", g.value)
	return nil
}

func (g *gauge) Close() error { return nil }

func newChecks(t *testing.T) *checks.Checks {
	t.Helper()
	reg := check.NewRegistry()
	reg.MustRegister("gauge", func(id string, init, inst map[string]interface{}, deps check.Deps) (check.Check, error) {
		var opts struct {
			Value float64 `json:"value"`
		}
		if err := check.Decode(inst, &opts); err != nil {
			return nil, err
		}
		return &gauge{value: opts.Value}, nil
	})

	dir := t.TempDir()
	conf := `{"instances":[{"name":"one","value":1,"tags":["inst:one"]},{"name":"two","value":2,"tags":["inst:two"]}]}`
	if err := os.WriteFile(filepath.Join(dir, "gauge.json"), []byte(conf), 0600); err != nil {
		t.Fatalf("expected no error, got (%s)", err)
	}
	c, err := checks.New(reg, checks.Options{ConfDir: dir, Timeout: time.Second})
	if err != nil {
		t.Fatalf("expected no error, got (%s)", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func newServer(t *testing.T) *Server {
	t.Helper()
	viper.Reset()
	viper.Set(config.KeyListen, []string{"127.0.0.1:0"})
	s, err := New(context.Background(), newChecks(t))
	if err != nil {
		t.Fatalf("expected no error, got (%s)", err)
	}
	return s
}

func decode(t *testing.T, resp *http.Response) cgm.Metrics {
	t.Helper()
	var body io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			t.Fatalf("expected no error, got (%s)", err)
		}
		body = gz
	}
	var m cgm.Metrics
	if err := json.NewDecoder(body).Decode(&m); err != nil {
		t.Fatalf("expected no error, got (%s)", err)
	}
	return m
}

func countPrefix(m cgm.Metrics, prefix string) int {
	n := 0
	for name := range m {
		if strings.HasPrefix(name, prefix) {
			n++
		}
	}
	return n
}

func TestNew(t *testing.T) {
	t.Log("Testing New")
	zerolog.SetGlobalLevel(zerolog.Disabled)

	t.Log("\tnil checks")
	{
		if _, err := New(context.Background(), nil); err == nil {
			t.Fatal("expected error")
		}
	}

	t.Log("\tbad listen")
	{
		viper.Reset()
		viper.Set(config.KeyListen, []string{"127.0.0.1:abc"})
		if _, err := New(context.Background(), newChecks(t)); err == nil {
			t.Fatal("expected error")
		}
	}

	t.Log("\tdefault listen")
	{
		viper.Reset()
		s, err := New(context.Background(), newChecks(t))
		if err != nil {
			t.Fatalf("expected no error, got (%s)", err)
		}
		if len(s.svrHTTP) != 1 || s.svrHTTP[0].address.Port != 2609 {
			t.Fatalf("unexpected servers %v", s.svrHTTP)
		}
	}
}

func TestRouter(t *testing.T) {
	t.Log("Testing router")
	zerolog.SetGlobalLevel(zerolog.Disabled)

	s := newServer(t)

	tt := []struct {
		method string
		path   string
		code   int
	}{
		{"GET", "/", http.StatusOK},
		{"GET", "/run", http.StatusOK},
		{"GET", "/run/gauge", http.StatusOK},
		{"GET", "/run/gauge:one", http.StatusOK},
		{"GET", "/run/foo", http.StatusNotFound},
		{"GET", "/inventory", http.StatusOK},
		{"GET", "/stats", http.StatusOK},
		{"GET", "/prom", http.StatusOK},
		{"GET", "/write/foo", http.StatusNotFound},
		{"PUT", "/run", http.StatusMethodNotAllowed},
	}

	for _, tst := range tt {
		t.Logf("\t%s %s -> %d", tst.method, tst.path, tst.code)
		req := httptest.NewRequest(tst.method, tst.path, nil)
		w := httptest.NewRecorder()
		s.router(w, req)
		if w.Result().StatusCode != tst.code {
			t.Fatalf("expected %d, got %d", tst.code, w.Result().StatusCode)
		}
	}
}

func TestRun(t *testing.T) {
	t.Log("Testing run")
	zerolog.SetGlobalLevel(zerolog.Disabled)

	s := newServer(t)

	t.Log("\tall checks plus agent stats")
	{
		w := httptest.NewRecorder()
		s.run(w, httptest.NewRequest("GET", "/", nil))
		m := decode(t, w.Result())
		if countPrefix(m, "gauge.value") != 2 {
			t.Fatalf("expected 2 gauge.value, got %v", m)
		}
		if countPrefix(m, "gauge.can_connect") != 2 {
			t.Fatalf("expected 2 service checks, got %v", m)
		}
		if countPrefix(m, "agent_") == 0 {
			t.Fatal("expected agent stats")
		}
	}

	t.Log("\tsingle instance, gzip")
	{
		req := httptest.NewRequest("GET", "/run/gauge:two", nil)
		req.Header.Set("Accept-Encoding", "gzip")
		w := httptest.NewRecorder()
		s.run(w, req)
		resp := w.Result()
		if resp.Header.Get("Content-Encoding") != "gzip" {
			t.Fatal("expected gzip response")
		}
		m := decode(t, resp)
		if countPrefix(m, "gauge.value") != 1 || countPrefix(m, "agent_") != 0 {
			t.Fatalf("unexpected metrics %v", m)
		}
	}
}

func TestInventory(t *testing.T) {
	t.Log("Testing inventory")
	zerolog.SetGlobalLevel(zerolog.Disabled)

	s := newServer(t)
	s.run(httptest.NewRecorder(), httptest.NewRequest("GET", "/run/gauge:one", nil))

	w := httptest.NewRecorder()
	s.inventory(w, httptest.NewRequest("GET", "/inventory", nil))

	var inv []check.InventoryStats
	if err := json.NewDecoder(w.Result().Body).Decode(&inv); err != nil {
		t.Fatalf("expected no error, got (%s)", err)
	}
	if len(inv) != 2 {
		t.Fatalf("expected 2 instances, got %v", inv)
	}
	if inv[0].ID != "gauge:one" || inv[0].Runs != 1 || inv[1].Runs != 0 {
		t.Fatalf("unexpected inventory %v", inv)
	}
}

func TestPromOutput(t *testing.T) {
	t.Log("Testing prom output")
	zerolog.SetGlobalLevel(zerolog.Disabled)

	s := newServer(t)
	s.run(httptest.NewRecorder(), httptest.NewRequest("GET", "/run/gauge:one", nil))

	w := httptest.NewRecorder()
	s.promOutput(w, httptest.NewRequest("GET", "/prom", nil))
	body, _ := io.ReadAll(w.Result().Body)
	if !strings.Contains(string(body), "gauge.value") {
		t.Fatalf("expected gauge.value in\n%s", body)
	}
}

func TestStartStop(t *testing.T) {
	t.Log("Testing Start/Stop")
	zerolog.SetGlobalLevel(zerolog.Disabled)

	viper.Reset()
	viper.Set(config.KeyListen, []string{"127.0.0.1:0"})
	ctx, cancel := context.WithCancel(context.Background())
	s, err := New(ctx, newChecks(t))
	if err != nil {
		t.Fatalf("expected no error, got (%s)", err)
	}

	done := make(chan error, 1)
	go func() { done <- s.Start() }()
	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected no error, got (%s)", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("expected server to stop")
	}
}
