// Copyright © 2017 Circonus, Inc. <support@circonus.com>
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/circonus-labs/circonus-checks/internal/check"
	"github.com/circonus-labs/circonus-checks/internal/checks"
	"github.com/circonus-labs/circonus-checks/internal/sink"
	"github.com/rs/zerolog"
)

type gauge struct {
	value float64
}

func (g *gauge) Collect(ctx context.Context, r *check.Reporter) error {
	if g.value < 0 {
		return errors.New("negative")
	}
	r.Gauge("gauge.value", g.value)
	return nil
}

func (g *gauge) Close() error { return nil }

func newChecks(t *testing.T, conf string) *checks.Checks {
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

func TestRunChecks(t *testing.T) {
	t.Log("Testing runChecks")
	zerolog.SetGlobalLevel(zerolog.Disabled)

	c := newChecks(t, `{"instances":[{"name":"one","value":1,"tags":["inst:one"]},{"name":"bad","value":-1}]}`)

	t.Log("\tsingle instance")
	{
		var buf bytes.Buffer
		if err := runChecks(context.Background(), c, "gauge:one", &buf); err != nil {
			t.Fatalf("expected no error, got (%s)", err)
		}
		var rec sink.Recording
		if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
			t.Fatalf("expected no error, got (%s)", err)
		}
		if len(rec.Metrics) != 1 || rec.Metrics[0].Name != "gauge.value" || rec.Metrics[0].Value != 1 {
			t.Fatalf("unexpected metrics %v", rec.Metrics)
		}
	}

	t.Log("\tfailing instance still prints")
	{
		var buf bytes.Buffer
		err := runChecks(context.Background(), c, "", &buf)
		if err == nil {
			t.Fatal("expected error")
		}
		var rec sink.Recording
		if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
			t.Fatalf("expected no error, got (%s)", err)
		}
		if len(rec.Metrics) != 1 {
			t.Fatalf("expected 1 metric, got %v", rec.Metrics)
		}
	}

	t.Log("\tunknown id")
	{
		var buf bytes.Buffer
		err := runChecks(context.Background(), c, "gauge:missing", &buf)
		if !errors.Is(err, checks.ErrUnknownInstance) {
			t.Fatalf("expected unknown instance, got (%v)", err)
		}
		if buf.Len() != 0 {
			t.Fatalf("expected no output, got %q", buf.String())
		}
	}
}
