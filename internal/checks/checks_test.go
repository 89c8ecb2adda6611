// Copyright © 2017 Circonus, Inc. <support@circonus.com>
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package checks

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/circonus-labs/circonus-checks/internal/check"
	"github.com/circonus-labs/circonus-checks/internal/config"
	"github.com/circonus-labs/circonus-checks/internal/sink"
	"github.com/rs/zerolog"
)

// fake check stub

type foo struct {
	value  float64
	fail   bool
	closed bool
	deps   check.Deps
	sync.Mutex
}

func (f *foo) Collect(ctx context.Context, r *check.Reporter) error {
	if f.fail {
		return errors.New("unreachable")
	}
	r.Gauge("foo.value", f.value)
	return nil
}

func (f *foo) Close() error {
	f.Lock()
	f.closed = true
	f.Unlock()
	return nil
}

type fooOptions struct {
	Value float64 `json:"value"`
	Fail  bool    `json:"fail"`
}

// end fake check stub

func newFooRegistry(created *[]*foo) *check.Registry {
	reg := check.NewRegistry()
	reg.MustRegister("foo", func(id string, init, inst map[string]interface{}, deps check.Deps) (check.Check, error) {
		var opts fooOptions
		if err := check.Decode(inst, &opts); err != nil {
			return nil, err
		}
		f := &foo{value: opts.Value, fail: opts.Fail, deps: deps}
		if created != nil {
			*created = append(*created, f)
		}
		return f, nil
	})
	reg.MustRegister("bar", func(id string, init, inst map[string]interface{}, deps check.Deps) (check.Check, error) {
		return &foo{}, nil
	})
	return reg
}

func writeConf(t *testing.T, dir, name, data string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(data), 0600); err != nil {
		t.Fatalf("expected no error, got (%s)", err)
	}
}

func TestNew(t *testing.T) {
	t.Log("Testing New")
	zerolog.SetGlobalLevel(zerolog.Disabled)

	t.Log("\tno registry")
	{
		if _, err := New(nil, Options{Timeout: time.Second}); err == nil {
			t.Fatal("expected error")
		}
	}

	t.Log("\tinvalid timeout")
	{
		_, err := New(newFooRegistry(nil), Options{ConfDir: t.TempDir()})
		if !errors.Is(err, config.ErrInvalid) {
			t.Fatalf("expected ErrInvalid, got (%v)", err)
		}
	}

	t.Log("\tno configuration files")
	{
		c, err := New(newFooRegistry(nil), Options{ConfDir: t.TempDir(), Timeout: time.Second})
		if err != nil {
			t.Fatalf("expected no error, got (%s)", err)
		}
		if len(c.IDs()) != 0 {
			t.Fatalf("expected no instances, got %v", c.IDs())
		}
		if err := c.Run(context.Background(), ""); err != nil {
			t.Fatalf("expected no error, got (%s)", err)
		}
	}

	t.Log("\tinstances")
	{
		dir := t.TempDir()
		writeConf(t, dir, "foo.yaml", "init_config: {}\ninstances:\n  - value: 1\n  - name: second\n    value: 2\n    tags: [\"role:db\"]\n")
		writeConf(t, dir, "bar.json", `{"instances":[{}]}`)

		c, err := New(newFooRegistry(nil), Options{ConfDir: dir, Timeout: time.Second})
		if err != nil {
			t.Fatalf("expected no error, got (%s)", err)
		}
		ids := c.IDs()
		expect := []string{"bar:0", "foo:0", "foo:second"}
		if len(ids) != len(expect) {
			t.Fatalf("expected %v got %v", expect, ids)
		}
		for i := range expect {
			if ids[i] != expect[i] {
				t.Fatalf("expected %v got %v", expect, ids)
			}
		}
	}

	t.Log("\tenabled restricts types")
	{
		dir := t.TempDir()
		writeConf(t, dir, "foo.yaml", "instances:\n  - value: 1\n")
		writeConf(t, dir, "bar.json", `{"instances":[{}]}`)

		c, err := New(newFooRegistry(nil), Options{ConfDir: dir, Timeout: time.Second, Enabled: []string{"bar"}})
		if err != nil {
			t.Fatalf("expected no error, got (%s)", err)
		}
		if ids := c.IDs(); len(ids) != 1 || ids[0] != "bar:0" {
			t.Fatalf("unexpected ids %v", ids)
		}
	}

	t.Log("\tunknown enabled type")
	{
		_, err := New(newFooRegistry(nil), Options{ConfDir: t.TempDir(), Timeout: time.Second, Enabled: []string{"nope"}})
		if !errors.Is(err, check.ErrUnknownType) {
			t.Fatalf("expected ErrUnknownType, got (%v)", err)
		}
	}

	t.Log("\tinvalid instance option")
	{
		dir := t.TempDir()
		writeConf(t, dir, "foo.json", `{"instances":[{"value":"lots"}]}`)
		_, err := New(newFooRegistry(nil), Options{ConfDir: dir, Timeout: time.Second})
		var ie *config.InvalidError
		if !errors.As(err, &ie) || ie.Key != "value" {
			t.Fatalf("expected InvalidError for value, got (%v)", err)
		}
	}

	t.Log("\tinstances not a list")
	{
		dir := t.TempDir()
		writeConf(t, dir, "foo.json", `{"instances":{"value":1}}`)
		if _, err := New(newFooRegistry(nil), Options{ConfDir: dir, Timeout: time.Second}); !errors.Is(err, config.ErrInvalid) {
			t.Fatalf("expected ErrInvalid, got (%v)", err)
		}
	}
}

func TestRun(t *testing.T) {
	t.Log("Testing Run")
	zerolog.SetGlobalLevel(zerolog.Disabled)

	dir := t.TempDir()
	writeConf(t, dir, "foo.json", `{"instances":[{"value":3},{"name":"down","fail":true}]}`)
	writeConf(t, dir, "bar.json", `{"instances":[{}]}`)

	var created []*foo
	c, err := New(newFooRegistry(&created), Options{ConfDir: dir, Timeout: time.Second, BaseTags: []string{"env:test"}})
	if err != nil {
		t.Fatalf("expected no error, got (%s)", err)
	}

	t.Log("\tall")
	{
		rec := sink.NewRecorder()
		err := c.Run(context.Background(), "", rec)
		if err == nil {
			t.Fatal("expected error from failing instance")
		}
		if len(rec.Metrics("foo.value")) != 2 {
			t.Fatalf("expected 2 foo.value metrics, got %d", len(rec.Metrics("foo.value")))
		}
		sc := rec.ServiceChecks("foo.can_connect")
		if len(sc) != 2 {
			t.Fatalf("expected 2 service checks, got %d", len(sc))
		}
		crit := 0
		for _, s := range sc {
			if s.Status == sink.Critical {
				crit++
			}
		}
		if crit != 1 {
			t.Fatalf("expected 1 CRITICAL, got %d", crit)
		}
		if m := c.Flush(); len(*m) == 0 {
			t.Fatal("expected aggregated metrics")
		}
	}

	t.Log("\tby id")
	{
		rec := sink.NewRecorder()
		if err := c.Run(context.Background(), "foo:0", rec); err != nil {
			t.Fatalf("expected no error, got (%s)", err)
		}
		if len(rec.ServiceChecks()) != 1 {
			t.Fatalf("expected 1 service check, got %d", len(rec.ServiceChecks()))
		}
	}

	t.Log("\tby type")
	{
		rec := sink.NewRecorder()
		_ = c.Run(context.Background(), "foo", rec)
		if len(rec.ServiceChecks()) != 2 {
			t.Fatalf("expected 2 service checks, got %d", len(rec.ServiceChecks()))
		}
	}

	t.Log("\tunknown id")
	{
		if err := c.Run(context.Background(), "nope"); !errors.Is(err, ErrUnknownInstance) {
			t.Fatalf("expected ErrUnknownInstance, got (%v)", err)
		}
		if c.IsCheck("nope") || !c.IsCheck("bar") || c.IsCheck("") {
			t.Fatal("unexpected IsCheck")
		}
	}

	t.Log("\tinventory")
	{
		inv := c.Inventory()
		if len(inv) != 3 {
			t.Fatalf("expected 3 entries, got %d", len(inv))
		}
		if inv[1].ID != "foo:0" || inv[1].Runs != 3 {
			t.Fatalf("unexpected %#v", inv[1])
		}
		if inv[2].ID != "foo:down" || inv[2].Errors == 0 {
			t.Fatalf("unexpected %#v", inv[2])
		}
	}

	t.Log("\tshared deps")
	{
		if len(created) != 2 {
			t.Fatalf("expected 2 foo instances, got %d", len(created))
		}
		if created[0].deps.AccessDenied == nil || created[0].deps.AccessDenied != created[1].deps.AccessDenied {
			t.Fatal("expected one shared access denied cache")
		}
		_ = created[0].deps.AccessDenied.Set("1", true, time.Minute)
	}

	t.Log("\tclose")
	{
		if err := c.Close(); err != nil {
			t.Fatalf("expected no error, got (%s)", err)
		}
		for _, f := range created {
			if !f.closed {
				t.Fatal("expected instance closed")
			}
		}
		if created[0].deps.AccessDenied.Len() != 0 {
			t.Fatal("expected shared cache cleared")
		}
		if err := c.Run(context.Background(), "foo:0"); !errors.Is(err, check.ErrTornDown) {
			t.Fatalf("expected ErrTornDown, got (%v)", err)
		}
	}
}
