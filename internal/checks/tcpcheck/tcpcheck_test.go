// Copyright © 2017 Circonus, Inc. <support@circonus.com>
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package tcpcheck

import (
	"context"
	"errors"
	"net"
	"strconv"
	"testing"

	"github.com/circonus-labs/circonus-checks/internal/check"
	"github.com/circonus-labs/circonus-checks/internal/config"
	"github.com/circonus-labs/circonus-checks/internal/sink"
	"github.com/rs/zerolog"
)

type fakeResolver struct {
	addrs   []string
	err     error
	lookups int
}

func (f *fakeResolver) LookupHost(ctx context.Context, host string) ([]string, error) {
	f.lookups++
	return f.addrs, f.err
}

func listen(t *testing.T) (string, int) {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("expected no error, got (%s)", err)
	}
	t.Cleanup(func() { l.Close() })
	go func() {
		for {
			conn, err := l.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()
	addr := l.Addr().(*net.TCPAddr)
	return addr.IP.String(), addr.Port
}

func closedPort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("expected no error, got (%s)", err)
	}
	port := l.Addr().(*net.TCPAddr).Port
	l.Close()
	return port
}

func newCheck(t *testing.T, inst map[string]interface{}) *TCP {
	t.Helper()
	c, err := New("tcp", nil, inst, check.Deps{Logger: zerolog.Nop()})
	if err != nil {
		t.Fatalf("expected no error, got (%s)", err)
	}
	return c.(*TCP)
}

func collect(c *TCP) (*sink.Recorder, error) {
	rec := sink.NewRecorder()
	r := check.NewReporter(rec, c.ServiceCheckName(), nil, zerolog.Nop())
	err := c.Collect(context.Background(), r)
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
		{"no host", map[string]interface{}{"port": 80}, "host"},
		{"no port", map[string]interface{}{"host": "localhost"}, "port"},
		{"bad port", map[string]interface{}{"host": "localhost", "port": 70000}, "port"},
	}

	for _, tst := range tt {
		t.Logf("\t%s", tst.desc)
		_, err := New("tcp", nil, tst.inst, check.Deps{Logger: zerolog.Nop()})
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

	host, port := listen(t)

	t.Log("\tport open")
	{
		c := newCheck(t, map[string]interface{}{"host": host, "port": port, "collect_response_time": true, "name": "local"})
		rec, err := collect(c)
		if err != nil {
			t.Fatalf("expected no error, got (%s)", err)
		}
		scs := rec.ServiceChecks(serviceCheckName)
		if len(scs) != 1 || scs[0].Status != sink.OK {
			t.Fatalf("expected one OK, got %v", scs)
		}
		if ms := rec.Metrics("network.tcp.can_connect"); len(ms) != 1 || ms[0].Value != 1 {
			t.Fatalf("unexpected %v", ms)
		}
		rt := rec.Metrics("network.tcp.response_time")
		if len(rt) != 1 || rt[0].Value < 0 {
			t.Fatalf("unexpected %v", rt)
		}
		want := map[string]bool{"address:" + host: true, "instance:local": true, "port:" + strconv.Itoa(port): true, "target_host:" + host: true, "url:" + net.JoinHostPort(host, strconv.Itoa(port)): true}
		for _, tag := range rt[0].Tags {
			if !want[tag] {
				t.Fatalf("unexpected tag %s", tag)
			}
		}
	}

	t.Log("\tport closed")
	{
		c := newCheck(t, map[string]interface{}{"host": "127.0.0.1", "port": closedPort(t)})
		rec, err := collect(c)
		if err != nil {
			t.Fatalf("expected no error, got (%s)", err)
		}
		scs := rec.ServiceChecks(serviceCheckName)
		if len(scs) != 1 || scs[0].Status != sink.Critical || scs[0].Message == "" {
			t.Fatalf("expected one CRITICAL, got %v", scs)
		}
		if ms := rec.Metrics("network.tcp.can_connect"); len(ms) != 1 || ms[0].Value != 0 {
			t.Fatalf("unexpected %v", ms)
		}
		if len(rec.Metrics("network.tcp.response_time")) != 0 {
			t.Fatal("expected no response time")
		}
	}
}

func TestResolve(t *testing.T) {
	t.Log("Testing resolve")
	zerolog.SetGlobalLevel(zerolog.Disabled)

	_, port := listen(t)

	t.Log("\tmultiple ips")
	{
		c := newCheck(t, map[string]interface{}{"host": "db.example", "port": port, "multiple_ips": true})
		c.resolver = &fakeResolver{addrs: []string{"127.0.0.1", "127.0.0.1"}}
		rec, err := collect(c)
		if err != nil {
			t.Fatalf("expected no error, got (%s)", err)
		}
		if ms := rec.Metrics("network.tcp.can_connect"); len(ms) != 2 {
			t.Fatalf("expected 2, got %d", len(ms))
		}
	}

	t.Log("\tfirst address only")
	{
		c := newCheck(t, map[string]interface{}{"host": "db.example", "port": port})
		c.resolver = &fakeResolver{addrs: []string{"127.0.0.1", "127.0.0.2"}}
		rec, _ := collect(c)
		if ms := rec.Metrics("network.tcp.can_connect"); len(ms) != 1 {
			t.Fatalf("expected 1, got %d", len(ms))
		}
	}

	t.Log("\tcached lookups")
	{
		c := newCheck(t, map[string]interface{}{"host": "db.example", "port": port, "ip_cache_duration": 60})
		fr := &fakeResolver{addrs: []string{"127.0.0.1"}}
		c.resolver = fr
		for i := 0; i < 3; i++ {
			if _, err := collect(c); err != nil {
				t.Fatalf("expected no error, got (%s)", err)
			}
		}
		if fr.lookups != 1 {
			t.Fatalf("expected 1 lookup, got %d", fr.lookups)
		}
	}

	t.Log("\tlookup failure")
	{
		c := newCheck(t, map[string]interface{}{"host": "nx.example", "port": port})
		c.resolver = &fakeResolver{err: errors.New("no such host")}
		rec, err := collect(c)
		if !check.IsConnect(err) {
			t.Fatalf("expected connect error, got (%v)", err)
		}
		scs := rec.ServiceChecks(serviceCheckName)
		if len(scs) != 1 || scs[0].Status != sink.Critical {
			t.Fatalf("expected one CRITICAL, got %v", scs)
		}
	}
}
