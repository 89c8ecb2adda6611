// Copyright © 2017 Circonus, Inc. <support@circonus.com>
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package dnscheck

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/circonus-labs/circonus-checks/internal/check"
	"github.com/circonus-labs/circonus-checks/internal/config"
	"github.com/circonus-labs/circonus-checks/internal/sink"
	"github.com/miekg/dns"
	"github.com/rs/zerolog"
)

// startServer runs an in-process udp nameserver answering from a fixed zone.
func startServer(t *testing.T) (string, int) {
	t.Helper()
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("expected no error, got (%s)", err)
	}
	zone := map[uint16]map[string][]string{
		dns.TypeA: {
			"www.example.org.":   {"www.example.org. 60 IN A 192.0.2.10", "www.example.org. 60 IN A 192.0.2.11"},
			"alias.example.org.": {"alias.example.org. 60 IN CNAME www.example.org.", "www.example.org. 60 IN A 192.0.2.10"},
		},
		dns.TypeCNAME: {
			"alias.example.org.": {"alias.example.org. 60 IN CNAME www.example.org."},
		},
		dns.TypeMX: {
			"example.org.": {"example.org. 60 IN MX 10 mail.example.org."},
		},
	}
	handler := func(w dns.ResponseWriter, req *dns.Msg) {
		m := new(dns.Msg)
		m.SetReply(req)
		q := req.Question[0]
		records, ok := zone[q.Qtype][q.Name]
		if !ok {
			m.Rcode = dns.RcodeNameError
		}
		for _, s := range records {
			rr, err := dns.NewRR(s)
			if err == nil {
				m.Answer = append(m.Answer, rr)
			}
		}
		_ = w.WriteMsg(m)
	}
	srv := &dns.Server{PacketConn: pc, Handler: dns.HandlerFunc(handler)}
	go func() { _ = srv.ActivateAndServe() }()
	t.Cleanup(func() { _ = srv.Shutdown() })
	addr := pc.LocalAddr().(*net.UDPAddr)
	return addr.IP.String(), addr.Port
}

func run(t *testing.T, inst map[string]interface{}) (*sink.Recorder, error) {
	t.Helper()
	c, err := New("dns", nil, inst, check.Deps{Logger: zerolog.Nop()})
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
		{"no hostname", map[string]interface{}{"nameserver": "127.0.0.1"}, "hostname"},
		{"bad record type", map[string]interface{}{"hostname": "example.org", "nameserver": "127.0.0.1", "record_type": "BOGUS"}, "record_type"},
		{"bad timeout", map[string]interface{}{"hostname": "example.org", "nameserver": "127.0.0.1", "timeout": "soon"}, "timeout"},
	}

	for _, tst := range tt {
		t.Logf("\t%s", tst.desc)
		_, err := New("dns", nil, tst.inst, check.Deps{Logger: zerolog.Nop()})
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

	host, port := startServer(t)

	tt := []struct {
		desc   string
		inst   map[string]interface{}
		status sink.Status
	}{
		{"resolves", map[string]interface{}{"hostname": "www.example.org"}, sink.OK},
		{"resolves as expected", map[string]interface{}{"hostname": "www.example.org", "resolves_as": "192.0.2.11,192.0.2.10"}, sink.OK},
		{"resolves differently", map[string]interface{}{"hostname": "www.example.org", "resolves_as": "192.0.2.10"}, sink.Critical},
		{"cname", map[string]interface{}{"hostname": "alias.example.org", "record_type": "cname", "resolves_as": "www.example.org"}, sink.OK},
		{"mx", map[string]interface{}{"hostname": "example.org", "record_type": "MX", "resolves_as": []interface{}{"mail.example.org."}}, sink.OK},
		{"missing name", map[string]interface{}{"hostname": "nope.example.org"}, sink.Critical},
		{"expected nxdomain", map[string]interface{}{"hostname": "nope.example.org", "record_type": "NXDOMAIN"}, sink.OK},
		{"unexpected answer for nxdomain", map[string]interface{}{"hostname": "www.example.org", "record_type": "NXDOMAIN"}, sink.Critical},
	}

	for _, tst := range tt {
		t.Logf("\t%s", tst.desc)
		tst.inst["nameserver"] = host
		tst.inst["nameserver_port"] = port
		rec, err := run(t, tst.inst)
		scs := rec.ServiceChecks(serviceCheckName)
		if len(scs) != 1 || scs[0].Status != tst.status {
			t.Fatalf("expected one %s, got %v", tst.status, scs)
		}
		rt := rec.Metrics("dns.response_time")
		if tst.status == sink.OK {
			if err != nil {
				t.Fatalf("expected no error, got (%s)", err)
			}
			if len(rt) != 1 {
				t.Fatalf("expected response time, got %v", rt)
			}
			continue
		}
		if err == nil {
			t.Fatal("expected error")
		}
		if len(rt) != 0 {
			t.Fatalf("expected no response time, got %v", rt)
		}
	}
}

func TestCollectUnreachable(t *testing.T) {
	t.Log("Testing Collect unreachable nameserver")
	zerolog.SetGlobalLevel(zerolog.Disabled)

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("expected no error, got (%s)", err)
	}
	defer pc.Close()
	addr := pc.LocalAddr().(*net.UDPAddr)

	rec, err := run(t, map[string]interface{}{
		"hostname":        "www.example.org",
		"nameserver":      addr.IP.String(),
		"nameserver_port": addr.Port,
		"timeout":         "100ms",
	})
	if !check.IsConnect(err) {
		t.Fatalf("expected connect error, got (%v)", err)
	}
	scs := rec.ServiceChecks(serviceCheckName)
	if len(scs) != 1 || scs[0].Status != sink.Critical {
		t.Fatalf("expected one CRITICAL, got %v", scs)
	}
}
