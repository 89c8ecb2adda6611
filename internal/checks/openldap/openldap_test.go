// Copyright © 2017 Circonus, Inc. <support@circonus.com>
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package openldap

import (
	"context"
	"errors"
	"testing"

	"github.com/circonus-labs/circonus-checks/internal/check"
	"github.com/circonus-labs/circonus-checks/internal/config"
	"github.com/circonus-labs/circonus-checks/internal/sink"
	"github.com/go-ldap/ldap/v3"
	"github.com/rs/zerolog"
)

type bindCall struct {
	user string
	anon bool
}

type fakeDirectory struct {
	bindErr   error
	searchErr map[string]error
	results   map[string][]*ldap.Entry
	binds     []bindCall
	unbinds   int
}

func (f *fakeDirectory) Bind(username, password string) error {
	f.binds = append(f.binds, bindCall{user: username})
	return f.bindErr
}

func (f *fakeDirectory) UnauthenticatedBind(username string) error {
	f.binds = append(f.binds, bindCall{user: username, anon: true})
	return f.bindErr
}

func (f *fakeDirectory) Search(req *ldap.SearchRequest) (*ldap.SearchResult, error) {
	if err := f.searchErr[req.BaseDN]; err != nil {
		return nil, err
	}
	return &ldap.SearchResult{Entries: f.results[req.BaseDN]}, nil
}

func (f *fakeDirectory) Unbind() error {
	f.unbinds++
	return nil
}

func counter(dn, value string) *ldap.Entry {
	return ldap.NewEntry(dn, map[string][]string{"monitorCounter": {value}})
}

func info(dn, value string) *ldap.Entry {
	return ldap.NewEntry(dn, map[string][]string{"monitoredInfo": {value}})
}

func ops(dn, initiated, completed string) *ldap.Entry {
	return ldap.NewEntry(dn, map[string][]string{"monitorOpInitiated": {initiated}, "monitorOpCompleted": {completed}})
}

func monitorDirectory() *fakeDirectory {
	return &fakeDirectory{
		searchErr: map[string]error{},
		results: map[string][]*ldap.Entry{
			searchBase: {
				ldap.NewEntry("cn=Monitor", map[string][]string{"monitoredInfo": {"OpenLDAP"}}),
				counter("cn=Max File Descriptors,cn=Connections,cn=Monitor", "1024"),
				counter("cn=Total,cn=Connections,cn=Monitor", "3453"),
				counter("cn=Current,cn=Connections,cn=Monitor", "1"),
				ops("cn=Operations,cn=Monitor", "41399", "41398"),
				ops("cn=Bind,cn=Operations,cn=Monitor", "9734", "9734"),
				ops("cn=Search,cn=Operations,cn=Monitor", "29213", "29212"),
				counter("cn=Statistics,cn=Monitor", "1"),
				counter("cn=Bytes,cn=Statistics,cn=Monitor", "796449497"),
				info("cn=Max,cn=Threads,cn=Monitor", "16"),
				info("cn=Open,cn=Threads,cn=Monitor", "3"),
				info("cn=State,cn=Threads,cn=Monitor", "1"),
				info("cn=Uptime,cn=Time,cn=Monitor", "159182"),
				counter("cn=Waiters,cn=Monitor", "9"),
				counter("cn=Read,cn=Waiters,cn=Monitor", "1"),
			},
			"cn=statistics,cn=monitor": {
				counter("cn=Bytes,cn=Statistics,cn=Monitor", "1"),
				counter("cn=PDU,cn=Statistics,cn=Monitor", "1"),
			},
		},
	}
}

func newCheck(t *testing.T, dir *fakeDirectory, inst map[string]interface{}) *OpenLDAP {
	t.Helper()
	o, _, err := newOpenLDAP(inst, check.Deps{Logger: zerolog.Nop()})
	if err != nil {
		t.Fatalf("expected no error, got (%s)", err)
	}
	o.dial = func(context.Context) (Directory, error) { return dir, nil }
	return o
}

func collect(o *OpenLDAP) (*sink.Recorder, error) {
	rec := sink.NewRecorder()
	r := check.NewReporter(rec, serviceCheckName, nil, zerolog.Nop())
	err := o.Collect(context.Background(), r)
	r.Finish(err)
	return rec, err
}

func hasTag(m sink.Metric, tag string) bool {
	for _, t := range m.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

func TestNew(t *testing.T) {
	t.Log("Testing New")
	zerolog.SetGlobalLevel(zerolog.Disabled)

	tt := []struct {
		desc string
		inst map[string]interface{}
		key  string
	}{
		{"no url", map[string]interface{}{}, "url"},
		{"query without name", map[string]interface{}{"url": "ldap://localhost",
			"custom_queries": []interface{}{map[string]interface{}{"search_base": "cn=x"}}}, "custom_queries[0].name"},
		{"query bad filter", map[string]interface{}{"url": "ldap://localhost",
			"custom_queries": []interface{}{map[string]interface{}{"name": "q", "search_base": "cn=x", "search_filter": "(cn=x"}}}, "custom_queries[0].search_filter"},
		{"missing ca path", map[string]interface{}{"url": "ldaps://localhost", "ssl_ca_certs": "/does/not/exist"}, "ssl_ca_certs"},
	}

	for _, tst := range tt {
		t.Logf("\t%s", tst.desc)
		_, err := New("ldap", nil, tst.inst, check.Deps{Logger: zerolog.Nop()})
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

	dir := monitorDirectory()
	o := newCheck(t, dir, map[string]interface{}{
		"url":      "ldap://localhost",
		"username": "cn=admin,dc=example,dc=org",
		"password": "secret",
		"custom_queries": []interface{}{
			map[string]interface{}{"name": "stats", "search_base": "cn=statistics,cn=monitor", "search_filter": "(!(cn=Statistics))"},
			map[string]interface{}{"name": "anon", "search_base": "cn=statistics,cn=monitor", "search_filter": "(objectClass=*)", "username": ""},
		},
	})

	rec, err := collect(o)
	if err != nil {
		t.Fatalf("expected no error, got (%s)", err)
	}

	tt := []struct {
		name  string
		typ   sink.Type
		value float64
		tag   string
	}{
		{"openldap.connections.max_file_descriptors", sink.Gauge, 1024, ""},
		{"openldap.connections.current", sink.Gauge, 1, ""},
		{"openldap.connections.total", sink.MonotonicCount, 3453, ""},
		{"openldap.operations.initiated.total", sink.MonotonicCount, 41399, ""},
		{"openldap.operations.completed.total", sink.MonotonicCount, 41398, ""},
		{"openldap.statistics.bytes", sink.MonotonicCount, 796449497, ""},
		{"openldap.threads.max", sink.Gauge, 16, ""},
		{"openldap.threads", sink.Gauge, 3, "status:open"},
		{"openldap.uptime", sink.Gauge, 159182, ""},
		{"openldap.waiter.read", sink.Gauge, 1, ""},
	}
	for _, tst := range tt {
		ms := rec.Metrics(tst.name)
		if len(ms) != 1 {
			t.Fatalf("expected one %s, got %d", tst.name, len(ms))
		}
		if ms[0].Type != tst.typ || ms[0].Value != tst.value {
			t.Fatalf("%s: expected %s %v got %s %v", tst.name, tst.typ, tst.value, ms[0].Type, ms[0].Value)
		}
		if !hasTag(ms[0], "url:ldap://localhost") {
			t.Fatalf("%s: missing url tag %v", tst.name, ms[0].Tags)
		}
		if tst.tag != "" && !hasTag(ms[0], tst.tag) {
			t.Fatalf("%s: missing %s in %v", tst.name, tst.tag, ms[0].Tags)
		}
	}

	t.Log("\toperations per type")
	{
		initiated := rec.Metrics("openldap.operations.initiated")
		if len(initiated) != 2 {
			t.Fatalf("expected 2, got %d", len(initiated))
		}
		for _, m := range initiated {
			if hasTag(m, "operation:search") && m.Value != 29213 {
				t.Fatalf("unexpected search %v", m)
			}
		}
	}

	t.Log("\tskipped entries")
	{
		if len(rec.Metrics("openldap.statistics.statistics")) != 0 || len(rec.Metrics("openldap.waiter.waiters")) != 0 {
			t.Fatal("expected container entries skipped")
		}
		if len(rec.Metrics("openldap.threads.state")) != 0 {
			t.Fatal("expected unknown thread entry skipped")
		}
	}

	t.Log("\tcustom queries")
	{
		entries := rec.Metrics("openldap.query.entries")
		if len(entries) != 2 || entries[0].Value != 2 {
			t.Fatalf("unexpected %v", entries)
		}
		if len(rec.Metrics("openldap.query.duration")) != 2 {
			t.Fatal("expected query durations")
		}
		if len(dir.binds) != 3 || dir.binds[0].anon || dir.binds[1].anon || !dir.binds[2].anon {
			t.Fatalf("unexpected binds %v", dir.binds)
		}
	}

	if scs := rec.ServiceChecks(serviceCheckName); len(scs) != 1 || scs[0].Status != sink.OK {
		t.Fatalf("expected one OK, got %v", scs)
	}
	if len(rec.Metrics("openldap.bind_time")) != 1 {
		t.Fatal("expected bind time")
	}
	if dir.unbinds != 1 {
		t.Fatalf("expected unbind, got %d", dir.unbinds)
	}
}

func TestCollectFailures(t *testing.T) {
	t.Log("Testing Collect failures")
	zerolog.SetGlobalLevel(zerolog.Disabled)

	t.Log("\tdial")
	{
		o := newCheck(t, nil, map[string]interface{}{"url": "ldap://localhost"})
		o.dial = func(context.Context) (Directory, error) { return nil, errors.New("connection refused") }
		rec, err := collect(o)
		if !check.IsConnect(err) {
			t.Fatalf("expected connect error, got (%v)", err)
		}
		if scs := rec.ServiceChecks(serviceCheckName); len(scs) != 1 || scs[0].Status != sink.Critical {
			t.Fatalf("expected one CRITICAL, got %v", scs)
		}
	}

	t.Log("\tbind")
	{
		dir := monitorDirectory()
		dir.bindErr = errors.New("invalid credentials")
		o := newCheck(t, dir, map[string]interface{}{"url": "ldap://localhost", "username": "x", "password": "y"})
		rec, err := collect(o)
		if !check.IsConnect(err) {
			t.Fatalf("expected connect error, got (%v)", err)
		}
		if len(rec.Metrics()) != 0 {
			t.Fatal("expected no metrics")
		}
		if dir.unbinds != 1 {
			t.Fatal("expected unbind after failed bind")
		}
	}

	t.Log("\tmonitor search")
	{
		dir := monitorDirectory()
		dir.searchErr[searchBase] = errors.New("no such object")
		o := newCheck(t, dir, map[string]interface{}{"url": "ldap://localhost"})
		rec, err := collect(o)
		if err == nil {
			t.Fatal("expected error")
		}
		scs := rec.ServiceChecks(serviceCheckName)
		if len(scs) != 1 || scs[0].Status != sink.Critical {
			t.Fatalf("expected CRITICAL, got %v", scs)
		}
		if dir.unbinds != 1 {
			t.Fatal("expected unbind after failed search")
		}
	}

	t.Log("\tcustom query failure is logged")
	{
		dir := monitorDirectory()
		dir.searchErr["cn=x"] = errors.New("no such object")
		o := newCheck(t, dir, map[string]interface{}{"url": "ldap://localhost",
			"custom_queries": []interface{}{map[string]interface{}{"name": "q", "search_base": "cn=x", "search_filter": "(cn=*)"}}})
		rec, err := collect(o)
		if err != nil {
			t.Fatalf("expected no error, got (%s)", err)
		}
		if len(rec.Metrics("openldap.query.entries")) != 0 {
			t.Fatal("expected no query metrics")
		}
	}
}
