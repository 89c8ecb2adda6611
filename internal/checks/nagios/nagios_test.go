// Copyright © 2017 Circonus, Inc. <support@circonus.com>
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package nagios

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/circonus-labs/circonus-checks/internal/check"
	"github.com/circonus-labs/circonus-checks/internal/config"
	"github.com/circonus-labs/circonus-checks/internal/sink"
	"github.com/rs/zerolog"
)

const serviceTemplate = `[SERVICEPERFDATA]\t$TIMET$\t$HOSTNAME$\t$SERVICEDESC$\t$SERVICEEXECUTIONTIME$\t$SERVICELATENCY$\t$SERVICEOUTPUT$\t$SERVICEPERFDATA$`
const hostTemplate = `[HOSTPERFDATA]\t$TIMET$\t$HOSTNAME$\t$HOSTEXECUTIONTIME$\t$HOSTOUTPUT$\t$HOSTPERFDATA$`

func appendFile(t *testing.T, path string, lines ...string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatalf("expected no error, got (%s)", err)
	}
	defer f.Close()
	for _, l := range lines {
		if _, err := f.WriteString(l + "\n"); err != nil {
			t.Fatalf("expected no error, got (%s)", err)
		}
	}
}

// setup writes a nagios.cfg pointing at empty log and perfdata files.
func setup(t *testing.T) (string, string, string, string) {
	t.Helper()
	dir := t.TempDir()
	logFile := filepath.Join(dir, "nagios.log")
	hostPerf := filepath.Join(dir, "host-perfdata")
	svcPerf := filepath.Join(dir, "service-perfdata")
	for _, f := range []string{logFile, hostPerf, svcPerf} {
		appendFile(t, f)
	}
	conf := filepath.Join(dir, "nagios.cfg")
	appendFile(t, conf,
		"# nagios config",
		"log_file="+logFile,
		"host_perfdata_file="+hostPerf,
		"host_perfdata_file_template="+hostTemplate,
		"service_perfdata_file = "+svcPerf,
		"service_perfdata_file_template="+serviceTemplate,
		"check_result_reaper_frequency=10",
	)
	return conf, logFile, hostPerf, svcPerf
}

func newCheck(t *testing.T, inst map[string]interface{}) *Nagios {
	t.Helper()
	c, err := New("nagios", nil, inst, check.Deps{Logger: zerolog.Nop()})
	if err != nil {
		t.Fatalf("expected no error, got (%s)", err)
	}
	return c.(*Nagios)
}

func collect(n *Nagios) (*sink.Recorder, error) {
	rec := sink.NewRecorder()
	r := check.NewReporter(rec, n.ServiceCheckName(), nil, zerolog.Nop())
	err := n.Collect(context.Background(), r)
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
		{"nothing configured", map[string]interface{}{}, "nagios_conf"},
		{"missing config file", map[string]interface{}{"nagios_conf": "/nonexistent/nagios.cfg"}, "nagios_conf"},
		{"plugin without command", map[string]interface{}{"plugins": []interface{}{map[string]interface{}{"name": "x"}}}, "plugins[0].command"},
	}

	for _, tst := range tt {
		t.Logf("\t%s", tst.desc)
		_, err := New("nagios", nil, tst.inst, check.Deps{Logger: zerolog.Nop()})
		var ie *config.InvalidError
		if !errors.As(err, &ie) {
			t.Fatalf("expected InvalidError, got (%v)", err)
		}
		if ie.Key != tst.key {
			t.Fatalf("expected key (%s) got (%s)", tst.key, ie.Key)
		}
	}

	t.Log("\ttailers from config")
	{
		conf, _, _, _ := setup(t)
		n := newCheck(t, map[string]interface{}{"nagios_conf": conf})
		if len(n.tailers) != 1 {
			t.Fatalf("expected event log only, got %d", len(n.tailers))
		}
		n = newCheck(t, map[string]interface{}{"nagios_conf": conf, "collect_host_performance_data": true, "collect_service_performance_data": true, "collect_events": false})
		if len(n.tailers) != 2 {
			t.Fatalf("expected perfdata tailers, got %d", len(n.tailers))
		}
		if n.ServiceCheckName() != "" {
			t.Fatal("expected no service check without plugins")
		}
	}
}

func TestTailer(t *testing.T) {
	t.Log("Testing tailer")

	path := filepath.Join(t.TempDir(), "file.log")
	appendFile(t, path, "old 1", "old 2")

	seen := []string{}
	tl := newTailer(path, func(line string) bool {
		seen = append(seen, line)
		return strings.HasPrefix(line, "new")
	})

	t.Log("\tfirst read starts at the end")
	{
		n, err := tl.read()
		if err != nil {
			t.Fatalf("expected no error, got (%s)", err)
		}
		if n != 0 || len(seen) != 0 {
			t.Fatalf("expected nothing, got %v", seen)
		}
	}

	t.Log("\tappended lines")
	{
		appendFile(t, path, "new 1", "other")
		n, err := tl.read()
		if err != nil {
			t.Fatalf("expected no error, got (%s)", err)
		}
		if n != 1 || len(seen) != 2 || seen[0] != "new 1" {
			t.Fatalf("unexpected %d %v", n, seen)
		}
	}

	t.Log("\tpartial line held back")
	{
		seen = seen[:0]
		f, _ := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
		_, _ = f.WriteString("new par")
		f.Close()
		if _, err := tl.read(); err != nil {
			t.Fatalf("expected no error, got (%s)", err)
		}
		if len(seen) != 0 {
			t.Fatalf("expected nothing, got %v", seen)
		}
		appendFile(t, path, "tial")
		if _, err := tl.read(); err != nil {
			t.Fatalf("expected no error, got (%s)", err)
		}
		if len(seen) != 1 || seen[0] != "new partial" {
			t.Fatalf("unexpected %v", seen)
		}
	}

	t.Log("\ttruncated")
	{
		seen = seen[:0]
		if err := os.WriteFile(path, []byte("new after truncate\n"), 0644); err != nil {
			t.Fatalf("expected no error, got (%s)", err)
		}
		if _, err := tl.read(); err != nil {
			t.Fatalf("expected no error, got (%s)", err)
		}
		if len(seen) != 1 || seen[0] != "new after truncate" {
			t.Fatalf("unexpected %v", seen)
		}
	}

	t.Log("\trotated")
	{
		seen = seen[:0]
		if err := os.Rename(path, path+".1"); err != nil {
			t.Fatalf("expected no error, got (%s)", err)
		}
		appendFile(t, path, "new rotated")
		if _, err := tl.read(); err != nil {
			t.Fatalf("expected no error, got (%s)", err)
		}
		if len(seen) != 1 || seen[0] != "new rotated" {
			t.Fatalf("unexpected %v", seen)
		}
	}

	t.Log("\tmissing file")
	{
		os.Remove(path)
		if _, err := tl.read(); err == nil {
			t.Fatal("expected error")
		}
	}
}

func TestEvents(t *testing.T) {
	t.Log("Testing event log")
	zerolog.SetGlobalLevel(zerolog.Disabled)

	conf, logFile, _, _ := setup(t)
	n := newCheck(t, map[string]interface{}{"nagios_conf": conf, "tags": []interface{}{"env:test"}})
	if _, err := collect(n); err != nil {
		t.Fatalf("expected no error, got (%s)", err)
	}

	appendFile(t, logFile,
		"[1305744274] SERVICE ALERT: ip-10-114-245-230;RAID EC2;CRITICAL;SOFT;1;CRITICAL - Degraded",
		"[1305744275] [123] HOST ALERT: localhost;DOWN;HARD;3;PING CRITICAL - Packet loss = 100%",
		"[1305744276] PASSIVE SERVICE CHECK: host1;cron;0;OK",
		"[1305832665] EXTERNAL COMMAND: ACKNOWLEDGE_SVC_PROBLEM;ip-10-202-161-236;Resources ETL;2;1;0;circonus;alq checking",
		"[1305832666] EXTERNAL COMMAND: PROCESS_SERVICE_CHECK_RESULT;host1;cron;0;OK",
		"[1305832667] Warning: something unexpected",
		"garbage line",
	)

	rec, err := collect(n)
	if err != nil {
		t.Fatalf("expected no error, got (%s)", err)
	}

	events := rec.Events()
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}

	tt := []struct {
		title, host, checkName, state string
		alert                         sink.AlertType
	}{
		{"SERVICE ALERT", "ip-10-114-245-230", "RAID EC2", "CRITICAL", sink.AlertError},
		{"HOST ALERT", "", "", "DOWN", sink.AlertError},
		{"ACKNOWLEDGE_SVC_PROBLEM", "ip-10-202-161-236", "Resources ETL", "", sink.AlertInfo},
	}
	for i, tst := range tt {
		t.Logf("\t%s", tst.title)
		e := events[i]
		if e.Title != tst.title || e.AlertType != tst.alert || e.SourceType != sourceType {
			t.Fatalf("unexpected event %v", e)
		}
		if tst.host != "" && e.Hostname != tst.host {
			t.Fatalf("expected host %s got %s", tst.host, e.Hostname)
		}
		var body eventText
		if err := json.Unmarshal([]byte(e.Text), &body); err != nil {
			t.Fatalf("expected no error, got (%s)", err)
		}
		if body.EventType != tst.title || body.CheckName != tst.checkName || body.EventState != tst.state {
			t.Fatalf("unexpected body %+v", body)
		}
		if len(e.Tags) != 1 || e.Tags[0] != "env:test" {
			t.Fatalf("unexpected tags %v", e.Tags)
		}
	}
	if events[2].Timestamp.Unix() != 1305832665 {
		t.Fatalf("unexpected timestamp %v", events[2].Timestamp)
	}

	t.Log("\tpassive checks enabled")
	{
		n := newCheck(t, map[string]interface{}{"nagios_log": logFile, "passive_checks_events": true})
		_, _ = collect(n)
		appendFile(t, logFile, "[1305744276] PASSIVE SERVICE CHECK: host1;cron;0;OK")
		rec, _ := collect(n)
		if len(rec.Events()) != 1 {
			t.Fatalf("expected 1 event, got %d", len(rec.Events()))
		}
	}
}

func TestPerfdata(t *testing.T) {
	t.Log("Testing perfdata files")
	zerolog.SetGlobalLevel(zerolog.Disabled)

	conf, _, hostPerf, svcPerf := setup(t)
	n := newCheck(t, map[string]interface{}{
		"nagios_conf":                      conf,
		"collect_events":                   false,
		"collect_host_performance_data":    true,
		"collect_service_performance_data": true,
	})
	if _, err := collect(n); err != nil {
		t.Fatalf("expected no error, got (%s)", err)
	}

	appendFile(t, svcPerf,
		"[SERVICEPERFDATA]\t1339511440\tlocalhost\tCurrent Load\t0.003\t0.112\tOK - load average: 0.00, 0.01, 0.05\tload1=0.000;5.000;10.000;0; load5=0.010;4.000;6.000;0;",
		"[SERVICEPERFDATA]\t1339511443\tlocalhost\tDisk Space\t0.004\t0.113\tDISK OK\t/=5477MB;6450;7256;0;8063 /boot=68MB;88;99;0;110",
		"not a perfdata line",
	)
	appendFile(t, hostPerf,
		"[HOSTPERFDATA]\t1339511443\tlocalhost\t4.031\tPING OK - Packet loss = 0%, RTA = 0.03 ms\trta=0.033000ms;5000.000000;5000.000000;0.000000 pl=0%;100;100;0",
	)

	rec, err := collect(n)
	if err != nil {
		t.Fatalf("expected no error, got (%s)", err)
	}

	t.Log("\tservice perfdata")
	{
		load := rec.Metrics("nagios.current_load.load1")
		if len(load) != 1 || load[0].Value != 0 || load[0].Hostname != "localhost" {
			t.Fatalf("unexpected %v", load)
		}
		want := []string{"crit:10.000", "min:0", "warn:5.000"}
		if strings.Join(load[0].Tags, ",") != strings.Join(want, ",") {
			t.Fatalf("unexpected tags %v", load[0].Tags)
		}
		disk := rec.Metrics("nagios.disk_space")
		if len(disk) != 2 {
			t.Fatalf("expected 2 device metrics, got %d", len(disk))
		}
		if disk[0].Value != 5477 {
			t.Fatalf("unexpected %v", disk[0])
		}
		found := false
		for _, tag := range disk[0].Tags {
			if tag == "device:/" {
				found = true
			}
		}
		if !found {
			t.Fatalf("expected device tag, got %v", disk[0].Tags)
		}
	}

	t.Log("\thost perfdata")
	{
		rta := rec.Metrics("nagios.host.rta")
		if len(rta) != 1 || rta[0].Value != 0.033 {
			t.Fatalf("unexpected %v", rta)
		}
		if len(rec.Metrics("nagios.host.pl")) != 1 {
			t.Fatal("expected packet loss")
		}
	}
}

func TestParsePerfdata(t *testing.T) {
	t.Log("Testing parsePerfdata")

	items := parsePerfdata("'time_taken'=1.5s;2;3 size=12KB count=4c;~:10 bad =x 'q'=-2")
	if len(items) != 4 {
		t.Fatalf("expected 4 items, got %d (%v)", len(items), items)
	}

	tt := []struct {
		label string
		value float64
		tags  string
	}{
		{"time_taken", 1.5, "unit:s,warn:2,crit:3"},
		{"size", 12, "unit:KB"},
		{"count", 4, "unit:c,warn:~:10"},
		{"q", -2, ""},
	}
	for i, tst := range tt {
		t.Logf("\t%s", tst.label)
		if items[i].label != tst.label || items[i].value != tst.value || strings.Join(items[i].tags, ",") != tst.tags {
			t.Fatalf("unexpected %+v", items[i])
		}
	}
}

func TestPlugins(t *testing.T) {
	t.Log("Testing plugins")
	zerolog.SetGlobalLevel(zerolog.Disabled)

	dir := t.TempDir()
	script := func(name, body string) string {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0755); err != nil {
			t.Fatalf("expected no error, got (%s)", err)
		}
		return path
	}

	okPlugin := script("check_ok", `echo "OK - all good | time=0.5s;1;2 size=10B"`+"\necho \"long text\"\necho \"more | extra=3\"\nexit 0")
	warnPlugin := script("check_warn", `echo "WARNING - disk at 85%"; exit 1`)
	oddPlugin := script("check_odd", `echo "weird"; exit 42`)

	n := newCheck(t, map[string]interface{}{
		"plugins": []interface{}{
			map[string]interface{}{"command": okPlugin},
			map[string]interface{}{"name": "disk", "command": warnPlugin},
			map[string]interface{}{"name": "odd", "command": oddPlugin},
			map[string]interface{}{"name": "missing", "command": filepath.Join(dir, "nope")},
			map[string]interface{}{"name": "slow", "command": "/bin/sh", "args": []interface{}{"-c", "exec sleep 5"}, "timeout": "100ms"},
		},
	})

	rec, err := collect(n)
	if err != nil {
		t.Fatalf("expected no error, got (%s)", err)
	}

	scs := rec.ServiceChecks(pluginServiceCheck)
	if len(scs) != 5 {
		t.Fatalf("expected 5 service checks, got %d", len(scs))
	}

	tt := []struct {
		plugin string
		status sink.Status
		msg    string
	}{
		{"check_ok", sink.OK, "OK - all good"},
		{"disk", sink.Warning, "WARNING - disk at 85%"},
		{"odd", sink.Unknown, "weird"},
		{"missing", sink.Critical, ""},
		{"slow", sink.Critical, ""},
	}
	for i, tst := range tt {
		t.Logf("\t%s", tst.plugin)
		sc := scs[i]
		if sc.Tags[0] != "plugin:"+tst.plugin || sc.Status != tst.status {
			t.Fatalf("unexpected %v", sc)
		}
		if tst.msg != "" && sc.Message != tst.msg {
			t.Fatalf("expected message %q got %q", tst.msg, sc.Message)
		}
	}

	t.Log("\tperfdata")
	{
		for _, name := range []string{"nagios.check_ok.time", "nagios.check_ok.size", "nagios.check_ok.extra"} {
			if len(rec.Metrics(name)) != 1 {
				t.Fatalf("expected %s", name)
			}
		}
		if len(rec.Metrics("nagios.plugin.duration")) != 3 {
			t.Fatalf("expected 3 durations, got %d", len(rec.Metrics("nagios.plugin.duration")))
		}
	}
}
