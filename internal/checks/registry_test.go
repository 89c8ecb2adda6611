// Copyright © 2017 Circonus, Inc. <support@circonus.com>
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package checks

import (
	"strings"
	"testing"
)

func TestDefault(t *testing.T) {
	t.Log("Testing Default")

	reg := Default()
	expected := []string{
		"cgroup",
		"dns_check",
		"envoy",
		"kafka_consumer",
		"mysql",
		"nagios",
		"openldap",
		"openmetrics",
		"postgres",
		"process",
		"tcp_check",
	}
	if got := reg.Types(); strings.Join(got, ",") != strings.Join(expected, ",") {
		t.Fatalf("expected %v got %v", expected, got)
	}
}
