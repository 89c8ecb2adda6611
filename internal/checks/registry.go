// Copyright © 2017 Circonus, Inc. <support@circonus.com>
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package checks

import (
	"github.com/circonus-labs/circonus-checks/internal/check"
	"github.com/circonus-labs/circonus-checks/internal/checks/cgroup"
	"github.com/circonus-labs/circonus-checks/internal/checks/dnscheck"
	"github.com/circonus-labs/circonus-checks/internal/checks/envoy"
	"github.com/circonus-labs/circonus-checks/internal/checks/kafkaconsumer"
	"github.com/circonus-labs/circonus-checks/internal/checks/mysql"
	"github.com/circonus-labs/circonus-checks/internal/checks/nagios"
	"github.com/circonus-labs/circonus-checks/internal/checks/openldap"
	"github.com/circonus-labs/circonus-checks/internal/checks/openmetrics"
	"github.com/circonus-labs/circonus-checks/internal/checks/postgres"
	"github.com/circonus-labs/circonus-checks/internal/checks/process"
	"github.com/circonus-labs/circonus-checks/internal/checks/tcpcheck"
)

// Default returns a registry holding every integration shipped with the agent.
func Default() *check.Registry {
	reg := check.NewRegistry()
	reg.MustRegister(cgroup.Name, cgroup.New)
	reg.MustRegister(dnscheck.Name, dnscheck.New)
	reg.MustRegister(envoy.Name, envoy.New)
	reg.MustRegister(kafkaconsumer.Name, kafkaconsumer.New)
	reg.MustRegister(mysql.Name, mysql.New)
	reg.MustRegister(nagios.Name, nagios.New)
	reg.MustRegister(openldap.Name, openldap.New)
	reg.MustRegister(openmetrics.Name, openmetrics.New)
	reg.MustRegister(postgres.Name, postgres.New)
	reg.MustRegister(process.Name, process.New)
	reg.MustRegister(tcpcheck.Name, tcpcheck.New)
	return reg
}
