// Copyright © 2017 Circonus, Inc. <support@circonus.com>
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

// Package mysql collects server status, variables and schema sizes from a
// MySQL server and optionally samples execution plans of running statements.
package mysql

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/circonus-labs/circonus-checks/internal/check"
	"github.com/circonus-labs/circonus-checks/internal/config"
	"github.com/circonus-labs/circonus-checks/internal/mapping"
	"github.com/circonus-labs/circonus-checks/internal/sink"
	driver "github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Name of the check type.
const Name = "mysql"

const (
	serviceCheckName = "mysql.can_connect"

	defaultPort           = 3306
	defaultConnectTimeout = 10 * time.Second

	queryStatus     = "SHOW /*!50002 GLOBAL */ STATUS"
	queryVariables  = "SHOW GLOBAL VARIABLES"
	queryInnoDB     = "SELECT engine FROM information_schema.ENGINES WHERE engine = 'InnoDB' AND support != 'no' AND support != 'disabled'"
	queryBinaryLogs = "SHOW BINARY LOGS"
	querySchemaSize = "SELECT table_schema, IFNULL(SUM(data_length+index_length)/1024/1024,0) AS total_mb " +
		"FROM information_schema.tables GROUP BY table_schema"
)

type metricOptions struct {
	ExtraStatusMetrics   bool `json:"extra_status_metrics"`
	SchemaSizeMetrics    bool `json:"schema_size_metrics"`
	DisableInnoDBMetrics bool `json:"disable_innodb_metrics"`
}

type mysqlOptions struct {
	Host             string         `json:"host"`
	Port             int            `json:"port"`
	User             string         `json:"username"`
	Password         string         `json:"password"`
	Socket           string         `json:"sock"`
	DBName           string         `json:"dbname"`
	Charset          string         `json:"charset"`
	ConnectTimeout   time.Duration  `json:"connect_timeout"`
	Options          metricOptions  `json:"options"`
	StatementSamples samplesOptions `json:"statement_samples"`
	Persistent       bool           `json:"persist_connections"`
}

// MySQL defines the mysql check
type MySQL struct {
	session *check.Session
	options metricOptions
	scTags  []string
	sampler *sampler
	logger  zerolog.Logger
}

// New creates a mysql check instance.
func New(id string, init, inst map[string]interface{}, deps check.Deps) (check.Check, error) {
	return newMySQL(inst, deps, newSQLClient)
}

func newMySQL(inst map[string]interface{}, deps check.Deps, open func(*driver.Config) check.Client) (*MySQL, error) {
	var opts mysqlOptions
	if err := check.Decode(inst, &opts); err != nil {
		return nil, err
	}
	if opts.Host == "" && opts.Socket == "" {
		return nil, config.Invalid("host", "one of host or sock is required")
	}
	if err := check.Required("username", opts.User); err != nil {
		return nil, err
	}
	if opts.Port == 0 {
		opts.Port = defaultPort
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = defaultConnectTimeout
	}

	cfg := driver.NewConfig()
	cfg.User = opts.User
	cfg.Passwd = opts.Password
	cfg.DBName = opts.DBName
	cfg.Timeout = opts.ConnectTimeout
	if opts.Charset != "" {
		cfg.Params = map[string]string{"charset": opts.Charset}
	}

	server := opts.Host
	port := strconv.Itoa(opts.Port)
	if opts.Socket != "" {
		cfg.Net = "unix"
		cfg.Addr = opts.Socket
		server = opts.Socket
		port = "unix_socket"
	} else {
		cfg.Net = "tcp"
		cfg.Addr = net.JoinHostPort(opts.Host, port)
	}

	m := &MySQL{
		options: opts.Options,
		scTags:  []string{"server:" + server, "port:" + port},
		logger:  deps.Logger,
	}
	m.session = check.NewSession(func() check.Client { return open(cfg) }, opts.Persistent, deps.Logger)
	if opts.StatementSamples.Enabled {
		m.sampler = newSampler(opts.StatementSamples, deps.Logger)
	}

	return m, nil
}

// ServiceCheckName of the terminal service check.
func (m *MySQL) ServiceCheckName() string {
	return serviceCheckName
}

// Collect queries the server.
func (m *MySQL) Collect(ctx context.Context, r *check.Reporter) error {
	err := m.session.Do(ctx, func(c check.Client) error {
		r.ServiceCheck(serviceCheckName, sink.OK, m.scTags, "")
		return m.collect(ctx, c, r)
	})
	if check.IsConnect(err) {
		r.ServiceCheck(serviceCheckName, sink.Critical, m.scTags, err.Error())
	}
	return err
}

// Close releases a persistent connection.
func (m *MySQL) Close() error {
	return m.session.Close()
}

func (m *MySQL) collect(ctx context.Context, c check.Client, r *check.Reporter) error {
	results := mapping.Row{}

	status := c.Execute(ctx, queryStatus)
	if status.IsFault() {
		return errors.Wrap(status.Err(), "reading status")
	}
	fold(status.Rows(), results)

	vars := c.Execute(ctx, queryVariables)
	if vars.IsFault() {
		return errors.Wrap(vars.Err(), "reading variables")
	}
	fold(vars.Rows(), results)

	innodb := false
	if !m.options.DisableInnoDBMetrics {
		out := c.Execute(ctx, queryInnoDB)
		switch {
		case out.IsFault():
			m.logger.Warn().Err(out.Err()).Msg("checking innodb engine")
		case !out.IsEmpty():
			innodb = true
		}
	}

	binlog := false
	if on, ok := results.Float("log_bin"); ok && on == 1 {
		if size, ok := m.binaryLogSize(ctx, c); ok {
			results["Binlog_space_usage_bytes"] = size
			binlog = true
		}
	}

	table := statusTable(innodb, binlog, m.options.ExtraStatusMetrics)
	table.Logger = m.logger
	r.Metrics(table.Apply(results, nil))

	if m.options.SchemaSizeMetrics {
		m.schemaSizes(ctx, c, r)
	}

	if m.sampler != nil {
		m.sampler.collect(ctx, c, r, nil)
	}

	return nil
}

// binaryLogSize sums the sizes reported by SHOW BINARY LOGS. Missing
// privileges are logged.
func (m *MySQL) binaryLogSize(ctx context.Context, c check.Client) (float64, bool) {
	out := c.Execute(ctx, queryBinaryLogs)
	if out.IsFault() {
		m.logger.Warn().Err(out.Err()).Msg("privileges error accessing the binary logs (must grant REPLICATION CLIENT)")
		return 0, false
	}
	total := 0.0
	for _, row := range out.Rows() {
		if v, ok := row.Float("File_size"); ok {
			total += v
		}
	}
	return total, true
}

func (m *MySQL) schemaSizes(ctx context.Context, c check.Client, r *check.Reporter) {
	out := c.Execute(ctx, querySchemaSize)
	if out.IsFault() {
		m.logger.Warn().Err(out.Err()).Msg("schema size metrics unavailable")
		return
	}
	if out.IsEmpty() {
		m.logger.Warn().Msg("failed to fetch records from the information schema 'tables' table")
		return
	}
	for _, row := range out.Rows() {
		schema := str(row, "table_schema")
		size, ok := row.Float("total_mb")
		if schema == "" || !ok {
			continue
		}
		r.Gauge("mysql.info.schema.size", size, "schema:"+schema)
	}
}
