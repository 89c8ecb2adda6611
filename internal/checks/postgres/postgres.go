// Copyright © 2017 Circonus, Inc. <support@circonus.com>
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

// Package postgres collects per-database statistics, connection usage and
// background writer counters from a PostgreSQL server.
package postgres

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/circonus-labs/circonus-checks/internal/check"
	"github.com/circonus-labs/circonus-checks/internal/config"
	"github.com/circonus-labs/circonus-checks/internal/mapping"
	"github.com/circonus-labs/circonus-checks/internal/sink"
	"github.com/circonus-labs/circonus-checks/internal/tags"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Name of the check type.
const Name = "postgres"

const (
	serviceCheckName = "postgres.can_connect"

	defaultPort           = 5432
	defaultDBName         = "postgres"
	defaultSSLMode        = "disable"
	defaultConnectTimeout = 5 * time.Second
)

var (
	defaultIgnoreDatabases = []string{"template%", "rdsadmin", "azure_maintenance", "postgres"}
	sslModes               = map[string]bool{
		"disable":     true,
		"allow":       true,
		"prefer":      true,
		"require":     true,
		"verify-ca":   true,
		"verify-full": true,
	}
	columnTypes = map[string]sink.Type{
		"gauge":           sink.Gauge,
		"count":           sink.Count,
		"monotonic_count": sink.MonotonicCount,
		"rate":            sink.Rate,
	}
)

type customColumn struct {
	Name string `json:"name"`
	Type string `json:"type"` // tag or a metric type
}

type customQuery struct {
	MetricPrefix string         `json:"metric_prefix"`
	Query        string         `json:"query"`
	Columns      []customColumn `json:"columns"`
	Tags         []string       `json:"tags"`
}

type postgresOptions struct {
	Host                string        `json:"host"`
	Port                int           `json:"port"`
	User                string        `json:"username"`
	Password            string        `json:"password"`
	DBName              string        `json:"dbname"`
	SSLMode             string        `json:"ssl"`
	ConnectTimeout      time.Duration `json:"connect_timeout"`
	IgnoreDatabases     []string      `json:"ignore_databases"`
	DatabaseSizeMetrics *bool         `json:"collect_database_size_metrics"`
	BgwriterMetrics     *bool         `json:"collect_bgwriter_metrics"`
	ArchiverMetrics     *bool         `json:"collect_archiver_metrics"`
	ReplicationRoleTag  bool          `json:"tag_replication_role"`
	CustomQueries       []customQuery `json:"custom_queries"`
	Persistent          bool          `json:"persist_connections"`
}

// Postgres defines the postgres check
type Postgres struct {
	session   *check.Session
	dbQuery   string
	bgwriter  bool
	archiver  bool
	roleTag   bool
	custom    []customQuery
	tags      []string // server, port and db
	scTags    []string
	dbTables  mapping.Table
	connTable mapping.Table
	bgwTable  mapping.Table
	archTable mapping.Table
	replTable mapping.Table
	logger    zerolog.Logger
}

// New creates a postgres check instance.
func New(id string, init, inst map[string]interface{}, deps check.Deps) (check.Check, error) {
	return newPostgres(inst, deps, newPgxClient)
}

func newPostgres(inst map[string]interface{}, deps check.Deps, open func(*pgx.ConnConfig) check.Client) (*Postgres, error) {
	var opts postgresOptions
	if err := check.Decode(inst, &opts); err != nil {
		return nil, err
	}
	if err := check.Required("host", opts.Host); err != nil {
		return nil, err
	}
	if err := check.Required("username", opts.User); err != nil {
		return nil, err
	}
	if opts.Port == 0 {
		opts.Port = defaultPort
	}
	if opts.Port < 0 || opts.Port > 65535 {
		return nil, config.Invalidf("port", "out of range (%d)", opts.Port)
	}
	if opts.DBName == "" {
		opts.DBName = defaultDBName
	}
	if opts.SSLMode == "" {
		opts.SSLMode = defaultSSLMode
	}
	if !sslModes[opts.SSLMode] {
		return nil, config.Invalidf("ssl", "unknown ssl mode (%s)", opts.SSLMode)
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = defaultConnectTimeout
	}
	if opts.IgnoreDatabases == nil {
		opts.IgnoreDatabases = defaultIgnoreDatabases
	}
	for i, cq := range opts.CustomQueries {
		if err := validateCustom(i, cq); err != nil {
			return nil, err
		}
	}

	port := strconv.Itoa(opts.Port)
	params := url.Values{
		"sslmode":          {opts.SSLMode},
		"connect_timeout":  {strconv.Itoa(int(opts.ConnectTimeout.Seconds()))},
		"application_name": {"circonus-checks"},
	}
	dsn := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(opts.User, opts.Password),
		Host:     net.JoinHostPort(opts.Host, port),
		Path:     "/" + opts.DBName,
		RawQuery: params.Encode(),
	}
	cfg, err := pgx.ParseConfig(dsn.String())
	if err != nil {
		return nil, config.Invalid("host", err.Error())
	}

	instTags := []string{"server:" + opts.Host, "port:" + port, "db:" + opts.DBName}
	p := &Postgres{
		dbQuery:   databaseQuery(opts.IgnoreDatabases, enabled(opts.DatabaseSizeMetrics)),
		bgwriter:  enabled(opts.BgwriterMetrics),
		archiver:  enabled(opts.ArchiverMetrics),
		roleTag:   opts.ReplicationRoleTag,
		custom:    opts.CustomQueries,
		tags:      instTags,
		scTags:    tags.Merge([]string{"host:" + opts.Host}, instTags),
		dbTables:  table(databaseFields),
		connTable: table(connectionFields),
		bgwTable:  table(bgwriterFields),
		archTable: table(archiverFields),
		replTable: table(replicationFields),
		logger:    deps.Logger,
	}
	for _, t := range []*mapping.Table{&p.dbTables, &p.connTable, &p.bgwTable, &p.archTable, &p.replTable} {
		t.Logger = deps.Logger
	}
	p.session = check.NewSession(func() check.Client { return open(cfg) }, opts.Persistent, deps.Logger)

	return p, nil
}

func enabled(b *bool) bool {
	return b == nil || *b
}

func validateCustom(i int, cq customQuery) error {
	key := fmt.Sprintf("custom_queries[%d]", i)
	if cq.MetricPrefix == "" {
		return config.Invalid(key+".metric_prefix", "required")
	}
	if cq.Query == "" {
		return config.Invalid(key+".query", "required")
	}
	if len(cq.Columns) == 0 {
		return config.Invalid(key+".columns", "required")
	}
	for j, col := range cq.Columns {
		ckey := fmt.Sprintf("%s.columns[%d]", key, j)
		if col.Name == "" {
			return config.Invalid(ckey+".name", "required")
		}
		if _, ok := columnTypes[col.Type]; !ok && col.Type != "tag" {
			return config.Invalidf(ckey+".type", "unknown column type (%s)", col.Type)
		}
	}
	return nil
}

// ServiceCheckName of the terminal service check.
func (p *Postgres) ServiceCheckName() string {
	return serviceCheckName
}

// Collect queries the server.
func (p *Postgres) Collect(ctx context.Context, r *check.Reporter) error {
	err := p.session.Do(ctx, func(c check.Client) error {
		if err := p.collect(ctx, c, r); err != nil {
			return err
		}
		r.ServiceCheck(serviceCheckName, sink.OK, p.scTags, "")
		return nil
	})
	if check.IsConnect(err) {
		r.ServiceCheck(serviceCheckName, sink.Critical, p.scTags, err.Error())
	}
	return err
}

// Close releases a persistent connection.
func (p *Postgres) Close() error {
	return p.session.Close()
}

func (p *Postgres) collect(ctx context.Context, c check.Client, r *check.Reporter) error {
	instTags := p.tags
	if p.roleTag {
		instTags = tags.Merge(instTags, []string{"replication_role:" + p.replicationRole(ctx, c)})
	}
	serverTags := withoutDB(instTags)

	dbs := c.Execute(ctx, p.dbQuery)
	if dbs.IsFault() {
		return errors.Wrap(dbs.Err(), "reading pg_stat_database")
	}
	for _, row := range dbs.Rows() {
		name, _ := row["datname"].(string)
		if name == "" {
			continue
		}
		r.Metrics(p.dbTables.Apply(row, mapping.EntityTags(serverTags, "db", name)))
	}
	r.Gauge(metricPrefix+"db.count", float64(len(dbs.Rows())), serverTags...)

	p.single(ctx, c, r, queryConnections, &p.connTable, instTags)
	if p.bgwriter {
		p.single(ctx, c, r, queryBgwriter, &p.bgwTable, instTags)
	}
	if p.archiver {
		p.single(ctx, c, r, queryArchiver, &p.archTable, instTags)
	}
	p.single(ctx, c, r, queryReplication, &p.replTable, instTags)

	for _, cq := range p.custom {
		p.customQuery(ctx, c, r, cq, instTags)
	}

	return nil
}

// single maps the first row of query. Failures are logged.
func (p *Postgres) single(ctx context.Context, c check.Client, r *check.Reporter, query string, t *mapping.Table, tagList []string) {
	out := c.Execute(ctx, query)
	if out.IsFault() {
		p.logger.Warn().Err(out.Err()).Str("query", query).Msg("query failed")
		return
	}
	if row, ok := out.First(); ok {
		r.Metrics(t.Apply(row, tagList))
	}
}

func (p *Postgres) replicationRole(ctx context.Context, c check.Client) string {
	out := c.Execute(ctx, queryRecovery)
	row, ok := out.First()
	if !ok {
		if out.IsFault() {
			p.logger.Warn().Err(out.Err()).Msg("reading replication role")
		}
		return "unknown"
	}
	if v, ok := row.Float("in_recovery"); ok && v == 1 {
		return "standby"
	}
	return "master"
}

func (p *Postgres) customQuery(ctx context.Context, c check.Client, r *check.Reporter, cq customQuery, base []string) {
	out := c.Execute(ctx, cq.Query)
	if out.IsFault() {
		p.logger.Warn().Err(out.Err()).Str("prefix", cq.MetricPrefix).Msg("custom query failed")
		return
	}
	for _, row := range out.Rows() {
		rowTags := tags.Merge(base, cq.Tags)
		for _, col := range cq.Columns {
			if col.Type != "tag" {
				continue
			}
			if v, ok := row[col.Name]; ok && v != nil {
				rowTags = mapping.EntityTags(rowTags, col.Name, fmt.Sprint(v))
			}
		}
		for _, col := range cq.Columns {
			typ, ok := columnTypes[col.Type]
			if !ok {
				continue
			}
			v, ok := row.Float(col.Name)
			if !ok {
				p.logger.Debug().Str("column", col.Name).Str("prefix", cq.MetricPrefix).Msg("non-numeric value, skipping")
				continue
			}
			r.Metric(sink.Metric{Name: cq.MetricPrefix + "." + col.Name, Type: typ, Value: v, Tags: rowTags})
		}
	}
}

func withoutDB(list []string) []string {
	out := make([]string, 0, len(list))
	for _, t := range list {
		if !strings.HasPrefix(t, "db:") {
			out = append(out, t)
		}
	}
	return out
}
