// Copyright © 2017 Circonus, Inc. <support@circonus.com>
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package postgres

import (
	"strings"

	"github.com/circonus-labs/circonus-checks/internal/mapping"
	"github.com/circonus-labs/circonus-checks/internal/sink"
)

// pg_stat_database columns, one row per database
var databaseFields = map[string]mapping.Spec{
	"numbackends":   {Name: "connections", Type: sink.Gauge},
	"xact_commit":   {Name: "commits", Type: sink.Rate},
	"xact_rollback": {Name: "rollbacks", Type: sink.Rate},
	"blks_read":     {Name: "disk_read", Type: sink.Rate},
	"blks_hit":      {Name: "buffer_hit", Type: sink.Rate},
	"tup_returned":  {Name: "rows_returned", Type: sink.Rate},
	"tup_fetched":   {Name: "rows_fetched", Type: sink.Rate},
	"tup_inserted":  {Name: "rows_inserted", Type: sink.Rate},
	"tup_updated":   {Name: "rows_updated", Type: sink.Rate},
	"tup_deleted":   {Name: "rows_deleted", Type: sink.Rate},
	"deadlocks":     {Name: "deadlocks", Type: sink.Rate},
	"temp_bytes":    {Name: "temp_bytes", Type: sink.Rate},
	"temp_files":    {Name: "temp_files", Type: sink.Rate},
	"wraparound":    {Name: "before_xid_wraparound", Type: sink.Gauge},
	"database_size": {Name: "database_size", Type: sink.Gauge},
}

var connectionFields = map[string]mapping.Spec{
	"max_connections": {Name: "max_connections", Type: sink.Gauge},
	"pct_connections": {Name: "percent_usage_connections", Type: sink.Gauge},
}

var bgwriterFields = map[string]mapping.Spec{
	"checkpoints_timed":     {Name: "bgwriter.checkpoints_timed", Type: sink.MonotonicCount},
	"checkpoints_req":       {Name: "bgwriter.checkpoints_requested", Type: sink.MonotonicCount},
	"buffers_checkpoint":    {Name: "bgwriter.buffers_checkpoint", Type: sink.MonotonicCount},
	"buffers_clean":         {Name: "bgwriter.buffers_clean", Type: sink.MonotonicCount},
	"maxwritten_clean":      {Name: "bgwriter.maxwritten_clean", Type: sink.MonotonicCount},
	"buffers_backend":       {Name: "bgwriter.buffers_backend", Type: sink.MonotonicCount},
	"buffers_alloc":         {Name: "bgwriter.buffers_alloc", Type: sink.MonotonicCount},
	"buffers_backend_fsync": {Name: "bgwriter.buffers_backend_fsync", Type: sink.MonotonicCount},
	"checkpoint_write_time": {Name: "bgwriter.write_time", Type: sink.MonotonicCount},
	"checkpoint_sync_time":  {Name: "bgwriter.sync_time", Type: sink.MonotonicCount},
}

var archiverFields = map[string]mapping.Spec{
	"archived_count": {Name: "archiver.archived_count", Type: sink.MonotonicCount},
	"failed_count":   {Name: "archiver.failed_count", Type: sink.MonotonicCount},
}

var replicationFields = map[string]mapping.Spec{
	"replication_delay":       {Name: "replication_delay", Type: sink.Gauge},
	"replication_delay_bytes": {Name: "replication_delay_bytes", Type: sink.Gauge},
}

const (
	metricPrefix = "postgresql."

	queryConnections = "WITH max_con AS (SELECT setting::float FROM pg_settings WHERE name = 'max_connections') " +
		"SELECT MAX(setting) AS max_connections, SUM(numbackends)/MAX(setting) AS pct_connections " +
		"FROM pg_stat_database, max_con"
	queryBgwriter = "SELECT checkpoints_timed, checkpoints_req, buffers_checkpoint, buffers_clean, maxwritten_clean, " +
		"buffers_backend, buffers_alloc, buffers_backend_fsync, checkpoint_write_time, checkpoint_sync_time " +
		"FROM pg_stat_bgwriter"
	queryArchiver    = "SELECT archived_count, failed_count FROM pg_stat_archiver"
	queryReplication = "SELECT CASE WHEN pg_last_wal_receive_lsn() = pg_last_wal_replay_lsn() THEN 0 " +
		"ELSE GREATEST(0, EXTRACT(EPOCH FROM now() - pg_last_xact_replay_timestamp())) END AS replication_delay, " +
		"abs(pg_wal_lsn_diff(pg_last_wal_receive_lsn(), pg_last_wal_replay_lsn())) AS replication_delay_bytes " +
		"WHERE (SELECT pg_is_in_recovery())"
	queryRecovery = "SELECT pg_is_in_recovery() AS in_recovery"
)

func table(fields map[string]mapping.Spec) mapping.Table {
	return mapping.Table{Prefix: metricPrefix, Fields: fields, Sentinel: mapping.Unlimited}
}

// databaseQuery selects the pg_stat_database columns of every database not
// matching one of the ignore patterns (ILIKE syntax).
func databaseQuery(ignore []string, withSize bool) string {
	var b strings.Builder
	b.WriteString("SELECT psd.datname, numbackends, xact_commit, xact_rollback, blks_read, blks_hit, ")
	b.WriteString("tup_returned, tup_fetched, tup_inserted, tup_updated, tup_deleted, ")
	b.WriteString("deadlocks, temp_bytes, temp_files, 2^31 - age(datfrozenxid) AS wraparound")
	if withSize {
		b.WriteString(", pg_database_size(psd.datname) AS database_size")
	}
	b.WriteString(" FROM pg_stat_database psd JOIN pg_database pd ON psd.datname = pd.datname")
	for i, pattern := range ignore {
		if i == 0 {
			b.WriteString(" WHERE ")
		} else {
			b.WriteString(" AND ")
		}
		b.WriteString("psd.datname NOT ILIKE ")
		b.WriteString(quote(pattern))
	}
	return b.String()
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
