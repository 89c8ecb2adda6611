// Copyright © 2017 Circonus, Inc. <support@circonus.com>
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package mysql

import (
	"github.com/circonus-labs/circonus-checks/internal/mapping"
	"github.com/circonus-labs/circonus-checks/internal/sink"
)

// status and variable names as reported by SHOW GLOBAL STATUS/VARIABLES
var statusVars = map[string]mapping.Spec{
	// commands
	"Prepared_stmt_count": {Name: "mysql.performance.prepared_stmt_count", Type: sink.Gauge},
	"Slow_queries":        {Name: "mysql.performance.slow_queries", Type: sink.Rate},
	"Questions":           {Name: "mysql.performance.questions", Type: sink.Rate},
	"Queries":             {Name: "mysql.performance.queries", Type: sink.Rate},
	"Com_select":          {Name: "mysql.performance.com_select", Type: sink.Rate},
	"Com_insert":          {Name: "mysql.performance.com_insert", Type: sink.Rate},
	"Com_update":          {Name: "mysql.performance.com_update", Type: sink.Rate},
	"Com_delete":          {Name: "mysql.performance.com_delete", Type: sink.Rate},
	"Com_replace":         {Name: "mysql.performance.com_replace", Type: sink.Rate},
	"Com_load":            {Name: "mysql.performance.com_load", Type: sink.Rate},
	"Com_insert_select":   {Name: "mysql.performance.com_insert_select", Type: sink.Rate},
	"Com_update_multi":    {Name: "mysql.performance.com_update_multi", Type: sink.Rate},
	"Com_delete_multi":    {Name: "mysql.performance.com_delete_multi", Type: sink.Rate},
	"Com_replace_select":  {Name: "mysql.performance.com_replace_select", Type: sink.Rate},
	// connections
	"Connections":          {Name: "mysql.net.connections", Type: sink.Rate},
	"Max_used_connections": {Name: "mysql.net.max_connections", Type: sink.Gauge},
	"Aborted_clients":      {Name: "mysql.net.aborted_clients", Type: sink.Rate},
	"Aborted_connects":     {Name: "mysql.net.aborted_connects", Type: sink.Rate},
	// table cache
	"Open_files":  {Name: "mysql.performance.open_files", Type: sink.Gauge},
	"Open_tables": {Name: "mysql.performance.open_tables", Type: sink.Gauge},
	// network
	"Bytes_sent":     {Name: "mysql.performance.bytes_sent", Type: sink.Rate},
	"Bytes_received": {Name: "mysql.performance.bytes_received", Type: sink.Rate},
	// query cache
	"Qcache_hits":          {Name: "mysql.performance.qcache_hits", Type: sink.Rate},
	"Qcache_inserts":       {Name: "mysql.performance.qcache_inserts", Type: sink.Rate},
	"Qcache_lowmem_prunes": {Name: "mysql.performance.qcache_lowmem_prunes", Type: sink.Rate},
	// table locks
	"Table_locks_waited": {Name: "mysql.performance.table_locks_waited", Type: sink.Gauge},
	// temporary tables
	"Created_tmp_tables":      {Name: "mysql.performance.created_tmp_tables", Type: sink.Rate},
	"Created_tmp_disk_tables": {Name: "mysql.performance.created_tmp_disk_tables", Type: sink.Rate},
	"Created_tmp_files":       {Name: "mysql.performance.created_tmp_files", Type: sink.Rate},
	// threads
	"Threads_connected": {Name: "mysql.performance.threads_connected", Type: sink.Gauge},
	"Threads_running":   {Name: "mysql.performance.threads_running", Type: sink.Gauge},
	// myisam
	"Key_read_requests":  {Name: "mysql.myisam.key_read_requests", Type: sink.Rate},
	"Key_reads":          {Name: "mysql.myisam.key_reads", Type: sink.Rate},
	"Key_write_requests": {Name: "mysql.myisam.key_write_requests", Type: sink.Rate},
	"Key_writes":         {Name: "mysql.myisam.key_writes", Type: sink.Rate},
}

var variableVars = map[string]mapping.Spec{
	"key_buffer_size":         {Name: "mysql.myisam.key_buffer_size", Type: sink.Gauge},
	"max_connections":         {Name: "mysql.net.max_connections_available", Type: sink.Gauge},
	"max_prepared_stmt_count": {Name: "mysql.performance.max_prepared_stmt_count", Type: sink.Gauge},
	"query_cache_size":        {Name: "mysql.performance.qcache_size", Type: sink.Gauge},
	"table_open_cache":        {Name: "mysql.performance.table_open_cache", Type: sink.Gauge},
	"thread_cache_size":       {Name: "mysql.performance.thread_cache_size", Type: sink.Gauge},
}

var innodbVars = map[string]mapping.Spec{
	"Innodb_data_reads":                {Name: "mysql.innodb.data_reads", Type: sink.Rate},
	"Innodb_data_writes":               {Name: "mysql.innodb.data_writes", Type: sink.Rate},
	"Innodb_os_log_fsyncs":             {Name: "mysql.innodb.os_log_fsyncs", Type: sink.Rate},
	"Innodb_row_lock_waits":            {Name: "mysql.innodb.row_lock_waits", Type: sink.Rate},
	"Innodb_row_lock_time":             {Name: "mysql.innodb.row_lock_time", Type: sink.Rate},
	"Innodb_row_lock_current_waits":    {Name: "mysql.innodb.row_lock_current_waits", Type: sink.Gauge},
	"Innodb_buffer_pool_read_requests": {Name: "mysql.innodb.buffer_pool_read_requests", Type: sink.Rate},
	"Innodb_buffer_pool_reads":         {Name: "mysql.innodb.buffer_pool_reads", Type: sink.Rate},
	"Innodb_buffer_pool_bytes_dirty":   {Name: "mysql.innodb.buffer_pool_dirty", Type: sink.Gauge},
}

var binlogVars = map[string]mapping.Spec{
	"Binlog_space_usage_bytes": {Name: "mysql.binlog.disk_use", Type: sink.Gauge},
}

// collected with extra_status_metrics
var optionalStatusVars = map[string]mapping.Spec{
	"Binlog_cache_disk_use":   {Name: "mysql.binlog.cache_disk_use", Type: sink.Gauge},
	"Binlog_cache_use":        {Name: "mysql.binlog.cache_use", Type: sink.Gauge},
	"Handler_commit":          {Name: "mysql.performance.handler_commit", Type: sink.Rate},
	"Handler_delete":          {Name: "mysql.performance.handler_delete", Type: sink.Rate},
	"Handler_prepare":         {Name: "mysql.performance.handler_prepare", Type: sink.Rate},
	"Handler_read_first":      {Name: "mysql.performance.handler_read_first", Type: sink.Rate},
	"Handler_read_key":        {Name: "mysql.performance.handler_read_key", Type: sink.Rate},
	"Handler_read_next":       {Name: "mysql.performance.handler_read_next", Type: sink.Rate},
	"Handler_read_prev":       {Name: "mysql.performance.handler_read_prev", Type: sink.Rate},
	"Handler_read_rnd":        {Name: "mysql.performance.handler_read_rnd", Type: sink.Rate},
	"Handler_read_rnd_next":   {Name: "mysql.performance.handler_read_rnd_next", Type: sink.Rate},
	"Handler_rollback":        {Name: "mysql.performance.handler_rollback", Type: sink.Rate},
	"Handler_update":          {Name: "mysql.performance.handler_update", Type: sink.Rate},
	"Handler_write":           {Name: "mysql.performance.handler_write", Type: sink.Rate},
	"Opened_tables":           {Name: "mysql.performance.opened_tables", Type: sink.Rate},
	"Qcache_total_blocks":     {Name: "mysql.performance.qcache_total_blocks", Type: sink.Gauge},
	"Qcache_free_blocks":      {Name: "mysql.performance.qcache_free_blocks", Type: sink.Gauge},
	"Qcache_free_memory":      {Name: "mysql.performance.qcache_free_memory", Type: sink.Gauge},
	"Qcache_not_cached":       {Name: "mysql.performance.qcache_not_cached", Type: sink.Rate},
	"Qcache_queries_in_cache": {Name: "mysql.performance.qcache_queries_in_cache", Type: sink.Gauge},
	"Select_full_join":        {Name: "mysql.performance.select_full_join", Type: sink.Rate},
	"Select_full_range_join":  {Name: "mysql.performance.select_full_range_join", Type: sink.Rate},
	"Select_range":            {Name: "mysql.performance.select_range", Type: sink.Rate},
	"Select_range_check":      {Name: "mysql.performance.select_range_check", Type: sink.Rate},
	"Select_scan":             {Name: "mysql.performance.select_scan", Type: sink.Rate},
	"Sort_merge_passes":       {Name: "mysql.performance.sort_merge_passes", Type: sink.Rate},
	"Sort_range":              {Name: "mysql.performance.sort_range", Type: sink.Rate},
	"Sort_rows":               {Name: "mysql.performance.sort_rows", Type: sink.Rate},
	"Sort_scan":               {Name: "mysql.performance.sort_scan", Type: sink.Rate},
	"Table_locks_immediate":   {Name: "mysql.performance.table_locks_immediate", Type: sink.Gauge},
	"Threads_cached":          {Name: "mysql.performance.threads_cached", Type: sink.Gauge},
	"Threads_created":         {Name: "mysql.performance.threads_created", Type: sink.MonotonicCount},
}

// product multiplies the values.
func product(vals []float64) (float64, bool) {
	if len(vals) == 0 {
		return 0, false
	}
	p := 1.0
	for _, v := range vals {
		p *= v
	}
	return p, true
}

// keyCacheUtilization is 1 - unused blocks * block size / key buffer size.
func keyCacheUtilization(vals []float64) (float64, bool) {
	if len(vals) != 3 || vals[2] == 0 {
		return 0, false
	}
	return 1 - (vals[0]*vals[1])/vals[2], true
}

// usedBytes is (total - free) pages * page size.
func usedBytes(vals []float64) (float64, bool) {
	if len(vals) != 3 {
		return 0, false
	}
	return (vals[0] - vals[1]) * vals[2], true
}

func same(vals []float64) (float64, bool) {
	if len(vals) != 1 {
		return 0, false
	}
	return vals[0], true
}

var statusComputed = []mapping.Computed{
	{Name: "mysql.performance.key_cache_utilization", Sources: []string{"Key_blocks_unused", "key_cache_block_size", "key_buffer_size"}, Combine: keyCacheUtilization, Type: sink.Gauge},
	{Name: "mysql.myisam.key_buffer_bytes_used", Sources: []string{"Key_blocks_used", "key_cache_block_size"}, Combine: product, Type: sink.Gauge},
	{Name: "mysql.myisam.key_buffer_bytes_unflushed", Sources: []string{"Key_blocks_not_flushed", "key_cache_block_size"}, Combine: product, Type: sink.Gauge},
	{Name: "mysql.performance.table_locks_waited.rate", Sources: []string{"Table_locks_waited"}, Combine: same, Type: sink.Rate},
}

var innodbComputed = []mapping.Computed{
	{Name: "mysql.innodb.buffer_pool_total", Sources: []string{"Innodb_buffer_pool_pages_total", "Innodb_page_size"}, Combine: product, Type: sink.Gauge},
	{Name: "mysql.innodb.buffer_pool_free", Sources: []string{"Innodb_buffer_pool_pages_free", "Innodb_page_size"}, Combine: product, Type: sink.Gauge},
	{Name: "mysql.innodb.buffer_pool_used", Sources: []string{"Innodb_buffer_pool_pages_total", "Innodb_buffer_pool_pages_free", "Innodb_page_size"}, Combine: usedBytes, Type: sink.Gauge},
	{Name: "mysql.innodb.buffer_pool_utilization", Sources: []string{"Innodb_buffer_pool_pages_total", "Innodb_buffer_pool_pages_free"}, Combine: poolUtilization, Type: sink.Gauge},
}

var optionalComputed = []mapping.Computed{
	{Name: "mysql.performance.table_locks_immediate.rate", Sources: []string{"Table_locks_immediate"}, Combine: same, Type: sink.Rate},
}

// poolUtilization is the share of buffer pool pages in use.
func poolUtilization(vals []float64) (float64, bool) {
	if len(vals) != 2 || vals[0] <= 0 {
		return 0, false
	}
	return (vals[0] - vals[1]) / vals[0], true
}

// statusTable merges the enabled metric sets into one table.
func statusTable(innodb, binlog, extra bool) mapping.Table {
	t := mapping.Table{
		Fields:   map[string]mapping.Spec{},
		Sentinel: mapping.Unlimited,
	}
	merge := func(src map[string]mapping.Spec) {
		for k, v := range src {
			t.Fields[k] = v
		}
	}

	merge(statusVars)
	merge(variableVars)
	t.Computed = append(t.Computed, statusComputed...)
	if innodb {
		merge(innodbVars)
		t.Computed = append(t.Computed, innodbComputed...)
	}
	if binlog {
		merge(binlogVars)
	}
	if extra {
		merge(optionalStatusVars)
		t.Computed = append(t.Computed, optionalComputed...)
	}

	return t
}
