// Copyright © 2017 Circonus, Inc. <support@circonus.com>
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package envoy

import "github.com/circonus-labs/circonus-checks/internal/sink"

type stat struct {
	template string
	typ      sink.Type
}

// catalog of known stats. Placeholders name the tags following the segment
// before them.
var catalog = []stat{
	{"stats.overflow", sink.MonotonicCount},
	{"server.uptime", sink.Gauge},
	{"server.memory_allocated", sink.Gauge},
	{"server.memory_heap_size", sink.Gauge},
	{"server.live", sink.Gauge},
	{"server.parent_connections", sink.Gauge},
	{"server.total_connections", sink.Gauge},
	{"server.version", sink.Gauge},
	{"server.days_until_first_cert_expiring", sink.Gauge},
	{"filesystem.write_buffered", sink.MonotonicCount},
	{"filesystem.write_completed", sink.MonotonicCount},
	{"filesystem.flushed_by_timer", sink.MonotonicCount},
	{"filesystem.reopen_failed", sink.MonotonicCount},
	{"filesystem.write_total_buffered", sink.Gauge},
	{"runtime.load_error", sink.MonotonicCount},
	{"runtime.override_dir_not_exists", sink.MonotonicCount},
	{"runtime.override_dir_exists", sink.MonotonicCount},
	{"runtime.load_success", sink.MonotonicCount},
	{"runtime.num_keys", sink.Gauge},
	{"cluster_manager.cds.config_reload", sink.MonotonicCount},
	{"cluster_manager.cds.update_attempt", sink.MonotonicCount},
	{"cluster_manager.cds.update_success", sink.MonotonicCount},
	{"cluster_manager.cds.update_failure", sink.MonotonicCount},
	{"cluster_manager.cds.version", sink.Gauge},
	{"http.{stat_prefix}.no_route", sink.MonotonicCount},
	{"http.{stat_prefix}.no_cluster", sink.MonotonicCount},
	{"http.{stat_prefix}.rq_redirect", sink.MonotonicCount},
	{"http.{stat_prefix}.rq_direct_response", sink.MonotonicCount},
	{"http.{stat_prefix}.rq_total", sink.MonotonicCount},
	{"vhost.{virtual_host_name}.vcluster.{virtual_cluster_name}.upstream_rq_1xx", sink.MonotonicCount},
	{"vhost.{virtual_host_name}.vcluster.{virtual_cluster_name}.upstream_rq_2xx", sink.MonotonicCount},
	{"vhost.{virtual_host_name}.vcluster.{virtual_cluster_name}.upstream_rq_3xx", sink.MonotonicCount},
	{"vhost.{virtual_host_name}.vcluster.{virtual_cluster_name}.upstream_rq_4xx", sink.MonotonicCount},
	{"vhost.{virtual_host_name}.vcluster.{virtual_cluster_name}.upstream_rq_5xx", sink.MonotonicCount},
	{"vhost.{virtual_host_name}.vcluster.{virtual_cluster_name}.upstream_rq_time", sink.Histogram},
	{"cluster.{cluster_name}.ratelimit.ok", sink.MonotonicCount},
	{"cluster.{cluster_name}.ratelimit.error", sink.MonotonicCount},
	{"cluster.{cluster_name}.ratelimit.over_limit", sink.MonotonicCount},
	{"http.{stat_prefix}.ip_tagging.{tag_name}.hit", sink.MonotonicCount},
	{"http.{stat_prefix}.ip_tagging.no_hit", sink.MonotonicCount},
	{"http.{stat_prefix}.ip_tagging.total", sink.MonotonicCount},
	{"cluster.{cluster_name}.grpc.{grpc_service}.{grpc_method}.success", sink.MonotonicCount},
	{"cluster.{cluster_name}.grpc.{grpc_service}.{grpc_method}.failure", sink.MonotonicCount},
	{"cluster.{cluster_name}.grpc.{grpc_service}.{grpc_method}.total", sink.MonotonicCount},
	{"http.{stat_prefix}.dynamodb.operation.{operation_name}.upstream_rq_total", sink.MonotonicCount},
	{"http.{stat_prefix}.dynamodb.operation.{operation_name}.upstream_rq_time", sink.Histogram},
	{"http.{stat_prefix}.dynamodb.table.{table_name}.upstream_rq_total", sink.MonotonicCount},
	{"http.{stat_prefix}.dynamodb.table.{table_name}.upstream_rq_time", sink.Histogram},
	{"http.{stat_prefix}.dynamodb.error.{table_name}.{error_type}", sink.MonotonicCount},
	{"http.{stat_prefix}.dynamodb.error.{table_name}.BatchFailureUnprocessedKeys", sink.MonotonicCount},
	{"http.{stat_prefix}.buffer.rq_timeout", sink.MonotonicCount},
	{"http.{stat_prefix}.rds.{route_config_name}.config_reload", sink.MonotonicCount},
	{"http.{stat_prefix}.rds.{route_config_name}.update_attempt", sink.MonotonicCount},
	{"http.{stat_prefix}.rds.{route_config_name}.update_success", sink.MonotonicCount},
	{"http.{stat_prefix}.rds.{route_config_name}.update_failure", sink.MonotonicCount},
	{"http.{stat_prefix}.rds.{route_config_name}.version", sink.Gauge},
	{"tcp.{stat_prefix}.downstream_cx_total", sink.MonotonicCount},
	{"tcp.{stat_prefix}.downstream_cx_no_route", sink.MonotonicCount},
	{"tcp.{stat_prefix}.downstream_cx_tx_bytes_total", sink.MonotonicCount},
	{"tcp.{stat_prefix}.downstream_cx_tx_bytes_buffered", sink.Gauge},
	{"tcp.{stat_prefix}.downstream_flow_control_paused_reading_total", sink.MonotonicCount},
	{"tcp.{stat_prefix}.downstream_flow_control_resumed_reading_total", sink.MonotonicCount},
	{"auth.clientssl.{stat_prefix}.update_success", sink.MonotonicCount},
	{"auth.clientssl.{stat_prefix}.update_failure", sink.MonotonicCount},
	{"auth.clientssl.{stat_prefix}.auth_no_ssl", sink.MonotonicCount},
	{"auth.clientssl.{stat_prefix}.auth_ip_white_list", sink.MonotonicCount},
	{"auth.clientssl.{stat_prefix}.auth_digest_match", sink.MonotonicCount},
	{"auth.clientssl.{stat_prefix}.auth_digest_no_match", sink.MonotonicCount},
	{"auth.clientssl.{stat_prefix}.total_principals", sink.Gauge},
	{"ratelimit.{stat_prefix}.total", sink.MonotonicCount},
	{"ratelimit.{stat_prefix}.error", sink.MonotonicCount},
	{"ratelimit.{stat_prefix}.over_limit", sink.MonotonicCount},
	{"ratelimit.{stat_prefix}.ok", sink.MonotonicCount},
	{"ratelimit.{stat_prefix}.cx_closed", sink.MonotonicCount},
	{"ratelimit.{stat_prefix}.active", sink.Gauge},
	{"redis.{stat_prefix}.downstream_cx_active", sink.Gauge},
	{"redis.{stat_prefix}.downstream_cx_protocol_error", sink.MonotonicCount},
	{"redis.{stat_prefix}.downstream_cx_rx_bytes_buffered", sink.Gauge},
	{"redis.{stat_prefix}.downstream_cx_rx_bytes_total", sink.MonotonicCount},
	{"redis.{stat_prefix}.downstream_cx_total", sink.MonotonicCount},
	{"redis.{stat_prefix}.downstream_cx_tx_bytes_buffered", sink.Gauge},
	{"redis.{stat_prefix}.downstream_cx_tx_bytes_total", sink.MonotonicCount},
	{"redis.{stat_prefix}.downstream_cx_drain_close", sink.MonotonicCount},
	{"redis.{stat_prefix}.downstream_rq_active", sink.Gauge},
	{"redis.{stat_prefix}.downstream_rq_total", sink.MonotonicCount},
	{"redis.{stat_prefix}.splitter.invalid_request", sink.MonotonicCount},
	{"redis.{stat_prefix}.splitter.unsupported_command", sink.MonotonicCount},
	{"redis.{stat_prefix}.command.{command}.total", sink.MonotonicCount},
	{"mongo.{stat_prefix}.decoding_error", sink.MonotonicCount},
	{"mongo.{stat_prefix}.delay_injected", sink.MonotonicCount},
	{"mongo.{stat_prefix}.op_get_more", sink.MonotonicCount},
	{"mongo.{stat_prefix}.op_insert", sink.MonotonicCount},
	{"mongo.{stat_prefix}.op_kill_cursors", sink.MonotonicCount},
	{"mongo.{stat_prefix}.op_query", sink.MonotonicCount},
	{"mongo.{stat_prefix}.op_query_tailable_cursor", sink.MonotonicCount},
	{"mongo.{stat_prefix}.op_query_no_cursor_timeout", sink.MonotonicCount},
	{"mongo.{stat_prefix}.op_query_await_data", sink.MonotonicCount},
	{"mongo.{stat_prefix}.op_query_exhaust", sink.MonotonicCount},
	{"mongo.{stat_prefix}.op_query_no_max_time", sink.MonotonicCount},
	{"mongo.{stat_prefix}.op_query_scatter_get", sink.MonotonicCount},
	{"mongo.{stat_prefix}.op_query_multi_get", sink.MonotonicCount},
	{"mongo.{stat_prefix}.op_query_active", sink.Gauge},
	{"mongo.{stat_prefix}.op_reply", sink.MonotonicCount},
	{"mongo.{stat_prefix}.op_reply_cursor_not_found", sink.MonotonicCount},
	{"mongo.{stat_prefix}.op_reply_query_failure", sink.MonotonicCount},
	{"mongo.{stat_prefix}.op_reply_valid_cursor", sink.MonotonicCount},
	{"mongo.{stat_prefix}.cx_destroy_local_with_active_rq", sink.MonotonicCount},
	{"mongo.{stat_prefix}.cx_destroy_remote_with_active_rq", sink.MonotonicCount},
	{"mongo.{stat_prefix}.cx_drain_close", sink.MonotonicCount},
	{"mongo.{stat_prefix}.cmd.{cmd}.total", sink.MonotonicCount},
	{"mongo.{stat_prefix}.cmd.{cmd}.reply_num_docs", sink.Histogram},
	{"mongo.{stat_prefix}.cmd.{cmd}.reply_size", sink.Histogram},
	{"mongo.{stat_prefix}.cmd.{cmd}.reply_time_ms", sink.Histogram},
	{"mongo.{stat_prefix}.collection.{collection}.query.total", sink.MonotonicCount},
	{"mongo.{stat_prefix}.collection.{collection}.query.scatter_get", sink.MonotonicCount},
	{"mongo.{stat_prefix}.collection.{collection}.query.multi_get", sink.MonotonicCount},
	{"mongo.{stat_prefix}.collection.{collection}.query.reply_num_docs", sink.Histogram},
	{"mongo.{stat_prefix}.collection.{collection}.query.reply_size", sink.Histogram},
	{"mongo.{stat_prefix}.collection.{collection}.query.reply_time_ms", sink.Histogram},
	{"mongo.{stat_prefix}.collection.{collection}.callsite.{callsite}.query.total", sink.MonotonicCount},
	{"mongo.{stat_prefix}.collection.{collection}.callsite.{callsite}.query.scatter_get", sink.MonotonicCount},
	{"mongo.{stat_prefix}.collection.{collection}.callsite.{callsite}.query.multi_get", sink.MonotonicCount},
	{"mongo.{stat_prefix}.collection.{collection}.callsite.{callsite}.query.reply_num_docs", sink.Histogram},
	{"mongo.{stat_prefix}.collection.{collection}.callsite.{callsite}.query.reply_size", sink.Histogram},
	{"mongo.{stat_prefix}.collection.{collection}.callsite.{callsite}.query.reply_time_ms", sink.Histogram},
	{"listener.{address}.downstream_cx_total", sink.MonotonicCount},
	{"listener.{address}.downstream_cx_destroy", sink.MonotonicCount},
	{"listener.{address}.downstream_cx_active", sink.Gauge},
	{"listener.{address}.downstream_cx_length_ms", sink.Histogram},
	{"listener.{address}.ssl.connection_error", sink.MonotonicCount},
	{"listener.{address}.ssl.handshake", sink.MonotonicCount},
	{"listener.{address}.ssl.session_reused", sink.MonotonicCount},
	{"listener.{address}.ssl.no_certificate", sink.MonotonicCount},
	{"listener.{address}.ssl.fail_no_sni_match", sink.MonotonicCount},
	{"listener.{address}.ssl.fail_verify_no_cert", sink.MonotonicCount},
	{"listener.{address}.ssl.fail_verify_error", sink.MonotonicCount},
	{"listener.{address}.ssl.fail_verify_san", sink.MonotonicCount},
	{"listener.{address}.ssl.fail_verify_cert_hash", sink.MonotonicCount},
	{"listener.{address}.ssl.cipher.{cipher}", sink.MonotonicCount},
	{"listener_manager.listener_added", sink.MonotonicCount},
	{"listener_manager.listener_modified", sink.MonotonicCount},
	{"listener_manager.listener_removed", sink.MonotonicCount},
	{"listener_manager.listener_create_success", sink.MonotonicCount},
	{"listener_manager.listener_create_failure", sink.MonotonicCount},
	{"listener_manager.total_listeners_warming", sink.Gauge},
	{"listener_manager.total_listeners_active", sink.Gauge},
	{"listener_manager.total_listeners_draining", sink.Gauge},
	{"http.{stat_prefix}.downstream_cx_total", sink.MonotonicCount},
	{"http.{stat_prefix}.downstream_cx_ssl_total", sink.MonotonicCount},
	{"http.{stat_prefix}.downstream_cx_http1_total", sink.MonotonicCount},
	{"http.{stat_prefix}.downstream_cx_websocket_total", sink.MonotonicCount},
	{"http.{stat_prefix}.downstream_cx_http2_total", sink.MonotonicCount},
	{"http.{stat_prefix}.downstream_cx_destroy", sink.MonotonicCount},
	{"http.{stat_prefix}.downstream_cx_destroy_remote", sink.MonotonicCount},
	{"http.{stat_prefix}.downstream_cx_destroy_local", sink.MonotonicCount},
	{"http.{stat_prefix}.downstream_cx_destroy_active_rq", sink.MonotonicCount},
	{"http.{stat_prefix}.downstream_cx_destroy_local_active_rq", sink.MonotonicCount},
	{"http.{stat_prefix}.downstream_cx_destroy_remote_active_rq", sink.MonotonicCount},
	{"http.{stat_prefix}.downstream_cx_active", sink.Gauge},
	{"http.{stat_prefix}.downstream_cx_ssl_active", sink.Gauge},
	{"http.{stat_prefix}.downstream_cx_http1_active", sink.Gauge},
	{"http.{stat_prefix}.downstream_cx_websocket_active", sink.Gauge},
	{"http.{stat_prefix}.downstream_cx_http2_active", sink.Gauge},
	{"http.{stat_prefix}.downstream_cx_protocol_error", sink.MonotonicCount},
	{"http.{stat_prefix}.downstream_cx_length_ms", sink.Histogram},
	{"http.{stat_prefix}.downstream_cx_rx_bytes_total", sink.MonotonicCount},
	{"http.{stat_prefix}.downstream_cx_rx_bytes_buffered", sink.Gauge},
	{"http.{stat_prefix}.downstream_cx_tx_bytes_total", sink.MonotonicCount},
	{"http.{stat_prefix}.downstream_cx_tx_bytes_buffered", sink.Gauge},
	{"http.{stat_prefix}.downstream_cx_drain_close", sink.MonotonicCount},
	{"http.{stat_prefix}.downstream_cx_idle_timeout", sink.MonotonicCount},
	{"http.{stat_prefix}.downstream_flow_control_paused_reading_total", sink.MonotonicCount},
	{"http.{stat_prefix}.downstream_flow_control_resumed_reading_total", sink.MonotonicCount},
	{"http.{stat_prefix}.downstream_rq_total", sink.MonotonicCount},
	{"http.{stat_prefix}.downstream_rq_http1_total", sink.MonotonicCount},
	{"http.{stat_prefix}.downstream_rq_http2_total", sink.MonotonicCount},
	{"http.{stat_prefix}.downstream_rq_active", sink.Gauge},
	{"http.{stat_prefix}.downstream_rq_response_before_rq_complete", sink.MonotonicCount},
	{"http.{stat_prefix}.downstream_rq_rx_reset", sink.MonotonicCount},
	{"http.{stat_prefix}.downstream_rq_tx_reset", sink.MonotonicCount},
	{"http.{stat_prefix}.downstream_rq_non_relative_path", sink.MonotonicCount},
	{"http.{stat_prefix}.downstream_rq_too_large", sink.MonotonicCount},
	{"http.{stat_prefix}.downstream_rq_1xx", sink.MonotonicCount},
	{"http.{stat_prefix}.downstream_rq_2xx", sink.MonotonicCount},
	{"http.{stat_prefix}.downstream_rq_3xx", sink.MonotonicCount},
	{"http.{stat_prefix}.downstream_rq_4xx", sink.MonotonicCount},
	{"http.{stat_prefix}.downstream_rq_5xx", sink.MonotonicCount},
	{"http.{stat_prefix}.downstream_rq_ws_on_non_ws_route", sink.MonotonicCount},
	{"http.{stat_prefix}.downstream_rq_time", sink.Histogram},
	{"http.{stat_prefix}.rs_too_large", sink.MonotonicCount},
	{"http.{stat_prefix}.user_agent.{user_agent}.downstream_cx_total", sink.MonotonicCount},
	{"http.{stat_prefix}.user_agent.{user_agent}.downstream_cx_destroy_remote_active_rq", sink.MonotonicCount},
	{"http.{stat_prefix}.user_agent.{user_agent}.downstream_rq_total", sink.MonotonicCount},
	{"listener.{address}.http.{stat_prefix}.downstream_rq_1xx", sink.MonotonicCount},
	{"listener.{address}.http.{stat_prefix}.downstream_rq_2xx", sink.MonotonicCount},
	{"listener.{address}.http.{stat_prefix}.downstream_rq_3xx", sink.MonotonicCount},
	{"listener.{address}.http.{stat_prefix}.downstream_rq_4xx", sink.MonotonicCount},
	{"listener.{address}.http.{stat_prefix}.downstream_rq_5xx", sink.MonotonicCount},
	{"http2.rx_reset", sink.MonotonicCount},
	{"http2.tx_reset", sink.MonotonicCount},
	{"http2.header_overflow", sink.MonotonicCount},
	{"http2.trailers", sink.MonotonicCount},
	{"http2.headers_cb_no_stream", sink.MonotonicCount},
	{"http2.too_many_header_frames", sink.MonotonicCount},
	{"http.{stat_prefix}.tracing.random_sampling", sink.MonotonicCount},
	{"http.{stat_prefix}.tracing.service_forced", sink.MonotonicCount},
	{"http.{stat_prefix}.tracing.client_enabled", sink.MonotonicCount},
	{"http.{stat_prefix}.tracing.not_traceable", sink.MonotonicCount},
	{"http.{stat_prefix}.tracing.health_check", sink.MonotonicCount},
	{"cluster_manager.cluster_added", sink.MonotonicCount},
	{"cluster_manager.cluster_modified", sink.MonotonicCount},
	{"cluster_manager.cluster_removed", sink.MonotonicCount},
	{"cluster_manager.active_clusters", sink.Gauge},
	{"cluster_manager.warming_clusters", sink.Gauge},
	{"cluster.{cluster_name}.upstream_cx_total", sink.MonotonicCount},
	{"cluster.{cluster_name}.upstream_cx_active", sink.Gauge},
	{"cluster.{cluster_name}.upstream_cx_http1_total", sink.MonotonicCount},
	{"cluster.{cluster_name}.upstream_cx_http2_total", sink.MonotonicCount},
	{"cluster.{cluster_name}.upstream_cx_connect_fail", sink.MonotonicCount},
	{"cluster.{cluster_name}.upstream_cx_connect_timeout", sink.MonotonicCount},
	{"cluster.{cluster_name}.upstream_cx_connect_attempts_exceeded", sink.MonotonicCount},
	{"cluster.{cluster_name}.upstream_cx_overflow", sink.MonotonicCount},
	{"cluster.{cluster_name}.upstream_cx_connect_ms", sink.Histogram},
	{"cluster.{cluster_name}.upstream_cx_length_ms", sink.Histogram},
	{"cluster.{cluster_name}.upstream_cx_destroy", sink.MonotonicCount},
	{"cluster.{cluster_name}.upstream_cx_destroy_local", sink.MonotonicCount},
	{"cluster.{cluster_name}.upstream_cx_destroy_remote", sink.MonotonicCount},
	{"cluster.{cluster_name}.upstream_cx_destroy_with_active_rq", sink.MonotonicCount},
	{"cluster.{cluster_name}.upstream_cx_destroy_local_with_active_rq", sink.MonotonicCount},
	{"cluster.{cluster_name}.upstream_cx_destroy_remote_with_active_rq", sink.MonotonicCount},
	{"cluster.{cluster_name}.upstream_cx_close_notify", sink.MonotonicCount},
	{"cluster.{cluster_name}.upstream_cx_rx_bytes_total", sink.MonotonicCount},
	{"cluster.{cluster_name}.upstream_cx_rx_bytes_buffered", sink.Gauge},
	{"cluster.{cluster_name}.upstream_cx_tx_bytes_total", sink.MonotonicCount},
	{"cluster.{cluster_name}.upstream_cx_tx_bytes_buffered", sink.Gauge},
	{"cluster.{cluster_name}.upstream_cx_protocol_error", sink.MonotonicCount},
	{"cluster.{cluster_name}.upstream_cx_max_requests", sink.MonotonicCount},
	{"cluster.{cluster_name}.upstream_cx_none_healthy", sink.MonotonicCount},
	{"cluster.{cluster_name}.upstream_rq_total", sink.MonotonicCount},
	{"cluster.{cluster_name}.upstream_rq_active", sink.Gauge},
	{"cluster.{cluster_name}.upstream_rq_pending_total", sink.MonotonicCount},
	{"cluster.{cluster_name}.upstream_rq_pending_overflow", sink.MonotonicCount},
	{"cluster.{cluster_name}.upstream_rq_pending_failure_eject", sink.MonotonicCount},
	{"cluster.{cluster_name}.upstream_rq_pending_active", sink.Gauge},
	{"cluster.{cluster_name}.upstream_rq_cancelled", sink.MonotonicCount},
	{"cluster.{cluster_name}.upstream_rq_maintenance_mode", sink.MonotonicCount},
	{"cluster.{cluster_name}.upstream_rq_timeout", sink.MonotonicCount},
	{"cluster.{cluster_name}.upstream_rq_per_try_timeout", sink.MonotonicCount},
	{"cluster.{cluster_name}.upstream_rq_rx_reset", sink.MonotonicCount},
	{"cluster.{cluster_name}.upstream_rq_tx_reset", sink.MonotonicCount},
	{"cluster.{cluster_name}.upstream_rq_retry", sink.MonotonicCount},
	{"cluster.{cluster_name}.upstream_rq_retry_success", sink.MonotonicCount},
	{"cluster.{cluster_name}.upstream_rq_retry_overflow", sink.MonotonicCount},
	{"cluster.{cluster_name}.upstream_flow_control_paused_reading_total", sink.MonotonicCount},
	{"cluster.{cluster_name}.upstream_flow_control_resumed_reading_total", sink.MonotonicCount},
	{"cluster.{cluster_name}.upstream_flow_control_backed_up_total", sink.MonotonicCount},
	{"cluster.{cluster_name}.upstream_flow_control_drained_total", sink.MonotonicCount},
	{"cluster.{cluster_name}.membership_change", sink.MonotonicCount},
	{"cluster.{cluster_name}.membership_healthy", sink.Gauge},
	{"cluster.{cluster_name}.membership_total", sink.Gauge},
	{"cluster.{cluster_name}.retry_or_shadow_abandoned", sink.MonotonicCount},
	{"cluster.{cluster_name}.config_reload", sink.MonotonicCount},
	{"cluster.{cluster_name}.update_attempt", sink.MonotonicCount},
	{"cluster.{cluster_name}.update_success", sink.MonotonicCount},
	{"cluster.{cluster_name}.update_failure", sink.MonotonicCount},
	{"cluster.{cluster_name}.update_empty", sink.MonotonicCount},
	{"cluster.{cluster_name}.version", sink.Gauge},
	{"cluster.{cluster_name}.max_host_weight", sink.Gauge},
	{"cluster.{cluster_name}.bind_errors", sink.MonotonicCount},
	{"cluster.{cluster_name}.health_check.attempt", sink.MonotonicCount},
	{"cluster.{cluster_name}.health_check.success", sink.MonotonicCount},
	{"cluster.{cluster_name}.health_check.failure", sink.MonotonicCount},
	{"cluster.{cluster_name}.health_check.passive_failure", sink.MonotonicCount},
	{"cluster.{cluster_name}.health_check.network_failure", sink.MonotonicCount},
	{"cluster.{cluster_name}.health_check.verify_cluster", sink.MonotonicCount},
	{"cluster.{cluster_name}.health_check.healthy", sink.Gauge},
	{"cluster.{cluster_name}.outlier_detection.ejections_enforced_total", sink.MonotonicCount},
	{"cluster.{cluster_name}.outlier_detection.ejections_active", sink.Gauge},
	{"cluster.{cluster_name}.outlier_detection.ejections_overflow", sink.MonotonicCount},
	{"cluster.{cluster_name}.outlier_detection.ejections_enforced_consecutive_5xx", sink.MonotonicCount},
	{"cluster.{cluster_name}.outlier_detection.ejections_detected_consecutive_5xx", sink.MonotonicCount},
	{"cluster.{cluster_name}.outlier_detection.ejections_enforced_success_rate", sink.MonotonicCount},
	{"cluster.{cluster_name}.outlier_detection.ejections_detected_success_rate", sink.MonotonicCount},
	{"cluster.{cluster_name}.outlier_detection.ejections_enforced_consecutive_gateway_failure", sink.MonotonicCount},
	{"cluster.{cluster_name}.outlier_detection.ejections_detected_consecutive_gateway_failure", sink.MonotonicCount},
	{"cluster.{cluster_name}.upstream_rq_1xx", sink.MonotonicCount},
	{"cluster.{cluster_name}.upstream_rq_2xx", sink.MonotonicCount},
	{"cluster.{cluster_name}.upstream_rq_3xx", sink.MonotonicCount},
	{"cluster.{cluster_name}.upstream_rq_4xx", sink.MonotonicCount},
	{"cluster.{cluster_name}.upstream_rq_5xx", sink.MonotonicCount},
	{"cluster.{cluster_name}.upstream_rq_time", sink.Histogram},
	{"cluster.{cluster_name}.canary.upstream_rq_1xx", sink.MonotonicCount},
	{"cluster.{cluster_name}.canary.upstream_rq_2xx", sink.MonotonicCount},
	{"cluster.{cluster_name}.canary.upstream_rq_3xx", sink.MonotonicCount},
	{"cluster.{cluster_name}.canary.upstream_rq_4xx", sink.MonotonicCount},
	{"cluster.{cluster_name}.canary.upstream_rq_5xx", sink.MonotonicCount},
	{"cluster.{cluster_name}.canary.upstream_rq_time", sink.Histogram},
	{"cluster.{cluster_name}.internal.upstream_rq_1xx", sink.MonotonicCount},
	{"cluster.{cluster_name}.internal.upstream_rq_2xx", sink.MonotonicCount},
	{"cluster.{cluster_name}.internal.upstream_rq_3xx", sink.MonotonicCount},
	{"cluster.{cluster_name}.internal.upstream_rq_4xx", sink.MonotonicCount},
	{"cluster.{cluster_name}.internal.upstream_rq_5xx", sink.MonotonicCount},
	{"cluster.{cluster_name}.internal.upstream_rq_time", sink.Histogram},
	{"cluster.{cluster_name}.external.upstream_rq_1xx", sink.MonotonicCount},
	{"cluster.{cluster_name}.external.upstream_rq_2xx", sink.MonotonicCount},
	{"cluster.{cluster_name}.external.upstream_rq_3xx", sink.MonotonicCount},
	{"cluster.{cluster_name}.external.upstream_rq_4xx", sink.MonotonicCount},
	{"cluster.{cluster_name}.external.upstream_rq_5xx", sink.MonotonicCount},
	{"cluster.{cluster_name}.external.upstream_rq_time", sink.Histogram},
	{"cluster.{cluster_name}.zone.{from_zone}.{to_zone}.upstream_rq_1xx", sink.MonotonicCount},
	{"cluster.{cluster_name}.zone.{from_zone}.{to_zone}.upstream_rq_2xx", sink.MonotonicCount},
	{"cluster.{cluster_name}.zone.{from_zone}.{to_zone}.upstream_rq_3xx", sink.MonotonicCount},
	{"cluster.{cluster_name}.zone.{from_zone}.{to_zone}.upstream_rq_4xx", sink.MonotonicCount},
	{"cluster.{cluster_name}.zone.{from_zone}.{to_zone}.upstream_rq_5xx", sink.MonotonicCount},
	{"cluster.{cluster_name}.zone.{from_zone}.{to_zone}.upstream_rq_time", sink.Histogram},
	{"cluster.{cluster_name}.lb_recalculate_zone_structures", sink.MonotonicCount},
	{"cluster.{cluster_name}.lb_healthy_panic", sink.MonotonicCount},
	{"cluster.{cluster_name}.lb_zone_cluster_too_small", sink.MonotonicCount},
	{"cluster.{cluster_name}.lb_zone_routing_all_directly", sink.MonotonicCount},
	{"cluster.{cluster_name}.lb_zone_routing_sampled", sink.MonotonicCount},
	{"cluster.{cluster_name}.lb_zone_routing_cross_zone", sink.MonotonicCount},
	{"cluster.{cluster_name}.lb_local_cluster_not_ok", sink.MonotonicCount},
	{"cluster.{cluster_name}.lb_zone_number_differs", sink.MonotonicCount},
	{"cluster.{cluster_name}.lb_zone_no_capacity_left", sink.MonotonicCount},
	{"cluster.{cluster_name}.lb_subsets_active", sink.Gauge},
	{"cluster.{cluster_name}.lb_subsets_created", sink.MonotonicCount},
	{"cluster.{cluster_name}.lb_subsets_removed", sink.MonotonicCount},
	{"cluster.{cluster_name}.lb_subsets_selected", sink.MonotonicCount},
	{"cluster.{cluster_name}.lb_subsets_fallback", sink.MonotonicCount},
}
