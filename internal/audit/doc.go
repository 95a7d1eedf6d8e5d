// Package audit records security events.
//
// A Log fans each event out to its sinks:
//   - SlogSink: the application log
//   - FileSink: an append-only JSON file rotated by lumberjack
//   - MetricsSink: a Prometheus counter per category
//   - SurrealSink: the security_event table
//
// Events are write-only. Nothing in the request pipeline reads them back;
// persisted rows are only ever purged by jobs.EventRetention.
package audit
