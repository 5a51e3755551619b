// Package sshaudit keeps a queryable audit trail in the application
// database.
//
// Connection outcomes reach it through [Auditor.RecordConnectionEvent],
// registered as a listener on the registry's event log. The HTTP layer
// records session profile and key changes with [Auditor.LogSession] and
// [Auditor.LogKey]. Entries older than the retention period are removed
// by [Auditor.PurgeOlderThan], normally on a cron schedule set up with
// [Auditor.SchedulePurge].
//
// Targets are user@host:port for connections, "session:<name>" for saved
// profiles and "key:<name>" for stored keys. Secrets are never recorded.
package sshaudit
