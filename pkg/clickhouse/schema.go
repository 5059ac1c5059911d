package clickhouse

import "fmt"

// Table names inside the configured database.
const (
	AnalysesTable    = "analyses"
	InvocationsTable = "agent_invocations"
)

// Schema returns the idempotent DDL for the analysis archive.
// Invocation rows expire after retentionDays; zero keeps them forever.
func Schema(database string, retentionDays int) []string {
	ttl := ""
	if retentionDays > 0 {
		ttl = fmt.Sprintf(" TTL toDateTime(ended_at) + INTERVAL %d DAY", retentionDays)
	}
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
	request_id  String,
	security_id LowCardinality(String),
	as_of       DateTime64(3, 'UTC'),
	stage       LowCardinality(String),
	action      LowCardinality(String),
	score       Float64,
	confidence  Float64,
	error_kind  LowCardinality(String),
	error       String,
	payload     String,
	created_at  DateTime64(3, 'UTC')
) ENGINE = MergeTree ORDER BY (security_id, created_at)`, database, AnalysesTable),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
	producer     LowCardinality(String),
	request_id   String,
	security_id  LowCardinality(String),
	started_at   DateTime64(3, 'UTC'),
	ended_at     DateTime64(3, 'UTC'),
	outcome      LowCardinality(String),
	error_kind   LowCardinality(String),
	score        Float64,
	confidence   Float64,
	payload_size LowCardinality(String)
) ENGINE = MergeTree ORDER BY (producer, ended_at)%s`, database, InvocationsTable, ttl),
	}
}
