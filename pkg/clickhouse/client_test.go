package clickhouse

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDSN(t *testing.T) {
	dsn := buildDSN(ClientConfig{
		Host:        "ch",
		Port:        9000,
		Database:    "alphacrew",
		User:        "default",
		Password:    "pw",
		DialTimeout: 5 * time.Second,
		ReadTimeout: 10 * time.Second,
		MaxExecTime: 30 * time.Second,
		AsyncInsert: true,
	})
	assert.Equal(t, "clickhouse://default:pw@ch:9000/alphacrew?dial_timeout=5s&read_timeout=10s&max_execution_time=30&async_insert=1", dsn)

	dsn = buildDSN(ClientConfig{Host: "ch", Port: 8123, Database: "db", UseHTTP: true})
	assert.Equal(t, "clickhouse+http://:@ch:8123/db", dsn)
}

func TestNewClientRequiresHost(t *testing.T) {
	_, err := NewClient(WithPort(9000))
	require.Error(t, err)
}

func TestSchema(t *testing.T) {
	stmts := Schema("alphacrew", 30)
	require.Len(t, stmts, 3)
	assert.Equal(t, "CREATE DATABASE IF NOT EXISTS alphacrew", stmts[0])
	assert.Contains(t, stmts[1], "alphacrew.analyses")
	assert.Contains(t, stmts[2], "alphacrew.agent_invocations")
	assert.True(t, strings.HasSuffix(stmts[2], "INTERVAL 30 DAY"))

	assert.NotContains(t, Schema("x", 0)[2], "TTL")
}
