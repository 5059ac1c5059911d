package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	assert.Equal(t, "development", c.Environment)
	assert.Equal(t, 8080, c.Server.Port)
	assert.Equal(t, 10*time.Second, c.Agents.Timeout)
	assert.True(t, c.Agents.Quantitative.Enabled)
	assert.True(t, c.Agents.Qualitative.Enabled)

	assert.Equal(t, 0.6, c.Detector.DisagreementThreshold)
	assert.Equal(t, 0.5, c.Detector.MinConfidence)
	assert.Equal(t, 3.0, c.Detector.RangeK)
	assert.Equal(t, 10, c.Detector.MinHistory)

	assert.Equal(t, 0.3, c.Synthesis.BuyThreshold)
	assert.Equal(t, -0.3, c.Synthesis.SellThreshold)
	assert.Equal(t, 0.5, c.Synthesis.CriticalPenalty)
	assert.Equal(t, 0.2, c.Synthesis.WarnPenalty)
	assert.Equal(t, 0.05, c.Synthesis.MinConfidence)

	assert.Equal(t, 0.1, c.Advisor.MaxPositionFraction)
	assert.Equal(t, 0.5, c.Advisor.RiskBudget)

	assert.Equal(t, 200, c.Telemetry.WindowSize)
	assert.Equal(t, 20, c.Telemetry.RecentSegment)
	assert.Equal(t, 2.0, c.Telemetry.ZThreshold)
	assert.Equal(t, 10, c.Telemetry.MinSamples)
	assert.Equal(t, 0.05, c.Telemetry.MinStdDev)

	assert.Equal(t, "alphacrew.analysis.requests", c.Kafka.Topics.Requests)
	assert.Equal(t, "alphacrew.logs", c.Kafka.Topics.Logs)
	assert.Equal(t, -1, c.Kafka.RequiredAcks)
	assert.Equal(t, "memory", c.Cache.Mode)
	assert.False(t, c.Kafka.Enabled)
	assert.False(t, c.ClickHouse.Enabled)
}

func TestParseOverridesDefaults(t *testing.T) {
	c, err := Parse([]byte(`
environment: production
agents:
  timeout: 3s
  qualitative:
    enabled: false
synthesis:
  buy_threshold: 0.4
`))
	require.NoError(t, err)
	assert.Equal(t, "production", c.Environment)
	assert.Equal(t, 3*time.Second, c.Agents.Timeout)
	assert.False(t, c.Agents.Qualitative.Enabled)
	assert.True(t, c.Agents.Quantitative.Enabled)
	assert.Equal(t, 0.4, c.Synthesis.BuyThreshold)
	assert.Equal(t, -0.3, c.Synthesis.SellThreshold)
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]string{
		"bad environment":     "environment: moon",
		"inverted thresholds": "synthesis: {buy_threshold: -0.5, sell_threshold: -0.3}",
		"recent segment":      "telemetry: {window_size: 20, recent_segment: 20}",
		"no agents":           "agents: {quantitative: {enabled: false}, qualitative: {enabled: false}}",
		"kafka no brokers":    "kafka: {enabled: true, brokers: []}",
		"redis cache":         "cache: {mode: redis}",
		"queue without redis": "queue: {enabled: true}",
		"narrate without key": "agents: {narrate: true}",
		"penalty range":       "synthesis: {warn_penalty: 1.5}",
		"log level":           "log: {level: loud}",
		"zero sweep interval": "rate_limit: {idle: 0s}",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadShippedConfig(t *testing.T) {
	c, err := Load(filepath.Join("..", "..", "config", "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, []string{"localhost:9092"}, c.Kafka.Brokers)
	assert.Equal(t, 15*time.Minute, c.Cache.ValuationTTL)
}

func TestLoadWithEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("environment: staging\n"), 0o644))

	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("ALPHACREW_PORT", "9090")
	t.Setenv("ALPHACREW_CLICKHOUSE_ENABLED", "true")

	c, err := LoadWithEnv(path)
	require.NoError(t, err)
	assert.Equal(t, "sk-test", c.LLM.APIKey)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.Kafka.Brokers)
	assert.True(t, c.Kafka.Enabled)
	assert.Equal(t, 9090, c.Server.Port)
	assert.True(t, c.ClickHouse.Enabled)
}

func TestLoadWithEnvIgnoresBadPort(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: {port: 8181}\n"), 0o644))
	t.Setenv("ALPHACREW_PORT", "eighty")

	c, err := LoadWithEnv(path)
	require.NoError(t, err)
	assert.Equal(t, 8181, c.Server.Port)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
