package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"AlphaCrew/pkg/util"
)

type Config struct {
	Environment string           `yaml:"environment" default:"development" validate:"required,oneof=development staging production test"`
	Server      ServerConfig     `yaml:"server"`
	Log         LogConfig        `yaml:"log"`
	Agents      AgentsConfig     `yaml:"agents"`
	Detector    DetectorConfig   `yaml:"detector"`
	Synthesis   SynthesisConfig  `yaml:"synthesis"`
	Advisor     AdvisorConfig    `yaml:"advisor"`
	Telemetry   TelemetryConfig  `yaml:"telemetry"`
	LLM         LLMConfig        `yaml:"llm"`
	Financials  FinancialsConfig `yaml:"financials"`
	Redis       RedisConfig      `yaml:"redis"`
	Cache       CacheConfig      `yaml:"cache"`
	Queue       QueueConfig      `yaml:"queue"`
	Kafka       KafkaConfig      `yaml:"kafka"`
	ClickHouse  ClickHouseConfig `yaml:"clickhouse"`
	Pipeline    PipelineConfig   `yaml:"pipeline"`
	RateLimit   RateLimitConfig  `yaml:"rate_limit"`
	WebSocket   WebSocketConfig  `yaml:"websocket"`
}

type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port" default:"8080" validate:"gt=0,lte=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" default:"30s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
	SlowThreshold   time.Duration `yaml:"slow_threshold" default:"2s"`
	CORS            bool          `yaml:"cors" default:"true"`
}

type LogConfig struct {
	Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" default:"console" validate:"oneof=console json"`
	Output string `yaml:"output" default:"stdout"`
	// error aggregation published to Kafka
	Collect         bool          `yaml:"collect"`
	CollectInterval time.Duration `yaml:"collect_interval" default:"30s"`
	CollectMax      int           `yaml:"collect_max" default:"100"`
}

type AgentsConfig struct {
	Timeout          time.Duration `yaml:"timeout" default:"10s"`
	Narrate          bool          `yaml:"narrate"`
	NarrationTimeout time.Duration `yaml:"narration_timeout" default:"15s"`
	SinkTimeout      time.Duration `yaml:"sink_timeout" default:"5s"`
	Quantitative     struct {
		Enabled       bool    `yaml:"enabled" default:"true"`
		Years         int     `yaml:"years" default:"10" validate:"gte=1,lte=30"`
		MinConfidence float64 `yaml:"min_confidence" default:"0.2" validate:"gte=0,lte=1"`
	} `yaml:"quantitative"`
	Qualitative struct {
		Enabled       bool    `yaml:"enabled" default:"true"`
		MinConfidence float64 `yaml:"min_confidence" default:"0.1" validate:"gte=0,lte=1"`
		MaxConfidence float64 `yaml:"max_confidence" default:"0.9" validate:"gte=0,lte=1"`
	} `yaml:"qualitative"`
}

type DetectorConfig struct {
	DisagreementThreshold float64 `yaml:"disagreement_threshold" default:"0.6" validate:"gt=0,lte=2"`
	MinConfidence         float64 `yaml:"min_confidence" default:"0.5" validate:"gte=0,lte=1"`
	RangeK                float64 `yaml:"range_k" default:"3" validate:"gt=0"`
	MinHistory            int     `yaml:"min_history" default:"10" validate:"gte=2"`
}

type SynthesisConfig struct {
	BuyThreshold    float64 `yaml:"buy_threshold" default:"0.3" validate:"gte=-1,lte=1"`
	SellThreshold   float64 `yaml:"sell_threshold" default:"-0.3" validate:"gte=-1,lte=1"`
	CriticalPenalty float64 `yaml:"critical_penalty" default:"0.5" validate:"gte=0,lt=1"`
	WarnPenalty     float64 `yaml:"warn_penalty" default:"0.2" validate:"gte=0,lt=1"`
	MinConfidence   float64 `yaml:"min_confidence" default:"0.05" validate:"gte=0,lte=1"`
}

type AdvisorConfig struct {
	MaxPositionFraction float64 `yaml:"max_position_fraction" default:"0.1" validate:"gt=0,lte=1"`
	RiskBudget          float64 `yaml:"risk_budget" default:"0.5" validate:"gt=0"`
}

type TelemetryConfig struct {
	WindowSize    int     `yaml:"window_size" default:"200" validate:"gte=10"`
	RecentSegment int     `yaml:"recent_segment" default:"20" validate:"gte=1"`
	ZThreshold    float64 `yaml:"z_threshold" default:"2.0" validate:"gt=0"`
	MinSamples    int     `yaml:"min_samples" default:"10" validate:"gte=2"`
	MinStdDev     float64 `yaml:"min_std_dev" default:"0.05" validate:"gt=0"`
	// invocations loaded from ClickHouse at start-up, per producer window
	SeedFromStore bool `yaml:"seed_from_store" default:"true"`
}

type LLMConfig struct {
	Model            string        `yaml:"model" default:"gpt-4o-mini"`
	APIKey           string        `yaml:"api_key"`
	BaseURL          string        `yaml:"base_url"`
	MaxOutputTokens  int           `yaml:"max_output_tokens" default:"800"`
	Temperature      float64       `yaml:"temperature" default:"0.2" validate:"gte=0,lte=2"`
	Timeout          time.Duration `yaml:"timeout" default:"20s"`
	FailureThreshold uint32        `yaml:"failure_threshold" default:"5"`
	OpenTimeout      time.Duration `yaml:"open_timeout" default:"30s"`
}

type FinancialsConfig struct {
	BaseURL  string        `yaml:"base_url"`
	APIKey   string        `yaml:"api_key"`
	Timeout  time.Duration `yaml:"timeout" default:"5s"`
	Attempts int           `yaml:"attempts" default:"3" validate:"gte=1,lte=10"`
	CacheTTL time.Duration `yaml:"cache_ttl" default:"6h"`
}

type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Host     string        `yaml:"host" default:"localhost"`
	Port     int           `yaml:"port" default:"6379"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"pool_size" default:"10"`
	MinIdle  int           `yaml:"min_idle" default:"2"`
	Timeout  time.Duration `yaml:"timeout" default:"3s"`
}

func (r RedisConfig) Addr() string { return fmt.Sprintf("%s:%d", r.Host, r.Port) }

type CacheConfig struct {
	// memory, redis or layered; redis modes need redis.enabled
	Mode          string        `yaml:"mode" default:"memory" validate:"oneof=memory redis layered"`
	Prefix        string        `yaml:"prefix" default:"alphacrew"`
	MemoryMaxSize int           `yaml:"memory_max_size" default:"1000"`
	MemoryTTL     time.Duration `yaml:"memory_ttl" default:"5m"`
	ValuationTTL  time.Duration `yaml:"valuation_ttl" default:"15m"`
}

type QueueConfig struct {
	Enabled    bool          `yaml:"enabled"`
	Consume    bool          `yaml:"consume" default:"true"`
	Prefix     string        `yaml:"prefix" default:"alphacrew:queue"`
	Workers    int           `yaml:"workers" default:"2" validate:"gte=1"`
	RetryLimit int           `yaml:"retry_limit" default:"3"`
	RetryDelay time.Duration `yaml:"retry_delay" default:"30s"`
}

type KafkaConfig struct {
	Enabled      bool     `yaml:"enabled"`
	Brokers      []string `yaml:"brokers"`
	RequiredAcks int      `yaml:"required_acks" default:"-1" validate:"oneof=-1 0 1"`
	Compression  string   `yaml:"compression" default:"snappy" validate:"oneof=none gzip snappy lz4 zstd"`
	Topics       struct {
		Requests    string `yaml:"requests" default:"alphacrew.analysis.requests"`
		Events      string `yaml:"events" default:"alphacrew.analysis.events"`
		Invocations string `yaml:"invocations" default:"alphacrew.agent.invocations"`
		Drift       string `yaml:"drift" default:"alphacrew.telemetry.drift"`
		Logs        string `yaml:"logs" default:"alphacrew.logs"`
		DLQ         string `yaml:"dlq" default:"alphacrew.analysis.requests.dlq"`
	} `yaml:"topics"`
	Producer struct {
		MaxAttempts  int           `yaml:"max_attempts" default:"5"`
		Linger       time.Duration `yaml:"linger" default:"50ms"`
		BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
		BatchSize    int           `yaml:"batch_size" default:"100"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
		ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
		Async        bool          `yaml:"async"`
	} `yaml:"producer"`
	Consumer struct {
		Enabled    bool          `yaml:"enabled" default:"true"`
		GroupID    string        `yaml:"group_id" default:"alphacrew-analysis"`
		Workers    int           `yaml:"workers" default:"4"`
		BufferSize int           `yaml:"buffer_size" default:"256"`
		RetryMax   int           `yaml:"retry_max" default:"3"`
		BackoffMin time.Duration `yaml:"backoff_min" default:"200ms"`
		BackoffMax time.Duration `yaml:"backoff_max" default:"5s"`
		MinBytes   int           `yaml:"min_bytes" default:"1"`
		MaxBytes   int           `yaml:"max_bytes" default:"10485760"`
	} `yaml:"consumer"`
}

type ClickHouseConfig struct {
	Enabled          bool          `yaml:"enabled"`
	Host             string        `yaml:"host" default:"localhost"`
	Port             int           `yaml:"port" default:"9000"`
	Database         string        `yaml:"database" default:"alphacrew"`
	User             string        `yaml:"user" default:"default"`
	Password         string        `yaml:"password"`
	UseHTTP          bool          `yaml:"use_http"`
	AsyncInsert      bool          `yaml:"async_insert"`
	WaitForAsync     bool          `yaml:"wait_for_async_insert"`
	DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
	ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
	WriteTimeout     time.Duration `yaml:"write_timeout" default:"30s"`
	MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
	RetentionDays    int           `yaml:"retention_days" default:"90" validate:"gte=1"`
	SeedLimit        int           `yaml:"seed_limit" default:"1000"`
}

type PipelineConfig struct {
	BatchSize     int           `yaml:"batch_size" default:"200" validate:"gte=1"`
	FlushInterval time.Duration `yaml:"flush_interval" default:"2s"`
	BufferSize    int           `yaml:"buffer_size" default:"4096" validate:"gte=1"`
	RetryAttempts int           `yaml:"retry_attempts" default:"3"`
	BackoffMin    time.Duration `yaml:"backoff_min" default:"100ms"`
	BackoffMax    time.Duration `yaml:"backoff_max" default:"2s"`
}

type RateLimitConfig struct {
	Enabled bool          `yaml:"enabled" default:"true"`
	RPS     float64       `yaml:"rps" default:"2" validate:"gt=0"`
	Burst   int           `yaml:"burst" default:"5" validate:"gte=1"`
	Idle    time.Duration `yaml:"idle" default:"10m" validate:"gt=0"`
}

type WebSocketConfig struct {
	Enabled      bool          `yaml:"enabled" default:"true"`
	PingInterval time.Duration `yaml:"ping_interval" default:"30s"`
}

var validate = validator.New()

// Default returns a config with every default applied, as if loaded from an empty file.
func Default() (*Config, error) {
	return Parse(nil)
}

// Parse applies defaults, decodes b over them and validates the result.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	if len(b) > 0 {
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	c.applyEnv(os.Getenv)
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	str := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	flag := func(key string, dst *bool) {
		if v, err := strconv.ParseBool(getenv(key)); err == nil {
			*dst = v
		}
	}

	str("ALPHACREW_ENV", &c.Environment)
	c.Server.Port = util.ParseIntDefault(getenv("ALPHACREW_PORT"), c.Server.Port)
	str("ALPHACREW_LOG_LEVEL", &c.Log.Level)
	str("OPENAI_API_KEY", &c.LLM.APIKey)
	str("ALPHACREW_LLM_MODEL", &c.LLM.Model)
	str("ALPHACREW_FINANCIALS_URL", &c.Financials.BaseURL)
	str("ALPHACREW_FINANCIALS_API_KEY", &c.Financials.APIKey)
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = splitList(v)
		c.Kafka.Enabled = true
	}
	flag("ALPHACREW_KAFKA_ENABLED", &c.Kafka.Enabled)
	str("CLICKHOUSE_HOST", &c.ClickHouse.Host)
	str("CLICKHOUSE_PASSWORD", &c.ClickHouse.Password)
	flag("ALPHACREW_CLICKHOUSE_ENABLED", &c.ClickHouse.Enabled)
	str("REDIS_HOST", &c.Redis.Host)
	str("REDIS_PASSWORD", &c.Redis.Password)
	flag("ALPHACREW_REDIS_ENABLED", &c.Redis.Enabled)
	flag("ALPHACREW_QUEUE_ENABLED", &c.Queue.Enabled)
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate runs the struct tags, then the cross-field rules tags cannot express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Synthesis.SellThreshold >= c.Synthesis.BuyThreshold {
		return fmt.Errorf("synthesis.sell_threshold must be below synthesis.buy_threshold")
	}
	if c.Telemetry.RecentSegment >= c.Telemetry.WindowSize {
		return fmt.Errorf("telemetry.recent_segment must be smaller than telemetry.window_size")
	}
	if c.Agents.Qualitative.MinConfidence > c.Agents.Qualitative.MaxConfidence {
		return fmt.Errorf("agents.qualitative.min_confidence exceeds max_confidence")
	}
	if !c.Agents.Quantitative.Enabled && !c.Agents.Qualitative.Enabled {
		return fmt.Errorf("at least one agent must be enabled")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Cache.Mode != "memory" && !c.Redis.Enabled {
		return fmt.Errorf("cache.mode %q requires redis.enabled", c.Cache.Mode)
	}
	if c.Queue.Enabled && !c.Redis.Enabled {
		return fmt.Errorf("queue.enabled requires redis.enabled")
	}
	if c.Agents.Narrate && c.LLM.APIKey == "" {
		return fmt.Errorf("agents.narrate requires llm.api_key")
	}
	return nil
}
