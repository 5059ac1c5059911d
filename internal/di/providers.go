package di

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"

	domrepo "AlphaCrew/internal/domain/repository"
	domsvc "AlphaCrew/internal/domain/service"
	"AlphaCrew/internal/handler/api"
	"AlphaCrew/internal/handler/ws"
	mid "AlphaCrew/internal/middleware"
	internalrepo "AlphaCrew/internal/repository"
	"AlphaCrew/internal/service/financials"
	"AlphaCrew/internal/service/llm"
	"AlphaCrew/internal/service/ratelimit"
	"AlphaCrew/internal/services/agents"
	"AlphaCrew/internal/services/analytics"
	"AlphaCrew/internal/services/telemetry"
	"AlphaCrew/internal/services/valuation"
	"AlphaCrew/internal/usecase"
	"AlphaCrew/pkg/cache"
	pkgch "AlphaCrew/pkg/clickhouse"
	"AlphaCrew/pkg/config"
	xhttp "AlphaCrew/pkg/http"
	pkgkafka "AlphaCrew/pkg/kafka"
	applogger "AlphaCrew/pkg/logger"
	"AlphaCrew/pkg/metrics"
	"AlphaCrew/pkg/queue"
	"AlphaCrew/pkg/server"
)

// ProvideLogger creates the process logger from config.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(applogger.String("env", cfg.Environment)), nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() domrepo.Metrics {
	return metrics.New()
}

// ProvideClickHouseClient connects and applies the schema. Nil when disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, pkgch.Schema(cfg.ClickHouse.Database, cfg.ClickHouse.RetentionDays)); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

// ProvideAnalysisStore wraps the ClickHouse client. Nil without a client.
func ProvideAnalysisStore(ch *pkgch.Client, l *applogger.Logger) *internalrepo.CHAnalysisStore {
	if ch == nil {
		return nil
	}
	store := internalrepo.NewCHAnalysisStore(ch)
	store.SetLogger(l)
	return store
}

// ProvideKafkaProducer creates a Kafka producer. Nil when Kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithDelivery(cfg.Kafka.RequiredAcks, cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.BatchBytes, cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithKeyOrdering(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideEventPublisher publishes pipeline events. Nil without a producer.
func ProvideEventPublisher(producer *pkgkafka.Producer, cfg *config.Config, l *applogger.Logger) *internalrepo.KafkaEventPublisher {
	if producer == nil {
		return nil
	}
	pub := internalrepo.NewKafkaEventPublisher(producer, internalrepo.Topics{
		Analyses:    cfg.Kafka.Topics.Events,
		Invocations: cfg.Kafka.Topics.Invocations,
		Drift:       cfg.Kafka.Topics.Drift,
	})
	if cfg.Log.Collect {
		l.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   cfg.Log.CollectInterval,
			CountThreshold: cfg.Log.CollectMax,
			Topic:          cfg.Kafka.Topics.Logs,
			Publisher:      pub,
		})
	}
	return pub
}

// ProvideKafkaConsumer creates the analysis request consumer. Nil when disabled.
func ProvideKafkaConsumer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled || !cfg.Kafka.Consumer.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Topics.DLQ),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.SetLogger(l)
	consumer.WithConsumerHook(pkgkafka.NewHookChain(traceHook(l)))
	return consumer, nil
}

// traceHook stamps the trace id and start time and logs slow handling.
func traceHook(l *applogger.Logger) pkgkafka.ConsumerHook {
	return pkgkafka.HookFuncs{
		Before: func(ctx context.Context, _ string, km kafkago.Message, data []byte) (context.Context, kafkago.Message, []byte, error) {
			ctx = pkgkafka.WithStartTime(ctx, time.Now())
			ctx = pkgkafka.WithTraceID(ctx, pkgkafka.ExtractTraceID(km))
			return ctx, km, data, nil
		},
		After: func(ctx context.Context, topic string, _ kafkago.Message, _ []byte, _ error) {
			start, ok := pkgkafka.StartTimeFromContext(ctx)
			if !ok {
				return
			}
			if d := time.Since(start); d > 30*time.Second {
				l.Warn("kafka handler slow",
					applogger.String("topic", topic),
					applogger.String("trace_id", pkgkafka.TraceFromContext(ctx)),
					applogger.Duration("elapsed_ms", d))
			}
		},
	}
}

// ProvideRedisClient connects to Redis. Nil when disabled.
func ProvideRedisClient(cfg *config.Config) (*redis.Client, error) {
	if !cfg.Redis.Enabled {
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Redis.Addr(),
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdle,
		DialTimeout:  cfg.Redis.Timeout,
		ReadTimeout:  cfg.Redis.Timeout,
		WriteTimeout: cfg.Redis.Timeout,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

// ProvideCache picks the cache implementation named by cache.mode.
func ProvideCache(cfg *config.Config, rc *redis.Client) (cache.Service, error) {
	switch cfg.Cache.Mode {
	case "redis", "layered":
		if rc == nil {
			return nil, fmt.Errorf("cache mode %q needs redis", cfg.Cache.Mode)
		}
		rcache := cache.NewRedisCacheFromClient(rc, cfg.Cache.Prefix)
		if cfg.Cache.Mode == "redis" {
			return rcache, nil
		}
		return cache.NewLayeredCache(rcache,
			cache.WithLayeredMemorySize(cfg.Cache.MemoryMaxSize),
			cache.WithLayeredMemoryTTL(cfg.Cache.MemoryTTL),
		), nil
	default:
		return cache.NewMemoryCache(cache.WithMemoryMaxSize(cfg.Cache.MemoryMaxSize)), nil
	}
}

// ProvideFinancials creates the cached financial data client.
func ProvideFinancials(cfg *config.Config, c cache.Service, l *applogger.Logger) domsvc.FinancialsProvider {
	p := financials.NewHTTPProvider(financials.Config{
		BaseURL:  cfg.Financials.BaseURL,
		APIKey:   cfg.Financials.APIKey,
		Timeout:  cfg.Financials.Timeout,
		Attempts: cfg.Financials.Attempts,
		CacheTTL: cfg.Financials.CacheTTL,
	}, c)
	p.SetLogger(l)
	return p
}

// ProvideLanguageModel creates the model client. Nil without an API key.
func ProvideLanguageModel(cfg *config.Config, l *applogger.Logger) (*llm.Model, error) {
	if cfg.LLM.APIKey == "" {
		l.Warn("llm api key not configured; qualitative agent and narration disabled")
		return nil, nil
	}
	m, err := llm.NewModel(llm.Config{
		Model:            cfg.LLM.Model,
		APIKey:           cfg.LLM.APIKey,
		BaseURL:          cfg.LLM.BaseURL,
		MaxOutputTokens:  cfg.LLM.MaxOutputTokens,
		Temperature:      cfg.LLM.Temperature,
		Timeout:          cfg.LLM.Timeout,
		FailureThreshold: cfg.LLM.FailureThreshold,
		OpenTimeout:      cfg.LLM.OpenTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("llm: %w", err)
	}
	m.SetLogger(l)
	return m, nil
}

// ProvideAgents builds the enabled signal agents in invocation order.
func ProvideAgents(cfg *config.Config, fin domsvc.FinancialsProvider, model *llm.Model, l *applogger.Logger) ([]domsvc.SignalAgent, error) {
	var out []domsvc.SignalAgent
	if cfg.Agents.Quantitative.Enabled {
		qc := agents.DefaultQuantitativeConfig()
		qc.Years = cfg.Agents.Quantitative.Years
		qc.MinConfidence = cfg.Agents.Quantitative.MinConfidence
		a := agents.NewQuantitativeAgent(qc, fin)
		a.SetLogger(l)
		out = append(out, a)
	}
	if cfg.Agents.Qualitative.Enabled && model != nil {
		a := agents.NewQualitativeAgent(agents.QualitativeConfig{
			MinConfidence: cfg.Agents.Qualitative.MinConfidence,
			MaxConfidence: cfg.Agents.Qualitative.MaxConfidence,
		}, model)
		a.SetLogger(l)
		out = append(out, a)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no signal agent could be configured")
	}
	return out, nil
}

// ProvideCollector creates the process-wide telemetry collector.
func ProvideCollector(cfg *config.Config, m domrepo.Metrics, l *applogger.Logger) *telemetry.Collector {
	c := telemetry.NewCollector(telemetry.Config{
		WindowSize:    cfg.Telemetry.WindowSize,
		RecentSegment: cfg.Telemetry.RecentSegment,
		ZThreshold:    cfg.Telemetry.ZThreshold,
		MinSamples:    cfg.Telemetry.MinSamples,
		MinStdDev:     cfg.Telemetry.MinStdDev,
	})
	c.SetLogger(l)
	c.SetMetrics(m)
	return c
}

func ProvideDetector(cfg *config.Config, c *telemetry.Collector) *analytics.AnomalyDetector {
	return analytics.NewAnomalyDetector(analytics.DetectorConfig{
		DisagreementThreshold: cfg.Detector.DisagreementThreshold,
		MinConfidence:         cfg.Detector.MinConfidence,
		RangeK:                cfg.Detector.RangeK,
		MinHistory:            cfg.Detector.MinHistory,
	}, c)
}

func ProvideSynthesizer(cfg *config.Config) *analytics.Synthesizer {
	sc := analytics.DefaultSynthesisConfig()
	sc.BuyThreshold = cfg.Synthesis.BuyThreshold
	sc.SellThreshold = cfg.Synthesis.SellThreshold
	sc.CriticalPenalty = cfg.Synthesis.CriticalPenalty
	sc.WarnPenalty = cfg.Synthesis.WarnPenalty
	sc.MinConfidence = cfg.Synthesis.MinConfidence
	return analytics.NewSynthesizer(sc)
}

func ProvideAdvisor(cfg *config.Config) *analytics.PortfolioAdvisor {
	return analytics.NewPortfolioAdvisor(analytics.AdvisorConfig{
		MaxPositionFraction: cfg.Advisor.MaxPositionFraction,
		RiskBudget:          cfg.Advisor.RiskBudget,
	})
}

// ProvideOrchestrator assembles the pipeline. Optional sinks are attached
// only when present so the orchestrator never sees a typed nil.
func ProvideOrchestrator(
	cfg *config.Config,
	agentList []domsvc.SignalAgent,
	collector *telemetry.Collector,
	detector *analytics.AnomalyDetector,
	synth *analytics.Synthesizer,
	advisor *analytics.PortfolioAdvisor,
	m domrepo.Metrics,
	l *applogger.Logger,
	store *internalrepo.CHAnalysisStore,
	pub *internalrepo.KafkaEventPublisher,
	model *llm.Model,
) *usecase.Orchestrator {
	o := usecase.NewOrchestrator(usecase.OrchestratorConfig{
		AgentTimeout:     cfg.Agents.Timeout,
		Narrate:          cfg.Agents.Narrate,
		NarrationTimeout: cfg.Agents.NarrationTimeout,
		SinkTimeout:      cfg.Agents.SinkTimeout,
	}, agentList, collector, detector, synth, advisor)
	o.SetLogger(l)
	o.SetMetrics(m)
	if store != nil {
		o.SetStore(store)
	}
	if pub != nil {
		o.SetPublisher(pub)
	}
	if model != nil && cfg.Agents.Narrate {
		o.SetNarrator(model)
	}
	return o
}

func ProvideTelemetryUseCase(c *telemetry.Collector, o *usecase.Orchestrator) *usecase.TelemetryUseCase {
	return usecase.NewTelemetryUseCase(c, o.Agents())
}

func ProvideValuationUseCase(cfg *config.Config, fin domsvc.FinancialsProvider) *usecase.ValuationUseCase {
	years := cfg.Agents.Quantitative.Years
	if years <= 0 {
		years = valuation.DefaultYears
	}
	return usecase.NewValuationUseCase(fin, years)
}

func ProvideHistoryUseCase(store *internalrepo.CHAnalysisStore) *usecase.HistoryUseCase {
	if store == nil {
		return usecase.NewHistoryUseCase(nil)
	}
	return usecase.NewHistoryUseCase(store)
}

// ProvideRedisQueue creates the deferred analysis queue. Nil when disabled.
func ProvideRedisQueue(cfg *config.Config, rc *redis.Client, o *usecase.Orchestrator, m domrepo.Metrics, l *applogger.Logger) *queue.RedisQueue {
	if !cfg.Queue.Enabled || rc == nil {
		return nil
	}
	q := queue.NewRedisQueue(l, queue.QueueConfig{
		Workers:    cfg.Queue.Workers,
		RetryLimit: cfg.Queue.RetryLimit,
		RetryDelay: cfg.Queue.RetryDelay,
	}, rc, queue.WithKeyPrefix(cfg.Queue.Prefix))
	if cfg.Queue.Consume {
		q.RegisterJob(usecase.NewAnalysisJob(o, m, l))
	}
	return q
}

// ProvideLimiter creates the analyze rate limiter. Nil when disabled.
func ProvideLimiter(cfg *config.Config) *ratelimit.Limiter {
	if !cfg.RateLimit.Enabled {
		return nil
	}
	return ratelimit.New(cfg.RateLimit.RPS, cfg.RateLimit.Burst, cfg.RateLimit.Idle)
}

// ProvideTelemetryHub creates the websocket stream and subscribes it to the collector.
func ProvideTelemetryHub(cfg *config.Config, c *telemetry.Collector, l *applogger.Logger) *ws.TelemetryHub {
	if !cfg.WebSocket.Enabled {
		return nil
	}
	hub := ws.NewTelemetryHub(l, cfg.WebSocket.PingInterval)
	c.Subscribe(hub)
	c.SubscribeDrift(hub)
	return hub
}

// ProvideTelemetryPipeline exports invocations to ClickHouse and Kafka.
// Nil when neither destination is configured.
func ProvideTelemetryPipeline(
	cfg *config.Config,
	c *telemetry.Collector,
	store *internalrepo.CHAnalysisStore,
	pub *internalrepo.KafkaEventPublisher,
	m domrepo.Metrics,
	l *applogger.Logger,
) *mid.TelemetryPipeline {
	var (
		sink mid.InvocationSink
		bus  mid.InvocationPublisher
	)
	if store != nil {
		sink = store
	}
	if pub != nil {
		bus = pub
	}
	if sink == nil && bus == nil {
		return nil
	}
	p := mid.NewTelemetryPipeline(sink, bus, m,
		mid.WithBatchSize(cfg.Pipeline.BatchSize),
		mid.WithFlushInterval(cfg.Pipeline.FlushInterval),
		mid.WithBufferSize(cfg.Pipeline.BufferSize),
		mid.WithRetry(cfg.Pipeline.RetryAttempts, cfg.Pipeline.BackoffMin, cfg.Pipeline.BackoffMax),
		mid.WithPipelineLogger(l),
	)
	c.Subscribe(p)
	c.SubscribeDrift(p)
	return p
}

// ProvideHandlers builds every HTTP route group.
func ProvideHandlers(
	cfg *config.Config,
	l *applogger.Logger,
	o *usecase.Orchestrator,
	history *usecase.HistoryUseCase,
	tel *usecase.TelemetryUseCase,
	val *usecase.ValuationUseCase,
	c cache.Service,
	limiter *ratelimit.Limiter,
	q *queue.RedisQueue,
	hub *ws.TelemetryHub,
) []xhttp.Handler {
	ah := api.NewAnalysisHandler(l, o, history)
	if limiter != nil {
		ah.SetRateLimit(limiter.Middleware())
	}
	if q != nil {
		ah.SetQueue(q)
	}
	vh := api.NewValuationHandler(l, val)
	vh.SetCache(c, cfg.Cache.ValuationTTL)

	handlers := []xhttp.Handler{ah, vh, api.NewTelemetryHandler(l, tel)}
	if hub != nil {
		handlers = append(handlers, hub)
	}
	return handlers
}

// ProvideHTTPServer creates the Echo server; /healthz checks the archive when present.
func ProvideHTTPServer(cfg *config.Config, l *applogger.Logger, handlers []xhttp.Handler, store *internalrepo.CHAnalysisStore) *xhttp.Server {
	opts := []xhttp.ServerOption{
		xhttp.WithHost(cfg.Server.Host),
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithCORS(cfg.Server.CORS),
		xhttp.WithSlowThreshold(cfg.Server.SlowThreshold),
		xhttp.WithLogger(l),
	}
	if store != nil {
		opts = append(opts, xhttp.WithHealthCheck(store.Health))
	}
	return xhttp.NewServer(handlers, opts...)
}

// ProvideApp orders the background components and the clients to close.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	httpServer *xhttp.Server,
	o *usecase.Orchestrator,
	m domrepo.Metrics,
	collector *telemetry.Collector,
	store *internalrepo.CHAnalysisStore,
	chClient *pkgch.Client,
	producer *pkgkafka.Producer,
	consumer *pkgkafka.Consumer,
	rc *redis.Client,
	c cache.Service,
	pipeline *mid.TelemetryPipeline,
	q *queue.RedisQueue,
	limiter *ratelimit.Limiter,
	hub *ws.TelemetryHub,
) *server.App {
	var comps []server.Component

	if store != nil && cfg.Telemetry.SeedFromStore {
		comps = append(comps, server.Component{
			Name:  "telemetry-seed",
			Start: seedCollector(cfg, collector, store, l),
		})
	}
	if pipeline != nil {
		comps = append(comps, server.Component{
			Name:  "telemetry-pipeline",
			Start: func(ctx context.Context) error { pipeline.Start(ctx); return nil },
			Stop:  pipeline.Stop,
		})
	}
	if consumer != nil {
		consumer.RegisterHandler(usecase.NewKafkaAnalysisHandler(cfg.Kafka.Topics.Requests, o, m, l))
		comps = append(comps, server.Component{
			Name:  "kafka-consumer",
			Start: func(context.Context) error { return consumer.Start() },
			Stop:  consumer.Stop,
		})
	}
	if q != nil {
		comps = append(comps, server.Component{Name: "analysis-queue", Start: q.Start, Stop: q.Stop})
	}
	if limiter != nil {
		comps = append(comps, sweeper(limiter, cfg.RateLimit.Idle))
	}
	if hub != nil {
		comps = append(comps, server.Component{
			Name: "telemetry-stream",
			Stop: func(context.Context) error { hub.Close(); return nil },
		})
	}

	closers := []server.Closer{{Name: "cache", Close: c.Close}}
	if producer != nil {
		closers = append(closers, server.Closer{Name: "kafka-producer", Close: producer.Close})
	}
	if chClient != nil {
		closers = append(closers, server.Closer{Name: "clickhouse", Close: chClient.Close})
	}
	if rc != nil && cfg.Cache.Mode == "memory" {
		// redis-backed caches own the client and closed it above
		closers = append(closers, server.Closer{Name: "redis", Close: rc.Close})
	}
	closers = append(closers, server.Closer{Name: "log-collector", Close: func() error { l.RemoveCollector(); return nil }})

	return server.New(cfg, l, httpServer, comps, closers)
}

// seedCollector restores recent invocation history so drift detection
// does not restart cold.
func seedCollector(cfg *config.Config, c *telemetry.Collector, store *internalrepo.CHAnalysisStore, l *applogger.Logger) func(context.Context) error {
	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		recs, err := store.LoadInvocations(ctx, time.Now().Add(-7*24*time.Hour), cfg.ClickHouse.SeedLimit)
		if err != nil {
			l.Warn("telemetry seed skipped", applogger.Error(err))
			return nil
		}
		c.Seed(recs)
		l.Info("telemetry seeded", applogger.Int("records", len(recs)))
		return nil
	}
}

func sweeper(limiter *ratelimit.Limiter, every time.Duration) server.Component {
	done := make(chan struct{})
	stopped := make(chan struct{})
	return server.Component{
		Name: "rate-limit-sweeper",
		Start: func(context.Context) error {
			go func() {
				defer close(stopped)
				t := time.NewTicker(every)
				defer t.Stop()
				for {
					select {
					case <-done:
						return
					case <-t.C:
						limiter.Sweep()
					}
				}
			}()
			return nil
		},
		Stop: func(ctx context.Context) error {
			close(done)
			select {
			case <-stopped:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	}
}
