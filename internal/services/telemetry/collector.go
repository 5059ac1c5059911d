package telemetry

import (
	"sort"
	"sync"
	"time"

	"AlphaCrew/internal/domain/models"
	domrepo "AlphaCrew/internal/domain/repository"
	applogger "AlphaCrew/pkg/logger"
)

// Config controls window sizes and drift thresholds.
type Config struct {
	WindowSize    int
	RecentSegment int
	ZThreshold    float64
	MinSamples    int
	MinStdDev     float64
}

func DefaultConfig() Config {
	return Config{
		WindowSize:    200,
		RecentSegment: 20,
		ZThreshold:    2.0,
		MinSamples:    10,
		MinStdDev:     0.05,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.WindowSize <= 0 {
		c.WindowSize = d.WindowSize
	}
	if c.RecentSegment <= 0 {
		c.RecentSegment = d.RecentSegment
	}
	if c.ZThreshold <= 0 {
		c.ZThreshold = d.ZThreshold
	}
	if c.MinSamples <= 0 {
		c.MinSamples = d.MinSamples
	}
	if c.MinStdDev <= 0 {
		c.MinStdDev = d.MinStdDev
	}
	return c
}

// Subscriber receives every recorded invocation. Implementations must not block.
type Subscriber interface {
	OnRecord(rec models.AgentInvocationRecord)
}

// DriftSubscriber is notified when a producer starts drifting.
type DriftSubscriber interface {
	OnDrift(report models.DriftReport)
}

type producerState struct {
	mu         sync.Mutex
	win        *window
	lastStatus models.HealthStatus
}

// Collector owns the per-producer invocation history. Writes to one producer
// never wait on another producer's lock.
type Collector struct {
	cfg Config

	mu        sync.RWMutex // guards the producers map only
	producers map[string]*producerState

	subMu     sync.RWMutex
	subs      []Subscriber
	driftSubs []DriftSubscriber

	metrics domrepo.Metrics
	l       *applogger.Logger
	now     func() time.Time
}

func NewCollector(cfg Config) *Collector {
	return &Collector{
		cfg:       cfg.withDefaults(),
		producers: make(map[string]*producerState),
		now:       time.Now,
	}
}

// SetLogger injects a structured logger.
func (c *Collector) SetLogger(l *applogger.Logger) { c.l = l }

// SetMetrics injects the metrics recorder.
func (c *Collector) SetMetrics(m domrepo.Metrics) { c.metrics = m }

func (c *Collector) Config() Config { return c.cfg }

func (c *Collector) Subscribe(s Subscriber) {
	c.subMu.Lock()
	c.subs = append(c.subs, s)
	c.subMu.Unlock()
}

func (c *Collector) SubscribeDrift(s DriftSubscriber) {
	c.subMu.Lock()
	c.driftSubs = append(c.driftSubs, s)
	c.subMu.Unlock()
}

func (c *Collector) state(producer string, create bool) *producerState {
	c.mu.RLock()
	st, ok := c.producers[producer]
	c.mu.RUnlock()
	if ok || !create {
		return st
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if st, ok = c.producers[producer]; ok {
		return st
	}
	st = &producerState{win: newWindow(c.cfg.WindowSize), lastStatus: models.HealthUnknown}
	c.producers[producer] = st
	return st
}

// Record appends an invocation to its producer's window and fans it out to subscribers.
func (c *Collector) Record(rec models.AgentInvocationRecord) {
	if rec.Producer == "" {
		return
	}
	st := c.state(rec.Producer, true)

	st.mu.Lock()
	st.win.push(rec)
	records := st.win.records()
	report := c.drift(rec.Producer, records)
	becameDrifting := report.Status == models.HealthDrifting && st.lastStatus != models.HealthDrifting
	st.lastStatus = report.Status
	st.mu.Unlock()

	if c.metrics != nil {
		c.metrics.RecordAgentInvocation(rec.Producer, rec.Outcome, rec.Latency().Seconds())
		c.metrics.RecordDriftScore(rec.Producer, report.Score)
	}

	c.subMu.RLock()
	subs := c.subs
	driftSubs := c.driftSubs
	c.subMu.RUnlock()
	for _, s := range subs {
		s.OnRecord(rec)
	}
	if becameDrifting {
		if c.l != nil {
			c.l.Warn("telemetry drift detected",
				applogger.String("producer", rec.Producer),
				applogger.Float64("score", report.Score),
				applogger.Int("samples", report.Samples),
			)
		}
		for _, s := range driftSubs {
			s.OnDrift(report)
		}
	}
}

// Seed loads archived records, oldest first, without notifying subscribers.
func (c *Collector) Seed(recs []models.AgentInvocationRecord) {
	sorted := make([]models.AgentInvocationRecord, len(recs))
	copy(sorted, recs)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].EndedAt.Before(sorted[j].EndedAt) })
	for _, r := range sorted {
		if r.Producer == "" {
			continue
		}
		st := c.state(r.Producer, true)
		st.mu.Lock()
		st.win.push(r)
		st.mu.Unlock()
	}
}

// Records returns a copy of the producer's window, oldest first.
func (c *Collector) Records(producer string) []models.AgentInvocationRecord {
	st := c.state(producer, false)
	if st == nil {
		return nil
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.win.records()
}

// Producers lists known producers in name order.
func (c *Collector) Producers() []string {
	c.mu.RLock()
	out := make([]string, 0, len(c.producers))
	for p := range c.producers {
		out = append(out, p)
	}
	c.mu.RUnlock()
	sort.Strings(out)
	return out
}

// ScoreHistory returns the scores of the producer's successful invocations,
// skipping those that belong to excludeRequestID.
func (c *Collector) ScoreHistory(producer, excludeRequestID string) []float64 {
	recs := c.Records(producer)
	out := make([]float64, 0, len(recs))
	for _, r := range recs {
		if r.Outcome != models.OutcomeSuccess {
			continue
		}
		if excludeRequestID != "" && r.RequestID == excludeRequestID {
			continue
		}
		out = append(out, r.Score)
	}
	return out
}

// Recent returns up to limit records across all producers, newest first.
func (c *Collector) Recent(limit int) []models.AgentInvocationRecord {
	if limit <= 0 {
		return nil
	}
	var all []models.AgentInvocationRecord
	for _, p := range c.Producers() {
		all = append(all, c.Records(p)...)
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].EndedAt.After(all[j].EndedAt) })
	if len(all) > limit {
		all = all[:limit]
	}
	return all
}

// Reset clears one producer's history. It reports whether the producer was known.
func (c *Collector) Reset(producer string) bool {
	c.mu.Lock()
	_, ok := c.producers[producer]
	delete(c.producers, producer)
	c.mu.Unlock()
	if ok && c.metrics != nil {
		c.metrics.RecordDriftScore(producer, 0)
	}
	return ok
}

// ResetAll clears every producer's history.
func (c *Collector) ResetAll() int {
	c.mu.Lock()
	n := len(c.producers)
	names := make([]string, 0, n)
	for p := range c.producers {
		names = append(names, p)
	}
	c.producers = make(map[string]*producerState)
	c.mu.Unlock()
	if c.metrics != nil {
		for _, p := range names {
			c.metrics.RecordDriftScore(p, 0)
		}
	}
	return n
}
