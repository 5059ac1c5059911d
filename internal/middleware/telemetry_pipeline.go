package middleware

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"AlphaCrew/internal/domain/models"
	domrepo "AlphaCrew/internal/domain/repository"
	applogger "AlphaCrew/pkg/logger"
)

// InvocationSink archives invocation batches.
type InvocationSink interface {
	SaveInvocations(ctx context.Context, recs []models.AgentInvocationRecord) error
}

// InvocationPublisher streams invocation batches and drift warnings.
type InvocationPublisher interface {
	PublishInvocations(ctx context.Context, recs []models.AgentInvocationRecord) error
	PublishDrift(ctx context.Context, warnings []models.DriftWarning) error
}

// PipelineStats counts records through the pipeline.
type PipelineStats struct {
	Accepted int64 `json:"accepted"`
	Dropped  int64 `json:"dropped"`
	Flushed  int64 `json:"flushed"`
}

// TelemetryPipeline sits between the collector and the archive/bus. It never
// blocks the collector: records that do not fit the buffer are dropped and counted.
type TelemetryPipeline struct {
	sink    InvocationSink
	pub     InvocationPublisher
	metrics domrepo.Metrics
	l       *applogger.Logger

	batchSize   int
	interval    time.Duration
	bufSize     int
	maxAttempts int
	minBackoff  time.Duration
	maxBackoff  time.Duration

	bufCh   chan models.AgentInvocationRecord
	driftCh chan models.DriftReport
	stopCh  chan struct{}
	doneCh  chan struct{}
	started bool
	mu      sync.Mutex

	accepted atomic.Int64
	dropped  atomic.Int64
	flushed  atomic.Int64
}

type PipelineOption func(*TelemetryPipeline)

// WithBatchSize sets how many records trigger an early flush.
func WithBatchSize(n int) PipelineOption {
	return func(p *TelemetryPipeline) {
		if n > 0 {
			p.batchSize = n
		}
	}
}

// WithFlushInterval sets the periodic flush interval.
func WithFlushInterval(d time.Duration) PipelineOption {
	return func(p *TelemetryPipeline) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithBufferSize sets the number of records held while downstream is slow.
func WithBufferSize(n int) PipelineOption {
	return func(p *TelemetryPipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

// WithRetry sets attempts per batch and the backoff bounds.
func WithRetry(attempts int, min, max time.Duration) PipelineOption {
	return func(p *TelemetryPipeline) {
		if attempts > 0 {
			p.maxAttempts = attempts
		}
		if min > 0 {
			p.minBackoff = min
		}
		if max >= p.minBackoff {
			p.maxBackoff = max
		}
	}
}

func WithPipelineLogger(l *applogger.Logger) PipelineOption {
	return func(p *TelemetryPipeline) { p.l = l }
}

// NewTelemetryPipeline creates a pipeline; sink and pub may each be nil.
func NewTelemetryPipeline(sink InvocationSink, pub InvocationPublisher, metrics domrepo.Metrics, opts ...PipelineOption) *TelemetryPipeline {
	p := &TelemetryPipeline{
		sink:        sink,
		pub:         pub,
		metrics:     metrics,
		batchSize:   100,
		interval:    2 * time.Second,
		bufSize:     4096,
		maxAttempts: 3,
		minBackoff:  50 * time.Millisecond,
		maxBackoff:  2 * time.Second,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.bufCh = make(chan models.AgentInvocationRecord, p.bufSize)
	p.driftCh = make(chan models.DriftReport, 64)
	return p
}

// OnRecord implements telemetry.Subscriber.
func (p *TelemetryPipeline) OnRecord(rec models.AgentInvocationRecord) {
	select {
	case p.bufCh <- rec:
		p.accepted.Add(1)
	default:
		p.dropped.Add(1)
		p.recordError("pipeline_buffer_full")
	}
}

// OnDrift implements telemetry.DriftSubscriber.
func (p *TelemetryPipeline) OnDrift(report models.DriftReport) {
	select {
	case p.driftCh <- report:
	default:
		p.recordError("pipeline_drift_full")
	}
}

func (p *TelemetryPipeline) Stats() PipelineStats {
	return PipelineStats{Accepted: p.accepted.Load(), Dropped: p.dropped.Load(), Flushed: p.flushed.Load()}
}

// Start launches the background flusher.
func (p *TelemetryPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go p.run(ctx)
}

// Stop drains what is buffered, flushes it and waits for the flusher to exit.
func (p *TelemetryPipeline) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return nil
	}
	p.started = false
	p.mu.Unlock()
	close(p.stopCh)

	select {
	case <-p.doneCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *TelemetryPipeline) run(ctx context.Context) {
	defer close(p.doneCh)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	batch := make([]models.AgentInvocationRecord, 0, p.batchSize)
	flush := func(fctx context.Context) {
		if len(batch) == 0 {
			return
		}
		p.flush(fctx, batch)
		batch = make([]models.AgentInvocationRecord, 0, p.batchSize)
	}

	for {
		select {
		case <-p.stopCh:
			for {
				select {
				case rec := <-p.bufCh:
					batch = append(batch, rec)
				case rep := <-p.driftCh:
					p.publishDrift(context.WithoutCancel(ctx), rep)
				default:
					flush(context.WithoutCancel(ctx))
					return
				}
			}
		case <-ctx.Done():
			flush(context.WithoutCancel(ctx))
			return
		case rec := <-p.bufCh:
			batch = append(batch, rec)
			if len(batch) >= p.batchSize {
				flush(ctx)
			}
		case rep := <-p.driftCh:
			p.publishDrift(ctx, rep)
		case <-ticker.C:
			flush(ctx)
		}
	}
}

// flush writes one batch to each destination independently so a failing bus
// does not duplicate archive rows.
func (p *TelemetryPipeline) flush(ctx context.Context, batch []models.AgentInvocationRecord) {
	ok := true
	if p.sink != nil {
		ok = p.retry(ctx, "archive", func(c context.Context) error { return p.sink.SaveInvocations(c, batch) }) && ok
	}
	if p.pub != nil {
		ok = p.retry(ctx, "publish", func(c context.Context) error { return p.pub.PublishInvocations(c, batch) }) && ok
	}
	if ok {
		p.flushed.Add(int64(len(batch)))
		return
	}
	p.dropped.Add(int64(len(batch)))
	p.recordError("pipeline_batch_drop")
}

func (p *TelemetryPipeline) publishDrift(ctx context.Context, rep models.DriftReport) {
	warnings := rep.Warnings()
	if p.pub == nil || len(warnings) == 0 {
		return
	}
	p.retry(ctx, "drift", func(c context.Context) error { return p.pub.PublishDrift(c, warnings) })
}

// retry runs fn with exponential backoff; it reports whether fn eventually succeeded.
func (p *TelemetryPipeline) retry(ctx context.Context, dest string, fn func(context.Context) error) bool {
	backoff := p.minBackoff
	for attempt := 1; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return true
		}
		p.recordError(models.ErrorKind(models.ErrTelemetryUnavailable))
		if p.l != nil {
			p.l.Warn("telemetry pipeline flush failed",
				applogger.String("destination", dest),
				applogger.Int("attempt", attempt),
				applogger.Error(err),
			)
		}
		if attempt >= p.maxAttempts {
			return false
		}
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return false
		}
		if backoff < p.maxBackoff {
			backoff *= 2
			if backoff > p.maxBackoff {
				backoff = p.maxBackoff
			}
		}
	}
}

func (p *TelemetryPipeline) recordError(kind string) {
	if p.metrics != nil {
		p.metrics.RecordError(kind)
	}
}
