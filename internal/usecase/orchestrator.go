package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"AlphaCrew/internal/domain/models"
	domrepo "AlphaCrew/internal/domain/repository"
	domsvc "AlphaCrew/internal/domain/service"
	"AlphaCrew/internal/services/analytics"
	"AlphaCrew/internal/services/telemetry"
	applogger "AlphaCrew/pkg/logger"
)

const narrationPrompt = `Rewrite the investment rationale below for {{security_id}} as one short paragraph a retail investor can follow.
Keep the action, every number and every anomaly exactly as stated. Do not add facts.

{{rationale}}`

type OrchestratorConfig struct {
	AgentTimeout     time.Duration
	Narrate          bool
	NarrationTimeout time.Duration
	SinkTimeout      time.Duration // persistence and publishing after the terminal stage
}

func DefaultOrchestratorConfig() OrchestratorConfig {
	return OrchestratorConfig{
		AgentTimeout:     10 * time.Second,
		NarrationTimeout: 15 * time.Second,
		SinkTimeout:      5 * time.Second,
	}
}

// Orchestrator runs one analysis request through the agent fan-out and the
// sequential detect, synthesize and advise stages.
type Orchestrator struct {
	cfg       OrchestratorConfig
	agents    []domsvc.SignalAgent
	collector *telemetry.Collector
	detector  *analytics.AnomalyDetector
	synth     *analytics.Synthesizer
	advisor   *analytics.PortfolioAdvisor

	narrator domsvc.LanguageModel
	store    domrepo.AnalysisStore
	events   domrepo.EventPublisher
	metrics  domrepo.Metrics
	l        *applogger.Logger
	now      func() time.Time
}

// NewOrchestrator instruments every agent with the collector, so each
// invocation is reported to telemetry before its result reaches the join.
func NewOrchestrator(
	cfg OrchestratorConfig,
	agents []domsvc.SignalAgent,
	collector *telemetry.Collector,
	detector *analytics.AnomalyDetector,
	synth *analytics.Synthesizer,
	advisor *analytics.PortfolioAdvisor,
) *Orchestrator {
	if cfg.AgentTimeout <= 0 {
		cfg.AgentTimeout = 10 * time.Second
	}
	if cfg.NarrationTimeout <= 0 {
		cfg.NarrationTimeout = 15 * time.Second
	}
	if cfg.SinkTimeout <= 0 {
		cfg.SinkTimeout = 5 * time.Second
	}
	wrapped := make([]domsvc.SignalAgent, len(agents))
	for i, a := range agents {
		wrapped[i] = telemetry.Instrument(a, collector)
	}
	return &Orchestrator{
		cfg:       cfg,
		agents:    wrapped,
		collector: collector,
		detector:  detector,
		synth:     synth,
		advisor:   advisor,
		now:       time.Now,
	}
}

func (o *Orchestrator) SetLogger(l *applogger.Logger)         { o.l = l }
func (o *Orchestrator) SetMetrics(m domrepo.Metrics)          { o.metrics = m }
func (o *Orchestrator) SetStore(s domrepo.AnalysisStore)      { o.store = s }
func (o *Orchestrator) SetPublisher(p domrepo.EventPublisher) { o.events = p }
func (o *Orchestrator) SetNarrator(m domsvc.LanguageModel)    { o.narrator = m }

// Agents lists the configured agents in invocation order.
func (o *Orchestrator) Agents() []string {
	out := make([]string, len(o.agents))
	for i, a := range o.agents {
		out[i] = a.Name()
	}
	return out
}

// Analyze returns exactly one of a result or an *models.AnalysisError.
func (o *Orchestrator) Analyze(ctx context.Context, req models.AnalysisRequest) (*models.AnalysisResult, error) {
	tr := newStageTracker(o.now, o.metrics)
	if err := tr.advance(models.StageSignalsPending); err != nil {
		return nil, o.fail(ctx, req, tr, nil, nil, err)
	}

	set, agentErrs := o.collectSignals(ctx, req)
	if set.Len() == 0 {
		err := fmt.Errorf("%w: all %d agents failed for %s", models.ErrNoSignalsAvailable, len(o.agents), req.SecurityID)
		return nil, o.fail(ctx, req, tr, set, agentErrs, err)
	}
	if err := tr.advance(models.StageSignalsComplete); err != nil {
		return nil, o.fail(ctx, req, tr, set, agentErrs, err)
	}

	flags := o.detector.Detect(req.ID, set)
	if o.metrics != nil {
		for _, f := range flags {
			o.metrics.RecordAnomaly(f.Severity)
		}
	}
	if err := tr.advance(models.StageAnomalyChecked); err != nil {
		return nil, o.fail(ctx, req, tr, set, agentErrs, err)
	}

	rec, err := o.synth.Synthesize(set, flags)
	if err != nil {
		return nil, o.fail(ctx, req, tr, set, agentErrs, err)
	}
	if err := tr.advance(models.StageSynthesized); err != nil {
		return nil, o.fail(ctx, req, tr, set, agentErrs, err)
	}
	if o.cfg.Narrate && o.narrator != nil {
		rec.Narrative = o.narrate(ctx, req, rec.Rationale)
	}

	var snapshot *models.PortfolioSnapshot
	if snap, ok := req.Portfolio(); ok {
		snapshot = &snap
	}
	advice, err := o.advisor.Advise(rec, marginOfSafety(set), snapshot)
	if err != nil {
		return nil, o.fail(ctx, req, tr, set, agentErrs, err)
	}
	if err := tr.advance(models.StageAdvised); err != nil {
		return nil, o.fail(ctx, req, tr, set, agentErrs, err)
	}
	if err := tr.advance(models.StageDone); err != nil {
		return nil, o.fail(ctx, req, tr, set, agentErrs, err)
	}

	res := &models.AnalysisResult{
		RequestID:      req.ID,
		SecurityID:     req.SecurityID,
		AsOf:           req.AsOf,
		Recommendation: rec,
		Advice:         advice,
		Anomalies:      flags,
		Signals:        set,
		AgentErrors:    agentErrs,
		Trace:          tr.spans(),
		CompletedAt:    o.now(),
	}
	if res.Anomalies == nil {
		res.Anomalies = []models.AnomalyFlag{}
	}

	if o.metrics != nil {
		o.metrics.RecordAnalysis(string(rec.Action))
	}
	if o.l != nil {
		o.l.Info("analysis completed",
			applogger.String("request_id", req.ID),
			applogger.String("security_id", req.SecurityID),
			applogger.String("action", string(rec.Action)),
			applogger.Float64("score", rec.Score),
			applogger.Float64("confidence", rec.Confidence),
			applogger.Int("signals", set.Len()),
			applogger.Int("anomalies", len(flags)),
		)
	}
	o.sinkResult(ctx, res)
	return res, nil
}

type agentOutcome struct {
	idx  int
	name string
	sig  models.Signal
	err  error
}

// collectSignals fans out to every agent and waits for all of them. Each agent
// gets its own deadline on a context detached from the caller, so neither a
// slow sibling nor a caller cancellation cuts another agent short.
func (o *Orchestrator) collectSignals(ctx context.Context, req models.AnalysisRequest) (*models.SignalSet, map[string]string) {
	base := context.WithoutCancel(ctx)
	ch := make(chan agentOutcome, len(o.agents))
	var wg sync.WaitGroup

	for i, agent := range o.agents {
		wg.Add(1)
		go func(i int, agent domsvc.SignalAgent) {
			defer wg.Done()
			actx, cancel := context.WithTimeout(base, o.cfg.AgentTimeout)
			defer cancel()
			sig, err := agent.ProduceSignal(actx, req)
			ch <- agentOutcome{idx: i, name: agent.Name(), sig: sig, err: err}
		}(i, agent)
	}

	go func() { wg.Wait(); close(ch) }()

	outcomes := make([]agentOutcome, len(o.agents))
	for it := range ch {
		outcomes[it.idx] = it
	}

	set := models.NewSignalSet()
	errs := map[string]string{}
	for _, it := range outcomes {
		if it.err == nil {
			it.err = set.Add(it.sig)
		}
		if it.err != nil {
			errs[it.name] = it.err.Error()
			if o.l != nil {
				o.l.Warn("agent produced no signal",
					applogger.String("request_id", req.ID),
					applogger.String("producer", it.name),
					applogger.String("kind", models.ErrorKind(it.err)),
					applogger.Error(it.err),
				)
			}
		}
	}
	if len(errs) == 0 {
		errs = nil
	}
	return set, errs
}

func (o *Orchestrator) narrate(ctx context.Context, req models.AnalysisRequest, rationale string) string {
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.cfg.NarrationTimeout)
	defer cancel()
	out, err := o.narrator.Invoke(nctx, narrationPrompt, map[string]string{
		"security_id": req.SecurityID,
		"rationale":   rationale,
	})
	if err != nil {
		if o.l != nil {
			o.l.Warn("rationale narration failed", applogger.String("request_id", req.ID), applogger.Error(err))
		}
		return ""
	}
	return out
}

// marginOfSafety returns the first margin of safety reported in signal evidence.
func marginOfSafety(set *models.SignalSet) *float64 {
	for _, sig := range set.Signals() {
		if v, ok := sig.Input("margin_of_safety"); ok {
			return &v
		}
	}
	return nil
}

func (o *Orchestrator) fail(ctx context.Context, req models.AnalysisRequest, tr *stageTracker, set *models.SignalSet, agentErrs map[string]string, cause error) error {
	reached := tr.lastReached()
	tr.fail()
	if set == nil {
		set = models.NewSignalSet()
	}
	aerr := &models.AnalysisError{
		RequestID:   req.ID,
		SecurityID:  req.SecurityID,
		AsOf:        req.AsOf,
		Stage:       reached,
		Signals:     set,
		AgentErrors: agentErrs,
		Trace:       tr.spans(),
		Err:         cause,
	}
	if o.metrics != nil {
		o.metrics.RecordAnalysis(string(models.StageFailed))
		o.metrics.RecordError(models.ErrorKind(cause))
	}
	if o.l != nil {
		o.l.Error("analysis failed",
			applogger.String("request_id", req.ID),
			applogger.String("security_id", req.SecurityID),
			applogger.String("stage", string(reached)),
			applogger.String("kind", models.ErrorKind(cause)),
			applogger.Error(cause),
		)
	}
	o.sinkFailure(ctx, aerr)
	return aerr
}

func (o *Orchestrator) sinkResult(ctx context.Context, res *models.AnalysisResult) {
	if o.store == nil && o.events == nil {
		return
	}
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.cfg.SinkTimeout)
	defer cancel()
	if o.store != nil {
		o.sinkErr(res.RequestID, "store", o.store.SaveResult(sctx, res))
	}
	if o.events != nil {
		o.sinkErr(res.RequestID, "publish", o.events.PublishResult(sctx, res))
	}
}

func (o *Orchestrator) sinkFailure(ctx context.Context, aerr *models.AnalysisError) {
	if o.store == nil && o.events == nil {
		return
	}
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.cfg.SinkTimeout)
	defer cancel()
	if o.store != nil {
		o.sinkErr(aerr.RequestID, "store", o.store.SaveFailure(sctx, aerr))
	}
	if o.events != nil {
		o.sinkErr(aerr.RequestID, "publish", o.events.PublishFailure(sctx, aerr))
	}
}

// sinkErr reports a best-effort side effect failure without failing the request.
func (o *Orchestrator) sinkErr(requestID, sink string, err error) {
	if err == nil {
		return
	}
	err = fmt.Errorf("%w: %s: %v", models.ErrTelemetryUnavailable, sink, err)
	if o.metrics != nil {
		o.metrics.RecordError(models.ErrorKind(err))
	}
	if o.l != nil {
		o.l.Warn("analysis sink failed", applogger.String("request_id", requestID), applogger.String("sink", sink), applogger.Error(err))
	}
}

// AsAnalysisError unwraps err into the pipeline's terminal error.
func AsAnalysisError(err error) (*models.AnalysisError, bool) {
	var aerr *models.AnalysisError
	ok := errors.As(err, &aerr)
	return aerr, ok
}
