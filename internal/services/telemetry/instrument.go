package telemetry

import (
	"context"
	"errors"
	"fmt"
	"math"

	"AlphaCrew/internal/domain/models"
	domsvc "AlphaCrew/internal/domain/service"
)

// InstrumentedAgent reports every invocation of the wrapped agent to the
// collector before returning. It stops waiting when ctx is done, so a hung
// agent still yields exactly one timeout record.
type InstrumentedAgent struct {
	inner domsvc.SignalAgent
	c     *Collector
}

func Instrument(agent domsvc.SignalAgent, c *Collector) *InstrumentedAgent {
	return &InstrumentedAgent{inner: agent, c: c}
}

func (a *InstrumentedAgent) Name() string { return a.inner.Name() }

type agentResult struct {
	sig models.Signal
	err error
}

func (a *InstrumentedAgent) ProduceSignal(ctx context.Context, req models.AnalysisRequest) (models.Signal, error) {
	start := a.c.now()
	ch := make(chan agentResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- agentResult{err: fmt.Errorf("%w: %s panicked: %v", models.ErrAgentUnavailable, a.inner.Name(), r)}
			}
		}()
		sig, err := a.inner.ProduceSignal(ctx, req)
		ch <- agentResult{sig: sig, err: err}
	}()

	var res agentResult
	select {
	case res = <-ch:
	case <-ctx.Done():
		res = agentResult{err: fmt.Errorf("%w: %s: %v", models.ErrAgentUnavailable, a.inner.Name(), ctx.Err())}
	}

	if res.err == nil {
		res.sig, res.err = a.normalize(res.sig)
	}
	res.err = classify(a.inner.Name(), res.err)

	rec := models.AgentInvocationRecord{
		Producer:   a.inner.Name(),
		RequestID:  req.ID,
		SecurityID: req.SecurityID,
		StartedAt:  start,
		EndedAt:    a.c.now(),
		Outcome:    outcomeOf(ctx, res.err),
		ErrorKind:  models.ErrorKind(res.err),
	}
	if res.err == nil {
		rec.Score = res.sig.Value.Score
		rec.Confidence = res.sig.Confidence
		rec.PayloadSize = models.PayloadSizeFor(len(res.sig.Evidence.Summary))
	} else {
		rec.PayloadSize = models.PayloadSmall
	}
	a.c.Record(rec)

	if res.err != nil {
		return models.Signal{}, res.err
	}
	return res.sig, nil
}

// normalize stamps the producer and rejects values outside the signal contract.
func (a *InstrumentedAgent) normalize(sig models.Signal) (models.Signal, error) {
	if sig.Producer == "" {
		sig.Producer = a.inner.Name()
	}
	if sig.Producer != a.inner.Name() {
		return models.Signal{}, fmt.Errorf("%w: %s produced a signal for %s", models.ErrInconsistentSignal, a.inner.Name(), sig.Producer)
	}
	if math.IsNaN(sig.Value.Score) || math.IsNaN(sig.Confidence) {
		return models.Signal{}, fmt.Errorf("%w: %s produced a NaN value", models.ErrInsufficientData, a.inner.Name())
	}
	sig.Confidence = models.Clamp(sig.Confidence, 0, 1)
	if sig.ProducedAt.IsZero() {
		sig.ProducedAt = a.c.now()
	}
	return sig, nil
}

// classify keeps taxonomy errors and maps anything else to AgentUnavailable.
func classify(name string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, models.ErrAgentUnavailable) || errors.Is(err, models.ErrInsufficientData) {
		return err
	}
	if errors.Is(err, models.ErrInconsistentSignal) {
		return fmt.Errorf("%w: %v", models.ErrInsufficientData, err)
	}
	return fmt.Errorf("%w: %s: %v", models.ErrAgentUnavailable, name, err)
}

func outcomeOf(ctx context.Context, err error) models.Outcome {
	switch {
	case err == nil:
		return models.OutcomeSuccess
	case errors.Is(err, context.DeadlineExceeded), errors.Is(ctx.Err(), context.DeadlineExceeded):
		return models.OutcomeTimeout
	default:
		return models.OutcomeFailure
	}
}
