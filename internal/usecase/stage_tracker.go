package usecase

import (
	"fmt"
	"time"

	"AlphaCrew/internal/domain/models"
	domrepo "AlphaCrew/internal/domain/repository"
)

// next lists the only forward transition of every non-terminal stage.
// Failed is reachable from any non-terminal stage.
var next = map[models.Stage]models.Stage{
	models.StageReceived:        models.StageSignalsPending,
	models.StageSignalsPending:  models.StageSignalsComplete,
	models.StageSignalsComplete: models.StageAnomalyChecked,
	models.StageAnomalyChecked:  models.StageSynthesized,
	models.StageSynthesized:     models.StageAdvised,
	models.StageAdvised:         models.StageDone,
}

// stageTracker walks one request through the pipeline state machine and keeps its trace.
type stageTracker struct {
	trace   []models.StageSpan
	now     func() time.Time
	metrics domrepo.Metrics
}

func newStageTracker(now func() time.Time, metrics domrepo.Metrics) *stageTracker {
	return &stageTracker{
		trace:   []models.StageSpan{{Stage: models.StageReceived, EnteredAt: now()}},
		now:     now,
		metrics: metrics,
	}
}

func (t *stageTracker) current() models.Stage { return t.trace[len(t.trace)-1].Stage }

// lastReached is the most recent non-failed stage.
func (t *stageTracker) lastReached() models.Stage {
	for i := len(t.trace) - 1; i >= 0; i-- {
		if t.trace[i].Stage != models.StageFailed {
			return t.trace[i].Stage
		}
	}
	return models.StageReceived
}

func (t *stageTracker) advance(to models.Stage) error {
	from := t.current()
	if from.Terminal() {
		return fmt.Errorf("%w: transition %s -> %s from terminal stage", models.ErrInconsistentSignal, from, to)
	}
	if to != models.StageFailed && next[from] != to {
		return fmt.Errorf("%w: illegal transition %s -> %s", models.ErrInconsistentSignal, from, to)
	}

	now := t.now()
	span := &t.trace[len(t.trace)-1]
	span.ExitedAt = now
	if t.metrics != nil {
		t.metrics.RecordStage(from, now.Sub(span.EnteredAt).Seconds())
	}

	entered := models.StageSpan{Stage: to, EnteredAt: now}
	if to.Terminal() {
		entered.ExitedAt = now
	}
	t.trace = append(t.trace, entered)
	return nil
}

// fail moves to Failed; it is a no-op once a terminal stage is reached.
func (t *stageTracker) fail() {
	if !t.current().Terminal() {
		_ = t.advance(models.StageFailed)
	}
}

func (t *stageTracker) spans() []models.StageSpan {
	out := make([]models.StageSpan, len(t.trace))
	copy(out, t.trace)
	return out
}
