package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"AlphaCrew/internal/domain/models"
	domrepo "AlphaCrew/internal/domain/repository"
	applogger "AlphaCrew/pkg/logger"
	"AlphaCrew/pkg/queue"
)

// AnalysisJobType is the queue message type for deferred analyses.
const AnalysisJobType = "analysis.request"

// QueuedAnalysis is the payload of an AnalysisJobType message. The request id
// is fixed at submission so callers can look the outcome up later.
type QueuedAnalysis struct {
	RequestID string                `json:"request_id"`
	Request   models.AnalyzeRequest `json:"request"`
}

// AnalysisJob runs queued analysis requests. Requests that fail with no
// signals are retried by the queue; every other outcome is final.
type AnalysisJob struct {
	analyzer Analyzer
	metrics  domrepo.Metrics
	l        *applogger.Logger
	now      func() time.Time
}

func NewAnalysisJob(analyzer Analyzer, metrics domrepo.Metrics, l *applogger.Logger) *AnalysisJob {
	if l == nil {
		l = applogger.Nop()
	}
	return &AnalysisJob{analyzer: analyzer, metrics: metrics, l: l, now: time.Now}
}

func (j *AnalysisJob) Name() string { return "analysis" }
func (j *AnalysisJob) Type() string { return AnalysisJobType }

func (j *AnalysisJob) Handle(ctx context.Context, payload json.RawMessage) error {
	in, err := queue.DecodePayload[QueuedAnalysis](payload)
	if err != nil {
		j.recordError("queue_unmarshal")
		return fmt.Errorf("%w: %v", queue.ErrPermanent, err)
	}
	req, err := BuildRequest(in.Request, j.now())
	if err != nil {
		j.recordError("queue_invalid_request")
		return fmt.Errorf("%w: %v", queue.ErrPermanent, err)
	}
	if in.RequestID != "" {
		req.ID = in.RequestID
	}

	res, err := j.analyzer.Analyze(ctx, req)
	if err != nil {
		j.l.Info("queued analysis failed",
			applogger.String("request_id", req.ID),
			applogger.String("security_id", req.SecurityID),
			applogger.String("kind", models.ErrorKind(err)),
		)
		if errors.Is(err, models.ErrNoSignalsAvailable) {
			return err
		}
		return nil
	}
	j.l.Debug("queued analysis done",
		applogger.String("request_id", res.RequestID),
		applogger.String("action", string(res.Recommendation.Action)),
	)
	return nil
}

func (j *AnalysisJob) recordError(kind string) {
	if j.metrics != nil {
		j.metrics.RecordError(kind)
	}
}

// Submit validates the request synchronously and enqueues it. The returned
// request carries the id the eventual result will be stored under.
func Submit(ctx context.Context, q queue.Enqueuer, in models.AnalyzeRequest, now time.Time) (models.AnalysisRequest, error) {
	req, err := BuildRequest(in, now)
	if err != nil {
		return models.AnalysisRequest{}, err
	}
	// pin as_of so a delayed run analyses the instant the caller asked about
	in.AsOf = req.AsOf.Format(time.RFC3339Nano)
	if _, err := q.Enqueue(ctx, AnalysisJobType, QueuedAnalysis{RequestID: req.ID, Request: in}); err != nil {
		return models.AnalysisRequest{}, fmt.Errorf("%w: enqueue: %v", models.ErrQueueUnavailable, err)
	}
	return req, nil
}

var _ queue.Job = (*AnalysisJob)(nil)
