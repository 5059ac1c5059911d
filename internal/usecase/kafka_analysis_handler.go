package usecase

import (
	"context"
	"encoding/json"
	"time"

	"AlphaCrew/internal/domain/models"
	domrepo "AlphaCrew/internal/domain/repository"
	applogger "AlphaCrew/pkg/logger"
	pkgkafka "AlphaCrew/pkg/kafka"
)

// Analyzer runs one analysis end to end.
type Analyzer interface {
	Analyze(ctx context.Context, req models.AnalysisRequest) (*models.AnalysisResult, error)
}

// KafkaAnalysisHandler consumes analysis requests from Kafka and runs them
// through the orchestrator. Outcomes leave through the orchestrator's sinks.
type KafkaAnalysisHandler struct {
	topic    string
	analyzer Analyzer
	metrics  domrepo.Metrics
	l        *applogger.Logger
	now      func() time.Time
}

func NewKafkaAnalysisHandler(topic string, analyzer Analyzer, metrics domrepo.Metrics, l *applogger.Logger) *KafkaAnalysisHandler {
	if l == nil {
		l = applogger.Nop()
	}
	return &KafkaAnalysisHandler{topic: topic, analyzer: analyzer, metrics: metrics, l: l, now: time.Now}
}

func (h *KafkaAnalysisHandler) Topic() string { return h.topic }

// incoming message schema: {security_id, as_of, portfolio}
//
// Malformed payloads and analysis failures are acknowledged, since replaying
// them yields the same outcome. A context that is already done is returned
// so the consumer can retry the message.
func (h *KafkaAnalysisHandler) Handle(ctx context.Context, b []byte) error {
	var in models.AnalyzeRequest
	if err := json.Unmarshal(b, &in); err != nil {
		h.recordError("consumer_unmarshal")
		h.l.Warn("kafka analysis: bad payload", applogger.Error(err), applogger.Int("bytes", len(b)))
		return nil
	}
	req, err := BuildRequest(in, h.now())
	if err != nil {
		h.recordError("consumer_invalid_request")
		h.l.Warn("kafka analysis: invalid request", applogger.String("security_id", in.SecurityID), applogger.Error(err))
		return nil
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	res, err := h.analyzer.Analyze(ctx, req)
	if err != nil {
		h.l.Info("kafka analysis: failed",
			applogger.String("request_id", req.ID),
			applogger.String("security_id", req.SecurityID),
			applogger.String("kind", models.ErrorKind(err)),
		)
		return nil
	}
	h.l.Debug("kafka analysis: done",
		applogger.String("request_id", res.RequestID),
		applogger.String("action", string(res.Recommendation.Action)),
	)
	return nil
}

func (h *KafkaAnalysisHandler) recordError(kind string) {
	if h.metrics != nil {
		h.metrics.RecordError(kind)
	}
}

var _ pkgkafka.MessageHandler = (*KafkaAnalysisHandler)(nil)
