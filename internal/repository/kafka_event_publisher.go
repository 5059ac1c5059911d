package repository

import (
	"context"
	"fmt"
	"time"

	"AlphaCrew/internal/domain/models"
	domrepo "AlphaCrew/internal/domain/repository"
	pkgkafka "AlphaCrew/pkg/kafka"
)

// Event types carried in the envelope's type field.
const (
	EventAnalysisCompleted = "analysis.completed"
	EventAnalysisFailed    = "analysis.failed"
	EventAgentInvocation   = "agent.invocation"
	EventDriftWarning      = "telemetry.drift"
)

// Topics names the outbound Kafka topics.
type Topics struct {
	Analyses    string
	Invocations string
	Drift       string
}

// Event is the envelope of every outbound message.
type Event struct {
	Type       string      `json:"type"`
	RequestID  string      `json:"request_id,omitempty"`
	SecurityID string      `json:"security_id,omitempty"`
	OccurredAt time.Time   `json:"occurred_at"`
	Data       interface{} `json:"data"`
}

type messageProducer interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
	PublishBatch(ctx context.Context, topic string, messages []pkgkafka.Message) error
	Close() error
}

// KafkaEventPublisher implements EventPublisher for Kafka.
type KafkaEventPublisher struct {
	producer messageProducer
	topics   Topics
	now      func() time.Time
}

func NewKafkaEventPublisher(producer *pkgkafka.Producer, topics Topics) *KafkaEventPublisher {
	return newKafkaEventPublisher(producer, topics)
}

func newKafkaEventPublisher(producer messageProducer, topics Topics) *KafkaEventPublisher {
	return &KafkaEventPublisher{producer: producer, topics: topics, now: time.Now}
}

// publishTraced sends one keyed message with the request id as trace header.
func (p *KafkaEventPublisher) publishTraced(ctx context.Context, topic, key string, ev Event) error {
	msg := pkgkafka.Message{Key: []byte(key), Value: ev}
	if ev.RequestID != "" {
		msg.Headers = map[string]string{"trace_id": ev.RequestID}
	}
	if err := p.producer.PublishBatch(ctx, topic, []pkgkafka.Message{msg}); err != nil {
		return fmt.Errorf("publish %s: %w", ev.Type, err)
	}
	return nil
}

func (p *KafkaEventPublisher) PublishResult(ctx context.Context, res *models.AnalysisResult) error {
	return p.publishTraced(ctx, p.topics.Analyses, res.SecurityID, Event{
		Type:       EventAnalysisCompleted,
		RequestID:  res.RequestID,
		SecurityID: res.SecurityID,
		OccurredAt: res.CompletedAt,
		Data:       res,
	})
}

type failurePayload struct {
	*models.AnalysisError
	Kind  string `json:"kind"`
	Error string `json:"error"`
}

func (p *KafkaEventPublisher) PublishFailure(ctx context.Context, aerr *models.AnalysisError) error {
	msg := ""
	if aerr.Err != nil {
		msg = aerr.Err.Error()
	}
	return p.publishTraced(ctx, p.topics.Analyses, aerr.SecurityID, Event{
		Type:       EventAnalysisFailed,
		RequestID:  aerr.RequestID,
		SecurityID: aerr.SecurityID,
		OccurredAt: p.now().UTC(),
		Data:       failurePayload{AnalysisError: aerr, Kind: models.ErrorKind(aerr.Err), Error: msg},
	})
}

// PublishInvocations keys records by producer so each producer's stream stays ordered.
func (p *KafkaEventPublisher) PublishInvocations(ctx context.Context, recs []models.AgentInvocationRecord) error {
	if len(recs) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, len(recs))
	for i, r := range recs {
		msgs[i] = pkgkafka.Message{
			Key: []byte(r.Producer),
			Value: Event{
				Type:       EventAgentInvocation,
				RequestID:  r.RequestID,
				SecurityID: r.SecurityID,
				OccurredAt: r.EndedAt,
				Data:       r,
			},
			Headers: map[string]string{"trace_id": r.RequestID},
		}
	}
	if err := p.producer.PublishBatch(ctx, p.topics.Invocations, msgs); err != nil {
		return fmt.Errorf("publish invocations: %w", err)
	}
	return nil
}

func (p *KafkaEventPublisher) PublishDrift(ctx context.Context, warnings []models.DriftWarning) error {
	if len(warnings) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, len(warnings))
	for i, w := range warnings {
		msgs[i] = pkgkafka.Message{
			Key:   []byte(w.Producer),
			Value: Event{Type: EventDriftWarning, OccurredAt: w.ComputedAt, Data: w},
		}
	}
	if err := p.producer.PublishBatch(ctx, p.topics.Drift, msgs); err != nil {
		return fmt.Errorf("publish drift: %w", err)
	}
	return nil
}

// PublishMessage sends an arbitrary payload; the log collector uses it.
func (p *KafkaEventPublisher) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	return p.producer.Publish(ctx, topic, nil, payload)
}

func (p *KafkaEventPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

var _ domrepo.EventPublisher = (*KafkaEventPublisher)(nil)
