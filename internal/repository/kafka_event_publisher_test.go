package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"AlphaCrew/internal/domain/models"
	pkgkafka "AlphaCrew/pkg/kafka"
)

type sent struct {
	topic string
	msgs  []pkgkafka.Message
}

type fakeProducer struct {
	sent   []sent
	err    error
	closed bool
}

func (f *fakeProducer) Publish(_ context.Context, topic string, key []byte, value interface{}) error {
	f.sent = append(f.sent, sent{topic: topic, msgs: []pkgkafka.Message{{Key: key, Value: value}}})
	return f.err
}

func (f *fakeProducer) PublishBatch(_ context.Context, topic string, msgs []pkgkafka.Message) error {
	f.sent = append(f.sent, sent{topic: topic, msgs: msgs})
	return f.err
}

func (f *fakeProducer) Close() error {
	f.closed = true
	return nil
}

var testTopics = Topics{Analyses: "alphacrew.analysis.events", Invocations: "alphacrew.telemetry.invocations", Drift: "alphacrew.telemetry.drift"}

func TestPublishResultCarriesTraceHeader(t *testing.T) {
	fp := &fakeProducer{}
	p := newKafkaEventPublisher(fp, testTopics)
	res := &models.AnalysisResult{RequestID: "r1", SecurityID: "ACME", CompletedAt: time.Unix(10, 0)}

	require.NoError(t, p.PublishResult(context.Background(), res))
	require.Len(t, fp.sent, 1)
	assert.Equal(t, "alphacrew.analysis.events", fp.sent[0].topic)
	msg := fp.sent[0].msgs[0]
	assert.Equal(t, []byte("ACME"), msg.Key)
	assert.Equal(t, "r1", msg.Headers["trace_id"])
	ev := msg.Value.(Event)
	assert.Equal(t, EventAnalysisCompleted, ev.Type)
	assert.Same(t, res, ev.Data)
}

func TestPublishFailure(t *testing.T) {
	fp := &fakeProducer{err: errors.New("broker down")}
	p := newKafkaEventPublisher(fp, testTopics)
	p.now = func() time.Time { return time.Unix(20, 0) }

	err := p.PublishFailure(context.Background(), &models.AnalysisError{RequestID: "r2", SecurityID: "ACME", Err: models.ErrNoSignalsAvailable})
	require.Error(t, err)
	assert.Contains(t, err.Error(), EventAnalysisFailed)

	ev := fp.sent[0].msgs[0].Value.(Event)
	data := ev.Data.(failurePayload)
	assert.Equal(t, "no_signals_available", data.Kind)
	assert.Equal(t, time.Unix(20, 0).UTC(), ev.OccurredAt)
}

func TestPublishInvocationsAndDrift(t *testing.T) {
	fp := &fakeProducer{}
	p := newKafkaEventPublisher(fp, testTopics)

	require.NoError(t, p.PublishInvocations(context.Background(), nil))
	require.NoError(t, p.PublishDrift(context.Background(), nil))
	assert.Empty(t, fp.sent)

	require.NoError(t, p.PublishInvocations(context.Background(), []models.AgentInvocationRecord{
		{Producer: "quantitative", RequestID: "a"},
		{Producer: "qualitative", RequestID: "a"},
	}))
	require.NoError(t, p.PublishDrift(context.Background(), []models.DriftWarning{{Producer: "qualitative", Statistic: models.StatFailureRate}}))

	require.Len(t, fp.sent, 2)
	assert.Equal(t, testTopics.Invocations, fp.sent[0].topic)
	assert.Len(t, fp.sent[0].msgs, 2)
	assert.Equal(t, []byte("qualitative"), fp.sent[0].msgs[1].Key)
	assert.Equal(t, testTopics.Drift, fp.sent[1].topic)
	assert.Equal(t, EventDriftWarning, fp.sent[1].msgs[0].Value.(Event).Type)
}

func TestPublishMessageAndClose(t *testing.T) {
	fp := &fakeProducer{}
	p := newKafkaEventPublisher(fp, testTopics)
	require.NoError(t, p.PublishMessage(context.Background(), "alphacrew.logs", []string{"x"}))
	assert.Equal(t, "alphacrew.logs", fp.sent[0].topic)
	require.NoError(t, p.Close())
	assert.True(t, fp.closed)
}
