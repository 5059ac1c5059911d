package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturePublisher struct {
	mu     sync.Mutex
	topic  string
	logs   []AggregatedLogEntry
	called chan struct{}
}

func (p *capturePublisher) PublishMessage(_ context.Context, topic string, payload interface{}) error {
	p.mu.Lock()
	p.topic = topic
	p.logs = append(p.logs, payload.([]AggregatedLogEntry)...)
	p.mu.Unlock()
	p.called <- struct{}{}
	return nil
}

func TestFieldsAreWritten(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "debug")
	l.Info("scored",
		String("producer", "quantitative"),
		Float64("score", 0.46),
		Int("samples", 3),
		Duration("latency", 1500*time.Millisecond),
		Bool("drifting", false),
	)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "scored", got["message"])
	assert.Equal(t, "quantitative", got["producer"])
	assert.Equal(t, 0.46, got["score"])
	assert.Equal(t, float64(3), got["samples"])
	assert.Equal(t, float64(1500), got["latency"])
	assert.Equal(t, false, got["drifting"])
}

func TestLevelFiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "info")
	l.Debug("hidden")
	assert.Zero(t, buf.Len())
	l.With(String("component", "orchestrator")).Warn("shown")
	assert.Contains(t, buf.String(), `"component":"orchestrator"`)
}

func TestCollectorAggregatesRepeatedErrors(t *testing.T) {
	pub := &capturePublisher{called: make(chan struct{}, 4)}
	l := Nop()
	l.AddCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 100, Topic: "alphacrew.logs", Publisher: pub})

	for i := 0; i < 3; i++ {
		l.Error("agent failed", String("producer", "qualitative"), Error(errors.New("boom")))
	}
	l.Error("store failed")
	l.RemoveCollector()

	select {
	case <-pub.called:
	case <-time.After(2 * time.Second):
		t.Fatal("aggregated logs were not published")
	}

	pub.mu.Lock()
	defer pub.mu.Unlock()
	assert.Equal(t, "alphacrew.logs", pub.topic)
	require.Len(t, pub.logs, 2)
	assert.Equal(t, "agent failed", pub.logs[0].Message)
	assert.Equal(t, 3, pub.logs[0].Count)
	assert.Equal(t, "boom", pub.logs[0].Fields["error"])
	assert.Equal(t, 1, pub.logs[1].Count)
}
