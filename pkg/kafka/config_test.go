package kafka

import (
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProducerConfigOptions(t *testing.T) {
	cfg := defaultProducerConfig()
	for _, opt := range []ProducerOption{
		WithBrokers([]string{"k1:9092"}),
		WithCompression("none"),
		WithDelivery(1, 0),
		WithBatching(0, 4096, 5*time.Millisecond),
		WithKeyOrdering(false),
	} {
		opt(cfg)
	}
	require.NoError(t, cfg.validate())
	assert.Equal(t, 1, cfg.RequiredAcks)
	assert.Equal(t, 3, cfg.MaxAttempts, "zero attempts keeps the default")
	assert.Equal(t, 100, cfg.BatchSize)
	assert.Equal(t, 4096, cfg.BatchBytes)
	assert.Equal(t, 5*time.Millisecond, cfg.BatchTimeout)
	assert.False(t, cfg.KeyOrdering)
	assert.Equal(t, kafka.Compression(0), compressionCodecs[cfg.Compression])
}

func TestProducerConfigRejects(t *testing.T) {
	cases := map[string][]ProducerOption{
		"no brokers": nil,
		"bad acks":   {WithBrokers([]string{"k"}), WithDelivery(2, 1)},
		"bad codec":  {WithBrokers([]string{"k"}), WithCompression("brotli")},
	}
	for name, opts := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewProducer(opts...)
			assert.Error(t, err)
		})
	}
}

func TestNewProducerKeyOrderingBalancer(t *testing.T) {
	p, err := NewProducer(WithBrokers([]string{"localhost:9092"}), WithCompression("zstd"))
	require.NoError(t, err)
	defer p.Close()
	assert.IsType(t, &kafka.Hash{}, p.writer.Balancer)
	assert.Equal(t, kafka.Zstd, p.writer.Compression)
}
