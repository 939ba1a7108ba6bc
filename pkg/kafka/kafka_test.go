package kafka

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/geo-search-api/pkg/config"
)

type refreshRequest struct {
	Reason string `json:"reason"`
}

func TestDecodeJSON(t *testing.T) {
	got, err := DecodeJSON[refreshRequest]([]byte(`{"reason":"nightly"}`))
	require.NoError(t, err)
	assert.Equal(t, "nightly", got.Reason)

	_, err = DecodeJSON[refreshRequest]([]byte(`not json`))
	assert.ErrorContains(t, err, "decoding kafka message")
}

func TestNewProducerTargetsTopic(t *testing.T) {
	p := NewProducer(config.KafkaConfig{Brokers: []string{"localhost:9092"}}, "dataset-reloaded")
	defer p.Close()
	assert.Equal(t, "dataset-reloaded", p.writer.Topic)
	assert.Equal(t, "localhost:9092", p.writer.Addr.String())
}

func TestEncodeSetsHeaders(t *testing.T) {
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	msg, err := encode(Event{Key: "7", Value: map[string]int{"generation": 7}}, at)
	require.NoError(t, err)
	assert.Equal(t, "7", string(msg.Key))
	assert.JSONEq(t, `{"generation":7}`, string(msg.Value))
	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "application/json", string(msg.Headers[0].Value))
	assert.Equal(t, "2024-01-02T03:04:05Z", string(msg.Headers[1].Value))

	_, err = encode(Event{Key: "bad", Value: make(chan int)}, at)
	assert.ErrorContains(t, err, `marshaling event "bad"`)
}

func TestPublishBatchEmpty(t *testing.T) {
	p := NewProducer(config.KafkaConfig{Brokers: []string{"localhost:9092"}}, "lookup-events")
	defer p.Close()
	assert.NoError(t, p.PublishBatch(context.Background(), nil))
}
