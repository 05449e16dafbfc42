package kafka

import (
	"io"
	"log/slog"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/storm-data-tbb/internal/config"
	"github.com/couchcryptid/storm-data-tbb/internal/domain"
)

func TestMapMessageToRawEvent(t *testing.T) {
	now := time.Now()
	msg := kafkago.Message{
		Key:       []byte("req-1"),
		Value:     []byte(`{"id":"req-1"}`),
		Topic:     "tbb-analysis-requests",
		Partition: 2,
		Offset:    42,
		Time:      now,
		Headers: []kafkago.Header{
			{Key: "source", Value: []byte("dashboard")},
		},
	}

	raw := mapMessageToRawEvent(msg)

	assert.Equal(t, []byte("req-1"), raw.Key)
	assert.JSONEq(t, `{"id":"req-1"}`, string(raw.Value))
	assert.Equal(t, "tbb-analysis-requests", raw.Topic)
	assert.Equal(t, 2, raw.Partition)
	assert.Equal(t, int64(42), raw.Offset)
	assert.Equal(t, now, raw.Timestamp)
	assert.Equal(t, "dashboard", raw.Headers["source"])
	assert.Nil(t, raw.Commit)
}

func TestMapMessageToRawEvent_NoHeaders(t *testing.T) {
	raw := mapMessageToRawEvent(kafkago.Message{Value: []byte("{}")})
	assert.NotNil(t, raw.Headers)
	assert.Empty(t, raw.Headers)
}

func TestSerializeToMessage(t *testing.T) {
	event := domain.OutputEvent{
		Key:   []byte("req-1"),
		Value: []byte(`{"run_id":"abc"}`),
		Headers: map[string]string{
			"run_id":        "abc",
			"processed_at":  "2024-01-01T12:30:00Z",
			"peak_severity": domain.LabelLocalStrongConvection,
		},
	}

	msg := serializeToMessage(event)

	assert.Equal(t, []byte("req-1"), msg.Key)
	assert.JSONEq(t, `{"run_id":"abc"}`, string(msg.Value))
	require.Len(t, msg.Headers, 3)
	assert.Equal(t, "peak_severity", msg.Headers[0].Key)
	assert.Equal(t, []byte(domain.LabelLocalStrongConvection), msg.Headers[0].Value)
	assert.Equal(t, "processed_at", msg.Headers[1].Key)
	assert.Equal(t, "run_id", msg.Headers[2].Key)
}

func TestSerializeToMessage_RoundTripsThroughRawEvent(t *testing.T) {
	event := domain.OutputEvent{Key: []byte("k"), Value: []byte("v"), Headers: map[string]string{"a": "1"}}
	raw := mapMessageToRawEvent(serializeToMessage(event))
	assert.Equal(t, event.Headers, raw.Headers)
	assert.Equal(t, event.Value, raw.Value)
}

func TestNewReaderWriter_UseConfig(t *testing.T) {
	cfg := &config.Config{
		KafkaBrokers:       []string{"localhost:9092"},
		KafkaSourceTopic:   "in",
		KafkaSinkTopic:     "out",
		KafkaGroupID:       "grp",
		BatchFlushInterval: 250 * time.Millisecond,
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	r := NewReader(cfg, logger)
	defer r.Close()
	assert.Equal(t, "in", r.reader.Config().Topic)
	assert.Equal(t, "grp", r.reader.Config().GroupID)
	assert.Equal(t, 250*time.Millisecond, r.flushInterval)

	w := NewWriter(cfg, logger)
	defer w.Close()
	assert.Equal(t, "out", w.writer.Topic)
}
