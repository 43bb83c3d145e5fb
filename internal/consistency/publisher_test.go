package consistency

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/segmentio/kafka-go"

	"main/internal/model"
)

type captureWriter struct {
	msgs []kafka.Message
}

func (w *captureWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *captureWriter) Close() error { return nil }

func TestPublisherFlushEncodesRecords(t *testing.T) {
	queue := NewQueue(8)
	writer := &captureWriter{}
	p := &Publisher{
		cfg:    PublisherConfig{}.withDefaults(),
		queue:  queue,
		writer: writer,
	}

	queue.Push(model.AnomalyRecord{
		ID:        "a1",
		Symbol:    model.NewSymbol("BTC", "USDT"),
		Kind:      model.AnomalyPriceDiff,
		Severity:  model.SeverityCritical,
		Sources:   []string{"binance", "kraken"},
		Value:     3.2,
		Threshold: 1,
		TsNano:    42,
	})
	p.flush(context.Background())

	if len(writer.msgs) != 1 {
		t.Fatalf("messages: %d", len(writer.msgs))
	}
	msg := writer.msgs[0]
	if string(msg.Key) != "BTC/USDT" {
		t.Fatalf("key: %s", msg.Key)
	}

	var payload anomalyPayload
	if err := json.Unmarshal(msg.Value, &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if payload.ID != "a1" || payload.Kind != "price-diff" || payload.Severity != "critical" {
		t.Fatalf("payload: %+v", payload)
	}
	if payload.Value != 3.2 || payload.Threshold != 1 || payload.TsNano != 42 {
		t.Fatalf("payload values: %+v", payload)
	}
	if len(payload.Sources) != 2 {
		t.Fatalf("sources: %+v", payload.Sources)
	}
}

func TestPublisherFlushEmptyQueueWritesNothing(t *testing.T) {
	writer := &captureWriter{}
	p := &Publisher{
		cfg:    PublisherConfig{}.withDefaults(),
		queue:  NewQueue(8),
		writer: writer,
	}
	p.flush(context.Background())
	if len(writer.msgs) != 0 {
		t.Fatalf("messages: %d", len(writer.msgs))
	}
}
