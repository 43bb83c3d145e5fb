package consistency

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/yanun0323/logs"

	"main/internal/model"
)

// messageWriter is the slice of *kafka.Writer the publisher needs, kept as an
// interface so tests can capture messages.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// PublisherConfig controls the anomaly stream producer.
type PublisherConfig struct {
	Brokers       []string
	Topic         string
	FlushInterval time.Duration
	DrainBatch    int
}

func (c PublisherConfig) withDefaults() PublisherConfig {
	if c.Topic == "" {
		c.Topic = "marketdata.anomalies"
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = 100 * time.Millisecond
	}
	if c.DrainBatch <= 0 {
		c.DrainBatch = 256
	}
	return c
}

// anomalyPayload is the wire form of a record on the anomaly topic.
type anomalyPayload struct {
	ID        string   `json:"id"`
	Symbol    string   `json:"symbol"`
	Kind      string   `json:"kind"`
	Severity  string   `json:"severity"`
	Sources   []string `json:"sources"`
	Value     float64  `json:"value"`
	Threshold float64  `json:"threshold"`
	TsNano    int64    `json:"ts_nano"`
}

// Publisher drains the anomaly queue onto a kafka topic, keyed by symbol so
// one symbol's records stay ordered within a partition.
type Publisher struct {
	cfg    PublisherConfig
	queue  *Queue
	writer messageWriter
	buf    []model.AnomalyRecord
}

// NewPublisher wires an async producer; batching happens inside the writer.
func NewPublisher(cfg PublisherConfig, queue *Queue) *Publisher {
	cfg = cfg.withDefaults()
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		Async:        true,
	}
	return &Publisher{cfg: cfg, queue: queue, writer: w}
}

// Run flushes on a ticker until the context is done, then drains once more.
func (p *Publisher) Run(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.FlushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			p.flush(context.Background())
			return
		case <-ticker.C:
			p.flush(ctx)
		}
	}
}

func (p *Publisher) flush(ctx context.Context) {
	p.buf = p.queue.Drain(p.buf[:0], p.cfg.DrainBatch)
	if len(p.buf) == 0 {
		return
	}
	msgs := make([]kafka.Message, 0, len(p.buf))
	for i := range p.buf {
		value, err := json.Marshal(toPayload(p.buf[i]))
		if err != nil {
			logs.Errorf("marshal anomaly %s, err: %+v", p.buf[i].ID, err)
			continue
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(p.buf[i].Symbol.String()),
			Value: value,
		})
	}
	if len(msgs) == 0 {
		return
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		logs.Errorf("publish %d anomalies, err: %+v", len(msgs), err)
	}
}

// Close shuts the underlying writer down.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

func toPayload(rec model.AnomalyRecord) anomalyPayload {
	return anomalyPayload{
		ID:        rec.ID,
		Symbol:    rec.Symbol.String(),
		Kind:      rec.Kind.String(),
		Severity:  rec.Severity.String(),
		Sources:   rec.Sources,
		Value:     rec.Value,
		Threshold: rec.Threshold,
		TsNano:    rec.TsNano,
	}
}
