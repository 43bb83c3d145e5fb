package consistency

import (
	"context"
	"strings"
	"time"

	"github.com/yanun0323/logs"
	"gorm.io/gorm"

	"main/internal/model"
)

// AnomalyRow is the persisted form of a record.
type AnomalyRow struct {
	ID        string  `gorm:"primaryKey;size:36"`
	Symbol    string  `gorm:"size:32;index:idx_anomalies_symbol_ts"`
	Kind      string  `gorm:"size:32;index"`
	Severity  string  `gorm:"size:16"`
	Sources   string  `gorm:"size:128"`
	Value     float64 `gorm:""`
	Threshold float64 `gorm:""`
	TsNano    int64   `gorm:"index:idx_anomalies_symbol_ts"`
}

// TableName keeps the table name stable across gorm naming strategies.
func (AnomalyRow) TableName() string {
	return "anomalies"
}

// ArchiveConfig controls the database writer.
type ArchiveConfig struct {
	FlushInterval time.Duration
	DrainBatch    int
}

func (c ArchiveConfig) withDefaults() ArchiveConfig {
	if c.FlushInterval <= 0 {
		c.FlushInterval = time.Second
	}
	if c.DrainBatch <= 0 {
		c.DrainBatch = 512
	}
	return c
}

// Archive batch-inserts anomaly records into PostgreSQL for offline review.
// It shares the queue with the kafka publisher via its own Queue instance;
// the orchestrator pushes every record into both.
type Archive struct {
	cfg   ArchiveConfig
	queue *Queue
	db    *gorm.DB
	buf   []model.AnomalyRecord
}

// NewArchive migrates the anomalies table and returns the writer.
func NewArchive(cfg ArchiveConfig, queue *Queue, db *gorm.DB) (*Archive, error) {
	if err := db.AutoMigrate(&AnomalyRow{}); err != nil {
		return nil, err
	}
	return &Archive{cfg: cfg.withDefaults(), queue: queue, db: db}, nil
}

// Run flushes on a ticker until the context is done, then drains once more.
func (a *Archive) Run(ctx context.Context) {
	ticker := time.NewTicker(a.cfg.FlushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			a.flush()
			return
		case <-ticker.C:
			a.flush()
		}
	}
}

func (a *Archive) flush() {
	a.buf = a.queue.Drain(a.buf[:0], a.cfg.DrainBatch)
	if len(a.buf) == 0 {
		return
	}
	rows := make([]AnomalyRow, 0, len(a.buf))
	for i := range a.buf {
		rows = append(rows, toRow(a.buf[i]))
	}
	if err := a.db.CreateInBatches(rows, 128).Error; err != nil {
		logs.Errorf("archive %d anomalies, err: %+v", len(rows), err)
	}
}

func toRow(rec model.AnomalyRecord) AnomalyRow {
	return AnomalyRow{
		ID:        rec.ID,
		Symbol:    rec.Symbol.String(),
		Kind:      rec.Kind.String(),
		Severity:  rec.Severity.String(),
		Sources:   strings.Join(rec.Sources, ","),
		Value:     rec.Value,
		Threshold: rec.Threshold,
		TsNano:    rec.TsNano,
	}
}
