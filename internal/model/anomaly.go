package model

import "github.com/google/uuid"

// AnomalyKind identifies which cross-source check was violated.
type AnomalyKind uint8

const (
	AnomalyUnknown AnomalyKind = iota
	AnomalyPriceDiff
	AnomalyStaleTimestamp
	AnomalySequenceGap
	AnomalySpreadViolation
	AnomalyVolumeMismatch
)

func (k AnomalyKind) String() string {
	switch k {
	case AnomalyPriceDiff:
		return "price-diff"
	case AnomalyStaleTimestamp:
		return "stale-timestamp"
	case AnomalySequenceGap:
		return "sequence-gap"
	case AnomalySpreadViolation:
		return "spread-violation"
	case AnomalyVolumeMismatch:
		return "volume-mismatch"
	default:
		return "unknown"
	}
}

// Severity reflects which threshold tier was crossed.
type Severity uint8

const (
	SeverityNormal Severity = iota
	SeverityCritical
)

func (s Severity) String() string {
	if s == SeverityCritical {
		return "critical"
	}
	return "normal"
}

// AnomalyRecord is append-only observational output; it never gates data.
type AnomalyRecord struct {
	ID        string
	Symbol    Symbol
	Kind      AnomalyKind
	Severity  Severity
	Sources   []string
	Value     float64
	Threshold float64
	TsNano    int64
}

// NewAnomalyID returns a fresh record id.
func NewAnomalyID() string {
	return uuid.NewString()
}
