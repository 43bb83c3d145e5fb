package pipeline

import "time"

// Strategy names a cleaning profile. Strategies differ only in batch size
// and algorithm choice, never in output.
type Strategy uint8

const (
	StrategyLight Strategy = iota
	StrategyBalanced
	StrategyAggressive
)

func (s Strategy) String() string {
	switch s {
	case StrategyLight:
		return "light"
	case StrategyBalanced:
		return "balanced"
	case StrategyAggressive:
		return "aggressive"
	default:
		return "unknown"
	}
}

// BatchSize is how many queued events the orchestrator drains per loop
// iteration under this strategy.
func (s Strategy) BatchSize() int {
	switch s {
	case StrategyBalanced:
		return 16
	case StrategyAggressive:
		return 64
	default:
		return 4
	}
}

// Weights are the complexity-score coefficients.
type Weights struct {
	Depth      float64
	Frequency  float64
	Volatility float64
	Load       float64
}

// SelectorConfig tunes strategy selection. All values are config-driven.
type SelectorConfig struct {
	Weights             Weights
	ReferenceDepth      float64
	ReferenceFrequency  float64 // events/sec considered "busy"
	ReferenceVolatility float64

	// score buckets: below LightBelow -> light, above AggressiveAbove ->
	// aggressive, balanced in between
	LightBelow      float64
	AggressiveAbove float64

	// Hysteresis is the extra margin a score must cross beyond a bucket
	// boundary before a switch is considered.
	Hysteresis float64
	// MinDwell is the minimum time between switches.
	MinDwell time.Duration
	// RollbackMultiple triggers a rollback when the latency EWMA exceeds
	// this multiple of the pre-switch baseline during probation.
	RollbackMultiple float64
	// ProbationSamples is how many latency samples after a switch are
	// compared against the baseline.
	ProbationSamples int
}

func (c SelectorConfig) withDefaults() SelectorConfig {
	if c.Weights == (Weights{}) {
		c.Weights = Weights{Depth: 0.3, Frequency: 0.3, Volatility: 0.2, Load: 0.2}
	}
	if c.ReferenceDepth <= 0 {
		c.ReferenceDepth = 64
	}
	if c.ReferenceFrequency <= 0 {
		c.ReferenceFrequency = 1000
	}
	if c.ReferenceVolatility <= 0 {
		c.ReferenceVolatility = 1
	}
	if c.LightBelow <= 0 {
		c.LightBelow = 0.35
	}
	if c.AggressiveAbove <= 0 {
		c.AggressiveAbove = 0.75
	}
	if c.Hysteresis <= 0 {
		c.Hysteresis = 0.05
	}
	if c.MinDwell <= 0 {
		c.MinDwell = 5 * time.Second
	}
	if c.RollbackMultiple <= 1 {
		c.RollbackMultiple = 2
	}
	if c.ProbationSamples <= 0 {
		c.ProbationSamples = 256
	}
	return c
}

// Sample is one observation of the inputs to the complexity score.
type Sample struct {
	Depth      int
	UpdateFreq float64 // events/sec
	Volatility float64
	Load       float64 // 0..1, ingest ring occupancy
}

// Selector picks the cleaning strategy from a complexity score with dwell
// time, hysteresis and automatic rollback on latency regression. Like the
// cleaner it is confined to the orchestrator loop, so no locking.
type Selector struct {
	cfg SelectorConfig

	current    Strategy
	previous   Strategy
	lastSwitch time.Time

	latencyEWMA   float64 // nanoseconds
	baseline      float64 // EWMA at the moment of the last switch
	probationLeft int

	now func() time.Time
}

// NewSelector starts on the balanced strategy.
func NewSelector(cfg SelectorConfig) *Selector {
	return &Selector{
		cfg:      cfg.withDefaults(),
		current:  StrategyBalanced,
		previous: StrategyBalanced,
		now:      time.Now,
	}
}

// Current returns the active strategy.
func (s *Selector) Current() Strategy {
	if s == nil {
		return StrategyBalanced
	}
	return s.current
}

// Score computes the weighted complexity score for a sample.
func (s *Selector) Score(sample Sample) float64 {
	w := s.cfg.Weights
	return w.Depth*(float64(sample.Depth)/s.cfg.ReferenceDepth) +
		w.Frequency*(sample.UpdateFreq/s.cfg.ReferenceFrequency) +
		w.Volatility*(sample.Volatility/s.cfg.ReferenceVolatility) +
		w.Load*sample.Load
}

// Observe feeds a sample and returns the (possibly switched) strategy.
func (s *Selector) Observe(sample Sample) Strategy {
	score := s.Score(sample)
	target := s.bucket(score)
	if target == s.current {
		return s.current
	}
	if !s.lastSwitch.IsZero() && s.now().Sub(s.lastSwitch) < s.cfg.MinDwell {
		return s.current
	}
	if !s.crossedWithMargin(score, target) {
		return s.current
	}
	s.switchTo(target)
	return s.current
}

func (s *Selector) bucket(score float64) Strategy {
	switch {
	case score < s.cfg.LightBelow:
		return StrategyLight
	case score > s.cfg.AggressiveAbove:
		return StrategyAggressive
	default:
		return StrategyBalanced
	}
}

// crossedWithMargin requires the score to clear the relevant boundary by
// the hysteresis margin so selection does not oscillate at a boundary.
func (s *Selector) crossedWithMargin(score float64, target Strategy) bool {
	switch {
	case target < s.current: // stepping down
		boundary := s.cfg.LightBelow
		if s.current == StrategyAggressive {
			boundary = s.cfg.AggressiveAbove
		}
		return score < boundary-s.cfg.Hysteresis
	case target > s.current: // stepping up
		boundary := s.cfg.AggressiveAbove
		if s.current == StrategyLight {
			boundary = s.cfg.LightBelow
		}
		return score > boundary+s.cfg.Hysteresis
	default:
		return false
	}
}

func (s *Selector) switchTo(target Strategy) {
	s.previous = s.current
	s.current = target
	s.lastSwitch = s.now()
	s.baseline = s.latencyEWMA
	s.probationLeft = s.cfg.ProbationSamples
}

// RecordLatency feeds one clean-path latency sample. A sustained
// regression beyond RollbackMultiple x the pre-switch baseline during
// probation reverts to the previous strategy.
func (s *Selector) RecordLatency(d time.Duration) {
	const alpha = 0.1
	sample := float64(d.Nanoseconds())
	if s.latencyEWMA == 0 {
		s.latencyEWMA = sample
	} else {
		s.latencyEWMA = alpha*sample + (1-alpha)*s.latencyEWMA
	}

	if s.probationLeft <= 0 {
		return
	}
	s.probationLeft--
	if s.baseline <= 0 {
		return
	}
	if s.latencyEWMA > s.cfg.RollbackMultiple*s.baseline {
		s.current, s.previous = s.previous, s.current
		s.lastSwitch = s.now()
		s.probationLeft = 0
	}
}
