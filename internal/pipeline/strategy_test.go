package pipeline

import (
	"testing"
	"time"
)

// loadSelector scores on ring occupancy alone so tests can steer the score
// directly, with a controllable clock.
func loadSelector() (*Selector, *time.Time) {
	s := NewSelector(SelectorConfig{
		Weights: Weights{Load: 1},
	})
	clock := time.Unix(1700000000, 0)
	s.now = func() time.Time { return clock }
	return s, &clock
}

func TestSelectorBuckets(t *testing.T) {
	s, _ := loadSelector()
	cases := []struct {
		score float64
		want  Strategy
	}{
		{0.1, StrategyLight},
		{0.5, StrategyBalanced},
		{0.9, StrategyAggressive},
	}
	for _, c := range cases {
		if got := s.bucket(c.score); got != c.want {
			t.Fatalf("bucket(%f): got %v want %v", c.score, got, c.want)
		}
	}
}

func TestSelectorSwitchesWithMargin(t *testing.T) {
	s, _ := loadSelector()
	if s.Current() != StrategyBalanced {
		t.Fatalf("initial strategy: %v", s.Current())
	}

	// above the boundary but inside the hysteresis margin: no switch
	if got := s.Observe(Sample{Load: 0.78}); got != StrategyBalanced {
		t.Fatalf("inside margin switched: %v", got)
	}
	// clear of the margin: switch
	if got := s.Observe(Sample{Load: 0.85}); got != StrategyAggressive {
		t.Fatalf("no switch past margin: %v", got)
	}
}

func TestSelectorDwellBlocksFlapping(t *testing.T) {
	s, clock := loadSelector()
	if got := s.Observe(Sample{Load: 0.9}); got != StrategyAggressive {
		t.Fatalf("setup switch failed: %v", got)
	}

	// an immediate drop is held back by the dwell window
	if got := s.Observe(Sample{Load: 0.1}); got != StrategyAggressive {
		t.Fatalf("dwell ignored: %v", got)
	}

	*clock = clock.Add(6 * time.Second)
	if got := s.Observe(Sample{Load: 0.1}); got != StrategyLight {
		t.Fatalf("no switch after dwell: %v", got)
	}
}

func TestSelectorRollbackOnLatencyRegression(t *testing.T) {
	s, _ := loadSelector()
	// establish a latency baseline before the switch
	for i := 0; i < 20; i++ {
		s.RecordLatency(100 * time.Nanosecond)
	}
	if got := s.Observe(Sample{Load: 0.9}); got != StrategyAggressive {
		t.Fatalf("setup switch failed: %v", got)
	}

	// sustained regression during probation reverts the switch
	for i := 0; i < 50 && s.Current() == StrategyAggressive; i++ {
		s.RecordLatency(10 * time.Microsecond)
	}
	if s.Current() != StrategyBalanced {
		t.Fatalf("no rollback: %v", s.Current())
	}
}

func TestSelectorScoreWeights(t *testing.T) {
	s := NewSelector(SelectorConfig{
		Weights:             Weights{Depth: 0.5, Frequency: 0.5},
		ReferenceDepth:      100,
		ReferenceFrequency:  1000,
		ReferenceVolatility: 1,
	})
	score := s.Score(Sample{Depth: 100, UpdateFreq: 500})
	want := 0.5*1 + 0.5*0.5
	if diff := score - want; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("score: got %f want %f", score, want)
	}
}

func TestStrategyBatchSize(t *testing.T) {
	if StrategyLight.BatchSize() >= StrategyBalanced.BatchSize() {
		t.Fatal("light should drain less than balanced")
	}
	if StrategyBalanced.BatchSize() >= StrategyAggressive.BatchSize() {
		t.Fatal("balanced should drain less than aggressive")
	}
}
