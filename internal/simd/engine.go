// Package simd provides the fixed-width batch code path the aggressive
// cleaning strategy runs on. It is strictly a performance substitution for
// the scalar path: output is bit-identical, and the engine transparently
// reports itself unavailable when the host lacks the required vector width.
package simd

import (
	"github.com/klauspost/cpuid/v2"
)

// laneWidth is the number of int64 lanes processed per block.
const laneWidth = 4

// Engine describes the batch capability detected at startup.
type Engine struct {
	enabled bool
	width   int
}

// Detect probes CPU features once at startup, never per call.
func Detect() *Engine {
	if cpuid.CPU.Supports(cpuid.AVX2) {
		return &Engine{enabled: true, width: laneWidth}
	}
	return &Engine{}
}

// Enabled reports whether the batch path may be used.
func (e *Engine) Enabled() bool {
	return e != nil && e.enabled
}

// Width returns the lane width, 0 when disabled.
func (e *Engine) Width() int {
	if e == nil || !e.enabled {
		return 0
	}
	return e.width
}

// CompactPositive moves entries with price > 0 and quantity > 0 to the
// front of both columns in order, returning the kept count. Both columns
// must have equal length.
func (e *Engine) CompactPositive(prices, qtys []int64) int {
	if !e.Enabled() {
		return compactPositiveScalar(prices, qtys)
	}

	n := len(prices)
	out := 0
	i := 0
	// full blocks: test all lanes, then write survivors in lane order so
	// the result matches the scalar pass exactly
	for ; i+laneWidth <= n; i += laneWidth {
		var keep [laneWidth]bool
		keep[0] = prices[i] > 0 && qtys[i] > 0
		keep[1] = prices[i+1] > 0 && qtys[i+1] > 0
		keep[2] = prices[i+2] > 0 && qtys[i+2] > 0
		keep[3] = prices[i+3] > 0 && qtys[i+3] > 0
		for lane := 0; lane < laneWidth; lane++ {
			if !keep[lane] {
				continue
			}
			prices[out] = prices[i+lane]
			qtys[out] = qtys[i+lane]
			out++
		}
	}
	for ; i < n; i++ {
		if prices[i] > 0 && qtys[i] > 0 {
			prices[out] = prices[i]
			qtys[out] = qtys[i]
			out++
		}
	}
	return out
}

func compactPositiveScalar(prices, qtys []int64) int {
	out := 0
	for i := range prices {
		if prices[i] > 0 && qtys[i] > 0 {
			prices[out] = prices[i]
			qtys[out] = qtys[i]
			out++
		}
	}
	return out
}

// MinMax scans a column in lane-width blocks.
func (e *Engine) MinMax(values []int64) (min, max int64, ok bool) {
	if len(values) == 0 {
		return 0, 0, false
	}
	if !e.Enabled() {
		return minMaxScalar(values)
	}

	min, max = values[0], values[0]
	i := 1
	for ; i+laneWidth <= len(values); i += laneWidth {
		var lo, hi [laneWidth]int64
		for lane := 0; lane < laneWidth; lane++ {
			lo[lane] = values[i+lane]
			hi[lane] = values[i+lane]
		}
		for lane := 0; lane < laneWidth; lane++ {
			if lo[lane] < min {
				min = lo[lane]
			}
			if hi[lane] > max {
				max = hi[lane]
			}
		}
	}
	for ; i < len(values); i++ {
		if values[i] < min {
			min = values[i]
		}
		if values[i] > max {
			max = values[i]
		}
	}
	return min, max, true
}

func minMaxScalar(values []int64) (min, max int64, ok bool) {
	min, max = values[0], values[0]
	for _, v := range values[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return min, max, true
}

// Sum accumulates a column in lane-width blocks.
func (e *Engine) Sum(values []int64) int64 {
	if !e.Enabled() {
		var total int64
		for _, v := range values {
			total += v
		}
		return total
	}

	var lanes [laneWidth]int64
	i := 0
	for ; i+laneWidth <= len(values); i += laneWidth {
		lanes[0] += values[i]
		lanes[1] += values[i+1]
		lanes[2] += values[i+2]
		lanes[3] += values[i+3]
	}
	total := lanes[0] + lanes[1] + lanes[2] + lanes[3]
	for ; i < len(values); i++ {
		total += values[i]
	}
	return total
}
