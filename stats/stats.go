// Package stats keeps running statistics over trial results, such as the
// number of turns a search needed to sink the fleet.
package stats

import (
	"fmt"
	"math"
)

const (
	Epsilon = 1e-6
)

func FuzzyEqual(a, b float64) bool {
	return math.Abs(a-b) < Epsilon
}

// Statistic is a running mean and variance (Welford's algorithm) plus the
// extremes seen so far.
type Statistic struct {
	totalIterations int
	last            float64
	min             float64
	max             float64

	oldM float64
	newM float64
	oldS float64
	newS float64
}

func (s *Statistic) Push(val float64) {
	s.last = val
	s.totalIterations++
	if s.totalIterations == 1 {
		s.oldM = val
		s.newM = val
		s.oldS = 0
		s.min = val
		s.max = val
		return
	}
	s.newM = s.oldM + (val-s.oldM)/float64(s.totalIterations)
	s.newS = s.oldS + (val-s.oldM)*(val-s.newM)
	s.oldM = s.newM
	s.oldS = s.newS
	s.min = math.Min(s.min, val)
	s.max = math.Max(s.max, val)
}

func (s *Statistic) Mean() float64 {
	if s.totalIterations > 0 {
		return s.newM
	}
	return 0.0
}

func (s *Statistic) Variance() float64 {
	if s.totalIterations <= 1 {
		return 0.0
	}
	return s.newS / float64(s.totalIterations-1)
}

func (s *Statistic) Stdev() float64 {
	return math.Sqrt(s.Variance())
}

func (s *Statistic) Last() float64 {
	return s.last
}

func (s *Statistic) Min() float64 {
	return s.min
}

func (s *Statistic) Max() float64 {
	return s.max
}

// StandardError returns the standard error of the mean.
func (s *Statistic) StandardError() float64 {
	if s.totalIterations == 0 {
		return 0.0
	}
	return math.Sqrt(s.Variance() / float64(s.totalIterations))
}

// ConfidenceInterval returns the bounds around the mean at the given
// confidence level, a percentage such as 95.
func (s *Statistic) ConfidenceInterval(level float64) (float64, float64) {
	e := ZVal(level) * s.StandardError()
	return s.Mean() - e, s.Mean() + e
}

func (s *Statistic) Iterations() int {
	return s.totalIterations
}

func (s *Statistic) String() string {
	return fmt.Sprintf("<n=%d mean=%.3f stdev=%.3f min=%g max=%g>",
		s.totalIterations, s.Mean(), s.Stdev(), s.min, s.max)
}
