package montecarlo

import (
	"fmt"

	"github.com/bits-and-blooms/bitset"

	"github.com/domino14/salvo/board"
)

// ProbabilityMap holds, for every cell, the share of the turn's sampled
// boards that occupy it. Cells already hit are left out.
type ProbabilityMap struct {
	dim      int
	samples  int
	probs    []float64
	excluded *bitset.BitSet
}

// NewProbabilityMap normalizes per-cell counts by the number of boards.
func NewProbabilityMap(dim int, counts []int, samples int, hits *bitset.BitSet) *ProbabilityMap {
	pm := &ProbabilityMap{
		dim:      dim,
		samples:  samples,
		probs:    make([]float64, dim*dim),
		excluded: hits.Clone(),
	}
	if samples == 0 {
		return pm
	}
	for i, c := range counts {
		if hits.Test(uint(i)) {
			continue
		}
		pm.probs[i] = float64(c) / float64(samples)
	}
	return pm
}

func (pm *ProbabilityMap) Dim() int {
	return pm.dim
}

// Samples is the number of boards behind the map.
func (pm *ProbabilityMap) Samples() int {
	return pm.samples
}

// At returns the probability for c and false if c is excluded.
func (pm *ProbabilityMap) At(c board.Cell) (float64, bool) {
	idx := c.Index(pm.dim)
	if pm.excluded.Test(idx) {
		return 0, false
	}
	return pm.probs[idx], true
}

// Each visits the cells in the map in row-major order. It stops early if fn
// returns false.
func (pm *ProbabilityMap) Each(fn func(c board.Cell, p float64) bool) {
	for i, p := range pm.probs {
		if pm.excluded.Test(uint(i)) {
			continue
		}
		if !fn(board.CellFromIndex(uint(i), pm.dim), p) {
			return
		}
	}
}

// String draws the map as percentages; hit cells show as X.
func (pm *ProbabilityMap) String() string {
	return board.GridText(pm.dim, 3, func(c board.Cell) string {
		p, ok := pm.At(c)
		if !ok {
			return "X"
		}
		return fmt.Sprintf("%.0f", 100*p)
	})
}
