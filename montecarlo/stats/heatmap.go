package stats

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/domino14/salvo/board"
	"github.com/domino14/salvo/montecarlo"
)

type Heat struct {
	p             float64
	fractionOfMax float64
	hit           bool
	missed        bool
}

// HeatMap shades a probability map relative to its likeliest cell.
type HeatMap struct {
	dim     int
	squares [][]Heat
}

// NewHeatMap shades pm relative to its likeliest cell. probed reports whether
// a cell was already a miss; hits are known from the map itself.
func NewHeatMap(pm *montecarlo.ProbabilityMap, probed func(board.Cell) bool) *HeatMap {
	h := &HeatMap{dim: pm.Dim(), squares: make([][]Heat, pm.Dim())}
	for r := range h.squares {
		h.squares[r] = make([]Heat, pm.Dim())
	}
	maxP := 0.0
	pm.Each(func(_ board.Cell, p float64) bool {
		if p > maxP {
			maxP = p
		}
		return true
	})
	for r := range h.dim {
		for c := range h.dim {
			cell := board.Cell{Row: r, Col: c}
			p, ok := pm.At(cell)
			sq := &h.squares[r][c]
			if !ok {
				sq.hit = true
				continue
			}
			sq.p = p
			sq.missed = probed != nil && probed(cell)
			if maxP > 0 {
				sq.fractionOfMax = p / maxP
			}
		}
	}
	return h
}

// getHeatColor returns an ANSI escape sequence for a given heat level.
func getHeatColor(fraction float64) string {
	// Map the fraction (0 to 1) to grayscale colors (232 to 255 in ANSI 256-color palette)
	// 232 is darkest (black), 255 is lightest (white)
	start := 232
	end := 255
	colorCode := int(float64(start) + fraction*float64(end-start))
	return fmt.Sprintf("\033[48;5;%dm", colorCode) // Background color
}

// Display renders the heatmap to the terminal.
func (h *HeatMap) Display(w io.Writer) {
	fmt.Fprintln(w)
	reset := "\033[0m" // Reset color
	for _, row := range h.squares {
		for _, heat := range row {
			sq := "  "
			switch {
			case heat.hit:
				sq = "XX"
			case heat.missed:
				sq = "··"
			}
			fmt.Fprintf(w, "%s%s%s", getHeatColor(heat.fractionOfMax), sq, reset)
		}
		fmt.Fprintln(w)
	}
}

type hotCell struct {
	cell board.Cell
	p    float64
}

// Hottest lists the n likeliest unprobed cells, best first, ties in
// row-major order.
func (h *HeatMap) Hottest(n int) string {
	cells := make([]hotCell, 0, h.dim*h.dim)
	for r, row := range h.squares {
		for c, heat := range row {
			if heat.hit || heat.missed {
				continue
			}
			cells = append(cells, hotCell{board.Cell{Row: r, Col: c}, heat.p})
		}
	}
	sort.SliceStable(cells, func(i, j int) bool { return cells[i].p > cells[j].p })
	if len(cells) > n {
		cells = cells[:n]
	}
	var ss strings.Builder
	for _, hc := range cells {
		fmt.Fprintf(&ss, "%-4s %5.1f%%\n", hc.cell.Coords(), 100*hc.p)
	}
	return ss.String()
}
