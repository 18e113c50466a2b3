package board

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bits-and-blooms/bitset"
)

var ErrNoShips = errors.New("at least one ship is required")
var ErrBadShipLength = errors.New("ship length must be at least 1")

// A Ship is one member of the fleet. Several ships may share a length, so
// each gets its own name.
type Ship struct {
	Name   string
	Length int
}

// NewFleet names the ships a, b, c, ... in the order their lengths were
// given.
func NewFleet(lengths []int) ([]Ship, error) {
	if len(lengths) == 0 {
		return nil, ErrNoShips
	}
	fleet := make([]Ship, len(lengths))
	for i, l := range lengths {
		if l < 1 {
			return nil, fmt.Errorf("%w: got %d", ErrBadShipLength, l)
		}
		fleet[i] = Ship{Name: shipName(i), Length: l}
	}
	return fleet, nil
}

func shipName(i int) string {
	if i < 26 {
		return string(rune('a' + i))
	}
	return fmt.Sprintf("s%d", i)
}

// A Placement is one straight run of cells a ship can occupy.
type Placement struct {
	Ship     int
	Anchor   Cell
	Vertical bool

	cells []Cell
	mask  *bitset.BitSet
}

func newPlacement(ship, dim, length int, anchor Cell, vertical bool) *Placement {
	p := &Placement{
		Ship:     ship,
		Anchor:   anchor,
		Vertical: vertical,
		cells:    make([]Cell, length),
		mask:     NewMask(dim),
	}
	ri, ci := 0, 1
	if vertical {
		ri, ci = 1, 0
	}
	for k := range length {
		c := Cell{Row: anchor.Row + ri*k, Col: anchor.Col + ci*k}
		p.cells[k] = c
		p.mask.Set(c.Index(dim))
	}
	return p
}

func (p *Placement) Cells() []Cell {
	return p.cells
}

// Mask must not be modified by callers; it is shared by every candidate
// list that holds this placement.
func (p *Placement) Mask() *bitset.BitSet {
	return p.mask
}

func (p *Placement) Len() int {
	return len(p.cells)
}

func (p *Placement) Covers(c Cell, dim int) bool {
	return p.mask.Test(c.Index(dim))
}

func (p *Placement) Equals(o *Placement) bool {
	return p.Ship == o.Ship && p.mask.Equal(o.mask)
}

func (p *Placement) String() string {
	var sb strings.Builder
	sb.WriteString("{")
	for i, c := range p.cells {
		if i > 0 {
			sb.WriteString(" ")
		}
		sb.WriteString(c.String())
	}
	sb.WriteString("}")
	return sb.String()
}
