// Package board holds the geometry of the search game: cells, ship
// placements, the catalog of every legal placement, and the hidden layout
// the searcher is trying to find.
package board

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/bits-and-blooms/bitset"
	"lukechampine.com/frand"
)

var ErrOverlap = errors.New("placements overlap")
var ErrWrongShipCount = errors.New("layout needs exactly one placement per ship")
var ErrNoLayout = errors.New("could not fit every ship on the board")

// maxLayoutRestarts bounds RandomLayout when a fleet is packed so tightly
// that a random order can paint itself into a corner.
const maxLayoutRestarts = 10000

// Layout is a complete board: one placement per ship, pairwise disjoint.
type Layout struct {
	dim        int
	placements []*Placement
	occupied   *bitset.BitSet
	owner      []int
}

// NewLayout validates and wraps a fixed assignment, indexed by ship.
func NewLayout(cat *Catalog, placements []*Placement) (*Layout, error) {
	if len(placements) != cat.NumShips() {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrWrongShipCount,
			len(placements), cat.NumShips())
	}
	l := &Layout{
		dim:        cat.Dim(),
		placements: make([]*Placement, len(placements)),
		occupied:   NewMask(cat.Dim()),
		owner:      make([]int, cat.Dim()*cat.Dim()),
	}
	for i := range l.owner {
		l.owner[i] = -1
	}
	for s, p := range placements {
		if p == nil || p.Ship != s || p.Len() != cat.Ships()[s].Length {
			return nil, fmt.Errorf("%w: bad placement for ship %s", ErrWrongShipCount,
				cat.Ships()[s].Name)
		}
		if !Disjoint(l.occupied, p.Mask()) {
			return nil, fmt.Errorf("%w: ship %s at %v", ErrOverlap, cat.Ships()[s].Name, p)
		}
		l.placements[s] = p
		l.occupied.InPlaceUnion(p.Mask())
		for _, c := range p.Cells() {
			l.owner[c.Index(l.dim)] = s
		}
	}
	return l, nil
}

// RandomLayout places the ships in a random order, each uniformly among the
// placements that do not collide with ships already down.
func RandomLayout(cat *Catalog, rng *frand.RNG) (*Layout, error) {
	order := make([]int, cat.NumShips())
	chosen := make([]*Placement, cat.NumShips())
	fits := make([]*Placement, 0)

	for range maxLayoutRestarts {
		for i := range order {
			order[i] = i
		}
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
		taken := NewMask(cat.Dim())
		stuck := false
		for _, s := range order {
			fits = fits[:0]
			for _, p := range cat.Placements(s) {
				if Disjoint(taken, p.Mask()) {
					fits = append(fits, p)
				}
			}
			if len(fits) == 0 {
				stuck = true
				break
			}
			chosen[s] = fits[rng.Intn(len(fits))]
			taken.InPlaceUnion(chosen[s].Mask())
		}
		if !stuck {
			return NewLayout(cat, chosen)
		}
	}
	return nil, ErrNoLayout
}

func (l *Layout) Dim() int {
	return l.dim
}

func (l *Layout) Placement(ship int) *Placement {
	return l.placements[ship]
}

func (l *Layout) Placements() []*Placement {
	return l.placements
}

func (l *Layout) Occupied(c Cell) bool {
	return l.occupied.Test(c.Index(l.dim))
}

// ShipAt returns the ship covering c, if any.
func (l *Layout) ShipAt(c Cell) (int, bool) {
	s := l.owner[c.Index(l.dim)]
	return s, s >= 0
}

func (l *Layout) Mask() *bitset.BitSet {
	return l.occupied
}

func (l *Layout) NumOccupied() int {
	return int(l.occupied.Count())
}

// ToDisplayText draws the layout with ship names on occupied cells.
func (l *Layout) ToDisplayText(ships []Ship) string {
	return GridText(l.dim, 1, func(c Cell) string {
		if s, ok := l.ShipAt(c); ok {
			return ships[s].Name
		}
		return "."
	})
}

// GridText renders one string per cell, right-aligned to width, with column
// letters across the top and 1-indexed rows down the side. Columns widen to
// fit two-letter labels on boards past Z.
func GridText(dim, width int, square func(Cell) string) string {
	width = max(width, len(ColumnName(dim-1)))
	label := len(strconv.Itoa(dim))
	pad := strings.Repeat(" ", label+1)
	var sb strings.Builder
	rule := pad + strings.Repeat("-", dim*(width+1)) + "\n"
	sb.WriteString(pad)
	for i := range dim {
		fmt.Fprintf(&sb, "%*s ", width, ColumnName(i))
	}
	sb.WriteString("\n" + rule)
	for r := range dim {
		fmt.Fprintf(&sb, "%*d|", label, r+1)
		for c := range dim {
			fmt.Fprintf(&sb, "%*s ", width, square(Cell{Row: r, Col: c}))
		}
		sb.WriteString("|\n")
	}
	sb.WriteString(rule)
	return "\n" + sb.String()
}
