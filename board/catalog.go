package board

import (
	"errors"
	"fmt"

	"github.com/samber/lo"
)

var ErrBoardTooSmall = errors.New("board dimension must be at least 2")
var ErrShipTooLong = errors.New("ship does not fit on the board")

// Catalog holds every legal placement of every ship on an empty board. It
// is built once per session and never modified afterwards.
type Catalog struct {
	dim        int
	ships      []Ship
	placements [][]*Placement
}

// NewCatalog enumerates, for each ship, all vertical runs (anchor row outer,
// column inner) followed by all horizontal runs.
func NewCatalog(dim int, ships []Ship) (*Catalog, error) {
	if dim < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrBoardTooSmall, dim)
	}
	if len(ships) == 0 {
		return nil, ErrNoShips
	}
	c := &Catalog{
		dim:        dim,
		ships:      ships,
		placements: make([][]*Placement, len(ships)),
	}
	for s, ship := range ships {
		l := ship.Length
		if l < 1 {
			return nil, fmt.Errorf("%w: ship %s", ErrBadShipLength, ship.Name)
		}
		if l > dim {
			return nil, fmt.Errorf("%w: ship %s has length %d on a %dx%d board",
				ErrShipTooLong, ship.Name, l, dim, dim)
		}
		runs := make([]*Placement, 0, 2*(dim-l+1)*dim)
		for i := 0; i <= dim-l; i++ {
			for j := range dim {
				runs = append(runs, newPlacement(s, dim, l, Cell{Row: i, Col: j}, true))
			}
		}
		for i := 0; i <= dim-l; i++ {
			for j := range dim {
				runs = append(runs, newPlacement(s, dim, l, Cell{Row: j, Col: i}, false))
			}
		}
		c.placements[s] = runs
	}
	return c, nil
}

func (c *Catalog) Dim() int {
	return c.dim
}

func (c *Catalog) Ships() []Ship {
	return c.ships
}

func (c *Catalog) NumShips() int {
	return len(c.ships)
}

// Placements returns the full list for a ship. Callers must copy before
// filtering.
func (c *Catalog) Placements(ship int) []*Placement {
	return c.placements[ship]
}

func (c *Catalog) Size(ship int) int {
	return len(c.placements[ship])
}

// TotalLength is the number of occupied cells on any complete board.
func (c *Catalog) TotalLength() int {
	return lo.SumBy(c.ships, func(s Ship) int { return s.Length })
}
