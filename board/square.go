package board

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/bits-and-blooms/bitset"
)

var ErrOutOfBounds = errors.New("cell is outside the board")
var ErrBadCoords = errors.New("could not parse coordinates")

// A Cell is a single square of the grid. Rows and columns are zero-indexed.
type Cell struct {
	Row int
	Col int
}

func (c Cell) String() string {
	return fmt.Sprintf("(%d,%d)", c.Row, c.Col)
}

// Coords returns the cell in the usual game notation: the column letters
// followed by the 1-indexed row, e.g. "C7" or, past column Z, "AB30".
func (c Cell) Coords() string {
	return ColumnName(c.Col) + strconv.Itoa(c.Row+1)
}

// ColumnName labels a zero-indexed column the way spreadsheets do: A..Z,
// then AA, AB, ...
func ColumnName(col int) string {
	var b []byte
	for n := col + 1; n > 0; n = (n - 1) / 26 {
		b = append(b, byte('A'+(n-1)%26))
	}
	slices.Reverse(b)
	return string(b)
}

// parseColumn is the inverse of ColumnName.
func parseColumn(letters string) int {
	col := 0
	for i := range len(letters) {
		col = col*26 + int(letters[i]-'A') + 1
	}
	return col - 1
}

func (c Cell) InBounds(dim int) bool {
	return c.Row >= 0 && c.Row < dim && c.Col >= 0 && c.Col < dim
}

// Index is the row-major position of the cell; masks are indexed by it.
func (c Cell) Index(dim int) uint {
	return uint(c.Row*dim + c.Col)
}

func CellFromIndex(idx uint, dim int) Cell {
	return Cell{Row: int(idx) / dim, Col: int(idx) % dim}
}

// FromCoords parses game notation such as "C7", "c7" or "AA12".
func FromCoords(coords string, dim int) (Cell, error) {
	coords = strings.ToUpper(strings.TrimSpace(coords))
	split := strings.IndexFunc(coords, func(r rune) bool { return r < 'A' || r > 'Z' })
	if split < 1 {
		return Cell{}, fmt.Errorf("%w: %q", ErrBadCoords, coords)
	}
	col := parseColumn(coords[:split])
	row, err := strconv.Atoi(coords[split:])
	if err != nil {
		return Cell{}, fmt.Errorf("%w: %q", ErrBadCoords, coords)
	}
	c := Cell{Row: row - 1, Col: col}
	if !c.InBounds(dim) {
		return Cell{}, fmt.Errorf("%w: %v", ErrOutOfBounds, coords)
	}
	return c, nil
}

// NewMask returns an empty set of cells for a dim x dim board.
func NewMask(dim int) *bitset.BitSet {
	return bitset.New(uint(dim * dim))
}

// MaskOf builds a set from the given cells.
func MaskOf(dim int, cells ...Cell) *bitset.BitSet {
	m := NewMask(dim)
	for _, c := range cells {
		m.Set(c.Index(dim))
	}
	return m
}

// MaskCells lists the cells of a set in row-major order.
func MaskCells(m *bitset.BitSet, dim int) []Cell {
	cells := make([]Cell, 0, m.Count())
	for i, ok := m.NextSet(0); ok; i, ok = m.NextSet(i + 1) {
		cells = append(cells, CellFromIndex(i, dim))
	}
	return cells
}

// Disjoint reports whether two sets share no cells.
func Disjoint(a, b *bitset.BitSet) bool {
	return a.IntersectionCardinality(b) == 0
}
