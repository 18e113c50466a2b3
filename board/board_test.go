package board

import (
	"errors"
	"strings"
	"testing"

	"github.com/matryer/is"
	"lukechampine.com/frand"
)

func testRNG(b byte) *frand.RNG {
	seed := make([]byte, 32)
	seed[0] = b
	return frand.NewCustom(seed, 1024, 12)
}

func mustFleet(t *testing.T, lengths ...int) []Ship {
	t.Helper()
	f, err := NewFleet(lengths)
	if err != nil {
		t.Fatal(err)
	}
	return f
}

func TestCatalogPlacementsAreStraightRuns(t *testing.T) {
	is := is.New(t)
	dim := 10
	cat, err := NewCatalog(dim, mustFleet(t, 2, 3, 3, 4, 5))
	is.NoErr(err)

	for s, ship := range cat.Ships() {
		is.Equal(cat.Size(s), 2*(dim-ship.Length+1)*dim)
		for _, p := range cat.Placements(s) {
			cells := p.Cells()
			is.Equal(len(cells), ship.Length)
			is.Equal(int(p.Mask().Count()), ship.Length)
			sameRow, sameCol := true, true
			for k, c := range cells {
				is.True(c.InBounds(dim))
				if c.Row != cells[0].Row {
					sameRow = false
				}
				if c.Col != cells[0].Col {
					sameCol = false
				}
				if k > 0 {
					dr, dc := c.Row-cells[k-1].Row, c.Col-cells[k-1].Col
					is.True((dr == 1 && dc == 0) || (dr == 0 && dc == 1))
				}
			}
			// exactly one axis, except that a length-1 ship is both.
			is.True(sameRow || sameCol)
			if ship.Length > 1 {
				is.True(sameRow != sameCol)
				is.Equal(p.Vertical, sameCol)
			}
		}
	}
}

func TestCatalogEnumerationOrder(t *testing.T) {
	is := is.New(t)
	cat, err := NewCatalog(3, mustFleet(t, 2))
	is.NoErr(err)
	ps := cat.Placements(0)
	is.Equal(len(ps), 12)
	// vertical runs first: anchor row outer, column inner.
	is.Equal(ps[0].Cells(), []Cell{{0, 0}, {1, 0}})
	is.Equal(ps[1].Cells(), []Cell{{0, 1}, {1, 1}})
	is.Equal(ps[3].Cells(), []Cell{{1, 0}, {2, 0}})
	// then horizontal runs, anchor column outer, row inner.
	is.Equal(ps[6].Cells(), []Cell{{0, 0}, {0, 1}})
	is.Equal(ps[7].Cells(), []Cell{{1, 0}, {1, 1}})
	is.Equal(ps[9].Cells(), []Cell{{0, 1}, {0, 2}})
}

func TestCatalogRejectsBadInput(t *testing.T) {
	is := is.New(t)
	_, err := NewCatalog(4, mustFleet(t, 5))
	is.True(err != nil)
	_, err = NewCatalog(1, mustFleet(t, 1))
	is.True(err != nil)
	_, err = NewCatalog(4, nil)
	is.Equal(err, ErrNoShips)
	_, err = NewFleet([]int{2, 0})
	is.True(err != nil)
}

func TestRandomLayoutIsDisjoint(t *testing.T) {
	is := is.New(t)
	cat, err := NewCatalog(10, mustFleet(t, 2, 3, 3, 4, 5))
	is.NoErr(err)
	rng := testRNG(7)
	for range 200 {
		l, err := RandomLayout(cat, rng)
		is.NoErr(err)
		is.Equal(l.NumOccupied(), cat.TotalLength())
		for i := range l.Placements() {
			for j := i + 1; j < len(l.Placements()); j++ {
				is.True(Disjoint(l.Placement(i).Mask(), l.Placement(j).Mask()))
			}
		}
		for s, p := range l.Placements() {
			for _, c := range p.Cells() {
				owner, ok := l.ShipAt(c)
				is.True(ok)
				is.Equal(owner, s)
				is.True(l.Occupied(c))
			}
		}
	}
}

func TestRandomLayoutTightFleet(t *testing.T) {
	is := is.New(t)
	// Two rows or two columns; every ship order can finish.
	cat, err := NewCatalog(2, mustFleet(t, 2, 2))
	is.NoErr(err)
	l, err := RandomLayout(cat, testRNG(1))
	is.NoErr(err)
	is.Equal(l.NumOccupied(), 4)
}

func TestRandomLayoutSeeded(t *testing.T) {
	is := is.New(t)
	cat, err := NewCatalog(8, mustFleet(t, 2, 3, 4))
	is.NoErr(err)
	l1, err := RandomLayout(cat, testRNG(3))
	is.NoErr(err)
	l2, err := RandomLayout(cat, testRNG(3))
	is.NoErr(err)
	is.True(l1.Mask().Equal(l2.Mask()))
}

func TestNewLayoutRejectsOverlap(t *testing.T) {
	is := is.New(t)
	cat, err := NewCatalog(4, mustFleet(t, 2, 2))
	is.NoErr(err)
	// index 12 is the first horizontal run, row 0 from column 0.
	a := cat.Placements(0)[12]
	b := cat.Placements(1)[12]
	_, err = NewLayout(cat, []*Placement{a, b})
	is.True(err != nil)
}

func TestFromCoords(t *testing.T) {
	is := is.New(t)
	c, err := FromCoords("C7", 10)
	is.NoErr(err)
	is.Equal(c, Cell{Row: 6, Col: 2})
	is.Equal(c.Coords(), "C7")
	_, err = FromCoords("K1", 10)
	is.True(err != nil)
	_, err = FromCoords("A", 10)
	is.True(err != nil)
	is.Equal(CellFromIndex(c.Index(10), 10), c)
}

func TestWideBoardCoords(t *testing.T) {
	is := is.New(t)
	for col, want := range map[int]string{0: "A", 25: "Z", 26: "AA", 27: "AB", 51: "AZ", 52: "BA", 701: "ZZ", 702: "AAA"} {
		is.Equal(ColumnName(col), want)
		is.Equal(parseColumn(want), col)
	}
	c, err := FromCoords("ab30", 40)
	is.NoErr(err)
	is.Equal(c, Cell{Row: 29, Col: 27})
	is.Equal(c.Coords(), "AB30")
	_, err = FromCoords("AA1", 26)
	is.True(errors.Is(err, ErrOutOfBounds))
	_, err = FromCoords("12", 30)
	is.True(errors.Is(err, ErrBadCoords))

	text := GridText(27, 1, func(Cell) string { return "." })
	lines := strings.Split(strings.TrimPrefix(text, "\n"), "\n")
	is.True(strings.HasSuffix(strings.TrimRight(lines[0], " "), " Z AA"))
	is.True(strings.HasPrefix(lines[2], " 1|"))
	is.True(strings.HasPrefix(lines[28], "27|"))
	is.Equal(len(lines[2]), len(lines[28]))
}
