package evidence

import (
	"errors"
	"testing"

	"github.com/matryer/is"
	"lukechampine.com/frand"

	"github.com/domino14/salvo/board"
)

func newStore(t *testing.T, dim int, lengths ...int) *Store {
	t.Helper()
	fleet, err := board.NewFleet(lengths)
	if err != nil {
		t.Fatal(err)
	}
	cat, err := board.NewCatalog(dim, fleet)
	if err != nil {
		t.Fatal(err)
	}
	return NewStore(cat)
}

func findPlacement(t *testing.T, cat *board.Catalog, ship int, cells ...board.Cell) *board.Placement {
	t.Helper()
	want := board.MaskOf(cat.Dim(), cells...)
	for _, p := range cat.Placements(ship) {
		if p.Mask().Equal(want) {
			return p
		}
	}
	t.Fatalf("no placement for ship %d at %v", ship, cells)
	return nil
}

func TestSinkCollapsesCandidates(t *testing.T) {
	is := is.New(t)
	s := newStore(t, 4, 2, 2)
	a := findPlacement(t, s.Catalog(), 0, board.Cell{Row: 0, Col: 0}, board.Cell{Row: 0, Col: 1})

	is.NoErr(s.RecordOutcome(board.Cell{Row: 0, Col: 0}, true))
	is.NoErr(s.RecordOutcome(board.Cell{Row: 0, Col: 1}, true))
	is.NoErr(s.AnnounceSunk(0, a))
	is.NoErr(s.Refresh())

	is.True(s.IsSunk(0))
	is.Equal(len(s.Candidates(0)), 1)
	is.True(s.Candidates(0)[0].Equals(a))
	is.True(s.SunkCells().Equal(a.Mask()))
	for _, p := range s.Candidates(1) {
		is.True(board.Disjoint(p.Mask(), a.Mask()))
	}
	// ship b lost every run through row 0's first two cells.
	is.Equal(len(s.Candidates(1)), 24-4)
	is.Equal(s.SunkPlacements()[0], a)
	is.Equal(s.Order(MostConstrainedFirst), []int{1})
}

func TestMissOnTinyBoard(t *testing.T) {
	is := is.New(t)
	s := newStore(t, 2, 2)
	// two vertical and two horizontal runs.
	is.Equal(len(s.Candidates(0)), 4)

	is.NoErr(s.RecordOutcome(board.Cell{Row: 0, Col: 0}, false))
	is.NoErr(s.Refresh())

	got := s.Candidates(0)
	is.Equal(len(got), 2)
	is.Equal(got[0].Cells(), []board.Cell{{Row: 0, Col: 1}, {Row: 1, Col: 1}})
	is.Equal(got[1].Cells(), []board.Cell{{Row: 1, Col: 0}, {Row: 1, Col: 1}})
}

func TestUniqueOwnerRestrictsShip(t *testing.T) {
	is := is.New(t)
	s := newStore(t, 4, 2, 3)
	a := findPlacement(t, s.Catalog(), 0, board.Cell{Row: 0, Col: 0}, board.Cell{Row: 0, Col: 1})
	is.NoErr(s.RecordOutcome(board.Cell{Row: 0, Col: 0}, true))
	is.NoErr(s.RecordOutcome(board.Cell{Row: 0, Col: 1}, true))
	is.NoErr(s.AnnounceSunk(0, a))
	is.NoErr(s.RecordOutcome(board.Cell{Row: 3, Col: 3}, true))
	is.NoErr(s.Refresh())

	// only ship b is afloat, so it must cover the open hit.
	got := s.Candidates(1)
	is.Equal(len(got), 2)
	for _, p := range got {
		is.True(p.Covers(board.Cell{Row: 3, Col: 3}, 4))
	}
}

func TestUniqueOwnerSkipsSharedHits(t *testing.T) {
	is := is.New(t)
	s := newStore(t, 4, 2, 2)
	is.NoErr(s.RecordOutcome(board.Cell{Row: 2, Col: 2}, true))
	is.NoErr(s.Refresh())
	// either ship could own the hit, so neither is restricted.
	is.Equal(len(s.Candidates(0)), 24)
	is.Equal(len(s.Candidates(1)), 24)
}

func TestContradiction(t *testing.T) {
	is := is.New(t)
	s := newStore(t, 2, 2)
	is.NoErr(s.RecordOutcome(board.Cell{Row: 0, Col: 0}, false))
	is.NoErr(s.RecordOutcome(board.Cell{Row: 1, Col: 1}, false))
	err := s.Refresh()
	is.True(errors.Is(err, ErrContradictoryEvidence))
	var ce *ContradictionError
	is.True(errors.As(err, &ce))
	is.Equal(ce.Ship, "a")
}

func TestFleetDoesNotFit(t *testing.T) {
	is := is.New(t)
	// three 3-ships need every cell of a 3x3 board.
	s := newStore(t, 3, 3, 3, 3)
	is.NoErr(s.RecordOutcome(board.Cell{Row: 1, Col: 1}, false))
	err := s.Refresh()
	is.True(errors.Is(err, ErrContradictoryEvidence))
	var ce *ContradictionError
	is.True(errors.As(err, &ce))
	is.Equal(ce.Ship, "")
	is.True(ce.Reason != "")
	for ship := range 3 {
		is.Equal(len(s.Candidates(ship)), 4)
	}
}

func TestTooManyOpenHits(t *testing.T) {
	is := is.New(t)
	s := newStore(t, 4, 2)
	is.NoErr(s.RecordOutcome(board.Cell{Row: 0, Col: 0}, true))
	is.NoErr(s.RecordOutcome(board.Cell{Row: 0, Col: 1}, true))
	is.NoErr(s.Refresh())
	is.NoErr(s.RecordOutcome(board.Cell{Row: 3, Col: 3}, true))
	err := s.Refresh()
	var ce *ContradictionError
	is.True(errors.As(err, &ce))
	is.Equal(ce.Ship, "")
}

func TestRepeatProbeRejected(t *testing.T) {
	is := is.New(t)
	s := newStore(t, 4, 2)
	c := board.Cell{Row: 1, Col: 2}
	is.NoErr(s.RecordOutcome(c, true))
	is.True(errors.Is(s.RecordOutcome(c, false), ErrAlreadyProbed))
	is.True(errors.Is(s.RecordOutcome(c, true), ErrAlreadyProbed))
	is.True(errors.Is(s.RecordOutcome(board.Cell{Row: 4, Col: 0}, true), board.ErrOutOfBounds))
	is.Equal(s.NumHits(), 1)
	is.Equal(s.NumMisses(), 0)
}

func TestSinkMustBeHit(t *testing.T) {
	is := is.New(t)
	s := newStore(t, 4, 2)
	p := s.Catalog().Placements(0)[0]
	is.NoErr(s.RecordOutcome(p.Cells()[0], true))
	is.True(errors.Is(s.AnnounceSunk(0, p), ErrSunkNotHit))
}

func TestReset(t *testing.T) {
	is := is.New(t)
	s := newStore(t, 3, 2)
	is.NoErr(s.RecordOutcome(board.Cell{Row: 1, Col: 1}, false))
	is.NoErr(s.Refresh())
	is.True(len(s.Candidates(0)) < s.Catalog().Size(0))
	s.Reset()
	is.Equal(len(s.Candidates(0)), s.Catalog().Size(0))
	is.Equal(s.NumMisses(), 0)
	// the catalog itself was not touched by pruning.
	is.Equal(s.Catalog().Size(0), 12)
}

// Plays random probes against random layouts and checks the pruning and
// sink invariants after every refresh.
func TestRefreshInvariants(t *testing.T) {
	is := is.New(t)
	seed := make([]byte, 32)
	seed[0] = 42
	rng := frand.NewCustom(seed, 1024, 12)

	for range 20 {
		s := newStore(t, 6, 2, 3, 4)
		truth, err := board.RandomLayout(s.Catalog(), rng)
		is.NoErr(err)
		cells := make([]board.Cell, 0, 36)
		for r := range 6 {
			for c := range 6 {
				cells = append(cells, board.Cell{Row: r, Col: c})
			}
		}
		rng.Shuffle(len(cells), func(i, j int) { cells[i], cells[j] = cells[j], cells[i] })

		for _, c := range cells {
			ship, hit := truth.ShipAt(c)
			is.NoErr(s.RecordOutcome(c, hit))
			if hit && s.Hits().IsSuperSet(truth.Placement(ship).Mask()) {
				is.NoErr(s.AnnounceSunk(ship, truth.Placement(ship)))
			}
			is.NoErr(s.Refresh())

			for ship := range s.Catalog().NumShips() {
				if s.IsSunk(ship) {
					is.Equal(len(s.Candidates(ship)), 1)
					is.True(s.Candidates(ship)[0].Equals(truth.Placement(ship)))
					continue
				}
				for _, p := range s.Candidates(ship) {
					is.True(board.Disjoint(p.Mask(), s.Misses()))
					is.True(board.Disjoint(p.Mask(), s.SunkCells()))
				}
			}
		}
		is.Equal(s.NumSunk(), 3)
	}
}

func TestOrderShips(t *testing.T) {
	is := is.New(t)
	cands := [][]int{make([]int, 5), make([]int, 2), make([]int, 2), make([]int, 1)}
	sunk := []bool{false, false, false, true}
	is.Equal(OrderShips(cands, sunk, MostConstrainedFirst), []int{1, 2, 0})
	is.Equal(OrderShips(cands, sunk, RandomPerAttempt), []int{0, 1, 2})
}

func TestParseOrderingPolicy(t *testing.T) {
	is := is.New(t)
	p, err := ParseOrderingPolicy("random-per-attempt")
	is.NoErr(err)
	is.Equal(p, RandomPerAttempt)
	p, err = ParseOrderingPolicy("Most-Constrained-First")
	is.NoErr(err)
	is.Equal(p, MostConstrainedFirst)
	is.Equal(p.String(), "most-constrained-first")
	_, err = ParseOrderingPolicy("alphabetical")
	is.True(err != nil)
}
