// Package evidence tracks what the searcher has learned so far (hits,
// misses and sunk ships) and narrows each ship's candidate placements to
// the ones still consistent with it.
package evidence

import (
	"errors"
	"fmt"

	"github.com/bits-and-blooms/bitset"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/domino14/salvo/board"
)

var ErrAlreadyProbed = errors.New("cell was already probed")
var ErrSunkNotHit = errors.New("sunk placement is not fully hit")
var ErrContradictoryEvidence = errors.New("evidence is contradictory")

// ContradictionError is returned by Refresh when a ship that is still afloat
// has no placement left that agrees with the evidence, or when the afloat
// fleet as a whole cannot fit. Ship is empty in the second case.
type ContradictionError struct {
	Ship   string
	Reason string
}

func (e *ContradictionError) Error() string {
	if e.Ship == "" {
		return fmt.Sprintf("%v: %s", ErrContradictoryEvidence, e.Reason)
	}
	return fmt.Sprintf("%v: ship %s has no remaining placements", ErrContradictoryEvidence, e.Ship)
}

func (e *ContradictionError) Unwrap() error {
	return ErrContradictoryEvidence
}

type sinkEvent struct {
	ship      int
	placement *board.Placement
}

// Store owns the evidence for one game. It is not safe for concurrent
// mutation; the sampler only reads from it between refreshes.
type Store struct {
	cat *board.Catalog
	dim int

	hits      *bitset.BitSet
	misses    *bitset.BitSet
	sunkCells *bitset.BitSet

	sunk       []bool
	candidates [][]*board.Placement
	pending    []sinkEvent
}

func NewStore(cat *board.Catalog) *Store {
	s := &Store{cat: cat, dim: cat.Dim()}
	s.Reset()
	return s
}

// Reset forgets all evidence and restores every candidate list to the full
// catalog.
func (s *Store) Reset() {
	s.hits = board.NewMask(s.dim)
	s.misses = board.NewMask(s.dim)
	s.sunkCells = board.NewMask(s.dim)
	s.sunk = make([]bool, s.cat.NumShips())
	s.candidates = make([][]*board.Placement, s.cat.NumShips())
	for i := range s.candidates {
		s.candidates[i] = append([]*board.Placement(nil), s.cat.Placements(i)...)
	}
	s.pending = nil
}

// RecordOutcome adds a probed cell to the hits or the misses.
func (s *Store) RecordOutcome(c board.Cell, hit bool) error {
	if !c.InBounds(s.dim) {
		return fmt.Errorf("%w: %v", board.ErrOutOfBounds, c)
	}
	if s.Probed(c) {
		return fmt.Errorf("%w: %v", ErrAlreadyProbed, c)
	}
	if hit {
		s.hits.Set(c.Index(s.dim))
	} else {
		s.misses.Set(c.Index(s.dim))
	}
	return nil
}

// AnnounceSunk records that a ship has been sunk at the given placement. It
// takes effect at the next Refresh.
func (s *Store) AnnounceSunk(ship int, p *board.Placement) error {
	if p.Ship != ship {
		return fmt.Errorf("placement belongs to ship %d, not %d", p.Ship, ship)
	}
	if !s.hits.IsSuperSet(p.Mask()) {
		return fmt.Errorf("%w: ship %s at %v", ErrSunkNotHit, s.cat.Ships()[ship].Name, p)
	}
	if s.sunk[ship] {
		return nil
	}
	s.pending = append(s.pending, sinkEvent{ship: ship, placement: p})
	return nil
}

// Refresh brings the candidate lists up to date with the evidence. It runs
// once per turn before sampling:
//  1. announced sinks fix their ship to a single placement;
//  2. placements touching a miss or a sunk ship are dropped;
//  3. a hit that only one afloat ship can still reach restricts that ship
//     to placements covering it (one pass, not a fixed point).
func (s *Store) Refresh() error {
	for _, ev := range s.pending {
		s.sunk[ev.ship] = true
		s.sunkCells.InPlaceUnion(ev.placement.Mask())
		s.candidates[ev.ship] = []*board.Placement{ev.placement}
		log.Debug().Str("ship", s.cat.Ships()[ev.ship].Name).
			Str("placement", ev.placement.String()).Msg("ship-sunk")
	}
	s.pending = s.pending[:0]

	for ship := range s.candidates {
		if s.sunk[ship] {
			continue
		}
		kept := s.candidates[ship][:0]
		for _, p := range s.candidates[ship] {
			if board.Disjoint(p.Mask(), s.misses) && board.Disjoint(p.Mask(), s.sunkCells) {
				kept = append(kept, p)
			}
		}
		s.candidates[ship] = kept
	}

	s.propagateUniqueOwners()

	for ship, cands := range s.candidates {
		if len(cands) == 0 {
			return &ContradictionError{Ship: s.cat.Ships()[ship].Name}
		}
	}
	return s.checkFleetFits()
}

// checkFleetFits catches evidence that leaves every ship some placement but
// no room for all of them together. It is a counting bound, not a full
// feasibility check.
func (s *Store) checkFleetFits() error {
	afloat := 0
	for ship, sh := range s.cat.Ships() {
		if !s.sunk[ship] {
			afloat += sh.Length
		}
	}
	free := s.dim*s.dim - int(s.misses.UnionCardinality(s.sunkCells))
	if free < afloat {
		return &ContradictionError{Reason: fmt.Sprintf(
			"afloat ships need %d cells but only %d are open", afloat, free)}
	}
	if open := int(s.hits.DifferenceCardinality(s.sunkCells)); open > afloat {
		return &ContradictionError{Reason: fmt.Sprintf(
			"%d unsunk hits but afloat ships cover only %d cells", open, afloat)}
	}
	return nil
}

func (s *Store) propagateUniqueOwners() {
	open := s.hits.Difference(s.sunkCells)
	for idx, ok := open.NextSet(0); ok; idx, ok = open.NextSet(idx + 1) {
		owner := -1
		owners := 0
		for ship, cands := range s.candidates {
			if s.sunk[ship] {
				continue
			}
			for _, p := range cands {
				if p.Mask().Test(idx) {
					owner = ship
					owners++
					break
				}
			}
			if owners > 1 {
				break
			}
		}
		if owners != 1 {
			continue
		}
		kept := s.candidates[owner][:0]
		for _, p := range s.candidates[owner] {
			if p.Mask().Test(idx) {
				kept = append(kept, p)
			}
		}
		s.candidates[owner] = kept
	}
}

func (s *Store) Catalog() *board.Catalog {
	return s.cat
}

func (s *Store) Dim() int {
	return s.dim
}

func (s *Store) Hits() *bitset.BitSet {
	return s.hits
}

func (s *Store) Misses() *bitset.BitSet {
	return s.misses
}

func (s *Store) SunkCells() *bitset.BitSet {
	return s.sunkCells
}

func (s *Store) NumHits() int {
	return int(s.hits.Count())
}

func (s *Store) NumMisses() int {
	return int(s.misses.Count())
}

func (s *Store) IsHit(c board.Cell) bool {
	return s.hits.Test(c.Index(s.dim))
}

func (s *Store) Probed(c board.Cell) bool {
	idx := c.Index(s.dim)
	return s.hits.Test(idx) || s.misses.Test(idx)
}

func (s *Store) IsSunk(ship int) bool {
	return s.sunk[ship]
}

func (s *Store) NumSunk() int {
	return lo.Count(s.sunk, true)
}

// Candidates is the live list for a ship; do not modify it.
func (s *Store) Candidates(ship int) []*board.Placement {
	return s.candidates[ship]
}

// CandidateCounts reports the size of every ship's candidate list.
func (s *Store) CandidateCounts() map[string]int {
	counts := make(map[string]int, len(s.candidates))
	for ship, cands := range s.candidates {
		counts[s.cat.Ships()[ship].Name] = len(cands)
	}
	return counts
}

// SunkPlacements maps each sunk ship to the placement it was sunk at.
func (s *Store) SunkPlacements() map[int]*board.Placement {
	out := make(map[int]*board.Placement)
	for ship, sk := range s.sunk {
		if sk {
			out[ship] = s.candidates[ship][0]
		}
	}
	return out
}
