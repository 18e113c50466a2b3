package montecarlo

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/bits-and-blooms/bitset"
	"github.com/cespare/xxhash"
	"lukechampine.com/frand"

	"github.com/domino14/salvo/board"
	"github.com/domino14/salvo/evidence"
)

// DefaultRepairRounds is how many passes the repair phase makes over the
// placed ships before giving up on an attempt.
const DefaultRepairRounds = 3

// timedDrawsPerClockCheck is how many random draws the time-bounded greedy
// step makes between looks at the clock.
const timedDrawsPerClockCheck = 64

var ErrSamplingExhausted = errors.New("no consistent board found within the attempt limit")

var errAttemptFailed = errors.New("sampling attempt failed")

var (
	errGreedyDeadEnd   = fmt.Errorf("%w: no disjoint candidate", errAttemptFailed)
	errStepTimeout     = fmt.Errorf("%w: placement step ran out of time", errAttemptFailed)
	errRepairExhausted = fmt.Errorf("%w: repair left hits uncovered", errAttemptFailed)
)

func failureReason(err error) string {
	switch {
	case errors.Is(err, errGreedyDeadEnd):
		return "greedy"
	case errors.Is(err, errStepTimeout):
		return "step-timeout"
	case errors.Is(err, errRepairExhausted):
		return "repair"
	}
	return "other"
}

// SampledBoard is the set of occupied cells of one complete layout that
// agrees with the evidence. Sunk ships are included.
type SampledBoard struct {
	mask *bitset.BitSet
}

func NewSampledBoard(mask *bitset.BitSet) SampledBoard {
	return SampledBoard{mask: mask}
}

func (b SampledBoard) Mask() *bitset.BitSet {
	return b.mask
}

func (b SampledBoard) Contains(idx uint) bool {
	return b.mask.Test(idx)
}

func (b SampledBoard) fingerprint() uint64 {
	bts, err := b.mask.MarshalBinary()
	if err != nil {
		return 0
	}
	return xxhash.Sum64(bts)
}

// Problem is a read-only view of the evidence the sampler draws against.
type Problem struct {
	Candidates [][]*board.Placement
	Hits       *bitset.BitSet
	// MustHappen holds the cells of ships already sunk.
	MustHappen *bitset.BitSet
}

func ProblemFromStore(s *evidence.Store) Problem {
	n := s.Catalog().NumShips()
	p := Problem{
		Candidates: make([][]*board.Placement, n),
		Hits:       s.Hits(),
		MustHappen: s.SunkCells(),
	}
	for ship := range n {
		p.Candidates[ship] = s.Candidates(ship)
	}
	return p
}

// DrawStats counts the work behind one Draw.
type DrawStats struct {
	Attempts int
	Failures int
	Repairs  int
}

// Sampler draws complete boards consistent with the evidence: greedy
// placement in a given ship order, then a bounded local repair when the
// greedy board misses some hits. A Sampler is not safe for concurrent use;
// Fork one per goroutine.
type Sampler struct {
	rng          *frand.RNG
	repairRounds int
	stepTimeout  time.Duration
	maxAttempts  uint
	metrics      *Metrics

	chosen  []*board.Placement
	fits    []*board.Placement
	repairs int
}

func NewSampler(rng *frand.RNG) *Sampler {
	return &Sampler{rng: rng, repairRounds: DefaultRepairRounds}
}

func (s *Sampler) SetRepairRounds(n int) {
	s.repairRounds = n
}

// SetStepTimeout switches the greedy step to random draws with rejection,
// abandoning the attempt if a single ship's search exceeds d. Zero turns it
// off.
func (s *Sampler) SetStepTimeout(d time.Duration) {
	s.stepTimeout = d
}

// SetMaxAttempts bounds Draw. Zero means retry until success.
func (s *Sampler) SetMaxAttempts(n uint) {
	s.maxAttempts = n
}

func (s *Sampler) SetMetrics(m *Metrics) {
	s.metrics = m
}

// Fork returns a sampler with the same settings and an independent random
// stream seeded from this one.
func (s *Sampler) Fork() *Sampler {
	return &Sampler{
		rng:          frand.NewCustom(s.rng.Bytes(32), 1024, 12),
		repairRounds: s.repairRounds,
		stepTimeout:  s.stepTimeout,
		maxAttempts:  s.maxAttempts,
		metrics:      s.metrics,
	}
}

func (s *Sampler) shuffle(order []int) {
	s.rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
}

// Attempt makes one pass: greedy placement of the ships in order on top of
// the sunk cells, then up to the configured number of repair rounds. It
// fails with an error wrapping errAttemptFailed when no board came out.
func (s *Sampler) Attempt(p Problem, order []int) (SampledBoard, error) {
	s.metrics.attemptStarted()
	s.repairs = 0
	if cap(s.chosen) < len(p.Candidates) {
		s.chosen = make([]*board.Placement, len(p.Candidates))
	}
	s.chosen = s.chosen[:len(p.Candidates)]
	clear(s.chosen)

	committed := p.MustHappen.Clone()
	for _, ship := range order {
		var pick *board.Placement
		var err error
		if s.stepTimeout > 0 {
			pick, err = s.pickTimed(p.Candidates[ship], committed)
		} else {
			pick, err = s.pickUniform(p.Candidates[ship], committed)
		}
		if err != nil {
			return SampledBoard{}, err
		}
		s.chosen[ship] = pick
		committed.InPlaceUnion(pick.Mask())
	}
	if committed.IsSuperSet(p.Hits) {
		return SampledBoard{mask: committed}, nil
	}
	if b, ok := s.repair(p, order); ok {
		return b, nil
	}
	return SampledBoard{}, errRepairExhausted
}

func (s *Sampler) pickUniform(cands []*board.Placement, committed *bitset.BitSet) (*board.Placement, error) {
	s.fits = s.fits[:0]
	for _, c := range cands {
		if board.Disjoint(c.Mask(), committed) {
			s.fits = append(s.fits, c)
		}
	}
	if len(s.fits) == 0 {
		return nil, errGreedyDeadEnd
	}
	return s.fits[s.rng.Intn(len(s.fits))], nil
}

func (s *Sampler) pickTimed(cands []*board.Placement, committed *bitset.BitSet) (*board.Placement, error) {
	if len(cands) == 0 {
		return nil, errGreedyDeadEnd
	}
	deadline := time.Now().Add(s.stepTimeout)
	for n := 1; ; n++ {
		c := cands[s.rng.Intn(len(cands))]
		if board.Disjoint(c.Mask(), committed) {
			return c, nil
		}
		if n%timedDrawsPerClockCheck == 0 && time.Now().After(deadline) {
			return nil, errStepTimeout
		}
	}
}

// repair tries to cover the remaining hits by moving ships that cover fewer
// hits than their length to placements that cover strictly more, without
// touching any other ship or the sunk cells.
func (s *Sampler) repair(p Problem, order []int) (SampledBoard, bool) {
	others := bitset.New(p.Hits.Len())
	for range s.repairRounds {
		for _, ship := range order {
			cur := s.chosen[ship]
			cov := cur.Mask().IntersectionCardinality(p.Hits)
			if cov >= uint(cur.Len()) {
				continue
			}
			others.ClearAll()
			others.InPlaceUnion(p.MustHappen)
			for _, o := range order {
				if o != ship {
					others.InPlaceUnion(s.chosen[o].Mask())
				}
			}
			s.fits = s.fits[:0]
			for _, alt := range p.Candidates[ship] {
				if alt.Mask().IntersectionCardinality(p.Hits) > cov && board.Disjoint(alt.Mask(), others) {
					s.fits = append(s.fits, alt)
				}
			}
			if len(s.fits) == 0 {
				continue
			}
			s.chosen[ship] = s.fits[s.rng.Intn(len(s.fits))]
			s.repairs++
			s.metrics.repaired()
			others.InPlaceUnion(s.chosen[ship].Mask())
			if others.IsSuperSet(p.Hits) {
				return SampledBoard{mask: others.Clone()}, true
			}
		}
	}
	return SampledBoard{}, false
}

// Draw retries Attempt until it yields a board, ctx is done, or the attempt
// limit is hit. With shuffle set the ship order is reshuffled before every
// attempt; otherwise it is kept unless an attempt died in repair.
//
// Without an attempt limit, evidence that leaves every ship a candidate but
// admits no disjoint fleet makes Draw retry until ctx is done. Refresh
// rejects the cases a cell count can detect; bound the context, or set a
// limit, when the evidence does not come from a real layout.
func (s *Sampler) Draw(ctx context.Context, p Problem, order []int, shuffle bool) (SampledBoard, DrawStats, error) {
	order = slices.Clone(order)
	if shuffle {
		s.shuffle(order)
	}
	var st DrawStats
	var out SampledBoard

	err := retry.Do(
		func() error {
			st.Attempts++
			b, err := s.Attempt(p, order)
			st.Repairs += s.repairs
			if err != nil {
				st.Failures++
				s.metrics.attemptFailed(failureReason(err))
				return err
			}
			out = b
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(s.maxAttempts),
		retry.Delay(0),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return errors.Is(err, errAttemptFailed)
		}),
		retry.OnRetry(func(n uint, err error) {
			if shuffle || errors.Is(err, errRepairExhausted) {
				s.shuffle(order)
			}
		}),
	)
	if err == nil {
		return out, st, nil
	}
	if ctx.Err() != nil {
		return SampledBoard{}, st, ctx.Err()
	}
	if errors.Is(err, errAttemptFailed) {
		return SampledBoard{}, st, fmt.Errorf("%w: %d attempts", ErrSamplingExhausted, st.Attempts)
	}
	return SampledBoard{}, st, err
}
